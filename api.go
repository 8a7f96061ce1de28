package xdispatch

import (
	"context"
)

// HealthChecker provides health status for production monitoring.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// API represents the complete xdispatch surface for extensibility.
type API interface {
	Dispatch(e Event) error
	DispatchImmediately(ctx context.Context, e Event) error
	RegisterListener(l Listener) error
	Shutdown() bool
	Close(ctx context.Context) error
	IsRunning() bool
	WorkerCount() int
	Metrics() Metrics
	Health(ctx context.Context) HealthStatus
	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
}
