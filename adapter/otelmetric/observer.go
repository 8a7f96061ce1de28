// Package otelmetric exports xdispatch notifications as OpenTelemetry metrics.
package otelmetric

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/trickstertwo/xdispatch"
)

// MeterName is the instrumentation scope used when no meter is supplied.
const MeterName = "github.com/trickstertwo/xdispatch"

var _ xdispatch.Observer = (*Observer)(nil)

// Observer counts notifications per type and records run durations.
type Observer struct {
	notifications metric.Int64Counter
	failures      metric.Int64Counter
	runDuration   metric.Float64Histogram
}

// New creates instruments on mp, or on the global provider when mp is nil.
func New(mp metric.MeterProvider) (*Observer, error) {
	var meter metric.Meter
	if mp != nil {
		meter = mp.Meter(MeterName)
	} else {
		meter = otel.Meter(MeterName)
	}

	notifications, err := meter.Int64Counter("xdispatch.notifications",
		metric.WithDescription("Dispatcher lifecycle notifications by type"),
		metric.WithUnit("{notification}"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("xdispatch.failures",
		metric.WithDescription("Handler and run failures"),
		metric.WithUnit("{failure}"))
	if err != nil {
		return nil, err
	}
	runDuration, err := meter.Float64Histogram("xdispatch.run.duration",
		metric.WithDescription("Duration of Event.Run"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Observer{
		notifications: notifications,
		failures:      failures,
		runDuration:   runDuration,
	}, nil
}

// OnNotify implements xdispatch.Observer.
func (o *Observer) OnNotify(n xdispatch.Notification) {
	ctx := context.Background()
	attrs := Attributes(n)

	o.notifications.Add(ctx, 1, metric.WithAttributes(attrs...))
	switch n.Type {
	case xdispatch.HandlerFailed, xdispatch.RunFailed:
		o.failures.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if n.Type == xdispatch.RunDone || n.Type == xdispatch.RunFailed {
		o.runDuration.Record(ctx, float64(n.Duration.Microseconds())/1000, metric.WithAttributes(attrs...))
	}
}

// Attributes returns the low-cardinality attribute set for n. Event IDs are never included.
func Attributes(n xdispatch.Notification) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 5)
	attrs = append(attrs,
		attribute.String("xdispatch.application", n.Application),
		attribute.String("xdispatch.notification", string(n.Type)),
		attribute.Bool("xdispatch.immediate", n.Immediate),
	)
	if n.EventType != "" {
		attrs = append(attrs, attribute.String("xdispatch.event_type", n.EventType))
	}
	if n.Handler != "" {
		attrs = append(attrs, attribute.String("xdispatch.handler", n.Handler))
	}
	return attrs
}
