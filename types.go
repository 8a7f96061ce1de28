package xdispatch

import (
	"time"
)

// NotificationType enumerates dispatcher lifecycle notifications for the Observer pattern.
type NotificationType string

const (
	Enqueued       NotificationType = "enqueued"
	Rejected       NotificationType = "rejected"
	PropagateStart NotificationType = "propagate_start"
	HandlerFailed  NotificationType = "handler_failed"
	RunDone        NotificationType = "run_done"
	RunFailed      NotificationType = "run_failed"
	RunSkipped     NotificationType = "run_skipped"
	Discarded      NotificationType = "discarded"
	Stopped        NotificationType = "shutdown"
)

// Notification carries telemetry for observers. It never carries the event itself, so
// observers cannot extend an event's lifetime.
type Notification struct {
	Type        NotificationType `json:"type" msgpack:"type"`
	Application string           `json:"application" msgpack:"application"`
	Worker      string           `json:"worker,omitempty" msgpack:"worker,omitempty"`
	EventID     string           `json:"event_id,omitempty" msgpack:"event_id,omitempty"`
	EventType   string           `json:"event_type,omitempty" msgpack:"event_type,omitempty"`
	Listener    string           `json:"listener,omitempty" msgpack:"listener,omitempty"`
	Handler     string           `json:"handler,omitempty" msgpack:"handler,omitempty"`
	Immediate   bool             `json:"immediate,omitempty" msgpack:"immediate,omitempty"`
	Duration    time.Duration    `json:"duration,omitempty" msgpack:"duration,omitempty"`
	At          time.Time        `json:"at" msgpack:"at"`
	Err         error            `json:"-" msgpack:"-"`

	// Internal: attached for async dispatch
	observers []Observer
}

// ErrString returns the notification error text, or "" when there is none.
func (n Notification) ErrString() string {
	if n.Err == nil {
		return ""
	}
	return n.Err.Error()
}

// PoolStats returns telemetry about the observer pool.
type PoolStats struct {
	Dropped      uint64 // Notifications dropped due to full buffer
	Processed    uint64 // Notifications successfully processed
	ActiveEvents int    // Current queue depth
	Workers      int    // Number of notify goroutines
	BufferSize   int    // Channel capacity
}

// Metrics defines observable telemetry for the dispatcher.
type Metrics struct {
	Dispatched    uint64  // accepted by Dispatch
	Immediate     uint64  // DispatchImmediately calls
	Rejected      uint64  // Dispatch after shutdown
	Propagated    uint64
	HandlerCalls  uint64
	HandlerErrors uint64
	Runs          uint64
	RunFailures   uint64
	Canceled      uint64  // runs skipped because a handler canceled the event
	Discarded     uint64  // queued events dropped by shutdown
	Pending       int
	NotifyDropped uint64
	AvgRunTimeMs  float64
	Workers       int
	Listeners     int
	Bindings      int
}

// HealthStatus indicates dispatcher health for liveness checks.
type HealthStatus struct {
	Status    string // "healthy", "degraded", "unhealthy"
	Metrics   Metrics
	Timestamp time.Time
	Message   string
}
