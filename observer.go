package xdispatch

import (
	"github.com/trickstertwo/xlog"
	"golang.org/x/time/rate"
)

// Observer receives dispatcher lifecycle notifications. Implementations should be non-blocking.
type Observer interface {
	OnNotify(n Notification)
}

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(n Notification)

func (f ObserverFunc) OnNotify(n Notification) { f(n) }

// LoggingObserver is an Adapter that emits notifications via xlog.
// When Limiter is set, notifications beyond its rate are not logged.
type LoggingObserver struct {
	Logger  *xlog.Logger
	Limiter *rate.Limiter
}

func (o LoggingObserver) OnNotify(n Notification) {
	if o.Logger == nil {
		return
	}
	if o.Limiter != nil && !o.Limiter.Allow() {
		return
	}
	lg := o.Logger.With(
		xlog.Str("type", string(n.Type)),
		xlog.Str("event_id", n.EventID),
		xlog.Str("event_type", n.EventType),
	)
	if n.Worker != "" {
		lg = lg.With(xlog.Str("worker", n.Worker))
	}
	if n.Listener != "" {
		lg = lg.With(xlog.Str("listener", n.Listener), xlog.Str("handler", n.Handler))
	}
	switch n.Type {
	case HandlerFailed, RunFailed, Rejected:
		lg.Warn().Err(n.Err).Msg("xdispatch notification")
	default:
		if n.Duration > 0 {
			lg = lg.With(xlog.Dur("duration", n.Duration))
		}
		lg.Debug().Msg("xdispatch notification")
	}
}
