package xdispatch

import (
	"context"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// ctxKey is the base for all context keys in xdispatch (prevents collisions).
type ctxKey string

const (
	dispatcherCtxKey ctxKey = "xdispatch:dispatcher"
	loggerCtxKey     ctxKey = "xdispatch:logger"
	clockCtxKey      ctxKey = "xdispatch:clock"
	workerCtxKey     ctxKey = "xdispatch:worker"
)

func injectDispatcher(ctx context.Context, d *Dispatcher) context.Context {
	if d == nil {
		return ctx
	}
	return context.WithValue(ctx, dispatcherCtxKey, d)
}

// DispatcherFromContext returns the dispatcher delivering the current event.
func DispatcherFromContext(ctx context.Context) (*Dispatcher, bool) {
	if v := ctx.Value(dispatcherCtxKey); v != nil {
		if d, ok := v.(*Dispatcher); ok && d != nil {
			return d, true
		}
	}
	return nil, false
}

func injectLogger(ctx context.Context, l *xlog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerCtxKey, l)
}

// LoggerFromContext returns the logger of the delivering worker (or dispatcher, for
// immediate delivery).
func LoggerFromContext(ctx context.Context) (*xlog.Logger, bool) {
	if v := ctx.Value(loggerCtxKey); v != nil {
		if l, ok := v.(*xlog.Logger); ok && l != nil {
			return l, true
		}
	}
	return nil, false
}

func injectClock(ctx context.Context, c xclock.Clock) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, clockCtxKey, c)
}

func ClockFromContext(ctx context.Context) (xclock.Clock, bool) {
	if v := ctx.Value(clockCtxKey); v != nil {
		if c, ok := v.(xclock.Clock); ok && c != nil {
			return c, true
		}
	}
	return nil, false
}

func injectWorker(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, workerCtxKey, name)
}

// WorkerFromContext returns the name of the worker delivering the current event. It is absent
// for immediate delivery, which runs on the caller's goroutine.
func WorkerFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(workerCtxKey).(string)
	return name, ok && name != ""
}

// InjectAll is a convenience helper to inject all standard dependencies.
func InjectAll(ctx context.Context, d *Dispatcher, logger *xlog.Logger, clock xclock.Clock) context.Context {
	ctx = injectDispatcher(ctx, d)
	ctx = injectLogger(ctx, logger)
	ctx = injectClock(ctx, clock)
	return ctx
}
