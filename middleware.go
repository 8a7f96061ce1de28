package xdispatch

import (
	"context"
	"fmt"
)

// Handler is the uniform form every binding is reduced to. d is the dispatcher propagating e.
type Handler func(ctx context.Context, e Event, d *Dispatcher) error

// Middleware composes cross-cutting concerns around a Handler.
type Middleware func(next Handler) Handler

// RecoveryMiddleware converts handler panics into errors wrapping ErrHandlerPanic.
func RecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, e Event, d *Dispatcher) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				}
			}()
			return next(ctx, e, d)
		}
	}
}

// FilterMiddleware skips the handler when keep returns false.
func FilterMiddleware(keep func(e Event) bool) Middleware {
	if keep == nil {
		return func(next Handler) Handler { return next }
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, e Event, d *Dispatcher) error {
			if !keep(e) {
				return nil
			}
			return next(ctx, e, d)
		}
	}
}

// SkipCanceledMiddleware stops invoking the handler once an earlier handler canceled the event.
func SkipCanceledMiddleware() Middleware {
	return FilterMiddleware(func(e Event) bool { return !e.IsCanceled() })
}

// Chain composes middlewares around a handler in order.
func Chain(h Handler, mws ...Middleware) Handler {
	if len(mws) == 0 {
		return h
	}
	wrapped := h
	// Apply in reverse so that first middleware wraps last.
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}
