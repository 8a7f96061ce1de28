package redisstream

import (
	"fmt"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xdispatch"
	"github.com/trickstertwo/xlog"
)

// Option configures the xdispatch.Dispatcher construction when calling Use.
type Option func(*xdispatch.Builder)

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(b *xdispatch.Builder) { b.WithLogger(l) }
}

// WithClock injects a custom xclock clock.
func WithClock(c xclock.Clock) Option {
	return func(b *xdispatch.Builder) { b.WithClock(c) }
}

func WithApplicationName(name string) Option {
	return func(b *xdispatch.Builder) { b.WithApplicationName(name) }
}

func WithWorkerCount(n int) Option {
	return func(b *xdispatch.Builder) { b.WithWorkerCount(n) }
}

// WithMiddleware adds handler middlewares.
func WithMiddleware(mw ...xdispatch.Middleware) Option {
	return func(b *xdispatch.Builder) { b.WithMiddleware(mw...) }
}

// WithObserver attaches further observers next to the sink.
func WithObserver(obs ...xdispatch.Observer) Option {
	return func(b *xdispatch.Builder) { b.WithObserver(obs...) }
}

// Use builds a Dispatcher whose notifications are exported to Redis, sets it as the default
// Dispatcher and returns it with the sink. Closing the dispatcher does not close the sink.
//
// It fails fast by panicking if Redis is unreachable at startup.
func Use(cfg Config, opts ...Option) (*xdispatch.Dispatcher, *Sink) {
	sink, err := NewSink(cfg)
	if err != nil {
		panic(fmt.Errorf("redisstream.Use: %w", err))
	}

	b := xdispatch.NewBuilder()
	for _, o := range opts {
		if o != nil {
			o(b)
		}
	}
	b.WithObserver(sink)

	d, err := b.Build()
	if err != nil {
		_ = sink.Close()
		panic(fmt.Errorf("redisstream.Use: %w", err))
	}

	// Install as process-wide default (replaces any existing default).
	xdispatch.SetDefault(d)
	return d, sink
}
