package xdispatch

import (
	"context"

	"github.com/enriquebris/goconcurrentqueue"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"golang.org/x/time/rate"
)

// Builder constructs Dispatcher instances (Builder pattern).
type Builder struct {
	cfg Config

	middlewares []Middleware
	observers   []Observer
	logger      *xlog.Logger
	clock       xclock.Clock

	poolWorkers   int
	poolBuffer    int
	syncObservers bool

	logNotifications bool
	logLimiter       *rate.Limiter
}

// NewBuilder returns a new builder with sensible defaults: the default application name and a
// worker pool sized for the host.
func NewBuilder() *Builder {
	return &Builder{
		cfg:         Config{ApplicationName: DefaultApplicationName},
		poolWorkers: 2,
		poolBuffer:  1024,
	}
}

// WithConfig replaces the application name and worker count.
func (bb *Builder) WithConfig(cfg Config) *Builder {
	bb.cfg = cfg
	return bb
}

// WithConfigMap is WithConfig for generic config blobs (see ConfigFromMap).
func (bb *Builder) WithConfigMap(m map[string]any) *Builder {
	bb.cfg = ConfigFromMap(m)
	return bb
}

func (bb *Builder) WithApplicationName(name string) *Builder {
	bb.cfg.ApplicationName = name
	return bb
}

// WithWorkerCount sets the pool size. Values outside [MinWorkers, MaxWorkers] select
// HostParallelism.
func (bb *Builder) WithWorkerCount(n int) *Builder {
	bb.cfg.WorkerCount = n
	return bb
}

// WithMiddleware adds handler middlewares, applied to every binding at registration time.
func (bb *Builder) WithMiddleware(mw ...Middleware) *Builder {
	if len(mw) == 0 {
		return bb
	}
	bb.middlewares = append(bb.middlewares, mw...)
	return bb
}

func (bb *Builder) WithObserver(obs ...Observer) *Builder {
	for _, o := range obs {
		if o != nil {
			bb.observers = append(bb.observers, o)
		}
	}
	return bb
}

func (bb *Builder) WithLogger(l *xlog.Logger) *Builder {
	bb.logger = l
	return bb
}

func (bb *Builder) WithClock(c xclock.Clock) *Builder {
	bb.clock = c
	return bb
}

// WithObserverPool sizes the asynchronous observer pool (default: 2 workers, 1024 buffer).
func (bb *Builder) WithObserverPool(workers, bufferSize int) *Builder {
	bb.poolWorkers = workers
	bb.poolBuffer = bufferSize
	bb.syncObservers = false
	return bb
}

// WithSyncObservers notifies observers on the dispatching goroutine instead of a pool.
// Deterministic ordering makes this useful in tests.
func (bb *Builder) WithSyncObservers() *Builder {
	bb.syncObservers = true
	return bb
}

// WithNotificationLogging attaches a LoggingObserver using the dispatcher logger. limiter may be
// nil to log every notification.
func (bb *Builder) WithNotificationLogging(limiter *rate.Limiter) *Builder {
	bb.logNotifications = true
	bb.logLimiter = limiter
	return bb
}

// Build starts the workers and returns the running dispatcher.
func (bb *Builder) Build() (*Dispatcher, error) {
	cfg := bb.cfg.Normalize()

	clk := bb.clock
	if clk == nil {
		clk = xclock.Default()
	}
	lg := bb.logger
	if lg == nil {
		// Default to the process-wide xlog logger; Adapter pattern to platform logging.
		lg = xlog.Default()
	}
	lg = lg.With(xlog.Str("app", cfg.ApplicationName))

	d := &Dispatcher{
		name:        cfg.ApplicationName,
		workerCount: cfg.WorkerCount,
		registry:    newHandlerRegistry(),
		queue:       goconcurrentqueue.NewFIFO(),
		clock:       clk,
		logger:      lg,
		middlewares: bb.middlewares,
		metrics:     &dispatchMetrics{},
	}
	if !bb.syncObservers {
		d.observerPool = NewObserverPool(context.Background(), bb.poolWorkers, bb.poolBuffer)
	}
	if bb.logNotifications {
		d.AddObserver(LoggingObserver{Logger: lg, Limiter: bb.logLimiter})
	}
	for _, o := range bb.observers {
		d.AddObserver(o)
	}

	d.start()
	return d, nil
}

// New constructs a Dispatcher via Builder and returns a close func for convenience.
func New(init func(b *Builder)) (*Dispatcher, func() error, error) {
	b := NewBuilder()
	if init != nil {
		init(b)
	}
	d, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error { return d.Close(context.Background()) }
	return d, closeFn, nil
}

// NewDispatcher starts a dispatcher for cfg with default logger, clock and observer pool.
func NewDispatcher(cfg Config) *Dispatcher {
	d, _ := NewBuilder().WithConfig(cfg).Build()
	return d
}
