package xdispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/enriquebris/goconcurrentqueue"
	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

var _ API = (*Dispatcher)(nil)
var _ HealthChecker = (*Dispatcher)(nil)

// Dispatcher owns a handler registry, an unbounded FIFO queue and a fixed pool of workers.
// It is the single entry point for both asynchronous (Dispatch) and synchronous
// (DispatchImmediately) delivery.
type Dispatcher struct {
	name        string
	workerCount int
	registry    *handlerRegistry
	queue       *goconcurrentqueue.FIFO
	clock       xclock.Clock
	logger      *xlog.Logger
	middlewares []Middleware

	// stateMu orders enqueue against Shutdown: once Shutdown holds the write lock and clears
	// running, no enqueue can succeed.
	stateMu sync.RWMutex
	running atomic.Bool
	stopCtx context.Context
	stop    context.CancelFunc
	baseCtx context.Context
	workers sync.WaitGroup

	observerPool *ObserverPool
	observersMu  sync.RWMutex
	observers    []Observer

	metrics   *dispatchMetrics
	closeOnce sync.Once
}

// dispatchMetrics uses lock-free atomics.
type dispatchMetrics struct {
	dispatched    atomic.Uint64
	immediate     atomic.Uint64
	rejected      atomic.Uint64
	propagated    atomic.Uint64
	handlerCalls  atomic.Uint64
	handlerErrors atomic.Uint64
	runs          atomic.Uint64
	runFailures   atomic.Uint64
	canceled      atomic.Uint64
	discarded     atomic.Uint64
	runNs         atomic.Int64
}

// start launches the worker pool. Called once by the builder.
func (d *Dispatcher) start() {
	d.stopCtx, d.stop = context.WithCancel(context.Background())
	d.baseCtx = InjectAll(context.Background(), d, d.logger, d.clock)
	d.running.Store(true)
	for i := 0; i < d.workerCount; i++ {
		w := newWorker(d, i)
		d.workers.Add(1)
		go func() {
			defer d.workers.Done()
			w.start()
		}()
	}
	d.logger.Debug().
		Str("workers", fmt.Sprint(d.workerCount)).
		Msg("xdispatch: dispatcher started")
}

// Name returns the application name used for worker names.
func (d *Dispatcher) Name() string { return d.name }

// WorkerCount returns the size of the worker pool.
func (d *Dispatcher) WorkerCount() int { return d.workerCount }

// IsRunning reports whether the dispatcher accepts asynchronous dispatches.
func (d *Dispatcher) IsRunning() bool { return d.running.Load() }

// Listeners returns the number of registered listeners.
func (d *Dispatcher) Listeners() int {
	n, _ := d.registry.counts()
	return n
}

// RegisterListener collects l's bindings into the registry. Registering the same listener
// again is a no-op. Bindings without a type or handler are skipped, not rejected.
func (d *Dispatcher) RegisterListener(l Listener) error {
	if d == nil {
		return ErrNilDispatcher
	}
	added, skipped, err := d.registry.register(l, d.wrapHandler)
	if err != nil {
		return err
	}
	listener := listenerName(l)
	for _, b := range skipped {
		d.logger.Debug().
			Str("listener", listener).
			Str("handler", b.Name).
			Msg("xdispatch: skipped binding without type or handler")
	}
	if added {
		d.logger.Debug().Str("listener", listener).Msg("xdispatch: listener registered")
	}
	return nil
}

// HasListener reports whether l has been registered.
func (d *Dispatcher) HasListener(l Listener) bool {
	return d.registry.contains(l)
}

// wrapHandler decorates a handler at collection time. Recovery is always innermost.
func (d *Dispatcher) wrapHandler(h Handler) Handler {
	return Chain(RecoveryMiddleware()(h), d.middlewares...)
}

// Dispatch queues e for asynchronous delivery and returns immediately.
// It returns ErrDispatcherStopped once the dispatcher has been shut down.
func (d *Dispatcher) Dispatch(e Event) error {
	if d == nil {
		return ErrNilDispatcher
	}
	if !validEvent(e) {
		return ErrInvalidEvent
	}
	id := e.base().stampID(uuid.NewString())
	if !d.enqueue(e) {
		d.metrics.rejected.Add(1)
		d.notify(Notification{Type: Rejected, EventID: id, EventType: e.Type().Name(), Err: ErrDispatcherStopped})
		return ErrDispatcherStopped
	}
	d.notify(Notification{Type: Enqueued, EventID: id, EventType: e.Type().Name()})
	return nil
}

// DispatchImmediately propagates e and then runs it unless it was canceled, all on the calling
// goroutine. It returns after Run completes or is skipped; the returned error is Run's error.
// Immediate delivery does not depend on the running state.
//
// Chained immediate dispatches from inside a worker hold that worker for their whole duration.
func (d *Dispatcher) DispatchImmediately(ctx context.Context, e Event) error {
	if d == nil {
		return ErrNilDispatcher
	}
	if !validEvent(e) {
		return ErrInvalidEvent
	}
	if ctx == nil {
		ctx = context.Background()
	}
	e.base().stampID(uuid.NewString())
	d.metrics.immediate.Add(1)
	ctx = InjectAll(ctx, d, d.logger, d.clock)
	return d.deliver(ctx, e, d.logger, "", true)
}

// enqueue appends e and wakes one waiting worker, iff the dispatcher is running.
func (d *Dispatcher) enqueue(e Event) bool {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	if !d.running.Load() {
		return false
	}
	if err := d.queue.Enqueue(e); err != nil {
		d.logger.Warn().Err(err).Msg("xdispatch: enqueue failed")
		return false
	}
	d.metrics.dispatched.Add(1)
	return true
}

// next blocks until an event is available or the dispatcher stops. The boolean is false once
// the dispatcher has stopped; events dequeued after the stop are discarded.
func (d *Dispatcher) next() (Event, bool) {
	for d.running.Load() {
		v, err := d.queue.DequeueOrWaitForNextElementContext(d.stopCtx)
		if !d.running.Load() {
			if err == nil && v != nil {
				d.discard(v)
			}
			return nil, false
		}
		if err != nil {
			d.logger.Warn().Err(err).Msg("xdispatch: dequeue failed")
			continue
		}
		e, ok := v.(Event)
		if !ok {
			continue
		}
		return e, true
	}
	return nil, false
}

// deliver performs full delivery: propagate, then Run unless canceled.
func (d *Dispatcher) deliver(ctx context.Context, e Event, lg *xlog.Logger, worker string, immediate bool) error {
	d.propagate(ctx, e, lg, worker, immediate)

	id, typ := e.ID(), e.Type().Name()
	if e.IsCanceled() {
		d.metrics.canceled.Add(1)
		d.notify(Notification{Type: RunSkipped, Worker: worker, EventID: id, EventType: typ, Immediate: immediate})
		return nil
	}

	start := d.clock.Now()
	err := runEvent(ctx, e)
	duration := d.clock.Since(start)

	d.metrics.runs.Add(1)
	d.recordRunTime(duration.Nanoseconds())
	if err != nil {
		d.metrics.runFailures.Add(1)
		lg.Warn().Err(err).Str("event_id", id).Str("event_type", typ).Msg("xdispatch: run failed")
		d.notify(Notification{Type: RunFailed, Worker: worker, EventID: id, EventType: typ, Immediate: immediate, Duration: duration, Err: err})
		return err
	}
	d.notify(Notification{Type: RunDone, Worker: worker, EventID: id, EventType: typ, Immediate: immediate, Duration: duration})
	return nil
}

// propagate invokes every handler registered for e's type and each of its ancestors, most
// specific type first. Order among handlers registered at the same type is unspecified.
// A failing handler never prevents the remaining ones from running.
func (d *Dispatcher) propagate(ctx context.Context, e Event, lg *xlog.Logger, worker string, immediate bool) {
	d.metrics.propagated.Add(1)
	d.notify(Notification{Type: PropagateStart, Worker: worker, EventID: e.ID(), EventType: e.Type().Name(), Immediate: immediate})

	for _, t := range e.Type().ancestry {
		for l, bindings := range d.registry.lookup(t) {
			for _, b := range bindings {
				d.invoke(ctx, e, l, b, lg, worker, immediate)
			}
		}
	}
}

func (d *Dispatcher) invoke(ctx context.Context, e Event, l Listener, b Binding, lg *xlog.Logger, worker string, immediate bool) {
	d.metrics.handlerCalls.Add(1)

	err := func() (err error) {
		// Middlewares sit outside the recovery wrapper; guard them too.
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			}
		}()
		return b.Handler(ctx, e, d)
	}()
	if err == nil {
		return
	}

	d.metrics.handlerErrors.Add(1)
	listener := listenerName(l)
	lg.Warn().
		Err(err).
		Str("event_id", e.ID()).
		Str("event_type", e.Type().Name()).
		Str("listener", listener).
		Str("handler", b.Name).
		Msg("xdispatch: handler failed")
	d.notify(Notification{
		Type:      HandlerFailed,
		Worker:    worker,
		EventID:   e.ID(),
		EventType: e.Type().Name(),
		Listener:  listener,
		Handler:   b.Name,
		Immediate: immediate,
		Err:       err,
	})
}

func runEvent(ctx context.Context, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRunPanic, r)
		}
	}()
	return e.Run(ctx)
}

// Shutdown stops accepting events and wakes every blocked worker so it can exit. Events still
// queued are discarded, not drained. Only the first call returns true.
func (d *Dispatcher) Shutdown() bool {
	d.stateMu.Lock()
	if !d.running.Load() {
		d.stateMu.Unlock()
		return false
	}
	d.running.Store(false)
	d.stop()
	d.stateMu.Unlock()

	discarded := 0
	for {
		v, err := d.queue.Dequeue()
		if err != nil {
			break
		}
		d.discard(v)
		discarded++
	}

	d.logger.Debug().
		Str("discarded", fmt.Sprint(discarded)).
		Msg("xdispatch: dispatcher stopped")
	d.notify(Notification{Type: Stopped})
	return true
}

func (d *Dispatcher) discard(v any) {
	d.metrics.discarded.Add(1)
	if e, ok := v.(Event); ok && e != nil {
		d.notify(Notification{Type: Discarded, EventID: e.ID(), EventType: e.Type().Name()})
	}
}

// Wait blocks until every worker has exited or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrShutdownTimeout, ctx.Err())
	}
}

// Close shuts the dispatcher down, waits for in-flight deliveries to finish and drains the
// observer pool, all bounded by ctx. Idempotent.
func (d *Dispatcher) Close(ctx context.Context) error {
	var closeErr error

	d.closeOnce.Do(func() {
		// 1. Stop accepting new work and wake workers
		d.Shutdown()

		// 2. Let in-flight deliveries finish
		if err := d.Wait(ctx); err != nil {
			d.logger.Warn().Err(err).Msg("xdispatch: workers still running")
			closeErr = errors.Join(closeErr, err)
		}

		// 3. Drain observer pool
		if d.observerPool != nil {
			if err := d.observerPool.Close(ctx); err != nil {
				d.logger.Warn().Err(err).Msg("xdispatch: observer pool shutdown timeout")
				closeErr = errors.Join(closeErr, err)
			}
		}
	})

	return closeErr
}

// Metrics returns current dispatcher metrics.
func (d *Dispatcher) Metrics() Metrics {
	listeners, bindings := d.registry.counts()
	m := Metrics{
		Dispatched:    d.metrics.dispatched.Load(),
		Immediate:     d.metrics.immediate.Load(),
		Rejected:      d.metrics.rejected.Load(),
		Propagated:    d.metrics.propagated.Load(),
		HandlerCalls:  d.metrics.handlerCalls.Load(),
		HandlerErrors: d.metrics.handlerErrors.Load(),
		Runs:          d.metrics.runs.Load(),
		RunFailures:   d.metrics.runFailures.Load(),
		Canceled:      d.metrics.canceled.Load(),
		Discarded:     d.metrics.discarded.Load(),
		Pending:       d.queue.GetLen(),
		AvgRunTimeMs:  float64(d.metrics.runNs.Load()) / 1e6,
		Workers:       d.workerCount,
		Listeners:     listeners,
		Bindings:      bindings,
	}
	if d.observerPool != nil {
		m.NotifyDropped = d.observerPool.Stats().Dropped
	}
	return m
}

// Health reports dispatcher health for liveness checks.
func (d *Dispatcher) Health(_ context.Context) HealthStatus {
	m := d.Metrics()
	if !d.running.Load() {
		return HealthStatus{
			Status:    "unhealthy",
			Metrics:   m,
			Timestamp: d.clock.Now(),
			Message:   "dispatcher is stopped",
		}
	}

	status := "healthy"
	// Degraded if more than 5% of handler calls and runs failed
	attempts := m.HandlerCalls + m.Runs
	failures := m.HandlerErrors + m.RunFailures
	if attempts > 0 && float64(failures)/float64(attempts) > 0.05 {
		status = "degraded"
	}

	return HealthStatus{
		Status:    status,
		Metrics:   m,
		Timestamp: d.clock.Now(),
	}
}

// AddObserver registers an observer (thread-safe).
func (d *Dispatcher) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	d.observersMu.Lock()
	d.observers = append(d.observers, obs)
	d.observersMu.Unlock()
}

// RemoveObserver removes an observer. Observers of non-comparable types (such as
// ObserverFunc) cannot be removed.
func (d *Dispatcher) RemoveObserver(obs Observer) {
	if obs == nil || !reflect.TypeOf(obs).Comparable() {
		return
	}
	d.observersMu.Lock()
	defer d.observersMu.Unlock()

	for i, o := range d.observers {
		if o == obs {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			break
		}
	}
}

// notify hands n to observers, asynchronously when an observer pool is configured.
func (d *Dispatcher) notify(n Notification) {
	d.observersMu.RLock()
	if len(d.observers) == 0 {
		d.observersMu.RUnlock()
		return
	}
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	d.observersMu.RUnlock()

	n.Application = d.name
	if n.At.IsZero() {
		n.At = d.clock.Now()
	}

	if d.observerPool != nil {
		d.observerPool.Notify(n, observers)
		return
	}
	for _, o := range observers {
		func() {
			defer func() { _ = recover() }()
			o.OnNotify(n)
		}()
	}
}

// recordRunTime records run time using exponential moving average.
func (d *Dispatcher) recordRunTime(ns int64) {
	const alpha = 0.2 // 20% weight to new sample
	for {
		current := d.metrics.runNs.Load()
		next := ns
		if current != 0 {
			// EMA: new = (alpha * sample) + (1-alpha) * old
			next = int64(float64(ns)*alpha + float64(current)*(1-alpha))
		}
		if d.metrics.runNs.CompareAndSwap(current, next) {
			return
		}
	}
}

func listenerName(l Listener) string {
	return fmt.Sprintf("%T", l)
}
