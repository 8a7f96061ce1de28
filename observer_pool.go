package xdispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultObserverDrainTimeout bounds ObserverPool.Close when the caller's context has no deadline.
const DefaultObserverDrainTimeout = 5 * time.Second

// ObserverPool fans notifications out to observers on a few background goroutines, so workers
// and producers never wait on an observer. A notification that finds the buffer full, or arrives
// after the pool stopped accepting, is dropped and counted.
type ObserverPool struct {
	// mu orders Notify against shutdown: once closed is set the buffer channel is closed and
	// nothing is sent to it again.
	mu     sync.RWMutex
	buffer chan *Notification
	closed bool

	workers   int
	drained   chan struct{}
	unwatch   func() bool
	closeOnce atomic.Bool

	dropped   atomic.Uint64
	processed atomic.Uint64
}

// NewObserverPool starts workers goroutines (default 2) over a buffer of bufferSize
// notifications (default 1024). Canceling ctx stops intake, like Close without the wait.
func NewObserverPool(ctx context.Context, workers, bufferSize int) *ObserverPool {
	if workers < 1 {
		workers = 2
	}
	if bufferSize < 1 {
		bufferSize = 1024
	}

	op := &ObserverPool{
		buffer:  make(chan *Notification, bufferSize),
		workers: workers,
		drained: make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			op.drain()
		}()
	}
	go func() {
		wg.Wait()
		close(op.drained)
	}()

	op.unwatch = context.AfterFunc(ctx, func() { op.stopIntake() })
	return op
}

// Notify hands n to the pool without blocking.
func (op *ObserverPool) Notify(n Notification, observers []Observer) {
	if len(observers) == 0 {
		return
	}
	n.observers = append([]Observer(nil), observers...)

	op.mu.RLock()
	defer op.mu.RUnlock()
	if op.closed {
		op.dropped.Add(1)
		return
	}
	select {
	case op.buffer <- &n:
	default:
		op.dropped.Add(1)
	}
}

// drain delivers buffered notifications until the buffer is closed and empty.
func (op *ObserverPool) drain() {
	for n := range op.buffer {
		op.deliver(n)
		op.processed.Add(1)
	}
}

// deliver calls every observer of n. A panicking observer does not stop the others.
func (op *ObserverPool) deliver(n *Notification) {
	for _, obs := range n.observers {
		if obs == nil {
			continue
		}
		func() {
			defer func() { _ = recover() }()
			obs.OnNotify(*n)
		}()
	}
}

func (op *ObserverPool) stopIntake() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.closed {
		return false
	}
	op.closed = true
	close(op.buffer)
	return true
}

// Close stops intake and waits for buffered notifications to be delivered, bounded by ctx
// (or DefaultObserverDrainTimeout when ctx has no deadline). Only the first call waits.
func (op *ObserverPool) Close(ctx context.Context) error {
	if op.closeOnce.Swap(true) {
		return nil
	}
	op.unwatch()
	op.stopIntake()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultObserverDrainTimeout)
		defer cancel()
	}
	select {
	case <-op.drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %d still buffered: %v", ErrObserverPoolShutdownTimeout, len(op.buffer), ctx.Err())
	}
}

// Stats returns current pool statistics.
func (op *ObserverPool) Stats() PoolStats {
	return PoolStats{
		Dropped:      op.dropped.Load(),
		Processed:    op.processed.Load(),
		ActiveEvents: len(op.buffer),
		Workers:      op.workers,
		BufferSize:   cap(op.buffer),
	}
}
