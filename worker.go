package xdispatch

import (
	"context"
	"fmt"
	"runtime/pprof"

	"github.com/trickstertwo/xlog"
)

// worker pulls events from its dispatcher's queue and delivers them until the dispatcher stops.
type worker struct {
	d      *Dispatcher
	name   string
	logger *xlog.Logger
}

func newWorker(d *Dispatcher, index int) *worker {
	name := WorkerName(d.name, index)
	return &worker{
		d:      d,
		name:   name,
		logger: d.logger.With(xlog.Str("worker", name)),
	}
}

// WorkerName returns the diagnostic name of the index-th worker of an application.
func WorkerName(application string, index int) string {
	return fmt.Sprintf("%s-worker-%d", application, index)
}

// start runs the loop under a profiler label carrying the worker name, so goroutine dumps and
// CPU profiles can be correlated with logs.
func (w *worker) start() {
	ctx := injectWorker(injectLogger(w.d.baseCtx, w.logger), w.name)
	pprof.Do(ctx, pprof.Labels("worker", w.name), w.loop)
}

func (w *worker) loop(ctx context.Context) {
	w.logger.Debug().Msg("xdispatch: worker started")
	defer func() { w.logger.Debug().Msg("xdispatch: worker stopped") }()

	for {
		e, ok := w.d.next()
		if !ok {
			return
		}
		// Run errors are recorded by deliver; a worker never retries or requeues.
		_ = w.d.deliver(ctx, e, w.logger, w.name, false)
	}
}
