package xdispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	baseType    = NewType("base", nil)
	derivedType = NewType("derived", baseType)
	siblingType = NewType("sibling", baseType)
	leafType    = NewType("leaf", derivedType)
)

// recorder collects handler and run calls in invocation order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

type testEvent struct {
	Base
	typ    *Type
	rec    *recorder
	runErr error
	panics bool
	runs   atomic.Int32
	done   chan struct{}
	once   sync.Once
}

func newEvent(typ *Type, cancelable bool, rec *recorder) *testEvent {
	return &testEvent{Base: NewBase(cancelable), typ: typ, rec: rec, done: make(chan struct{})}
}

func (e *testEvent) Type() *Type { return e.typ }

func (e *testEvent) Run(context.Context) error {
	defer e.once.Do(func() { close(e.done) })
	e.runs.Add(1)
	if e.rec != nil {
		e.rec.add("run:" + e.typ.Name())
	}
	if e.panics {
		panic("run exploded")
	}
	return e.runErr
}

// otherEvent never matches handlers written for testEvent.
type otherEvent struct {
	Base
}

func (*otherEvent) Type() *Type               { return baseType }
func (*otherEvent) Run(context.Context) error { return nil }

func newTestDispatcher(t *testing.T, workers int, obs ...Observer) *Dispatcher {
	t.Helper()
	d, closeFn, err := New(func(b *Builder) {
		b.WithApplicationName("test").
			WithWorkerCount(workers).
			WithSyncObservers().
			WithObserver(obs...)
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })
	return d
}

func waitRun(t *testing.T, e *testEvent) {
	t.Helper()
	select {
	case <-e.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("run of %s event not observed", e.typ.Name())
	}
}
