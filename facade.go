package xdispatch

import (
	"context"
	"fmt"
	"sync"
)

var (
	defaultDispatcher   *Dispatcher
	defaultDispatcherMu sync.Mutex
)

// Default returns the process-wide singleton Dispatcher, building one on first use.
func Default() *Dispatcher {
	defaultDispatcherMu.Lock()
	defer defaultDispatcherMu.Unlock()

	if defaultDispatcher != nil {
		return defaultDispatcher
	}

	d, err := NewBuilder().Build()
	if err != nil {
		panic(fmt.Sprintf("xdispatch: failed to initialize default dispatcher: %v", err))
	}
	defaultDispatcher = d
	return defaultDispatcher
}

// SetDefault replaces the process-wide default Dispatcher. The previous one is not closed.
func SetDefault(d *Dispatcher) {
	if d == nil {
		panic("xdispatch: SetDefault called with nil Dispatcher")
	}
	defaultDispatcherMu.Lock()
	defaultDispatcher = d
	defaultDispatcherMu.Unlock()
}

// Dispatch is the Facade using the default dispatcher.
func Dispatch(e Event) error {
	return Default().Dispatch(e)
}

// DispatchImmediately is the Facade using the default dispatcher.
func DispatchImmediately(ctx context.Context, e Event) error {
	return Default().DispatchImmediately(ctx, e)
}

// RegisterListener is the Facade using the default dispatcher.
func RegisterListener(l Listener) error {
	return Default().RegisterListener(l)
}
