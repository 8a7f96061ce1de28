package xdispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrDispatcherStopped is returned when an event is dispatched after Shutdown.
	ErrDispatcherStopped = errors.New("xdispatch: dispatcher is not running")
	// ErrNilDispatcher is returned when a nil *Dispatcher is used.
	ErrNilDispatcher = errors.New("xdispatch: nil dispatcher")
	// ErrInvalidEvent is returned for nil events or events without a declared Type.
	ErrInvalidEvent = errors.New("xdispatch: invalid event")
	// ErrInvalidListener is returned for nil or non-comparable listeners.
	ErrInvalidListener = errors.New("xdispatch: invalid listener")
	// ErrHandlerTypeMismatch is returned when a binding receives an event its handler cannot accept.
	ErrHandlerTypeMismatch = errors.New("xdispatch: handler cannot accept event")
	// ErrHandlerPanic wraps a panic recovered from a handler.
	ErrHandlerPanic = errors.New("xdispatch: handler panic")
	// ErrRunPanic wraps a panic recovered from Event.Run.
	ErrRunPanic = errors.New("xdispatch: run panic")

	ErrObserverPoolShutdownTimeout = errors.New("xdispatch: observer pool shutdown timeout")
	ErrShutdownTimeout             = errors.New("xdispatch: workers did not stop before deadline")
)

// ErrUnknownCodec is returned by NewCodec for names that were never registered.
type ErrUnknownCodec struct{ Name string }

func (e ErrUnknownCodec) Error() string { return fmt.Sprintf("codec %q not registered", e.Name) }
