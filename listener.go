package xdispatch

import (
	"context"
	"fmt"
	"strings"
)

// Listener exposes the handlers it wants registered. Bindings is called once per dispatcher,
// when the listener is registered. Listeners are identified by value, so implementations
// should use pointer receivers.
type Listener interface {
	Bindings() []Binding
}

// Binding associates one event type with one handler. Build bindings with On, OnDispatch or Handle.
type Binding struct {
	Type    *Type
	Name    string
	Handler Handler
}

// On binds fn to events of type t and its descendants. E is usually the concrete event pointer
// for leaf types, or an interface implemented by every descendant for ancestor types.
func On[E Event](t *Type, fn func(E)) Binding {
	if fn == nil {
		return Binding{Type: t}
	}
	return Handle(t, func(_ context.Context, e E, _ *Dispatcher) error {
		fn(e)
		return nil
	})
}

// OnDispatch is On for handlers that also need the propagating dispatcher.
func OnDispatch[E Event](t *Type, fn func(E, *Dispatcher)) Binding {
	if fn == nil {
		return Binding{Type: t}
	}
	return Handle(t, func(_ context.Context, e E, d *Dispatcher) error {
		fn(e, d)
		return nil
	})
}

// Handle is the full handler form: it receives the delivery context and may report an error,
// which is logged and counted but never stops propagation.
func Handle[E Event](t *Type, fn func(context.Context, E, *Dispatcher) error) Binding {
	b := Binding{Type: t, Name: fmt.Sprintf("%s(%s)", t.Name(), strings.TrimPrefix(fmt.Sprintf("%T", (*E)(nil)), "*"))}
	if fn == nil {
		return b
	}
	b.Handler = func(ctx context.Context, e Event, d *Dispatcher) error {
		typed, ok := e.(E)
		if !ok {
			return fmt.Errorf("%w: %T for %s", ErrHandlerTypeMismatch, e, t.Name())
		}
		return fn(ctx, typed, d)
	}
	return b
}

// Named returns a copy of the binding with a diagnostic name used in logs and notifications.
func (b Binding) Named(name string) Binding {
	b.Name = name
	return b
}

func (b Binding) invokable() bool {
	return b.Type != nil && b.Handler != nil
}

type staticListener struct {
	bindings []Binding
}

func (l *staticListener) Bindings() []Binding { return l.bindings }

// NewListener wraps a fixed set of bindings into a Listener with its own identity.
func NewListener(bindings ...Binding) Listener {
	return &staticListener{bindings: bindings}
}
