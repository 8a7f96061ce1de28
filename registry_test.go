package xdispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pointerListener struct {
	bindings []Binding
	collects int
}

func (l *pointerListener) Bindings() []Binding {
	l.collects++
	return l.bindings
}

func TestRegistry_RegisterOnce(t *testing.T) {
	r := newHandlerRegistry()
	l := &pointerListener{bindings: []Binding{On(baseType, func(*testEvent) {})}}

	added, skipped, err := r.register(l, nil)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Empty(t, skipped)

	added, _, err = r.register(l, nil)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, l.collects)

	listeners, bindings := r.counts()
	assert.Equal(t, 1, listeners)
	assert.Equal(t, 1, bindings)
	assert.True(t, r.contains(l))
}

func TestRegistry_SkipsUninvokable(t *testing.T) {
	r := newHandlerRegistry()
	noType := Binding{Name: "no type", Handler: func(context.Context, Event, *Dispatcher) error { return nil }}
	noHandler := On[*testEvent](baseType, nil)
	ok := On(derivedType, func(*testEvent) {})

	added, skipped, err := r.register(NewListener(noType, noHandler, ok), nil)
	require.NoError(t, err)
	assert.True(t, added)
	require.Len(t, skipped, 2)
	assert.Equal(t, "no type", skipped[0].Name)

	_, bindings := r.counts()
	assert.Equal(t, 1, bindings)
	assert.Len(t, r.lookup(derivedType), 1)
}

func TestRegistry_LookupExactTypeOnly(t *testing.T) {
	r := newHandlerRegistry()
	l := NewListener(On(baseType, func(*testEvent) {}))
	_, _, err := r.register(l, nil)
	require.NoError(t, err)

	assert.Len(t, r.lookup(baseType), 1)
	assert.Nil(t, r.lookup(derivedType))
	assert.Nil(t, r.lookup(nil))
}

func TestRegistry_LookupSnapshot(t *testing.T) {
	r := newHandlerRegistry()
	first := NewListener(On(baseType, func(*testEvent) {}))
	_, _, err := r.register(first, nil)
	require.NoError(t, err)

	snap := r.lookup(baseType)
	_, _, err = r.register(NewListener(On(baseType, func(*testEvent) {})), nil)
	require.NoError(t, err)

	assert.Len(t, snap, 1)
	assert.Len(t, r.lookup(baseType), 2)
}

func TestRegistry_BindingsPerListenerKeepOrder(t *testing.T) {
	r := newHandlerRegistry()
	l := NewListener(
		On(baseType, func(*testEvent) {}).Named("first"),
		On(baseType, func(*testEvent) {}).Named("second"),
	)
	_, _, err := r.register(l, nil)
	require.NoError(t, err)

	bs := r.lookup(baseType)[l]
	require.Len(t, bs, 2)
	assert.Equal(t, "first", bs[0].Name)
	assert.Equal(t, "second", bs[1].Name)
}

func TestRegistry_WrapApplied(t *testing.T) {
	r := newHandlerRegistry()
	wrapped := 0
	wrap := func(h Handler) Handler {
		wrapped++
		return h
	}
	_, _, err := r.register(NewListener(
		On(baseType, func(*testEvent) {}),
		Binding{Type: baseType},
	), wrap)
	require.NoError(t, err)
	assert.Equal(t, 1, wrapped)
}

func TestRegistry_RejectsNonComparable(t *testing.T) {
	r := newHandlerRegistry()
	_, _, err := r.register(funcListener(func() []Binding { return nil }), nil)
	assert.ErrorIs(t, err, ErrInvalidListener)
	assert.False(t, r.contains(funcListener(nil)))
	assert.False(t, r.contains(nil))
}
