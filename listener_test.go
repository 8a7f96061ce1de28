package xdispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_Name(t *testing.T) {
	b := On(derivedType, func(*testEvent) {})
	assert.Equal(t, "derived(*xdispatch.testEvent)", b.Name)
	assert.Equal(t, "custom", b.Named("custom").Name)
	assert.Equal(t, "derived(*xdispatch.testEvent)", b.Name)
}

func TestHandle_InterfaceParameter(t *testing.T) {
	var got Event
	b := On(baseType, func(e Event) { got = e })
	assert.Equal(t, "base(xdispatch.Event)", b.Name)

	e := newEvent(derivedType, false, nil)
	require.NoError(t, b.Handler(context.Background(), e, nil))
	assert.Same(t, e, got)
}

func TestOnDispatch_PassesDispatcher(t *testing.T) {
	d := newTestDispatcher(t, 1)

	var got *Dispatcher
	b := OnDispatch(baseType, func(_ *testEvent, d *Dispatcher) { got = d })
	require.NoError(t, b.Handler(context.Background(), newEvent(baseType, false, nil), d))
	assert.Same(t, d, got)
}

func TestHandle_Mismatch(t *testing.T) {
	b := On(baseType, func(*otherEvent) {})
	err := b.Handler(context.Background(), newEvent(baseType, false, nil), nil)
	assert.ErrorIs(t, err, ErrHandlerTypeMismatch)
}

func TestNilHandlerNotInvokable(t *testing.T) {
	assert.False(t, On[*testEvent](baseType, nil).invokable())
	assert.False(t, OnDispatch[*testEvent](baseType, nil).invokable())
	assert.False(t, Handle[*testEvent](baseType, nil).invokable())
	assert.False(t, On(nil, func(*testEvent) {}).invokable())
	assert.True(t, On(baseType, func(*testEvent) {}).invokable())
}

func TestNewListener_DistinctIdentity(t *testing.T) {
	a := NewListener()
	b := NewListener()
	assert.True(t, a != b)
}
