package xdispatch

import (
	"context"
	"sync/atomic"
)

// Event is a unit of dispatched work. Concrete events embed Base (which supplies the
// cancellation state machine) and implement Type and Run:
//
//	type OrderCreated struct {
//	    xdispatch.Base
//	    OrderID string
//	}
//
//	func (*OrderCreated) Type() *xdispatch.Type { return OrderCreatedType }
//	func (e *OrderCreated) Run(ctx context.Context) error { return persist(ctx, e.OrderID) }
//
// An Event is consumed by at most one Run and must not be dispatched again afterwards.
type Event interface {
	// Type returns the declared type used for handler matching.
	Type() *Type
	// Run is the terminal action, invoked after propagation unless the event was canceled.
	// The returned error is recorded for observability only; it never triggers a retry.
	Run(ctx context.Context) error

	Cancel() bool
	IsCanceled() bool
	IsCancelable() bool
	ID() string

	base() *Base
}

// Base carries the cancellation state and delivery ID of an event. The zero value is a
// non-cancelable event; use NewBase(true) for a cancelable one.
type Base struct {
	cancelable bool
	canceled   uint32
	id         atomic.Value // string, stamped once on first dispatch
}

// NewBase returns the embeddable state for an event. cancelable is fixed for the event's lifetime.
func NewBase(cancelable bool) Base {
	return Base{cancelable: cancelable}
}

// Cancel records a cancellation attempt and reports whether the event is now canceled.
// On a non-cancelable event the attempt is recorded but IsCanceled stays false.
func (b *Base) Cancel() bool {
	atomic.StoreUint32(&b.canceled, 1)
	return b.IsCanceled()
}

func (b *Base) IsCanceled() bool {
	return b.cancelable && atomic.LoadUint32(&b.canceled) == 1
}

func (b *Base) IsCancelable() bool { return b.cancelable }

// ID returns the delivery ID assigned when the event was first dispatched, or "" before that.
func (b *Base) ID() string {
	if v, ok := b.id.Load().(string); ok {
		return v
	}
	return ""
}

func (b *Base) base() *Base { return b }

// stampID assigns id unless the event already carries one.
func (b *Base) stampID(id string) string {
	b.id.CompareAndSwap(nil, id)
	return b.ID()
}

// validEvent rejects nil interfaces, typed nil pointers and events without a Type.
func validEvent(e Event) (ok bool) {
	if e == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return e.base() != nil && e.Type() != nil
}
