package xdispatch

import (
	"fmt"
	"reflect"
	"sync"
)

// handlerRegistry maps an exact event type to the bindings each listener contributed for it.
// Ancestry walking is the dispatcher's job; the registry only answers exact-type lookups.
type handlerRegistry struct {
	mu        sync.RWMutex
	listeners map[Listener]struct{}
	byType    map[*Type]map[Listener][]Binding
	bindings  int
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{
		listeners: make(map[Listener]struct{}),
		byType:    make(map[*Type]map[Listener][]Binding),
	}
}

// register collects l's bindings once. Bindings that cannot be invoked are skipped and returned
// so the caller can report them. wrap, when set, decorates every accepted handler.
func (r *handlerRegistry) register(l Listener, wrap func(Handler) Handler) (added bool, skipped []Binding, err error) {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return false, nil, fmt.Errorf("%w: %T", ErrInvalidListener, l)
	}

	r.mu.RLock()
	_, seen := r.listeners[l]
	r.mu.RUnlock()
	if seen {
		return false, nil, nil
	}

	// Collect outside the lock: Bindings is user code.
	collected := l.Bindings()
	accepted := make([]Binding, 0, len(collected))
	for _, b := range collected {
		if !b.invokable() {
			skipped = append(skipped, b)
			continue
		}
		if wrap != nil {
			b.Handler = wrap(b.Handler)
		}
		accepted = append(accepted, b)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.listeners[l]; seen {
		return false, nil, nil
	}
	r.listeners[l] = struct{}{}
	for _, b := range accepted {
		perListener, ok := r.byType[b.Type]
		if !ok {
			perListener = make(map[Listener][]Binding)
			r.byType[b.Type] = perListener
		}
		perListener[l] = append(perListener[l], b)
		r.bindings++
	}
	return true, skipped, nil
}

// lookup returns a snapshot of the bindings registered for exactly t, so handlers can run
// without holding the registry lock.
func (r *handlerRegistry) lookup(t *Type) map[Listener][]Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	perListener := r.byType[t]
	if len(perListener) == 0 {
		return nil
	}
	out := make(map[Listener][]Binding, len(perListener))
	for l, bs := range perListener {
		out[l] = bs
	}
	return out
}

func (r *handlerRegistry) contains(l Listener) bool {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.listeners[l]
	return ok
}

// counts returns the number of registered listeners and accepted bindings.
func (r *handlerRegistry) counts() (listeners, bindings int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners), r.bindings
}
