package xdispatch

// Type is a statically declared event type tag. Every Type has an optional parent; a nil parent
// means the type derives directly from the abstract event base, which is never a Type value and
// therefore never a registration key.
//
// Declare types once at package level:
//
//	var (
//	    OrderEvent   = xdispatch.NewType("order", nil)
//	    OrderCreated = xdispatch.NewType("order.created", OrderEvent)
//	)
type Type struct {
	name     string
	parent   *Type
	ancestry []*Type
}

// NewType declares a type with the given parent. The ancestry chain is computed here so that
// propagation is a plain ordered walk.
func NewType(name string, parent *Type) *Type {
	t := &Type{name: name, parent: parent}
	t.ancestry = make([]*Type, 0, 1+parent.depth())
	t.ancestry = append(t.ancestry, t)
	if parent != nil {
		t.ancestry = append(t.ancestry, parent.ancestry...)
	}
	return t
}

func (t *Type) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

func (t *Type) Parent() *Type {
	if t == nil {
		return nil
	}
	return t.parent
}

// Ancestry returns the type followed by its ancestors, most specific first.
func (t *Type) Ancestry() []*Type {
	if t == nil {
		return nil
	}
	out := make([]*Type, len(t.ancestry))
	copy(out, t.ancestry)
	return out
}

// Is reports whether t is other or one of its descendants.
func (t *Type) Is(other *Type) bool {
	if t == nil || other == nil {
		return false
	}
	for _, a := range t.ancestry {
		if a == other {
			return true
		}
	}
	return false
}

func (t *Type) String() string { return t.Name() }

func (t *Type) depth() int {
	if t == nil {
		return 0
	}
	return len(t.ancestry)
}
