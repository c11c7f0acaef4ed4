package vm

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

// NativeFunc implements a native method. args holds the receiver (for
// instance methods) followed by the parameters, one entry per parameter
// regardless of category. The result is ignored for void methods.
//
// A native may call t.Throw or push frames; the interpreter then leaves the
// native frame in place instead of returning from it.
type NativeFunc func(t *Thread, args []Value) (Value, error)

// Natives maps class, method name and descriptor to implementations.
type Natives struct {
	funcs cmap.ConcurrentMap[string, NativeFunc]
}

// NewNatives returns an empty registry.
func NewNatives() *Natives {
	return &Natives{funcs: cmap.New[NativeFunc]()}
}

func nativeKey(class, name, desc string) string {
	return class + "." + name + ":" + desc
}

// Register binds fn, replacing any previous binding.
func (n *Natives) Register(class, name, desc string, fn NativeFunc) {
	n.funcs.Set(nativeKey(class, name, desc), fn)
}

// Lookup returns the implementation bound for a method, if any.
func (n *Natives) Lookup(class, name, desc string) (NativeFunc, bool) {
	return n.funcs.Get(nativeKey(class, name, desc))
}

// Has reports whether a binding exists.
func (n *Natives) Has(class, name, desc string) bool {
	return n.funcs.Has(nativeKey(class, name, desc))
}

// Count returns the number of bindings.
func (n *Natives) Count() int {
	return n.funcs.Count()
}

// Keys returns every bound "class.name:desc" key.
func (n *Natives) Keys() []string {
	return n.funcs.Keys()
}
