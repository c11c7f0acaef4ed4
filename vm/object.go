package vm

import "github.com/chazu/jolt/pkg/descriptor"

// ---------------------------------------------------------------------------
// Object: instance with per-declaring-class field storage
// ---------------------------------------------------------------------------

// Object is an instance of a non-array class.
//
// Field storage is partitioned by declaring class: an instance of C extends B
// extends A has one bucket each for A, B and C. The same field name declared
// in two classes of the chain therefore has two independent slots, and every
// access names the bucket through the declaring class of the resolved field.
type Object struct {
	class   *Class
	buckets map[string]map[string]Value
	hash    int32

	State InitState

	// Native holds host-side state for bootstrap classes: the *Class a
	// java/lang/Class mirror stands for, or a Throwable's recorded backtrace.
	Native any
}

func newObject(c *Class, hash int32) *Object {
	o := &Object{
		class:   c,
		buckets: make(map[string]map[string]Value),
		hash:    hash,
	}
	for _, k := range c.Chain() {
		bucket := make(map[string]Value, len(k.fieldOrder))
		for _, f := range k.fieldOrder {
			if !f.IsStatic() {
				bucket[f.Name] = DefaultValue(f.Type)
			}
		}
		o.buckets[k.Name] = bucket
	}
	return o
}

// Class returns the runtime class.
func (o *Object) Class() *Class { return o.class }

// HashCode is the identity hash assigned at allocation.
func (o *Object) HashCode() int32 { return o.hash }

// GetField reads the field name from the bucket of the declaring class.
func (o *Object) GetField(declaring, name string) (Value, bool) {
	bucket, ok := o.buckets[declaring]
	if !ok {
		return Value{}, false
	}
	v, ok := bucket[name]
	return v, ok
}

// SetField writes the field name in the bucket of the declaring class. It reports
// false if the object has no such bucket or field.
func (o *Object) SetField(declaring, name string, v Value) bool {
	bucket, ok := o.buckets[declaring]
	if !ok {
		return false
	}
	if _, ok := bucket[name]; !ok {
		return false
	}
	bucket[name] = v
	return true
}

// ---------------------------------------------------------------------------
// Array
// ---------------------------------------------------------------------------

// Array is a fixed-length array. Elem is the component type; Data holds one
// Value per element.
type Array struct {
	class *Class
	Elem  descriptor.Type
	Data  []Value
	hash  int32
}

func newArray(c *Class, length int, hash int32) *Array {
	a := &Array{
		class: c,
		Elem:  *c.ArrayType.Elem,
		Data:  make([]Value, length),
		hash:  hash,
	}
	def := DefaultValue(a.Elem)
	for i := range a.Data {
		a.Data[i] = def
	}
	return a
}

// Class returns the array class.
func (a *Array) Class() *Class { return a.class }

// Len returns the fixed length.
func (a *Array) Len() int { return len(a.Data) }

// HashCode is the identity hash assigned at allocation.
func (a *Array) HashCode() int32 { return a.hash }

// InBounds reports whether i is a valid index.
func (a *Array) InBounds(i int32) bool {
	return i >= 0 && int(i) < len(a.Data)
}
