package vm

import (
	"fmt"
	"math"

	"github.com/chazu/jolt/pkg/descriptor"
)

// ---------------------------------------------------------------------------
// Value: tagged operand-stack and local-variable entry
// ---------------------------------------------------------------------------

// Kind tags a Value.
type Kind uint8

const (
	// KindTop marks an unusable slot, such as the upper half of a long or
	// double in the local variable array.
	KindTop Kind = iota
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindRef
	KindReturnAddress
)

var kindNames = [...]string{
	KindTop:           "top",
	KindInt:           "int",
	KindLong:          "long",
	KindFloat:         "float",
	KindDouble:        "double",
	KindRef:           "reference",
	KindReturnAddress: "returnAddress",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is a single JVM value. Numeric payloads live in bits; references hold
// either an object or an array. A reference with neither is null.
type Value struct {
	kind Kind
	bits uint64
	obj  *Object
	arr  *Array
}

// Null is the null reference.
var Null = Value{kind: KindRef}

// IntValue wraps an int32. Booleans, bytes, chars and shorts are carried as ints.
func IntValue(v int32) Value { return Value{kind: KindInt, bits: uint64(uint32(v))} }

// LongValue wraps an int64.
func LongValue(v int64) Value { return Value{kind: KindLong, bits: uint64(v)} }

// FloatValue wraps a float32.
func FloatValue(v float32) Value { return Value{kind: KindFloat, bits: uint64(math.Float32bits(v))} }

// DoubleValue wraps a float64.
func DoubleValue(v float64) Value { return Value{kind: KindDouble, bits: math.Float64bits(v)} }

// RefValue wraps an object reference; a nil object yields Null.
func RefValue(o *Object) Value {
	if o == nil {
		return Null
	}
	return Value{kind: KindRef, obj: o}
}

// ArrayValue wraps an array reference; a nil array yields Null.
func ArrayValue(a *Array) Value {
	if a == nil {
		return Null
	}
	return Value{kind: KindRef, arr: a}
}

// ReturnAddressValue wraps a jsr return address.
func ReturnAddressValue(pc int) Value { return Value{kind: KindReturnAddress, bits: uint64(pc)} }

// Kind returns the tag.
func (v Value) Kind() Kind { return v.kind }

// Int returns the int32 payload.
func (v Value) Int() int32 { return int32(uint32(v.bits)) }

// Long returns the int64 payload.
func (v Value) Long() int64 { return int64(v.bits) }

// Float returns the float32 payload.
func (v Value) Float() float32 { return math.Float32frombits(uint32(v.bits)) }

// Double returns the float64 payload.
func (v Value) Double() float64 { return math.Float64frombits(v.bits) }

// ReturnAddress returns the jsr return pc.
func (v Value) ReturnAddress() int { return int(v.bits) }

// Object returns the referenced object, or nil for null and arrays.
func (v Value) Object() *Object { return v.obj }

// Array returns the referenced array, or nil for null and objects.
func (v Value) Array() *Array { return v.arr }

// IsRef reports whether v is a reference (possibly null).
func (v Value) IsRef() bool { return v.kind == KindRef }

// IsNull reports whether v is the null reference.
func (v Value) IsNull() bool { return v.kind == KindRef && v.obj == nil && v.arr == nil }

// Category returns 2 for long and double, 1 otherwise.
func (v Value) Category() int {
	if v.kind == KindLong || v.kind == KindDouble {
		return 2
	}
	return 1
}

// Class returns the runtime class of a non-null reference.
func (v Value) Class() *Class {
	switch {
	case v.obj != nil:
		return v.obj.class
	case v.arr != nil:
		return v.arr.class
	}
	return nil
}

// Same reports reference identity (if_acmpeq semantics).
func (v Value) Same(o Value) bool {
	return v.obj == o.obj && v.arr == o.arr
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("int %d", v.Int())
	case KindLong:
		return fmt.Sprintf("long %d", v.Long())
	case KindFloat:
		return fmt.Sprintf("float %g", v.Float())
	case KindDouble:
		return fmt.Sprintf("double %g", v.Double())
	case KindReturnAddress:
		return fmt.Sprintf("returnAddress %d", v.ReturnAddress())
	case KindRef:
		switch {
		case v.obj != nil:
			return fmt.Sprintf("ref %s@%x", v.obj.class.Name, v.obj.hash)
		case v.arr != nil:
			return fmt.Sprintf("ref %s[%d]@%x", v.arr.class.Name, len(v.arr.Data), v.arr.hash)
		}
		return "null"
	}
	return "top"
}

// DefaultValue is the zero value a field or array element of type t starts with.
func DefaultValue(t descriptor.Type) Value {
	switch t.Kind {
	case descriptor.Long:
		return LongValue(0)
	case descriptor.Float:
		return FloatValue(0)
	case descriptor.Double:
		return DoubleValue(0)
	case descriptor.Object, descriptor.Array:
		return Null
	}
	return IntValue(0)
}

// kindFor maps a declared type to the Kind its values carry.
func kindFor(t descriptor.Type) Kind {
	switch {
	case t.IsIntLike():
		return KindInt
	case t.Kind == descriptor.Long:
		return KindLong
	case t.Kind == descriptor.Float:
		return KindFloat
	case t.Kind == descriptor.Double:
		return KindDouble
	case t.IsReference():
		return KindRef
	}
	return KindTop
}
