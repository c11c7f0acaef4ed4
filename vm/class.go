package vm

import (
	"fmt"

	"github.com/chazu/jolt/pkg/classfile"
	"github.com/chazu/jolt/pkg/descriptor"
)

// ---------------------------------------------------------------------------
// Initialization state
// ---------------------------------------------------------------------------

// InitState tracks one-shot initialization of classes and objects.
// Transitions only move forward.
type InitState uint8

const (
	Uninitialized InitState = iota
	Initializing
	Initialized
)

func (s InitState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	}
	return fmt.Sprintf("InitState(%d)", s)
}

// ---------------------------------------------------------------------------
// Field and Method
// ---------------------------------------------------------------------------

// Field is a field declared by a runtime class.
type Field struct {
	Class      *Class
	Name       string
	Descriptor string
	Type       descriptor.Type
	Flags      uint16
}

// IsStatic reports whether the field lives in class storage.
func (f *Field) IsStatic() bool { return f.Flags&classfile.AccStatic != 0 }

// IsFinal reports whether the field is final.
func (f *Field) IsFinal() bool { return f.Flags&classfile.AccFinal != 0 }

func (f *Field) String() string {
	return f.Class.Name + "." + f.Name + ":" + f.Descriptor
}

// Method is a method declared by a runtime class. Code is nil for native
// and abstract methods; Native is the bound implementation, if any.
type Method struct {
	Class      *Class
	Name       string
	Descriptor string
	Desc       *descriptor.Method
	Flags      uint16
	Code       *classfile.Code
	Native     NativeFunc
}

// IsStatic reports whether the method has no receiver.
func (m *Method) IsStatic() bool { return m.Flags&classfile.AccStatic != 0 }

// IsNative reports whether the method is declared native.
func (m *Method) IsNative() bool { return m.Flags&classfile.AccNative != 0 }

// IsAbstract reports whether the method is declared abstract.
func (m *Method) IsAbstract() bool { return m.Flags&classfile.AccAbstract != 0 }

// HasBody reports whether the method has bytecode to interpret.
func (m *Method) HasBody() bool { return m.Code != nil && !m.IsNative() }

// ArgSlots is the number of local slots taken by the receiver and parameters.
func (m *Method) ArgSlots() int {
	n := m.Desc.ArgSlots()
	if !m.IsStatic() {
		n++
	}
	return n
}

func (m *Method) String() string {
	return m.Class.Name + "." + m.Name + m.Descriptor
}

// ---------------------------------------------------------------------------
// Class: runtime class representation
// ---------------------------------------------------------------------------

// Class is the runtime form of a defined class or a synthesized array class.
type Class struct {
	Name       string
	Super      *Class
	Interfaces []*Class
	Flags      uint16
	File       *classfile.Class

	// ArrayType is set for array classes ("[I", "[Ljava/lang/String;").
	ArrayType *descriptor.Type

	State InitState

	fields     map[string]*Field
	fieldOrder []*Field
	vtable     *VTable
	statics    map[string]Value
	mirror     *Object
}

func newClass(name string, super *Class, flags uint16) *Class {
	c := &Class{
		Name:    name,
		Super:   super,
		Flags:   flags,
		fields:  make(map[string]*Field),
		statics: make(map[string]Value),
	}
	var parent *VTable
	if super != nil {
		parent = super.vtable
	}
	c.vtable = NewVTable(c, parent)
	return c
}

// VTable returns the method table.
func (c *Class) VTable() *VTable { return c.vtable }

// IsInterface reports whether the class is an interface.
func (c *Class) IsInterface() bool { return c.Flags&classfile.AccInterface != 0 }

// IsArray reports whether this is a synthesized array class.
func (c *Class) IsArray() bool { return c.ArrayType != nil }

// Type returns the descriptor type for references to this class.
func (c *Class) Type() descriptor.Type {
	if c.ArrayType != nil {
		return *c.ArrayType
	}
	return descriptor.ObjectOf(c.Name)
}

// Field returns a field declared by this class (not its superclasses).
func (c *Class) Field(name string) *Field { return c.fields[name] }

// Fields returns the declared fields in declaration order.
func (c *Class) Fields() []*Field { return c.fieldOrder }

// Method returns a method declared by this class (not its superclasses).
func (c *Class) Method(name, desc string) *Method { return c.vtable.LookupLocal(name, desc) }

// FindMethod looks a method up through the superclass chain.
func (c *Class) FindMethod(name, desc string) *Method { return c.vtable.Lookup(name, desc) }

// Static returns the value of a static field declared by this class.
func (c *Class) Static(name string) (Value, bool) {
	v, ok := c.statics[name]
	return v, ok
}

// SetStatic stores a static field declared by this class.
func (c *Class) SetStatic(name string, v Value) {
	c.statics[name] = v
}

// Chain returns c followed by each superclass up to the root.
func (c *Class) Chain() []*Class {
	var chain []*Class
	for k := c; k != nil; k = k.Super {
		chain = append(chain, k)
	}
	return chain
}

// IsSubclassOf reports whether c is other, extends it, or implements it.
func (c *Class) IsSubclassOf(other *Class) bool {
	if other == nil {
		return false
	}
	return c.IsSubclassOfName(other.Name)
}

// IsSubclassOfName is IsSubclassOf by class name. A class is a subclass of
// itself; implemented interfaces (and their superinterfaces) also count.
func (c *Class) IsSubclassOfName(name string) bool {
	for k := c; k != nil; k = k.Super {
		if k.Name == name {
			return true
		}
		for _, iface := range k.Interfaces {
			if iface.IsSubclassOfName(name) {
				return true
			}
		}
	}
	return false
}

func (c *Class) String() string {
	return c.Name
}
