// Package classfile models the parsed form of a JVM class: the constant pool,
// fields, methods with their code bodies, and class-level attributes.
//
// A *Class is produced by a loader (or assembled with Builder) and is treated
// as immutable by the interpreter. Classes are stored and exchanged as
// canonical CBOR (see Marshal and Unmarshal).
package classfile

import (
	"errors"
	"fmt"
)

// Constant pool tags.
const (
	TagUtf8               byte = 1
	TagInteger            byte = 3
	TagFloat              byte = 4
	TagLong               byte = 5
	TagDouble             byte = 6
	TagClass              byte = 7
	TagString             byte = 8
	TagFieldref           byte = 9
	TagMethodref          byte = 10
	TagInterfaceMethodref byte = 11
	TagNameAndType        byte = 12
	TagMethodHandle       byte = 15
	TagMethodType         byte = 16
	TagInvokeDynamic      byte = 18

	// TagUnusable marks index 0 and the slot after a Long or Double entry.
	TagUnusable byte = 0
)

// Access flags for classes, fields and methods.
const (
	AccPublic       uint16 = 0x0001
	AccPrivate      uint16 = 0x0002
	AccProtected    uint16 = 0x0004
	AccStatic       uint16 = 0x0008
	AccFinal        uint16 = 0x0010
	AccSuper        uint16 = 0x0020
	AccSynchronized uint16 = 0x0020
	AccVolatile     uint16 = 0x0040
	AccBridge       uint16 = 0x0040
	AccTransient    uint16 = 0x0080
	AccVarargs      uint16 = 0x0080
	AccNative       uint16 = 0x0100
	AccInterface    uint16 = 0x0200
	AccAbstract     uint16 = 0x0400
	AccStrict       uint16 = 0x0800
	AccSynthetic    uint16 = 0x1000
	AccAnnotation   uint16 = 0x2000
	AccEnum         uint16 = 0x4000
)

// Well-known member names.
const (
	ClassInit    = "<clinit>"
	InstanceInit = "<init>"
)

// ErrBadIndex is returned when a constant pool index is out of range or
// refers to an entry of the wrong kind.
var ErrBadIndex = errors.New("bad constant pool index")

// Constant is one constant pool entry. Only the fields relevant to Tag are set.
type Constant struct {
	Tag              byte    `cbor:"1,keyasint"`
	Utf8             string  `cbor:"2,keyasint,omitempty"`
	Int              int32   `cbor:"3,keyasint,omitempty"`
	Float            float32 `cbor:"4,keyasint,omitempty"`
	Long             int64   `cbor:"5,keyasint,omitempty"`
	Double           float64 `cbor:"6,keyasint,omitempty"`
	NameIndex        uint16  `cbor:"7,keyasint,omitempty"`
	ClassIndex       uint16  `cbor:"8,keyasint,omitempty"`
	NameAndTypeIndex uint16  `cbor:"9,keyasint,omitempty"`
	DescriptorIndex  uint16  `cbor:"10,keyasint,omitempty"`
	StringIndex      uint16  `cbor:"11,keyasint,omitempty"`
	RefKind          byte    `cbor:"12,keyasint,omitempty"`
	RefIndex         uint16  `cbor:"13,keyasint,omitempty"`
	BootstrapIndex   uint16  `cbor:"14,keyasint,omitempty"`
}

// Attribute is an attribute the model does not interpret, kept as raw bytes.
type Attribute struct {
	Name string `cbor:"1,keyasint"`
	Data []byte `cbor:"2,keyasint,omitempty"`
}

// Field is a declared field.
type Field struct {
	AccessFlags uint16 `cbor:"1,keyasint"`
	Name        string `cbor:"2,keyasint"`
	Descriptor  string `cbor:"3,keyasint"`
	// ConstantValue is the pool index from a ConstantValue attribute, or 0.
	ConstantValue uint16      `cbor:"4,keyasint,omitempty"`
	Attributes    []Attribute `cbor:"5,keyasint,omitempty"`
}

// Handler is one exception table entry. CatchType 0 catches everything.
type Handler struct {
	StartPC   uint16 `cbor:"1,keyasint"`
	EndPC     uint16 `cbor:"2,keyasint"`
	HandlerPC uint16 `cbor:"3,keyasint"`
	CatchType uint16 `cbor:"4,keyasint"`
}

// LineNumber maps a start pc to a source line.
type LineNumber struct {
	StartPC uint16 `cbor:"1,keyasint"`
	Line    uint16 `cbor:"2,keyasint"`
}

// Code is a method body.
type Code struct {
	MaxStack       uint16       `cbor:"1,keyasint"`
	MaxLocals      uint16       `cbor:"2,keyasint"`
	Bytes          []byte       `cbor:"3,keyasint"`
	ExceptionTable []Handler    `cbor:"4,keyasint,omitempty"`
	LineNumbers    []LineNumber `cbor:"5,keyasint,omitempty"`
	Attributes     []Attribute  `cbor:"6,keyasint,omitempty"`
}

// Method is a declared method. Code is nil for native and abstract methods.
type Method struct {
	AccessFlags uint16      `cbor:"1,keyasint"`
	Name        string      `cbor:"2,keyasint"`
	Descriptor  string      `cbor:"3,keyasint"`
	Code        *Code       `cbor:"4,keyasint,omitempty"`
	Attributes  []Attribute `cbor:"5,keyasint,omitempty"`
}

// BootstrapMethod is an entry of the BootstrapMethods attribute.
type BootstrapMethod struct {
	MethodRef uint16   `cbor:"1,keyasint"`
	Args      []uint16 `cbor:"2,keyasint,omitempty"`
}

// Class is a parsed class.
type Class struct {
	Name             string            `cbor:"1,keyasint"`
	SuperName        string            `cbor:"2,keyasint,omitempty"`
	AccessFlags      uint16            `cbor:"3,keyasint"`
	ConstantPool     []Constant        `cbor:"4,keyasint"`
	Interfaces       []string          `cbor:"5,keyasint,omitempty"`
	Fields           []Field           `cbor:"6,keyasint,omitempty"`
	Methods          []Method          `cbor:"7,keyasint,omitempty"`
	SourceFile       string            `cbor:"8,keyasint,omitempty"`
	BootstrapMethods []BootstrapMethod `cbor:"9,keyasint,omitempty"`
	Attributes       []Attribute       `cbor:"10,keyasint,omitempty"`
}

// MemberRef is a resolved-by-name view of a Fieldref, Methodref or
// InterfaceMethodref entry.
type MemberRef struct {
	Owner       string
	Name        string
	Descriptor  string
	IsInterface bool
}

func (r MemberRef) String() string {
	return r.Owner + "." + r.Name + ":" + r.Descriptor
}

// Constant returns the entry at index i.
func (c *Class) Constant(i uint16) (*Constant, error) {
	if i == 0 || int(i) >= len(c.ConstantPool) {
		return nil, fmt.Errorf("%w: %d in %s (pool size %d)", ErrBadIndex, i, c.Name, len(c.ConstantPool))
	}
	return &c.ConstantPool[i], nil
}

func (c *Class) expect(i uint16, tag byte) (*Constant, error) {
	k, err := c.Constant(i)
	if err != nil {
		return nil, err
	}
	if k.Tag != tag {
		return nil, fmt.Errorf("%w: %d in %s has tag %d, want %d", ErrBadIndex, i, c.Name, k.Tag, tag)
	}
	return k, nil
}

// Utf8 returns the string of a Utf8 entry.
func (c *Class) Utf8(i uint16) (string, error) {
	k, err := c.expect(i, TagUtf8)
	if err != nil {
		return "", err
	}
	return k.Utf8, nil
}

// ClassName returns the name referenced by a Class entry.
func (c *Class) ClassName(i uint16) (string, error) {
	k, err := c.expect(i, TagClass)
	if err != nil {
		return "", err
	}
	return c.Utf8(k.NameIndex)
}

// NameAndType returns the name and descriptor of a NameAndType entry.
func (c *Class) NameAndType(i uint16) (name, desc string, err error) {
	k, err := c.expect(i, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = c.Utf8(k.NameIndex); err != nil {
		return "", "", err
	}
	if desc, err = c.Utf8(k.DescriptorIndex); err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// MemberRef resolves a Fieldref, Methodref or InterfaceMethodref entry to
// names.
func (c *Class) MemberRef(i uint16) (MemberRef, error) {
	k, err := c.Constant(i)
	if err != nil {
		return MemberRef{}, err
	}
	switch k.Tag {
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
	default:
		return MemberRef{}, fmt.Errorf("%w: %d in %s is not a member reference (tag %d)", ErrBadIndex, i, c.Name, k.Tag)
	}
	owner, err := c.ClassName(k.ClassIndex)
	if err != nil {
		return MemberRef{}, err
	}
	name, desc, err := c.NameAndType(k.NameAndTypeIndex)
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{Owner: owner, Name: name, Descriptor: desc, IsInterface: k.Tag == TagInterfaceMethodref}, nil
}

// Method finds a declared method by name and descriptor.
func (c *Class) Method(name, desc string) *Method {
	for i := range c.Methods {
		if c.Methods[i].Name == name && c.Methods[i].Descriptor == desc {
			return &c.Methods[i]
		}
	}
	return nil
}

// Field finds a declared field by name.
func (c *Class) Field(name string) *Field {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i]
		}
	}
	return nil
}

// IsInterface reports whether the class is an interface.
func (c *Class) IsInterface() bool {
	return c.AccessFlags&AccInterface != 0
}

// Describe renders constant i for listings, e.g. `Method java/lang/Object."<init>":()V`.
func (c *Class) Describe(i uint16) string {
	k, err := c.Constant(i)
	if err != nil {
		return fmt.Sprintf("#%d?", i)
	}
	switch k.Tag {
	case TagUtf8:
		return fmt.Sprintf("Utf8 %q", k.Utf8)
	case TagInteger:
		return fmt.Sprintf("int %d", k.Int)
	case TagFloat:
		return fmt.Sprintf("float %gf", k.Float)
	case TagLong:
		return fmt.Sprintf("long %dl", k.Long)
	case TagDouble:
		return fmt.Sprintf("double %gd", k.Double)
	case TagClass:
		name, _ := c.Utf8(k.NameIndex)
		return "class " + name
	case TagString:
		s, _ := c.Utf8(k.StringIndex)
		return fmt.Sprintf("String %q", s)
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		ref, err := c.MemberRef(i)
		if err != nil {
			return fmt.Sprintf("#%d?", i)
		}
		kind := map[byte]string{TagFieldref: "Field", TagMethodref: "Method", TagInterfaceMethodref: "InterfaceMethod"}[k.Tag]
		return fmt.Sprintf("%s %s.%q:%s", kind, ref.Owner, ref.Name, ref.Descriptor)
	case TagNameAndType:
		name, desc, _ := c.NameAndType(i)
		return fmt.Sprintf("NameAndType %q:%s", name, desc)
	case TagMethodHandle:
		return fmt.Sprintf("MethodHandle kind=%d #%d", k.RefKind, k.RefIndex)
	case TagMethodType:
		desc, _ := c.Utf8(k.DescriptorIndex)
		return "MethodType " + desc
	case TagInvokeDynamic:
		name, desc, _ := c.NameAndType(k.NameAndTypeIndex)
		return fmt.Sprintf("InvokeDynamic #%d:%q:%s", k.BootstrapIndex, name, desc)
	}
	return fmt.Sprintf("tag %d", k.Tag)
}
