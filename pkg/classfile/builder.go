package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chazu/jolt/pkg/bytecode"
)

// Builder assembles a Class, interning constant pool entries so that equal
// constants share an index.
type Builder struct {
	class *Class
	index map[string]uint16
}

// NewBuilder starts a class with the given internal name and superclass.
// An empty super is only valid for java/lang/Object.
func NewBuilder(name, super string) *Builder {
	b := &Builder{
		class: &Class{
			Name:         name,
			SuperName:    super,
			AccessFlags:  AccPublic | AccSuper,
			ConstantPool: []Constant{{Tag: TagUnusable}},
		},
		index: make(map[string]uint16),
	}
	b.Class(name)
	if super != "" {
		b.Class(super)
	}
	return b
}

// SetAccess replaces the class access flags.
func (b *Builder) SetAccess(flags uint16) *Builder {
	b.class.AccessFlags = flags
	return b
}

// SetSourceFile records the SourceFile attribute.
func (b *Builder) SetSourceFile(name string) *Builder {
	b.class.SourceFile = name
	return b
}

// Implements adds interface names.
func (b *Builder) Implements(names ...string) *Builder {
	for _, n := range names {
		b.Class(n)
		b.class.Interfaces = append(b.class.Interfaces, n)
	}
	return b
}

func (b *Builder) intern(key string, c Constant) uint16 {
	if i, ok := b.index[key]; ok {
		return i
	}
	i := uint16(len(b.class.ConstantPool))
	b.class.ConstantPool = append(b.class.ConstantPool, c)
	if c.Tag == TagLong || c.Tag == TagDouble {
		b.class.ConstantPool = append(b.class.ConstantPool, Constant{Tag: TagUnusable})
	}
	b.index[key] = i
	return i
}

// Utf8 interns a Utf8 entry.
func (b *Builder) Utf8(s string) uint16 {
	return b.intern("U:"+s, Constant{Tag: TagUtf8, Utf8: s})
}

// Class interns a Class entry.
func (b *Builder) Class(name string) uint16 {
	n := b.Utf8(name)
	return b.intern("C:"+name, Constant{Tag: TagClass, NameIndex: n})
}

// String interns a String entry.
func (b *Builder) String(s string) uint16 {
	n := b.Utf8(s)
	return b.intern("S:"+s, Constant{Tag: TagString, StringIndex: n})
}

// Integer interns an Integer entry.
func (b *Builder) Integer(v int32) uint16 {
	return b.intern(fmt.Sprintf("I:%d", v), Constant{Tag: TagInteger, Int: v})
}

// Float interns a Float entry.
func (b *Builder) Float(v float32) uint16 {
	return b.intern(fmt.Sprintf("F:%08x", math.Float32bits(v)), Constant{Tag: TagFloat, Float: v})
}

// Long interns a Long entry (two pool slots).
func (b *Builder) Long(v int64) uint16 {
	return b.intern(fmt.Sprintf("J:%d", v), Constant{Tag: TagLong, Long: v})
}

// Double interns a Double entry (two pool slots).
func (b *Builder) Double(v float64) uint16 {
	return b.intern(fmt.Sprintf("D:%016x", math.Float64bits(v)), Constant{Tag: TagDouble, Double: v})
}

// NameAndType interns a NameAndType entry.
func (b *Builder) NameAndType(name, desc string) uint16 {
	n := b.Utf8(name)
	d := b.Utf8(desc)
	return b.intern("N:"+name+":"+desc, Constant{Tag: TagNameAndType, NameIndex: n, DescriptorIndex: d})
}

func (b *Builder) memberRef(tag byte, prefix, owner, name, desc string) uint16 {
	c := b.Class(owner)
	nt := b.NameAndType(name, desc)
	return b.intern(prefix+owner+"."+name+":"+desc, Constant{Tag: tag, ClassIndex: c, NameAndTypeIndex: nt})
}

// FieldRef interns a Fieldref entry.
func (b *Builder) FieldRef(owner, name, desc string) uint16 {
	return b.memberRef(TagFieldref, "FR:", owner, name, desc)
}

// MethodRef interns a Methodref entry.
func (b *Builder) MethodRef(owner, name, desc string) uint16 {
	return b.memberRef(TagMethodref, "MR:", owner, name, desc)
}

// InterfaceMethodRef interns an InterfaceMethodref entry.
func (b *Builder) InterfaceMethodRef(owner, name, desc string) uint16 {
	return b.memberRef(TagInterfaceMethodref, "IR:", owner, name, desc)
}

// InvokeDynamic interns an InvokeDynamic entry and a matching bootstrap
// method referring to bootstrap (a Methodref owner/name/desc triple).
func (b *Builder) InvokeDynamic(name, desc string, bsmOwner, bsmName, bsmDesc string) uint16 {
	ref := b.MethodRef(bsmOwner, bsmName, bsmDesc)
	handle := b.intern(fmt.Sprintf("H:6:%d", ref), Constant{Tag: TagMethodHandle, RefKind: 6, RefIndex: ref})
	bsm := uint16(len(b.class.BootstrapMethods))
	b.class.BootstrapMethods = append(b.class.BootstrapMethods, BootstrapMethod{MethodRef: handle})
	nt := b.NameAndType(name, desc)
	return b.intern(fmt.Sprintf("Y:%d:%s:%s", bsm, name, desc), Constant{Tag: TagInvokeDynamic, BootstrapIndex: bsm, NameAndTypeIndex: nt})
}

// AddField declares a field.
func (b *Builder) AddField(flags uint16, name, desc string) *Builder {
	b.Utf8(name)
	b.Utf8(desc)
	b.class.Fields = append(b.class.Fields, Field{AccessFlags: flags, Name: name, Descriptor: desc})
	return b
}

// AddConstantField declares a static field with a ConstantValue attribute
// pointing at pool index value.
func (b *Builder) AddConstantField(flags uint16, name, desc string, value uint16) *Builder {
	b.AddField(flags|AccStatic, name, desc)
	b.class.Fields[len(b.class.Fields)-1].ConstantValue = value
	return b
}

// AddMethod declares a method with a code body.
func (b *Builder) AddMethod(flags uint16, name, desc string, maxStack, maxLocals uint16, code []byte, handlers ...Handler) *Builder {
	b.Utf8(name)
	b.Utf8(desc)
	b.class.Methods = append(b.class.Methods, Method{
		AccessFlags: flags,
		Name:        name,
		Descriptor:  desc,
		Code: &Code{
			MaxStack:       maxStack,
			MaxLocals:      maxLocals,
			Bytes:          code,
			ExceptionTable: handlers,
		},
	})
	return b
}

// LineNumbers attaches a line number table to a previously added method.
func (b *Builder) LineNumbers(name, desc string, lines ...LineNumber) *Builder {
	if m := b.class.Method(name, desc); m != nil && m.Code != nil {
		m.Code.LineNumbers = append(m.Code.LineNumbers, lines...)
	}
	return b
}

// AddNativeMethod declares a native method (no code body).
func (b *Builder) AddNativeMethod(flags uint16, name, desc string) *Builder {
	b.Utf8(name)
	b.Utf8(desc)
	b.class.Methods = append(b.class.Methods, Method{AccessFlags: flags | AccNative, Name: name, Descriptor: desc})
	return b
}

// AddAbstractMethod declares an abstract method.
func (b *Builder) AddAbstractMethod(flags uint16, name, desc string) *Builder {
	b.Utf8(name)
	b.Utf8(desc)
	b.class.Methods = append(b.class.Methods, Method{AccessFlags: flags | AccAbstract, Name: name, Descriptor: desc})
	return b
}

// Build returns the assembled class. The builder must not be used afterwards.
func (b *Builder) Build() *Class {
	return b.class
}

// Asm is a byte writer for method bodies. Multi-byte operands are big-endian.
type Asm struct {
	buf bytes.Buffer
}

// Op appends opcodes.
func (a *Asm) Op(ops ...bytecode.Opcode) *Asm {
	for _, op := range ops {
		a.buf.WriteByte(byte(op))
	}
	return a
}

// U8 appends an unsigned byte operand.
func (a *Asm) U8(v uint8) *Asm {
	a.buf.WriteByte(v)
	return a
}

// U16 appends a 16-bit operand.
func (a *Asm) U16(v uint16) *Asm {
	binary.Write(&a.buf, binary.BigEndian, v)
	return a
}

// S16 appends a signed 16-bit operand (branch offsets, sipush).
func (a *Asm) S16(v int16) *Asm {
	binary.Write(&a.buf, binary.BigEndian, v)
	return a
}

// S32 appends a signed 32-bit operand.
func (a *Asm) S32(v int32) *Asm {
	binary.Write(&a.buf, binary.BigEndian, v)
	return a
}

// Align pads with zero bytes until the length is a multiple of four,
// as required after a switch opcode.
func (a *Asm) Align() *Asm {
	for a.buf.Len()%4 != 0 {
		a.buf.WriteByte(0)
	}
	return a
}

// Len returns the current length, which is the pc of the next instruction.
func (a *Asm) Len() int {
	return a.buf.Len()
}

// Bytes returns the assembled code.
func (a *Asm) Bytes() []byte {
	return a.buf.Bytes()
}
