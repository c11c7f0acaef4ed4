package vm

import (
	"github.com/chazu/jolt/pkg/bytecode"
	"github.com/chazu/jolt/pkg/classfile"
)

func registerConstants() {
	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		f.PC++
		return nil
	}, bytecode.Nop)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		f.Push(Null)
		f.PC++
		return nil
	}, bytecode.AconstNull)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		f.Push(IntValue(int32(op) - int32(bytecode.Iconst0)))
		f.PC++
		return nil
	}, opRange(bytecode.IconstM1, bytecode.Iconst5)...)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		f.Push(LongValue(int64(op - bytecode.Lconst0)))
		f.PC++
		return nil
	}, bytecode.Lconst0, bytecode.Lconst1)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		f.Push(FloatValue(float32(op - bytecode.Fconst0)))
		f.PC++
		return nil
	}, bytecode.Fconst0, bytecode.Fconst1, bytecode.Fconst2)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		f.Push(DoubleValue(float64(op - bytecode.Dconst0)))
		f.PC++
		return nil
	}, bytecode.Dconst0, bytecode.Dconst1)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		f.Push(IntValue(int32(f.s8(1))))
		f.PC += 2
		return nil
	}, bytecode.Bipush)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		f.Push(IntValue(int32(f.s16(1))))
		f.PC += 3
		return nil
	}, bytecode.Sipush)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		return t.ldc(f, uint16(f.u8(1)), 2, false)
	}, bytecode.Ldc)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		return t.ldc(f, f.u16(1), 3, false)
	}, bytecode.LdcW)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		return t.ldc(f, f.u16(1), 3, true)
	}, bytecode.Ldc2W)
}

// ldc pushes constant i. String literals and class mirrors are created on
// first use and constructed before they are pushed; the instruction is
// retried once their constructor frame returns.
func (t *Thread) ldc(f *Frame, i uint16, size int, wide bool) error {
	k, err := f.pool().Constant(i)
	if err != nil {
		inconsistency("%v", err)
	}
	if wide != (k.Tag == classfile.TagLong || k.Tag == classfile.TagDouble) {
		inconsistency("ldc of constant #%d with tag %d in %s", i, k.Tag, f.Method)
	}

	var v Value
	switch k.Tag {
	case classfile.TagInteger:
		v = IntValue(k.Int)
	case classfile.TagFloat:
		v = FloatValue(k.Float)
	case classfile.TagLong:
		v = LongValue(k.Long)
	case classfile.TagDouble:
		v = DoubleValue(k.Double)
	case classfile.TagString:
		s, err := f.pool().Utf8(k.StringIndex)
		if err != nil {
			inconsistency("%v", err)
		}
		o, err := t.vm.registry.Intern(s)
		if err != nil {
			return resolutionFailure(err)
		}
		if t.initClass(o.class) || t.initObject(o) {
			return nil
		}
		v = RefValue(o)
	case classfile.TagClass:
		c, err := t.vm.registry.ResolveClass(f.className(i))
		if err != nil {
			return resolutionFailure(err)
		}
		o, err := t.vm.registry.Mirror(c)
		if err != nil {
			return resolutionFailure(err)
		}
		if t.initClass(o.class) || t.initObject(o) {
			return nil
		}
		v = RefValue(o)
	default:
		return fatalf(UnsupportedOperation, "ldc of constant kind %d", k.Tag)
	}
	f.Push(v)
	f.PC += size
	return nil
}
