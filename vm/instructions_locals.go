package vm

import (
	"github.com/chazu/jolt/pkg/bytecode"
)

// Kinds of the typed load/store families, in opcode order (i, l, f, d, a).
var localKinds = [...]Kind{KindInt, KindLong, KindFloat, KindDouble, KindRef}

func registerLoadsAndStores() {
	for i, k := range localKinds {
		kind := k
		register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
			f.Push(f.load(int(f.u8(1)), kind))
			f.PC += 2
			return nil
		}, bytecode.Iload+bytecode.Opcode(i))

		register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
			f.store(int(f.u8(1)), popStorable(f, kind))
			f.PC += 2
			return nil
		}, bytecode.Istore+bytecode.Opcode(i))

		for n := 0; n < 4; n++ {
			slot := n
			register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
				f.Push(f.load(slot, kind))
				f.PC++
				return nil
			}, bytecode.Iload0+bytecode.Opcode(4*i+n))

			register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
				f.store(slot, popStorable(f, kind))
				f.PC++
				return nil
			}, bytecode.Istore0+bytecode.Opcode(4*i+n))
		}
	}

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		i := int(f.u8(1))
		v := f.load(i, KindInt)
		f.Locals[i] = IntValue(v.Int() + int32(f.s8(2)))
		f.PC += 3
		return nil
	}, bytecode.Iinc)

	register(execWide, bytecode.Wide)
}

// popStorable pops the operand of a store. astore also accepts the return
// address pushed by jsr.
func popStorable(f *Frame, k Kind) Value {
	if k == KindRef {
		v := f.Pop()
		if v.kind != KindRef && v.kind != KindReturnAddress {
			inconsistency("astore of %s in %s", v, f.Method)
		}
		return v
	}
	return f.popKind(k)
}

// execWide handles the 16-bit index forms of the local variable instructions.
func execWide(t *Thread, f *Frame, op bytecode.Opcode) error {
	inner := bytecode.Opcode(f.u8(1))
	i := int(f.u16(2))
	switch {
	case inner == bytecode.Iinc:
		v := f.load(i, KindInt)
		f.Locals[i] = IntValue(v.Int() + int32(f.s16(4)))
		f.PC += 6
		return nil
	case inner >= bytecode.Iload && inner <= bytecode.Aload:
		f.Push(f.load(i, localKinds[inner-bytecode.Iload]))
	case inner >= bytecode.Istore && inner <= bytecode.Astore:
		f.store(i, popStorable(f, localKinds[inner-bytecode.Istore]))
	case inner == bytecode.Ret:
		f.PC = f.load(i, KindReturnAddress).ReturnAddress()
		return nil
	default:
		inconsistency("wide %s in %s", inner, f.Method)
	}
	f.PC += 4
	return nil
}
