package vm

import "github.com/chazu/jolt/pkg/bytecode"

func registerControl() {
	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		v := f.popInt()
		return condBranch(f, intCond(op-bytecode.Ifeq, v, 0))
	}, opRange(bytecode.Ifeq, bytecode.Ifle)...)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		b, a := f.popInt(), f.popInt()
		return condBranch(f, intCond(op-bytecode.IfIcmpeq, a, b))
	}, opRange(bytecode.IfIcmpeq, bytecode.IfIcmple)...)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		b, a := f.popRef(), f.popRef()
		return condBranch(f, a.Same(b) == (op == bytecode.IfAcmpeq))
	}, bytecode.IfAcmpeq, bytecode.IfAcmpne)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		v := f.popRef()
		return condBranch(f, v.IsNull() == (op == bytecode.Ifnull))
	}, bytecode.Ifnull, bytecode.Ifnonnull)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		f.branch(int(f.s16(1)))
		return nil
	}, bytecode.Goto)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		f.branch(int(f.s32At(f.PC + 1)))
		return nil
	}, bytecode.GotoW)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		f.Push(ReturnAddressValue(f.PC + 3))
		f.branch(int(f.s16(1)))
		return nil
	}, bytecode.Jsr)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		f.Push(ReturnAddressValue(f.PC + 5))
		f.branch(int(f.s32At(f.PC + 1)))
		return nil
	}, bytecode.JsrW)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		f.PC = f.load(int(f.u8(1)), KindReturnAddress).ReturnAddress()
		return nil
	}, bytecode.Ret)

	register(execTableswitch, bytecode.Tableswitch)
	register(execLookupswitch, bytecode.Lookupswitch)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		var v Value
		switch op {
		case bytecode.Ireturn:
			v = f.popKind(KindInt)
		case bytecode.Lreturn:
			v = f.popKind(KindLong)
		case bytecode.Freturn:
			v = f.popKind(KindFloat)
		case bytecode.Dreturn:
			v = f.popKind(KindDouble)
		case bytecode.Areturn:
			v = f.popRef()
		}
		t.returnValue(v)
		return nil
	}, opRange(bytecode.Ireturn, bytecode.Areturn)...)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		t.PopFrame(false)
		return nil
	}, bytecode.Return)
}

// intCond evaluates eq, ne, lt, ge, gt, le (in opcode order) on a and b.
func intCond(cond bytecode.Opcode, a, b int32) bool {
	switch cond {
	case 0:
		return a == b
	case 1:
		return a != b
	case 2:
		return a < b
	case 3:
		return a >= b
	case 4:
		return a > b
	}
	return a <= b
}

// condBranch takes the 16-bit branch of the current instruction when taken,
// and falls through otherwise.
func condBranch(f *Frame, taken bool) error {
	if taken {
		f.branch(int(f.s16(1)))
	} else {
		f.PC += 3
	}
	return nil
}

// Switch operands start at the first 4-byte aligned offset after the opcode;
// branch targets are relative to the opcode.

func execTableswitch(t *Thread, f *Frame, op bytecode.Opcode) error {
	base := bytecode.SwitchBase(f.PC)
	def := f.s32At(base)
	low := f.s32At(base + 4)
	high := f.s32At(base + 8)
	if low > high {
		inconsistency("tableswitch with low %d > high %d in %s", low, high, f.Method)
	}
	key := f.popInt()
	if key < low || key > high {
		f.branch(int(def))
		return nil
	}
	f.branch(int(f.s32At(base + 12 + 4*int(key-low))))
	return nil
}

func execLookupswitch(t *Thread, f *Frame, op bytecode.Opcode) error {
	base := bytecode.SwitchBase(f.PC)
	def := f.s32At(base)
	npairs := int(f.s32At(base + 4))
	if npairs < 0 {
		inconsistency("lookupswitch with %d pairs in %s", npairs, f.Method)
	}
	key := f.popInt()
	for i := 0; i < npairs; i++ {
		at := base + 8 + 8*i
		if f.s32At(at) == key {
			f.branch(int(f.s32At(at + 4)))
			return nil
		}
	}
	f.branch(int(def))
	return nil
}
