package vm

import "github.com/chazu/jolt/pkg/bytecode"

// The dup and pop families follow the category rules: a "word" is one
// category 1 value, and a category 2 value counts as two words.

func registerStackOps() {
	stackOp := func(fn func(f *Frame)) instruction {
		return func(t *Thread, f *Frame, op bytecode.Opcode) error {
			fn(f)
			f.PC++
			return nil
		}
	}

	register(stackOp(func(f *Frame) {
		f.Pop1()
	}), bytecode.Pop)

	register(stackOp(func(f *Frame) {
		if f.Pop().Category() == 1 {
			f.Pop1()
		}
	}), bytecode.Pop2)

	register(stackOp(func(f *Frame) {
		v := f.Pop1()
		f.Push(v)
		f.Push(v)
	}), bytecode.Dup)

	register(stackOp(func(f *Frame) {
		v1, v2 := f.Pop1(), f.Pop1()
		pushAll(f, v1, v2, v1)
	}), bytecode.DupX1)

	register(stackOp(func(f *Frame) {
		v1 := f.Pop1()
		v2 := f.Pop()
		if v2.Category() == 2 {
			pushAll(f, v1, v2, v1)
			return
		}
		v3 := f.Pop1()
		pushAll(f, v1, v3, v2, v1)
	}), bytecode.DupX2)

	register(stackOp(func(f *Frame) {
		v1 := f.Pop()
		if v1.Category() == 2 {
			pushAll(f, v1, v1)
			return
		}
		v2 := f.Pop1()
		pushAll(f, v2, v1, v2, v1)
	}), bytecode.Dup2)

	register(stackOp(func(f *Frame) {
		v1 := f.Pop()
		if v1.Category() == 2 {
			v2 := f.Pop1()
			pushAll(f, v1, v2, v1)
			return
		}
		v2, v3 := f.Pop1(), f.Pop1()
		pushAll(f, v2, v1, v3, v2, v1)
	}), bytecode.Dup2X1)

	register(stackOp(func(f *Frame) {
		v1 := f.Pop()
		if v1.Category() == 2 {
			v2 := f.Pop()
			if v2.Category() == 2 {
				pushAll(f, v1, v2, v1)
				return
			}
			v3 := f.Pop1()
			pushAll(f, v1, v3, v2, v1)
			return
		}
		v2 := f.Pop1()
		v3 := f.Pop()
		if v3.Category() == 2 {
			pushAll(f, v2, v1, v3, v2, v1)
			return
		}
		v4 := f.Pop1()
		pushAll(f, v2, v1, v4, v3, v2, v1)
	}), bytecode.Dup2X2)

	register(stackOp(func(f *Frame) {
		v1, v2 := f.Pop1(), f.Pop1()
		pushAll(f, v1, v2)
	}), bytecode.Swap)
}

// pushAll pushes values bottom first.
func pushAll(f *Frame, values ...Value) {
	for _, v := range values {
		f.Push(v)
	}
}
