package vm

import (
	"fmt"

	"github.com/chazu/jolt/pkg/bytecode"
	"github.com/chazu/jolt/pkg/classfile"
	"github.com/chazu/jolt/pkg/descriptor"
)

// instruction executes the opcode at f.PC. A handler either advances f.PC,
// branches, pushes or pops a frame, or leaves f.PC unchanged after arranging
// for the instruction to be retried (class initialization) or unwound (a
// pending exception).
type instruction func(t *Thread, f *Frame, op bytecode.Opcode) error

// instructions is indexed by opcode. Nil entries are unsupported.
var instructions [256]instruction

func register(h instruction, ops ...bytecode.Opcode) {
	for _, op := range ops {
		if instructions[op] != nil {
			panic(fmt.Sprintf("vm: duplicate handler for %s", op))
		}
		instructions[op] = h
	}
}

func opRange(first, last bytecode.Opcode) []bytecode.Opcode {
	ops := make([]bytecode.Opcode, 0, int(last-first)+1)
	for op := first; op <= last; op++ {
		ops = append(ops, op)
	}
	return ops
}

func init() {
	registerConstants()
	registerLoadsAndStores()
	registerArrays()
	registerStackOps()
	registerArithmetic()
	registerConversions()
	registerComparisons()
	registerControl()
	registerFields()
	registerObjects()
	registerInvokes()
}

// ---------------------------------------------------------------------------
// Constant pool access
// ---------------------------------------------------------------------------

// pool returns the constant pool of the executing method's class.
func (f *Frame) pool() *classfile.Class {
	cf := f.Method.Class.File
	if cf == nil {
		inconsistency("%s has no constant pool", f.Method.Class)
	}
	return cf
}

func (f *Frame) memberRef(i uint16) classfile.MemberRef {
	ref, err := f.pool().MemberRef(i)
	if err != nil {
		inconsistency("%v", err)
	}
	return ref
}

func (f *Frame) className(i uint16) string {
	name, err := f.pool().ClassName(i)
	if err != nil {
		inconsistency("%v", err)
	}
	return name
}

// classType maps a class entry name to the type of references to it. Array
// classes are named by their descriptor.
func classType(name string) descriptor.Type {
	if len(name) > 0 && name[0] == '[' {
		t, err := descriptor.ParseField(name)
		if err != nil {
			inconsistency("bad array class name %q: %v", name, err)
		}
		return t
	}
	return descriptor.ObjectOf(name)
}

// checkKind panics unless v is a valid value for a slot of type want.
func checkKind(f *Frame, v Value, want descriptor.Type) {
	if v.kind != kindFor(want) {
		inconsistency("%s holds %s where %s is expected", f.Method, v, want)
	}
}
