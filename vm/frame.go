package vm

import (
	"github.com/chazu/jolt/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Frame: execution state for one method invocation
// ---------------------------------------------------------------------------

// Frame is one in-flight invocation. It is owned by exactly one Thread while
// on its stack and is never touched after it is popped.
type Frame struct {
	Method *Method
	PC     int
	Locals []Value

	// Pending is an exception waiting for handler lookup at PC.
	Pending *Object

	// callPC is the pc at which this frame last pushed a callee. An
	// exception propagating out of the callee is looked up there.
	callPC int

	stack       []Value
	completions []func(*Frame)
}

// NewFrame creates a frame whose locals start with args. Category 2 values
// in args must already be followed by their upper slot. The local array is
// sized to the method's max_locals when that is larger.
func NewFrame(m *Method, args []Value) *Frame {
	n := len(args)
	if m.Code != nil && int(m.Code.MaxLocals) > n {
		n = int(m.Code.MaxLocals)
	}
	locals := make([]Value, n)
	copy(locals, args)
	f := &Frame{Method: m, Locals: locals}
	if m.Code != nil {
		f.stack = make([]Value, 0, m.Code.MaxStack)
	}
	return f
}

// OnComplete registers fn to run when the frame is popped normally.
// Callbacks run in registration order and are skipped on abrupt pops.
func (f *Frame) OnComplete(fn func(*Frame)) {
	f.completions = append(f.completions, fn)
}

// ---------------------------------------------------------------------------
// Operand stack
// ---------------------------------------------------------------------------

// Push pushes a value.
func (f *Frame) Push(v Value) {
	f.stack = append(f.stack, v)
}

// Pop pops a value of either category.
func (f *Frame) Pop() Value {
	if len(f.stack) == 0 {
		inconsistency("operand stack underflow in %s", f.Method)
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

// Pop1 pops a category 1 value.
func (f *Frame) Pop1() Value {
	v := f.Pop()
	if v.Category() != 1 {
		inconsistency("expected category 1 value in %s, got %s", f.Method, v)
	}
	return v
}

// Pop2 pops a category 2 value.
func (f *Frame) Pop2() Value {
	v := f.Pop()
	if v.Category() != 2 {
		inconsistency("expected category 2 value in %s, got %s", f.Method, v)
	}
	return v
}

// popKind pops a value and checks its tag.
func (f *Frame) popKind(k Kind) Value {
	v := f.Pop()
	if v.kind != k {
		inconsistency("expected %s on operand stack in %s, got %s", k, f.Method, v)
	}
	return v
}

func (f *Frame) popInt() int32      { return f.popKind(KindInt).Int() }
func (f *Frame) popLong() int64     { return f.popKind(KindLong).Long() }
func (f *Frame) popFloat() float32  { return f.popKind(KindFloat).Float() }
func (f *Frame) popDouble() float64 { return f.popKind(KindDouble).Double() }
func (f *Frame) popRef() Value      { return f.popKind(KindRef) }

// Peek returns the value n entries below the top without popping it.
func (f *Frame) Peek(n int) Value {
	if n < 0 || n >= len(f.stack) {
		inconsistency("operand stack underflow in %s", f.Method)
	}
	return f.stack[len(f.stack)-1-n]
}

// Depth returns the number of operand stack entries.
func (f *Frame) Depth() int {
	return len(f.stack)
}

// Stack returns a copy of the operand stack, bottom first.
func (f *Frame) Stack() []Value {
	out := make([]Value, len(f.stack))
	copy(out, f.stack)
	return out
}

// ResetStack discards the operand stack and leaves only v on it.
func (f *Frame) ResetStack(v Value) {
	f.stack = append(f.stack[:0], v)
}

// ---------------------------------------------------------------------------
// Local variables
// ---------------------------------------------------------------------------

// load reads local i and checks its tag.
func (f *Frame) load(i int, k Kind) Value {
	if i < 0 || i >= len(f.Locals) {
		inconsistency("local %d out of range in %s (max %d)", i, f.Method, len(f.Locals))
	}
	v := f.Locals[i]
	if v.kind != k {
		inconsistency("local %d in %s holds %s, want %s", i, f.Method, v.kind, k)
	}
	return v
}

// store writes local i; category 2 values also claim slot i+1.
func (f *Frame) store(i int, v Value) {
	need := i + v.Category()
	if i < 0 || need > len(f.Locals) {
		inconsistency("local %d out of range in %s (max %d)", i, f.Method, len(f.Locals))
	}
	f.Locals[i] = v
	if v.Category() == 2 {
		f.Locals[i+1] = Value{}
	}
}

// ---------------------------------------------------------------------------
// Instruction operands
// ---------------------------------------------------------------------------

func (f *Frame) code() []byte {
	return f.Method.Code.Bytes
}

func (f *Frame) operand(off, size int) {
	if f.PC+off+size > len(f.code()) {
		inconsistency("truncated instruction at pc %d in %s", f.PC, f.Method)
	}
}

func (f *Frame) u8(off int) uint8 {
	f.operand(off, 1)
	return f.code()[f.PC+off]
}

func (f *Frame) s8(off int) int8 {
	return int8(f.u8(off))
}

func (f *Frame) u16(off int) uint16 {
	f.operand(off, 2)
	return bytecode.ReadU16(f.code(), f.PC+off)
}

func (f *Frame) s16(off int) int16 {
	return int16(f.u16(off))
}

func (f *Frame) s32At(at int) int32 {
	if at < 0 || at+4 > len(f.code()) {
		inconsistency("truncated operand at %d in %s", at, f.Method)
	}
	return int32(bytecode.ReadU32(f.code(), at))
}

// branch moves the pc by a signed offset relative to the current instruction.
func (f *Frame) branch(offset int) {
	f.PC += offset
}
