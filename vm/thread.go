package vm

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/chazu/jolt/pkg/bytecode"
	"github.com/chazu/jolt/pkg/classfile"
)

// ---------------------------------------------------------------------------
// Thread: the frame stack and the interpreter loop
// ---------------------------------------------------------------------------

// Thread owns one call stack and drives it one step at a time.
type Thread struct {
	ID uuid.UUID

	vm     *VM
	frames []*Frame // frames[len-1] is the top

	result    Value
	hasResult bool
	steps     int
	err       error
}

func newThread(v *VM) *Thread {
	return &Thread{ID: uuid.New(), vm: v}
}

// VM returns the owning VM.
func (t *Thread) VM() *VM { return t.vm }

// Depth returns the number of frames on the stack.
func (t *Thread) Depth() int { return len(t.frames) }

// Top returns the executing frame, or nil if the stack is empty.
func (t *Thread) Top() *Frame {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

// Frame returns the frame i levels below the top; Frame(0) is Top().
func (t *Thread) Frame(i int) *Frame {
	if i < 0 || i >= len(t.frames) {
		return nil
	}
	return t.frames[len(t.frames)-1-i]
}

// Steps returns the number of instructions dispatched so far.
func (t *Thread) Steps() int { return t.steps }

// Done reports whether the thread has finished, normally or not.
func (t *Thread) Done() bool { return len(t.frames) == 0 || t.err != nil }

// Err returns the fatal error that stopped the thread, if any.
func (t *Thread) Err() error { return t.err }

// Result returns the value returned by the bottom frame, if it returned one.
func (t *Thread) Result() (Value, bool) { return t.result, t.hasResult }

// PushFrame makes f the executing frame.
func (t *Thread) PushFrame(f *Frame) {
	if caller := t.Top(); caller != nil {
		caller.callPC = caller.PC
	}
	t.frames = append(t.frames, f)
}

// PopFrame removes the top frame. A normal pop runs the frame's completion
// callbacks in order; an abrupt pop (exception unwinding) skips them.
func (t *Thread) PopFrame(abrupt bool) *Frame {
	f := t.Top()
	if f == nil {
		inconsistency("frame stack underflow")
	}
	t.frames[len(t.frames)-1] = nil
	t.frames = t.frames[:len(t.frames)-1]
	if !abrupt {
		for _, fn := range f.completions {
			fn(f)
		}
	}
	return f
}

// returnValue pops the current frame normally and hands v to the caller,
// or records it as the thread result if there is no caller.
func (t *Thread) returnValue(v Value) {
	t.PopFrame(false)
	if caller := t.Top(); caller != nil {
		caller.Push(v)
		return
	}
	t.result = v
	t.hasResult = true
}

// Run steps until the stack empties or a fatal error occurs. A VM configured
// with a step budget stops with ErrStepLimit when it runs out.
func (t *Thread) Run() error {
	if t.vm.maxSteps > 0 {
		return t.RunN(t.vm.maxSteps)
	}
	for !t.Done() {
		if err := t.Step(); err != nil {
			return err
		}
	}
	return t.err
}

// RunN runs at most n steps.
func (t *Thread) RunN(n int) error {
	for i := 0; i < n; i++ {
		if t.Done() {
			return t.err
		}
		if err := t.Step(); err != nil {
			return err
		}
	}
	if !t.Done() {
		return fmt.Errorf("%w after %d steps", ErrStepLimit, n)
	}
	return t.err
}

// Step performs one iteration of the interpreter loop: exception dispatch,
// class initialization, native dispatch, or a single instruction.
func (t *Thread) Step() (err error) {
	if t.err != nil {
		return t.err
	}
	f := t.Top()
	if f == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			fe, ok := r.(*FatalError)
			if !ok {
				panic(r)
			}
			err = t.fail(f, fe)
		}
	}()

	if err := t.step(f); err != nil {
		return t.fail(f, err)
	}
	return nil
}

func (t *Thread) step(f *Frame) error {
	// 1. Pending exception: handle here or unwind one frame.
	if exc := f.Pending; exc != nil {
		f.Pending = nil
		if pc, ok := t.handlerFor(f, exc); ok {
			f.PC = pc
			f.ResetStack(RefValue(exc))
			return nil
		}
		t.PopFrame(true)
		if caller := t.Top(); caller != nil {
			caller.PC = caller.callPC
			caller.Pending = exc
			return nil
		}
		return &FatalError{
			Kind:      UnhandledException,
			Class:     f.Method.Class.Name,
			Method:    f.Method.Name + f.Method.Descriptor,
			PC:        f.PC,
			Msg:       t.describeException(exc),
			Exception: exc,
		}
	}

	// 2. Method entry: initialize the class first, then natives.
	if f.PC == 0 {
		if t.initClass(f.Method.Class) {
			return nil
		}
		if !f.Method.HasBody() {
			return t.callNative(f)
		}
	}

	// 3. Fetch and dispatch.
	code := f.Method.Code.Bytes
	if f.PC < 0 || f.PC >= len(code) {
		return fatalf(InternalInconsistency, "pc %d outside code of length %d", f.PC, len(code))
	}
	op := bytecode.Opcode(code[f.PC])
	h := instructions[op]
	if h == nil {
		return fatalf(UnsupportedOperation, "unsupported instruction %s (0x%02X)", op, byte(op))
	}
	t.steps++
	return h(t, f, op)
}

// fail records a fatal error, filling in the location from f.
func (t *Thread) fail(f *Frame, err error) error {
	fe, ok := err.(*FatalError)
	if !ok {
		fe = &FatalError{Kind: InternalInconsistency, Err: err}
	}
	if fe.Method == "" && f != nil {
		fe.Class = f.Method.Class.Name
		fe.Method = f.Method.Name + f.Method.Descriptor
		fe.PC = f.PC
	}
	t.err = fe
	t.vm.log.Errorf("thread %s stopped: %s", t.ID, fe)
	return fe
}

// ---------------------------------------------------------------------------
// Lazy initialization
// ---------------------------------------------------------------------------

// initClass pushes the static initializer of the first class in c's chain,
// from the root down, that has not started initializing. Classes without an
// initializer are marked Initialized on the way. It reports whether a frame
// was pushed, in which case the caller must retry its instruction later.
func (t *Thread) initClass(c *Class) bool {
	if c.State == Initialized {
		return false
	}
	chain := c.Chain()
	for i := len(chain) - 1; i >= 0; i-- {
		k := chain[i]
		if k.State != Uninitialized {
			continue
		}
		clinit := k.vtable.LookupLocal(classfile.ClassInit, "()V")
		if clinit == nil {
			k.State = Initialized
			continue
		}
		k.State = Initializing
		t.vm.log.Debugf("initializing class %s", k.Name)
		fr := NewFrame(clinit, nil)
		fr.OnComplete(func(*Frame) {
			k.State = Initialized
		})
		t.PushFrame(fr)
		return true
	}
	return false
}

// initObject runs the no-argument constructor of a VM-created object (a
// string literal or class mirror) before its first use. It reports whether a
// constructor frame was pushed.
func (t *Thread) initObject(o *Object) bool {
	if o.State != Uninitialized {
		return false
	}
	ctor := o.class.vtable.Lookup(classfile.InstanceInit, "()V")
	if ctor == nil {
		o.State = Initialized
		return false
	}
	o.State = Initializing
	fr := NewFrame(ctor, []Value{RefValue(o)})
	fr.OnComplete(func(*Frame) {
		o.State = Initialized
	})
	t.PushFrame(fr)
	return true
}

// ---------------------------------------------------------------------------
// Native dispatch
// ---------------------------------------------------------------------------

func (t *Thread) callNative(f *Frame) error {
	m := f.Method
	fn := m.Native
	if fn == nil {
		if bound, ok := t.vm.natives.Lookup(m.Class.Name, m.Name, m.Descriptor); ok {
			m.Native = bound
			fn = bound
		}
	}
	if fn == nil {
		t.vm.log.Warningf("eliding native method %s", m)
		t.PopFrame(false)
		if !m.Desc.ReturnsVoid() {
			t.pushResult(DefaultValue(m.Desc.Return))
		}
		return nil
	}

	result, err := fn(t, nativeArgs(f))
	if err != nil {
		if fe, ok := err.(*FatalError); ok {
			return fe
		}
		return &FatalError{Kind: InternalInconsistency, Msg: "native " + m.String(), Err: err}
	}
	// The native pushed a frame or threw: it will be re-entered or unwound.
	if t.Top() != f || f.Pending != nil {
		return nil
	}
	t.PopFrame(false)
	if !m.Desc.ReturnsVoid() {
		t.pushResult(result)
	}
	return nil
}

func (t *Thread) pushResult(v Value) {
	if caller := t.Top(); caller != nil {
		caller.Push(v)
		return
	}
	t.result = v
	t.hasResult = true
}

// nativeArgs collects the receiver and parameters from the locals, dropping
// the upper slot of each long or double.
func nativeArgs(f *Frame) []Value {
	m := f.Method
	args := make([]Value, 0, len(m.Desc.Params)+1)
	i := 0
	if !m.IsStatic() {
		args = append(args, f.Locals[0])
		i = 1
	}
	for _, p := range m.Desc.Params {
		if i >= len(f.Locals) {
			inconsistency("native %s called with too few arguments", m)
		}
		args = append(args, f.Locals[i])
		i += p.Slots()
	}
	return args
}

// argsToLocals lays values out in local-variable order, giving long and
// double values two slots.
func argsToLocals(values []Value) []Value {
	locals := make([]Value, 0, len(values)*2)
	for _, v := range values {
		locals = append(locals, v)
		if v.Category() == 2 {
			locals = append(locals, Value{})
		}
	}
	return locals
}

// ---------------------------------------------------------------------------
// Backtraces
// ---------------------------------------------------------------------------

// TraceElement is one line of a backtrace.
type TraceElement struct {
	Class  string
	Method string
	File   string
	Line   int
}

func (e TraceElement) String() string {
	loc := "Unknown Source"
	if e.File != "" {
		loc = e.File
		if e.Line > 0 {
			loc = fmt.Sprintf("%s:%d", e.File, e.Line)
		}
	}
	return fmt.Sprintf("%s.%s(%s)", strings.ReplaceAll(e.Class, "/", "."), e.Method, loc)
}

// Backtrace describes the frame stack, top first.
func (t *Thread) Backtrace() []TraceElement {
	trace := make([]TraceElement, 0, len(t.frames))
	for i := len(t.frames) - 1; i >= 0; i-- {
		f := t.frames[i]
		e := TraceElement{Class: f.Method.Class.Name, Method: f.Method.Name}
		if cf := f.Method.Class.File; cf != nil {
			e.File = cf.SourceFile
		}
		if f.Method.Code != nil {
			for _, ln := range f.Method.Code.LineNumbers {
				if int(ln.StartPC) > f.PC {
					break
				}
				e.Line = int(ln.Line)
			}
		}
		trace = append(trace, e)
	}
	return trace
}
