package vm

import (
	"reflect"
	"testing"

	"github.com/chazu/jolt/pkg/bytecode"
	"github.com/chazu/jolt/pkg/classfile"
)

func TestCompletionCallbacks(t *testing.T) {
	v := New()
	obj, _ := v.Registry().Lookup(ObjectClassName)
	m := obj.Method(classfile.InstanceInit, "()V")

	tests := []struct {
		name   string
		abrupt bool
		want   []int
	}{
		{"normal", false, []int{1, 2}},
		{"abrupt", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := newThread(v)
			var got []int
			f := NewFrame(m, []Value{Null})
			f.OnComplete(func(*Frame) { got = append(got, 1) })
			f.OnComplete(func(*Frame) { got = append(got, 2) })
			th.PushFrame(f)
			if popped := th.PopFrame(tt.abrupt); popped != f {
				t.Fatalf("PopFrame returned %v, want pushed frame", popped)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("callbacks ran %v, want %v", got, tt.want)
			}
			if th.Depth() != 0 {
				t.Errorf("Depth() = %d, want 0", th.Depth())
			}
		})
	}
}

func TestFrameIndexing(t *testing.T) {
	v := New()
	obj, _ := v.Registry().Lookup(ObjectClassName)
	m := obj.Method(classfile.InstanceInit, "()V")

	th := newThread(v)
	bottom, top := NewFrame(m, []Value{Null}), NewFrame(m, []Value{Null})
	th.PushFrame(bottom)
	th.PushFrame(top)
	if th.Top() != top || th.Frame(0) != top || th.Frame(1) != bottom {
		t.Error("Frame(0) should be the top and Frame(1) the caller")
	}
	if th.Frame(2) != nil {
		t.Error("Frame(2) should be nil")
	}
}

// counterClass counts how often its static initializer runs.
func counterClass() *classfile.Class {
	b := classfile.NewBuilder("Counter", ObjectClassName)
	b.AddField(classfile.AccStatic, "inits", "I")
	inits := b.FieldRef("Counter", "inits", "I")
	b.AddMethod(classfile.AccStatic, classfile.ClassInit, "()V", 2, 0,
		asm().Op(bytecode.Getstatic).U16(inits).
			Op(bytecode.Iconst1, bytecode.Iadd, bytecode.Putstatic).U16(inits).
			Op(bytecode.Return).Bytes())
	b.AddMethod(static, "get", "()I", 1, 0,
		asm().Op(bytecode.Getstatic).U16(inits).Op(bytecode.Ireturn).Bytes())
	return b.Build()
}

func TestClassInitializerRunsOnce(t *testing.T) {
	v := New()
	c := mustDefine(t, v, counterClass())
	if c.State != Uninitialized {
		t.Fatalf("State = %s before first use, want uninitialized", c.State)
	}
	for i := 0; i < 3; i++ {
		got, err := v.Invoke("Counter", "get", "()I")
		wantInt(t, got, err, 1)
	}
	if c.State != Initialized {
		t.Errorf("State = %s, want initialized", c.State)
	}
}

func TestSuperclassInitializedFirst(t *testing.T) {
	v := New()

	base := classfile.NewBuilder("Base", ObjectClassName)
	base.AddField(classfile.AccStatic, "x", "I")
	bx := base.FieldRef("Base", "x", "I")
	base.AddMethod(classfile.AccStatic, classfile.ClassInit, "()V", 1, 0,
		asm().Op(bytecode.Iconst1, bytecode.Putstatic).U16(bx).Op(bytecode.Return).Bytes())
	baseClass := mustDefine(t, v, base.Build())

	derived := classfile.NewBuilder("Derived", "Base")
	derived.AddField(classfile.AccStatic, "y", "I")
	dx := derived.FieldRef("Base", "x", "I")
	dy := derived.FieldRef("Derived", "y", "I")
	derived.AddMethod(classfile.AccStatic, classfile.ClassInit, "()V", 2, 0,
		asm().Op(bytecode.Getstatic).U16(dx).
			Op(bytecode.Iconst1, bytecode.Iadd, bytecode.Putstatic).U16(dy).
			Op(bytecode.Return).Bytes())
	derived.AddMethod(static, "get", "()I", 1, 0,
		asm().Op(bytecode.Getstatic).U16(dy).Op(bytecode.Ireturn).Bytes())
	derivedClass := mustDefine(t, v, derived.Build())

	th, err := v.NewThread("Derived", "get", "()I")
	if err != nil {
		t.Fatal(err)
	}
	if err := th.Step(); err != nil {
		t.Fatal(err)
	}
	if got := th.Top().Method.String(); got != "Base.<clinit>()V" {
		t.Fatalf("first frame pushed = %s, want Base.<clinit>()V", got)
	}
	if baseClass.State != Initializing || derivedClass.State != Uninitialized {
		t.Errorf("states = %s, %s; want initializing, uninitialized", baseClass.State, derivedClass.State)
	}
	if th.Top().PC != 0 || th.Frame(1).PC != 0 {
		t.Error("initialization must not advance the pc of the triggering frame")
	}

	if err := th.Run(); err != nil {
		t.Fatal(err)
	}
	got, _ := th.Result()
	if got != IntValue(2) {
		t.Errorf("result = %s, want int 2", got)
	}
}

func TestClassWithoutInitializerIsInitializedImmediately(t *testing.T) {
	v := New()
	c := mustDefine(t, v, adderClass())
	th, err := v.NewThread("Adder", "add", "(II)I", IntValue(1), IntValue(2))
	if err != nil {
		t.Fatal(err)
	}
	if err := th.Step(); err != nil {
		t.Fatal(err)
	}
	if c.State != Initialized {
		t.Errorf("State = %s, want initialized", c.State)
	}
	if th.Depth() != 1 || th.Top().PC != 1 {
		t.Errorf("first step should execute iload_0; depth %d pc %d", th.Depth(), th.Top().PC)
	}
}

func TestAbruptClassInitializerLeavesInitializing(t *testing.T) {
	v := New()
	b := classfile.NewBuilder("Broken", ObjectClassName)
	b.AddMethod(classfile.AccStatic, classfile.ClassInit, "()V", 2, 0,
		asm().Op(bytecode.Iconst1, bytecode.Iconst0, bytecode.Idiv, bytecode.Pop, bytecode.Return).Bytes())
	b.AddMethod(static, "run", "()V", 0, 0, asm().Op(bytecode.Return).Bytes())
	c := mustDefine(t, v, b.Build())

	_, err := v.Invoke("Broken", "run", "()V")
	wantUnhandled(t, err, ArithmeticException)
	if c.State != Initializing {
		t.Errorf("State = %s, want initializing", c.State)
	}
}

func TestNativeCalledWithCollapsedArguments(t *testing.T) {
	v := New()
	var got []Value
	v.Natives().Register("N", "sum", "(JI)J", func(t *Thread, args []Value) (Value, error) {
		got = args
		return LongValue(args[0].Long() + int64(args[1].Int())), nil
	})
	b := classfile.NewBuilder("N", ObjectClassName)
	b.AddNativeMethod(static, "sum", "(JI)J")
	mustDefine(t, v, b.Build())

	result, err := v.Invoke("N", "sum", "(JI)J", LongValue(40), IntValue(2))
	if err != nil {
		t.Fatal(err)
	}
	if result != LongValue(42) {
		t.Errorf("result = %s, want long 42", result)
	}
	if len(got) != 2 {
		t.Errorf("native got %d args, want 2", len(got))
	}
}

func TestNativeBoundAfterDefine(t *testing.T) {
	v := New()
	b := classfile.NewBuilder("N", ObjectClassName)
	b.AddNativeMethod(static, "seven", "()I")
	c := mustDefine(t, v, b.Build())
	if c.Method("seven", "()I").Native != nil {
		t.Fatal("native should not be bound yet")
	}
	v.Natives().Register("N", "seven", "()I", func(t *Thread, args []Value) (Value, error) {
		return IntValue(7), nil
	})
	got, err := v.Invoke("N", "seven", "()I")
	wantInt(t, got, err, 7)
}

func TestMissingNativeIsElided(t *testing.T) {
	v := New()
	b := classfile.NewBuilder("N", ObjectClassName)
	b.AddNativeMethod(static, "missing", "()D")
	b.AddNativeMethod(static, "nothing", "()V")
	mustDefine(t, v, b.Build())

	got, err := v.Invoke("N", "missing", "()D")
	if err != nil {
		t.Fatal(err)
	}
	if got != DoubleValue(0) {
		t.Errorf("elided native returned %s, want double 0", got)
	}
	if _, err := v.Invoke("N", "nothing", "()V"); err != nil {
		t.Errorf("elided void native: %v", err)
	}
}

func TestNativeThrow(t *testing.T) {
	v := New()
	v.Natives().Register("N", "fail", "()I", func(t *Thread, args []Value) (Value, error) {
		return Value{}, t.Throw(ArithmeticException, "boom")
	})
	b := classfile.NewBuilder("N", ObjectClassName)
	b.AddNativeMethod(static, "fail", "()I")
	mustDefine(t, v, b.Build())

	_, err := v.Invoke("N", "fail", "()I")
	fe := wantUnhandled(t, err, ArithmeticException)
	if msg, _ := ExceptionMessage(fe.Exception); msg != "boom" {
		t.Errorf("message = %q, want boom", msg)
	}
}

func TestBuiltinBitConversions(t *testing.T) {
	v := New()
	got, err := v.Invoke(FloatClassName, "floatToRawIntBits", "(F)I", FloatValue(1))
	wantInt(t, got, err, 0x3f800000)

	back, err := v.Invoke(DoubleClassName, "longBitsToDouble", "(J)D", LongValue(0x4000000000000000))
	if err != nil {
		t.Fatal(err)
	}
	if back != DoubleValue(2) {
		t.Errorf("longBitsToDouble = %s, want double 2", back)
	}
}

func TestBacktraceUsesLineNumbers(t *testing.T) {
	v := New()
	b := classfile.NewBuilder("Boom", ObjectClassName).SetSourceFile("Boom.java")
	b.AddMethod(static, "run", "()I", 2, 0,
		asm().Op(bytecode.Iconst1, bytecode.Iconst0, bytecode.Idiv, bytecode.Ireturn).Bytes())
	b.LineNumbers("run", "()I", classfile.LineNumber{StartPC: 0, Line: 6}, classfile.LineNumber{StartPC: 2, Line: 7})
	mustDefine(t, v, b.Build())

	_, err := v.Invoke("Boom", "run", "()I")
	fe := wantUnhandled(t, err, ArithmeticException)
	trace := ExceptionTrace(fe.Exception)
	if len(trace) != 1 {
		t.Fatalf("trace = %v, want one element", trace)
	}
	want := TraceElement{Class: "Boom", Method: "run", File: "Boom.java", Line: 7}
	if trace[0] != want {
		t.Errorf("trace[0] = %+v, want %+v", trace[0], want)
	}
	if got := trace[0].String(); got != "Boom.run(Boom.java:7)" {
		t.Errorf("String() = %q", got)
	}
}
