package vm

import (
	"strings"
	"testing"

	"github.com/chazu/jolt/pkg/bytecode"
	"github.com/chazu/jolt/pkg/classfile"
)

// divideCode is: 1/0 guarded by two handlers at pcs 4 and 7 returning 1
// and 2 respectively.
//
//	0: iconst_1  1: iconst_0  2: idiv  3: ireturn
//	4: pop  5: iconst_1  6: ireturn
//	7: pop  8: iconst_2  9: ireturn
func divideCode(b *classfile.Builder) []byte {
	return asm().
		Op(bytecode.Iconst1, bytecode.Iconst0, bytecode.Idiv, bytecode.Ireturn).
		Op(bytecode.Pop, bytecode.Iconst1, bytecode.Ireturn).
		Op(bytecode.Pop, bytecode.Iconst2, bytecode.Ireturn).
		Bytes()
}

func TestFirstMatchingHandlerWins(t *testing.T) {
	tests := []struct {
		name  string
		first string
		other string
		want  int32
	}{
		{"specific first", ArithmeticException, "java/lang/RuntimeException", 1},
		{"general first", "java/lang/RuntimeException", ArithmeticException, 1},
		{"non-matching first", NullPointerException, "java/lang/Throwable", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runCodeIn(t, New(), "()I", 2, 0, divideCode, func(b *classfile.Builder) []classfile.Handler {
				return []classfile.Handler{
					{StartPC: 0, EndPC: 4, HandlerPC: 4, CatchType: b.Class(tt.first)},
					{StartPC: 0, EndPC: 4, HandlerPC: 7, CatchType: b.Class(tt.other)},
				}
			})
			wantInt(t, got, err, tt.want)
		})
	}
}

func TestCatchAllHandler(t *testing.T) {
	got, err := runCodeIn(t, New(), "()I", 2, 0, divideCode, func(b *classfile.Builder) []classfile.Handler {
		return []classfile.Handler{{StartPC: 0, EndPC: 4, HandlerPC: 7}}
	})
	wantInt(t, got, err, 2)
}

func TestHandlerRangeExcludesEnd(t *testing.T) {
	// The idiv is at pc 2; a range ending at 2 does not cover it.
	_, err := runCodeIn(t, New(), "()I", 2, 0, divideCode, func(b *classfile.Builder) []classfile.Handler {
		return []classfile.Handler{{StartPC: 0, EndPC: 2, HandlerPC: 4}}
	})
	wantUnhandled(t, err, ArithmeticException)
}

func TestUnhandledException(t *testing.T) {
	v := New()
	b := classfile.NewBuilder("Test", ObjectClassName)
	b.AddMethod(static, "run", "()I", 2, 0, divideCode(b))
	mustDefine(t, v, b.Build())

	th, err := v.NewThread("Test", "run", "()I")
	if err != nil {
		t.Fatal(err)
	}
	err = th.Run()
	fe := wantUnhandled(t, err, ArithmeticException)
	if msg, ok := ExceptionMessage(fe.Exception); !ok || msg != "/ by zero" {
		t.Errorf("message = %q, want \"/ by zero\"", msg)
	}
	if !strings.Contains(fe.Error(), "java/lang/ArithmeticException: / by zero") {
		t.Errorf("Error() = %q", fe.Error())
	}
	if th.Depth() != 0 {
		t.Errorf("Depth() = %d after unhandled exception, want 0", th.Depth())
	}
	if th.Err() != fe {
		t.Error("Err() should return the fatal error")
	}
}

func TestExceptionPropagatesToCaller(t *testing.T) {
	v := New()
	thrower := classfile.NewBuilder("Thrower", ObjectClassName)
	thrower.AddMethod(static, "boom", "()I", 2, 0, divideCode(thrower))
	mustDefine(t, v, thrower.Build())

	// 0: invokestatic boom  3: ireturn  4: pop  5: bipush 42  7: ireturn
	got, err := runCodeIn(t, v, "()I", 1, 0, func(b *classfile.Builder) []byte {
		return asm().
			Op(bytecode.Invokestatic).U16(b.MethodRef("Thrower", "boom", "()I")).
			Op(bytecode.Ireturn).
			Op(bytecode.Pop, bytecode.Bipush).U8(42).Op(bytecode.Ireturn).
			Bytes()
	}, func(b *classfile.Builder) []classfile.Handler {
		return []classfile.Handler{{StartPC: 0, EndPC: 3, HandlerPC: 4, CatchType: b.Class(ArithmeticException)}}
	})
	wantInt(t, got, err, 42)
}

func TestAthrowAndGetMessage(t *testing.T) {
	// 0: new  3: dup  4: ldc "bad"  6: invokespecial  9: athrow
	// 10: invokevirtual getMessage  13: areturn
	got, err := runCodeIn(t, New(), "()Ljava/lang/String;", 3, 0, func(b *classfile.Builder) []byte {
		rte := "java/lang/RuntimeException"
		return asm().
			Op(bytecode.New).U16(b.Class(rte)).
			Op(bytecode.Dup, bytecode.Ldc).U8(uint8(b.String("bad"))).
			Op(bytecode.Invokespecial).U16(b.MethodRef(rte, classfile.InstanceInit, "(Ljava/lang/String;)V")).
			Op(bytecode.Athrow).
			Op(bytecode.Invokevirtual).U16(b.MethodRef(ThrowableClassName, "getMessage", "()Ljava/lang/String;")).
			Op(bytecode.Areturn).
			Bytes()
	}, func(b *classfile.Builder) []classfile.Handler {
		return []classfile.Handler{{StartPC: 0, EndPC: 10, HandlerPC: 10, CatchType: b.Class(ThrowableClassName)}}
	})
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := GoString(got); !ok || s != "bad" {
		t.Errorf("getMessage() = %q, want bad", s)
	}
}

func TestAthrowNull(t *testing.T) {
	_, err := runCode(t, "()V", 1, 0, func(b *classfile.Builder) []byte {
		return asm().Op(bytecode.AconstNull, bytecode.Athrow).Bytes()
	})
	wantUnhandled(t, err, NullPointerException)
}

func TestThrowFromHandlerDoesNotAdvancePC(t *testing.T) {
	v := New()
	b := classfile.NewBuilder("Test", ObjectClassName)
	b.AddMethod(static, "run", "()I", 2, 0, divideCode(b))
	mustDefine(t, v, b.Build())

	th, err := v.NewThread("Test", "run", "()I")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := th.Step(); err != nil {
			t.Fatal(err)
		}
	}
	f := th.Frame(th.Depth() - 1)
	if f.PC != 2 {
		t.Errorf("pc after throwing idiv = %d, want 2", f.PC)
	}
	if f.Pending == nil || f.Pending.Class().Name != ArithmeticException {
		t.Errorf("pending = %v, want ArithmeticException", f.Pending)
	}
	if got := th.Top().Method.Name; got != classfile.InstanceInit {
		t.Errorf("top frame runs %s, want the exception constructor", got)
	}
}
