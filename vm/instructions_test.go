package vm

import (
	"math"
	"strings"
	"testing"

	"github.com/chazu/jolt/pkg/bytecode"
	"github.com/chazu/jolt/pkg/classfile"
)

func code(ops ...bytecode.Opcode) func(*classfile.Builder) []byte {
	return func(*classfile.Builder) []byte { return asm().Op(ops...).Bytes() }
}

func TestIntArithmetic(t *testing.T) {
	tests := []struct {
		op   bytecode.Opcode
		a, b int32
		want int32
	}{
		{bytecode.Iadd, math.MaxInt32, 1, math.MinInt32},
		{bytecode.Isub, math.MinInt32, 1, math.MaxInt32},
		{bytecode.Imul, 0x10000, 0x10000, 0},
		{bytecode.Idiv, math.MinInt32, -1, math.MinInt32},
		{bytecode.Idiv, -7, 2, -3},
		{bytecode.Irem, -7, 3, -1},
		{bytecode.Ishl, 1, 33, 2},
		{bytecode.Ishr, -16, 2, -4},
		{bytecode.Iushr, -1, 28, 15},
		{bytecode.Iushr, -16, 0, -16},
		{bytecode.Iand, 0b1100, 0b1010, 0b1000},
		{bytecode.Ior, 0b1100, 0b1010, 0b1110},
		{bytecode.Ixor, 0b1100, 0b1010, 0b0110},
	}
	for _, tt := range tests {
		got, err := runCode(t, "(II)I", 2, 2, code(bytecode.Iload0, bytecode.Iload1, tt.op, bytecode.Ireturn), IntValue(tt.a), IntValue(tt.b))
		if err != nil {
			t.Errorf("%s(%d, %d): %v", tt.op, tt.a, tt.b, err)
			continue
		}
		if got.Int() != tt.want {
			t.Errorf("%s(%d, %d) = %d, want %d", tt.op, tt.a, tt.b, got.Int(), tt.want)
		}
	}
}

func TestLongArithmetic(t *testing.T) {
	tests := []struct {
		op   bytecode.Opcode
		a, b int64
		want int64
	}{
		{bytecode.Ladd, math.MaxInt64, 1, math.MinInt64},
		{bytecode.Lmul, 1 << 32, 1 << 32, 0},
		{bytecode.Ldiv, math.MinInt64, -1, math.MinInt64},
		{bytecode.Lrem, -7, 3, -1},
	}
	for _, tt := range tests {
		got, err := runCode(t, "(JJ)J", 4, 4, code(bytecode.Lload0, bytecode.Lload2, tt.op, bytecode.Lreturn), LongValue(tt.a), LongValue(tt.b))
		if err != nil {
			t.Errorf("%s(%d, %d): %v", tt.op, tt.a, tt.b, err)
			continue
		}
		if got.Long() != tt.want {
			t.Errorf("%s(%d, %d) = %d, want %d", tt.op, tt.a, tt.b, got.Long(), tt.want)
		}
	}
}

func TestLongShifts(t *testing.T) {
	tests := []struct {
		op   bytecode.Opcode
		a    int64
		s    int32
		want int64
	}{
		{bytecode.Lshl, 1, 65, 2},
		{bytecode.Lshr, -16, 2, -4},
		{bytecode.Lushr, -1, 60, 15},
	}
	for _, tt := range tests {
		got, err := runCode(t, "(JI)J", 3, 3, code(bytecode.Lload0, bytecode.Iload2, tt.op, bytecode.Lreturn), LongValue(tt.a), IntValue(tt.s))
		if err != nil {
			t.Fatal(err)
		}
		if got.Long() != tt.want {
			t.Errorf("%s(%d, %d) = %d, want %d", tt.op, tt.a, tt.s, got.Long(), tt.want)
		}
	}
}

func TestDivisionByZero(t *testing.T) {
	_, err := runCode(t, "(II)I", 2, 2, code(bytecode.Iload0, bytecode.Iload1, bytecode.Irem, bytecode.Ireturn), IntValue(1), IntValue(0))
	wantUnhandled(t, err, ArithmeticException)

	_, err = runCode(t, "(JJ)J", 4, 4, code(bytecode.Lload0, bytecode.Lload2, bytecode.Ldiv, bytecode.Lreturn), LongValue(1), LongValue(0))
	wantUnhandled(t, err, ArithmeticException)
}

func TestFloatDivisionByZeroIsInfinite(t *testing.T) {
	got, err := runCode(t, "(DD)D", 4, 4, code(bytecode.Dload0, bytecode.Dload2, bytecode.Ddiv, bytecode.Dreturn), DoubleValue(1), DoubleValue(0))
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsInf(got.Double(), 1) {
		t.Errorf("1.0/0.0 = %v, want +Inf", got.Double())
	}
}

func TestFloatToIntConversions(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		in   float32
		want int32
	}{
		{3.9, 3},
		{-3.9, -3},
		{nan, 0},
		{1e20, math.MaxInt32},
		{-1e20, math.MinInt32},
	}
	for _, tt := range tests {
		got, err := runCode(t, "(F)I", 1, 1, code(bytecode.Fload0, bytecode.F2i, bytecode.Ireturn), FloatValue(tt.in))
		wantInt(t, got, err, tt.want)
	}

	got, err := runCode(t, "(D)J", 2, 2, code(bytecode.Dload0, bytecode.D2l, bytecode.Lreturn), DoubleValue(math.NaN()))
	if err != nil {
		t.Fatal(err)
	}
	if got.Long() != 0 {
		t.Errorf("d2l(NaN) = %d, want 0", got.Long())
	}
}

func TestNarrowingConversions(t *testing.T) {
	tests := []struct {
		op   bytecode.Opcode
		in   int32
		want int32
	}{
		{bytecode.I2b, 200, -56},
		{bytecode.I2c, -1, 65535},
		{bytecode.I2s, 70000, 4464},
	}
	for _, tt := range tests {
		got, err := runCode(t, "(I)I", 1, 1, code(bytecode.Iload0, tt.op, bytecode.Ireturn), IntValue(tt.in))
		wantInt(t, got, err, tt.want)
	}
}

func TestComparisons(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		op   bytecode.Opcode
		a, b float32
		want int32
	}{
		{bytecode.Fcmpl, 1, 2, -1},
		{bytecode.Fcmpg, 2, 1, 1},
		{bytecode.Fcmpl, 2, 2, 0},
		{bytecode.Fcmpl, nan, 1, -1},
		{bytecode.Fcmpg, nan, 1, 1},
	}
	for _, tt := range tests {
		got, err := runCode(t, "(FF)I", 2, 2, code(bytecode.Fload0, bytecode.Fload1, tt.op, bytecode.Ireturn), FloatValue(tt.a), FloatValue(tt.b))
		wantInt(t, got, err, tt.want)
	}

	got, err := runCode(t, "(JJ)I", 4, 4, code(bytecode.Lload0, bytecode.Lload2, bytecode.Lcmp, bytecode.Ireturn), LongValue(-5), LongValue(3))
	wantInt(t, got, err, -1)
}

func TestConditionalBranches(t *testing.T) {
	// 0: iload_0  1: iload_1  2: if_icmplt +5  5: iconst_0  6: ireturn  7: iconst_1  8: ireturn
	build := func(*classfile.Builder) []byte {
		return asm().
			Op(bytecode.Iload0, bytecode.Iload1, bytecode.IfIcmplt).S16(5).
			Op(bytecode.Iconst0, bytecode.Ireturn).
			Op(bytecode.Iconst1, bytecode.Ireturn).
			Bytes()
	}
	tests := []struct {
		a, b int32
		want int32
	}{
		{1, 2, 1},
		{2, 1, 0},
		{2, 2, 0},
	}
	for _, tt := range tests {
		got, err := runCode(t, "(II)I", 2, 2, build, IntValue(tt.a), IntValue(tt.b))
		wantInt(t, got, err, tt.want)
	}
}

func TestTableswitch(t *testing.T) {
	// tableswitch at pc 1, operands from pc 4 to 28; cases at 28, 31, 34,
	// default at 37. Offsets are relative to pc 1.
	build := func(*classfile.Builder) []byte {
		return asm().
			Op(bytecode.Iload0, bytecode.Tableswitch).Align().
			S32(36).S32(0).S32(2).
			S32(27).S32(30).S32(33).
			Op(bytecode.Bipush).U8(10).Op(bytecode.Ireturn).
			Op(bytecode.Bipush).U8(11).Op(bytecode.Ireturn).
			Op(bytecode.Bipush).U8(12).Op(bytecode.Ireturn).
			Op(bytecode.IconstM1, bytecode.Ireturn).
			Bytes()
	}
	tests := []struct{ in, want int32 }{
		{0, 10}, {1, 11}, {2, 12}, {3, -1}, {-5, -1},
	}
	for _, tt := range tests {
		got, err := runCode(t, "(I)I", 1, 1, build, IntValue(tt.in))
		wantInt(t, got, err, tt.want)
	}
}

func TestLookupswitch(t *testing.T) {
	// lookupswitch at pc 1, operands from pc 4 to 28; cases at 28 and 30,
	// default at 32.
	build := func(*classfile.Builder) []byte {
		return asm().
			Op(bytecode.Iload0, bytecode.Lookupswitch).Align().
			S32(31).S32(2).
			S32(10).S32(27).
			S32(20).S32(29).
			Op(bytecode.Iconst1, bytecode.Ireturn).
			Op(bytecode.Iconst2, bytecode.Ireturn).
			Op(bytecode.Iconst0, bytecode.Ireturn).
			Bytes()
	}
	tests := []struct{ in, want int32 }{
		{10, 1}, {20, 2}, {5, 0},
	}
	for _, tt := range tests {
		got, err := runCode(t, "(I)I", 1, 1, build, IntValue(tt.in))
		wantInt(t, got, err, tt.want)
	}
}

func TestJsrRet(t *testing.T) {
	// 0: jsr +5  3: iload_0  4: ireturn  5: astore_1  6: iinc 0 10  9: ret 1
	build := func(*classfile.Builder) []byte {
		return asm().
			Op(bytecode.Jsr).S16(5).
			Op(bytecode.Iload0, bytecode.Ireturn).
			Op(bytecode.Astore1, bytecode.Iinc).U8(0).U8(10).
			Op(bytecode.Ret).U8(1).
			Bytes()
	}
	got, err := runCode(t, "(I)I", 1, 2, build, IntValue(5))
	wantInt(t, got, err, 15)
}

func TestWideIinc(t *testing.T) {
	build := func(*classfile.Builder) []byte {
		return asm().
			Op(bytecode.Wide, bytecode.Iinc).U16(0).S16(1000).
			Op(bytecode.Wide, bytecode.Iload).U16(0).
			Op(bytecode.Ireturn).
			Bytes()
	}
	got, err := runCode(t, "(I)I", 1, 1, build, IntValue(1))
	wantInt(t, got, err, 1001)
}

func TestStackOps(t *testing.T) {
	i := func(n int32) Value { return IntValue(n) }
	l := func(n int64) Value { return LongValue(n) }
	tests := []struct {
		name string
		op   bytecode.Opcode
		in   []Value
		want []Value
	}{
		{"pop2 two ints", bytecode.Pop2, []Value{i(1), i(2), i(3)}, []Value{i(1)}},
		{"pop2 long", bytecode.Pop2, []Value{i(1), l(2)}, []Value{i(1)}},
		{"dup_x1", bytecode.DupX1, []Value{i(1), i(2)}, []Value{i(2), i(1), i(2)}},
		{"dup_x2 form 1", bytecode.DupX2, []Value{i(1), i(2), i(3)}, []Value{i(3), i(1), i(2), i(3)}},
		{"dup_x2 form 2", bytecode.DupX2, []Value{l(1), i(2)}, []Value{i(2), l(1), i(2)}},
		{"dup2 form 1", bytecode.Dup2, []Value{i(1), i(2)}, []Value{i(1), i(2), i(1), i(2)}},
		{"dup2 form 2", bytecode.Dup2, []Value{l(1)}, []Value{l(1), l(1)}},
		{"dup2_x1 form 1", bytecode.Dup2X1, []Value{i(1), i(2), i(3)}, []Value{i(2), i(3), i(1), i(2), i(3)}},
		{"dup2_x1 form 2", bytecode.Dup2X1, []Value{i(1), l(2)}, []Value{l(2), i(1), l(2)}},
		{"dup2_x2 form 1", bytecode.Dup2X2, []Value{i(1), i(2), i(3), i(4)}, []Value{i(3), i(4), i(1), i(2), i(3), i(4)}},
		{"dup2_x2 form 2", bytecode.Dup2X2, []Value{i(1), i(2), l(3)}, []Value{l(3), i(1), i(2), l(3)}},
		{"dup2_x2 form 3", bytecode.Dup2X2, []Value{l(1), i(2), i(3)}, []Value{i(2), i(3), l(1), i(2), i(3)}},
		{"dup2_x2 form 4", bytecode.Dup2X2, []Value{l(1), l(2)}, []Value{l(2), l(1), l(2)}},
		{"swap", bytecode.Swap, []Value{i(1), i(2)}, []Value{i(2), i(1)}},
	}

	v := New()
	obj, _ := v.Registry().Lookup(ObjectClassName)
	m := obj.Method(classfile.InstanceInit, "()V")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFrame(m, []Value{Null})
			pushAll(f, tt.in...)
			if err := instructions[tt.op](newThread(v), f, tt.op); err != nil {
				t.Fatal(err)
			}
			got := f.Stack()
			if len(got) != len(tt.want) {
				t.Fatalf("stack = %v, want %v", got, tt.want)
			}
			for k := range got {
				if got[k] != tt.want[k] {
					t.Fatalf("stack = %v, want %v", got, tt.want)
				}
			}
			if f.PC != 1 {
				t.Errorf("pc = %d, want 1", f.PC)
			}
		})
	}
}

func TestCategoryMismatchIsInconsistency(t *testing.T) {
	_, err := runCode(t, "()V", 2, 0, code(bytecode.Lconst0, bytecode.Pop, bytecode.Return))
	wantFatal(t, err, InternalInconsistency)
}

func TestUnsupportedOpcode(t *testing.T) {
	_, err := runCode(t, "()V", 0, 0, code(bytecode.Breakpoint))
	fe := wantFatal(t, err, UnsupportedOperation)
	if fe.Class != "Test" || fe.PC != 0 {
		t.Errorf("fatal error located at %s pc %d, want Test pc 0", fe.Class, fe.PC)
	}
}

func TestInvokedynamicIsUnsupported(t *testing.T) {
	_, err := runCode(t, "()V", 1, 0, func(b *classfile.Builder) []byte {
		idx := b.InvokeDynamic("run", "()Ljava/lang/Runnable;", "Boot", "bootstrap", "()V")
		return asm().Op(bytecode.Invokedynamic).U16(idx).U16(0).Op(bytecode.Return).Bytes()
	})
	fe := wantFatal(t, err, UnsupportedOperation)
	if !strings.Contains(fe.Msg, "Boot.bootstrap") {
		t.Errorf("message %q should name the bootstrap method", fe.Msg)
	}
}

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

func TestLdcConstants(t *testing.T) {
	got, err := runCode(t, "()I", 1, 0, func(b *classfile.Builder) []byte {
		return asm().Op(bytecode.Ldc).U8(uint8(b.Integer(100000))).Op(bytecode.Ireturn).Bytes()
	})
	wantInt(t, got, err, 100000)

	got, err = runCode(t, "()J", 2, 0, func(b *classfile.Builder) []byte {
		return asm().Op(bytecode.Ldc2W).U16(b.Long(1 << 50)).Op(bytecode.Lreturn).Bytes()
	})
	if err != nil || got != LongValue(1<<50) {
		t.Errorf("ldc2_w long = %s, %v; want long %d", got, err, int64(1<<50))
	}

	got, err = runCode(t, "()D", 2, 0, func(b *classfile.Builder) []byte {
		return asm().Op(bytecode.Ldc2W).U16(b.Double(2.5)).Op(bytecode.Dreturn).Bytes()
	})
	if err != nil || got != DoubleValue(2.5) {
		t.Errorf("ldc2_w double = %s, %v; want double 2.5", got, err)
	}
}

func TestLdcStringIsInternedAndConstructed(t *testing.T) {
	v := New()
	// 0: ldc "hi"  2: ldc "hi"  4: if_acmpne +5  7: iconst_1  8: ireturn  9: iconst_0  10: ireturn
	got, err := runCodeIn(t, v, "()I", 2, 0, func(b *classfile.Builder) []byte {
		s := uint8(b.String("hi"))
		return asm().
			Op(bytecode.Ldc).U8(s).Op(bytecode.Ldc).U8(s).
			Op(bytecode.IfAcmpne).S16(5).
			Op(bytecode.Iconst1, bytecode.Ireturn).
			Op(bytecode.Iconst0, bytecode.Ireturn).
			Bytes()
	}, nil)
	wantInt(t, got, err, 1)

	o, err := v.Registry().Intern("hi")
	if err != nil {
		t.Fatal(err)
	}
	if o.State != Initialized {
		t.Errorf("literal state = %s, want initialized", o.State)
	}
}

func TestLdcClassMirror(t *testing.T) {
	got, err := runCode(t, "()Ljava/lang/String;", 1, 0, func(b *classfile.Builder) []byte {
		return asm().
			Op(bytecode.Ldc).U8(uint8(b.Class("demo/Thing"))).
			Op(bytecode.Invokevirtual).U16(b.MethodRef(ClassClassName, "getName", "()Ljava/lang/String;")).
			Op(bytecode.Areturn).
			Bytes()
	})
	if err == nil {
		t.Fatalf("got %s, want resolution failure for an unknown class", got)
	}
	wantFatal(t, err, ResolutionFailure)

	got, err = runCode(t, "()Ljava/lang/String;", 1, 0, func(b *classfile.Builder) []byte {
		return asm().
			Op(bytecode.Ldc).U8(uint8(b.Class(StringClassName))).
			Op(bytecode.Invokevirtual).U16(b.MethodRef(ClassClassName, "getName", "()Ljava/lang/String;")).
			Op(bytecode.Areturn).
			Bytes()
	})
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := GoString(got); s != "java.lang.String" {
		t.Errorf("getName() = %q, want java.lang.String", s)
	}
}

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

func TestArrayBounds(t *testing.T) {
	build := code(bytecode.Iconst3, bytecode.Newarray, bytecode.Opcode(bytecode.TInt), bytecode.Iload0, bytecode.Iaload, bytecode.Ireturn)

	got, err := runCode(t, "(I)I", 2, 1, build, IntValue(2))
	wantInt(t, got, err, 0)

	for _, index := range []int32{3, -1} {
		_, err := runCode(t, "(I)I", 2, 1, build, IntValue(index))
		fe := wantUnhandled(t, err, ArrayIndexOutOfBoundsException)
		msg, _ := ExceptionMessage(fe.Exception)
		if !strings.HasPrefix(msg, "Index ") || !strings.HasSuffix(msg, "out of bounds for length 3") {
			t.Errorf("message = %q", msg)
		}
	}
}

func TestNullArray(t *testing.T) {
	_, err := runCode(t, "()I", 1, 0, code(bytecode.AconstNull, bytecode.Arraylength, bytecode.Ireturn))
	wantUnhandled(t, err, NullPointerException)
}

func TestNegativeArraySize(t *testing.T) {
	_, err := runCode(t, "()V", 1, 0, code(bytecode.IconstM1, bytecode.Newarray, bytecode.Opcode(bytecode.TInt), bytecode.Return))
	wantUnhandled(t, err, NegativeArraySizeException)
}

func TestByteArrayStoreTruncates(t *testing.T) {
	got, err := runCode(t, "()I", 4, 0, func(*classfile.Builder) []byte {
		return asm().
			Op(bytecode.Iconst1, bytecode.Newarray).U8(bytecode.TByte).
			Op(bytecode.Dup, bytecode.Iconst0, bytecode.Sipush).S16(300).
			Op(bytecode.Bastore, bytecode.Iconst0, bytecode.Baload, bytecode.Ireturn).
			Bytes()
	})
	wantInt(t, got, err, 44)
}

func TestAastoreChecksElementType(t *testing.T) {
	_, err := runCode(t, "()V", 5, 0, func(b *classfile.Builder) []byte {
		return asm().
			Op(bytecode.Iconst1, bytecode.Anewarray).U16(b.Class(StringClassName)).
			Op(bytecode.Iconst0, bytecode.New).U16(b.Class(ObjectClassName)).
			Op(bytecode.Dup, bytecode.Invokespecial).U16(b.MethodRef(ObjectClassName, classfile.InstanceInit, "()V")).
			Op(bytecode.Aastore, bytecode.Return).
			Bytes()
	})
	wantUnhandled(t, err, ArrayStoreException)
}

func TestMultianewarray(t *testing.T) {
	got, err := runCode(t, "()I", 2, 0, func(b *classfile.Builder) []byte {
		return asm().
			Op(bytecode.Iconst2, bytecode.Iconst3, bytecode.Multianewarray).U16(b.Class("[[I")).U8(2).
			Op(bytecode.Iconst1, bytecode.Aaload, bytecode.Arraylength, bytecode.Ireturn).
			Bytes()
	})
	wantInt(t, got, err, 3)
}

func TestSystemArraycopyOverlapping(t *testing.T) {
	// a = new int[3]; a[0] = 7; System.arraycopy(a, 0, a, 1, 2); return a[1]
	got, err := runCode(t, "()I", 5, 1, func(b *classfile.Builder) []byte {
		return asm().
			Op(bytecode.Iconst3, bytecode.Newarray).U8(bytecode.TInt).Op(bytecode.Astore0).
			Op(bytecode.Aload0, bytecode.Iconst0, bytecode.Bipush).U8(7).Op(bytecode.Iastore).
			Op(bytecode.Aload0, bytecode.Iconst0, bytecode.Aload0, bytecode.Iconst1, bytecode.Iconst2).
			Op(bytecode.Invokestatic).U16(b.MethodRef(SystemClassName, "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V")).
			Op(bytecode.Aload0, bytecode.Iconst1, bytecode.Iaload, bytecode.Ireturn).
			Bytes()
	})
	wantInt(t, got, err, 7)
}

// ---------------------------------------------------------------------------
// Type checks and monitors
// ---------------------------------------------------------------------------

func TestInstanceofAndCheckcast(t *testing.T) {
	got, err := runCode(t, "()I", 2, 0, func(b *classfile.Builder) []byte {
		return asm().
			Op(bytecode.Ldc).U8(uint8(b.String("x"))).
			Op(bytecode.Instanceof).U16(b.Class(ObjectClassName)).
			Op(bytecode.AconstNull, bytecode.Instanceof).U16(b.Class(StringClassName)).
			Op(bytecode.Iadd, bytecode.Ireturn).
			Bytes()
	})
	wantInt(t, got, err, 1)

	_, err = runCode(t, "()V", 2, 0, func(b *classfile.Builder) []byte {
		return asm().
			Op(bytecode.New).U16(b.Class(ObjectClassName)).
			Op(bytecode.Checkcast).U16(b.Class(StringClassName)).
			Op(bytecode.Pop, bytecode.Return).
			Bytes()
	})
	wantUnhandled(t, err, ClassCastException)
}

func TestMonitorOnNull(t *testing.T) {
	_, err := runCode(t, "()V", 1, 0, code(bytecode.AconstNull, bytecode.Monitorenter, bytecode.Return))
	wantUnhandled(t, err, NullPointerException)
}
