package vm

import (
	"math"

	"github.com/chazu/jolt/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

func registerArithmetic() {
	register(intOp(func(a, b int32) int32 { return a + b }), bytecode.Iadd)
	register(intOp(func(a, b int32) int32 { return a - b }), bytecode.Isub)
	register(intOp(func(a, b int32) int32 { return a * b }), bytecode.Imul)
	register(intOp(func(a, b int32) int32 { return a << (b & 31) }), bytecode.Ishl)
	register(intOp(func(a, b int32) int32 { return a >> (b & 31) }), bytecode.Ishr)
	register(intOp(func(a, b int32) int32 { return int32(uint32(a) >> (b & 31)) }), bytecode.Iushr)
	register(intOp(func(a, b int32) int32 { return a & b }), bytecode.Iand)
	register(intOp(func(a, b int32) int32 { return a | b }), bytecode.Ior)
	register(intOp(func(a, b int32) int32 { return a ^ b }), bytecode.Ixor)

	register(longOp(func(a, b int64) int64 { return a + b }), bytecode.Ladd)
	register(longOp(func(a, b int64) int64 { return a - b }), bytecode.Lsub)
	register(longOp(func(a, b int64) int64 { return a * b }), bytecode.Lmul)
	register(longOp(func(a, b int64) int64 { return a & b }), bytecode.Land)
	register(longOp(func(a, b int64) int64 { return a | b }), bytecode.Lor)
	register(longOp(func(a, b int64) int64 { return a ^ b }), bytecode.Lxor)

	// Long shifts take an int shift distance.
	register(longShift(func(a int64, s int32) int64 { return a << (s & 63) }), bytecode.Lshl)
	register(longShift(func(a int64, s int32) int64 { return a >> (s & 63) }), bytecode.Lshr)
	register(longShift(func(a int64, s int32) int64 { return int64(uint64(a) >> (s & 63)) }), bytecode.Lushr)

	register(floatOp(func(a, b float32) float32 { return a + b }), bytecode.Fadd)
	register(floatOp(func(a, b float32) float32 { return a - b }), bytecode.Fsub)
	register(floatOp(func(a, b float32) float32 { return a * b }), bytecode.Fmul)
	register(floatOp(func(a, b float32) float32 { return a / b }), bytecode.Fdiv)
	register(floatOp(func(a, b float32) float32 {
		return float32(math.Mod(float64(a), float64(b)))
	}), bytecode.Frem)

	register(doubleOp(func(a, b float64) float64 { return a + b }), bytecode.Dadd)
	register(doubleOp(func(a, b float64) float64 { return a - b }), bytecode.Dsub)
	register(doubleOp(func(a, b float64) float64 { return a * b }), bytecode.Dmul)
	register(doubleOp(func(a, b float64) float64 { return a / b }), bytecode.Ddiv)
	register(doubleOp(math.Mod), bytecode.Drem)

	register(execIntDivision, bytecode.Idiv, bytecode.Irem)
	register(execLongDivision, bytecode.Ldiv, bytecode.Lrem)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		switch op {
		case bytecode.Ineg:
			f.Push(IntValue(-f.popInt()))
		case bytecode.Lneg:
			f.Push(LongValue(-f.popLong()))
		case bytecode.Fneg:
			f.Push(FloatValue(-f.popFloat()))
		case bytecode.Dneg:
			f.Push(DoubleValue(-f.popDouble()))
		}
		f.PC++
		return nil
	}, bytecode.Ineg, bytecode.Lneg, bytecode.Fneg, bytecode.Dneg)
}

func intOp(fn func(a, b int32) int32) instruction {
	return func(t *Thread, f *Frame, op bytecode.Opcode) error {
		b, a := f.popInt(), f.popInt()
		f.Push(IntValue(fn(a, b)))
		f.PC++
		return nil
	}
}

func longOp(fn func(a, b int64) int64) instruction {
	return func(t *Thread, f *Frame, op bytecode.Opcode) error {
		b, a := f.popLong(), f.popLong()
		f.Push(LongValue(fn(a, b)))
		f.PC++
		return nil
	}
}

func longShift(fn func(a int64, s int32) int64) instruction {
	return func(t *Thread, f *Frame, op bytecode.Opcode) error {
		s, a := f.popInt(), f.popLong()
		f.Push(LongValue(fn(a, s)))
		f.PC++
		return nil
	}
}

func floatOp(fn func(a, b float32) float32) instruction {
	return func(t *Thread, f *Frame, op bytecode.Opcode) error {
		b, a := f.popFloat(), f.popFloat()
		f.Push(FloatValue(fn(a, b)))
		f.PC++
		return nil
	}
}

func doubleOp(fn func(a, b float64) float64) instruction {
	return func(t *Thread, f *Frame, op bytecode.Opcode) error {
		b, a := f.popDouble(), f.popDouble()
		f.Push(DoubleValue(fn(a, b)))
		f.PC++
		return nil
	}
}

// Go defines MinInt32 / -1 as MinInt32 with remainder 0, matching the JVM.
func execIntDivision(t *Thread, f *Frame, op bytecode.Opcode) error {
	b, a := f.popInt(), f.popInt()
	if b == 0 {
		return t.Throw(ArithmeticException, "/ by zero")
	}
	if op == bytecode.Idiv {
		f.Push(IntValue(a / b))
	} else {
		f.Push(IntValue(a % b))
	}
	f.PC++
	return nil
}

func execLongDivision(t *Thread, f *Frame, op bytecode.Opcode) error {
	b, a := f.popLong(), f.popLong()
	if b == 0 {
		return t.Throw(ArithmeticException, "/ by zero")
	}
	if op == bytecode.Ldiv {
		f.Push(LongValue(a / b))
	} else {
		f.Push(LongValue(a % b))
	}
	f.PC++
	return nil
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func registerConversions() {
	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		var v Value
		switch op {
		case bytecode.I2l:
			v = LongValue(int64(f.popInt()))
		case bytecode.I2f:
			v = FloatValue(float32(f.popInt()))
		case bytecode.I2d:
			v = DoubleValue(float64(f.popInt()))
		case bytecode.L2i:
			v = IntValue(int32(f.popLong()))
		case bytecode.L2f:
			v = FloatValue(float32(f.popLong()))
		case bytecode.L2d:
			v = DoubleValue(float64(f.popLong()))
		case bytecode.F2i:
			v = IntValue(toInt32(float64(f.popFloat())))
		case bytecode.F2l:
			v = LongValue(toInt64(float64(f.popFloat())))
		case bytecode.F2d:
			v = DoubleValue(float64(f.popFloat()))
		case bytecode.D2i:
			v = IntValue(toInt32(f.popDouble()))
		case bytecode.D2l:
			v = LongValue(toInt64(f.popDouble()))
		case bytecode.D2f:
			v = FloatValue(float32(f.popDouble()))
		case bytecode.I2b:
			v = IntValue(int32(int8(f.popInt())))
		case bytecode.I2c:
			v = IntValue(int32(uint16(f.popInt())))
		case bytecode.I2s:
			v = IntValue(int32(int16(f.popInt())))
		}
		f.Push(v)
		f.PC++
		return nil
	}, opRange(bytecode.I2l, bytecode.I2s)...)
}

// toInt32 rounds toward zero; NaN becomes 0 and out-of-range values clamp.
func toInt32(x float64) int32 {
	switch {
	case math.IsNaN(x):
		return 0
	case x >= math.MaxInt32:
		return math.MaxInt32
	case x <= math.MinInt32:
		return math.MinInt32
	}
	return int32(x)
}

// toInt64 is toInt32 for longs.
func toInt64(x float64) int64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x >= math.MaxInt64:
		return math.MaxInt64
	case x <= math.MinInt64:
		return math.MinInt64
	}
	return int64(x)
}

// ---------------------------------------------------------------------------
// Comparisons
// ---------------------------------------------------------------------------

func registerComparisons() {
	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		b, a := f.popLong(), f.popLong()
		f.Push(IntValue(compare(a, b)))
		f.PC++
		return nil
	}, bytecode.Lcmp)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		b, a := float64(f.popFloat()), float64(f.popFloat())
		f.Push(IntValue(compareFloat(a, b, op == bytecode.Fcmpg)))
		f.PC++
		return nil
	}, bytecode.Fcmpl, bytecode.Fcmpg)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		b, a := f.popDouble(), f.popDouble()
		f.Push(IntValue(compareFloat(a, b, op == bytecode.Dcmpg)))
		f.PC++
		return nil
	}, bytecode.Dcmpl, bytecode.Dcmpg)
}

func compare[T int32 | int64 | float64](a, b T) int32 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareFloat orders a and b; an unordered pair (a NaN) yields 1 for the
// "g" variants and -1 for the "l" variants.
func compareFloat(a, b float64, nanIsGreater bool) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		if nanIsGreater {
			return 1
		}
		return -1
	}
	return compare(a, b)
}
