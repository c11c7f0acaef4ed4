package vm

import (
	"math"
	"strings"
	"time"
)

// registerBuiltinNatives binds the natives declared by the bootstrap classes.
func registerBuiltinNatives(n *Natives) {
	noop := func(t *Thread, args []Value) (Value, error) { return Value{}, nil }
	n.Register(ObjectClassName, "registerNatives", "()V", noop)
	n.Register(ClassClassName, "registerNatives", "()V", noop)
	n.Register(SystemClassName, "registerNatives", "()V", noop)

	n.Register(ObjectClassName, "hashCode", "()I", func(t *Thread, args []Value) (Value, error) {
		return IntValue(identityHashOf(args[0])), nil
	})
	n.Register(ObjectClassName, "getClass", "()Ljava/lang/Class;", nativeGetClass)
	n.Register(ClassClassName, "getName", "()Ljava/lang/String;", nativeClassName)

	n.Register(SystemClassName, "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V", nativeArraycopy)
	n.Register(SystemClassName, "nanoTime", "()J", func(t *Thread, args []Value) (Value, error) {
		return LongValue(time.Now().UnixNano()), nil
	})
	n.Register(SystemClassName, "currentTimeMillis", "()J", func(t *Thread, args []Value) (Value, error) {
		return LongValue(time.Now().UnixMilli()), nil
	})
	n.Register(SystemClassName, "identityHashCode", "(Ljava/lang/Object;)I", func(t *Thread, args []Value) (Value, error) {
		return IntValue(identityHashOf(args[0])), nil
	})

	n.Register(ThrowableClassName, "fillInStackTrace", "()Ljava/lang/Throwable;", nativeFillInStackTrace)
	n.Register(StringClassName, "intern", "()Ljava/lang/String;", nativeIntern)

	n.Register(FloatClassName, "floatToRawIntBits", "(F)I", func(t *Thread, args []Value) (Value, error) {
		return IntValue(int32(math.Float32bits(args[0].Float()))), nil
	})
	n.Register(FloatClassName, "intBitsToFloat", "(I)F", func(t *Thread, args []Value) (Value, error) {
		return FloatValue(math.Float32frombits(uint32(args[0].Int()))), nil
	})
	n.Register(DoubleClassName, "doubleToRawLongBits", "(D)J", func(t *Thread, args []Value) (Value, error) {
		return LongValue(int64(math.Float64bits(args[0].Double()))), nil
	})
	n.Register(DoubleClassName, "longBitsToDouble", "(J)D", func(t *Thread, args []Value) (Value, error) {
		return DoubleValue(math.Float64frombits(uint64(args[0].Long()))), nil
	})
}

func identityHashOf(v Value) int32 {
	switch {
	case v.Object() != nil:
		return v.Object().HashCode()
	case v.Array() != nil:
		return v.Array().HashCode()
	}
	return 0
}

// nativeGetClass returns the receiver's mirror. A mirror that has not been
// constructed yet gets its constructor frame first; the native then runs
// again once that frame returns.
func nativeGetClass(t *Thread, args []Value) (Value, error) {
	mirror, err := t.vm.registry.Mirror(args[0].Class())
	if err != nil {
		return Value{}, resolutionFailure(err)
	}
	if t.initObject(mirror) {
		return Value{}, nil
	}
	return RefValue(mirror), nil
}

func nativeClassName(t *Thread, args []Value) (Value, error) {
	c, ok := args[0].Object().Native.(*Class)
	if !ok {
		inconsistency("java/lang/Class object without a class")
	}
	return t.vm.NewString(strings.ReplaceAll(c.Name, "/", "."))
}

func nativeIntern(t *Thread, args []Value) (Value, error) {
	s, ok := GoString(args[0])
	if !ok {
		inconsistency("intern on a malformed string")
	}
	o, err := t.vm.registry.Intern(s)
	if err != nil {
		return Value{}, resolutionFailure(err)
	}
	if t.initObject(o) {
		return Value{}, nil
	}
	return RefValue(o), nil
}

// nativeFillInStackTrace records the current backtrace on the receiver,
// leaving out the frames that are constructing it.
func nativeFillInStackTrace(t *Thread, args []Value) (Value, error) {
	exc := args[0].Object()
	trace := t.Backtrace()
	skip := 0
	for i, e := range trace {
		f := t.Frame(i)
		if e.Method == "fillInStackTrace" || e.Method == "<init>" && len(f.Locals) > 0 && f.Locals[0].Object() == exc {
			skip = i + 1
			continue
		}
		break
	}
	exc.Native = trace[skip:]
	return args[0], nil
}

func nativeArraycopy(t *Thread, args []Value) (Value, error) {
	src, srcPos, dst, dstPos, length := args[0], args[1].Int(), args[2], args[3].Int(), args[4].Int()
	if src.IsNull() || dst.IsNull() {
		return Value{}, t.Throw(NullPointerException, "arraycopy: null array")
	}
	sa, da := src.Array(), dst.Array()
	if sa == nil {
		return Value{}, t.throwf(ArrayStoreException, "arraycopy: source type %s is not an array", src.Class().Name)
	}
	if da == nil {
		return Value{}, t.throwf(ArrayStoreException, "arraycopy: destination type %s is not an array", dst.Class().Name)
	}
	if sa.Elem.IsReference() != da.Elem.IsReference() || !sa.Elem.IsReference() && sa.Elem.Kind != da.Elem.Kind {
		return Value{}, t.throwf(ArrayStoreException, "arraycopy: type mismatch: can not copy %s into %s", sa.class.Name, da.class.Name)
	}
	switch {
	case length < 0:
		return Value{}, t.throwf(ArrayIndexOutOfBoundsException, "arraycopy: length %d is negative", length)
	case srcPos < 0 || int(srcPos)+int(length) > sa.Len():
		return Value{}, t.throwf(ArrayIndexOutOfBoundsException, "arraycopy: last source index %d out of bounds for length %d", int(srcPos)+int(length), sa.Len())
	case dstPos < 0 || int(dstPos)+int(length) > da.Len():
		return Value{}, t.throwf(ArrayIndexOutOfBoundsException, "arraycopy: last destination index %d out of bounds for length %d", int(dstPos)+int(length), da.Len())
	}
	if da.Elem.IsReference() && !t.vm.registry.IsAssignable(sa.Elem, da.Elem) {
		for _, v := range sa.Data[srcPos : srcPos+length] {
			if !v.IsNull() && !t.vm.registry.IsAssignable(v.Class().Type(), da.Elem) {
				return Value{}, t.throwf(ArrayStoreException, "arraycopy: element type mismatch: %s", v.Class().Name)
			}
		}
	}
	copy(da.Data[dstPos:dstPos+length], sa.Data[srcPos:srcPos+length])
	return Value{}, nil
}
