package vm

import (
	"github.com/chazu/jolt/pkg/bytecode"
	"github.com/chazu/jolt/pkg/descriptor"
)

func registerArrays() {
	register(execArrayLoad, opRange(bytecode.Iaload, bytecode.Saload)...)
	register(execArrayStore, opRange(bytecode.Iastore, bytecode.Sastore)...)
	register(execNewarray, bytecode.Newarray)
	register(execAnewarray, bytecode.Anewarray)
	register(execMultianewarray, bytecode.Multianewarray)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		ref := f.popRef()
		if ref.IsNull() {
			return t.Throw(NullPointerException, "Cannot read the array length because the array is null")
		}
		arr := ref.Array()
		if arr == nil {
			inconsistency("arraylength of %s in %s", ref, f.Method)
		}
		f.Push(IntValue(int32(arr.Len())))
		f.PC++
		return nil
	}, bytecode.Arraylength)
}

// arrayAccess pops an index and an array reference and checks both. It
// returns nil after raising an exception.
func (t *Thread) arrayAccess(f *Frame) (*Array, int, error) {
	index := f.popInt()
	ref := f.popRef()
	if ref.IsNull() {
		return nil, 0, t.Throw(NullPointerException, "array is null")
	}
	arr := ref.Array()
	if arr == nil {
		inconsistency("array access on %s in %s", ref, f.Method)
	}
	if !arr.InBounds(index) {
		return nil, 0, t.throwf(ArrayIndexOutOfBoundsException, "Index %d out of bounds for length %d", index, arr.Len())
	}
	return arr, int(index), nil
}

func execArrayLoad(t *Thread, f *Frame, op bytecode.Opcode) error {
	arr, i, err := t.arrayAccess(f)
	if arr == nil {
		return err
	}
	f.Push(arr.Data[i])
	f.PC++
	return nil
}

func execArrayStore(t *Thread, f *Frame, op bytecode.Opcode) error {
	var v Value
	switch op {
	case bytecode.Lastore:
		v = f.popKind(KindLong)
	case bytecode.Fastore:
		v = f.popKind(KindFloat)
	case bytecode.Dastore:
		v = f.popKind(KindDouble)
	case bytecode.Aastore:
		v = f.popRef()
	default:
		v = f.popKind(KindInt)
	}
	arr, i, err := t.arrayAccess(f)
	if arr == nil {
		return err
	}

	switch op {
	case bytecode.Bastore:
		if arr.Elem.Kind == descriptor.Boolean {
			v = IntValue(v.Int() & 1)
		} else {
			v = IntValue(int32(int8(v.Int())))
		}
	case bytecode.Castore:
		v = IntValue(int32(uint16(v.Int())))
	case bytecode.Sastore:
		v = IntValue(int32(int16(v.Int())))
	case bytecode.Aastore:
		if !v.IsNull() && !t.vm.registry.IsAssignable(v.Class().Type(), arr.Elem) {
			return t.Throw(ArrayStoreException, v.Class().Name)
		}
	}
	if kindFor(arr.Elem) != v.kind {
		inconsistency("%s of %s into %s in %s", op, v, arr.class.Name, f.Method)
	}
	arr.Data[i] = v
	f.PC++
	return nil
}

var newarrayTypes = map[uint8]descriptor.Kind{
	bytecode.TBoolean: descriptor.Boolean,
	bytecode.TChar:    descriptor.Char,
	bytecode.TFloat:   descriptor.Float,
	bytecode.TDouble:  descriptor.Double,
	bytecode.TByte:    descriptor.Byte,
	bytecode.TShort:   descriptor.Short,
	bytecode.TInt:     descriptor.Int,
	bytecode.TLong:    descriptor.Long,
}

func execNewarray(t *Thread, f *Frame, op bytecode.Opcode) error {
	kind, ok := newarrayTypes[f.u8(1)]
	if !ok {
		inconsistency("newarray with type %d in %s", f.u8(1), f.Method)
	}
	return t.allocArray(f, descriptor.ArrayOf(descriptor.Primitive(kind)), 2)
}

func execAnewarray(t *Thread, f *Frame, op bytecode.Opcode) error {
	elem := classType(f.className(f.u16(1)))
	return t.allocArray(f, descriptor.ArrayOf(elem), 3)
}

func (t *Thread) allocArray(f *Frame, at descriptor.Type, size int) error {
	n := f.popInt()
	if n < 0 {
		return t.throwf(NegativeArraySizeException, "%d", n)
	}
	arr, err := t.vm.registry.NewArray(at, int(n))
	if err != nil {
		return resolutionFailure(err)
	}
	f.Push(ArrayValue(arr))
	f.PC += size
	return nil
}

func execMultianewarray(t *Thread, f *Frame, op bytecode.Opcode) error {
	at := classType(f.className(f.u16(1)))
	dims := int(f.u8(3))
	if dims < 1 || dims > at.Dimensions() {
		inconsistency("multianewarray of %s with %d dimensions in %s", at, dims, f.Method)
	}
	counts := make([]int32, dims)
	for i := dims - 1; i >= 0; i-- {
		counts[i] = f.popInt()
	}
	for _, n := range counts {
		if n < 0 {
			return t.throwf(NegativeArraySizeException, "%d", n)
		}
	}
	arr, err := t.newMultiArray(at, counts)
	if err != nil {
		return resolutionFailure(err)
	}
	f.Push(ArrayValue(arr))
	f.PC += 4
	return nil
}

func (t *Thread) newMultiArray(at descriptor.Type, counts []int32) (*Array, error) {
	arr, err := t.vm.registry.NewArray(at, int(counts[0]))
	if err != nil {
		return nil, err
	}
	if len(counts) == 1 {
		return arr, nil
	}
	for i := range arr.Data {
		sub, err := t.newMultiArray(*at.Elem, counts[1:])
		if err != nil {
			return nil, err
		}
		arr.Data[i] = ArrayValue(sub)
	}
	return arr, nil
}
