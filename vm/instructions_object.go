package vm

import (
	"github.com/chazu/jolt/pkg/bytecode"
	"github.com/chazu/jolt/pkg/classfile"
)

// ---------------------------------------------------------------------------
// Field access
// ---------------------------------------------------------------------------

func registerFields() {
	register(execGetstatic, bytecode.Getstatic)
	register(execPutstatic, bytecode.Putstatic)
	register(execGetfield, bytecode.Getfield)
	register(execPutfield, bytecode.Putfield)
}

func (t *Thread) resolveField(f *Frame) (*Field, error) {
	ref := f.memberRef(f.u16(1))
	field, err := t.vm.registry.ResolveField(ref.Owner, ref.Name, ref.Descriptor)
	if err != nil {
		t.vm.log.Errorf("resolve %s: %s", ref, err)
		return nil, resolutionFailure(err)
	}
	return field, nil
}

// mayWriteFinal reports whether the executing method may assign the final
// field: only the declaring class's constructor (instance fields) or static
// initializer (static fields) may.
func mayWriteFinal(f *Frame, field *Field) bool {
	if f.Method.Class != field.Class {
		return false
	}
	if field.IsStatic() {
		return f.Method.Name == classfile.ClassInit
	}
	return f.Method.Name == classfile.InstanceInit
}

func execGetstatic(t *Thread, f *Frame, op bytecode.Opcode) error {
	field, err := t.resolveField(f)
	if err != nil {
		return err
	}
	if !field.IsStatic() {
		return t.throwf(IncompatibleClassChangeError, "Expected static field %s", field)
	}
	if t.initClass(field.Class) {
		return nil
	}
	v, ok := field.Class.Static(field.Name)
	if !ok {
		inconsistency("no storage for static %s", field)
	}
	f.Push(v)
	f.PC += 3
	return nil
}

func execPutstatic(t *Thread, f *Frame, op bytecode.Opcode) error {
	field, err := t.resolveField(f)
	if err != nil {
		return err
	}
	if !field.IsStatic() {
		return t.throwf(IncompatibleClassChangeError, "Expected static field %s", field)
	}
	if field.IsFinal() && !mayWriteFinal(f, field) {
		return t.throwf(IllegalAccessError, "Update to static final field %s attempted from a different method (%s) than the initializer method <clinit>", field, f.Method.Name)
	}
	if t.initClass(field.Class) {
		return nil
	}
	v := f.Pop()
	checkKind(f, v, field.Type)
	field.Class.SetStatic(field.Name, v)
	f.PC += 3
	return nil
}

func execGetfield(t *Thread, f *Frame, op bytecode.Opcode) error {
	field, err := t.resolveField(f)
	if err != nil {
		return err
	}
	if field.IsStatic() {
		return t.throwf(IncompatibleClassChangeError, "Expected non-static field %s", field)
	}
	ref := f.popRef()
	if ref.IsNull() {
		return t.throwf(NullPointerException, "Cannot read field %q because value is null", field.Name)
	}
	obj := ref.Object()
	if obj == nil {
		inconsistency("getfield %s on %s", field, ref)
	}
	v, ok := obj.GetField(field.Class.Name, field.Name)
	if !ok {
		inconsistency("%s has no field %s", obj.class, field)
	}
	f.Push(v)
	f.PC += 3
	return nil
}

func execPutfield(t *Thread, f *Frame, op bytecode.Opcode) error {
	field, err := t.resolveField(f)
	if err != nil {
		return err
	}
	if field.IsStatic() {
		return t.throwf(IncompatibleClassChangeError, "Expected non-static field %s", field)
	}
	if field.IsFinal() && !mayWriteFinal(f, field) {
		return t.throwf(IllegalAccessError, "Update to final field %s attempted from a different method (%s) than the initializer method <init>", field, f.Method.Name)
	}
	v := f.Pop()
	checkKind(f, v, field.Type)
	ref := f.popRef()
	if ref.IsNull() {
		return t.throwf(NullPointerException, "Cannot assign field %q because value is null", field.Name)
	}
	obj := ref.Object()
	if obj == nil || !obj.SetField(field.Class.Name, field.Name, v) {
		inconsistency("putfield %s on %s", field, ref)
	}
	f.PC += 3
	return nil
}

// ---------------------------------------------------------------------------
// Objects, type checks, exceptions and monitors
// ---------------------------------------------------------------------------

func registerObjects() {
	register(execNew, bytecode.New)
	register(execCheckcast, bytecode.Checkcast)
	register(execInstanceof, bytecode.Instanceof)
	register(execAthrow, bytecode.Athrow)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		if f.popRef().IsNull() {
			return t.Throw(NullPointerException, "Cannot enter synchronized block because value is null")
		}
		f.PC++
		return nil
	}, bytecode.Monitorenter)

	register(func(t *Thread, f *Frame, op bytecode.Opcode) error {
		if f.popRef().IsNull() {
			return t.Throw(NullPointerException, "Cannot exit synchronized block because value is null")
		}
		f.PC++
		return nil
	}, bytecode.Monitorexit)
}

// Objects created by new are constructed by the bytecode that follows, so
// they start out Initialized.
func execNew(t *Thread, f *Frame, op bytecode.Opcode) error {
	c, err := t.vm.registry.ResolveClass(f.className(f.u16(1)))
	if err != nil {
		return resolutionFailure(err)
	}
	if c.IsInterface() || c.Flags&classfile.AccAbstract != 0 || c.IsArray() {
		return t.Throw(InstantiationError, c.Name)
	}
	if t.initClass(c) {
		return nil
	}
	obj := t.vm.registry.NewObject(c)
	obj.State = Initialized
	f.Push(RefValue(obj))
	f.PC += 3
	return nil
}

// instanceOf resolves class entry i and tests a non-null reference against it.
func (t *Thread) instanceOf(f *Frame, ref Value) (bool, string, error) {
	name := f.className(f.u16(1))
	if _, err := t.vm.registry.ResolveClass(name); err != nil {
		return false, name, resolutionFailure(err)
	}
	return t.vm.registry.IsAssignable(ref.Class().Type(), classType(name)), name, nil
}

func execCheckcast(t *Thread, f *Frame, op bytecode.Opcode) error {
	ref := f.Peek(0)
	if !ref.IsRef() {
		inconsistency("checkcast of %s in %s", ref, f.Method)
	}
	if !ref.IsNull() {
		ok, name, err := t.instanceOf(f, ref)
		if err != nil {
			return err
		}
		if !ok {
			return t.throwf(ClassCastException, "class %s cannot be cast to class %s", ref.Class().Name, name)
		}
	}
	f.PC += 3
	return nil
}

func execInstanceof(t *Thread, f *Frame, op bytecode.Opcode) error {
	ref := f.popRef()
	result := int32(0)
	if !ref.IsNull() {
		ok, _, err := t.instanceOf(f, ref)
		if err != nil {
			return err
		}
		if ok {
			result = 1
		}
	}
	f.Push(IntValue(result))
	f.PC += 3
	return nil
}

// athrow leaves the pc on the athrow so handler lookup covers it.
func execAthrow(t *Thread, f *Frame, op bytecode.Opcode) error {
	ref := f.popRef()
	if ref.IsNull() {
		return t.Throw(NullPointerException, "Cannot throw exception because value is null")
	}
	exc := ref.Object()
	if exc == nil || !exc.class.IsSubclassOfName(ThrowableClassName) {
		inconsistency("athrow of non-throwable %s in %s", ref, f.Method)
	}
	f.Pending = exc
	return nil
}
