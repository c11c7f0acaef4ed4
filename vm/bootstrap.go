package vm

import (
	"fmt"

	"github.com/chazu/jolt/pkg/bytecode"
	"github.com/chazu/jolt/pkg/classfile"
)

// ---------------------------------------------------------------------------
// Bootstrap classes
// ---------------------------------------------------------------------------

const (
	SystemClassName = "java/lang/System"
	FloatClassName  = "java/lang/Float"
	DoubleClassName = "java/lang/Double"

	stringType    = "Ljava/lang/String;"
	throwableType = "Ljava/lang/Throwable;"
)

// exceptionHierarchy lists the built-in throwables below Throwable, each
// after its superclass.
var exceptionHierarchy = []struct {
	name  string
	super string
}{
	{"java/lang/Exception", ThrowableClassName},
	{"java/lang/Error", ThrowableClassName},
	{"java/lang/RuntimeException", "java/lang/Exception"},
	{"java/lang/LinkageError", "java/lang/Error"},
	{NullPointerException, "java/lang/RuntimeException"},
	{ArithmeticException, "java/lang/RuntimeException"},
	{"java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException"},
	{ArrayIndexOutOfBoundsException, "java/lang/IndexOutOfBoundsException"},
	{NegativeArraySizeException, "java/lang/RuntimeException"},
	{ClassCastException, "java/lang/RuntimeException"},
	{ArrayStoreException, "java/lang/RuntimeException"},
	{IllegalMonitorStateException, "java/lang/RuntimeException"},
	{IncompatibleClassChangeError, "java/lang/LinkageError"},
	{IllegalAccessError, IncompatibleClassChangeError},
	{AbstractMethodError, IncompatibleClassChangeError},
	{InstantiationError, IncompatibleClassChangeError},
}

func (v *VM) bootstrap() error {
	classes := []*classfile.Class{
		objectClass(),
		classClass(),
		stringClass(),
		systemClass(),
		boxClass(FloatClassName, "floatToRawIntBits", "(F)I", "intBitsToFloat", "(I)F"),
		boxClass(DoubleClassName, "doubleToRawLongBits", "(D)J", "longBitsToDouble", "(J)D"),
		throwableClass(),
	}
	for _, e := range exceptionHierarchy {
		classes = append(classes, exceptionClass(e.name, e.super))
	}
	for _, cf := range classes {
		if _, err := v.registry.Define(cf); err != nil {
			return fmt.Errorf("define %s: %w", cf.Name, err)
		}
	}
	v.log.Debugf("bootstrapped %d classes", len(classes))
	return nil
}

// superInit is the body of a no-argument constructor that only calls the
// superclass constructor.
func superInit(b *classfile.Builder, super string) []byte {
	return new(classfile.Asm).
		Op(bytecode.Aload0, bytecode.Invokespecial).U16(b.MethodRef(super, classfile.InstanceInit, "()V")).
		Op(bytecode.Return).
		Bytes()
}

func objectClass() *classfile.Class {
	b := classfile.NewBuilder(ObjectClassName, "").SetSourceFile("Object.java")
	b.AddMethod(classfile.AccPublic, classfile.InstanceInit, "()V", 0, 1,
		new(classfile.Asm).Op(bytecode.Return).Bytes())

	// equals: reference identity.
	equals := new(classfile.Asm).
		Op(bytecode.Aload0, bytecode.Aload1, bytecode.IfAcmpne).S16(5).
		Op(bytecode.Iconst1, bytecode.Ireturn).
		Op(bytecode.Iconst0, bytecode.Ireturn).
		Bytes()
	b.AddMethod(classfile.AccPublic, "equals", "(Ljava/lang/Object;)Z", 2, 2, equals)

	b.AddNativeMethod(classfile.AccPublic, "hashCode", "()I")
	b.AddNativeMethod(classfile.AccPublic|classfile.AccFinal, "getClass", "()Ljava/lang/Class;")
	b.AddNativeMethod(classfile.AccPrivate|classfile.AccStatic, "registerNatives", "()V")
	return b.Build()
}

func classClass() *classfile.Class {
	b := classfile.NewBuilder(ClassClassName, ObjectClassName).
		SetAccess(classfile.AccPublic | classfile.AccFinal).
		SetSourceFile("Class.java")
	b.AddMethod(classfile.AccPrivate, classfile.InstanceInit, "()V", 1, 1, superInit(b, ObjectClassName))
	b.AddNativeMethod(classfile.AccPublic, "getName", "()"+stringType)
	b.AddNativeMethod(classfile.AccPrivate|classfile.AccStatic, "registerNatives", "()V")
	return b.Build()
}

func stringClass() *classfile.Class {
	b := classfile.NewBuilder(StringClassName, ObjectClassName).
		SetAccess(classfile.AccPublic | classfile.AccFinal).
		SetSourceFile("String.java")
	b.AddField(classfile.AccPrivate|classfile.AccFinal, "value", "[C")
	b.AddField(classfile.AccPrivate, "hash", "I")

	// The character data of literals is filled in before construction, so
	// the constructor leaves value alone.
	b.AddMethod(classfile.AccPublic, classfile.InstanceInit, "()V", 1, 1, superInit(b, ObjectClassName))

	length := new(classfile.Asm).
		Op(bytecode.Aload0, bytecode.Getfield).U16(b.FieldRef(StringClassName, "value", "[C")).
		Op(bytecode.Arraylength, bytecode.Ireturn).
		Bytes()
	b.AddMethod(classfile.AccPublic, "length", "()I", 1, 1, length)
	b.AddNativeMethod(classfile.AccPublic, "intern", "()"+stringType)
	return b.Build()
}

func systemClass() *classfile.Class {
	b := classfile.NewBuilder(SystemClassName, ObjectClassName).
		SetAccess(classfile.AccPublic | classfile.AccFinal).
		SetSourceFile("System.java")
	static := classfile.AccPublic | classfile.AccStatic
	b.AddNativeMethod(static, "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V")
	b.AddNativeMethod(static, "nanoTime", "()J")
	b.AddNativeMethod(static, "currentTimeMillis", "()J")
	b.AddNativeMethod(static, "identityHashCode", "(Ljava/lang/Object;)I")
	b.AddNativeMethod(classfile.AccPrivate|classfile.AccStatic, "registerNatives", "()V")
	return b.Build()
}

// boxClass declares one of the numeric wrapper classes with its two
// bit-conversion natives.
func boxClass(name, toBits, toBitsDesc, fromBits, fromBitsDesc string) *classfile.Class {
	b := classfile.NewBuilder(name, ObjectClassName).
		SetAccess(classfile.AccPublic | classfile.AccFinal)
	static := classfile.AccPublic | classfile.AccStatic
	b.AddNativeMethod(static, toBits, toBitsDesc)
	b.AddNativeMethod(static, fromBits, fromBitsDesc)
	return b.Build()
}

func throwableClass() *classfile.Class {
	b := classfile.NewBuilder(ThrowableClassName, ObjectClassName).
		SetAccess(classfile.AccPublic).
		SetSourceFile("Throwable.java")
	b.AddField(classfile.AccPrivate, "detailMessage", stringType)
	b.AddField(classfile.AccPrivate, "cause", throwableType)

	message := b.FieldRef(ThrowableClassName, "detailMessage", stringType)
	cause := b.FieldRef(ThrowableClassName, "cause", throwableType)

	ctor := new(classfile.Asm).
		Op(bytecode.Aload0, bytecode.Invokespecial).U16(b.MethodRef(ObjectClassName, classfile.InstanceInit, "()V")).
		Op(bytecode.Aload0, bytecode.Invokevirtual).U16(b.MethodRef(ThrowableClassName, "fillInStackTrace", "()"+throwableType)).
		Op(bytecode.Pop, bytecode.Return).
		Bytes()
	b.AddMethod(classfile.AccPublic, classfile.InstanceInit, "()V", 1, 1, ctor)

	ctorMessage := new(classfile.Asm).
		Op(bytecode.Aload0, bytecode.Invokespecial).U16(b.MethodRef(ThrowableClassName, classfile.InstanceInit, "()V")).
		Op(bytecode.Aload0, bytecode.Aload1, bytecode.Putfield).U16(message).
		Op(bytecode.Return).
		Bytes()
	b.AddMethod(classfile.AccPublic, classfile.InstanceInit, "("+stringType+")V", 2, 2, ctorMessage)

	ctorCause := new(classfile.Asm).
		Op(bytecode.Aload0, bytecode.Aload1, bytecode.Invokespecial).U16(b.MethodRef(ThrowableClassName, classfile.InstanceInit, "("+stringType+")V")).
		Op(bytecode.Aload0, bytecode.Aload2, bytecode.Putfield).U16(cause).
		Op(bytecode.Return).
		Bytes()
	b.AddMethod(classfile.AccPublic, classfile.InstanceInit, throwableCtor, 2, 3, ctorCause)

	b.AddMethod(classfile.AccPublic, "getMessage", "()"+stringType, 1, 1,
		new(classfile.Asm).Op(bytecode.Aload0, bytecode.Getfield).U16(message).Op(bytecode.Areturn).Bytes())
	b.AddMethod(classfile.AccPublic, "getCause", "()"+throwableType, 1, 1,
		new(classfile.Asm).Op(bytecode.Aload0, bytecode.Getfield).U16(cause).Op(bytecode.Areturn).Bytes())
	b.AddNativeMethod(classfile.AccPublic, "fillInStackTrace", "()"+throwableType)
	return b.Build()
}

// exceptionClass declares a throwable whose three constructors delegate to
// the superclass.
func exceptionClass(name, super string) *classfile.Class {
	b := classfile.NewBuilder(name, super).SetAccess(classfile.AccPublic)
	b.AddMethod(classfile.AccPublic, classfile.InstanceInit, "()V", 1, 1, superInit(b, super))

	withMessage := new(classfile.Asm).
		Op(bytecode.Aload0, bytecode.Aload1, bytecode.Invokespecial).U16(b.MethodRef(super, classfile.InstanceInit, "("+stringType+")V")).
		Op(bytecode.Return).
		Bytes()
	b.AddMethod(classfile.AccPublic, classfile.InstanceInit, "("+stringType+")V", 2, 2, withMessage)

	withCause := new(classfile.Asm).
		Op(bytecode.Aload0, bytecode.Aload1, bytecode.Aload2, bytecode.Invokespecial).U16(b.MethodRef(super, classfile.InstanceInit, throwableCtor)).
		Op(bytecode.Return).
		Bytes()
	b.AddMethod(classfile.AccPublic, classfile.InstanceInit, throwableCtor, 3, 3, withCause)
	return b.Build()
}
