package vm

import (
	"fmt"

	"github.com/chazu/jolt/pkg/classfile"
)

// Exception class names raised by the interpreter itself.
const (
	NullPointerException           = "java/lang/NullPointerException"
	ArithmeticException            = "java/lang/ArithmeticException"
	ArrayIndexOutOfBoundsException = "java/lang/ArrayIndexOutOfBoundsException"
	NegativeArraySizeException     = "java/lang/NegativeArraySizeException"
	ClassCastException             = "java/lang/ClassCastException"
	ArrayStoreException            = "java/lang/ArrayStoreException"
	IllegalAccessError             = "java/lang/IllegalAccessError"
	IncompatibleClassChangeError   = "java/lang/IncompatibleClassChangeError"
	AbstractMethodError            = "java/lang/AbstractMethodError"
	IllegalMonitorStateException   = "java/lang/IllegalMonitorStateException"
	InstantiationError             = "java/lang/InstantiationError"
)

// throwableCtor is the constructor Throw runs on new exceptions.
const throwableCtor = "(Ljava/lang/String;Ljava/lang/Throwable;)V"

// Throw raises a new exception of the named class in the executing frame.
//
// The exception object is created immediately and recorded as the frame's
// pending exception, then its (message, cause) constructor is pushed so it
// runs before handler lookup. If the exception class still needs static
// initialization, that frame goes on top and runs first.
//
// Instructions that throw return without advancing the pc, so handler
// lookup sees the faulting instruction. The returned error is non-nil only
// when the exception class cannot be resolved.
func (t *Thread) Throw(className, msg string) error {
	f := t.Top()
	if f == nil {
		return fatalf(InternalInconsistency, "throw %s with no frame", className)
	}
	reg := t.vm.registry
	c, err := reg.ResolveClass(className)
	if err != nil {
		return resolutionFailure(err)
	}
	if !c.IsSubclassOfName(ThrowableClassName) {
		return fatalf(InternalInconsistency, "%s is not throwable", className)
	}

	exc := reg.NewObject(c)
	exc.Native = t.Backtrace()
	f.Pending = exc
	t.vm.log.Debugf("throw %s: %s", className, msg)

	ctor := c.vtable.Lookup(classfile.InstanceInit, throwableCtor)
	if ctor == nil {
		exc.State = Initialized
		t.initClass(c)
		return nil
	}
	message := Null
	if msg != "" {
		s, err := reg.NewString(msg)
		if err != nil {
			return resolutionFailure(err)
		}
		message = RefValue(s)
	}
	exc.State = Initializing
	fr := NewFrame(ctor, []Value{RefValue(exc), message, Null})
	fr.OnComplete(func(*Frame) {
		exc.State = Initialized
	})
	t.PushFrame(fr)
	t.initClass(c)
	return nil
}

// throwf is Throw with a formatted message.
func (t *Thread) throwf(className, format string, args ...any) error {
	return t.Throw(className, fmt.Sprintf(format, args...))
}

// handlerFor returns the pc of the first exception table entry of f that
// covers f.PC and catches exc. Entries are tried in table order.
func (t *Thread) handlerFor(f *Frame, exc *Object) (int, bool) {
	code := f.Method.Code
	if code == nil {
		return 0, false
	}
	for _, h := range code.ExceptionTable {
		if f.PC < int(h.StartPC) || f.PC >= int(h.EndPC) {
			continue
		}
		if h.CatchType == 0 {
			return int(h.HandlerPC), true
		}
		name, err := f.Method.Class.File.ClassName(h.CatchType)
		if err != nil {
			inconsistency("exception table of %s: %v", f.Method, err)
		}
		if exc.class.IsSubclassOfName(name) {
			return int(h.HandlerPC), true
		}
	}
	return 0, false
}

// describeException renders an exception as "class: message".
func (t *Thread) describeException(exc *Object) string {
	msg, _ := exc.GetField(ThrowableClassName, "detailMessage")
	if s, ok := GoString(msg); ok {
		return exc.class.Name + ": " + s
	}
	return exc.class.Name
}

// ExceptionMessage returns the detail message of a throwable, if set.
func ExceptionMessage(exc *Object) (string, bool) {
	if exc == nil {
		return "", false
	}
	msg, _ := exc.GetField(ThrowableClassName, "detailMessage")
	return GoString(msg)
}

// ExceptionTrace returns the backtrace captured when exc was thrown or last
// filled in.
func ExceptionTrace(exc *Object) []TraceElement {
	if exc == nil {
		return nil
	}
	trace, _ := exc.Native.([]TraceElement)
	return trace
}
