package vm

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the registry.
var (
	ErrClassNotFound  = errors.New("class not found")
	ErrMethodNotFound = errors.New("method not found")
	ErrFieldNotFound  = errors.New("field not found")
	ErrDuplicateClass = errors.New("class already defined")

	// ErrStepLimit is returned by RunN and Run when the step budget runs out
	// before the frame stack empties.
	ErrStepLimit = errors.New("step limit reached")
)

// ErrorKind classifies fatal conditions.
type ErrorKind uint8

const (
	// ResolutionFailure: a symbolic class, method or field reference could
	// not be resolved, or its descriptor did not match.
	ResolutionFailure ErrorKind = iota + 1
	// UnsupportedOperation: an opcode, constant kind or linkage form the
	// interpreter does not implement.
	UnsupportedOperation
	// InternalInconsistency: invalid pc, operand category mismatch, stack
	// underflow and similar defects.
	InternalInconsistency
	// UnhandledException: a modeled exception unwound the whole frame stack.
	UnhandledException
)

func (k ErrorKind) String() string {
	switch k {
	case ResolutionFailure:
		return "resolution failure"
	case UnsupportedOperation:
		return "unsupported operation"
	case InternalInconsistency:
		return "internal inconsistency"
	case UnhandledException:
		return "unhandled exception"
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// FatalError stops a thread. Class, Method and PC locate the instruction
// that was executing; Exception is set for UnhandledException.
type FatalError struct {
	Kind      ErrorKind
	Class     string
	Method    string
	PC        int
	Msg       string
	Exception *Object
	Err       error
}

func (e *FatalError) Error() string {
	msg := e.Kind.String()
	if e.Method != "" {
		msg += fmt.Sprintf(" in %s.%s at pc %d", e.Class, e.Method, e.PC)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatalf(kind ErrorKind, format string, args ...any) *FatalError {
	return &FatalError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func resolutionFailure(err error) *FatalError {
	return &FatalError{Kind: ResolutionFailure, Err: err}
}

// inconsistency panics with an InternalInconsistency error; Step recovers it.
func inconsistency(format string, args ...any) {
	panic(fatalf(InternalInconsistency, format, args...))
}
