package vm

import (
	"strings"

	"github.com/chazu/jolt/pkg/bytecode"
	"github.com/chazu/jolt/pkg/classfile"
)

// DispatchMode says where method selection starts for one call.
type DispatchMode uint8

const (
	// DispatchStatic: the resolved method itself, no receiver.
	DispatchStatic DispatchMode = iota
	// DispatchNonVirtual: lookup starts at the referenced class.
	DispatchNonVirtual
	// DispatchVirtual: lookup starts at the receiver's runtime class.
	DispatchVirtual
)

func (m DispatchMode) String() string {
	switch m {
	case DispatchStatic:
		return "static"
	case DispatchNonVirtual:
		return "non-virtual"
	}
	return "virtual"
}

func registerInvokes() {
	register(execInvoke, bytecode.Invokestatic, bytecode.Invokespecial, bytecode.Invokevirtual, bytecode.Invokeinterface)
	register(execInvokedynamic, bytecode.Invokedynamic)
}

// dispatchMode picks the mode for an invoke instruction whose symbolic
// reference names class owner. owner need not declare the method.
func (t *Thread) dispatchMode(f *Frame, op bytecode.Opcode, owner *Class) DispatchMode {
	switch op {
	case bytecode.Invokestatic:
		return DispatchStatic
	case bytecode.Invokespecial:
		return DispatchNonVirtual
	case bytecode.Invokevirtual:
		if t.vm.policy == PolicyHeuristic && f.Method.Class.IsSubclassOf(owner) {
			return DispatchNonVirtual
		}
	}
	return DispatchVirtual
}

func execInvoke(t *Thread, f *Frame, op bytecode.Opcode) error {
	ref := f.memberRef(f.u16(1))
	reg := t.vm.registry

	owner, err := reg.ResolveClass(ref.Owner)
	if err != nil {
		t.vm.log.Errorf("resolve %s: %s", ref, err)
		return resolutionFailure(err)
	}
	resolved, err := reg.ResolveMethod(ref.Owner, ref.Name, ref.Descriptor, nil)
	if err != nil {
		t.vm.log.Errorf("resolve %s: %s", ref, err)
		return resolutionFailure(err)
	}
	mode := t.dispatchMode(f, op, owner)
	if (mode == DispatchStatic) != resolved.IsStatic() {
		if mode == DispatchStatic {
			return t.throwf(IncompatibleClassChangeError, "Expected static method %s", resolved)
		}
		return t.throwf(IncompatibleClassChangeError, "Expected non-static method %s", resolved)
	}

	args := popArgs(f, resolved)
	size := 3
	if op == bytecode.Invokeinterface {
		size = 5
	}

	target := resolved
	if mode != DispatchStatic {
		recv := args[0]
		if recv.IsNull() {
			return t.throwf(NullPointerException, "Cannot invoke \"%s.%s()\" because value is null", strings.ReplaceAll(ref.Owner, "/", "."), ref.Name)
		}
		if mode == DispatchVirtual {
			target, err = reg.ResolveMethod(ref.Owner, ref.Name, ref.Descriptor, recv.Class())
			if err != nil {
				return resolutionFailure(err)
			}
		}
	}
	if target.IsAbstract() {
		return t.throwf(AbstractMethodError, "%s", target)
	}

	t.PushFrame(NewFrame(target, argsToLocals(args)))
	f.PC += size
	return nil
}

// popArgs pops the receiver (unless m is static) and parameters of m,
// returning them in declaration order.
func popArgs(f *Frame, m *Method) []Value {
	params := m.Desc.Params
	n := len(params)
	if !m.IsStatic() {
		n++
	}
	args := make([]Value, n)
	for i := len(params) - 1; i >= 0; i-- {
		v := f.Pop()
		checkKind(f, v, params[i])
		args[n-len(params)+i] = v
	}
	if !m.IsStatic() {
		args[0] = f.popRef()
	}
	return args
}

func execInvokedynamic(t *Thread, f *Frame, op bytecode.Opcode) error {
	cf := f.pool()
	i := f.u16(1)
	k, err := cf.Constant(i)
	if err != nil || k.Tag != classfile.TagInvokeDynamic {
		inconsistency("invokedynamic of constant #%d in %s", i, f.Method)
	}
	name, desc, _ := cf.NameAndType(k.NameAndTypeIndex)
	bootstrap := "unknown bootstrap method"
	if int(k.BootstrapIndex) < len(cf.BootstrapMethods) {
		handle, err := cf.Constant(cf.BootstrapMethods[k.BootstrapIndex].MethodRef)
		if err == nil && handle.Tag == classfile.TagMethodHandle {
			if bsm, err := cf.MemberRef(handle.RefIndex); err == nil {
				bootstrap = bsm.String()
			}
		}
	}
	return fatalf(UnsupportedOperation, "invokedynamic %s%s with bootstrap method %s", name, desc, bootstrap)
}
