package vm

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/jolt/pkg/classfile"
	"github.com/chazu/jolt/pkg/descriptor"
)

// DispatchPolicy selects how invokevirtual picks between virtual and
// non-virtual dispatch.
type DispatchPolicy uint8

const (
	// PolicyHeuristic dispatches non-virtually from the resolved class when
	// the calling method's class is that class or a subclass of it, and
	// virtually from the receiver's class otherwise.
	PolicyHeuristic DispatchPolicy = iota
	// PolicyStrict always dispatches invokevirtual from the receiver's class.
	PolicyStrict
)

func (p DispatchPolicy) String() string {
	if p == PolicyStrict {
		return "strict"
	}
	return "heuristic"
}

// ParseDispatchPolicy maps "heuristic" or "strict" to a policy.
func ParseDispatchPolicy(s string) (DispatchPolicy, error) {
	switch s {
	case "", "heuristic":
		return PolicyHeuristic, nil
	case "strict":
		return PolicyStrict, nil
	}
	return PolicyHeuristic, fmt.Errorf("unknown dispatch policy %q", s)
}

// Option configures a VM.
type Option func(*config)

type config struct {
	loader    ClassLoader
	policy    DispatchPolicy
	log       commonlog.Logger
	bootstrap bool
	maxSteps  int
}

// WithLoader sets the loader consulted for classes that are not defined.
func WithLoader(l ClassLoader) Option {
	return func(c *config) { c.loader = l }
}

// WithDispatchPolicy sets the invokevirtual dispatch policy.
func WithDispatchPolicy(p DispatchPolicy) Option {
	return func(c *config) { c.policy = p }
}

// WithLogger replaces the default "jolt.vm" logger.
func WithLogger(log commonlog.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithoutBootstrap skips defining the built-in java/lang classes. The
// caller must then define a root class itself.
func WithoutBootstrap() Option {
	return func(c *config) { c.bootstrap = false }
}

// WithMaxSteps bounds Thread.Run to n instructions. Zero means no bound.
func WithMaxSteps(n int) Option {
	return func(c *config) { c.maxSteps = n }
}

// ---------------------------------------------------------------------------
// VM
// ---------------------------------------------------------------------------

// VM ties a class registry, a native registry and execution settings
// together. Threads created from one VM share its classes.
type VM struct {
	registry *Registry
	natives  *Natives
	log      commonlog.Logger
	policy   DispatchPolicy
	maxSteps int
}

// New creates a VM. Unless WithoutBootstrap is given the built-in classes
// and natives are installed.
func New(opts ...Option) *VM {
	cfg := &config{bootstrap: true}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.log == nil {
		cfg.log = commonlog.GetLogger("jolt.vm")
	}

	natives := NewNatives()
	v := &VM{
		natives:  natives,
		log:      cfg.log,
		policy:   cfg.policy,
		maxSteps: cfg.maxSteps,
	}
	v.registry = NewRegistry(cfg.loader, natives, commonlog.GetLogger("jolt.registry"))

	if cfg.bootstrap {
		registerBuiltinNatives(natives)
		if err := v.bootstrap(); err != nil {
			panic("jolt: bootstrap classes: " + err.Error())
		}
	}
	return v
}

// Registry returns the class registry.
func (v *VM) Registry() *Registry { return v.registry }

// Natives returns the native method registry.
func (v *VM) Natives() *Natives { return v.natives }

// Policy returns the invokevirtual dispatch policy.
func (v *VM) Policy() DispatchPolicy { return v.policy }

// Define adds a parsed class to the registry.
func (v *VM) Define(cf *classfile.Class) (*Class, error) {
	return v.registry.Define(cf)
}

// NewString allocates an initialized java/lang/String.
func (v *VM) NewString(s string) (Value, error) {
	o, err := v.registry.NewString(s)
	if err != nil {
		return Null, err
	}
	return RefValue(o), nil
}

// NewThread prepares a thread whose only frame invokes class.name desc with
// args. Receiver and parameters are passed one Value each; long and double
// arguments are given their second local slot automatically.
func (v *VM) NewThread(class, name, desc string, args ...Value) (*Thread, error) {
	m, err := v.registry.ResolveMethod(class, name, desc, nil)
	if err != nil {
		v.log.Errorf("%s", err)
		return nil, resolutionFailure(err)
	}
	want := len(m.Desc.Params)
	if !m.IsStatic() {
		want++
	}
	if len(args) != want {
		return nil, fatalf(InternalInconsistency, "%s called with %d arguments, want %d", m, len(args), want)
	}
	t := newThread(v)
	t.PushFrame(NewFrame(m, argsToLocals(args)))
	return t, nil
}

// Invoke runs class.name desc to completion on a new thread and returns its
// result. Void methods return Value{}.
func (v *VM) Invoke(class, name, desc string, args ...Value) (Value, error) {
	t, err := v.NewThread(class, name, desc, args...)
	if err != nil {
		return Value{}, err
	}
	if err := t.Run(); err != nil {
		return Value{}, err
	}
	result, _ := t.Result()
	return result, nil
}

// RunMain runs class.main([Ljava/lang/String;)V with args as its string array.
func (v *VM) RunMain(class string, args []string) error {
	arr, err := v.registry.NewArray(descriptor.ArrayOf(descriptor.ObjectOf(StringClassName)), len(args))
	if err != nil {
		return resolutionFailure(err)
	}
	for i, s := range args {
		o, err := v.registry.NewString(s)
		if err != nil {
			return resolutionFailure(err)
		}
		arr.Data[i] = RefValue(o)
	}
	_, err = v.Invoke(class, "main", "([Ljava/lang/String;)V", ArrayValue(arr))
	return err
}
