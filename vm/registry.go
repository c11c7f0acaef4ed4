package vm

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/tliron/commonlog"

	"github.com/chazu/jolt/pkg/classfile"
	"github.com/chazu/jolt/pkg/descriptor"
)

// Well-known class names.
const (
	ObjectClassName    = "java/lang/Object"
	StringClassName    = "java/lang/String"
	ClassClassName     = "java/lang/Class"
	ThrowableClassName = "java/lang/Throwable"
)

// ClassLoader supplies parsed classes the registry has not seen yet.
type ClassLoader interface {
	LoadClass(name string) (*classfile.Class, error)
}

// ---------------------------------------------------------------------------
// Registry: class name -> runtime class, plus symbolic resolution
// ---------------------------------------------------------------------------

// Registry owns every runtime class of a VM. There is exactly one *Class per
// name. It also owns the interned string table and hands out identity hashes.
type Registry struct {
	classes  map[string]*Class
	loader   ClassLoader
	natives  *Natives
	log      commonlog.Logger
	interned map[string]*Object
	nextHash int32
}

// NewRegistry creates an empty registry. loader may be nil.
func NewRegistry(loader ClassLoader, natives *Natives, log commonlog.Logger) *Registry {
	if natives == nil {
		natives = NewNatives()
	}
	if log == nil {
		log = commonlog.GetLogger("jolt.registry")
	}
	return &Registry{
		classes:  make(map[string]*Class),
		loader:   loader,
		natives:  natives,
		log:      log,
		interned: make(map[string]*Object),
	}
}

// Lookup returns an already defined class without consulting the loader.
func (r *Registry) Lookup(name string) (*Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// Classes returns all defined classes ordered by name.
func (r *Registry) Classes() []*Class {
	result := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Define builds a runtime class from a parsed class. The superclass and
// interfaces are resolved first, loading them if necessary.
func (r *Registry) Define(cf *classfile.Class) (*Class, error) {
	if _, ok := r.classes[cf.Name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateClass, cf.Name)
	}
	if err := cf.Validate(); err != nil {
		return nil, err
	}

	var super *Class
	if cf.SuperName != "" {
		s, err := r.ResolveClass(cf.SuperName)
		if err != nil {
			return nil, fmt.Errorf("define %s: superclass: %w", cf.Name, err)
		}
		if s.IsInterface() {
			return nil, fmt.Errorf("define %s: superclass %s is an interface", cf.Name, s.Name)
		}
		super = s
	}

	c := newClass(cf.Name, super, cf.AccessFlags)
	c.File = cf

	for _, name := range cf.Interfaces {
		iface, err := r.ResolveClass(name)
		if err != nil {
			return nil, fmt.Errorf("define %s: interface: %w", cf.Name, err)
		}
		c.Interfaces = append(c.Interfaces, iface)
	}

	for _, f := range cf.Fields {
		t, err := descriptor.ParseField(f.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("define %s: field %s: %w", cf.Name, f.Name, err)
		}
		field := &Field{Class: c, Name: f.Name, Descriptor: f.Descriptor, Type: t, Flags: f.AccessFlags}
		c.fields[f.Name] = field
		c.fieldOrder = append(c.fieldOrder, field)
	}

	for i := range cf.Methods {
		cm := &cf.Methods[i]
		d, err := descriptor.ParseMethod(cm.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("define %s: method %s: %w", cf.Name, cm.Name, err)
		}
		m := &Method{
			Class:      c,
			Name:       cm.Name,
			Descriptor: cm.Descriptor,
			Desc:       d,
			Flags:      cm.AccessFlags,
			Code:       cm.Code,
		}
		if fn, ok := r.natives.Lookup(c.Name, m.Name, m.Descriptor); ok {
			m.Native = fn
		}
		c.vtable.AddMethod(m)
	}

	for _, f := range c.fieldOrder {
		if !f.IsStatic() {
			continue
		}
		v, err := r.staticInitialValue(cf, f)
		if err != nil {
			return nil, fmt.Errorf("define %s: %w", cf.Name, err)
		}
		c.statics[f.Name] = v
	}

	r.classes[c.Name] = c
	r.log.Debugf("defined class %s", c.Name)
	return c, nil
}

// staticInitialValue returns the ConstantValue of a static field, or its
// type default.
func (r *Registry) staticInitialValue(cf *classfile.Class, f *Field) (Value, error) {
	src := cf.Field(f.Name)
	if src == nil || src.ConstantValue == 0 {
		return DefaultValue(f.Type), nil
	}
	k, err := cf.Constant(src.ConstantValue)
	if err != nil {
		return Value{}, fmt.Errorf("field %s: %w", f.Name, err)
	}
	switch k.Tag {
	case classfile.TagInteger:
		return IntValue(k.Int), nil
	case classfile.TagLong:
		return LongValue(k.Long), nil
	case classfile.TagFloat:
		return FloatValue(k.Float), nil
	case classfile.TagDouble:
		return DoubleValue(k.Double), nil
	case classfile.TagString:
		s, err := cf.Utf8(k.StringIndex)
		if err != nil {
			return Value{}, err
		}
		o, err := r.Intern(s)
		if err != nil {
			return Value{}, err
		}
		return RefValue(o), nil
	}
	return Value{}, fmt.Errorf("field %s: constant value has tag %d", f.Name, k.Tag)
}

// ResolveClass returns the class with the given internal name, loading it
// through the class loader if it is not defined yet. Names starting with
// '[' produce array classes.
func (r *Registry) ResolveClass(name string) (*Class, error) {
	if c, ok := r.classes[name]; ok {
		return c, nil
	}
	if strings.HasPrefix(name, "[") {
		t, err := descriptor.ParseField(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrClassNotFound, name, err)
		}
		return r.ArrayClass(t)
	}
	if r.loader == nil {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	cf, err := r.loader.LoadClass(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrClassNotFound, name, err)
	}
	if cf.Name != name {
		return nil, fmt.Errorf("%w: loader returned %s for %s", ErrClassNotFound, cf.Name, name)
	}
	return r.Define(cf)
}

// ArrayClass returns the synthesized class for array type t.
func (r *Registry) ArrayClass(t descriptor.Type) (*Class, error) {
	if t.Kind != descriptor.Array {
		return nil, fmt.Errorf("%w: %s is not an array type", ErrClassNotFound, t)
	}
	name := t.String()
	if c, ok := r.classes[name]; ok {
		return c, nil
	}
	if comp := t.Component(); comp.Kind == descriptor.Object {
		if _, err := r.ResolveClass(comp.ClassName); err != nil {
			return nil, err
		}
	}
	super := r.classes[ObjectClassName]
	c := newClass(name, super, classfile.AccPublic|classfile.AccFinal)
	at := t
	c.ArrayType = &at
	c.State = Initialized
	r.classes[name] = c
	return c, nil
}

// ResolveMethod finds the method name+desc. When context is nil the search
// starts at owner (static and non-virtual dispatch); otherwise it starts at
// context, normally the receiver's class (virtual dispatch). Superclasses are
// searched first, then superinterfaces for default methods.
func (r *Registry) ResolveMethod(owner, name, desc string, context *Class) (*Method, error) {
	start := context
	if start == nil {
		c, err := r.ResolveClass(owner)
		if err != nil {
			return nil, err
		}
		start = c
	}
	if m := start.vtable.Lookup(name, desc); m != nil {
		return m, nil
	}
	if m := interfaceMethod(start, name, desc); m != nil {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s.%s%s", ErrMethodNotFound, start.Name, name, desc)
}

// interfaceMethod searches the superinterfaces of c's chain breadth first,
// preferring a non-abstract (default) method.
func interfaceMethod(c *Class, name, desc string) *Method {
	var abstract *Method
	seen := make(map[*Class]bool)
	var queue []*Class
	for _, k := range c.Chain() {
		queue = append(queue, k.Interfaces...)
	}
	for len(queue) > 0 {
		iface := queue[0]
		queue = queue[1:]
		if seen[iface] {
			continue
		}
		seen[iface] = true
		if m := iface.vtable.LookupLocal(name, desc); m != nil {
			if !m.IsAbstract() {
				return m
			}
			if abstract == nil {
				abstract = m
			}
		}
		queue = append(queue, iface.Interfaces...)
	}
	return abstract
}

// ResolveField finds the field declared by owner or the nearest superclass
// (or superinterface, for constants). A name match with a different
// descriptor is an error.
func (r *Registry) ResolveField(owner, name, desc string) (*Field, error) {
	c, err := r.ResolveClass(owner)
	if err != nil {
		return nil, err
	}
	for _, k := range c.Chain() {
		if f := findField(k, name); f != nil {
			if f.Descriptor != desc {
				return nil, fmt.Errorf("%w: %s has descriptor %s, want %s", ErrFieldNotFound, f, f.Descriptor, desc)
			}
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s:%s", ErrFieldNotFound, owner, name, desc)
}

func findField(c *Class, name string) *Field {
	if f := c.fields[name]; f != nil {
		return f
	}
	for _, iface := range c.Interfaces {
		if f := findField(iface, name); f != nil {
			return f
		}
	}
	return nil
}

// IsSubclassOf reports whether the defined class name is, extends or
// implements of. Unknown classes are not subclasses of anything.
func (r *Registry) IsSubclassOf(name, of string) bool {
	c, ok := r.classes[name]
	if !ok {
		return false
	}
	return c.IsSubclassOfName(of)
}

// IsAssignable reports whether a reference of type from can be stored where
// type to is expected (checkcast, instanceof and aastore).
func (r *Registry) IsAssignable(from, to descriptor.Type) bool {
	if to.Kind == descriptor.Object && to.ClassName == ObjectClassName {
		return from.IsReference()
	}
	switch from.Kind {
	case descriptor.Object:
		return to.Kind == descriptor.Object && r.IsSubclassOf(from.ClassName, to.ClassName)
	case descriptor.Array:
		switch to.Kind {
		case descriptor.Object:
			return to.ClassName == "java/lang/Cloneable" || to.ClassName == "java/io/Serializable"
		case descriptor.Array:
			fe, te := *from.Elem, *to.Elem
			if fe.IsReference() && te.IsReference() {
				return r.IsAssignable(fe, te)
			}
			return fe.Kind == te.Kind
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

func (r *Registry) identityHash() int32 {
	r.nextHash++
	return r.nextHash * 0x61c88647
}

// NewObject allocates an uninitialized instance of c with default field values.
func (r *Registry) NewObject(c *Class) *Object {
	return newObject(c, r.identityHash())
}

// NewArray allocates an array of type t (an array descriptor type).
func (r *Registry) NewArray(t descriptor.Type, length int) (*Array, error) {
	c, err := r.ArrayClass(t)
	if err != nil {
		return nil, err
	}
	return newArray(c, length, r.identityHash()), nil
}

var charArrayType = descriptor.ArrayOf(descriptor.Primitive(descriptor.Char))

func (r *Registry) newStringObject(s string) (*Object, error) {
	c, err := r.ResolveClass(StringClassName)
	if err != nil {
		return nil, err
	}
	units := utf16.Encode([]rune(s))
	chars, err := r.NewArray(charArrayType, len(units))
	if err != nil {
		return nil, err
	}
	for i, u := range units {
		chars.Data[i] = IntValue(int32(u))
	}
	o := r.NewObject(c)
	if !o.SetField(StringClassName, "value", ArrayValue(chars)) {
		return nil, fmt.Errorf("%w: %s.value:[C", ErrFieldNotFound, StringClassName)
	}
	return o, nil
}

// Intern returns the unique string object for a literal. A new literal
// starts Uninitialized; ldc runs its constructor before first use.
func (r *Registry) Intern(s string) (*Object, error) {
	if o, ok := r.interned[s]; ok {
		return o, nil
	}
	o, err := r.newStringObject(s)
	if err != nil {
		return nil, err
	}
	r.interned[s] = o
	return o, nil
}

// NewString allocates a fully initialized string that is not interned.
func (r *Registry) NewString(s string) (*Object, error) {
	o, err := r.newStringObject(s)
	if err != nil {
		return nil, err
	}
	o.State = Initialized
	return o, nil
}

// GoString converts a java/lang/String reference back to a Go string.
func GoString(v Value) (string, bool) {
	o := v.Object()
	if o == nil {
		return "", false
	}
	chars, ok := o.GetField(StringClassName, "value")
	if !ok || chars.Array() == nil {
		return "", false
	}
	units := make([]uint16, chars.Array().Len())
	for i, c := range chars.Array().Data {
		units[i] = uint16(c.Int())
	}
	return string(utf16.Decode(units)), true
}

// Mirror returns the java/lang/Class object for c, creating it Uninitialized
// on first use.
func (r *Registry) Mirror(c *Class) (*Object, error) {
	if c.mirror != nil {
		return c.mirror, nil
	}
	cc, err := r.ResolveClass(ClassClassName)
	if err != nil {
		return nil, err
	}
	o := r.NewObject(cc)
	o.Native = c
	c.mirror = o
	return o, nil
}
