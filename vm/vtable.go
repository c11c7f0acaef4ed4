package vm

import "sort"

// VTable holds the method table for a class.
//
// Methods are keyed by name plus descriptor. Inheritance is handled by
// walking the parent chain when a method is not found locally, so a lookup
// that starts at a subclass sees its overrides first.
type VTable struct {
	class   *Class
	parent  *VTable
	methods map[string]*Method
}

// NewVTable creates a new vtable for a class.
func NewVTable(class *Class, parent *VTable) *VTable {
	return &VTable{
		class:   class,
		parent:  parent,
		methods: make(map[string]*Method),
	}
}

func methodKey(name, desc string) string {
	return name + desc
}

// Lookup finds a method by name and descriptor, walking the inheritance chain.
// Returns nil if no class in the chain declares it.
func (vt *VTable) Lookup(name, desc string) *Method {
	key := methodKey(name, desc)
	for v := vt; v != nil; v = v.parent {
		if m, ok := v.methods[key]; ok {
			return m
		}
	}
	return nil
}

// LookupLocal finds a method declared by this class only.
func (vt *VTable) LookupLocal(name, desc string) *Method {
	return vt.methods[methodKey(name, desc)]
}

// AddMethod adds or replaces a method.
func (vt *VTable) AddMethod(m *Method) {
	vt.methods[methodKey(m.Name, m.Descriptor)] = m
}

// Parent returns the superclass vtable.
func (vt *VTable) Parent() *VTable {
	return vt.parent
}

// Class returns the class this vtable belongs to.
func (vt *VTable) Class() *Class {
	return vt.class
}

// LocalMethods returns the methods declared by this class, ordered by name
// then descriptor.
func (vt *VTable) LocalMethods() []*Method {
	result := make([]*Method, 0, len(vt.methods))
	for _, m := range vt.methods {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].Descriptor < result[j].Descriptor
	})
	return result
}
