// Package descriptor parses JVM field and method descriptor strings into
// structured types.
//
// Field descriptors encode a single type ("I", "[J", "Ljava/lang/String;").
// Method descriptors encode an ordered parameter list and a return type
// ("(I[ILjava/lang/String;)D"). Class names keep their internal slash form.
package descriptor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is wrapped by every parse error.
var ErrMalformed = errors.New("malformed descriptor")

// Kind identifies the shape of a Type.
type Kind byte

const (
	Byte    Kind = 'B'
	Char    Kind = 'C'
	Double  Kind = 'D'
	Float   Kind = 'F'
	Int     Kind = 'I'
	Long    Kind = 'J'
	Short   Kind = 'S'
	Boolean Kind = 'Z'
	Object  Kind = 'L'
	Array   Kind = '['
	Void    Kind = 'V'
)

var kindNames = map[Kind]string{
	Byte:    "byte",
	Char:    "char",
	Double:  "double",
	Float:   "float",
	Int:     "int",
	Long:    "long",
	Short:   "short",
	Boolean: "boolean",
	Object:  "object",
	Array:   "array",
	Void:    "void",
}

// String returns the Java spelling of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%q)", byte(k))
}

// Type is a parsed field type. ClassName is set for Object, Elem for Array.
type Type struct {
	Kind      Kind
	ClassName string
	Elem      *Type
}

// Primitive returns the Type for a primitive (or void) kind.
func Primitive(k Kind) Type {
	return Type{Kind: k}
}

// ObjectOf returns a reference type to the named class.
func ObjectOf(className string) Type {
	return Type{Kind: Object, ClassName: className}
}

// ArrayOf returns a one-dimension-deeper array of elem.
func ArrayOf(elem Type) Type {
	e := elem
	return Type{Kind: Array, Elem: &e}
}

// IsReference reports whether values of t are object or array references.
func (t Type) IsReference() bool {
	return t.Kind == Object || t.Kind == Array
}

// IsCategory2 reports whether t occupies two slots (long, double).
func (t Type) IsCategory2() bool {
	return t.Kind == Long || t.Kind == Double
}

// IsIntLike reports whether t is carried as an int on the operand stack.
func (t Type) IsIntLike() bool {
	switch t.Kind {
	case Byte, Char, Short, Boolean, Int:
		return true
	}
	return false
}

// Slots is the number of local-variable slots a value of t occupies.
func (t Type) Slots() int {
	switch {
	case t.Kind == Void:
		return 0
	case t.IsCategory2():
		return 2
	}
	return 1
}

// Dimensions counts array nesting; zero for non-arrays.
func (t Type) Dimensions() int {
	n := 0
	for cur := t; cur.Kind == Array; cur = *cur.Elem {
		n++
	}
	return n
}

// Component returns the innermost non-array element type.
func (t Type) Component() Type {
	cur := t
	for cur.Kind == Array {
		cur = *cur.Elem
	}
	return cur
}

// String re-encodes t as a descriptor.
func (t Type) String() string {
	switch t.Kind {
	case Object:
		return "L" + t.ClassName + ";"
	case Array:
		return "[" + t.Elem.String()
	}
	return string(rune(t.Kind))
}

// Equal reports structural equality.
func (t Type) Equal(o Type) bool {
	return t.String() == o.String()
}

// Method is a parsed method descriptor.
type Method struct {
	Params []Type
	Return Type
}

// ArgSlots is the number of local-variable slots the parameters occupy,
// not counting a receiver.
func (m *Method) ArgSlots() int {
	n := 0
	for _, p := range m.Params {
		n += p.Slots()
	}
	return n
}

// ReturnsVoid reports whether the method has no return value.
func (m *Method) ReturnsVoid() bool {
	return m.Return.Kind == Void
}

// String re-encodes m as a descriptor.
func (m *Method) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range m.Params {
		sb.WriteString(p.String())
	}
	sb.WriteByte(')')
	sb.WriteString(m.Return.String())
	return sb.String()
}

// ParseField parses a field descriptor. Void is not a valid field type.
func ParseField(s string) (Type, error) {
	t, n, err := parseType(s, 0)
	if err != nil {
		return Type{}, err
	}
	if n != len(s) {
		return Type{}, fmt.Errorf("%w: trailing data in %q", ErrMalformed, s)
	}
	return t, nil
}

// ParseMethod parses a method descriptor.
func ParseMethod(s string) (*Method, error) {
	if len(s) == 0 || s[0] != '(' {
		return nil, fmt.Errorf("%w: %q does not start with '('", ErrMalformed, s)
	}
	m := &Method{}
	i := 1
	for {
		if i >= len(s) {
			return nil, fmt.Errorf("%w: unterminated parameter list in %q", ErrMalformed, s)
		}
		if s[i] == ')' {
			i++
			break
		}
		t, n, err := parseType(s, i)
		if err != nil {
			return nil, err
		}
		m.Params = append(m.Params, t)
		i = n
	}
	if i < len(s) && s[i] == 'V' {
		m.Return = Primitive(Void)
		i++
	} else {
		t, n, err := parseType(s, i)
		if err != nil {
			return nil, err
		}
		m.Return = t
		i = n
	}
	if i != len(s) {
		return nil, fmt.Errorf("%w: trailing data in %q", ErrMalformed, s)
	}
	return m, nil
}

// parseType reads one field type starting at s[i] and returns the index just
// past it.
func parseType(s string, i int) (Type, int, error) {
	if i >= len(s) {
		return Type{}, i, fmt.Errorf("%w: unexpected end of %q", ErrMalformed, s)
	}
	switch k := Kind(s[i]); k {
	case Byte, Char, Double, Float, Int, Long, Short, Boolean:
		return Primitive(k), i + 1, nil
	case Object:
		end := strings.IndexByte(s[i:], ';')
		if end <= 1 {
			return Type{}, i, fmt.Errorf("%w: bad class name at offset %d in %q", ErrMalformed, i, s)
		}
		return ObjectOf(s[i+1 : i+end]), i + end + 1, nil
	case Array:
		elem, n, err := parseType(s, i+1)
		if err != nil {
			return Type{}, i, err
		}
		return ArrayOf(elem), n, nil
	default:
		return Type{}, i, fmt.Errorf("%w: unexpected %q at offset %d in %q", ErrMalformed, s[i], i, s)
	}
}
