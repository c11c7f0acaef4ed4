package classfile

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode encodes deterministically so equal classes produce equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("classfile: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a Class to canonical CBOR bytes.
func Marshal(c *Class) ([]byte, error) {
	return cborEncMode.Marshal(c)
}

// Unmarshal deserializes a Class from CBOR bytes and checks that it is
// minimally well formed.
func Unmarshal(data []byte) (*Class, error) {
	var c Class
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("classfile: unmarshal class: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the structural invariants the interpreter relies on:
// a name, a non-empty pool with an unusable slot 0, wide constants followed
// by an unusable slot, and exception ranges inside the code.
func (c *Class) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("classfile: class has no name")
	}
	if len(c.ConstantPool) == 0 || c.ConstantPool[0].Tag != TagUnusable {
		return fmt.Errorf("classfile: %s: constant pool must start with an unusable entry", c.Name)
	}
	for i := 1; i < len(c.ConstantPool); i++ {
		switch c.ConstantPool[i].Tag {
		case TagLong, TagDouble:
			if i+1 >= len(c.ConstantPool) || c.ConstantPool[i+1].Tag != TagUnusable {
				return fmt.Errorf("classfile: %s: wide constant at %d is not followed by an unusable slot", c.Name, i)
			}
			i++
		}
	}
	for _, m := range c.Methods {
		if m.Code == nil {
			continue
		}
		n := len(m.Code.Bytes)
		for _, h := range m.Code.ExceptionTable {
			if int(h.StartPC) >= n || int(h.EndPC) > n || h.StartPC >= h.EndPC || int(h.HandlerPC) >= n {
				return fmt.Errorf("classfile: %s.%s%s: exception range [%d, %d) -> %d outside code of length %d",
					c.Name, m.Name, m.Descriptor, h.StartPC, h.EndPC, h.HandlerPC, n)
			}
		}
	}
	return nil
}
