package classfile

import (
	"fmt"
	"strings"

	"github.com/chazu/jolt/pkg/bytecode"
)

// Listing renders the class header, fields and every method body.
func (c *Class) Listing() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; class %s", c.Name))
	if c.SuperName != "" {
		sb.WriteString(" extends " + c.SuperName)
	}
	if len(c.Interfaces) > 0 {
		sb.WriteString(" implements " + strings.Join(c.Interfaces, ", "))
	}
	sb.WriteString(fmt.Sprintf("\n; flags 0x%04X, %d constants\n", c.AccessFlags, len(c.ConstantPool)-1))
	if c.SourceFile != "" {
		sb.WriteString("; source " + c.SourceFile + "\n")
	}
	for _, f := range c.Fields {
		sb.WriteString(fmt.Sprintf("; field %s %s (0x%04X)\n", f.Name, f.Descriptor, f.AccessFlags))
	}
	for i := range c.Methods {
		sb.WriteString("\n")
		sb.WriteString(c.Disassemble(&c.Methods[i]))
	}
	return sb.String()
}

// Disassemble renders one method with its exception table.
func (c *Class) Disassemble(m *Method) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; === %s.%s%s ===\n", c.Name, m.Name, m.Descriptor))
	if m.Code == nil {
		switch {
		case m.AccessFlags&AccNative != 0:
			sb.WriteString("; native\n")
		case m.AccessFlags&AccAbstract != 0:
			sb.WriteString("; abstract\n")
		default:
			sb.WriteString("; no code\n")
		}
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("; stack=%d locals=%d\n", m.Code.MaxStack, m.Code.MaxLocals))
	sb.WriteString(bytecode.Disassemble(m.Code.Bytes, c))
	for _, h := range m.Code.ExceptionTable {
		catch := "any"
		if h.CatchType != 0 {
			if name, err := c.ClassName(h.CatchType); err == nil {
				catch = name
			}
		}
		sb.WriteString(fmt.Sprintf("; catch %s [%d, %d) -> %d\n", catch, h.StartPC, h.EndPC, h.HandlerPC))
	}
	return sb.String()
}
