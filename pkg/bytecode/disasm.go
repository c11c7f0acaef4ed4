package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ConstantDescriber renders constant pool entries for listings.
type ConstantDescriber interface {
	Describe(index uint16) string
}

// Disassemble returns a human-readable listing of code, one instruction per
// line. pool may be nil, in which case constant operands are shown as indexes.
func Disassemble(code []byte, pool ConstantDescriber) string {
	var sb strings.Builder
	pc := 0
	for pc < len(code) {
		line, n := DisassembleInstruction(code, pc, pool)
		sb.WriteString(fmt.Sprintf("%04d  %s\n", pc, line))
		if n <= 0 {
			break
		}
		pc += n
	}
	return sb.String()
}

// DisassembleInstruction formats the instruction at pc and returns its length.
// A length of zero means the rest of the code cannot be decoded.
func DisassembleInstruction(code []byte, pc int, pool ConstantDescriber) (string, int) {
	n, err := InstructionLen(code, pc)
	if err != nil {
		return fmt.Sprintf("<%v>", err), 0
	}
	if pc+n > len(code) {
		return fmt.Sprintf("<truncated %s>", Opcode(code[pc])), 0
	}
	op := Opcode(code[pc])
	describe := func(i uint16) string {
		if pool == nil {
			return fmt.Sprintf("#%d", i)
		}
		return fmt.Sprintf("#%d ; %s", i, pool.Describe(i))
	}

	switch op {
	case Bipush:
		return fmt.Sprintf("%s %d", op, int8(code[pc+1])), n
	case Sipush:
		return fmt.Sprintf("%s %d", op, int16(ReadU16(code, pc+1))), n
	case Ldc:
		return fmt.Sprintf("%s %s", op, describe(uint16(code[pc+1]))), n
	case LdcW, Ldc2W, Getstatic, Putstatic, Getfield, Putfield,
		Invokevirtual, Invokespecial, Invokestatic, New, Anewarray, Checkcast, Instanceof:
		return fmt.Sprintf("%s %s", op, describe(ReadU16(code, pc+1))), n
	case Invokeinterface:
		return fmt.Sprintf("%s %s, %d", op, describe(ReadU16(code, pc+1)), code[pc+3]), n
	case Invokedynamic:
		return fmt.Sprintf("%s %s", op, describe(ReadU16(code, pc+1))), n
	case Multianewarray:
		return fmt.Sprintf("%s %s, %d", op, describe(ReadU16(code, pc+1)), code[pc+3]), n
	case Iload, Lload, Fload, Dload, Aload, Istore, Lstore, Fstore, Dstore, Astore, Ret:
		return fmt.Sprintf("%s %d", op, code[pc+1]), n
	case Iinc:
		return fmt.Sprintf("%s %d, %d", op, code[pc+1], int8(code[pc+2])), n
	case Newarray:
		return fmt.Sprintf("%s %s", op, arrayTypeName(code[pc+1])), n
	case Ifeq, Ifne, Iflt, Ifge, Ifgt, Ifle, IfIcmpeq, IfIcmpne, IfIcmplt, IfIcmpge,
		IfIcmpgt, IfIcmple, IfAcmpeq, IfAcmpne, Goto, Jsr, Ifnull, Ifnonnull:
		return fmt.Sprintf("%s %d", op, pc+int(int16(ReadU16(code, pc+1)))), n
	case GotoW, JsrW:
		return fmt.Sprintf("%s %d", op, pc+int(int32(ReadU32(code, pc+1)))), n
	case Wide:
		inner := Opcode(code[pc+1])
		slot := binary.BigEndian.Uint16(code[pc+2:])
		if inner == Iinc {
			return fmt.Sprintf("wide %s %d, %d", inner, slot, int16(ReadU16(code, pc+4))), n
		}
		return fmt.Sprintf("wide %s %d", inner, slot), n
	case Tableswitch:
		base := SwitchBase(pc)
		def := int32(ReadU32(code, base))
		low := int32(ReadU32(code, base+4))
		high := int32(ReadU32(code, base+8))
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%s %d..%d {", op, low, high))
		for i := int32(0); i <= high-low; i++ {
			off := int32(ReadU32(code, base+12+4*int(i)))
			sb.WriteString(fmt.Sprintf(" %d: %d", low+i, pc+int(off)))
		}
		sb.WriteString(fmt.Sprintf(" default: %d }", pc+int(def)))
		return sb.String(), n
	case Lookupswitch:
		base := SwitchBase(pc)
		def := int32(ReadU32(code, base))
		npairs := int(int32(ReadU32(code, base+4)))
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%s %d {", op, npairs))
		for i := 0; i < npairs; i++ {
			key := int32(ReadU32(code, base+8+8*i))
			off := int32(ReadU32(code, base+12+8*i))
			sb.WriteString(fmt.Sprintf(" %d: %d", key, pc+int(off)))
		}
		sb.WriteString(fmt.Sprintf(" default: %d }", pc+int(def)))
		return sb.String(), n
	}
	return op.String(), n
}

func arrayTypeName(atype byte) string {
	switch atype {
	case TBoolean:
		return "boolean"
	case TChar:
		return "char"
	case TFloat:
		return "float"
	case TDouble:
		return "double"
	case TByte:
		return "byte"
	case TShort:
		return "short"
	case TInt:
		return "int"
	case TLong:
		return "long"
	}
	return fmt.Sprintf("atype(%d)", atype)
}
