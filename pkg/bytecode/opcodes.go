package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Opcode is a single JVM instruction byte.
// Opcodes are grouped by category following the class-file instruction set.
type Opcode byte

const (
	// ========================================================================
	// Constants (0x00-0x14)
	// ========================================================================

	Nop        Opcode = 0x00
	AconstNull Opcode = 0x01
	IconstM1   Opcode = 0x02
	Iconst0    Opcode = 0x03
	Iconst1    Opcode = 0x04
	Iconst2    Opcode = 0x05
	Iconst3    Opcode = 0x06
	Iconst4    Opcode = 0x07
	Iconst5    Opcode = 0x08
	Lconst0    Opcode = 0x09
	Lconst1    Opcode = 0x0A
	Fconst0    Opcode = 0x0B
	Fconst1    Opcode = 0x0C
	Fconst2    Opcode = 0x0D
	Dconst0    Opcode = 0x0E
	Dconst1    Opcode = 0x0F
	Bipush     Opcode = 0x10 // bipush <byte:s8>
	Sipush     Opcode = 0x11 // sipush <value:s16>
	Ldc        Opcode = 0x12 // ldc <index:u8>
	LdcW       Opcode = 0x13 // ldc_w <index:u16>
	Ldc2W      Opcode = 0x14 // ldc2_w <index:u16>

	// ========================================================================
	// Loads (0x15-0x35)
	// ========================================================================

	Iload   Opcode = 0x15 // iload <slot:u8>
	Lload   Opcode = 0x16
	Fload   Opcode = 0x17
	Dload   Opcode = 0x18
	Aload   Opcode = 0x19
	Iload0  Opcode = 0x1A
	Iload1  Opcode = 0x1B
	Iload2  Opcode = 0x1C
	Iload3  Opcode = 0x1D
	Lload0  Opcode = 0x1E
	Lload1  Opcode = 0x1F
	Lload2  Opcode = 0x20
	Lload3  Opcode = 0x21
	Fload0  Opcode = 0x22
	Fload1  Opcode = 0x23
	Fload2  Opcode = 0x24
	Fload3  Opcode = 0x25
	Dload0  Opcode = 0x26
	Dload1  Opcode = 0x27
	Dload2  Opcode = 0x28
	Dload3  Opcode = 0x29
	Aload0  Opcode = 0x2A
	Aload1  Opcode = 0x2B
	Aload2  Opcode = 0x2C
	Aload3  Opcode = 0x2D
	Iaload  Opcode = 0x2E
	Laload  Opcode = 0x2F
	Faload  Opcode = 0x30
	Daload  Opcode = 0x31
	Aaload  Opcode = 0x32
	Baload  Opcode = 0x33
	Caload  Opcode = 0x34
	Saload  Opcode = 0x35

	// ========================================================================
	// Stores (0x36-0x56)
	// ========================================================================

	Istore  Opcode = 0x36 // istore <slot:u8>
	Lstore  Opcode = 0x37
	Fstore  Opcode = 0x38
	Dstore  Opcode = 0x39
	Astore  Opcode = 0x3A
	Istore0 Opcode = 0x3B
	Istore1 Opcode = 0x3C
	Istore2 Opcode = 0x3D
	Istore3 Opcode = 0x3E
	Lstore0 Opcode = 0x3F
	Lstore1 Opcode = 0x40
	Lstore2 Opcode = 0x41
	Lstore3 Opcode = 0x42
	Fstore0 Opcode = 0x43
	Fstore1 Opcode = 0x44
	Fstore2 Opcode = 0x45
	Fstore3 Opcode = 0x46
	Dstore0 Opcode = 0x47
	Dstore1 Opcode = 0x48
	Dstore2 Opcode = 0x49
	Dstore3 Opcode = 0x4A
	Astore0 Opcode = 0x4B
	Astore1 Opcode = 0x4C
	Astore2 Opcode = 0x4D
	Astore3 Opcode = 0x4E
	Iastore Opcode = 0x4F
	Lastore Opcode = 0x50
	Fastore Opcode = 0x51
	Dastore Opcode = 0x52
	Aastore Opcode = 0x53
	Bastore Opcode = 0x54
	Castore Opcode = 0x55
	Sastore Opcode = 0x56

	// ========================================================================
	// Stack (0x57-0x5F)
	// ========================================================================

	Pop    Opcode = 0x57
	Pop2   Opcode = 0x58
	Dup    Opcode = 0x59
	DupX1  Opcode = 0x5A
	DupX2  Opcode = 0x5B
	Dup2   Opcode = 0x5C
	Dup2X1 Opcode = 0x5D
	Dup2X2 Opcode = 0x5E
	Swap   Opcode = 0x5F

	// ========================================================================
	// Math (0x60-0x84)
	// ========================================================================

	Iadd  Opcode = 0x60
	Ladd  Opcode = 0x61
	Fadd  Opcode = 0x62
	Dadd  Opcode = 0x63
	Isub  Opcode = 0x64
	Lsub  Opcode = 0x65
	Fsub  Opcode = 0x66
	Dsub  Opcode = 0x67
	Imul  Opcode = 0x68
	Lmul  Opcode = 0x69
	Fmul  Opcode = 0x6A
	Dmul  Opcode = 0x6B
	Idiv  Opcode = 0x6C
	Ldiv  Opcode = 0x6D
	Fdiv  Opcode = 0x6E
	Ddiv  Opcode = 0x6F
	Irem  Opcode = 0x70
	Lrem  Opcode = 0x71
	Frem  Opcode = 0x72
	Drem  Opcode = 0x73
	Ineg  Opcode = 0x74
	Lneg  Opcode = 0x75
	Fneg  Opcode = 0x76
	Dneg  Opcode = 0x77
	Ishl  Opcode = 0x78
	Lshl  Opcode = 0x79
	Ishr  Opcode = 0x7A
	Lshr  Opcode = 0x7B
	Iushr Opcode = 0x7C
	Lushr Opcode = 0x7D
	Iand  Opcode = 0x7E
	Land  Opcode = 0x7F
	Ior   Opcode = 0x80
	Lor   Opcode = 0x81
	Ixor  Opcode = 0x82
	Lxor  Opcode = 0x83
	Iinc  Opcode = 0x84 // iinc <slot:u8> <delta:s8>

	// ========================================================================
	// Conversions (0x85-0x93)
	// ========================================================================

	I2l Opcode = 0x85
	I2f Opcode = 0x86
	I2d Opcode = 0x87
	L2i Opcode = 0x88
	L2f Opcode = 0x89
	L2d Opcode = 0x8A
	F2i Opcode = 0x8B
	F2l Opcode = 0x8C
	F2d Opcode = 0x8D
	D2i Opcode = 0x8E
	D2l Opcode = 0x8F
	D2f Opcode = 0x90
	I2b Opcode = 0x91
	I2c Opcode = 0x92
	I2s Opcode = 0x93

	// ========================================================================
	// Comparisons (0x94-0xA6)
	// ========================================================================

	Lcmp     Opcode = 0x94
	Fcmpl    Opcode = 0x95
	Fcmpg    Opcode = 0x96
	Dcmpl    Opcode = 0x97
	Dcmpg    Opcode = 0x98
	Ifeq     Opcode = 0x99 // ifeq <offset:s16>
	Ifne     Opcode = 0x9A
	Iflt     Opcode = 0x9B
	Ifge     Opcode = 0x9C
	Ifgt     Opcode = 0x9D
	Ifle     Opcode = 0x9E
	IfIcmpeq Opcode = 0x9F
	IfIcmpne Opcode = 0xA0
	IfIcmplt Opcode = 0xA1
	IfIcmpge Opcode = 0xA2
	IfIcmpgt Opcode = 0xA3
	IfIcmple Opcode = 0xA4
	IfAcmpeq Opcode = 0xA5
	IfAcmpne Opcode = 0xA6

	// ========================================================================
	// Control (0xA7-0xB1)
	// ========================================================================

	Goto         Opcode = 0xA7 // goto <offset:s16>
	Jsr          Opcode = 0xA8
	Ret          Opcode = 0xA9 // ret <slot:u8>
	Tableswitch  Opcode = 0xAA // padded, variable length
	Lookupswitch Opcode = 0xAB // padded, variable length
	Ireturn      Opcode = 0xAC
	Lreturn      Opcode = 0xAD
	Freturn      Opcode = 0xAE
	Dreturn      Opcode = 0xAF
	Areturn      Opcode = 0xB0
	Return       Opcode = 0xB1

	// ========================================================================
	// References (0xB2-0xC3)
	// ========================================================================

	Getstatic       Opcode = 0xB2 // getstatic <index:u16>
	Putstatic       Opcode = 0xB3
	Getfield        Opcode = 0xB4
	Putfield        Opcode = 0xB5
	Invokevirtual   Opcode = 0xB6
	Invokespecial   Opcode = 0xB7
	Invokestatic    Opcode = 0xB8
	Invokeinterface Opcode = 0xB9 // invokeinterface <index:u16> <count:u8> 0
	Invokedynamic   Opcode = 0xBA // invokedynamic <index:u16> 0 0
	New             Opcode = 0xBB
	Newarray        Opcode = 0xBC // newarray <atype:u8>
	Anewarray       Opcode = 0xBD
	Arraylength     Opcode = 0xBE
	Athrow          Opcode = 0xBF
	Checkcast       Opcode = 0xC0
	Instanceof      Opcode = 0xC1
	Monitorenter    Opcode = 0xC2
	Monitorexit     Opcode = 0xC3

	// ========================================================================
	// Extended (0xC4-0xC9)
	// ========================================================================

	Wide           Opcode = 0xC4 // wide <opcode> <slot:u16> [<delta:s16>]
	Multianewarray Opcode = 0xC5 // multianewarray <index:u16> <dims:u8>
	Ifnull         Opcode = 0xC6
	Ifnonnull      Opcode = 0xC7
	GotoW          Opcode = 0xC8 // goto_w <offset:s32>
	JsrW           Opcode = 0xC9

	// ========================================================================
	// Reserved
	// ========================================================================

	Breakpoint Opcode = 0xCA
	Impdep1    Opcode = 0xFE
	Impdep2    Opcode = 0xFF
)

// Array type codes used by newarray.
const (
	TBoolean byte = 4
	TChar    byte = 5
	TFloat   byte = 6
	TDouble  byte = 7
	TByte    byte = 8
	TShort   byte = 9
	TInt     byte = 10
	TLong    byte = 11
)

// OpcodeInfo describes an opcode for disassembly and decoding.
type OpcodeInfo struct {
	Name       string // Mnemonic as written in class-file listings
	OperandLen int    // Number of operand bytes following the opcode (-1 = variable)
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Constants
	Nop:        {"nop", 0},
	AconstNull: {"aconst_null", 0},
	IconstM1:   {"iconst_m1", 0},
	Iconst0:    {"iconst_0", 0},
	Iconst1:    {"iconst_1", 0},
	Iconst2:    {"iconst_2", 0},
	Iconst3:    {"iconst_3", 0},
	Iconst4:    {"iconst_4", 0},
	Iconst5:    {"iconst_5", 0},
	Lconst0:    {"lconst_0", 0},
	Lconst1:    {"lconst_1", 0},
	Fconst0:    {"fconst_0", 0},
	Fconst1:    {"fconst_1", 0},
	Fconst2:    {"fconst_2", 0},
	Dconst0:    {"dconst_0", 0},
	Dconst1:    {"dconst_1", 0},
	Bipush:     {"bipush", 1},
	Sipush:     {"sipush", 2},
	Ldc:        {"ldc", 1},
	LdcW:       {"ldc_w", 2},
	Ldc2W:      {"ldc2_w", 2},

	// Loads
	Iload:  {"iload", 1},
	Lload:  {"lload", 1},
	Fload:  {"fload", 1},
	Dload:  {"dload", 1},
	Aload:  {"aload", 1},
	Iload0: {"iload_0", 0},
	Iload1: {"iload_1", 0},
	Iload2: {"iload_2", 0},
	Iload3: {"iload_3", 0},
	Lload0: {"lload_0", 0},
	Lload1: {"lload_1", 0},
	Lload2: {"lload_2", 0},
	Lload3: {"lload_3", 0},
	Fload0: {"fload_0", 0},
	Fload1: {"fload_1", 0},
	Fload2: {"fload_2", 0},
	Fload3: {"fload_3", 0},
	Dload0: {"dload_0", 0},
	Dload1: {"dload_1", 0},
	Dload2: {"dload_2", 0},
	Dload3: {"dload_3", 0},
	Aload0: {"aload_0", 0},
	Aload1: {"aload_1", 0},
	Aload2: {"aload_2", 0},
	Aload3: {"aload_3", 0},
	Iaload: {"iaload", 0},
	Laload: {"laload", 0},
	Faload: {"faload", 0},
	Daload: {"daload", 0},
	Aaload: {"aaload", 0},
	Baload: {"baload", 0},
	Caload: {"caload", 0},
	Saload: {"saload", 0},

	// Stores
	Istore:  {"istore", 1},
	Lstore:  {"lstore", 1},
	Fstore:  {"fstore", 1},
	Dstore:  {"dstore", 1},
	Astore:  {"astore", 1},
	Istore0: {"istore_0", 0},
	Istore1: {"istore_1", 0},
	Istore2: {"istore_2", 0},
	Istore3: {"istore_3", 0},
	Lstore0: {"lstore_0", 0},
	Lstore1: {"lstore_1", 0},
	Lstore2: {"lstore_2", 0},
	Lstore3: {"lstore_3", 0},
	Fstore0: {"fstore_0", 0},
	Fstore1: {"fstore_1", 0},
	Fstore2: {"fstore_2", 0},
	Fstore3: {"fstore_3", 0},
	Dstore0: {"dstore_0", 0},
	Dstore1: {"dstore_1", 0},
	Dstore2: {"dstore_2", 0},
	Dstore3: {"dstore_3", 0},
	Astore0: {"astore_0", 0},
	Astore1: {"astore_1", 0},
	Astore2: {"astore_2", 0},
	Astore3: {"astore_3", 0},
	Iastore: {"iastore", 0},
	Lastore: {"lastore", 0},
	Fastore: {"fastore", 0},
	Dastore: {"dastore", 0},
	Aastore: {"aastore", 0},
	Bastore: {"bastore", 0},
	Castore: {"castore", 0},
	Sastore: {"sastore", 0},

	// Stack
	Pop:    {"pop", 0},
	Pop2:   {"pop2", 0},
	Dup:    {"dup", 0},
	DupX1:  {"dup_x1", 0},
	DupX2:  {"dup_x2", 0},
	Dup2:   {"dup2", 0},
	Dup2X1: {"dup2_x1", 0},
	Dup2X2: {"dup2_x2", 0},
	Swap:   {"swap", 0},

	// Math
	Iadd:  {"iadd", 0},
	Ladd:  {"ladd", 0},
	Fadd:  {"fadd", 0},
	Dadd:  {"dadd", 0},
	Isub:  {"isub", 0},
	Lsub:  {"lsub", 0},
	Fsub:  {"fsub", 0},
	Dsub:  {"dsub", 0},
	Imul:  {"imul", 0},
	Lmul:  {"lmul", 0},
	Fmul:  {"fmul", 0},
	Dmul:  {"dmul", 0},
	Idiv:  {"idiv", 0},
	Ldiv:  {"ldiv", 0},
	Fdiv:  {"fdiv", 0},
	Ddiv:  {"ddiv", 0},
	Irem:  {"irem", 0},
	Lrem:  {"lrem", 0},
	Frem:  {"frem", 0},
	Drem:  {"drem", 0},
	Ineg:  {"ineg", 0},
	Lneg:  {"lneg", 0},
	Fneg:  {"fneg", 0},
	Dneg:  {"dneg", 0},
	Ishl:  {"ishl", 0},
	Lshl:  {"lshl", 0},
	Ishr:  {"ishr", 0},
	Lshr:  {"lshr", 0},
	Iushr: {"iushr", 0},
	Lushr: {"lushr", 0},
	Iand:  {"iand", 0},
	Land:  {"land", 0},
	Ior:   {"ior", 0},
	Lor:   {"lor", 0},
	Ixor:  {"ixor", 0},
	Lxor:  {"lxor", 0},
	Iinc:  {"iinc", 2},

	// Conversions
	I2l: {"i2l", 0},
	I2f: {"i2f", 0},
	I2d: {"i2d", 0},
	L2i: {"l2i", 0},
	L2f: {"l2f", 0},
	L2d: {"l2d", 0},
	F2i: {"f2i", 0},
	F2l: {"f2l", 0},
	F2d: {"f2d", 0},
	D2i: {"d2i", 0},
	D2l: {"d2l", 0},
	D2f: {"d2f", 0},
	I2b: {"i2b", 0},
	I2c: {"i2c", 0},
	I2s: {"i2s", 0},

	// Comparisons
	Lcmp:     {"lcmp", 0},
	Fcmpl:    {"fcmpl", 0},
	Fcmpg:    {"fcmpg", 0},
	Dcmpl:    {"dcmpl", 0},
	Dcmpg:    {"dcmpg", 0},
	Ifeq:     {"ifeq", 2},
	Ifne:     {"ifne", 2},
	Iflt:     {"iflt", 2},
	Ifge:     {"ifge", 2},
	Ifgt:     {"ifgt", 2},
	Ifle:     {"ifle", 2},
	IfIcmpeq: {"if_icmpeq", 2},
	IfIcmpne: {"if_icmpne", 2},
	IfIcmplt: {"if_icmplt", 2},
	IfIcmpge: {"if_icmpge", 2},
	IfIcmpgt: {"if_icmpgt", 2},
	IfIcmple: {"if_icmple", 2},
	IfAcmpeq: {"if_acmpeq", 2},
	IfAcmpne: {"if_acmpne", 2},

	// Control
	Goto:         {"goto", 2},
	Jsr:          {"jsr", 2},
	Ret:          {"ret", 1},
	Tableswitch:  {"tableswitch", -1},
	Lookupswitch: {"lookupswitch", -1},
	Ireturn:      {"ireturn", 0},
	Lreturn:      {"lreturn", 0},
	Freturn:      {"freturn", 0},
	Dreturn:      {"dreturn", 0},
	Areturn:      {"areturn", 0},
	Return:       {"return", 0},

	// References
	Getstatic:       {"getstatic", 2},
	Putstatic:       {"putstatic", 2},
	Getfield:        {"getfield", 2},
	Putfield:        {"putfield", 2},
	Invokevirtual:   {"invokevirtual", 2},
	Invokespecial:   {"invokespecial", 2},
	Invokestatic:    {"invokestatic", 2},
	Invokeinterface: {"invokeinterface", 4},
	Invokedynamic:   {"invokedynamic", 4},
	New:             {"new", 2},
	Newarray:        {"newarray", 1},
	Anewarray:       {"anewarray", 2},
	Arraylength:     {"arraylength", 0},
	Athrow:          {"athrow", 0},
	Checkcast:       {"checkcast", 2},
	Instanceof:      {"instanceof", 2},
	Monitorenter:    {"monitorenter", 0},
	Monitorexit:     {"monitorexit", 0},

	// Extended
	Wide:           {"wide", -1},
	Multianewarray: {"multianewarray", 3},
	Ifnull:         {"ifnull", 2},
	Ifnonnull:      {"ifnonnull", 2},
	GotoW:          {"goto_w", 4},
	JsrW:           {"jsr_w", 4},

	// Reserved
	Breakpoint: {"breakpoint", 0},
	Impdep1:    {"impdep1", 0},
	Impdep2:    {"impdep2", 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo named "unknown(0xNN)" if the opcode is not defined.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("unknown(0x%02X)", byte(op))}
}

// Defined reports whether op is part of the instruction set.
func (op Opcode) Defined() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for fixed-length opcodes,
// or -1 for tableswitch, lookupswitch and wide.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the encoded length of the instruction starting at
// code[pc], including padding and jump tables for the switch instructions.
func InstructionLen(code []byte, pc int) (int, error) {
	if pc < 0 || pc >= len(code) {
		return 0, fmt.Errorf("pc %d out of range [0, %d)", pc, len(code))
	}
	op := Opcode(code[pc])
	if !op.Defined() {
		return 0, fmt.Errorf("undefined opcode 0x%02X at pc %d", byte(op), pc)
	}
	n := op.OperandLen()
	if n >= 0 {
		return 1 + n, nil
	}
	switch op {
	case Wide:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("truncated wide at pc %d", pc)
		}
		if Opcode(code[pc+1]) == Iinc {
			return 6, nil
		}
		return 4, nil
	case Tableswitch:
		base := SwitchBase(pc)
		if base+12 > len(code) {
			return 0, fmt.Errorf("truncated tableswitch at pc %d", pc)
		}
		low := int32(ReadU32(code, base+4))
		high := int32(ReadU32(code, base+8))
		if high < low {
			return 0, fmt.Errorf("tableswitch at pc %d has high %d < low %d", pc, high, low)
		}
		return base + 12 + 4*int(high-low+1) - pc, nil
	case Lookupswitch:
		base := SwitchBase(pc)
		if base+8 > len(code) {
			return 0, fmt.Errorf("truncated lookupswitch at pc %d", pc)
		}
		npairs := int32(ReadU32(code, base+4))
		if npairs < 0 {
			return 0, fmt.Errorf("lookupswitch at pc %d has %d pairs", pc, npairs)
		}
		return base + 8 + 8*int(npairs) - pc, nil
	}
	return 0, fmt.Errorf("cannot size opcode %s at pc %d", op, pc)
}

// SwitchBase returns the offset of the first 4-byte operand of a switch
// instruction at pc, after 0-3 bytes of alignment padding.
func SwitchBase(pc int) int {
	return (pc + 4) &^ 3
}

// ReadU16 reads a big-endian unsigned 16-bit operand.
func ReadU16(code []byte, at int) uint16 {
	return binary.BigEndian.Uint16(code[at:])
}

// ReadU32 reads a big-endian 32-bit operand.
func ReadU32(code []byte, at int) uint32 {
	return binary.BigEndian.Uint32(code[at:])
}

// AllOpcodes returns every defined opcode.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
