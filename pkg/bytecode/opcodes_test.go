package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "unknown") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
	}
}

func TestOpcodeCount(t *testing.T) {
	// 0x00-0xCA plus impdep1/impdep2.
	if got, want := OpcodeCount(), 0xCB+2; got != want {
		t.Errorf("OpcodeCount() = %d, want %d", got, want)
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{Nop, "nop"},
		{IconstM1, "iconst_m1"},
		{Iadd, "iadd"},
		{Iushr, "iushr"},
		{IfIcmpge, "if_icmpge"},
		{Invokestatic, "invokestatic"},
		{Multianewarray, "multianewarray"},
		{GotoW, "goto_w"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xE0)
	if op.Defined() {
		t.Fatal("0xE0 should not be defined")
	}
	if got := op.String(); !strings.HasPrefix(got, "unknown") {
		t.Errorf("String() = %q, want unknown prefix", got)
	}
}

func TestInstructionLenFixed(t *testing.T) {
	tests := []struct {
		code []byte
		want int
	}{
		{[]byte{byte(Iadd)}, 1},
		{[]byte{byte(Bipush), 5}, 2},
		{[]byte{byte(Invokestatic), 0, 1}, 3},
		{[]byte{byte(Invokeinterface), 0, 1, 2, 0}, 5},
		{[]byte{byte(GotoW), 0, 0, 0, 5}, 5},
		{[]byte{byte(Wide), byte(Iload), 1, 0}, 4},
		{[]byte{byte(Wide), byte(Iinc), 1, 0, 0, 1}, 6},
	}
	for _, tt := range tests {
		got, err := InstructionLen(tt.code, 0)
		if err != nil {
			t.Errorf("InstructionLen(%v): %v", tt.code, err)
			continue
		}
		if got != tt.want {
			t.Errorf("InstructionLen(%s) = %d, want %d", Opcode(tt.code[0]), got, tt.want)
		}
	}
}

func TestInstructionLenTableswitch(t *testing.T) {
	// nop; tableswitch at pc 1 pads to 4, then default, low=0, high=2, 3 offsets.
	code := []byte{byte(Nop), byte(Tableswitch), 0, 0}
	code = append(code,
		0, 0, 0, 20, // default
		0, 0, 0, 0, // low
		0, 0, 0, 2, // high
		0, 0, 0, 10,
		0, 0, 0, 11,
		0, 0, 0, 12,
	)
	got, err := InstructionLen(code, 1)
	if err != nil {
		t.Fatal(err)
	}
	if want := len(code) - 1; got != want {
		t.Errorf("InstructionLen = %d, want %d", got, want)
	}
}

func TestInstructionLenLookupswitch(t *testing.T) {
	code := []byte{byte(Lookupswitch), 0, 0, 0}
	code = append(code,
		0, 0, 0, 9, // default
		0, 0, 0, 1, // npairs
		0, 0, 0, 7, 0, 0, 0, 3,
	)
	got, err := InstructionLen(code, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != len(code) {
		t.Errorf("InstructionLen = %d, want %d", got, len(code))
	}
}

func TestInstructionLenErrors(t *testing.T) {
	if _, err := InstructionLen([]byte{0xE0}, 0); err == nil {
		t.Error("expected error for undefined opcode")
	}
	if _, err := InstructionLen([]byte{byte(Nop)}, 3); err == nil {
		t.Error("expected error for pc out of range")
	}
}
