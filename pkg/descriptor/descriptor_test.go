package descriptor

import (
	"errors"
	"testing"
)

func TestParseMethodMixedParams(t *testing.T) {
	m, err := ParseMethod("(I[ILjava/lang/String;)D")
	if err != nil {
		t.Fatalf("ParseMethod: %v", err)
	}
	if len(m.Params) != 3 {
		t.Fatalf("got %d params, want 3", len(m.Params))
	}
	if m.Params[0].Kind != Int {
		t.Errorf("param 0 = %v, want int", m.Params[0].Kind)
	}
	if m.Params[1].Kind != Array || m.Params[1].Dimensions() != 1 || m.Params[1].Component().Kind != Int {
		t.Errorf("param 1 = %s, want int array of dimension 1", m.Params[1])
	}
	if m.Params[2].Kind != Object || m.Params[2].ClassName != "java/lang/String" {
		t.Errorf("param 2 = %s, want Ljava/lang/String;", m.Params[2])
	}
	if m.Return.Kind != Double {
		t.Errorf("return = %v, want double", m.Return.Kind)
	}
	if got := m.ArgSlots(); got != 3 {
		t.Errorf("ArgSlots() = %d, want 3", got)
	}
}

func TestParseMethodRoundTrip(t *testing.T) {
	tests := []string{
		"()V",
		"(II)I",
		"(JD)J",
		"([[Ljava/lang/Object;Z)[B",
		"(Ljava/lang/String;Ljava/lang/Throwable;)V",
	}
	for _, s := range tests {
		m, err := ParseMethod(s)
		if err != nil {
			t.Errorf("ParseMethod(%q): %v", s, err)
			continue
		}
		if got := m.String(); got != s {
			t.Errorf("String() = %q, want %q", got, s)
		}
	}
}

func TestArgSlotsCountsWideTypes(t *testing.T) {
	m, err := ParseMethod("(JID)V")
	if err != nil {
		t.Fatal(err)
	}
	if got := m.ArgSlots(); got != 5 {
		t.Errorf("ArgSlots() = %d, want 5", got)
	}
	if !m.ReturnsVoid() {
		t.Error("expected void return")
	}
}

func TestParseField(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
		dims int
		slot int
	}{
		{"I", Int, 0, 1},
		{"J", Long, 0, 2},
		{"D", Double, 0, 2},
		{"Ljava/lang/Object;", Object, 0, 1},
		{"[[[F", Array, 3, 1},
	}
	for _, tt := range tests {
		ft, err := ParseField(tt.in)
		if err != nil {
			t.Errorf("ParseField(%q): %v", tt.in, err)
			continue
		}
		if ft.Kind != tt.kind {
			t.Errorf("ParseField(%q).Kind = %v, want %v", tt.in, ft.Kind, tt.kind)
		}
		if ft.Dimensions() != tt.dims {
			t.Errorf("ParseField(%q).Dimensions() = %d, want %d", tt.in, ft.Dimensions(), tt.dims)
		}
		if ft.Slots() != tt.slot {
			t.Errorf("ParseField(%q).Slots() = %d, want %d", tt.in, ft.Slots(), tt.slot)
		}
	}
}

func TestMalformed(t *testing.T) {
	bad := []string{"", "V", "Q", "L;", "Ljava/lang/String", "[", "II"}
	for _, s := range bad {
		if _, err := ParseField(s); !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseField(%q) err = %v, want ErrMalformed", s, err)
		}
	}
	badMethods := []string{"", "I", "(I", "(I)", "(V)V", "(I)VV"}
	for _, s := range badMethods {
		if _, err := ParseMethod(s); !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseMethod(%q) err = %v, want ErrMalformed", s, err)
		}
	}
}
