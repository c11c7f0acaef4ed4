package vm

import (
	"sort"
	"testing"

	"github.com/chazu/jolt/pkg/bytecode"
	"github.com/chazu/jolt/pkg/classfile"
)

func TestNativesRegistry(t *testing.T) {
	n := NewNatives()
	if n.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", n.Count())
	}
	fn := func(t *Thread, args []Value) (Value, error) { return IntValue(1), nil }
	n.Register("demo/Host", "ping", "()I", fn)
	n.Register("demo/Host", "ping", "(I)I", fn)

	if !n.Has("demo/Host", "ping", "()I") {
		t.Error("Has(ping()I) = false")
	}
	if n.Has("demo/Host", "pong", "()I") {
		t.Error("Has(pong()I) = true")
	}
	keys := n.Keys()
	sort.Strings(keys)
	want := []string{"demo/Host.ping:()I", "demo/Host.ping:(I)I"}
	if len(keys) != 2 || keys[0] != want[0] || keys[1] != want[1] {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}
}

func TestBuiltinNativesRegistered(t *testing.T) {
	v := New()
	for _, k := range [][3]string{
		{ObjectClassName, "hashCode", "()I"},
		{SystemClassName, "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V"},
		{ThrowableClassName, "fillInStackTrace", "()Ljava/lang/Throwable;"},
	} {
		if !v.Natives().Has(k[0], k[1], k[2]) {
			t.Errorf("no native for %s.%s%s", k[0], k[1], k[2])
		}
	}
}

func TestVTableOverride(t *testing.T) {
	v := New()
	_, sub := defineWho(t, v)

	vt := sub.VTable()
	if vt.Class() != sub {
		t.Errorf("Class() = %s, want Sub", vt.Class())
	}
	if m := vt.Lookup("who", "()I"); m == nil || m.Class != sub {
		t.Errorf("Lookup(who) = %v, want Sub.who", m)
	}
	if m := vt.Parent().Lookup("who", "()I"); m == nil || m.Class.Name != "Base" {
		t.Errorf("parent Lookup(who) = %v, want Base.who", m)
	}
	if m := vt.Lookup("hashCode", "()I"); m == nil || m.Class.Name != ObjectClassName {
		t.Errorf("Lookup(hashCode) = %v, want inherited from Object", m)
	}
	if vt.LookupLocal("hashCode", "()I") != nil {
		t.Error("LookupLocal found an inherited method")
	}

	var names []string
	for _, m := range vt.LocalMethods() {
		names = append(names, m.Name+m.Descriptor)
	}
	want := []string{"<init>()V", "callSuper()I", "callWho()I", "who()I"}
	if len(names) != len(want) {
		t.Fatalf("LocalMethods() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("LocalMethods()[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestOverloadsAreDistinct(t *testing.T) {
	v := New()
	b := classfile.NewBuilder("Over", ObjectClassName)
	b.AddMethod(static, "f", "(I)I", 1, 1, asm().Op(bytecode.Iconst1, bytecode.Ireturn).Bytes())
	b.AddMethod(static, "f", "(J)I", 1, 2, asm().Op(bytecode.Iconst2, bytecode.Ireturn).Bytes())
	mustDefine(t, v, b.Build())

	got, err := v.Invoke("Over", "f", "(J)I", LongValue(5))
	wantInt(t, got, err, 2)
	got, err = v.Invoke("Over", "f", "(I)I", IntValue(5))
	wantInt(t, got, err, 1)
}
