package segment

import (
	"testing"
)

func TestSelector(t *testing.T) {
	specs := []struct {
		index uint16
		rpl   PrivilegeLevel
		exp   Selector
	}{
		{0, Ring0, 0x0},
		{1, Ring0, 0x8},
		{2, Ring0, 0x10},
		{4, Ring3, 0x23},
		{5, Ring3, 0x2b},
	}

	for specIndex, spec := range specs {
		sel := NewSelector(spec.index, spec.rpl)
		if sel != spec.exp {
			t.Errorf("[spec %d] expected selector 0x%x; got 0x%x", specIndex, spec.exp, sel)
		}

		if got := sel.Index(); got != spec.index {
			t.Errorf("[spec %d] expected index %d; got %d", specIndex, spec.index, got)
		}

		if got := sel.RPL(); got != spec.rpl {
			t.Errorf("[spec %d] expected RPL %d; got %d", specIndex, spec.rpl, got)
		}
	}
}

func TestPrivilegeLevelFromUint16(t *testing.T) {
	for v := uint16(0); v < 4; v++ {
		if got := PrivilegeLevelFromUint16(v); got != PrivilegeLevel(v) {
			t.Errorf("expected privilege level %d; got %d", v, got)
		}
	}

	defer func() {
		if err := recover(); err != errInvalidPrivilegeLevel {
			t.Fatalf("expected to recover errInvalidPrivilegeLevel; got %v", err)
		}
	}()

	PrivilegeLevelFromUint16(4)
	t.Fatal("expected PrivilegeLevelFromUint16 to panic")
}

func TestCurrentCS(t *testing.T) {
	defer func() {
		readCSFn = readCS
	}()

	readCSFn = func() uint16 { return 0x8 }

	sel := CurrentCS()
	if sel.Index() != 1 || sel.RPL() != Ring0 {
		t.Fatalf("expected CS to reference descriptor 1 at ring 0; got index %d ring %d", sel.Index(), sel.RPL())
	}
}
