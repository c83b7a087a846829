package vmm

import (
	"math/rand"
	"testing"
)

func TestNewVirtAddr(t *testing.T) {
	specs := []struct {
		input  uint64
		expErr bool
	}{
		{0, false},
		{0x0000_7fff_ffff_ffff, false},
		{0x0000_8000_0000_0000, true},
		{0x1234_5678_9abc_def0, true},
		{0xffff_7fff_ffff_ffff, true},
		{0xffff_8000_0000_0000, false},
		{0xffff_ffff_8000_0000, false},
		{0xffff_ffff_ffff_ffff, false},
	}

	for specIndex, spec := range specs {
		addr, err := NewVirtAddr(spec.input)
		switch {
		case spec.expErr && err != ErrNonCanonical:
			t.Errorf("[spec %d] expected ErrNonCanonical for 0x%x; got %v", specIndex, spec.input, err)
		case !spec.expErr && err != nil:
			t.Errorf("[spec %d] unexpected error for 0x%x: %v", specIndex, spec.input, err)
		case !spec.expErr && addr.Uint64() != spec.input:
			t.Errorf("[spec %d] expected address 0x%x; got 0x%x", specIndex, spec.input, addr.Uint64())
		}
	}
}

func TestVirtAddrUnchecked(t *testing.T) {
	// Skips validation, so even non-canonical values pass through untouched.
	if exp, got := uint64(0x1234_5678_9abc_def0), VirtAddrUnchecked(0x1234_5678_9abc_def0).Uint64(); got != exp {
		t.Fatalf("expected 0x%x; got 0x%x", exp, got)
	}
}

func TestVirtAddrIndices(t *testing.T) {
	addr, err := NewVirtAddr(0xffff_ffff_8010_2abc)
	if err != nil {
		t.Fatal(err)
	}

	specs := []struct {
		got, exp uint64
		name     string
	}{
		{addr.P4Index(), 511, "P4"},
		{addr.P3Index(), 510, "P3"},
		{addr.P2Index(), 0, "P2"},
		{addr.P1Index(), 258, "P1"},
		{addr.PageOffset(), 0xabc, "offset"},
	}

	for _, spec := range specs {
		if spec.got != spec.exp {
			t.Errorf("expected %s index to be %d; got %d", spec.name, spec.exp, spec.got)
		}
	}
}

func randomCanonical(rng *rand.Rand) uint64 {
	v := rng.Uint64() & (lowerHalfEnd - 1)
	if rng.Intn(2) == 1 {
		v |= upperHalfStart
	}
	return v
}

func TestVirtAddrRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(47))

	for i := 0; i < 10000; i++ {
		addr, err := NewVirtAddr(randomCanonical(rng))
		if err != nil {
			t.Fatal(err)
		}

		got := VirtAddrFromIndices(addr.P4Index(), addr.P3Index(), addr.P2Index(), addr.P1Index(), addr.PageOffset())
		if got != addr {
			t.Fatalf("expected indices of 0x%x to reconstruct the same address; got 0x%x", addr, got)
		}
	}
}

func TestVirtAddrAlignment(t *testing.T) {
	rng := rand.New(rand.NewSource(12))

	for i := 0; i < 1000; i++ {
		addr := VirtAddr(randomCanonical(rng))
		alignment := uint64(1) << uint(rng.Intn(48))

		down := addr.AlignDown(alignment)
		if down > addr {
			t.Fatalf("AlignDown(0x%x, 0x%x) = 0x%x exceeds input", addr, alignment, down)
		}
		if !down.IsAligned(alignment) {
			t.Fatalf("AlignDown(0x%x, 0x%x) = 0x%x is not aligned", addr, alignment, down)
		}
		if again := down.AlignDown(alignment); again != down {
			t.Fatalf("AlignDown is not idempotent for 0x%x, 0x%x", addr, alignment)
		}
	}
}

func TestVirtAddrAlignDownLeavingCanonicalRange(t *testing.T) {
	defer func() {
		if err := recover(); err != ErrNonCanonical {
			t.Fatalf("expected to recover ErrNonCanonical; got %v", err)
		}
	}()

	VirtAddr(0xffff_8000_0000_0000).AlignDown(1 << 48)
	t.Fatal("expected AlignDown to panic")
}
