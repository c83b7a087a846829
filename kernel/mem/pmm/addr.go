// Package pmm contains the physical memory model: validated physical
// addresses and size-tagged page frames.
package pmm

import (
	"rikaos/kernel"
	"rikaos/kernel/mem"
)

// physAddrMask selects the bits above the 52-bit physical address width.
const physAddrMask = 0xfff0_0000_0000_0000

// ErrAddressRange is returned when a physical address has any of bits 52..63
// set.
var ErrAddressRange = &kernel.Error{Module: "pmm", Message: "physical address exceeds 52-bit range"}

// PhysAddr is a physical memory address. Valid values fit in 52 bits.
type PhysAddr uint64

// NewPhysAddr validates addr and returns it as a PhysAddr.
func NewPhysAddr(addr uint64) (PhysAddr, *kernel.Error) {
	if addr&physAddrMask != 0 {
		return 0, ErrAddressRange
	}

	return PhysAddr(addr), nil
}

// PhysAddrUnchecked converts addr to a PhysAddr without validating it. The
// caller guarantees that addr is a valid physical address, for example
// because it was re-derived from an already validated value.
func PhysAddrUnchecked(addr uint64) PhysAddr {
	return PhysAddr(addr)
}

// Uint64 returns the raw address value.
func (a PhysAddr) Uint64() uint64 {
	return uint64(a)
}

// AlignDown rounds the address down to a multiple of alignment which must
// be a power of two. The result never exceeds a and is itself valid.
func (a PhysAddr) AlignDown(alignment uint64) PhysAddr {
	return PhysAddr(mem.AlignDown(uint64(a), alignment))
}

// IsAligned returns true if the address is a multiple of alignment.
func (a PhysAddr) IsAligned(alignment uint64) bool {
	return a.AlignDown(alignment) == a
}
