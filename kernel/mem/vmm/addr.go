// Package vmm contains the virtual address model used by 4-level paging.
package vmm

import (
	"rikaos/kernel"
	"rikaos/kernel/mem"
)

const (
	// lowerHalfEnd is the first address past the lower canonical half.
	lowerHalfEnd = 0x0000_8000_0000_0000

	// upperHalfStart is the first address of the upper canonical half.
	upperHalfStart = 0xffff_8000_0000_0000

	// tableIndexBits is the number of address bits consumed by each page
	// table level.
	tableIndexBits = 9
	tableIndexMask = 1<<tableIndexBits - 1

	pageOffsetMask = 1<<mem.PageShift - 1
)

// ErrNonCanonical is returned when a virtual address is not in canonical
// form.
var ErrNonCanonical = &kernel.Error{Module: "vmm", Message: "non-canonical virtual address"}

// VirtAddr is a canonical x86_64 virtual address: bits 48..63 are copies of
// bit 47.
type VirtAddr uint64

// NewVirtAddr validates addr and returns it as a VirtAddr.
func NewVirtAddr(addr uint64) (VirtAddr, *kernel.Error) {
	if !isCanonical(addr) {
		return 0, ErrNonCanonical
	}

	return VirtAddr(addr), nil
}

// VirtAddrUnchecked converts addr to a VirtAddr without validating it. The
// caller guarantees that addr is canonical.
func VirtAddrUnchecked(addr uint64) VirtAddr {
	return VirtAddr(addr)
}

// VirtAddrFromIndices assembles a virtual address from its page table indices
// and page offset. Bit 47 is sign-extended so the result is always
// canonical. Index values are truncated to 9 bits and the offset to 12 bits.
func VirtAddrFromIndices(p4, p3, p2, p1, offset uint64) VirtAddr {
	addr := (p4&tableIndexMask)<<39 |
		(p3&tableIndexMask)<<30 |
		(p2&tableIndexMask)<<21 |
		(p1&tableIndexMask)<<12 |
		offset&pageOffsetMask

	if addr&(1<<47) != 0 {
		addr |= upperHalfStart
	}

	return VirtAddr(addr)
}

func isCanonical(addr uint64) bool {
	return addr < lowerHalfEnd || addr >= upperHalfStart
}

// Uint64 returns the raw address value.
func (a VirtAddr) Uint64() uint64 {
	return uint64(a)
}

// AlignDown rounds the address down to a multiple of alignment which must be
// a power of two. Aligning an upper-half address to more than 2^47 bytes
// would leave the canonical range and causes a kernel panic.
func (a VirtAddr) AlignDown(alignment uint64) VirtAddr {
	aligned := mem.AlignDown(uint64(a), alignment)
	if !isCanonical(aligned) {
		panic(ErrNonCanonical)
	}

	return VirtAddr(aligned)
}

// IsAligned returns true if the address is a multiple of alignment.
func (a VirtAddr) IsAligned(alignment uint64) bool {
	return mem.AlignDown(uint64(a), alignment) == uint64(a)
}

// P4Index returns the PML4 index (bits 39..47).
func (a VirtAddr) P4Index() uint64 {
	return (uint64(a) >> 39) & tableIndexMask
}

// P3Index returns the page directory pointer table index (bits 30..38).
func (a VirtAddr) P3Index() uint64 {
	return (uint64(a) >> 30) & tableIndexMask
}

// P2Index returns the page directory index (bits 21..29).
func (a VirtAddr) P2Index() uint64 {
	return (uint64(a) >> 21) & tableIndexMask
}

// P1Index returns the page table index (bits 12..20).
func (a VirtAddr) P1Index() uint64 {
	return (uint64(a) >> 12) & tableIndexMask
}

// PageOffset returns the offset inside the 4K page (bits 0..11).
func (a VirtAddr) PageOffset() uint64 {
	return uint64(a) & pageOffsetMask
}
