// Package bootargs provides access to the argument block that the boot loader
// passes to the kernel entry point.
package bootargs

import (
	"rikaos/kernel/mem"
	"rikaos/kernel/mem/pmm"
	"unsafe"
)

// Args mirrors the boot loader's argument block. Every field is a 64-bit
// value so the Go layout matches the packed 48-byte block exactly.
type Args struct {
	KernelBase uint64
	KernelSize uint64
	StackBase  uint64
	StackSize  uint64
	EnvBase    uint64
	EnvSize    uint64
}

// FromPtr overlays an Args value on the block located at ptr.
func FromPtr(ptr uintptr) *Args {
	return (*Args)(unsafe.Pointer(ptr))
}

// KernelStart returns the physical address of the first byte of the kernel
// image.
func (a *Args) KernelStart() pmm.PhysAddr {
	return pmm.PhysAddrUnchecked(a.KernelBase)
}

// KernelEnd returns the physical address of the first byte past the kernel
// image.
func (a *Args) KernelEnd() pmm.PhysAddr {
	return pmm.PhysAddrUnchecked(a.KernelBase + a.KernelSize)
}

// KernelImageSize returns the size of the kernel image.
func (a *Args) KernelImageSize() mem.Size {
	return mem.Size(a.KernelSize)
}
