package pmm

import "rikaos/kernel/mem"

// Frame is a physical memory region whose size and alignment match one of
// the supported page sizes.
type Frame struct {
	// Size is the page granularity of the frame.
	Size mem.PageSize

	// Start is the first address of the frame, aligned to Size.
	Start PhysAddr
}

// FrameContaining returns the frame of the requested size that contains addr.
func FrameContaining(addr PhysAddr, size mem.PageSize) Frame {
	return Frame{
		Size:  size,
		Start: addr.AlignDown(uint64(size.Bytes())),
	}
}

// FrameFromIndex returns the 4K frame with the given frame number.
func FrameFromIndex(index uint64) Frame {
	return Frame{
		Size:  mem.PageSize4K,
		Start: PhysAddr(index << mem.PageShift),
	}
}

// Index returns the frame number of f in units of its own size.
func (f Frame) Index() uint64 {
	return uint64(f.Start) >> f.Size.Shift()
}

// End returns the address of the first byte past the frame.
func (f Frame) End() PhysAddr {
	return f.Start + PhysAddr(f.Size.Bytes())
}

// Contains returns true if addr falls inside the frame.
func (f Frame) Contains(addr PhysAddr) bool {
	return addr >= f.Start && addr < f.End()
}
