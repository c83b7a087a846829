package allocator

import (
	"io"
	"rikaos/kernel"
	"rikaos/kernel/hal/e820"
	"rikaos/kernel/kfmt"
	"rikaos/kernel/mem"
	"rikaos/kernel/mem/pmm"
)

var (
	// earlyAllocator is a boot mem allocator instance used for page
	// table allocations before switching to a more advanced allocator.
	earlyAllocator BootMemAllocator

	// ErrOutOfMemory is returned once every selectable memory area has
	// been handed out. Callers must treat it as fatal.
	ErrOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "no memory available for page tables"}

	logWriter = kfmt.PrefixWriter{Prefix: []byte("[boot_mem_alloc] ")}
)

// BootMemAllocator implements a rudimentary physical memory allocator which
// is used to bootstrap the kernel.
//
// The allocator walks the memory areas reported by the firmware in ascending
// base address order, one area at a time, and hands out the 4K frames of the
// current area in increasing order. Frames that overlap the kernel image are
// skipped. Frames can not be freed; once the kernel is up the allocated frames
// are handed over to a more advanced allocator.
//
// The allocator itself is agnostic to memory types. Which areas may be used
// is decided by the AreaFilter supplied to Init: e820.FreeAreas restricts
// allocations to usable RAM while e820.AllAreas hands out any reported area.
type BootMemAllocator struct {
	// areas is rewound and re-scanned whenever a new area is selected.
	areas  e820.AreaIterator
	filter e820.AreaFilter

	// cursor is the index of the next 4K frame to hand out.
	cursor uint64

	// The selected area expressed as the frame range [areaStart, areaEnd).
	hasArea            bool
	current            e820.Tag
	areaStart, areaEnd uint64

	// The kernel image frame range [kernelStartFrame, kernelEndFrame].
	hasKernel                        bool
	kernelStartAddr, kernelEndAddr   pmm.PhysAddr
	kernelStartFrame, kernelEndFrame uint64

	// allocCount tracks the total number of allocated frames.
	allocCount uint64
}

// Init resets the allocator so that it hands out frames from the areas
// returned by areas that pass filter, excluding the kernel image located at
// [kernelStart, kernelEnd). A nil filter accepts every area.
func (alloc *BootMemAllocator) Init(areas e820.AreaIterator, filter e820.AreaFilter, kernelStart, kernelEnd pmm.PhysAddr) {
	if filter == nil {
		filter = e820.AllAreas
	}

	// round down kernel start to the nearest page and round up kernel end
	// to the nearest page.
	pageSize := uint64(mem.PageSize4K.Bytes())
	*alloc = BootMemAllocator{
		areas:            areas,
		filter:           filter,
		hasKernel:        kernelEnd > kernelStart,
		kernelStartAddr:  kernelStart,
		kernelEndAddr:    kernelEnd,
		kernelStartFrame: mem.AlignDown(kernelStart.Uint64(), pageSize) >> mem.PageShift,
		kernelEndFrame:   (mem.AlignUp(kernelEnd.Uint64(), pageSize) >> mem.PageShift) - 1,
	}

	alloc.selectNextArea()
}

// AllocFrame reserves the next available 4K frame. It returns ErrOutOfMemory
// when no selectable memory area is left.
func (alloc *BootMemAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	for {
		switch {
		case !alloc.hasArea:
			return pmm.Frame{}, ErrOutOfMemory
		case alloc.cursor >= alloc.areaEnd:
			alloc.selectNextArea()
		case alloc.hasKernel && alloc.kernelStartFrame <= alloc.cursor && alloc.cursor <= alloc.kernelEndFrame:
			alloc.cursor = alloc.kernelEndFrame + 1
		default:
			frame := pmm.FrameFromIndex(alloc.cursor)
			alloc.cursor++
			alloc.allocCount++
			return frame, nil
		}
	}
}

// selectNextArea picks, among the areas accepted by the filter that still
// contain frames at or after the cursor, the one with the lowest base
// address. Areas that lie entirely behind the cursor are never revisited.
func (alloc *BootMemAllocator) selectNextArea() {
	alloc.hasArea = false

	it := alloc.areas
	it.Reset()
	for tag, ok := it.Next(); ok; tag, ok = it.Next() {
		if !alloc.filter(tag) {
			continue
		}

		start, end := areaFrames(tag)
		if start >= end || end <= alloc.cursor {
			continue
		}

		if !alloc.hasArea || tag.Base < alloc.current.Base {
			alloc.hasArea = true
			alloc.current = tag
			alloc.areaStart, alloc.areaEnd = start, end
		}
	}

	if alloc.hasArea && alloc.cursor < alloc.areaStart {
		alloc.cursor = alloc.areaStart
	}
}

// areaFrames returns the range of whole 4K frames [start, end) inside tag.
// Reported areas may not be page-aligned so the start is rounded up and the
// end rounded down.
func areaFrames(tag e820.Tag) (uint64, uint64) {
	pageSize := uint64(mem.PageSize4K.Bytes())
	start := mem.AlignUp(tag.Base.Uint64(), pageSize) >> mem.PageShift
	end := mem.AlignDown(tag.End().Uint64(), pageSize) >> mem.PageShift
	return start, end
}

// printStats prints the kernel image location and the number of frames it
// reserves.
func (alloc *BootMemAllocator) printStats(w io.Writer) {
	kfmt.Fprintf(w, "kernel loaded at 0x%x - 0x%x\n", alloc.kernelStartAddr.Uint64(), alloc.kernelEndAddr.Uint64())
	if !alloc.hasKernel {
		return
	}

	kfmt.Fprintf(w, "size: %d bytes, reserved pages: %d\n",
		alloc.kernelEndAddr.Uint64()-alloc.kernelStartAddr.Uint64(),
		alloc.kernelEndFrame-alloc.kernelStartFrame+1,
	)
}

// Init sets up the kernel's early physical frame allocator over the usable
// areas of the system memory map. e820.Init must have been called.
func Init(kernelStart, kernelEnd pmm.PhysAddr) *kernel.Error {
	earlyAllocator.Init(e820.AllMemoryAreas(), e820.FreeAreas, kernelStart, kernelEnd)
	earlyAllocator.printStats(&logWriter)

	if !earlyAllocator.hasArea {
		return ErrOutOfMemory
	}
	return nil
}

// AllocFrame is a helper that delegates a frame allocation request to the
// early allocator instance.
func AllocFrame() (pmm.Frame, *kernel.Error) {
	return earlyAllocator.AllocFrame()
}
