package allocator

import (
	"bytes"
	"encoding/binary"
	"rikaos/kernel/hal/e820"
	"rikaos/kernel/kfmt"
	"rikaos/kernel/mem/pmm"
	"testing"
	"unsafe"
)

type testArea struct {
	base, size uint64
	memType    uint32
}

// memoryMap builds an e820.Map from the supplied areas by encoding them as
// firmware records.
func memoryMap(t *testing.T, areas ...testArea) *e820.Map {
	var buf bytes.Buffer
	for _, area := range append(areas[:len(areas):len(areas)], testArea{}) {
		binary.Write(&buf, binary.LittleEndian, area.base)
		binary.Write(&buf, binary.LittleEndian, area.size)
		binary.Write(&buf, binary.LittleEndian, area.memType)
		binary.Write(&buf, binary.LittleEndian, uint32(0))
	}

	blob := make([]uint64, buf.Len()/8)
	for i := range blob {
		blob[i] = binary.LittleEndian.Uint64(buf.Bytes()[i*8:])
	}

	var m e820.Map
	if err := m.Read(uintptr(unsafe.Pointer(&blob[0]))); err != nil {
		t.Fatalf("unexpected error building the memory map: %v", err)
	}
	return &m
}

// qemuAreas encodes the following memory areas:
// [     0 -   9fc00] length:    654336 (free)
// [ 9fc00 -   a0000] length:      1024 (reserved)
// [ f0000 -  100000] length:     65536 (reserved)
// [100000 - 7fe0000] length: 133038080 (free)
// [7fe0000 - 8000000] length:   131072 (reserved)
// [fffc0000 - 100000000] length: 262144 (reserved)
var qemuAreas = []testArea{
	{0x0, 0x9fc00, 1},
	{0x9fc00, 0x400, 2},
	{0xf0000, 0x10000, 2},
	{0x100000, 0x7ee0000, 1},
	{0x7fe0000, 0x20000, 2},
	{0xfffc0000, 0x40000, 2},
}

func TestBootMemoryAllocator(t *testing.T) {
	m := memoryMap(t, qemuAreas...)

	specs := []struct {
		kernelStart, kernelEnd pmm.PhysAddr
		expAllocCount          uint64
	}{
		{
			// the kernel is loaded in a reserved memory region
			0xa0000,
			0xa0000,
			// region 1 extents get rounded to [0, 9f000] and provides 159 frames [0 to 158]
			// region 2 uses the original extents [100000 - 7fe0000] and provides 32480 frames [256-32735]
			159 + 32480,
		},
		{
			// the kernel is loaded at the beginning of region 1 taking 2.5 pages
			0x0,
			0x2800,
			// frames 0, 1 and 2 (round up kernel end) are used by the kernel
			159 - 3 + 32480,
		},
		{
			// the kernel is loaded at the end of region 1 taking 2.5 pages
			0x9c800,
			0x9f000,
			// frames 156, 157 and 158 (round down kernel start) are used by the kernel
			159 - 3 + 32480,
		},
		{
			// the kernel (after rounding) uses the entire region 1
			0x123,
			0x9fc00,
			32480,
		},
		{
			// the kernel is loaded at region 2 start + 2K taking 1.5 pages;
			// frames 256 (kernel start rounded down) and 257 are used by the kernel
			0x100800,
			0x102000,
			159 + 32480 - 2,
		},
	}

	var alloc BootMemAllocator
	for specIndex, spec := range specs {
		alloc.Init(m.Areas(), e820.FreeAreas, spec.kernelStart, spec.kernelEnd)

		var lastFrame pmm.Frame
		for {
			frame, err := alloc.AllocFrame()
			if err != nil {
				if err == ErrOutOfMemory {
					break
				}
				t.Errorf("[spec %d] [frame %d] unexpected allocator error: %v", specIndex, alloc.allocCount, err)
				break
			}

			if alloc.allocCount > 1 && frame.Start <= lastFrame.Start {
				t.Errorf("[spec %d] expected frame addresses to increase; got 0x%x after 0x%x", specIndex, frame.Start, lastFrame.Start)
			}
			lastFrame = frame

			if spec.kernelEnd > spec.kernelStart && frame.End() > spec.kernelStart && frame.Start < spec.kernelEnd {
				t.Errorf("[spec %d] frame 0x%x overlaps the kernel image", specIndex, frame.Start)
			}
		}

		if alloc.allocCount != spec.expAllocCount {
			t.Errorf("[spec %d] expected allocator to allocate %d frames; allocated %d", specIndex, spec.expAllocCount, alloc.allocCount)
		}
	}
}

func TestBootMemoryAllocatorSingleArea(t *testing.T) {
	var (
		alloc       BootMemAllocator
		m           = memoryMap(t, testArea{0x100000, 0x100000, 1})
		kernelStart = pmm.PhysAddr(0x100000)
		kernelEnd   = pmm.PhysAddr(0x101000)
		next        = pmm.PhysAddr(0x101000)
	)

	alloc.Init(m.Areas(), e820.FreeAreas, kernelStart, kernelEnd)

	for ; next < 0x200000; next += 0x1000 {
		frame, err := alloc.AllocFrame()
		if err != nil {
			t.Fatalf("unexpected error while allocating 0x%x: %v", next, err)
		}

		if frame.Start != next {
			t.Fatalf("expected frame 0x%x; got 0x%x", next, frame.Start)
		}

		if !frame.Start.IsAligned(0x1000) {
			t.Fatalf("expected frame 0x%x to be 4K-aligned", frame.Start)
		}
	}

	for i := 0; i < 2; i++ {
		if _, err := alloc.AllocFrame(); err != ErrOutOfMemory {
			t.Fatalf("expected ErrOutOfMemory once the area is exhausted; got %v", err)
		}
	}
}

func TestBootMemoryAllocatorTopOfPhysicalRange(t *testing.T) {
	var (
		alloc BootMemAllocator
		m     = memoryMap(t, testArea{0x000f_ffff_ffff_e000, 0x2000, 1})
	)

	alloc.Init(m.Areas(), e820.FreeAreas, 0, 0)

	for _, exp := range []pmm.PhysAddr{0x000f_ffff_ffff_e000, 0x000f_ffff_ffff_f000} {
		frame, err := alloc.AllocFrame()
		if err != nil {
			t.Fatalf("unexpected error while allocating 0x%x: %v", exp, err)
		}

		if frame.Start != exp {
			t.Fatalf("expected frame 0x%x; got 0x%x", exp, frame.Start)
		}

		if _, err = pmm.NewPhysAddr(frame.Start.Uint64()); err != nil {
			t.Fatalf("expected frame 0x%x to be a valid physical address", frame.Start)
		}
	}

	if _, err := alloc.AllocFrame(); err != ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory past the 52-bit limit; got %v", err)
	}
}

func TestBootMemoryAllocatorAreaPolicy(t *testing.T) {
	m := memoryMap(t,
		testArea{0x200000, 0x2000, 1},
		testArea{0x100000, 0x2000, 2},
		testArea{0x300000, 0x1000, 3},
	)

	specs := []struct {
		filter    e820.AreaFilter
		expFrames []pmm.PhysAddr
	}{
		{e820.FreeAreas, []pmm.PhysAddr{0x200000, 0x201000}},
		{e820.AllAreas, []pmm.PhysAddr{0x100000, 0x101000, 0x200000, 0x201000, 0x300000}},
		{nil, []pmm.PhysAddr{0x100000, 0x101000, 0x200000, 0x201000, 0x300000}},
	}

	var alloc BootMemAllocator
	for specIndex, spec := range specs {
		alloc.Init(m.Areas(), spec.filter, 0, 0)

		var got []pmm.PhysAddr
		for {
			frame, err := alloc.AllocFrame()
			if err != nil {
				break
			}
			got = append(got, frame.Start)
		}

		if len(got) != len(spec.expFrames) {
			t.Errorf("[spec %d] expected frames %x; got %x", specIndex, spec.expFrames, got)
			continue
		}

		for i := range got {
			if got[i] != spec.expFrames[i] {
				t.Errorf("[spec %d] expected frames %x; got %x", specIndex, spec.expFrames, got)
				break
			}
		}
	}
}

func TestBootMemoryAllocatorOverlappingAreas(t *testing.T) {
	// the second area starts inside the first one; frames that were
	// already handed out must not be returned again.
	m := memoryMap(t,
		testArea{0x0, 0x3000, 1},
		testArea{0x1000, 0x4000, 1},
	)

	var alloc BootMemAllocator
	alloc.Init(m.Areas(), e820.FreeAreas, 0, 0)

	for exp := pmm.PhysAddr(0); exp < 0x5000; exp += 0x1000 {
		frame, err := alloc.AllocFrame()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if frame.Start != exp {
			t.Fatalf("expected frame 0x%x; got 0x%x", exp, frame.Start)
		}
	}

	if _, err := alloc.AllocFrame(); err != ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory; got %v", err)
	}
}

func TestBootMemoryAllocatorNoAreas(t *testing.T) {
	var alloc BootMemAllocator
	alloc.Init(memoryMap(t).Areas(), e820.FreeAreas, 0x100000, 0x200000)

	if _, err := alloc.AllocFrame(); err != ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory; got %v", err)
	}
}

func TestInit(t *testing.T) {
	defer func() {
		earlyAllocator = BootMemAllocator{}
		kfmt.SetOutputSink(nil)
	}()

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)
	buf.Reset()

	// The system map has not been initialized so no memory is available
	if err := Init(0x100000, 0x102800); err != ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory; got %v", err)
	}

	if _, err := AllocFrame(); err != ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory; got %v", err)
	}

	exp := "[boot_mem_alloc] kernel loaded at 0x100000 - 0x102800\n[boot_mem_alloc] size: 10240 bytes, reserved pages: 3\n"
	if got := buf.String(); got != exp {
		t.Fatalf("expected output:\n%q\ngot:\n%q", exp, got)
	}
}
