// Package e820 reads the firmware (BIOS INT 15h, AX=E820h) memory map that the
// boot loader leaves in low memory and exposes it as a fixed-capacity table
// of memory areas.
package e820

import (
	"io"
	"rikaos/kernel"
	"rikaos/kernel/kfmt"
	"rikaos/kernel/mem"
	"rikaos/kernel/mem/pmm"
	"unsafe"
)

const (
	// MaxEntries is the number of memory areas the table can hold. Maps
	// with more entries are treated as malformed.
	MaxEntries = 20

	// DefaultMapAddress is the physical address where the boot loader
	// stores the memory map records.
	DefaultMapAddress = uintptr(0x500)

	// physAddrLimit is the first address past the 52-bit physical address
	// space.
	physAddrLimit = 1 << 52

	// recordSize is the size of a firmware record in bytes.
	recordSize = unsafe.Sizeof(rawRecord{})
)

var (
	// ErrMalformedMap is returned when the firmware map holds more than
	// MaxEntries records before its terminator.
	ErrMalformedMap = &kernel.Error{Module: "e820", Message: "malformed E820 map: too many entries"}

	// ErrInvalidBase is returned when a record reports a base address that
	// is not a valid physical address.
	ErrInvalidBase = &kernel.Error{Module: "e820", Message: "malformed E820 map: invalid base address"}

	// ErrInvalidRange is returned when a record's end address overflows or
	// lies past the highest addressable physical byte.
	ErrInvalidRange = &kernel.Error{Module: "e820", Message: "malformed E820 map: area exceeds physical address range"}

	// ErrAlreadyInitialized is returned by Init when called more than once.
	ErrAlreadyInitialized = &kernel.Error{Module: "e820", Message: "memory map already initialized"}

	systemMap         Map
	systemInitialized bool

	logWriter = kfmt.PrefixWriter{Prefix: []byte("[e820] ")}
)

// rawRecord is the layout of a firmware memory map record. All fields are
// naturally aligned so the struct has no padding and is 24 bytes long.
type rawRecord struct {
	base     uint64
	size     uint64
	memType  uint32
	reserved uint32
}

// Type describes the kind of memory backing an area.
type Type uint8

const (
	// TypeNone marks an unused table slot.
	TypeNone Type = iota

	// TypeFree is memory available to the OS (firmware type 1).
	TypeFree

	// TypeReserved is memory that must not be used (firmware type 2).
	TypeReserved

	// TypeUnknown covers every other firmware type, e.g. ACPI tables and
	// NVS. It is never handed out.
	TypeUnknown
)

// typeFromFirmware maps a non-zero firmware type code to a Type.
func typeFromFirmware(code uint32) Type {
	switch code {
	case 1:
		return TypeFree
	case 2:
		return TypeReserved
	default:
		return TypeUnknown
	}
}

// String implements fmt.Stringer for Type.
func (t Type) String() string {
	switch t {
	case TypeFree:
		return "free"
	case TypeReserved:
		return "reserved"
	case TypeUnknown:
		return "unknown"
	default:
		return "none"
	}
}

// Tag describes a single memory area.
type Tag struct {
	// Base is the first physical address of the area.
	Base pmm.PhysAddr

	// Size is the length of the area in bytes.
	Size mem.Size

	// Type of memory backing the area.
	Type Type
}

// End returns the address of the first byte past the area.
func (t Tag) End() pmm.PhysAddr {
	return t.Base + pmm.PhysAddr(t.Size)
}

// IsFree returns true if the area is usable memory.
func (t Tag) IsFree() bool {
	return t.Type == TypeFree
}

// AreaFilter selects the areas a consumer is allowed to use.
type AreaFilter func(Tag) bool

// FreeAreas is an AreaFilter that only accepts TypeFree areas.
func FreeAreas(t Tag) bool {
	return t.IsFree()
}

// AllAreas is an AreaFilter that accepts every area regardless of its type.
func AllAreas(Tag) bool {
	return true
}

// Map is a table of memory areas in discovery order.
type Map struct {
	tags      [MaxEntries]Tag
	count     int
	totalSize mem.Size
	freeSize  mem.Size
}

// Read parses the firmware records that start at address base and appends
// them to the map. Parsing stops at the first record whose type is 0.
//
// Read returns ErrMalformedMap if a record would exceed the table capacity,
// ErrInvalidBase if a record reports an address wider than 52 bits and
// ErrInvalidRange if the area extends past the 52-bit limit. In all cases no
// further records are stored.
func (m *Map) Read(base uintptr) *kernel.Error {
	for recAddr := base; ; recAddr += recordSize {
		rec := (*rawRecord)(unsafe.Pointer(recAddr))
		if rec.memType == 0 {
			return nil
		}

		if m.count == MaxEntries {
			return ErrMalformedMap
		}

		areaBase, err := pmm.NewPhysAddr(rec.base)
		if err != nil {
			return ErrInvalidBase
		}

		if end := rec.base + rec.size; end < rec.base || end > physAddrLimit {
			return ErrInvalidRange
		}

		tag := Tag{
			Base: areaBase,
			Size: mem.Size(rec.size),
			Type: typeFromFirmware(rec.memType),
		}

		m.tags[m.count] = tag
		m.count++
		m.totalSize += tag.Size
		if tag.IsFree() {
			m.freeSize += tag.Size
		}
	}
}

// TotalPhysicalMemory returns the sum of the sizes of all discovered areas.
func (m *Map) TotalPhysicalMemory() mem.Size {
	return m.totalSize
}

// FreeMemory returns the sum of the sizes of all TypeFree areas.
func (m *Map) FreeMemory() mem.Size {
	return m.freeSize
}

// AreaCount returns the number of discovered areas.
func (m *Map) AreaCount() int {
	return m.count
}

// Areas returns an iterator over the discovered areas in discovery order.
func (m *Map) Areas() AreaIterator {
	return AreaIterator{m: m}
}

// Dump prints the memory map to w.
func (m *Map) Dump(w io.Writer) {
	kfmt.Fprintf(w, "system memory map:\n")
	for i := 0; i < m.count; i++ {
		tag := &m.tags[i]
		kfmt.Fprintf(w, "\t[0x%10x - 0x%10x], size: %10d, type: %s\n", tag.Base.Uint64(), tag.End().Uint64(), uint64(tag.Size), tag.Type.String())
	}
	kfmt.Fprintf(w, "total memory: %dKb, available: %dKb\n", uint64(m.totalSize/mem.Kb), uint64(m.freeSize/mem.Kb))
}

// AreaIterator walks the areas of a Map. Copies of an iterator advance
// independently, so a scan can be restarted from any saved position.
type AreaIterator struct {
	m   *Map
	loc int
}

// Next returns the next area and true, or an empty Tag and false once all
// areas have been visited.
func (it *AreaIterator) Next() (Tag, bool) {
	if it.m == nil || it.loc >= it.m.count {
		return Tag{}, false
	}

	tag := it.m.tags[it.loc]
	it.loc++
	return tag, true
}

// Reset rewinds the iterator to the first area.
func (it *AreaIterator) Reset() {
	it.loc = 0
}

// Init reads the firmware memory map at base into the process-wide map. It
// must be called exactly once during early boot, before interrupts are
// enabled; afterwards the map is read-only.
func Init(base uintptr) *kernel.Error {
	if systemInitialized {
		return ErrAlreadyInitialized
	}
	systemInitialized = true

	if err := systemMap.Read(base); err != nil {
		return err
	}

	systemMap.Dump(&logWriter)
	return nil
}

// System returns the process-wide memory map populated by Init.
func System() *Map {
	return &systemMap
}

// TotalPhysicalMemory returns the total size of the areas in the system map.
func TotalPhysicalMemory() mem.Size {
	return systemMap.TotalPhysicalMemory()
}

// AreaCount returns the number of areas in the system map.
func AreaCount() int {
	return systemMap.AreaCount()
}

// AllMemoryAreas returns an iterator over the areas of the system map.
func AllMemoryAreas() AreaIterator {
	return systemMap.Areas()
}
