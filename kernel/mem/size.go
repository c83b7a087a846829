package mem

import "rikaos/kernel"

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// ErrInvalidAlignment is raised when an alignment that is not a non-zero
// power of two is used to align an address.
var ErrInvalidAlignment = &kernel.Error{Module: "mem", Message: "alignment must be a power of two"}

// PageSize selects one of the page granularities supported by 4-level
// paging. PageSize values carry no data of their own; Bytes and Shift map
// them to the corresponding size constants.
type PageSize uint8

const (
	// PageSize4K is the base page granularity.
	PageSize4K PageSize = iota

	// PageSize2M is a large page mapped by a page directory entry and
	// spans 512 4K pages.
	PageSize2M

	// PageSize1G is a huge page mapped by a PDPT entry and spans 512 2M
	// pages.
	PageSize1G
)

// Shift returns log2 of the page size in bytes.
func (s PageSize) Shift() uint {
	switch s {
	case PageSize2M:
		return 21
	case PageSize1G:
		return 30
	default:
		return PageShift
	}
}

// Bytes returns the page size in bytes.
func (s PageSize) Bytes() Size {
	return Size(1) << s.Shift()
}

// String implements fmt.Stringer for PageSize.
func (s PageSize) String() string {
	switch s {
	case PageSize2M:
		return "2M"
	case PageSize1G:
		return "1G"
	default:
		return "4K"
	}
}

// IsPowerOfTwo returns true if v is a non-zero power of two.
func IsPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

// AlignDown rounds value down to the nearest multiple of alignment. Passing
// an alignment that is not a power of two is a programming error and causes
// a kernel panic.
func AlignDown(value, alignment uint64) uint64 {
	if !IsPowerOfTwo(alignment) {
		panic(ErrInvalidAlignment)
	}

	return value &^ (alignment - 1)
}

// AlignUp rounds value up to the nearest multiple of alignment. The same
// constraints as AlignDown apply.
func AlignUp(value, alignment uint64) uint64 {
	if !IsPowerOfTwo(alignment) {
		panic(ErrInvalidAlignment)
	}

	return (value + alignment - 1) &^ (alignment - 1)
}
