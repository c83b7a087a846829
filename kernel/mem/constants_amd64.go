// +build amd64

package mem

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). The pointer
	// size for this architecture is defined as (1 << PointerShift).
	PointerShift = 3

	// PageShift is equal to log2 of the 4K base page size. It converts a
	// physical address to a 4K frame index (shift right by PageShift) and
	// vice-versa.
	PageShift = 12
)
