// Package segment provides access to x86 segment selectors and privilege
// levels.
package segment

import "rikaos/kernel"

var (
	readCSFn = readCS

	errInvalidPrivilegeLevel = &kernel.Error{Module: "segment", Message: "invalid privilege level"}
)

// PrivilegeLevel describes a CPU protection ring.
type PrivilegeLevel uint8

// The four x86 protection rings.
const (
	Ring0 PrivilegeLevel = iota
	Ring1
	Ring2
	Ring3
)

// PrivilegeLevelFromUint16 decodes a privilege level. Values outside the
// [0, 3] range indicate a programming error and cause a kernel panic.
func PrivilegeLevelFromUint16(v uint16) PrivilegeLevel {
	if v > uint16(Ring3) {
		panic(errInvalidPrivilegeLevel)
	}

	return PrivilegeLevel(v)
}

// Selector is a segment selector: a descriptor table index in bits 3..15 and
// the requested privilege level in bits 0..1.
type Selector uint16

// NewSelector returns a GDT selector for the given descriptor index and
// requested privilege level.
func NewSelector(index uint16, rpl PrivilegeLevel) Selector {
	return Selector(index<<3 | uint16(rpl))
}

// Index returns the descriptor table index referenced by the selector.
func (s Selector) Index() uint16 {
	return uint16(s) >> 3
}

// RPL returns the requested privilege level encoded in the selector.
func (s Selector) RPL() PrivilegeLevel {
	return PrivilegeLevelFromUint16(uint16(s) & 0x3)
}

// CurrentCS returns the selector currently loaded in the CS register.
func CurrentCS() Selector {
	return Selector(readCSFn())
}

// readCS returns the raw contents of the CS register.
func readCS() uint16
