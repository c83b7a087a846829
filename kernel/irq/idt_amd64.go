package irq

import (
	"encoding/binary"
	"rikaos/kernel/cpu"
	"rikaos/kernel/segment"
	"unsafe"
)

// EntryCount is the number of vectors supported by the x86_64 IDT.
const EntryCount = 256

var (
	// The following functions are mocked by tests.
	currentCSFn = segment.CurrentCS
	loadIDTFn   = cpu.LoadIDT

	// idtDescriptor holds the pseudo-descriptor passed to LIDT; the CPU
	// copies it so it only needs to remain valid for the duration of Load.
	idtDescriptor [descriptorSize]byte
)

// descriptorSize is the size of the packed (limit, base) pair loaded by LIDT.
const descriptorSize = 10

// EntryOptions contains the option bits of an IDT gate.
type EntryOptions uint16

const (
	// bits 9..11 must always be set for 64-bit interrupt and trap gates.
	optMustBeOne         EntryOptions = 1<<9 | 1<<10 | 1<<11
	optInterruptsEnabled EntryOptions = 1 << 8
	optPresent           EntryOptions = 1 << 15

	optPrivilegeShift              = 13
	optPrivilegeMask  EntryOptions = 3 << optPrivilegeShift
	optStackIndexMask EntryOptions = 7
)

// minimalOptions returns the options of a missing gate: not present,
// interrupts disabled on entry, ring 0 and no interrupt stack.
func minimalOptions() EntryOptions {
	return optMustBeOne
}

// SetPresent sets or clears the present bit.
func (o *EntryOptions) SetPresent(present bool) *EntryOptions {
	if present {
		*o |= optPresent
	} else {
		*o &^= optPresent
	}
	return o
}

// EnableInterrupts controls whether interrupts remain enabled while the
// handler runs. Enabling them turns the gate into a trap gate; by default
// the CPU clears IF on entry (interrupt gate).
func (o *EntryOptions) EnableInterrupts(enable bool) *EntryOptions {
	if enable {
		*o |= optInterruptsEnabled
	} else {
		*o &^= optInterruptsEnabled
	}
	return o
}

// SetPrivilegeLevel sets the minimum privilege level required for software
// to invoke the gate via the INT instruction.
func (o *EntryOptions) SetPrivilegeLevel(level segment.PrivilegeLevel) *EntryOptions {
	*o = (*o &^ optPrivilegeMask) | (EntryOptions(level)<<optPrivilegeShift)&optPrivilegeMask
	return o
}

// SetStackIndex selects the interrupt stack table entry the CPU switches to
// when the gate is invoked. A zero index keeps the current stack. Indices
// above 7 are truncated to the 3-bit field.
func (o *EntryOptions) SetStackIndex(index uint8) *EntryOptions {
	*o = (*o &^ optStackIndexMask) | EntryOptions(index)&optStackIndexMask
	return o
}

// Present returns true if the present bit is set.
func (o EntryOptions) Present() bool {
	return o&optPresent != 0
}

// InterruptsEnabled returns true if the gate is a trap gate.
func (o EntryOptions) InterruptsEnabled() bool {
	return o&optInterruptsEnabled != 0
}

// PrivilegeLevel returns the descriptor privilege level of the gate.
func (o EntryOptions) PrivilegeLevel() segment.PrivilegeLevel {
	return segment.PrivilegeLevelFromUint16(uint16((o & optPrivilegeMask) >> optPrivilegeShift))
}

// StackIndex returns the interrupt stack table index of the gate.
func (o EntryOptions) StackIndex() uint8 {
	return uint8(o & optStackIndexMask)
}

// Entry is an IDT gate descriptor. Its field layout matches the 16-byte
// structure read by the CPU; the handler address is split in three parts.
type Entry struct {
	pointerLow    uint16
	selector      segment.Selector
	options       EntryOptions
	pointerMiddle uint16
	pointerHigh   uint32
	reserved      uint32
}

// Address returns the handler address encoded in the entry.
func (e *Entry) Address() uintptr {
	return uintptr(e.pointerLow) | uintptr(e.pointerMiddle)<<16 | uintptr(e.pointerHigh)<<32
}

// Selector returns the code segment selector used when the gate is invoked.
func (e *Entry) Selector() segment.Selector {
	return e.selector
}

// Options returns the entry option bits.
func (e *Entry) Options() EntryOptions {
	return e.options
}

// Table is the interrupt descriptor table.
type Table [EntryCount]Entry

// Reset marks every entry in the table as missing.
func (t *Table) Reset() {
	for i := range t {
		t[i] = Entry{options: minimalOptions()}
	}
}

// SetHandler points the gate for vector to the code at handlerAddr, using the
// currently active code segment, and marks it as present. The returned
// options can be used to further configure the gate.
//
// The CPU reads the table directly, so changing a gate after Load takes
// effect immediately.
func (t *Table) SetHandler(vector uint8, handlerAddr uintptr) *EntryOptions {
	e := &t[vector]
	e.pointerLow = uint16(handlerAddr)
	e.pointerMiddle = uint16(handlerAddr >> 16)
	e.pointerHigh = uint32(handlerAddr >> 32)
	e.selector = currentCSFn()
	e.options |= optMustBeOne

	return e.options.SetPresent(true)
}

// descriptor returns the packed (limit, base) pair that describes t.
func (t *Table) descriptor() [descriptorSize]byte {
	var desc [descriptorSize]byte
	binary.LittleEndian.PutUint16(desc[0:], uint16(unsafe.Sizeof(*t)-1))
	binary.LittleEndian.PutUint64(desc[2:], uint64(uintptr(unsafe.Pointer(t))))
	return desc
}

// Load installs the table in the CPU's IDT register.
func (t *Table) Load() {
	idtDescriptor = t.descriptor()
	loadIDTFn(uintptr(unsafe.Pointer(&idtDescriptor[0])))
}
