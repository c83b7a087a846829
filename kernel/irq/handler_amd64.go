// Package irq manages the interrupt descriptor table and routes CPU
// exceptions and hardware interrupts to Go handlers.
package irq

import (
	"rikaos/kernel"
	"rikaos/kernel/cpu"
	"rikaos/kernel/kfmt"
	"rikaos/kernel/mem/vmm"
	"unsafe"
)

// Vector identifies an IDT slot.
type Vector uint8

// CPU exception vectors.
const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = Vector(0)

	// Debug is raised by debug traps and faults.
	Debug = Vector(1)

	// NMI (non-maskable-interrupt) is a hardware interrupt that indicates
	// issues with RAM or unrecoverable hardware problems.
	NMI = Vector(2)

	// Breakpoint is raised by the INT3 instruction.
	Breakpoint = Vector(3)

	// Overflow is raised by the INTO instruction when the overflow flag
	// is set.
	Overflow = Vector(4)

	// BoundRangeExceeded occurs when the BOUND instruction is invoked with
	// an index out of range.
	BoundRangeExceeded = Vector(5)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = Vector(6)

	// DeviceNotAvailable occurs when the CPU attempts to execute an
	// FPU/MMX/SSE instruction while no FPU is available or while
	// FPU/MMX/SSE support has been disabled.
	DeviceNotAvailable = Vector(7)

	// DoubleFault occurs when an exception is unhandled or when an
	// exception occurs while the CPU is trying to call an exception
	// handler.
	DoubleFault = Vector(8)

	// InvalidTSS occurs when the TSS points to an invalid task segment
	// selector.
	InvalidTSS = Vector(10)

	// SegmentNotPresent occurs when the CPU attempts to load a segment
	// whose present bit is cleared.
	SegmentNotPresent = Vector(11)

	// StackSegmentFault occurs when attempting to push/pop from a
	// non-canonical stack address or when the stack limit checks fail.
	StackSegmentFault = Vector(12)

	// GPFException is raised when a general protection fault occurs.
	GPFException = Vector(13)

	// PageFaultException is raised when a PDT or PDT-entry is not present
	// or when a privilege and/or RW protection check fails.
	PageFaultException = Vector(14)

	// FloatingPointException occurs when an unmasked x87 exception is
	// pending.
	FloatingPointException = Vector(16)

	// AlignmentCheck occurs when alignment checks are enabled and an
	// unaligned memory access is performed.
	AlignmentCheck = Vector(17)

	// MachineCheck occurs when the CPU detects internal errors such as
	// memory-, bus- or cache-related errors.
	MachineCheck = Vector(18)

	// SIMDFloatingPointException occurs when an unmasked SSE exception
	// occurs while CR4.OSXMMEXCPT is set.
	SIMDFloatingPointException = Vector(19)

	// Virtualization is raised by EPT violations.
	Virtualization = Vector(20)

	// ControlProtection is raised by control-flow enforcement violations.
	ControlProtection = Vector(21)

	// VMMCommunication is raised by SEV-ES guests.
	VMMCommunication = Vector(29)

	// Security is raised by SVM security events.
	Security = Vector(30)
)

// TrampolineCount is the number of vectors that have an entry trampoline: the
// 32 CPU exceptions followed by the 16 lines of the chained PICs.
const TrampolineCount = 48

// Handler processes an interrupt for a vector without an error code.
// Modifications to the frame are restored to the CPU when it returns.
type Handler func(*Frame)

// HandlerWithCode processes an interrupt for a vector for which the CPU
// pushes an error code.
type HandlerWithCode func(*FrameWithCode)

var (
	// trampolines contains the entry point of each vector trampoline. It
	// is populated by Init.
	trampolines [TrampolineCount]uintptr

	handlers         [TrampolineCount]Handler
	handlersWithCode [TrampolineCount]HandlerWithCode

	// idt is the table loaded into the CPU.
	idt Table

	// readCR2Fn is mocked by tests.
	readCR2Fn = cpu.ReadCR2

	// ErrNoTrampoline is returned when binding a handler to a vector that
	// has no entry trampoline.
	ErrNoTrampoline = &kernel.Error{Module: "irq", Message: "no trampoline available for interrupt vector"}

	// ErrHandlerKind is returned when binding a Handler to a vector that
	// pushes an error code or a HandlerWithCode to one that does not.
	ErrHandlerKind = &kernel.Error{Module: "irq", Message: "handler kind does not match the vector error code behavior"}

	errUnhandledInterrupt = &kernel.Error{Module: "irq", Message: "unhandled interrupt"}
	errDivideByZero       = &kernel.Error{Module: "irq", Message: "divide by zero"}
	errDoubleFault        = &kernel.Error{Module: "irq", Message: "double fault"}
	errGeneralProtection  = &kernel.Error{Module: "irq", Message: "general protection fault"}
	errPageFault          = &kernel.Error{Module: "irq", Message: "unrecoverable page fault"}
)

// hasErrorCode returns true if the CPU pushes an error code before invoking
// the handler for vector.
func hasErrorCode(vector Vector) bool {
	switch vector {
	case DoubleFault, InvalidTSS, SegmentNotPresent, StackSegmentFault,
		GPFException, PageFaultException, AlignmentCheck, ControlProtection,
		VMMCommunication, Security:
		return true
	}
	return false
}

// Init clears the IDT, locates the vector trampolines and installs the
// default CPU exception handlers. The table is not loaded until Load is
// called, so drivers can bind their handlers first.
func Init() {
	idt.Reset()
	for i := range handlers {
		handlers[i] = nil
		handlersWithCode[i] = nil
	}
	fillTrampolines(&trampolines)

	HandleInterrupt(DivideByZero, divideByZeroHandler)
	HandleInterruptWithCode(DoubleFault, doubleFaultHandler)
	HandleInterruptWithCode(GPFException, generalProtectionFaultHandler)
	HandleInterruptWithCode(PageFaultException, pageFaultHandler)
}

// Load installs the IDT into the CPU.
func Load() {
	idt.Load()
}

// IDT returns the table managed by this package.
func IDT() *Table {
	return &idt
}

// HandleInterrupt binds handler to a vector for which the CPU does not push an
// error code and points the vector's gate to its trampoline. The returned
// options can be used to further configure the gate.
func HandleInterrupt(vector Vector, handler Handler) (*EntryOptions, *kernel.Error) {
	if vector >= TrampolineCount {
		return nil, ErrNoTrampoline
	}
	if hasErrorCode(vector) {
		return nil, ErrHandlerKind
	}

	handlers[vector] = handler
	return idt.SetHandler(uint8(vector), trampolines[vector]), nil
}

// HandleInterruptWithCode binds handler to a vector for which the CPU pushes
// an error code and points the vector's gate to its trampoline.
func HandleInterruptWithCode(vector Vector, handler HandlerWithCode) (*EntryOptions, *kernel.Error) {
	if vector >= TrampolineCount {
		return nil, ErrNoTrampoline
	}
	if !hasErrorCode(vector) {
		return nil, ErrHandlerKind
	}

	handlersWithCode[vector] = handler
	return idt.SetHandler(uint8(vector), trampolines[vector]), nil
}

// dispatchInterrupt is called by the trampolines with the vector number and
// a pointer to the saved context on the interrupt stack.
func dispatchInterrupt(vector uint64, frame unsafe.Pointer) {
	v := Vector(vector)
	if hasErrorCode(v) {
		if handler := handlersWithCode[v]; handler != nil {
			handler((*FrameWithCode)(frame))
			return
		}

		unhandledInterrupt(v, (*FrameWithCode)(frame).ReturnFrame.RIP)
		return
	}

	if handler := handlers[v]; handler != nil {
		handler((*Frame)(frame))
		return
	}

	unhandledInterrupt(v, (*Frame)(frame).ReturnFrame.RIP)
}

func unhandledInterrupt(vector Vector, rip uint64) {
	kfmt.Printf("\nUnhandled interrupt %d at RIP 0x%16x\n", uint8(vector), rip)
	panic(errUnhandledInterrupt)
}

func divideByZeroHandler(frame *Frame) {
	kfmt.Printf("\nDivide by zero at RIP 0x%16x\n", frame.RIP)
	kfmt.Printf("Registers:\n")
	frame.DumpTo(kfmt.GetOutputSink())

	panic(errDivideByZero)
}

func doubleFaultHandler(frame *FrameWithCode) {
	kfmt.Printf("\nDouble fault at RIP 0x%16x\n", frame.RIP)
	kfmt.Printf("Registers:\n")
	frame.DumpTo(kfmt.GetOutputSink())

	panic(errDoubleFault)
}

// generalProtectionFaultHandler is invoked for various reasons:
// - segment errors (privilege, type or limit violations)
// - executing privileged instructions outside ring-0
// - attempts to access reserved or unimplemented CPU registers
func generalProtectionFaultHandler(frame *FrameWithCode) {
	kfmt.Printf("\nGeneral protection fault at RIP 0x%16x (selector: 0x%x)\n", frame.RIP, frame.ErrorCode)
	kfmt.Printf("Registers:\n")
	frame.DumpTo(kfmt.GetOutputSink())

	panic(errGeneralProtection)
}

// pageFaultHandler reports the faulting address and the reason decoded from
// the error code. Paging is never modified after boot so page faults are not
// recoverable.
func pageFaultHandler(frame *FrameWithCode) {
	// CR2 always holds a canonical address.
	faultAddr := vmm.VirtAddrUnchecked(readCR2Fn())

	kfmt.Printf("\nPage fault while accessing address: 0x%16x\nReason: ", faultAddr.Uint64())
	switch frame.ErrorCode & 0x7 {
	case 0:
		kfmt.Printf("read from non-present page")
	case 1:
		kfmt.Printf("page protection violation (read)")
	case 2:
		kfmt.Printf("write to non-present page")
	case 3:
		kfmt.Printf("page protection violation (write)")
	default:
		kfmt.Printf("page-fault in user-mode")
	}
	if frame.ErrorCode&0x10 != 0 {
		kfmt.Printf(" during instruction fetch")
	}
	kfmt.Printf("\nTable indices: P4 %d, P3 %d, P2 %d, P1 %d, offset 0x%x\n",
		faultAddr.P4Index(), faultAddr.P3Index(), faultAddr.P2Index(), faultAddr.P1Index(), faultAddr.PageOffset(),
	)

	kfmt.Printf("\nRegisters:\n")
	frame.DumpTo(kfmt.GetOutputSink())

	panic(errPageFault)
}
