package irq

import (
	"io"
	"rikaos/kernel/kfmt"
)

// Regs contains a snapshot of the general purpose register values when an
// interrupt occurred. The field order matches the layout produced by the
// trampolines, which push R15 first and RAX last.
type Regs struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	RBP uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64
}

// DumpTo outputs the register contents to w.
func (r *Regs) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", r.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", r.R14, r.R15)
}

// ReturnFrame is the frame pushed by the CPU when an interrupt occurs and
// consumed by IRETQ.
type ReturnFrame struct {
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// DumpTo outputs the return frame contents to w.
func (f *ReturnFrame) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", f.RIP, f.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", f.RSP, f.SS)
	kfmt.Fprintf(w, "RFL = %16x\n", f.RFlags)
}

// Frame is the interrupt context seen by handlers of vectors for which the
// CPU does not push an error code. Changes to the frame are restored to the
// CPU when the handler returns.
type Frame struct {
	Regs
	ReturnFrame
}

// DumpTo outputs the saved registers and the return frame to w.
func (f *Frame) DumpTo(w io.Writer) {
	f.Regs.DumpTo(w)
	kfmt.Fprintf(w, "\n")
	f.ReturnFrame.DumpTo(w)
}

// FrameWithCode is the interrupt context seen by handlers of vectors for
// which the CPU pushes an error code.
type FrameWithCode struct {
	Regs
	ErrorCode uint64
	ReturnFrame
}

// DumpTo outputs the saved registers, the error code and the return frame
// to w.
func (f *FrameWithCode) DumpTo(w io.Writer) {
	f.Regs.DumpTo(w)
	kfmt.Fprintf(w, "\n")
	f.ReturnFrame.DumpTo(w)
	kfmt.Fprintf(w, "ERR = %16x\n", f.ErrorCode)
}
