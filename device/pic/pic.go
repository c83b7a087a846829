// Package pic drives the two cascaded 8259 programmable interrupt
// controllers found on PC compatible machines.
//
//	                     ____________                          ____________
//	Real Time Clock --> |            |   Timer -------------> |            |
//	ACPI -------------> |            |   Keyboard-----------> |            |      _____
//	Available --------> | Secondary  |----------------------> | Primary    |     |     |
//	Available --------> | Interrupt  |   Serial Port 2 -----> | Interrupt  |---> | CPU |
//	Mouse ------------> | Controller |   Serial Port 1 -----> | Controller |     |_____|
//	Co-Processor -----> |            |   Parallel Port 2/3 -> |            |
//	Primary ATA ------> |            |   Floppy disk -------> |            |
//	Secondary ATA ----> |____________|   Parallel Port 1----> |____________|
package pic

import (
	"io"
	"rikaos/kernel"
	"rikaos/kernel/cpu"
	"rikaos/kernel/kfmt"
	"rikaos/kernel/sync"
)

const (
	// PrimaryOffset is the first vector used by the primary controller.
	PrimaryOffset = 32

	// SecondaryOffset is the first vector used by the secondary controller.
	SecondaryOffset = PrimaryOffset + linesPerController

	// LineCount is the number of IRQ lines served by the chained pair.
	LineCount = 2 * linesPerController

	linesPerController = 8

	primaryCommandPort   = 0x20
	primaryDataPort      = 0x21
	secondaryCommandPort = 0xa0
	secondaryDataPort    = 0xa1

	// waitPort is an unused port; writing to it gives the controllers
	// time to process the previous command on older hardware.
	waitPort = 0x80

	cmdInit           = 0x11
	cmdEndOfInterrupt = 0x20
	mode8086          = 0x01

	// The primary controller has the secondary attached to line 2 (bit
	// mask) and the secondary learns its cascade identity (line number).
	primaryCascadeMask    = 1 << cascadeLine
	secondaryCascadeIdent = cascadeLine
	cascadeLine           = 2
)

// The lock helpers are mocked by tests.
var (
	acquireLockFn = (*sync.IRQSpinlock).Acquire
	releaseLockFn = (*sync.IRQSpinlock).Release
)

// ioPort is satisfied by cpu.Port8.
type ioPort interface {
	Read() uint8
	Write(uint8)
}

// controller is a single 8259 chip serving eight consecutive vectors.
type controller struct {
	offset  uint8
	command ioPort
	data    ioPort
}

// handlesInterrupt returns true if vector is one of the eight vectors served
// by this controller.
func (c *controller) handlesInterrupt(vector uint8) bool {
	return c.offset <= vector && uint16(vector) < uint16(c.offset)+linesPerController
}

func (c *controller) endOfInterrupt() {
	c.command.Write(cmdEndOfInterrupt)
}

// ChainedPICs models the primary/secondary controller pair. Vectors
// [primary offset, primary offset+8) belong to the primary controller and
// [secondary offset, secondary offset+8) to the secondary one.
type ChainedPICs struct {
	lock sync.IRQSpinlock

	// pics[0] is the primary controller and pics[1] the secondary.
	pics [2]controller
	wait ioPort
}

// Default is the PIC pair of the system, remapped so that IRQs 0-15 are
// delivered on vectors 32-47.
var Default = ChainedPICs{
	pics: [2]controller{
		{offset: PrimaryOffset, command: cpu.Port8(primaryCommandPort), data: cpu.Port8(primaryDataPort)},
		{offset: SecondaryOffset, command: cpu.Port8(secondaryCommandPort), data: cpu.Port8(secondaryDataPort)},
	},
	wait: cpu.Port8(waitPort),
}

// New returns a chained PIC pair using the standard I/O ports and the
// supplied vector offsets. The two 8-vector ranges must not overlap.
func New(primaryOffset, secondaryOffset uint8) ChainedPICs {
	return ChainedPICs{
		pics: [2]controller{
			{offset: primaryOffset, command: cpu.Port8(primaryCommandPort), data: cpu.Port8(primaryDataPort)},
			{offset: secondaryOffset, command: cpu.Port8(secondaryCommandPort), data: cpu.Port8(secondaryDataPort)},
		},
		wait: cpu.Port8(waitPort),
	}
}

// HandlesInterrupt returns true if vector is served by either controller.
func (p *ChainedPICs) HandlesInterrupt(vector uint8) bool {
	return p.pics[0].handlesInterrupt(vector) || p.pics[1].handlesInterrupt(vector)
}

// Vector returns the interrupt vector that IRQ line is delivered on.
func (p *ChainedPICs) Vector(line uint8) uint8 {
	if line < linesPerController {
		return p.pics[0].offset + line
	}
	return p.pics[1].offset + line - linesPerController
}

// Initialize reprograms both controllers with their vector offsets and the
// cascade wiring. The interrupt masks active before the call are restored
// once the sequence completes.
func (p *ChainedPICs) Initialize() {
	acquireLockFn(&p.lock)
	defer releaseLockFn(&p.lock)

	primary, secondary := &p.pics[0], &p.pics[1]

	savedPrimaryMask := primary.data.Read()
	savedSecondaryMask := secondary.data.Read()

	// ICW1: start the initialization sequence; three more bytes follow
	// on the data port.
	primary.command.Write(cmdInit)
	p.wait.Write(0)
	secondary.command.Write(cmdInit)
	p.wait.Write(0)

	// ICW2: vector offsets.
	primary.data.Write(primary.offset)
	p.wait.Write(0)
	secondary.data.Write(secondary.offset)
	p.wait.Write(0)

	// ICW3: cascade wiring.
	primary.data.Write(primaryCascadeMask)
	p.wait.Write(0)
	secondary.data.Write(secondaryCascadeIdent)
	p.wait.Write(0)

	// ICW4: operating mode.
	primary.data.Write(mode8086)
	p.wait.Write(0)
	secondary.data.Write(mode8086)
	p.wait.Write(0)

	primary.data.Write(savedPrimaryMask)
	secondary.data.Write(savedSecondaryMask)
}

// NotifyEndOfInterrupt acknowledges the interrupt delivered on vector. The
// call is a no-op for vectors not served by the PICs. Interrupts from the
// secondary controller are acknowledged on both chips, secondary first, as
// they are routed through the primary's cascade line.
func (p *ChainedPICs) NotifyEndOfInterrupt(vector uint8) {
	if !p.HandlesInterrupt(vector) {
		return
	}

	acquireLockFn(&p.lock)
	if p.pics[1].handlesInterrupt(vector) {
		p.pics[1].endOfInterrupt()
	}
	p.pics[0].endOfInterrupt()
	releaseLockFn(&p.lock)
}

// Mask disables the delivery of IRQ line. Lines outside [0, 16) are ignored.
func (p *ChainedPICs) Mask(line uint8) {
	p.updateMask(line, true)
}

// Unmask enables the delivery of IRQ line. Unmasking a line served by the
// secondary controller also unmasks the cascade line on the primary.
func (p *ChainedPICs) Unmask(line uint8) {
	p.updateMask(line, false)
	if line >= linesPerController && line < LineCount {
		p.updateMask(cascadeLine, false)
	}
}

func (p *ChainedPICs) updateMask(line uint8, masked bool) {
	if line >= LineCount {
		return
	}

	c := &p.pics[line/linesPerController]
	bit := uint8(1) << (line % linesPerController)

	acquireLockFn(&p.lock)
	mask := c.data.Read()
	if masked {
		mask |= bit
	} else {
		mask &^= bit
	}
	c.data.Write(mask)
	releaseLockFn(&p.lock)
}

// DriverName returns the name of this driver.
func (p *ChainedPICs) DriverName() string {
	return "pic8259"
}

// DriverVersion returns the version of this driver.
func (p *ChainedPICs) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit remaps the PIC pair to its configured vector offsets.
func (p *ChainedPICs) DriverInit(w io.Writer) *kernel.Error {
	p.Initialize()
	kfmt.Fprintf(w, "IRQ 0-7 -> vectors %d-%d, IRQ 8-15 -> vectors %d-%d\n",
		p.pics[0].offset, p.pics[0].offset+linesPerController-1,
		p.pics[1].offset, p.pics[1].offset+linesPerController-1,
	)
	return nil
}
