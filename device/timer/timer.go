// Package timer counts ticks of the 8253/8254 programmable interval timer.
package timer

import (
	"io"
	"rikaos/device/pic"
	"rikaos/kernel"
	"rikaos/kernel/cpu"
	"rikaos/kernel/irq"
	"rikaos/kernel/kfmt"
	"sync/atomic"
)

const (
	// IRQLine is the PIC line raised by PIT channel 0.
	IRQLine = 0

	// DefaultFrequency is the tick rate programmed by DriverInit.
	DefaultFrequency = 100

	// baseFrequency is the input clock of the PIT in Hz.
	baseFrequency = 1193182

	channel0Port = 0x40
	commandPort  = 0x43

	// channel 0, lobyte/hibyte access, mode 3 (square wave), binary.
	cmdChannel0SquareWave = 0x36
)

var (
	// handleInterruptFn is mocked by tests.
	handleInterruptFn = irq.HandleInterrupt

	errInvalidFrequency = &kernel.Error{Module: "timer", Message: "frequency out of range"}
)

// ioPort is satisfied by cpu.Port8.
type ioPort interface {
	Write(uint8)
}

// interruptController is satisfied by *pic.ChainedPICs.
type interruptController interface {
	Vector(line uint8) uint8
	Unmask(line uint8)
	NotifyEndOfInterrupt(vector uint8)
}

// PIT drives channel 0 of the programmable interval timer.
type PIT struct {
	command ioPort
	data    ioPort
	pics    interruptController

	frequency uint32
	vector    uint8
	ticks     uint64
}

// Default is the system timer.
var Default = PIT{
	command:   cpu.Port8(commandPort),
	data:      cpu.Port8(channel0Port),
	pics:      &pic.Default,
	frequency: DefaultFrequency,
}

// Ticks returns the number of timer interrupts serviced so far.
func (t *PIT) Ticks() uint64 {
	return atomic.LoadUint64(&t.ticks)
}

// Frequency returns the programmed tick rate in Hz.
func (t *PIT) Frequency() uint32 {
	return t.frequency
}

// SetFrequency programs channel 0 to fire hz times per second. Rates that
// can not be expressed with a 16-bit divisor return an error.
func (t *PIT) SetFrequency(hz uint32) *kernel.Error {
	if hz == 0 || baseFrequency/hz == 0 || baseFrequency/hz > 0xffff {
		return errInvalidFrequency
	}

	divisor := uint16(baseFrequency / hz)
	t.command.Write(cmdChannel0SquareWave)
	t.data.Write(uint8(divisor))
	t.data.Write(uint8(divisor >> 8))
	t.frequency = hz
	return nil
}

func (t *PIT) handleInterrupt() {
	atomic.AddUint64(&t.ticks, 1)
	t.pics.NotifyEndOfInterrupt(t.vector)
}

// DriverName returns the name of this driver.
func (t *PIT) DriverName() string {
	return "pit8254"
}

// DriverVersion returns the version of this driver.
func (t *PIT) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit programs the tick rate, installs the IRQ0 handler and unmasks
// the timer line.
func (t *PIT) DriverInit(w io.Writer) *kernel.Error {
	if err := t.SetFrequency(t.frequency); err != nil {
		return err
	}

	t.vector = t.pics.Vector(IRQLine)
	if _, err := handleInterruptFn(irq.Vector(t.vector), timerInterrupt); err != nil {
		return err
	}
	t.pics.Unmask(IRQLine)

	kfmt.Fprintf(w, "%dHz on IRQ%d (vector %d)\n", t.frequency, uint8(IRQLine), t.vector)
	return nil
}

// timerInterrupt is bound to the timer vector and forwards to Default.
func timerInterrupt(_ *irq.Frame) {
	Default.handleInterrupt()
}
