// Package kbd services PS/2 keyboard interrupts. Scan-code decoding is
// delegated to a Decoder supplied by the caller.
package kbd

import (
	"io"
	"rikaos/device/pic"
	"rikaos/kernel"
	"rikaos/kernel/cpu"
	"rikaos/kernel/irq"
	"rikaos/kernel/kfmt"
)

const (
	// IRQLine is the PIC line the keyboard controller raises.
	IRQLine = 1

	dataPort = 0x60
)

var (
	// handleInterruptFn is mocked by tests.
	handleInterruptFn = irq.HandleInterrupt
)

// Key is a decoded key event.
type Key struct {
	// Char is the character generated by the key or 0 if the key does not
	// generate one.
	Char byte

	// Name identifies keys without a character representation (e.g.
	// "LeftShift").
	Name string
}

// Decoder turns a stream of raw scan-code bytes into key events. Feed is
// called once per byte read from the controller and returns true when the
// byte completes a key event. A scan code that spans several bytes yields
// at most one event.
type Decoder interface {
	Feed(scancode uint8) (Key, bool)
}

// ioPort is satisfied by cpu.Port8.
type ioPort interface {
	Read() uint8
}

// interruptController is satisfied by *pic.ChainedPICs.
type interruptController interface {
	Vector(line uint8) uint8
	Unmask(line uint8)
	NotifyEndOfInterrupt(vector uint8)
}

// Keyboard reads scan codes from the PS/2 controller whenever IRQ1 fires,
// feeds them to its Decoder and echoes the decoded keys.
type Keyboard struct {
	port    ioPort
	pics    interruptController
	decoder Decoder

	// out receives the decoded keys; the active kfmt sink is used if nil.
	out io.Writer

	vector uint8
}

// Default is the system keyboard.
var Default = Keyboard{
	port: cpu.Port8(dataPort),
	pics: &pic.Default,
}

// SetDecoder selects the decoder for scan codes. Scan codes received while no
// decoder is set are dropped.
func (kb *Keyboard) SetDecoder(d Decoder) {
	kb.decoder = d
}

// SetOutput redirects decoded keys to w.
func (kb *Keyboard) SetOutput(w io.Writer) {
	kb.out = w
}

func (kb *Keyboard) handleInterrupt() {
	scancode := kb.port.Read()
	if kb.decoder != nil {
		if key, ok := kb.decoder.Feed(scancode); ok {
			kb.echo(key)
		}
	}

	kb.pics.NotifyEndOfInterrupt(kb.vector)
}

func (kb *Keyboard) echo(key Key) {
	w := kb.out
	if w == nil {
		w = kfmt.GetOutputSink()
	}

	if key.Char != 0 {
		kfmt.Fprintf(w, "%c", key.Char)
		return
	}
	kfmt.Fprintf(w, "<%s>", key.Name)
}

// DriverName returns the name of this driver.
func (kb *Keyboard) DriverName() string {
	return "ps2_keyboard"
}

// DriverVersion returns the version of this driver.
func (kb *Keyboard) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit installs the IRQ1 handler and unmasks the keyboard line.
func (kb *Keyboard) DriverInit(w io.Writer) *kernel.Error {
	kb.vector = kb.pics.Vector(IRQLine)
	if _, err := handleInterruptFn(irq.Vector(kb.vector), keyboardInterrupt); err != nil {
		return err
	}
	kb.pics.Unmask(IRQLine)

	kfmt.Fprintf(w, "listening on IRQ%d (vector %d)\n", uint8(IRQLine), kb.vector)
	return nil
}

// keyboardInterrupt is bound to the keyboard vector. The handler table only
// stores plain functions so it forwards to Default.
func keyboardInterrupt(_ *irq.Frame) {
	Default.handleInterrupt()
}
