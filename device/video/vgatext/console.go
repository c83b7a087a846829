// Package vgatext implements a minimal terminal on top of the 80x25 VGA text
// mode framebuffer.
package vgatext

import (
	"io"
	"rikaos/kernel"
	"rikaos/kernel/kfmt"
	"rikaos/kernel/sync"
	"unsafe"
)

// Attr defines a color attribute.
type Attr uint16

// The set of attributes that can be passed to SetColors.
const (
	Black Attr = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGrey
	Grey
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	LightBrown
	White
)

const (
	// DefaultFramebufferAddress is the physical address of the text mode
	// framebuffer; it is identity mapped by the boot loader.
	DefaultFramebufferAddress = 0xb8000

	// DefaultWidth and DefaultHeight are the dimensions of VGA mode 3.
	DefaultWidth  = 80
	DefaultHeight = 25

	clearChar = byte(' ')
	tabWidth  = 4
)

// The lock helpers are mocked by tests.
var (
	acquireLockFn = (*sync.IRQSpinlock).Acquire
	releaseLockFn = (*sync.IRQSpinlock).Release

	errNoFramebuffer = &kernel.Error{Module: "vga_text", Message: "framebuffer not set"}
)

// Console writes characters at a cursor that advances over a text mode
// framebuffer. It processes CR, LF, TAB and BS and scrolls the contents once
// the cursor moves past the last line. All methods are safe to call from
// interrupt handlers.
type Console struct {
	lock sync.IRQSpinlock

	width  uint16
	height uint16
	fb     []uint16

	curX    uint16
	curY    uint16
	curAttr Attr
}

// Default is the system console.
var Default Console

// Init attaches the console to a width x height framebuffer located at
// fbAddr, resets the cursor and selects light grey text on black.
func (cons *Console) Init(width, height uint16, fbAddr uintptr) {
	acquireLockFn(&cons.lock)
	defer releaseLockFn(&cons.lock)

	cons.width = width
	cons.height = height
	cons.fb = unsafe.Slice((*uint16)(unsafe.Pointer(fbAddr)), int(width)*int(height))
	cons.curX, cons.curY = 0, 0
	cons.curAttr = makeAttr(LightGrey, Black)
}

// Dimensions returns the console width and height in characters.
func (cons *Console) Dimensions() (uint16, uint16) {
	return cons.width, cons.height
}

// SetColors selects the foreground and background colors for subsequent
// writes.
func (cons *Console) SetColors(fg, bg Attr) {
	acquireLockFn(&cons.lock)
	cons.curAttr = makeAttr(fg, bg)
	releaseLockFn(&cons.lock)
}

// Clear blanks the screen and moves the cursor to the top-left corner.
func (cons *Console) Clear() {
	acquireLockFn(&cons.lock)
	defer releaseLockFn(&cons.lock)

	cons.clear(0, 0, cons.width, cons.height)
	cons.curX, cons.curY = 0, 0
}

// Position returns the current cursor position (x, y).
func (cons *Console) Position() (uint16, uint16) {
	acquireLockFn(&cons.lock)
	defer releaseLockFn(&cons.lock)

	return cons.curX, cons.curY
}

// SetPosition sets the current cursor position to (x,y). Coordinates outside
// the screen are clipped.
func (cons *Console) SetPosition(x, y uint16) {
	acquireLockFn(&cons.lock)
	defer releaseLockFn(&cons.lock)

	if x >= cons.width {
		x = cons.width - 1
	}

	if y >= cons.height {
		y = cons.height - 1
	}

	cons.curX, cons.curY = x, y
}

// Write implements io.Writer.
func (cons *Console) Write(data []byte) (int, error) {
	acquireLockFn(&cons.lock)
	defer releaseLockFn(&cons.lock)

	for _, b := range data {
		cons.writeByte(b)
	}

	return len(data), nil
}

// WriteByte implements io.ByteWriter.
func (cons *Console) WriteByte(b byte) error {
	acquireLockFn(&cons.lock)
	cons.writeByte(b)
	releaseLockFn(&cons.lock)
	return nil
}

func (cons *Console) writeByte(b byte) {
	if cons.fb == nil {
		return
	}

	switch b {
	case '\r':
		cons.curX = 0
	case '\n':
		cons.curX = 0
		cons.lf()
	case '\b':
		if cons.curX > 0 {
			cons.curX--
		}
	case '\t':
		for i := 0; i < tabWidth; i++ {
			cons.put(clearChar)
		}
	default:
		cons.put(b)
	}
}

// put writes b at the cursor and advances it, wrapping to the next line.
func (cons *Console) put(b byte) {
	cons.fb[(cons.curY*cons.width)+cons.curX] = (uint16(cons.curAttr) << 8) | uint16(b)
	cons.curX++
	if cons.curX == cons.width {
		cons.curX = 0
		cons.lf()
	}
}

// lf advances the cursor by one line scrolling the contents if the end of the
// last line is reached.
func (cons *Console) lf() {
	if cons.curY+1 < cons.height {
		cons.curY++
		return
	}

	cons.scrollUp(1)
	cons.clear(0, cons.height-1, cons.width, 1)
}

// clear blanks the specified rectangular region.
func (cons *Console) clear(x, y, width, height uint16) {
	var (
		clr                  = (uint16(makeAttr(LightGrey, Black)) << 8) | uint16(clearChar)
		rowOffset, colOffset uint16
	)

	// clip rectangle
	if x >= cons.width {
		x = cons.width
	}
	if y >= cons.height {
		y = cons.height
	}

	if x+width > cons.width {
		width = cons.width - x
	}
	if y+height > cons.height {
		height = cons.height - y
	}

	rowOffset = (y * cons.width) + x
	for ; height > 0; height, rowOffset = height-1, rowOffset+cons.width {
		for colOffset = rowOffset; colOffset < rowOffset+width; colOffset++ {
			cons.fb[colOffset] = clr
		}
	}
}

// scrollUp moves the contents up by the specified number of lines. The
// caller is responsible for clearing the lines exposed at the bottom.
func (cons *Console) scrollUp(lines uint16) {
	if lines == 0 || lines > cons.height {
		return
	}

	offset := lines * cons.width
	for i := uint16(0); i < (cons.height-lines)*cons.width; i++ {
		cons.fb[i] = cons.fb[i+offset]
	}
}

func makeAttr(fg, bg Attr) Attr {
	return (bg << 4) | (fg & 0xf)
}

// DriverName returns the name of this driver.
func (cons *Console) DriverName() string {
	return "vga_text_console"
}

// DriverVersion returns the version of this driver.
func (cons *Console) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit clears the screen. Init must have been called.
func (cons *Console) DriverInit(w io.Writer) *kernel.Error {
	if cons.fb == nil {
		return errNoFramebuffer
	}

	cons.Clear()
	kfmt.Fprintf(w, "%dx%d text console\n", cons.width, cons.height)
	return nil
}
