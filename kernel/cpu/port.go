package cpu

var (
	portReadByteFn   = PortReadByte
	portReadWordFn   = PortReadWord
	portReadDwordFn  = PortReadDword
	portWriteByteFn  = PortWriteByte
	portWriteWordFn  = PortWriteWord
	portWriteDwordFn = PortWriteDword
)

// Port8 is an I/O port that is accessed one byte at a time.
type Port8 uint16

// Read reads a byte from the port.
func (p Port8) Read() uint8 { return portReadByteFn(uint16(p)) }

// Write writes a byte to the port.
func (p Port8) Write(val uint8) { portWriteByteFn(uint16(p), val) }

// Port16 is an I/O port that is accessed one word at a time.
type Port16 uint16

// Read reads a word from the port.
func (p Port16) Read() uint16 { return portReadWordFn(uint16(p)) }

// Write writes a word to the port.
func (p Port16) Write(val uint16) { portWriteWordFn(uint16(p), val) }

// Port32 is an I/O port that is accessed one double word at a time.
type Port32 uint16

// Read reads a double word from the port.
func (p Port32) Read() uint32 { return portReadDwordFn(uint16(p)) }

// Write writes a double word to the port.
func (p Port32) Write(val uint32) { portWriteDwordFn(uint16(p), val) }
