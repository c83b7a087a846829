package cpu

var (
	cpuidFn   = ID
	readMSRFn = ReadMSR
)

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// InterruptsEnabled returns true if the IF flag is set in RFLAGS.
func InterruptsEnabled() bool

// Halt disables interrupts and stops instruction execution. Halt never
// returns.
func Halt()

// WaitForInterrupt suspends instruction execution until the next interrupt
// arrives. Interrupts must be enabled or the call never returns.
func WaitForInterrupt()

// ReadCR2 returns the value stored in the CR2 register. After a page fault
// it holds the faulting virtual address.
func ReadCR2() uint64

// LoadIDT loads the interrupt descriptor table register with the 10-byte
// (limit, base) pseudo-descriptor located at descriptorAddr.
func LoadIDT(descriptorAddr uintptr)

// ID returns information about the CPU and its features. It
// is implemented as a CPUID instruction with EAX=leaf and
// returns the values in EAX, EBX, ECX and EDX.
func ID(leaf uint32) (uint32, uint32, uint32, uint32)

// ReadMSR returns the contents of the model-specific register msr as a
// single 64-bit value (EDX:EAX).
func ReadMSR(msr uint32) uint64

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8)

// PortWriteWord writes a uint16 value to the requested port.
func PortWriteWord(port uint16, val uint16)

// PortWriteDword writes a uint32 value to the requested port.
func PortWriteDword(port uint16, val uint32)

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8

// PortReadWord reads a uint16 value from the requested port.
func PortReadWord(port uint16) uint16

// PortReadDword reads a uint32 value from the requested port.
func PortReadDword(port uint16) uint32
