// Package kfmt implements allocation-free formatted output for code that runs
// before (or instead of) the Go allocator, including interrupt handlers.
//
// Formatting scratch space lives on the caller's stack so a handler that
// prints while it interrupts another Printf call can not clobber the bytes
// that call is about to write. Whole lines may still interleave.
package kfmt

import (
	"io"
	"unsafe"
)

// numBufSize is large enough to hold a 64-bit value in base 8 plus a sign.
const numBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	lowerDigits = "0123456789abcdef"
	upperDigits = "0123456789ABCDEF"

	// earlyPrintBuffer captures output produced before SetOutputSink is
	// called with a non-nil writer.
	earlyPrintBuffer ringBuffer

	// outputSink receives all Printf output. A nil sink redirects output
	// to earlyPrintBuffer.
	outputSink io.Writer
)

// verbSpec captures the flags parsed for a single formatting verb.
type verbSpec struct {
	width    int
	zeroPad  bool
	verb     byte
	hasWidth bool
}

// SetOutputSink sets the default target for calls to Printf to w and flushes
// any output accumulated in the early print buffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// GetOutputSink returns the current target for calls to Printf.
func GetOutputSink() io.Writer {
	return outputSink
}

// Printf is a minimal, allocation-free Printf that can be used before the Go
// runtime is initialized and from interrupt context.
//
// Supported verbs:
//	%s  string or byte slice
//	%c  a single byte
//	%d  base 10
//	%o  base 8
//	%x  base 16, lower-case
//	%X  base 16, upper-case
//	%t  "true" or "false"
//
// An optional decimal width may precede the verb. Numbers in base 8 and 16
// are padded with zeroes, everything else with spaces; a leading 0 in the
// width forces zero padding. Values that are not built-in integer, string or
// bool types print %!(WRONGTYPE); io.Stringer is not consulted because itabs
// may not be initialized yet.
//
// Printf writes to the sink installed by SetOutputSink.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		spec     verbSpec
	)

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			writeByte(w, format[i])
			continue
		}

		i++
		if i < len(format) && format[i] == '%' {
			writeByte(w, '%')
			continue
		}

		spec = verbSpec{}
		if i < len(format) && format[i] == '0' {
			spec.zeroPad = true
			i++
		}
		for ; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			spec.width = spec.width*10 + int(format[i]-'0')
			spec.hasWidth = true
		}

		if i >= len(format) {
			doWrite(w, errNoVerb)
			break
		}

		spec.verb = format[i]
		switch spec.verb {
		case 's', 'c', 'd', 'o', 'x', 'X', 't':
		default:
			doWrite(w, errNoVerb)
			continue
		}

		if argIndex >= len(args) {
			doWrite(w, errMissingArg)
			continue
		}

		fmtArg(w, args[argIndex], &spec)
		argIndex++
	}

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

func fmtArg(w io.Writer, arg interface{}, spec *verbSpec) {
	switch spec.verb {
	case 's':
		fmtString(w, arg, spec.width)
	case 'c':
		fmtChar(w, arg)
	case 't':
		fmtBool(w, arg)
	case 'd':
		fmtInt(w, arg, 10, lowerDigits, spec)
	case 'o':
		fmtInt(w, arg, 8, lowerDigits, spec)
	case 'x':
		fmtInt(w, arg, 16, lowerDigits, spec)
	case 'X':
		fmtInt(w, arg, 16, upperDigits, spec)
	}
}

func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case b:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

func fmtChar(w io.Writer, v interface{}) {
	switch ch := v.(type) {
	case byte:
		writeByte(w, ch)
	case rune:
		if ch < 0x80 {
			writeByte(w, byte(ch))
			return
		}
		writeByte(w, '?')
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtString prints a string or byte slice, left-padding it with spaces up to
// padLen characters.
func fmtString(w io.Writer, v interface{}, padLen int) {
	switch s := v.(type) {
	case string:
		fmtRepeat(w, ' ', padLen-len(s))
		for i := 0; i < len(s); i++ {
			writeByte(w, s[i])
		}
	case []byte:
		fmtRepeat(w, ' ', padLen-len(s))
		doWrite(w, s)
	default:
		doWrite(w, errWrongArgType)
	}
}

func fmtRepeat(w io.Writer, ch byte, count int) {
	for ; count > 0; count-- {
		writeByte(w, ch)
	}
}

// fmtInt prints a signed or unsigned built-in integer in the requested base.
func fmtInt(w io.Writer, v interface{}, base uint64, digits string, spec *verbSpec) {
	var (
		uval uint64
		neg  bool
	)

	switch n := v.(type) {
	case uint8:
		uval = uint64(n)
	case uint16:
		uval = uint64(n)
	case uint32:
		uval = uint64(n)
	case uint64:
		uval = n
	case uint:
		uval = uint64(n)
	case uintptr:
		uval = uint64(n)
	case int8:
		uval, neg = abs(int64(n))
	case int16:
		uval, neg = abs(int64(n))
	case int32:
		uval, neg = abs(int64(n))
	case int64:
		uval, neg = abs(n)
	case int:
		uval, neg = abs(int64(n))
	default:
		doWrite(w, errWrongArgType)
		return
	}

	// Digits are emitted right to left.
	var numBuf [numBufSize]byte
	pos := numBufSize
	for {
		pos--
		numBuf[pos] = digits[uval%base]
		uval /= base
		if uval == 0 {
			break
		}
	}

	padCh := byte(' ')
	if spec.zeroPad || base != 10 {
		padCh = '0'
	}

	width := spec.width
	if width > numBufSize-1 {
		width = numBufSize - 1
	}

	// The sign goes before zero padding but after space padding.
	numLen := numBufSize - pos
	if neg {
		numLen++
	}
	if padCh == '0' {
		if neg {
			writeByte(w, '-')
		}
		fmtRepeat(w, '0', width-numLen)
	} else {
		fmtRepeat(w, ' ', width-numLen)
		if neg {
			writeByte(w, '-')
		}
	}

	doWrite(w, numBuf[pos:])
}

func abs(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

// writeByte writes b through a stack buffer; slicing the format string would
// make the compiler allocate.
func writeByte(w io.Writer, b byte) {
	buf := [1]byte{b}
	doWrite(w, buf[:])
}

// doWrite hides p from escape analysis. Without this, the call through the
// io.Writer interface makes the compiler move every Printf argument to the
// heap, which crashes the kernel if Printf runs before the allocator is up.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. Copied from runtime/stubs.go.
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
