package kfmt

import (
	"rikaos/kernel"
	"rikaos/kernel/cpu"
)

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	// panicking is set by the first call to Panic. A nested panic (e.g. a
	// fault raised while the console prints the report) halts immediately.
	panicking bool

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// Panic reports e on the active output sink and halts the CPU with
// interrupts disabled; it never returns. Supported values are *kernel.Error,
// error and string; anything else is reported without a cause.
//
// The kernel image routes calls to panic() here (see tools/redirects).
//
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	if panicking {
		cpuHaltFn()
		return
	}
	panicking = true

	var err *kernel.Error
	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	cpuHaltFn()
}

// panicString is the target for runtime.throw which the runtime uses for
// fatal internal errors.
//
//go:redirect-from runtime.throw
func panicString(msg string) {
	Panic(msg)
}
