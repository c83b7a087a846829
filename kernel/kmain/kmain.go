package kmain

import (
	"rikaos/device/kbd"
	"rikaos/device/pic"
	"rikaos/device/timer"
	"rikaos/device/video/vgatext"
	"rikaos/kernel"
	"rikaos/kernel/cpu"
	"rikaos/kernel/hal"
	"rikaos/kernel/hal/bootargs"
	"rikaos/kernel/hal/e820"
	"rikaos/kernel/irq"
	"rikaos/kernel/kfmt"
	"rikaos/kernel/mem"
	"rikaos/kernel/mem/pmm/allocator"
)

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
)

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. This function is invoked by the rt0 assembly code after
// setting up the GDT and a minimal g0 struct that allows Go code to use the
// stack allocated by the assembly code.
//
// The rt0 code passes the address of the boot argument block filled in by the
// loader. The firmware memory map is expected at e820.DefaultMapAddress.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(bootArgsPtr uintptr) {
	args := bootargs.FromPtr(bootArgsPtr)

	vgatext.Default.Init(vgatext.DefaultWidth, vgatext.DefaultHeight, vgatext.DefaultFramebufferAddress)

	var err *kernel.Error
	if err = e820.Init(e820.DefaultMapAddress); err != nil {
		panic(err)
	} else if err = allocator.Init(args.KernelStart(), args.KernelEnd()); err != nil {
		panic(err)
	}

	irq.Init()
	hal.InitDrivers(&vgatext.Default, &pic.Default, &timer.Default, &kbd.Default)
	irq.Load()
	cpu.EnableInterrupts()

	kfmt.Printf("rikaos: %dKb of physical memory (%dKb free), kernel image %dKb, interrupts enabled\n",
		uint64(e820.TotalPhysicalMemory()/mem.Kb),
		uint64(e820.System().FreeMemory()/mem.Kb),
		uint64(args.KernelImageSize()/mem.Kb),
	)
	if cpu.HasAPIC() {
		// Local APIC stays masked; the legacy PICs deliver all IRQs.
		kfmt.Printf("rikaos: local APIC present at 0x%x\n", cpu.APICBase())
	}

	// Interrupt handlers drive the kernel from here on.
	for cpu.InterruptsEnabled() {
		cpu.WaitForInterrupt()
	}

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	kfmt.Panic(errKmainReturned)
}
