package irq

// fillTrampolines stores the entry point of each vector trampoline in table.
//
// Each trampoline saves the general purpose registers on top of the frame
// pushed by the CPU, calls dispatchInterrupt with its vector number and the
// address of the saved context, restores the registers, drops the error code
// if the vector has one and returns with IRETQ.
func fillTrampolines(table *[TrampolineCount]uintptr)

// Go declarations for the per-vector entry points defined in
// trampoline_amd64.s. They are never called from Go; declaring them lets the
// toolchain emit the argument metadata the linker expects for assembly
// functions.
func trampoline0()
func trampoline1()
func trampoline2()
func trampoline3()
func trampoline4()
func trampoline5()
func trampoline6()
func trampoline7()
func trampoline8()
func trampoline9()
func trampoline10()
func trampoline11()
func trampoline12()
func trampoline13()
func trampoline14()
func trampoline15()
func trampoline16()
func trampoline17()
func trampoline18()
func trampoline19()
func trampoline20()
func trampoline21()
func trampoline22()
func trampoline23()
func trampoline24()
func trampoline25()
func trampoline26()
func trampoline27()
func trampoline28()
func trampoline29()
func trampoline30()
func trampoline31()
func trampoline32()
func trampoline33()
func trampoline34()
func trampoline35()
func trampoline36()
func trampoline37()
func trampoline38()
func trampoline39()
func trampoline40()
func trampoline41()
func trampoline42()
func trampoline43()
func trampoline44()
func trampoline45()
func trampoline46()
func trampoline47()
