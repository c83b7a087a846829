package cpu

const (
	// msrAPICBase is the IA32_APIC_BASE model-specific register.
	msrAPICBase = 0x1b

	cpuidFeatureAPIC = 1 << 9
)

// HasAPIC returns true if CPUID reports an on-chip local APIC.
func HasAPIC() bool {
	_, _, _, edx := cpuidFn(1)
	return edx&cpuidFeatureAPIC != 0
}

// APICBase returns the physical base address of the local APIC register page
// as reported by IA32_APIC_BASE. The low 12 flag bits are masked off.
func APICBase() uint64 {
	return readMSRFn(msrAPICBase) &^ 0xfff
}
