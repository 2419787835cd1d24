package dwt

// KernelTable is the explicit, value-typed replacement for the teacher's
// build-tag-selected SIMD dispatch (dwt_amd64.go / dwt_arm64.go picked one
// of two package-level function sets at compile time). Spec §9 calls this
// out directly: a resolved SIMD dispatch table must not live in module
// globals, and per-line kernel calls should stay direct and monomorphic
// rather than going through a function pointer chosen at package init.
//
// Only the scalar contract is normative here (spec §1: "SIMD kernel
// variants — only the scalar contract... is specified"); CPUFlags records
// which vector levels the caller permitted so a future vectorized Lift
// implementation has somewhere to plug in, without the core depending on
// one.
type KernelTable struct {
	CPUFlags uint32
	Lift53   func(in, lf, hf []int32, length int)
}

// CPU flag bits NewKernelTable records in KernelTable.CPUFlags. The public
// Config and DecoderConfig carry no CPU flag field.
const (
	CPUFlagC = 1 << iota
	CPUFlagSSE
	CPUFlagSSE2
	CPUFlagSSSE3
	CPUFlagSSE41
	CPUFlagSSE42
	CPUFlagAVX
	CPUFlagAVX2
	CPUFlagAVX512
)

// NewKernelTable builds the scalar KernelTable. Every implementation must
// ship this level; a vectorized Lift53 can be substituted by a build that
// wires AVX/NEON kernels into the same field once one exists, without
// changing any call site.
func NewKernelTable(cpuFlags uint32) KernelTable {
	return KernelTable{CPUFlags: cpuFlags, Lift53: ForwardLift53}
}
