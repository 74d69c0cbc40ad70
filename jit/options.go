package jit

// Options gathers the compile-time switches the stub synthesizer
// consults. It replaces the source's scattered global flags with a
// single value threaded explicitly through the Emitter and
// StubSynthesizer constructors.
type Options struct {
	// StackDebug enables the prologue/epilogue red-zone magic check.
	StackDebug bool

	// ItableDebug enables the itable resolver's final equality check
	// and its fall-through to the fatal mismatch handler. Production
	// builds trust the sorted-table/selector-hash invariant and skip
	// the check.
	ItableDebug bool

	// TraceInvoke enables an extra call to a trace-invocation helper
	// at the top of the invocation trampoline, mirrored on
	// original_source's optional call-tracing build.
	TraceInvoke bool

	// ArgsOffset is the stack frame descriptor's argument-area offset
	// from %ebp, supplied by the external frame layout collaborator.
	// The emitter references it from here rather than hard-coding it
	// (spec §3's stack frame descriptor note).
	ArgsOffset int32

	// WordSize is the machine word width in bytes, used by the itable
	// resolver's slot_index * WordSize arithmetic.
	WordSize int32
}

// DefaultOptions returns the conservative debug-friendly defaults: all
// checks enabled, a 4-byte word, and the conventional args offset used
// throughout this package's tests.
func DefaultOptions() Options {
	return Options{
		StackDebug:  true,
		ItableDebug: true,
		TraceInvoke: false,
		ArgsOffset:  8,
		WordSize:    4,
	}
}

// RedzoneMagic is the sentinel pushed by the prologue and checked by
// the epilogue in stack-debug mode.
const RedzoneMagic uint32 = 0xDEADBEEF
