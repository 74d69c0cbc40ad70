package jit

import (
	"sort"

	"x86jit/arch/x86"
	"x86jit/codebuf"
)

// StubSynthesizer emits the hand-rolled fragments that bridge compiled
// code to the runtime: prologue/epilogue, trampolines, monitor
// wrappers, the inline-cache check/miss pair and the itable resolver.
// These bypass the Emitter and call the encoder directly (spec §2's
// data-flow note) because they have no basic-block structure of their
// own — each is a short, fixed sequence synthesized once per method or
// once per class.
//
// Every public method here brackets its own writes with
// Buf.Lock()/Buf.Unlock() (spec §5's jit_text_lock/jit_text_unlock
// discipline), released on every exit path via defer. The bracket
// tracks nesting depth only (see codebuf.Buffer.Lock); it does not
// exclude other goroutines writing to the same buffer.
type StubSynthesizer struct {
	Buf  *codebuf.Buffer
	Enc  *x86.Encoder
	Opts Options
}

func NewStubSynthesizer(buf *codebuf.Buffer, opts Options) *StubSynthesizer {
	return &StubSynthesizer{Buf: buf, Enc: x86.New(buf), Opts: opts}
}

// assertLocked panics if called outside a Buf.Lock()/Unlock() bracket.
// Internal helpers that are never an entry point of their own — only
// ever reached from within a public method that already locked — use
// this to assert the invariant rather than re-locking themselves.
func (s *StubSynthesizer) assertLocked() {
	if !s.Buf.Locked() {
		panic("jit: stub emission outside the arena lock")
	}
}

// Prologue emits `push %ebp; mov %esp,%ebp; sub $frameSize,%esp; push
// <calleeSaves...>; [push $REDZONE_MAGIC]` and returns the entry
// offset (the push %ebp byte's offset).
func (s *StubSynthesizer) Prologue(frameSize int32, calleeSaves []x86.Reg) int {
	s.Buf.Lock()
	defer s.Buf.Unlock()
	entry := s.Buf.Offset()
	s.Enc.PushReg(x86.EBP)
	s.Enc.MovRegReg(x86.EBP, x86.ESP)
	if frameSize != 0 {
		s.Enc.ImmReg(x86.ALUSub, x86.ESP, frameSize)
	}
	for _, r := range calleeSaves {
		s.Enc.PushReg(r)
	}
	if s.Opts.StackDebug {
		magic := RedzoneMagic
		s.Enc.PushImm(int32(magic))
	}
	return entry
}

// Epilogue emits the reverse of Prologue: an optional red-zone check,
// callee-saves popped in reverse order, `leave; ret`. When stack debug
// is enabled it returns the offset of the `jne`'s displacement field
// so the caller can patch it to the abort handler's entry once that
// handler has been emitted (the same open-coded-fixup pattern the
// inline-cache check uses); the returned offset is -1 when stack debug
// is off.
func (s *StubSynthesizer) Epilogue(calleeSaves []x86.Reg) (redzoneFixup int) {
	s.Buf.Lock()
	defer s.Buf.Unlock()
	redzoneFixup = -1
	if s.Opts.StackDebug {
		s.Enc.PopReg(x86.EAX)
		magic := RedzoneMagic
		s.Enc.ImmReg(x86.ALUCmp, x86.EAX, int32(magic))
		redzoneFixup = s.Enc.JccRel(x86.CCNotEqual)
	}
	for i := len(calleeSaves) - 1; i >= 0; i-- {
		s.Enc.PopReg(calleeSaves[i])
	}
	s.Enc.Leave()
	s.Enc.Ret()
	return redzoneFixup
}

// AbortHandler emits a breakpoint trap standing in for
// itable_resolver_stub_error, the external "printf diagnostic, then
// abort" handler the itable resolver's debug-mode mismatch path jumps
// to. The real diagnostic print is an out-of-scope runtime
// collaborator; this core only needs a stable entry point to jump to.
func (s *StubSynthesizer) AbortHandler() int {
	s.Buf.Lock()
	defer s.Buf.Unlock()
	entry := s.Buf.Offset()
	s.Enc.Int3()
	return entry
}

// StackRedzoneFailHandler emits the redzone-check failure target: a
// call to the external stackRedzoneFail(eax, edx, ecx) collaborator,
// using the regparm(3) convention the stub contract (spec §6) expects
// — arguments already sit in %eax/%edx/%ecx at the jne, so the handler
// itself adds no pushes, only the call and a trailing trap since the
// collaborator never returns.
func (s *StubSynthesizer) StackRedzoneFailHandler(addr uint32) int {
	s.Buf.Lock()
	defer s.Buf.Unlock()
	entry := s.Buf.Offset()
	s.Enc.MovImmReg(x86.EBX, addr)
	s.Enc.CallRegIndirect(x86.EBX)
	s.Enc.Int3()
	return entry
}

// TraceInvoke emits a call to the external traceInvoke(cu) collaborator
// — push the compilation-unit handle, call, reclaim the argument. Used
// by InvocationTrampoline when Opts.TraceInvoke is set, and exposed
// standalone for stubs that want tracing without the rest of the
// trampoline.
func (s *StubSynthesizer) TraceInvoke(traceInvokeAddr, cuHandle uint32) {
	s.Buf.Lock()
	defer s.Buf.Unlock()
	e := s.Enc
	e.PushImm(int32(cuHandle))
	e.MovImmReg(x86.EDI, traceInvokeAddr)
	e.CallRegIndirect(x86.EDI)
	e.ImmReg(x86.ALUAdd, x86.ESP, 4)
}

// UnwindEpilogue is Epilogue's variant for a frame being torn down by
// the unwinder rather than returning normally: same callee-save
// restoration, but it transfers to unwindEntry via an indirect jump
// instead of `ret`. The address is first materialized into %eax (the
// scratch register every other stub here treats as caller-clobbered)
// since x86 jmp has no rel32 form for an address not yet known at
// assembly time.
func (s *StubSynthesizer) UnwindEpilogue(calleeSaves []x86.Reg, unwindEntry uint32) {
	s.Buf.Lock()
	defer s.Buf.Unlock()
	for i := len(calleeSaves) - 1; i >= 0; i-- {
		s.Enc.PopReg(calleeSaves[i])
	}
	s.Enc.Leave()
	s.Enc.MovImmReg(x86.EAX, unwindEntry)
	s.Enc.JmpRegIndirect(x86.EAX)
}

// TrampolineAddrs gathers the external entry points an invocation
// trampoline calls into. All are opaque runtime collaborators (spec
// §1's out-of-scope list); the core only needs their addresses to wire
// the calls.
type TrampolineAddrs struct {
	JitCompile  uint32
	FixupVtable uint32
	TraceInvoke uint32 // only read when Options.TraceInvoke is set
	ExceptionGS int32  // %gs-relative offset of the pending-exception pointer
}

// InvocationTrampoline emits the stub a method's call sites initially
// point at: build a mini frame, call jit_compile(cu), reclaim the
// argument, poll for a compile-time exception, optionally fix up the
// call site's vtable slot for a virtual method, then jump indirectly
// to the freshly compiled code jit_compile leaves in %eax.
//
// The exception poll is `mov %gs:(off),%reg; test (%reg),%reg` exactly
// as spec §5 requires: deliberately fault-prone, relying on the
// external signal handler to convert a fault there into Java-level
// exception propagation rather than an explicit compare-and-branch.
func (s *StubSynthesizer) InvocationTrampoline(addrs TrampolineAddrs, cuHandle uint32, isVirtual bool) int {
	s.Buf.Lock()
	defer s.Buf.Unlock()
	entry := s.Buf.Offset()
	e := s.Enc

	e.PushReg(x86.EBP)
	e.MovRegReg(x86.EBP, x86.ESP)

	if s.Opts.TraceInvoke {
		s.TraceInvoke(addrs.TraceInvoke, cuHandle)
	}

	e.PushImm(int32(cuHandle))
	e.MovImmReg(x86.EAX, addrs.JitCompile)
	e.CallRegIndirect(x86.EAX)
	e.ImmReg(x86.ALUAdd, x86.ESP, 4) // reclaim the cu argument

	e.MovGSMemdispReg(addrs.ExceptionGS, x86.ECX)
	e.TestMembase(x86.ECX, 0, x86.ECX)

	if isVirtual {
		e.PushReg(x86.EAX)
		e.PushMembase(x86.EBP, s.Opts.ArgsOffset) // the receiver
		e.PushImm(int32(cuHandle))
		e.MovImmReg(x86.EDX, addrs.FixupVtable)
		e.CallRegIndirect(x86.EDX)
		e.ImmReg(x86.ALUAdd, x86.ESP, 12)
		e.PopReg(x86.EAX)
	}

	e.PopReg(x86.EBP)
	e.JmpRegIndirect(x86.EAX)
	return entry
}

// JNITrampoline rearranges the stack so that control reaches the
// shared jni_trampoline entry point with arguments (return_pc,
// target_fn, vmm, saved_ebp), per spec §4.4.
func (s *StubSynthesizer) JNITrampoline(jniTrampolineAddr uint32, targetFn, vmm uint32) int {
	s.Buf.Lock()
	defer s.Buf.Unlock()
	entry := s.Buf.Offset()
	e := s.Enc

	e.PushMembase(x86.ESP, 0) // return_pc, already at the top of the caller's frame
	e.PushImm(int32(targetFn))
	e.PushImm(int32(vmm))
	e.PushReg(x86.EBP)

	e.MovImmReg(x86.EAX, jniTrampolineAddr)
	e.JmpRegIndirect(x86.EAX)
	return entry
}

// MonitorOp names which runtime helper MonitorWrapper calls.
type MonitorOp int

const (
	MonitorEnter MonitorOp = iota
	MonitorExit
)

// MonitorWrapper emits a call to vm_object_lock/vm_object_unlock
// around the protected region. On exit it preserves %eax/%edx (they
// may hold a return value) by pushing them before the call and popping
// them after, then polls for an exception exactly as the invocation
// trampoline does.
func (s *StubSynthesizer) MonitorWrapper(op MonitorOp, helperAddr uint32, exceptionGS int32, objectReg x86.Reg) {
	s.Buf.Lock()
	defer s.Buf.Unlock()
	e := s.Enc
	preserve := op == MonitorExit

	if preserve {
		e.PushReg(x86.EAX)
		e.PushReg(x86.EDX)
	}
	e.PushReg(objectReg)
	e.MovImmReg(x86.ECX, helperAddr)
	e.CallRegIndirect(x86.ECX)
	e.ImmReg(x86.ALUAdd, x86.ESP, 4)
	if preserve {
		e.PopReg(x86.EDX)
		e.PopReg(x86.EAX)
	}

	e.MovGSMemdispReg(exceptionGS, x86.ECX)
	e.TestMembase(x86.ECX, 0, x86.ECX)
}

// MonitorWrapperThis is the "this"-specialized variant used when the
// locked object is known statically to be the receiver already resting
// in a fixed stack slot, so the object needn't be re-pushed from a
// register — it's read straight out of the frame.
func (s *StubSynthesizer) MonitorWrapperThis(op MonitorOp, helperAddr uint32, exceptionGS int32) {
	s.Buf.Lock()
	defer s.Buf.Unlock()
	e := s.Enc
	preserve := op == MonitorExit

	if preserve {
		e.PushReg(x86.EAX)
		e.PushReg(x86.EDX)
	}
	e.PushMembase(x86.EBP, s.Opts.ArgsOffset)
	e.MovImmReg(x86.ECX, helperAddr)
	e.CallRegIndirect(x86.ECX)
	e.ImmReg(x86.ALUAdd, x86.ESP, 4)
	if preserve {
		e.PopReg(x86.EDX)
		e.PopReg(x86.EAX)
	}

	e.MovGSMemdispReg(exceptionGS, x86.ECX)
	e.TestMembase(x86.ECX, 0, x86.ECX)
}

// ICCheck emits the inline-cache fast path at a call site: compare the
// type hash loaded at the call site (typeReg) against the expected
// hash baked into the cache (expectedReg), then an open-coded `jne`
// with a placeholder displacement. It returns the displacement field's
// offset so the caller can later patch it to the miss handler's entry
// via ICMiss or arch/x86.Encoder.PatchRel32 directly.
func (s *StubSynthesizer) ICCheck(typeReg, expectedReg x86.Reg) int {
	s.Buf.Lock()
	defer s.Buf.Unlock()
	s.Enc.RegReg(x86.ALUCmp, typeReg, expectedReg)
	return s.Enc.JccRel(x86.CCNotEqual)
}

// ICMiss emits the inline-cache miss handler: push the receiver, the
// expected method, and the current type, call resolve_ic_miss, then
// jump indirectly to whatever address it returns in %eax. checkFixup
// is the offset ICCheck returned; it is patched to this handler's
// entry offset before anything else is emitted.
func (s *StubSynthesizer) ICMiss(checkFixup int, resolveICMissAddr uint32, receiverReg, expectedMethodImm uint32, currentTypeReg x86.Reg) int {
	s.Buf.Lock()
	defer s.Buf.Unlock()
	entry := s.Buf.Offset()
	s.Enc.PatchRel32(checkFixup, entry)

	e := s.Enc
	e.PushReg(x86.Reg(receiverReg))
	e.PushImm(int32(expectedMethodImm))
	e.PushReg(currentTypeReg)
	e.MovImmReg(x86.ECX, resolveICMissAddr)
	e.CallRegIndirect(x86.ECX)
	e.ImmReg(x86.ALUAdd, x86.ESP, 12)
	e.JmpRegIndirect(x86.EAX)
	return entry
}

// ItableEntry pairs an interface-method identity hash with the
// concrete method's vtable slot index. ItableResolver requires its
// input sorted ascending by Hash.
type ItableEntry struct {
	Hash      uint32
	SlotIndex int32
}

// ItableResolver emits a per-class stub. At runtime %eax holds the
// interface-method hash being dispatched and the receiver is on top of
// the stack; vtableReg must already hold the class's vtable base (the
// caller loads it ahead of calling this, typically from [receiver+0]).
// The stub performs a recursively-emitted binary search over entries
// and, on a match, adds entries[i].SlotIndex*WordSize to vtableReg and
// jumps there indirectly. entries must be sorted by Hash and contain
// at least two entries (spec §4.4's caller contract); ItableResolver
// panics otherwise, since an unsorted or singleton table is a
// programmer error in the caller, not a runtime condition.
func (s *StubSynthesizer) ItableResolver(vtableReg x86.Reg, entries []ItableEntry, errorHandler int) int {
	if len(entries) < 2 {
		panic("jit: itable resolver requires at least 2 entries")
	}
	if !sort.SliceIsSorted(entries, func(i, j int) bool { return entries[i].Hash < entries[j].Hash }) {
		panic("jit: itable entries must be sorted by hash")
	}
	s.Buf.Lock()
	defer s.Buf.Unlock()
	entry := s.Buf.Offset()
	s.emitItableRange(vtableReg, entries, 0, len(entries)-1, errorHandler)
	return entry
}

// emitItableRange recurses over [a,b], comparing %eax against the
// midpoint's hash and branching to the left/right half — the same
// shape as spec §4.4's binary-search description, expressed with
// Go recursion standing in for the source's explicit stack-based
// recursion.
func (s *StubSynthesizer) emitItableRange(vtableReg x86.Reg, entries []ItableEntry, a, b, errorHandler int) {
	s.assertLocked()
	e := s.Enc
	m := (a + b) / 2

	e.ImmReg(x86.ALUCmp, x86.EAX, int32(entries[m].Hash))

	var jbFixup, jaFixup int
	hasLeft := m > a
	hasRight := m < b
	if hasLeft {
		jbFixup = e.JccRel(x86.CCBelow)
	}
	if hasRight {
		jaFixup = e.JccRel(x86.CCAbove)
	}

	if s.Opts.ItableDebug {
		neFixup := e.JccRel(x86.CCNotEqual)
		e.PatchRel32(neFixup, errorHandler)
	}

	e.ImmReg(x86.ALUAdd, vtableReg, entries[m].SlotIndex*s.Opts.WordSize)
	e.JmpRegIndirect(vtableReg)

	if hasLeft {
		leftEntry := s.Buf.Offset()
		e.PatchRel32(jbFixup, leftEntry)
		s.emitItableRange(vtableReg, entries, a, m-1, errorHandler)
	}
	if hasRight {
		rightEntry := s.Buf.Offset()
		e.PatchRel32(jaFixup, rightEntry)
		s.emitItableRange(vtableReg, entries, m+1, b, errorHandler)
	}
}
