package x86

// The control-transfer encoders below only emit bytes; they know
// nothing about basic blocks or backpatching. Each returns the buffer
// offset of its 32-bit displacement field so the emitter's branch/
// fixup engine can compute and patch the relative value once the
// target offset is known. A displacement of 0 is written as a
// placeholder — callers that already know the target (a back edge to
// an already-emitted block) pass the real relative value up front via
// PatchRel32.

// CallRel emits `call rel32` with a zero placeholder displacement and
// returns the displacement field's offset.
func (e *Encoder) CallRel() int {
	e.b(0xE8)
	off := e.Buf.Offset()
	e.imm32(0)
	return off
}

// Calling through a register (CallRegIndirect in misc.go) is already
// unconditional and needs no fixup, so it has no displacement-returning
// form here.

// JmpRel emits `jmp rel32` (0xE9) and returns the displacement
// field's offset.
func (e *Encoder) JmpRel() int {
	e.b(0xE9)
	off := e.Buf.Offset()
	e.imm32(0)
	return off
}

// JccRel emits the two-byte `jCC rel32` form (0x0F 0x8x) and returns
// the displacement field's offset. The emitter must add 1 to the
// "instruction + 5" base when computing the relative value for this
// form, since the 0x0F prefix makes the instruction 6 bytes long
// (spec.md's ESCAPED flag).
func (e *Encoder) JccRel(cc CC) int {
	e.b(0x0F)
	e.b(0x80 | byte(cc&0x0F))
	off := e.Buf.Offset()
	e.imm32(0)
	return off
}

// PatchRel32 computes target-(fixupOff+4) and writes it at fixupOff.
// Every patch made through the encoder uses this formula; the jit
// package's relDisp computes the same value for the emitter's own
// back-edge and backpatch writes, so the "same formula on first
// emission and on backpatch" invariant (spec.md §8 idempotence
// property) holds.
func (e *Encoder) PatchRel32(fixupOff, targetOff int) {
	rel := int32(targetOff - (fixupOff + 4))
	e.Buf.Patch32(fixupOff, uint32(rel))
}
