package jit

import "fmt"

// relDisp computes the canonical relative-displacement formula from
// spec §4.2/§8: target_offset - (insn.mach_offset + 5) - (1 if ESCAPED
// else 0). It is expressed here in terms of the already-known
// displacement-field offset (fixupOffset) rather than mach_offset
// directly, which is equivalent: fixupOffset is mach_offset+1 for jmp
// (opcode byte) or mach_offset+2 for Jcc (two opcode bytes), and in
// both cases fixupOffset+4 is exactly mach_offset+5+(1 if escaped).
// Keeping one formula in one place is what makes the branch-fixup law
// and the idempotence property hold by construction — this is the
// same function arch/x86.Encoder.PatchRel32 implements; the jit
// package re-derives it here so the branch engine can reason about
// target offsets without reaching back into the encoder for every
// call.
func relDisp(fixupOffset, targetOffset int) int32 {
	return int32(targetOffset - (fixupOffset + 4))
}

// pendingFixup is one recorded branch or resolution-block edge still
// awaiting its target offset.
type pendingFixup struct {
	insn   *Instruction
	target *BasicBlock
	// resolution is non-nil when this fixup targets a resolution
	// block rather than the successor block directly.
	resolution *ResolutionBlock
}

// FixupEngine tracks every pending branch recorded during emission of
// one compilation and resolves them once every block has an offset.
// Per spec §4.3 it is strictly per-compilation, single-threaded state.
type FixupEngine struct {
	pending []pendingFixup
}

func NewFixupEngine() *FixupEngine {
	return &FixupEngine{}
}

// RecordForward registers insn (already emitted with a zero
// placeholder displacement at fixupOffset) as needing its displacement
// patched once target is emitted.
func (f *FixupEngine) RecordForward(insn *Instruction, target *BasicBlock) {
	insn.Flags |= FlagBackpatchBranch
	f.pending = append(f.pending, pendingFixup{insn: insn, target: target})
}

// RecordResolution registers insn as routed through a resolution block
// rather than directly to its successor.
func (f *FixupEngine) RecordResolution(insn *Instruction, target *BasicBlock, rb *ResolutionBlock) {
	insn.Flags |= FlagBackpatchResolution
	f.pending = append(f.pending, pendingFixup{insn: insn, target: target, resolution: rb})
}

// ApplyAll walks every pending fixup and patches its displacement
// field via patch, which must write the 4-byte little-endian
// relative value computed by relDisp. It is an error — the kind of
// programmer error spec §7 calls an assertion failure — for any
// pending fixup's target block (or resolution block) to still be
// unemitted when ApplyAll runs; spec §4.3 requires every flag set
// during emission to be resolved before the buffer is marked
// executable.
func (f *FixupEngine) ApplyAll(patch func(fixupOffset int, rel int32)) {
	for _, pf := range f.pending {
		var targetOffset int
		if pf.resolution != nil {
			if !pf.resolution.IsEmitted {
				panic(fmt.Sprintf("unresolved resolution-block fixup at offset %d", pf.insn.fixupOffset))
			}
			targetOffset = pf.resolution.MachOffset
		} else {
			if !pf.target.IsEmitted {
				panic(fmt.Sprintf("unresolved branch fixup at offset %d: target block never emitted", pf.insn.fixupOffset))
			}
			targetOffset = pf.target.EntryOffset
		}
		rel := relDisp(pf.insn.fixupOffset, targetOffset)
		patch(pf.insn.fixupOffset, rel)
	}
	f.pending = f.pending[:0]
}

// Pending reports the number of unresolved fixups, used by tests and
// by the emitter's own assertions.
func (f *FixupEngine) Pending() int { return len(f.pending) }
