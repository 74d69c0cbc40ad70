package jit

import (
	"fmt"

	"x86jit/arch/x86"
	"x86jit/codebuf"
)

// Emitter walks a basic block's instruction list in order, assigns
// each instruction's MachOffset immediately before it is emitted, and
// dispatches to the encoder. Per spec §4.2 only branches, memory-index
// moves and x87 forms need anything beyond a direct encoder call; the
// rest go through emitSimple's single switch.
type Emitter struct {
	Buf    *codebuf.Buffer
	Enc    *x86.Encoder
	Fixups *FixupEngine
	Opts   Options

	// NeedsResolution is queried once per branch instruction to decide
	// whether the edge is routed through a resolution block. A nil
	// func means "never" — the common case for code with no register
	// allocator spills on this edge.
	NeedsResolution func(insn *Instruction) (*ResolutionBlock, bool)
}

func NewEmitter(buf *codebuf.Buffer, opts Options) *Emitter {
	return &Emitter{
		Buf:    buf,
		Enc:    x86.New(buf),
		Fixups: NewFixupEngine(),
		Opts:   opts,
	}
}

// EmitBlock emits every instruction of bb in order and marks it
// emitted. Calling EmitBlock twice on the same block is a programmer
// error (an already-emitted block's instructions must never be
// re-assigned an offset) and panics.
func (e *Emitter) EmitBlock(bb *BasicBlock) {
	if bb.IsEmitted {
		panic("jit: block emitted twice")
	}
	for i, insn := range bb.Insns {
		insn.MachOffset = e.Buf.Offset()
		e.emitOne(bb, insn)
		if i == 0 {
			bb.EntryOffset = insn.MachOffset
		}
	}
	if len(bb.Insns) == 0 {
		bb.EntryOffset = e.Buf.Offset()
	}
	bb.IsEmitted = true
}

// EmitResolutionBlock emits a resolution block's (possibly empty)
// instruction list directly into the buffer, recording its offset. It
// is a first-class code region (spec's design notes), not folded into
// the owning block's instruction list, so it gets its own emission
// entry point.
func (e *Emitter) EmitResolutionBlock(rb *ResolutionBlock, insns []*Instruction) {
	rb.MachOffset = e.Buf.Offset()
	for _, insn := range insns {
		insn.MachOffset = e.Buf.Offset()
		e.emitOne(nil, insn)
	}
	rb.IsEmitted = true
}

func (e *Emitter) emitOne(bb *BasicBlock, insn *Instruction) {
	switch insn.Kind {
	case KindJmp, KindJcc:
		e.emitBranch(insn)
	case KindMovMemindexReg:
		e.Enc.MovMemindexReg(insn.Dst.Reg, insn.Src.Base, insn.Src.Index, insn.Src.Scale, insn.Src.Disp)
	case KindMovRegMemindex:
		e.Enc.MovRegMemindex(insn.Dst.Base, insn.Dst.Index, insn.Dst.Scale, insn.Dst.Disp, insn.Src.Reg)
	case KindPseudoSaveCallerRegs, KindPseudoRestoreCallerRegs, KindPseudoPhi, KindPseudoLabel:
		// no bytes emitted; these exist purely to carry allocator
		// bookkeeping through the instruction list.
	default:
		e.emitSimple(insn)
	}
}

// emitSimple covers every instruction kind whose encoding is a direct,
// unconditional call into the arch/x86 encoder with operands read
// straight off Src/Dst.
func (e *Emitter) emitSimple(insn *Instruction) {
	enc := e.Enc
	switch insn.Kind {
	case KindNop:
		enc.Nop()
	case KindAddRegReg:
		enc.RegReg(x86.ALUAdd, insn.Dst.Reg, insn.Src.Reg)
	case KindAddImmReg:
		enc.ImmReg(x86.ALUAdd, insn.Dst.Reg, insn.Src.Imm)
	case KindAddMembaseReg:
		enc.RegMembase(x86.ALUAdd, insn.Dst.Reg, insn.Src.Base, insn.Src.Disp)
	case KindAddRegMembase:
		enc.MembaseReg(x86.ALUAdd, insn.Dst.Base, insn.Dst.Disp, insn.Src.Reg)
	case KindSubRegReg:
		enc.RegReg(x86.ALUSub, insn.Dst.Reg, insn.Src.Reg)
	case KindSubImmReg:
		enc.ImmReg(x86.ALUSub, insn.Dst.Reg, insn.Src.Imm)
	case KindAndRegReg:
		enc.RegReg(x86.ALUAnd, insn.Dst.Reg, insn.Src.Reg)
	case KindOrRegReg:
		enc.RegReg(x86.ALUOr, insn.Dst.Reg, insn.Src.Reg)
	case KindXorRegReg:
		enc.RegReg(x86.ALUXor, insn.Dst.Reg, insn.Src.Reg)
	case KindCmpRegReg:
		enc.RegReg(x86.ALUCmp, insn.Dst.Reg, insn.Src.Reg)
	case KindCmpImmReg:
		enc.ImmReg(x86.ALUCmp, insn.Dst.Reg, insn.Src.Imm)
	case KindCmpMembaseReg:
		enc.RegMembase(x86.ALUCmp, insn.Dst.Reg, insn.Src.Base, insn.Src.Disp)
	case KindTestRegReg:
		enc.Test(insn.Dst.Reg, insn.Src.Reg)
	case KindMovRegReg:
		enc.MovRegReg(insn.Dst.Reg, insn.Src.Reg)
	case KindMovImmReg:
		enc.MovImmReg(insn.Dst.Reg, uint32(insn.Src.Imm))
	case KindMovMembaseReg:
		enc.MovMembaseReg(insn.Dst.Reg, insn.Src.Base, insn.Src.Disp)
	case KindMovRegMembase:
		enc.MovRegMembase(insn.Dst.Base, insn.Dst.Disp, insn.Src.Reg)
	case KindMovImmMembase:
		enc.MovImmMembase(insn.Dst.Base, insn.Dst.Disp, insn.Src.Imm)
	case KindMovMemdispReg:
		enc.MovMemdispReg(insn.Dst.Reg, insn.Src.Disp)
	case KindMovRegMemdisp:
		enc.MovRegMemdisp(insn.Dst.Disp, insn.Src.Reg)
	case KindMovLocalReg:
		enc.MovLocalReg(insn.Dst.Reg, insn.Src.Disp)
	case KindMovRegLocal:
		enc.MovRegLocal(insn.Dst.Disp, insn.Src.Reg)
	case KindLea:
		enc.LeaMembase(insn.Dst.Reg, insn.Src.Base, insn.Src.Disp)
	case KindPushReg:
		enc.PushReg(insn.Src.Reg)
	case KindPushImm:
		enc.PushImm(insn.Src.Imm)
	case KindPushMembase:
		enc.PushMembase(insn.Src.Base, insn.Src.Disp)
	case KindPopReg:
		enc.PopReg(insn.Dst.Reg)
	case KindShlRegImm:
		enc.ShiftRegImm(x86.ShiftShl, insn.Dst.Reg, uint8(insn.Src.Imm))
	case KindShrRegImm:
		enc.ShiftRegImm(x86.ShiftShr, insn.Dst.Reg, uint8(insn.Src.Imm))
	case KindSarRegImm:
		enc.ShiftRegImm(x86.ShiftSar, insn.Dst.Reg, uint8(insn.Src.Imm))
	case KindShlRegCl:
		enc.ShiftRegCl(x86.ShiftShl, insn.Dst.Reg)
	case KindNeg:
		enc.Neg(insn.Dst.Reg)
	case KindImulRegReg:
		enc.ImulRegReg(insn.Dst.Reg, insn.Src.Reg)
	case KindCdq:
		enc.Cdq()
	case KindIdivReg:
		enc.IdivReg(insn.Src.Reg)
	case KindAddsdRegReg:
		enc.AddsdRegReg(insn.Dst.XMM, insn.Src.XMM)
	case KindSubsdRegReg:
		enc.SubsdRegReg(insn.Dst.XMM, insn.Src.XMM)
	case KindMulsdRegReg:
		enc.MulsdRegReg(insn.Dst.XMM, insn.Src.XMM)
	case KindDivsdRegReg:
		enc.DivsdRegReg(insn.Dst.XMM, insn.Src.XMM)
	case KindCallRel:
		insn.fixupOffset = enc.CallRel()
	case KindCallRegIndirect:
		enc.CallRegIndirect(insn.Src.Reg)
	case KindRet:
		enc.Ret()
	case KindLeave:
		enc.Leave()
	default:
		panic(fmt.Sprintf("jit: unhandled instruction kind %d", insn.Kind))
	}
}

// emitBranch implements spec §4.2's four-way branch emission rule.
func (e *Emitter) emitBranch(insn *Instruction) {
	target := insn.Dst.Target
	if target == nil {
		panic("jit: branch instruction with no target block")
	}

	if e.NeedsResolution != nil {
		if rb, ok := e.NeedsResolution(insn); ok {
			insn.fixupOffset = e.emitJump(insn)
			e.Fixups.RecordResolution(insn, target, rb)
			return
		}
	}

	if target.IsEmitted {
		fixupOffset := e.reserveJump(insn)
		insn.fixupOffset = fixupOffset
		rel := relDisp(fixupOffset, target.EntryOffset)
		e.Buf.Patch32(fixupOffset, uint32(rel))
		return
	}

	insn.fixupOffset = e.emitJump(insn)
	e.Fixups.RecordForward(insn, target)
}

// emitJump emits the placeholder form of insn's jmp/Jcc and returns
// the displacement field's offset.
func (e *Emitter) emitJump(insn *Instruction) int {
	if insn.Kind == KindJcc {
		insn.Flags |= FlagEscaped
		return e.Enc.JccRel(insn.CC)
	}
	return e.Enc.JmpRel()
}

// reserveJump is emitJump by another name, kept distinct so the back-
// edge path at the call site documents that the displacement it
// computes is written immediately rather than deferred.
func (e *Emitter) reserveJump(insn *Instruction) int {
	return e.emitJump(insn)
}

// Backpatch applies every fixup the FixupEngine has recorded so far.
// The surrounding driver calls this once all basic blocks have been
// emitted (spec §4.3); calling it again afterward is the idempotence
// check spec §8 requires and must produce byte-identical output.
func (e *Emitter) Backpatch() {
	e.Fixups.ApplyAll(func(fixupOffset int, rel int32) {
		e.Buf.Patch32(fixupOffset, uint32(rel))
	})
}
