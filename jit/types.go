// Package jit walks a low-level instruction list produced by an
// (out-of-scope) instruction selector and turns it into machine code:
// it assigns each instruction its buffer offset, dispatches to the
// arch/x86 encoder, tracks pending branch fixups, and synthesizes the
// hand-rolled stubs that bridge compiled code to the runtime.
package jit

import "x86jit/arch/x86"

// Kind names one of the instruction kinds the emitter's dispatch table
// recognizes. There is no attempt to enumerate the full ~120-kind
// source table; this lists the subset actually wired to an encoder
// call. The emitter dispatches with a switch (emitOne/emitSimple) and
// panics on any kind it does not handle.
type Kind int

const (
	KindNop Kind = iota
	KindAddRegReg
	KindAddImmReg
	KindAddMembaseReg
	KindAddRegMembase
	KindSubRegReg
	KindSubImmReg
	KindAndRegReg
	KindOrRegReg
	KindXorRegReg
	KindCmpRegReg
	KindCmpImmReg
	KindCmpMembaseReg
	KindTestRegReg
	KindMovRegReg
	KindMovImmReg
	KindMovMembaseReg
	KindMovRegMembase
	KindMovImmMembase
	KindMovMemdispReg
	KindMovRegMemdisp
	KindMovMemindexReg
	KindMovRegMemindex
	KindMovLocalReg
	KindMovRegLocal
	KindLea
	KindPushReg
	KindPushImm
	KindPushMembase
	KindPopReg
	KindShlRegImm
	KindShrRegImm
	KindSarRegImm
	KindShlRegCl
	KindNeg
	KindImulRegReg
	KindCdq
	KindIdivReg
	KindAddsdRegReg
	KindSubsdRegReg
	KindMulsdRegReg
	KindDivsdRegReg
	KindCallRel
	KindCallRegIndirect
	KindJmp      // unconditional branch, BRANCH kind in the source's naming
	KindJcc      // conditional branch, Jcc_BRANCH
	KindRet
	KindLeave
	// pseudo-instructions: emit nothing, exist so the instruction list
	// can carry register-allocator bookkeeping without a special case
	// in the walker.
	KindPseudoSaveCallerRegs
	KindPseudoRestoreCallerRegs
	KindPseudoPhi
	KindPseudoLabel
)

// Flag bits on Instruction.Flags. Monotonic: once emission starts on
// an instruction its flags are only ever added to, never cleared,
// until the branch engine resolves a pending patch.
type Flag uint8

const (
	// FlagEscaped marks a two-byte 0x0F-prefixed opcode, which shifts
	// the displacement field one byte further from the opcode than
	// the single-byte jmp/call forms.
	FlagEscaped Flag = 1 << iota
	// FlagBackpatchBranch marks a forward branch whose target offset
	// was not yet known at emission time.
	FlagBackpatchBranch
	// FlagBackpatchResolution marks a branch routed through a
	// resolution block rather than directly to its successor.
	FlagBackpatchResolution
)

// OperandKind discriminates Operand's sum-type variants.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandReg
	OperandXMM
	OperandImm
	OperandLocal     // stack slot, ebp-relative
	OperandMembase   // base register + displacement
	OperandMemdisp   // absolute displacement, no base
	OperandMemindex  // base + index<<scale + disp
	OperandBranchTarget
	OperandRel // already-resolved relative address (resolution-block edges)
)

// Operand is the sum type described in spec §3: Kind selects which of
// its fields are meaningful.
type Operand struct {
	Kind OperandKind

	Reg Reg
	XMM x86.XMM
	Imm int32

	Base     Reg
	Disp     int32
	HasIndex bool
	Index    Reg
	Scale    uint8

	Target *BasicBlock
	Rel    int32
}

// Reg is a thin alias over x86.Reg kept at the jit-package level so
// callers constructing an instruction list never need to import
// arch/x86 directly.
type Reg = x86.Reg

func RegOperand(r Reg) Operand   { return Operand{Kind: OperandReg, Reg: r} }
func XMMOperand(r x86.XMM) Operand { return Operand{Kind: OperandXMM, XMM: r} }
func ImmOperand(v int32) Operand { return Operand{Kind: OperandImm, Imm: v} }
func LocalOperand(disp int32) Operand {
	return Operand{Kind: OperandLocal, Disp: disp}
}
func MembaseOperand(base Reg, disp int32) Operand {
	return Operand{Kind: OperandMembase, Base: base, Disp: disp}
}
func MemdispOperand(disp int32) Operand {
	return Operand{Kind: OperandMemdisp, Disp: disp}
}
func MemindexOperand(base, index Reg, scale uint8, disp int32) Operand {
	return Operand{Kind: OperandMemindex, Base: base, Index: index, Scale: scale, Disp: disp}
}
func BranchOperand(bb *BasicBlock) Operand {
	return Operand{Kind: OperandBranchTarget, Target: bb}
}

// Instruction is one entry in a basic block's instruction list.
// MachOffset is assigned exactly once, at the moment emission starts
// for this instruction (spec §3 invariant); zero is indistinguishable
// from "not yet set" only before emission begins, since offset 0 is a
// legal real offset for the first instruction of the first block —
// callers needing to tell the two apart track is_emitted at the block
// level, not by inspecting MachOffset.
type Instruction struct {
	Kind  Kind
	Src   Operand
	Dst   Operand
	CC    x86.CC // meaningful only for KindJcc

	MachOffset int
	Flags      Flag

	// fixupOffset is the displacement field's buffer offset, filled in
	// by the emitter for every jmp/Jcc (forward, back-edge or
	// resolution-block) and for KindCallRel.
	fixupOffset int
}

// BasicBlock is a maximal straight-line instruction sequence with one
// entry and one exit (spec §3). BasicBlock holds no successor list;
// a branch instruction refers to its target block by pointer
// (Operand.Target), so a cyclic block graph (e.g. loop back-edges) is
// a cycle of pointers.
type BasicBlock struct {
	Insns    []*Instruction
	IsEmitted bool

	// EntryOffset is the offset of Insns[0] once IsEmitted is true.
	EntryOffset int

	// Resolution blocks, one per successor edge that needs distinct
	// per-edge fixup code (e.g. register-allocator spills). The emitter
	// does not read this field: Emitter.NeedsResolution returns the
	// resolution block for each branch instruction directly.
	Resolutions []*ResolutionBlock
}

// ResolutionBlock is a tiny synthetic code region carried on a
// control-flow edge, used when several edges converge on one successor
// but each needs distinct preparation code before the jump.
type ResolutionBlock struct {
	MachOffset int
	IsEmitted  bool
}
