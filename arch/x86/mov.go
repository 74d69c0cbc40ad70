package x86

// MovRegReg emits `mov dst, src`.
func (e *Encoder) MovRegReg(dst, src Reg) {
	e.b(0x89)
	e.b(modrmReg(src, dst))
}

// MovImmReg emits `mov reg, imm32` (B8+rd form, always 5 bytes — no
// 8-bit-immediate shortcut exists for mov the way there is for the
// ALU family).
func (e *Encoder) MovImmReg(reg Reg, imm uint32) {
	e.b(0xB8 + byte(reg&7))
	e.imm32(int32(imm))
}

// MovMembaseReg emits `mov dst, [base+disp]`.
func (e *Encoder) MovMembaseReg(dst, base Reg, disp int32) {
	e.b(0x8B)
	e.emitModRMMem(dst, Mem{Base: base, Disp: disp})
}

// MovRegMembase emits `mov [base+disp], src`.
func (e *Encoder) MovRegMembase(base Reg, disp int32, src Reg) {
	e.b(0x89)
	e.emitModRMMem(src, Mem{Base: base, Disp: disp})
}

// MovImmMembase emits `mov [base+disp], imm32` (opcode 0xC7 /0).
func (e *Encoder) MovImmMembase(base Reg, disp int32, imm int32) {
	e.b(0xC7)
	e.emitModRMMem(0, Mem{Base: base, Disp: disp})
	e.imm32(imm)
}

// MovMemdispReg emits `mov dst, [disp]` (absolute address, no base).
func (e *Encoder) MovMemdispReg(dst Reg, disp int32) {
	e.b(0x8B)
	e.emitModRMMem(dst, Mem{Disp: disp, NoBase: true})
}

// MovRegMemdisp emits `mov [disp], src`.
func (e *Encoder) MovRegMemdisp(disp int32, src Reg) {
	e.b(0x89)
	e.emitModRMMem(src, Mem{Disp: disp, NoBase: true})
}

// MovMemindexReg emits `mov dst, [base + index<<scale + disp]`.
func (e *Encoder) MovMemindexReg(dst, base, index Reg, scale uint8, disp int32) {
	e.b(0x8B)
	e.emitModRMMem(dst, Mem{Base: base, Disp: disp, HasIndex: true, Index: index, Scale: scale})
}

// MovRegMemindex emits `mov [base + index<<scale + disp], src`.
func (e *Encoder) MovRegMemindex(base, index Reg, scale uint8, disp int32, src Reg) {
	e.b(0x89)
	e.emitModRMMem(src, Mem{Base: base, Disp: disp, HasIndex: true, Index: index, Scale: scale})
}

// MovLocalReg emits `mov dst, [ebp+disp]` — the "memory-local" stack
// slot addressing form, always based on EBP.
func (e *Encoder) MovLocalReg(dst Reg, disp int32) { e.MovMembaseReg(dst, EBP, disp) }

// MovRegLocal emits `mov [ebp+disp], src`.
func (e *Encoder) MovRegLocal(disp int32, src Reg) { e.MovRegMembase(EBP, disp, src) }

// LeaMembase emits `lea dst, [base+disp]`.
func (e *Encoder) LeaMembase(dst, base Reg, disp int32) {
	e.b(0x8D)
	e.emitModRMMem(dst, Mem{Base: base, Disp: disp})
}

// MovzxByteReg emits `movzx dst, dst_lo8` (zero-extend the low byte of
// a register into itself).
func (e *Encoder) MovzxByteReg(dst Reg) {
	e.b(0x0F)
	e.b(0xB6)
	e.b(modrmReg(dst, dst))
}

// MovzxMembaseByte emits `movzx dst, byte [base+disp]`.
func (e *Encoder) MovzxMembaseByte(dst, base Reg, disp int32) {
	e.b(0x0F)
	e.b(0xB6)
	e.emitModRMMem(dst, Mem{Base: base, Disp: disp})
}

// MovByteRegMembase emits `mov byte [base+disp], src_lo8`.
func (e *Encoder) MovByteRegMembase(base Reg, disp int32, src Reg) {
	e.b(0x88)
	e.emitModRMMem(src, Mem{Base: base, Disp: disp})
}

// gsPrefix emits the 0x65 segment-override byte that makes the next
// load/store thread-local-relative (GS points at the thread control
// block in this target).
func (e *Encoder) gsPrefix() { e.b(0x65) }

// MovGSMemdispReg emits `mov reg, %gs:(disp)` — absolute thread-local
// load, used by the exception poll and trampoline exception test.
func (e *Encoder) MovGSMemdispReg(disp int32, dst Reg) {
	e.gsPrefix()
	e.MovMemdispReg(dst, disp)
}

// MovRegGSMemdisp emits `mov %gs:(disp), reg`.
func (e *Encoder) MovRegGSMemdisp(disp int32, src Reg) {
	e.gsPrefix()
	e.MovRegMemdisp(disp, src)
}
