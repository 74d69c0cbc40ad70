package x86

// x87 conversion helpers. These are all membase-only forms — no
// register-register variants are needed because the x87 stack only
// ever talks to memory or its own ST(i) slots in this target's subset
// (spec.md §6). Each opcode carries its /digit extension in ModRM.reg.

// FldMembase emits `fld dword [base+disp]` (load single-precision onto
// the x87 stack, opcode 0xD9 /0).
func (e *Encoder) FldMembase(base Reg, disp int32) {
	e.b(0xD9)
	e.emitModRMMem(0, Mem{Base: base, Disp: disp})
}

// Fld64Membase emits `fld qword [base+disp]` (double-precision, opcode
// 0xDD /0).
func (e *Encoder) Fld64Membase(base Reg, disp int32) {
	e.b(0xDD)
	e.emitModRMMem(0, Mem{Base: base, Disp: disp})
}

// FstpMembase emits `fstp dword [base+disp]` (pop ST(0) to memory as
// single-precision, opcode 0xD9 /3).
func (e *Encoder) FstpMembase(base Reg, disp int32) {
	e.b(0xD9)
	e.emitModRMMem(3, Mem{Base: base, Disp: disp})
}

// Fstp64Membase emits `fstp qword [base+disp]` (opcode 0xDD /3).
func (e *Encoder) Fstp64Membase(base Reg, disp int32) {
	e.b(0xDD)
	e.emitModRMMem(3, Mem{Base: base, Disp: disp})
}

// FildMembase emits `fild dword [base+disp]` (load a 32-bit integer
// and convert to the x87 extended-precision stack, opcode 0xDB /0).
func (e *Encoder) FildMembase(base Reg, disp int32) {
	e.b(0xDB)
	e.emitModRMMem(0, Mem{Base: base, Disp: disp})
}

// Fild64Membase emits `fild qword [base+disp]` (opcode 0xDF /5).
func (e *Encoder) Fild64Membase(base Reg, disp int32) {
	e.b(0xDF)
	e.emitModRMMem(5, Mem{Base: base, Disp: disp})
}

// FistpMembase emits `fistp dword [base+disp]` (pop ST(0), convert to
// a 32-bit integer, store — opcode 0xDB /3).
func (e *Encoder) FistpMembase(base Reg, disp int32) {
	e.b(0xDB)
	e.emitModRMMem(3, Mem{Base: base, Disp: disp})
}

// Fistp64Membase emits `fistp qword [base+disp]` (opcode 0xDF /7).
func (e *Encoder) Fistp64Membase(base Reg, disp int32) {
	e.b(0xDF)
	e.emitModRMMem(7, Mem{Base: base, Disp: disp})
}

// FldcwMembase emits `fldcw [base+disp]` (load the FPU control word,
// opcode 0xD9 /5) — used ahead of fistp to force truncating rounding
// mode for the int-conversion ABI.
func (e *Encoder) FldcwMembase(base Reg, disp int32) {
	e.b(0xD9)
	e.emitModRMMem(5, Mem{Base: base, Disp: disp})
}

// FnstcwMembase emits `fnstcw [base+disp]` (store the FPU control
// word, opcode 0xD9 /7) — paired with FldcwMembase to save/restore the
// control word around a truncating conversion.
func (e *Encoder) FnstcwMembase(base Reg, disp int32) {
	e.b(0xD9)
	e.emitModRMMem(7, Mem{Base: base, Disp: disp})
}
