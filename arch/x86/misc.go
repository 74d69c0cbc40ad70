package x86

// PushReg emits `push reg` (0x50+rd).
func (e *Encoder) PushReg(reg Reg) { e.b(0x50 + byte(reg&7)) }

// PopReg emits `pop reg` (0x58+rd).
func (e *Encoder) PopReg(reg Reg) { e.b(0x58 + byte(reg&7)) }

// PushImm emits `push imm`, picking the 8-bit opcode (0x6A) when imm
// fits in [-128,127] and the 32-bit opcode (0x68) otherwise — the same
// sizing rule as the ALU immediate forms, per spec.md §4.1.
func (e *Encoder) PushImm(imm int32) {
	if isImm8(imm) {
		e.b(0x6A)
		e.b(byte(int8(imm)))
		return
	}
	e.b(0x68)
	e.imm32(imm)
}

// PushMembase emits `push [base+disp]`.
func (e *Encoder) PushMembase(base Reg, disp int32) {
	e.b(0xFF)
	e.emitModRMMem(6, Mem{Base: base, Disp: disp})
}

// PushLocal emits `push [ebp+disp]`.
func (e *Encoder) PushLocal(disp int32) { e.PushMembase(EBP, disp) }

// ShiftOp names the three shift-family instructions sharing opcode
// 0xD3 (cl-count) / 0xC1 (imm8-count) with an extension in ModRM.reg.
type ShiftOp uint8

const (
	ShiftShl ShiftOp = 4
	ShiftShr ShiftOp = 5
	ShiftSar ShiftOp = 7
)

// ShiftRegCl emits `<shift> reg, cl`.
func (e *Encoder) ShiftRegCl(op ShiftOp, reg Reg) {
	e.b(0xD3)
	e.b(modrmReg(Reg(op), reg))
}

// ShiftRegImm emits `<shift> reg, imm8`.
func (e *Encoder) ShiftRegImm(op ShiftOp, reg Reg, n uint8) {
	e.b(0xC1)
	e.b(modrmReg(Reg(op), reg))
	e.b(n)
}

// Neg emits `neg reg`.
func (e *Encoder) Neg(reg Reg) {
	e.b(0xF7)
	e.b(modrmReg(3, reg))
}

// MulReg emits `mul reg` (unsigned eax *= reg, edx:eax result).
func (e *Encoder) MulReg(reg Reg) {
	e.b(0xF7)
	e.b(modrmReg(4, reg))
}

// ImulRegReg emits `imul dst, src` (two-operand signed multiply,
// opcode 0x0F 0xAF).
func (e *Encoder) ImulRegReg(dst, src Reg) {
	e.b(0x0F)
	e.b(0xAF)
	e.b(modrmReg(dst, src))
}

// DivReg emits `div reg` (unsigned edx:eax /= reg).
func (e *Encoder) DivReg(reg Reg) {
	e.b(0xF7)
	e.b(modrmReg(6, reg))
}

// IdivReg emits `idiv reg` (signed edx:eax /= reg).
func (e *Encoder) IdivReg(reg Reg) {
	e.b(0xF7)
	e.b(modrmReg(7, reg))
}

// Cdq emits `cdq` — sign-extend eax into edx:eax, the usual prelude to
// a signed idiv.
func (e *Encoder) Cdq() { e.b(0x99) }

// Ret emits `ret`.
func (e *Encoder) Ret() { e.b(0xC3) }

// Leave emits `leave` (mov ebp,esp; pop ebp, fused).
func (e *Encoder) Leave() { e.b(0xC9) }

// Nop emits a one-byte `nop`.
func (e *Encoder) Nop() { e.b(0x90) }

// Int3 emits a breakpoint trap, used by debug stubs.
func (e *Encoder) Int3() { e.b(0xCC) }

// CallRegIndirect emits `call reg` (indirect call through a register).
func (e *Encoder) CallRegIndirect(reg Reg) {
	e.b(0xFF)
	e.b(modrmReg(2, reg))
}

// JmpRegIndirect emits `jmp reg` (indirect jump through a register) —
// the "really indirect jump" used by trampolines and the itable
// resolver to transfer to a freshly computed code address.
func (e *Encoder) JmpRegIndirect(reg Reg) {
	e.b(0xFF)
	e.b(modrmReg(4, reg))
}

// Setcc emits `setCC reg_lo8`.
func (e *Encoder) Setcc(cc CC, reg Reg) {
	e.b(0x0F)
	e.b(0x90 | byte(cc&0x0F))
	e.b(0xC0 | byte(reg&7))
}
