package x86

// ALUOp names one of the eight integer ALU operations that share a
// single opcode family (add/or/adc/sbb/and/sub/xor/cmp) distinguished
// only by a 3-bit extension used as the ModR/M reg field in the
// immediate forms, or folded into the base opcode byte in the
// register forms.
type ALUOp uint8

const (
	ALUAdd ALUOp = 0
	ALUOr  ALUOp = 1
	ALUAdc ALUOp = 2
	ALUSbb ALUOp = 3
	ALUAnd ALUOp = 4
	ALUSub ALUOp = 5
	ALUXor ALUOp = 6
	ALUCmp ALUOp = 7
)

// regRMOpcode returns the opcode for "op r/m32, r32" (ModRM.reg is the
// source, ModRM.rm is the destination) — each ALU op's base opcode is
// op*8 + 1 in that encoding family.
func (op ALUOp) regRMOpcode() byte { return byte(op)*8 + 1 }

// RegReg emits `op dst, src` i.e. dst = dst OP src: opcode is the
// op's r/m-is-destination form, ModRM.reg=src, ModRM.rm=dst.
func (e *Encoder) RegReg(op ALUOp, dst, src Reg) {
	e.b(op.regRMOpcode())
	e.b(modrmReg(src, dst))
}

// MembaseReg emits `op [base+disp], reg` — memory is the destination
// read-modify-write operand (e.g. used for membase accumulate forms
// where the spec lists both membase,reg and reg,membase directions).
func (e *Encoder) MembaseReg(op ALUOp, base Reg, disp int32, dst Reg) {
	e.b(op.regRMOpcode())
	e.emitModRMMem(dst, Mem{Base: base, Disp: disp})
}

// RegMembase emits `op dst, [base+disp]`: dst = dst OP mem.
func (e *Encoder) RegMembase(op ALUOp, dst, base Reg, disp int32) {
	e.b(op.regRMOpcode() + 2) // the "reg, r/m" direction of the same family
	e.emitModRMMem(dst, Mem{Base: base, Disp: disp})
}

// MemdispReg emits `op [disp], reg` (absolute, no base register).
func (e *Encoder) MemdispReg(op ALUOp, disp int32, dst Reg) {
	e.b(op.regRMOpcode())
	e.emitModRMMem(dst, Mem{Disp: disp, NoBase: true})
}

// RegMemdisp emits `op reg, [disp]`.
func (e *Encoder) RegMemdisp(op ALUOp, dst Reg, disp int32) {
	e.b(op.regRMOpcode() + 2)
	e.emitModRMMem(dst, Mem{Disp: disp, NoBase: true})
}

// ImmReg emits `op reg, imm`, auto-selecting the 8-bit sign-extended
// immediate opcode (0x83) when imm fits in [-128,127], else the 32-bit
// immediate opcode (0x81) — exactly the rule spec.md §4.1 requires.
func (e *Encoder) ImmReg(op ALUOp, dst Reg, imm int32) {
	if isImm8(imm) {
		e.b(0x83)
		e.b(modrmReg(Reg(op), dst))
		e.b(byte(int8(imm)))
		return
	}
	e.b(0x81)
	e.b(modrmReg(Reg(op), dst))
	e.imm32(imm)
}

// ImmMembase emits `op [base+disp], imm`.
func (e *Encoder) ImmMembase(op ALUOp, base Reg, disp int32, imm int32) {
	if isImm8(imm) {
		e.b(0x83)
		e.emitModRMMem(Reg(op), Mem{Base: base, Disp: disp})
		e.b(byte(int8(imm)))
		return
	}
	e.b(0x81)
	e.emitModRMMem(Reg(op), Mem{Base: base, Disp: disp})
	e.imm32(imm)
}

// Test emits `test dst, src` (register form): ModRM.reg=src, ModRM.rm=dst.
func (e *Encoder) Test(dst, src Reg) {
	e.b(0x85)
	e.b(modrmReg(src, dst))
}

// TestMembase emits `test [base+disp], reg`, used by the exception
// poll (`test (%reg), %reg` with disp=0) and by the stack redzone and
// IC-check style probes.
func (e *Encoder) TestMembase(base Reg, disp int32, reg Reg) {
	e.b(0x85)
	e.emitModRMMem(reg, Mem{Base: base, Disp: disp})
}
