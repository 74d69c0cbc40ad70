package x86

import "x86jit/codebuf"

// Encoder emits bytes for one instruction at a time into a code
// buffer. It carries no instruction-list or branch-target state — that
// belongs to the emitter — only the addressing-mode bookkeeping a
// single encoding needs (the ESP-SIB and EBP-zero-displacement special
// cases below).
type Encoder struct {
	Buf *codebuf.Buffer
}

func New(buf *codebuf.Buffer) *Encoder {
	return &Encoder{Buf: buf}
}

func (e *Encoder) b(v byte)      { e.Buf.WriteByte(v) }
func (e *Encoder) imm32(v int32) { w := le32(uint32(v)); e.Buf.Write(w[:]) }

// modrmReg builds a mod=11 (register-direct) ModR/M byte: regField
// goes in bits 5:3, rm in bits 2:0.
func modrmReg(regField, rm Reg) byte {
	return 0xC0 | byte(regField&7)<<3 | byte(rm&7)
}

// Mem describes a memory operand: base register plus signed
// displacement, or — when HasIndex is set — base+index*scale+disp
// (scale is log2 of the element width, 0..3), or — when NoBase is
// set — an absolute 32-bit displacement with no base register at all.
type Mem struct {
	Base     Reg
	Disp     int32
	NoBase   bool // absolute-displacement form, mod=00 rm=101
	HasIndex bool
	Index    Reg
	Scale    uint8 // 0,1,2,3 => ×1,×2,×4,×8
}

// emitModRMMem writes the ModR/M (+ SIB + displacement) bytes for a
// memory operand addressed from reg, following every rule in the
// spec's ModR/M/SIB selection table:
//
//   - esp as base always needs a SIB byte (index=100 means "none").
//   - ebp as base with zero displacement must still emit an explicit
//     disp8=0 — mod=00/rm=101 is the no-base absolute form, so ebp
//     cannot use it to mean "no displacement".
//   - displacement in [-128,127] uses mod=01 + disp8; otherwise
//     mod=10 + disp32.
//   - the no-base absolute form is mod=00, rm=101, disp32.
//   - the index form is mod depends on displacement (same rules),
//     rm=100, with a SIB encoding (scale, index, base).
func (e *Encoder) emitModRMMem(reg Reg, m Mem) {
	if m.HasIndex {
		e.emitModRMMemIndex(reg, m)
		return
	}
	if m.NoBase {
		e.b(0x00<<6 | byte(reg&7)<<3 | 0x05)
		e.imm32(m.Disp)
		return
	}

	needsSIB := m.Base&7 == ESP
	mustExplicitDisp := m.Base&7 == EBP && m.Disp == 0

	switch {
	case m.Disp == 0 && !mustExplicitDisp:
		e.b(0x00<<6 | byte(reg&7)<<3 | byte(m.Base&7))
		if needsSIB {
			e.b(sib(0, 0b100, m.Base))
		}
	case isImm8(m.Disp):
		e.b(0x01<<6 | byte(reg&7)<<3 | byte(m.Base&7))
		if needsSIB {
			e.b(sib(0, 0b100, m.Base))
		}
		e.b(byte(int8(m.Disp)))
	default:
		e.b(0x02<<6 | byte(reg&7)<<3 | byte(m.Base&7))
		if needsSIB {
			e.b(sib(0, 0b100, m.Base))
		}
		e.imm32(m.Disp)
	}
}

// emitModRMMemIndex writes the rm=100 + SIB(scale,index,base)
// memory-index form: [base + index<<scale + disp]. The SIB byte is
// always emitted; mod follows the displacement: mod=00 with no
// displacement when it is zero (except for an ebp base, whose SIB
// base=101 under mod=00 would mean "no base, disp32", so it takes
// mod=01 with an explicit disp8=0), mod=01 + disp8 for [-128,127],
// otherwise mod=10 + disp32.
func (e *Encoder) emitModRMMemIndex(reg Reg, m Mem) {
	switch {
	case m.Disp == 0 && m.Base&7 != EBP:
		e.b(0x00<<6 | byte(reg&7)<<3 | 0b100)
		e.b(sib(m.Scale, m.Index, m.Base))
	case isImm8(m.Disp):
		e.b(0x01<<6 | byte(reg&7)<<3 | 0b100)
		e.b(sib(m.Scale, m.Index, m.Base))
		e.b(byte(int8(m.Disp)))
	default:
		e.b(0x02<<6 | byte(reg&7)<<3 | 0b100)
		e.b(sib(m.Scale, m.Index, m.Base))
		e.imm32(m.Disp)
	}
}

func sib(scale uint8, index, base Reg) byte {
	return scale<<6 | byte(index&7)<<3 | byte(base&7)
}
