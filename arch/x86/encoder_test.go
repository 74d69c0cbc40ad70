package x86

import (
	"bytes"
	"testing"

	"golang.org/x/arch/x86/x86asm"

	"x86jit/codebuf"
)

// decode runs an independent disassembler over the emitted bytes and
// fails the test if it can't parse the whole instruction, or parses
// less than the full buffer — the round-trip property spec.md §8
// requires of the encoder.
func decode(t *testing.T, code []byte) x86asm.Inst {
	t.Helper()
	inst, err := x86asm.Decode(code, 32)
	if err != nil {
		t.Fatalf("x86asm.Decode(% x) failed: %v", code, err)
	}
	if inst.Len != len(code) {
		t.Fatalf("x86asm.Decode(% x) consumed %d of %d bytes", code, inst.Len, len(code))
	}
	return inst
}

func newEncoder() (*Encoder, *codebuf.Buffer) {
	buf := codebuf.New(16)
	return New(buf), buf
}

func TestMovRegReg(t *testing.T) {
	e, buf := newEncoder()
	e.MovRegReg(EBX, EAX)
	want := []byte{0x89, 0xC3}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes())
}

func TestAddImmRegShort(t *testing.T) {
	e, buf := newEncoder()
	e.ImmReg(ALUAdd, ECX, 5)
	want := []byte{0x83, 0xC1, 0x05}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes())
}

func TestAddImmRegLong(t *testing.T) {
	e, buf := newEncoder()
	e.ImmReg(ALUAdd, ECX, 0x12345678)
	want := []byte{0x81, 0xC1, 0x78, 0x56, 0x34, 0x12}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes())
}

func TestMovMembaseRegEsp(t *testing.T) {
	e, buf := newEncoder()
	e.MovMembaseReg(EAX, ESP, 0)
	want := []byte{0x8B, 0x04, 0x24}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes())
}

func TestMovMembaseRegEbpZeroDisp(t *testing.T) {
	e, buf := newEncoder()
	e.MovMembaseReg(EAX, EBP, 0)
	want := []byte{0x8B, 0x45, 0x00}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes())
}

func TestMovMembaseRegOrdinaryBase(t *testing.T) {
	e, buf := newEncoder()
	e.MovMembaseReg(EAX, EBX, 0)
	want := []byte{0x8B, 0x03}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes())
}

func TestMovMembaseRegDisp32(t *testing.T) {
	e, buf := newEncoder()
	e.MovMembaseReg(EDX, ESI, 0x1000)
	want := []byte{0x8B, 0x96, 0x00, 0x10, 0x00, 0x00}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes())
}

func TestMovMemdispRegAbsolute(t *testing.T) {
	e, buf := newEncoder()
	e.MovMemdispReg(EAX, 0x4000)
	want := []byte{0x8B, 0x05, 0x00, 0x40, 0x00, 0x00}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes())
}

func TestMovMemindexReg(t *testing.T) {
	e, buf := newEncoder()
	e.MovMemindexReg(EAX, EBX, ECX, 2, 8)
	want := []byte{0x8B, 0x44, 0x8B, 0x08}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes())
}

func TestAddsdXmmXmm(t *testing.T) {
	e, buf := newEncoder()
	e.AddsdRegReg(XMM1, XMM2)
	want := []byte{0xF2, 0x0F, 0x58, 0xCA}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes())
}

func TestMulssXmmXmm(t *testing.T) {
	e, buf := newEncoder()
	e.MulssRegReg(XMM0, XMM3)
	want := []byte{0xF3, 0x0F, 0x59, 0xC3}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes())
}

func TestFildFistp64Membase(t *testing.T) {
	e, buf := newEncoder()
	e.Fild64Membase(EBP, -8)
	e.Fistp64Membase(EBP, -16)
	decode(t, buf.Bytes()[:3])
	decode(t, buf.Bytes()[3:])
}

func TestFldFstpMembaseSinglePrecision(t *testing.T) {
	e, buf := newEncoder()
	e.FldMembase(EBX, 0)
	e.FstpMembase(EBX, 0)
	want := []byte{0xD9, 0x03, 0xD9, 0x1B}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes()[:2])
	decode(t, buf.Bytes()[2:])
}

func TestFildFistpMembase32Bit(t *testing.T) {
	e, buf := newEncoder()
	e.FildMembase(EBX, 0)
	e.FistpMembase(EBX, 0)
	want := []byte{0xDB, 0x03, 0xDB, 0x1B}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes()[:2])
	decode(t, buf.Bytes()[2:])
}

func TestFldcwFnstcwMembase(t *testing.T) {
	e, buf := newEncoder()
	e.FldcwMembase(EBX, 0)
	e.FnstcwMembase(EBX, 0)
	want := []byte{0xD9, 0x2B, 0xD9, 0x3B}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes()[:2])
	decode(t, buf.Bytes()[2:])
}

func TestSSEMembaseLoadStore(t *testing.T) {
	e, buf := newEncoder()
	e.MovsdMembaseReg(XMM0, EBX, 0)
	e.MovssMembaseReg(XMM1, EBX, 0)
	e.MovsdRegMembase(EBX, 0, XMM2)
	e.MovssRegMembase(EBX, 0, XMM3)
	want := []byte{
		0xF2, 0x0F, 0x10, 0x03,
		0xF3, 0x0F, 0x10, 0x0B,
		0xF2, 0x0F, 0x11, 0x13,
		0xF3, 0x0F, 0x11, 0x1B,
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	for _, off := range []int{0, 4, 8, 12} {
		decode(t, buf.Bytes()[off:off+4])
	}
}

func TestXorpdRegReg(t *testing.T) {
	e, buf := newEncoder()
	e.XorpdRegReg(XMM4, XMM5)
	want := []byte{0x66, 0x0F, 0x57, 0xE5}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes())
}

func TestMovzxAndMovByte(t *testing.T) {
	e, buf := newEncoder()
	e.MovzxByteReg(ECX)
	e.MovzxMembaseByte(EDX, EBX, 0)
	e.MovByteRegMembase(EBX, 0, EAX)
	want := []byte{
		0x0F, 0xB6, 0xC9,
		0x0F, 0xB6, 0x13,
		0x88, 0x03,
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes()[:3])
	decode(t, buf.Bytes()[3:6])
	decode(t, buf.Bytes()[6:])
}

func TestMulRegDivReg(t *testing.T) {
	e, buf := newEncoder()
	e.MulReg(ECX)
	e.DivReg(ECX)
	want := []byte{0xF7, 0xE1, 0xF7, 0xF1}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes()[:2])
	decode(t, buf.Bytes()[2:])
}

func TestJccRelPlaceholderThenPatch(t *testing.T) {
	e, buf := newEncoder()
	fix := e.JccRel(CCEqual)
	if fix != 2 {
		t.Fatalf("displacement offset = %d, want 2", fix)
	}
	// target 10 bytes further along: rel = 10 - (2+4) = 4
	e.PatchRel32(fix, 10)
	want := []byte{0x0F, 0x84, 0x04, 0x00, 0x00, 0x00}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	inst := decode(t, buf.Bytes())
	if inst.Op != x86asm.JE {
		t.Fatalf("decoded op = %v, want JE", inst.Op)
	}
}

func TestJmpRelBackEdge(t *testing.T) {
	e, buf := newEncoder()
	// Simulate a back-edge jump to an already-emitted target at offset 0.
	fix := e.JmpRel()
	e.PatchRel32(fix, 0)
	want := []byte{0xE9, 0xFB, 0xFF, 0xFF, 0xFF} // rel = 0-(1+4) = -5
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
	decode(t, buf.Bytes())
}

func TestPatchRel32Idempotent(t *testing.T) {
	e, buf := newEncoder()
	fix := e.JmpRel()
	e.PatchRel32(fix, 50)
	first := append([]byte(nil), buf.Bytes()...)
	e.PatchRel32(fix, 50)
	if !bytes.Equal(buf.Bytes(), first) {
		t.Fatalf("patching twice with the same target changed the bytes: % x vs % x", first, buf.Bytes())
	}
}

func TestPushImmSizing(t *testing.T) {
	e, buf := newEncoder()
	e.PushImm(5)
	e.PushImm(0x7FFFFFFF)
	decode(t, buf.Bytes()[:2])
	decode(t, buf.Bytes()[2:])
	if buf.Bytes()[0] != 0x6A {
		t.Fatalf("small push immediate should use the 8-bit opcode, got %#x", buf.Bytes()[0])
	}
	if buf.Bytes()[2] != 0x68 {
		t.Fatalf("large push immediate should use the 32-bit opcode, got %#x", buf.Bytes()[2])
	}
}

func TestCallRegIndirectAndRet(t *testing.T) {
	e, buf := newEncoder()
	e.CallRegIndirect(EAX)
	e.Ret()
	decode(t, buf.Bytes()[:2])
	decode(t, buf.Bytes()[2:])
}

func TestSetccAndCdqAndLeave(t *testing.T) {
	e, buf := newEncoder()
	e.Setcc(CCGreater, EAX)
	e.Cdq()
	e.Leave()
	offs := []int{0, 3, 4}
	data := buf.Bytes()
	for i, off := range offs {
		end := len(data)
		if i+1 < len(offs) {
			end = offs[i+1]
		}
		decode(t, data[off:end])
	}
}
