package main

import (
	"encoding/json"
	"fmt"
	"os"

	"x86jit/arch/x86"
	"x86jit/jit"
)

// insnDTO is the on-disk JSON shape for one instruction. It only
// covers the subset of kinds worth round-tripping through a CLI demo
// (register moves, immediate arithmetic, local-slot access and
// branches); the full ~120-kind table lives in jit.Kind and is driven
// programmatically by the compiler proper, not by this inspection
// tool.
type insnDTO struct {
	Kind   string `json:"kind"`
	Label  string `json:"label,omitempty"`
	Target string `json:"target,omitempty"`
	CC     string `json:"cc,omitempty"`

	DstReg string `json:"dst_reg,omitempty"`
	SrcReg string `json:"src_reg,omitempty"`
	Imm    int32  `json:"imm,omitempty"`
	Base   string `json:"base,omitempty"`
	Disp   int32  `json:"disp,omitempty"`
}

type programDTO struct {
	Blocks []struct {
		Label string    `json:"label"`
		Insns []insnDTO `json:"insns"`
	} `json:"blocks"`
}

var regByName = map[string]x86.Reg{
	"eax": x86.EAX, "ecx": x86.ECX, "edx": x86.EDX, "ebx": x86.EBX,
	"esp": x86.ESP, "ebp": x86.EBP, "esi": x86.ESI, "edi": x86.EDI,
}

var ccByName = map[string]x86.CC{
	"e": x86.CCEqual, "ne": x86.CCNotEqual,
	"l": x86.CCLess, "le": x86.CCLessEqual,
	"g": x86.CCGreater, "ge": x86.CCGreaterEqual,
	"b": x86.CCBelow, "be": x86.CCBelowEqual,
	"a": x86.CCAbove, "ae": x86.CCAboveEqual,
}

var kindByName = map[string]jit.Kind{
	"nop":          jit.KindNop,
	"add_reg_reg":  jit.KindAddRegReg,
	"add_imm_reg":  jit.KindAddImmReg,
	"sub_reg_reg":  jit.KindSubRegReg,
	"sub_imm_reg":  jit.KindSubImmReg,
	"and_reg_reg":  jit.KindAndRegReg,
	"or_reg_reg":   jit.KindOrRegReg,
	"xor_reg_reg":  jit.KindXorRegReg,
	"cmp_reg_reg":  jit.KindCmpRegReg,
	"cmp_imm_reg":  jit.KindCmpImmReg,
	"mov_reg_reg":  jit.KindMovRegReg,
	"mov_imm_reg":  jit.KindMovImmReg,
	"mov_membase_reg": jit.KindMovMembaseReg,
	"mov_reg_membase": jit.KindMovRegMembase,
	"mov_local_reg": jit.KindMovLocalReg,
	"mov_reg_local": jit.KindMovRegLocal,
	"push_reg":     jit.KindPushReg,
	"push_imm":     jit.KindPushImm,
	"pop_reg":      jit.KindPopReg,
	"neg":          jit.KindNeg,
	"cdq":          jit.KindCdq,
	"jmp":          jit.KindJmp,
	"jcc":          jit.KindJcc,
	"ret":          jit.KindRet,
	"leave":        jit.KindLeave,
}

// loadProgram reads a JSON instruction-list file and assembles it into
// basic blocks resolvable by label name, matching jit.BasicBlock's
// successor-by-reference model.
func loadProgram(path string) ([]*jit.BasicBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var prog programDTO
	if err := json.Unmarshal(data, &prog); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	blocks := make([]*jit.BasicBlock, len(prog.Blocks))
	byLabel := make(map[string]*jit.BasicBlock, len(prog.Blocks))
	for i, b := range prog.Blocks {
		bb := &jit.BasicBlock{}
		blocks[i] = bb
		byLabel[b.Label] = bb
	}

	for i, b := range prog.Blocks {
		bb := blocks[i]
		for _, d := range b.Insns {
			insn, err := dtoToInstruction(d, byLabel)
			if err != nil {
				return nil, err
			}
			bb.Insns = append(bb.Insns, insn)
		}
	}
	return blocks, nil
}

func dtoToInstruction(d insnDTO, byLabel map[string]*jit.BasicBlock) (*jit.Instruction, error) {
	kind, ok := kindByName[d.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown instruction kind %q", d.Kind)
	}
	insn := &jit.Instruction{Kind: kind}

	if d.Kind == "jmp" || d.Kind == "jcc" {
		target, ok := byLabel[d.Target]
		if !ok {
			return nil, fmt.Errorf("branch to undefined label %q", d.Target)
		}
		insn.Dst = jit.BranchOperand(target)
		if d.Kind == "jcc" {
			cc, ok := ccByName[d.CC]
			if !ok {
				return nil, fmt.Errorf("unknown condition code %q", d.CC)
			}
			insn.CC = cc
		}
		return insn, nil
	}

	if d.DstReg != "" {
		reg, ok := regByName[d.DstReg]
		if !ok {
			return nil, fmt.Errorf("unknown register %q", d.DstReg)
		}
		insn.Dst = jit.RegOperand(reg)
	}
	if d.SrcReg != "" {
		reg, ok := regByName[d.SrcReg]
		if !ok {
			return nil, fmt.Errorf("unknown register %q", d.SrcReg)
		}
		insn.Src = jit.RegOperand(reg)
	}
	if d.Base != "" {
		base, ok := regByName[d.Base]
		if !ok {
			return nil, fmt.Errorf("unknown register %q", d.Base)
		}
		switch d.Kind {
		case "mov_membase_reg":
			insn.Src = jit.MembaseOperand(base, d.Disp)
		case "mov_reg_membase":
			insn.Dst = jit.MembaseOperand(base, d.Disp)
		}
	}
	switch d.Kind {
	case "add_imm_reg", "sub_imm_reg", "cmp_imm_reg", "mov_imm_reg", "push_imm":
		insn.Src = jit.ImmOperand(d.Imm)
	case "mov_local_reg":
		insn.Src = jit.LocalOperand(d.Disp)
	case "mov_reg_local":
		insn.Dst = jit.LocalOperand(d.Disp)
	}

	return insn, nil
}
