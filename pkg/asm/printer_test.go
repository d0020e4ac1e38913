package asm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tsvm-lang/tsvm/pkg/loc"
)

func render(t *testing.T, fn *Function) string {
	t.Helper()
	var buf bytes.Buffer
	NewPrinter(&buf).PrintFunction(fn)
	return buf.String()
}

func TestPrintFunctionHeaderIncludesFrameSize(t *testing.T) {
	out := render(t, &Function{Name: "adder", FrameSize: 32})
	if !strings.Contains(out, "adder:") || !strings.Contains(out, "frame=32") {
		t.Errorf("header = %q, want the function name and frame size", out)
	}
}

func TestPrintMovRRUsesGPMnemonicForIntegerRegisters(t *testing.T) {
	out := render(t, &Function{Code: []Instruction{
		{Op: OpMovRR, Dst: loc.RAX, Src: loc.RCX, Width: W64},
	}})
	if !strings.Contains(out, "movq %rcx, %rax") {
		t.Errorf("got %q, want a movq between GP registers", out)
	}
}

func TestPrintMovRRUsesFloatMnemonicWhenEitherSideIsXMM(t *testing.T) {
	out := render(t, &Function{Code: []Instruction{
		{Op: OpMovRR, Dst: loc.XMM0, Src: loc.XMM1, Width: W64},
	}})
	if !strings.Contains(out, "movsd %xmm1, %xmm0") {
		t.Errorf("got %q, want movsd between XMM registers", out)
	}

	out32 := render(t, &Function{Code: []Instruction{
		{Op: OpMovRR, Dst: loc.XMM2, Src: loc.XMM3, Width: W32},
	}})
	if !strings.Contains(out32, "movss %xmm3, %xmm2") {
		t.Errorf("got %q, want movss for a 4-byte-width XMM move", out32)
	}
}

func TestPrintAddFPicksSSSuffixForWidth4AndSDOtherwise(t *testing.T) {
	ss := render(t, &Function{Code: []Instruction{
		{Op: OpAddF, Dst: loc.XMM0, Src: loc.XMM1, Width: W32},
	}})
	if !strings.Contains(ss, "addss %xmm1, %xmm0") {
		t.Errorf("got %q, want addss for W32", ss)
	}
	sd := render(t, &Function{Code: []Instruction{
		{Op: OpAddF, Dst: loc.XMM0, Src: loc.XMM1, Width: W64},
	}})
	if !strings.Contains(sd, "addsd %xmm1, %xmm0") {
		t.Errorf("got %q, want addsd for W64", sd)
	}
}

func TestPrintCmpOrdersOperandsSrc2ThenSrc(t *testing.T) {
	out := render(t, &Function{Code: []Instruction{
		{Op: OpCmp, Src: loc.RAX, Src2: loc.RCX, Width: W64},
	}})
	if !strings.Contains(out, "cmpq %rcx, %rax") {
		t.Errorf("got %q, want cmpq %%rcx, %%rax (AT&T src2,src order)", out)
	}
}

func TestPrintJccUsesConditionSuffixAndLabel(t *testing.T) {
	out := render(t, &Function{Code: []Instruction{
		{Op: OpLabelDef, Label: 1},
		{Op: OpJcc, Cond: CondLT, Target: 1},
	}})
	if !strings.Contains(out, "L1:") || !strings.Contains(out, "jl L1") {
		t.Errorf("got %q, want a label definition and a jl branch to it", out)
	}
}

func TestPrintMovLoadRendersMemOperand(t *testing.T) {
	out := render(t, &Function{Code: []Instruction{
		{Op: OpMovLoad, Dst: loc.RAX, Mem: Mem{Base: loc.RBP, Disp: -16}, Width: W64},
	}})
	if !strings.Contains(out, "-16(%rbp)") {
		t.Errorf("got %q, want a -16(%%rbp) memory operand", out)
	}

	zero := render(t, &Function{Code: []Instruction{
		{Op: OpMovLoad, Dst: loc.RAX, Mem: Mem{Base: loc.RBP, Disp: 0}, Width: W64},
	}})
	if !strings.Contains(zero, "(%rbp)") || strings.Contains(zero, "0(%rbp)") {
		t.Errorf("got %q, want a bare (%%rbp) operand when Disp is 0", zero)
	}
}

func TestPrintUnknownOpcodeDoesNotPanic(t *testing.T) {
	out := render(t, &Function{Code: []Instruction{{Op: Op(9999)}}})
	if !strings.Contains(out, "unknown op") {
		t.Errorf("got %q, want a fallback comment for an unrecognized opcode", out)
	}
}
