package stacking

import (
	"testing"

	"github.com/tsvm-lang/tsvm/pkg/asm"
	"github.com/tsvm-lang/tsvm/pkg/loc"
)

func TestComputeLayoutZeroArgsStillAligns(t *testing.T) {
	l := ComputeLayout(0)
	if l.ArgBufBytes != 0 {
		t.Errorf("ArgBufBytes = %d, want 0", l.ArgBufBytes)
	}
	if (8+pushBytes+l.FrameSize)%16 != 0 {
		t.Errorf("return address(8)+pushBytes(%d)+FrameSize(%d) = %d, not 16-aligned", pushBytes, l.FrameSize, 8+pushBytes+l.FrameSize)
	}
}

func TestComputeLayoutAlignsForVariousArgCounts(t *testing.T) {
	for maxArgs := 0; maxArgs <= maxParamArity; maxArgs++ {
		l := ComputeLayout(maxArgs)
		if l.FrameSize < 0 || l.FrameSize%16 != 8 {
			t.Errorf("maxArgs=%d: FrameSize = %d, want ≡8 (mod 16) and non-negative", maxArgs, l.FrameSize)
		}
		if l.ArgBufBytes != int64(maxArgs)*8 {
			t.Errorf("maxArgs=%d: ArgBufBytes = %d, want %d", maxArgs, l.ArgBufBytes, maxArgs*8)
		}
		if l.ArgBufOffset != -(pushBytes - 8 + l.FrameSize) {
			t.Errorf("maxArgs=%d: ArgBufOffset = %d, want %d", maxArgs, l.ArgBufOffset, -(pushBytes - 8 + l.FrameSize))
		}
		if l.ArgBufBytes > l.FrameSize {
			t.Errorf("maxArgs=%d: argument buffer (%d bytes) does not fit in the reserved frame (%d bytes)",
				maxArgs, l.ArgBufBytes, l.FrameSize)
		}
	}
}

func TestComputeLayoutClampsToMaxParamArity(t *testing.T) {
	over := ComputeLayout(maxParamArity + 5)
	atCeiling := ComputeLayout(maxParamArity)
	if over != atCeiling {
		t.Errorf("ComputeLayout(%d) = %+v, want it clamped to ComputeLayout(%d) = %+v",
			maxParamArity+5, over, maxParamArity, atCeiling)
	}
}

func TestPrologueSavesCalleeSavedAndLoadsConstants(t *testing.T) {
	layout := ComputeLayout(2)
	code := Prologue(layout, 0xdeadbeef)

	if code[0].Op != asm.OpPush || code[0].Src != loc.RBP {
		t.Fatalf("first prologue instruction = %+v, want push rbp", code[0])
	}
	if code[1].Op != asm.OpMovRR || code[1].Dst != loc.RBP || code[1].Src != loc.RSP {
		t.Fatalf("second prologue instruction = %+v, want mov rbp, rsp", code[1])
	}

	var pushed []loc.MReg
	var sawSub, sawR15Load, sawR12Load bool
	for _, instr := range code[2:] {
		switch instr.Op {
		case asm.OpPush:
			pushed = append(pushed, instr.Src)
		case asm.OpSubImm:
			sawSub = true
			if instr.Dst != loc.RSP || instr.Imm != layout.FrameSize {
				t.Errorf("frame-reserve instruction = %+v, want sub rsp, %d", instr, layout.FrameSize)
			}
		case asm.OpMovRI:
			if instr.Dst == loc.R15 {
				sawR15Load = true
				if instr.Imm != int64(0xdeadbeef) {
					t.Errorf("R15 load immediate = %#x, want 0xdeadbeef", instr.Imm)
				}
			}
		case asm.OpMovRR:
			if instr.Dst == loc.R12 && instr.Src == loc.RDI {
				sawR12Load = true
			}
		}
	}
	wantPushed := CalleeSaved[1:]
	if len(pushed) != len(wantPushed) {
		t.Fatalf("pushed %v, want the remaining callee-saved set %v", pushed, wantPushed)
	}
	for i, r := range wantPushed {
		if pushed[i] != r {
			t.Errorf("push order[%d] = %v, want %v", i, pushed[i], r)
		}
	}
	if layout.FrameSize > 0 && !sawSub {
		t.Errorf("expected a sub rsp instruction when FrameSize=%d > 0", layout.FrameSize)
	}
	if !sawR15Load {
		t.Errorf("expected R15 to be loaded with the register-file base address")
	}
	if !sawR12Load {
		t.Errorf("expected R12 to be loaded from RDI (the bridge-call handle argument)")
	}
}

func TestPrologueSkipsFrameAdjustWhenFrameSizeIsZero(t *testing.T) {
	layout := Layout{FrameSize: 0}
	code := Prologue(layout, 0)
	for _, instr := range code {
		if instr.Op == asm.OpSubImm {
			t.Errorf("expected no sub rsp instruction when FrameSize is 0, got %+v", instr)
		}
	}
}

func TestEpilogueReversesProloguesPushOrder(t *testing.T) {
	layout := ComputeLayout(3)
	code := Epilogue(layout)

	last := code[len(code)-1]
	if last.Op != asm.OpRet {
		t.Fatalf("last epilogue instruction = %+v, want ret", last)
	}
	secondLast := code[len(code)-2]
	if secondLast.Op != asm.OpPop || secondLast.Dst != loc.RBP {
		t.Fatalf("second-to-last epilogue instruction = %+v, want pop rbp", secondLast)
	}

	var popped []loc.MReg
	idx := 0
	if layout.FrameSize > 0 {
		if code[0].Op != asm.OpAddImm || code[0].Dst != loc.RSP || code[0].Imm != layout.FrameSize {
			t.Fatalf("frame-release instruction = %+v, want add rsp, %d", code[0], layout.FrameSize)
		}
		idx = 1
	}
	for ; code[idx].Op == asm.OpPop && code[idx].Dst != loc.RBP; idx++ {
		popped = append(popped, code[idx].Dst)
	}
	wantPopped := make([]loc.MReg, len(CalleeSaved)-1)
	for i, r := range CalleeSaved[1:] {
		wantPopped[len(wantPopped)-1-i] = r
	}
	if len(popped) != len(wantPopped) {
		t.Fatalf("popped %v, want callee-saved set in reverse push order %v", popped, wantPopped)
	}
	for i, r := range wantPopped {
		if popped[i] != r {
			t.Errorf("pop order[%d] = %v, want %v", i, popped[i], r)
		}
	}
}

func TestEpilogueSkipsFrameReleaseWhenFrameSizeIsZero(t *testing.T) {
	code := Epilogue(Layout{FrameSize: 0})
	for _, instr := range code {
		if instr.Op == asm.OpAddImm {
			t.Errorf("expected no add rsp instruction when FrameSize is 0, got %+v", instr)
		}
	}
}
