package asm

import (
	"fmt"
	"io"
)

// Printer renders a Function's instruction stream as AT&T-syntax assembly,
// for the same `--dir`/`--dopt`-style debug dumping pkg/ir.Printer gives
// the IR stage (spec.md §4.9's "inspectable output at every stage").
type Printer struct {
	w io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer { return &Printer{w: w} }

// PrintFunction writes fn's label and instruction stream.
func (p *Printer) PrintFunction(fn *Function) {
	fmt.Fprintf(p.w, "%s:  ; frame=%d\n", fn.Name, fn.FrameSize)
	for _, instr := range fn.Code {
		p.printInstruction(instr)
	}
}

func (p *Printer) printInstruction(i Instruction) {
	switch i.Op {
	case OpNoop:
		fmt.Fprintln(p.w, "\tnop")
	case OpLabelDef:
		fmt.Fprintf(p.w, "L%d:\n", i.Label)

	case OpMovRR:
		if i.Dst.IsFloat() || i.Src.IsFloat() {
			fmt.Fprintf(p.w, "\t%s %%%s, %%%s\n", fsuffix("mov", i.Width), i.Src, i.Dst)
		} else {
			fmt.Fprintf(p.w, "\tmov%s %%%s, %%%s\n", suffix(i.Width), i.Src, i.Dst)
		}
	case OpMovRI:
		if i.Width == W64 {
			fmt.Fprintf(p.w, "\tmovabs $%d, %%%s\n", i.Imm, i.Dst)
		} else {
			fmt.Fprintf(p.w, "\tmovl $%d, %%%s\n", i.Imm, i.Dst)
		}
	case OpMovLoad:
		if i.Dst.IsFloat() {
			fmt.Fprintf(p.w, "\t%s %s, %%%s\n", fsuffix("mov", i.Width), memOperand(i.Mem), i.Dst)
		} else {
			fmt.Fprintf(p.w, "\tmov%s %s, %%%s\n", suffix(i.Width), memOperand(i.Mem), i.Dst)
		}
	case OpMovStore:
		if i.Src.IsFloat() {
			fmt.Fprintf(p.w, "\t%s %%%s, %s\n", fsuffix("mov", i.Width), i.Src, memOperand(i.Mem))
		} else {
			fmt.Fprintf(p.w, "\tmov%s %%%s, %s\n", suffix(i.Width), i.Src, memOperand(i.Mem))
		}
	case OpLea:
		fmt.Fprintf(p.w, "\tlea %s, %%%s\n", memOperand(i.Mem), i.Dst)

	case OpAdd:
		fmt.Fprintf(p.w, "\tadd%s %%%s, %%%s\n", suffix(i.Width), i.Src, i.Dst)
	case OpSub:
		fmt.Fprintf(p.w, "\tsub%s %%%s, %%%s\n", suffix(i.Width), i.Src, i.Dst)
	case OpAddImm:
		fmt.Fprintf(p.w, "\tadd%s $%d, %%%s\n", suffix(i.Width), i.Imm, i.Dst)
	case OpSubImm:
		fmt.Fprintf(p.w, "\tsub%s $%d, %%%s\n", suffix(i.Width), i.Imm, i.Dst)
	case OpIMul:
		fmt.Fprintf(p.w, "\timul%s %%%s, %%%s\n", suffix(i.Width), i.Src, i.Dst)
	case OpAnd:
		fmt.Fprintf(p.w, "\tand%s %%%s, %%%s\n", suffix(i.Width), i.Src, i.Dst)
	case OpOr:
		fmt.Fprintf(p.w, "\tor%s %%%s, %%%s\n", suffix(i.Width), i.Src, i.Dst)
	case OpXor:
		fmt.Fprintf(p.w, "\txor%s %%%s, %%%s\n", suffix(i.Width), i.Src, i.Dst)
	case OpShl:
		fmt.Fprintf(p.w, "\tshl%s %%cl, %%%s\n", suffix(i.Width), i.Dst)
	case OpShr:
		fmt.Fprintf(p.w, "\tshr%s %%cl, %%%s\n", suffix(i.Width), i.Dst)
	case OpSar:
		fmt.Fprintf(p.w, "\tsar%s %%cl, %%%s\n", suffix(i.Width), i.Dst)
	case OpNeg:
		fmt.Fprintf(p.w, "\tneg%s %%%s\n", suffix(i.Width), i.Dst)
	case OpNot:
		fmt.Fprintf(p.w, "\tnot%s %%%s\n", suffix(i.Width), i.Dst)

	case OpCqo:
		fmt.Fprintln(p.w, "\tcqo")
	case OpZeroRDX:
		fmt.Fprintln(p.w, "\txor %rdx, %rdx")
	case OpIDiv:
		fmt.Fprintf(p.w, "\tidiv%s %%%s\n", suffix(i.Width), i.Src)
	case OpDiv:
		fmt.Fprintf(p.w, "\tdiv%s %%%s\n", suffix(i.Width), i.Src)

	case OpAddF:
		fmt.Fprintf(p.w, "\t%s %%%s, %%%s\n", fsuffix("add", i.Width), i.Src, i.Dst)
	case OpSubF:
		fmt.Fprintf(p.w, "\t%s %%%s, %%%s\n", fsuffix("sub", i.Width), i.Src, i.Dst)
	case OpMulF:
		fmt.Fprintf(p.w, "\t%s %%%s, %%%s\n", fsuffix("mul", i.Width), i.Src, i.Dst)
	case OpDivF:
		fmt.Fprintf(p.w, "\t%s %%%s, %%%s\n", fsuffix("div", i.Width), i.Src, i.Dst)
	case OpXorPS:
		fmt.Fprintf(p.w, "\txorps %%%s, %%%s\n", i.Src, i.Dst)

	case OpCmp:
		fmt.Fprintf(p.w, "\tcmp%s %%%s, %%%s\n", suffix(i.Width), i.Src2, i.Src)
	case OpUComiF:
		fmt.Fprintf(p.w, "\t%s %%%s, %%%s\n", fsuffix("ucomi", i.Width), i.Src2, i.Src)
	case OpSetCC:
		fmt.Fprintf(p.w, "\tset%s %%%s\n", i.Cond, i.Dst)
	case OpMovzxB:
		fmt.Fprintf(p.w, "\tmovzbl %%%s, %%%s\n", i.Dst, i.Dst)

	case OpCvt:
		fmt.Fprintf(p.w, "\t%s %%%s, %%%s  ; kind=%d\n", "cvt", i.Src, i.Dst, i.Kind)

	case OpJmp:
		fmt.Fprintf(p.w, "\tjmp L%d\n", i.Target)
	case OpJcc:
		fmt.Fprintf(p.w, "\tj%s L%d\n", i.Cond, i.Target)
	case OpCallReg:
		fmt.Fprintf(p.w, "\tcall *%%%s\n", i.Src)
	case OpRet:
		fmt.Fprintln(p.w, "\tret")
	case OpPush:
		fmt.Fprintf(p.w, "\tpush %%%s\n", i.Src)
	case OpPop:
		fmt.Fprintf(p.w, "\tpop %%%s\n", i.Dst)

	default:
		fmt.Fprintf(p.w, "\t; unknown op %d\n", i.Op)
	}
}

func suffix(w Width) string {
	switch w {
	case W8:
		return "b"
	case W32:
		return "l"
	default:
		return "q"
	}
}

func fsuffix(mnemonic string, w Width) string {
	if w == W32 {
		return mnemonic + "ss"
	}
	return mnemonic + "sd"
}

func memOperand(m Mem) string {
	if m.Disp == 0 {
		return fmt.Sprintf("(%%%s)", m.Base)
	}
	return fmt.Sprintf("%d(%%%s)", m.Disp, m.Base)
}
