package ir

import (
	"fmt"
	"io"
)

// Printer dumps a Function's instruction stream in a flat, one-line-per-
// instruction textual form, the way the teacher's pkg/rtl.Printer dumps an
// RTL function for its --drtl debug flag (pkg/rtl/printer.go). This is
// cmd/tsvmc's --dir/--dopt dump format.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer { return &Printer{w: w} }

// PrintFunction dumps fn's signature and instruction stream.
func (p *Printer) PrintFunction(fn *Function) {
	fmt.Fprintf(p.w, "%s(", fn.Name)
	for i, a := range fn.Args {
		if i > 0 {
			fmt.Fprint(p.w, ", ")
		}
		fmt.Fprint(p.w, p.value(a))
	}
	fmt.Fprintln(p.w, ") {")
	for i, instr := range fn.Code {
		fmt.Fprintf(p.w, "  %4d: %s\n", i, p.instruction(instr))
	}
	fmt.Fprintln(p.w, "}")
}

func (p *Printer) instruction(i Instruction) string {
	switch i.Op {
	case OpLabel:
		return fmt.Sprintf("L%d:", i.Target)
	case OpJump:
		return fmt.Sprintf("jump L%d", i.Target)
	case OpBranch:
		return fmt.Sprintf("branch %s, L%d", p.value(i.Operands[0]), i.Target)
	case OpRet:
		if i.NumOperands > 0 {
			return fmt.Sprintf("ret %s", p.value(i.Operands[0]))
		}
		return "ret"
	default:
		out := i.Op.String()
		for n := 0; n < i.NumOperands; n++ {
			out += " " + p.value(i.Operands[n])
			if n < i.NumOperands-1 {
				out += ","
			}
		}
		return out
	}
}

func (p *Printer) value(v Value) string {
	switch v.Kind {
	case KindRegister:
		return fmt.Sprintf("r%d", v.Reg)
	case KindStack:
		return fmt.Sprintf("s%d", v.Slot)
	case KindArgument:
		return fmt.Sprintf("a%d", v.ArgIndex)
	case KindImmediate:
		return p.immediate(v.Imm)
	default:
		return "poison"
	}
}

func (p *Printer) immediate(imm Immediate) string {
	switch imm.Kind {
	case ImmInt:
		return fmt.Sprintf("%d", imm.Int)
	case ImmUint:
		return fmt.Sprintf("%d", imm.Uint)
	case ImmFloat:
		return fmt.Sprintf("%gf", imm.Float)
	case ImmDouble:
		return fmt.Sprintf("%gd", imm.Double)
	case ImmFuncRef:
		return fmt.Sprintf("func#%d", imm.FuncRef)
	case ImmTypeRef:
		return fmt.Sprintf("type#%d", imm.TypeRef)
	case ImmModuleRef:
		return fmt.Sprintf("module(%s)", imm.ModuleRef)
	case ImmModuleData:
		return fmt.Sprintf("moduledata(%s, %d)", imm.ModuleName, imm.ModuleSlot)
	default:
		return "<none>"
	}
}
