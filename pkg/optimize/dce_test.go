package optimize

import (
	"testing"

	"github.com/tsvm-lang/tsvm/pkg/ir"
)

func TestDeadCodeElimDropsAnUnusedDefinition(t *testing.T) {
	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	dead := b.Val(1)
	x := b.Val(1)
	b.Add(ir.OpAssign).Operand(dead).Operand(ir.ImmIntVal(7, 1)).Commit() // never read
	b.Add(ir.OpAssign).Operand(x).Operand(ir.ImmIntVal(1, 1)).Commit()
	b.Add(ir.OpRet).Operand(x).Commit()

	(DeadCodeElim{}).Run(fn)

	if len(fn.Code) != 2 {
		t.Fatalf("expected the dead assign to be dropped, got %d instructions: %+v", len(fn.Code), fn.Code)
	}
	for _, instr := range fn.Code {
		if instr.Op == ir.OpAssign && instr.Operands[0].Reg == dead.Reg {
			t.Fatalf("expected the dead assignment to %v to be removed", dead.Reg)
		}
	}
}

func TestDeadCodeElimKeepsACallEvenWithDiscardedResult(t *testing.T) {
	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	dest := b.Val(1)
	b.Add(ir.OpCall).Operand(dest).Operand(ir.ImmFuncVal(1, 0)).Commit()
	b.Add(ir.OpRet).Commit()

	(DeadCodeElim{}).Run(fn)

	found := false
	for _, instr := range fn.Code {
		if instr.Op == ir.OpCall {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the call to survive even though its result is unused")
	}
}

func TestDeadCodeElimKeepsLabelsEvenWhenUnreferenced(t *testing.T) {
	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	l := b.NewLabel()
	b.BindLabel(l)
	x := b.Val(1)
	b.Add(ir.OpAssign).Operand(x).Operand(ir.ImmIntVal(1, 1)).Commit()
	b.Add(ir.OpRet).Operand(x).Commit()

	(DeadCodeElim{}).Run(fn)

	hasLabel := false
	for _, instr := range fn.Code {
		if instr.Op == ir.OpLabel {
			hasLabel = true
		}
	}
	if !hasLabel {
		t.Fatalf("expected the label instruction to survive DCE regardless of use")
	}
}
