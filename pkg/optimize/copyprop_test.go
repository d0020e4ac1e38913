package optimize

import (
	"testing"

	"github.com/tsvm-lang/tsvm/pkg/ir"
)

func TestCopyPropagateSubstitutesALaterUse(t *testing.T) {
	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	r1 := b.Val(1)
	r2 := b.Val(1)
	dest := b.Val(1)
	b.Add(ir.OpAssign).Operand(r1).Operand(ir.ImmIntVal(9, 1)).Commit()
	b.Add(ir.OpAssign).Operand(r2).Operand(r1).Commit() // r2 := r1 (a copy)
	b.Add(ir.OpIAdd).Operand(dest).Operand(r2).Operand(r2).Commit()

	(CopyPropagate{}).Run(fn)

	add := fn.Code[2]
	if add.Operands[1].Reg != r1.Reg || add.Operands[2].Reg != r1.Reg {
		t.Fatalf("expected both uses of r2 to be rewritten to r1, got %+v", add)
	}
}

func TestCopyPropagateStopsAtARedefinition(t *testing.T) {
	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	r1 := b.Val(1)
	r2 := b.Val(1)
	dest := b.Val(1)
	b.Add(ir.OpAssign).Operand(r1).Operand(ir.ImmIntVal(9, 1)).Commit()
	b.Add(ir.OpAssign).Operand(r2).Operand(r1).Commit()           // r2 := r1
	b.Add(ir.OpIAdd).Operand(r1).Operand(r1).Operand(r1).Commit() // r1 redefined: r2's copy is now stale
	b.Add(ir.OpIAdd).Operand(dest).Operand(r2).Operand(r2).Commit()

	(CopyPropagate{}).Run(fn)

	add := fn.Code[3]
	if add.Operands[1].Reg != r2.Reg || add.Operands[2].Reg != r2.Reg {
		t.Fatalf("expected uses of r2 after r1 is redefined to stay as r2, got %+v", add)
	}
}

func TestCopyPropagateDoesNotCrossABlockBoundary(t *testing.T) {
	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	r1 := b.Val(1)
	r2 := b.Val(1)
	dest := b.Val(1)
	cond := b.Val(1)
	skip := b.NewLabel()
	b.Add(ir.OpAssign).Operand(r1).Operand(ir.ImmIntVal(9, 1)).Commit()
	b.Add(ir.OpAssign).Operand(r2).Operand(r1).Commit()
	b.Add(ir.OpBranch).Operand(cond).WithLabel(skip).Commit()
	b.BindLabel(skip)
	b.Add(ir.OpIAdd).Operand(dest).Operand(r2).Operand(r2).Commit()

	(CopyPropagate{}).Run(fn)

	add := fn.Code[len(fn.Code)-1]
	if add.Operands[1].Reg != r2.Reg {
		t.Fatalf("expected the copy mapping not to survive into the label's block, got %+v", add)
	}
}
