package optimize

import (
	"testing"

	"github.com/tsvm-lang/tsvm/pkg/ir"
)

func TestLivenessTracksUseAcrossAStraightLineChain(t *testing.T) {
	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	a := b.Val(1)
	x := b.Val(1)
	y := b.Val(1)
	b.Add(ir.OpAssign).Operand(a).Operand(ir.ImmIntVal(1, 1)).Commit() // 0: a = 1
	b.Add(ir.OpIAdd).Operand(x).Operand(a).Operand(a).Commit()         // 1: x = a + a
	b.Add(ir.OpIAdd).Operand(y).Operand(x).Operand(x).Commit()         // 2: y = x + x (dead: a, x)
	b.Add(ir.OpRet).Operand(y).Commit()                                // 3: ret y

	cfg := Build(fn)
	live := computeLiveness(fn, cfg)

	// a is live after instr 0 (used at instr 1) but dead after instr 1.
	if !live.IsLiveOut(0, a.Reg) {
		t.Errorf("expected a to be live immediately after its definition")
	}
	if live.IsLiveOut(1, a.Reg) {
		t.Errorf("expected a to be dead after its only use")
	}
	// x is live after instr 1 (used at instr 2) but dead after instr 2.
	if !live.IsLiveOut(1, x.Reg) {
		t.Errorf("expected x to be live immediately after its definition")
	}
	if live.IsLiveOut(2, x.Reg) {
		t.Errorf("expected x to be dead after its only use")
	}
	// y is live through to the ret.
	if !live.IsLiveOut(2, y.Reg) {
		t.Errorf("expected y to be live into the ret that consumes it")
	}
}

func TestLivenessPropagatesAcrossABranchJoin(t *testing.T) {
	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	cond := b.Val(1)
	v := b.Val(1)
	skip := b.NewLabel()
	b.Add(ir.OpAssign).Operand(v).Operand(ir.ImmIntVal(1, 1)).Commit() // 0
	b.Add(ir.OpBranch).Operand(cond).WithLabel(skip).Commit()          // 1
	b.Add(ir.OpIAdd).Operand(v).Operand(v).Operand(v).Commit()         // 2: redefine v
	b.BindLabel(skip)                                                  // 3
	b.Add(ir.OpRet).Operand(v).Commit()                                // 4: both paths reach this

	cfg := Build(fn)
	live := computeLiveness(fn, cfg)

	// v must be live across the branch (both the taken and fallthrough
	// paths reach a use of it), so it's live-out of the branch instruction.
	if !live.IsLiveOut(1, v.Reg) {
		t.Fatalf("expected v to be live out of the branch, since both successors use it")
	}
}
