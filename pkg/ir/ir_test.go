package ir

import "testing"

const i32Type = 100 // stand-in type id for these isolated IR tests

func TestBuilderAllocatesDistinctRegisters(t *testing.T) {
	fn := NewFunction("f", "m", 0, 0)
	b := NewBuilder(fn)

	a := b.Val(i32Type)
	c := b.Val(i32Type)
	if a.Reg == c.Reg {
		t.Fatalf("expected distinct registers, got %v and %v", a.Reg, c.Reg)
	}
	if fn.NumRegisters() != 2 {
		t.Errorf("expected 2 registers allocated, got %d", fn.NumRegisters())
	}
}

func TestAddOperatorChainCommit(t *testing.T) {
	fn := NewFunction("f", "m", 0, 0)
	b := NewBuilder(fn)

	x := b.Val(i32Type)
	y := b.Val(i32Type)
	dst := b.Val(i32Type)

	instr := b.Add(OpIAdd).Operand(dst).Operand(x).Operand(y).Commit()

	if instr.Op != OpIAdd || instr.NumOperands != 3 {
		t.Fatalf("unexpected instruction: %+v", instr)
	}
	if len(fn.Code) != 1 || fn.Code[0].Op != OpIAdd {
		t.Fatalf("expected instruction committed to function code, got %+v", fn.Code)
	}
}

func TestLabelReserveThenBind(t *testing.T) {
	fn := NewFunction("f", "m", 0, 0)
	b := NewBuilder(fn)

	l := b.NewLabel()
	cond := b.Val(i32Type)
	b.Add(OpBranch).Operand(cond).WithLabel(l).Commit()
	b.BindLabel(l)

	if len(fn.Code) != 2 {
		t.Fatalf("expected 2 instructions (branch + label), got %d", len(fn.Code))
	}
	if fn.Code[1].Op != OpLabel || fn.Code[1].Target != l {
		t.Errorf("expected second instruction to bind label %v, got %+v", l, fn.Code[1])
	}
	if fn.Code[0].Successors()[0] != l {
		t.Errorf("expected branch successor to be label %v", l)
	}
}

func TestPoisonValueIsDistinguished(t *testing.T) {
	const poisonTypeID = 7
	fn := NewFunction("f", "m", 0, poisonTypeID)
	p := fn.Poison()
	if !p.IsPoison() {
		t.Errorf("expected Function.Poison() to report IsPoison() true")
	}
	if p.Type != poisonTypeID {
		t.Errorf("expected poison Value typed as registry poison type")
	}
}

func TestInstructionTerminators(t *testing.T) {
	cases := []struct {
		op   Opcode
		want bool
	}{
		{OpJump, true},
		{OpRet, true},
		{OpTerm, true},
		{OpIAdd, false},
		{OpBranch, false}, // conditional: falls through on the false path
	}
	for _, c := range cases {
		got := Instruction{Op: c.op}.IsTerminator()
		if got != c.want {
			t.Errorf("IsTerminator(%v) = %v, want %v", c.op, got, c.want)
		}
	}
}
