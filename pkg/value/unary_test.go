package value

import (
	"testing"

	"github.com/tsvm-lang/tsvm/internal/diag"
	"github.com/tsvm-lang/tsvm/pkg/ir"
	"github.com/tsvm-lang/tsvm/pkg/types"
)

func TestUnaryOpPrimitiveNegateEmitsNegOpcode(t *testing.T) {
	e, _, i32ID, _ := newTestEngine(t)
	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	sink := diag.NewSink()

	v := b.Val(i32ID)
	out := e.UnaryOp(b, sink, "-", v)
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	if out.IsPoison() {
		t.Fatalf("expected a non-poison result")
	}
	last := fn.Code[len(fn.Code)-1]
	if last.Op != ir.OpNeg {
		t.Fatalf("expected OpNeg, got %s", last.Op)
	}
}

func TestUnaryOpLogicalNotProducesBoolType(t *testing.T) {
	e, tr, i32ID, boolID := newTestEngine(t)
	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	sink := diag.NewSink()

	v := b.Val(i32ID)
	out := e.UnaryOp(b, sink, "!", v)
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	if !tr.IsEqualTo(out.Type, boolID) {
		t.Fatalf("expected a bool-typed result, got type id %d", out.Type)
	}
	last := fn.Code[len(fn.Code)-1]
	if last.Op != ir.OpNot {
		t.Fatalf("expected OpNot, got %s", last.Op)
	}
}

func TestUnaryOpBitwiseInvertRejectsNonIntegral(t *testing.T) {
	e, tr, _, _ := newTestEngine(t)
	f32ID, err := tr.Register(&types.Type{Kind: types.KindPlain, Name: "f32", FQN: "f32",
		Meta: types.Meta{Size: 4, IsPrimitive: true, IsFloatingPoint: true}})
	if err != nil {
		t.Fatal(err)
	}

	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	sink := diag.NewSink()

	v := b.Val(f32ID)
	out := e.UnaryOp(b, sink, "~", v)
	if !sink.HasErrors() {
		t.Fatalf("expected a diagnostic for ~ on a non-integral type with no operator~ overload")
	}
	if !out.IsPoison() {
		t.Fatalf("expected a poison result")
	}
}

func TestUnaryOpDereferenceRequiresPointerFlag(t *testing.T) {
	e, _, i32ID, _ := newTestEngine(t)
	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	sink := diag.NewSink()

	v := b.Val(i32ID) // a plain register, IsPointer unset
	out := e.UnaryOp(b, sink, "*", v)
	if !sink.HasErrors() {
		t.Fatalf("expected a diagnostic for dereferencing a non-pointer value")
	}
	if !out.IsPoison() {
		t.Fatalf("expected a poison result")
	}
}

func TestUnaryOpDereferenceLoadsThroughPointerAndAttachesWriteBack(t *testing.T) {
	e, _, i32ID, _ := newTestEngine(t)
	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	sink := diag.NewSink()

	p := b.Val(i32ID).AsPointer()
	out := e.UnaryOp(b, sink, "*", p)
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	if out.SrcPtr == nil {
		t.Fatalf("expected the dereferenced value to carry a write-back pointer link")
	}
	last := fn.Code[len(fn.Code)-1]
	if last.Op != ir.OpLoad {
		t.Fatalf("expected OpLoad, got %s", last.Op)
	}
}

func TestIncDecPostfixReturnsPreMutationValue(t *testing.T) {
	e, _, i32ID, _ := newTestEngine(t)
	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	sink := diag.NewSink()

	v := b.Val(i32ID)
	out := e.IncDec(b, sink, "++", v, true /* postfix */)
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	if out.Kind != ir.KindRegister || out.Reg != v.Reg {
		t.Fatalf("expected postfix ++ to return the pre-mutation value, got %+v", out)
	}

	var sawInc bool
	for _, instr := range fn.Code {
		if instr.Op == ir.OpInc {
			sawInc = true
		}
	}
	if !sawInc {
		t.Fatalf("expected an OpInc instruction, got %v", fn.Code)
	}
}

func TestIncDecPrefixReturnsPostMutationValue(t *testing.T) {
	e, _, i32ID, _ := newTestEngine(t)
	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	sink := diag.NewSink()

	v := b.Val(i32ID)
	out := e.IncDec(b, sink, "--", v, false /* prefix */)
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	if out.Kind != ir.KindRegister || out.Reg == v.Reg {
		t.Fatalf("expected prefix -- to return the freshly-mutated register, got %+v", out)
	}

	var sawDec bool
	for _, instr := range fn.Code {
		if instr.Op == ir.OpDec {
			sawDec = true
		}
	}
	if !sawDec {
		t.Fatalf("expected an OpDec instruction, got %v", fn.Code)
	}
}

func TestIncDecRejectsReadOnlyOperand(t *testing.T) {
	e, _, i32ID, _ := newTestEngine(t)
	fn := ir.NewFunction("f", "m", 0, 0)
	b := ir.NewBuilder(fn)
	sink := diag.NewSink()

	v := b.Val(i32ID).ReadOnly()
	out := e.IncDec(b, sink, "++", v, true)
	if !sink.HasErrors() {
		t.Fatalf("expected a not-writable diagnostic")
	}
	if !out.IsPoison() {
		t.Fatalf("expected a poison result")
	}
}
