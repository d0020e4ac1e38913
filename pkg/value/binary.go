package value

import (
	"github.com/tsvm-lang/tsvm/internal/diag"
	"github.com/tsvm-lang/tsvm/pkg/ids"
	"github.com/tsvm-lang/tsvm/pkg/ir"
	"github.com/tsvm-lang/tsvm/pkg/types"
)

// opNames maps a binary operator's source spelling to its synthetic
// "operator <name>" method name and, for arithmetic/compare operators, the
// short code ArithOpcode/CompareOpcode expect (spec.md §4.3's op-name table).
var opNames = map[string]struct {
	method string
	arith  string
	cmp    string
}{
	"+":  {"operator+", "add", ""},
	"-":  {"operator-", "sub", ""},
	"*":  {"operator*", "mul", ""},
	"/":  {"operator/", "div", ""},
	"%":  {"operator%", "mod", ""},
	"==": {"operator==", "", "eq"},
	"!=": {"operator!=", "", "neq"},
	"<":  {"operator<", "", "lt"},
	">":  {"operator>", "", "gt"},
	"<=": {"operator<=", "", "lte"},
	">=": {"operator>=", "", "gte"},
}

// BinaryOp implements spec.md §4.3's composite binary-operator contract: `=`
// is handled as assignment (with the write-back rules below); every other
// operator first tries the primitive (category, signed/unsigned/width) table
// and falls back to a user-defined `operator X` method on the lhs's type.
//
// Grounded on original_source/src/compiler/Value.cpp's genBinaryOp, which
// resolves `operator=` to the newly converted rhs value rather than a
// post-store re-read of the lhs — see DESIGN.md's Open Question record.
func (e *Engine) BinaryOp(b *ir.Builder, sink *diag.Sink, op string, lhs, rhs ir.Value) ir.Value {
	if !e.reportValuePosition(sink, b, lhs) || !e.reportValuePosition(sink, b, rhs) {
		return e.poison(b.Fn)
	}
	if lhs.IsPoison() || rhs.IsPoison() {
		return e.poison(b.Fn)
	}

	if op == "=" {
		return e.assign(b, sink, lhs, rhs)
	}

	spec, ok := opNames[op]
	if !ok {
		sink.Report(diag.New(diag.KindMethodNotFound, b.Span.Module, b.Span.Line, b.Span.Column,
			"unknown binary operator %q", op))
		return e.poison(b.Fn)
	}

	lhsType, lhsOK := e.typeOf(lhs)
	rhsType, rhsOK := e.typeOf(rhs)
	if !lhsOK || !rhsOK {
		return e.poison(b.Fn)
	}

	if lhsType.Meta.IsPrimitive && rhsType.Meta.IsPrimitive {
		if out, ok := e.primitiveBinaryOp(b, spec, lhs, rhs, lhsType, rhsType); ok {
			return out
		}
	}

	return e.methodBinaryOp(b, sink, spec.method, lhs, rhs, lhsType)
}

// primitiveBinaryOp dispatches through the (category, op) opcode table after
// widening whichever of lhs/rhs is the narrower category (spec.md §4.3: "the
// wider of the two categories wins; converting the narrower operand first").
func (e *Engine) primitiveBinaryOp(b *ir.Builder, spec struct {
	method string
	arith  string
	cmp    string
}, lhs, rhs ir.Value, lhsType, rhsType *types.Type) (ir.Value, bool) {
	lc, rc := category(lhsType), category(rhsType)
	cat := widerCategory(lc, rc)
	if cat == ir.CatNone {
		return ir.Value{}, false
	}

	sink := diag.NewSink() // numeric widening within the primitive fast path never fails
	if lc != cat {
		lhs = e.ConvertedTo(b, sink, lhs, rhs.Type)
	}
	if rc != cat {
		rhs = e.ConvertedTo(b, sink, rhs, lhs.Type)
	}

	if spec.arith != "" {
		opcode, ok := ir.ArithOpcode(spec.arith, cat)
		if !ok {
			return ir.Value{}, false
		}
		out := b.Val(lhs.Type)
		b.Add(opcode).Operand(out).Operand(lhs).Operand(rhs).Commit()
		return out, true
	}

	opcode, ok := ir.CompareOpcode(spec.cmp, cat)
	if !ok {
		return ir.Value{}, false
	}
	boolType, _ := e.Types.GetByFQN("bool")
	out := b.Val(boolType.ID)
	b.Add(opcode).Operand(out).Operand(lhs).Operand(rhs).Commit()
	return out, true
}

func widerCategory(a, b ir.Category) ir.Category {
	rank := map[ir.Category]int{ir.CatNone: -1, ir.CatSigned: 0, ir.CatUnsigned: 1, ir.CatF32: 2, ir.CatF64: 3}
	if rank[a] < 0 || rank[b] < 0 {
		return ir.CatNone
	}
	if rank[a] > rank[b] {
		return a
	}
	return b
}

// methodBinaryOp resolves a user-defined operator method on lhsType and
// generates the call, converting rhs to the chosen overload's single
// explicit argument type first.
func (e *Engine) methodBinaryOp(b *ir.Builder, sink *diag.Sink, method string, lhs, rhs ir.Value, lhsType *types.Type) ir.Value {
	matches, err := e.Types.FindMethods(e.Funcs, lhsType, method, nil, []ids.TypeID{rhs.Type}, types.FindFlags{SkipImplicitArgs: true})
	if err != nil || len(matches) != 1 {
		sink.Report(diag.New(diag.KindMethodNotFound, b.Span.Module, b.Span.Line, b.Span.Column,
			"no %q overload on %q accepting the given rhs type", method, lhsType.FQN))
		return e.poison(b.Fn)
	}
	return e.call(b, matches[0], []ir.Value{rhs}, &lhs)
}

// assign implements `operator=`: a user-defined `operator=` method wins when
// lhs's type is non-primitive and defines one; otherwise the rhs is
// converted to lhs's type and written back through whichever write-back link
// lhs carries (SrcSetter call, pointer store, or a direct register move),
// and the *converted rhs* — not a post-store re-read of lhs — is returned
// (original_source/src/compiler/Value.cpp's genBinaryOp).
func (e *Engine) assign(b *ir.Builder, sink *diag.Sink, lhs, rhs ir.Value) ir.Value {
	if lhs.Flags.IsReadOnly {
		sink.Report(diag.New(diag.KindNotWritable, b.Span.Module, b.Span.Line, b.Span.Column,
			"left-hand side of assignment is not writable"))
		return e.poison(b.Fn)
	}

	lhsType, ok := e.typeOf(lhs)
	if !ok {
		return e.poison(b.Fn)
	}

	if !lhsType.Meta.IsPrimitive {
		if matches, err := e.Types.FindMethods(e.Funcs, lhsType, "operator=", nil, []ids.TypeID{rhs.Type},
			types.FindFlags{SkipImplicitArgs: true}); err == nil && len(matches) == 1 {
			return e.call(b, matches[0], []ir.Value{rhs}, &lhs)
		}
	}

	converted := e.ConvertedTo(b, sink, rhs, lhs.Type)
	if converted.IsPoison() {
		return converted
	}

	switch {
	case lhs.SrcSetter != ids.NoFunc:
		var self *ir.Value
		if lhs.SrcSelf != nil {
			self = lhs.SrcSelf
		}
		e.call(b, lhs.SrcSetter, []ir.Value{converted}, self)
	case lhs.SrcPtr != nil:
		b.Add(ir.OpStore).Operand(*lhs.SrcPtr).Operand(converted).Commit()
	case lhs.Flags.IsPointer:
		b.Add(ir.OpStore).Operand(lhs).Operand(converted).Commit()
	default:
		b.Add(ir.OpAssign).Operand(lhs).Operand(converted).Commit()
	}

	return converted
}
