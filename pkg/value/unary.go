package value

import (
	"github.com/tsvm-lang/tsvm/internal/diag"
	"github.com/tsvm-lang/tsvm/pkg/ids"
	"github.com/tsvm-lang/tsvm/pkg/ir"
	"github.com/tsvm-lang/tsvm/pkg/types"
)

// unaryMethods maps a prefix unary operator to its synthetic method name
// (spec.md §4.3).
var unaryMethods = map[string]string{
	"-": "operator-", "!": "operator!", "~": "operator~", "*": "operator*",
}

// UnaryOp implements spec.md §4.3's prefix unary-operator contract: `*`
// (dereference) is handled directly against pointer-flagged Values; `-`,
// `!`, `~` go through the primitive opcode table first, then a user-defined
// `operator X` method with no explicit arguments.
func (e *Engine) UnaryOp(b *ir.Builder, sink *diag.Sink, op string, v ir.Value) ir.Value {
	if !e.reportValuePosition(sink, b, v) || v.IsPoison() {
		return e.poison(b.Fn)
	}

	if op == "*" {
		return e.dereference(b, sink, v)
	}

	vt, ok := e.typeOf(v)
	if !ok {
		return e.poison(b.Fn)
	}

	if vt.Meta.IsPrimitive {
		if out, ok := e.primitiveUnaryOp(b, op, v, vt); ok {
			return out
		}
	}

	method, ok := unaryMethods[op]
	if !ok {
		sink.Report(diag.New(diag.KindMethodNotFound, b.Span.Module, b.Span.Line, b.Span.Column,
			"unknown unary operator %q", op))
		return e.poison(b.Fn)
	}
	matches, err := e.Types.FindMethods(e.Funcs, vt, method, nil, nil, types.FindFlags{SkipImplicitArgs: true})
	if err != nil || len(matches) != 1 {
		sink.Report(diag.New(diag.KindMethodNotFound, b.Span.Module, b.Span.Line, b.Span.Column,
			"no %q overload on %q", method, vt.FQN))
		return e.poison(b.Fn)
	}
	return e.call(b, matches[0], nil, &v)
}

func (e *Engine) primitiveUnaryOp(b *ir.Builder, op string, v ir.Value, vt *types.Type) (ir.Value, bool) {
	cat := category(vt)
	switch op {
	case "-":
		if cat == ir.CatNone {
			return ir.Value{}, false
		}
		out := b.Val(v.Type)
		b.Add(ir.OpNeg).Operand(out).Operand(v).Commit()
		return out, true
	case "!":
		boolType, ok := e.Types.GetByFQN("bool")
		if !ok {
			return ir.Value{}, false
		}
		out := b.Val(boolType.ID)
		b.Add(ir.OpNot).Operand(out).Operand(v).Commit()
		return out, true
	case "~":
		if !vt.Meta.IsIntegral {
			return ir.Value{}, false
		}
		out := b.Val(v.Type)
		b.Add(ir.OpInv).Operand(out).Operand(v).Commit()
		return out, true
	}
	return ir.Value{}, false
}

// dereference loads through a pointer-flagged Value, attaching a write-back
// link (SrcPtr) so that `*p = x` routes to a store rather than reassigning p
// itself (spec.md §3 L-values).
func (e *Engine) dereference(b *ir.Builder, sink *diag.Sink, v ir.Value) ir.Value {
	if !v.Flags.IsPointer {
		sink.Report(diag.New(diag.KindNotConvertible, b.Span.Module, b.Span.Line, b.Span.Column,
			"cannot dereference a non-pointer value"))
		return e.poison(b.Fn)
	}
	pointee := v
	out := b.Val(v.Type)
	b.Add(ir.OpLoad).Operand(out).Operand(v).Commit()
	return out.WithSource(&pointee, nil, ids.NoFunc)
}

// incDecMethods maps pre/post ++/-- to their synthetic method names.
var incDecMethods = map[string]string{"++": "operator++", "--": "operator--"}

// IncDec implements prefix/postfix `++`/`--` (spec.md §4.3): primitive
// operands go through OpInc/OpDec directly; user-defined types dispatch to
// an `operator++`/`operator--` method. Postfix returns the pre-mutation
// value; prefix returns the post-mutation value.
func (e *Engine) IncDec(b *ir.Builder, sink *diag.Sink, op string, v ir.Value, postfix bool) ir.Value {
	if !e.reportValuePosition(sink, b, v) || v.IsPoison() {
		return e.poison(b.Fn)
	}
	if v.Flags.IsReadOnly {
		sink.Report(diag.New(diag.KindNotWritable, b.Span.Module, b.Span.Line, b.Span.Column,
			"operand of %q is not writable", op))
		return e.poison(b.Fn)
	}

	vt, ok := e.typeOf(v)
	if !ok {
		return e.poison(b.Fn)
	}

	original := v
	var mutated ir.Value
	if vt.Meta.IsPrimitive {
		opcode := ir.OpInc
		if op == "--" {
			opcode = ir.OpDec
		}
		mutated = b.Val(v.Type)
		b.Add(opcode).Operand(mutated).Operand(v).Commit()
	} else {
		method := incDecMethods[op]
		matches, err := e.Types.FindMethods(e.Funcs, vt, method, nil, nil, types.FindFlags{SkipImplicitArgs: true})
		if err != nil || len(matches) != 1 {
			sink.Report(diag.New(diag.KindMethodNotFound, b.Span.Module, b.Span.Line, b.Span.Column,
				"no %q overload on %q", method, vt.FQN))
			return e.poison(b.Fn)
		}
		mutated = e.call(b, matches[0], nil, &v)
	}

	e.assign(b, sink, v, mutated)
	if postfix {
		return original
	}
	return mutated
}
