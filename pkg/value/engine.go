// Package value implements the Value model (spec.md C3): the composite
// binary/unary operator, conversion and property-access contracts that each
// produce an IR instruction sequence rather than a runtime action. This is
// the part of the system the spec's Design Notes single out twice — "Dynamic
// dispatch on Value shape" (solved by pkg/ir.Value already being a sum type)
// and the general preference for explicit Result-shaped returns over
// exceptions, which is why every operation here reports failures to a
// diag.Sink and returns a typed poison Value rather than erroring.
//
// Grounded on original_source/src/compiler/Value.cpp's genBinaryOp/getProp,
// rewritten as free functions over pkg/ir.Value instead of C++ methods on a
// Value class, in the style the teacher's pkg/cminorgen.Transformer uses for
// expression-shape-driven lowering (a type switch plus a small struct of
// per-call state) — see pkg/cminorgen/transform.go's TransformExpr.
package value

import (
	"github.com/tsvm-lang/tsvm/internal/diag"
	"github.com/tsvm-lang/tsvm/pkg/funcs"
	"github.com/tsvm-lang/tsvm/pkg/ids"
	"github.com/tsvm-lang/tsvm/pkg/ir"
	"github.com/tsvm-lang/tsvm/pkg/types"
)

// Caller is the call-generation dependency (spec.md C6) that pkg/value needs
// to invoke user-defined operators, cast operators, constructors and
// property accessors. Declaring it here instead of importing pkg/callgen
// breaks what would otherwise be a real mutual dependency: C6 needs C3's
// ConvertedTo to convert call arguments, and C3 needs C6 to invoke methods.
// pkg/callgen.Generator implements this interface; the execution context
// wires the two together after constructing both (spec.md Design Notes,
// "package these as an execution context... pass the context explicitly").
type Caller interface {
	// GenerateCall produces the IR for calling callee with args, optionally
	// against a receiver self, and returns the Value carrying its result
	// (spec.md §4.6).
	GenerateCall(b *ir.Builder, callee ids.FuncID, args []ir.Value, self *ir.Value) ir.Value
}

// Engine bundles the registries the Value contracts consult. It holds no
// per-compilation state — that lives on the ir.Builder/ir.Function passed
// into each call — so one Engine is shared by every function being
// compiled within an execution context.
type Engine struct {
	Types *types.Registry
	Funcs *funcs.Registry
	Calls Caller
}

// NewEngine creates an Engine. Calls must be set (via SetCaller) before any
// operation that might dispatch to a user-defined method is exercised;
// until then, calls to it panic loudly rather than silently misbehaving,
// since a nil Caller during real compilation is a wiring bug, not a script
// error.
func NewEngine(types *types.Registry, funcs *funcs.Registry) *Engine {
	return &Engine{Types: types, Funcs: funcs}
}

// SetCaller completes the Engine <-> Caller wiring (see Caller's doc).
func (e *Engine) SetCaller(c Caller) { e.Calls = c }

func (e *Engine) call(b *ir.Builder, callee ids.FuncID, args []ir.Value, self *ir.Value) ir.Value {
	if e.Calls == nil {
		panic("value: Engine.Calls not wired — call SetCaller before compiling")
	}
	return e.Calls.GenerateCall(b, callee, args, self)
}

// category classifies t's numeric category for opcode-table dispatch
// (spec.md §4.3 "the (category, signed/unsigned, floating-width) table").
func category(t *types.Type) ir.Category {
	switch {
	case t.Meta.IsFloatingPoint && t.Meta.Size == 8:
		return ir.CatF64
	case t.Meta.IsFloatingPoint:
		return ir.CatF32
	case t.Meta.IsIntegral && t.Meta.IsUnsigned:
		return ir.CatUnsigned
	case t.Meta.IsIntegral:
		return ir.CatSigned
	default:
		return ir.CatNone
	}
}

func (e *Engine) isVoidPointer(t *types.Type) bool {
	voidPtr, ok := e.Types.GetByFQN("void*")
	if !ok {
		return false
	}
	return e.Types.IsEqualTo(t.ID, voidPtr.ID)
}

func (e *Engine) poison(fn *ir.Function) ir.Value { return fn.Poison() }

func (e *Engine) typeOf(v ir.Value) (*types.Type, bool) {
	return e.Types.GetByID(v.Type)
}

// isValuePosition reports whether v can legally participate in a value
// contract (not a bare module/type/module-data reference) and reports the
// specific diagnostic kind to raise if not (spec.md §4.3, first bullet of
// every composite operation).
func isValuePosition(v ir.Value) (ok bool, kind diag.Kind) {
	switch {
	case v.Flags.IsModule:
		return false, diag.KindModuleUsedAsValue
	case v.Flags.IsType:
		return false, diag.KindTypeUsedAsValue
	case v.Flags.IsModuleData:
		return false, diag.KindModuleDataUsedAsValue
	default:
		return true, ""
	}
}

func (e *Engine) reportValuePosition(sink *diag.Sink, b *ir.Builder, v ir.Value) bool {
	ok, kind := isValuePosition(v)
	if !ok {
		sink.Report(diag.New(kind, b.Span.Module, b.Span.Line, b.Span.Column, "value of kind %s cannot be used here", kind))
	}
	return ok
}
