package value

import (
	"github.com/tsvm-lang/tsvm/internal/diag"
	"github.com/tsvm-lang/tsvm/pkg/ids"
	"github.com/tsvm-lang/tsvm/pkg/ir"
	"github.com/tsvm-lang/tsvm/pkg/types"
)

// PropFlags are the getProp modifiers from spec.md §4.3 ("exclude_inherited",
// "exclude_private" / "static_only").
type PropFlags struct {
	ExcludeInherited bool
	ExcludePrivate   bool
	StaticOnly       bool
	InstanceOnly     bool
}

// GetProp implements spec.md §4.3's getProp contract: resolving `v.name`
// against v's shape — module export, type used as a value (static member),
// method name (bound to a callable Value carrying src_self), or instance
// property (field load or getter call, with a setter attached for
// assignment) — grounded on original_source/src/compiler/Value.cpp's getProp.
func (e *Engine) GetProp(b *ir.Builder, sink *diag.Sink, v ir.Value, name string, flags PropFlags) ir.Value {
	if v.IsPoison() {
		return v
	}

	if v.Flags.IsModule {
		return e.moduleExport(b, sink, v, name)
	}

	if v.Flags.IsType {
		return e.staticMember(b, sink, v, name, flags)
	}

	vt, ok := e.typeOf(v)
	if !ok {
		return e.poison(b.Fn)
	}
	if flags.StaticOnly {
		sink.Report(diag.New(diag.KindInstancePropOnType, b.Span.Module, b.Span.Line, b.Span.Column,
			"%q is an instance member, not static", name))
		return e.poison(b.Fn)
	}

	if prop, ptype, found := e.findProperty(vt, name, flags); found {
		return e.loadProperty(b, sink, v, prop, ptype)
	}

	if matches, err := e.Types.FindMethods(e.Funcs, vt, name, nil, nil, types.FindFlags{IgnoreArgs: true,
		ExcludePrivate: flags.ExcludePrivate}); err == nil && len(matches) >= 1 {
		self := v
		return ir.ImmFuncVal(matches[0], e.Funcs.SignatureID(matches[0])).WithSource(nil, &self, ids.NoFunc)
	}

	sink.Report(diag.New(diag.KindPropertyNotFound, b.Span.Module, b.Span.Line, b.Span.Column,
		"no property or method named %q on %q", name, vt.FQN))
	return e.poison(b.Fn)
}

// moduleExport resolves `module.name` against a module's export table. The
// actual export table lives in pkg/module (C11, serialized module layout);
// this package only knows the shape of the Value it must hand back.
func (e *Engine) moduleExport(b *ir.Builder, sink *diag.Sink, v ir.Value, name string) ir.Value {
	t, ok := e.Types.GetByFQN(v.Imm.ModuleRef + "::" + name)
	if ok {
		return ir.ImmTypeVal(t.ID)
	}
	sink.Report(diag.New(diag.KindExportNotFound, b.Span.Module, b.Span.Line, b.Span.Column,
		"module %q has no export named %q", v.Imm.ModuleRef, name))
	return e.poison(b.Fn)
}

// staticMember resolves `Type.name`: a static property, or a static method
// bound without a self Value.
func (e *Engine) staticMember(b *ir.Builder, sink *diag.Sink, v ir.Value, name string, flags PropFlags) ir.Value {
	t, ok := e.Types.GetByID(v.Imm.TypeRef)
	if !ok {
		return e.poison(b.Fn)
	}
	if prop, ptype, found := e.findProperty(t, name, flags); found {
		if !prop.Flags.IsStatic {
			sink.Report(diag.New(diag.KindStaticPropOnInstance, b.Span.Module, b.Span.Line, b.Span.Column,
				"%q is an instance property, accessed through a type", name))
			return e.poison(b.Fn)
		}
		return e.loadProperty(b, sink, v, prop, ptype)
	}
	if matches, err := e.Types.FindMethods(e.Funcs, t, name, nil, nil, types.FindFlags{IgnoreArgs: true,
		ExcludePrivate: flags.ExcludePrivate}); err == nil && len(matches) >= 1 {
		return ir.ImmFuncVal(matches[0], e.Funcs.SignatureID(matches[0]))
	}
	sink.Report(diag.New(diag.KindPropertyNotFound, b.Span.Module, b.Span.Line, b.Span.Column,
		"no static property or method named %q on %q", name, t.FQN))
	return e.poison(b.Fn)
}

// findProperty walks t's own properties, then (unless ExcludeInherited) its
// bases, returning the first match and the type that declared it.
func (e *Engine) findProperty(t *types.Type, name string, flags PropFlags) (types.Property, *types.Type, bool) {
	seen := map[ids.TypeID]bool{}
	var walk func(ct *types.Type) (types.Property, *types.Type, bool)
	walk = func(ct *types.Type) (types.Property, *types.Type, bool) {
		if ct == nil || seen[ct.ID] {
			return types.Property{}, nil, false
		}
		seen[ct.ID] = true
		for _, p := range ct.Properties {
			if p.Name == name {
				if flags.ExcludePrivate && p.Access == types.Private {
					continue
				}
				return p, ct, true
			}
		}
		if flags.ExcludeInherited {
			return types.Property{}, nil, false
		}
		for _, base := range ct.Bases {
			if bt, ok := e.Types.GetByID(base.Type); ok {
				if p, owner, found := walk(bt); found {
					return p, owner, true
				}
			}
		}
		return types.Property{}, nil, false
	}
	return walk(t)
}

// loadProperty produces the Value for reading prop off v: a getter call when
// the property is accessor-backed, otherwise a direct field load (by pointer
// when the property is itself pointer-shaped, by value otherwise). The
// result carries write-back links so a subsequent assignment through it
// routes to the setter or the field's address.
func (e *Engine) loadProperty(b *ir.Builder, sink *diag.Sink, self ir.Value, prop types.Property, owner *types.Type) ir.Value {
	if prop.Getter != ids.NoFunc {
		out := e.call(b, prop.Getter, nil, &self)
		return out.WithSource(nil, &self, prop.Setter)
	}

	offsetImm := ir.Immediate{Kind: ir.ImmUint, Uint: uint64(prop.Offset)}
	fieldPtr := b.Val(prop.Type)
	b.Add(ir.OpLoad).Operand(fieldPtr).Operand(self).WithImm(offsetImm).Commit()

	if prop.Flags.IsPointer {
		return fieldPtr.WithSource(nil, &self, prop.Setter)
	}

	out := b.Val(prop.Type)
	b.Add(ir.OpLoad).Operand(out).Operand(fieldPtr).Commit()
	field := fieldPtr
	return out.WithSource(&field, &self, prop.Setter)
}
