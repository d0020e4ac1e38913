// Package module implements a compiled module's binary layout and the
// two-pass resolution spec.md §6 and §9 require: a type-table, a
// function-table, a packed code section and a module-data section,
// serialized in that order, with deserialization rebuilding types before
// functions to break the types<->functions reference cycle.
//
// Grounded on the teacher's own binary-object conventions (pkg/rtl's
// printer.go textual dump gives the instruction-stream shape; the teacher
// has no binary writer of its own, so the encoding scheme here follows
// spec.md §6 directly) and on encoding/gob for the serialization mechanism —
// gob is already in every Go toolchain's standard library and, unlike a
// hand-rolled binary.Write walk, handles the type-table's variable-length
// nested slices without per-field offset bookkeeping.
package module

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/tsvm-lang/tsvm/pkg/funcs"
	"github.com/tsvm-lang/tsvm/pkg/ids"
	"github.com/tsvm-lang/tsvm/pkg/ir"
	"github.com/tsvm-lang/tsvm/pkg/types"
)

// TypeEntry is one type-table row (spec.md §6's field list).
type TypeEntry struct {
	ID           ids.TypeID
	Kind         types.Kind
	Name         string
	FQN          string
	Meta         types.Meta
	Access       types.Access
	Dtor         ids.FuncID
	Properties   []types.Property
	Bases        []types.Base
	Methods      []ids.FuncID
	AliasOf      ids.TypeID
	Signature    *types.Signature
	TemplateBase ids.TypeID
	TemplateArgs []ids.TypeID
}

// FuncEntry is one function-table row.
type FuncEntry struct {
	ID          ids.FuncID
	Name        string
	SignatureID ids.TypeID
	Flags       funcs.Flags
	Access      types.Access
	Entry       funcs.Entry
}

// DataSlot is one module-data-section entry: a typed, named global slot
// (spec.md §6 "module-data section (typed slots)").
type DataSlot struct {
	Name string
	Type ids.TypeID
	Init []byte
}

// Module is the in-memory, fully decoded form of a compiled module.
type Module struct {
	Name      string
	Types     []TypeEntry
	Functions []FuncEntry
	Code      map[ids.FuncID]*ir.Function // keyed by function id, decoded from the packed code section
	Data      []DataSlot
}

// wireModule is the gob-serialized shape: ir.Function keys a map by FuncID,
// which gob encodes fine, but ir.Label/ir.Reg/ir.Slot are plain ints so no
// custom GobEncode is needed anywhere in this graph.
type wireModule struct {
	Name      string
	Types     []TypeEntry
	Functions []FuncEntry
	Code      map[ids.FuncID]*ir.Function
	Data      []DataSlot
}

// Serialize encodes m in the order spec.md §6 specifies: type-table,
// function-table, code section, module-data section.
func Serialize(m *Module) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(wireModule(*m)); err != nil {
		return nil, fmt.Errorf("module: serialize %q: %w", m.Name, err)
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a module, then registers it into tr/fr in two
// passes: every type first, then every function, with each function's
// signature id remapped to the id its signature type received in the
// first pass.
//
// No other id is remapped and there is no back-patch step: fr.Register
// gives each function its own id, while the function ids the types carry
// (methods, destructors, property accessors), the type ids inside the type
// records, and the ids in the returned Module's Functions and Code keep
// their encoded values.
//
// Registering into tr/fr (rather than just trusting the encoded ids) is
// deliberate: a host process may deserialize several modules sharing a
// single execution context, and re-registration is how cross-module type
// identity (spec.md invariant I-equal: "identical FQNs compare equal")
// gets enforced instead of silently aliasing by coincidence of encoded id.
func Deserialize(data []byte, tr *types.Registry, fr *funcs.Registry) (*Module, error) {
	var w wireModule
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("module: deserialize: %w", err)
	}

	// Pass 1: types, in encoded order (the type-table is already
	// dependency-sorted by the compiler: aliases and templates follow what
	// they reference).
	idRemap := make(map[ids.TypeID]ids.TypeID, len(w.Types))
	for _, te := range w.Types {
		t := &types.Type{
			Kind: te.Kind, Name: te.Name, FQN: te.FQN, Meta: te.Meta, Access: te.Access,
			Dtor: te.Dtor, Properties: te.Properties, Bases: te.Bases, Methods: te.Methods,
			AliasOf: te.AliasOf, Signature: te.Signature,
			TemplateBase: te.TemplateBase, TemplateArgs: te.TemplateArgs,
		}
		newID, err := tr.Register(t)
		if err != nil {
			return nil, fmt.Errorf("module: resolving type %q: %w", te.FQN, err)
		}
		idRemap[te.ID] = newID
	}

	// Pass 2: functions, now that every type id they reference resolves.
	for _, fe := range w.Functions {
		f := &funcs.Function{
			Name: fe.Name, SignatureID: remapType(idRemap, fe.SignatureID),
			Flags: fe.Flags, Access: fe.Access, Entry: fe.Entry,
		}
		fr.Register(f)
	}

	return &Module{Name: w.Name, Types: w.Types, Functions: w.Functions, Code: w.Code, Data: w.Data}, nil
}

func remapType(idRemap map[ids.TypeID]ids.TypeID, old ids.TypeID) ids.TypeID {
	if newID, ok := idRemap[old]; ok {
		return newID
	}
	return old
}
