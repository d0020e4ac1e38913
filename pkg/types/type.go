// Package types implements the type registry (spec.md C1): interned,
// unique type descriptors looked up by name or by stable id, plus the
// overload-resolution routine shared by the value model, call generation
// and member access.
//
// The original source (original_source/src/ffi/DataType.cpp) represents a
// type as a flags-struct discriminator over one C++ class; per spec.md's
// Design Notes ("Dynamic dispatch on Value shape") we instead give Type a
// closed Kind enum and let callers switch on it, the way the teacher's
// ctypes package represents the C type taxonomy (Tvoid/Tint/Tpointer/...)
// with a sealed interface instead of a flags struct.
package types

import "github.com/tsvm-lang/tsvm/pkg/ids"

// Kind is the closed taxonomy a Type belongs to (spec.md §3).
type Kind int

const (
	KindPlain Kind = iota
	KindClass
	KindFunctionSignature
	KindTemplate
	KindAlias
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindClass:
		return "class"
	case KindFunctionSignature:
		return "function-signature"
	case KindTemplate:
		return "template"
	case KindAlias:
		return "alias"
	default:
		return "?"
	}
}

// Access is the visibility modifier carried by types, properties and bases.
type Access int

const (
	Public Access = iota
	Private
	Trusted
)

// Meta is the metadata record carried by every type (spec.md §3).
type Meta struct {
	Size                       uint32
	IsPOD                      bool
	IsTriviallyConstructible   bool
	IsTriviallyCopyable        bool
	IsTriviallyDestructible    bool
	IsPrimitive                bool
	IsFloatingPoint            bool
	IsIntegral                 bool
	IsUnsigned                 bool
	IsFunction                 bool
	IsTemplate                 bool
	IsAlias                    bool
	IsHost                     bool
	IsAnonymous                bool
	HostHash                   uint64 // matches bindings to this type at FFI bind time
}

// Base describes one inherited base class (spec.md §3).
type Base struct {
	Type   ids.TypeID
	Offset uint32
	Access Access
}

// PropertyFlags are the boolean flags carried by a property (spec.md §3).
type PropertyFlags struct {
	CanRead  bool
	CanWrite bool
	IsStatic bool
	IsPointer bool
}

// Property describes one field or accessor-backed property.
type Property struct {
	Name   string
	Access Access
	Offset uint32
	Type   ids.TypeID
	Getter ids.FuncID // ids.NoFunc if the property is a plain field
	Setter ids.FuncID // ids.NoFunc if read-only
	Flags  PropertyFlags
}

// Signature is the payload of a KindFunctionSignature type: a return type
// plus an ordered argument list, each argument tagged with its kind
// (spec.md §3 "Argument kinds").
type Signature struct {
	Return ids.TypeID
	Args   []Argument
}

// ArgKind distinguishes scripting-visible arguments from the implicit
// prefix/suffix a call may carry.
type ArgKind int

const (
	ArgExplicit ArgKind = iota
	ArgThisPtr
	ArgRetPtr
	ArgContextPtr
	ArgFuncPtr
	ArgCaptureDataPtr
)

// IsImplicit reports whether this argument kind is never scripting-visible.
func (k ArgKind) IsImplicit() bool { return k != ArgExplicit }

// Argument is one entry of a Signature's argument list.
type Argument struct {
	Type ids.TypeID
	Kind ArgKind
}

// ExplicitArgs returns the subset of sig's arguments that are scripting
// visible, in order.
func (s *Signature) ExplicitArgs() []Argument {
	out := make([]Argument, 0, len(s.Args))
	for _, a := range s.Args {
		if a.Kind == ArgExplicit {
			out = append(out, a)
		}
	}
	return out
}

// Type is a unique, interned type descriptor (spec.md §3).
type Type struct {
	ID      ids.TypeID
	Kind    Kind
	Name    string // display name
	FQN     string // fully qualified name
	Meta    Meta
	Access  Access
	Bases   []Base
	Properties []Property
	Methods    []ids.FuncID
	Dtor       ids.FuncID

	// KindAlias only: the type this one stands for. EffectiveID follows the
	// alias chain transitively (invariant: equality is by effective id).
	AliasOf ids.TypeID

	// KindFunctionSignature only.
	Signature *Signature

	// KindTemplate instantiations only: back-reference to the template this
	// was cloned from, and the argument types it was instantiated with.
	TemplateBase ids.TypeID
	TemplateArgs []ids.TypeID
}

// IsPoison reports whether this is the distinguished poison type used as a
// sentinel return value on error paths (spec.md glossary "Poison").
func (t *Type) IsPoison() bool { return t.FQN == PoisonFQN }

// PoisonFQN is the fully qualified name reserved for the poison type.
const PoisonFQN = "$poison"
