package ir

import "github.com/tsvm-lang/tsvm/pkg/ids"

// Reg is a virtual register id, allocated by a Builder and unique within the
// Function that produced it (spec.md §3 "Value").
type Reg int

// Slot is a stack-allocation id, allocated by a Builder and unique within
// the Function that produced it.
type Slot int

// ValueKind is the tag of the Value sum type (spec.md §3, Design Notes
// "Dynamic dispatch on Value shape" — a sum type whose variants carry their
// payload inline, instead of the source's flags-struct discriminator).
type ValueKind int

const (
	KindPoison ValueKind = iota
	KindRegister
	KindStack
	KindArgument
	KindImmediate
)

// ImmKind distinguishes the payload shape of an immediate Value.
type ImmKind int

const (
	ImmNone ImmKind = iota
	ImmInt
	ImmUint
	ImmFloat
	ImmDouble
	ImmFuncRef
	ImmModuleRef
	ImmTypeRef
	ImmModuleData
)

// Immediate is the payload of a KindImmediate Value.
type Immediate struct {
	Kind       ImmKind
	Int        int64
	Uint       uint64
	Float      float32
	Double     float64
	FuncRef    ids.FuncID
	ModuleRef  string
	TypeRef    ids.TypeID
	ModuleName string
	ModuleSlot uint32
}

// Flags are the boolean properties a Value can carry (spec.md §3).
type Flags struct {
	IsArgument   bool
	IsReadOnly   bool
	IsPointer    bool // the value holds the ADDRESS of a datum, not the datum
	IsType       bool
	IsModule     bool
	IsFunction   bool
	IsFunctionID bool
	IsModuleData bool
	IsImmediate  bool
}

// Value is a compile-time typed operand (spec.md §3). Exactly one of the
// Reg/Slot/ArgIndex/Imm payloads is meaningful, selected by Kind; Poison
// values carry none.
type Value struct {
	Kind ValueKind
	Type ids.TypeID

	Reg      Reg   // KindRegister
	Slot     Slot  // KindStack
	ArgIndex int   // KindArgument
	Imm      Immediate // KindImmediate

	Flags Flags

	// L-value write-back links (spec.md §3): present when this Value arose
	// from dereferencing a property accessor or pointer, so that an
	// assignment through it can route to the right store/setter.
	SrcPtr    *Value
	SrcSelf   *Value
	SrcSetter ids.FuncID
}

// IsPoison reports whether v is the poison sentinel.
func (v Value) IsPoison() bool { return v.Kind == KindPoison }

// Poison returns a poison Value, optionally typed (poison is usually typed
// as the registry's distinguished poison type so that Value.Type is always
// valid to look up).
func Poison(poisonType ids.TypeID) Value {
	return Value{Kind: KindPoison, Type: poisonType}
}

// Register constructs a fresh virtual-register Value.
func Register(r Reg, t ids.TypeID) Value {
	return Value{Kind: KindRegister, Reg: r, Type: t}
}

// Stack constructs a stack-allocation Value. Stack values are implicitly
// pointer Values: the payload IS the address of the slot.
func Stack(s Slot, t ids.TypeID) Value {
	return Value{Kind: KindStack, Slot: s, Type: t, Flags: Flags{IsPointer: true}}
}

// Argument constructs a Value referring to the i'th argument slot.
func Argument(i int, t ids.TypeID) Value {
	return Value{Kind: KindArgument, ArgIndex: i, Type: t, Flags: Flags{IsArgument: true}}
}

// ImmIntVal constructs a signed-integer immediate Value.
func ImmIntVal(n int64, t ids.TypeID) Value {
	return Value{Kind: KindImmediate, Type: t, Imm: Immediate{Kind: ImmInt, Int: n}, Flags: Flags{IsImmediate: true}}
}

// ImmUintVal constructs an unsigned-integer immediate Value.
func ImmUintVal(n uint64, t ids.TypeID) Value {
	return Value{Kind: KindImmediate, Type: t, Imm: Immediate{Kind: ImmUint, Uint: n}, Flags: Flags{IsImmediate: true}}
}

// ImmFloatVal constructs an f32 immediate Value.
func ImmFloatVal(f float32, t ids.TypeID) Value {
	return Value{Kind: KindImmediate, Type: t, Imm: Immediate{Kind: ImmFloat, Float: f}, Flags: Flags{IsImmediate: true}}
}

// ImmDoubleVal constructs an f64 immediate Value.
func ImmDoubleVal(f float64, t ids.TypeID) Value {
	return Value{Kind: KindImmediate, Type: t, Imm: Immediate{Kind: ImmDouble, Double: f}, Flags: Flags{IsImmediate: true}}
}

// ImmFuncVal constructs an immediate Value referring to a function.
func ImmFuncVal(id ids.FuncID, sigType ids.TypeID) Value {
	return Value{Kind: KindImmediate, Type: sigType, Imm: Immediate{Kind: ImmFuncRef, FuncRef: id},
		Flags: Flags{IsImmediate: true, IsFunction: true, IsFunctionID: true}}
}

// ImmTypeVal constructs an immediate Value referring to a type (used for
// `sizeof`/`new` style operands, spec.md §6 AST contract).
func ImmTypeVal(ref ids.TypeID) Value {
	return Value{Kind: KindImmediate, Imm: Immediate{Kind: ImmTypeRef, TypeRef: ref}, Flags: Flags{IsImmediate: true, IsType: true}}
}

// ImmModuleVal constructs an immediate Value referring to a module (for
// member access through a module reference, spec.md §4.3 getProp).
func ImmModuleVal(name string) Value {
	return Value{Kind: KindImmediate, Imm: Immediate{Kind: ImmModuleRef, ModuleRef: name}, Flags: Flags{IsImmediate: true, IsModule: true}}
}

// ImmModuleDataVal constructs an immediate Value referring to a module-local
// data slot.
func ImmModuleDataVal(module string, slot uint32, t ids.TypeID) Value {
	return Value{Kind: KindImmediate, Type: t,
		Imm:   Immediate{Kind: ImmModuleData, ModuleName: module, ModuleSlot: slot},
		Flags: Flags{IsImmediate: true, IsModuleData: true}}
}

// ReadOnly returns a copy of v marked read-only (used for `let`/const
// bindings and for implicit-argument Values that must not be reassigned).
func (v Value) ReadOnly() Value {
	v.Flags.IsReadOnly = true
	return v
}

// AsPointer returns a copy of v with IsPointer set — used when a Value that
// already holds an address (a property's pointer-typed field, say) needs to
// be distinguished from one holding the datum itself.
func (v Value) AsPointer() Value {
	v.Flags.IsPointer = true
	return v
}

// WithSource attaches property write-back links, returning a copy of v
// (spec.md §3, L-values "optionally carry source-pointer and source-self
// sub-Values and a setter function reference").
func (v Value) WithSource(srcPtr, srcSelf *Value, setter ids.FuncID) Value {
	v.SrcPtr = srcPtr
	v.SrcSelf = srcSelf
	v.SrcSetter = setter
	return v
}
