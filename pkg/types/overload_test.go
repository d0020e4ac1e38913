package types

import (
	"errors"
	"testing"

	"github.com/tsvm-lang/tsvm/pkg/ids"
)

// fakeLookup is a minimal FuncLookup for exercising FindMethods in isolation,
// the way the teacher's regalloc tests build literal rtl.Function values
// instead of running a full compilation to produce one.
type fakeLookup struct {
	names      map[ids.FuncID]string
	signatures map[ids.FuncID]ids.TypeID
	private    map[ids.FuncID]bool
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		names:      map[ids.FuncID]string{},
		signatures: map[ids.FuncID]ids.TypeID{},
		private:    map[ids.FuncID]bool{},
	}
}

func (f *fakeLookup) Name(id ids.FuncID) string            { return f.names[id] }
func (f *fakeLookup) SignatureID(id ids.FuncID) ids.TypeID  { return f.signatures[id] }
func (f *fakeLookup) IsPrivate(id ids.FuncID) bool          { return f.private[id] }

func sigType(r *Registry, fqn string, ret ids.TypeID, args ...ids.TypeID) ids.TypeID {
	sigArgs := make([]Argument, len(args))
	for i, a := range args {
		sigArgs[i] = Argument{Type: a, Kind: ArgExplicit}
	}
	t := &Type{Kind: KindFunctionSignature, Name: fqn, FQN: fqn, Signature: &Signature{Return: ret, Args: sigArgs}}
	id, err := r.Register(t)
	if err != nil {
		panic(err)
	}
	return id
}

func TestFindMethodsStrictMatchWins(t *testing.T) {
	r := NewRegistry()
	i32, _ := r.Register(primitiveInt32())
	f32ID, _ := r.Register(&Type{Kind: KindPlain, Name: "f32", FQN: "f32", Meta: Meta{Size: 4, IsPrimitive: true, IsFloatingPoint: true}})

	lookup := newFakeLookup()
	fInt := ids.FuncID(1)
	fFloat := ids.FuncID(2)
	lookup.names[fInt] = "f"
	lookup.names[fFloat] = "f"
	lookup.signatures[fInt] = sigType(r, "f(i32)", i32, i32)
	lookup.signatures[fFloat] = sigType(r, "f(f32)", i32, f32ID)

	owner := &Type{Kind: KindClass, Name: "M", FQN: "M", Methods: []ids.FuncID{fInt, fFloat}}
	if _, err := r.Register(owner); err != nil {
		t.Fatal(err)
	}

	got, err := r.FindMethods(lookup, owner, "f", nil, []ids.TypeID{i32}, FindFlags{})
	if err != nil {
		t.Fatalf("FindMethods: %v", err)
	}
	if len(got) != 1 || got[0] != fInt {
		t.Errorf("expected strict match [fInt], got %v", got)
	}

	got, err = r.FindMethods(lookup, owner, "f", nil, []ids.TypeID{f32ID}, FindFlags{})
	if err != nil {
		t.Fatalf("FindMethods: %v", err)
	}
	if len(got) != 1 || got[0] != fFloat {
		t.Errorf("expected strict match [fFloat], got %v", got)
	}
}

func TestFindMethodsNotFound(t *testing.T) {
	r := NewRegistry()
	owner := &Type{Kind: KindClass, Name: "Empty", FQN: "Empty"}
	r.Register(owner)
	lookup := newFakeLookup()

	_, err := r.FindMethods(lookup, owner, "missing", nil, nil, FindFlags{})
	var nf *ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindMethodsAmbiguous(t *testing.T) {
	r := NewRegistry()
	i32, _ := r.Register(primitiveInt32())

	lookup := newFakeLookup()
	a, b := ids.FuncID(10), ids.FuncID(11)
	lookup.names[a] = "g"
	lookup.names[b] = "g"
	lookup.signatures[a] = sigType(r, "g(i32)a", i32, i32)
	lookup.signatures[b] = sigType(r, "g(i32)b", i32, i32)

	owner := &Type{Kind: KindClass, Name: "N", FQN: "N", Methods: []ids.FuncID{a, b}}
	r.Register(owner)

	_, err := r.FindMethods(lookup, owner, "g", nil, []ids.TypeID{i32}, FindFlags{})
	var amb *ErrAmbiguous
	if !errors.As(err, &amb) {
		t.Fatalf("expected ErrAmbiguous, got %v", err)
	}
	if len(amb.Candidates) != 2 {
		t.Errorf("expected 2 ambiguous candidates, got %d", len(amb.Candidates))
	}
}

func TestFindMethodsInheritedFromBase(t *testing.T) {
	r := NewRegistry()
	i32, _ := r.Register(primitiveInt32())

	lookup := newFakeLookup()
	base := ids.FuncID(20)
	lookup.names[base] = "greet"
	lookup.signatures[base] = sigType(r, "greet()", i32)

	baseType := &Type{Kind: KindClass, Name: "Base", FQN: "Base", Methods: []ids.FuncID{base}}
	baseID, _ := r.Register(baseType)

	derived := &Type{Kind: KindClass, Name: "Derived", FQN: "Derived", Bases: []Base{{Type: baseID}}}
	r.Register(derived)

	got, err := r.FindMethods(lookup, derived, "greet", nil, nil, FindFlags{})
	if err != nil {
		t.Fatalf("FindMethods: %v", err)
	}
	if len(got) != 1 || got[0] != base {
		t.Errorf("expected to find inherited method, got %v", got)
	}
}

func TestFindMethodsExcludePrivate(t *testing.T) {
	r := NewRegistry()
	lookup := newFakeLookup()
	priv := ids.FuncID(30)
	lookup.names[priv] = "secret"
	lookup.private[priv] = true
	lookup.signatures[priv] = sigType(r, "secret()", 0)

	owner := &Type{Kind: KindClass, Name: "S", FQN: "S", Methods: []ids.FuncID{priv}}
	r.Register(owner)

	_, err := r.FindMethods(lookup, owner, "secret", nil, nil, FindFlags{ExcludePrivate: true, IgnoreArgs: true})
	var nf *ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected private method to be excluded, got err=%v", err)
	}

	got, err := r.FindMethods(lookup, owner, "secret", nil, nil, FindFlags{IgnoreArgs: true})
	if err != nil || len(got) != 1 {
		t.Fatalf("expected private method visible without ExcludePrivate, got %v, %v", got, err)
	}
}
