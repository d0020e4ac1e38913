package types

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tsvm-lang/tsvm/pkg/ids"
)

// ErrDuplicateType is returned by Register when an existing type shares an
// FQN with the one being registered but is not structurally equivalent.
type ErrDuplicateType struct {
	FQN string
}

func (e *ErrDuplicateType) Error() string {
	return fmt.Sprintf("types: duplicate, structurally incompatible registration for %q", e.FQN)
}

// Registry is the process-wide interning table for type descriptors
// (spec.md C1). It is created once per execution context and lives for the
// context's whole lifetime (spec.md §3 Lifecycle).
type Registry struct {
	mu      sync.RWMutex
	byID    map[ids.TypeID]*Type
	byFQN   map[string]*Type
	byName  []*Type // sorted by Name, for O(log n) name lookup
	poisonID ids.TypeID
}

// NewRegistry creates an empty registry and seeds it with the poison type.
func NewRegistry() *Registry {
	r := &Registry{
		byID:  make(map[ids.TypeID]*Type),
		byFQN: make(map[string]*Type),
	}
	poison := &Type{
		ID:   ids.HashFQN(PoisonFQN),
		Kind: KindPlain,
		Name: "poison",
		FQN:  PoisonFQN,
	}
	r.byID[poison.ID] = poison
	r.byFQN[poison.FQN] = poison
	r.poisonID = poison.ID
	return r
}

// Poison returns the distinguished poison type (spec.md invariant I1).
func (r *Registry) Poison() *Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[r.poisonID]
}

// Register interns a new type. Registration is idempotent: registering the
// same FQN twice with structurally equivalent content returns the existing
// type's id. Registering the same FQN with different content fails with
// ErrDuplicateType (spec.md §4.1).
func (r *Registry) Register(t *Type) (ids.TypeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := ids.HashFQN(t.FQN)
	if existing, ok := r.byFQN[t.FQN]; ok {
		if !Equivalent(existing, t) {
			return 0, &ErrDuplicateType{FQN: t.FQN}
		}
		return existing.ID, nil
	}

	t.ID = id
	r.byID[id] = t
	r.byFQN[t.FQN] = t
	r.insertSorted(t)
	return id, nil
}

func (r *Registry) insertSorted(t *Type) {
	i := sort.Search(len(r.byName), func(i int) bool { return r.byName[i].Name >= t.Name })
	r.byName = append(r.byName, nil)
	copy(r.byName[i+1:], r.byName[i:])
	r.byName[i] = t
}

// GetByID looks up a type by id in O(1).
func (r *Registry) GetByID(id ids.TypeID) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

// GetByFQN looks up a type by fully qualified name in O(1).
func (r *Registry) GetByFQN(fqn string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byFQN[fqn]
	return t, ok
}

// GetByName looks up a type by display name in O(log n); ambiguous simple
// names (multiple FQNs sharing a display name) return the first match in
// sorted order — callers that need FQN resolution should use GetByFQN.
func (r *Registry) GetByName(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := sort.Search(len(r.byName), func(i int) bool { return r.byName[i].Name >= name })
	if i < len(r.byName) && r.byName[i].Name == name {
		return r.byName[i], true
	}
	return nil, false
}

// Effective follows a chain of KindAlias types to the underlying non-alias
// type (spec.md §3, "the effective type is obtained by transitively
// following aliases").
func (r *Registry) Effective(t *Type) *Type {
	seen := map[ids.TypeID]bool{}
	for t.Kind == KindAlias {
		if seen[t.ID] {
			return t // cyclic alias chain; caller's problem, don't hang
		}
		seen[t.ID] = true
		next, ok := r.GetByID(t.AliasOf)
		if !ok {
			return t
		}
		t = next
	}
	return t
}

// EffectiveID is Effective, returning just the id.
func (r *Registry) EffectiveID(id ids.TypeID) ids.TypeID {
	t, ok := r.GetByID(id)
	if !ok {
		return id
	}
	return r.Effective(t).ID
}

// IsEqualTo implements spec.md §8's invariant: "T.isEqualTo(U) iff their
// FQNs (after alias resolution) are identical" — compared by effective id,
// which is derived from the FQN by HashFQN.
func (r *Registry) IsEqualTo(a, b ids.TypeID) bool {
	return r.EffectiveID(a) == r.EffectiveID(b)
}

// Equivalent structurally compares two not-yet-registered-or-equal types:
// metadata, base list, property list and method id list must match.
// Used by Register to decide whether a repeat registration is idempotent or
// a genuine conflict.
func Equivalent(a, b *Type) bool {
	if a.Kind != b.Kind || a.Meta != b.Meta || a.Access != b.Access {
		return false
	}
	if len(a.Bases) != len(b.Bases) || len(a.Properties) != len(b.Properties) || len(a.Methods) != len(b.Methods) {
		return false
	}
	for i := range a.Bases {
		if a.Bases[i] != b.Bases[i] {
			return false
		}
	}
	for i := range a.Properties {
		pa, pb := a.Properties[i], b.Properties[i]
		if pa.Name != pb.Name || pa.Access != pb.Access || pa.Offset != pb.Offset ||
			pa.Type != pb.Type || pa.Flags != pb.Flags {
			return false
		}
		// Getter/Setter ids deliberately not compared: host rebinding may
		// install a different wrapper function for the same logical
		// accessor across idempotent re-registrations.
	}
	for i := range a.Methods {
		if a.Methods[i] != b.Methods[i] {
			return false
		}
	}
	return true
}

// Clone produces a template instantiation: a new type sharing the template's
// methods and properties but with a rewritten identity (name/FQN/id), and a
// back-reference to the template plus the argument types it was
// instantiated with (spec.md §4.1 "clone").
func (r *Registry) Clone(template *Type, newName, newFQN string, args []ids.TypeID) (*Type, error) {
	clone := &Type{
		Kind:         template.Kind,
		Name:         newName,
		FQN:          newFQN,
		Meta:         template.Meta,
		Access:       template.Access,
		Bases:        append([]Base(nil), template.Bases...),
		Properties:   append([]Property(nil), template.Properties...),
		Methods:      append([]ids.FuncID(nil), template.Methods...),
		Dtor:         template.Dtor,
		TemplateBase: template.ID,
		TemplateArgs: append([]ids.TypeID(nil), args...),
	}
	clone.Meta.IsTemplate = false
	if _, err := r.Register(clone); err != nil {
		return nil, err
	}
	return clone, nil
}

// MutateThisType rewrites a method signature's implicit `this` argument
// type, and — per spec.md invariant I3 — rewrites the signature's display
// name and id together so the two stay consistent. Used when a method
// descriptor is bound against a derived type via an inherited signature.
func (r *Registry) MutateThisType(sig *Type, newThis ids.TypeID) (*Type, error) {
	if sig.Kind != KindFunctionSignature || sig.Signature == nil {
		return nil, fmt.Errorf("types: MutateThisType on non-signature type %q", sig.FQN)
	}
	newArgs := append([]Argument(nil), sig.Signature.Args...)
	found := false
	for i, a := range newArgs {
		if a.Kind == ArgThisPtr {
			newArgs[i].Type = newThis
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("types: signature %q has no this argument", sig.FQN)
	}
	thisType, _ := r.GetByID(newThis)
	thisName := "?"
	if thisType != nil {
		thisName = thisType.Name
	}
	newFQN := fmt.Sprintf("%s::%s", thisName, sig.FQN)
	clone := &Type{
		Kind:      KindFunctionSignature,
		Name:      fmt.Sprintf("%s::%s", thisName, sig.Name),
		FQN:       newFQN,
		Meta:      sig.Meta,
		Access:    sig.Access,
		Signature: &Signature{Return: sig.Signature.Return, Args: newArgs},
	}
	if _, err := r.Register(clone); err != nil {
		return nil, err
	}
	return clone, nil
}
