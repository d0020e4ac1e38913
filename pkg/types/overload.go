package types

import (
	"fmt"

	"github.com/tsvm-lang/tsvm/pkg/ids"
)

// FuncLookup is the narrow view of the function registry that overload
// resolution needs. Keeping it as an interface (rather than importing
// pkg/funcs directly) avoids a cycle: pkg/funcs stores a function's
// signature as a type id and its access level as a types.Access, so
// pkg/funcs already imports pkg/types.
type FuncLookup interface {
	// Name returns the simple (unqualified) name of a function.
	Name(id ids.FuncID) string
	// SignatureID returns the KindFunctionSignature type id describing id's
	// return type and ordered arguments.
	SignatureID(id ids.FuncID) ids.TypeID
	// IsPrivate reports whether id is access-restricted to its declaring type.
	IsPrivate(id ids.FuncID) bool
}

// FindFlags are the overload-resolution modifiers from spec.md §4.1.
type FindFlags struct {
	IgnoreArgs       bool
	StrictArgs       bool
	SkipImplicitArgs bool
	StrictReturn     bool
	ExcludePrivate   bool
}

// ErrAmbiguous is returned by FindMethods when more than one candidate
// survives resolution.
type ErrAmbiguous struct {
	Name       string
	Candidates []ids.FuncID
}

func (e *ErrAmbiguous) Error() string {
	return fmt.Sprintf("types: call to %q is ambiguous among %d candidates", e.Name, len(e.Candidates))
}

// ErrNotFound is returned by FindMethods when no candidate survives.
type ErrNotFound struct{ Name string }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("types: no method named %q found", e.Name) }

// FindMethods is the central overload-resolution routine (spec.md §4.1),
// shared by property lookup (getProp, under the synthetic name
// "operator <fqn>" for casts and "operator()" for calls — see pkg/value)
// and by call generation.
func (r *Registry) FindMethods(lookup FuncLookup, t *Type, name string, retTp *ids.TypeID, argTps []ids.TypeID, flags FindFlags) ([]ids.FuncID, error) {
	// Step 1: filter candidates by simple name, walking inherited bases too
	// so derived-type call sites see base-class methods.
	var candidates []ids.FuncID
	seenTypes := map[ids.TypeID]bool{}
	var collect func(ct *Type)
	collect = func(ct *Type) {
		if ct == nil || seenTypes[ct.ID] {
			return
		}
		seenTypes[ct.ID] = true
		for _, m := range ct.Methods {
			if lookup.Name(m) == name {
				if flags.ExcludePrivate && lookup.IsPrivate(m) {
					continue
				}
				candidates = append(candidates, m)
			}
		}
		for _, b := range ct.Bases {
			if bt, ok := r.GetByID(b.Type); ok {
				collect(bt)
			}
		}
	}
	collect(t)

	if flags.IgnoreArgs {
		survivors := dedupFuncs(candidates)
		if len(survivors) == 0 {
			return nil, &ErrNotFound{Name: name}
		}
		return survivors, nil
	}

	// Step 2: return-type filter.
	if retTp != nil {
		filtered := candidates[:0:0]
		for _, c := range candidates {
			sigID := lookup.SignatureID(c)
			sig, ok := r.signatureOf(sigID)
			if !ok {
				continue
			}
			if flags.StrictReturn {
				if r.IsEqualTo(sig.Return, *retTp) {
					filtered = append(filtered, c)
				}
			} else if r.isConvertibleNoFuncs(sig.Return, *retTp) || r.IsEqualTo(sig.Return, *retTp) {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	// Step 3 + strict match (step 4): try an exact argument-type match first.
	var strictMatches []ids.FuncID
	var convertibleMatches []ids.FuncID
	for _, c := range candidates {
		sig, ok := r.signatureOf(lookup.SignatureID(c))
		if !ok {
			continue
		}
		args := sig.Args
		if flags.SkipImplicitArgs {
			args = sig.ExplicitArgs()
		}
		if len(args) != len(argTps) {
			continue
		}
		strict := true
		convertible := true
		for i, a := range args {
			if !r.IsEqualTo(a.Type, argTps[i]) {
				strict = false
				if !r.isConvertibleNoFuncs(argTps[i], a.Type) {
					convertible = false
				}
			}
		}
		if strict {
			strictMatches = append(strictMatches, c)
		}
		if convertible && !flags.StrictArgs {
			convertibleMatches = append(convertibleMatches, c)
		} else if convertible && flags.StrictArgs && strict {
			convertibleMatches = append(convertibleMatches, c)
		}
	}

	if len(strictMatches) == 1 {
		return strictMatches, nil
	}

	// Step 5: widen to convertible-argument candidates.
	survivors := dedupFuncs(convertibleMatches)
	switch len(survivors) {
	case 0:
		return nil, &ErrNotFound{Name: name}
	case 1:
		return survivors, nil
	default:
		return nil, &ErrAmbiguous{Name: name, Candidates: survivors}
	}
}

func dedupFuncs(in []ids.FuncID) []ids.FuncID {
	seen := map[ids.FuncID]bool{}
	out := make([]ids.FuncID, 0, len(in))
	for _, id := range in {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (r *Registry) signatureOf(sigID ids.TypeID) (*Signature, bool) {
	t, ok := r.GetByID(sigID)
	if !ok || t.Kind != KindFunctionSignature || t.Signature == nil {
		return nil, false
	}
	return t.Signature, true
}

// isConvertibleNoFuncs implements the structural half of convertibility that
// does not require searching user-defined cast operators/constructors:
// identity, and primitive-to-primitive (all primitive pairs are
// inter-convertible with narrowing/widening rules applied at the Value
// level — see pkg/value.ConvertedTo). Searching for `operator <FQN>` cast
// methods or single-argument constructors additionally requires a
// FuncLookup-bearing caller; pkg/value.ConvertedTo performs that search
// itself via FindMethods and falls back to this for the primitive fast path.
func (r *Registry) isConvertibleNoFuncs(from, to ids.TypeID) bool {
	if r.IsEqualTo(from, to) {
		return true
	}
	ft, ok1 := r.GetByID(from)
	tt, ok2 := r.GetByID(to)
	if !ok1 || !ok2 {
		return false
	}
	fe, te := r.Effective(ft), r.Effective(tt)
	if fe.Meta.IsPrimitive && te.Meta.IsPrimitive {
		return true
	}
	return false
}

// IsConvertible is the public convertibility predicate used by overload
// resolution candidates outside this package (e.g. callgen argument
// matching) when a FuncLookup is available to also search cast operators
// and single-argument constructors.
func (r *Registry) IsConvertible(lookup FuncLookup, from, to ids.TypeID) bool {
	if r.isConvertibleNoFuncs(from, to) {
		return true
	}
	toType, ok := r.GetByID(to)
	if !ok {
		return false
	}
	fromType, ok := r.GetByID(from)
	if !ok {
		return false
	}
	// operator <FQN of to> on from
	if _, err := r.FindMethods(lookup, fromType, "operator "+toType.FQN, nil, nil, FindFlags{IgnoreArgs: true}); err == nil {
		return true
	}
	// single-argument constructor on to taking from
	ctorArgs := []ids.TypeID{from}
	if _, err := r.FindMethods(lookup, toType, "constructor", nil, ctorArgs, FindFlags{SkipImplicitArgs: true}); err == nil {
		return true
	}
	return false
}
