// Package ids defines the stable integer identifiers shared across the type
// registry (pkg/types) and the function registry (pkg/funcs). Types
// reference functions (methods, getters, setters, destructors) and functions
// reference types (signatures, arguments); keeping both id kinds in a leaf
// package with no dependencies breaks that cycle without either package
// importing the other (spec.md §9, "Cyclic dependencies between types and
// functions").
package ids

import "hash/fnv"

// TypeID is a stable identifier derived from a type's fully qualified name.
// Equal FQNs always hash to equal ids (spec.md invariant I2).
type TypeID uint64

// FuncID is a monotonically increasing identifier allocated by the function
// registry. Unlike TypeID it is not content-derived: two functions can share
// a name and signature only where one replaces the other (idempotent
// registration), never where both are live at once.
type FuncID uint64

// NoType is the distinguished absence of a type id (e.g. a constructor with
// no return type). It is not the poison type id; poison is a real registered
// type so that Value.Type() always returns something comparable.
const NoType TypeID = 0

// NoFunc is the distinguished absence of a function id (e.g. a class with no
// destructor).
const NoFunc FuncID = 0

// HashFQN derives a TypeID from a fully qualified name. FNV-1a is used
// because it is a stdlib-only, dependency-free, stable, non-cryptographic
// hash appropriate for an interning key — the teacher corpus never needed a
// hashed identity scheme (ralph-cc's types are resolved by AST identity), so
// this is grounded on the general technique the source codebase
// (original_source's DataType.cpp) uses for matching host types by hash
// rather than on a specific example repo.
func HashFQN(fqn string) TypeID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fqn))
	v := h.Sum64()
	if v == uint64(NoType) {
		// Vanishingly unlikely, but keep 0 reserved for NoType.
		v = 1
	}
	return TypeID(v)
}
