// Package funcs implements the function registry (spec.md C2): stable
// integer identifiers for every callable, script or host, plus the wrapper
// metadata the VM and native backend both need to dispatch host calls and
// indirect (closure) calls through the same code path.
package funcs

import (
	"fmt"
	"sync"

	"github.com/tsvm-lang/tsvm/pkg/ids"
	"github.com/tsvm-lang/tsvm/pkg/types"
)

// Flags are the boolean properties of a function descriptor (spec.md §3).
type Flags struct {
	IsHost     bool
	IsExternal bool
	IsMethod   bool
	IsThiscall bool
	IsTemplate bool
}

// WrappedFunction carries the (up to three) addresses a host binding
// produces at bind time (spec.md §3, §4.10). Addresses are raw code
// pointers — uintptr — so that this package does not need to depend on
// pkg/ffi (which builds them) or pkg/assembler (which calls them).
type WrappedFunction struct {
	CdeclWrapper   uintptr // script -> host, return by value/register
	SrvWrapper     uintptr // script -> host, return via hidden pointer
	CallMethodFunc uintptr // adapter prepending `this` for non-static host methods
	NativeFunc     uintptr // raw host code address wrapped by the above
}

// Entry is where a function's code lives: a script function's IR is a byte
// offset into its module's code section, while a host function's "entry" is
// its WrappedFunction triple (spec.md §3).
type Entry struct {
	IsHost       bool
	ModuleOffset uint32 // valid when !IsHost
	Wrapped      *WrappedFunction // valid when IsHost
}

// Function is a function descriptor (spec.md §3).
type Function struct {
	ID          ids.FuncID
	Name        string
	SignatureID ids.TypeID
	Flags       Flags
	Access      types.Access
	Entry       Entry
}

// Registry allocates monotonically increasing function ids and stores every
// Function by id, with reverse lookup by entry address for host bindings
// (spec.md §4.2).
type Registry struct {
	mu        sync.RWMutex
	byID      map[ids.FuncID]*Function
	byKey     map[nameSig]ids.FuncID // (name, signature) -> id, for idempotent registration
	byAddress map[uintptr]ids.FuncID // reverse lookup by entry/wrapper address
	next      ids.FuncID
}

type nameSig struct {
	name string
	sig  ids.TypeID
}

// NewRegistry creates an empty function registry. ids start at 1; 0
// (ids.NoFunc) is reserved for "no destructor"/"no setter" absence.
func NewRegistry() *Registry {
	return &Registry{
		byID:      make(map[ids.FuncID]*Function),
		byKey:     make(map[nameSig]ids.FuncID),
		byAddress: make(map[uintptr]ids.FuncID),
		next:      1,
	}
}

// Register allocates (or returns the existing) id for a function. Same
// (name, signature id) pair is idempotent: re-registering returns the
// original id without allocating a new one, updating entry/wrapper metadata
// in place (a host type re-bound with a fresh wrapper address still needs to
// resolve to the id everything else already captured).
func (r *Registry) Register(f *Function) ids.FuncID {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := nameSig{name: f.Name, sig: f.SignatureID}
	if existingID, ok := r.byKey[key]; ok {
		existing := r.byID[existingID]
		existing.Flags = f.Flags
		existing.Access = f.Access
		existing.Entry = f.Entry
		r.indexAddresses(existing)
		return existingID
	}

	id := r.next
	r.next++
	f.ID = id
	r.byID[id] = f
	r.byKey[key] = id
	r.indexAddresses(f)
	return id
}

func (r *Registry) indexAddresses(f *Function) {
	if !f.Entry.IsHost || f.Entry.Wrapped == nil {
		return
	}
	w := f.Entry.Wrapped
	for _, addr := range []uintptr{w.CdeclWrapper, w.SrvWrapper, w.CallMethodFunc, w.NativeFunc} {
		if addr != 0 {
			r.byAddress[addr] = f.ID
		}
	}
}

// SetScriptEntry records the module-code-section offset a script function's
// IR was committed to. No machine-code entry address is stored here; this
// registry's ModuleOffset field is for the VM/module path only.
func (r *Registry) SetScriptEntry(id ids.FuncID, moduleOffset uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("funcs: unknown function id %d", id)
	}
	f.Entry = Entry{IsHost: false, ModuleOffset: moduleOffset}
	return nil
}

// Get looks up a function by id.
func (r *Registry) Get(id ids.FuncID) (*Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byID[id]
	return f, ok
}

// ByAddress reverse-looks-up a function id from one of its wrapper/entry
// addresses — used by the VM when a closure's target descriptor is resolved
// only as a raw pointer (spec.md §4.8 "Indirect calls").
func (r *Registry) ByAddress(addr uintptr) (ids.FuncID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAddress[addr]
	return id, ok
}

// Name implements types.FuncLookup.
func (r *Registry) Name(id ids.FuncID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.byID[id]; ok {
		return f.Name
	}
	return ""
}

// SignatureID implements types.FuncLookup.
func (r *Registry) SignatureID(id ids.FuncID) ids.TypeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.byID[id]; ok {
		return f.SignatureID
	}
	return ids.NoType
}

// IsPrivate implements types.FuncLookup.
func (r *Registry) IsPrivate(id ids.FuncID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.byID[id]; ok {
		return f.Access == types.Private
	}
	return false
}

var _ types.FuncLookup = (*Registry)(nil)
