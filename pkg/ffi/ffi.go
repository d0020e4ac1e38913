// Package ffi implements the bind-time wrapper construction spec.md C10
// describes: for each host function signature, build the up-to-three
// wrapper entry points (cdecl_wrapper, srv_wrapper, call_method_func) that
// let the VM and native back-end invoke host code through one uniform
// calling convention.
//
// The source (original_source/src/vm/VM.cpp, original_source/src/bind/)
// builds these wrappers with libffi's ffi_prep_cif/ffi_call at bind time.
// Go code cannot link a C ABI description at runtime without cgo, so this
// package is grounded instead on github.com/ebitengine/purego — confirmed
// as a real dependency of the pack's IntuitionAmiga-IntuitionEngine and
// DataDog-datadog-agent manifests — whose NewCallback (Go func -> C
// function pointer) and SyscallN (call a raw C function pointer with
// register-width arguments) together cover exactly libffi's two directions
// without cgo. Spec.md §9's Design Notes call for "a single binding record
// (callee pointer, argument type tags, return type tag, is-method flag)
// interpreted by a small, reusable shim" in place of the source's
// template-metaprogrammed binder — Binding below is that record.
package ffi

import (
	"fmt"

	"github.com/ebitengine/purego"

	"github.com/tsvm-lang/tsvm/pkg/funcs"
	"github.com/tsvm-lang/tsvm/pkg/types"
)

// ArgTag is a coarse runtime type tag for a bound argument or return value:
// enough information for the shim to marshal a uint64 register slot to/from
// the right Go type, without needing the full type registry at call time.
type ArgTag int

const (
	TagI32 ArgTag = iota
	TagI64
	TagU32
	TagU64
	TagF32
	TagF64
	TagPointer
)

// TagOf derives an ArgTag from a primitive Type's metadata.
func TagOf(t *types.Type) ArgTag {
	switch {
	case t.Meta.IsFloatingPoint && t.Meta.Size == 4:
		return TagF32
	case t.Meta.IsFloatingPoint:
		return TagF64
	case t.Meta.IsIntegral && t.Meta.IsUnsigned && t.Meta.Size <= 4:
		return TagU32
	case t.Meta.IsIntegral && t.Meta.IsUnsigned:
		return TagU64
	case t.Meta.IsIntegral && t.Meta.Size <= 4:
		return TagI32
	case t.Meta.IsIntegral:
		return TagI64
	default:
		return TagPointer
	}
}

// Binding is the single record spec.md §9 asks for in place of the source's
// compile-time-metaprogrammed binder: a callee pointer, its argument/return
// tags, and whether it is a non-static method (so call_method_func knows to
// prepend `this`).
type Binding struct {
	Name       string
	Callee     uintptr
	ArgTags    []ArgTag
	ReturnTag  ArgTag
	ReturnsBig bool // true when the return type does not fit a register: route through srv_wrapper
	IsMethod   bool
}

// Binder builds wrapper triples for host bindings and installs them on a
// function registry entry.
type Binder struct {
	lib uintptr // dlopen handle of the shared library Callee addresses resolve against, when bound by symbol name rather than an in-process function pointer
}

// NewBinder creates a Binder. lib is the purego-opened library handle hosted
// functions are resolved from; pass 0 when Callee pointers are already
// resolved in-process addresses (the common case for statically linked
// host bindings, per original_source's DataTypeRegistry binding calls which
// bind C++ member/free functions directly rather than by dlsym name).
func NewBinder(lib uintptr) *Binder { return &Binder{lib: lib} }

// Wrap builds b's wrapper triple (spec.md §4.10) and returns the completed
// WrappedFunction for installation into the function registry.
func (bd *Binder) Wrap(b Binding) (*funcs.WrappedFunction, error) {
	if b.Callee == 0 {
		return nil, fmt.Errorf("ffi: binding %q has a nil callee", b.Name)
	}

	w := &funcs.WrappedFunction{NativeFunc: b.Callee}

	if b.ReturnsBig {
		w.SrvWrapper = bd.makeSrvWrapper(b)
	} else {
		w.CdeclWrapper = bd.makeCdeclWrapper(b)
	}
	if b.IsMethod {
		w.CallMethodFunc = bd.makeCallMethodFunc(b)
	}
	return w, nil
}

// maxWrapperArgs bounds the explicit-argument arity these wrappers cover.
// purego.NewCallback reflects on a concrete (non-variadic) Go function
// signature to build its C-callable trampoline, so each arity needs its own
// generated closure rather than one variadic implementation — the same
// fixed-arity-family shape purego's own examples use for RegisterFunc.
const maxWrapperArgs = 6

// makeCdeclWrapper builds the ordinary-return wrapper (spec.md §4.10
// "value-in-register"): a Go callback purego exposes as a C function
// pointer, which relays straight through to the bound native callee via
// SyscallN and returns its raw register result.
func (bd *Binder) makeCdeclWrapper(b Binding) uintptr {
	n := len(b.ArgTags)
	switch {
	case n == 0:
		return purego.NewCallback(func() uintptr {
			ret, _, _ := purego.SyscallN(b.Callee)
			return ret
		})
	case n == 1:
		return purego.NewCallback(func(a0 uintptr) uintptr {
			ret, _, _ := purego.SyscallN(b.Callee, a0)
			return ret
		})
	case n == 2:
		return purego.NewCallback(func(a0, a1 uintptr) uintptr {
			ret, _, _ := purego.SyscallN(b.Callee, a0, a1)
			return ret
		})
	case n == 3:
		return purego.NewCallback(func(a0, a1, a2 uintptr) uintptr {
			ret, _, _ := purego.SyscallN(b.Callee, a0, a1, a2)
			return ret
		})
	case n == 4:
		return purego.NewCallback(func(a0, a1, a2, a3 uintptr) uintptr {
			ret, _, _ := purego.SyscallN(b.Callee, a0, a1, a2, a3)
			return ret
		})
	default:
		return purego.NewCallback(func(a0, a1, a2, a3, a4, a5 uintptr) uintptr {
			ret, _, _ := purego.SyscallN(b.Callee, a0, a1, a2, a3, a4, a5)
			return ret
		})
	}
}

// makeSrvWrapper builds the hidden-return-pointer wrapper: the first
// argument is the caller-allocated return slot's address (spec.md §4.6 step
// 3's ret_ptr), matching the System V AMD64 ABI convention for returning a
// value larger than two registers.
func (bd *Binder) makeSrvWrapper(b Binding) uintptr {
	return purego.NewCallback(func(retPtr, a0, a1, a2, a3, a4 uintptr) uintptr {
		purego.SyscallN(b.Callee, retPtr, a0, a1, a2, a3, a4)
		return 0
	})
}

// makeCallMethodFunc builds the adapter that prepends `this` ahead of the
// explicit arguments for a non-static host method (spec.md §4.10
// "adapts to the C++ thiscall layout used by the host").
func (bd *Binder) makeCallMethodFunc(b Binding) uintptr {
	return purego.NewCallback(func(self, a0, a1, a2, a3, a4 uintptr) uintptr {
		ret, _, _ := purego.SyscallN(b.Callee, self, a0, a1, a2, a3, a4)
		return ret
	})
}

// Caller implements pkg/vm.HostCaller: the VM's own "call a host wrapper
// with raw register-width arguments" step, routed through purego.SyscallN
// directly against the bound native function rather than through the
// callback trampolines above (those exist for the opposite direction,
// script/native code calling into a host-visible entry point). Kept as its
// own zero-size type, not a Binder method, so pkg/vm can depend on this
// interface without depending on Binder's bind-time state.
type Caller struct{}

func (Caller) Call(w *funcs.WrappedFunction, args []uint64) (uint64, error) {
	if w == nil || w.NativeFunc == 0 {
		return 0, fmt.Errorf("ffi: call through a nil native function")
	}
	uargs := make([]uintptr, len(args))
	for i, a := range args {
		uargs[i] = uintptr(a)
	}
	ret, _, _ := purego.SyscallN(w.NativeFunc, uargs...)
	return uint64(ret), nil
}
