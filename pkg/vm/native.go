package vm

import "github.com/tsvm-lang/tsvm/pkg/ids"

// Registers exposes the VM's shared register file so the native back end
// (pkg/codegen) can bake its address into compiled code as a fixed
// base-pointer register, the same array getReg/setReg index into (spec.md
// C9). The returned pointer is stable for the VM's lifetime: State is
// allocated once in New/NewState and never reallocated.
func (v *VM) Registers() *[TotalRegisters]uint64 { return &v.state.Registers }

// LoadMem/StoreMem expose the guard-checked stack access execLoad/execStore
// use, for native code's memory-bridge calls (spec.md §4.8).
func (v *VM) LoadMem(addr uint64) (uint64, error) { return v.state.Stack.Load64(addr) }

func (v *VM) StoreMem(addr, val uint64) error { return v.state.Stack.Store64(addr, val) }

// CallByID dispatches a direct call, for native code's call-bridge: the
// same path execCall takes when the callee operand carries a known
// function id.
func (v *VM) CallByID(id ids.FuncID, args []uint64) (uint64, error) {
	return v.callFunc(id, args)
}

// CallClosure dispatches an indirect call through a closure heap address,
// mirroring execCall's other branch: resolve the heap record, prepend
// this/capture, and call through.
func (v *VM) CallClosure(addr uint64, args []uint64) (uint64, error) {
	closure, ok := v.heap.Closure(addr)
	if !ok {
		return 0, &closureError{addr: addr}
	}
	callArgs := append([]uint64{closure.This, closure.Capture}, args...)
	return v.callFunc(closure.Target, callArgs)
}

type closureError struct{ addr uint64 }

func (e *closureError) Error() string {
	return "vm: indirect call through a non-closure address"
}
