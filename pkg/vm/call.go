package vm

import (
	"fmt"

	"github.com/tsvm-lang/tsvm/pkg/ids"
	"github.com/tsvm-lang/tsvm/pkg/ir"
)

// execCall implements spec.md §4.8's call dispatch: a direct call when the
// callee operand is a known function reference, or the indirect ("jalr")
// path when it is a closure Value — read target/this/capture off a heap
// record and branch on the target function's host flag.
func (v *VM) execCall(instr ir.Instruction) (uint64, error) {
	callee := instr.Operands[1]
	args := v.pendingArgs

	if callee.Flags.IsFunction && callee.Flags.IsFunctionID {
		return v.callFunc(callee.Imm.FuncRef, args)
	}

	addr := v.getReg(callee)
	closure, ok := v.heap.Closure(addr)
	if !ok {
		return 0, fmt.Errorf("vm: indirect call through a non-closure address 0x%x", addr)
	}
	callArgs := append([]uint64{closure.This, closure.Capture}, args...)
	return v.callFunc(closure.Target, callArgs)
}

// callFunc resolves target to either a script function (recurse into
// Execute, bumping the nesting counter) or a host function (dispatch
// through the injected HostCaller using its wrapper triple).
func (v *VM) callFunc(target ids.FuncID, args []uint64) (uint64, error) {
	fd, ok := v.funcs.Get(target)
	if !ok {
		return 0, fmt.Errorf("vm: call to unknown function id %d", target)
	}

	if fd.Entry.IsHost {
		if v.host == nil || fd.Entry.Wrapped == nil {
			return 0, fmt.Errorf("vm: host function %q has no wrapper installed", fd.Name)
		}
		return v.host.Call(fd.Entry.Wrapped, args)
	}

	fn, ok := v.program.Function(target)
	if !ok {
		return 0, fmt.Errorf("vm: script function %q has no compiled body", fd.Name)
	}
	return v.Execute(fn, args)
}
