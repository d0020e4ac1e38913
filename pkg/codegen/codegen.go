// Package codegen drives spec.md C9's native back end end to end:
// classify -> lower -> assemble -> map executable, and the four
// purego.NewCallback bridge functions compiled native code uses to reach
// back into the VM for memory access, stack-slot addressing, raw argument
// reads and call dispatch.
//
// Grounded on pkg/ffi.Binder's reverse direction: ffi.Binder wraps a C
// function pointer so the VM can call it through purego.SyscallN; Compiler
// does the opposite — it wraps a Go method as a C-ABI entry point via
// purego.NewCallback so compiled native machine code can call it. Both
// rest on the same github.com/ebitengine/purego dependency this module
// already carries for C10.
package codegen

import (
	"fmt"
	"runtime/cgo"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/tsvm-lang/tsvm/pkg/asm"
	"github.com/tsvm-lang/tsvm/pkg/asmgen"
	"github.com/tsvm-lang/tsvm/pkg/assembler"
	"github.com/tsvm-lang/tsvm/pkg/ids"
	"github.com/tsvm-lang/tsvm/pkg/ir"
	"github.com/tsvm-lang/tsvm/pkg/regalloc"
	"github.com/tsvm-lang/tsvm/pkg/stacking"
	"github.com/tsvm-lang/tsvm/pkg/vm"
)

// Executable is one compiled function's mapped machine code, ready to run
// against a *vm.VM.
type Executable struct {
	fn   *ir.Function
	mem  *assembler.ExecutableMemory
	comp *Compiler
}

// Close releases the executable page. Safe to call once, after which
// Invoke must not be called again.
func (e *Executable) Close() error { return e.mem.Close() }

// Compiler holds one VM's bridge callbacks, built once and shared by every
// function it compiles — every Executable it produces calls back into the
// same running VM instance (spec.md C9: "the native back end targets one
// already-running VM", pkg/stacking.Prologue's doc comment on the baked-in
// register-file address).
type Compiler struct {
	v       *vm.VM
	tq      regalloc.TypeQuery
	bridges asmgen.BridgeAddrs
}

// NewCompiler builds the four call bridges and binds them to v. tq
// supplies the numeric-category lookup pkg/regalloc.Classify needs; pass
// the same TypeQuery the VM itself was constructed with.
func NewCompiler(v *vm.VM, tq regalloc.TypeQuery) (*Compiler, error) {
	c := &Compiler{v: v, tq: tq}

	c.bridges.Call = purego.NewCallback(func(handle, isDirect, target, argsPtr, argc uintptr) uintptr {
		return c.callBridge(handle, isDirect, target, argsPtr, argc)
	})
	c.bridges.Mem = purego.NewCallback(func(handle, op, addr, val uintptr) uintptr {
		return c.memBridge(handle, op, addr, val)
	})
	c.bridges.Slot = purego.NewCallback(func(handle, op, slotID, val uintptr) uintptr {
		return c.slotBridge(handle, op, slotID, val)
	})
	c.bridges.Arg = purego.NewCallback(func(handle, index uintptr) uintptr {
		return c.argBridge(handle, index)
	})

	return c, nil
}

// Compile lowers fn to machine code and maps it executable. The caller is
// responsible for Close()ing the returned Executable once it is no longer
// needed. A function containing a float or double `%` (OpFMod/OpDMod) is
// rejected with an error: the native lowering has no remainder instruction
// for it.
func (c *Compiler) Compile(fn *ir.Function) (*Executable, error) {
	for _, instr := range fn.Code {
		if instr.Op == ir.OpFMod || instr.Op == ir.OpDMod {
			return nil, fmt.Errorf("codegen: %s: float %% is not supported by the native back end", fn.Name)
		}
	}
	classes := regalloc.Classify(fn, c.tq)
	layout := stacking.ComputeLayout(maxParamArity(fn))
	compiled := asmgen.Lower(fn, classes, layout, c.bridges, regsBaseOf(c.v))

	code, err := assembler.Assemble(compiled)
	if err != nil {
		return nil, fmt.Errorf("codegen: %s: %w", fn.Name, err)
	}
	mem, err := assembler.MapExecutable(code)
	if err != nil {
		return nil, fmt.Errorf("codegen: %s: %w", fn.Name, err)
	}
	return &Executable{fn: fn, mem: mem, comp: c}, nil
}

func regsBaseOf(v *vm.VM) uint64 {
	regs := v.Registers()
	return uint64(uintptr(unsafe.Pointer(&regs[0])))
}

// maxParamArity scans fn for the largest run of OpParam instructions
// immediately preceding an OpCall, the frame's argument-buffer size.
func maxParamArity(fn *ir.Function) int {
	max, run := 0, 0
	for _, instr := range fn.Code {
		switch instr.Op {
		case ir.OpParam:
			run++
			if run > max {
				max = run
			}
		case ir.OpCall:
			run = 0
		}
	}
	return max
}

// frameState is the per-invocation token a compiled function's bridge
// calls thread through: its cgo.Handle is RDI's incoming value at native
// entry, stashed into R12 by the prologue and passed back unchanged to
// every bridge call a function body makes.
//
// Slot addresses are memoized per call the same way pkg/vm's own
// v.slotAddrs is (reset every Execute call): this is deliberately NOT the
// VM's own slotAddrs map, since that map only exists while an interpreter
// Execute frame is active and would be nil (and panic on first write) for
// a native call that never goes through Execute at all.
type frameState struct {
	vm    *vm.VM
	args  []uint64
	slots map[ir.Slot]uint64
	err   error
}

// Invoke pre-binds args into fn's register-kind/stack-kind argument Values
// the same way vm.Execute's own argument-binding loop does, then runs the
// compiled entry point and returns the value left in RAX (or the error a
// bridge call recorded, if any memory/call bridge failed).
func (e *Executable) Invoke(args []uint64) (uint64, error) {
	fs := &frameState{vm: e.comp.v, args: args, slots: make(map[ir.Slot]uint64)}
	handle := cgo.NewHandle(fs)
	defer handle.Delete()

	regs := e.comp.v.Registers()
	for i, a := range args {
		if i >= len(e.fn.Args) {
			break
		}
		switch e.fn.Args[i].Kind {
		case ir.KindRegister:
			regs[int(e.fn.Args[i].Reg)] = a
		case ir.KindStack:
			addr := fs.slotAddr(e.fn.Args[i].Slot)
			if err := e.comp.v.StoreMem(addr, a); err != nil {
				return 0, err
			}
		}
	}

	ret, _, _ := purego.SyscallN(e.mem.Addr, uintptr(handle))
	if fs.err != nil {
		return 0, fs.err
	}
	return uint64(ret), nil
}

func (fs *frameState) slotAddr(slot ir.Slot) uint64 {
	if addr, ok := fs.slots[slot]; ok {
		return addr
	}
	regs := fs.vm.Registers()
	regs[vm.RegSP] -= 8
	addr := regs[vm.RegSP]
	fs.slots[slot] = addr
	return addr
}

func handleFrame(h uintptr) *frameState {
	return cgo.Handle(h).Value().(*frameState)
}

func (c *Compiler) callBridge(handle, isDirect, target, argsPtr, argc uintptr) uintptr {
	fs := handleFrame(handle)
	args := readArgs(argsPtr, int(argc))
	var result uint64
	var err error
	if isDirect != 0 {
		result, err = fs.vm.CallByID(ids.FuncID(target), args)
	} else {
		result, err = fs.vm.CallClosure(uint64(target), args)
	}
	if err != nil {
		fs.err = err
	}
	return uintptr(result)
}

func (c *Compiler) memBridge(handle, op, addr, val uintptr) uintptr {
	fs := handleFrame(handle)
	if op == 0 {
		v, err := fs.vm.LoadMem(uint64(addr))
		if err != nil {
			fs.err = err
		}
		return uintptr(v)
	}
	if err := fs.vm.StoreMem(uint64(addr), uint64(val)); err != nil {
		fs.err = err
	}
	return 0
}

func (c *Compiler) slotBridge(handle, op, slotID, val uintptr) uintptr {
	fs := handleFrame(handle)
	addr := fs.slotAddr(ir.Slot(slotID))
	if op == 0 {
		return uintptr(addr)
	}
	if err := fs.vm.StoreMem(addr, uint64(val)); err != nil {
		fs.err = err
	}
	return 0
}

func (c *Compiler) argBridge(handle, index uintptr) uintptr {
	fs := handleFrame(handle)
	if int(index) < len(fs.args) {
		return uintptr(fs.args[index])
	}
	return 0
}

// readArgs views argc consecutive uint64 words starting at argsPtr (the
// native frame's argument scratch buffer, pkg/stacking.Layout.ArgBufOffset)
// as a Go slice, copying them out so the slice doesn't keep pointing into
// the compiled function's stack frame once the bridge call returns.
func readArgs(argsPtr uintptr, argc int) []uint64 {
	if argc == 0 {
		return nil
	}
	raw := unsafe.Slice((*uint64)(unsafe.Pointer(argsPtr)), argc)
	out := make([]uint64, argc)
	copy(out, raw)
	return out
}
