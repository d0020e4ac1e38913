package vm

import (
	"fmt"

	"github.com/tsvm-lang/tsvm/internal/diag"
	"github.com/tsvm-lang/tsvm/pkg/funcs"
	"github.com/tsvm-lang/tsvm/pkg/ids"
	"github.com/tsvm-lang/tsvm/pkg/ir"
)

// Program supplies the compiled IR for every script function the VM may
// call into, keyed by id — the in-memory equivalent of a loaded module's
// code section (spec.md C11/pkg/module owns the on-disk encoding; this is
// the decoded view the VM walks).
type Program interface {
	Function(id ids.FuncID) (*ir.Function, bool)
}

// HostCaller invokes a host (FFI-bound) function's wrapper with raw
// register-width arguments and returns its raw result (spec.md §4.10's
// wrapper triple; kept behind an interface so this package does not import
// pkg/ffi — the VM only needs to trigger the call, not build the wrapper).
type HostCaller interface {
	Call(w *funcs.WrappedFunction, args []uint64) (uint64, error)
}

// TypeQuery is the narrow view of the type registry the `cvt` opcode needs
// at run time: its numeric category and width, not the full descriptor.
// Kept as an interface so this package does not import pkg/types, the way
// pkg/types.FuncLookup keeps pkg/types from importing pkg/funcs.
type TypeQuery interface {
	CategoryOf(t ids.TypeID) ir.Category
	WidthOf(t ids.TypeID) int
}

// VM is the register/stack interpreter (spec.md C8).
type VM struct {
	state   *State
	heap    *Heap
	funcs   *funcs.Registry
	program Program
	host    HostCaller
	types   TypeQuery

	nestLevel   int
	pendingArgs []uint64
	slotAddrs   map[ir.Slot]uint64
	callArgs    []uint64
}

// New creates a VM with a stack of stackSize bytes.
func New(stackSize uint64, fr *funcs.Registry, program Program, host HostCaller, types TypeQuery) *VM {
	return &VM{
		state:   NewState(stackSize),
		heap:    NewHeap(stackSize),
		funcs:   fr,
		program: program,
		host:    host,
		types:   types,
	}
}

// IsExecuting reports whether the VM is mid-execution, including nested
// calls re-entered through a host callback (spec.md §4.8).
func (v *VM) IsExecuting() bool { return v.nestLevel > 0 }

// Execute runs fn starting at the beginning of its code, binding args in
// order to fn.Args, and returns the operand of the OpRet that ends it (0
// for an OpRet without one). When execution reaches OpTerm or runs off the
// end of the code, it returns the value left in the v0 register.
//
// Grounded on original_source/src/vm/VM.cpp's execute/executeInternal split:
// ip/ra are pushed on entry and popped on exit so nested entry preserves
// them, and a single dense switch loop drives dispatch (there is no
// single-step trace hook).
func (v *VM) Execute(fn *ir.Function, args []uint64) (uint64, error) {
	v.nestLevel++
	defer func() { v.nestLevel-- }()

	if v.nestLevel == 1 {
		v.state.Registers[RegIP] = 0
		v.state.Registers[RegRA] = 0
	}
	if err := v.state.Push(RegIP); err != nil {
		return 0, err
	}
	if err := v.state.Push(RegRA); err != nil {
		return 0, err
	}
	defer func() {
		v.state.Pop(RegRA)
		v.state.Pop(RegIP)
	}()

	for i, a := range args {
		if i < len(fn.Args) {
			v.setReg(fn.Args[i], a)
		}
	}

	savedSlots, savedArgs := v.slotAddrs, v.callArgs
	v.slotAddrs = make(map[ir.Slot]uint64)
	v.callArgs = args
	defer func() { v.slotAddrs, v.callArgs = savedSlots, savedArgs }()

	code := fn.Code
	ip := 0
	for ip < len(code) {
		instr := code[ip]
		next := ip + 1
		term := false

		switch instr.Op {
		case ir.OpNoop, ir.OpLabel, ir.OpReserve, ir.OpResolve:
			// no runtime effect; label offsets are resolved into
			// fn.LabelOffsets by the optimizer's label-offset pass (spec.md
			// §4.7).

		case ir.OpTerm:
			term = true

		case ir.OpLoad:
			if err := v.execLoad(instr); err != nil {
				return 0, err
			}
		case ir.OpStore:
			if err := v.execStore(instr); err != nil {
				return 0, err
			}

		case ir.OpStackAlloc:
			size := instr.Imm.Uint
			v.state.Registers[RegSP] -= size
		case ir.OpStackFree:
			size := instr.Imm.Uint
			v.state.Registers[RegSP] += size

		case ir.OpIAdd, ir.OpISub, ir.OpIMul, ir.OpIDiv, ir.OpIMod,
			ir.OpUAdd, ir.OpUSub, ir.OpUMul, ir.OpUDiv, ir.OpUMod,
			ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv, ir.OpFMod,
			ir.OpDAdd, ir.OpDSub, ir.OpDMul, ir.OpDDiv, ir.OpDMod,
			ir.OpBAnd, ir.OpBOr, ir.OpBXor, ir.OpShl, ir.OpShr,
			ir.OpLAnd, ir.OpLOr:
			v.execBinary(instr)

		case ir.OpIEq, ir.OpINeq, ir.OpILt, ir.OpIGt, ir.OpILte, ir.OpIGte,
			ir.OpUEq, ir.OpUNeq, ir.OpULt, ir.OpUGt, ir.OpULte, ir.OpUGte,
			ir.OpFEq, ir.OpFNeq, ir.OpFLt, ir.OpFGt, ir.OpFLte, ir.OpFGte,
			ir.OpDEq, ir.OpDNeq, ir.OpDLt, ir.OpDGt, ir.OpDLte, ir.OpDGte:
			v.execCompare(instr)

		case ir.OpAssign:
			v.setReg(instr.Operands[0], v.getReg(instr.Operands[1]))
		case ir.OpCvt:
			v.execConvert(instr)
		case ir.OpNeg:
			switch v.types.CategoryOf(instr.Operands[1].Type) {
			case ir.CatF32:
				v.execUnary(instr, func(u uint64) uint64 { return u ^ (1 << 31) })
			case ir.CatF64:
				v.execUnary(instr, func(u uint64) uint64 { return u ^ (1 << 63) })
			default:
				v.execUnary(instr, func(u uint64) uint64 { return negBits(u, instr.Operands[1].Type) })
			}
		case ir.OpNot:
			v.setReg(instr.Operands[0], boolToU64(v.getReg(instr.Operands[1]) == 0))
		case ir.OpInv:
			v.execUnary(instr, func(u uint64) uint64 { return ^u })
		case ir.OpInc:
			v.execUnary(instr, func(u uint64) uint64 { return incBits(u, instr.Operands[1].Type) })
		case ir.OpDec:
			v.execUnary(instr, func(u uint64) uint64 { return decBits(u, instr.Operands[1].Type) })

		case ir.OpBranch:
			if v.getReg(instr.Operands[0]) != 0 {
				next = v.resolveLabel(fn, instr.Target)
			}
		case ir.OpJump:
			next = v.resolveLabel(fn, instr.Target)
		case ir.OpRet:
			if instr.NumOperands > 0 {
				return v.getReg(instr.Operands[0]), nil
			}
			return 0, nil

		case ir.OpParam:
			v.pendingArgs = append(v.pendingArgs, v.getReg(instr.Operands[0]))
		case ir.OpCall:
			res, err := v.execCall(instr)
			if err != nil {
				return 0, err
			}
			if instr.NumOperands > 0 {
				v.setReg(instr.Operands[0], res)
			}
			v.pendingArgs = nil

		default:
			return 0, fmt.Errorf("vm: %w: opcode %s", diag.ErrInvalidOpcode, instr.Op)
		}

		if term {
			break
		}
		ip = next
	}

	return v.state.Registers[int(RegV0)], nil
}

func (v *VM) resolveLabel(fn *ir.Function, target ir.Label) int {
	if off, ok := fn.LabelOffsets[target]; ok {
		return off
	}
	return len(fn.Code) // unresolved label: fall off the end rather than loop forever
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
