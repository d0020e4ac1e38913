// Package regalloc assigns each of an ir.Function's virtual registers a
// machine-register class (spec.md C9 "register allocation"): general-
// purpose or XMM, the one piece of information pkg/asmgen needs to pick
// `mov`/`add` vs `movsd`/`addsd` for a given ir.Reg.
//
// This generalizes the teacher's pkg/regalloc — iterated register
// coalescing (interference.go/irc.go) mapping many virtual registers onto
// a small physical set under spill pressure — down to a much simpler
// scheme, because this back end's virtual registers already live one-to-
// one in the VM's own 256-slot register file (pkg/vm/ops.go's getReg
// comment: "virtual registers are assumed pre-allocated 1:1 into the
// 256-slot file"). Native code addresses that same shared array through a
// fixed base-pointer register instead of coalescing registers onto a
// bounded physical set, so there is no interference graph to build; what
// remains genuinely this package's job is classifying each register's
// representation (general-purpose 64-bit vs XMM f32/f64), which an
// x86-64 instruction must know before it can be selected at all.
package regalloc

import (
	"github.com/tsvm-lang/tsvm/pkg/ids"
	"github.com/tsvm-lang/tsvm/pkg/ir"
	"github.com/tsvm-lang/tsvm/pkg/loc"
)

// TypeQuery is the narrow category lookup Classify needs for registers
// whose defining instruction doesn't itself pin down a numeric category
// (OpAssign, OpLoad, OpCall's result) — mirrors pkg/vm.TypeQuery's shape
// so a caller that already built one (internal/engine's typeQuery) can
// adapt it here with one line instead of two separate implementations.
type TypeQuery interface {
	CategoryOf(t ids.TypeID) ir.Category
}

// Classes maps every virtual register a function defines to its machine
// class.
type Classes map[ir.Reg]loc.Typ

// Classify scans fn.Code and fn.Args and assigns every virtual register a
// loc.Typ (TFloat32/TFloat64/TInt64 — this back end never needs to
// distinguish 32-bit from 64-bit integers or pointers at the instruction-
// selection level, since every GP arithmetic op already operates on the
// VM's 64-bit register slots the same way pkg/vm/ops.go's execBinary does:
// native 64-bit ADD wraps mod 2^64 exactly like Go's int64 addition, so a
// declared i32 register still gets 64-bit GP treatment; only OpCvt's
// explicit truncation cares about width, and that is handled by its Kind,
// not by the register's class).
func Classify(fn *ir.Function, tq TypeQuery) Classes {
	classes := make(Classes, fn.NumRegisters())

	for _, instr := range fn.Code {
		dest, ok := destOperand(instr)
		if !ok || dest.Kind != ir.KindRegister {
			continue
		}
		if _, seen := classes[dest.Reg]; seen {
			continue
		}
		classes[dest.Reg] = classifyOne(instr, dest, tq)
	}

	for _, a := range fn.Args {
		if a.Kind != ir.KindRegister {
			continue
		}
		if _, seen := classes[a.Reg]; !seen {
			classes[a.Reg] = floatOrInt(tq, a.Type)
		}
	}

	return classes
}

// destOperand reports the Value an instruction defines, if any.
func destOperand(instr ir.Instruction) (ir.Value, bool) {
	switch instr.Op {
	case ir.OpLoad, ir.OpAssign, ir.OpCvt, ir.OpNeg, ir.OpNot, ir.OpInv, ir.OpInc, ir.OpDec,
		ir.OpIAdd, ir.OpISub, ir.OpIMul, ir.OpIDiv, ir.OpIMod,
		ir.OpUAdd, ir.OpUSub, ir.OpUMul, ir.OpUDiv, ir.OpUMod,
		ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv, ir.OpFMod,
		ir.OpDAdd, ir.OpDSub, ir.OpDMul, ir.OpDDiv, ir.OpDMod,
		ir.OpBAnd, ir.OpBOr, ir.OpBXor, ir.OpShl, ir.OpShr, ir.OpLAnd, ir.OpLOr,
		ir.OpIEq, ir.OpINeq, ir.OpILt, ir.OpIGt, ir.OpILte, ir.OpIGte,
		ir.OpUEq, ir.OpUNeq, ir.OpULt, ir.OpUGt, ir.OpULte, ir.OpUGte,
		ir.OpFEq, ir.OpFNeq, ir.OpFLt, ir.OpFGt, ir.OpFLte, ir.OpFGte,
		ir.OpDEq, ir.OpDNeq, ir.OpDLt, ir.OpDGt, ir.OpDLte, ir.OpDGte,
		ir.OpCall:
		if instr.NumOperands > 0 {
			return instr.Operands[0], true
		}
	}
	return ir.Value{}, false
}

// classifyOne picks dest's class from the opcode that defines it, falling
// back to its static Type for opcodes whose result category the operator
// doesn't itself pin down (assign/load/call/cvt).
func classifyOne(instr ir.Instruction, dest ir.Value, tq TypeQuery) loc.Typ {
	switch instr.Op {
	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv, ir.OpFMod:
		return loc.TFloat32
	case ir.OpDAdd, ir.OpDSub, ir.OpDMul, ir.OpDDiv, ir.OpDMod:
		return loc.TFloat64
	case ir.OpIEq, ir.OpINeq, ir.OpILt, ir.OpIGt, ir.OpILte, ir.OpIGte,
		ir.OpUEq, ir.OpUNeq, ir.OpULt, ir.OpUGt, ir.OpULte, ir.OpUGte,
		ir.OpFEq, ir.OpFNeq, ir.OpFLt, ir.OpFGt, ir.OpFLte, ir.OpFGte,
		ir.OpDEq, ir.OpDNeq, ir.OpDLt, ir.OpDGt, ir.OpDLte, ir.OpDGte,
		ir.OpNot:
		return loc.TInt64 // comparisons/not always produce a 0/1 word, never an XMM value
	default:
		return floatOrInt(tq, dest.Type)
	}
}

func floatOrInt(tq TypeQuery, t ids.TypeID) loc.Typ {
	if tq == nil {
		return loc.TInt64
	}
	switch tq.CategoryOf(t) {
	case ir.CatF32:
		return loc.TFloat32
	case ir.CatF64:
		return loc.TFloat64
	default:
		return loc.TInt64
	}
}
