package optimize

import (
	"math"

	"github.com/tsvm-lang/tsvm/pkg/ir"
)

// ConstantFold rewrites a binary arithmetic/compare/bitwise instruction
// whose two source operands are both immediates into a single `assign` of
// the computed immediate, and a unary op (neg/not/inv) over an immediate
// operand likewise.
//
// evalBinaryImm/evalUnaryImm deliberately duplicate pkg/vm/ops.go's
// execBinary/execUnary at the bit level rather than importing pkg/vm (this
// package runs at compile time, before a VM or native back end exists for
// the function being folded) — the same "agree at the bit-pattern level,
// duplicated on purpose" shape spec.md §8 already requires between
// pkg/value/convert.go and pkg/vm/ops.go's convertBits.
type ConstantFold struct{}

func (ConstantFold) Name() string { return "constant-fold" }

func (ConstantFold) Run(fn *ir.Function) {
	for i, instr := range fn.Code {
		if folded, ok := fold(instr); ok {
			fn.Code[i] = folded
		}
	}
}

func fold(instr ir.Instruction) (ir.Instruction, bool) {
	switch instr.NumOperands {
	case 2:
		if instr.Operands[1].Kind != ir.KindImmediate {
			return instr, false
		}
		imm, ok := evalUnaryImm(instr.Op, instr.Operands[1].Imm)
		if !ok {
			return instr, false
		}
		return assignOf(instr, imm), true
	case 3:
		a, b := instr.Operands[1], instr.Operands[2]
		if a.Kind != ir.KindImmediate || b.Kind != ir.KindImmediate {
			return instr, false
		}
		imm, ok := evalBinaryImm(instr.Op, a.Imm, b.Imm)
		if !ok {
			return instr, false
		}
		return assignOf(instr, imm), true
	default:
		return instr, false
	}
}

func assignOf(instr ir.Instruction, imm ir.Immediate) ir.Instruction {
	dest := instr.Operands[0]
	return ir.Instruction{
		Op:          ir.OpAssign,
		NumOperands: 2,
		Operands:    [3]ir.Value{dest, {Kind: ir.KindImmediate, Type: dest.Type, Imm: imm, Flags: ir.Flags{IsImmediate: true}}},
		Span:        instr.Span,
	}
}

func immBits(imm ir.Immediate) uint64 {
	switch imm.Kind {
	case ir.ImmInt:
		return uint64(imm.Int)
	case ir.ImmUint:
		return imm.Uint
	case ir.ImmFloat:
		return uint64(math.Float32bits(imm.Float))
	case ir.ImmDouble:
		return math.Float64bits(imm.Double)
	default:
		return 0
	}
}

func f32bits(bits uint64) float32 { return math.Float32frombits(uint32(bits)) }
func f64bits(bits uint64) float64 { return math.Float64frombits(bits) }

func boolImm(b bool) ir.Immediate {
	if b {
		return ir.Immediate{Kind: ir.ImmUint, Uint: 1}
	}
	return ir.Immediate{Kind: ir.ImmUint, Uint: 0}
}

func evalBinaryImm(op ir.Opcode, a, b ir.Immediate) (ir.Immediate, bool) {
	x, y := immBits(a), immBits(b)
	switch op {
	case ir.OpIAdd:
		return ir.Immediate{Kind: ir.ImmInt, Int: int64(x) + int64(y)}, true
	case ir.OpISub:
		return ir.Immediate{Kind: ir.ImmInt, Int: int64(x) - int64(y)}, true
	case ir.OpIMul:
		return ir.Immediate{Kind: ir.ImmInt, Int: int64(x) * int64(y)}, true
	case ir.OpIDiv:
		if int64(y) == 0 {
			return ir.Immediate{}, false
		}
		return ir.Immediate{Kind: ir.ImmInt, Int: int64(x) / int64(y)}, true
	case ir.OpIMod:
		if int64(y) == 0 {
			return ir.Immediate{}, false
		}
		return ir.Immediate{Kind: ir.ImmInt, Int: int64(x) % int64(y)}, true

	case ir.OpUAdd:
		return ir.Immediate{Kind: ir.ImmUint, Uint: x + y}, true
	case ir.OpUSub:
		return ir.Immediate{Kind: ir.ImmUint, Uint: x - y}, true
	case ir.OpUMul:
		return ir.Immediate{Kind: ir.ImmUint, Uint: x * y}, true
	case ir.OpUDiv:
		if y == 0 {
			return ir.Immediate{}, false
		}
		return ir.Immediate{Kind: ir.ImmUint, Uint: x / y}, true
	case ir.OpUMod:
		if y == 0 {
			return ir.Immediate{}, false
		}
		return ir.Immediate{Kind: ir.ImmUint, Uint: x % y}, true

	case ir.OpFAdd:
		return ir.Immediate{Kind: ir.ImmFloat, Float: f32bits(x) + f32bits(y)}, true
	case ir.OpFSub:
		return ir.Immediate{Kind: ir.ImmFloat, Float: f32bits(x) - f32bits(y)}, true
	case ir.OpFMul:
		return ir.Immediate{Kind: ir.ImmFloat, Float: f32bits(x) * f32bits(y)}, true
	case ir.OpFDiv:
		return ir.Immediate{Kind: ir.ImmFloat, Float: f32bits(x) / f32bits(y)}, true
	case ir.OpFMod:
		return ir.Immediate{Kind: ir.ImmFloat, Float: float32(math.Mod(float64(f32bits(x)), float64(f32bits(y))))}, true

	case ir.OpDAdd:
		return ir.Immediate{Kind: ir.ImmDouble, Double: f64bits(x) + f64bits(y)}, true
	case ir.OpDSub:
		return ir.Immediate{Kind: ir.ImmDouble, Double: f64bits(x) - f64bits(y)}, true
	case ir.OpDMul:
		return ir.Immediate{Kind: ir.ImmDouble, Double: f64bits(x) * f64bits(y)}, true
	case ir.OpDDiv:
		return ir.Immediate{Kind: ir.ImmDouble, Double: f64bits(x) / f64bits(y)}, true
	case ir.OpDMod:
		return ir.Immediate{Kind: ir.ImmDouble, Double: math.Mod(f64bits(x), f64bits(y))}, true

	case ir.OpBAnd:
		return ir.Immediate{Kind: ir.ImmUint, Uint: x & y}, true
	case ir.OpBOr:
		return ir.Immediate{Kind: ir.ImmUint, Uint: x | y}, true
	case ir.OpBXor:
		return ir.Immediate{Kind: ir.ImmUint, Uint: x ^ y}, true
	case ir.OpShl:
		return ir.Immediate{Kind: ir.ImmUint, Uint: x << (y & 63)}, true
	case ir.OpShr:
		return ir.Immediate{Kind: ir.ImmUint, Uint: x >> (y & 63)}, true
	case ir.OpLAnd:
		return boolImm(x != 0 && y != 0), true
	case ir.OpLOr:
		return boolImm(x != 0 || y != 0), true

	case ir.OpIEq:
		return boolImm(int64(x) == int64(y)), true
	case ir.OpINeq:
		return boolImm(int64(x) != int64(y)), true
	case ir.OpILt:
		return boolImm(int64(x) < int64(y)), true
	case ir.OpIGt:
		return boolImm(int64(x) > int64(y)), true
	case ir.OpILte:
		return boolImm(int64(x) <= int64(y)), true
	case ir.OpIGte:
		return boolImm(int64(x) >= int64(y)), true
	case ir.OpUEq:
		return boolImm(x == y), true
	case ir.OpUNeq:
		return boolImm(x != y), true
	case ir.OpULt:
		return boolImm(x < y), true
	case ir.OpUGt:
		return boolImm(x > y), true
	case ir.OpULte:
		return boolImm(x <= y), true
	case ir.OpUGte:
		return boolImm(x >= y), true

	case ir.OpFEq:
		return boolImm(f32bits(x) == f32bits(y)), true
	case ir.OpFNeq:
		return boolImm(f32bits(x) != f32bits(y)), true
	case ir.OpFLt:
		return boolImm(f32bits(x) < f32bits(y)), true
	case ir.OpFGt:
		return boolImm(f32bits(x) > f32bits(y)), true
	case ir.OpFLte:
		return boolImm(f32bits(x) <= f32bits(y)), true
	case ir.OpFGte:
		return boolImm(f32bits(x) >= f32bits(y)), true
	case ir.OpDEq:
		return boolImm(f64bits(x) == f64bits(y)), true
	case ir.OpDNeq:
		return boolImm(f64bits(x) != f64bits(y)), true
	case ir.OpDLt:
		return boolImm(f64bits(x) < f64bits(y)), true
	case ir.OpDGt:
		return boolImm(f64bits(x) > f64bits(y)), true
	case ir.OpDLte:
		return boolImm(f64bits(x) <= f64bits(y)), true
	case ir.OpDGte:
		return boolImm(f64bits(x) >= f64bits(y)), true

	default:
		return ir.Immediate{}, false
	}
}

func evalUnaryImm(op ir.Opcode, a ir.Immediate) (ir.Immediate, bool) {
	x := immBits(a)
	switch op {
	case ir.OpNeg:
		switch a.Kind {
		case ir.ImmFloat:
			return ir.Immediate{Kind: ir.ImmFloat, Float: -f32bits(x)}, true
		case ir.ImmDouble:
			return ir.Immediate{Kind: ir.ImmDouble, Double: -f64bits(x)}, true
		default:
			return ir.Immediate{Kind: ir.ImmInt, Int: -int64(x)}, true
		}
	case ir.OpNot:
		return boolImm(x == 0), true
	case ir.OpInv:
		return ir.Immediate{Kind: ir.ImmUint, Uint: ^x}, true
	default:
		return ir.Immediate{}, false
	}
}
