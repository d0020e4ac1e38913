package vm

import (
	"math"

	"github.com/tsvm-lang/tsvm/pkg/ids"
	"github.com/tsvm-lang/tsvm/pkg/ir"
)

// getReg reads the runtime value of a compile-time Value. Register-kind
// values index the VM's general-purpose register file directly (virtual
// registers are assumed pre-allocated 1:1 into the 256-slot file — spec.md's
// optimizer is the stage that would remap these under register pressure;
// this interpreter trusts its input the way original_source's VM trusts the
// compiler's output). Stack-kind values resolve to a lazily bump-allocated
// frame address; argument-kind values index the current call's raw args;
// immediates decode directly from their payload.
func (v *VM) getReg(val ir.Value) uint64 {
	switch val.Kind {
	case ir.KindRegister:
		return v.state.Registers[int(val.Reg)]
	case ir.KindStack:
		return v.slotAddr(val.Slot)
	case ir.KindArgument:
		if val.ArgIndex < len(v.callArgs) {
			return v.callArgs[val.ArgIndex]
		}
		return 0
	case ir.KindImmediate:
		return immBits(val.Imm)
	default:
		return 0
	}
}

func (v *VM) setReg(val ir.Value, bits uint64) {
	switch val.Kind {
	case ir.KindRegister:
		v.state.Registers[int(val.Reg)] = bits
	case ir.KindStack:
		addr := v.slotAddr(val.Slot)
		v.state.Stack.Store64(addr, bits)
	}
}

func (v *VM) slotAddr(slot ir.Slot) uint64 {
	if addr, ok := v.slotAddrs[slot]; ok {
		return addr
	}
	v.state.Registers[RegSP] -= 8
	addr := v.state.Registers[RegSP]
	v.slotAddrs[slot] = addr
	return addr
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
	case ir.ImmFuncRef:
		return uint64(imm.FuncRef)
	case ir.ImmTypeRef:
		return uint64(imm.TypeRef)
	default:
		return 0
	}
}

// execLoad/execStore implement spec.md §4.8's guard-checked memory access,
// with Imm carrying the byte offset: a load reads from operand 1 (the base
// pointer) into operand 0; a store writes operand 1 through operand 0 (the
// base pointer). A guard-region hit surfaces diag.ErrStackOverflow
// rather than reading/writing past the stack.
func (v *VM) execLoad(instr ir.Instruction) error {
	base := v.getReg(instr.Operands[1])
	offset := uint64(0)
	if instr.Imm != nil {
		offset = instr.Imm.Uint
	}
	addr := base + offset
	word, err := v.state.Stack.Load64(addr)
	if err != nil {
		return err
	}
	v.setReg(instr.Operands[0], word)
	return nil
}

func (v *VM) execStore(instr ir.Instruction) error {
	base := v.getReg(instr.Operands[0])
	offset := uint64(0)
	if instr.Imm != nil {
		offset = instr.Imm.Uint
	}
	addr := base + offset
	return v.state.Stack.Store64(addr, v.getReg(instr.Operands[1]))
}

func (v *VM) execBinary(instr ir.Instruction) {
	a := v.getReg(instr.Operands[1])
	b := v.getReg(instr.Operands[2])
	var r uint64
	switch instr.Op {
	case ir.OpIAdd:
		r = uint64(int64(a) + int64(b))
	case ir.OpISub:
		r = uint64(int64(a) - int64(b))
	case ir.OpIMul:
		r = uint64(int64(a) * int64(b))
	case ir.OpIDiv:
		r = uint64(int64(a) / int64(b))
	case ir.OpIMod:
		r = uint64(int64(a) % int64(b))
	case ir.OpUAdd:
		r = a + b
	case ir.OpUSub:
		r = a - b
	case ir.OpUMul:
		r = a * b
	case ir.OpUDiv:
		r = a / b
	case ir.OpUMod:
		r = a % b
	case ir.OpFAdd:
		r = uint64(math.Float32bits(f32(a) + f32(b)))
	case ir.OpFSub:
		r = uint64(math.Float32bits(f32(a) - f32(b)))
	case ir.OpFMul:
		r = uint64(math.Float32bits(f32(a) * f32(b)))
	case ir.OpFDiv:
		r = uint64(math.Float32bits(f32(a) / f32(b)))
	case ir.OpFMod:
		r = uint64(math.Float32bits(float32(math.Mod(float64(f32(a)), float64(f32(b))))))
	case ir.OpDAdd:
		r = math.Float64bits(f64(a) + f64(b))
	case ir.OpDSub:
		r = math.Float64bits(f64(a) - f64(b))
	case ir.OpDMul:
		r = math.Float64bits(f64(a) * f64(b))
	case ir.OpDDiv:
		r = math.Float64bits(f64(a) / f64(b))
	case ir.OpDMod:
		r = math.Float64bits(math.Mod(f64(a), f64(b)))
	case ir.OpBAnd:
		r = a & b
	case ir.OpBOr:
		r = a | b
	case ir.OpBXor:
		r = a ^ b
	case ir.OpShl:
		r = a << (b & 63)
	case ir.OpShr:
		r = a >> (b & 63)
	case ir.OpLAnd:
		r = boolToU64(a != 0 && b != 0)
	case ir.OpLOr:
		r = boolToU64(a != 0 || b != 0)
	}
	v.setReg(instr.Operands[0], r)
}

func (v *VM) execCompare(instr ir.Instruction) {
	a := v.getReg(instr.Operands[1])
	b := v.getReg(instr.Operands[2])
	var r bool
	switch instr.Op {
	case ir.OpIEq:
		r = int64(a) == int64(b)
	case ir.OpINeq:
		r = int64(a) != int64(b)
	case ir.OpILt:
		r = int64(a) < int64(b)
	case ir.OpIGt:
		r = int64(a) > int64(b)
	case ir.OpILte:
		r = int64(a) <= int64(b)
	case ir.OpIGte:
		r = int64(a) >= int64(b)
	case ir.OpUEq:
		r = a == b
	case ir.OpUNeq:
		r = a != b
	case ir.OpULt:
		r = a < b
	case ir.OpUGt:
		r = a > b
	case ir.OpULte:
		r = a <= b
	case ir.OpUGte:
		r = a >= b
	case ir.OpFEq:
		r = f32(a) == f32(b)
	case ir.OpFNeq:
		r = f32(a) != f32(b)
	case ir.OpFLt:
		r = f32(a) < f32(b)
	case ir.OpFGt:
		r = f32(a) > f32(b)
	case ir.OpFLte:
		r = f32(a) <= f32(b)
	case ir.OpFGte:
		r = f32(a) >= f32(b)
	case ir.OpDEq:
		r = f64(a) == f64(b)
	case ir.OpDNeq:
		r = f64(a) != f64(b)
	case ir.OpDLt:
		r = f64(a) < f64(b)
	case ir.OpDGt:
		r = f64(a) > f64(b)
	case ir.OpDLte:
		r = f64(a) <= f64(b)
	case ir.OpDGte:
		r = f64(a) >= f64(b)
	}
	v.setReg(instr.Operands[0], boolToU64(r))
}

func (v *VM) execUnary(instr ir.Instruction, fn func(uint64) uint64) {
	v.setReg(instr.Operands[0], fn(v.getReg(instr.Operands[1])))
}

// execConvert applies the runtime half of spec.md §8's numeric conversion
// rules: pkg/value.ConvertedTo already folds compile-time-constant
// conversions into an immediate (pkg/value/convert.go's convertImmediate),
// so a `cvt` the VM actually executes is always a register-to-register
// conversion between two primitive categories, given by instr.Imm (source
// category, stamped by the compiler) and the destination Value's Type
// (looked up through the VM's TypeQuery at execution time).
func (v *VM) execConvert(instr ir.Instruction) {
	src := v.getReg(instr.Operands[1])
	srcCat := ir.CatNone
	if instr.Imm != nil {
		srcCat = v.types.CategoryOf(instr.Imm.TypeRef)
	}
	dstCat := v.types.CategoryOf(instr.Operands[0].Type)
	v.setReg(instr.Operands[0], convertBits(src, srcCat, dstCat, v.types.WidthOf(instr.Operands[0].Type)))
}

// convertBits mirrors pkg/value/convert.go's convertImmediate at the
// bit-pattern level so the VM and the numeric-immediate compile-time fast
// path agree on every boundary case spec.md §8 names (u64(-1) -> f64
// reinterpretation, the i64<->f64 round trip, C-style truncation).
func convertBits(bits uint64, src, dst ir.Category, dstWidth int) uint64 {
	switch {
	case src == ir.CatF64 && dst == ir.CatUnsigned:
		return floatToUint64(f64(bits))
	case src == ir.CatF32 && dst == ir.CatUnsigned:
		return floatToUint64(float64(f32(bits)))
	case (src == ir.CatF64 || src == ir.CatF32) && dst == ir.CatSigned:
		f := f64(bits)
		if src == ir.CatF32 {
			f = float64(f32(bits))
		}
		return truncateSigned(int64(f), dstWidth)
	case src == ir.CatUnsigned && dst == ir.CatF64:
		return math.Float64bits(uint64ToFloat(bits))
	case src == ir.CatUnsigned && dst == ir.CatF32:
		return uint64(math.Float32bits(float32(uint64ToFloat(bits))))
	case src == ir.CatSigned && dst == ir.CatF64:
		return math.Float64bits(float64(int64(bits)))
	case src == ir.CatSigned && dst == ir.CatF32:
		return uint64(math.Float32bits(float32(int64(bits))))
	case src == ir.CatF64 && dst == ir.CatF32:
		return uint64(math.Float32bits(float32(f64(bits))))
	case src == ir.CatF32 && dst == ir.CatF64:
		return math.Float64bits(float64(f32(bits)))
	case dst == ir.CatUnsigned:
		return truncateUnsigned(bits, dstWidth)
	case dst == ir.CatSigned:
		return truncateSigned(int64(bits), dstWidth)
	default:
		return bits
	}
}

// uint64ToFloat and floatToUint64 duplicate pkg/value/convert.go's helpers
// of the same name: both packages need the identical u64<->f64
// reinterpretation rule, and sharing it would mean the VM importing
// pkg/value (a compile-time-only package) purely for two pure functions.
func uint64ToFloat(u uint64) float64 {
	if u <= math.MaxInt64 {
		return float64(int64(u))
	}
	return float64(int64(u>>1))*2 + float64(int64(u&1))
}

func floatToUint64(f float64) uint64 {
	if f < 0 {
		return 0
	}
	if f < math.MaxInt64 {
		return uint64(int64(f))
	}
	const twoPow63 = 9223372036854775808.0
	return uint64(int64(f-twoPow63)) + (1 << 63)
}

func truncateSigned(i int64, width int) uint64 {
	switch width {
	case 1:
		return uint64(uint8(int8(i)))
	case 2:
		return uint64(uint16(int16(i)))
	case 4:
		return uint64(uint32(int32(i)))
	default:
		return uint64(i)
	}
}

func truncateUnsigned(u uint64, width int) uint64 {
	switch width {
	case 1:
		return uint64(uint8(u))
	case 2:
		return uint64(uint16(u))
	case 4:
		return uint64(uint32(u))
	default:
		return u
	}
}

func negBits(u uint64, _ ids.TypeID) uint64 { return uint64(-int64(u)) }
func incBits(u uint64, _ ids.TypeID) uint64 { return u + 1 }
func decBits(u uint64, _ ids.TypeID) uint64 { return u - 1 }

func f32(bits uint64) float32 { return math.Float32frombits(uint32(bits)) }
func f64(bits uint64) float64 { return math.Float64frombits(bits) }
