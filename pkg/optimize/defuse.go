package optimize

import "github.com/tsvm-lang/tsvm/pkg/ir"

// destOperandIndex returns the operand index an instruction writes its
// result to, or -1 if it writes none. Every opcode that produces a value
// places it at Operands[0] (pkg/ir/builder.go's Instruction.Dest doc);
// opcodes that only consume operands — store, param, branch, ret, jump,
// label, stack (de)allocation, module-data, and the control/no-op opcodes —
// have no destination at all.
func destOperandIndex(op ir.Opcode) int {
	switch op {
	case ir.OpStore, ir.OpParam, ir.OpBranch, ir.OpRet, ir.OpJump, ir.OpLabel,
		ir.OpNoop, ir.OpTerm, ir.OpReserve, ir.OpResolve,
		ir.OpStackAlloc, ir.OpStackFree, ir.OpModuleData:
		return -1
	default:
		return 0
	}
}

// defUse reports the register an instruction defines (if any) and the
// registers it reads, used by liveness.go's dataflow fixpoint, dce.go's
// elimination check and copyprop.go's use-substitution.
func defUse(instr ir.Instruction) (def ir.Reg, hasDef bool, uses []ir.Reg) {
	destIdx := destOperandIndex(instr.Op)
	for i := 0; i < instr.NumOperands; i++ {
		v := instr.Operands[i]
		if i == destIdx {
			if v.Kind == ir.KindRegister {
				def, hasDef = v.Reg, true
			}
			continue
		}
		if v.Kind == ir.KindRegister {
			uses = append(uses, v.Reg)
		}
	}
	return def, hasDef, uses
}
