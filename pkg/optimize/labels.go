package optimize

import "github.com/tsvm-lang/tsvm/pkg/ir"

// LabelOffsets resolves every OpLabel's reserved Label id to its final
// instruction index, the required pass pkg/vm.resolveLabel and the native
// back end's branch-patching both depend on (spec.md §4.7).
type LabelOffsets struct{}

func (LabelOffsets) Name() string { return "label-offsets" }

func (LabelOffsets) Run(fn *ir.Function) {
	offsets := make(map[ir.Label]int)
	for i, instr := range fn.Code {
		if instr.Op == ir.OpLabel {
			offsets[instr.Target] = i
		}
	}
	fn.LabelOffsets = offsets
}
