package optimize

import "github.com/tsvm-lang/tsvm/pkg/ir"

// DeadCodeElim drops any instruction whose destination register is never
// read, per the liveness fixpoint computeLiveness produces. Calls are
// never eliminated even when their result is discarded: a call may have
// effects beyond its return value, and spec.md's execution model gives no
// purity guarantee for arbitrary script or host functions.
//
// Must run before, not after, "label-offsets" in any pipeline that uses
// both: deleting instructions shifts every later index, which would stale
// an already-computed LabelOffsets map.
type DeadCodeElim struct{}

func (DeadCodeElim) Name() string { return "dead-code" }

func (DeadCodeElim) Run(fn *ir.Function) {
	cfg := Build(fn)
	live := computeLiveness(fn, cfg)

	out := make([]ir.Instruction, 0, len(fn.Code))
	for i, instr := range fn.Code {
		if instr.Op == ir.OpCall {
			out = append(out, instr)
			continue
		}
		def, hasDef, _ := defUse(instr)
		if hasDef && !live.IsLiveOut(i, def) {
			continue
		}
		out = append(out, instr)
	}
	fn.Code = out
}
