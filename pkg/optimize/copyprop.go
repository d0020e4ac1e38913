package optimize

import "github.com/tsvm-lang/tsvm/pkg/ir"

// CopyPropagate substitutes a register's later uses with whatever it was
// last assigned from, within one basic block: `r2 := assign(r2, r1); ... :=
// use(r2)` becomes `... := use(r1)` as long as neither r1 nor r2 was
// redefined in between. Scoped to a single block rather than the whole
// function (no attempt to merge copies across a branch/label join point) —
// the straight-line case is where this earns its keep, and a cross-block
// version would need the same dataflow-fixpoint machinery liveness.go
// already pays for DCE.
type CopyPropagate struct{}

func (CopyPropagate) Name() string { return "copy-propagation" }

func (CopyPropagate) Run(fn *ir.Function) {
	cfg := Build(fn)
	for _, blk := range cfg.Blocks {
		copyOf := map[ir.Reg]ir.Value{}
		for i := blk.Start; i < blk.End; i++ {
			instr := fn.Code[i]
			destIdx := destOperandIndex(instr.Op)

			changed := false
			for o := 0; o < instr.NumOperands; o++ {
				if o == destIdx {
					continue
				}
				v := instr.Operands[o]
				if v.Kind != ir.KindRegister {
					continue
				}
				if src, ok := copyOf[v.Reg]; ok {
					instr.Operands[o] = src
					changed = true
				}
			}
			if changed {
				fn.Code[i] = instr
			}

			if destIdx < 0 {
				continue
			}
			dv := instr.Operands[destIdx]
			if dv.Kind != ir.KindRegister {
				continue
			}

			// Any existing mapping that points through the register being
			// redefined is now stale.
			for k, v := range copyOf {
				if v.Kind == ir.KindRegister && v.Reg == dv.Reg {
					delete(copyOf, k)
				}
			}
			delete(copyOf, dv.Reg)

			if instr.Op == ir.OpAssign && instr.Operands[1].Kind == ir.KindRegister {
				copyOf[dv.Reg] = instr.Operands[1]
			}
		}
	}
}
