package optimize

import "github.com/tsvm-lang/tsvm/pkg/ir"

// regSet is a small register-set alias, the equivalent of the teacher's
// pkg/regalloc.RegSet (not itself present in the retrieval pack — see
// DESIGN.md) sized for per-instruction liveness rather than a whole-
// function interference graph.
type regSet map[ir.Reg]struct{}

func (s regSet) clone() regSet {
	out := make(regSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

func (s regSet) equal(o regSet) bool {
	if len(s) != len(o) {
		return false
	}
	for r := range s {
		if _, ok := o[r]; !ok {
			return false
		}
	}
	return true
}

// Liveness is the result of a backward dataflow fixpoint over a Function's
// CFG: for every instruction index, the registers live immediately before
// and immediately after it.
type Liveness struct {
	LiveIn  []regSet
	LiveOut []regSet
}

// IsLiveOut reports whether r is live immediately after instruction i.
func (l *Liveness) IsLiveOut(i int, r ir.Reg) bool {
	_, ok := l.LiveOut[i][r]
	return ok
}

// computeLiveness runs the standard backward fixpoint (Aho/Sethi/Ullman's
// "Dragon Book" liveness equations — in := use ∪ (out \ def), out := union
// of successors' in) over cfg, mirroring the teacher's interference.go in
// building per-instruction Def/Use first and iterating to a fixpoint, but
// over instruction indices in a linear buffer rather than rtl.Node-keyed
// blocks.
func computeLiveness(fn *ir.Function, cfg *CFG) *Liveness {
	n := len(fn.Code)
	l := &Liveness{LiveIn: make([]regSet, n), LiveOut: make([]regSet, n)}
	for i := 0; i < n; i++ {
		l.LiveIn[i] = regSet{}
		l.LiveOut[i] = regSet{}
	}

	blockOf := make([]int, n)
	for bi, blk := range cfg.Blocks {
		for i := blk.Start; i < blk.End; i++ {
			blockOf[i] = bi
		}
	}

	changed := true
	for changed {
		changed = false
		for bi := len(cfg.Blocks) - 1; bi >= 0; bi-- {
			blk := cfg.Blocks[bi]
			for i := blk.End - 1; i >= blk.Start; i-- {
				out := regSet{}
				if i+1 < blk.End {
					out = l.LiveIn[i+1].clone()
				} else {
					for _, s := range blk.Succs {
						sb := cfg.Blocks[s]
						for r := range l.LiveIn[sb.Start] {
							out[r] = struct{}{}
						}
					}
				}

				def, hasDef, uses := defUse(fn.Code[i])
				in := out.clone()
				if hasDef {
					delete(in, def)
				}
				for _, u := range uses {
					in[u] = struct{}{}
				}

				if !in.equal(l.LiveIn[i]) {
					l.LiveIn[i] = in
					changed = true
				}
				if !out.equal(l.LiveOut[i]) {
					l.LiveOut[i] = out
					changed = true
				}
			}
		}
	}

	return l
}
