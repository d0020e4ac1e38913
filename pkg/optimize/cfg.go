package optimize

import "github.com/tsvm-lang/tsvm/pkg/ir"

// Block is one maximal straight-line run of instructions: no instruction
// but the last branches, jumps, returns or terminates, and no instruction
// but the first is a label target (spec.md §3's "Control-flow data").
type Block struct {
	Start, End int // half-open instruction range [Start, End) into fn.Code
	Succs      []int
}

// CFG is the basic-block view of a Function's linear instruction buffer,
// rebuilt on demand (never cached across passes: a pass may change Code's
// length, which would stale a cached CFG's indices).
type CFG struct {
	Blocks []Block
}

// Build splits fn.Code into basic blocks and links each to its successors.
//
// Grounded on the teacher's rtlgen.CFGBuilder.GetOrCreateLabel, which maps
// a label to a node id before the node's instruction is known; this mirrors
// that two-pass shape (collect leaders, then link) against a linear buffer
// instead of a node-keyed graph.
func Build(fn *ir.Function) *CFG {
	code := fn.Code
	if len(code) == 0 {
		return &CFG{}
	}

	leader := make([]bool, len(code))
	leader[0] = true
	for i, instr := range code {
		if instr.Op == ir.OpLabel {
			leader[i] = true
		}
		if isBlockEnd(instr) && i+1 < len(code) {
			leader[i+1] = true
		}
	}

	var starts []int
	for i, isLeader := range leader {
		if isLeader {
			starts = append(starts, i)
		}
	}

	blocks := make([]Block, len(starts))
	indexOfStart := make(map[int]int, len(starts))
	for bi, s := range starts {
		indexOfStart[s] = bi
		end := len(code)
		if bi+1 < len(starts) {
			end = starts[bi+1]
		}
		blocks[bi] = Block{Start: s, End: end}
	}

	labelBlock := make(map[ir.Label]int)
	for bi, blk := range blocks {
		if code[blk.Start].Op == ir.OpLabel {
			labelBlock[code[blk.Start].Target] = bi
		}
	}

	for bi := range blocks {
		blk := &blocks[bi]
		last := code[blk.End-1]
		switch last.Op {
		case ir.OpJump:
			if target, ok := labelBlock[last.Target]; ok {
				blk.Succs = []int{target}
			}
		case ir.OpBranch:
			if target, ok := labelBlock[last.Target]; ok {
				blk.Succs = append(blk.Succs, target)
			}
			if bi+1 < len(blocks) {
				blk.Succs = append(blk.Succs, bi+1)
			}
		case ir.OpRet, ir.OpTerm:
			// no successors: function exit
		default:
			if bi+1 < len(blocks) {
				blk.Succs = []int{bi + 1}
			}
		}
	}

	return &CFG{Blocks: blocks}
}

func isBlockEnd(instr ir.Instruction) bool {
	switch instr.Op {
	case ir.OpJump, ir.OpBranch, ir.OpRet, ir.OpTerm:
		return true
	default:
		return false
	}
}
