// Package optimize implements the required and optional IR transformation
// passes spec.md's Design Notes call for between C5 (the three-address
// builder) and C8/C9 (the back ends): a CFG view over a Function's linear
// instruction buffer, the label-offset pass every back end depends on,
// liveness-driven dead-code elimination, constant folding and intra-block
// copy propagation.
//
// Grounded on the teacher's rtlgen.CFGBuilder (pkg/rtlgen/cfg.go) for the
// node/label bookkeeping shape, generalized from ralph-cc's node-keyed CFG
// (backend/RTLgen.v's graph-of-nodes model) to this module's linear,
// label-indexed instruction buffer; and on pkg/regalloc/interference.go for
// the register-set-over-a-dataflow-fixpoint shape liveness.go reuses for
// LiveIn/LiveOut instead of an interference graph.
//
// Config.OptPasses (internal/engine/config.go) names passes to run, in
// order, by the Name() string each Pass below registers. "label-offsets"
// must run last in any pipeline that also runs dead-code elimination: DCE
// deletes instructions and shifts indices, which would stale any
// LabelOffsets computed before it.
package optimize

import (
	"fmt"

	"github.com/tsvm-lang/tsvm/pkg/ir"
)

// Pass transforms a Function's instruction buffer in place.
type Pass interface {
	Name() string
	Run(fn *ir.Function)
}

var registry = map[string]Pass{}

func register(p Pass) { registry[p.Name()] = p }

func init() {
	register(LabelOffsets{})
	register(ConstantFold{})
	register(CopyPropagate{})
	register(DeadCodeElim{})
}

// Run applies the named passes to fn, in order.
func Run(fn *ir.Function, names []string) error {
	for _, name := range names {
		p, ok := registry[name]
		if !ok {
			return fmt.Errorf("optimize: unknown pass %q", name)
		}
		p.Run(fn)
	}
	return nil
}

// Names reports every pass this package knows how to run, for config
// validation and CLI --list-passes style tooling.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
