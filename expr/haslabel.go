package expr

import (
	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/types"
)

// HasLabel checks label membership for a node operand or relationship
// type membership for a rel operand through one expression node, the
// way _examples/original_source/src/cypher/src/expr/label.rs unifies
// both checks (SPEC_FULL.md Supplemented Features). A virtual-node/rel
// target is materialized first.
type HasLabel struct {
	Target Expr
	Tokens []types.TokenId // label ids for a node target, rel-type ids for a rel target; OR'd
}

func (HasLabel) Type() types.DataType { return types.DTBool }

func (h HasLabel) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	target, err := h.Target.EvalBatch(chunk, ctx)
	if err != nil {
		return nil, err
	}
	target, err = materializeIfVirtual(target, ctx)
	if err != nil {
		return nil, err
	}

	n := chunk.Len()
	out := make([]types.Value, n)
	want := make(map[types.TokenId]bool, len(h.Tokens))
	for _, t := range h.Tokens {
		want[t] = true
	}
	for i := 0; i < n; i++ {
		if !target.IsValid(i) {
			out[i] = types.Null()
			continue
		}
		out[i] = types.NewBool(matchesAny(target, i, want))
	}
	return buildArray(types.DTBool, out), nil
}

func matchesAny(a *colarray.Array, row int, want map[types.TokenId]bool) bool {
	switch a.Phys {
	case colarray.PNode:
		for _, l := range a.NodeLabels[row] {
			if want[l] {
				return true
			}
		}
	case colarray.PRel:
		return want[a.RelTypes[row]]
	}
	return false
}
