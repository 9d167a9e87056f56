package exec

import (
	"context"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/plan"
	"github.com/boltgraph/boltgraph/types"
)

// produceResult reorders its input into RETURN order and materializes
// any virtual-node/virtual-rel column along the way, always the plan's
// root (spec §4.9 final step).
type produceResult struct {
	schema *types.Schema
	ex     *Exec
	n      *plan.ProduceResult
	in     Stream
}

func newProduceResult(ex *Exec, n *plan.ProduceResult, in Stream) *produceResult {
	schema := types.NewSchema()
	for _, c := range n.Columns {
		schema = schema.Append(c.Name, materializedType(c.Expr.Type()))
	}
	return &produceResult{schema: schema, ex: ex, n: n, in: in}
}

func materializedType(dt types.DataType) types.DataType {
	switch dt {
	case types.DTVirtualNode:
		return types.DTNode
	case types.DTVirtualRel:
		return types.DTRel
	default:
		return dt
	}
}

func (p *produceResult) Schema() *types.Schema { return p.schema }

func (p *produceResult) Next(ctx context.Context) (*colarray.DataChunk, error) {
	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	in, err := p.in.Next(ctx)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, nil
	}
	cols := make([]*colarray.Array, len(p.n.Columns))
	for i, c := range p.n.Columns {
		arr, err := c.Expr.EvalBatch(in, p.ex.Ctx)
		if err != nil {
			return nil, err
		}
		switch arr.Phys {
		case colarray.PVirtualNode:
			arr, err = p.ex.Ctx.Mat.MaterializeNodes(arr)
		case colarray.PVirtualRel:
			arr, err = p.ex.Ctx.Mat.MaterializeRels(arr)
		}
		if err != nil {
			return nil, err
		}
		cols[i] = arr
	}
	return &colarray.DataChunk{Schema: p.schema, Columns: cols, Visibility: in.Visibility}, nil
}
