package exec

import (
	"context"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/plan"
	"github.com/boltgraph/boltgraph/types"
)

// createNode materializes one new node per input row, appending Var as a
// virtual-node column (spec §4.10 CreateNode).
type createNode struct {
	schema *types.Schema
	ex     *Exec
	n      *plan.CreateNode
	in     Stream
	names  []string
}

func newCreateNode(ex *Exec, n *plan.CreateNode, in Stream) (*createNode, error) {
	names := make([]string, len(n.Labels))
	for i, id := range n.Labels {
		name, err := ex.Ctx.Names.GetName(types.TokenLabel, id)
		if err != nil {
			return nil, err
		}
		names[i] = name
	}
	return &createNode{schema: n.Schema(), ex: ex, n: n, in: in, names: names}, nil
}

func (c *createNode) Schema() *types.Schema { return c.schema }

func (c *createNode) Next(ctx context.Context) (*colarray.DataChunk, error) {
	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	in, err := c.in.Next(ctx)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, nil
	}
	var props *colarray.Array
	if c.n.Props != nil {
		props, err = c.n.Props.EvalBatch(in, c.ex.Ctx)
		if err != nil {
			return nil, err
		}
	} else {
		// NodeCreate sizes its batch off props.Len(); with no inline
		// properties we still need one row per input row, not the
		// single-node default props == nil implies.
		props = colarray.NewStructArray(nil, nil, colarray.NewMaskAllValid(in.Len()))
	}
	created, err := c.ex.Txn.NodeCreate(c.names, props)
	if err != nil {
		return nil, err
	}
	cols := append(append([]*colarray.Array{}, in.Columns...), asVirtualNode(created))
	return colarray.NewDataChunk(c.schema, cols), nil
}

// asVirtualNode narrows a freshly materialized PNode column down to just
// its ids, matching the virtual-node representation every other column
// of this logical type carries until ProduceResult re-materializes it.
func asVirtualNode(a *colarray.Array) *colarray.Array {
	vb := colarray.VirtualNodeBuilder{}
	for i := 0; i < a.Len(); i++ {
		vb.Push(a.NodeIDs[i])
	}
	return vb.Finish()
}

func asVirtualRel(a *colarray.Array) *colarray.Array {
	vb := colarray.VirtualRelBuilder{}
	for i := 0; i < a.Len(); i++ {
		vb.Push(a.RelIDs[i])
	}
	return vb.Finish()
}

// createRel materializes one new relationship per input row, reading its
// endpoints from StartVar/EndVar (already virtual-node columns) and
// appending Var as a virtual-rel column (spec §4.10 CreateRel).
type createRel struct {
	schema      *types.Schema
	ex          *Exec
	n           *plan.CreateRel
	in          Stream
	startCol    int
	endCol      int
	relTypeName string
}

func newCreateRel(ex *Exec, n *plan.CreateRel, in Stream) (*createRel, error) {
	relTypeName, err := ex.Ctx.Names.GetName(types.TokenRelType, n.Type)
	if err != nil {
		return nil, err
	}
	s := in.Schema()
	return &createRel{
		schema:      n.Schema(),
		ex:          ex,
		n:           n,
		in:          in,
		startCol:    s.IndexOf(n.StartVar),
		endCol:      s.IndexOf(n.EndVar),
		relTypeName: relTypeName,
	}, nil
}

func (c *createRel) Schema() *types.Schema { return c.schema }

func (c *createRel) Next(ctx context.Context) (*colarray.DataChunk, error) {
	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	in, err := c.in.Next(ctx)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, nil
	}
	starts := nodeIDsOf(in.Columns[c.startCol])
	ends := nodeIDsOf(in.Columns[c.endCol])
	var props *colarray.Array
	if c.n.Props != nil {
		props, err = c.n.Props.EvalBatch(in, c.ex.Ctx)
		if err != nil {
			return nil, err
		}
	}
	created, err := c.ex.Txn.RelCreate(c.relTypeName, starts, ends, props)
	if err != nil {
		return nil, err
	}
	cols := append(append([]*colarray.Array{}, in.Columns...), asVirtualRel(created))
	return colarray.NewDataChunk(c.schema, cols), nil
}

func nodeIDsOf(a *colarray.Array) []types.NodeId {
	out := make([]types.NodeId, a.Len())
	copy(out, a.NodeIDs)
	return out
}
