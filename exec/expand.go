package exec

import (
	"context"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/plan"
	"github.com/boltgraph/boltgraph/storage"
	"github.com/boltgraph/boltgraph/types"
)

// expand walks one relationship pattern per input row, repeating every
// other input column once per matched edge and appending RelVar (and
// EndVar, for ExpandAll) (spec §4.10 Expand, chunked at chunkSize).
// State persists across Next calls since one input chunk's rows can
// produce more than chunkSize edges, or fewer than one chunk's worth.
type expand struct {
	schema *types.Schema
	ex     *Exec
	n      *plan.Expand
	in     Stream
	inCol  int
	endCol int

	cur    *colarray.DataChunk
	curRow int

	parentRows []int
	relIDs     []types.RelationshipId
	endIDs     []types.NodeId

	done bool
}

func newExpand(ex *Exec, n *plan.Expand, in Stream) *expand {
	inSchema := in.Schema()
	e := &expand{schema: n.Schema(), ex: ex, n: n, in: in, inCol: inSchema.IndexOf(n.StartVar)}
	if n.Kind == plan.ExpandInto {
		e.endCol = inSchema.IndexOf(n.EndVar)
	}
	return e
}

func (e *expand) Schema() *types.Schema { return e.schema }

func (e *expand) dirs() []types.Direction {
	if e.n.Either {
		return []types.Direction{types.DirOutgoing, types.DirIncoming}
	}
	return []types.Direction{e.n.Direction}
}

func (e *expand) relTypeSet() map[types.RelTypeId]bool {
	if len(e.n.Types) == 0 {
		return nil
	}
	set := make(map[types.RelTypeId]bool, len(e.n.Types))
	for _, t := range e.n.Types {
		set[t] = true
	}
	return set
}

func (e *expand) flush() *colarray.DataChunk {
	cols := make([]*colarray.Array, 0, len(e.cur.Columns)+2)
	for _, c := range e.cur.Columns {
		cols = append(cols, colarray.Take(c, e.parentRows))
	}
	rb := colarray.VirtualRelBuilder{}
	for _, id := range e.relIDs {
		rb.Push(id)
	}
	cols = append(cols, rb.Finish())
	if e.n.Kind == plan.ExpandAll {
		nb := colarray.VirtualNodeBuilder{}
		for _, id := range e.endIDs {
			nb.Push(id)
		}
		cols = append(cols, nb.Finish())
	}
	out := colarray.NewDataChunk(e.schema, cols)
	e.parentRows, e.relIDs, e.endIDs = nil, nil, nil
	return out
}

func (e *expand) Next(ctx context.Context) (*colarray.DataChunk, error) {
	if e.done {
		return nil, nil
	}
	dirs := e.dirs()
	relTypes := e.relTypeSet()

	for {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		if e.cur == nil {
			in, err := e.in.Next(ctx)
			if err != nil {
				return nil, err
			}
			if in == nil {
				e.done = true
				return nil, nil
			}
			e.cur = in
			e.curRow = 0
		}

		startCol := e.cur.Columns[e.inCol]
		for ; e.curRow < e.cur.Len(); e.curRow++ {
			row := e.curRow
			if !e.cur.Visibility.Get(row) || !startCol.IsValid(row) {
				continue
			}
			start := startCol.NodeIDs[row]
			checkEnd := e.n.Kind == plan.ExpandInto
			var wantEnd types.NodeId
			if checkEnd {
				endArr := e.cur.Columns[e.endCol]
				if !endArr.IsValid(row) {
					continue
				}
				wantEnd = endArr.NodeIDs[row]
			}
			err := e.ex.Txn.RelIterForNode(start, dirs, relTypes, func(edge storage.IncidentEdge) (bool, error) {
				other := edge.Dst
				if checkEnd && other != wantEnd {
					return true, nil
				}
				e.parentRows = append(e.parentRows, row)
				e.relIDs = append(e.relIDs, edge.RelID)
				e.endIDs = append(e.endIDs, other)
				return true, nil
			})
			if err != nil {
				return nil, err
			}
			if len(e.parentRows) >= chunkSize {
				e.curRow++
				return e.flush(), nil
			}
		}
		if len(e.parentRows) > 0 {
			out := e.flush()
			e.cur = nil
			return out, nil
		}
		e.cur = nil
	}
}
