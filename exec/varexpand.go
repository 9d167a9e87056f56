package exec

import (
	"context"
	"strconv"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/plan"
	"github.com/boltgraph/boltgraph/storage"
	"github.com/boltgraph/boltgraph/types"
)

// varExpandHit is one (node, path) result of the DFS below.
type varExpandHit struct {
	parentRow int
	path      []types.RelationshipId
	end       types.NodeId
}

// varExpand is Expand for a variable-length relationship pattern: DFS
// over edges maintaining (current_node, path), relationship-uniqueness
// enforced per path, emitting every reached node with Min <= depth <=
// Max (spec §4.10 VarExpand). One input chunk's rows can produce more
// than chunkSize hits, so hits are buffered and drained across Next
// calls the same way expand's edge buffer is.
type varExpand struct {
	schema *types.Schema
	ex     *Exec
	n      *plan.VarExpand
	in     Stream
	inCol  int

	cur     *colarray.DataChunk
	curRow  int
	pending []varExpandHit
	done    bool
}

func newVarExpand(ex *Exec, n *plan.VarExpand, in Stream) *varExpand {
	return &varExpand{schema: n.Schema(), ex: ex, n: n, in: in, inCol: in.Schema().IndexOf(n.StartVar)}
}

func (v *varExpand) Schema() *types.Schema { return v.schema }

func (v *varExpand) dirs() []types.Direction {
	if v.n.Either {
		return []types.Direction{types.DirOutgoing, types.DirIncoming}
	}
	return []types.Direction{v.n.Direction}
}

func (v *varExpand) relTypeSet() map[types.RelTypeId]bool {
	if len(v.n.Types) == 0 {
		return nil
	}
	set := make(map[types.RelTypeId]bool, len(v.n.Types))
	for _, t := range v.n.Types {
		set[t] = true
	}
	return set
}

func (v *varExpand) dfs(row int, start types.NodeId, dirs []types.Direction, relTypes map[types.RelTypeId]bool) error {
	min, max := v.n.Min, v.n.Max
	var walk func(node types.NodeId, path []types.RelationshipId, used map[types.RelationshipId]bool) error
	walk = func(node types.NodeId, path []types.RelationshipId, used map[types.RelationshipId]bool) error {
		if len(path) >= min {
			cp := append([]types.RelationshipId(nil), path...)
			v.pending = append(v.pending, varExpandHit{parentRow: row, path: cp, end: node})
		}
		if len(path) >= max {
			return nil
		}
		return v.ex.Txn.RelIterForNode(node, dirs, relTypes, func(edge storage.IncidentEdge) (bool, error) {
			if used[edge.RelID] {
				return true, nil
			}
			used[edge.RelID] = true
			path = append(path, edge.RelID)
			err := walk(edge.Dst, path, used)
			path = path[:len(path)-1]
			delete(used, edge.RelID)
			return true, err
		})
	}
	return walk(start, nil, map[types.RelationshipId]bool{})
}

func (v *varExpand) flush(n int) *colarray.DataChunk {
	batch := v.pending[:n]
	v.pending = v.pending[n:]

	parentRows := make([]int, len(batch))
	for i, h := range batch {
		parentRows[i] = h.parentRow
	}
	cols := make([]*colarray.Array, 0, len(v.cur.Columns)+2)
	for _, c := range v.cur.Columns {
		cols = append(cols, colarray.Take(c, parentRows))
	}
	pb := colarray.NewStringBuilder()
	for _, h := range batch {
		s := encodeRelPath(h.path)
		pb.Push(&s)
	}
	cols = append(cols, pb.Finish())
	nb := colarray.VirtualNodeBuilder{}
	for _, h := range batch {
		nb.Push(h.end)
	}
	cols = append(cols, nb.Finish())
	return colarray.NewDataChunk(v.schema, cols)
}

// Next keeps v.pending's hits tied to a single v.cur chunk: it never
// pulls a new input chunk while hits from the previous one are still
// unflushed, since flush()'s Take call indexes into v.cur by row.
func (v *varExpand) Next(ctx context.Context) (*colarray.DataChunk, error) {
	if v.done {
		return nil, nil
	}
	dirs := v.dirs()
	relTypes := v.relTypeSet()

	for {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		if v.cur == nil {
			in, err := v.in.Next(ctx)
			if err != nil {
				return nil, err
			}
			if in == nil {
				v.done = true
				return nil, nil
			}
			v.cur = in
			v.curRow = 0
		}

		startCol := v.cur.Columns[v.inCol]
		for ; v.curRow < v.cur.Len(); v.curRow++ {
			row := v.curRow
			if !v.cur.Visibility.Get(row) || !startCol.IsValid(row) {
				continue
			}
			if err := v.dfs(row, startCol.NodeIDs[row], dirs, relTypes); err != nil {
				return nil, err
			}
			if len(v.pending) >= chunkSize {
				v.curRow++
				return v.flush(chunkSize), nil
			}
		}
		if len(v.pending) > 0 {
			out := v.flush(len(v.pending))
			v.cur = nil
			return out, nil
		}
		v.cur = nil
	}
}

func encodeRelPath(path []types.RelationshipId) string {
	out := ""
	for i, id := range path {
		if i > 0 {
			out += ","
		}
		out += strconv.FormatUint(uint64(id), 10)
	}
	return out
}
