package exec

import (
	"context"
	"sort"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/plan"
	"github.com/boltgraph/boltgraph/types"
)

// sortOp is a collecting operator: nulls sort last on ASC, first on DESC
// (spec §4.10 Sort, fixed ordering). The whole input is materialized
// before the first output row, since any row could sort first.
type sortOp struct {
	schema *types.Schema
	ex     *Exec
	n      *plan.Sort
	in     Stream
	out    *colarray.DataChunk
	row    int
	loaded bool
}

func newSort(ex *Exec, n *plan.Sort, in Stream) *sortOp {
	return &sortOp{schema: in.Schema(), ex: ex, n: n, in: in}
}

func (s *sortOp) Schema() *types.Schema { return s.schema }

func (s *sortOp) load(ctx context.Context) error {
	var chunks []*colarray.DataChunk
	for {
		in, err := s.in.Next(ctx)
		if err != nil {
			return err
		}
		if in == nil {
			break
		}
		chunks = append(chunks, in.Compact())
	}
	merged := concatChunks(s.schema, chunks)
	keyVals := make([][]types.Value, len(s.n.Keys))
	for i, k := range s.n.Keys {
		arr, err := k.Expr.EvalBatch(merged, s.ex.Ctx)
		if err != nil {
			return err
		}
		vals := make([]types.Value, merged.Len())
		for r := 0; r < merged.Len(); r++ {
			vals[r] = scalarAt(arr, r)
		}
		keyVals[i] = vals
	}
	idx := make([]int, merged.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return rowLess(s.n.Keys, keyVals, idx[a], idx[b])
	})
	cols := make([]*colarray.Array, len(merged.Columns))
	for i, c := range merged.Columns {
		cols[i] = colarray.Take(c, idx)
	}
	s.out = colarray.NewDataChunk(s.schema, cols)
	s.loaded = true
	return nil
}

func (s *sortOp) Next(ctx context.Context) (*colarray.DataChunk, error) {
	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	if !s.loaded {
		if err := s.load(ctx); err != nil {
			return nil, err
		}
	}
	if s.row >= s.out.Len() {
		return nil, nil
	}
	start := s.row
	end := start + chunkSize
	if end > s.out.Len() {
		end = s.out.Len()
	}
	idx := make([]int, end-start)
	for i := range idx {
		idx[i] = start + i
	}
	s.row = end
	cols := make([]*colarray.Array, len(s.out.Columns))
	for i, c := range s.out.Columns {
		cols[i] = colarray.Take(c, idx)
	}
	return colarray.NewDataChunk(s.schema, cols), nil
}

// rowLess compares rows a and b across every sort key in order, nulls
// last on ASC / first on DESC.
func rowLess(keys []plan.SortKey, keyVals [][]types.Value, a, b int) bool {
	for i, k := range keys {
		va, vb := keyVals[i][a], keyVals[i][b]
		if va.IsNull() && vb.IsNull() {
			continue
		}
		if va.IsNull() {
			return k.Descending
		}
		if vb.IsNull() {
			return !k.Descending
		}
		if valueLess(va, vb) {
			return !k.Descending
		}
		if valueLess(vb, va) {
			return k.Descending
		}
	}
	return false
}

// pagination applies SKIP then LIMIT; Limit -1 means unbounded (spec
// §4.10 Pagination). Skip/Limit are evaluated once, against a
// zero-column one-row context, since they never reference a pipeline
// column.
type pagination struct {
	schema   *types.Schema
	ex       *Exec
	n        *plan.Pagination
	in       Stream
	resolved bool
	skip     int64
	limit    int64 // -1 unbounded
	seen     int64
	emitted  int64
	done     bool
}

func newPagination(ex *Exec, n *plan.Pagination, in Stream) *pagination {
	return &pagination{schema: in.Schema(), ex: ex, n: n, in: in}
}

func (p *pagination) Schema() *types.Schema { return p.schema }

func (p *pagination) resolve() error {
	one := oneRowChunk()
	if p.n.Skip != nil {
		v, err := evalScalar(p.n.Skip, one, p.ex.Ctx)
		if err != nil {
			return err
		}
		p.skip = v.Int
	}
	p.limit = -1
	if p.n.Limit != nil {
		v, err := evalScalar(p.n.Limit, one, p.ex.Ctx)
		if err != nil {
			return err
		}
		p.limit = v.Int
	}
	p.resolved = true
	return nil
}

func (p *pagination) Next(ctx context.Context) (*colarray.DataChunk, error) {
	if p.done {
		return nil, nil
	}
	if !p.resolved {
		if err := p.resolve(); err != nil {
			return nil, err
		}
	}
	for {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		if p.limit >= 0 && p.emitted >= p.limit {
			p.done = true
			return nil, nil
		}
		in, err := p.in.Next(ctx)
		if err != nil {
			return nil, err
		}
		if in == nil {
			p.done = true
			return nil, nil
		}
		var keep []int
		for row := 0; row < in.Len(); row++ {
			if !in.Visibility.Get(row) {
				continue
			}
			if p.seen < p.skip {
				p.seen++
				continue
			}
			if p.limit >= 0 && p.emitted >= p.limit {
				break
			}
			keep = append(keep, row)
			p.emitted++
		}
		if len(keep) == 0 {
			continue
		}
		cols := make([]*colarray.Array, len(in.Columns))
		for i, c := range in.Columns {
			cols[i] = colarray.Take(c, keep)
		}
		return colarray.NewDataChunk(p.schema, cols), nil
	}
}

func concatChunks(schema *types.Schema, chunks []*colarray.DataChunk) *colarray.DataChunk {
	if len(chunks) == 0 {
		return colarray.NewDataChunk(schema, make([]*colarray.Array, schema.Len()))
	}
	if len(chunks) == 1 {
		return chunks[0]
	}
	width := len(chunks[0].Columns)
	cols := make([]*colarray.Array, width)
	for col := 0; col < width; col++ {
		flat := make([]*colarray.Array, len(chunks))
		for i, c := range chunks {
			flat[i] = c.Columns[col]
		}
		cols[col] = colarray.ConcatArrays(flat)
	}
	return colarray.NewDataChunk(schema, cols)
}
