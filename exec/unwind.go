package exec

import (
	"context"
	"strconv"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/loader"
	"github.com/boltgraph/boltgraph/plan"
	"github.com/boltgraph/boltgraph/types"
)

// unwind expands one list-valued expression into one row per element,
// repeating every other input column (spec §4.8 Horizon::Unwind).
type unwind struct {
	schema   *types.Schema
	ex       *Exec
	n        *plan.Unwind
	in       Stream
	elemType types.DataType
}

func newUnwind(ex *Exec, n *plan.Unwind, in Stream) *unwind {
	return &unwind{schema: n.Schema(), ex: ex, n: n, in: in, elemType: n.Schema().Fields[n.Schema().Len()-1].Type}
}

func (u *unwind) Schema() *types.Schema { return u.schema }

func (u *unwind) Next(ctx context.Context) (*colarray.DataChunk, error) {
	for {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		in, err := u.in.Next(ctx)
		if err != nil {
			return nil, err
		}
		if in == nil {
			return nil, nil
		}
		listArr, err := u.n.Expr.EvalBatch(in, u.ex.Ctx)
		if err != nil {
			return nil, err
		}
		var parentRows []int
		var elemVals []types.Value
		for row := 0; row < in.Len(); row++ {
			if !in.Visibility.Get(row) || !listArr.IsValid(row) {
				continue
			}
			s, e := listArr.ListBounds(row)
			for i := s; i < e; i++ {
				parentRows = append(parentRows, row)
				elemVals = append(elemVals, scalarAt(listArr.Child, i))
			}
		}
		if len(parentRows) == 0 {
			continue
		}
		cols := make([]*colarray.Array, 0, len(in.Columns)+1)
		for _, c := range in.Columns {
			cols = append(cols, colarray.Take(c, parentRows))
		}
		cols = append(cols, buildColumn(u.elemType, elemVals))
		return colarray.NewDataChunk(u.schema, cols), nil
	}
}

// load is a leaf reading an external CSV row source through package
// loader (spec §4.8 Horizon::Load, §C14); each row becomes one
// struct-typed Variable value, column names taken from the header row
// when present or the column index otherwise.
type load struct {
	schema *types.Schema
	n      *plan.Load
	r      *loader.CSVReader
	opened bool
	done   bool
}

func newLoad(n *plan.Load) *load {
	return &load{schema: n.Schema(), n: n}
}

func (l *load) Schema() *types.Schema { return l.schema }

func (l *load) Next(ctx context.Context) (*colarray.DataChunk, error) {
	if l.done {
		return nil, nil
	}
	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	if !l.opened {
		r, err := loader.OpenCSV(l.n.URL, l.n.WithHeaders)
		if err != nil {
			return nil, types.WrapError(types.KindStorage, "load", "open csv source", err)
		}
		l.r = r
		l.opened = true
	}

	batch, ok := l.r.Next(ctx)
	if batch.Err != nil {
		return nil, types.WrapError(types.KindStorage, "load", "read csv row", batch.Err)
	}
	if !ok {
		l.done = true
	}
	if len(batch.Rows) == 0 {
		return nil, nil
	}
	names := l.r.Headers()
	if names == nil {
		names = make([]string, len(batch.Rows[0]))
		for i := range names {
			names[i] = strconv.Itoa(i)
		}
	}
	children := make([]*colarray.Array, len(names))
	for col := range names {
		sb := colarray.NewStringBuilder()
		for _, rec := range batch.Rows {
			if col < len(rec) {
				v := rec[col]
				sb.Push(&v)
			} else {
				sb.Push(nil)
			}
		}
		children[col] = sb.Finish()
	}
	structArr := colarray.NewStructArray(names, children, colarray.NewMaskAllValid(len(batch.Rows)))
	return colarray.NewDataChunk(l.schema, []*colarray.Array{structArr}), nil
}
