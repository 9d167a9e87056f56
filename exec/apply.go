package exec

import (
	"context"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/plan"
	"github.com/boltgraph/boltgraph/types"
)

// unit drives exactly one empty row, the leaf a CREATE-only statement
// plans from (spec §4.9 step 5).
type unit struct {
	schema *types.Schema
	done   bool
}

func newUnit(n *plan.Unit) *unit { return &unit{schema: n.Schema()} }

func (u *unit) Schema() *types.Schema { return u.schema }

func (u *unit) Next(ctx context.Context) (*colarray.DataChunk, error) {
	if u.done {
		return nil, nil
	}
	u.done = true
	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	return colarray.NewDataChunk(u.schema, nil), nil
}

// mailbox is the one-row handoff between an Apply driver and the
// Argument leaf(s) inside the right-hand build (spec §4.10 "Apply holds
// a mailbox ... Argument reads the mailbox").
type mailbox struct {
	schema *types.Schema
	row    []colarray.ScalarRef
	set    bool
}

// argument re-emits the single row currently sitting in its mailbox,
// then reports exhausted until the mailbox is refilled (spec §4.9 step 3
// Argument).
type argument struct {
	box  *mailbox
	done bool
}

func newArgument(box *mailbox) *argument { return &argument{box: box} }

func (a *argument) Schema() *types.Schema { return a.box.schema }

func (a *argument) Next(ctx context.Context) (*colarray.DataChunk, error) {
	if a.done || !a.box.set {
		return nil, nil
	}
	a.done = true
	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	schema := a.box.schema
	cols := make([]*colarray.Array, schema.Len())
	for i, cell := range a.box.row {
		cols[i] = singleCellArray(cell)
	}
	return colarray.NewDataChunk(schema, cols), nil
}

// apply drives buildRight once per left row, filling the mailbox before
// each drive and concatenating every right row onto the matching left
// row's columns; Optional rows with zero right matches still flow once,
// with right columns all null (spec §4.10 Apply).
type apply struct {
	schema     *types.Schema
	leftIn     Stream
	box        *mailbox
	buildRight func() Stream
	optional   bool
	rightW     int

	left    *colarray.DataChunk
	leftRow int
	right   Stream
	gotAny  bool
}

func newApply(ex *Exec, n *plan.Apply, left Stream, box *mailbox, buildRight func() Stream) *apply {
	return &apply{
		schema:     n.Schema(),
		leftIn:     left,
		box:        box,
		buildRight: buildRight,
		optional:   n.Optional,
		rightW:     n.Schema().Len() - left.Schema().Len(),
	}
}

func (a *apply) Schema() *types.Schema { return a.schema }

func (a *apply) Next(ctx context.Context) (*colarray.DataChunk, error) {
	for {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		if a.right == nil {
			if a.left == nil || a.leftRow >= a.left.Len() {
				in, err := a.leftIn.Next(ctx)
				if err != nil {
					return nil, err
				}
				if in == nil {
					return nil, nil
				}
				a.left = in
				a.leftRow = 0
			}
			if !a.left.Visibility.Get(a.leftRow) {
				a.leftRow++
				continue
			}
			a.box.row = rowCells(a.left, a.leftRow)
			a.box.set = true
			a.right = a.buildRight()
			a.gotAny = false
		}

		rightChunk, err := a.right.Next(ctx)
		if err != nil {
			return nil, err
		}
		if rightChunk == nil {
			exhausted := !a.gotAny
			a.right = nil
			a.box.set = false
			row := a.leftRow
			a.leftRow++
			if exhausted && a.optional {
				return a.joinRow(row, a.nullRightChunk()), nil
			}
			continue
		}
		a.gotAny = true
		return a.joinRow(a.leftRow, rightChunk), nil
	}
}

// joinRow repeats left row leftRow once per row of rightChunk and
// concatenates right's columns alongside it.
func (a *apply) joinRow(leftRow int, rightChunk *colarray.DataChunk) *colarray.DataChunk {
	n := rightChunk.Len()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = leftRow
	}
	cols := make([]*colarray.Array, 0, a.left.Schema.Len()+a.rightW)
	for _, c := range a.left.Columns {
		cols = append(cols, colarray.Take(c, idx))
	}
	cols = append(cols, rightChunk.Columns...)
	return colarray.NewDataChunk(a.schema, cols)
}

// nullRightChunk builds a one-row chunk of all-null right-side columns
// for an OPTIONAL MATCH left row with no right match (spec §4.10 Apply
// Optional).
func (a *apply) nullRightChunk() *colarray.DataChunk {
	full := a.schema.Fields
	rightFields := full[len(full)-a.rightW:]
	cols := make([]*colarray.Array, len(rightFields))
	for i, f := range rightFields {
		cols[i] = nullColumn(f.Type, 1)
	}
	return colarray.NewDataChunk(types.NewSchema(rightFields...), cols)
}

// nullColumn builds a length-n column of dt whose every row is null.
func nullColumn(dt types.DataType, n int) *colarray.Array {
	switch dt {
	case types.DTBool:
		b := colarray.BoolBuilder{}
		b.PushN(nil, n)
		return b.Finish()
	case types.DTFloat:
		b := colarray.FloatBuilder{}
		for i := 0; i < n; i++ {
			b.Push(nil)
		}
		return b.Finish()
	case types.DTString, types.DTListBool, types.DTListInt, types.DTListFloat, types.DTListString:
		b := colarray.NewStringBuilder()
		for i := 0; i < n; i++ {
			b.Push(nil)
		}
		return b.Finish()
	case types.DTVirtualNode, types.DTNode:
		vb := colarray.VirtualNodeBuilder{}
		for i := 0; i < n; i++ {
			vb.Push(0)
		}
		arr := vb.Finish()
		arr.Valid = colarray.NewMaskAllInvalid(n)
		return arr
	case types.DTVirtualRel, types.DTRel:
		vb := colarray.VirtualRelBuilder{}
		for i := 0; i < n; i++ {
			vb.Push(0)
		}
		arr := vb.Finish()
		arr.Valid = colarray.NewMaskAllInvalid(n)
		return arr
	default:
		b := colarray.IntBuilder{}
		for i := 0; i < n; i++ {
			b.Push(nil)
		}
		return b.Finish()
	}
}

func rowCells(chunk *colarray.DataChunk, row int) []colarray.ScalarRef {
	out := make([]colarray.ScalarRef, len(chunk.Columns))
	for i, col := range chunk.Columns {
		out[i] = colarray.ScalarRef{Valid: col.IsValid(row), Arr: col, Row: row}
	}
	return out
}

func singleCellArray(cell colarray.ScalarRef) *colarray.Array {
	return colarray.Take(cell.Arr, []int{cell.Row})
}
