package exec

import (
	"context"
	"fmt"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/plan"
	"github.com/boltgraph/boltgraph/types"
)

// filter drops rows where Pred evaluates to false or null, the
// three-valued WHERE semantics of spec §4.7: only a definite true keeps
// a row.
type filter struct {
	schema *types.Schema
	ex     *Exec
	in     Stream
	n      *plan.Filter
}

func newFilter(ex *Exec, n *plan.Filter, in Stream) *filter {
	return &filter{schema: in.Schema(), ex: ex, in: in, n: n}
}

func (f *filter) Schema() *types.Schema { return f.schema }

func (f *filter) Next(ctx context.Context) (*colarray.DataChunk, error) {
	for {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		in, err := f.in.Next(ctx)
		if err != nil {
			return nil, err
		}
		if in == nil {
			return nil, nil
		}
		pred, err := f.n.Pred.EvalBatch(in, f.ex.Ctx)
		if err != nil {
			return nil, err
		}
		mask := boolArrayToMask(pred)
		out := &colarray.DataChunk{Schema: in.Schema, Columns: in.Columns, Visibility: in.Visibility.And(mask)}
		if out.Visibility.Count() == 0 {
			continue
		}
		return out, nil
	}
}

// boolArrayToMask keeps only rows where the bool result is valid and
// true; a null or false filter result excludes the row (spec §4.7
// Kleene WHERE semantics).
func boolArrayToMask(a *colarray.Array) *colarray.Mask {
	bits := make([]bool, a.Len())
	for i := range bits {
		bits[i] = a.IsValid(i) && a.Bools[i]
	}
	return colarray.NewMaskFromBools(bits)
}

// project computes Items over its input, optionally de-duplicating rows
// (spec §4.9 step 5). Distinct keeps the set of rows already emitted
// across all chunks, so uniqueness is judged over the whole result while
// rows still stream out chunk by chunk.
type project struct {
	schema   *types.Schema
	ex       *Exec
	n        *plan.Project
	in       Stream
	seen     map[string]bool
	distinct bool
}

func newProject(ex *Exec, n *plan.Project, in Stream) *project {
	schema := types.NewSchema()
	for _, it := range n.Items {
		schema = schema.Append(it.Alias, it.Expr.Type())
	}
	p := &project{schema: schema, ex: ex, n: n, in: in, distinct: n.Distinct}
	if p.distinct {
		p.seen = make(map[string]bool)
	}
	return p
}

func (p *project) Schema() *types.Schema { return p.schema }

func (p *project) Next(ctx context.Context) (*colarray.DataChunk, error) {
	for {
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
		cols := make([]*colarray.Array, len(p.n.Items))
		for i, it := range p.n.Items {
			arr, err := it.Expr.EvalBatch(in, p.ex.Ctx)
			if err != nil {
				return nil, err
			}
			cols[i] = arr
		}
		vis := in.Visibility
		if p.distinct {
			vis = p.dedup(cols, vis)
			if vis.Count() == 0 {
				continue
			}
		}
		return &colarray.DataChunk{Schema: p.schema, Columns: cols, Visibility: vis}, nil
	}
}

func (p *project) dedup(cols []*colarray.Array, vis *colarray.Mask) *colarray.Mask {
	n := 0
	if len(cols) > 0 {
		n = cols[0].Len()
	}
	bits := make([]bool, n)
	for row := 0; row < n; row++ {
		if !vis.Get(row) {
			continue
		}
		key := rowKey(cols, row)
		if p.seen[key] {
			continue
		}
		p.seen[key] = true
		bits[row] = true
	}
	return colarray.NewMaskFromBools(bits)
}

func rowKey(cols []*colarray.Array, row int) string {
	key := ""
	for _, c := range cols {
		key += fmt.Sprintf("|%d:%v", c.Phys, cellString(c, row))
	}
	return key
}

func cellString(a *colarray.Array, row int) string {
	if !a.IsValid(row) {
		return "null"
	}
	switch a.Phys {
	case colarray.PBool:
		return fmt.Sprintf("%v", a.Bools[row])
	case colarray.PInt:
		return fmt.Sprintf("%d", a.Ints[row])
	case colarray.PFloat:
		return fmt.Sprintf("%g", a.Floats[row])
	case colarray.PString:
		return a.StringAt(row)
	case colarray.PVirtualNode, colarray.PNode:
		return fmt.Sprintf("n%d", a.NodeIDs[row])
	case colarray.PVirtualRel, colarray.PRel:
		return fmt.Sprintf("r%d", a.RelIDs[row])
	default:
		return fmt.Sprintf("%p@%d", a, row)
	}
}
