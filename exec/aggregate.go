package exec

import (
	"context"
	"strconv"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/plan"
	"github.com/boltgraph/boltgraph/types"
)

// aggAccum is the running state for one (group, aggregate item) pair.
type aggAccum struct {
	count   int64
	sum     float64
	extreme types.Value
	haveExt bool
	seen    map[string]bool // Distinct dedup key set
	collect []types.Value
}

// aggregate groups rows by GroupBy and computes Items per group (spec
// §9 open question resolution 1). It collects its entire input before
// emitting anything, since a group's membership isn't known until the
// input is exhausted.
type aggregate struct {
	schema *types.Schema
	ex     *Exec
	n      *plan.Aggregate
	in     Stream
	done   bool
}

func newAggregate(ex *Exec, n *plan.Aggregate, in Stream) *aggregate {
	return &aggregate{schema: n.Schema(), ex: ex, n: n, in: in}
}

func (a *aggregate) Schema() *types.Schema { return a.schema }

func (a *aggregate) Next(ctx context.Context) (*colarray.DataChunk, error) {
	if a.done {
		return nil, nil
	}
	a.done = true

	groupKeys := make([]string, 0)
	groupVals := make(map[string][]types.Value) // group key -> GroupBy values
	accums := make(map[string][]*aggAccum)      // group key -> one accum per Items entry

	for {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		in, err := a.in.Next(ctx)
		if err != nil {
			return nil, err
		}
		if in == nil {
			break
		}
		groupCols := make([]*colarray.Array, len(a.n.GroupBy))
		for i, g := range a.n.GroupBy {
			arr, err := g.Expr.EvalBatch(in, a.ex.Ctx)
			if err != nil {
				return nil, err
			}
			groupCols[i] = arr
		}
		itemCols := make([]*colarray.Array, len(a.n.Items))
		for i, it := range a.n.Items {
			if it.Arg == nil {
				continue
			}
			arr, err := it.Arg.EvalBatch(in, a.ex.Ctx)
			if err != nil {
				return nil, err
			}
			itemCols[i] = arr
		}

		for row := 0; row < in.Len(); row++ {
			if !in.Visibility.Get(row) {
				continue
			}
			key := rowKey(groupCols, row)
			if _, ok := accums[key]; !ok {
				groupKeys = append(groupKeys, key)
				vals := make([]types.Value, len(groupCols))
				for i, c := range groupCols {
					vals[i] = scalarAt(c, row)
				}
				groupVals[key] = vals
				acc := make([]*aggAccum, len(a.n.Items))
				for i := range acc {
					acc[i] = &aggAccum{}
				}
				accums[key] = acc
			}
			for i, it := range a.n.Items {
				accumulateOne(accums[key][i], it, itemCols[i], row)
			}
		}
	}

	outCols := make([]*colarray.Array, a.schema.Len())
	gw := len(a.n.GroupBy)
	for i := 0; i < gw; i++ {
		vals := make([]types.Value, len(groupKeys))
		for r, k := range groupKeys {
			vals[r] = groupVals[k][i]
		}
		outCols[i] = buildColumn(a.schema.Fields[i].Type, vals)
	}
	for i, it := range a.n.Items {
		vals := make([]types.Value, len(groupKeys))
		for r, k := range groupKeys {
			vals[r] = finishAccum(it.Func, accums[k][i])
		}
		outCols[gw+i] = buildColumn(a.schema.Fields[gw+i].Type, vals)
	}
	return colarray.NewDataChunk(a.schema, outCols), nil
}

func accumulateOne(acc *aggAccum, it plan.AggregateItem, arg *colarray.Array, row int) {
	if it.Func == plan.AggCountStar {
		acc.count++
		return
	}
	if arg == nil || !arg.IsValid(row) {
		return
	}
	v := scalarAt(arg, row)
	if it.Distinct {
		if acc.seen == nil {
			acc.seen = make(map[string]bool)
		}
		k := cellString(arg, row)
		if acc.seen[k] {
			return
		}
		acc.seen[k] = true
	}
	switch it.Func {
	case plan.AggCount:
		acc.count++
	case plan.AggSum, plan.AggAvg:
		acc.count++
		acc.sum += numericOf(v)
	case plan.AggMin:
		if !acc.haveExt || valueLess(v, acc.extreme) {
			acc.extreme, acc.haveExt = v, true
		}
	case plan.AggMax:
		if !acc.haveExt || valueLess(acc.extreme, v) {
			acc.extreme, acc.haveExt = v, true
		}
	case plan.AggCollect:
		acc.collect = append(acc.collect, v)
	}
}

func finishAccum(fn plan.AggregateFunc, acc *aggAccum) types.Value {
	switch fn {
	case plan.AggCount, plan.AggCountStar:
		return types.NewInt(acc.count)
	case plan.AggSum:
		return types.NewFloat(acc.sum)
	case plan.AggAvg:
		if acc.count == 0 {
			return types.Null()
		}
		return types.NewFloat(acc.sum / float64(acc.count))
	case plan.AggMin, plan.AggMax:
		if !acc.haveExt {
			return types.Null()
		}
		return acc.extreme
	default: // AggCollect
		out := make([]string, len(acc.collect))
		for i, v := range acc.collect {
			out[i] = stringOf(v)
		}
		return types.NewListString(out)
	}
}

func numericOf(v types.Value) float64 {
	if v.Tag == types.TagFloat {
		return v.Float
	}
	return float64(v.Int)
}

func stringOf(v types.Value) string {
	if v.Tag == types.TagString {
		return v.Str
	}
	return cellValueString(v)
}

func cellValueString(v types.Value) string {
	switch v.Tag {
	case types.TagBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case types.TagInt:
		return strconv.FormatInt(v.Int, 10)
	case types.TagFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return ""
	}
}

// valueLess orders Int/Float/String values; other kinds never compare
// less than one another, which only affects min/max over ill-typed
// input.
func valueLess(a, b types.Value) bool {
	switch {
	case a.Tag == types.TagInt && b.Tag == types.TagInt:
		return a.Int < b.Int
	case a.Tag == types.TagString && b.Tag == types.TagString:
		return a.Str < b.Str
	default:
		return numericOf(a) < numericOf(b)
	}
}
