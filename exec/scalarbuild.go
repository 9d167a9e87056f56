package exec

import (
	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/types"
)

// buildColumn assembles an output column of logical type dt from one
// types.Value per row, the aggregate/produce-result counterpart of the
// per-row scalars expr.Expr evaluates in bulk.
func buildColumn(dt types.DataType, vals []types.Value) *colarray.Array {
	switch dt {
	case types.DTBool:
		b := colarray.BoolBuilder{}
		for _, v := range vals {
			if v.IsNull() {
				b.Push(nil)
				continue
			}
			x := v.Bool
			b.Push(&x)
		}
		return b.Finish()
	case types.DTFloat:
		b := colarray.FloatBuilder{}
		for _, v := range vals {
			if v.IsNull() {
				b.Push(nil)
				continue
			}
			x := v.Float
			b.Push(&x)
		}
		return b.Finish()
	case types.DTString:
		b := colarray.NewStringBuilder()
		for _, v := range vals {
			if v.IsNull() {
				b.Push(nil)
				continue
			}
			x := v.Str
			b.Push(&x)
		}
		return b.Finish()
	case types.DTListBool, types.DTListInt, types.DTListFloat, types.DTListString:
		return buildListColumn(dt, vals)
	default:
		b := colarray.IntBuilder{}
		for _, v := range vals {
			if v.IsNull() {
				b.Push(nil)
				continue
			}
			x := v.Int
			b.Push(&x)
		}
		return b.Finish()
	}
}

func buildListColumn(dt types.DataType, vals []types.Value) *colarray.Array {
	lb := colarray.NewListBuilder()
	switch dt {
	case types.DTListBool:
		child := colarray.BoolBuilder{}
		for _, v := range vals {
			if v.IsNull() {
				lb.PushNull()
				continue
			}
			for _, e := range v.ListBool {
				x := e
				child.Push(&x)
			}
			lb.PushLen(len(v.ListBool))
		}
		return lb.Finish(child.Finish())
	case types.DTListInt:
		child := colarray.IntBuilder{}
		for _, v := range vals {
			if v.IsNull() {
				lb.PushNull()
				continue
			}
			for _, e := range v.ListInt {
				x := e
				child.Push(&x)
			}
			lb.PushLen(len(v.ListInt))
		}
		return lb.Finish(child.Finish())
	case types.DTListFloat:
		child := colarray.FloatBuilder{}
		for _, v := range vals {
			if v.IsNull() {
				lb.PushNull()
				continue
			}
			for _, e := range v.ListFloat {
				x := e
				child.Push(&x)
			}
			lb.PushLen(len(v.ListFloat))
		}
		return lb.Finish(child.Finish())
	default: // DTListString
		child := colarray.NewStringBuilder()
		for _, v := range vals {
			if v.IsNull() {
				lb.PushNull()
				continue
			}
			for _, e := range v.ListString {
				x := e
				child.Push(&x)
			}
			lb.PushLen(len(v.ListString))
		}
		return lb.Finish(child.Finish())
	}
}
