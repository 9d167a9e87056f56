package expr

import (
	"bytes"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/types"
)

// Compare implements eq/neq/lt/lte/gt/gte. Comparison of incomparable
// types returns null for ordering predicates and false/true for eq/neq
// respectively (spec §4.7, precise rule from
// _examples/original_source/src/cypher/src/expr/filters.rs, see
// SPEC_FULL.md Supplemented Features).
type Compare struct {
	Op          CompareOp
	Left, Right Expr
}

type CompareOp uint8

const (
	CmpEq CompareOp = iota
	CmpNeq
	CmpLt
	CmpLte
	CmpGt
	CmpGte
)

func (Compare) Type() types.DataType { return types.DTBool }

func (c Compare) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	l, err := c.Left.EvalBatch(chunk, ctx)
	if err != nil {
		return nil, err
	}
	r, err := c.Right.EvalBatch(chunk, ctx)
	if err != nil {
		return nil, err
	}
	n := chunk.Len()
	lt, rt := c.Left.Type(), c.Right.Type()
	out := make([]types.Value, n)
	for i := 0; i < n; i++ {
		lv, rv := valueAt(lt, l, i), valueAt(rt, r, i)
		out[i] = compareOne(c.Op, lv, rv)
	}
	return buildArray(types.DTBool, out), nil
}

func compareOne(op CompareOp, l, r types.Value) types.Value {
	if l.IsNull() || r.IsNull() {
		return types.Null()
	}
	if !comparable(l, r) {
		switch op {
		case CmpEq:
			return types.NewBool(false)
		case CmpNeq:
			return types.NewBool(true)
		default:
			return types.Null()
		}
	}
	cmp := compareSameKind(l, r)
	switch op {
	case CmpEq:
		return types.NewBool(cmp == 0)
	case CmpNeq:
		return types.NewBool(cmp != 0)
	case CmpLt:
		return types.NewBool(cmp < 0)
	case CmpLte:
		return types.NewBool(cmp <= 0)
	case CmpGt:
		return types.NewBool(cmp > 0)
	case CmpGte:
		return types.NewBool(cmp >= 0)
	}
	return types.Null()
}

// comparable reports whether l and r belong to an order-compatible kind:
// numbers compare cross-tag (int vs float), everything else must share a
// tag exactly.
func comparable(l, r types.Value) bool {
	if numericTag(l.Tag) && numericTag(r.Tag) {
		return true
	}
	return l.Tag == r.Tag
}

func numericTag(t types.ValueTag) bool {
	return t == types.TagInt || t == types.TagFloat
}

func compareSameKind(l, r types.Value) int {
	if numericTag(l.Tag) && numericTag(r.Tag) {
		lf, rf := asFloat(l), asFloat(r)
		switch {
		case lf < rf:
			return -1
		case lf > rf:
			return 1
		default:
			return 0
		}
	}
	switch l.Tag {
	case types.TagBool:
		return boolCompare(l.Bool, r.Bool)
	case types.TagString:
		return bytes.Compare([]byte(l.Str), []byte(r.Str))
	case types.TagDate, types.TagLocalTime, types.TagLocalDateTime, types.TagZonedDateTime:
		switch {
		case l.Time.Before(r.Time):
			return -1
		case l.Time.After(r.Time):
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

func boolCompare(l, r bool) int {
	if l == r {
		return 0
	}
	if !l && r {
		return -1
	}
	return 1
}
