package expr

import (
	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/propmap"
	"github.com/boltgraph/boltgraph/types"
)

// PropertyAccess reads a node/rel/property-map column by resolved
// PropertyKeyId (spec §4.7 "Field access ... looks up by ... token id
// (node/rel)"). A virtual-node/virtual-rel target is materialized first
// via ctx.Mat. Missing key yields null.
type PropertyAccess struct {
	Target Expr
	Key    types.PropertyKeyId
	Typ    types.DataType
}

func (p PropertyAccess) Type() types.DataType { return p.Typ }

func (p PropertyAccess) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	target, err := p.Target.EvalBatch(chunk, ctx)
	if err != nil {
		return nil, err
	}
	target, err = materializeIfVirtual(target, ctx)
	if err != nil {
		return nil, err
	}

	n := chunk.Len()
	out := make([]types.Value, n)
	for i := 0; i < n; i++ {
		out[i] = propertyAt(target, i, p.Key)
	}
	return buildArray(p.Typ, out), nil
}

func materializeIfVirtual(a *colarray.Array, ctx *Context) (*colarray.Array, error) {
	switch a.Phys {
	case colarray.PVirtualNode:
		return ctx.Mat.MaterializeNodes(a)
	case colarray.PVirtualRel:
		return ctx.Mat.MaterializeRels(a)
	default:
		return a, nil
	}
}

func propertyAt(a *colarray.Array, row int, key types.PropertyKeyId) types.Value {
	if !a.IsValid(row) {
		return types.Null()
	}
	var blob []byte
	switch a.Phys {
	case colarray.PNode:
		blob = a.NodeProps[row]
	case colarray.PRel:
		blob = a.RelProps[row]
	case colarray.PPropMap:
		blob = a.PropMaps[row]
	default:
		return types.Null()
	}
	v, ok := propmap.Open(blob).Get(key)
	if !ok {
		return types.Null()
	}
	return v
}

// StructField reads a struct-array field by name (property maps produced
// by CreateStruct don't intern keys, so name lookup is done once at bind
// time against FieldNames and cached as Index here).
type StructField struct {
	Target Expr
	Index  int
	Typ    types.DataType
}

func (s StructField) Type() types.DataType { return s.Typ }

func (s StructField) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	target, err := s.Target.EvalBatch(chunk, ctx)
	if err != nil {
		return nil, err
	}
	if s.Index < 0 || target.Phys != colarray.PStruct {
		return buildArray(s.Typ, make([]types.Value, chunk.Len())), nil
	}
	child := target.FieldChildren[s.Index]
	n := chunk.Len()
	out := make([]types.Value, n)
	for i := 0; i < n; i++ {
		if !target.IsValid(i) {
			out[i] = types.Null()
			continue
		}
		out[i] = valueAt(s.Typ, child, i)
	}
	return buildArray(s.Typ, out), nil
}

// Indexing implements `expr[index]` and `expr[lo..hi]` over list/string
// columns; an out-of-range index returns null rather than erroring
// (spec §7 "out-of-range list/string index ... returns null at the
// language level").
type Indexing struct {
	Target  Expr
	Index   Expr
	IsSlice bool
	SliceLo Expr
	SliceHi Expr
	Typ     types.DataType
}

func (ix Indexing) Type() types.DataType { return ix.Typ }

func (ix Indexing) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	target, err := ix.Target.EvalBatch(chunk, ctx)
	if err != nil {
		return nil, err
	}
	n := chunk.Len()
	if ix.IsSlice {
		return ix.evalSlice(chunk, ctx, target, n)
	}

	idxArr, err := ix.Index.EvalBatch(chunk, ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Value, n)
	for i := 0; i < n; i++ {
		if !target.IsValid(i) || !idxArr.IsValid(i) {
			out[i] = types.Null()
			continue
		}
		idx := int(idxArr.Ints[i])
		out[i] = elementAt(ix.Target.Type(), target, i, idx)
	}
	return buildArray(ix.Typ, out), nil
}

func (ix Indexing) evalSlice(chunk *colarray.DataChunk, ctx *Context, target *colarray.Array, n int) (*colarray.Array, error) {
	lo, hi := 0, -1
	var loArr, hiArr *colarray.Array
	var err error
	if ix.SliceLo != nil {
		loArr, err = ix.SliceLo.EvalBatch(chunk, ctx)
		if err != nil {
			return nil, err
		}
	}
	if ix.SliceHi != nil {
		hiArr, err = ix.SliceHi.EvalBatch(chunk, ctx)
		if err != nil {
			return nil, err
		}
	}
	out := make([]types.Value, n)
	for i := 0; i < n; i++ {
		if !target.IsValid(i) {
			out[i] = types.Null()
			continue
		}
		l, h := lo, hi
		if loArr != nil && loArr.IsValid(i) {
			l = int(loArr.Ints[i])
		}
		if hiArr != nil && hiArr.IsValid(i) {
			h = int(hiArr.Ints[i])
		}
		out[i] = sliceAt(ix.Target.Type(), target, i, l, h)
	}
	return buildArray(ix.Typ, out), nil
}

func elementAt(dt types.DataType, a *colarray.Array, row, idx int) types.Value {
	switch a.Phys {
	case colarray.PString:
		s := a.StringAt(row)
		runes := []rune(s)
		if idx < 0 || idx >= len(runes) {
			return types.Null()
		}
		return types.NewString(string(runes[idx]))
	case colarray.PList:
		s, e := a.ListBounds(row)
		pos := s + idx
		if idx < 0 || pos >= e {
			return types.Null()
		}
		return valueAt(elementType(dt), a.Child, pos)
	default:
		return types.Null()
	}
}

func sliceAt(dt types.DataType, a *colarray.Array, row, lo, hi int) types.Value {
	switch a.Phys {
	case colarray.PString:
		runes := []rune(a.StringAt(row))
		l, h := clampSlice(lo, hi, len(runes))
		return types.NewString(string(runes[l:h]))
	case colarray.PList:
		s, e := a.ListBounds(row)
		length := e - s
		l, h := clampSlice(lo, hi, length)
		elemType := elementType(dt)
		vals := make([]types.Value, 0, h-l)
		for i := l; i < h; i++ {
			vals = append(vals, valueAt(elemType, a.Child, s+i))
		}
		return listValueOf(dt, vals)
	default:
		return types.Null()
	}
}

func clampSlice(lo, hi, length int) (int, int) {
	if hi < 0 || hi > length {
		hi = length
	}
	if lo < 0 {
		lo = 0
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

func elementType(listType types.DataType) types.DataType {
	switch listType {
	case types.DTListBool:
		return types.DTBool
	case types.DTListInt:
		return types.DTInt
	case types.DTListFloat:
		return types.DTFloat
	case types.DTListString:
		return types.DTString
	default:
		return types.DTAny
	}
}

func listValueOf(dt types.DataType, vals []types.Value) types.Value {
	switch dt {
	case types.DTListBool:
		out := make([]bool, len(vals))
		for i, v := range vals {
			out[i] = v.Bool
		}
		return types.NewListBool(out)
	case types.DTListInt:
		out := make([]int64, len(vals))
		for i, v := range vals {
			out[i] = v.Int
		}
		return types.NewListInt(out)
	case types.DTListFloat:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = v.Float
		}
		return types.NewListFloat(out)
	case types.DTListString:
		out := make([]string, len(vals))
		for i, v := range vals {
			out[i] = v.Str
		}
		return types.NewListString(out)
	default:
		return types.Null()
	}
}
