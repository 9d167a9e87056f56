package expr

import (
	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/types"
)

// Arith is a checked arithmetic binary expression (+ - * / %), resolved
// during binding to a fixed result type (spec §4.7 "checked int add/sub/
// mul; float follows IEEE-754"). Overflow on a checked integer op raises
// a KindEval error rather than wrapping.
type Arith struct {
	Op          ArithOp
	Left, Right Expr
	Typ         types.DataType
}

type ArithOp uint8

const (
	ArithAdd ArithOp = iota
	ArithSub
	ArithMul
	ArithDiv
	ArithMod
)

func (a Arith) Type() types.DataType { return a.Typ }

func (a Arith) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	l, err := a.Left.EvalBatch(chunk, ctx)
	if err != nil {
		return nil, err
	}
	r, err := a.Right.EvalBatch(chunk, ctx)
	if err != nil {
		return nil, err
	}
	n := chunk.Len()
	lt, rt := a.Left.Type(), a.Right.Type()
	out := make([]types.Value, n)
	for i := 0; i < n; i++ {
		lv, rv := valueAt(lt, l, i), valueAt(rt, r, i)
		if lv.IsNull() || rv.IsNull() {
			out[i] = types.Null()
			continue
		}
		v, err := applyArith(a.Op, lv, rv)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return buildArray(a.Typ, out), nil
}

func applyArith(op ArithOp, l, r types.Value) (types.Value, error) {
	if l.Tag == types.TagFloat || r.Tag == types.TagFloat {
		lf, rf := asFloat(l), asFloat(r)
		switch op {
		case ArithAdd:
			return types.NewFloat(lf + rf), nil
		case ArithSub:
			return types.NewFloat(lf - rf), nil
		case ArithMul:
			return types.NewFloat(lf * rf), nil
		case ArithDiv:
			return types.NewFloat(lf / rf), nil
		case ArithMod:
			return types.NewFloat(floatMod(lf, rf)), nil
		}
	}
	if l.Tag == types.TagString || r.Tag == types.TagString {
		return types.NewString(l.String() + r.String()), nil
	}
	switch op {
	case ArithAdd:
		sum := l.Int + r.Int
		if (r.Int > 0 && sum < l.Int) || (r.Int < 0 && sum > l.Int) {
			return types.Value{}, overflowErr("add")
		}
		return types.NewInt(sum), nil
	case ArithSub:
		diff := l.Int - r.Int
		if (r.Int < 0 && diff < l.Int) || (r.Int > 0 && diff > l.Int) {
			return types.Value{}, overflowErr("sub")
		}
		return types.NewInt(diff), nil
	case ArithMul:
		if l.Int != 0 && r.Int != 0 {
			prod := l.Int * r.Int
			if prod/l.Int != r.Int {
				return types.Value{}, overflowErr("mul")
			}
			return types.NewInt(prod), nil
		}
		return types.NewInt(0), nil
	case ArithDiv:
		if r.Int == 0 {
			return types.Value{}, overflowErr("div by zero")
		}
		return types.NewInt(l.Int / r.Int), nil
	case ArithMod:
		if r.Int == 0 {
			return types.Value{}, overflowErr("mod by zero")
		}
		return types.NewInt(l.Int % r.Int), nil
	}
	return types.Null(), nil
}

func asFloat(v types.Value) float64 {
	if v.Tag == types.TagFloat {
		return v.Float
	}
	return float64(v.Int)
}

func floatMod(a, b float64) float64 {
	m := a - b*float64(int64(a/b))
	return m
}

func overflowErr(op string) error {
	return types.NewError(types.KindEval, "arith", "integer overflow in "+op)
}

// Concat implements string and homogeneous-list concatenation (spec
// §4.7 "string concatenation allocates; list concatenation extends").
type Concat struct {
	Left, Right Expr
	Typ         types.DataType
}

func (c Concat) Type() types.DataType { return c.Typ }

func (c Concat) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
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
		if lv.IsNull() || rv.IsNull() {
			out[i] = types.Null()
			continue
		}
		out[i] = concatValues(c.Typ, lv, rv)
	}
	return buildArray(c.Typ, out), nil
}

func concatValues(dt types.DataType, l, r types.Value) types.Value {
	switch dt {
	case types.DTString:
		return types.NewString(l.Str + r.Str)
	case types.DTListBool:
		return types.NewListBool(append(append([]bool{}, l.ListBool...), r.ListBool...))
	case types.DTListInt:
		return types.NewListInt(append(append([]int64{}, l.ListInt...), r.ListInt...))
	case types.DTListFloat:
		return types.NewListFloat(append(append([]float64{}, l.ListFloat...), r.ListFloat...))
	case types.DTListString:
		return types.NewListString(append(append([]string{}, l.ListString...), r.ListString...))
	default:
		return types.Null()
	}
}

// BoolOp is AND/OR/XOR with Kleene three-valued semantics for AND/OR:
// null only propagates when it isn't already decided by the other
// operand (`false AND null == false`, `true OR null == true`).
type BoolOp struct {
	Op          BoolConn
	Left, Right Expr
}

type BoolConn uint8

const (
	ConnAnd BoolConn = iota
	ConnOr
	ConnXor
)

func (BoolOp) Type() types.DataType { return types.DTBool }

func (b BoolOp) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	l, err := b.Left.EvalBatch(chunk, ctx)
	if err != nil {
		return nil, err
	}
	r, err := b.Right.EvalBatch(chunk, ctx)
	if err != nil {
		return nil, err
	}
	n := chunk.Len()
	out := make([]types.Value, n)
	for i := 0; i < n; i++ {
		lv, rv := valueAt(types.DTBool, l, i), valueAt(types.DTBool, r, i)
		out[i] = kleene(b.Op, lv, rv)
	}
	return buildArray(types.DTBool, out), nil
}

func kleene(op BoolConn, l, r types.Value) types.Value {
	switch op {
	case ConnAnd:
		if (!l.IsNull() && !l.Bool) || (!r.IsNull() && !r.Bool) {
			return types.NewBool(false)
		}
		if l.IsNull() || r.IsNull() {
			return types.Null()
		}
		return types.NewBool(l.Bool && r.Bool)
	case ConnOr:
		if (!l.IsNull() && l.Bool) || (!r.IsNull() && r.Bool) {
			return types.NewBool(true)
		}
		if l.IsNull() || r.IsNull() {
			return types.Null()
		}
		return types.NewBool(l.Bool || r.Bool)
	default: // XOR has no three-valued special case; null propagates plainly
		if l.IsNull() || r.IsNull() {
			return types.Null()
		}
		return types.NewBool(l.Bool != r.Bool)
	}
}

// Not is boolean negation; IS NULL / IS NOT NULL are the only unary
// forms exempt from null propagation (spec §4.7).
type Not struct{ Operand Expr }

func (Not) Type() types.DataType { return types.DTBool }

func (n Not) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	v, err := n.Operand.EvalBatch(chunk, ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Value, chunk.Len())
	for i := range out {
		bv := valueAt(types.DTBool, v, i)
		if bv.IsNull() {
			out[i] = types.Null()
			continue
		}
		out[i] = types.NewBool(!bv.Bool)
	}
	return buildArray(types.DTBool, out), nil
}

// Negate is unary minus.
type Negate struct {
	Operand Expr
	Typ     types.DataType
}

func (n Negate) Type() types.DataType { return n.Typ }

func (n Negate) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	v, err := n.Operand.EvalBatch(chunk, ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Value, chunk.Len())
	for i := range out {
		sv := valueAt(n.Typ, v, i)
		if sv.IsNull() {
			out[i] = types.Null()
			continue
		}
		if sv.Tag == types.TagFloat {
			out[i] = types.NewFloat(-sv.Float)
		} else {
			out[i] = types.NewInt(-sv.Int)
		}
	}
	return buildArray(n.Typ, out), nil
}

// IsNull / IsNotNull are exempt from the usual null-propagation rule:
// they always produce a non-null boolean (spec §4.7).
type IsNull struct {
	Operand Expr
	Negate  bool
}

func (IsNull) Type() types.DataType { return types.DTBool }

func (n IsNull) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	v, err := n.Operand.EvalBatch(chunk, ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Value, chunk.Len())
	for i := range out {
		isNull := !v.IsValid(i)
		if n.Negate {
			out[i] = types.NewBool(!isNull)
		} else {
			out[i] = types.NewBool(isNull)
		}
	}
	return buildArray(types.DTBool, out), nil
}
