// Package expr implements the expression evaluator (spec §4.7): every
// expression exposes a logical Type and a vectorized EvalBatch over a
// colarray.DataChunk. Binding resolves property and label names to token
// ids before building an Expr tree; a Variable keeps its name and finds
// its column in the chunk's schema at evaluation time.
package expr

import (
	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/types"
)

// Expr is implemented by every node the planner builds from ast via
// bind. EvalBatch must compute a column of exactly chunk.Len() values;
// rows the chunk currently marks invisible may hold arbitrary output
// (spec §4.7 "non-observable"), so implementations are free to compute
// over every physical row rather than branch on visibility.
type Expr interface {
	Type() types.DataType
	EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error)
}

// Materializer turns a virtual-node/virtual-rel array into its full
// form; HasLabel and property field access over a virtual column need
// it (spec §4.7). Executors bind this to a storage.GraphTxn method so
// expr never imports storage directly.
type Materializer interface {
	MaterializeNodes(ids *colarray.Array) (*colarray.Array, error)
	MaterializeRels(ids *colarray.Array) (*colarray.Array, error)
}

// TokenNamer resolves an interned token id back to its string name;
// token.Store satisfies this directly. labels()/type() need it to
// produce user-visible strings rather than raw ids.
type TokenNamer interface {
	GetName(kind types.TokenKind, id types.TokenId) (string, error)
}

// Context carries everything EvalBatch needs beyond the chunk itself:
// bound query parameters, a Materializer for virtual-entity field
// access / HasLabel checks, and a TokenNamer for id-to-name functions.
type Context struct {
	Params map[string]types.Value
	Mat    Materializer
	Names  TokenNamer
}

// Literal is a constant scalar, broadcast to chunk length.
type Literal struct {
	Value types.Value
}

func (l Literal) Type() types.DataType { return dataTypeOf(l.Value) }

func (l Literal) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	return broadcastValue(l.Value, chunk.Len()), nil
}

// Parameter reads `$name` from ctx.Params; unbound parameters evaluate
// to null rather than erroring, matching literal-like usage at the
// language level.
type Parameter struct {
	Name string
}

func (p Parameter) Type() types.DataType { return types.DTAny }

func (p Parameter) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	v, ok := ctx.Params[p.Name]
	if !ok {
		v = types.Null()
	}
	return broadcastValue(v, chunk.Len()), nil
}

// Variable reads the column named Name from the input chunk's schema.
// Resolving by name rather than a precomputed index means an operator's
// physical column order never has to match the binder's scope order
// (spec §4.8 binder scope vs. §4.9 planner-chosen traversal order can
// diverge freely).
type Variable struct {
	Name string
	Typ  types.DataType
}

func (v Variable) Type() types.DataType { return v.Typ }

func (v Variable) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	idx := chunk.Schema.IndexOf(v.Name)
	if idx < 0 {
		return nil, types.NewError(types.KindBuild, "variable_eval", "variable not found in chunk schema: "+v.Name)
	}
	return chunk.Columns[idx], nil
}

func dataTypeOf(v types.Value) types.DataType {
	switch v.Tag {
	case types.TagNull:
		return types.DTNull
	case types.TagBool:
		return types.DTBool
	case types.TagInt:
		return types.DTInt
	case types.TagFloat:
		return types.DTFloat
	case types.TagString:
		return types.DTString
	case types.TagListBool:
		return types.DTListBool
	case types.TagListInt:
		return types.DTListInt
	case types.TagListFloat:
		return types.DTListFloat
	case types.TagListString:
		return types.DTListString
	case types.TagDate:
		return types.DTDate
	case types.TagLocalTime:
		return types.DTLocalTime
	case types.TagLocalDateTime:
		return types.DTLocalDateTime
	case types.TagZonedDateTime:
		return types.DTZonedDateTime
	case types.TagDuration:
		return types.DTDuration
	default:
		return types.DTAny
	}
}

// broadcastValue repeats a scalar Value into an n-row Array.
func broadcastValue(v types.Value, n int) *colarray.Array {
	vals := make([]types.Value, n)
	for i := range vals {
		vals[i] = v
	}
	return buildArray(dataTypeOf(v), vals)
}
