package expr

import (
	"fmt"
	"math"
	"strconv"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/types"
)

// ParamKind drives overload resolution: Exact beats AnyList beats Any
// (spec §4.7 "Function registry").
type ParamKind uint8

const (
	PKExact ParamKind = iota
	PKAnyList
	PKAny
)

// ParamPattern matches one argument position of an overload.
type ParamPattern struct {
	Kind  ParamKind
	Exact types.DataType // meaningful when Kind == PKExact
}

// Overload is one `(arg_type_patterns) -> return_type` signature with a
// batched implementation.
type Overload struct {
	Params []ParamPattern
	Return func(argTypes []types.DataType) types.DataType
	Eval   func(args []*colarray.Array, argTypes []types.DataType, n int, ctx *Context) (*colarray.Array, error)
}

// Function is a name plus its overload set.
type Function struct {
	Name      string
	Overloads []Overload
}

// Registry is the global immutable function table (spec §4.7). Binding
// resolves a call's overload once; evaluation reuses the chosen Overload
// directly via Call.
type Registry struct {
	funcs map[string]*Function
}

// NewRegistry returns the registry populated with the functions in
// DefaultFunctions.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]*Function)}
	for _, f := range DefaultFunctions() {
		r.Register(f)
	}
	return r
}

func (r *Registry) Register(f *Function) { r.funcs[f.Name] = f }

func (r *Registry) Lookup(name string) (*Function, bool) {
	f, ok := r.funcs[name]
	return f, ok
}

// Resolve picks the most-specific overload whose parameter patterns
// match argTypes, preferring Exact over AnyList over Any at the first
// position where the candidates differ. Returns an error if no overload
// matches or the name is unknown (spec §7 KindBuild "unresolved token at
// expression build" covers function resolution failures too).
func (r *Registry) Resolve(name string, argTypes []types.DataType) (*Overload, error) {
	f, ok := r.funcs[name]
	if !ok {
		return nil, types.NewError(types.KindBuild, "resolve_function", "unknown function "+name)
	}
	var best *Overload
	var bestScore []ParamKind
	for i := range f.Overloads {
		ov := &f.Overloads[i]
		if len(ov.Params) != len(argTypes) {
			continue
		}
		score := make([]ParamKind, len(argTypes))
		ok := true
		for j, p := range ov.Params {
			if !paramMatches(p, argTypes[j]) {
				ok = false
				break
			}
			score[j] = p.Kind
		}
		if !ok {
			continue
		}
		if best == nil || lessSpecific(bestScore, score) {
			best = ov
			bestScore = score
		}
	}
	if best == nil {
		return nil, types.NewError(types.KindBuild, "resolve_function",
			fmt.Sprintf("no overload of %s matches argument types %v", name, argTypes))
	}
	return best, nil
}

// lessSpecific reports whether candidate beats current at the first
// position they differ (lower ParamKind value == more specific).
func lessSpecific(current, candidate []ParamKind) bool {
	for i := range current {
		if candidate[i] != current[i] {
			return candidate[i] < current[i]
		}
	}
	return false
}

func paramMatches(p ParamPattern, dt types.DataType) bool {
	switch p.Kind {
	case PKExact:
		return p.Exact == dt
	case PKAnyList:
		return dt.IsList() || dt == types.DTPath || dt == types.DTVirtualPath
	default:
		return true
	}
}

// Call is a resolved function application; binding fills in Overload
// once the argument types are known.
type Call struct {
	Overload *Overload
	Args     []Expr
	Typ      types.DataType
}

func (c Call) Type() types.DataType { return c.Typ }

func (c Call) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	argArrs := make([]*colarray.Array, len(c.Args))
	argTypes := make([]types.DataType, len(c.Args))
	for i, a := range c.Args {
		arr, err := a.EvalBatch(chunk, ctx)
		if err != nil {
			return nil, err
		}
		argArrs[i] = arr
		argTypes[i] = a.Type()
	}
	return c.Overload.Eval(argArrs, argTypes, chunk.Len(), ctx)
}

// DefaultFunctions returns the builtin scalar function set: length, size,
// abs, toInteger, toFloat, toString, coalesce, labels, type, id. These
// cover the scenarios spec §8 exercises (notably `length(p)`) plus the
// common utility surface a Cypher-like language needs.
func DefaultFunctions() []*Function {
	return []*Function{
		lengthFunc(),
		sizeFunc(),
		absFunc(),
		toIntegerFunc(),
		toFloatFunc(),
		toStringFunc(),
		coalesceFunc(),
		labelsFunc(),
		typeFunc(),
		idFunc(),
	}
}

func unary(exact types.DataType, ret types.DataType, eval func(v types.Value) types.Value) Overload {
	return Overload{
		Params: []ParamPattern{{Kind: PKExact, Exact: exact}},
		Return: func([]types.DataType) types.DataType { return ret },
		Eval: func(args []*colarray.Array, argTypes []types.DataType, n int, ctx *Context) (*colarray.Array, error) {
			out := make([]types.Value, n)
			for i := 0; i < n; i++ {
				v := valueAt(argTypes[0], args[0], i)
				if v.IsNull() {
					out[i] = types.Null()
					continue
				}
				out[i] = eval(v)
			}
			return buildArray(ret, out), nil
		},
	}
}

// length(path) -> number of relationships in the path (spec §8 scenario
// 5); also accepts a string, returning its character count. Lists are
// counted by size(), not length().
func lengthFunc() *Function {
	pathLen := func(virtual bool) Overload {
		exact := types.DTPath
		if virtual {
			exact = types.DTVirtualPath
		}
		return Overload{
			Params: []ParamPattern{{Kind: PKExact, Exact: exact}},
			Return: func([]types.DataType) types.DataType { return types.DTInt },
			Eval: func(args []*colarray.Array, argTypes []types.DataType, n int, ctx *Context) (*colarray.Array, error) {
				out := make([]types.Value, n)
				for i := 0; i < n; i++ {
					if !args[0].IsValid(i) {
						out[i] = types.Null()
						continue
					}
					s, e := args[0].PathRels.ListBounds(i)
					out[i] = types.NewInt(int64(e - s))
				}
				return buildArray(types.DTInt, out), nil
			},
		}
	}
	return &Function{Name: "length", Overloads: []Overload{
		pathLen(false),
		pathLen(true),
		{
			Params: []ParamPattern{{Kind: PKExact, Exact: types.DTString}},
			Return: func([]types.DataType) types.DataType { return types.DTInt },
			Eval: func(args []*colarray.Array, argTypes []types.DataType, n int, ctx *Context) (*colarray.Array, error) {
				out := make([]types.Value, n)
				for i := 0; i < n; i++ {
					if !args[0].IsValid(i) {
						out[i] = types.Null()
						continue
					}
					out[i] = types.NewInt(int64(len([]rune(args[0].StringAt(i)))))
				}
				return buildArray(types.DTInt, out), nil
			},
		},
	}}
}

// size(list) -> element count; size(string) aliases length(string).
func sizeFunc() *Function {
	listSize := func(elem types.DataType) Overload {
		return Overload{
			Params: []ParamPattern{{Kind: PKExact, Exact: elem}},
			Return: func([]types.DataType) types.DataType { return types.DTInt },
			Eval: func(args []*colarray.Array, argTypes []types.DataType, n int, ctx *Context) (*colarray.Array, error) {
				out := make([]types.Value, n)
				for i := 0; i < n; i++ {
					if !args[0].IsValid(i) {
						out[i] = types.Null()
						continue
					}
					s, e := args[0].ListBounds(i)
					out[i] = types.NewInt(int64(e - s))
				}
				return buildArray(types.DTInt, out), nil
			},
		}
	}
	return &Function{Name: "size", Overloads: []Overload{
		listSize(types.DTListBool), listSize(types.DTListInt),
		listSize(types.DTListFloat), listSize(types.DTListString),
		{
			Params: []ParamPattern{{Kind: PKExact, Exact: types.DTString}},
			Return: func([]types.DataType) types.DataType { return types.DTInt },
			Eval: func(args []*colarray.Array, argTypes []types.DataType, n int, ctx *Context) (*colarray.Array, error) {
				out := make([]types.Value, n)
				for i := 0; i < n; i++ {
					if !args[0].IsValid(i) {
						out[i] = types.Null()
						continue
					}
					out[i] = types.NewInt(int64(len([]rune(args[0].StringAt(i)))))
				}
				return buildArray(types.DTInt, out), nil
			},
		},
	}}
}

func absFunc() *Function {
	return &Function{Name: "abs", Overloads: []Overload{
		{
			Params: []ParamPattern{{Kind: PKExact, Exact: types.DTInt}},
			Return: func([]types.DataType) types.DataType { return types.DTInt },
			Eval: func(args []*colarray.Array, argTypes []types.DataType, n int, ctx *Context) (*colarray.Array, error) {
				out := make([]types.Value, n)
				for i := 0; i < n; i++ {
					v := valueAt(types.DTInt, args[0], i)
					if v.IsNull() {
						out[i] = types.Null()
						continue
					}
					x := v.Int
					if x < 0 {
						x = -x
					}
					out[i] = types.NewInt(x)
				}
				return buildArray(types.DTInt, out), nil
			},
		},
		{
			Params: []ParamPattern{{Kind: PKExact, Exact: types.DTFloat}},
			Return: func([]types.DataType) types.DataType { return types.DTFloat },
			Eval: func(args []*colarray.Array, argTypes []types.DataType, n int, ctx *Context) (*colarray.Array, error) {
				out := make([]types.Value, n)
				for i := 0; i < n; i++ {
					v := valueAt(types.DTFloat, args[0], i)
					if v.IsNull() {
						out[i] = types.Null()
						continue
					}
					out[i] = types.NewFloat(math.Abs(v.Float))
				}
				return buildArray(types.DTFloat, out), nil
			},
		},
	}}
}

func toIntegerFunc() *Function {
	return &Function{Name: "toInteger", Overloads: []Overload{
		unary(types.DTString, types.DTInt, func(v types.Value) types.Value {
			n, err := strconv.ParseInt(v.Str, 10, 64)
			if err != nil {
				return types.Null()
			}
			return types.NewInt(n)
		}),
		unary(types.DTFloat, types.DTInt, func(v types.Value) types.Value {
			return types.NewInt(int64(v.Float))
		}),
		unary(types.DTInt, types.DTInt, func(v types.Value) types.Value { return v }),
	}}
}

func toFloatFunc() *Function {
	return &Function{Name: "toFloat", Overloads: []Overload{
		unary(types.DTString, types.DTFloat, func(v types.Value) types.Value {
			f, err := strconv.ParseFloat(v.Str, 64)
			if err != nil {
				return types.Null()
			}
			return types.NewFloat(f)
		}),
		unary(types.DTInt, types.DTFloat, func(v types.Value) types.Value {
			return types.NewFloat(float64(v.Int))
		}),
		unary(types.DTFloat, types.DTFloat, func(v types.Value) types.Value { return v }),
	}}
}

func toStringFunc() *Function {
	return &Function{Name: "toString", Overloads: []Overload{
		unary(types.DTInt, types.DTString, func(v types.Value) types.Value { return types.NewString(v.String()) }),
		unary(types.DTFloat, types.DTString, func(v types.Value) types.Value { return types.NewString(v.String()) }),
		unary(types.DTBool, types.DTString, func(v types.Value) types.Value { return types.NewString(v.String()) }),
		unary(types.DTString, types.DTString, func(v types.Value) types.Value { return v }),
	}}
}

// coalesce(a, b, ...) -> the first non-null argument. The result takes
// the first argument's type; neither the binder nor this overload checks
// that the other arguments share it.
func coalesceFunc() *Function {
	variadicAny := func(n int) Overload {
		params := make([]ParamPattern, n)
		for i := range params {
			params[i] = ParamPattern{Kind: PKAny}
		}
		return Overload{
			Params: params,
			Return: func(argTypes []types.DataType) types.DataType {
				if len(argTypes) == 0 {
					return types.DTAny
				}
				return argTypes[0]
			},
			Eval: func(args []*colarray.Array, argTypes []types.DataType, n int, ctx *Context) (*colarray.Array, error) {
				out := make([]types.Value, n)
				for i := 0; i < n; i++ {
					out[i] = types.Null()
					for j, a := range args {
						v := valueAt(argTypes[j], a, i)
						if !v.IsNull() {
							out[i] = v
							break
						}
					}
				}
				ret := types.DTAny
				if len(argTypes) > 0 {
					ret = argTypes[0]
				}
				return buildArray(ret, out), nil
			},
		}
	}
	// Registered up to a small fixed arity; the binder picks the overload
	// matching the call's actual argument count.
	overloads := make([]Overload, 0, 8)
	for n := 1; n <= 8; n++ {
		overloads = append(overloads, variadicAny(n))
	}
	return &Function{Name: "coalesce", Overloads: overloads}
}

func labelsFunc() *Function {
	return &Function{Name: "labels", Overloads: []Overload{
		{
			Params: []ParamPattern{{Kind: PKExact, Exact: types.DTNode}},
			Return: func([]types.DataType) types.DataType { return types.DTListString },
			Eval: func(args []*colarray.Array, argTypes []types.DataType, n int, ctx *Context) (*colarray.Array, error) {
				lb := colarray.NewListBuilder()
				child := colarray.NewStringBuilder()
				for i := 0; i < n; i++ {
					if !args[0].IsValid(i) {
						lb.PushNull()
						continue
					}
					labels := args[0].NodeLabels[i]
					for _, id := range labels {
						name, err := ctx.Names.GetName(types.TokenLabel, types.TokenId(id))
						if err != nil {
							return nil, err
						}
						child.Push(&name)
					}
					lb.PushLen(len(labels))
				}
				return lb.Finish(child.Finish()), nil
			},
		},
	}}
}

func typeFunc() *Function {
	return &Function{Name: "type", Overloads: []Overload{
		{
			Params: []ParamPattern{{Kind: PKExact, Exact: types.DTRel}},
			Return: func([]types.DataType) types.DataType { return types.DTString },
			Eval: func(args []*colarray.Array, argTypes []types.DataType, n int, ctx *Context) (*colarray.Array, error) {
				out := make([]types.Value, n)
				for i := 0; i < n; i++ {
					if !args[0].IsValid(i) {
						out[i] = types.Null()
						continue
					}
					name, err := ctx.Names.GetName(types.TokenRelType, args[0].RelTypes[i])
					if err != nil {
						return nil, err
					}
					out[i] = types.NewString(name)
				}
				return buildArray(types.DTString, out), nil
			},
		},
	}}
}

func idFunc() *Function {
	nodeID := Overload{
		Params: []ParamPattern{{Kind: PKExact, Exact: types.DTNode}},
		Return: func([]types.DataType) types.DataType { return types.DTInt },
		Eval: func(args []*colarray.Array, argTypes []types.DataType, n int, ctx *Context) (*colarray.Array, error) {
			out := make([]types.Value, n)
			for i := 0; i < n; i++ {
				if !args[0].IsValid(i) {
					out[i] = types.Null()
					continue
				}
				out[i] = types.NewInt(int64(args[0].NodeIDs[i]))
			}
			return buildArray(types.DTInt, out), nil
		},
	}
	relID := nodeID
	relID.Params = []ParamPattern{{Kind: PKExact, Exact: types.DTRel}}
	relID.Eval = func(args []*colarray.Array, argTypes []types.DataType, n int, ctx *Context) (*colarray.Array, error) {
		out := make([]types.Value, n)
		for i := 0; i < n; i++ {
			if !args[0].IsValid(i) {
				out[i] = types.Null()
				continue
			}
			out[i] = types.NewInt(int64(args[0].RelIDs[i]))
		}
		return buildArray(types.DTInt, out), nil
	}
	return &Function{Name: "id", Overloads: []Overload{nodeID, relID}}
}
