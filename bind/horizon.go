package bind

import (
	"github.com/boltgraph/boltgraph/ast"
	"github.com/boltgraph/boltgraph/expr"
	"github.com/boltgraph/boltgraph/ir"
	"github.com/boltgraph/boltgraph/types"
)

// expandStar turns a `RETURN *` / `WITH *` projection item into one item
// per currently bound scope variable, preserving bind order.
func expandStar(scope *Scope, items []ast.ProjectionItem) []ast.ProjectionItem {
	out := make([]ast.ProjectionItem, 0, len(items))
	for _, it := range items {
		if !it.Star {
			out = append(out, it)
			continue
		}
		for _, name := range scope.Names() {
			out = append(out, ast.ProjectionItem{Expr: ast.Variable{Name: name}, Alias: name})
		}
	}
	return out
}

func hasAggregate(items []ast.ProjectionItem) bool {
	for _, it := range items {
		if _, ok := it.Expr.(ast.AggregateCall); ok {
			return true
		}
	}
	return false
}

func aggFuncFromName(name string, hasArg bool) (ir.AggregateFunc, error) {
	switch name {
	case "count":
		if !hasArg {
			return ir.AggCountStar, nil
		}
		return ir.AggCount, nil
	case "sum":
		return ir.AggSum, nil
	case "avg":
		return ir.AggAvg, nil
	case "min":
		return ir.AggMin, nil
	case "max":
		return ir.AggMax, nil
	case "collect":
		return ir.AggCollect, nil
	default:
		return 0, types.NewError(types.KindPlan, "bind_aggregate", "unknown aggregate function: "+name)
	}
}

func aggResultType(fn ir.AggregateFunc, argType types.DataType) types.DataType {
	switch fn {
	case ir.AggCount, ir.AggCountStar:
		return types.DTInt
	case ir.AggSum, ir.AggAvg:
		return types.DTFloat
	case ir.AggMin, ir.AggMax:
		return argType
	default: // AggCollect
		return types.DTListString
	}
}

// bindProjectionItems resolves items (after Star expansion) against
// inputScope and returns the new output Scope alongside either a plain
// projection or an aggregation, matching whichever Horizon variant the
// items actually need (spec §9 Open Question resolution 1).
func (b *Binder) bindProjectionItems(inputScope *Scope, items []ast.ProjectionItem) (
	outScope *Scope, projItems []ir.ProjectItem, aggGroup []ir.ProjectItem, aggItems []ir.AggregateItem, isAgg bool, err error,
) {
	items = expandStar(inputScope, items)
	isAgg = hasAggregate(items)

	names := make([]string, 0, len(items))
	dts := make([]types.DataType, 0, len(items))

	for _, it := range items {
		alias := it.Alias
		if alias == "" {
			if v, ok := it.Expr.(ast.Variable); ok {
				alias = v.Name
			} else {
				alias = b.nextAnon("col")
			}
		}
		if agg, ok := it.Expr.(ast.AggregateCall); ok {
			var argExpr expr.Expr
			argType := types.DTAny
			if agg.Arg != nil {
				argExpr, err = b.resolveExpr(inputScope, agg.Arg)
				if err != nil {
					return nil, nil, nil, nil, false, err
				}
				argType = argExpr.Type()
			}
			fn, ferr := aggFuncFromName(agg.Name, agg.Arg != nil)
			if ferr != nil {
				err = ferr
				return nil, nil, nil, nil, false, err
			}
			aggItems = append(aggItems, ir.AggregateItem{Func: fn, Arg: argExpr, Distinct: agg.Distinct, Alias: alias})
			names = append(names, alias)
			dts = append(dts, aggResultType(fn, argType))
			continue
		}

		resolved, rerr := b.resolveExpr(inputScope, it.Expr)
		if rerr != nil {
			err = rerr
			return nil, nil, nil, nil, false, err
		}
		item := ir.ProjectItem{Expr: resolved, Alias: alias}
		if isAgg {
			aggGroup = append(aggGroup, item)
		} else {
			projItems = append(projItems, item)
		}
		names = append(names, alias)
		dts = append(dts, resolved.Type())
	}

	outScope = Fresh(names, dts)
	return outScope, projItems, aggGroup, aggItems, isAgg, nil
}

func (b *Binder) bindOrderBy(scope *Scope, items []ast.SortItem) ([]ir.OrderItem, error) {
	out := make([]ir.OrderItem, len(items))
	for i, it := range items {
		key, err := b.resolveExpr(scope, it.Key)
		if err != nil {
			return nil, err
		}
		out[i] = ir.OrderItem{Key: key, Descending: it.Descending}
	}
	return out, nil
}

func (b *Binder) optionalExpr(scope *Scope, e ast.Expr) (expr.Expr, error) {
	if e == nil {
		return nil, nil
	}
	return b.resolveExpr(scope, e)
}

// bindWith lowers a WITH clause into (Project|Aggregate) and returns the
// scope the next part binds against (spec §4.8 "WITH and RETURN compute a
// new scope").
func (b *Binder) bindWith(part *partBinder, c *ast.With) (ir.Horizon, *Scope, error) {
	outScope, projItems, aggGroup, aggItems, isAgg, err := b.bindProjectionItems(part.scope, c.Items)
	if err != nil {
		return nil, nil, err
	}
	order, err := b.bindOrderBy(outScope, c.OrderBy)
	if err != nil {
		return nil, nil, err
	}
	skip, err := b.optionalExpr(outScope, c.Skip)
	if err != nil {
		return nil, nil, err
	}
	limit, err := b.optionalExpr(outScope, c.Limit)
	if err != nil {
		return nil, nil, err
	}
	if isAgg {
		return &ir.Aggregate{GroupBy: aggGroup, Items: aggItems, Order: order, Skip: skip, Limit: limit}, outScope, nil
	}
	having, err := b.optionalExpr(outScope, c.Where)
	if err != nil {
		return nil, nil, err
	}
	return &ir.Project{Items: projItems, Filter: having, Order: order, Skip: skip, Limit: limit, Distinct: c.Distinct}, outScope, nil
}

// bindReturn is WITH's sibling, minus a following clause (spec §4.8:
// Return has the same shape but terminates the query).
func (b *Binder) bindReturn(part *partBinder, c *ast.Return) (ir.Horizon, error) {
	outScope, projItems, aggGroup, aggItems, isAgg, err := b.bindProjectionItems(part.scope, c.Items)
	if err != nil {
		return nil, err
	}
	order, err := b.bindOrderBy(outScope, c.OrderBy)
	if err != nil {
		return nil, err
	}
	skip, err := b.optionalExpr(outScope, c.Skip)
	if err != nil {
		return nil, err
	}
	limit, err := b.optionalExpr(outScope, c.Limit)
	if err != nil {
		return nil, err
	}
	if isAgg {
		return &ir.Aggregate{GroupBy: aggGroup, Items: aggItems, Order: order, Skip: skip, Limit: limit}, nil
	}
	return &ir.Project{Items: projItems, Order: order, Skip: skip, Limit: limit, Distinct: c.Distinct}, nil
}

// bindUnwind is Horizon::Unwind: one row in, N rows out over a
// list-typed expression (spec §4.8); the produced variable is the only
// one carried into the next part's scope alongside whatever was already
// bound, matching the original's row-expansion-not-projection semantics.
func (b *Binder) bindUnwind(part *partBinder, c *ast.Unwind) (ir.Horizon, *Scope, error) {
	e, err := b.resolveExpr(part.scope, c.Expr)
	if err != nil {
		return nil, nil, err
	}
	outScope := part.scope.Clone()
	outScope.Bind(c.Variable, elementTypeOf(e.Type()))
	return &ir.Unwind{Expr: e, Variable: c.Variable}, outScope, nil
}

// bindLoad is Horizon::Load: the CSV loader's single produced row
// variable starts a fresh scope rather than extending the current one
// (there is no pattern to import from for a bare LOAD, so the new scope is just the loaded
// variable; a preceding MATCH's variables are out of scope past a Load
// horizon in v1, mirroring how WITH would need to be used to carry them
// forward explicitly).
func (b *Binder) bindLoad(part *partBinder, c *ast.Load) (ir.Horizon, *Scope, error) {
	outScope := NewScope()
	outScope.Bind(c.Variable, types.DTStruct)
	return &ir.Load{URL: c.URL, Format: c.Format, WithHeaders: c.WithHeaders, Variable: c.Variable}, outScope, nil
}
