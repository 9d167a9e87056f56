package plan

import (
	"github.com/boltgraph/boltgraph/expr"
	"github.com/boltgraph/boltgraph/ir"
	"github.com/boltgraph/boltgraph/types"
)

// lowerHorizon implements spec §4.9 step 5: Project -> optional Filter
// (having) -> Sort -> Pagination, or the Aggregate/Unwind/Load
// equivalents. It returns the lowered node plus the column names that
// node's schema now carries, in the part's output order.
func lowerHorizon(node Node, h ir.Horizon) (Node, []string, error) {
	switch horizon := h.(type) {
	case *ir.Project:
		return lowerProject(node, horizon)
	case *ir.Aggregate:
		return lowerAggregate(node, horizon)
	case *ir.Unwind:
		schema := node.Schema().Append(horizon.Variable, elementTypeOf(horizon.Expr.Type()))
		n := &Unwind{baseNode: unary(schema, node), Expr: horizon.Expr, Variable: horizon.Variable}
		return n, schema.Names(), nil
	case *ir.Load:
		schema := types.NewSchema().Append(horizon.Variable, types.DTStruct)
		n := &Load{baseNode: leaf(schema), URL: horizon.URL, Format: horizon.Format, WithHeaders: horizon.WithHeaders, Variable: horizon.Variable}
		return n, schema.Names(), nil
	default:
		return nil, nil, types.NewError(types.KindPlan, "lower_horizon", "unrecognized horizon variant")
	}
}

func lowerProject(node Node, p *ir.Project) (Node, []string, error) {
	items := make([]ProjectItem, len(p.Items))
	schema := types.NewSchema()
	for i, it := range p.Items {
		items[i] = ProjectItem{Expr: it.Expr, Alias: it.Alias}
		schema = schema.Append(it.Alias, it.Expr.Type())
	}
	node = &Project{baseNode: unary(schema, node), Items: items, Distinct: p.Distinct}

	var err error
	if p.Filter != nil {
		node, err = applyFilter(node, p.Filter)
		if err != nil {
			return nil, nil, err
		}
	}
	node = lowerSort(node, p.Order)
	node = lowerPagination(node, p.Skip, p.Limit)
	return node, schema.Names(), nil
}

func lowerAggregate(node Node, a *ir.Aggregate) (Node, []string, error) {
	group := make([]ProjectItem, len(a.GroupBy))
	schema := types.NewSchema()
	for i, it := range a.GroupBy {
		group[i] = ProjectItem{Expr: it.Expr, Alias: it.Alias}
		schema = schema.Append(it.Alias, it.Expr.Type())
	}
	items := make([]AggregateItem, len(a.Items))
	for i, it := range a.Items {
		items[i] = AggregateItem{Func: AggregateFunc(it.Func), Arg: it.Arg, Distinct: it.Distinct, Alias: it.Alias}
		schema = schema.Append(it.Alias, aggColumnType(it))
	}
	node = &Aggregate{baseNode: unary(schema, node), GroupBy: group, Items: items}
	node = lowerSort(node, a.Order)
	node = lowerPagination(node, a.Skip, a.Limit)
	return node, schema.Names(), nil
}

func aggColumnType(it ir.AggregateItem) types.DataType {
	switch it.Func {
	case ir.AggCount, ir.AggCountStar:
		return types.DTInt
	case ir.AggSum, ir.AggAvg:
		return types.DTFloat
	case ir.AggMin, ir.AggMax:
		if it.Arg != nil {
			return it.Arg.Type()
		}
		return types.DTAny
	default: // AggCollect
		return types.DTListString
	}
}

func lowerSort(node Node, order []ir.OrderItem) Node {
	if len(order) == 0 {
		return node
	}
	keys := make([]SortKey, len(order))
	for i, o := range order {
		keys[i] = SortKey{Expr: o.Key, Descending: o.Descending}
	}
	return &Sort{baseNode: unary(node.Schema(), node), Keys: keys}
}

func lowerPagination(node Node, skip, limit ir.Filter) Node {
	if skip == nil && limit == nil {
		return node
	}
	return &Pagination{baseNode: unary(node.Schema(), node), Skip: skip, Limit: limit}
}

func elementTypeOf(listType types.DataType) types.DataType {
	switch listType {
	case types.DTListBool:
		return types.DTBool
	case types.DTListInt:
		return types.DTInt
	case types.DTListFloat:
		return types.DTFloat
	case types.DTListString, types.DTString:
		return types.DTString
	default:
		return types.DTAny
	}
}

// produceResult wraps the plan in ProduceResult (spec §4.9 final step);
// names come from the last horizon's output schema, or the running
// node's schema for a trailing CREATE with no closing horizon.
func produceResult(node Node, names []string) (Node, []string) {
	if node == nil {
		node = &Unit{baseNode: leaf(types.NewSchema())}
	}
	if names == nil {
		names = node.Schema().Names()
	}
	cols := make([]ReturnColumn, len(names))
	for i, n := range names {
		idx := node.Schema().IndexOf(n)
		cols[i] = ReturnColumn{Name: n, Expr: variableRef(idx, node.Schema())}
	}
	return &ProduceResult{baseNode: unary(node.Schema(), node), Columns: cols}, names
}

func variableRef(idx int, schema *types.Schema) expr.Expr {
	if idx < 0 {
		return expr.Literal{Value: types.Null()}
	}
	return expr.Variable{Name: schema.Fields[idx].Name, Typ: schema.Fields[idx].Type}
}
