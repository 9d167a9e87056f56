package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boltgraph/boltgraph/expr"
	"github.com/boltgraph/boltgraph/ir"
	"github.com/boltgraph/boltgraph/types"
)

// fakeCatalog answers UniqueIndex from a fixed set of (label, single
// prop key) pairs, enough to exercise tryIndexSeek without storage.
type fakeCatalog struct {
	unique map[types.LabelId]types.PropertyKeyId
}

func (c fakeCatalog) UniqueIndex(label types.LabelId, keys []types.PropertyKeyId) bool {
	if len(keys) != 1 {
		return false
	}
	k, ok := c.unique[label]
	return ok && k == keys[0]
}

func projectN(vars ...string) *ir.Project {
	items := make([]ir.ProjectItem, len(vars))
	for i, v := range vars {
		items[i] = ir.ProjectItem{Expr: expr.Variable{Name: v, Typ: types.DTVirtualNode}, Alias: v}
	}
	return &ir.Project{Items: items}
}

func singleQuery(parts ...*ir.SingleQueryPart) *ir.Query {
	return &ir.Query{Branches: []*ir.SingleQuery{{Parts: parts}}}
}

func TestPlanSimpleMatchReturnIsScanProduceResult(t *testing.T) {
	qg := &ir.QueryGraph{Nodes: []string{"n"}}
	q := singleQuery(&ir.SingleQueryPart{Graph: qg, Horizon: projectN("n")})

	plan, err := PlanRoot(q, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, plan.Names)

	pr, ok := plan.Root.(*ProduceResult)
	require.True(t, ok)
	require.Len(t, pr.Children(), 1)

	proj, ok := pr.Children()[0].(*Project)
	require.True(t, ok)
	_, ok = proj.Children()[0].(*AllNodeScan)
	require.True(t, ok)
}

func TestPlanQueryGraphRejectsDisconnectedComponents(t *testing.T) {
	qg := &ir.QueryGraph{Nodes: []string{"a", "b"}} // no Rels connecting them
	_, err := planQueryGraph(qg, nil)
	require.Error(t, err)
}

func TestPlanComponentUsesArgumentWhenAllImported(t *testing.T) {
	qg := &ir.QueryGraph{Imported: []string{"n"}}
	node, err := planQueryGraph(qg, nil)
	require.NoError(t, err)
	_, ok := node.(*Argument)
	require.True(t, ok)
}

func TestPlanComponentExpandAllAddsRelAndEndNode(t *testing.T) {
	qg := &ir.QueryGraph{
		Nodes: []string{"a", "b"},
		Rels: []*ir.RelPattern{
			{Variable: "r", StartVar: "a", EndVar: "b", Direction: types.DirOutgoing},
		},
	}
	node, err := planQueryGraph(qg, nil)
	require.NoError(t, err)

	exp, ok := node.(*Expand)
	require.True(t, ok)
	assert.Equal(t, ExpandAll, exp.Kind)
	assert.Equal(t, "a", exp.StartVar)
	assert.Equal(t, "b", exp.EndVar)
	assert.Equal(t, []string{"a", "r", "b"}, exp.Schema().Names())
}

func TestPlanComponentExpandIntoWhenBothEndsSolved(t *testing.T) {
	// A triangle a-b, b-c, a-c: the DFS pops relationships off the tail
	// of the remaining list first, so r3 (a-c) and r2 (b-c) extend the
	// frontier to c and b respectively; by the time r1 (a-b) is
	// considered both its endpoints are already solved, so it must
	// close the triangle with Expand::Into rather than extending again.
	qg := &ir.QueryGraph{
		Nodes: []string{"a", "b", "c"},
		Rels: []*ir.RelPattern{
			{Variable: "r1", StartVar: "a", EndVar: "b", Direction: types.DirOutgoing},
			{Variable: "r2", StartVar: "b", EndVar: "c", Direction: types.DirOutgoing},
			{Variable: "r3", StartVar: "a", EndVar: "c", Direction: types.DirOutgoing},
		},
	}
	node, err := planQueryGraph(qg, nil)
	require.NoError(t, err)

	last, ok := node.(*Expand)
	require.True(t, ok)
	assert.Equal(t, ExpandInto, last.Kind)
	assert.Equal(t, "r1", last.RelVar)
}

func TestPlanComponentReversesDirectionWhenExtendingFromSolvedEnd(t *testing.T) {
	// Only `b` is reachable as a fresh leaf scan target in this single
	// relationship graph once `a` is chosen first; force that by giving
	// the leaf scan a fixed first node and checking the second relation
	// order via two separate rels off a shared middle node.
	qg := &ir.QueryGraph{
		Nodes: []string{"a", "b", "c"},
		Rels: []*ir.RelPattern{
			{Variable: "r1", StartVar: "a", EndVar: "b", Direction: types.DirOutgoing},
			{Variable: "r2", StartVar: "c", EndVar: "b", Direction: types.DirIncoming},
		},
	}
	node, err := planQueryGraph(qg, nil)
	require.NoError(t, err)

	last, ok := node.(*Expand)
	require.True(t, ok)
	assert.Equal(t, "r2", last.RelVar)
	// r2 is declared StartVar=c,EndVar=b,Incoming; b is solved first (via
	// r1), so the DFS must extend from b toward c, flipping the scan
	// direction to Outgoing.
	assert.Equal(t, "b", last.StartVar)
	assert.Equal(t, "c", last.EndVar)
	assert.Equal(t, types.DirOutgoing, last.Direction)
}

func TestPlanVarExpandRejectsUnboundedMax(t *testing.T) {
	qg := &ir.QueryGraph{
		Nodes: []string{"a", "b"},
		Rels: []*ir.RelPattern{
			{Variable: "r", StartVar: "a", EndVar: "b", Direction: types.DirOutgoing, VarLength: &ir.PatternLength{Min: 1, Max: -1}},
		},
	}
	_, err := planQueryGraph(qg, nil)
	require.Error(t, err)
}

func TestPlanVarExpandBoundedMaxBuildsVarExpand(t *testing.T) {
	qg := &ir.QueryGraph{
		Nodes: []string{"a", "b"},
		Rels: []*ir.RelPattern{
			{Variable: "r", StartVar: "a", EndVar: "b", Direction: types.DirOutgoing, VarLength: &ir.PatternLength{Min: 1, Max: 3}},
		},
	}
	node, err := planQueryGraph(qg, nil)
	require.NoError(t, err)
	ve, ok := node.(*VarExpand)
	require.True(t, ok)
	assert.Equal(t, 1, ve.Min)
	assert.Equal(t, 3, ve.Max)
}

func TestTryIndexSeekReplacesScanWhenUniqueIndexCovers(t *testing.T) {
	const personLabel types.LabelId = 1
	const nameKey types.PropertyKeyId = 2

	hl := expr.HasLabel{Target: expr.Variable{Name: "n", Typ: types.DTVirtualNode}, Tokens: []types.TokenId{personLabel}}
	eq := expr.Compare{
		Op:    expr.CmpEq,
		Left:  expr.PropertyAccess{Target: expr.Variable{Name: "n", Typ: types.DTVirtualNode}, Key: nameKey, Typ: types.DTString},
		Right: expr.Literal{Value: types.NewString("Ada")},
	}
	qg := &ir.QueryGraph{
		Nodes:  []string{"n"},
		Filter: expr.BoolOp{Op: expr.ConnAnd, Left: hl, Right: eq},
	}
	cat := fakeCatalog{unique: map[types.LabelId]types.PropertyKeyId{personLabel: nameKey}}

	node, err := planQueryGraph(qg, cat)
	require.NoError(t, err)

	// The filter is applied on top regardless (tryIndexSeek leaves the
	// covered predicate in qg.Filter as a cheap post-check).
	f, ok := node.(*Filter)
	require.True(t, ok)
	_, ok = f.Children()[0].(*NodeIndexSeek)
	require.True(t, ok)
}

func TestTryIndexSeekSkippedWithoutCatalog(t *testing.T) {
	qg := &ir.QueryGraph{Nodes: []string{"n"}}
	node, err := planQueryGraph(qg, nil)
	require.NoError(t, err)
	_, ok := node.(*AllNodeScan)
	require.True(t, ok)
}

func TestPlanHeadAppliesViaApplyWhenImportedJoinsRunningPipeline(t *testing.T) {
	first := &ir.QueryGraph{Nodes: []string{"n"}}
	running, err := planHead(nil, first, nil)
	require.NoError(t, err)

	secondGraph := &ir.QueryGraph{
		Imported: []string{"n"},
		Nodes:    []string{"m"},
		Rels: []*ir.RelPattern{
			{Variable: "r", StartVar: "n", EndVar: "m", Direction: types.DirOutgoing},
		},
	}
	joined, err := planHead(running, secondGraph, nil)
	require.NoError(t, err)

	ap, ok := joined.(*Apply)
	require.True(t, ok)
	assert.False(t, ap.Optional)
	assert.Equal(t, running, ap.Left)
}

func TestPlanHeadOptionalMatchSetsApplyOptional(t *testing.T) {
	first := &ir.QueryGraph{Nodes: []string{"n"}}
	running, err := planHead(nil, first, nil)
	require.NoError(t, err)

	opt := &ir.QueryGraph{
		Imported: []string{"n"},
		Nodes:    []string{"m"},
		Rels: []*ir.RelPattern{
			{Variable: "r", StartVar: "n", EndVar: "m", Direction: types.DirOutgoing},
		},
		Optional: true,
	}
	joined, err := planHead(running, opt, nil)
	require.NoError(t, err)
	ap, ok := joined.(*Apply)
	require.True(t, ok)
	assert.True(t, ap.Optional)
}

func TestPlanCreateNodeAndRelDependencyOrder(t *testing.T) {
	qg := &ir.QueryGraph{
		Creates: []*ir.CreatePattern{
			{NodeVar: "a"},
			{NodeVar: "b", Rel: &ir.CreateRelPattern{Var: "r", Type: 7, StartVar: "a", EndVar: "b"}},
		},
	}
	node, err := planHead(nil, qg, nil)
	require.NoError(t, err)

	rel, ok := node.(*CreateRel)
	require.True(t, ok)
	assert.Equal(t, "a", rel.StartVar)
	assert.Equal(t, "b", rel.EndVar)

	nodeB, ok := rel.Children()[0].(*CreateNode)
	require.True(t, ok)
	assert.Equal(t, "b", nodeB.Var)

	nodeA, ok := nodeB.Children()[0].(*CreateNode)
	require.True(t, ok)
	assert.Equal(t, "a", nodeA.Var)
}

func TestLowerProjectAppliesFilterSortPagination(t *testing.T) {
	qg := &ir.QueryGraph{Nodes: []string{"n"}}
	leaf, err := planQueryGraph(qg, nil)
	require.NoError(t, err)

	horizon := &ir.Project{
		Items:  []ir.ProjectItem{{Expr: expr.Variable{Name: "n", Typ: types.DTVirtualNode}, Alias: "n"}},
		Filter: expr.Compare{Op: expr.CmpEq, Left: expr.Literal{Value: types.NewInt(1)}, Right: expr.Literal{Value: types.NewInt(1)}},
		Order:  []ir.OrderItem{{Key: expr.Variable{Name: "n", Typ: types.DTVirtualNode}, Descending: true}},
		Skip:   expr.Literal{Value: types.NewInt(5)},
		Limit:  expr.Literal{Value: types.NewInt(10)},
	}
	node, names, err := lowerHorizon(leaf, horizon)
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, names)

	page, ok := node.(*Pagination)
	require.True(t, ok)
	sort, ok := page.Children()[0].(*Sort)
	require.True(t, ok)
	filter, ok := sort.Children()[0].(*Filter)
	require.True(t, ok)
	_, ok = filter.Children()[0].(*Project)
	require.True(t, ok)
}

func TestLowerAggregateComputesColumnTypes(t *testing.T) {
	qg := &ir.QueryGraph{Nodes: []string{"n"}}
	leaf, err := planQueryGraph(qg, nil)
	require.NoError(t, err)

	horizon := &ir.Aggregate{
		GroupBy: []ir.ProjectItem{{Expr: expr.Variable{Name: "n", Typ: types.DTVirtualNode}, Alias: "n"}},
		Items: []ir.AggregateItem{
			{Func: ir.AggCountStar, Alias: "c"},
		},
	}
	node, names, err := lowerHorizon(leaf, horizon)
	require.NoError(t, err)
	assert.Equal(t, []string{"n", "c"}, names)

	agg, ok := node.(*Aggregate)
	require.True(t, ok)
	assert.Equal(t, types.DTInt, agg.Schema().Fields[1].Type)
}

func TestLowerUnwindAppendsElementColumn(t *testing.T) {
	qg := &ir.QueryGraph{Nodes: []string{"n"}}
	leaf, err := planQueryGraph(qg, nil)
	require.NoError(t, err)

	horizon := &ir.Unwind{
		Expr:     expr.Literal{Value: types.NewListInt([]int64{1, 2, 3})},
		Variable: "x",
	}
	node, names, err := lowerHorizon(leaf, horizon)
	require.NoError(t, err)
	assert.Contains(t, names, "x")
	uw, ok := node.(*Unwind)
	require.True(t, ok)
	assert.Equal(t, "x", uw.Variable)
}

func TestLowerLoadIsLeafWithStructSchema(t *testing.T) {
	horizon := &ir.Load{URL: "file.csv", Format: "csv", WithHeaders: true, Variable: "row"}
	node, names, err := lowerHorizon(nil, horizon)
	require.NoError(t, err)
	assert.Equal(t, []string{"row"}, names)
	ld, ok := node.(*Load)
	require.True(t, ok)
	assert.Empty(t, ld.Children())
}

func TestProduceResultReordersToReturnOrder(t *testing.T) {
	qg := &ir.QueryGraph{Nodes: []string{"a", "b"}}
	leaf, err := planQueryGraph(qg, nil)
	require.NoError(t, err)
	// leaf here is just AllNodeScan(a); simulate two columns directly.
	schema := leaf.Schema().Append("b", types.DTVirtualNode)
	two := &projectStub{schema: schema, child: leaf}

	node, names := produceResult(two, []string{"b", "a"})
	assert.Equal(t, []string{"b", "a"}, names)
	pr, ok := node.(*ProduceResult)
	require.True(t, ok)
	assert.Equal(t, "b", pr.Columns[0].Name)
	assert.Equal(t, "a", pr.Columns[1].Name)
}

// projectStub is a minimal two-child-less Node used only to hand
// produceResult a schema with more than one column.
type projectStub struct {
	schema *types.Schema
	child  Node
}

func (p *projectStub) Schema() *types.Schema { return p.schema }
func (p *projectStub) Children() []Node      { return []Node{p.child} }
