package bind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boltgraph/boltgraph/ast"
	"github.com/boltgraph/boltgraph/expr"
	"github.com/boltgraph/boltgraph/ir"
	"github.com/boltgraph/boltgraph/types"
)

// fakeTokens is a deterministic, in-memory TokenResolver for tests: each
// distinct (kind, name) gets the next id in allocation order.
type fakeTokens struct {
	ids map[types.TokenKind]map[string]types.TokenId
	n   types.TokenId
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{ids: map[types.TokenKind]map[string]types.TokenId{
		types.TokenLabel:       {},
		types.TokenRelType:     {},
		types.TokenPropertyKey: {},
	}}
}

func (f *fakeTokens) GetOrCreate(kind types.TokenKind, name string) (types.TokenId, error) {
	m := f.ids[kind]
	if id, ok := m[name]; ok {
		return id, nil
	}
	f.n++
	m[name] = f.n
	return f.n, nil
}

func newBinder() *Binder {
	return New(newFakeTokens(), expr.NewRegistry())
}

func stmt(clauses ...ast.Clause) *ast.Statement {
	return &ast.Statement{Query: &ast.Query{Branches: []*ast.SingleQuery{{Clauses: clauses}}}}
}

func pattern(nodes []*ast.NodePattern, rels []*ast.RelPattern) *ast.PatternPart {
	return &ast.PatternPart{Nodes: nodes, Rels: rels}
}

func TestBindMatchReturnVariable(t *testing.T) {
	b := newBinder()
	q, err := b.Bind(stmt(
		&ast.Match{Patterns: []*ast.PatternPart{
			pattern([]*ast.NodePattern{{Variable: "n"}}, nil),
		}},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Variable{Name: "n"}, Alias: "n"}}},
	))
	require.NoError(t, err)
	require.Len(t, q.Branches, 1)
	require.Len(t, q.Branches[0].Parts, 1)

	part := q.Branches[0].Parts[0]
	assert.Equal(t, []string{"n"}, part.Graph.Nodes)
	assert.Nil(t, part.Graph.Filter)

	proj, ok := part.Horizon.(*ir.Project)
	require.True(t, ok)
	require.Len(t, proj.Items, 1)
	assert.Equal(t, "n", proj.Items[0].Alias)
	v, ok := proj.Items[0].Expr.(expr.Variable)
	require.True(t, ok)
	assert.Equal(t, "n", v.Name)
}

func TestBindMatchLabelAndPropertyEqualityFoldIntoFilter(t *testing.T) {
	b := newBinder()
	q, err := b.Bind(stmt(
		&ast.Match{Patterns: []*ast.PatternPart{
			pattern([]*ast.NodePattern{{
				Variable:   "n",
				Labels:     ast.LabelName{Name: "Person"},
				Properties: &ast.MapLiteral{Entries: []ast.MapEntry{{Key: "name", Value: ast.Literal{Value: types.NewString("Bob")}}}},
			}}, nil),
		}},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Variable{Name: "n"}, Alias: "n"}}},
	))
	require.NoError(t, err)

	filter := q.Branches[0].Parts[0].Graph.Filter
	require.NotNil(t, filter)
	and, ok := filter.(expr.BoolOp)
	require.True(t, ok)
	assert.Equal(t, expr.ConnAnd, and.Op)

	hl, ok := and.Left.(expr.HasLabel)
	require.True(t, ok)
	require.Len(t, hl.Tokens, 1)

	eq, ok := and.Right.(expr.Compare)
	require.True(t, ok)
	assert.Equal(t, expr.CmpEq, eq.Op)
	_, ok = eq.Left.(expr.PropertyAccess)
	require.True(t, ok)
}

func TestBindMatchWhereClause(t *testing.T) {
	b := newBinder()
	q, err := b.Bind(stmt(
		&ast.Match{
			Patterns: []*ast.PatternPart{pattern([]*ast.NodePattern{{Variable: "n"}}, nil)},
			Where: ast.BinaryOp{Op: ast.OpGt,
				Left:  ast.PropertyAccess{Target: ast.Variable{Name: "n"}, Key: "age"},
				Right: ast.Literal{Value: types.NewInt(21)},
			},
		},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Variable{Name: "n"}, Alias: "n"}}},
	))
	require.NoError(t, err)
	cmp, ok := q.Branches[0].Parts[0].Graph.Filter.(expr.Compare)
	require.True(t, ok)
	assert.Equal(t, expr.CmpGt, cmp.Op)
}

func TestBindRelPatternDirectionAndEither(t *testing.T) {
	b := newBinder()
	q, err := b.Bind(stmt(
		&ast.Match{Patterns: []*ast.PatternPart{
			pattern(
				[]*ast.NodePattern{{Variable: "a"}, {Variable: "b"}},
				[]*ast.RelPattern{{Variable: "r", Types: []string{"KNOWS"}, Direction: ast.RelEither, MinHops: -1, MaxHops: -1}},
			),
		}},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Variable{Name: "r"}, Alias: "r"}}},
	))
	require.NoError(t, err)
	rels := q.Branches[0].Parts[0].Graph.Rels
	require.Len(t, rels, 1)
	assert.True(t, rels[0].Either)
	assert.Equal(t, "a", rels[0].StartVar)
	assert.Equal(t, "b", rels[0].EndVar)
}

func TestBindVarLengthRequiresExplicitMax(t *testing.T) {
	b := newBinder()
	_, err := b.Bind(stmt(
		&ast.Match{Patterns: []*ast.PatternPart{
			pattern(
				[]*ast.NodePattern{{Variable: "a"}, {Variable: "b"}},
				[]*ast.RelPattern{{Types: []string{"KNOWS"}, Direction: ast.RelOutgoing, MinHops: 1, MaxHops: -1}},
			),
		}},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Variable{Name: "a"}, Alias: "a"}}},
	))
	require.Error(t, err)
}

func TestBindVarLengthWithExplicitMax(t *testing.T) {
	b := newBinder()
	q, err := b.Bind(stmt(
		&ast.Match{Patterns: []*ast.PatternPart{
			pattern(
				[]*ast.NodePattern{{Variable: "a"}, {Variable: "b"}},
				[]*ast.RelPattern{{Types: []string{"KNOWS"}, Direction: ast.RelOutgoing, MinHops: 1, MaxHops: 3}},
			),
		}},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Variable{Name: "a"}, Alias: "a"}}},
	))
	require.NoError(t, err)
	vl := q.Branches[0].Parts[0].Graph.Rels[0].VarLength
	require.NotNil(t, vl)
	assert.Equal(t, 1, vl.Min)
	assert.Equal(t, 3, vl.Max)
}

func TestBindRelVariableRepeatedInOnePatternPartRejected(t *testing.T) {
	b := newBinder()
	_, err := b.Bind(stmt(
		&ast.Match{Patterns: []*ast.PatternPart{
			pattern(
				[]*ast.NodePattern{{Variable: "a"}, {Variable: "b"}, {Variable: "c"}},
				[]*ast.RelPattern{
					{Variable: "r", Types: []string{"KNOWS"}, Direction: ast.RelOutgoing, MinHops: -1, MaxHops: -1},
					{Variable: "r", Types: []string{"KNOWS"}, Direction: ast.RelOutgoing, MinHops: -1, MaxHops: -1},
				},
			),
		}},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Variable{Name: "a"}, Alias: "a"}}},
	))
	require.Error(t, err)
}

func TestBindCreateAnonymousNodeRejected(t *testing.T) {
	b := newBinder()
	_, err := b.Bind(stmt(&ast.Create{Patterns: []*ast.PatternPart{
		pattern([]*ast.NodePattern{{}}, nil),
	}}))
	require.Error(t, err)
}

func TestBindCreateNonPureAndLabelRejected(t *testing.T) {
	b := newBinder()
	_, err := b.Bind(stmt(&ast.Create{Patterns: []*ast.PatternPart{
		pattern([]*ast.NodePattern{{Variable: "n", Labels: ast.LabelOr{Left: ast.LabelName{Name: "A"}, Right: ast.LabelName{Name: "B"}}}}, nil),
	}}))
	require.Error(t, err)
}

func TestBindCreateNodeAndRelDependencyOrder(t *testing.T) {
	b := newBinder()
	q, err := b.Bind(stmt(&ast.Create{Patterns: []*ast.PatternPart{
		pattern(
			[]*ast.NodePattern{
				{Variable: "a", Labels: ast.LabelName{Name: "Person"}},
				{Variable: "b", Labels: ast.LabelName{Name: "Person"}},
			},
			[]*ast.RelPattern{{Variable: "r", Types: []string{"KNOWS"}, Direction: ast.RelOutgoing}},
		),
	}}))
	require.NoError(t, err)
	creates := q.Branches[0].Parts[0].Graph.Creates
	require.Len(t, creates, 2)
	assert.Equal(t, "a", creates[0].NodeVar)
	require.NotNil(t, creates[0].Rel)
	assert.Equal(t, "a", creates[0].Rel.StartVar)
	assert.Equal(t, "b", creates[0].Rel.EndVar)
	assert.Equal(t, "b", creates[1].NodeVar)
	assert.Nil(t, creates[1].Rel)
}

func TestBindCreateRelMultipleTypesRejected(t *testing.T) {
	b := newBinder()
	_, err := b.Bind(stmt(&ast.Create{Patterns: []*ast.PatternPart{
		pattern(
			[]*ast.NodePattern{{Variable: "a"}, {Variable: "b"}},
			[]*ast.RelPattern{{Types: []string{"KNOWS", "LIKES"}, Direction: ast.RelOutgoing}},
		),
	}}))
	require.Error(t, err)
}

func TestBindWithStarExpansionAndNextPartScope(t *testing.T) {
	b := newBinder()
	q, err := b.Bind(stmt(
		&ast.Match{Patterns: []*ast.PatternPart{pattern([]*ast.NodePattern{{Variable: "n"}}, nil)}},
		&ast.With{Items: []ast.ProjectionItem{{Star: true}}},
		&ast.Match{Patterns: []*ast.PatternPart{pattern([]*ast.NodePattern{{Variable: "n"}}, nil)}},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Variable{Name: "n"}, Alias: "n"}}},
	))
	require.NoError(t, err)
	require.Len(t, q.Branches[0].Parts, 2)

	withProj, ok := q.Branches[0].Parts[0].Horizon.(*ir.Project)
	require.True(t, ok)
	require.Len(t, withProj.Items, 1)
	assert.Equal(t, "n", withProj.Items[0].Alias)

	// The second part re-references "n" from the prior WITH's output scope,
	// so the binder records it as imported rather than a fresh pattern node.
	assert.Contains(t, q.Branches[0].Parts[1].Graph.Imported, "n")
	assert.NotContains(t, q.Branches[0].Parts[1].Graph.Nodes, "n")
}

func TestBindAggregateDetection(t *testing.T) {
	b := newBinder()
	q, err := b.Bind(stmt(
		&ast.Match{Patterns: []*ast.PatternPart{pattern([]*ast.NodePattern{{Variable: "n"}}, nil)}},
		&ast.Return{Items: []ast.ProjectionItem{
			{Expr: ast.Variable{Name: "n"}, Alias: "n"},
			{Expr: ast.AggregateCall{Name: "count", Arg: ast.Variable{Name: "n"}}, Alias: "c"},
		}},
	))
	require.NoError(t, err)
	agg, ok := q.Branches[0].Parts[0].Horizon.(*ir.Aggregate)
	require.True(t, ok)
	require.Len(t, agg.GroupBy, 1)
	assert.Equal(t, "n", agg.GroupBy[0].Alias)
	require.Len(t, agg.Items, 1)
	assert.Equal(t, ir.AggCount, agg.Items[0].Func)
	assert.Equal(t, "c", agg.Items[0].Alias)
}

func TestBindAggregateCountStar(t *testing.T) {
	b := newBinder()
	q, err := b.Bind(stmt(
		&ast.Match{Patterns: []*ast.PatternPart{pattern([]*ast.NodePattern{{Variable: "n"}}, nil)}},
		&ast.Return{Items: []ast.ProjectionItem{
			{Expr: ast.AggregateCall{Name: "count"}, Alias: "c"},
		}},
	))
	require.NoError(t, err)
	agg := q.Branches[0].Parts[0].Horizon.(*ir.Aggregate)
	require.Len(t, agg.Items, 1)
	assert.Equal(t, ir.AggCountStar, agg.Items[0].Func)
	assert.Nil(t, agg.Items[0].Arg)
}

func TestBindUnwind(t *testing.T) {
	b := newBinder()
	q, err := b.Bind(stmt(
		&ast.Unwind{Expr: ast.ListLiteral{Elements: []ast.Expr{
			ast.Literal{Value: types.NewInt(1)},
			ast.Literal{Value: types.NewInt(2)},
		}}, Variable: "x"},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Variable{Name: "x"}, Alias: "x"}}},
	))
	require.NoError(t, err)
	require.Len(t, q.Branches[0].Parts, 2)
	uw, ok := q.Branches[0].Parts[0].Horizon.(*ir.Unwind)
	require.True(t, ok)
	assert.Equal(t, "x", uw.Variable)
}

func TestBindLoad(t *testing.T) {
	b := newBinder()
	q, err := b.Bind(stmt(
		&ast.Load{URL: "file:///rows.csv", Format: "csv", WithHeaders: true, Variable: "row"},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Variable{Name: "row"}, Alias: "row"}}},
	))
	require.NoError(t, err)
	load, ok := q.Branches[0].Parts[0].Horizon.(*ir.Load)
	require.True(t, ok)
	assert.Equal(t, "file:///rows.csv", load.URL)
	assert.True(t, load.WithHeaders)
}

func TestBindUnionRejected(t *testing.T) {
	b := newBinder()
	s := &ast.Statement{Query: &ast.Query{Branches: []*ast.SingleQuery{
		{Clauses: []ast.Clause{&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Literal{Value: types.NewInt(1)}, Alias: "x"}}}}},
		{Clauses: []ast.Clause{&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Literal{Value: types.NewInt(2)}, Alias: "x"}}}}},
	}}}
	_, err := b.Bind(s)
	require.Error(t, err)
}

func TestBindTrailingCreateOnlyPartHasNilHorizon(t *testing.T) {
	b := newBinder()
	q, err := b.Bind(stmt(&ast.Create{Patterns: []*ast.PatternPart{
		pattern([]*ast.NodePattern{{Variable: "n", Labels: ast.LabelName{Name: "Person"}}}, nil),
	}}))
	require.NoError(t, err)
	require.Len(t, q.Branches[0].Parts, 1)
	assert.Nil(t, q.Branches[0].Parts[0].Horizon)
}

func TestBindVariableNotFoundError(t *testing.T) {
	b := newBinder()
	_, err := b.Bind(stmt(&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Variable{Name: "nope"}, Alias: "n"}}}))
	require.Error(t, err)
}
