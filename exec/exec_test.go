package exec

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boltgraph/boltgraph/ast"
	"github.com/boltgraph/boltgraph/bind"
	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/expr"
	"github.com/boltgraph/boltgraph/plan"
	"github.com/boltgraph/boltgraph/storage"
	"github.com/boltgraph/boltgraph/types"
)

func openTestTxn(t *testing.T) *storage.GraphTxn {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.Open(storage.DatabaseOptions{Storage: storage.Options{Path: path}})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	txn, err := db.Begin(true)
	require.NoError(t, err)
	t.Cleanup(func() { txn.Rollback() })
	return txn
}

func stmt(clauses ...ast.Clause) *ast.Statement {
	return &ast.Statement{Query: &ast.Query{Branches: []*ast.SingleQuery{{Clauses: clauses}}}}
}

func pattern(nodes []*ast.NodePattern, rels []*ast.RelPattern) *ast.PatternPart {
	return &ast.PatternPart{Nodes: nodes, Rels: rels}
}

func props(entries ...ast.MapEntry) *ast.MapLiteral { return &ast.MapLiteral{Entries: entries} }

// runStmt binds and plans s against txn with no index catalog (every
// test here either never needs one or exercises a full scan), then
// builds and drains the resulting stream.
func runStmt(t *testing.T, txn *storage.GraphTxn, s *ast.Statement) [][]types.Value {
	t.Helper()
	b := bind.New(txn.Tokens(), expr.NewRegistry())
	q, err := b.Bind(s)
	require.NoError(t, err)
	p, err := plan.PlanRoot(q, nil)
	require.NoError(t, err)
	stream, err := Build(p.Root, txn, nil)
	require.NoError(t, err)
	return drainStream(t, stream)
}

func drainStream(t *testing.T, s Stream) [][]types.Value {
	t.Helper()
	var rows [][]types.Value
	for {
		chunk, err := s.Next(context.Background())
		require.NoError(t, err)
		if chunk == nil {
			return rows
		}
		chunk.Iter(func(cells []colarray.ScalarRef) bool {
			row := make([]types.Value, len(cells))
			for i, c := range cells {
				row[i] = c.Value
			}
			rows = append(rows, row)
			return true
		})
	}
}

func createPerson(name string, age int64) *ast.PatternPart {
	return pattern([]*ast.NodePattern{{
		Variable: "n",
		Labels:   ast.LabelName{Name: "Person"},
		Properties: props(
			ast.MapEntry{Key: "name", Value: ast.Literal{Value: types.NewString(name)}},
			ast.MapEntry{Key: "age", Value: ast.Literal{Value: types.NewInt(age)}},
		),
	}}, nil)
}

func TestBuildAllNodeScanCountsCreatedNodes(t *testing.T) {
	txn := openTestTxn(t)
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{createPerson("Alice", 30)}}))
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{createPerson("Bob", 10)}}))

	rows := runStmt(t, txn, stmt(
		&ast.Match{Patterns: []*ast.PatternPart{pattern([]*ast.NodePattern{{Variable: "n"}}, nil)}},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Variable{Name: "n"}, Alias: "n"}}},
	))
	require.Len(t, rows, 2)
}

func TestBuildFilterAppliesWhereClause(t *testing.T) {
	txn := openTestTxn(t)
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{createPerson("Alice", 30)}}))
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{createPerson("Bob", 10)}}))

	rows := runStmt(t, txn, stmt(
		&ast.Match{
			Patterns: []*ast.PatternPart{pattern([]*ast.NodePattern{{Variable: "n"}}, nil)},
			Where: ast.BinaryOp{Op: ast.OpGt,
				Left:  ast.PropertyAccess{Target: ast.Variable{Name: "n"}, Key: "age"},
				Right: ast.Literal{Value: types.NewInt(20)},
			},
		},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.PropertyAccess{Target: ast.Variable{Name: "n"}, Key: "name"}, Alias: "name"}}},
	))
	require.Len(t, rows, 1)
	require.Equal(t, "Alice", rows[0][0].Str)
}

func TestBuildExpandFiltersByRelType(t *testing.T) {
	txn := openTestTxn(t)
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{
		pattern(
			[]*ast.NodePattern{{Variable: "a", Labels: ast.LabelName{Name: "Person"}}, {Variable: "b", Labels: ast.LabelName{Name: "Person"}}},
			[]*ast.RelPattern{{Variable: "r", Types: []string{"KNOWS"}, Direction: ast.RelOutgoing}},
		),
	}}))
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{
		pattern(
			[]*ast.NodePattern{{Variable: "a", Labels: ast.LabelName{Name: "Person"}}, {Variable: "b", Labels: ast.LabelName{Name: "Person"}}},
			[]*ast.RelPattern{{Variable: "r", Types: []string{"LIKES"}, Direction: ast.RelOutgoing}},
		),
	}}))

	rows := runStmt(t, txn, stmt(
		&ast.Match{Patterns: []*ast.PatternPart{
			pattern(
				[]*ast.NodePattern{{Variable: "a"}, {Variable: "b"}},
				[]*ast.RelPattern{{Types: []string{"KNOWS"}, Direction: ast.RelOutgoing, MinHops: -1, MaxHops: -1}},
			),
		}},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Variable{Name: "a"}, Alias: "a"}}},
	))
	require.Len(t, rows, 1)
}

func TestBuildVarExpandBoundsDepthExactly(t *testing.T) {
	txn := openTestTxn(t)
	// a -REL-> b -REL-> c -REL-> d, a chain of 3 hops.
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{
		pattern(
			[]*ast.NodePattern{
				{Variable: "a", Labels: ast.LabelName{Name: "N"}, Properties: props(ast.MapEntry{Key: "id", Value: ast.Literal{Value: types.NewString("a")}})},
				{Variable: "b", Labels: ast.LabelName{Name: "N"}, Properties: props(ast.MapEntry{Key: "id", Value: ast.Literal{Value: types.NewString("b")}})},
				{Variable: "c", Labels: ast.LabelName{Name: "N"}, Properties: props(ast.MapEntry{Key: "id", Value: ast.Literal{Value: types.NewString("c")}})},
				{Variable: "d", Labels: ast.LabelName{Name: "N"}, Properties: props(ast.MapEntry{Key: "id", Value: ast.Literal{Value: types.NewString("d")}})},
			},
			[]*ast.RelPattern{
				{Variable: "r1", Types: []string{"REL"}, Direction: ast.RelOutgoing},
				{Variable: "r2", Types: []string{"REL"}, Direction: ast.RelOutgoing},
				{Variable: "r3", Types: []string{"REL"}, Direction: ast.RelOutgoing},
			},
		),
	}}))

	rows := runStmt(t, txn, stmt(
		&ast.Match{
			Patterns: []*ast.PatternPart{pattern(
				[]*ast.NodePattern{
					{Variable: "start", Labels: ast.LabelName{Name: "N"}, Properties: props(ast.MapEntry{Key: "id", Value: ast.Literal{Value: types.NewString("a")}})},
					{Variable: "end"},
				},
				[]*ast.RelPattern{{Types: []string{"REL"}, Direction: ast.RelOutgoing, MinHops: 2, MaxHops: 2}},
			)},
		},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.PropertyAccess{Target: ast.Variable{Name: "end"}, Key: "id"}, Alias: "id"}}},
	))
	require.Len(t, rows, 1)
	require.Equal(t, "c", rows[0][0].Str)
}

func TestBuildOptionalMatchProducesNullRowWhenNoMatch(t *testing.T) {
	txn := openTestTxn(t)
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{createPerson("Alice", 30)}}))

	rows := runStmt(t, txn, stmt(
		&ast.Match{Patterns: []*ast.PatternPart{pattern([]*ast.NodePattern{{Variable: "a"}}, nil)}},
		&ast.Match{
			Optional: true,
			Patterns: []*ast.PatternPart{pattern(
				[]*ast.NodePattern{{Variable: "a"}, {Variable: "b"}},
				[]*ast.RelPattern{{Types: []string{"KNOWS"}, Direction: ast.RelOutgoing, MinHops: -1, MaxHops: -1}},
			)},
		},
		&ast.Return{Items: []ast.ProjectionItem{
			{Expr: ast.PropertyAccess{Target: ast.Variable{Name: "a"}, Key: "name"}, Alias: "a_name"},
			{Expr: ast.Variable{Name: "b"}, Alias: "b"},
		}},
	))
	require.Len(t, rows, 1)
	require.Equal(t, "Alice", rows[0][0].Str)
}

func TestBuildAggregateCountStar(t *testing.T) {
	txn := openTestTxn(t)
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{createPerson("Alice", 30)}}))
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{createPerson("Bob", 10)}}))

	rows := runStmt(t, txn, stmt(
		&ast.Match{Patterns: []*ast.PatternPart{pattern([]*ast.NodePattern{{Variable: "n"}}, nil)}},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.AggregateCall{Name: "count"}, Alias: "c"}}},
	))
	require.Len(t, rows, 1)
	require.Equal(t, int64(2), rows[0][0].Int)
}

func TestBuildSortAndPagination(t *testing.T) {
	txn := openTestTxn(t)
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{createPerson("Alice", 30)}}))
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{createPerson("Bob", 10)}}))
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{createPerson("Cara", 20)}}))

	rows := runStmt(t, txn, stmt(
		&ast.Match{Patterns: []*ast.PatternPart{pattern([]*ast.NodePattern{{Variable: "n"}}, nil)}},
		&ast.Return{
			Items:   []ast.ProjectionItem{{Expr: ast.PropertyAccess{Target: ast.Variable{Name: "n"}, Key: "age"}, Alias: "age"}},
			OrderBy: []ast.SortItem{{Key: ast.PropertyAccess{Target: ast.Variable{Name: "n"}, Key: "age"}, Descending: true}},
			Skip:    ast.Literal{Value: types.NewInt(1)},
			Limit:   ast.Literal{Value: types.NewInt(1)},
		},
	))
	require.Len(t, rows, 1)
	require.Equal(t, int64(20), rows[0][0].Int)
}

func TestBuildCreateNodeFailsOnUniqueConstraintViolation(t *testing.T) {
	txn := openTestTxn(t)
	require.NoError(t, txn.CreateConstraint(storage.NewLabelLocks(), storage.ConstraintSpec{
		Name: "u1", EntityType: storage.EntityNode, Label: "Person", Kind: storage.ConstraintUnique,
		PropertyKeys: []string{"name"},
	}))
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{createPerson("Alice", 30)}}))

	b := bind.New(txn.Tokens(), expr.NewRegistry())
	q, err := b.Bind(stmt(&ast.Create{Patterns: []*ast.PatternPart{createPerson("Alice", 99)}}))
	require.NoError(t, err)
	p, err := plan.PlanRoot(q, nil)
	require.NoError(t, err)
	stream, err := Build(p.Root, txn, nil)
	require.NoError(t, err)

	_, err = stream.Next(context.Background())
	require.Error(t, err)
	var kerr *types.KindError
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, types.KindConstraint, kerr.Kind)

	rows := runStmt(t, txn, stmt(
		&ast.Match{Patterns: []*ast.PatternPart{pattern([]*ast.NodePattern{{Variable: "n"}}, nil)}},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Variable{Name: "n"}, Alias: "n"}}},
	))
	require.Len(t, rows, 1)
}

func TestBuildUnwindExpandsListLiteral(t *testing.T) {
	txn := openTestTxn(t)
	rows := runStmt(t, txn, stmt(
		&ast.Unwind{Expr: ast.ListLiteral{Elements: []ast.Expr{
			ast.Literal{Value: types.NewInt(1)},
			ast.Literal{Value: types.NewInt(2)},
			ast.Literal{Value: types.NewInt(3)},
		}}, Variable: "x"},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.Variable{Name: "x"}, Alias: "x"}}},
	))
	require.Len(t, rows, 3)
	require.Equal(t, int64(1), rows[0][0].Int)
	require.Equal(t, int64(2), rows[1][0].Int)
	require.Equal(t, int64(3), rows[2][0].Int)
}

func TestBuildLengthOfFixedLengthPathVariable(t *testing.T) {
	txn := openTestTxn(t)
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{
		pattern(
			[]*ast.NodePattern{{Variable: "a", Labels: ast.LabelName{Name: "N"}}, {Variable: "b", Labels: ast.LabelName{Name: "N"}}},
			[]*ast.RelPattern{{Variable: "r", Types: []string{"REL"}, Direction: ast.RelOutgoing}},
		),
	}}))

	patternPart := pattern(
		[]*ast.NodePattern{{Variable: "a"}, {Variable: "b"}},
		[]*ast.RelPattern{{Types: []string{"REL"}, Direction: ast.RelOutgoing, MinHops: -1, MaxHops: -1}},
	)
	patternPart.Variable = "p"

	rows := runStmt(t, txn, stmt(
		&ast.Match{Patterns: []*ast.PatternPart{patternPart}},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.FunctionCall{Name: "length", Args: []ast.Expr{ast.PathVariable{Name: "p"}}}, Alias: "len"}}},
	))
	require.Len(t, rows, 1)
	require.Equal(t, int64(1), rows[0][0].Int)
}

func TestBuildLengthOfVariableLengthPathVariable(t *testing.T) {
	txn := openTestTxn(t)
	// a -REL-> b -REL-> c, so a..c is reachable at both 1 and 2 hops.
	runStmt(t, txn, stmt(&ast.Create{Patterns: []*ast.PatternPart{
		pattern(
			[]*ast.NodePattern{
				{Variable: "a", Labels: ast.LabelName{Name: "N"}, Properties: props(ast.MapEntry{Key: "name", Value: ast.Literal{Value: types.NewString("a")}})},
				{Variable: "b", Labels: ast.LabelName{Name: "N"}, Properties: props(ast.MapEntry{Key: "name", Value: ast.Literal{Value: types.NewString("b")}})},
				{Variable: "c", Labels: ast.LabelName{Name: "N"}, Properties: props(ast.MapEntry{Key: "name", Value: ast.Literal{Value: types.NewString("c")}})},
			},
			[]*ast.RelPattern{
				{Variable: "r1", Types: []string{"REL"}, Direction: ast.RelOutgoing},
				{Variable: "r2", Types: []string{"REL"}, Direction: ast.RelOutgoing},
			},
		),
	}}))

	patternPart := pattern(
		[]*ast.NodePattern{{Variable: "a"}, {Variable: "x"}},
		[]*ast.RelPattern{{Types: []string{"REL"}, Direction: ast.RelOutgoing, MinHops: 1, MaxHops: 2}},
	)
	patternPart.Variable = "p"

	rows := runStmt(t, txn, stmt(
		&ast.Match{
			Patterns: []*ast.PatternPart{patternPart},
			Where: ast.BinaryOp{Op: ast.OpEq,
				Left:  ast.PropertyAccess{Target: ast.Variable{Name: "a"}, Key: "name"},
				Right: ast.Literal{Value: types.NewString("a")},
			},
		},
		&ast.Return{Items: []ast.ProjectionItem{{Expr: ast.FunctionCall{Name: "length", Args: []ast.Expr{ast.PathVariable{Name: "p"}}}, Alias: "len"}}},
	))
	require.Len(t, rows, 2)
	lens := map[int64]bool{rows[0][0].Int: true, rows[1][0].Int: true}
	require.True(t, lens[1])
	require.True(t, lens[2])
}
