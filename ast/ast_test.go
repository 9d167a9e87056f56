package ast

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boltgraph/boltgraph/types"
)

func TestIsPureAndAcceptsLabelNameAndConjunction(t *testing.T) {
	require.True(t, IsPureAnd(LabelName{Name: "Person"}))
	require.True(t, IsPureAnd(LabelAnd{Left: LabelName{Name: "Person"}, Right: LabelName{Name: "Actor"}}))
}

func TestIsPureAndRejectsOrAndNot(t *testing.T) {
	require.False(t, IsPureAnd(LabelOr{Left: LabelName{Name: "Person"}, Right: LabelName{Name: "Actor"}}))
	require.False(t, IsPureAnd(LabelNot{Inner: LabelName{Name: "Person"}}))
	nested := LabelAnd{Left: LabelName{Name: "Person"}, Right: LabelOr{Left: LabelName{Name: "A"}, Right: LabelName{Name: "B"}}}
	require.False(t, IsPureAnd(nested))
}

func TestLabelExprNamesCollectsAllLeaves(t *testing.T) {
	e := LabelAnd{
		Left:  LabelName{Name: "Person"},
		Right: LabelOr{Left: LabelName{Name: "Actor"}, Right: LabelNot{Inner: LabelName{Name: "Director"}}},
	}
	require.ElementsMatch(t, []string{"Person", "Actor", "Director"}, e.Names())
}

func TestClauseInterfaceAssertions(t *testing.T) {
	var clauses []Clause
	clauses = append(clauses,
		&Match{Patterns: []*PatternPart{{Nodes: []*NodePattern{{Variable: "n"}}}}},
		&Create{},
		&With{},
		&Return{},
		&Unwind{Variable: "x"},
		&Load{Format: "csv"},
	)
	require.Len(t, clauses, 6)
}

func TestPatternPartShape(t *testing.T) {
	n1 := &NodePattern{Variable: "a", Labels: LabelName{Name: "Person"}}
	n2 := &NodePattern{Variable: "b"}
	r := &RelPattern{Variable: "r", Types: []string{"KNOWS"}, Direction: RelOutgoing, MinHops: -1, MaxHops: -1}
	part := &PatternPart{Nodes: []*NodePattern{n1, n2}, Rels: []*RelPattern{r}}
	require.Equal(t, len(part.Nodes)-1, len(part.Rels))
}

func TestExprLiteralsHoldValues(t *testing.T) {
	var e Expr = Literal{Value: types.NewInt(42)}
	lit, ok := e.(Literal)
	require.True(t, ok)
	require.Equal(t, int64(42), lit.Value.Int)
}

func TestBinaryOpWrapsOperands(t *testing.T) {
	var e Expr = BinaryOp{Op: OpAdd, Left: Variable{Name: "a"}, Right: Literal{Value: types.NewInt(1)}}
	bin, ok := e.(BinaryOp)
	require.True(t, ok)
	require.Equal(t, OpAdd, bin.Op)
}
