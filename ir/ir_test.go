package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boltgraph/boltgraph/expr"
	"github.com/boltgraph/boltgraph/types"
)

func TestQueryGraphHoldsFilterAsExprExpr(t *testing.T) {
	g := &QueryGraph{
		Nodes:  []string{"a", "b"},
		Filter: expr.Compare{Op: expr.CmpEq, Left: expr.Variable{Name: "a", Typ: types.DTInt}, Right: expr.Literal{Value: types.NewInt(1)}},
	}
	cmp, ok := g.Filter.(expr.Compare)
	require.True(t, ok)
	require.Equal(t, expr.CmpEq, cmp.Op)
}

func TestRelPatternVarLengthNilForSimpleHop(t *testing.T) {
	r := &RelPattern{Variable: "r", StartVar: "a", EndVar: "b", Direction: types.DirOutgoing}
	require.Nil(t, r.VarLength)
}

func TestRelPatternVarLengthUnboundedMax(t *testing.T) {
	r := &RelPattern{
		Variable:  "r",
		StartVar:  "a",
		EndVar:    "b",
		VarLength: &PatternLength{Min: 1, Max: -1},
	}
	require.Equal(t, -1, r.VarLength.Max)
}

func TestHorizonInterfaceAssertions(t *testing.T) {
	var horizons []Horizon
	horizons = append(horizons,
		&Project{Items: []ProjectItem{{Alias: "x"}}},
		&Aggregate{Items: []AggregateItem{{Func: AggCountStar}}},
		&Unwind{Variable: "x"},
		&Load{Format: "csv"},
	)
	require.Len(t, horizons, 4)
}

func TestCreatePatternCarriesPropsAsExpr(t *testing.T) {
	cp := &CreatePattern{
		NodeVar:    "n",
		NodeLabels: []types.LabelId{1},
		NodeProps:  expr.Literal{Value: types.NewString("x")},
	}
	lit, ok := cp.NodeProps.(expr.Literal)
	require.True(t, ok)
	require.Equal(t, "x", lit.Value.Str)
}

func TestSingleQueryPartTrailingCreateHasNilHorizon(t *testing.T) {
	part := &SingleQueryPart{Graph: &QueryGraph{Creates: []*CreatePattern{{NodeVar: "n"}}}}
	require.Nil(t, part.Horizon)
}
