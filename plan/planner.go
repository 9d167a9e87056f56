package plan

import (
	"github.com/boltgraph/boltgraph/expr"
	"github.com/boltgraph/boltgraph/ir"
	"github.com/boltgraph/boltgraph/types"
)

// PlanRoot lowers query into a Plan (spec §4.9 plan_root). Union (more
// than one branch) is already rejected at bind time; the check here is
// defensive.
func PlanRoot(query *ir.Query, cat IndexCatalog) (*Plan, error) {
	if len(query.Branches) != 1 {
		return nil, types.NewError(types.KindPlan, "plan_root", "union is not supported in v1")
	}
	return planSingleQuery(query.Branches[0], cat)
}

func planSingleQuery(sq *ir.SingleQuery, cat IndexCatalog) (*Plan, error) {
	var node Node
	var names []string
	for _, part := range sq.Parts {
		var err error
		node, err = planHead(node, part.Graph, cat)
		if err != nil {
			return nil, err
		}
		if part.Horizon == nil {
			continue
		}
		node, names, err = lowerHorizon(node, part.Horizon)
		if err != nil {
			return nil, err
		}
	}
	root, cols := produceResult(node, names)
	return &Plan{Root: root, Names: cols}, nil
}

// planHead plans one query graph and, when there is an existing running
// pipeline, joins it via Apply so imported variables flow through (spec
// §4.9 step 1 "plan_head(part): plan the query graph").
func planHead(running Node, qg *ir.QueryGraph, cat IndexCatalog) (Node, error) {
	if len(qg.Nodes) == 0 && len(qg.Creates) == 0 {
		// Nothing new to solve in this graph (e.g. a bare WITH with no
		// intervening MATCH/CREATE): just carry the running pipeline
		// through any post-filter it still names.
		if running == nil {
			running = &Unit{baseNode: leaf(types.NewSchema())}
		}
		return applyFilter(running, qg.Filter)
	}
	if len(qg.Creates) > 0 {
		return planCreates(running, qg)
	}
	componentNode, err := planQueryGraph(qg, cat)
	if err != nil {
		return nil, err
	}
	if running == nil {
		return componentNode, nil
	}
	return &Apply{
		baseNode: binary(types.Concat(running.Schema(), componentNode.Schema()), running, componentNode),
		Left:     running, Right: componentNode, Optional: qg.Optional,
	}, nil
}

func applyFilter(node Node, filter ir.Filter) (Node, error) {
	if filter == nil {
		return node, nil
	}
	return &Filter{baseNode: unary(node.Schema(), node), Pred: filter}, nil
}

// planQueryGraph computes connected components and plans each (spec
// §4.9 step 2). Multiple disconnected components would require a
// cartesian product, explicitly unsupported in v1 (spec §7).
func planQueryGraph(qg *ir.QueryGraph, cat IndexCatalog) (Node, error) {
	components := connectedComponents(qg)
	if len(components) > 1 {
		return nil, types.NewError(types.KindPlan, "plan_query_graph", "multiple disconnected pattern components require a cartesian product, not supported in v1")
	}
	var node Node
	var err error
	if len(components) == 1 {
		node, err = planComponent(qg, components[0], cat)
	} else {
		// Every node was imported; nothing to scan.
		node = &Argument{baseNode: leaf(importedSchema(qg)), Vars: append([]string(nil), qg.Imported...)}
	}
	if err != nil {
		return nil, err
	}
	return applyFilter(node, qg.Filter)
}

type component struct {
	nodes []string
	rels  []*ir.RelPattern
}

// connectedComponents groups qg.Nodes/qg.Rels into components joined by
// shared node variables (spec §4.8 "connected component" definition);
// an imported variable is treated as already solved, so a component
// touching only imported variables collapses rather than forcing a scan.
func connectedComponents(qg *ir.QueryGraph) []component {
	parent := map[string]string{}
	var find func(string) string
	find = func(s string) string {
		if parent[s] == s || parent[s] == "" {
			parent[s] = s
			return s
		}
		r := find(parent[s])
		parent[s] = r
		return r
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, n := range qg.Nodes {
		find(n)
	}
	for _, r := range qg.Rels {
		find(r.StartVar)
		find(r.EndVar)
		union(r.StartVar, r.EndVar)
	}
	byRoot := map[string]*component{}
	var order []string
	for _, n := range qg.Nodes {
		root := find(n)
		c, ok := byRoot[root]
		if !ok {
			c = &component{}
			byRoot[root] = c
			order = append(order, root)
		}
		c.nodes = append(c.nodes, n)
	}
	for _, r := range qg.Rels {
		root := find(r.StartVar)
		if c, ok := byRoot[root]; ok {
			c.rels = append(c.rels, r)
		}
	}
	out := make([]component, 0, len(order))
	for _, root := range order {
		out = append(out, *byRoot[root])
	}
	return out
}

func importedSchema(qg *ir.QueryGraph) *types.Schema {
	s := types.NewSchema()
	for _, v := range qg.Imported {
		s = s.Append(v, types.DTVirtualNode)
	}
	return s
}

// planComponent implements spec §4.9 step 3: pick a leaf, DFS the
// remaining relationships, expanding into or out from solved nodes.
//
// Imported variables never appear in c.nodes (the binder only adds a
// pattern variable there when it is freshly bound, see bind.partBinder),
// so a component straddling an imported node and fresh ones always has
// at least one fresh entry in c.nodes; the DFS below reaches it by
// walking c.rels out from whichever side is already solved.
func planComponent(qg *ir.QueryGraph, c component, cat IndexCatalog) (Node, error) {
	solved := map[string]bool{}

	var node Node
	if len(qg.Imported) > 0 {
		node = &Argument{baseNode: leaf(importedSchema(qg)), Vars: append([]string(nil), qg.Imported...)}
		for _, v := range qg.Imported {
			solved[v] = true
		}
	} else {
		first := c.nodes[0]
		var err error
		node, err = planLeafScan(qg, first, cat)
		if err != nil {
			return nil, err
		}
		solved[first] = true
	}

	remaining := append([]*ir.RelPattern(nil), c.rels...)
	for len(remaining) > 0 {
		idx := -1
		for i := len(remaining) - 1; i >= 0; i-- { // reverse order: stable DFS stack order
			r := remaining[i]
			if solved[r.StartVar] || solved[r.EndVar] {
				idx = i
				break
			}
		}
		if idx == -1 {
			return nil, types.NewError(types.KindPlan, "plan_component", "relationship pattern not reachable from any solved node")
		}
		r := remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)

		into := solved[r.StartVar] && solved[r.EndVar]
		startVar, endVar, direction := r.StartVar, r.EndVar, r.Direction
		if solved[endVar] && !solved[startVar] {
			// Extend from the solved side: traverse the edge backwards,
			// so the direction the scan looks for flips too.
			startVar, endVar = endVar, startVar
			direction = direction.Reverse()
		}

		var err error
		node, err = planExpand(node, r, startVar, endVar, direction, into)
		if err != nil {
			return nil, err
		}
		solved[r.StartVar] = true
		solved[r.EndVar] = true
	}
	return node, nil
}

func planLeafScan(qg *ir.QueryGraph, nodeVar string, cat IndexCatalog) (Node, error) {
	if seek := tryIndexSeek(qg, nodeVar, cat); seek != nil {
		return seek, nil
	}
	schema := types.NewSchema().Append(nodeVar, types.DTVirtualNode)
	return &AllNodeScan{baseNode: leaf(schema), Var: nodeVar}, nil
}

// tryIndexSeek implements spec §4.9 step 4: find a HasLabel(n,L) AND
// eq(n.p, const) [...] conjunction covering a unique index, and replace
// the scan with a seek. The covered predicates are left in place as a
// cheap post-filter rather than removed from qg.Filter, since qg is
// shared across the whole component plan; NodeIndexSeek is still
// strictly cheaper than AllNodeScan even with a redundant re-check.
func tryIndexSeek(qg *ir.QueryGraph, nodeVar string, cat IndexCatalog) Node {
	if cat == nil || qg.Filter == nil {
		return nil
	}
	label, ok := findHasLabel(qg.Filter, nodeVar)
	if !ok {
		return nil
	}
	keys, vals := findPropertyEqualities(qg.Filter, nodeVar)
	if len(keys) == 0 || !cat.UniqueIndex(label, keys) {
		return nil
	}
	schema := types.NewSchema().Append(nodeVar, types.DTVirtualNode)
	return &NodeIndexSeek{baseNode: leaf(schema), Var: nodeVar, Label: label, PropKeys: keys, Values: vals}
}

func findHasLabel(filter expr.Expr, target string) (types.LabelId, bool) {
	switch f := filter.(type) {
	case expr.BoolOp:
		if f.Op != expr.ConnAnd {
			return 0, false
		}
		if l, ok := findHasLabel(f.Left, target); ok {
			return l, true
		}
		return findHasLabel(f.Right, target)
	case expr.HasLabel:
		if v, ok := f.Target.(expr.Variable); ok && variableMatches(v, target) && len(f.Tokens) == 1 {
			return f.Tokens[0], true
		}
	}
	return 0, false
}

func variableMatches(v expr.Variable, target string) bool { return v.Name == target }

func findPropertyEqualities(filter expr.Expr, target string) ([]types.PropertyKeyId, []expr.Expr) {
	var keys []types.PropertyKeyId
	var vals []expr.Expr
	var walk func(expr.Expr)
	walk = func(e expr.Expr) {
		switch f := e.(type) {
		case expr.BoolOp:
			if f.Op == expr.ConnAnd {
				walk(f.Left)
				walk(f.Right)
			}
		case expr.Compare:
			if f.Op != expr.CmpEq {
				return
			}
			if pa, ok := f.Left.(expr.PropertyAccess); ok {
				if v, ok := pa.Target.(expr.Variable); ok && variableMatches(v, target) {
					keys = append(keys, pa.Key)
					vals = append(vals, f.Right)
				}
			}
		}
	}
	walk(filter)
	return keys, vals
}

func planExpand(in Node, r *ir.RelPattern, startVar, endVar string, direction types.Direction, into bool) (Node, error) {
	if r.VarLength != nil {
		if r.VarLength.Max < 0 {
			return nil, types.NewError(types.KindPlan, "plan_component", "unbounded variable-length relationship is not supported without an explicit maximum")
		}
		schema := in.Schema().Append(r.Variable, types.DTListString).Append(endVar, types.DTVirtualNode)
		return &VarExpand{
			baseNode: unary(schema, in), StartVar: startVar, RelVar: r.Variable, EndVar: endVar,
			Types: r.Types, Direction: direction, Either: r.Either,
			Min: r.VarLength.Min, Max: r.VarLength.Max,
		}, nil
	}
	kind := ExpandAll
	if into {
		kind = ExpandInto
	}
	schema := in.Schema()
	if r.Variable != "" {
		schema = schema.Append(r.Variable, types.DTVirtualRel)
	}
	if !into {
		schema = schema.Append(endVar, types.DTVirtualNode)
	}
	return &Expand{
		baseNode: unary(schema, in), Kind: kind, StartVar: startVar, RelVar: r.Variable, EndVar: endVar,
		Types: r.Types, Direction: direction, Either: r.Either,
	}, nil
}

func planCreates(running Node, qg *ir.QueryGraph) (Node, error) {
	node := running
	if node == nil {
		node = &Unit{baseNode: leaf(types.NewSchema())}
	}
	for _, cp := range qg.Creates {
		schema := node.Schema().Append(cp.NodeVar, types.DTNode)
		node = &CreateNode{baseNode: unary(schema, node), Var: cp.NodeVar, Labels: cp.NodeLabels, Props: cp.NodeProps}
		if cp.Rel != nil {
			schema = node.Schema().Append(cp.Rel.Var, types.DTRel)
			node = &CreateRel{
				baseNode: unary(schema, node), Var: cp.Rel.Var, Type: cp.Rel.Type,
				StartVar: cp.Rel.StartVar, EndVar: cp.Rel.EndVar, Props: cp.Rel.Props,
			}
		}
	}
	return applyFilter(node, qg.Filter)
}
