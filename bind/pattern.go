package bind

import (
	"github.com/boltgraph/boltgraph/ast"
	"github.com/boltgraph/boltgraph/expr"
	"github.com/boltgraph/boltgraph/ir"
	"github.com/boltgraph/boltgraph/types"
)

// pathInfo records a named path's constituent node/rel variables so a
// later RETURN/WITH projection can lower `p` into an expr.ProjectPath (or
// expr.ProjectVarPath for a variable-length segment). VarLen[i] is true
// when Rels[i] was bound by a variable-length pattern (spec §4.8).
type pathInfo struct {
	Nodes  []string
	Rels   []string
	VarLen []bool
}

// partBinder accumulates one SingleQueryPart's QueryGraph while its
// MATCH/CREATE clauses are bound; seed marks the variables already in
// scope before this part started, distinguishing a fresh pattern
// variable from one imported from a prior WITH/RETURN (spec §4.8 "Two
// patterns are in the same connected component iff they share a node
// variable or are connected via an argument (imported) variable").
type partBinder struct {
	scope *Scope
	qg    *ir.QueryGraph
	seed  map[string]bool
}

func (b *Binder) newPart(scope *Scope) *partBinder {
	seed := make(map[string]bool, len(scope.names))
	for _, n := range scope.Names() {
		seed[n] = true
	}
	return &partBinder{scope: scope, qg: &ir.QueryGraph{}, seed: seed}
}

func (b *Binder) bindMatch(part *partBinder, c *ast.Match) error {
	if c.Optional {
		part.qg.Optional = true
	}
	for _, pp := range c.Patterns {
		if err := b.bindMatchPatternPart(part, pp); err != nil {
			return err
		}
	}
	if c.Where != nil {
		w, err := b.resolveExpr(part.scope, c.Where)
		if err != nil {
			return err
		}
		part.qg.Filter = andFilter(part.qg.Filter, w)
	}
	return nil
}

func (b *Binder) bindMatchPatternPart(part *partBinder, pp *ast.PatternPart) error {
	nodeVars := make([]string, len(pp.Nodes))
	for i, np := range pp.Nodes {
		name, err := b.bindMatchNodePattern(part, np)
		if err != nil {
			return err
		}
		nodeVars[i] = name
	}
	relVars := make([]string, len(pp.Rels))
	varLen := make([]bool, len(pp.Rels))
	seenRelVars := map[string]bool{}
	for i, rp := range pp.Rels {
		if rp.Variable != "" {
			if seenRelVars[rp.Variable] {
				return types.NewError(types.KindPlan, "bind_pattern_part", "relationship variable repeated in one pattern: "+rp.Variable)
			}
			seenRelVars[rp.Variable] = true
		}
		start, end := nodeVars[i], nodeVars[i+1]
		relVar, err := b.bindMatchRelPattern(part, rp, start, end)
		if err != nil {
			return err
		}
		relVars[i] = relVar
		varLen[i] = rp.MinHops != -1
	}
	if pp.Variable != "" {
		part.scope.Bind(pp.Variable, types.DTVirtualPath)
		part.scope.BindPath(pp.Variable, pathInfo{Nodes: nodeVars, Rels: relVars, VarLen: varLen})
	}
	return nil
}

func (b *Binder) bindMatchNodePattern(part *partBinder, np *ast.NodePattern) (string, error) {
	name := np.Variable
	if name == "" {
		name = b.nextAnon("node")
	}
	_, dt, exists := part.scope.Lookup(name)
	switch {
	case exists && part.seed[name]:
		if !containsStr(part.qg.Imported, name) {
			part.qg.Imported = append(part.qg.Imported, name)
		}
	case exists:
		if dt != types.DTVirtualNode && dt != types.DTNode {
			return "", types.NewError(types.KindPlan, "bind_node_pattern", "variable already bound to a conflicting type: "+name)
		}
	default:
		part.scope.Bind(name, types.DTVirtualNode)
		part.qg.Nodes = append(part.qg.Nodes, name)
	}

	if np.Labels != nil {
		for _, lname := range np.Labels.Names() {
			id, err := b.Tokens.GetOrCreate(types.TokenLabel, lname)
			if err != nil {
				return "", err
			}
			hl := expr.HasLabel{Target: expr.Variable{Name: name, Typ: types.DTVirtualNode}, Tokens: []types.TokenId{id}}
			part.qg.Filter = andFilter(part.qg.Filter, hl)
		}
	}
	if np.Properties != nil {
		if err := b.foldPropertyEquals(part, expr.Variable{Name: name, Typ: types.DTVirtualNode}, np.Properties); err != nil {
			return "", err
		}
	}
	return name, nil
}

// foldPropertyEquals turns an inline `{k: v, ...}` pattern property map
// into ANDed equality predicates on the post-filter (spec §4.8 binder
// rule 1 "fold property equalities into the post-filter").
func (b *Binder) foldPropertyEquals(part *partBinder, target expr.Expr, props *ast.MapLiteral) error {
	for _, entry := range props.Entries {
		keyID, err := b.Tokens.GetOrCreate(types.TokenPropertyKey, entry.Key)
		if err != nil {
			return err
		}
		valExpr, err := b.resolveExpr(part.scope, entry.Value)
		if err != nil {
			return err
		}
		access := expr.PropertyAccess{Target: target, Key: keyID, Typ: valExpr.Type()}
		eq := expr.Compare{Op: expr.CmpEq, Left: access, Right: valExpr}
		part.qg.Filter = andFilter(part.qg.Filter, eq)
	}
	return nil
}

func (b *Binder) bindMatchRelPattern(part *partBinder, rp *ast.RelPattern, startVar, endVar string) (string, error) {
	relVar := rp.Variable
	if relVar == "" {
		relVar = b.nextAnon("rel")
	}
	part.scope.Bind(relVar, types.DTVirtualRel)

	types_ := make([]types.TokenId, len(rp.Types))
	for i, name := range rp.Types {
		id, err := b.Tokens.GetOrCreate(types.TokenRelType, name)
		if err != nil {
			return "", err
		}
		types_[i] = id
	}

	direction := types.DirOutgoing
	either := rp.Direction == ast.RelEither
	if rp.Direction == ast.RelIncoming {
		direction = types.DirIncoming
	}

	var varLength *ir.PatternLength
	if rp.MinHops != -1 {
		if rp.MaxHops == -1 {
			return "", types.NewError(types.KindPlan, "bind_rel_pattern", "variable-length relationship requires an explicit maximum")
		}
		varLength = &ir.PatternLength{Min: rp.MinHops, Max: rp.MaxHops}
	}

	part.qg.Rels = append(part.qg.Rels, &ir.RelPattern{
		Variable:  relVar,
		StartVar:  startVar,
		EndVar:    endVar,
		Types:     types_,
		Direction: direction,
		Either:    either,
		VarLength: varLength,
	})

	if rp.Properties != nil {
		if err := b.foldPropertyEquals(part, expr.Variable{Name: relVar, Typ: types.DTVirtualRel}, rp.Properties); err != nil {
			return "", err
		}
	}
	return relVar, nil
}

func (b *Binder) bindCreate(part *partBinder, c *ast.Create) error {
	for _, pp := range c.Patterns {
		if err := b.bindCreatePatternPart(part, pp); err != nil {
			return err
		}
	}
	return nil
}

func (b *Binder) bindCreatePatternPart(part *partBinder, pp *ast.PatternPart) error {
	nodeVars := make([]string, len(pp.Nodes))
	creates := make([]*ir.CreatePattern, len(pp.Nodes))
	for i, np := range pp.Nodes {
		if np.Variable == "" {
			return types.NewError(types.KindPlan, "bind_create_pattern", "CREATE on an anonymous node is not supported")
		}
		if np.Labels != nil && !ast.IsPureAnd(np.Labels) {
			return types.NewError(types.KindPlan, "bind_create_pattern", "label expression in CREATE must be a pure AND: "+np.Variable)
		}
		var labelIDs []types.LabelId
		if np.Labels != nil {
			for _, lname := range np.Labels.Names() {
				id, err := b.Tokens.GetOrCreate(types.TokenLabel, lname)
				if err != nil {
					return err
				}
				labelIDs = append(labelIDs, id)
			}
		}
		var propsExpr expr.Expr
		if np.Properties != nil {
			pe, err := b.resolveExpr(part.scope, np.Properties)
			if err != nil {
				return err
			}
			propsExpr = pe
		}
		part.scope.Bind(np.Variable, types.DTNode)
		cp := &ir.CreatePattern{NodeVar: np.Variable, NodeLabels: labelIDs, NodeProps: propsExpr}
		creates[i] = cp
		nodeVars[i] = np.Variable
	}

	for i, rp := range pp.Rels {
		if len(rp.Types) != 1 {
			return types.NewError(types.KindPlan, "bind_create_rel_pattern", "CREATE relationship must have exactly one type")
		}
		typeID, err := b.Tokens.GetOrCreate(types.TokenRelType, rp.Types[0])
		if err != nil {
			return err
		}
		start, end := nodeVars[i], nodeVars[i+1]
		if rp.Direction == ast.RelIncoming {
			start, end = end, start
		}
		var propsExpr expr.Expr
		if rp.Properties != nil {
			pe, err := b.resolveExpr(part.scope, rp.Properties)
			if err != nil {
				return err
			}
			propsExpr = pe
		}
		relVar := rp.Variable
		if relVar == "" {
			relVar = b.nextAnon("rel")
		}
		part.scope.Bind(relVar, types.DTRel)
		creates[i].Rel = &ir.CreateRelPattern{Var: relVar, Type: typeID, StartVar: start, EndVar: end, Props: propsExpr}
	}

	part.qg.Creates = append(part.qg.Creates, creates...)
	return nil
}

func containsStr(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
