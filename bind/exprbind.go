package bind

import (
	"github.com/boltgraph/boltgraph/ast"
	"github.com/boltgraph/boltgraph/expr"
	"github.com/boltgraph/boltgraph/types"
)

// resolveExpr lowers one ast.Expr into an expr.Expr against scope,
// checking that each variable name is in scope (the resulting
// expr.Variable keeps the name and finds its column in the chunk schema
// at evaluation time) and resolving property/label names to token ids.
func (b *Binder) resolveExpr(scope *Scope, e ast.Expr) (expr.Expr, error) {
	switch n := e.(type) {
	case ast.Literal:
		return expr.Literal{Value: n.Value}, nil
	case ast.Parameter:
		return expr.Parameter{Name: n.Name}, nil
	case ast.Variable:
		_, dt, ok := scope.Lookup(n.Name)
		if !ok {
			return nil, types.NewError(types.KindBuild, "resolve_expr", "variable not found in input schema: "+n.Name)
		}
		return expr.Variable{Name: n.Name, Typ: dt}, nil
	case ast.PathVariable:
		if info, ok := scope.LookupPath(n.Name); ok {
			return projectPath(info)
		}
		_, dt, ok := scope.Lookup(n.Name)
		if !ok {
			return nil, types.NewError(types.KindBuild, "resolve_expr", "path variable not found in input schema: "+n.Name)
		}
		return expr.Variable{Name: n.Name, Typ: dt}, nil
	case ast.PropertyAccess:
		target, err := b.resolveExpr(scope, n.Target)
		if err != nil {
			return nil, err
		}
		keyID, err := b.Tokens.GetOrCreate(types.TokenPropertyKey, n.Key)
		if err != nil {
			return nil, err
		}
		return expr.PropertyAccess{Target: target, Key: keyID, Typ: types.DTAny}, nil
	case ast.BinaryOp:
		return b.resolveBinaryOp(scope, n)
	case ast.UnaryOp:
		return b.resolveUnaryOp(scope, n)
	case ast.FunctionCall:
		return b.resolveFunctionCall(scope, n)
	case ast.HasLabel:
		return b.resolveHasLabel(scope, n)
	case ast.ListLiteral:
		return b.resolveListLiteral(scope, n)
	case *ast.MapLiteral:
		return b.resolveMapLiteral(scope, n)
	case ast.Indexing:
		return b.resolveIndexing(scope, n)
	case ast.AggregateCall:
		return nil, types.NewError(types.KindPlan, "resolve_expr", "aggregate call outside a projection item is not supported")
	default:
		return nil, types.NewError(types.KindBuild, "resolve_expr", "unrecognized expression node")
	}
}

// projectPath lowers a named path pattern variable into an expr.ProjectPath
// (every segment fixed-length) or an expr.ProjectVarPath (a single
// variable-length segment), the two path-construction shapes VarExpand and
// fixed Expand leave a RETURN/WITH projection able to consume (spec §4.7
// ProjectPath, §4.10 VarExpand).
func projectPath(info pathInfo) (expr.Expr, error) {
	nVarLen := 0
	for _, v := range info.VarLen {
		if v {
			nVarLen++
		}
	}
	switch {
	case nVarLen == 0:
		nodes := make([]expr.Expr, len(info.Nodes))
		for i, name := range info.Nodes {
			nodes[i] = expr.Variable{Name: name, Typ: types.DTVirtualNode}
		}
		rels := make([]expr.Expr, len(info.Rels))
		for i, name := range info.Rels {
			rels[i] = expr.Variable{Name: name, Typ: types.DTVirtualRel}
		}
		return expr.ProjectPath{Nodes: nodes, Rels: rels, Virtual: true}, nil
	case nVarLen == 1 && len(info.Rels) == 1:
		return expr.ProjectVarPath{Start: expr.Variable{Name: info.Nodes[0], Typ: types.DTVirtualNode}, PathVar: info.Rels[0]}, nil
	default:
		return nil, types.NewError(types.KindBuild, "resolve_expr",
			"path variable mixing fixed-length and variable-length segments is not supported")
	}
}

func (b *Binder) resolveBinaryOp(scope *Scope, n ast.BinaryOp) (expr.Expr, error) {
	left, err := b.resolveExpr(scope, n.Left)
	if err != nil {
		return nil, err
	}
	right, err := b.resolveExpr(scope, n.Right)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case ast.OpAdd:
		return expr.Arith{Op: expr.ArithAdd, Left: left, Right: right, Typ: arithResultType(left.Type(), right.Type())}, nil
	case ast.OpSub:
		return expr.Arith{Op: expr.ArithSub, Left: left, Right: right, Typ: arithResultType(left.Type(), right.Type())}, nil
	case ast.OpMul:
		return expr.Arith{Op: expr.ArithMul, Left: left, Right: right, Typ: arithResultType(left.Type(), right.Type())}, nil
	case ast.OpDiv:
		return expr.Arith{Op: expr.ArithDiv, Left: left, Right: right, Typ: arithResultType(left.Type(), right.Type())}, nil
	case ast.OpMod:
		return expr.Arith{Op: expr.ArithMod, Left: left, Right: right, Typ: arithResultType(left.Type(), right.Type())}, nil
	case ast.OpEq:
		return expr.Compare{Op: expr.CmpEq, Left: left, Right: right}, nil
	case ast.OpNeq:
		return expr.Compare{Op: expr.CmpNeq, Left: left, Right: right}, nil
	case ast.OpLt:
		return expr.Compare{Op: expr.CmpLt, Left: left, Right: right}, nil
	case ast.OpLte:
		return expr.Compare{Op: expr.CmpLte, Left: left, Right: right}, nil
	case ast.OpGt:
		return expr.Compare{Op: expr.CmpGt, Left: left, Right: right}, nil
	case ast.OpGte:
		return expr.Compare{Op: expr.CmpGte, Left: left, Right: right}, nil
	case ast.OpAnd:
		return expr.BoolOp{Op: expr.ConnAnd, Left: left, Right: right}, nil
	case ast.OpOr:
		return expr.BoolOp{Op: expr.ConnOr, Left: left, Right: right}, nil
	case ast.OpXor:
		return expr.BoolOp{Op: expr.ConnXor, Left: left, Right: right}, nil
	case ast.OpConcat:
		return expr.Concat{Left: left, Right: right, Typ: concatResultType(left.Type())}, nil
	default:
		return nil, types.NewError(types.KindBuild, "resolve_binary_op", "unknown binary operator")
	}
}

func (b *Binder) resolveUnaryOp(scope *Scope, n ast.UnaryOp) (expr.Expr, error) {
	operand, err := b.resolveExpr(scope, n.Operand)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case ast.OpNot:
		return expr.Not{Operand: operand}, nil
	case ast.OpNeg:
		return expr.Negate{Operand: operand, Typ: operand.Type()}, nil
	case ast.OpIsNull:
		return expr.IsNull{Operand: operand, Negate: false}, nil
	case ast.OpIsNotNull:
		return expr.IsNull{Operand: operand, Negate: true}, nil
	default:
		return nil, types.NewError(types.KindBuild, "resolve_unary_op", "unknown unary operator")
	}
}

func (b *Binder) resolveFunctionCall(scope *Scope, n ast.FunctionCall) (expr.Expr, error) {
	args := make([]expr.Expr, len(n.Args))
	argTypes := make([]types.DataType, len(n.Args))
	for i, a := range n.Args {
		ae, err := b.resolveExpr(scope, a)
		if err != nil {
			return nil, err
		}
		args[i] = ae
		argTypes[i] = ae.Type()
	}
	ov, err := b.Funcs.Resolve(n.Name, argTypes)
	if err != nil {
		return nil, err
	}
	return expr.Call{Overload: ov, Args: args, Typ: ov.Return(argTypes)}, nil
}

func (b *Binder) resolveHasLabel(scope *Scope, n ast.HasLabel) (expr.Expr, error) {
	target, err := b.resolveExpr(scope, n.Target)
	if err != nil {
		return nil, err
	}
	kind := types.TokenLabel
	if target.Type() == types.DTRel || target.Type() == types.DTVirtualRel {
		kind = types.TokenRelType
	}
	tokens := make([]types.TokenId, len(n.Labels))
	for i, name := range n.Labels {
		id, err := b.Tokens.GetOrCreate(kind, name)
		if err != nil {
			return nil, err
		}
		tokens[i] = id
	}
	return expr.HasLabel{Target: target, Tokens: tokens}, nil
}

func (b *Binder) resolveListLiteral(scope *Scope, n ast.ListLiteral) (expr.Expr, error) {
	elems := make([]expr.Expr, len(n.Elements))
	elemType := types.DTAny
	for i, e := range n.Elements {
		ee, err := b.resolveExpr(scope, e)
		if err != nil {
			return nil, err
		}
		elems[i] = ee
		if i == 0 {
			elemType = ee.Type()
		}
	}
	return expr.CreateList{Elements: elems, ElemType: elemType}, nil
}

func (b *Binder) resolveMapLiteral(scope *Scope, n *ast.MapLiteral) (expr.Expr, error) {
	names := make([]string, len(n.Entries))
	fields := make([]expr.Expr, len(n.Entries))
	for i, entry := range n.Entries {
		fe, err := b.resolveExpr(scope, entry.Value)
		if err != nil {
			return nil, err
		}
		names[i] = entry.Key
		fields[i] = fe
	}
	return expr.CreateStruct{Names: names, Fields: fields}, nil
}

func (b *Binder) resolveIndexing(scope *Scope, n ast.Indexing) (expr.Expr, error) {
	target, err := b.resolveExpr(scope, n.Target)
	if err != nil {
		return nil, err
	}
	if n.IsSlice {
		var lo, hi expr.Expr
		if n.SliceLo != nil {
			lo, err = b.resolveExpr(scope, n.SliceLo)
			if err != nil {
				return nil, err
			}
		}
		if n.SliceHi != nil {
			hi, err = b.resolveExpr(scope, n.SliceHi)
			if err != nil {
				return nil, err
			}
		}
		return expr.Indexing{Target: target, IsSlice: true, SliceLo: lo, SliceHi: hi, Typ: target.Type()}, nil
	}
	idx, err := b.resolveExpr(scope, n.Index)
	if err != nil {
		return nil, err
	}
	return expr.Indexing{Target: target, Index: idx, Typ: elementTypeOf(target.Type())}, nil
}

func arithResultType(l, r types.DataType) types.DataType {
	if l == types.DTFloat || r == types.DTFloat {
		return types.DTFloat
	}
	if l == types.DTString || r == types.DTString {
		return types.DTString
	}
	if l == types.DTInt && r == types.DTInt {
		return types.DTInt
	}
	return types.DTAny
}

func concatResultType(l types.DataType) types.DataType {
	if l.IsList() || l == types.DTString {
		return l
	}
	return types.DTAny
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
