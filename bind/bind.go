// Package bind converts an ast.Statement into an ir.Query (spec §4.8):
// it resolves every variable against an ordered Scope, every label/
// relationship-type/property-key name against the token dictionary, and
// every expression into an expr.Expr tree the planner and executors can
// evaluate directly without touching the AST again.
package bind

import (
	"fmt"

	"github.com/boltgraph/boltgraph/ast"
	"github.com/boltgraph/boltgraph/expr"
	"github.com/boltgraph/boltgraph/ir"
	"github.com/boltgraph/boltgraph/types"
)

// TokenResolver is the subset of token.Store the binder needs; token.Store
// satisfies it directly.
type TokenResolver interface {
	GetOrCreate(kind types.TokenKind, name string) (types.TokenId, error)
}

// Binder holds the two catalogs binding needs: the token dictionary for
// name interning and the function registry for call resolution.
type Binder struct {
	Tokens TokenResolver
	Funcs  *expr.Registry

	anon int
}

// New returns a Binder; a nil funcs uses expr.NewRegistry's builtin set.
func New(tokens TokenResolver, funcs *expr.Registry) *Binder {
	if funcs == nil {
		funcs = expr.NewRegistry()
	}
	return &Binder{Tokens: tokens, Funcs: funcs}
}

func (b *Binder) nextAnon(prefix string) string {
	b.anon++
	return fmt.Sprintf("$anon_%s_%d", prefix, b.anon)
}

// Bind lowers stmt into an ir.Query. Union (more than one branch) is
// rejected in v1 (spec §9 Open Question 2); the IR already has room for
// it so lifting this restriction later needs no IR change.
func (b *Binder) Bind(stmt *ast.Statement) (*ir.Query, error) {
	if stmt == nil || stmt.Query == nil {
		return nil, types.NewError(types.KindBuild, "bind", "empty statement")
	}
	if len(stmt.Query.Branches) != 1 {
		return nil, types.NewError(types.KindPlan, "bind", "union is not supported in v1")
	}
	sq, err := b.bindSingleQuery(stmt.Query.Branches[0])
	if err != nil {
		return nil, err
	}
	return &ir.Query{Branches: []*ir.SingleQuery{sq}}, nil
}

// bindSingleQuery walks clauses in order, accumulating MATCH/CREATE
// patterns into one QueryGraph until a horizon clause (WITH/RETURN/
// UNWIND/LOAD) closes the part, exactly as spec §4.8's
// IrSingleQueryPart = (QueryGraph, Option<Horizon>) pairing describes.
func (b *Binder) bindSingleQuery(sq *ast.SingleQuery) (*ir.SingleQuery, error) {
	out := &ir.SingleQuery{}
	scope := NewScope()

	part := b.newPart(scope)
	for _, clause := range sq.Clauses {
		switch c := clause.(type) {
		case *ast.Match:
			if err := b.bindMatch(part, c); err != nil {
				return nil, err
			}
		case *ast.Create:
			if err := b.bindCreate(part, c); err != nil {
				return nil, err
			}
		case *ast.With:
			horizon, newScope, err := b.bindWith(part, c)
			if err != nil {
				return nil, err
			}
			out.Parts = append(out.Parts, &ir.SingleQueryPart{Graph: part.qg, Horizon: horizon})
			scope = newScope
			part = b.newPart(scope)
		case *ast.Return:
			horizon, err := b.bindReturn(part, c)
			if err != nil {
				return nil, err
			}
			out.Parts = append(out.Parts, &ir.SingleQueryPart{Graph: part.qg, Horizon: horizon})
			part = nil
		case *ast.Unwind:
			horizon, newScope, err := b.bindUnwind(part, c)
			if err != nil {
				return nil, err
			}
			out.Parts = append(out.Parts, &ir.SingleQueryPart{Graph: part.qg, Horizon: horizon})
			scope = newScope
			part = b.newPart(scope)
		case *ast.Load:
			horizon, newScope, err := b.bindLoad(part, c)
			if err != nil {
				return nil, err
			}
			out.Parts = append(out.Parts, &ir.SingleQueryPart{Graph: part.qg, Horizon: horizon})
			scope = newScope
			part = b.newPart(scope)
		default:
			return nil, types.NewError(types.KindBuild, "bind_single_query", "unrecognized clause")
		}
	}
	// A trailing MATCH/CREATE sequence with no closing horizon (e.g. a
	// bare `CREATE (...)` statement) still produces one part.
	if part != nil {
		out.Parts = append(out.Parts, &ir.SingleQueryPart{Graph: part.qg, Horizon: nil})
	}
	return out, nil
}

// andFilter ANDs next onto an existing (possibly nil) filter expression.
func andFilter(existing, next expr.Expr) expr.Expr {
	if existing == nil {
		return next
	}
	return expr.BoolOp{Op: expr.ConnAnd, Left: existing, Right: next}
}
