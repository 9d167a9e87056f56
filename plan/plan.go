// Package plan lowers one ir.SingleQuery into a tree of physical
// operators the exec package can build a streaming pipeline from (spec
// §4.9). Plan nodes carry just enough to drive execution: a Schema, the
// inputs they read from, and the parameters (label/type ids, filter
// expressions) execution needs. Nothing here touches storage directly;
// IndexCatalog is the only seam into the constraint/index catalog so the
// planner can stay independent of package storage.
package plan

import (
	"github.com/boltgraph/boltgraph/expr"
	"github.com/boltgraph/boltgraph/types"
)

// Node is implemented by every physical operator. Schema is the column
// layout rows carry downstream; Children are the operators feeding this
// one (zero for a leaf).
type Node interface {
	Schema() *types.Schema
	Children() []Node
}

// IndexCatalog answers whether a unique index exists over (label,
// propKeys); the planner uses it for index selection (spec §4.9 step 4).
// storage.GraphTxn satisfies a thin adapter around this.
type IndexCatalog interface {
	UniqueIndex(label types.LabelId, propKeys []types.PropertyKeyId) (exists bool)
}

type baseNode struct {
	schema   *types.Schema
	children []Node
}

func (b *baseNode) Schema() *types.Schema { return b.schema }
func (b *baseNode) Children() []Node      { return b.children }

func leaf(schema *types.Schema) baseNode { return baseNode{schema: schema} }

func unary(schema *types.Schema, in Node) baseNode {
	return baseNode{schema: schema, children: []Node{in}}
}

func binary(schema *types.Schema, left, right Node) baseNode {
	return baseNode{schema: schema, children: []Node{left, right}}
}

// AllNodeScan scans every node in the store, producing a virtual-node
// column named Var (spec §4.10 AllNodeScan: batch_size 1024).
type AllNodeScan struct {
	baseNode
	Var string
}

// NodeIndexSeek replaces AllNodeScan+Filter when the filter conjunction
// fully covers a unique index's key (spec §4.9 step 4).
type NodeIndexSeek struct {
	baseNode
	Var      string
	Label    types.LabelId
	PropKeys []types.PropertyKeyId
	Values   []expr.Expr
}

// Argument re-emits the single already-bound row of imported variables,
// the leaf for a component wholly solved by an outer scope (spec §4.9
// step 3 "For a component wholly solved by an argument, the leaf is
// Argument").
type Argument struct {
	baseNode
	Vars []string
}

// Unit drives exactly one empty row; CREATE-only statements plan from
// here (spec §4.9 step 5).
type Unit struct {
	baseNode
}

// Apply drives Right once per Left row, with Right's Argument leaf
// reading the imported columns Left just produced (spec §4.10
// "Apply holds a mailbox ... Argument reads the mailbox"). Optional
// marks an OPTIONAL MATCH right-hand side: a Left row with zero Right
// matches still flows downstream once, with Right's columns null.
type Apply struct {
	baseNode
	Left, Right Node
	Optional    bool
}

// ExpandKind distinguishes a traversal that must land on an
// already-solved node (Into) from one that extends the frontier (All).
type ExpandKind uint8

const (
	ExpandAll ExpandKind = iota
	ExpandInto
)

// Expand walks one relationship pattern from StartVar, producing RelVar
// and EndVar columns (spec §4.10 Expand).
type Expand struct {
	baseNode
	Kind      ExpandKind
	StartVar  string
	RelVar    string
	EndVar    string
	Types     []types.RelTypeId
	Direction types.Direction
	Either    bool
}

// VarExpand is Expand for a variable-length relationship pattern (spec
// §4.10 VarExpand: DFS with per-path relationship uniqueness).
type VarExpand struct {
	baseNode
	StartVar  string
	RelVar    string // bound to the path's list of traversed rel ids
	EndVar    string
	Types     []types.RelTypeId
	Direction types.Direction
	Either    bool
	Min, Max  int
}

// Filter drops rows where Pred evaluates to false or null (three-valued
// WHERE semantics, spec §4.7).
type Filter struct {
	baseNode
	Pred expr.Expr
}

// ProjectItem is one computed output column.
type ProjectItem struct {
	Expr  expr.Expr
	Alias string
}

// Project computes Items over its input, optionally de-duplicating rows
// (spec §4.9 step 5; DISTINCT is lowered here rather than at bind time).
type Project struct {
	baseNode
	Items    []ProjectItem
	Distinct bool
}

// AggregateItem is one aggregate column computed over Arg (nil for
// count(*)).
type AggregateItem struct {
	Func     AggregateFunc
	Arg      expr.Expr
	Distinct bool
	Alias    string
}

type AggregateFunc uint8

const (
	AggCount AggregateFunc = iota
	AggCountStar
	AggSum
	AggAvg
	AggMin
	AggMax
	AggCollect
)

// Aggregate groups by GroupBy and computes Items per group (spec §9 open
// question resolution 1).
type Aggregate struct {
	baseNode
	GroupBy []ProjectItem
	Items   []AggregateItem
}

// SortKey is one ORDER BY key.
type SortKey struct {
	Expr       expr.Expr
	Descending bool
}

// Sort is a collecting operator; nulls sort last on ASC, first on DESC
// (spec §4.10 Sort, fixed ordering).
type Sort struct {
	baseNode
	Keys []SortKey
}

// Pagination applies SKIP then LIMIT; Limit -1 means unbounded (spec
// §4.10 Pagination).
type Pagination struct {
	baseNode
	Skip, Limit expr.Expr
}

// CreateNode materializes one new node per input row (spec §4.10
// CreateNode).
type CreateNode struct {
	baseNode
	Var    string
	Labels []types.LabelId
	Props  expr.Expr // nil for no inline properties
}

// CreateRel materializes one new relationship per input row, reading
// its endpoints from StartVar/EndVar columns already present.
type CreateRel struct {
	baseNode
	Var      string
	Type     types.RelTypeId
	StartVar string
	EndVar   string
	Props    expr.Expr
}

// Unwind expands one list-valued expression into one row per element
// (spec §4.8 Horizon::Unwind).
type Unwind struct {
	baseNode
	Expr     expr.Expr
	Variable string
}

// Load is a leaf reading an external row source (spec §4.8 Horizon::Load,
// §C14 loader); the binder resets scope at a Load boundary (see
// bind.bindLoad), so Load never has an input child.
type Load struct {
	baseNode
	URL         string
	Format      string
	WithHeaders bool
	Variable    string
}

// ReturnColumn is one output column of ProduceResult, in RETURN order.
type ReturnColumn struct {
	Name string
	Expr expr.Expr
}

// ProduceResult materializes virtual-node/virtual-path columns to their
// full forms and reorders into RETURN order; it is always the plan's
// root (spec §4.9 final step).
type ProduceResult struct {
	baseNode
	Columns []ReturnColumn
}

// Plan is one bound query's complete physical plan.
type Plan struct {
	Root  Node
	Names []string // RETURN column names, in order
}
