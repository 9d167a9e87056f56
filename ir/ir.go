// Package ir holds the binder's output: IrQuery, QueryGraph and Horizon
// (spec §4.8). The planner (package plan) consumes these types directly;
// nothing here depends on ast, so filters/projections are plain
// expr.Expr values the binder builds once and the planner never
// re-parses.
package ir

import (
	"github.com/boltgraph/boltgraph/expr"
	"github.com/boltgraph/boltgraph/types"
)

// Query is the top-level binder output, a union of single queries (spec
// §4.8 IrQuery). Branches has length 1 in v1 (spec §9 Union open
// question: kept as a planner error, but the IR already supports it).
type Query struct {
	Branches []*SingleQuery
}

// SingleQuery is a sequence of parts, each a (QueryGraph, Horizon) pair.
type SingleQuery struct {
	Parts []*SingleQueryPart
}

// SingleQueryPart is spec §4.8's IrSingleQueryPart.
type SingleQueryPart struct {
	Graph   *QueryGraph
	Horizon Horizon // nil only for a trailing Create-only part
}

// Filter names the expr.Expr type at the points the binder hangs a
// filter/projection/property expression off the IR; expr has no
// dependency on ir, so no cycle forces an opaque payload here.
type Filter = expr.Expr

// QueryGraph is the binder's topology + filter representation consumed
// by the planner (spec §4.8, §9 "flat struct with IndexSet, no parent
// pointers").
type QueryGraph struct {
	// Nodes is the ordered set of node variable names appearing in this
	// graph (patterns plus any argument-imported node variables).
	Nodes []string
	// Rels are the relationship patterns connecting entries of Nodes.
	Rels []*RelPattern
	// Imported holds outer-scope (argument) variables visible to this
	// graph, e.g. the correlated variable of an Apply right-hand side.
	Imported []string
	// Filter is the ANDed post-filter (expr.Expr, see Filter doc).
	Filter Filter
	// Creates are mutating pattern parts bound for a CREATE clause in
	// this segment, in dependency order (nodes before incident rels).
	Creates []*CreatePattern
	// Optional marks a QueryGraph introduced by an OPTIONAL MATCH: unmatched
	// rows still flow downstream with null-bound variables.
	Optional bool
}

// RelPattern is one bound relationship edge between two node variables.
type RelPattern struct {
	Variable string // "" if anonymous
	StartVar string
	EndVar   string
	Types    []types.RelTypeId // resolved OR'd type set; empty means "any type"
	// Direction is meaningful only when Either is false.
	Direction types.Direction
	// Either marks an undirected pattern (`-[r]-`): the executor scans
	// both DirOutgoing and DirIncoming, the way storage.GraphTxn.RelIterForNode
	// already accepts a []types.Direction for exactly this case.
	Either bool
	// VarLength is nil for a simple one-hop edge.
	VarLength *PatternLength
}

// PatternLength distinguishes a single hop from a variable-length
// traversal (spec §4.8 binder rule 2).
type PatternLength struct {
	Min int
	Max int // -1 means unbounded; the binder still requires an explicit max (spec §7).
}

// CreatePattern is one node or relationship to materialize for a CREATE
// clause; Rel is nil for a node-only entry.
type CreatePattern struct {
	NodeVar    string
	NodeLabels []types.LabelId
	NodeProps  Filter // expr producing a struct/map of properties, or nil

	Rel *CreateRelPattern
}

// CreateRelPattern is the relationship half of a CreatePattern entry;
// StartVar/EndVar must already be bound (either earlier in this
// CreatePattern list or from an enclosing MATCH).
type CreateRelPattern struct {
	Var      string
	Type     types.RelTypeId
	StartVar string
	EndVar   string
	Props    Filter
}

// Horizon is implemented by Project, Aggregate, Unwind and Load (spec
// §4.8).
type Horizon interface {
	horizon()
}

// ProjectItem is one projected column: an expression plus the output
// variable name it binds.
type ProjectItem struct {
	Expr  Filter
	Alias string
}

// Project is Horizon::Project: items, optional post-filter (HAVING
// position), order, pagination and DISTINCT (spec §4.8/§4.9).
type Project struct {
	Items    []ProjectItem
	Filter   Filter // applied after projection, nil if absent
	Order    []OrderItem
	Skip     Filter
	Limit    Filter
	Distinct bool
}

func (*Project) horizon() {}

type OrderItem struct {
	Key        Filter
	Descending bool
}

// Aggregate is Horizon::Aggregate (spec §9 open question resolution 1):
// GroupBy keys plus a list of aggregate projections, each an
// AggregateFunc applied to an argument expression (nil arg for
// count(*)).
type Aggregate struct {
	GroupBy []ProjectItem
	Items   []AggregateItem
	Order   []OrderItem
	Skip    Filter
	Limit   Filter
}

func (*Aggregate) horizon() {}

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

type AggregateItem struct {
	Func     AggregateFunc
	Arg      Filter // nil for AggCountStar
	Distinct bool
	Alias    string
}

// Unwind is Horizon::Unwind: one row in, N rows out over a list-typed
// expression (spec §4.8).
type Unwind struct {
	Expr     Filter
	Variable string
}

func (*Unwind) horizon() {}

// Load is Horizon::Load: an external CSV source read into rows (spec
// §4.8, §C14 loader).
type Load struct {
	URL         string
	Format      string
	WithHeaders bool
	Variable    string
}

func (*Load) horizon() {}
