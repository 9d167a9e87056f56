package bind

import "github.com/boltgraph/boltgraph/types"

// Scope is the binder's ordered (symbol, type) table flowing between
// clauses (spec §4.8 "ordered list of (symbol, variable, expr-aliases,
// type)"). An expr.Variable built from it carries only the name and
// type; its column is found by name in the chunk schema at evaluation
// time, not by position in this table.
type Scope struct {
	names []string
	types []types.DataType
	paths map[string]pathInfo
}

// NewScope returns an empty scope.
func NewScope() *Scope { return &Scope{} }

// BindPath records a named path pattern variable's constituent node/rel
// variables alongside its normal Bind, so a later RETURN/WITH projection
// can lower it into an expr.ProjectPath or expr.ProjectVarPath.
func (s *Scope) BindPath(name string, info pathInfo) {
	if s.paths == nil {
		s.paths = map[string]pathInfo{}
	}
	s.paths[name] = info
}

// LookupPath returns the pathInfo recorded for name, if any.
func (s *Scope) LookupPath(name string) (pathInfo, bool) {
	info, ok := s.paths[name]
	return info, ok
}

// Lookup returns the column index and type bound to name, if any.
func (s *Scope) Lookup(name string) (int, types.DataType, bool) {
	for i, n := range s.names {
		if n == name {
			return i, s.types[i], true
		}
	}
	return 0, types.DTAny, false
}

// Bind introduces or re-binds name at dt, returning its column index.
// Re-binding an existing symbol to a conflicting type is the caller's
// business to reject (spec §4.8 "MATCH forbids introducing already-bound
// symbols with a conflicting type"); Bind itself just records the type.
func (s *Scope) Bind(name string, dt types.DataType) int {
	if i, _, ok := s.Lookup(name); ok {
		s.types[i] = dt
		return i
	}
	s.names = append(s.names, name)
	s.types = append(s.types, dt)
	return len(s.names) - 1
}

// Names returns every bound symbol, in binding order.
func (s *Scope) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Clone returns an independent copy so a sub-binding step (e.g. an
// OPTIONAL MATCH branch) can extend its own scope without mutating the
// caller's.
func (s *Scope) Clone() *Scope {
	out := &Scope{names: make([]string, len(s.names)), types: make([]types.DataType, len(s.types))}
	copy(out.names, s.names)
	copy(out.types, s.types)
	for k, v := range s.paths {
		out.BindPath(k, v)
	}
	return out
}

// Fresh returns a new scope seeded with exactly the given names/types,
// used at a WITH/RETURN boundary which replaces the scope rather than
// extending it (spec §4.8 "WITH and RETURN compute a new scope").
func Fresh(names []string, types_ []types.DataType) *Scope {
	return &Scope{names: append([]string(nil), names...), types: append([]types.DataType(nil), types_...)}
}
