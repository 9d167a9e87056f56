package colarray

import "github.com/boltgraph/boltgraph/types"

// ScalarRef is a borrowed view of one cell, returned by DataChunk row
// iteration (spec §4.6 "DataChunk::iter() yields rows"). For the
// primitive kinds it mirrors types.Value; for node/rel/path/list it
// carries the backing array plus a row index so callers avoid copying
// nested structures just to inspect one row.
type ScalarRef struct {
	Valid bool
	Value types.Value // meaningful when the column is a primitive physical type
	Arr   *Array      // for list/struct/propmap/node/rel/path columns
	Row   int
}

// DataChunk is an array-of-arrays batch plus a visibility bitmap marking
// logically present rows (spec §3/§4.6). All columns share one length;
// Visibility may mark a subset of rows as logically absent without
// physically removing them until Compact is called.
type DataChunk struct {
	Schema     *types.Schema
	Columns    []*Array
	Visibility *Mask
}

func NewDataChunk(schema *types.Schema, columns []*Array) *DataChunk {
	n := 0
	if len(columns) > 0 {
		n = columns[0].Len()
	}
	return &DataChunk{Schema: schema, Columns: columns, Visibility: NewMaskAllValid(n)}
}

// Len is the physical row count (visible and invisible rows).
func (c *DataChunk) Len() int {
	if len(c.Columns) == 0 {
		return 0
	}
	return c.Columns[0].Len()
}

// VisibleLen is the logical row count.
func (c *DataChunk) VisibleLen() int { return c.Visibility.Count() }

// Compact rematerializes the chunk so every physical row is visible
// (spec §4.6 "compact() rematerializes into a chunk where visibility is
// all-true").
func (c *DataChunk) Compact() *DataChunk {
	if c.Visibility.AllSet() {
		return c
	}
	idx := c.Visibility.Indices()
	cols := make([]*Array, len(c.Columns))
	for i, col := range c.Columns {
		cols[i] = compactArray(col, idx)
	}
	out := NewDataChunk(c.Schema, cols)
	return out
}

// Take gathers rows idx (repeats and reorders allowed) into a fresh
// array; operators like Expand use it to repeat a parent column once per
// child edge before appending the new RelVar/EndVar columns.
func Take(a *Array, idx []int) *Array {
	return compactArray(a, idx)
}

// ConcatArrays stacks same-typed arrays end to end, the column-level
// counterpart of appending DataChunks from a collecting operator (spec
// §4.10 Sort: "the whole input is materialized before the first output
// row").
func ConcatArrays(arrs []*Array) *Array {
	if len(arrs) == 1 {
		return arrs[0]
	}
	total := 0
	for _, a := range arrs {
		total += a.Len()
	}
	// Route every array through the same row-gather machinery Take uses,
	// against a synthetic per-array index space flattened up front.
	type src struct {
		arr *Array
		row int
	}
	flat := make([]src, 0, total)
	for _, a := range arrs {
		for i := 0; i < a.Len(); i++ {
			flat = append(flat, src{a, i})
		}
	}
	if len(flat) == 0 {
		return arrs[0]
	}
	// Build row-by-row via the first array's Phys (every input shares the
	// same column type).
	phys := arrs[0].Phys
	valid := make([]bool, len(flat))
	for i, s := range flat {
		valid[i] = s.arr.IsValid(s.row)
	}
	switch phys {
	case PBool:
		out := make([]bool, len(flat))
		for i, s := range flat {
			out[i] = s.arr.Bools[s.row]
		}
		return &Array{Phys: PBool, Bools: out, Valid: NewMaskFromBools(valid)}
	case PInt:
		out := make([]int64, len(flat))
		for i, s := range flat {
			out[i] = s.arr.Ints[s.row]
		}
		return &Array{Phys: PInt, Ints: out, Valid: NewMaskFromBools(valid)}
	case PFloat:
		out := make([]float64, len(flat))
		for i, s := range flat {
			out[i] = s.arr.Floats[s.row]
		}
		return &Array{Phys: PFloat, Floats: out, Valid: NewMaskFromBools(valid)}
	case PString:
		sb := NewStringBuilder()
		for _, s := range flat {
			if s.arr.IsValid(s.row) {
				str := s.arr.StringAt(s.row)
				sb.Push(&str)
			} else {
				sb.Push(nil)
			}
		}
		return sb.Finish()
	case PVirtualNode:
		out := make([]types.NodeId, len(flat))
		for i, s := range flat {
			out[i] = s.arr.NodeIDs[s.row]
		}
		return &Array{Phys: PVirtualNode, NodeIDs: out, Valid: NewMaskFromBools(valid)}
	case PVirtualRel:
		out := make([]types.RelationshipId, len(flat))
		for i, s := range flat {
			out[i] = s.arr.RelIDs[s.row]
		}
		return &Array{Phys: PVirtualRel, RelIDs: out, Valid: NewMaskFromBools(valid)}
	case PNode:
		ids := make([]types.NodeId, len(flat))
		labels := make([][]types.LabelId, len(flat))
		props := make([][]byte, len(flat))
		for i, s := range flat {
			ids[i] = s.arr.NodeIDs[s.row]
			labels[i] = s.arr.NodeLabels[s.row]
			props[i] = s.arr.NodeProps[s.row]
		}
		return &Array{Phys: PNode, NodeIDs: ids, NodeLabels: labels, NodeProps: props, Valid: NewMaskFromBools(valid)}
	case PRel:
		ids := make([]types.RelationshipId, len(flat))
		relTypes := make([]types.RelTypeId, len(flat))
		starts := make([]types.NodeId, len(flat))
		ends := make([]types.NodeId, len(flat))
		props := make([][]byte, len(flat))
		for i, s := range flat {
			ids[i] = s.arr.RelIDs[s.row]
			relTypes[i] = s.arr.RelTypes[s.row]
			starts[i] = s.arr.RelStarts[s.row]
			ends[i] = s.arr.RelEnds[s.row]
			props[i] = s.arr.RelProps[s.row]
		}
		return &Array{Phys: PRel, RelIDs: ids, RelTypes: relTypes, RelStarts: starts, RelEnds: ends, RelProps: props, Valid: NewMaskFromBools(valid)}
	case PPropMap:
		out := make([][]byte, len(flat))
		for i, s := range flat {
			out[i] = s.arr.PropMaps[s.row]
		}
		return &Array{Phys: PPropMap, PropMaps: out, Valid: NewMaskFromBools(valid)}
	case PPath, PVirtualPath:
		nodes := make([]*Array, len(arrs))
		rels := make([]*Array, len(arrs))
		for i, a := range arrs {
			nodes[i], rels[i] = a.PathNodes, a.PathRels
		}
		return &Array{Phys: phys, PathNodes: ConcatArrays(nodes), PathRels: ConcatArrays(rels), Valid: NewMaskFromBools(valid)}
	case PList:
		childArrs := make([]*Array, len(arrs))
		childBase := make([]int, len(arrs))
		base := 0
		for i, a := range arrs {
			childArrs[i] = a.Child
			childBase[i] = base
			if a.Child != nil {
				base += a.Child.Len()
			}
		}
		offs := make([]int32, 1, len(flat)+1)
		offs[0] = 0
		for ai, a := range arrs {
			for i := 0; i < a.Len(); i++ {
				s, e := a.ListBounds(i)
				shift := childBase[ai] - 0
				_ = s
				offs = append(offs, int32(shift+e))
			}
		}
		var mergedChild *Array
		present := make([]*Array, 0, len(childArrs))
		for _, c := range childArrs {
			if c != nil {
				present = append(present, c)
			}
		}
		if len(present) > 0 {
			mergedChild = ConcatArrays(present)
		}
		return &Array{Phys: phys, ListOffsets: offs, Child: mergedChild, Valid: NewMaskFromBools(valid)}
	default: // PStruct
		fieldCount := len(arrs[0].FieldChildren)
		children := make([]*Array, fieldCount)
		for f := 0; f < fieldCount; f++ {
			fieldArrs := make([]*Array, len(arrs))
			for i, a := range arrs {
				fieldArrs[i] = a.FieldChildren[f]
			}
			children[f] = ConcatArrays(fieldArrs)
		}
		return &Array{Phys: PStruct, FieldNames: arrs[0].FieldNames, FieldChildren: children, Valid: NewMaskFromBools(valid)}
	}
}

func compactArray(a *Array, idx []int) *Array {
	valid := make([]bool, len(idx))
	for i, row := range idx {
		valid[i] = a.IsValid(row)
	}
	out := &Array{Phys: a.Phys, Valid: NewMaskFromBools(valid)}
	switch a.Phys {
	case PBool:
		out.Bools = pick(a.Bools, idx)
	case PInt:
		out.Ints = pickI64(a.Ints, idx)
	case PFloat:
		out.Floats = pickF64(a.Floats, idx)
	case PString:
		sb := NewStringBuilder()
		for _, row := range idx {
			if a.IsValid(row) {
				s := a.StringAt(row)
				sb.Push(&s)
			} else {
				sb.Push(nil)
			}
		}
		return sb.Finish()
	case PVirtualNode:
		out.NodeIDs = pickNodeIDs(a.NodeIDs, idx)
	case PVirtualRel:
		out.RelIDs = pickRelIDs(a.RelIDs, idx)
	case PNode:
		out.NodeIDs = pickNodeIDs(a.NodeIDs, idx)
		out.NodeLabels = pickLabels(a.NodeLabels, idx)
		out.NodeProps = pickBytes(a.NodeProps, idx)
	case PRel:
		out.RelIDs = pickRelIDs(a.RelIDs, idx)
		out.RelTypes = pickRelTypes(a.RelTypes, idx)
		out.RelStarts = pickNodeIDs(a.RelStarts, idx)
		out.RelEnds = pickNodeIDs(a.RelEnds, idx)
		out.RelProps = pickBytes(a.RelProps, idx)
	case PPropMap:
		out.PropMaps = pickBytes(a.PropMaps, idx)
	case PList, PPath, PVirtualPath:
		// A list row's [start,end) child window is gathered into a fresh
		// child, so the new offsets index it from 0; path rows live in the
		// PathNodes/PathRels list children and are gathered row for row.
		if a.Phys != PList {
			out.PathNodes = compactArray(a.PathNodes, idx)
			out.PathRels = compactArray(a.PathRels, idx)
			break
		}
		offs := make([]int32, 0, len(idx)+1)
		offs = append(offs, 0)
		var childIdx []int
		for _, row := range idx {
			s, e := a.ListBounds(row)
			for j := s; j < e; j++ {
				childIdx = append(childIdx, j)
			}
			offs = append(offs, offs[len(offs)-1]+int32(e-s))
		}
		out.ListOffsets = offs
		out.Child = compactArray(a.Child, childIdx)
	case PStruct:
		children := make([]*Array, len(a.FieldChildren))
		for i, c := range a.FieldChildren {
			children[i] = compactArray(c, idx)
		}
		out.FieldNames = a.FieldNames
		out.FieldChildren = children
	}
	return out
}

func pick[T any](s []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, row := range idx {
		out[i] = s[row]
	}
	return out
}

func pickI64(s []int64, idx []int) []int64     { return pick(s, idx) }
func pickF64(s []float64, idx []int) []float64 { return pick(s, idx) }
func pickBytes(s [][]byte, idx []int) [][]byte { return pick(s, idx) }
func pickNodeIDs(s []types.NodeId, idx []int) []types.NodeId {
	return pick(s, idx)
}
func pickRelIDs(s []types.RelationshipId, idx []int) []types.RelationshipId {
	return pick(s, idx)
}
func pickLabels(s [][]types.LabelId, idx []int) [][]types.LabelId { return pick(s, idx) }
func pickRelTypes(s []types.RelTypeId, idx []int) []types.RelTypeId {
	return pick(s, idx)
}

// Row returns the logical-index-th visible row as a slice of ScalarRef,
// one per column.
func (c *DataChunk) Row(logicalIdx int) []ScalarRef {
	idx := c.Visibility.Indices()
	row := idx[logicalIdx]
	out := make([]ScalarRef, len(c.Columns))
	for i, col := range c.Columns {
		out[i] = cellAt(col, row)
	}
	return out
}

// Iter calls fn for every visible row, skipping invisible ones (spec
// §4.6 DataChunk::iter).
func (c *DataChunk) Iter(fn func(row []ScalarRef) bool) {
	for _, row := range c.Visibility.Indices() {
		cells := make([]ScalarRef, len(c.Columns))
		for i, col := range c.Columns {
			cells[i] = cellAt(col, row)
		}
		if !fn(cells) {
			return
		}
	}
}

func cellAt(col *Array, row int) ScalarRef {
	if !col.IsValid(row) {
		return ScalarRef{Valid: false, Arr: col, Row: row}
	}
	switch col.Phys {
	case PBool:
		return ScalarRef{Valid: true, Value: types.NewBool(col.Bools[row])}
	case PInt:
		return ScalarRef{Valid: true, Value: types.NewInt(col.Ints[row])}
	case PFloat:
		return ScalarRef{Valid: true, Value: types.NewFloat(col.Floats[row])}
	case PString:
		return ScalarRef{Valid: true, Value: types.NewString(col.StringAt(row))}
	default:
		return ScalarRef{Valid: true, Arr: col, Row: row}
	}
}
