package colarray

import (
	"github.com/boltgraph/boltgraph/types"
)

// PhysicalType drives builder construction and operator dispatch,
// distinct from the logical types.DataType that drives planning (spec
// §4.6). Several logical types share one physical representation (e.g.
// Date/LocalTime/LocalDateTime/ZonedDateTime are all PInt under the
// hood, carried at the int64 encoding described in propmap).
type PhysicalType uint8

const (
	PBool PhysicalType = iota
	PInt
	PFloat
	PString
	PList
	PStruct
	PPropMap
	PVirtualNode
	PVirtualRel
	PNode
	PRel
	PPath
	PVirtualPath
)

// Array is the tagged-variant dispatch surface spec §9 ("Polymorphism
// across array kinds") asks for: one small struct with a Phys tag and a
// union of the fields each physical kind needs, rather than a virtual
// method per concrete array type. Arrays are built once by a Builder and
// then shared read-only (conceptually Arc-shared; Go's GC plus the "never
// mutate an input array" discipline gives the same safety without an
// explicit refcount type).
type Array struct {
	Phys  PhysicalType
	Valid *Mask

	// PBool
	Bools []bool
	// PInt (also backs Date/LocalTime/LocalDateTime/ZonedDateTime/Duration-months
	// via DataType at the column's logical-type companion, kept out of band
	// by the operator that produced the column)
	Ints []int64
	// PFloat
	Floats []float64
	// PString: offsets[i]..offsets[i+1] into Bytes
	StrOffsets []int32
	StrBytes   []byte
	// PList: offsets[i]..offsets[i+1] index into Child
	ListOffsets []int32
	Child       *Array
	// PStruct: ordered named fields, all same length as parent
	FieldNames    []string
	FieldChildren []*Array
	// PPropMap: opaque packed-property-map blob per row
	PropMaps [][]byte
	// PVirtualNode / PNode
	NodeIDs    []types.NodeId
	NodeLabels [][]types.LabelId // PNode only
	NodeProps  [][]byte          // PNode only, packed property map per row
	// PVirtualRel / PRel
	RelIDs    []types.RelationshipId
	RelTypes  []types.RelTypeId // PRel only
	RelStarts []types.NodeId    // PRel only
	RelEnds   []types.NodeId    // PRel only
	RelProps  [][]byte          // PRel only
	// PPath / PVirtualPath: parallel list-of-node(s) and list-of-rel(s)
	// children built the same way PList is.
	PathNodes *Array
	PathRels  *Array
}

func (a *Array) Len() int {
	if a.Valid != nil {
		return a.Valid.Len()
	}
	return 0
}

func (a *Array) IsValid(i int) bool {
	if a.Valid == nil {
		return true
	}
	return a.Valid.Get(i)
}

func (a *Array) PhysicalType() PhysicalType { return a.Phys }

// ListBounds returns the [start, end) child offsets of element i of a
// PList column via its offsets table.
func (a *Array) ListBounds(i int) (int, int) {
	return int(a.ListOffsets[i]), int(a.ListOffsets[i+1])
}

func (a *Array) StringAt(i int) string {
	s, e := a.StrOffsets[i], a.StrOffsets[i+1]
	return string(a.StrBytes[s:e])
}
