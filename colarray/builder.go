package colarray

import "github.com/boltgraph/boltgraph/types"

// Builder is the generic contract from spec §4.6: push one (or n
// repeated) optional scalars, then Finish into an immutable Array. Each
// physical kind gets its own concrete builder below; operators construct
// the one matching the column they are producing.

type BoolBuilder struct {
	data  []bool
	valid MaskBuilder
}

func (b *BoolBuilder) Push(v *bool) {
	if v == nil {
		b.data = append(b.data, false)
		b.valid.Push(false)
		return
	}
	b.data = append(b.data, *v)
	b.valid.Push(true)
}

func (b *BoolBuilder) PushN(v *bool, n int) {
	for i := 0; i < n; i++ {
		b.Push(v)
	}
}

func (b *BoolBuilder) Finish() *Array {
	return &Array{Phys: PBool, Bools: b.data, Valid: b.valid.Finish()}
}

type IntBuilder struct {
	data  []int64
	valid MaskBuilder
}

func (b *IntBuilder) Push(v *int64) {
	if v == nil {
		b.data = append(b.data, 0)
		b.valid.Push(false)
		return
	}
	b.data = append(b.data, *v)
	b.valid.Push(true)
}

func (b *IntBuilder) Finish() *Array {
	return &Array{Phys: PInt, Ints: b.data, Valid: b.valid.Finish()}
}

type FloatBuilder struct {
	data  []float64
	valid MaskBuilder
}

func (b *FloatBuilder) Push(v *float64) {
	if v == nil {
		b.data = append(b.data, 0)
		b.valid.Push(false)
		return
	}
	b.data = append(b.data, *v)
	b.valid.Push(true)
}

func (b *FloatBuilder) Finish() *Array {
	return &Array{Phys: PFloat, Floats: b.data, Valid: b.valid.Finish()}
}

type StringBuilder struct {
	offsets []int32
	bytes   []byte
	valid   MaskBuilder
}

func NewStringBuilder() *StringBuilder {
	return &StringBuilder{offsets: []int32{0}}
}

func (b *StringBuilder) Push(v *string) {
	if v == nil {
		b.offsets = append(b.offsets, b.offsets[len(b.offsets)-1])
		b.valid.Push(false)
		return
	}
	b.bytes = append(b.bytes, *v...)
	b.offsets = append(b.offsets, int32(len(b.bytes)))
	b.valid.Push(true)
}

func (b *StringBuilder) Finish() *Array {
	return &Array{Phys: PString, StrOffsets: b.offsets, StrBytes: b.bytes, Valid: b.valid.Finish()}
}

// ListBuilder builds a PList column whose child elements are appended to
// a caller-supplied child builder; ListBuilder only owns the offsets +
// validity.
type ListBuilder struct {
	offsets []int32
	valid   MaskBuilder
}

func NewListBuilder() *ListBuilder { return &ListBuilder{offsets: []int32{0}} }

// PushLen records that the next `n` elements already appended to the
// child builder belong to this row.
func (b *ListBuilder) PushLen(n int) {
	b.offsets = append(b.offsets, b.offsets[len(b.offsets)-1]+int32(n))
	b.valid.Push(true)
}

func (b *ListBuilder) PushNull() {
	b.offsets = append(b.offsets, b.offsets[len(b.offsets)-1])
	b.valid.Push(false)
}

func (b *ListBuilder) Finish(child *Array) *Array {
	return &Array{Phys: PList, ListOffsets: b.offsets, Child: child, Valid: b.valid.Finish()}
}

// VirtualNodeBuilder / VirtualRelBuilder: id-only columns (spec §3
// "Virtual node/rel").
type VirtualNodeBuilder struct {
	ids   []types.NodeId
	valid MaskBuilder
}

func (b *VirtualNodeBuilder) Push(id types.NodeId) {
	b.ids = append(b.ids, id)
	b.valid.Push(true)
}

func (b *VirtualNodeBuilder) Finish() *Array {
	return &Array{Phys: PVirtualNode, NodeIDs: b.ids, Valid: b.valid.Finish()}
}

type VirtualRelBuilder struct {
	ids   []types.RelationshipId
	valid MaskBuilder
}

func (b *VirtualRelBuilder) Push(id types.RelationshipId) {
	b.ids = append(b.ids, id)
	b.valid.Push(true)
}

func (b *VirtualRelBuilder) Finish() *Array {
	return &Array{Phys: PVirtualRel, RelIDs: b.ids, Valid: b.valid.Finish()}
}

// NodeBuilder builds fully-materialized node rows.
type NodeBuilder struct {
	ids    []types.NodeId
	labels [][]types.LabelId
	props  [][]byte
	valid  MaskBuilder
}

func (b *NodeBuilder) Push(id types.NodeId, labels []types.LabelId, propBlob []byte) {
	b.ids = append(b.ids, id)
	b.labels = append(b.labels, labels)
	b.props = append(b.props, propBlob)
	b.valid.Push(true)
}

func (b *NodeBuilder) PushNull() {
	b.ids = append(b.ids, 0)
	b.labels = append(b.labels, nil)
	b.props = append(b.props, nil)
	b.valid.Push(false)
}

func (b *NodeBuilder) Finish() *Array {
	return &Array{Phys: PNode, NodeIDs: b.ids, NodeLabels: b.labels, NodeProps: b.props, Valid: b.valid.Finish()}
}

// RelBuilder builds fully-materialized relationship rows.
type RelBuilder struct {
	ids    []types.RelationshipId
	types_ []types.RelTypeId
	starts []types.NodeId
	ends   []types.NodeId
	props  [][]byte
	valid  MaskBuilder
}

func (b *RelBuilder) Push(id types.RelationshipId, relType types.RelTypeId, start, end types.NodeId, propBlob []byte) {
	b.ids = append(b.ids, id)
	b.types_ = append(b.types_, relType)
	b.starts = append(b.starts, start)
	b.ends = append(b.ends, end)
	b.props = append(b.props, propBlob)
	b.valid.Push(true)
}

func (b *RelBuilder) PushNull() {
	b.ids = append(b.ids, 0)
	b.types_ = append(b.types_, 0)
	b.starts = append(b.starts, 0)
	b.ends = append(b.ends, 0)
	b.props = append(b.props, nil)
	b.valid.Push(false)
}

func (b *RelBuilder) Finish() *Array {
	return &Array{Phys: PRel, RelIDs: b.ids, RelTypes: b.types_, RelStarts: b.starts, RelEnds: b.ends, RelProps: b.props, Valid: b.valid.Finish()}
}

// NewStructArray assembles a struct column from pre-finished, equal-length
// child arrays (spec §4.6 "Struct array layout").
func NewStructArray(names []string, children []*Array, valid *Mask) *Array {
	return &Array{Phys: PStruct, FieldNames: names, FieldChildren: children, Valid: valid}
}

// FieldIndex returns the position of name within a struct array's fields,
// or -1 (spec §4.7 "Missing key yields null").
func (a *Array) FieldIndex(name string) int {
	for i, n := range a.FieldNames {
		if n == name {
			return i
		}
	}
	return -1
}

// PropMapBuilder builds an opaque PPropMap column (one packed blob per
// row).
type PropMapBuilder struct {
	blobs [][]byte
	valid MaskBuilder
}

func (b *PropMapBuilder) Push(blob []byte) {
	b.blobs = append(b.blobs, blob)
	b.valid.Push(true)
}

func (b *PropMapBuilder) Finish() *Array {
	return &Array{Phys: PPropMap, PropMaps: b.blobs, Valid: b.valid.Finish()}
}
