package storage

import (
	"encoding/binary"

	"github.com/boltgraph/boltgraph/types"
)

// NodeKey builds the property-CF key for a node (spec §3/§6):
// `[NodePrefix | node_id_le_u64]`.
func NodeKey(id types.NodeId) []byte {
	k := make([]byte, 9)
	k[0] = NodePrefix
	binary.LittleEndian.PutUint64(k[1:], uint64(id))
	return k
}

func DecodeNodeKey(k []byte) types.NodeId {
	return types.NodeId(binary.LittleEndian.Uint64(k[1:9]))
}

// NodeValue is the decoded form of a node's property-CF value (spec §3
// "Node record" / §6 "Node value").
type NodeValue struct {
	Labels   []types.LabelId
	PropBlob []byte
}

// EncodeNodeValue serializes `u16 label_count | u32 prop_block_len |
// LabelId[] | packed_property_map` (spec §3/§6, header-then-labels-then-map).
func EncodeNodeValue(labels []types.LabelId, propBlob []byte) []byte {
	out := make([]byte, 6+2*len(labels)+len(propBlob))
	binary.LittleEndian.PutUint16(out[0:2], uint16(len(labels)))
	binary.LittleEndian.PutUint32(out[2:6], uint32(len(propBlob)))
	off := 6
	for _, l := range labels {
		binary.LittleEndian.PutUint16(out[off:off+2], uint16(l))
		off += 2
	}
	copy(out[off:], propBlob)
	return out
}

func DecodeNodeValue(v []byte) NodeValue {
	labelCount := int(binary.LittleEndian.Uint16(v[0:2]))
	propLen := int(binary.LittleEndian.Uint32(v[2:6]))
	labels := make([]types.LabelId, labelCount)
	off := 6
	for i := 0; i < labelCount; i++ {
		labels[i] = types.LabelId(binary.LittleEndian.Uint16(v[off : off+2]))
		off += 2
	}
	propBlob := v[off : off+propLen]
	return NodeValue{Labels: labels, PropBlob: propBlob}
}

// RelTopologyKey builds one directional topology entry (spec §3/§6):
// `[RelPrefix | src_id | direction_byte | rel_type_id | dst_id | rel_id]`.
// Each logical relationship produces two such entries, one per endpoint.
func RelTopologyKey(src types.NodeId, dir byte, relType types.RelTypeId, dst types.NodeId, relID types.RelationshipId) []byte {
	k := make([]byte, 1+8+1+2+8+8)
	off := 0
	k[off] = RelPrefix
	off++
	binary.LittleEndian.PutUint64(k[off:off+8], uint64(src))
	off += 8
	k[off] = dir
	off++
	binary.LittleEndian.PutUint16(k[off:off+2], uint16(relType))
	off += 2
	binary.LittleEndian.PutUint64(k[off:off+8], uint64(dst))
	off += 8
	binary.LittleEndian.PutUint64(k[off:off+8], uint64(relID))
	return k
}

// DecodedRelKey is RelTopologyKey's inverse.
type DecodedRelKey struct {
	Src     types.NodeId
	Dir     byte
	RelType types.RelTypeId
	Dst     types.NodeId
	RelID   types.RelationshipId
}

func DecodeRelTopologyKey(k []byte) DecodedRelKey {
	off := 1
	src := types.NodeId(binary.LittleEndian.Uint64(k[off : off+8]))
	off += 8
	dir := k[off]
	off++
	relType := types.RelTypeId(binary.LittleEndian.Uint16(k[off : off+2]))
	off += 2
	dst := types.NodeId(binary.LittleEndian.Uint64(k[off : off+8]))
	off += 8
	relID := types.RelationshipId(binary.LittleEndian.Uint64(k[off : off+8]))
	return DecodedRelKey{Src: src, Dir: dir, RelType: relType, Dst: dst, RelID: relID}
}

// RelScanPrefix returns the prefix that yields every edge incident to
// node in the given direction, optionally narrowed to one relationship
// type (spec §3 "topology-oriented layout so every node's incident edges
// can be prefix-scanned").
func RelScanPrefix(node types.NodeId, dir byte, relType *types.RelTypeId) []byte {
	if relType == nil {
		k := make([]byte, 1+8+1)
		k[0] = RelPrefix
		binary.LittleEndian.PutUint64(k[1:9], uint64(node))
		k[9] = dir
		return k
	}
	k := make([]byte, 1+8+1+2)
	k[0] = RelPrefix
	binary.LittleEndian.PutUint64(k[1:9], uint64(node))
	k[9] = dir
	binary.LittleEndian.PutUint16(k[10:12], uint16(*relType))
	return k
}

func dirByte(d types.Direction) byte {
	if d == types.DirOutgoing {
		return DirByteOut
	}
	return DirByteIn
}

// RelByIDKey builds the by-id lookup entry for a relationship (spec §3
// "materialize_rel"): `[RelByIDPrefix | rel_id_le_u64]`. One entry per
// logical relationship, alongside the two directional topology entries.
func RelByIDKey(id types.RelationshipId) []byte {
	k := make([]byte, 9)
	k[0] = RelByIDPrefix
	binary.LittleEndian.PutUint64(k[1:], uint64(id))
	return k
}

// RelValue is the decoded form of a RelByIDKey value.
type RelValue struct {
	Type     types.RelTypeId
	Src, Dst types.NodeId
	PropBlob []byte
}

// EncodeRelValue serializes `rel_type_le_u16 | src_le_u64 | dst_le_u64 |
// packed_property_map`.
func EncodeRelValue(relType types.RelTypeId, src, dst types.NodeId, propBlob []byte) []byte {
	out := make([]byte, 18+len(propBlob))
	binary.LittleEndian.PutUint16(out[0:2], uint16(relType))
	binary.LittleEndian.PutUint64(out[2:10], uint64(src))
	binary.LittleEndian.PutUint64(out[10:18], uint64(dst))
	copy(out[18:], propBlob)
	return out
}

func DecodeRelValue(v []byte) RelValue {
	relType := types.RelTypeId(binary.LittleEndian.Uint16(v[0:2]))
	src := types.NodeId(binary.LittleEndian.Uint64(v[2:10]))
	dst := types.NodeId(binary.LittleEndian.Uint64(v[10:18]))
	return RelValue{Type: relType, Src: src, Dst: dst, PropBlob: v[18:]}
}

// ConstraintKind mirrors spec §3 "constraint descriptor kind".
type ConstraintKind uint8

const (
	ConstraintUnique ConstraintKind = iota
	ConstraintNodeKey
	ConstraintNotNull
)

// ConstraintNameKey is the `by_name` entry key (spec §6):
// `META_PREFIX | name_len_le_u16 | name`.
func ConstraintNameKey(name string) []byte {
	k := make([]byte, 1+2+len(name))
	k[0] = ConstraintByName
	binary.LittleEndian.PutUint16(k[1:3], uint16(len(name)))
	copy(k[3:], name)
	return k
}

// ConstraintLabelKey is the `by_label` secondary entry key (spec §6):
// `LABEL_IDX_PREFIX | label_le_u16 | name_len | name`.
func ConstraintLabelKey(label types.LabelId, name string) []byte {
	k := make([]byte, 1+2+2+len(name))
	k[0] = ConstraintByLabel
	binary.LittleEndian.PutUint16(k[1:3], uint16(label))
	binary.LittleEndian.PutUint16(k[3:5], uint16(len(name)))
	copy(k[5:], name)
	return k
}

func ConstraintLabelPrefix(label types.LabelId) []byte {
	k := make([]byte, 3)
	k[0] = ConstraintByLabel
	binary.LittleEndian.PutUint16(k[1:3], uint16(label))
	return k
}

// UniqueIndexKey builds `UNIQ_PREFIX | label_le_u16 | (key_le_u16 |
// val_len_le_u32 | val_bytes)*` (spec §3/§6). valueBytes must already be
// the composite scalar encoding from propmap.EncodeComposite.
func UniqueIndexKey(label types.LabelId, valueBytes []byte) []byte {
	k := make([]byte, 3+len(valueBytes))
	k[0] = UniqueIndexPrefix
	binary.LittleEndian.PutUint16(k[1:3], uint16(label))
	copy(k[3:], valueBytes)
	return k
}

func UniqueIndexLabelPrefix(label types.LabelId) []byte {
	k := make([]byte, 3)
	k[0] = UniqueIndexPrefix
	binary.LittleEndian.PutUint16(k[1:3], uint16(label))
	return k
}
