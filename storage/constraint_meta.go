package storage

import (
	"encoding/binary"

	"github.com/boltgraph/boltgraph/types"
)

// Descriptor is a constraint descriptor (spec §3 "Constraint metadata").
type Descriptor struct {
	Name       string
	EntityType EntityType
	LabelID    types.LabelId
	Kind       ConstraintKind
	PropKeyIDs []types.PropertyKeyId
}

type EntityType uint8

const (
	EntityNode EntityType = iota
	EntityRel
)

// EncodeDescriptor is the by_name/by_label entry value: `u8 entity_type |
// u8 kind | u16 label_id | u16 prop_count | PropertyKeyId[] | u16
// name_len | name`. Storing the name again in the value lets the
// by_label entry (whose key only embeds a name length, not a durable
// identifier) be decoded standalone when listing constraints for a
// label.
func EncodeDescriptor(d Descriptor) []byte {
	out := make([]byte, 1+1+2+2+2*len(d.PropKeyIDs)+2+len(d.Name))
	off := 0
	out[off] = byte(d.EntityType)
	off++
	out[off] = byte(d.Kind)
	off++
	binary.LittleEndian.PutUint16(out[off:off+2], uint16(d.LabelID))
	off += 2
	binary.LittleEndian.PutUint16(out[off:off+2], uint16(len(d.PropKeyIDs)))
	off += 2
	for _, p := range d.PropKeyIDs {
		binary.LittleEndian.PutUint16(out[off:off+2], uint16(p))
		off += 2
	}
	binary.LittleEndian.PutUint16(out[off:off+2], uint16(len(d.Name)))
	off += 2
	copy(out[off:], d.Name)
	return out
}

func DecodeDescriptor(v []byte) Descriptor {
	off := 0
	entityType := EntityType(v[off])
	off++
	kind := ConstraintKind(v[off])
	off++
	labelID := types.LabelId(binary.LittleEndian.Uint16(v[off : off+2]))
	off += 2
	propCount := int(binary.LittleEndian.Uint16(v[off : off+2]))
	off += 2
	props := make([]types.PropertyKeyId, propCount)
	for i := 0; i < propCount; i++ {
		props[i] = types.PropertyKeyId(binary.LittleEndian.Uint16(v[off : off+2]))
		off += 2
	}
	nameLen := int(binary.LittleEndian.Uint16(v[off : off+2]))
	off += 2
	name := string(v[off : off+nameLen])
	return Descriptor{Name: name, EntityType: entityType, LabelID: labelID, Kind: kind, PropKeyIDs: props}
}
