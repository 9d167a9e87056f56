package propmap

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/boltgraph/boltgraph/types"
)

// EncodeScalar renders a single scalar value as `[type_tag:1B][data]`
// (length-prefixed for variable-length types), matching
// _examples/original_source/src/common/src/mapb/index_key.rs. It backs
// EncodeComposite, which package storage uses for unique-index keys; the
// property-map heap layout in propmap.go does not use it and keeps its
// own encoding (encodeValue).
func EncodeScalar(v types.Value) ([]byte, error) {
	switch v.Tag {
	case types.TagNull:
		return []byte{TagNull}, nil
	case types.TagBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		return []byte{TagBool, b}, nil
	case types.TagInt:
		buf := make([]byte, 9)
		buf[0] = TagInt
		binary.LittleEndian.PutUint64(buf[1:], uint64(v.Int))
		return buf, nil
	case types.TagFloat:
		buf := make([]byte, 9)
		buf[0] = TagFloat
		binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(v.Float))
		return buf, nil
	case types.TagString:
		buf := make([]byte, 1+4+len(v.Str))
		buf[0] = TagStr
		binary.LittleEndian.PutUint32(buf[1:5], uint32(len(v.Str)))
		copy(buf[5:], v.Str)
		return buf, nil
	default:
		return nil, fmt.Errorf("propmap: type %v cannot be used as an index key", v.Tag)
	}
}

// EncodeComposite concatenates per-value encodings in order (spec §3
// unique index key shape: `(prop_key_id | u32 len | value_bytes)*`).
func EncodeComposite(keyIDs []types.PropertyKeyId, values []types.Value) ([]byte, error) {
	if len(keyIDs) != len(values) {
		return nil, fmt.Errorf("propmap: keyIDs/values length mismatch")
	}
	var out []byte
	for i := range values {
		kidBuf := make([]byte, 2)
		binary.LittleEndian.PutUint16(kidBuf, uint16(keyIDs[i]))
		enc, err := EncodeScalar(values[i])
		if err != nil {
			return nil, err
		}
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(enc)))
		out = append(out, kidBuf...)
		out = append(out, lenBuf...)
		out = append(out, enc...)
	}
	return out, nil
}
