package propmap

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/boltgraph/boltgraph/types"
)

// CorruptionError signals a byte outside the stable tag set (spec §4.1).
type CorruptionError struct {
	Tag byte
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("propmap: corrupt type tag 0x%02x", e.Tag)
}

// Map is a read-only view over a packed property map blob.
type Map struct {
	blob []byte
	n    int
}

// Open wraps a blob for reading without copying it.
func Open(blob []byte) *Map {
	n := int(binary.LittleEndian.Uint16(blob[0:2]))
	return &Map{blob: blob, n: n}
}

func (m *Map) Len() int { return m.n }

func (m *Map) entryOffset(i int) int { return 2 + i*entryWidth }

func (m *Map) keyAt(i int) types.PropertyKeyId {
	off := m.entryOffset(i)
	return types.PropertyKeyId(binary.LittleEndian.Uint16(m.blob[off : off+2]))
}

// Get performs a binary search (entries are sorted by key_id, spec §4.1)
// and returns the decoded value, or (Value{}, false) if absent.
func (m *Map) Get(keyID types.PropertyKeyId) (types.Value, bool) {
	idx := sort.Search(m.n, func(i int) bool { return m.keyAt(i) >= keyID })
	if idx >= m.n || m.keyAt(idx) != keyID {
		return types.Value{}, false
	}
	v, err := m.decodeAt(idx)
	if err != nil {
		return types.Value{}, false
	}
	return v, true
}

// Iter calls fn for every entry in key_id order; it stops early if fn
// returns false.
func (m *Map) Iter(fn func(keyID types.PropertyKeyId, v types.Value) bool) error {
	for i := 0; i < m.n; i++ {
		v, err := m.decodeAt(i)
		if err != nil {
			return err
		}
		if !fn(m.keyAt(i), v) {
			return nil
		}
	}
	return nil
}

// Entries decodes the whole map into a slice, for callers (e.g.
// materialize) that want an owned snapshot rather than a callback.
func (m *Map) Entries() ([]Entry, error) {
	out := make([]Entry, 0, m.n)
	err := m.Iter(func(k types.PropertyKeyId, v types.Value) bool {
		out = append(out, Entry{KeyID: k, Value: v})
		return true
	})
	return out, err
}

// Bytes returns the raw blob backing this map.
func (m *Map) Bytes() []byte { return m.blob }

func (m *Map) decodeAt(i int) (types.Value, error) {
	off := m.entryOffset(i)
	rec := m.blob[off : off+entryWidth]
	tag := rec[2]
	payload := rec[4:12]

	switch tag {
	case TagNull:
		return types.Null(), nil
	case TagBool:
		return types.NewBool(payload[0] == 1), nil
	case TagInt:
		return types.NewInt(int64(binary.LittleEndian.Uint64(payload))), nil
	case TagFloat:
		return types.NewFloat(math.Float64frombits(binary.LittleEndian.Uint64(payload))), nil
	case TagDate, TagLocalTime, TagLocalDateTime:
		return m.decodeTemporal(tag, binary.LittleEndian.Uint64(payload)), nil
	case TagZonedDateTime:
		off := int(binary.LittleEndian.Uint64(payload))
		nanos := int64(binary.LittleEndian.Uint64(m.blob[off : off+8]))
		zone := m.readLenPrefixedStr(off + 8)
		return types.Value{Tag: types.TagZonedDateTime, Time: time.Unix(0, nanos).UTC(), Zone: zone}, nil
	case TagStr:
		off := int(binary.LittleEndian.Uint64(payload))
		return types.NewString(m.readLenPrefixedStr(off)), nil
	case TagListBool:
		off := int(binary.LittleEndian.Uint64(payload))
		n := int(binary.LittleEndian.Uint32(m.blob[off : off+4]))
		out := make([]bool, n)
		for i := 0; i < n; i++ {
			out[i] = m.blob[off+4+i] == 1
		}
		return types.NewListBool(out), nil
	case TagListInt:
		off := int(binary.LittleEndian.Uint64(payload))
		n := int(binary.LittleEndian.Uint32(m.blob[off : off+4]))
		out := make([]int64, n)
		for i := 0; i < n; i++ {
			out[i] = int64(binary.LittleEndian.Uint64(m.blob[off+4+8*i : off+4+8*i+8]))
		}
		return types.NewListInt(out), nil
	case TagListFloat:
		off := int(binary.LittleEndian.Uint64(payload))
		n := int(binary.LittleEndian.Uint32(m.blob[off : off+4]))
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(m.blob[off+4+8*i : off+4+8*i+8]))
		}
		return types.NewListFloat(out), nil
	case TagListString:
		off := int(binary.LittleEndian.Uint64(payload))
		n := int(binary.LittleEndian.Uint32(m.blob[off : off+4]))
		pos := off + 4
		out := make([]string, n)
		for i := 0; i < n; i++ {
			slen := int(binary.LittleEndian.Uint32(m.blob[pos : pos+4]))
			pos += 4
			out[i] = string(m.blob[pos : pos+slen])
			pos += slen
		}
		return types.NewListString(out), nil
	case TagDuration:
		off := int(binary.LittleEndian.Uint64(payload))
		months := int64(binary.LittleEndian.Uint64(m.blob[off : off+8]))
		days := int64(binary.LittleEndian.Uint64(m.blob[off+8 : off+16]))
		nanos := int64(binary.LittleEndian.Uint64(m.blob[off+16 : off+24]))
		return types.Value{Tag: types.TagDuration, Dur: types.Duration{Months: months, Days: days, Nanos: nanos}}, nil
	default:
		return types.Value{}, &CorruptionError{Tag: tag}
	}
}

func (m *Map) readLenPrefixedStr(off int) string {
	n := int(binary.LittleEndian.Uint32(m.blob[off : off+4]))
	return string(m.blob[off+4 : off+4+n])
}
