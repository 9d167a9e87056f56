// Package propmap implements the packed property map (spec §3/§4.1): a
// single contiguous byte blob holding a sorted, fixed-width entry table
// plus a variable-length heap, grounded on
// _examples/original_source/src/common/src/mapb/{entry,meta,map}.rs.
package propmap

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/boltgraph/boltgraph/types"
)

// Type tags, stable on disk (spec §4.1). Do not renumber.
const (
	TagNull  byte = 0x00
	TagBool  byte = 0x01
	TagInt   byte = 0x02
	TagFloat byte = 0x03
	TagStr   byte = 0x04

	TagListBool   byte = 0x05
	TagListInt    byte = 0x06
	TagListFloat  byte = 0x07
	TagListString byte = 0x08

	TagDate          byte = 0x09
	TagLocalTime     byte = 0x0A
	TagLocalDateTime byte = 0x0B
	TagZonedDateTime byte = 0x0C
	TagDuration      byte = 0x0D
)

const entryWidth = 12 // u16 key_id | u8 type_tag | u8 padding | u64 payload

// inlined reports whether the tag's 8-byte payload is the value itself
// rather than a heap offset.
func inlined(tag byte) bool {
	switch tag {
	case TagNull, TagBool, TagInt, TagFloat, TagDate, TagLocalTime, TagLocalDateTime:
		return true
	default:
		return false
	}
}

// Entry is one (key_id, Value) pair supplied to Build.
type Entry struct {
	KeyID types.PropertyKeyId
	Value types.Value
}

// Build serializes entries into a packed property map blob. Entries are
// sorted by KeyID; when a KeyID repeats, the last occurrence wins (spec
// §4.1 "duplicate keys: last write wins at the write-path layer").
func Build(entries []Entry) []byte {
	entries = dedupLastWins(entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].KeyID < entries[j].KeyID })

	header := make([]byte, 2+entryWidth*len(entries))
	binary.LittleEndian.PutUint16(header[0:2], uint16(len(entries)))

	var heap []byte
	for i, e := range entries {
		off := 2 + i*entryWidth
		rec := header[off : off+entryWidth]
		binary.LittleEndian.PutUint16(rec[0:2], uint16(e.KeyID))
		tag, payload, heapBytes := encodeValue(e.Value)
		rec[2] = tag
		rec[3] = 0
		if inlined(tag) {
			copy(rec[4:12], payload[:])
		} else {
			binary.LittleEndian.PutUint64(rec[4:12], uint64(len(header)+len(heap)))
			heap = append(heap, heapBytes...)
		}
	}
	return append(header, heap...)
}

func dedupLastWins(entries []Entry) []Entry {
	last := make(map[types.PropertyKeyId]types.Value, len(entries))
	order := make([]types.PropertyKeyId, 0, len(entries))
	for _, e := range entries {
		if _, ok := last[e.KeyID]; !ok {
			order = append(order, e.KeyID)
		}
		last[e.KeyID] = e.Value
	}
	out := make([]Entry, 0, len(order))
	for _, k := range order {
		out = append(out, Entry{KeyID: k, Value: last[k]})
	}
	return out
}

// encodeValue returns the type tag, the 8-byte inline payload (when
// inlined) or the heap bytes (length-prefixed where applicable) and the
// empty other one.
func encodeValue(v types.Value) (tag byte, inline [8]byte, heapBytes []byte) {
	switch v.Tag {
	case types.TagNull:
		return TagNull, inline, nil
	case types.TagBool:
		if v.Bool {
			inline[0] = 1
		}
		return TagBool, inline, nil
	case types.TagInt:
		binary.LittleEndian.PutUint64(inline[:], uint64(v.Int))
		return TagInt, inline, nil
	case types.TagFloat:
		binary.LittleEndian.PutUint64(inline[:], math.Float64bits(v.Float))
		return TagFloat, inline, nil
	case types.TagString:
		return TagStr, inline, lenPrefixed([]byte(v.Str))
	case types.TagListBool:
		b := make([]byte, 4+len(v.ListBool))
		binary.LittleEndian.PutUint32(b[0:4], uint32(len(v.ListBool)))
		for i, x := range v.ListBool {
			if x {
				b[4+i] = 1
			}
		}
		return TagListBool, inline, b
	case types.TagListInt:
		b := make([]byte, 4+8*len(v.ListInt))
		binary.LittleEndian.PutUint32(b[0:4], uint32(len(v.ListInt)))
		for i, x := range v.ListInt {
			binary.LittleEndian.PutUint64(b[4+8*i:4+8*i+8], uint64(x))
		}
		return TagListInt, inline, b
	case types.TagListFloat:
		b := make([]byte, 4+8*len(v.ListFloat))
		binary.LittleEndian.PutUint32(b[0:4], uint32(len(v.ListFloat)))
		for i, x := range v.ListFloat {
			binary.LittleEndian.PutUint64(b[4+8*i:4+8*i+8], math.Float64bits(x))
		}
		return TagListFloat, inline, b
	case types.TagListString:
		var b []byte
		head := make([]byte, 4)
		binary.LittleEndian.PutUint32(head, uint32(len(v.ListString)))
		b = append(b, head...)
		for _, s := range v.ListString {
			b = append(b, lenPrefixed([]byte(s))...)
		}
		return TagListString, inline, b
	case types.TagDuration:
		b := make([]byte, 24)
		binary.LittleEndian.PutUint64(b[0:8], uint64(v.Dur.Months))
		binary.LittleEndian.PutUint64(b[8:16], uint64(v.Dur.Days))
		binary.LittleEndian.PutUint64(b[16:24], uint64(v.Dur.Nanos))
		return TagDuration, inline, b
	case types.TagDate:
		binary.LittleEndian.PutUint64(inline[:], uint64(v.Time.Unix()/86400))
		return TagDate, inline, nil
	case types.TagLocalTime:
		binary.LittleEndian.PutUint64(inline[:], uint64(v.Time.UnixNano()%int64(24*3600*1e9)))
		return TagLocalTime, inline, nil
	case types.TagLocalDateTime:
		binary.LittleEndian.PutUint64(inline[:], uint64(v.Time.UnixNano()))
		return TagLocalDateTime, inline, nil
	case types.TagZonedDateTime:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b[0:8], uint64(v.Time.UnixNano()))
		b = append(b, lenPrefixed([]byte(v.Zone))...)
		return TagZonedDateTime, inline, b
	default:
		return TagNull, inline, nil
	}
}

func lenPrefixed(b []byte) []byte {
	out := make([]byte, 4+len(b))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(b)))
	copy(out[4:], b)
	return out
}
