package propmap

import (
	"time"

	"github.com/boltgraph/boltgraph/types"
)

// decodeTemporal turns the inline u64 payload back into the matching
// temporal Value. Encoding mirrors encodeValue in propmap.go: Date is
// days-since-epoch, LocalTime is nanos-since-midnight, LocalDateTime is
// nanos-since-epoch. ZonedDateTime carries a zone name alongside its
// nanos and is heap-allocated instead, so it is decoded in decodeAt.
func (m *Map) decodeTemporal(tag byte, raw uint64) types.Value {
	switch tag {
	case TagDate:
		days := int64(raw)
		t := time.Unix(days*86400, 0).UTC()
		return types.Value{Tag: types.TagDate, Time: t}
	case TagLocalTime:
		nanos := int64(raw)
		t := time.Unix(0, nanos).UTC()
		return types.Value{Tag: types.TagLocalTime, Time: t}
	case TagLocalDateTime:
		return types.Value{Tag: types.TagLocalDateTime, Time: time.Unix(0, int64(raw)).UTC()}
	default:
		return types.Null()
	}
}
