package propmap

import (
	"testing"
	"time"

	"github.com/boltgraph/boltgraph/types"
	"github.com/stretchr/testify/require"
)

func TestBuildGetRoundTrip(t *testing.T) {
	entries := []Entry{
		{KeyID: 3, Value: types.NewString("Alice")},
		{KeyID: 1, Value: types.NewInt(30)},
		{KeyID: 2, Value: types.Null()},
		{KeyID: 5, Value: types.NewListInt([]int64{1, 2, 3})},
	}
	blob := Build(entries)
	m := Open(blob)
	require.Equal(t, 4, m.Len())

	v, ok := m.Get(3)
	require.True(t, ok)
	require.Equal(t, "Alice", v.Str)

	v, ok = m.Get(1)
	require.True(t, ok)
	require.Equal(t, int64(30), v.Int)

	v, ok = m.Get(2)
	require.True(t, ok)
	require.True(t, v.IsNull())

	v, ok = m.Get(5)
	require.True(t, ok)
	require.Equal(t, []int64{1, 2, 3}, v.ListInt)

	_, ok = m.Get(99)
	require.False(t, ok)
}

func TestIterIsSortedByKeyID(t *testing.T) {
	entries := []Entry{
		{KeyID: 9, Value: types.NewInt(9)},
		{KeyID: 1, Value: types.NewInt(1)},
		{KeyID: 4, Value: types.NewInt(4)},
	}
	blob := Build(entries)
	m := Open(blob)

	var seen []types.PropertyKeyId
	require.NoError(t, m.Iter(func(k types.PropertyKeyId, v types.Value) bool {
		seen = append(seen, k)
		return true
	}))
	require.Equal(t, []types.PropertyKeyId{1, 4, 9}, seen)
}

func TestDuplicateKeyLastWriteWins(t *testing.T) {
	entries := []Entry{
		{KeyID: 1, Value: types.NewInt(1)},
		{KeyID: 1, Value: types.NewInt(2)},
	}
	blob := Build(entries)
	m := Open(blob)
	require.Equal(t, 1, m.Len())
	v, ok := m.Get(1)
	require.True(t, ok)
	require.Equal(t, int64(2), v.Int)
}

func TestZonedDateTimeRoundTripKeepsZoneAndInstant(t *testing.T) {
	at := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
	entries := []Entry{
		{KeyID: 1, Value: types.Value{Tag: types.TagZonedDateTime, Time: at, Zone: "America/New_York"}},
		{KeyID: 2, Value: types.NewString("plain")},
	}
	blob := Build(entries)
	m := Open(blob)

	v, ok := m.Get(1)
	require.True(t, ok)
	require.Equal(t, types.TagZonedDateTime, v.Tag)
	require.True(t, at.Equal(v.Time))
	require.Equal(t, "America/New_York", v.Zone)

	v, ok = m.Get(2)
	require.True(t, ok)
	require.Equal(t, "plain", v.Str)
}

func TestScalarCodecDistinguishesIntFromString(t *testing.T) {
	a, err := EncodeScalar(types.NewInt(5))
	require.NoError(t, err)
	b, err := EncodeScalar(types.NewString("x"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
