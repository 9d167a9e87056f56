package colarray

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boltgraph/boltgraph/types"
)

func TestIntBuilderRoundTrip(t *testing.T) {
	var b IntBuilder
	vals := []int64{1, 2, 3}
	for i := range vals {
		b.Push(&vals[i])
	}
	b.Push(nil)
	arr := b.Finish()
	require.Equal(t, 4, arr.Len())
	require.True(t, arr.IsValid(0))
	require.Equal(t, int64(2), arr.Ints[1])
	require.False(t, arr.IsValid(3))
}

func TestStringBuilderRoundTrip(t *testing.T) {
	sb := NewStringBuilder()
	a, b := "hello", "world"
	sb.Push(&a)
	sb.Push(nil)
	sb.Push(&b)
	arr := sb.Finish()
	require.Equal(t, 3, arr.Len())
	require.Equal(t, "hello", arr.StringAt(0))
	require.False(t, arr.IsValid(1))
	require.Equal(t, "world", arr.StringAt(2))
}

func TestMaskAndCount(t *testing.T) {
	m1 := NewMaskFromBools([]bool{true, true, false})
	m2 := NewMaskFromBools([]bool{true, false, false})
	and := m1.And(m2)
	require.Equal(t, 1, and.Count())
}

func TestDataChunkCompactRemovesInvisibleRows(t *testing.T) {
	var b IntBuilder
	vals := []int64{10, 20, 30}
	for i := range vals {
		b.Push(&vals[i])
	}
	arr := b.Finish()
	schema := types.NewSchema(types.Field{Name: "x", Type: types.DTInt})
	chunk := NewDataChunk(schema, []*Array{arr})
	chunk.Visibility = NewMaskFromBools([]bool{true, false, true})
	require.Equal(t, 3, chunk.Len())
	require.Equal(t, 2, chunk.VisibleLen())

	compact := chunk.Compact()
	require.True(t, compact.Visibility.AllSet())
	require.Equal(t, 2, compact.Len())
	require.Equal(t, int64(10), compact.Columns[0].Ints[0])
	require.Equal(t, int64(30), compact.Columns[0].Ints[1])
}

func TestTakeGathersAndRepeatsRows(t *testing.T) {
	var b IntBuilder
	vals := []int64{10, 20, 30}
	for i := range vals {
		b.Push(&vals[i])
	}
	arr := b.Finish()

	out := Take(arr, []int{2, 0, 0})
	require.Equal(t, 3, out.Len())
	require.Equal(t, int64(30), out.Ints[0])
	require.Equal(t, int64(10), out.Ints[1])
	require.Equal(t, int64(10), out.Ints[2])
}

func TestTakeKeepsInvalidSourceRowAsNull(t *testing.T) {
	sb := NewStringBuilder()
	a, c := "a", "c"
	sb.Push(&a)
	sb.Push(nil)
	sb.Push(&c)
	arr := sb.Finish()

	out := Take(arr, []int{1, 2})
	require.False(t, out.IsValid(0))
	require.Equal(t, "c", out.StringAt(1))
}

func TestConcatArraysStacksInOrder(t *testing.T) {
	var b1, b2 IntBuilder
	v1 := []int64{1, 2}
	for i := range v1 {
		b1.Push(&v1[i])
	}
	v2 := []int64{3}
	for i := range v2 {
		b2.Push(&v2[i])
	}
	out := ConcatArrays([]*Array{b1.Finish(), b2.Finish()})
	require.Equal(t, 3, out.Len())
	require.Equal(t, []int64{1, 2, 3}, out.Ints[:3])
}

func TestConcatArraysSingleElementReturnsSameArray(t *testing.T) {
	var b IntBuilder
	v := int64(7)
	b.Push(&v)
	arr := b.Finish()
	require.Same(t, arr, ConcatArrays([]*Array{arr}))
}

func TestDataChunkIterSkipsInvisible(t *testing.T) {
	var b IntBuilder
	vals := []int64{1, 2, 3}
	for i := range vals {
		b.Push(&vals[i])
	}
	arr := b.Finish()
	chunk := NewDataChunk(types.NewSchema(types.Field{Name: "x", Type: types.DTInt}), []*Array{arr})
	chunk.Visibility = NewMaskFromBools([]bool{false, true, true})

	var seen []int64
	chunk.Iter(func(row []ScalarRef) bool {
		seen = append(seen, row[0].Value.Int)
		return true
	})
	require.Equal(t, []int64{2, 3}, seen)
}
