// Package colarray implements the typed columnar arrays and data chunk
// from spec §3/§4.6: primitive/string/list/struct/property-map/virtual
// and materialized node & rel arrays, each carrying a validity mask, plus
// the array-of-arrays DataChunk with a row-visibility bitmap.
package colarray

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Mask is a packed bit vector with all_set/all_unset fast paths (spec
// §4.6), backed by RoaringBitmap/roaring — the teacher's dependency,
// reused directly instead of a hand-rolled bitset (see SPEC_FULL.md
// Domain Stack).
type Mask struct {
	bits    *roaring.Bitmap
	n       int
	allSet  bool
	allZero bool
}

// NewMaskAllValid returns a mask of length n with every bit set.
func NewMaskAllValid(n int) *Mask {
	return &Mask{n: n, allSet: true}
}

// NewMaskAllInvalid returns a mask of length n with every bit clear.
func NewMaskAllInvalid(n int) *Mask {
	return &Mask{n: n, allZero: true}
}

// NewMaskFromBools builds a mask from an explicit validity slice.
func NewMaskFromBools(valid []bool) *Mask {
	m := &Mask{n: len(valid), bits: roaring.New()}
	allSet, allZero := true, true
	for i, v := range valid {
		if v {
			m.bits.Add(uint32(i))
			allZero = false
		} else {
			allSet = false
		}
	}
	if allSet {
		return NewMaskAllValid(len(valid))
	}
	if allZero {
		return NewMaskAllInvalid(len(valid))
	}
	return m
}

func (m *Mask) Len() int { return m.n }

func (m *Mask) Get(i int) bool {
	if m.allSet {
		return true
	}
	if m.allZero {
		return false
	}
	return m.bits.Contains(uint32(i))
}

// And intersects two masks of equal length (used to AND visibility
// across columns cheaply, spec §4.6).
func (m *Mask) And(other *Mask) *Mask {
	if m.allSet {
		return other
	}
	if other.allSet {
		return m
	}
	if m.allZero || other.allZero {
		return NewMaskAllInvalid(m.n)
	}
	out := roaring.And(m.bits, other.bits)
	return &Mask{n: m.n, bits: out}
}

// Count returns the number of set bits.
func (m *Mask) Count() int {
	if m.allSet {
		return m.n
	}
	if m.allZero {
		return 0
	}
	return int(m.bits.GetCardinality())
}

// AllSet reports whether every row is visible/valid.
func (m *Mask) AllSet() bool {
	if m.allSet {
		return true
	}
	if m.allZero {
		return m.n == 0
	}
	return int(m.bits.GetCardinality()) == m.n
}

// Indices returns the sorted list of set bit positions.
func (m *Mask) Indices() []int {
	if m.allZero {
		return nil
	}
	if m.allSet {
		out := make([]int, m.n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	it := m.bits.Iterator()
	out := make([]int, 0, m.bits.GetCardinality())
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// MaskBuilder accumulates validity bits one row at a time, mirroring the
// push(Option<...>) builder contract of spec §4.6.
type MaskBuilder struct {
	bits []bool
}

func (b *MaskBuilder) Push(valid bool) { b.bits = append(b.bits, valid) }

func (b *MaskBuilder) PushN(valid bool, n int) {
	for i := 0; i < n; i++ {
		b.bits = append(b.bits, valid)
	}
}

func (b *MaskBuilder) Finish() *Mask { return NewMaskFromBools(b.bits) }

func (b *MaskBuilder) Len() int { return len(b.bits) }
