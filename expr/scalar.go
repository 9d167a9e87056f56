package expr

import (
	"time"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/types"
)

// encodeTemporalAsInt mirrors propmap.encodeValue's inline payload scheme
// so colarray's PInt physical column can carry any temporal logical type
// (colarray.Array doc: "also backs Date/LocalTime/... via DataType at the
// column's logical-type companion").
func encodeTemporalAsInt(v types.Value) int64 {
	switch v.Tag {
	case types.TagDate:
		return v.Time.Unix() / 86400
	case types.TagLocalTime:
		return v.Time.UnixNano() % int64(24*time.Hour)
	case types.TagLocalDateTime, types.TagZonedDateTime:
		return v.Time.UnixNano()
	default:
		return 0
	}
}

func decodeTemporalValue(dt types.DataType, raw int64) types.Value {
	switch dt {
	case types.DTDate:
		return types.Value{Tag: types.TagDate, Time: time.Unix(raw*86400, 0).UTC()}
	case types.DTLocalTime:
		return types.Value{Tag: types.TagLocalTime, Time: time.Unix(0, raw).UTC()}
	case types.DTLocalDateTime:
		return types.Value{Tag: types.TagLocalDateTime, Time: time.Unix(0, raw).UTC()}
	case types.DTZonedDateTime:
		return types.Value{Tag: types.TagZonedDateTime, Time: time.Unix(0, raw).UTC()}
	default:
		return types.Null()
	}
}

func isTemporal(dt types.DataType) bool {
	switch dt {
	case types.DTDate, types.DTLocalTime, types.DTLocalDateTime, types.DTZonedDateTime:
		return true
	default:
		return false
	}
}

// valueAt reads row i of arr as a types.Value, using dt to disambiguate
// PInt columns that carry a temporal logical type.
func valueAt(dt types.DataType, arr *colarray.Array, row int) types.Value {
	if !arr.IsValid(row) {
		return types.Null()
	}
	switch arr.Phys {
	case colarray.PBool:
		return types.NewBool(arr.Bools[row])
	case colarray.PInt:
		if isTemporal(dt) {
			return decodeTemporalValue(dt, arr.Ints[row])
		}
		return types.NewInt(arr.Ints[row])
	case colarray.PFloat:
		return types.NewFloat(arr.Floats[row])
	case colarray.PString:
		return types.NewString(arr.StringAt(row))
	case colarray.PList:
		return listValueAt(dt, arr, row)
	default:
		return types.Null()
	}
}

func listValueAt(dt types.DataType, arr *colarray.Array, row int) types.Value {
	s, e := arr.ListBounds(row)
	child := arr.Child
	switch dt {
	case types.DTListBool:
		out := make([]bool, 0, e-s)
		for i := s; i < e; i++ {
			out = append(out, child.Bools[i])
		}
		return types.NewListBool(out)
	case types.DTListInt:
		out := make([]int64, 0, e-s)
		for i := s; i < e; i++ {
			out = append(out, child.Ints[i])
		}
		return types.NewListInt(out)
	case types.DTListFloat:
		out := make([]float64, 0, e-s)
		for i := s; i < e; i++ {
			out = append(out, child.Floats[i])
		}
		return types.NewListFloat(out)
	case types.DTListString:
		out := make([]string, 0, e-s)
		for i := s; i < e; i++ {
			out = append(out, child.StringAt(i))
		}
		return types.NewListString(out)
	default:
		return types.Null()
	}
}

// buildArray assembles an output column of logical type dt from n scalar
// Values, one per row (null entries carry the zero Value). dt == DTAny
// arises from an untyped property read (property maps carry no static
// per-key type, spec §3): the physical representation is then taken from
// the first non-null value instead, since every value in a real result
// column still shares one physical lane in practice.
func buildArray(dt types.DataType, vals []types.Value) *colarray.Array {
	if dt == types.DTAny {
		dt = firstNonNullType(vals)
	}
	switch dt {
	case types.DTBool:
		b := colarray.BoolBuilder{}
		for _, v := range vals {
			if v.IsNull() {
				b.Push(nil)
			} else {
				x := v.Bool
				b.Push(&x)
			}
		}
		return b.Finish()
	case types.DTString:
		b := colarray.NewStringBuilder()
		for _, v := range vals {
			if v.IsNull() {
				b.Push(nil)
			} else {
				x := v.Str
				b.Push(&x)
			}
		}
		return b.Finish()
	case types.DTFloat:
		b := colarray.FloatBuilder{}
		for _, v := range vals {
			if v.IsNull() {
				b.Push(nil)
			} else {
				x := v.Float
				b.Push(&x)
			}
		}
		return b.Finish()
	case types.DTListBool, types.DTListInt, types.DTListFloat, types.DTListString:
		return buildListArray(dt, vals)
	default:
		// DTInt and every temporal type share the PInt physical lane.
		b := colarray.IntBuilder{}
		for _, v := range vals {
			if v.IsNull() {
				b.Push(nil)
				continue
			}
			var x int64
			if isTemporal(dt) {
				x = encodeTemporalAsInt(v)
			} else {
				x = v.Int
			}
			b.Push(&x)
		}
		return b.Finish()
	}
}

func firstNonNullType(vals []types.Value) types.DataType {
	for _, v := range vals {
		if !v.IsNull() {
			return dataTypeOf(v)
		}
	}
	return types.DTString
}

func buildListArray(dt types.DataType, vals []types.Value) *colarray.Array {
	lb := colarray.NewListBuilder()
	switch dt {
	case types.DTListBool:
		child := colarray.BoolBuilder{}
		for _, v := range vals {
			if v.IsNull() {
				lb.PushNull()
				continue
			}
			for _, e := range v.ListBool {
				x := e
				child.Push(&x)
			}
			lb.PushLen(len(v.ListBool))
		}
		return lb.Finish(child.Finish())
	case types.DTListInt:
		child := colarray.IntBuilder{}
		for _, v := range vals {
			if v.IsNull() {
				lb.PushNull()
				continue
			}
			for _, e := range v.ListInt {
				x := e
				child.Push(&x)
			}
			lb.PushLen(len(v.ListInt))
		}
		return lb.Finish(child.Finish())
	case types.DTListFloat:
		child := colarray.FloatBuilder{}
		for _, v := range vals {
			if v.IsNull() {
				lb.PushNull()
				continue
			}
			for _, e := range v.ListFloat {
				x := e
				child.Push(&x)
			}
			lb.PushLen(len(v.ListFloat))
		}
		return lb.Finish(child.Finish())
	default: // DTListString
		child := colarray.NewStringBuilder()
		for _, v := range vals {
			if v.IsNull() {
				lb.PushNull()
				continue
			}
			for _, e := range v.ListString {
				x := e
				child.Push(&x)
			}
			lb.PushLen(len(v.ListString))
		}
		return lb.Finish(child.Finish())
	}
}
