package types

import (
	"fmt"
	"math"
	"time"
)

// ValueTag discriminates the tagged-union property value domain (spec §3).
// Numeric values are stable: they are reused verbatim as the packed
// property map's on-disk type tag (spec §4.1), so do not renumber them.
type ValueTag uint8

const (
	TagNull ValueTag = iota
	TagBool
	TagInt
	TagFloat
	TagString
	TagListBool
	TagListInt
	TagListFloat
	TagListString
	TagDate
	TagLocalTime
	TagLocalDateTime
	TagZonedDateTime
	TagDuration
)

// Duration is a calendar-aware interval: months/days are kept distinct
// from the sub-day component because adding a Duration to a date must
// follow calendar rules (spec §4.7), not a fixed nanosecond offset.
type Duration struct {
	Months int64
	Days   int64
	Nanos  int64
}

// Value is an owned scalar from the property value domain. Node,
// relationship and path are deliberately absent: the spec forbids storing
// them as property values (spec §3).
type Value struct {
	Tag ValueTag

	Bool bool
	Int  int64
	// Float holds the plain float64 as given; TotalOrderFloatKey maps it to
	// a uint64 whose natural order is a total order over floats.
	Float float64

	Str string

	ListBool   []bool
	ListInt    []int64
	ListFloat  []float64
	ListString []string

	// Time holds the value of every temporal tag (TagDate, TagLocalTime,
	// TagLocalDateTime, TagZonedDateTime) as a full time.Time; the
	// days-since-epoch and nanos-since-midnight integer forms exist only
	// in the encoded property-map and column payloads.
	Time time.Time
	Zone string // IANA zone name, only meaningful for TagZonedDateTime

	Dur Duration
}

func Null() Value { return Value{Tag: TagNull} }

func NewBool(b bool) Value { return Value{Tag: TagBool, Bool: b} }

func NewInt(i int64) Value { return Value{Tag: TagInt, Int: i} }

func NewFloat(f float64) Value { return Value{Tag: TagFloat, Float: f} }

func NewString(s string) Value { return Value{Tag: TagString, Str: s} }

func NewListBool(v []bool) Value { return Value{Tag: TagListBool, ListBool: v} }

func NewListInt(v []int64) Value { return Value{Tag: TagListInt, ListInt: v} }

func NewListFloat(v []float64) Value { return Value{Tag: TagListFloat, ListFloat: v} }

func NewListString(v []string) Value { return Value{Tag: TagListString, ListString: v} }

func (v Value) IsNull() bool { return v.Tag == TagNull }

func (v Value) String() string {
	switch v.Tag {
	case TagNull:
		return "null"
	case TagBool:
		return fmt.Sprintf("%t", v.Bool)
	case TagInt:
		return fmt.Sprintf("%d", v.Int)
	case TagFloat:
		return fmt.Sprintf("%v", v.Float)
	case TagString:
		return v.Str
	case TagListBool:
		return fmt.Sprintf("%v", v.ListBool)
	case TagListInt:
		return fmt.Sprintf("%v", v.ListInt)
	case TagListFloat:
		return fmt.Sprintf("%v", v.ListFloat)
	case TagListString:
		return fmt.Sprintf("%v", v.ListString)
	case TagDuration:
		return fmt.Sprintf("P%dM%dDT%dNS", v.Dur.Months, v.Dur.Days, v.Dur.Nanos)
	default:
		return v.Time.String()
	}
}

// TotalOrderFloatKey maps a float64 to a uint64 such that the natural
// unsigned order of the keys matches IEEE-754 total ordering (NaNs sort
// above +Inf, -0 sorts just below +0). Used wherever floats need a total
// order: property map iteration stability, sort keys and unique-index
// bytes (spec §3).
func TotalOrderFloatKey(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}
