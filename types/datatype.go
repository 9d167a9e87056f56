package types

// DataType is the logical type that drives planning and type-checking
// (spec §4.6). PhysicalType (see colarray) drives builder construction;
// several logical types share one physical representation.
type DataType uint8

const (
	DTAny DataType = iota
	DTNull
	DTBool
	DTInt
	DTFloat
	DTString
	DTListBool
	DTListInt
	DTListFloat
	DTListString
	DTDate
	DTLocalTime
	DTLocalDateTime
	DTZonedDateTime
	DTDuration
	DTNode        // materialized node: id + labels + properties
	DTRel         // materialized relationship: id + type + endpoints + properties
	DTVirtualNode // id only
	DTVirtualRel  // id only
	DTPath        // list of materialized nodes/rels
	DTVirtualPath // list of virtual nodes/rels
	DTStruct      // ordered named fields, schema carried out of band
	DTPropertyMap // opaque packed-property-map column
)

func (t DataType) String() string {
	names := map[DataType]string{
		DTAny: "ANY", DTNull: "NULL", DTBool: "BOOL", DTInt: "INT", DTFloat: "FLOAT",
		DTString: "STRING", DTListBool: "LIST<BOOL>", DTListInt: "LIST<INT>",
		DTListFloat: "LIST<FLOAT>", DTListString: "LIST<STRING>", DTDate: "DATE",
		DTLocalTime: "LOCAL_TIME", DTLocalDateTime: "LOCAL_DATETIME",
		DTZonedDateTime: "ZONED_DATETIME", DTDuration: "DURATION", DTNode: "NODE",
		DTRel: "REL", DTVirtualNode: "VNODE", DTVirtualRel: "VREL", DTPath: "PATH",
		DTVirtualPath: "VPATH", DTStruct: "STRUCT", DTPropertyMap: "PROPMAP",
	}
	if s, ok := names[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// IsList reports whether t is one of the homogeneous primitive list types.
func (t DataType) IsList() bool {
	switch t {
	case DTListBool, DTListInt, DTListFloat, DTListString:
		return true
	default:
		return false
	}
}

// IsNumeric reports whether arithmetic is directly defined over t.
func (t DataType) IsNumeric() bool {
	return t == DTInt || t == DTFloat
}

// Field is one column of a schema or struct: an arena-interned variable
// name paired with its logical type (spec §3 "Schemas").
type Field struct {
	Name string
	Type DataType
}

// Schema is an ordered sequence of (variable_name, DataType) pairs
// flowing between operators (spec §3).
type Schema struct {
	Fields []Field
}

func NewSchema(fields ...Field) *Schema {
	return &Schema{Fields: fields}
}

func (s *Schema) Len() int { return len(s.Fields) }

// Names returns every field name, in schema order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

func (s *Schema) IndexOf(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (s *Schema) Append(name string, t DataType) *Schema {
	out := &Schema{Fields: make([]Field, 0, len(s.Fields)+1)}
	out.Fields = append(out.Fields, s.Fields...)
	out.Fields = append(out.Fields, Field{Name: name, Type: t})
	return out
}

// Concat builds the union schema used by Apply: left columns followed by
// right columns (spec §4.10 Apply/Argument).
func Concat(left, right *Schema) *Schema {
	out := &Schema{Fields: make([]Field, 0, len(left.Fields)+len(right.Fields))}
	out.Fields = append(out.Fields, left.Fields...)
	out.Fields = append(out.Fields, right.Fields...)
	return out
}
