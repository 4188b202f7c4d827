// Package native describes the client surface of the store: handles,
// typed row accessors, enumerations and the error stack. Implementations
// live in sub-packages (see embedded).
package native

import "strings"

// Type is a column type code.
type Type int8

const (
	TypeNull      Type = -1
	TypeString    Type = 0
	TypeBool      Type = 1
	TypeByte      Type = 2
	TypeShort     Type = 3
	TypeInteger   Type = 4
	TypeLong      Type = 5
	TypeFloat     Type = 6
	TypeDouble    Type = 7
	TypeTimestamp Type = 8
	TypeGeometry  Type = 9
	TypeBlob      Type = 10
)

var typeNames = map[Type]string{
	TypeNull:      "NULL",
	TypeString:    "STRING",
	TypeBool:      "BOOL",
	TypeByte:      "BYTE",
	TypeShort:     "SHORT",
	TypeInteger:   "INTEGER",
	TypeLong:      "LONG",
	TypeFloat:     "FLOAT",
	TypeDouble:    "DOUBLE",
	TypeTimestamp: "TIMESTAMP",
	TypeGeometry:  "GEOMETRY",
	TypeBlob:      "BLOB",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// Valid reports whether t is a storable column type.
func (t Type) Valid() bool {
	return t >= TypeString && t <= TypeBlob
}

// ParseType maps an upper-case type name to its code.
func ParseType(s string) (Type, bool) {
	for t, name := range typeNames {
		if name == s && t != TypeNull {
			return t, true
		}
	}
	return 0, false
}

// KeyType reports whether t may be used as a row key.
func (t Type) KeyType() bool {
	switch t {
	case TypeString, TypeInteger, TypeLong, TypeTimestamp:
		return true
	}
	return false
}

type ContainerType int8

const (
	ContainerCollection ContainerType = 0
	ContainerTimeSeries ContainerType = 1
)

func (t ContainerType) String() string {
	switch t {
	case ContainerCollection:
		return "COLLECTION"
	case ContainerTimeSeries:
		return "TIME_SERIES"
	}
	return "UNKNOWN"
}

type RowSetType int8

const (
	RowSetContainerRows     RowSetType = 0
	RowSetAggregationResult RowSetType = 1
	RowSetQueryAnalysis     RowSetType = 2
)

func (t RowSetType) String() string {
	switch t {
	case RowSetContainerRows:
		return "CONTAINER_ROWS"
	case RowSetAggregationResult:
		return "AGGREGATION_RESULT"
	case RowSetQueryAnalysis:
		return "QUERY_ANALYSIS"
	}
	return "UNKNOWN"
}

type TimeUnit int8

const (
	TimeUnitYear        TimeUnit = 0
	TimeUnitMonth       TimeUnit = 1
	TimeUnitDay         TimeUnit = 2
	TimeUnitHour        TimeUnit = 3
	TimeUnitMinute      TimeUnit = 4
	TimeUnitSecond      TimeUnit = 5
	TimeUnitMillisecond TimeUnit = 6
)

var timeUnitNames = [...]string{"YEAR", "MONTH", "DAY", "HOUR", "MINUTE", "SECOND", "MILLISECOND"}

func (u TimeUnit) String() string {
	if u.Valid() {
		return timeUnitNames[u]
	}
	return "UNKNOWN"
}

func (u TimeUnit) Valid() bool {
	return u >= TimeUnitYear && u <= TimeUnitMillisecond
}

// IndexTypeFlags is a bit set of index kinds.
type IndexTypeFlags int32

const (
	IndexDefault IndexTypeFlags = -1
	IndexTree    IndexTypeFlags = 1
	IndexHash    IndexTypeFlags = 2
	IndexSpatial IndexTypeFlags = 4
)

func (f IndexTypeFlags) String() string {
	if f == IndexDefault {
		return "DEFAULT"
	}
	var names []string
	for _, k := range []struct {
		flag IndexTypeFlags
		name string
	}{{IndexTree, "TREE"}, {IndexHash, "HASH"}, {IndexSpatial, "SPATIAL"}} {
		if f&k.flag != 0 {
			names = append(names, k.name)
		}
	}
	return strings.Join(names, "|")
}

// TypeOption is a bit set of column options.
type TypeOption int32

const (
	OptionNullable TypeOption = 2
	OptionNotNull  TypeOption = 4
)

type ColumnInfo struct {
	Name           string
	Type           Type
	IndexTypeFlags IndexTypeFlags
	Options        TypeOption
}

type TimeSeriesProperties struct {
	RowExpirationTime       int32
	RowExpirationTimeUnit   TimeUnit
	ExpirationDivisionCount int32
}

type ContainerInfo struct {
	Name                 string
	Type                 ContainerType
	Columns              []ColumnInfo
	RowKeyAssigned       bool
	ColumnOrderIgnorable bool
	TimeSeriesProperties *TimeSeriesProperties
	DataAffinity         string
}

// IndexInfo names an index. An empty Name addresses the unnamed index of
// the column.
type IndexInfo struct {
	Name       string
	Type       IndexTypeFlags
	Column     int
	ColumnName string
}

// QueryAnalysisEntry is one line of a query plan.
type QueryAnalysisEntry struct {
	ID        int32
	Depth     int32
	Type      string
	ValueType string
	Value     string
	Statement string
}

// Property is a single connection property.
type Property struct {
	Name  string
	Value string
}
