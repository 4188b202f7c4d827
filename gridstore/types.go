package gridstore

import "github.com/tuannm99/novagrid/internal/native"

type (
	Type           = native.Type
	ContainerType  = native.ContainerType
	RowSetType     = native.RowSetType
	TimeUnit       = native.TimeUnit
	IndexTypeFlags = native.IndexTypeFlags
	TypeOption     = native.TypeOption
)

const (
	TypeNull      = native.TypeNull
	TypeString    = native.TypeString
	TypeBool      = native.TypeBool
	TypeByte      = native.TypeByte
	TypeShort     = native.TypeShort
	TypeInteger   = native.TypeInteger
	TypeLong      = native.TypeLong
	TypeFloat     = native.TypeFloat
	TypeDouble    = native.TypeDouble
	TypeTimestamp = native.TypeTimestamp
	TypeGeometry  = native.TypeGeometry
	TypeBlob      = native.TypeBlob
)

const (
	Collection = native.ContainerCollection
	TimeSeries = native.ContainerTimeSeries
)

const (
	RowSetContainerRows     = native.RowSetContainerRows
	RowSetAggregationResult = native.RowSetAggregationResult
	RowSetQueryAnalysis     = native.RowSetQueryAnalysis
)

const (
	TimeUnitYear        = native.TimeUnitYear
	TimeUnitMonth       = native.TimeUnitMonth
	TimeUnitDay         = native.TimeUnitDay
	TimeUnitHour        = native.TimeUnitHour
	TimeUnitMinute      = native.TimeUnitMinute
	TimeUnitSecond      = native.TimeUnitSecond
	TimeUnitMillisecond = native.TimeUnitMillisecond
)

const (
	IndexDefault = native.IndexDefault
	IndexTree    = native.IndexTree
	IndexHash    = native.IndexHash
	IndexSpatial = native.IndexSpatial
)

const (
	OptionNullable = native.OptionNullable
	OptionNotNull  = native.OptionNotNull
)

const (
	// MaxLong and MinLong bound LONG values accepted from numbers.
	MaxLong int64 = 1 << 53
	MinLong int64 = -(1 << 53)

	// MaxTimestampMillis is 9999-12-31T23:59:59.999Z.
	MaxTimestampMillis = native.MaxTimestampMillis
)
