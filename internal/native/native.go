package native

import "time"

// Driver creates store handles from connection properties.
type Driver interface {
	GetStore(props []Property) (Store, error)
	Close() error
}

// Store is a connection to one database of a cluster.
type Store interface {
	PutContainer(name string, info *ContainerInfo, modifiable bool) (Container, error)
	// GetContainer reports found=false when no container has that name.
	GetContainer(name string) (c Container, found bool, err error)
	GetContainerInfo(name string) (info *ContainerInfo, found bool, err error)
	DropContainer(name string) error

	PutMultipleContainerRows(entries []ContainerRows) error
	GetMultipleContainerRows(entries []PredicateEntry) ([]ContainerRows, error)

	CreateRowKeyPredicate(keyType Type) (RowKeyPredicate, error)
	FetchAll(queries []Query) error
	PartitionController() (PartitionController, error)

	Close() error
}

type ContainerRows struct {
	Name string
	Rows []Row
}

type PredicateEntry struct {
	Name      string
	Predicate RowKeyPredicate
}

// Container keys are typed by the key column: string, int32, int64 or
// time.Time.
type Container interface {
	CreateRow() (Row, error)

	PutRow(row Row) (existed bool, err error)
	GetRow(key any, row Row, forUpdate bool) (found bool, err error)
	DeleteRow(key any) (found bool, err error)
	PutMultipleRows(rows []Row) error

	CreateIndex(columnName string, flags IndexTypeFlags) error
	CreateIndexDetail(info IndexInfo) error
	DropIndex(columnName string, flags IndexTypeFlags) error
	DropIndexDetail(info IndexInfo) error

	Flush() error
	Abort() error
	Commit() error
	SetAutoCommit(enabled bool) error

	Query(tql string) (Query, error)
	QueryByTimeSeriesRange(start, end time.Time) (Query, error)

	// Close releases the handle. With allRelated set, queries and row sets
	// created from it are closed too.
	Close(allRelated bool) error
}

// Row is a field buffer shaped by the schema of the container that made
// it. Column indexes are zero based.
type Row interface {
	ColumnCount() int

	SetString(col int, v string) error
	SetBool(col int, v bool) error
	SetByte(col int, v int8) error
	SetShort(col int, v int16) error
	SetInteger(col int, v int32) error
	SetLong(col int, v int64) error
	SetFloat(col int, v float32) error
	SetDouble(col int, v float64) error
	SetTimestamp(col int, v time.Time) error
	SetGeometry(col int, v string) error
	// SetBlob keeps v; callers must not modify it afterwards.
	SetBlob(col int, v []byte) error
	SetNull(col int) error

	GetString(col int) (string, error)
	GetBool(col int) (bool, error)
	GetByte(col int) (int8, error)
	GetShort(col int) (int16, error)
	GetInteger(col int) (int32, error)
	GetLong(col int) (int64, error)
	GetFloat(col int) (float32, error)
	GetDouble(col int) (float64, error)
	GetTimestamp(col int) (time.Time, error)
	GetGeometry(col int) (string, error)
	// GetBlob returns row-owned memory, valid until the next write or Close.
	GetBlob(col int) ([]byte, error)
	IsNull(col int) (bool, error)

	Close() error
}

type Query interface {
	SetFetchLimit(limit int) error
	SetFetchPartial(partial bool) error
	Fetch(forUpdate bool) (RowSet, error)
	// RowSet returns the result of the last FetchAll, if any.
	RowSet() (RowSet, error)
	Close() error
}

type RowSet interface {
	Type() RowSetType
	Size() int
	HasNext() bool
	NextRow(row Row) error
	NextAggregation() (AggregationResult, error)
	NextQueryAnalysis() (*QueryAnalysisEntry, error)
	Close() error
}

type AggregationResult interface {
	Double() (float64, bool)
	Long() (int64, bool)
	Timestamp() (time.Time, bool)
	Close() error
}

// RowKeyPredicate values follow the key typing of Container.
type RowKeyPredicate interface {
	KeyType() (Type, error)
	SetStartKey(v any) error
	SetFinishKey(v any) error
	StartKey() (any, error)
	FinishKey() (any, error)
	AddDistinctKey(v any) error
	DistinctKeys() ([]any, error)
	Close() error
}

type PartitionController interface {
	PartitionCount() (int32, error)
	ContainerCount(partition int32) (int64, error)
	// ContainerNames treats a negative limit as unbounded.
	ContainerNames(partition int32, start, limit int64) ([]string, error)
	PartitionIndexOfContainer(name string) (int32, error)
	Close() error
}
