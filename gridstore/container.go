package gridstore

import (
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tuannm99/novagrid/internal/native"
)

// IndexInfo names an index by column, type and optional name.
type IndexInfo struct {
	ColumnName string
	Type       IndexTypeFlags
	Name       string
}

// Container is an open handle on one collection or time series.
// Operations that use the row buffer fail with ErrState when another
// operation on the same container holds it.
type Container struct {
	s     *Session
	st    *Store
	nc    native.Container
	info  *ContainerInfo
	types []Type
	buf   *rowBuffer

	mu      sync.Mutex
	queries []*Query
	closed  atomic.Bool
}

func (c *Container) usable() error {
	if c.closed.Load() {
		return stateError("container %q is closed", c.info.Name())
	}
	return nil
}

func (c *Container) Name() string { return c.info.Name() }

func (c *Container) Type() ContainerType { return c.info.Type() }

// Info returns a copy of the schema the container was opened with.
func (c *Container) Info() *ContainerInfo { return c.info.Clone() }

// Put writes one row, replacing any row with the same key.
func (c *Container) Put(fields []any) error {
	if err := c.usable(); err != nil {
		return err
	}
	if len(fields) != len(c.types) {
		return argumentError("row has %d fields, container %q has %d columns", len(fields), c.info.Name(), len(c.types))
	}

	row, err := c.buf.borrow()
	if err != nil {
		return err
	}
	defer c.buf.release()

	if err := EncodeRow(fields, row, c.types); err != nil {
		return err
	}
	_, err = c.nc.PutRow(row)
	return nativeError("container", err)
}

// Get looks up a row by key. found is false when no row matches.
func (c *Container) Get(key any) ([]any, bool, error) {
	if err := c.usable(); err != nil {
		return nil, false, err
	}
	k, err := c.nativeKey(key)
	if err != nil {
		return nil, false, err
	}

	row, err := c.buf.borrow()
	if err != nil {
		return nil, false, err
	}
	defer c.buf.release()

	found, err := c.nc.GetRow(k, row, false)
	if err != nil {
		return nil, false, nativeError("container", err)
	}
	if !found {
		return nil, false, nil
	}
	vals, err := DecodeRow(row, c.types)
	if err != nil {
		return nil, false, err
	}
	return vals, true, nil
}

// GetForUpdate is Get with a row lock; auto commit must be off.
func (c *Container) GetForUpdate(key any) ([]any, bool, error) {
	if err := c.usable(); err != nil {
		return nil, false, err
	}
	k, err := c.nativeKey(key)
	if err != nil {
		return nil, false, err
	}

	row, err := c.buf.borrow()
	if err != nil {
		return nil, false, err
	}
	defer c.buf.release()

	found, err := c.nc.GetRow(k, row, true)
	if err != nil || !found {
		return nil, false, nativeError("container", err)
	}
	vals, err := DecodeRow(row, c.types)
	if err != nil {
		return nil, false, err
	}
	return vals, true, nil
}

// Remove deletes the row with key. A missing row is ErrNotFound.
func (c *Container) Remove(key any) error {
	if err := c.usable(); err != nil {
		return err
	}
	k, err := c.nativeKey(key)
	if err != nil {
		return err
	}
	found, err := c.nc.DeleteRow(k)
	if err != nil {
		return nativeError("container", err)
	}
	if !found {
		return kindError(ErrNotFound, "row %v does not exist in %q", key, c.info.Name())
	}
	return nil
}

// MultiPut writes rows in one call. An empty batch is a no-op. No row is
// written unless every row encodes.
func (c *Container) MultiPut(rows [][]any) error {
	if err := c.usable(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if err := c.s.checkBatch(len(rows)); err != nil {
		return err
	}
	for i, fields := range rows {
		if len(fields) != len(c.types) {
			return argumentError("row %d has %d fields, container %q has %d columns", i, len(fields), c.info.Name(), len(c.types))
		}
	}

	batch := make([]native.Row, 0, len(rows))
	defer func() {
		for _, r := range batch {
			_ = r.Close()
		}
	}()
	for i, fields := range rows {
		r, err := c.nc.CreateRow()
		if err != nil {
			return nativeError("container", err)
		}
		batch = append(batch, r)
		if err := EncodeRow(fields, r, c.types); err != nil {
			c.s.log.Debug().Err(err).Str("container", c.info.Name()).Int("row", i).Msg("multi put rejected")
			return err
		}
	}
	return nativeError("container", c.nc.PutMultipleRows(batch))
}

func (c *Container) CreateIndex(idx IndexInfo) error {
	if err := c.usable(); err != nil {
		return err
	}
	if idx.ColumnName == "" {
		return argumentError("index column name is empty")
	}
	if idx.Name == "" {
		return nativeError("container", c.nc.CreateIndex(idx.ColumnName, idx.Type))
	}
	return nativeError("container", c.nc.CreateIndexDetail(native.IndexInfo{
		Name:       idx.Name,
		Type:       idx.Type,
		Column:     -1,
		ColumnName: idx.ColumnName,
	}))
}

func (c *Container) DropIndex(idx IndexInfo) error {
	if err := c.usable(); err != nil {
		return err
	}
	if idx.ColumnName == "" && idx.Name == "" {
		return argumentError("index column name and index name are both empty")
	}
	if idx.Name == "" {
		return nativeError("container", c.nc.DropIndex(idx.ColumnName, idx.Type))
	}
	return nativeError("container", c.nc.DropIndexDetail(native.IndexInfo{
		Name:       idx.Name,
		Type:       idx.Type,
		Column:     -1,
		ColumnName: idx.ColumnName,
	}))
}

func (c *Container) Flush() error {
	if err := c.usable(); err != nil {
		return err
	}
	return nativeError("container", c.nc.Flush())
}

func (c *Container) Commit() error {
	if err := c.usable(); err != nil {
		return err
	}
	return nativeError("container", c.nc.Commit())
}

func (c *Container) Abort() error {
	if err := c.usable(); err != nil {
		return err
	}
	return nativeError("container", c.nc.Abort())
}

func (c *Container) SetAutoCommit(enabled bool) error {
	if err := c.usable(); err != nil {
		return err
	}
	return nativeError("container", c.nc.SetAutoCommit(enabled))
}

// Query prepares a TQL statement against this container.
func (c *Container) Query(stmt string) (*Query, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(stmt) == "" {
		return nil, argumentError("query statement is empty")
	}
	nq, err := c.nc.Query(stmt)
	if err != nil {
		return nil, nativeError("container", err)
	}
	return c.track(c.s.newQuery(c, nq)), nil
}

// QueryByTimeSeriesRange selects rows of a time series with start <= key
// <= end. Bounds accept anything ToTimestamp does.
func (c *Container) QueryByTimeSeriesRange(start, end any) (*Query, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	if c.info.Type() != TimeSeries {
		return nil, argumentError("container %q is not a time series", c.info.Name())
	}
	from, err := ToTimestamp(start)
	if err != nil {
		return nil, err
	}
	to, err := ToTimestamp(end)
	if err != nil {
		return nil, err
	}
	nq, err := c.nc.QueryByTimeSeriesRange(FromTimestamp(from), FromTimestamp(to))
	if err != nil {
		return nil, nativeError("container", err)
	}
	return c.track(c.s.newQuery(c, nq)), nil
}

func (c *Container) track(q *Query) *Query {
	c.mu.Lock()
	c.queries = append(c.queries, q)
	c.mu.Unlock()
	return q
}

func (c *Container) untrack(q *Query) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, x := range c.queries {
		if x == q {
			c.queries = append(c.queries[:i], c.queries[i+1:]...)
			return
		}
	}
}

// Close closes the container, its row buffer and every query opened from
// it. Closing twice is a no-op.
func (c *Container) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.st != nil {
		c.st.forget(c)
	}
	c.mu.Lock()
	queries := c.queries
	c.queries = nil
	c.mu.Unlock()
	for _, q := range queries {
		q.closeLocal()
	}

	bufErr := c.buf.close()
	if err := c.nc.Close(true); err != nil {
		return nativeError("container", err)
	}
	c.s.log.Debug().Str("container", c.info.Name()).Msg("container closed")
	return bufErr
}

// nativeKey converts key to the Go type the row key column is stored as.
func (c *Container) nativeKey(key any) (any, error) {
	if len(c.types) == 0 {
		return nil, argumentError("container %q has no columns", c.info.Name())
	}
	return toNativeKey(key, c.types[0])
}

func toNativeKey(key any, t Type) (any, error) {
	if key == nil {
		return nil, argumentError("row key is nil")
	}
	switch t {
	case TypeString:
		s, ok := key.(string)
		if !ok {
			return nil, typeMismatch("key must be a string, got %T", key)
		}
		return s, nil
	case TypeInteger:
		return integerKey(key, math.MinInt32, math.MaxInt32, func(n int64) any { return int32(n) })
	case TypeLong:
		return integerKey(key, MinLong, MaxLong, func(n int64) any { return n })
	case TypeTimestamp:
		ms, err := ToTimestamp(key)
		if err != nil {
			return nil, err
		}
		return FromTimestamp(ms), nil
	}
	return nil, typeMismatch("invalid key type %s", t)
}

func integerKey(key any, lo, hi int64, conv func(int64) any) (any, error) {
	n, ok := numberOf(key)
	if !ok {
		return nil, typeMismatch("key must be a number, got %T", key)
	}
	i, ok := n.truncated()
	if !ok || i < lo || i > hi {
		return nil, rangeError("key %v out of range [%d, %d]", key, lo, hi)
	}
	return conv(i), nil
}

// fromNativeKey turns a stored key into the value callers see.
func fromNativeKey(k any) any {
	switch v := k.(type) {
	case string:
		return strings.Clone(v)
	case time.Time:
		return v.UTC()
	}
	return k
}
