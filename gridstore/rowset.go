package gridstore

import (
	"strings"
	"sync"
	"time"

	"github.com/tuannm99/novagrid/internal/native"
)

// RowSet is the result of a fetch. The concrete type follows Type():
// *RowCursor for container rows, *AggregationCursor for aggregation
// results and *AnalysisCursor for EXPLAIN output.
type RowSet interface {
	Type() RowSetType
	Size() int
	HasNext() bool
	Close() error

	rowSet()
}

// Next advances rs whatever its shape. It returns a []any row, an
// *AggregationResult or a *QueryAnalysisEntry, and nil once rs is
// exhausted.
func Next(rs RowSet) (any, error) {
	switch c := rs.(type) {
	case *RowCursor:
		row, err := c.Next()
		if row == nil || err != nil {
			return nil, err
		}
		return row, nil
	case *AggregationCursor:
		agg, err := c.Next()
		if agg == nil || err != nil {
			return nil, err
		}
		return agg, nil
	case *AnalysisCursor:
		e, err := c.Next()
		if e == nil || err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, argumentError("unknown row set %T", rs)
}

type cursor struct {
	s   *Session
	nrs native.RowSet

	mu     sync.Mutex
	closed bool
}

func (c *cursor) rowSet() {}

func (c *cursor) Type() RowSetType { return c.nrs.Type() }

func (c *cursor) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}
	return c.nrs.Size()
}

func (c *cursor) HasNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.nrs.HasNext()
}

// begin locks the cursor for one step. more is false once the cursor is
// exhausted; the lock is held whenever err is nil.
func (c *cursor) begin() (more bool, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, stateError("row set is closed")
	}
	return c.nrs.HasNext(), nil
}

func (c *cursor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return nativeError("row set", c.nrs.Close())
}

// RowCursor iterates container rows. Rows are decoded through the owning
// container's row buffer.
type RowCursor struct {
	cursor
	c *Container
}

// Next returns the next row, or nil once the cursor is exhausted.
func (rc *RowCursor) Next() ([]any, error) {
	more, err := rc.begin()
	if err != nil {
		return nil, err
	}
	defer rc.mu.Unlock()
	if !more {
		return nil, nil
	}

	row, err := rc.c.buf.borrow()
	if err != nil {
		return nil, err
	}
	defer rc.c.buf.release()

	if err := rc.nrs.NextRow(row); err != nil {
		return nil, nativeError("row set", err)
	}
	return DecodeRow(row, rc.c.types)
}

// AggregationCursor iterates aggregation results.
type AggregationCursor struct {
	cursor
}

// Next returns the next result, or nil once the cursor is exhausted.
func (ac *AggregationCursor) Next() (*AggregationResult, error) {
	more, err := ac.begin()
	if err != nil {
		return nil, err
	}
	defer ac.mu.Unlock()
	if !more {
		return nil, nil
	}

	na, err := ac.nrs.NextAggregation()
	if err != nil {
		return nil, nativeError("row set", err)
	}
	return newAggregationResult(na)
}

// AnalysisCursor iterates EXPLAIN entries.
type AnalysisCursor struct {
	cursor
}

// Next returns the next entry, or nil once the cursor is exhausted.
func (ac *AnalysisCursor) Next() (*QueryAnalysisEntry, error) {
	more, err := ac.begin()
	if err != nil {
		return nil, err
	}
	defer ac.mu.Unlock()
	if !more {
		return nil, nil
	}

	e, err := ac.nrs.NextQueryAnalysis()
	if err != nil {
		return nil, nativeError("row set", err)
	}
	return &QueryAnalysisEntry{
		ID:        e.ID,
		Depth:     e.Depth,
		Type:      strings.Clone(e.Type),
		ValueType: strings.Clone(e.ValueType),
		Value:     strings.Clone(e.Value),
		Statement: strings.Clone(e.Statement),
	}, nil
}

// QueryAnalysisEntry is one line of an EXPLAIN plan.
type QueryAnalysisEntry struct {
	ID        int32
	Depth     int32
	Type      string
	ValueType string
	Value     string
	Statement string
}

// AggregationResult is an owned copy of one aggregation value.
type AggregationResult struct {
	double    float64
	long      int64
	ts        time.Time
	hasDouble bool
	hasLong   bool
	hasTS     bool
}

// newAggregationResult copies na out and releases it.
func newAggregationResult(na native.AggregationResult) (*AggregationResult, error) {
	r := &AggregationResult{}
	r.double, r.hasDouble = na.Double()
	r.long, r.hasLong = na.Long()
	r.ts, r.hasTS = na.Timestamp()
	if err := na.Close(); err != nil {
		return nil, nativeError("aggregation result", err)
	}
	return r, nil
}

// Get reads the value as t, which must be TypeDouble, TypeLong or
// TypeTimestamp. An unassigned value, such as AVG over no rows, is a
// NativeError.
func (r *AggregationResult) Get(t Type) (any, error) {
	var (
		v  any
		ok bool
	)
	switch t {
	case TypeDouble:
		v, ok = r.double, r.hasDouble
	case TypeLong:
		v, ok = r.long, r.hasLong
	case TypeTimestamp:
		v, ok = r.ts.UTC(), r.hasTS
	default:
		return nil, argumentError("aggregation results cannot be read as %s", t)
	}
	if !ok {
		return nil, nativeError("aggregation result",
			native.NewError(native.CodeResultNotAssigned, "", "aggregation value is not assigned as %s", t))
	}
	return v, nil
}
