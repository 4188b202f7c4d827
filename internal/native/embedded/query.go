package embedded

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tuannm99/novagrid/internal/native"
	"github.com/tuannm99/novagrid/internal/record"
	"github.com/tuannm99/novagrid/internal/tql"
)

type query struct {
	c    *container
	stmt tql.Statement
	text string

	limit int

	current *rowSet // closed when the next fetch starts
	pending *rowSet // set by FetchAll, handed out by RowSet
	closed  bool
}

var _ native.Query = (*query)(nil)

func (q *query) SetFetchLimit(limit int) error {
	if q.closed {
		return errClosed("query")
	}
	q.limit = limit
	return nil
}

// SetFetchPartial is accepted and ignored. Results are materialised in
// memory on fetch, so there is no server round trip to split.
func (q *query) SetFetchPartial(bool) error {
	if q.closed {
		return errClosed("query")
	}
	return nil
}

func (q *query) Fetch(forUpdate bool) (native.RowSet, error) {
	rs, err := q.fetch(forUpdate)
	if err != nil {
		return nil, err
	}
	q.current = rs
	return rs, nil
}

func (q *query) fetch(forUpdate bool) (*rowSet, error) {
	if q.closed {
		return nil, errClosed("query")
	}
	if q.current != nil {
		_ = q.current.Close()
		q.current = nil
	}

	c := q.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return nil, err
	}
	if forUpdate {
		if c.autoCommit {
			return nil, fail(native.CodeTransaction, "fetch for update requires auto commit off")
		}
		if sel := selectOf(q.stmt); sel.Aggregate != nil {
			return nil, fail(native.CodeUnsupported, "aggregations cannot be fetched for update")
		}
		if _, ok := q.stmt.(*tql.ExplainStmt); ok {
			return nil, fail(native.CodeUnsupported, "EXPLAIN cannot be fetched for update")
		}
	}

	c.cs.mu.RLock()
	defer c.cs.mu.RUnlock()

	rs := &rowSet{d: c.st.d, info: cloneInfo(&c.cs.info)}
	switch s := q.stmt.(type) {
	case *tql.SelectStmt:
		rows, err := q.scan(s)
		if err != nil {
			return nil, err
		}
		if s.Aggregate != nil {
			agg, err := aggregate(s.Aggregate, rows, &rs.info)
			if err != nil {
				return nil, err
			}
			rs.typ = native.RowSetAggregationResult
			rs.aggs = []*aggregation{agg}
		} else {
			rs.typ = native.RowSetContainerRows
			rs.rows = q.window(s, rows)
		}

	case *tql.ExplainStmt:
		rs.typ = native.RowSetQueryAnalysis
		entries, err := q.explain(s)
		if err != nil {
			return nil, err
		}
		rs.entries = entries
	}

	c.st.d.open.rowSets.Add(1)
	return rs, nil
}

// scan returns the decoded rows matching the WHERE clause, ordered.
// c.cs.mu must be held.
func (q *query) scan(s *tql.SelectStmt) ([][]any, error) {
	cs := q.c.cs

	lookupIdx := func(name string) (int, error) {
		i := cs.columnIndex(name)
		if i < 0 {
			return 0, fail(native.CodeSyntax, "column %q not found in %q", name, cs.info.Name)
		}
		return i, nil
	}
	if s.OrderBy != nil {
		if _, err := lookupIdx(s.OrderBy.Column); err != nil {
			return nil, err
		}
	}
	if s.Aggregate != nil && s.Aggregate.Column != "" {
		if _, err := lookupIdx(s.Aggregate.Column); err != nil {
			return nil, err
		}
	}

	var (
		out     [][]any
		scanErr error
	)
	q.c.readTree().Ascend(func(e *entry) bool {
		vals, err := record.DecodeRow(cs.schema, e.data)
		if err != nil {
			scanErr = fail(native.CodeUnknown, "decode row of %q: %v", cs.info.Name, err)
			return false
		}
		ok, err := tql.Eval(s.Where, func(col string) (any, error) {
			i, err := lookupIdx(col)
			if err != nil {
				return nil, err
			}
			return vals[i], nil
		})
		if err != nil {
			scanErr = asNative(err)
			return false
		}
		if ok {
			out = append(out, vals)
		}
		return true
	})
	if scanErr != nil {
		return nil, scanErr
	}

	if s.OrderBy != nil {
		col, _ := lookupIdx(s.OrderBy.Column)
		desc := s.OrderBy.Desc
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i][col], out[j][col]
			// NULL sorts first ascending
			if a == nil || b == nil {
				if desc {
					return a != nil && b == nil
				}
				return a == nil && b != nil
			}
			c, _ := tql.Compare(a, b)
			if desc {
				return c > 0
			}
			return c < 0
		})
	}
	return out, nil
}

func asNative(err error) error {
	if _, ok := err.(*native.Error); ok {
		return err
	}
	return fail(native.CodeSyntax, "%v", err)
}

// window applies OFFSET, LIMIT and the fetch limit.
func (q *query) window(s *tql.SelectStmt, rows [][]any) [][]any {
	if s.Offset > 0 {
		if s.Offset >= int64(len(rows)) {
			return nil
		}
		rows = rows[s.Offset:]
	}
	if s.Limit >= 0 && s.Limit < int64(len(rows)) {
		rows = rows[:s.Limit]
	}
	if q.limit > 0 && q.limit < len(rows) {
		rows = rows[:q.limit]
	}
	return rows
}

func (q *query) explain(s *tql.ExplainStmt) ([]native.QueryAnalysisEntry, error) {
	cs := q.c.cs
	sel := s.Select

	var entries []native.QueryAnalysisEntry
	add := func(depth int32, typ, valueType, value string) {
		entries = append(entries, native.QueryAnalysisEntry{
			ID:        int32(len(entries) + 1),
			Depth:     depth,
			Type:      typ,
			ValueType: valueType,
			Value:     value,
			Statement: s.Text,
		})
	}

	add(0, "QUERY_EXECUTE", "STRING", s.Text)
	scan := "SCAN_CONTAINER"
	if hasIndexedCondition(cs, sel.Where) {
		scan = "SCAN_INDEX"
	}
	add(1, scan, "STRING", cs.info.Name)
	if sel.Where != nil {
		add(1, "FILTER", "STRING", "WHERE")
	}
	if sel.Aggregate != nil {
		add(1, "AGGREGATE", "STRING", string(sel.Aggregate.Func))
	}
	if sel.OrderBy != nil {
		dir := "ASC"
		if sel.OrderBy.Desc {
			dir = "DESC"
		}
		add(1, "ORDER_BY", "STRING", sel.OrderBy.Column+" "+dir)
	}
	if sel.Limit >= 0 {
		add(1, "LIMIT", "LONG", strconv.FormatInt(sel.Limit, 10))
	}

	if s.Analyze {
		start := time.Now()
		rows, err := q.scan(sel)
		if err != nil {
			return nil, err
		}
		n := len(rows)
		if sel.Aggregate == nil {
			n = len(q.window(sel, rows))
		}
		add(1, "RESULT_ROWS", "LONG", strconv.Itoa(n))
		add(1, "EXECUTION_TIME", "LONG", strconv.FormatInt(time.Since(start).Milliseconds(), 10))
	}
	return entries, nil
}

func hasIndexedCondition(cs *containerState, e tql.Expr) bool {
	switch x := e.(type) {
	case *tql.CompareExpr:
		i := cs.columnIndex(x.Column)
		return i >= 0 && (cs.info.Columns[i].IndexTypeFlags != 0 || (i == 0 && cs.info.RowKeyAssigned))
	case *tql.LogicalExpr:
		return hasIndexedCondition(cs, x.Left) || hasIndexedCondition(cs, x.Right)
	}
	return false
}

// RowSet hands out the result prepared by FetchAll.
func (q *query) RowSet() (native.RowSet, error) {
	if q.closed {
		return nil, errClosed("query")
	}
	if q.pending == nil {
		return nil, fail(native.CodeIllegalParameter, "no fetched result for this query")
	}
	rs := q.pending
	q.pending = nil
	q.current = rs
	return rs, nil
}

func (q *query) Close() error {
	if q.closed {
		return nil
	}
	q.closed = true
	if q.current != nil {
		_ = q.current.Close()
	}
	if q.pending != nil {
		_ = q.pending.Close()
	}
	q.c.mu.Lock()
	for i, other := range q.c.queries {
		if other == q {
			q.c.queries = append(q.c.queries[:i], q.c.queries[i+1:]...)
			break
		}
	}
	q.c.mu.Unlock()
	q.c.st.d.open.queries.Add(-1)
	return nil
}

type rowSet struct {
	d       *Driver
	typ     native.RowSetType
	info    native.ContainerInfo
	rows    [][]any
	aggs    []*aggregation
	entries []native.QueryAnalysisEntry
	pos     int
	closed  bool
}

var _ native.RowSet = (*rowSet)(nil)

func (rs *rowSet) Type() native.RowSetType { return rs.typ }

func (rs *rowSet) Size() int {
	switch rs.typ {
	case native.RowSetAggregationResult:
		return len(rs.aggs)
	case native.RowSetQueryAnalysis:
		return len(rs.entries)
	}
	return len(rs.rows)
}

func (rs *rowSet) HasNext() bool {
	return !rs.closed && rs.pos < rs.Size()
}

func (rs *rowSet) advance(want native.RowSetType) error {
	if rs.closed {
		return errClosed("row set")
	}
	if rs.typ != want {
		return fail(native.CodeUnsupported, "row set holds %s, not %s", rs.typ, want)
	}
	if rs.pos >= rs.Size() {
		return fail(native.CodeIllegalParameter, "no more results")
	}
	return nil
}

func (rs *rowSet) NextRow(nr native.Row) error {
	if err := rs.advance(native.RowSetContainerRows); err != nil {
		return err
	}
	r, ok := nr.(*row)
	if !ok || !r.matches(&rs.info) {
		return fail(native.CodeSchemaConflict, "row does not match the result schema")
	}
	if r.closed {
		return errClosed("row")
	}
	vals := make([]any, len(rs.rows[rs.pos]))
	for i, v := range rs.rows[rs.pos] {
		// blobs are handed to the row, keep the result set's copy intact
		if b, ok := v.([]byte); ok {
			v = append([]byte(nil), b...)
		}
		vals[i] = v
	}
	r.load(vals)
	rs.pos++
	return nil
}

func (rs *rowSet) NextAggregation() (native.AggregationResult, error) {
	if err := rs.advance(native.RowSetAggregationResult); err != nil {
		return nil, err
	}
	agg := *rs.aggs[rs.pos]
	agg.d = rs.d
	rs.pos++
	rs.d.open.aggregations.Add(1)
	return &agg, nil
}

func (rs *rowSet) NextQueryAnalysis() (*native.QueryAnalysisEntry, error) {
	if err := rs.advance(native.RowSetQueryAnalysis); err != nil {
		return nil, err
	}
	e := rs.entries[rs.pos]
	rs.pos++
	return &e, nil
}

func (rs *rowSet) Close() error {
	if rs.closed {
		return nil
	}
	rs.closed = true
	rs.d.open.rowSets.Add(-1)
	return nil
}

type aggKind int

const (
	aggNone aggKind = iota
	aggLong
	aggDouble
	aggTimestamp
)

type aggregation struct {
	d      *Driver
	kind   aggKind
	long   int64
	double float64
	ts     time.Time
	closed bool
}

var _ native.AggregationResult = (*aggregation)(nil)

func (a *aggregation) Double() (float64, bool) {
	switch a.kind {
	case aggDouble:
		return a.double, true
	case aggLong:
		return float64(a.long), true
	}
	return 0, false
}

func (a *aggregation) Long() (int64, bool) {
	switch a.kind {
	case aggLong:
		return a.long, true
	case aggDouble:
		return int64(a.double), true
	}
	return 0, false
}

func (a *aggregation) Timestamp() (time.Time, bool) {
	if a.kind == aggTimestamp {
		return a.ts, true
	}
	return time.Time{}, false
}

func (a *aggregation) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if a.d != nil {
		a.d.open.aggregations.Add(-1)
	}
	return nil
}

func aggregate(agg *tql.Aggregate, rows [][]any, info *native.ContainerInfo) (*aggregation, error) {
	if agg.Func == tql.AggCount && agg.Column == "" {
		return &aggregation{kind: aggLong, long: int64(len(rows))}, nil
	}

	col := -1
	for i, c := range info.Columns {
		if strings.EqualFold(c.Name, agg.Column) {
			col = i
			break
		}
	}
	typ := info.Columns[col].Type

	var vals []any
	for _, r := range rows {
		if r[col] != nil {
			vals = append(vals, r[col])
		}
	}

	switch agg.Func {
	case tql.AggCount:
		return &aggregation{kind: aggLong, long: int64(len(vals))}, nil

	case tql.AggSum, tql.AggAvg:
		if !numeric(typ) {
			return nil, fail(native.CodeSyntax, "%s needs a numeric column, %q is %s", agg.Func, agg.Column, typ)
		}
		if len(vals) == 0 {
			if agg.Func == tql.AggSum {
				return &aggregation{kind: aggLong}, nil
			}
			return &aggregation{}, nil
		}
		var (
			sumI int64
			sumF float64
		)
		for _, v := range vals {
			if i, ok := tql.ToInt64(v); ok {
				sumI += i
			}
			f, _ := tql.ToFloat64(v)
			sumF += f
		}
		if agg.Func == tql.AggAvg {
			return &aggregation{kind: aggDouble, double: sumF / float64(len(vals))}, nil
		}
		if typ == native.TypeFloat || typ == native.TypeDouble {
			return &aggregation{kind: aggDouble, double: sumF}, nil
		}
		return &aggregation{kind: aggLong, long: sumI}, nil

	case tql.AggMin, tql.AggMax:
		if !numeric(typ) && typ != native.TypeTimestamp {
			return nil, fail(native.CodeSyntax, "%s needs a numeric or TIMESTAMP column, %q is %s", agg.Func, agg.Column, typ)
		}
		if len(vals) == 0 {
			return &aggregation{}, nil
		}
		best := vals[0]
		for _, v := range vals[1:] {
			c, _ := tql.Compare(v, best)
			if (agg.Func == tql.AggMin && c < 0) || (agg.Func == tql.AggMax && c > 0) {
				best = v
			}
		}
		switch x := best.(type) {
		case time.Time:
			return &aggregation{kind: aggTimestamp, ts: x}, nil
		case float32, float64:
			f, _ := tql.ToFloat64(x)
			return &aggregation{kind: aggDouble, double: f}, nil
		}
		i, _ := tql.ToInt64(best)
		return &aggregation{kind: aggLong, long: i}, nil
	}
	return nil, fail(native.CodeSyntax, "unsupported aggregation %s", agg.Func)
}

func numeric(t native.Type) bool {
	switch t {
	case native.TypeByte, native.TypeShort, native.TypeInteger, native.TypeLong, native.TypeFloat, native.TypeDouble:
		return true
	}
	return false
}
