package embedded

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/tuannm99/novagrid/internal/native"
	"github.com/tuannm99/novagrid/internal/record"
	"github.com/tuannm99/novagrid/internal/tql"
)

// container is one open handle on a containerState. With auto commit off,
// writes go to a private copy-on-write clone until Commit or Abort.
type container struct {
	st *store
	cs *containerState

	mu         sync.Mutex
	autoCommit bool
	tx         *btree.BTreeG[*entry]
	txSeq      uint64
	queries    []*query
	closed     bool
}

var _ native.Container = (*container)(nil)

func newContainer(st *store, cs *containerState) *container {
	st.d.open.containers.Add(1)
	return &container{st: st, cs: cs, autoCommit: true}
}

// usable must be called with c.mu held.
func (c *container) usable() error {
	if c.closed {
		return errClosed("container")
	}
	if err := c.st.usable(); err != nil {
		return err
	}
	c.cs.mu.RLock()
	dropped := c.cs.dropped
	c.cs.mu.RUnlock()
	if dropped {
		return fail(native.CodeContainerMissing, "container %q was dropped", c.cs.info.Name)
	}
	return nil
}

func (c *container) CreateRow() (native.Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return nil, err
	}
	c.cs.mu.RLock()
	defer c.cs.mu.RUnlock()
	return newRow(c.st.d, &c.cs.info), nil
}

// toEntry validates r against the current schema and encodes it.
// c.cs.mu must be held.
func (c *container) toEntry(nr native.Row) (*entry, error) {
	r, ok := nr.(*row)
	if !ok {
		return nil, fail(native.CodeIllegalParameter, "row %T was not created by this driver", nr)
	}
	if r.closed {
		return nil, errClosed("row")
	}
	if !r.matches(&c.cs.info) {
		return nil, fail(native.CodeSchemaConflict, "row does not match the schema of %q", c.cs.info.Name)
	}
	vals := r.snapshot()
	data, err := record.EncodeRow(c.cs.schema, vals)
	if err != nil {
		code := native.CodeTypeMismatch
		if errors.Is(err, record.ErrSchemaMismatchNotAllowNull) {
			code = native.CodeNullNotAllowed
		}
		return nil, fail(code, "encode row of %q: %v", c.cs.info.Name, err)
	}
	e := &entry{data: data}
	if c.cs.info.RowKeyAssigned {
		e.key = vals[0]
	}
	return e, nil
}

// writeTree returns the tree writes should go to.
// c.mu and c.cs.mu (write) must be held.
func (c *container) writeTree() *btree.BTreeG[*entry] {
	if c.autoCommit {
		return c.cs.rows
	}
	if c.tx == nil {
		c.tx = c.cs.rows.Clone()
		c.txSeq = c.cs.nextSeq
	}
	return c.tx
}

// readTree must be called with c.mu and c.cs.mu (read) held.
func (c *container) readTree() *btree.BTreeG[*entry] {
	if c.tx != nil {
		return c.tx
	}
	return c.cs.rows
}

func (c *container) insert(t *btree.BTreeG[*entry], e *entry) bool {
	if !c.cs.info.RowKeyAssigned {
		if c.autoCommit {
			c.cs.nextSeq++
			e.seq = c.cs.nextSeq
		} else {
			c.txSeq++
			e.seq = c.txSeq
		}
	}
	_, existed := t.ReplaceOrInsert(e)
	return existed
}

func (c *container) PutRow(r native.Row) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return false, err
	}

	c.cs.mu.Lock()
	defer c.cs.mu.Unlock()
	e, err := c.toEntry(r)
	if err != nil {
		return false, err
	}
	return c.insert(c.writeTree(), e), nil
}

func (c *container) PutMultipleRows(rows []native.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}

	c.cs.mu.Lock()
	defer c.cs.mu.Unlock()
	entries := make([]*entry, 0, len(rows))
	for _, r := range rows {
		e, err := c.toEntry(r)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	t := c.writeTree()
	for _, e := range entries {
		c.insert(t, e)
	}
	return nil
}

// checkKey validates key against the row key column.
// c.cs.mu must be held.
func (c *container) checkKey(key any) error {
	if !c.cs.info.RowKeyAssigned {
		return fail(native.CodeUnsupported, "container %q has no row key", c.cs.info.Name)
	}
	return checkKeyType(c.cs.info.Columns[0].Type, key)
}

func checkKeyType(t native.Type, key any) error {
	ok := false
	switch key.(type) {
	case string:
		ok = t == native.TypeString
	case int32:
		ok = t == native.TypeInteger
	case int64:
		ok = t == native.TypeLong
	case time.Time:
		ok = t == native.TypeTimestamp
	}
	if !ok {
		return fail(native.CodeTypeMismatch, "key %T does not match key type %s", key, t)
	}
	return nil
}

func normalizeKey(key any) any {
	if ts, ok := key.(time.Time); ok {
		return native.TruncateTime(ts)
	}
	return key
}

func (c *container) GetRow(key any, nr native.Row, forUpdate bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return false, err
	}
	if forUpdate && c.autoCommit {
		return false, fail(native.CodeTransaction, "get for update requires auto commit off")
	}

	c.cs.mu.RLock()
	defer c.cs.mu.RUnlock()
	if err := c.checkKey(key); err != nil {
		return false, err
	}
	r, ok := nr.(*row)
	if !ok || !r.matches(&c.cs.info) {
		return false, fail(native.CodeSchemaConflict, "row does not match the schema of %q", c.cs.info.Name)
	}
	if r.closed {
		return false, errClosed("row")
	}

	e, found := c.readTree().Get(&entry{key: normalizeKey(key)})
	if !found {
		return false, nil
	}
	vals, err := record.DecodeRow(c.cs.schema, e.data)
	if err != nil {
		return false, fail(native.CodeUnknown, "decode row of %q: %v", c.cs.info.Name, err)
	}
	r.load(vals)
	return true, nil
}

func (c *container) DeleteRow(key any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return false, err
	}

	c.cs.mu.Lock()
	defer c.cs.mu.Unlock()
	if err := c.checkKey(key); err != nil {
		return false, err
	}
	_, found := c.writeTree().Delete(&entry{key: normalizeKey(key)})
	return found, nil
}

func (c *container) CreateIndex(columnName string, flags native.IndexTypeFlags) error {
	return c.CreateIndexDetail(native.IndexInfo{ColumnName: columnName, Type: flags, Column: -1})
}

func (c *container) DropIndex(columnName string, flags native.IndexTypeFlags) error {
	return c.DropIndexDetail(native.IndexInfo{ColumnName: columnName, Type: flags, Column: -1})
}

// resolveIndex finds the column an IndexInfo refers to.
// c.cs.mu must be held.
func (c *container) resolveIndex(info native.IndexInfo) (int, native.IndexTypeFlags, error) {
	col := info.Column
	if info.ColumnName != "" {
		col = c.cs.columnIndex(info.ColumnName)
		if col < 0 {
			return 0, 0, fail(native.CodeIllegalParameter, "column %q not found in %q", info.ColumnName, c.cs.info.Name)
		}
	}
	if col < 0 || col >= len(c.cs.info.Columns) {
		return 0, 0, fail(native.CodeIllegalParameter, "no index column given")
	}

	typ := c.cs.info.Columns[col].Type
	flags := info.Type
	if flags == native.IndexDefault || flags == 0 {
		flags = native.IndexTree
		if typ == native.TypeGeometry {
			flags = native.IndexSpatial
		}
	}
	if flags&^(native.IndexTree|native.IndexHash|native.IndexSpatial) != 0 {
		return 0, 0, fail(native.CodeIllegalParameter, "unknown index flags %d", flags)
	}
	switch {
	case typ == native.TypeBlob:
		return 0, 0, fail(native.CodeIndex, "BLOB columns cannot be indexed")
	case flags&native.IndexSpatial != 0 && typ != native.TypeGeometry:
		return 0, 0, fail(native.CodeIndex, "SPATIAL index requires a GEOMETRY column")
	case flags&(native.IndexTree|native.IndexHash) != 0 && typ == native.TypeGeometry:
		return 0, 0, fail(native.CodeIndex, "GEOMETRY columns only support SPATIAL indexes")
	}
	return col, flags, nil
}

func (c *container) CreateIndexDetail(info native.IndexInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}

	c.cs.mu.Lock()
	defer c.cs.mu.Unlock()
	col, flags, err := c.resolveIndex(info)
	if err != nil {
		return err
	}

	for _, idx := range c.cs.indexes {
		if info.Name != "" && strings.EqualFold(idx.name, info.Name) {
			if idx.column == col && idx.flags == flags {
				return nil
			}
			return fail(native.CodeIndex, "index %q already exists", info.Name)
		}
		if idx.column == col && idx.flags&flags != 0 && info.Name == "" {
			return nil
		}
	}

	c.cs.indexes = append(c.cs.indexes, indexDef{name: info.Name, column: col, flags: flags})
	c.cs.info.Columns[col].IndexTypeFlags |= flags
	return nil
}

func (c *container) DropIndexDetail(info native.IndexInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}

	c.cs.mu.Lock()
	defer c.cs.mu.Unlock()

	kept := c.cs.indexes[:0]
	for _, idx := range c.cs.indexes {
		if indexMatches(c.cs, idx, info) {
			continue
		}
		kept = append(kept, idx)
	}
	c.cs.indexes = kept

	for i := range c.cs.info.Columns {
		c.cs.info.Columns[i].IndexTypeFlags = 0
	}
	for _, idx := range c.cs.indexes {
		c.cs.info.Columns[idx.column].IndexTypeFlags |= idx.flags
	}
	return nil
}

func indexMatches(cs *containerState, idx indexDef, info native.IndexInfo) bool {
	if info.Name != "" && !strings.EqualFold(idx.name, info.Name) {
		return false
	}
	if info.ColumnName != "" && !strings.EqualFold(cs.info.Columns[idx.column].Name, info.ColumnName) {
		return false
	}
	if info.ColumnName == "" && info.Column >= 0 && idx.column != info.Column {
		return false
	}
	if info.Type != native.IndexDefault && info.Type != 0 && idx.flags&info.Type == 0 {
		return false
	}
	return true
}

func (c *container) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usable()
}

func (c *container) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	if c.autoCommit {
		return fail(native.CodeTransaction, "commit requires auto commit off")
	}
	c.commitLocked()
	return nil
}

func (c *container) commitLocked() {
	if c.tx == nil {
		return
	}
	c.cs.mu.Lock()
	c.cs.rows = c.tx
	if c.txSeq > c.cs.nextSeq {
		c.cs.nextSeq = c.txSeq
	}
	c.cs.mu.Unlock()
	c.tx = nil
}

func (c *container) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	if c.autoCommit {
		return fail(native.CodeTransaction, "abort requires auto commit off")
	}
	c.tx = nil
	return nil
}

// SetAutoCommit(true) commits any pending transaction.
func (c *container) SetAutoCommit(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	if enabled && !c.autoCommit {
		c.commitLocked()
	}
	c.autoCommit = enabled
	return nil
}

func (c *container) Query(text string) (native.Query, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return nil, err
	}

	stmt, err := tql.Parse(text)
	if err != nil {
		return nil, fail(native.CodeSyntax, "%v", err)
	}
	sel := selectOf(stmt)
	if sel.Container != "" && !strings.EqualFold(sel.Container, c.cs.info.Name) {
		return nil, fail(native.CodeSyntax, "query targets %q, not %q", sel.Container, c.cs.info.Name)
	}
	return c.newQuery(stmt, text), nil
}

func (c *container) QueryByTimeSeriesRange(start, end time.Time) (native.Query, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return nil, err
	}
	if c.cs.info.Type != native.ContainerTimeSeries {
		return nil, fail(native.CodeUnsupported, "%q is not a time series", c.cs.info.Name)
	}

	key := c.cs.info.Columns[0].Name
	stmt := &tql.SelectStmt{
		Limit: -1,
		Where: &tql.LogicalExpr{
			Op:    tql.OpAnd,
			Left:  &tql.CompareExpr{Column: key, Op: tql.OpGe, Value: &tql.LiteralExpr{Value: native.TruncateTime(start)}},
			Right: &tql.CompareExpr{Column: key, Op: tql.OpLe, Value: &tql.LiteralExpr{Value: native.TruncateTime(end)}},
		},
	}
	text := "SELECT * WHERE " + key + " >= TIMESTAMP('" + native.FormatTime(start) +
		"') AND " + key + " <= TIMESTAMP('" + native.FormatTime(end) + "')"
	return c.newQuery(stmt, text), nil
}

// newQuery must be called with c.mu held.
func (c *container) newQuery(stmt tql.Statement, text string) *query {
	q := &query{c: c, stmt: stmt, text: text}
	c.st.d.open.queries.Add(1)
	c.queries = append(c.queries, q)
	return q
}

func (c *container) Close(allRelated bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.tx = nil
	queries := c.queries
	c.queries = nil
	c.mu.Unlock()

	if allRelated {
		for _, q := range queries {
			_ = q.Close()
		}
	}
	c.st.d.open.containers.Add(-1)
	return nil
}

func selectOf(stmt tql.Statement) *tql.SelectStmt {
	switch s := stmt.(type) {
	case *tql.SelectStmt:
		return s
	case *tql.ExplainStmt:
		return s.Select
	}
	return &tql.SelectStmt{Limit: -1}
}
