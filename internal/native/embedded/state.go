package embedded

import (
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/tuannm99/novagrid/internal/native"
	"github.com/tuannm99/novagrid/internal/record"
	"github.com/tuannm99/novagrid/internal/tql"
)

const btreeDegree = 32

// entry is one stored row. key is nil for keyless containers.
type entry struct {
	key  any
	seq  uint64
	data []byte
}

type indexDef struct {
	name   string
	column int
	flags  native.IndexTypeFlags
}

type containerState struct {
	mu sync.RWMutex

	info      native.ContainerInfo
	schema    record.Schema
	partition int32
	rows      *btree.BTreeG[*entry]
	nextSeq   uint64
	indexes   []indexDef
	dropped   bool
}

func newContainerState(info *native.ContainerInfo, partition int32) *containerState {
	cs := &containerState{
		info:      cloneInfo(info),
		partition: partition,
	}
	cs.schema = schemaOf(cs.info)
	cs.rows = btree.NewG(btreeDegree, lessFunc(cs.info.RowKeyAssigned))
	return cs
}

func lessFunc(keyed bool) btree.LessFunc[*entry] {
	if keyed {
		return func(a, b *entry) bool {
			c, _ := tql.Compare(a.key, b.key)
			return c < 0
		}
	}
	return func(a, b *entry) bool { return a.seq < b.seq }
}

func cloneInfo(in *native.ContainerInfo) native.ContainerInfo {
	out := *in
	out.Name = strings.Clone(in.Name)
	out.DataAffinity = strings.Clone(in.DataAffinity)
	out.Columns = make([]native.ColumnInfo, len(in.Columns))
	for i, c := range in.Columns {
		c.Name = strings.Clone(c.Name)
		out.Columns[i] = c
	}
	if in.TimeSeriesProperties != nil {
		tp := *in.TimeSeriesProperties
		out.TimeSeriesProperties = &tp
	}
	return out
}

func nullable(info *native.ContainerInfo, col int) bool {
	c := info.Columns[col]
	switch {
	case c.Options&native.OptionNotNull != 0:
		return false
	case c.Options&native.OptionNullable != 0:
		return true
	}
	return !(col == 0 && info.RowKeyAssigned)
}

var recordTypes = map[native.Type]record.ColumnType{
	native.TypeString:    record.ColText,
	native.TypeBool:      record.ColBool,
	native.TypeByte:      record.ColInt8,
	native.TypeShort:     record.ColInt16,
	native.TypeInteger:   record.ColInt32,
	native.TypeLong:      record.ColInt64,
	native.TypeFloat:     record.ColFloat32,
	native.TypeDouble:    record.ColFloat64,
	native.TypeTimestamp: record.ColTimestamp,
	native.TypeGeometry:  record.ColGeometry,
	native.TypeBlob:      record.ColBytes,
}

func schemaOf(info native.ContainerInfo) record.Schema {
	cols := make([]record.Column, len(info.Columns))
	for i, c := range info.Columns {
		cols[i] = record.Column{
			Name:     c.Name,
			Type:     recordTypes[c.Type],
			Nullable: nullable(&info, i),
		}
	}
	return record.Schema{Cols: cols}
}

func (cs *containerState) columnIndex(name string) int {
	for i, c := range cs.info.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// validateInfo checks a container definition before it is created or
// altered.
func validateInfo(info *native.ContainerInfo) error {
	if info.Name == "" {
		return fail(native.CodeEmptyParameter, "container name is empty")
	}
	if len(info.Columns) == 0 {
		return fail(native.CodeEmptyParameter, "container %q has no columns", info.Name)
	}
	if info.Type != native.ContainerCollection && info.Type != native.ContainerTimeSeries {
		return fail(native.CodeIllegalParameter, "unknown container type %d", info.Type)
	}

	seen := make(map[string]bool, len(info.Columns))
	for i, c := range info.Columns {
		if c.Name == "" {
			return fail(native.CodeEmptyParameter, "column %d has no name", i)
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			return fail(native.CodeIllegalParameter, "duplicate column %q", c.Name)
		}
		seen[key] = true
		if !c.Type.Valid() {
			return fail(native.CodeIllegalParameter, "column %q has unknown type %d", c.Name, c.Type)
		}
		if c.Options&native.OptionNullable != 0 && c.Options&native.OptionNotNull != 0 {
			return fail(native.CodeIllegalParameter, "column %q is both nullable and not null", c.Name)
		}
	}

	if info.RowKeyAssigned {
		if !info.Columns[0].Type.KeyType() {
			return fail(native.CodeIllegalParameter, "type %s cannot be a row key", info.Columns[0].Type)
		}
		if info.Columns[0].Options&native.OptionNullable != 0 {
			return fail(native.CodeIllegalParameter, "row key column cannot be nullable")
		}
	}

	if info.Type == native.ContainerTimeSeries {
		if !info.RowKeyAssigned || info.Columns[0].Type != native.TypeTimestamp {
			return fail(native.CodeIllegalParameter, "time series %q needs a TIMESTAMP row key", info.Name)
		}
	}
	if tp := info.TimeSeriesProperties; tp != nil {
		if info.Type != native.ContainerTimeSeries {
			return fail(native.CodeIllegalParameter, "row expiration requires a time series container")
		}
		if !tp.RowExpirationTimeUnit.Valid() || tp.RowExpirationTime < 0 || tp.ExpirationDivisionCount < 0 {
			return fail(native.CodeIllegalParameter, "invalid expiration settings")
		}
	}
	return nil
}

// sameColumns reports whether a has the same leading columns as b.
func sameColumns(a, b []native.ColumnInfo, n int) bool {
	for i := 0; i < n; i++ {
		if !strings.EqualFold(a[i].Name, b[i].Name) || a[i].Type != b[i].Type {
			return false
		}
	}
	return true
}

// alter applies a modifiable redefinition: new columns may only be
// appended and must be nullable.
func (cs *containerState) alter(info *native.ContainerInfo) error {
	cur := cs.info
	if info.Type != cur.Type || info.RowKeyAssigned != cur.RowKeyAssigned ||
		len(info.Columns) < len(cur.Columns) || !sameColumns(info.Columns, cur.Columns, len(cur.Columns)) {
		return fail(native.CodeSchemaConflict, "container %q cannot be altered this way", cur.Name)
	}
	added := len(info.Columns) - len(cur.Columns)
	if added == 0 {
		return nil
	}

	next := cloneInfo(info)
	next.Name = cur.Name
	for i := range cur.Columns {
		next.Columns[i].IndexTypeFlags = cur.Columns[i].IndexTypeFlags
	}
	for i := len(cur.Columns); i < len(next.Columns); i++ {
		if !nullable(&next, i) {
			return fail(native.CodeSchemaConflict, "added column %q must be nullable", next.Columns[i].Name)
		}
	}
	nextSchema := schemaOf(next)

	rows := btree.NewG(btreeDegree, lessFunc(next.RowKeyAssigned))
	var err error
	cs.rows.Ascend(func(e *entry) bool {
		var vals []any
		vals, err = record.DecodeRow(cs.schema, e.data)
		if err != nil {
			return false
		}
		vals = append(vals, make([]any, added)...)
		var data []byte
		data, err = record.EncodeRow(nextSchema, vals)
		if err != nil {
			return false
		}
		rows.ReplaceOrInsert(&entry{key: e.key, seq: e.seq, data: data})
		return true
	})
	if err != nil {
		return fail(native.CodeSchemaConflict, "re-encode rows of %q: %v", cur.Name, err)
	}

	cs.info = next
	cs.schema = nextSchema
	cs.rows = rows
	return nil
}
