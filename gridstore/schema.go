package gridstore

import (
	"slices"
	"strings"

	"github.com/tuannm99/novagrid/internal/native"
)

// ColumnInfo describes one column of a container.
type ColumnInfo struct {
	Name    string
	Type    Type
	Options TypeOption
	// IndexFlags is reported by the store; it is ignored when defining a
	// container. Use Container.CreateIndex instead.
	IndexFlags IndexTypeFlags
}

// ExpirationInfo configures row expiration of a time series.
type ExpirationInfo struct {
	Time          int32
	Unit          TimeUnit
	DivisionCount int32
}

func NewExpirationInfo(t int32, unit TimeUnit, divisionCount int32) (*ExpirationInfo, error) {
	e := &ExpirationInfo{Time: t, Unit: unit, DivisionCount: divisionCount}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *ExpirationInfo) validate() error {
	if !e.Unit.Valid() {
		return argumentError("invalid expiration time unit %d", e.Unit)
	}
	if e.Time < 0 {
		return rangeError("negative expiration time %d", e.Time)
	}
	return nil
}

// ContainerDef is the typed form of a container definition.
type ContainerDef struct {
	Name                 string
	Type                 ContainerType
	Columns              []ColumnInfo
	RowKey               bool
	Expiration           *ExpirationInfo
	ColumnOrderIgnorable bool
	DataAffinity         string
}

// ContainerInfo is an owned container schema. Every accessor copies, so
// values read from or handed to a ContainerInfo never alias its state.
type ContainerInfo struct {
	name                 string
	typ                  ContainerType
	columns              []ColumnInfo
	rowKey               bool
	expiration           *ExpirationInfo
	columnOrderIgnorable bool
	dataAffinity         string
}

func NewContainerInfo(def ContainerDef) (*ContainerInfo, error) {
	ci := &ContainerInfo{
		columnOrderIgnorable: def.ColumnOrderIgnorable,
		dataAffinity:         def.DataAffinity,
	}
	if err := ci.SetName(def.Name); err != nil {
		return nil, err
	}
	if err := ci.SetType(def.Type); err != nil {
		return nil, err
	}
	if err := ci.SetColumns(def.Columns); err != nil {
		return nil, err
	}
	ci.rowKey = def.RowKey
	if def.Expiration != nil {
		if err := ci.SetExpiration(def.Expiration); err != nil {
			return nil, err
		}
	}
	return ci, nil
}

// ParseContainerInfo builds a ContainerInfo from a loosely typed descriptor
// such as decoded JSON:
//
//	{"name": "sensors", "type": 1, "rowKey": true,
//	 "columnInfoList": [["ts", 8], ["value", 7, 2]],
//	 "expiration": {"time": 30, "unit": 2, "divisionCount": 8}}
//
// Each column entry is [name, type] or [name, type, options]. type may be
// a number or a type name such as "TIMESTAMP".
func ParseContainerInfo(desc map[string]any) (*ContainerInfo, error) {
	rawName, ok := desc["name"]
	if !ok {
		return nil, argumentError("container descriptor has no name")
	}
	name, ok := rawName.(string)
	if !ok {
		return nil, argumentError("container name must be a string, got %T", rawName)
	}

	ci := &ContainerInfo{rowKey: true}
	if err := ci.SetName(name); err != nil {
		return nil, err
	}

	raw, ok := desc["columnInfoList"]
	if !ok {
		return nil, argumentError("container descriptor has no columnInfoList")
	}
	if err := ci.SetColumnList(raw); err != nil {
		return nil, err
	}

	if raw, ok := desc["type"]; ok {
		n, err := intOf(raw, "container type")
		if err != nil {
			return nil, err
		}
		if err := ci.SetType(ContainerType(n)); err != nil {
			return nil, err
		}
	}

	if raw, ok := desc["rowKey"]; ok {
		b, ok := raw.(bool)
		if !ok {
			return nil, typeMismatch("rowKey must be a bool, got %T", raw)
		}
		ci.rowKey = b
	}

	if raw, ok := desc["expiration"]; ok && raw != nil {
		exp, err := parseExpiration(raw)
		if err != nil {
			return nil, err
		}
		if err := ci.SetExpiration(exp); err != nil {
			return nil, err
		}
	}
	return ci, nil
}

func parseExpiration(raw any) (*ExpirationInfo, error) {
	switch v := raw.(type) {
	case *ExpirationInfo:
		return v, nil
	case ExpirationInfo:
		return &v, nil
	case map[string]any:
		var vals [3]int64
		for i, key := range []string{"time", "unit", "divisionCount"} {
			f, ok := v[key]
			if !ok {
				continue
			}
			n, err := intOf(f, "expiration "+key)
			if err != nil {
				return nil, err
			}
			vals[i] = n
		}
		return NewExpirationInfo(int32(vals[0]), TimeUnit(vals[1]), int32(vals[2]))
	}
	return nil, typeMismatch("expiration must be an ExpirationInfo or a map, got %T", raw)
}

// intOf accepts any integral number, including float64 from JSON.
func intOf(v any, what string) (int64, error) {
	n, ok := numberOf(v)
	if !ok {
		return 0, typeMismatch("%s must be a number, got %T", what, v)
	}
	if !n.integral {
		return 0, typeMismatch("%s must be an integer, got %v", what, v)
	}
	return n.i, nil
}

func (ci *ContainerInfo) Name() string { return ci.name }

func (ci *ContainerInfo) SetName(name string) error {
	if name == "" {
		return argumentError("container name is empty")
	}
	ci.name = strings.Clone(name)
	return nil
}

func (ci *ContainerInfo) Type() ContainerType { return ci.typ }

func (ci *ContainerInfo) SetType(t ContainerType) error {
	if t != Collection && t != TimeSeries {
		return argumentError("invalid container type %d", t)
	}
	ci.typ = t
	return nil
}

func (ci *ContainerInfo) RowKey() bool { return ci.rowKey }

func (ci *ContainerInfo) SetRowKey(assigned bool) { ci.rowKey = assigned }

// Columns returns a copy of the column list.
func (ci *ContainerInfo) Columns() []ColumnInfo {
	return cloneColumns(ci.columns)
}

func (ci *ContainerInfo) SetColumns(cols []ColumnInfo) error {
	if len(cols) == 0 {
		return argumentError("container %q has no columns", ci.name)
	}
	for i, c := range cols {
		if c.Name == "" {
			return argumentError("column %d has no name", i)
		}
		if !c.Type.Valid() {
			return argumentError("column %q has invalid type %d", c.Name, c.Type)
		}
	}
	ci.columns = cloneColumns(cols)
	return nil
}

// SetColumnList replaces the columns from raw [name, type, options?]
// entries.
func (ci *ContainerInfo) SetColumnList(raw any) error {
	list, ok := raw.([]any)
	if !ok {
		return argumentError("column list must be a list, got %T", raw)
	}
	cols := make([]ColumnInfo, 0, len(list))
	for i, item := range list {
		c, err := parseColumn(i, item)
		if err != nil {
			return err
		}
		cols = append(cols, c)
	}
	return ci.SetColumns(cols)
}

func parseColumn(i int, item any) (ColumnInfo, error) {
	if c, ok := item.(ColumnInfo); ok {
		return c, nil
	}
	entry, ok := item.([]any)
	if !ok {
		return ColumnInfo{}, argumentError("column %d must be a list, got %T", i, item)
	}
	if len(entry) < 2 || len(entry) > 3 {
		return ColumnInfo{}, argumentError("column %d must have 2 or 3 fields, got %d", i, len(entry))
	}

	name, ok := entry[0].(string)
	if !ok {
		return ColumnInfo{}, argumentError("column %d name must be a string, got %T", i, entry[0])
	}

	var typ Type
	switch t := entry[1].(type) {
	case string:
		parsed, ok := native.ParseType(strings.ToUpper(t))
		if !ok {
			return ColumnInfo{}, argumentError("column %q has unknown type %q", name, t)
		}
		typ = parsed
	case Type:
		typ = t
	default:
		n, ok := numberOf(t)
		if !ok || !n.integral {
			return ColumnInfo{}, argumentError("column %q type must be an integer or a type name, got %v", name, t)
		}
		typ = Type(n.i)
	}

	var opts TypeOption
	if len(entry) == 3 {
		switch o := entry[2].(type) {
		case TypeOption:
			opts = o
		default:
			n, ok := numberOf(o)
			if !ok || !n.integral {
				return ColumnInfo{}, argumentError("column %q options must be an integer, got %v", name, o)
			}
			opts = TypeOption(n.i)
		}
	}
	return ColumnInfo{Name: name, Type: typ, Options: opts}, nil
}

// Expiration returns a copy of the expiration settings, or nil.
func (ci *ContainerInfo) Expiration() *ExpirationInfo {
	if ci.expiration == nil {
		return nil
	}
	e := *ci.expiration
	return &e
}

// SetExpiration stores a copy of e; nil clears it.
func (ci *ContainerInfo) SetExpiration(e *ExpirationInfo) error {
	if e == nil {
		ci.expiration = nil
		return nil
	}
	if err := e.validate(); err != nil {
		return err
	}
	cp := *e
	ci.expiration = &cp
	return nil
}

func (ci *ContainerInfo) ColumnOrderIgnorable() bool { return ci.columnOrderIgnorable }

func (ci *ContainerInfo) DataAffinity() string { return ci.dataAffinity }

// Clone returns a deep copy.
func (ci *ContainerInfo) Clone() *ContainerInfo {
	out := *ci
	out.columns = cloneColumns(ci.columns)
	out.expiration = ci.Expiration()
	return &out
}

func (ci *ContainerInfo) columnTypes() []Type {
	types := make([]Type, len(ci.columns))
	for i, c := range ci.columns {
		types[i] = c.Type
	}
	return types
}

func (ci *ContainerInfo) toNative() *native.ContainerInfo {
	n := &native.ContainerInfo{
		Name:                 ci.name,
		Type:                 ci.typ,
		Columns:              make([]native.ColumnInfo, len(ci.columns)),
		RowKeyAssigned:       ci.rowKey,
		ColumnOrderIgnorable: ci.columnOrderIgnorable,
		DataAffinity:         ci.dataAffinity,
	}
	for i, c := range ci.columns {
		n.Columns[i] = native.ColumnInfo{Name: c.Name, Type: c.Type, Options: c.Options}
	}
	if ci.expiration != nil {
		n.TimeSeriesProperties = &native.TimeSeriesProperties{
			RowExpirationTime:       ci.expiration.Time,
			RowExpirationTimeUnit:   ci.expiration.Unit,
			ExpirationDivisionCount: ci.expiration.DivisionCount,
		}
	}
	return n
}

// containerInfoFromNative copies n; the result shares no memory with it.
func containerInfoFromNative(n *native.ContainerInfo) *ContainerInfo {
	ci := &ContainerInfo{
		name:                 strings.Clone(n.Name),
		typ:                  n.Type,
		columns:              make([]ColumnInfo, len(n.Columns)),
		rowKey:               n.RowKeyAssigned,
		columnOrderIgnorable: n.ColumnOrderIgnorable,
		dataAffinity:         strings.Clone(n.DataAffinity),
	}
	for i, c := range n.Columns {
		ci.columns[i] = ColumnInfo{
			Name:       strings.Clone(c.Name),
			Type:       c.Type,
			Options:    c.Options,
			IndexFlags: c.IndexTypeFlags,
		}
	}
	if p := n.TimeSeriesProperties; p != nil {
		ci.expiration = &ExpirationInfo{
			Time:          p.RowExpirationTime,
			Unit:          p.RowExpirationTimeUnit,
			DivisionCount: p.ExpirationDivisionCount,
		}
	}
	return ci
}

func cloneColumns(cols []ColumnInfo) []ColumnInfo {
	out := slices.Clone(cols)
	for i := range out {
		out[i].Name = strings.Clone(out[i].Name)
	}
	return out
}
