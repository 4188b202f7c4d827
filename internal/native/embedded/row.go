package embedded

import (
	"time"

	"github.com/tuannm99/novagrid/internal/native"
)

// row holds field values in their stored Go types. A nil value is NULL.
type row struct {
	d        *Driver
	types    []native.Type
	nullable []bool
	vals     []any
	closed   bool
}

var _ native.Row = (*row)(nil)

func newRow(d *Driver, info *native.ContainerInfo) *row {
	r := &row{
		d:        d,
		types:    make([]native.Type, len(info.Columns)),
		nullable: make([]bool, len(info.Columns)),
		vals:     make([]any, len(info.Columns)),
	}
	for i, c := range info.Columns {
		r.types[i] = c.Type
		r.nullable[i] = nullable(info, i)
		if !r.nullable[i] {
			r.vals[i] = zeroValue(c.Type)
		}
	}
	d.open.rows.Add(1)
	return r
}

func zeroValue(t native.Type) any {
	switch t {
	case native.TypeString, native.TypeGeometry:
		return ""
	case native.TypeBool:
		return false
	case native.TypeByte:
		return int8(0)
	case native.TypeShort:
		return int16(0)
	case native.TypeInteger:
		return int32(0)
	case native.TypeLong:
		return int64(0)
	case native.TypeFloat:
		return float32(0)
	case native.TypeDouble:
		return float64(0)
	case native.TypeTimestamp:
		return time.UnixMilli(0).UTC()
	case native.TypeBlob:
		return []byte{}
	}
	return nil
}

// matches reports whether r was shaped by a container with these columns.
func (r *row) matches(info *native.ContainerInfo) bool {
	if len(r.types) != len(info.Columns) {
		return false
	}
	for i, c := range info.Columns {
		if r.types[i] != c.Type {
			return false
		}
	}
	return true
}

func (r *row) check(col int, t native.Type) error {
	if r.closed {
		return errClosed("row")
	}
	if col < 0 || col >= len(r.types) {
		return fail(native.CodeOutOfRange, "column %d out of range (%d columns)", col, len(r.types))
	}
	if r.types[col] != t {
		return fail(native.CodeTypeMismatch, "column %d is %s, not %s", col, r.types[col], t)
	}
	return nil
}

func (r *row) set(col int, t native.Type, v any) error {
	if err := r.check(col, t); err != nil {
		return err
	}
	r.vals[col] = v
	return nil
}

func (r *row) ColumnCount() int { return len(r.types) }

func (r *row) SetString(col int, v string) error  { return r.set(col, native.TypeString, v) }
func (r *row) SetBool(col int, v bool) error      { return r.set(col, native.TypeBool, v) }
func (r *row) SetByte(col int, v int8) error      { return r.set(col, native.TypeByte, v) }
func (r *row) SetShort(col int, v int16) error    { return r.set(col, native.TypeShort, v) }
func (r *row) SetInteger(col int, v int32) error  { return r.set(col, native.TypeInteger, v) }
func (r *row) SetLong(col int, v int64) error     { return r.set(col, native.TypeLong, v) }
func (r *row) SetFloat(col int, v float32) error  { return r.set(col, native.TypeFloat, v) }
func (r *row) SetDouble(col int, v float64) error { return r.set(col, native.TypeDouble, v) }
func (r *row) SetGeometry(col int, v string) error {
	return r.set(col, native.TypeGeometry, v)
}
func (r *row) SetBlob(col int, v []byte) error {
	if v == nil {
		v = []byte{}
	}
	return r.set(col, native.TypeBlob, v)
}

func (r *row) SetTimestamp(col int, v time.Time) error {
	ms := v.UnixMilli()
	if ms < 0 || ms > native.MaxTimestampMillis {
		return fail(native.CodeOutOfRange, "timestamp %d out of range", ms)
	}
	return r.set(col, native.TypeTimestamp, native.TruncateTime(v))
}

func (r *row) SetNull(col int) error {
	if r.closed {
		return errClosed("row")
	}
	if col < 0 || col >= len(r.types) {
		return fail(native.CodeOutOfRange, "column %d out of range (%d columns)", col, len(r.types))
	}
	if !r.nullable[col] {
		return fail(native.CodeNullNotAllowed, "column %d is not nullable", col)
	}
	r.vals[col] = nil
	return nil
}

func getAs[T any](r *row, col int, t native.Type) (T, error) {
	var zero T
	if err := r.check(col, t); err != nil {
		return zero, err
	}
	if r.vals[col] == nil {
		return zero, nil
	}
	return r.vals[col].(T), nil
}

func (r *row) GetString(col int) (string, error) { return getAs[string](r, col, native.TypeString) }
func (r *row) GetBool(col int) (bool, error)     { return getAs[bool](r, col, native.TypeBool) }
func (r *row) GetByte(col int) (int8, error)     { return getAs[int8](r, col, native.TypeByte) }
func (r *row) GetShort(col int) (int16, error)   { return getAs[int16](r, col, native.TypeShort) }
func (r *row) GetInteger(col int) (int32, error) { return getAs[int32](r, col, native.TypeInteger) }
func (r *row) GetLong(col int) (int64, error)    { return getAs[int64](r, col, native.TypeLong) }
func (r *row) GetFloat(col int) (float32, error) { return getAs[float32](r, col, native.TypeFloat) }
func (r *row) GetDouble(col int) (float64, error) {
	return getAs[float64](r, col, native.TypeDouble)
}
func (r *row) GetTimestamp(col int) (time.Time, error) {
	return getAs[time.Time](r, col, native.TypeTimestamp)
}
func (r *row) GetGeometry(col int) (string, error) {
	return getAs[string](r, col, native.TypeGeometry)
}
func (r *row) GetBlob(col int) ([]byte, error) { return getAs[[]byte](r, col, native.TypeBlob) }

func (r *row) IsNull(col int) (bool, error) {
	if r.closed {
		return false, errClosed("row")
	}
	if col < 0 || col >= len(r.types) {
		return false, fail(native.CodeOutOfRange, "column %d out of range (%d columns)", col, len(r.types))
	}
	return r.vals[col] == nil, nil
}

// load replaces every field with vals, which the row takes ownership of.
func (r *row) load(vals []any) {
	copy(r.vals, vals)
}

// snapshot copies the field values out for storage.
func (r *row) snapshot() []any {
	out := make([]any, len(r.vals))
	copy(out, r.vals)
	return out
}

func (r *row) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.d.open.rows.Add(-1)
	return nil
}
