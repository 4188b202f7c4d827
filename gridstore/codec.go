package gridstore

import (
	"bytes"
	"math"
	"strings"
	"time"

	"github.com/tuannm99/novagrid/internal/native"
)

// Field is a decoded column value. Null is set for SQL NULL; Value is nil
// then. A zero value with Null unset is a real zero.
type Field struct {
	Value any
	Null  bool
}

// DecodeField reads column col of row as t.
func DecodeField(row native.Row, col int, t Type) (Field, error) {
	null, err := row.IsNull(col)
	if err != nil {
		return Field{}, nativeError("row", err)
	}
	if null {
		return Field{Null: true}, nil
	}

	var v any
	switch t {
	case TypeString:
		v, err = row.GetString(col)
		v = strings.Clone(v.(string))
	case TypeBool:
		v, err = row.GetBool(col)
	case TypeByte:
		v, err = row.GetByte(col)
	case TypeShort:
		v, err = row.GetShort(col)
	case TypeInteger:
		v, err = row.GetInteger(col)
	case TypeLong:
		v, err = row.GetLong(col)
	case TypeFloat:
		v, err = row.GetFloat(col)
	case TypeDouble:
		v, err = row.GetDouble(col)
	case TypeTimestamp:
		var ts time.Time
		ts, err = row.GetTimestamp(col)
		v = ts.UTC()
	case TypeGeometry:
		v, err = row.GetGeometry(col)
		v = strings.Clone(v.(string))
	case TypeBlob:
		var b []byte
		b, err = row.GetBlob(col)
		v = bytes.Clone(b)
		if v.([]byte) == nil {
			v = []byte{}
		}
	default:
		return Field{}, typeMismatch("cannot decode column %d of type %d", col, t)
	}
	if err != nil {
		return Field{}, nativeError("row", err)
	}
	return Field{Value: v}, nil
}

// Decode reads column col of row as t and returns its value, nil for NULL.
func Decode(row native.Row, col int, t Type) (any, error) {
	f, err := DecodeField(row, col, t)
	if err != nil {
		return nil, err
	}
	return f.Value, nil
}

// DecodeRow reads every column of row.
func DecodeRow(row native.Row, types []Type) ([]any, error) {
	out := make([]any, len(types))
	for i, t := range types {
		v, err := Decode(row, i, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Encode writes value into column col of row as t. A nil value or a Field
// with Null set writes NULL.
func Encode(value any, row native.Row, col int, t Type) error {
	if f, ok := value.(Field); ok {
		if f.Null {
			value = nil
		} else {
			value = f.Value
		}
	}
	if value == nil {
		return nativeError("row", row.SetNull(col))
	}

	var err error
	switch t {
	case TypeString, TypeGeometry:
		s, ok := value.(string)
		if !ok {
			return typeMismatch("column %d expects a string, got %T", col, value)
		}
		if t == TypeString {
			err = row.SetString(col, s)
		} else {
			err = row.SetGeometry(col, s)
		}
	case TypeBool:
		err = row.SetBool(col, truthy(value))
	case TypeByte:
		var n int64
		if n, err = integerIn(value, col, math.MinInt8, math.MaxInt8); err != nil {
			return err
		}
		err = row.SetByte(col, int8(n))
	case TypeShort:
		var n int64
		if n, err = integerIn(value, col, math.MinInt16, math.MaxInt16); err != nil {
			return err
		}
		err = row.SetShort(col, int16(n))
	case TypeInteger:
		var n int64
		if n, err = integerIn(value, col, math.MinInt32, math.MaxInt32); err != nil {
			return err
		}
		err = row.SetInteger(col, int32(n))
	case TypeLong:
		var n int64
		if n, err = integerIn(value, col, MinLong, MaxLong); err != nil {
			return err
		}
		err = row.SetLong(col, n)
	case TypeFloat:
		n, ok := numberOf(value)
		if !ok {
			return typeMismatch("column %d expects a number, got %T", col, value)
		}
		err = row.SetFloat(col, float32(n.f))
	case TypeDouble:
		n, ok := numberOf(value)
		if !ok {
			return typeMismatch("column %d expects a number, got %T", col, value)
		}
		err = row.SetDouble(col, n.f)
	case TypeTimestamp:
		ms, terr := ToTimestamp(value)
		if terr != nil {
			return terr
		}
		err = row.SetTimestamp(col, FromTimestamp(ms))
	case TypeBlob:
		b, ok := value.([]byte)
		if !ok {
			return typeMismatch("column %d expects []byte, got %T", col, value)
		}
		err = row.SetBlob(col, b)
	default:
		return typeMismatch("cannot encode column %d of type %d", col, t)
	}
	return nativeError("row", err)
}

// EncodeRow writes values into row. len(values) must equal len(types).
func EncodeRow(values []any, row native.Row, types []Type) error {
	if len(values) != len(types) {
		return argumentError("row has %d fields, expected %d", len(values), len(types))
	}
	for i, t := range types {
		if err := Encode(values[i], row, i, t); err != nil {
			return err
		}
	}
	return nil
}

type number struct {
	f        float64
	i        int64
	integral bool
}

// numberOf accepts any Go integer or float kind.
func numberOf(v any) (number, bool) {
	switch n := v.(type) {
	case int:
		return intNumber(int64(n)), true
	case int8:
		return intNumber(int64(n)), true
	case int16:
		return intNumber(int64(n)), true
	case int32:
		return intNumber(int64(n)), true
	case int64:
		return intNumber(n), true
	case uint:
		return uintNumber(uint64(n)), true
	case uint8:
		return intNumber(int64(n)), true
	case uint16:
		return intNumber(int64(n)), true
	case uint32:
		return intNumber(int64(n)), true
	case uint64:
		return uintNumber(n), true
	case float32:
		return floatNumber(float64(n)), true
	case float64:
		return floatNumber(n), true
	}
	return number{}, false
}

func intNumber(i int64) number { return number{f: float64(i), i: i, integral: true} }

func uintNumber(u uint64) number {
	if u > math.MaxInt64 {
		return number{f: float64(u)}
	}
	return intNumber(int64(u))
}

func floatNumber(f float64) number {
	n := number{f: f}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		n.i = int64(f)
		n.integral = true
	}
	return n
}

// truncated drops any fraction toward zero. ok is false for NaN, Inf and
// values outside int64.
func (n number) truncated() (int64, bool) {
	if n.integral {
		return n.i, true
	}
	t := math.Trunc(n.f)
	if math.IsNaN(t) || t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, false
	}
	return int64(t), true
}

func integerIn(v any, col int, lo, hi int64) (int64, error) {
	n, ok := numberOf(v)
	if !ok {
		return 0, typeMismatch("column %d expects a number, got %T", col, v)
	}
	i, ok := n.truncated()
	if !ok || i < lo || i > hi {
		return 0, rangeError("column %d value %v out of range [%d, %d]", col, v, lo, hi)
	}
	return i, nil
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b != ""
	case []byte:
		return len(b) != 0
	}
	if n, ok := numberOf(v); ok {
		return n.f != 0 && !math.IsNaN(n.f)
	}
	return true
}
