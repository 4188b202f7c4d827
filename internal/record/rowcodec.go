package record

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tuannm99/novagrid/internal/alias/bx"
)

var (
	ErrSchemaMismatch  = errors.New("rowcodec: schema/values mismatch")
	ErrBadBuffer       = errors.New("rowcodec: buffer underflow/overflow")
	ErrVarTooLong      = errors.New("rowcodec: variable length exceeds limit")
	ErrUnsupportedType = errors.New("rowcodec: unsupported type")

	ErrSchemaMismatchNotAllowNull = fmt.Errorf("%w: null in non-nullable column", ErrSchemaMismatch)
	ErrSchemaMismatchNotInt32     = fmt.Errorf("%w: value is not int32", ErrSchemaMismatch)
	ErrSchemaMismatchType         = fmt.Errorf("%w: value type does not match column", ErrSchemaMismatch)
)

// EncodeRow packs values according to s.
//
// Format:
// [nullmap: ceil(N/8) bytes, bit=1 => NULL] | [field0 data?] [field1 data?] ...
// TEXT/GEOMETRY: u16 length (LE) + data. BYTES: u32 length (LE) + data.
// TIMESTAMP: i64 epoch milliseconds.
func EncodeRow(s Schema, values []any) ([]byte, error) {
	nc := s.NumCols()
	if len(values) != nc {
		return nil, ErrSchemaMismatch
	}

	nbBytes := (nc + 7) / 8
	out := make([]byte, nbBytes)

	for i, col := range s.Cols {
		v := values[i]
		if v == nil {
			if !col.Nullable {
				return nil, fmt.Errorf("column %q: %w", col.Name, ErrSchemaMismatchNotAllowNull)
			}
			out[i/8] |= 1 << (uint(i) & 7)
			continue
		}

		var err error
		out, err = appendField(out, col, v)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func appendField(out []byte, col Column, v any) ([]byte, error) {
	mismatch := func() error {
		return fmt.Errorf("column %q got %T: %w", col.Name, v, ErrSchemaMismatchType)
	}

	switch col.Type {
	case ColInt8:
		x, ok := v.(int8)
		if !ok {
			return nil, mismatch()
		}
		return append(out, byte(x)), nil

	case ColInt16:
		x, ok := v.(int16)
		if !ok {
			return nil, mismatch()
		}
		return bx.AppendU16(out, uint16(x)), nil

	case ColInt32:
		x, ok := asInt32(v)
		if !ok {
			return nil, fmt.Errorf("column %q: %w", col.Name, ErrSchemaMismatchNotInt32)
		}
		return bx.AppendU32(out, uint32(x)), nil

	case ColInt64:
		x, ok := asInt64(v)
		if !ok {
			return nil, mismatch()
		}
		return bx.AppendU64(out, uint64(x)), nil

	case ColBool:
		x, ok := v.(bool)
		if !ok {
			return nil, mismatch()
		}
		if x {
			return append(out, 1), nil
		}
		return append(out, 0), nil

	case ColFloat32:
		x, ok := v.(float32)
		if !ok {
			return nil, mismatch()
		}
		return bx.AppendU32(out, math.Float32bits(x)), nil

	case ColFloat64:
		x, ok := asFloat64(v)
		if !ok {
			return nil, mismatch()
		}
		return bx.AppendU64(out, math.Float64bits(x)), nil

	case ColTimestamp:
		x, ok := v.(time.Time)
		if !ok {
			return nil, mismatch()
		}
		return bx.AppendU64(out, uint64(x.UnixMilli())), nil

	case ColText, ColGeometry:
		str, ok := v.(string)
		if !ok {
			return nil, mismatch()
		}
		if len(str) > math.MaxUint16 {
			return nil, ErrVarTooLong
		}
		out = bx.AppendU16(out, uint16(len(str)))
		return append(out, str...), nil

	case ColBytes:
		bs, ok := v.([]byte)
		if !ok {
			return nil, mismatch()
		}
		if uint64(len(bs)) > math.MaxUint32 {
			return nil, ErrVarTooLong
		}
		out = bx.AppendU32(out, uint32(len(bs)))
		return append(out, bs...), nil
	}
	return nil, ErrUnsupportedType
}

// DecodeRow unpacks buf according to s. Byte fields are copied out of buf.
func DecodeRow(s Schema, buf []byte) ([]any, error) {
	nc := s.NumCols()
	nbBytes := (nc + 7) / 8
	if len(buf) < nbBytes {
		return nil, ErrBadBuffer
	}
	nullmap := buf[:nbBytes]
	i := nbBytes

	need := func(n int) bool { return i+n <= len(buf) }

	out := make([]any, nc)
	for colIdx, col := range s.Cols {
		if (nullmap[colIdx/8]>>(uint(colIdx)&7))&1 == 1 {
			continue
		}

		switch col.Type {
		case ColInt8:
			if !need(1) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = int8(buf[i])
			i++

		case ColInt16:
			if !need(2) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = bx.I16(buf[i : i+2])
			i += 2

		case ColInt32:
			if !need(4) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = bx.I32(buf[i : i+4])
			i += 4

		case ColInt64:
			if !need(8) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = bx.I64(buf[i : i+8])
			i += 8

		case ColBool:
			if !need(1) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = buf[i] != 0
			i++

		case ColFloat32:
			if !need(4) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = math.Float32frombits(bx.U32(buf[i : i+4]))
			i += 4

		case ColFloat64:
			if !need(8) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = math.Float64frombits(bx.U64(buf[i : i+8]))
			i += 8

		case ColTimestamp:
			if !need(8) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = time.UnixMilli(bx.I64(buf[i : i+8])).UTC()
			i += 8

		case ColText, ColGeometry:
			if !need(2) {
				return nil, ErrBadBuffer
			}
			l := int(bx.U16(buf[i : i+2]))
			i += 2
			if !need(l) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = string(buf[i : i+l])
			i += l

		case ColBytes:
			if !need(4) {
				return nil, ErrBadBuffer
			}
			l := int(bx.U32(buf[i : i+4]))
			i += 4
			if !need(l) {
				return nil, ErrBadBuffer
			}
			// copy so callers never alias the stored buffer
			cp := make([]byte, l)
			copy(cp, buf[i:i+l])
			out[colIdx] = cp
			i += l

		default:
			return nil, ErrUnsupportedType
		}
	}
	return out, nil
}

func asInt32(v any) (int32, bool) {
	switch x := v.(type) {
	case int32:
		return x, true
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return int32(x), true
		}
	case int64:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return int32(x), true
		}
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	return 0, false
}
