package tql

import (
	"fmt"
	"strings"
	"time"
)

// Lookup resolves a column name to the current row's value.
type Lookup func(column string) (any, error)

// Eval evaluates a WHERE expression against one row. Comparisons against
// NULL only match with = and !=.
func Eval(e Expr, row Lookup) (bool, error) {
	switch x := e.(type) {
	case nil:
		return true, nil

	case *LogicalExpr:
		l, err := Eval(x.Left, row)
		if err != nil {
			return false, err
		}
		if x.Op == OpAnd && !l {
			return false, nil
		}
		if x.Op == OpOr && l {
			return true, nil
		}
		return Eval(x.Right, row)

	case *CompareExpr:
		v, err := row(x.Column)
		if err != nil {
			return false, err
		}
		lit := x.Value.Value
		if v == nil || lit == nil {
			switch x.Op {
			case OpEq:
				return v == nil && lit == nil, nil
			case OpNe:
				return (v == nil) != (lit == nil), nil
			}
			return false, nil
		}

		c, ok := Compare(v, lit)
		if !ok {
			return false, fmt.Errorf("cannot compare column %q (%T) with %T", x.Column, v, lit)
		}
		switch x.Op {
		case OpEq:
			return c == 0, nil
		case OpNe:
			return c != 0, nil
		case OpLt:
			return c < 0, nil
		case OpLe:
			return c <= 0, nil
		case OpGt:
			return c > 0, nil
		case OpGe:
			return c >= 0, nil
		}
		return false, fmt.Errorf("unsupported operator %q", x.Op)
	}
	return false, fmt.Errorf("unsupported expression %T", e)
}

// Compare orders two non-nil values. Integers and floats compare
// numerically with each other; strings, bools, times and byte slices
// compare within their own kind. ok is false for incomparable kinds.
func Compare(a, b any) (int, bool) {
	if ai, ok := toInt64(a); ok {
		if bi, ok := toInt64(b); ok {
			return cmp3(ai, bi), true
		}
	}
	if af, ok := toFloat64(a); ok {
		if bf, ok := toFloat64(b); ok {
			return cmp3(af, bf), true
		}
	}

	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			}
			return 1, true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return strings.Compare(string(x), string(y)), true
		}
	}
	return 0, false
}

func cmp3[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// ToFloat64 converts any numeric value for aggregation.
func ToFloat64(v any) (float64, bool) { return toFloat64(v) }

// ToInt64 converts any integer value for aggregation.
func ToInt64(v any) (int64, bool) { return toInt64(v) }
