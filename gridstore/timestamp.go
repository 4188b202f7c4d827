package gridstore

import (
	"math"
	"time"

	"github.com/tuannm99/novagrid/internal/native"
)

// ToTimestamp converts a time.Time, an ISO 8601 string or a number of
// milliseconds since the epoch to epoch milliseconds. Results outside
// [0, MaxTimestampMillis] are ErrRange.
func ToTimestamp(v any) (int64, error) {
	var ms int64
	switch t := v.(type) {
	case time.Time:
		ms = t.UnixMilli()
	case *time.Time:
		if t == nil {
			return 0, typeMismatch("timestamp is a nil *time.Time")
		}
		ms = t.UnixMilli()
	case string:
		parsed, ok := native.ParseTime(t)
		if !ok {
			return 0, argumentError("invalid timestamp %q", t)
		}
		ms = parsed.UnixMilli()
	default:
		n, ok := numberOf(v)
		if !ok {
			return 0, typeMismatch("cannot convert %T to a timestamp", v)
		}
		if n.integral {
			ms = n.i
		} else {
			if math.IsNaN(n.f) || n.f < 0 || n.f > float64(MaxTimestampMillis) {
				return 0, rangeError("timestamp %v out of range", n.f)
			}
			ms = int64(n.f)
		}
	}
	if ms < 0 || ms > MaxTimestampMillis {
		return 0, rangeError("timestamp %d out of range [0, %d]", ms, MaxTimestampMillis)
	}
	return ms, nil
}

// FromTimestamp converts epoch milliseconds to a UTC time.
func FromTimestamp(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
