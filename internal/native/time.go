package native

import (
	"strings"
	"time"
)

// MaxTimestampMillis is the largest representable timestamp,
// 9999-12-31T23:59:59.999Z.
const MaxTimestampMillis int64 = 253402300799999

const timeLayout = "2006-01-02T15:04:05.000Z"

var parseLayouts = []string{
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
}

// ParseTime parses the store's time string form
// (YYYY-MM-DDThh:mm:ss[.SSS](Z|+hh:mm)). ok is false for malformed input.
func ParseTime(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		parsed, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		ms := parsed.UnixMilli()
		if ms < 0 || ms > MaxTimestampMillis {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

// FormatTime renders t in UTC with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// TruncateTime drops precision below a millisecond.
func TruncateTime(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}
