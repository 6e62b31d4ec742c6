package domain

import (
	"fmt"
	"time"
)

// timestampLayouts are the input shapes accepted for due dates. Layouts
// without a zone are read as UTC; older clients send naive local stamps.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 date or date-time.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not an ISO-8601 timestamp", ErrInvalidFormat, s)
}

// FormatTimestamp renders t in the canonical wire format (RFC 3339, UTC,
// nanosecond precision when present).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
