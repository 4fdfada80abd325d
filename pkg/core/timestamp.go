package core

import (
	"fmt"
	"strings"
	"time"
)

// zonelessLayouts are tried when the value carries no zone designator.
// Fractional seconds are accepted by time.Parse without being spelled out.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp normalizes a server timestamp to an absolute instant.
// Values carrying a zone designator (Z or ±hh:mm) are honored; values
// without one are interpreted as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}

	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatTimestamp renders t in the canonical UTC form used by drafts.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
