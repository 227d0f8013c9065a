package billing

import (
	"testing"
	"time"
)

// at parses "2006-01-02 15:04:05" (or without seconds) in UTC.
func at(t *testing.T, s string) time.Time {
	t.Helper()
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if v, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return v
		}
	}
	t.Fatalf("bad timestamp %q", s)
	return time.Time{}
}

// span builds an ended interval.
func span(t *testing.T, start, end, annotation string, tags ...string) Interval {
	t.Helper()
	e := at(t, end)
	return Interval{Start: at(t, start), End: &e, Tags: tags, Annotation: annotation}
}

func utcOptions() Options {
	return Options{Location: time.UTC}
}

func strPtr(s string) *string {
	return &s
}
