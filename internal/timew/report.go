// Package timew reads the input timewarrior hands to report extensions: a
// "key: value" header block, a blank line and the `timew export` JSON payload.
package timew

import (
	"io"
	"strings"
	"time"

	"github.com/rswrz/timewarrior-extensions/internal/errors"
)

// Report is one extension invocation's input.
type Report struct {
	Header  map[string]string // Header keys as written by timewarrior, values without the line break
	Payload string            // Raw export JSON
}

// ReadReport reads everything from r and splits it with SplitReport.
func ReadReport(r io.Reader) (*Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewInvalidInput("reading report input: " + err.Error())
	}
	header, payload := SplitReport(string(data))
	return &Report{Header: header, Payload: payload}, nil
}

// SplitReport separates the header block from the JSON payload.
//
// Input without a blank line, input whose first block starts with "[" and a
// first block without any "key: value" line are treated as payload only.
func SplitReport(content string) (map[string]string, string) {
	header := map[string]string{}

	headerText, payload, found := strings.Cut(content, "\n\n")
	if !found {
		return header, content
	}
	if strings.TrimSpace(headerText) == "" || strings.HasPrefix(strings.TrimLeft(headerText, " \t\r\n"), "[") {
		return header, content
	}

	lines := strings.Split(headerText, "\n")
	hasPair := false
	for _, line := range lines {
		if strings.Contains(line, ": ") {
			hasPair = true
			break
		}
	}
	if !hasPair {
		return header, content
	}

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, _ := strings.Cut(line, ": ")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		header[key] = value
	}
	return header, payload
}

// Header keys timewarrior sets for the requested report range.
const (
	KeyRangeStart = "temp.report.start"
	KeyRangeEnd   = "temp.report.end"
)

var rangeLayouts = []string{TimeLayout, time.RFC3339, "2006-01-02"}

// Range returns the report range from the header, in loc. Both are nil when the
// header has no end. An end at local midnight after the start day is treated as
// the end of the previous day, so "2024-01-01 - 2024-02-01" covers January.
func (r *Report) Range(loc *time.Location) (start, end *time.Time) {
	if loc == nil {
		loc = time.Local
	}
	endValue := strings.TrimSpace(r.Header[KeyRangeEnd])
	if endValue == "" {
		return nil, nil
	}
	start = parseRangeTime(r.Header[KeyRangeStart], loc)
	end = parseRangeTime(endValue, loc)
	if start != nil && end != nil {
		h, m, s := end.Clock()
		if h == 0 && m == 0 && s == 0 && dateOf(*end) > dateOf(*start) {
			prev := end.AddDate(0, 0, -1)
			end = &prev
		}
	}
	return start, end
}

func parseRangeTime(v string, loc *time.Location) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	for _, layout := range rangeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			t = t.In(loc)
			return &t
		}
	}
	return nil
}

func dateOf(t time.Time) string {
	return t.Format("2006-01-02")
}
