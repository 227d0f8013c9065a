package timew

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rswrz/timewarrior-extensions/internal/billing"
	"github.com/rswrz/timewarrior-extensions/internal/errors"
)

// TimeLayout is the timestamp format of `timew export`.
const TimeLayout = "20060102T150405Z0700"

// entry is one element of the export array.
type entry struct {
	ID         int      `json:"id"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Tags       []string `json:"tags"`
	Annotation string   `json:"annotation"`
}

// Issue describes an export element that could not be turned into an interval.
type Issue struct {
	Index  int    `json:"index"`
	ID     int    `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// ParseExport decodes the export payload into intervals in loc.
// An empty payload yields no intervals. Elements that do not decode or carry
// unreadable timestamps are skipped and reported as issues; only a payload that
// is not a JSON array is an error. Interval.Index is the element's position.
func ParseExport(payload string, loc *time.Location) ([]billing.Interval, []Issue, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, nil, nil
	}
	if loc == nil {
		loc = time.Local
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &elements); err != nil {
		return nil, nil, errors.NewInvalidInput(fmt.Sprintf("export payload is not a JSON array: %v", err))
	}

	intervals := make([]billing.Interval, 0, len(elements))
	var issues []Issue
	for i, raw := range elements {
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			issues = append(issues, Issue{Index: i, Reason: fmt.Sprintf("unreadable element: %v", err)})
			continue
		}

		start, err := ParseTime(e.Start)
		if err != nil {
			issues = append(issues, Issue{Index: i, ID: e.ID, Reason: fmt.Sprintf("invalid start %q", e.Start)})
			continue
		}

		iv := billing.Interval{
			Index:      i,
			Start:      start.In(loc),
			Tags:       e.Tags,
			Annotation: e.Annotation,
		}
		if e.End != "" {
			end, err := ParseTime(e.End)
			if err != nil {
				issues = append(issues, Issue{Index: i, ID: e.ID, Reason: fmt.Sprintf("invalid end %q", e.End)})
				continue
			}
			end = end.In(loc)
			iv.End = &end
		}
		intervals = append(intervals, iv)
	}
	return intervals, issues, nil
}

// ParseTime parses one export timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}
