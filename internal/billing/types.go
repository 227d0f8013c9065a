// Package billing turns finished timewarrior intervals into billable line items.
//
// The pipeline runs in strict phases: resolve each interval's tags to a Mapping,
// atomize it into an unrounded Atom, merge atoms into DraftLineItems, optionally
// absorb administrative drafts into the day's rounding slack, and finalize each
// surviving draft with a single 15-minute rounding step. Every phase returns new
// values; nothing downstream mutates what an earlier phase produced.
package billing

import (
	"strings"
	"time"
)

const (
	// BlockSeconds is the billing granularity (15 minutes).
	BlockSeconds = 900

	DefaultType                = "Work"
	DefaultAnnotationDelimiter = "; "
	DefaultOutputSeparator     = "\n"
	DefaultMaxDescriptionChars = 500

	// hiddenMarker wraps segments that take part in merging but are never rendered.
	hiddenMarker = "++"
)

// Interval is one tracked time span as exported by timewarrior.
type Interval struct {
	Index      int // position in the source export, used in diagnostics
	Start      time.Time
	End        *time.Time // nil while the interval is still running
	Tags       []string
	Annotation string
}

// Active reports whether the interval has no end yet.
func (i Interval) Active() bool {
	return i.End == nil
}

// Ended filters out active intervals, keeping input order.
func Ended(intervals []Interval) (ended []Interval, active int) {
	ended = make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Active() {
			active++
			continue
		}
		ended = append(ended, iv)
	}
	return ended, active
}

// RefineOverrides holds per-mapping refiner settings. Nil fields inherit the run settings.
type RefineOverrides struct {
	Enabled     *bool
	Provider    *string
	Endpoint    *string
	Model       *string
	Temperature *float64
	Timeout     *time.Duration
	APIKey      *string
}

// Mapping binds a tag set to a billing target. Mappings are validated once at load
// time (see config.LoadMappings) and treated as read-only afterwards.
type Mapping struct {
	Tags          []string
	Project       string
	ProjectID     string // billed instead of Project when set
	ProjectTask   string
	ProjectTaskID string // billed instead of ProjectTask when set
	Role          string
	Type          string
	Multiplier    float64

	MergeOnEqualTags bool

	// DescriptionPrefix is injected as segment zero when non-nil.
	DescriptionPrefix *string
	ExternalComment   string

	AnnotationDelimiter string
	OutputSeparator     string

	Refine RefineOverrides
}

// BillingProject returns the project value written to the accounting system.
func (m *Mapping) BillingProject() string {
	if m.ProjectID != "" {
		return m.ProjectID
	}
	return m.Project
}

// BillingTask returns the project task value written to the accounting system.
func (m *Mapping) BillingTask() string {
	if m.ProjectTaskID != "" {
		return m.ProjectTaskID
	}
	return m.ProjectTask
}

// Key identifies a consolidation group.
type Key struct {
	Date        string // local calendar date, YYYY-MM-DD
	Project     string
	ProjectTask string
	Role        string
	Type        string
}

// Description is an ordered list of annotation segments.
type Description []string

// IsHidden reports whether a segment is wrapped in hidden markers (e.g. "++ref-42++").
func IsHidden(segment string) bool {
	return strings.HasPrefix(segment, hiddenMarker) && strings.HasSuffix(segment, hiddenMarker)
}

// Join renders all segments, hidden ones included, with delimiter.
func (d Description) Join(delimiter string) string {
	return strings.Join(d, delimiter)
}

// Title returns the first segment, or "" for an empty description.
func (d Description) Title() string {
	if len(d) == 0 {
		return ""
	}
	return d[0]
}

// Visible returns the segments that are shown to humans.
func (d Description) Visible() []string {
	visible := make([]string, 0, len(d))
	for _, s := range d {
		if !IsHidden(s) {
			visible = append(visible, s)
		}
	}
	return visible
}

// Equal reports whether both descriptions have the same segments in the same order.
func (d Description) Equal(other Description) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no backing array with d.
func (d Description) Clone() Description {
	out := make(Description, len(d))
	copy(out, d)
	return out
}

// union appends the segments of addition that d does not contain yet,
// keeping first-seen order. Duplicates already inside d are collapsed too.
func (d Description) union(addition []string) Description {
	seen := make(map[string]bool, len(d)+len(addition))
	out := make(Description, 0, len(d)+len(addition))
	for _, list := range [][]string{d, addition} {
		for _, s := range list {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Atom is one resolved, unrounded unit of tracked time derived from a single ended interval.
type Atom struct {
	Seq        int
	Date       string
	Key        Key
	RawSeconds int64
	Segments   Description
	Tags       []string
	Absorbable bool
	Excluded   bool

	// Display values are the human readable names; Key carries billing values.
	ProjectDisplay     string
	ProjectTaskDisplay string

	Multiplier       float64
	MergeOnEqualTags bool
	Delimiter        string
	OutputSeparator  string
	ExternalComment  string
	Refine           RefineOverrides
}

// DraftLineItem is a merged but not yet rounded billing unit.
type DraftLineItem struct {
	Seq         int // build order; sequence of the first contributing atom
	Key         Key
	RawSeconds  int64
	Description Description
	Tags        []string
	Absorbable  bool
	AtomCount   int

	ProjectDisplay     string
	ProjectTaskDisplay string

	Multiplier      float64
	Delimiter       string
	OutputSeparator string
	ExternalComment string
	Refine          RefineOverrides
}

// FinalRecord is the rounded output unit handed to renderers. It is never mutated;
// refinement produces a copy with a new Description.
type FinalRecord struct {
	Date               string      `json:"date"`
	Project            string      `json:"project"`
	ProjectTask        string      `json:"project_task"`
	ProjectDisplay     string      `json:"project_display"`
	ProjectTaskDisplay string      `json:"project_task_display"`
	Role               string      `json:"role"`
	Type               string      `json:"type"`
	DurationSeconds    int64       `json:"duration_seconds"`
	Description        Description `json:"description"`
	ExternalComment    string      `json:"external_comment"`

	Delimiter       string          `json:"-"`
	OutputSeparator string          `json:"-"`
	Refine          RefineOverrides `json:"-"`
}

// DurationMinutes returns the billed duration in whole minutes.
func (r FinalRecord) DurationMinutes() int64 {
	return r.DurationSeconds / 60
}

// RenderedDescription joins the visible segments with the record's output separator.
func (r FinalRecord) RenderedDescription() string {
	sep := r.OutputSeparator
	if sep == "" {
		sep = DefaultOutputSeparator
	}
	return strings.Join(r.Description.Visible(), sep)
}
