package billing

import (
	"log/slog"
	"time"
)

// Options configures one consolidation run. The zero value is usable.
type Options struct {
	// ExcludeTags drops every interval carrying any of these tags.
	ExcludeTags []string

	// AbsorbTag enables the absorption pass for intervals carrying this tag.
	AbsorbTag string

	// DelimiterOverride and SeparatorOverride beat the per-mapping values when set.
	DelimiterOverride *string
	SeparatorOverride *string

	// MaxDescriptionChars caps merged descriptions (default 500).
	MaxDescriptionChars int

	// MergeOnDisplayValues compares human project names instead of billing ids.
	MergeOnDisplayValues bool

	// IncludeFormatInMerge keeps drafts with different delimiters or separators apart.
	IncludeFormatInMerge bool

	// Location determines calendar dates (default time.Local).
	Location *time.Location
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

func (o Options) maxDescriptionChars() int {
	if o.MaxDescriptionChars <= 0 {
		return DefaultMaxDescriptionChars
	}
	return o.MaxDescriptionChars
}

func (o Options) excludeSet() map[string]bool {
	if len(o.ExcludeTags) == 0 {
		return nil
	}
	set := make(map[string]bool, len(o.ExcludeTags))
	for _, t := range o.ExcludeTags {
		set[t] = true
	}
	return set
}

// UnmatchedInterval reports an interval that no mapping covered.
type UnmatchedInterval struct {
	Seq       int       `json:"seq"`
	Index     int       `json:"index"`
	Start     time.Time `json:"start"`
	Unmatched Unmatched `json:"unmatched"`
}

// Issue reports an interval skipped by the engine. Seq numbers ended intervals;
// Index is the interval's position in the source export.
type Issue struct {
	Seq    int    `json:"seq"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Result is everything a run produces for renderers and reporters.
type Result struct {
	Records    []FinalRecord       `json:"records"`
	Absorption []AbsorptionDay     `json:"absorption,omitempty"`
	Unmatched  []UnmatchedInterval `json:"unmatched,omitempty"`
	Issues     []Issue             `json:"issues,omitempty"`
	Active     int                 `json:"active"`
	Excluded   int                 `json:"excluded"`
}

// TotalSeconds sums the billed duration of all records.
func (r *Result) TotalSeconds() int64 {
	var total int64
	for _, rec := range r.Records {
		total += rec.DurationSeconds
	}
	return total
}

// Engine runs the consolidation pipeline against a fixed mapping list.
type Engine struct {
	mappings []Mapping
	opts     Options
	log      *slog.Logger
}

// NewEngine creates an Engine. mappings are copied; declaration order is kept.
func NewEngine(mappings []Mapping, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ms := make([]Mapping, len(mappings))
	copy(ms, mappings)
	return &Engine{
		mappings: ms,
		opts:     opts,
		log:      logger.With(slog.String("component", "billing")),
	}
}

// Run consolidates intervals into final records. Every phase materializes its full
// output before the next one starts.
func (e *Engine) Run(intervals []Interval) *Result {
	res := &Result{}

	ended, active := Ended(intervals)
	res.Active = active

	atoms := make([]Atom, 0, len(ended))
	for seq, iv := range ended {
		if iv.End.Before(iv.Start) {
			res.Issues = append(res.Issues, Issue{Seq: seq, Index: iv.Index, Reason: "end before start"})
			e.log.Warn("skipping interval", slog.Int("index", iv.Index), slog.String("reason", "end before start"))
			continue
		}

		resolution := Resolve(iv.Tags, e.mappings)
		atom := Atomize(seq, iv, resolution, e.opts)
		if atom.Excluded {
			res.Excluded++
			continue
		}
		if resolution.Unmatched != nil {
			res.Unmatched = append(res.Unmatched, UnmatchedInterval{
				Seq:       seq,
				Index:     iv.Index,
				Start:     iv.Start,
				Unmatched: *resolution.Unmatched,
			})
		}
		atoms = append(atoms, atom)
	}

	drafts := Merge(atoms, e.opts)
	e.log.Debug("merged atoms", slog.Int("atoms", len(atoms)), slog.Int("drafts", len(drafts)))

	drafts, res.Absorption = Absorb(drafts, e.opts.AbsorbTag)
	for _, day := range res.Absorption {
		e.log.Debug("absorbed admin time",
			slog.String("date", day.Date),
			slog.Int64("slack", day.SlackSeconds),
			slog.Int64("absorbed", day.AbsorbedSeconds),
			slog.Int64("leftover", day.LeftoverRawSeconds))
	}

	res.Records = make([]FinalRecord, 0, len(drafts))
	for _, d := range drafts {
		res.Records = append(res.Records, Finalize(d))
	}
	return res
}
