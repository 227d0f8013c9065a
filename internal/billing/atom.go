package billing

import (
	"strings"
	"time"
)

// Atomize converts one ended interval and its resolution into an Atom.
// The caller must pass an ended interval; RawSeconds is exact end - start.
func Atomize(seq int, iv Interval, res Resolution, opts Options) Atom {
	loc := opts.location()
	date := iv.Start.In(loc).Format("2006-01-02")

	var raw int64
	if iv.End != nil {
		raw = int64(iv.End.Sub(iv.Start) / time.Second)
	}

	atom := Atom{
		Seq:        seq,
		Date:       date,
		RawSeconds: raw,
		Tags:       append([]string(nil), iv.Tags...),
		Absorbable: IsAbsorbable(iv.Tags, opts.AbsorbTag),
		Excluded:   HasExcludedTag(iv.Tags, opts.excludeSet()),
	}

	if res.Mapping == nil {
		note := res.Unmatched.ProjectNote()
		atom.Key = Key{Date: date, Project: note, ProjectTask: "-", Role: "-", Type: DefaultType}
		atom.ProjectDisplay = note
		atom.ProjectTaskDisplay = "-"
		atom.Multiplier = 1
		atom.Delimiter = pick(opts.DelimiterOverride, "", DefaultAnnotationDelimiter)
		atom.OutputSeparator = pick(opts.SeparatorOverride, "", DefaultOutputSeparator)
		atom.Segments = splitSegments(iv.Annotation, nil, atom.Delimiter)
		return atom
	}

	m := res.Mapping
	typ := m.Type
	if typ == "" {
		typ = DefaultType
	}
	mult := m.Multiplier
	if mult <= 0 {
		mult = 1
	}

	atom.Key = Key{
		Date:        date,
		Project:     m.BillingProject(),
		ProjectTask: m.BillingTask(),
		Role:        m.Role,
		Type:        typ,
	}
	atom.ProjectDisplay = m.Project
	if atom.ProjectDisplay == "" {
		atom.ProjectDisplay = atom.Key.Project
	}
	atom.ProjectTaskDisplay = m.ProjectTask
	if atom.ProjectTaskDisplay == "" {
		atom.ProjectTaskDisplay = atom.Key.ProjectTask
	}
	atom.Multiplier = mult
	atom.MergeOnEqualTags = m.MergeOnEqualTags
	atom.Delimiter = pick(opts.DelimiterOverride, m.AnnotationDelimiter, DefaultAnnotationDelimiter)
	atom.OutputSeparator = pick(opts.SeparatorOverride, m.OutputSeparator, DefaultOutputSeparator)
	atom.ExternalComment = m.ExternalComment
	atom.Refine = m.Refine
	atom.Segments = splitSegments(iv.Annotation, m.DescriptionPrefix, atom.Delimiter)
	return atom
}

// splitSegments splits an annotation on delimiter and prepends prefix when set.
// An empty annotation yields a single empty segment, matching how a joined
// description round-trips through the delimiter.
func splitSegments(annotation string, prefix *string, delimiter string) Description {
	segments := strings.Split(annotation, delimiter)
	if prefix == nil {
		return segments
	}
	return append(Description{*prefix}, segments...)
}

// pick returns override when set, else value; an empty result falls back to def.
func pick(override *string, value, def string) string {
	if override != nil {
		value = *override
	}
	if value != "" {
		return value
	}
	return def
}
