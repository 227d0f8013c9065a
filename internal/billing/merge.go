package billing

import "unicode/utf8"

// Merge consolidates atoms into draft line items in stable input order.
// Excluded atoms are dropped here and contribute nothing downstream.
//
// A candidate joins the first compatible draft that accepts it:
//   - identical segment sequence: always merged
//   - merge_on_equal_tags mapping: all segments unioned, if the length cap allows
//   - identical title segment: list segments unioned, if the length cap allows
//
// Candidates that no draft accepts start a new draft.
func Merge(atoms []Atom, opts Options) []DraftLineItem {
	limit := opts.maxDescriptionChars()
	drafts := make([]DraftLineItem, 0, len(atoms))

	for _, a := range atoms {
		if a.Excluded {
			continue
		}
		if mergeInto(drafts, a, opts, limit) {
			continue
		}
		drafts = append(drafts, newDraft(a))
	}
	return drafts
}

func mergeInto(drafts []DraftLineItem, a Atom, opts Options, limit int) bool {
	for i := range drafts {
		d := &drafts[i]
		if !compatible(d, a, opts) {
			continue
		}

		if d.Description.Equal(a.Segments) {
			d.addAtom(a)
			return true
		}

		fits := descriptionChars(d.Description, d.Delimiter)+descriptionChars(a.Segments, a.Delimiter) <= limit
		if !fits {
			continue
		}

		if a.MergeOnEqualTags {
			d.Description = d.Description.union(a.Segments)
			d.addAtom(a)
			return true
		}

		if d.Description.Title() == a.Segments.Title() {
			var rest []string
			if len(a.Segments) > 1 {
				rest = a.Segments[1:]
			}
			d.Description = d.Description.union(rest)
			d.addAtom(a)
			return true
		}
	}
	return false
}

// compatible reports whether an atom may be folded into a draft at all.
func compatible(d *DraftLineItem, a Atom, opts Options) bool {
	if opts.MergeOnDisplayValues {
		if d.Key.Date != a.Key.Date ||
			d.ProjectDisplay != a.ProjectDisplay ||
			d.ProjectTaskDisplay != a.ProjectTaskDisplay ||
			d.Key.Role != a.Key.Role ||
			d.Key.Type != a.Key.Type {
			return false
		}
	} else if d.Key != a.Key {
		return false
	}

	if d.Multiplier != a.Multiplier || d.Absorbable != a.Absorbable {
		return false
	}

	if opts.IncludeFormatInMerge {
		return d.Delimiter == a.Delimiter && d.OutputSeparator == a.OutputSeparator
	}
	return true
}

func newDraft(a Atom) DraftLineItem {
	return DraftLineItem{
		Seq:                a.Seq,
		Key:                a.Key,
		RawSeconds:         a.RawSeconds,
		Description:        a.Segments.Clone(),
		Tags:               append([]string(nil), a.Tags...),
		Absorbable:         a.Absorbable,
		AtomCount:          1,
		ProjectDisplay:     a.ProjectDisplay,
		ProjectTaskDisplay: a.ProjectTaskDisplay,
		Multiplier:         a.Multiplier,
		Delimiter:          a.Delimiter,
		OutputSeparator:    a.OutputSeparator,
		ExternalComment:    a.ExternalComment,
		Refine:             a.Refine,
	}
}

func (d *DraftLineItem) addAtom(a Atom) {
	d.RawSeconds += a.RawSeconds
	d.AtomCount++
}

// descriptionChars is the rendered length of a description in runes.
func descriptionChars(d Description, delimiter string) int {
	return utf8.RuneCountInString(d.Join(delimiter))
}
