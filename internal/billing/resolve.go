package billing

import (
	"fmt"
	"strings"
)

// UnmatchedReason explains why no mapping was found.
type UnmatchedReason string

const (
	ReasonNoTags  UnmatchedReason = "no_tags"
	ReasonNoMatch UnmatchedReason = "no_match"
)

// Unmatched is the resolver's sentinel for intervals without a mapping.
type Unmatched struct {
	Reason UnmatchedReason `json:"reason"`
	Tags   []string        `json:"tags,omitempty"`
}

// ProjectNote is the fallback project text that keeps the gap visible in output.
func (u Unmatched) ProjectNote() string {
	if u.Reason == ReasonNoTags {
		return "NO TAGS DEFINED TO THIS TIME ENTRY"
	}
	return fmt.Sprintf("NO PROJECT FOUND FOR THESE TAGS: %s", strings.Join(u.Tags, ", "))
}

// Resolution is the outcome of matching one tag set. Exactly one of Mapping and
// Unmatched is non-nil.
type Resolution struct {
	Mapping   *Mapping
	Index     int // declaration index of Mapping, -1 when unmatched
	Unmatched *Unmatched
}

// Resolve picks the best mapping for tags.
//
// An exact tag-set match wins immediately. Otherwise the mapping whose tags are a
// strict subset of the interval's tags with the fewest leftover tags wins. Ties go
// to the mapping declared first; iteration over the slice preserves that order.
func Resolve(tags []string, mappings []Mapping) Resolution {
	set := toSet(tags)

	best := -1
	bestDiff := 0
	for i := range mappings {
		mtags := toSet(mappings[i].Tags)
		if equalSets(mtags, set) {
			return Resolution{Mapping: &mappings[i], Index: i}
		}
		if !strictSubset(mtags, set) {
			continue
		}
		diff := len(set) - len(mtags)
		if best == -1 || diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}

	if best >= 0 {
		return Resolution{Mapping: &mappings[best], Index: best}
	}

	if len(set) == 0 {
		return Resolution{Index: -1, Unmatched: &Unmatched{Reason: ReasonNoTags}}
	}
	return Resolution{Index: -1, Unmatched: &Unmatched{Reason: ReasonNoMatch, Tags: append([]string(nil), tags...)}}
}

// IsAbsorbable reports whether tags contain absorbTag. It is independent of mapping
// resolution: the absorb tag may sit next to ordinary project tags.
func IsAbsorbable(tags []string, absorbTag string) bool {
	if absorbTag == "" {
		return false
	}
	for _, t := range tags {
		if t == absorbTag {
			return true
		}
	}
	return false
}

// HasExcludedTag reports whether any tag is in the exclusion list.
func HasExcludedTag(tags []string, excluded map[string]bool) bool {
	if len(excluded) == 0 {
		return false
	}
	for _, t := range tags {
		if excluded[t] {
			return true
		}
	}
	return false
}

func toSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return set
}

func equalSets(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for t := range a {
		if !b[t] {
			return false
		}
	}
	return true
}

// strictSubset reports whether a ⊂ b.
func strictSubset(a, b map[string]bool) bool {
	if len(a) >= len(b) {
		return false
	}
	for t := range a {
		if !b[t] {
			return false
		}
	}
	return true
}
