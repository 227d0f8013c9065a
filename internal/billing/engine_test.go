package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func engineMappings() []Mapping {
	return []Mapping{
		{Tags: []string{"A", "B"}, Project: "Acme", ProjectTask: "Build", Role: "Dev", Multiplier: 1},
		{Tags: []string{"A"}, Project: "Acme", ProjectTask: "General", Role: "Dev", Multiplier: 1},
		{
			Tags:              []string{"ops"},
			Project:           "Operations",
			ProjectID:         "OPS-1",
			ProjectTask:       "Run",
			Role:              "SRE",
			Type:              "Support",
			Multiplier:        1.5,
			DescriptionPrefix: strPtr("++ticket++"),
			ExternalComment:   "billed at 1.5x",
		},
		{Tags: []string{"admin"}, Project: "Internal", ProjectTask: "Admin", Role: "Dev", Multiplier: 1},
	}
}

func TestEngine_ContiguousIntervalsMergeWithoutRounding(t *testing.T) {
	intervals := []Interval{
		span(t, "2024-01-15 09:00", "2024-01-15 09:20", "Feature", "A", "B"),
		span(t, "2024-01-15 09:20", "2024-01-15 09:30", "Feature", "A", "B"),
	}

	// 1200s + 600s is exactly two blocks, so the merged line needs no rounding.
	var atoms []Atom
	for seq, iv := range intervals {
		atoms = append(atoms, Atomize(seq, iv, Resolve(iv.Tags, engineMappings()), utcOptions()))
	}
	drafts := Merge(atoms, utcOptions())
	require.Len(t, drafts, 1)
	require.EqualValues(t, 1800, drafts[0].RawSeconds)

	res := NewEngine(engineMappings(), utcOptions(), nil).Run(intervals)
	require.Len(t, res.Records, 1)
	require.EqualValues(t, 1800, res.Records[0].DurationSeconds)
	require.Equal(t, "Build", res.Records[0].ProjectTask)
}

func TestEngine_ContiguousIntervalsRoundMergedTotal(t *testing.T) {
	res := NewEngine(engineMappings(), utcOptions(), nil).Run([]Interval{
		span(t, "2024-01-15 09:00", "2024-01-15 09:20", "Feature", "A", "B"),
		span(t, "2024-01-15 09:20", "2024-01-15 09:50", "Feature", "A", "B"),
	})

	require.Len(t, res.Records, 1)
	// 3000s merged rounds up once to 3600s.
	require.EqualValues(t, 3600, res.Records[0].DurationSeconds)
}

func TestEngine_RoundsOncePerLineItem(t *testing.T) {
	engine := NewEngine(engineMappings(), utcOptions(), nil)

	res := engine.Run([]Interval{
		span(t, "2024-01-15 10:00", "2024-01-15 10:05", "Review", "A"),
		span(t, "2024-01-15 10:05", "2024-01-15 10:12", "Review", "A"),
	})

	require.Len(t, res.Records, 1)
	// 300s + 420s = 720s, one 15-minute block; rounding each piece would give 1800s.
	require.EqualValues(t, 900, res.Records[0].DurationSeconds)
}

func TestEngine_AbsorbsAdminTimeIntoSlack(t *testing.T) {
	opts := utcOptions()
	opts.AbsorbTag = "admin"
	engine := NewEngine(engineMappings(), opts, nil)

	res := engine.Run([]Interval{
		span(t, "2024-01-15 09:00:00", "2024-01-15 09:13:20", "Feature", "A", "B"), // 800s
		span(t, "2024-01-15 09:13:20", "2024-01-15 09:14:10", "Mail", "admin"),    // 50s
	})

	require.Len(t, res.Records, 1)
	require.Equal(t, "Acme", res.Records[0].Project)
	require.EqualValues(t, 900, res.Records[0].DurationSeconds)
	require.Len(t, res.Absorption, 1)
	require.EqualValues(t, 50, res.Absorption[0].AbsorbedSeconds)
}

func TestEngine_AbsorbTagNeverSeenIsNoop(t *testing.T) {
	opts := utcOptions()
	opts.AbsorbTag = "paperwork"
	engine := NewEngine(engineMappings(), opts, nil)

	res := engine.Run([]Interval{
		span(t, "2024-01-15 09:00", "2024-01-15 09:10", "Mail", "admin"),
	})

	require.Len(t, res.Records, 1)
	require.Empty(t, res.Absorption)
	require.EqualValues(t, 900, res.Records[0].DurationSeconds)
}

func TestEngine_UnmatchedIntervalsStayVisible(t *testing.T) {
	engine := NewEngine(engineMappings(), utcOptions(), nil)

	res := engine.Run([]Interval{
		span(t, "2024-01-15 09:00", "2024-01-15 09:30", "Something", "unknown", "tags"),
		span(t, "2024-01-15 10:00", "2024-01-15 10:30", "Untagged"),
	})

	require.Len(t, res.Records, 2)
	require.Equal(t, "NO PROJECT FOUND FOR THESE TAGS: unknown, tags", res.Records[0].Project)
	require.Equal(t, "-", res.Records[0].ProjectTask)
	require.Equal(t, "-", res.Records[0].Role)
	require.Equal(t, DefaultType, res.Records[0].Type)
	require.Equal(t, "NO TAGS DEFINED TO THIS TIME ENTRY", res.Records[1].Project)

	require.Len(t, res.Unmatched, 2)
	require.Equal(t, ReasonNoMatch, res.Unmatched[0].Unmatched.Reason)
	require.Equal(t, []string{"unknown", "tags"}, res.Unmatched[0].Unmatched.Tags)
	require.Equal(t, ReasonNoTags, res.Unmatched[1].Unmatched.Reason)
}

func TestEngine_DiagnosticsCarryExportIndex(t *testing.T) {
	engine := NewEngine(engineMappings(), utcOptions(), nil)

	running := Interval{Index: 0, Start: at(t, "2024-01-15 08:00"), Tags: []string{"A"}}
	backwards := span(t, "2024-01-15 10:00", "2024-01-15 09:00", "Oops", "A")
	backwards.Index = 2
	unknown := span(t, "2024-01-15 11:00", "2024-01-15 11:15", "", "nope")
	unknown.Index = 4

	res := engine.Run([]Interval{running, backwards, unknown})

	require.Len(t, res.Issues, 1)
	require.Equal(t, 0, res.Issues[0].Seq)
	require.Equal(t, 2, res.Issues[0].Index)
	require.Len(t, res.Unmatched, 1)
	require.Equal(t, 1, res.Unmatched[0].Seq)
	require.Equal(t, 4, res.Unmatched[0].Index)
}

func TestEngine_SkipsActiveAndExcludedIntervals(t *testing.T) {
	opts := utcOptions()
	opts.ExcludeTags = []string{"break"}
	engine := NewEngine(engineMappings(), opts, nil)

	running := Interval{Start: at(t, "2024-01-15 11:00"), Tags: []string{"A"}}
	res := engine.Run([]Interval{
		span(t, "2024-01-15 09:00", "2024-01-15 09:30", "Work", "A"),
		span(t, "2024-01-15 09:30", "2024-01-15 10:00", "Lunch", "A", "break"),
		running,
	})

	require.Len(t, res.Records, 1)
	require.EqualValues(t, 1800, res.Records[0].DurationSeconds)
	require.Equal(t, 1, res.Active)
	require.Equal(t, 1, res.Excluded)
}

func TestEngine_SkipsIntervalsEndingBeforeStart(t *testing.T) {
	engine := NewEngine(engineMappings(), utcOptions(), nil)

	res := engine.Run([]Interval{
		span(t, "2024-01-15 10:00", "2024-01-15 09:00", "Backwards", "A"),
		span(t, "2024-01-15 11:00", "2024-01-15 11:15", "Fine", "A"),
	})

	require.Len(t, res.Records, 1)
	require.Len(t, res.Issues, 1)
	require.Equal(t, 0, res.Issues[0].Seq)
}

func TestEngine_MappingDetails(t *testing.T) {
	engine := NewEngine(engineMappings(), utcOptions(), nil)

	res := engine.Run([]Interval{
		span(t, "2024-01-15 09:00", "2024-01-15 09:40", "Deploy; rollback plan", "ops"),
	})

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	require.Equal(t, "OPS-1", rec.Project)
	require.Equal(t, "Operations", rec.ProjectDisplay)
	require.Equal(t, "Support", rec.Type)
	require.Equal(t, "billed at 1.5x", rec.ExternalComment)
	// 2400s * 1.5 = 3600s
	require.EqualValues(t, 3600, rec.DurationSeconds)
	require.Equal(t, Description{"++ticket++", "Deploy", "rollback plan"}, rec.Description)
	require.Equal(t, []string{"Deploy", "rollback plan"}, rec.Description.Visible())
}

func TestEngine_DelimiterOverride(t *testing.T) {
	opts := utcOptions()
	opts.DelimiterOverride = strPtr(" | ")
	engine := NewEngine(engineMappings(), opts, nil)

	res := engine.Run([]Interval{
		span(t, "2024-01-15 09:00", "2024-01-15 09:15", "Spec | review", "A"),
	})

	require.Len(t, res.Records, 1)
	require.Equal(t, Description{"Spec", "review"}, res.Records[0].Description)
}

func TestEngine_DatesFollowLocation(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	opts := Options{Location: berlin}
	engine := NewEngine(engineMappings(), opts, nil)

	// 23:30 UTC is already the next day at UTC+1.
	res := engine.Run([]Interval{
		span(t, "2024-01-15 23:30", "2024-01-15 23:45", "Late", "A"),
	})

	require.Len(t, res.Records, 1)
	require.Equal(t, "2024-01-16", res.Records[0].Date)
}

func TestEngine_Deterministic(t *testing.T) {
	opts := utcOptions()
	opts.AbsorbTag = "admin"
	engine := NewEngine(engineMappings(), opts, nil)

	input := []Interval{
		span(t, "2024-01-15 08:00", "2024-01-15 08:07", "Mail", "admin"),
		span(t, "2024-01-15 08:07", "2024-01-15 09:01", "Feature; api", "A", "B"),
		span(t, "2024-01-15 09:01", "2024-01-15 09:44", "Feature; ui", "A", "B"),
		span(t, "2024-01-15 09:44", "2024-01-15 10:02", "Deploy", "ops"),
		span(t, "2024-01-16 08:00", "2024-01-16 08:20", "Mail", "admin"),
	}

	first := engine.Run(input)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, engine.Run(input))
	}
}
