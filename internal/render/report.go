package render

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/rswrz/timewarrior-extensions/internal/billing"
)

// WriteAbsorption prints one line per day on which admin time was absorbed.
func WriteAbsorption(w io.Writer, days []billing.AbsorptionDay) error {
	if len(days) == 0 {
		return nil
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Absorption:")
	for _, d := range days {
		fmt.Fprintf(bw, "  %s  slack %s  admin %s  absorbed %s  leftover %s (billed %s)\n",
			d.Date,
			FormatSeconds(d.SlackSeconds),
			FormatSeconds(d.AdminRawSeconds),
			FormatSeconds(d.AbsorbedSeconds),
			FormatSeconds(d.LeftoverRawSeconds),
			FormatMinutes(d.LeftoverBilledSeconds/60),
		)
	}
	return bw.Flush()
}

// Diagnostics collects everything a run wants to tell the user besides records.
type Diagnostics struct {
	Unmatched    []billing.UnmatchedInterval
	EngineIssues []billing.Issue
	InputIssues  []string
	Active       int
	Excluded     int
}

// DiagnosticsOf extracts the diagnostics of an engine result.
func DiagnosticsOf(res *billing.Result) Diagnostics {
	return Diagnostics{
		Unmatched:    res.Unmatched,
		EngineIssues: res.Issues,
		Active:       res.Active,
		Excluded:     res.Excluded,
	}
}

// Empty reports whether there is nothing to print.
func (d Diagnostics) Empty() bool {
	return len(d.Unmatched) == 0 && len(d.EngineIssues) == 0 && len(d.InputIssues) == 0 &&
		d.Active == 0 && d.Excluded == 0
}

// WriteDiagnostics prints unmatched intervals, skipped input and counters.
// Times are shown in loc.
func WriteDiagnostics(w io.Writer, d Diagnostics, loc *time.Location) error {
	if d.Empty() {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	bw := bufio.NewWriter(w)
	for _, u := range d.Unmatched {
		fmt.Fprintf(bw, "warning: %s: %s\n", u.Start.In(loc).Format("2006-01-02 15:04"), u.Unmatched.ProjectNote())
	}
	for _, is := range d.EngineIssues {
		fmt.Fprintf(bw, "warning: export element %d skipped: %s\n", is.Index, is.Reason)
	}
	for _, msg := range d.InputIssues {
		fmt.Fprintf(bw, "warning: %s\n", msg)
	}
	if d.Active > 0 {
		fmt.Fprintf(bw, "note: %d active interval(s) ignored\n", d.Active)
	}
	if d.Excluded > 0 {
		fmt.Fprintf(bw, "note: %d interval(s) excluded by tag\n", d.Excluded)
	}
	return bw.Flush()
}

// FormatSeconds renders seconds as H:MM:SS.
func FormatSeconds(s int64) string {
	return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}
