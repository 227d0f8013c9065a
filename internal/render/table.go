package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rswrz/timewarrior-extensions/internal/billing"
)

const (
	ansiReset         = "\033[0m"
	ansiUnderline     = "\033[4m"
	ansiRowAlt        = "\033[48;2;26;26;26m"
	ansiNoDescription = "\033[38;2;238;162;87m"
)

// maxNameWidth caps the project and task columns.
const maxNameWidth = 32

var tableHeader = []string{
	"Date",
	"Project",
	"Project Task",
	"Role",
	"Type",
	"Description",
	"External Comments",
	"Duration",
}

// TableOptions controls terminal output.
type TableOptions struct {
	// Color enables underlined headers, striped records and highlighting of
	// records without a description.
	Color bool
}

type tableRow struct {
	cells  []string
	master bool // first line of a record
	record int
}

// WriteTable renders records as an aligned summary table with a grand total.
// Multi-line descriptions and external comments continue on extra lines.
func WriteTable(w io.Writer, records []billing.FinalRecord, opts TableOptions) error {
	var rows []tableRow
	var totalMinutes int64

	for i, rec := range records {
		totalMinutes += rec.DurationMinutes()

		sep := rec.OutputSeparator
		if sep == "" {
			sep = billing.DefaultOutputSeparator
		}
		desc := strings.Split(rec.RenderedDescription(), sep)
		ext := []string{""}
		if rec.ExternalComment != "" {
			ext = strings.Split(rec.ExternalComment, "\n")
		}
		lines := max(len(desc), len(ext))

		for l := 0; l < lines; l++ {
			row := tableRow{cells: make([]string, len(tableHeader)), master: l == 0, record: i}
			if l == 0 {
				row.cells[0] = rec.Date
				row.cells[1] = Truncate(rec.ProjectDisplay, maxNameWidth)
				row.cells[2] = Truncate(rec.ProjectTaskDisplay, maxNameWidth)
				row.cells[3] = rec.Role
				row.cells[4] = rec.Type
				row.cells[7] = FormatMinutes(rec.DurationMinutes())
			}
			if l < len(desc) {
				row.cells[5] = desc[l]
			}
			if l < len(ext) {
				row.cells[6] = ext[l]
			}
			rows = append(rows, row)
		}
	}

	widths := make([]int, len(tableHeader))
	for i, h := range tableHeader {
		widths[i] = width(h)
	}
	for _, r := range rows {
		for i, c := range r.cells {
			widths[i] = max(widths[i], width(c))
		}
	}

	bw := bufio.NewWriter(w)

	header := make([]string, len(tableHeader))
	for i, h := range tableHeader {
		cell := pad(h, widths[i], i == len(tableHeader)-1)
		if opts.Color {
			cell = ansiUnderline + cell + ansiReset
		}
		header[i] = cell
	}
	bw.WriteString(strings.Join(header, " "))
	bw.WriteString("\n")

	for _, r := range rows {
		line := formatRow(r.cells, widths)
		if opts.Color {
			switch {
			case r.master && r.cells[5] == "":
				line = ansiNoDescription + line + ansiReset
			case r.record%2 == 1:
				line = ansiRowAlt + line + ansiReset
			}
		}
		bw.WriteString(line)
		bw.WriteString("\n")
	}

	total := FormatTotal(totalMinutes)
	tableWidth := len(widths) - 1
	for _, wd := range widths {
		tableWidth += wd
	}
	if opts.Color {
		fmt.Fprintf(bw, "%s%s%s%s\n", strings.Repeat(" ", max(tableWidth-width(total), 0)), ansiUnderline, strings.Repeat(" ", width(total)), ansiReset)
	} else {
		fmt.Fprintf(bw, "%s%s\n", strings.Repeat(" ", max(tableWidth-width(total), 0)), strings.Repeat("-", width(total)))
	}
	fmt.Fprintf(bw, "%s%s\n", strings.Repeat(" ", max(tableWidth-width(total), 0)), total)

	return bw.Flush()
}

func formatRow(cells []string, widths []int) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = pad(c, widths[i], i == len(cells)-1)
	}
	return strings.Join(parts, " ")
}

// FormatMinutes renders minutes as H:MM.
func FormatMinutes(minutes int64) string {
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// FormatTotal renders minutes as H:MM:00.
func FormatTotal(minutes int64) string {
	return FormatMinutes(minutes) + ":00"
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}

func width(s string) int {
	return utf8.RuneCountInString(s)
}

func pad(s string, n int, right bool) string {
	gap := n - width(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}
