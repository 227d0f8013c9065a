// Package render turns consolidated records into the formats users consume:
// the accounting import CSV, a terminal table, and Markdown/HTML reports.
package render

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/rswrz/timewarrior-extensions/internal/billing"
)

// CSVHeader is the column order expected by the accounting import.
var CSVHeader = []string{
	"Date",
	"Duration",
	"Project",
	"Project Task",
	"Role",
	"Type",
	"Description",
	"External Comments",
}

var csvEscaper = strings.NewReplacer(`"`, `""`, `\`, `\\`)

// WriteCSV writes the header and one row per record. Every field is quoted and
// the last row has no trailing line break.
func WriteCSV(w io.Writer, records []billing.FinalRecord) error {
	bw := bufio.NewWriter(w)

	writeCSVRow(bw, CSVHeader)
	bw.WriteString("\n")
	for i, rec := range records {
		writeCSVRow(bw, []string{
			rec.Date,
			strconv.FormatInt(rec.DurationMinutes(), 10),
			rec.Project,
			rec.ProjectTask,
			rec.Role,
			rec.Type,
			rec.RenderedDescription(),
			rec.ExternalComment,
		})
		if i+1 < len(records) {
			bw.WriteString("\n")
		}
	}
	return bw.Flush()
}

func writeCSVRow(bw *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			bw.WriteByte(',')
		}
		bw.WriteByte('"')
		bw.WriteString(csvEscaper.Replace(f))
		bw.WriteByte('"')
	}
}
