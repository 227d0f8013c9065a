package render

import (
	"bufio"
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/rswrz/timewarrior-extensions/internal/billing"
)

// Document is everything a Markdown or HTML report shows.
type Document struct {
	Title      string
	Records    []billing.FinalRecord
	Absorption []billing.AbsorptionDay
}

var cellEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"|", `\|`,
	"\r", "",
	"\n", "<br>",
)

// WriteMarkdown renders doc as a GitHub flavored Markdown table.
func WriteMarkdown(w io.Writer, doc Document) error {
	bw := bufio.NewWriter(w)

	title := doc.Title
	if title == "" {
		title = "Dynamics report"
	}
	fmt.Fprintf(bw, "# %s\n\n", title)

	if len(doc.Records) == 0 {
		fmt.Fprintln(bw, "_No billable time._")
		return bw.Flush()
	}

	fmt.Fprintln(bw, "| Date | Project | Project Task | Role | Type | Description | External Comments | Duration |")
	fmt.Fprintln(bw, "|---|---|---|---|---|---|---|---:|")
	var total int64
	for _, rec := range doc.Records {
		total += rec.DurationMinutes()
		desc := strings.Join(rec.Description.Visible(), "\n")
		fmt.Fprintf(bw, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			cell(rec.Date),
			cell(rec.ProjectDisplay),
			cell(rec.ProjectTaskDisplay),
			cell(rec.Role),
			cell(rec.Type),
			cell(desc),
			cell(rec.ExternalComment),
			FormatMinutes(rec.DurationMinutes()),
		)
	}
	fmt.Fprintf(bw, "\n**Total:** %s\n", FormatTotal(total))

	if len(doc.Absorption) > 0 {
		fmt.Fprintln(bw, "\n## Absorption")
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, "| Date | Slack | Admin | Absorbed | Leftover | Leftover billed |")
		fmt.Fprintln(bw, "|---|---:|---:|---:|---:|---:|")
		for _, d := range doc.Absorption {
			fmt.Fprintf(bw, "| %s | %s | %s | %s | %s | %s |\n",
				d.Date,
				FormatSeconds(d.SlackSeconds),
				FormatSeconds(d.AdminRawSeconds),
				FormatSeconds(d.AbsorbedSeconds),
				FormatSeconds(d.LeftoverRawSeconds),
				FormatMinutes(d.LeftoverBilledSeconds/60),
			)
		}
	}
	return bw.Flush()
}

// cell escapes a value for a table cell. Markup from annotations is escaped,
// so the only raw HTML reaching goldmark is the <br> line breaks.
func cell(s string) string {
	return cellEscaper.Replace(s)
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// WriteHTML renders doc as a standalone HTML page.
func WriteHTML(w io.Writer, doc Document) error {
	var md bytes.Buffer
	if err := WriteMarkdown(&md, doc); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := markdown.Convert(md.Bytes(), &body); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}

	title := doc.Title
	if title == "" {
		title = "Dynamics report"
	}
	return pageTemplate.Execute(w, struct {
		Title string
		Body  template.HTML
	}{
		Title: title,
		Body:  template.HTML(body.String()),
	})
}
