package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"

	"github.com/rswrz/timewarrior-extensions/internal/db"
	"github.com/rswrz/timewarrior-extensions/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageData contains common fields used across all page templates.
type PageData struct {
	Title     string
	Version   string
	Generated int64
}

// IndexPageData is the template data for the run index.
type IndexPageData struct {
	PageData
	Items []db.RunSummary
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"formatTime":     formatTime,
		"formatDuration": formatDuration,
		"formatRange":    formatRange,
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"index": "index.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}
}

// newDefaultRenderer parses the embedded templates.
func newDefaultRenderer(version string) *Renderer {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(fmt.Sprintf("template sub-FS: %v", err))
	}
	return NewRenderer(sub, version)
}

// renderPage renders a named page template with the given data to w.
func (r *Renderer) renderPage(w io.Writer, name string, data any) error {
	t, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	// Buffer so a failing template never leaves a half-written page.
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("execute template %q: %w", name, err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// formatDuration formats billed seconds as H:MM.
func formatDuration(seconds int64) string {
	return render.FormatMinutes(seconds / 60)
}

// formatRange formats the report range of a run, either end optional.
func formatRange(start, end *string) string {
	switch {
	case start != nil && end != nil:
		return *start + " to " + *end
	case end != nil:
		return "until " + *end
	case start != nil:
		return "from " + *start
	}
	return "-"
}
