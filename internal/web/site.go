// Package web publishes the run archive as a static HTML site.
package web

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rswrz/timewarrior-extensions/internal/db"
	"github.com/rswrz/timewarrior-extensions/internal/errors"
	"github.com/rswrz/timewarrior-extensions/internal/ops"
	"github.com/rswrz/timewarrior-extensions/internal/render"
)

// RunsDir is the site subdirectory holding one set of files per run.
const RunsDir = "runs"

// ExportInput contains parameters for Export.
type ExportInput struct {
	Dir     string
	Version string
	Logger  *slog.Logger
	Now     func() time.Time
}

// ExportOutput summarizes a published site.
type ExportOutput struct {
	Dir   string `json:"dir"`
	Index string `json:"index"`
	Runs  int    `json:"runs"`
	Files int    `json:"files"`
}

// Export writes index.html plus an HTML report, an import CSV and a Markdown
// report for every archived run into input.Dir. Existing files are overwritten.
func Export(ctx context.Context, database *sql.DB, input ExportInput) (*ExportOutput, error) {
	if input.Dir == "" {
		return nil, errors.NewInvalidInput("output directory is required")
	}
	logger := input.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := input.Now
	if now == nil {
		now = time.Now
	}

	if err := os.MkdirAll(filepath.Join(input.Dir, RunsDir), 0o755); err != nil {
		return nil, errors.NewInternal(err)
	}

	summaries, err := allRuns(database)
	if err != nil {
		return nil, err
	}

	out := &ExportOutput{Dir: input.Dir, Index: filepath.Join(input.Dir, "index.html")}
	for _, s := range summaries {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("site export")
		}
		run, err := ops.Show(database, s.ID)
		if err != nil {
			return nil, err
		}
		n, err := writeRun(input.Dir, run)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out.Runs++
		out.Files += n
		logger.Debug("run published", "component", "web", "id", run.ID, "records", len(run.Records))
	}

	renderer := newDefaultRenderer(input.Version)
	var buf bytes.Buffer
	err = renderer.renderPage(&buf, "index", IndexPageData{
		PageData: PageData{
			Title:     "Dynamics runs",
			Version:   input.Version,
			Generated: now().Unix(),
		},
		Items: summaries,
	})
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := os.WriteFile(out.Index, buf.Bytes(), 0o644); err != nil {
		return nil, errors.NewInternal(err)
	}
	out.Files++

	logger.Info("site exported", "component", "web", "dir", input.Dir, "runs", out.Runs)
	return out, nil
}

// allRuns pages through the archive, newest first.
func allRuns(database *sql.DB) ([]db.RunSummary, error) {
	var items []db.RunSummary
	offset := 0
	for {
		page, err := ops.History(database, ops.HistoryInput{Limit: ops.MaxHistoryLimit, Offset: offset})
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if !page.Pagination.HasMore {
			return items, nil
		}
		offset += len(page.Items)
	}
}

// writeRun writes the files of one run and returns how many it wrote.
func writeRun(dir string, run *db.Run) (int, error) {
	doc := documentOf(run)
	writers := []struct {
		ext   string
		write func(*bytes.Buffer) error
	}{
		{".html", func(b *bytes.Buffer) error { return render.WriteHTML(b, doc) }},
		{".csv", func(b *bytes.Buffer) error { return render.WriteCSV(b, run.Records) }},
		{".md", func(b *bytes.Buffer) error { return render.WriteMarkdown(b, doc) }},
	}
	for _, w := range writers {
		var buf bytes.Buffer
		if err := w.write(&buf); err != nil {
			return 0, fmt.Errorf("render %s%s: %w", run.ID, w.ext, err)
		}
		path := filepath.Join(dir, RunsDir, run.ID+w.ext)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return 0, err
		}
	}
	return len(writers), nil
}

func documentOf(run *db.Run) render.Document {
	return render.Document{
		Title:      "Run " + run.ID + " (" + formatRange(run.RangeStart, run.RangeEnd) + ")",
		Records:    run.Records,
		Absorption: run.Absorption,
	}
}
