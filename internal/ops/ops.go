// Package ops holds the operations shared by the CLI and the MCP server.
package ops

import (
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rswrz/timewarrior-extensions/internal/billing"
	"github.com/rswrz/timewarrior-extensions/internal/config"
	"github.com/rswrz/timewarrior-extensions/internal/db"
	"github.com/rswrz/timewarrior-extensions/internal/refine"
)

// Pagination limits
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Mode selects how atoms are grouped for an output.
type Mode string

const (
	// ModeBilling groups on billing ids and keeps different text formats apart (CSV).
	ModeBilling Mode = "billing"
	// ModeDisplay groups on human readable names (table, Markdown, HTML).
	ModeDisplay Mode = "display"
)

// ParseMode maps a user supplied mode name, defaulting to ModeBilling.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeBilling), "csv":
		return ModeBilling, true
	case string(ModeDisplay), "table", "summary":
		return ModeDisplay, true
	}
	return "", false
}

// Options turns resolved settings into engine options for this mode.
func (m Mode) Options(s *config.Settings, loc *time.Location) billing.Options {
	return billing.Options{
		ExcludeTags:          s.ExcludeTags,
		AbsorbTag:            s.AbsorbTag,
		DelimiterOverride:    s.AnnotationDelimiter,
		SeparatorOverride:    s.OutputSeparator,
		MaxDescriptionChars:  s.MaxDescriptionChars,
		MergeOnDisplayValues: m == ModeDisplay,
		IncludeFormatInMerge: m == ModeBilling,
		Location:             loc,
	}
}

// Deps are the collaborators of Consolidate. Every field is optional.
type Deps struct {
	DB       *sql.DB        // run archive; nil disables archiving
	Refiner  refine.Refiner // nil disables refinement
	Logger   *slog.Logger
	Location *time.Location // calendar dates; default time.Local
	Now      func() time.Time
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

func (d Deps) location() *time.Location {
	if d.Location == nil {
		return time.Local
	}
	return d.Location
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// OpenArchive opens the run archive configured in s. It returns nil, nil when
// no archive directory is configured.
func OpenArchive(s *config.Settings) (*sql.DB, error) {
	dir := ExpandHome(s.ArchiveDir)
	if dir == "" {
		return nil, nil
	}
	return db.Init(dir)
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
