package ops

import (
	"database/sql"
	"strings"

	"github.com/rswrz/timewarrior-extensions/internal/db"
	"github.com/rswrz/timewarrior-extensions/internal/errors"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Limit  int // default: 20, max: 100
	Offset int // default: 0
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Items      []db.RunSummary `json:"items"`
	Pagination Pagination      `json:"pagination"`
	Sort       string          `json:"sort"`
}

// History lists archived runs, newest first.
func History(database *sql.DB, input HistoryInput) (*HistoryOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	offset := max(input.Offset, 0)

	items, total, err := db.ListRuns(database, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []db.RunSummary{}
	}

	return &HistoryOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}

// Show loads one archived run.
func Show(database *sql.DB, id string) (*db.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidInput("id is required")
	}
	return db.GetRun(database, id)
}
