package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rswrz/timewarrior-extensions/internal/billing"
	"github.com/rswrz/timewarrior-extensions/internal/errors"
)

// RunSummary is one archived run without its records.
type RunSummary struct {
	ID             string  `json:"id"`
	CreatedAt      int64   `json:"created_at"`
	Command        string  `json:"command"`
	RangeStart     *string `json:"range_start,omitempty"`
	RangeEnd       *string `json:"range_end,omitempty"`
	MappingsPath   string  `json:"mappings_path,omitempty"`
	AbsorbTag      string  `json:"absorb_tag,omitempty"`
	Refined        bool    `json:"refined"`
	RecordCount    int     `json:"record_count"`
	TotalSeconds   int64   `json:"total_seconds"`
	UnmatchedCount int     `json:"unmatched_count"`
}

// Run is an archived run with everything it produced.
type Run struct {
	RunSummary
	Records    []billing.FinalRecord   `json:"records"`
	Absorption []billing.AbsorptionDay `json:"absorption,omitempty"`
}

// InsertRun stores a run and its records in one transaction.
func InsertRun(ctx context.Context, db *sql.DB, r *Run) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, command, range_start, range_end, mappings_path,
			absorb_tag, refined, record_count, total_seconds, unmatched_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.CreatedAt, r.Command, toNullString(r.RangeStart), toNullString(r.RangeEnd), r.MappingsPath,
		r.AbsorbTag, r.Refined, r.RecordCount, r.TotalSeconds, r.UnmatchedCount,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	recStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_records (
			run_id, position, date, project, project_task, project_display,
			project_task_display, role, type, duration_seconds, description_json, external_comment,
			output_separator
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer recStmt.Close()

	for i, rec := range r.Records {
		desc, err := json.Marshal(rec.Description)
		if err != nil {
			return errors.NewInternal(err)
		}
		if _, err := recStmt.ExecContext(ctx,
			r.ID, i, rec.Date, rec.Project, rec.ProjectTask, rec.ProjectDisplay,
			rec.ProjectTaskDisplay, rec.Role, rec.Type, rec.DurationSeconds, string(desc), rec.ExternalComment,
			rec.OutputSeparator,
		); err != nil {
			return errors.NewInternal(err)
		}
	}

	for _, d := range r.Absorption {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_absorption (
				run_id, date, slack_seconds, admin_raw_seconds, absorbed_seconds,
				leftover_raw_seconds, leftover_billed_seconds
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			r.ID, d.Date, d.SlackSeconds, d.AdminRawSeconds, d.AbsorbedSeconds,
			d.LeftoverRawSeconds, d.LeftoverBilledSeconds,
		); err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListRuns returns run summaries, newest first, plus the total count.
func ListRuns(db *sql.DB, limit, offset int) ([]RunSummary, int, error) {
	total, err := CountRuns(db)
	if err != nil {
		return nil, 0, err
	}

	rows, err := db.Query(`
		SELECT id, created_at, command, range_start, range_end, mappings_path,
			absorb_tag, refined, record_count, total_seconds, unmatched_count
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// CountRuns returns the number of archived runs.
func CountRuns(db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// GetRun loads one run with its records in their original order.
func GetRun(db *sql.DB, id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, created_at, command, range_start, range_end, mappings_path,
			absorb_tag, refined, record_count, total_seconds, unmatched_count
		FROM runs
		WHERE id = ?
	`, id)
	s, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	run := &Run{RunSummary: *s, Records: []billing.FinalRecord{}}

	rows, err := db.Query(`
		SELECT date, project, project_task, project_display, project_task_display,
			role, type, duration_seconds, description_json, external_comment, output_separator
		FROM run_records
		WHERE run_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec  billing.FinalRecord
			desc string
		)
		if err := rows.Scan(
			&rec.Date, &rec.Project, &rec.ProjectTask, &rec.ProjectDisplay, &rec.ProjectTaskDisplay,
			&rec.Role, &rec.Type, &rec.DurationSeconds, &desc, &rec.ExternalComment, &rec.OutputSeparator,
		); err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := json.Unmarshal([]byte(desc), &rec.Description); err != nil {
			return nil, errors.NewInternal(err)
		}
		run.Records = append(run.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	absRows, err := db.Query(`
		SELECT date, slack_seconds, admin_raw_seconds, absorbed_seconds,
			leftover_raw_seconds, leftover_billed_seconds
		FROM run_absorption
		WHERE run_id = ?
		ORDER BY date
	`, id)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer absRows.Close()

	for absRows.Next() {
		var d billing.AbsorptionDay
		if err := absRows.Scan(
			&d.Date, &d.SlackSeconds, &d.AdminRawSeconds, &d.AbsorbedSeconds,
			&d.LeftoverRawSeconds, &d.LeftoverBilledSeconds,
		); err != nil {
			return nil, errors.NewInternal(err)
		}
		run.Absorption = append(run.Absorption, d)
	}
	if err := absRows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanSummary scans a single runs row.
func scanSummary(row scanner) (*RunSummary, error) {
	var (
		s          RunSummary
		rangeStart sql.NullString
		rangeEnd   sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.CreatedAt, &s.Command, &rangeStart, &rangeEnd, &s.MappingsPath,
		&s.AbsorbTag, &s.Refined, &s.RecordCount, &s.TotalSeconds, &s.UnmatchedCount,
	)
	if err != nil {
		return nil, err
	}
	s.RangeStart = fromNullString(rangeStart)
	s.RangeEnd = fromNullString(rangeEnd)
	return &s, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
