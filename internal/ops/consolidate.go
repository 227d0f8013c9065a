package ops

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/rswrz/timewarrior-extensions/internal/billing"
	"github.com/rswrz/timewarrior-extensions/internal/config"
	"github.com/rswrz/timewarrior-extensions/internal/db"
	"github.com/rswrz/timewarrior-extensions/internal/errors"
	"github.com/rswrz/timewarrior-extensions/internal/refine"
	"github.com/rswrz/timewarrior-extensions/internal/timew"
)

// ConfigInput says where a run's configuration comes from.
type ConfigInput struct {
	Header       map[string]string // report header
	Lookup       config.LookupFunc // environment; nil reads nothing
	Overrides    config.Layer      // applied after the environment (flags, tool arguments)
	MappingsPath string            // beats the configured config_file when set
	ExeDir       string            // base for relative mapping file names
}

// LoadedConfig is the resolved configuration for one run.
type LoadedConfig struct {
	Settings     *config.Settings
	Mappings     []billing.Mapping
	MappingsPath string
}

// LoadConfig resolves settings and loads the mapping file.
func LoadConfig(input ConfigInput) (*LoadedConfig, error) {
	settings := config.Resolve(input.Header, input.Lookup)
	if len(input.Overrides) > 0 {
		settings = config.Merge(settings, input.Overrides)
	}

	path := input.MappingsPath
	if path == "" {
		path = config.ResolveMappingsPath(ExpandHome(settings.ConfigFile), input.ExeDir)
	} else {
		path = ExpandHome(path)
	}

	mappings, err := config.LoadMappings(path)
	if err != nil {
		return nil, err
	}
	return &LoadedConfig{
		Settings:     settings,
		Mappings:     mappings,
		MappingsPath: path,
	}, nil
}

// ConsolidateInput contains parameters for the Consolidate operation.
type ConsolidateInput struct {
	Command  string // recorded in the archive, e.g. "csv"
	Report   timew.Report
	Config   *LoadedConfig // required
	Mode     Mode          // default: ModeBilling
	NoRefine bool
	Archive  bool // store the run when Deps.DB is set
}

// ConsolidateOutput contains the result of the Consolidate operation.
type ConsolidateOutput struct {
	RunID        string                      `json:"run_id,omitempty"`
	Records      []billing.FinalRecord       `json:"records"`
	Absorption   []billing.AbsorptionDay     `json:"absorption,omitempty"`
	Unmatched    []billing.UnmatchedInterval `json:"unmatched,omitempty"`
	Issues       []billing.Issue             `json:"issues,omitempty"`
	InputIssues  []timew.Issue               `json:"input_issues,omitempty"`
	Active       int                         `json:"active"`
	Excluded     int                         `json:"excluded"`
	TotalSeconds int64                       `json:"total_seconds"`

	// Refined is true when at least one description was replaced.
	Refined        bool `json:"refined"`
	RefinedRecords int  `json:"refined_records"`
}

// Result returns the engine view of the output, for renderers.
func (o *ConsolidateOutput) Result() *billing.Result {
	return &billing.Result{
		Records:    o.Records,
		Absorption: o.Absorption,
		Unmatched:  o.Unmatched,
		Issues:     o.Issues,
		Active:     o.Active,
		Excluded:   o.Excluded,
	}
}

// Consolidate parses the report payload, runs the billing engine, refines
// descriptions when enabled and optionally archives the run.
func Consolidate(ctx context.Context, deps Deps, input ConsolidateInput) (*ConsolidateOutput, error) {
	if input.Config == nil || input.Config.Settings == nil {
		return nil, errors.NewInternal(fmt.Errorf("consolidate: configuration is required"))
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("consolidate")
	}
	if input.Mode == "" {
		input.Mode = ModeBilling
	}

	settings := input.Config.Settings
	log := deps.logger()
	loc := deps.location()

	intervals, inputIssues, err := timew.ParseExport(input.Report.Payload, loc)
	if err != nil {
		return nil, err
	}

	engine := billing.NewEngine(input.Config.Mappings, input.Mode.Options(settings, loc), log)
	res := engine.Run(intervals)

	records := res.Records
	replaced := 0
	if !input.NoRefine && deps.Refiner != nil && settings.LLM.Enabled {
		svc := refine.NewService(deps.Refiner, settings.LLM, log)
		records, replaced = svc.ApplyCounted(ctx, records)
	}
	refined := replaced > 0
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("consolidate")
	}

	// Ensure we return an empty array rather than nil
	if records == nil {
		records = []billing.FinalRecord{}
	}

	out := &ConsolidateOutput{
		Records:        records,
		Absorption:     res.Absorption,
		Unmatched:      res.Unmatched,
		Issues:         res.Issues,
		InputIssues:    inputIssues,
		Active:         res.Active,
		Excluded:       res.Excluded,
		Refined:        refined,
		RefinedRecords: replaced,
	}
	for _, rec := range records {
		out.TotalSeconds += rec.DurationSeconds
	}

	log.Debug("consolidated",
		slog.Int("intervals", len(intervals)),
		slog.Int("records", len(records)),
		slog.Int("unmatched", len(res.Unmatched)),
		slog.Int("refined", replaced),
	)

	if input.Archive && deps.DB != nil {
		id, err := archive(ctx, deps, input, out)
		if err != nil {
			return nil, err
		}
		out.RunID = id
	}
	return out, nil
}

func archive(ctx context.Context, deps Deps, input ConsolidateInput, out *ConsolidateOutput) (string, error) {
	now := deps.now()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", errors.NewInternal(err)
	}

	run := &db.Run{
		RunSummary: db.RunSummary{
			ID:             id.String(),
			CreatedAt:      now.Unix(),
			Command:        input.Command,
			MappingsPath:   input.Config.MappingsPath,
			AbsorbTag:      input.Config.Settings.AbsorbTag,
			Refined:        out.Refined,
			RecordCount:    len(out.Records),
			TotalSeconds:   out.TotalSeconds,
			UnmatchedCount: len(out.Unmatched),
		},
		Records:    out.Records,
		Absorption: out.Absorption,
	}
	if v := input.Report.Header[timew.KeyRangeStart]; v != "" {
		run.RangeStart = &v
	}
	if v := input.Report.Header[timew.KeyRangeEnd]; v != "" {
		run.RangeEnd = &v
	}

	if err := db.InsertRun(ctx, deps.DB, run); err != nil {
		return "", err
	}
	deps.logger().Info("run archived", slog.String("run_id", run.ID), slog.Int("records", run.RecordCount))
	return run.ID, nil
}
