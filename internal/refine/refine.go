// Package refine optionally rewrites finished record descriptions through a
// language model. Refinement never changes durations or billing fields, and
// any failure leaves the original description in place.
package refine

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rswrz/timewarrior-extensions/internal/billing"
	"github.com/rswrz/timewarrior-extensions/internal/config"
)

// Settings are the effective model settings for one request.
type Settings struct {
	Provider    string
	Endpoint    string
	Model       string
	Temperature float64
	Timeout     time.Duration
	APIKey      string
}

// Field is one labelled piece of record context shown to the model.
type Field struct {
	Label string
	Value string
}

// Request carries one record's visible segments to a Refiner.
type Request struct {
	Segments        []string // visible segments, trimmed
	Description     string   // full description joined with Delimiter, hidden segments included
	Delimiter       string
	OutputSeparator string
	Context         []Field
	Settings        Settings
}

// Refiner rewrites segments. Implementations must return exactly one string
// per input segment for the answer to be used.
type Refiner interface {
	Refine(ctx context.Context, req Request) ([]string, error)
}

// Service applies a Refiner to records using the run's base settings and the
// per-mapping overrides carried by each record.
type Service struct {
	refiner Refiner
	base    config.LLMSettings
	log     *slog.Logger

	mu    sync.Mutex
	cache map[string]billing.Description
}

// NewService creates a Service. A nil logger discards output.
func NewService(refiner Refiner, base config.LLMSettings, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		refiner: refiner,
		base:    base,
		log:     logger.With(slog.String("component", "refine")),
		cache:   make(map[string]billing.Description),
	}
}

// Enabled reports whether refinement is switched on for the run.
func (s *Service) Enabled() bool {
	return s != nil && s.base.Enabled && s.refiner != nil
}

// Apply returns a copy of records with refined descriptions. Records are
// processed with at most base.Concurrency calls in flight; output order always
// matches input order.
func (s *Service) Apply(ctx context.Context, records []billing.FinalRecord) []billing.FinalRecord {
	out, _ := s.ApplyCounted(ctx, records)
	return out
}

// ApplyCounted is Apply that also reports how many descriptions were actually
// replaced. Records kept because of a failure, a fallback or an identical
// answer are not counted.
func (s *Service) ApplyCounted(ctx context.Context, records []billing.FinalRecord) ([]billing.FinalRecord, int) {
	out := make([]billing.FinalRecord, len(records))
	copy(out, records)
	if !s.Enabled() {
		return out, 0
	}

	limit := s.base.Concurrency
	if limit < 1 {
		limit = 1
	}

	changed := make([]bool, len(out))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range out {
		g.Go(func() error {
			refined := s.refineOne(gctx, out[i])
			changed[i] = !slices.Equal(refined, out[i].Description)
			out[i].Description = refined
			return nil
		})
	}
	_ = g.Wait()

	replaced := 0
	for _, c := range changed {
		if c {
			replaced++
		}
	}
	return out, replaced
}

// Effective merges the base settings with a record's overrides. ok is false when
// refinement is disabled for the record or cannot run (openai without key).
func (s *Service) Effective(o billing.RefineOverrides) (Settings, bool) {
	if o.Enabled != nil && !*o.Enabled {
		return Settings{}, false
	}

	eff := Settings{
		Provider:    s.base.Provider,
		Endpoint:    s.base.Endpoint,
		Model:       s.base.Model,
		Temperature: s.base.Temperature,
		Timeout:     s.base.Timeout,
		APIKey:      s.base.APIKey,
	}
	if o.Provider != nil {
		p := config.NormalizeProvider(*o.Provider, eff.Provider)
		if p != eff.Provider {
			// Base endpoint and model belong to the other provider.
			eff.Endpoint, eff.Model = "", ""
		}
		eff.Provider = p
	}
	if o.Endpoint != nil {
		eff.Endpoint = *o.Endpoint
	}
	if o.Model != nil {
		eff.Model = *o.Model
	}
	if o.Temperature != nil {
		eff.Temperature = *o.Temperature
	}
	if o.Timeout != nil {
		eff.Timeout = *o.Timeout
	}
	if o.APIKey != nil {
		eff.APIKey = *o.APIKey
	}
	eff.Endpoint, eff.Model = config.ProviderDefaults(eff.Provider, eff.Endpoint, eff.Model)

	if eff.Provider == config.ProviderOpenAI && eff.APIKey == "" {
		return Settings{}, false
	}
	return eff, true
}

func (s *Service) refineOne(ctx context.Context, rec billing.FinalRecord) billing.Description {
	original := rec.Description
	settings, ok := s.Effective(rec.Refine)
	if !ok {
		return original
	}

	var visible []string
	for _, seg := range original {
		if !billing.IsHidden(seg) {
			visible = append(visible, strings.TrimSpace(seg))
		}
	}
	if len(visible) == 0 {
		return original
	}

	req := Request{
		Segments:        visible,
		Description:     original.Join(rec.Delimiter),
		Delimiter:       rec.Delimiter,
		OutputSeparator: rec.OutputSeparator,
		Context: []Field{
			{Label: "Date", Value: rec.Date},
			{Label: "Project", Value: rec.Project},
			{Label: "Project_Task", Value: rec.ProjectTask},
			{Label: "Role", Value: rec.Role},
			{Label: "Type", Value: rec.Type},
		},
		Settings: settings,
	}

	key := cacheKey(req)
	if cached, hit := s.lookup(key); hit {
		return cached.Clone()
	}

	answer, err := s.refiner.Refine(ctx, req)
	if err != nil {
		s.log.Warn("refinement failed, keeping original description",
			slog.String("date", rec.Date), slog.String("project", rec.Project), slog.String("error", err.Error()))
		return original
	}
	if len(answer) != len(visible) {
		s.log.Warn("refinement returned wrong segment count, keeping original description",
			slog.Int("want", len(visible)), slog.Int("got", len(answer)))
		return original
	}

	refined := make(billing.Description, 0, len(original))
	next := 0
	for _, seg := range original {
		if billing.IsHidden(seg) {
			refined = append(refined, seg)
			continue
		}
		candidate := strings.TrimSpace(answer[next])
		next++
		if candidate == "" {
			candidate = strings.TrimSpace(seg)
		}
		refined = append(refined, candidate)
	}

	s.store(key, refined)
	return refined.Clone()
}

func (s *Service) lookup(key string) (billing.Description, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.cache[key]
	return d, ok
}

func (s *Service) store(key string, d billing.Description) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = d
}

// cacheKey identifies a request by everything that can change the answer.
func cacheKey(req Request) string {
	k := struct {
		Description string
		Delimiter   string
		Separator   string
		Provider    string
		Endpoint    string
		Model       string
		Temperature float64
		Context     []Field
		Segments    []string
	}{
		Description: req.Description,
		Delimiter:   req.Delimiter,
		Separator:   req.OutputSeparator,
		Provider:    req.Settings.Provider,
		Endpoint:    req.Settings.Endpoint,
		Model:       req.Settings.Model,
		Temperature: math.Round(req.Settings.Temperature*1000) / 1000,
		Context:     req.Context,
		Segments:    req.Segments,
	}
	b, _ := json.Marshal(k)
	return string(b)
}
