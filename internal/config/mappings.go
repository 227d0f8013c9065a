package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rswrz/timewarrior-extensions/internal/billing"
	"github.com/rswrz/timewarrior-extensions/internal/errors"
)

// mappingEntry is one object of the mapping file. Pointer fields distinguish
// "absent" from "set to the zero value".
type mappingEntry struct {
	Tags                []string `json:"timew_tags"`
	Project             string   `json:"project"`
	ProjectID           string   `json:"project_id"`
	ProjectTask         string   `json:"project_task"`
	ProjectTaskID       string   `json:"project_task_id"`
	Role                string   `json:"role"`
	Type                string   `json:"type"`
	Multiplier          *float64 `json:"multiplier"`
	MergeOnEqualTags    bool     `json:"merge_on_equal_tags"`
	DescriptionPrefix   *string  `json:"description_prefix"`
	ExternalComment     string   `json:"external_comment"`
	AnnotationDelimiter string   `json:"annotation_delimiter"`
	OutputSeparator     string   `json:"annotation_output_separator"`

	LLMEnabled     *bool    `json:"llm_enabled"`
	LLMProvider    *string  `json:"llm_provider"`
	LLMEndpoint    *string  `json:"llm_endpoint"`
	LLMModel       *string  `json:"llm_model"`
	LLMTemperature *float64 `json:"llm_temperature"`
	LLMTimeout     *float64 `json:"llm_timeout"`
	LLMAPIKey      *string  `json:"llm_api_key"`
}

// ResolveMappingsPath returns configFile when absolute, else joins it to exeDir.
func ResolveMappingsPath(configFile, exeDir string) string {
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	if filepath.IsAbs(configFile) {
		return configFile
	}
	return filepath.Join(exeDir, configFile)
}

// LoadMappings reads and validates the mapping file at path.
// Declaration order is kept; it decides resolver ties.
func LoadMappings(path string) ([]billing.Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NewInvalidConfig(-1, fmt.Sprintf("mapping file not found: %s", path))
		}
		return nil, errors.NewInternal(err)
	}
	return ParseMappings(data)
}

// ParseMappings decodes and validates a mapping file body.
func ParseMappings(data []byte) ([]billing.Mapping, error) {
	var entries []mappingEntry
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&entries); err != nil {
		return nil, errors.NewInvalidConfig(-1, fmt.Sprintf("mapping file is not a JSON array of objects: %v", err))
	}

	mappings := make([]billing.Mapping, 0, len(entries))
	for i, e := range entries {
		m, err := e.toMapping(i)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func (e mappingEntry) toMapping(index int) (billing.Mapping, error) {
	tags := make([]string, 0, len(e.Tags))
	for _, t := range e.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return billing.Mapping{}, errors.NewInvalidConfig(index, "timew_tags must contain at least one tag")
	}

	multiplier := 1.0
	if e.Multiplier != nil {
		if *e.Multiplier <= 0 {
			return billing.Mapping{}, errors.NewInvalidConfig(index, fmt.Sprintf("multiplier must be > 0, got %v", *e.Multiplier))
		}
		multiplier = *e.Multiplier
	}

	typ := e.Type
	if typ == "" {
		typ = billing.DefaultType
	}

	m := billing.Mapping{
		Tags:                tags,
		Project:             e.Project,
		ProjectID:           e.ProjectID,
		ProjectTask:         e.ProjectTask,
		ProjectTaskID:       e.ProjectTaskID,
		Role:                e.Role,
		Type:                typ,
		Multiplier:          multiplier,
		MergeOnEqualTags:    e.MergeOnEqualTags,
		DescriptionPrefix:   e.DescriptionPrefix,
		ExternalComment:     e.ExternalComment,
		AnnotationDelimiter: e.AnnotationDelimiter,
		OutputSeparator:     e.OutputSeparator,
	}

	r := billing.RefineOverrides{
		Enabled:     e.LLMEnabled,
		Endpoint:    e.LLMEndpoint,
		Model:       e.LLMModel,
		Temperature: e.LLMTemperature,
		APIKey:      e.LLMAPIKey,
	}
	if e.LLMProvider != nil {
		p := NormalizeProvider(*e.LLMProvider, "")
		if p == "" {
			return billing.Mapping{}, errors.NewInvalidConfig(index, fmt.Sprintf("unknown llm_provider %q", *e.LLMProvider))
		}
		r.Provider = &p
	}
	if e.LLMTimeout != nil {
		if *e.LLMTimeout < 0 {
			return billing.Mapping{}, errors.NewInvalidConfig(index, "llm_timeout must not be negative")
		}
		d := time.Duration(*e.LLMTimeout * float64(time.Second))
		r.Timeout = &d
	}
	m.Refine = r

	return m, nil
}
