package config

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Report header keys. Each can also be set through the environment, see EnvKey.
const (
	KeyConfigFile          = "reports.dynamics.config_file"
	KeyAnnotationDelimiter = "reports.dynamics.annotation_delimiter"
	KeyOutputSeparator     = "reports.dynamics.annotation_output_separator"
	KeyExcludeTags         = "reports.dynamics.exclude_tags"
	KeyAbsorbTag           = "reports.dynamics.absorb_tag"
	KeyMaxDescriptionChars = "reports.dynamics.max_description_chars"
	KeyArchiveDir          = "reports.dynamics.archive_dir"
	KeyLogLevel            = "reports.dynamics.log_level"

	KeyLLMEnabled     = "reports.dynamics.llm.enabled"
	KeyLLMProvider    = "reports.dynamics.llm.provider"
	KeyLLMEndpoint    = "reports.dynamics.llm.endpoint"
	KeyLLMModel       = "reports.dynamics.llm.model"
	KeyLLMTemperature = "reports.dynamics.llm.temperature"
	KeyLLMTimeout     = "reports.dynamics.llm.timeout"
	KeyLLMAPIKey      = "reports.dynamics.llm.openai_api_key"
	KeyLLMConcurrency = "reports.dynamics.llm.concurrency"
)

// LLM providers and their defaults.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	DefaultOllamaEndpoint = "http://127.0.0.1:11434/api/generate"
	DefaultOllamaModel    = "llama3"
	DefaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultOpenAIModel    = "gpt-4o-mini"

	DefaultTemperature = 0.2
	DefaultTimeout     = 2 * time.Second
)

// DefaultConfigFile is the mapping file name used when none is configured.
const DefaultConfigFile = ".dynamics_config.json"

// LLMSettings configures the optional description refiner.
type LLMSettings struct {
	Enabled     bool
	Provider    string
	Endpoint    string
	Model       string
	Temperature float64
	Timeout     time.Duration
	APIKey      string

	// Concurrency bounds parallel refiner calls. 1 means sequential.
	Concurrency int
}

// Settings is the resolved configuration for one run. It is built once and
// never re-read while the pipeline runs.
type Settings struct {
	ConfigFile string

	// AnnotationDelimiter and OutputSeparator are nil unless explicitly set; when
	// set they override every mapping's own values.
	AnnotationDelimiter *string
	OutputSeparator     *string

	ExcludeTags         []string
	AbsorbTag           string
	MaxDescriptionChars int
	ArchiveDir          string
	LogLevel            slog.Level

	LLM LLMSettings
}

// Default returns the settings used when neither header nor environment say otherwise.
func Default() *Settings {
	return &Settings{
		ConfigFile:          DefaultConfigFile,
		MaxDescriptionChars: 500,
		LogLevel:            slog.LevelWarn,
		LLM: LLMSettings{
			Provider:    ProviderOllama,
			Endpoint:    DefaultOllamaEndpoint,
			Model:       DefaultOllamaModel,
			Temperature: DefaultTemperature,
			Timeout:     DefaultTimeout,
			Concurrency: 1,
		},
	}
}

// EnvKey maps a header key to its environment variable name.
//
//	reports.dynamics.absorb_tag -> TIMEWARRIOR_REPORTS_DYNAMICS_ABSORB_TAG
func EnvKey(key string) string {
	return "TIMEWARRIOR_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// LookupFunc reads one variable from the environment. os.LookupEnv satisfies it.
type LookupFunc func(string) (string, bool)

// Layer is one configuration source: raw string values by header key.
type Layer map[string]string

// FromHeader keeps the dynamics keys of a report header.
func FromHeader(header map[string]string) Layer {
	layer := Layer{}
	for _, key := range keys {
		if v, ok := header[key]; ok {
			layer[key] = v
		}
	}
	return layer
}

// FromEnv reads every dynamics key from the environment.
func FromEnv(lookup LookupFunc) Layer {
	layer := Layer{}
	if lookup == nil {
		return layer
	}
	for _, key := range keys {
		if v, ok := lookup(EnvKey(key)); ok {
			layer[key] = v
		}
	}
	return layer
}

// Resolve applies defaults, then the report header, then the environment.
func Resolve(header map[string]string, lookup LookupFunc) *Settings {
	return Merge(Merge(Default(), FromHeader(header)), FromEnv(lookup))
}

// Merge returns a copy of base with every value present in overlay applied.
// Values that fail to parse leave the base value untouched.
func Merge(base *Settings, overlay Layer) *Settings {
	s := *base
	s.ExcludeTags = append([]string(nil), base.ExcludeTags...)

	// Delimiters keep surrounding whitespace; it is part of the value.
	if v, ok := overlay[KeyAnnotationDelimiter]; ok {
		s.AnnotationDelimiter = &v
	}
	if v, ok := overlay[KeyOutputSeparator]; ok {
		s.OutputSeparator = &v
	}

	if v, ok := trimmed(overlay, KeyConfigFile); ok && v != "" {
		s.ConfigFile = v
	}
	if v, ok := trimmed(overlay, KeyExcludeTags); ok {
		s.ExcludeTags = parseList(v)
	}
	if v, ok := trimmed(overlay, KeyAbsorbTag); ok {
		s.AbsorbTag = v
	}
	if v, ok := trimmed(overlay, KeyMaxDescriptionChars); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.MaxDescriptionChars = n
		}
	}
	if v, ok := trimmed(overlay, KeyArchiveDir); ok {
		s.ArchiveDir = v
	}
	if v, ok := trimmed(overlay, KeyLogLevel); ok {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err == nil {
			s.LogLevel = level
		}
	}

	mergeLLM(&s.LLM, overlay)
	return &s
}

func mergeLLM(llm *LLMSettings, overlay Layer) {
	if v, ok := trimmed(overlay, KeyLLMEnabled); ok {
		if b, valid := ParseBool(v); valid {
			llm.Enabled = b
		}
	}

	if v, ok := trimmed(overlay, KeyLLMProvider); ok {
		p := NormalizeProvider(v, ProviderOllama)
		if p != llm.Provider {
			// Drop values that were only the old provider's defaults.
			oldEndpoint, oldModel := ProviderDefaults(llm.Provider, "", "")
			if llm.Endpoint == oldEndpoint {
				llm.Endpoint = ""
			}
			if llm.Model == oldModel {
				llm.Model = ""
			}
		}
		llm.Provider = p
	}
	if v, ok := trimmed(overlay, KeyLLMEndpoint); ok {
		llm.Endpoint = v
	}
	if v, ok := trimmed(overlay, KeyLLMModel); ok {
		llm.Model = v
	}
	llm.Endpoint, llm.Model = ProviderDefaults(llm.Provider, llm.Endpoint, llm.Model)

	if v, ok := trimmed(overlay, KeyLLMTemperature); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			llm.Temperature = f
		}
	}
	if v, ok := trimmed(overlay, KeyLLMTimeout); ok {
		if d, valid := ParseSeconds(v); valid {
			llm.Timeout = d
		}
	}
	if v, ok := trimmed(overlay, KeyLLMAPIKey); ok {
		llm.APIKey = v
	}
	if v, ok := trimmed(overlay, KeyLLMConcurrency); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			llm.Concurrency = n
		}
	}
}

// NormalizeProvider lowercases provider and replaces unknown names with fallback.
func NormalizeProvider(provider, fallback string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	if p == ProviderOllama || p == ProviderOpenAI {
		return p
	}
	return fallback
}

// ProviderDefaults fills an empty endpoint or model with the provider's default.
func ProviderDefaults(provider, endpoint, model string) (string, string) {
	defEndpoint, defModel := DefaultOllamaEndpoint, DefaultOllamaModel
	if provider == ProviderOpenAI {
		defEndpoint, defModel = DefaultOpenAIEndpoint, DefaultOpenAIModel
	}
	if endpoint == "" {
		endpoint = defEndpoint
	}
	if model == "" {
		model = defModel
	}
	return endpoint, model
}

// ParseBool accepts 1/0, true/false, yes/no and on/off in any case.
func ParseBool(v string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// ParseSeconds reads a (fractional) number of seconds.
func ParseSeconds(v string) (time.Duration, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return time.Duration(f * float64(time.Second)), true
}

func trimmed(layer Layer, key string) (string, bool) {
	v, ok := layer[key]
	return strings.TrimSpace(v), ok
}

// parseList splits a comma list, dropping blanks and duplicates.
func parseList(v string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" && !seen[part] {
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}

var keys = []string{
	KeyConfigFile,
	KeyAnnotationDelimiter,
	KeyOutputSeparator,
	KeyExcludeTags,
	KeyAbsorbTag,
	KeyMaxDescriptionChars,
	KeyArchiveDir,
	KeyLogLevel,
	KeyLLMEnabled,
	KeyLLMProvider,
	KeyLLMEndpoint,
	KeyLLMModel,
	KeyLLMTemperature,
	KeyLLMTimeout,
	KeyLLMAPIKey,
	KeyLLMConcurrency,
}
