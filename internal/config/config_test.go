package config

import (
	"log/slog"
	"testing"
	"time"
)

func envOf(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{KeyAbsorbTag, "TIMEWARRIOR_REPORTS_DYNAMICS_ABSORB_TAG"},
		{KeyLLMAPIKey, "TIMEWARRIOR_REPORTS_DYNAMICS_LLM_OPENAI_API_KEY"},
		{KeyConfigFile, "TIMEWARRIOR_REPORTS_DYNAMICS_CONFIG_FILE"},
	}
	for _, tt := range tests {
		if got := EnvKey(tt.key); got != tt.want {
			t.Errorf("EnvKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestResolve_Defaults(t *testing.T) {
	s := Resolve(nil, nil)

	if s.ConfigFile != DefaultConfigFile {
		t.Errorf("ConfigFile = %q, want %q", s.ConfigFile, DefaultConfigFile)
	}
	if s.AnnotationDelimiter != nil || s.OutputSeparator != nil {
		t.Errorf("delimiter overrides should be unset by default")
	}
	if s.MaxDescriptionChars != 500 {
		t.Errorf("MaxDescriptionChars = %d, want 500", s.MaxDescriptionChars)
	}
	if s.LLM.Enabled {
		t.Errorf("LLM.Enabled = true, want false")
	}
	if s.LLM.Provider != ProviderOllama || s.LLM.Endpoint != DefaultOllamaEndpoint || s.LLM.Model != DefaultOllamaModel {
		t.Errorf("LLM = %+v, want ollama defaults", s.LLM)
	}
	if s.LLM.Timeout != DefaultTimeout {
		t.Errorf("LLM.Timeout = %v, want %v", s.LLM.Timeout, DefaultTimeout)
	}
}

func TestResolve_EnvBeatsHeader(t *testing.T) {
	header := map[string]string{
		KeyAbsorbTag:   "admin",
		KeyExcludeTags: "break, lunch",
		KeyConfigFile:  "header.json",
	}
	env := envOf(map[string]string{
		EnvKey(KeyAbsorbTag): "paperwork",
	})

	s := Resolve(header, env)

	if s.AbsorbTag != "paperwork" {
		t.Errorf("AbsorbTag = %q, want paperwork", s.AbsorbTag)
	}
	if s.ConfigFile != "header.json" {
		t.Errorf("ConfigFile = %q, want header.json", s.ConfigFile)
	}
	if len(s.ExcludeTags) != 2 || s.ExcludeTags[0] != "break" || s.ExcludeTags[1] != "lunch" {
		t.Errorf("ExcludeTags = %v, want [break lunch]", s.ExcludeTags)
	}
}

func TestResolve_DelimitersKeepWhitespace(t *testing.T) {
	s := Resolve(map[string]string{
		KeyAnnotationDelimiter: " | ",
		KeyOutputSeparator:     ", ",
	}, nil)

	if s.AnnotationDelimiter == nil || *s.AnnotationDelimiter != " | " {
		t.Errorf("AnnotationDelimiter = %v, want %q", s.AnnotationDelimiter, " | ")
	}
	if s.OutputSeparator == nil || *s.OutputSeparator != ", " {
		t.Errorf("OutputSeparator = %v, want %q", s.OutputSeparator, ", ")
	}
}

func TestResolve_InvalidValuesFallBack(t *testing.T) {
	s := Resolve(map[string]string{
		KeyLLMEnabled:          "maybe",
		KeyLLMTemperature:      "warm",
		KeyLLMTimeout:          "-3",
		KeyMaxDescriptionChars: "lots",
		KeyLLMConcurrency:      "0",
		KeyLogLevel:            "loud",
	}, nil)

	if s.LLM.Enabled {
		t.Errorf("LLM.Enabled = true, want false")
	}
	if s.LLM.Temperature != DefaultTemperature {
		t.Errorf("Temperature = %v, want %v", s.LLM.Temperature, DefaultTemperature)
	}
	if s.LLM.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", s.LLM.Timeout, DefaultTimeout)
	}
	if s.MaxDescriptionChars != 500 {
		t.Errorf("MaxDescriptionChars = %d, want 500", s.MaxDescriptionChars)
	}
	if s.LLM.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", s.LLM.Concurrency)
	}
	if s.LogLevel != slog.LevelWarn {
		t.Errorf("LogLevel = %v, want WARN", s.LogLevel)
	}
}

func TestResolve_LLMSettings(t *testing.T) {
	s := Resolve(map[string]string{
		KeyLLMEnabled:     "yes",
		KeyLLMProvider:    " OpenAI ",
		KeyLLMTemperature: "0.7",
		KeyLLMTimeout:     "1.5",
		KeyLLMConcurrency: "4",
	}, envOf(map[string]string{
		EnvKey(KeyLLMAPIKey): "sk-test",
	}))

	if !s.LLM.Enabled {
		t.Errorf("LLM.Enabled = false, want true")
	}
	if s.LLM.Provider != ProviderOpenAI {
		t.Errorf("Provider = %q, want openai", s.LLM.Provider)
	}
	if s.LLM.Endpoint != DefaultOpenAIEndpoint || s.LLM.Model != DefaultOpenAIModel {
		t.Errorf("Endpoint/Model = %q/%q, want openai defaults", s.LLM.Endpoint, s.LLM.Model)
	}
	if s.LLM.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", s.LLM.Temperature)
	}
	if s.LLM.Timeout != 1500*time.Millisecond {
		t.Errorf("Timeout = %v, want 1.5s", s.LLM.Timeout)
	}
	if s.LLM.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want sk-test", s.LLM.APIKey)
	}
	if s.LLM.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", s.LLM.Concurrency)
	}
}

func TestResolve_UnknownProviderFallsBackToOllama(t *testing.T) {
	s := Resolve(map[string]string{KeyLLMProvider: "claude"}, nil)
	if s.LLM.Provider != ProviderOllama {
		t.Errorf("Provider = %q, want ollama", s.LLM.Provider)
	}
}

func TestResolve_ExplicitEndpointSurvivesProviderSwitch(t *testing.T) {
	s := Resolve(
		map[string]string{KeyLLMEndpoint: "http://proxy.local/v1/chat"},
		envOf(map[string]string{EnvKey(KeyLLMProvider): "openai"}),
	)

	if s.LLM.Endpoint != "http://proxy.local/v1/chat" {
		t.Errorf("Endpoint = %q, want the explicit one", s.LLM.Endpoint)
	}
	if s.LLM.Model != DefaultOpenAIModel {
		t.Errorf("Model = %q, want %q", s.LLM.Model, DefaultOpenAIModel)
	}
}

func TestResolve_IgnoresUnrelatedHeaderKeys(t *testing.T) {
	s := Resolve(map[string]string{
		"temp.report.start": "20240101T000000Z",
		"color":             "on",
	}, nil)
	if s.ConfigFile != DefaultConfigFile {
		t.Errorf("ConfigFile = %q", s.ConfigFile)
	}
}

func TestMerge_DoesNotMutateBase(t *testing.T) {
	base := Default()
	base.ExcludeTags = []string{"break"}

	_ = Merge(base, Layer{KeyExcludeTags: "lunch", KeyAbsorbTag: "admin"})

	if len(base.ExcludeTags) != 1 || base.ExcludeTags[0] != "break" {
		t.Errorf("base.ExcludeTags = %v, want [break]", base.ExcludeTags)
	}
	if base.AbsorbTag != "" {
		t.Errorf("base.AbsorbTag = %q, want empty", base.AbsorbTag)
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in       string
		want, ok bool
	}{
		{"1", true, true},
		{"TRUE", true, true},
		{" on ", true, true},
		{"no", false, true},
		{"off", false, true},
		{"", false, false},
		{"sure", false, false},
	}
	for _, tt := range tests {
		got, ok := ParseBool(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseBool(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
