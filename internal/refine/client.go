package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rswrz/timewarrior-extensions/internal/config"
)

const systemPrompt = "You rewrite time tracking descriptions for clarity while keeping the original meaning. " +
	"You must respond with JSON only."

// LLMClient talks to an ollama or OpenAI-compatible endpoint.
type LLMClient struct {
	h   *http.Client
	log *slog.Logger
}

// NewLLMClient creates a client. Timeouts come from each request's settings,
// so the http.Client itself carries none.
func NewLLMClient(h *http.Client, logger *slog.Logger) *LLMClient {
	if h == nil {
		h = &http.Client{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LLMClient{h: h, log: logger.With(slog.String("component", "refine"))}
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

type ollamaResponse struct {
	Response *string `json:"response"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message *chatMessage `json:"message"`
	} `json:"choices"`
}

// Refine sends one description to the model and returns its rewritten segments.
func (c *LLMClient) Refine(ctx context.Context, req Request) ([]string, error) {
	s := req.Settings
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	prompt := buildPrompt(req)
	var payload any
	if s.Provider == config.ProviderOpenAI {
		payload = chatRequest{
			Model: s.Model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: prompt},
			},
			Temperature: s.Temperature,
		}
	} else {
		payload = ollamaRequest{
			Model:   s.Model,
			Prompt:  prompt,
			System:  systemPrompt,
			Options: map[string]any{"temperature": s.Temperature},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.Provider == config.ProviderOpenAI && s.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	c.log.Debug("refine request", slog.String("provider", s.Provider), slog.String("model", s.Model), slog.Int("segments", len(req.Segments)))
	resp, err := c.h.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	output, err := extractOutput(s.Provider, raw)
	if err != nil {
		return nil, err
	}

	var segments []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &segments); err != nil {
		return nil, fmt.Errorf("model answer is not a JSON array of strings: %w", err)
	}
	return segments, nil
}

func extractOutput(provider string, raw []byte) (string, error) {
	if provider == config.ProviderOpenAI {
		var r chatResponse
		if err := json.Unmarshal(raw, &r); err != nil {
			return "", fmt.Errorf("invalid JSON from llm endpoint: %w", err)
		}
		if len(r.Choices) == 0 || r.Choices[0].Message == nil {
			return "", fmt.Errorf("llm response has no choices")
		}
		return r.Choices[0].Message.Content, nil
	}

	var r ollamaResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", fmt.Errorf("invalid JSON from llm endpoint: %w", err)
	}
	if r.Response == nil {
		return "", fmt.Errorf("llm response has no response field")
	}
	return *r.Response, nil
}

func buildPrompt(req Request) string {
	var ctxLines []string
	for _, kv := range req.Context {
		if kv.Value != "" {
			ctxLines = append(ctxLines, kv.Label+": "+kv.Value)
		}
	}
	contextBlock := "None"
	if len(ctxLines) > 0 {
		contextBlock = strings.Join(ctxLines, "\n")
	}

	segmentsJSON, _ := json.Marshal(req.Segments)
	delimiter := req.Delimiter
	if delimiter == "" {
		delimiter = "[none]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite each segment for clarity while keeping the original meaning. "+
		"Return a JSON array with exactly %d strings in the same order. "+
		"Do not add, remove, or reorder segments. Keep numbers, IDs, and names unchanged. "+
		"Each string must stay concise and professional. Respond with JSON only.\n\n", len(req.Segments))
	fmt.Fprintf(&b, "Delimiter: %s\n", delimiter)
	fmt.Fprintf(&b, "Output separator: %s\n", req.OutputSeparator)
	fmt.Fprintf(&b, "Context:\n%s\n\n", contextBlock)
	fmt.Fprintf(&b, "Original description string:\n%s\n\n", req.Description)
	fmt.Fprintf(&b, "Segments JSON:\n%s\n", segmentsJSON)
	return b.String()
}
