package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rswrz/timewarrior-extensions/internal/config"
	"github.com/rswrz/timewarrior-extensions/internal/errors"
	"github.com/rswrz/timewarrior-extensions/internal/ops"
	"github.com/rswrz/timewarrior-extensions/internal/timew"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	opts Options
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(opts Options) *Handlers {
	return &Handlers{opts: opts}
}

// ConsolidateRequest represents the arguments for dynamics_consolidate.
type ConsolidateRequest struct {
	Export       json.RawMessage   `json:"export"`
	Header       map[string]string `json:"header,omitempty"`
	Mode         string            `json:"mode,omitempty"`
	MappingsPath string            `json:"mappings_path,omitempty"`
	AbsorbTag    *string           `json:"absorb_tag,omitempty"`
	ExcludeTags  []string          `json:"exclude_tags,omitempty"`
	Refine       *bool             `json:"refine,omitempty"`
	Archive      bool              `json:"archive,omitempty"`
}

// HistoryRequest represents the arguments for dynamics_history.
type HistoryRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ShowRequest represents the arguments for dynamics_show.
type ShowRequest struct {
	ID string `json:"id"`
}

// HandleConsolidate handles the dynamics_consolidate tool call.
func (h *Handlers) HandleConsolidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConsolidateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput(err.Error())), nil
	}
	payload, err := exportPayload(input.Export)
	if err != nil {
		return errorResult(errors.NewInvalidInput(err.Error())), nil
	}
	mode, ok := ops.ParseMode(input.Mode)
	if !ok {
		return errorResult(errors.NewInvalidInput("mode must be one of: billing, display")), nil
	}
	if input.Archive && h.opts.DB == nil {
		return errorResult(errNoArchive()), nil
	}

	overrides := config.Layer{}
	if input.AbsorbTag != nil {
		overrides[config.KeyAbsorbTag] = *input.AbsorbTag
	}
	if input.ExcludeTags != nil {
		overrides[config.KeyExcludeTags] = strings.Join(input.ExcludeTags, ",")
	}
	if input.Refine != nil && *input.Refine {
		overrides[config.KeyLLMEnabled] = "true"
	}

	mappingsPath := input.MappingsPath
	if mappingsPath == "" {
		mappingsPath = h.opts.MappingsPath
	}
	cfg, err := ops.LoadConfig(ops.ConfigInput{
		Header:       input.Header,
		Lookup:       h.opts.Lookup,
		Overrides:    overrides,
		MappingsPath: mappingsPath,
		ExeDir:       h.opts.ExeDir,
	})
	if err != nil {
		return errorResult(err), nil
	}

	header := input.Header
	if header == nil {
		header = map[string]string{}
	}
	result, err := ops.Consolidate(ctx, h.deps(), ops.ConsolidateInput{
		Command:  "mcp",
		Report:   timew.Report{Header: header, Payload: payload},
		Config:   cfg,
		Mode:     mode,
		NoRefine: input.Refine != nil && !*input.Refine,
		Archive:  input.Archive,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistory handles the dynamics_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput(err.Error())), nil
	}
	if h.opts.DB == nil {
		return errorResult(errNoArchive()), nil
	}

	result, err := ops.History(h.opts.DB, ops.HistoryInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleShow handles the dynamics_show tool call.
func (h *Handlers) HandleShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ShowRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput(err.Error())), nil
	}
	if h.opts.DB == nil {
		return errorResult(errNoArchive()), nil
	}

	result, err := ops.Show(h.opts.DB, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

func (h *Handlers) deps() ops.Deps {
	return ops.Deps{
		DB:       h.opts.DB,
		Refiner:  h.opts.Refiner,
		Logger:   h.opts.Logger,
		Location: h.opts.Location,
	}
}

func errNoArchive() error {
	return errors.NewInvalidConfig(-1, "no archive configured (set "+config.KeyArchiveDir+")")
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var e *errors.Error
	if stderrors.As(err, &e) {
		errorObj := map[string]any{
			"code":    e.Code,
			"message": e.Message,
			"status":  e.Status,
		}
		if e.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if e.Details != nil {
			errorObj["details"] = e.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
