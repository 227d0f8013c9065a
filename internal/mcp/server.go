package mcp

import (
	"database/sql"
	"log/slog"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rswrz/timewarrior-extensions/internal/config"
	"github.com/rswrz/timewarrior-extensions/internal/refine"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"dynamics_consolidate": {
		def:     consolidateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConsolidate },
	},
	"dynamics_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
	"dynamics_show": {
		def:     showToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleShow },
	},
}

// AllToolNames returns the registered tool names in sorted order.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options carries what the tool handlers need from the host process.
type Options struct {
	DB           *sql.DB        // run archive; nil disables archiving and the history tools
	Refiner      refine.Refiner // nil disables refinement
	Logger       *slog.Logger
	Lookup       config.LookupFunc // environment
	ExeDir       string            // base for relative mapping file names
	MappingsPath string            // default mapping file; tools may override it
	Location     *time.Location
}

// NewServer creates a new MCP server with the dynamics tools registered.
func NewServer(opts Options, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"timew-dynamics",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(opts)
	for _, name := range AllToolNames() {
		entry := toolRegistry[name]
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run starts the MCP server using stdio transport.
func Run(opts Options, version string) error {
	return server.ServeStdio(NewServer(opts, version))
}
