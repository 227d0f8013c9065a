package mcp

import "github.com/mark3labs/mcp-go/mcp"

var consolidateToolDef = mcp.NewTool("dynamics_consolidate",
	mcp.WithDescription("Consolidate timewarrior intervals into 15-minute billing line items. "+
		"Returns records, absorption per day and diagnostics for unmatched or skipped intervals."),
	mcp.WithArray("export",
		mcp.Required(),
		mcp.Description("Output of `timew export`: an array of {start, end, tags, annotation}. A JSON string holding the array is accepted too."),
		mcp.Items(map[string]any{"type": "object"}),
	),
	mcp.WithObject("header",
		mcp.Description("Report header values, e.g. {\"reports.dynamics.absorb_tag\": \"admin\"}."),
	),
	mcp.WithString("mode",
		mcp.Description("Grouping: billing (CSV, default) or display (human readable names)."),
		mcp.Enum("billing", "display"),
	),
	mcp.WithString("mappings_path",
		mcp.Description("Mapping file to use instead of the configured one."),
	),
	mcp.WithString("absorb_tag",
		mcp.Description("Absorb intervals with this tag into the day's rounding slack."),
	),
	mcp.WithArray("exclude_tags",
		mcp.Description("Drop intervals carrying any of these tags."),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithBoolean("refine",
		mcp.Description("Force description refinement on or off for this call."),
	),
	mcp.WithBoolean("archive",
		mcp.Description("Store the run in the archive. Requires an archive directory."),
	),
)

var historyToolDef = mcp.NewTool("dynamics_history",
	mcp.WithDescription("List archived consolidation runs, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum runs to return (default 20, max 100)."),
	),
	mcp.WithNumber("offset",
		mcp.Description("Runs to skip."),
	),
)

var showToolDef = mcp.NewTool("dynamics_show",
	mcp.WithDescription("Show one archived run with its records and absorption."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Run id as returned by dynamics_consolidate or dynamics_history."),
	),
)
