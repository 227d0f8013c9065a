package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/rswrz/timewarrior-extensions/internal/config"
	"github.com/rswrz/timewarrior-extensions/internal/errors"
	"github.com/rswrz/timewarrior-extensions/internal/mcp"
	"github.com/rswrz/timewarrior-extensions/internal/ops"
	"github.com/rswrz/timewarrior-extensions/internal/refine"
	"github.com/rswrz/timewarrior-extensions/internal/render"
	"github.com/rswrz/timewarrior-extensions/internal/timew"
	"github.com/rswrz/timewarrior-extensions/internal/web"
)

// env is the process environment the commands run against.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	lookup config.LookupFunc
	exeDir string
	color  bool

	// location decides calendar dates; nil means time.Local.
	location *time.Location
	// httpClient talks to the description refiner; nil means a default client.
	httpClient *http.Client
}

// knownCommands contains the CLI subcommands.
var knownCommands = map[string]bool{
	"csv": true, "table": true, "html": true, "markdown": true,
	"history": true, "show": true, "site": true, "mcp": true, "help": true,
}

// format is an output of the report commands.
type format string

const (
	formatCSV      format = "csv"
	formatTable    format = "table"
	formatHTML     format = "html"
	formatMarkdown format = "markdown"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:      "timew-dynamics",
		Usage:     "Consolidate timewarrior intervals into Dynamics billing records",
		Version:   Version,
		Reader:    e.stdin,
		Writer:    e.stdout,
		ErrWriter: e.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mappings", Aliases: []string{"m"}, Usage: "Mapping file (default: " + config.DefaultConfigFile + " next to the binary)"},
			&cli.StringFlag{Name: "archive-dir", Usage: "Archive finished runs in this directory"},
			&cli.BoolFlag{Name: "no-refine", Usage: "Skip description refinement"},
		},
		Commands: []*cli.Command{
			reportCmd(e, formatCSV, "Write Dynamics import CSV (reads the timewarrior report from stdin)"),
			reportCmd(e, formatTable, "Print a consolidated summary table"),
			reportCmd(e, formatHTML, "Write an HTML report"),
			reportCmd(e, formatMarkdown, "Write a Markdown report"),
			historyCmd(e),
			showCmd(e),
			siteCmd(e),
			mcpCmd(e),
		},
		Action: func(c *cli.Context) error {
			return runReport(c, e, formatCSV)
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// reportCmd creates one of the report commands.
func reportCmd(e *env, f format, usage string) *cli.Command {
	cmd := &cli.Command{
		Name:  string(f),
		Usage: usage,
		Action: func(c *cli.Context) error {
			return runReport(c, e, f)
		},
	}
	if f == formatHTML || f == formatMarkdown {
		cmd.Flags = []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Report title (default: derived from the report range)"},
		}
	}
	return cmd
}

// runReport reads the timewarrior report from stdin, consolidates it and
// renders the result in format f.
func runReport(c *cli.Context, e *env, f format) error {
	report, err := timew.ReadReport(e.stdin)
	if err != nil {
		return outputError(err)
	}

	cfg, err := ops.LoadConfig(ops.ConfigInput{
		Header:       report.Header,
		Lookup:       e.lookup,
		Overrides:    flagOverrides(c),
		MappingsPath: c.String("mappings"),
		ExeDir:       e.exeDir,
	})
	if err != nil {
		return outputError(err)
	}

	logger := newLogger(e.stderr, cfg.Settings.LogLevel)

	database, err := ops.OpenArchive(cfg.Settings)
	if err != nil {
		return outputError(errors.NewInternal(err))
	}
	if database != nil {
		defer database.Close()
	}

	mode := ops.ModeDisplay
	if f == formatCSV {
		mode = ops.ModeBilling
	}

	out, err := ops.Consolidate(c.Context, ops.Deps{
		DB:       database,
		Refiner:  refine.NewLLMClient(e.httpClient, logger),
		Logger:   logger,
		Location: e.location,
	}, ops.ConsolidateInput{
		Command:  string(f),
		Report:   *report,
		Config:   cfg,
		Mode:     mode,
		NoRefine: c.Bool("no-refine"),
		Archive:  database != nil,
	})
	if err != nil {
		return outputError(err)
	}

	if err := writeReport(c, e, f, report, out); err != nil {
		return outputError(errors.NewInternal(err))
	}

	diag := render.DiagnosticsOf(out.Result())
	for _, is := range out.InputIssues {
		diag.InputIssues = append(diag.InputIssues, fmt.Sprintf("export element %d skipped: %s", is.Index, is.Reason))
	}
	if err := render.WriteDiagnostics(e.stderr, diag, e.location); err != nil {
		return outputError(errors.NewInternal(err))
	}
	return nil
}

func writeReport(c *cli.Context, e *env, f format, report *timew.Report, out *ops.ConsolidateOutput) error {
	switch f {
	case formatCSV:
		if err := render.WriteCSV(e.stdout, out.Records); err != nil {
			return err
		}
		// Keep stdout importable; absorption goes to the terminal.
		return render.WriteAbsorption(e.stderr, out.Absorption)
	case formatTable:
		if err := render.WriteTable(e.stdout, out.Records, render.TableOptions{Color: e.color}); err != nil {
			return err
		}
		if len(out.Absorption) > 0 {
			fmt.Fprintln(e.stdout)
		}
		return render.WriteAbsorption(e.stdout, out.Absorption)
	}

	doc := render.Document{
		Title:      reportTitle(c.String("title"), report, e.location),
		Records:    out.Records,
		Absorption: out.Absorption,
	}
	if f == formatHTML {
		return render.WriteHTML(e.stdout, doc)
	}
	return render.WriteMarkdown(e.stdout, doc)
}

// reportTitle returns title, or one derived from the report range.
func reportTitle(title string, report *timew.Report, loc *time.Location) string {
	if title != "" {
		return title
	}
	start, end := report.Range(loc)
	switch {
	case start != nil && end != nil:
		return fmt.Sprintf("Dynamics %s to %s", start.Format(time.DateOnly), end.Format(time.DateOnly))
	case end != nil:
		return fmt.Sprintf("Dynamics until %s", end.Format(time.DateOnly))
	}
	return ""
}

// historyCmd creates the history command.
func historyCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List archived runs",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultHistoryLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Skip first N results"},
		},
		Action: func(c *cli.Context) error {
			database, err := openArchive(c, e)
			if err != nil {
				return outputError(err)
			}
			defer database.Close()

			output, err := ops.History(database, ops.HistoryInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(e.stdout, output)
		},
	}
}

// showCmd creates the show command.
func showCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show an archived run",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidInput("run id is required"))
			}
			database, err := openArchive(c, e)
			if err != nil {
				return outputError(err)
			}
			defer database.Close()

			output, err := ops.Show(database, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(e.stdout, output)
		},
	}
}

// siteCmd creates the site command.
func siteCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "site",
		Usage: "Publish archived runs as a static HTML site",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "Output directory"},
		},
		Action: func(c *cli.Context) error {
			database, err := openArchive(c, e)
			if err != nil {
				return outputError(err)
			}
			defer database.Close()

			output, err := web.Export(c.Context, database, web.ExportInput{
				Dir:     c.String("out"),
				Version: Version,
				Logger:  newLogger(e.stderr, envSettings(c, e).LogLevel),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(e.stdout, output)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the consolidation tools over MCP (stdio)",
		Action: func(c *cli.Context) error {
			settings := envSettings(c, e)
			logger := newLogger(e.stderr, settings.LogLevel)

			database, err := ops.OpenArchive(settings)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if database != nil {
				defer database.Close()
			}

			opts := mcp.Options{
				DB:           database,
				Logger:       logger,
				Lookup:       e.lookup,
				ExeDir:       e.exeDir,
				MappingsPath: c.String("mappings"),
				Location:     e.location,
			}
			if !c.Bool("no-refine") {
				opts.Refiner = refine.NewLLMClient(e.httpClient, logger)
			}
			return mcp.Run(opts, Version)
		},
	}
}

// Helper functions

// flagOverrides maps global flags onto configuration keys.
func flagOverrides(c *cli.Context) config.Layer {
	layer := config.Layer{}
	if c.IsSet("archive-dir") {
		layer[config.KeyArchiveDir] = c.String("archive-dir")
	}
	return layer
}

// envSettings resolves settings for commands that have no report header.
func envSettings(c *cli.Context, e *env) *config.Settings {
	return config.Merge(config.Resolve(nil, e.lookup), flagOverrides(c))
}

// openArchive opens the configured archive or fails when none is configured.
func openArchive(c *cli.Context, e *env) (*sql.DB, error) {
	database, err := ops.OpenArchive(envSettings(c, e))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if database == nil {
		return nil, errors.NewInvalidConfig(-1, "no archive configured (use --archive-dir or "+config.EnvKey(config.KeyArchiveDir)+")")
	}
	return database, nil
}

// newLogger returns a text logger on w at level.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return cli.Exit(fmt.Sprintf("[%s] %s", e.Code, e.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
