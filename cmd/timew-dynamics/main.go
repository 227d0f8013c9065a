package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// argv0Commands maps the names timewarrior invokes extensions by to commands.
// Link or copy the binary into ~/.timewarrior/extensions under these names.
var argv0Commands = map[string]string{
	"dynamics_csv":     "csv",
	"dynamics":         "table",
	"dynamics_summary": "table",
	"dynamics_html":    "html",
	"dynamics_md":      "markdown",
}

// routeArgs inserts the command implied by the executable name when the
// caller did not name one.
func routeArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	cmd, ok := argv0Commands[name]
	if !ok {
		return args
	}
	if len(args) > 1 && knownCommands[args[1]] {
		return args
	}
	routed := make([]string, 0, len(args)+1)
	routed = append(routed, args[0], cmd)
	return append(routed, args[1:]...)
}

// exeDir returns the directory holding the running binary, with symlinks resolved.
func exeDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// useColor reports whether table output should carry ANSI colours.
func useColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func main() {
	e := &env{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		lookup: os.LookupEnv,
		exeDir: exeDir(),
		color:  useColor(),
	}

	app := newCLIApp(e)
	if err := app.Run(routeArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
