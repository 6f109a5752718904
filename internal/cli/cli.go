package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/atograph/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("atograph", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
atograph - a compiler for declarative hardware description files.

Usage:
  atograph [options] [ENTRY_PATH]

Arguments:
  ENTRY_PATH
    Path to the .ato file to compile.

Options:
`)
		flagSet.PrintDefaults()
	}

	entryFlag := flagSet.String("entry", "", "Path to the .ato entry file.")
	eFlag := flagSet.String("e", "", "Path to the .ato entry file (shorthand).")
	rootFlag := flagSet.String("root", "", "Entrypoint type to instantiate. Empty compiles without instantiating.")
	projectFlag := flagSet.String("project", "", "Project directory holding ato_project.hcl. Defaults to the entry file's directory.")
	watchFlag := flagSet.Bool("watch", false, "Recompile when source files change.")
	depthFlag := flagSet.Int("max-import-depth", 0, "Maximum import nesting depth. 0 uses the default.")
	retypeFlag := flagSet.String("retype", "any", "Retype compatibility rule. Options: 'any' or 'structural'.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *entryFlag != "" {
		path = *entryFlag
	} else if *eFlag != "" {
		path = *eFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Entry path determined.", "path", path)

	if path == "" {
		slog.Debug("No entry path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if !app.ValidLogFormat(logFormat) {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	if !app.ValidLogLevel(logLevel) {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	retype := strings.ToLower(*retypeFlag)
	if retype != "any" && retype != "structural" {
		return nil, false, &ExitError{Code: 2, Message: "invalid retype: must be 'any' or 'structural'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		EntryPath:      path,
		RootName:       *rootFlag,
		ProjectDir:     *projectFlag,
		LogFormat:      logFormat,
		LogLevel:       logLevel,
		Watch:          *watchFlag,
		MaxImportDepth: *depthFlag,
		RetypePolicy:   retype,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
