// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-stream/internal/config"
	"github.com/jeranaias/rigrun-stream/internal/logging"
)

// Version is the CLI version, set at build time.
var Version = "dev"

// =============================================================================
// APP
// =============================================================================

// App carries what every command needs: streams, configuration and logger.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	configPath string
	logLevel   string
	jsonOutput bool

	cfg    *config.Config
	logger *slog.Logger

	// isTTY reports whether Out is an interactive terminal.
	isTTY func() bool
}

// NewApp creates an App over the given streams.
func NewApp(in io.Reader, out, errOut io.Writer) *App {
	a := &App{In: in, Out: out, Err: errOut}
	a.isTTY = func() bool { return IsTerminal(a.Out) }
	return a
}

// RootCommand builds the command tree.
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "rigrun-stream",
		Short: "Progressive streaming renderer for model output",
		Long: `rigrun-stream reveals text the way a language model streams it: token by
token, with pacing adapted to code, tables, lists and reasoning blocks.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.Err)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config file (TOML, JSON or YAML)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Print machine-readable JSON")

	root.AddCommand(a.renderCmd())
	root.AddCommand(a.analyzeCmd())
	root.AddCommand(a.serveCmd())
	root.AddCommand(a.historyCmd())
	root.AddCommand(a.configCmd())

	return root
}

// setup loads the configuration and builds the logger.
func (a *App) setup() error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	logger, err := logging.New(cfg.Log, a.Err)
	if err != nil {
		return NewValidationErrorWithExample("log-level", a.logLevel, err.Error(), "--log-level debug")
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// configFile returns the file the configuration was loaded from, or "" when
// defaults are in use.
func (a *App) configFile() string {
	if a.configPath != "" {
		return a.configPath
	}
	paths, err := config.SearchPaths()
	if err != nil {
		return ""
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Execute runs the CLI against the process streams and returns the exit
// code.
func Execute(ctx context.Context, args []string) int {
	app := NewApp(os.Stdin, os.Stdout, os.Stderr)
	root := app.RootCommand()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		DisplayError(app.Err, err, app.jsonOutput)
		return GetExitCode(err)
	}
	return ExitSuccess
}
