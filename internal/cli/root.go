// Package cli implements the fileopen command line: the long-running host
// (serve) and the client commands that talk to it over the bridge.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/fileopen/internal/bridge"
	"github.com/roach88/fileopen/internal/config"
)

// RootOptions holds global flags for all commands, plus the configuration
// and logger resolved from them before any subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	Viper    *viper.Viper
	Config   *config.Config
	Logger   *slog.Logger
	LogLevel *slog.LevelVar
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fileopen CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// Execute runs the CLI with os.Args, reports any error on stderr in the
// selected format and returns the process exit code.
func Execute(ctx context.Context) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		// cobra flag and argument errors
		exitErr = WrapExitError(ExitCommandError, err.Error(), nil)
	}
	out := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.ErrOrStderr(),
		Verbose: opts.Verbose,
	}
	if !isValidFormat(out.Format) {
		out.Format = "text"
	}
	var details any
	if exitErr.Err != nil {
		details = exitErr.Err.Error()
	}
	_ = out.Error(errorCode(exitErr), exitErr.Error(), details)
	return exitErr.Code
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fileopen",
		Short: "fileopen - pending-open bridge",
		Long: `fileopen queues "open this file" requests from the operating system until
the interface layer is ready for them.

A running host (fileopen serve) accepts open requests, keeps them in a
pending queue and pushes a best-effort file-opened event to attached
consumers. Consumers call take_pending_opens to drain the queue, so
requests that arrive before anyone listens are never lost.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.load(cmd.ErrOrStderr())
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: fileopen.yaml in the user config dir)")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewOpenCommand(opts))
	cmd.AddCommand(NewDrainCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewInvokeCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// load reads configuration and installs the process logger.
func (o *RootOptions) load(stderr io.Writer) error {
	o.Viper = viper.New()
	cfg, err := config.Load(o.Viper, o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	o.Config = cfg

	o.LogLevel = new(slog.LevelVar)
	o.LogLevel.Set(logLevel(cfg.Log.Level, o.Verbose))
	handlerOpts := &slog.HandlerOptions{Level: o.LogLevel}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(stderr, handlerOpts)
	}
	o.Logger = slog.New(handler)
	slog.SetDefault(o.Logger)
	return nil
}

// formatter returns an OutputFormatter bound to cmd's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// client returns a bridge client for the configured host.
func (o *RootOptions) client(extra ...bridge.ClientOption) *bridge.Client {
	opts := append([]bridge.ClientOption{bridge.WithLogger(o.Logger)}, extra...)
	return bridge.NewClient(o.Config.Bridge.Network, o.Config.Bridge.Address, opts...)
}

// logLevel maps log.level to a slog level. --verbose always wins.
func logLevel(level string, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
