package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/fileopen/internal/app"
	"github.com/roach88/fileopen/internal/bridge"
	"github.com/roach88/fileopen/internal/config"
	"github.com/roach88/fileopen/internal/locator"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve [file-or-url...]",
		Short: "Run the fileopen host",
		Long: `Run the fileopen host.

The host owns the pending-open queue and serves the bridge on
bridge.network/bridge.address. Files given on the command line are
queued before the bridge starts accepting connections, exactly like a
launch triggered by opening a document.

If another host already owns the bridge, the files are forwarded to it
and this process exits.

Example:
  fileopen serve
  fileopen serve ~/Documents/report.pdf --verbose`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, args, cmd)
		},
	}

	return cmd
}

func runServe(opts *ServeOptions, args []string, cmd *cobra.Command) error {
	cfg := opts.Config
	logger := opts.Logger

	locators, err := argsToLocators(args)
	if err != nil {
		return err
	}

	ln, err := bridge.Listen(cfg.Bridge.Network, cfg.Bridge.Address)
	if errors.Is(err, bridge.ErrAlreadyRunning) {
		return forwardToRunningHost(opts.RootOptions, locators, cmd)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open bridge", err)
	}
	defer ln.Close()

	host, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start host", err)
	}
	defer func() {
		if closeErr := host.Close(); closeErr != nil {
			logger.Error("error closing host", "error", closeErr)
		}
	}()

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	// Launch arguments are queued before anyone can attach, so the only way
	// to see them is take_pending_opens.
	if len(locators) > 0 {
		d, err := host.Deliver(ctx, locators)
		if err != nil {
			return WrapExitError(ExitFatal, "pending store failed", err)
		}
		logger.Info("launch files queued", "accepted", d.Accepted, "discarded", d.Discarded)
	}

	if opts.Viper != nil {
		config.Watch(opts.Viper, func(c *config.Config) {
			opts.LogLevel.Set(logLevel(c.Log.Level, opts.Verbose))
			logger.Info("config reloaded", "log_level", c.Log.Level)
		}, func(err error) {
			logger.Warn("ignoring invalid config change", "error", err)
		})
	}

	srv := bridge.NewServer(host, logger, bridge.WithMetrics(cfg.Metrics.Enabled))
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx, ln)
	}()

	logger.Info("host started",
		"listener", listenerName(host),
		"network", cfg.Bridge.Network,
		"address", cfg.Bridge.Address)
	fmt.Fprintf(cmd.OutOrStdout(), "fileopen host listening on %s\n", cfg.Bridge.Address)

	select {
	case err := <-host.Fatal():
		cancel()
		<-serveErr
		return WrapExitError(ExitFatal, "pending store failed", err)
	case err := <-serveErr:
		if err != nil {
			return WrapExitError(ExitFailure, "bridge error", err)
		}
	}

	logger.Info("host stopped gracefully")
	return nil
}

// forwardToRunningHost hands launch files to the host that owns the bridge.
func forwardToRunningHost(opts *RootOptions, locators []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	if len(locators) == 0 {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("a fileopen host is already running on %s", opts.Config.Bridge.Address))
	}

	d, err := opts.client().Opened(cmd.Context(), locators)
	if err != nil {
		return clientError("failed to forward files", err)
	}
	opts.Logger.Info("forwarded launch files to running host", "accepted", d.Accepted)
	return out.Success(d, deliverySummary(d))
}

// argsToLocators converts command-line files and URLs into locators.
func argsToLocators(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to resolve working directory", err)
	}
	locators := make([]string, 0, len(args))
	for _, arg := range args {
		locators = append(locators, locator.FromArg(arg, cwd))
	}
	return locators, nil
}

func listenerName(h *app.Host) string {
	st, err := h.Status()
	if err != nil {
		return "unknown"
	}
	return st.Listener
}

// logAttrs is shared by client commands that report the bridge they used.
func logAttrs(opts *RootOptions) []any {
	return []any{
		slog.String("network", opts.Config.Bridge.Network),
		slog.String("address", opts.Config.Bridge.Address),
	}
}
