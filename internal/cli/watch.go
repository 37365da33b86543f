package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/fileopen/internal/bridge"
	"github.com/roach88/fileopen/internal/notify"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Drain bool
	Count int
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print file-opened events as they happen",
		Long: `Attach to the running host as an event consumer and print every
file-opened event.

Events are best effort: anything opened before watch attached is only
available through take_pending_opens. With --drain, watch drains the
queue right after attaching, which is how an interface layer should
start up.

Example:
  fileopen watch
  fileopen watch --drain --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Drain, "drain", false, "drain pending opens after attaching")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "exit after this many events (0 = run until interrupted)")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	connected := make(chan struct{}, 1)
	client := opts.client(bridge.WithConnected(func() {
		select {
		case connected <- struct{}{}:
		default:
		}
	}))

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Fail fast when nothing is running instead of retrying forever.
	if _, err := client.Health(ctx); err != nil {
		return clientError("failed to reach host", err)
	}

	events, errs := client.Subscribe(ctx)

	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-connected:
			// Anything opened while detached is only in the pending queue.
			if !opts.Drain {
				continue
			}
			paths, err := client.TakePendingOpens(ctx)
			if err != nil {
				return clientError("failed to drain pending opens", err)
			}
			if len(paths) > 0 {
				if err := printEvent(out, notify.Event{Name: "pending", Paths: paths}); err != nil {
					return err
				}
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			out.VerboseLog("event stream interrupted: %v", err)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := printEvent(out, ev); err != nil {
				return err
			}
			seen++
			if opts.Count > 0 && seen >= opts.Count {
				return nil
			}
		}
	}
}

// printEvent writes one event: a JSON line, or "name<TAB>path<TAB>path".
func printEvent(out *OutputFormatter, ev notify.Event) error {
	if out.Format == "json" {
		return json.NewEncoder(out.Writer).Encode(ev)
	}
	_, err := fmt.Fprintf(out.Writer, "%s\t%s\n", ev.Name, strings.Join(ev.Paths, "\t"))
	return err
}
