package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fileopen/internal/listener"
)

// NewOpenCommand creates the open command.
func NewOpenCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <file-or-url>...",
		Short: "Send files to the running host",
		Long: `Send files to the running host as an open-file signal.

Paths are made absolute and encoded as file URLs; URLs pass through
unchanged. The host keeps only file URLs that name local files.

Example:
  fileopen open notes.md ../draft.txt
  fileopen open file:///tmp/report.pdf --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runOpen(opts *RootOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	locators, err := argsToLocators(args)
	if err != nil {
		return err
	}
	out.VerboseLog("forwarding %d locators", len(locators))
	opts.Logger.Debug("forwarding open request", append(logAttrs(opts), "locators", locators)...)

	d, err := opts.client().Opened(cmd.Context(), locators)
	if err != nil {
		return clientError("failed to send open request", err)
	}
	return out.Success(d, deliverySummary(d))
}

func deliverySummary(d listener.Delivery) string {
	return fmt.Sprintf("queued %d, ignored %d, notified %d consumer(s)", d.Accepted, d.Discarded, d.Notified)
}
