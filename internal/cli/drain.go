package cli

import (
	"github.com/spf13/cobra"
)

// NewDrainCommand creates the drain command.
func NewDrainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Take every pending open request",
		Long: `Take every pending open request from the running host.

Prints the queued paths oldest first and clears the queue. A second drain
with no open requests in between prints nothing.

Example:
  fileopen drain
  fileopen drain --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrain(rootOpts, cmd)
		},
	}

	return cmd
}

func runDrain(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	paths, err := opts.client().TakePendingOpens(cmd.Context())
	if err != nil {
		return clientError("failed to drain pending opens", err)
	}
	out.VerboseLog("drained %d paths", len(paths))
	if out.Format != "json" && len(paths) == 0 {
		return nil
	}
	return out.Success(paths, paths...)
}
