package cli

import (
	"bytes"
	"encoding/json"

	"github.com/spf13/cobra"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Args string
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <command>",
		Short: "Invoke a command on the running host",
		Long: `Invoke a command on the running host and print its JSON result.

Commands include take_pending_opens and the plugin commands enabled in
plugins.enabled (fs.*, clipboard.*, shell.open, dialog.open, sql.*,
recent.*).

Example:
  fileopen invoke take_pending_opens
  fileopen invoke fs.read_text_file --args '{"path":"/tmp/notes.md"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeCommand(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "{}", "command arguments as JSON")

	return cmd
}

func invokeCommand(opts *InvokeOptions, name string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	// Validate args JSON
	if !json.Valid([]byte(opts.Args)) {
		return NewExitError(ExitCommandError, "invalid --args JSON")
	}

	out.VerboseLog("invoking %s", name)
	result, err := opts.client().Invoke(cmd.Context(), name, json.RawMessage(opts.Args))
	if err != nil {
		return clientError("command "+name+" failed", err)
	}

	if out.Format == "json" {
		return out.Success(result)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		return out.Success(string(result), string(result))
	}
	return out.Success(result, pretty.String())
}
