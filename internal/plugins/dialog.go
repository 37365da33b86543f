package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/roach88/fileopen/internal/command"
)

// ErrCancelled is returned by a Runner when the user dismissed the dialog.
var ErrCancelled = errors.New("dialog cancelled")

// Runner runs a dialog program and returns its standard output.
// Implementations return ErrCancelled when the user dismisses the dialog
// and command.ErrUnsupported when no dialog program is installed.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

// RunZenity runs the zenity file picker.
func RunZenity(ctx context.Context, args ...string) ([]byte, error) {
	bin, err := exec.LookPath("zenity")
	if err != nil {
		return nil, fmt.Errorf("%w: zenity not installed", command.ErrUnsupported)
	}
	out, err := exec.CommandContext(ctx, bin, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, ErrCancelled
		}
		return nil, err
	}
	return out, nil
}

// OpenOptions are the arguments of dialog.open.
type OpenOptions struct {
	Title       string `json:"title"`
	Directory   bool   `json:"directory"`
	Multiple    bool   `json:"multiple"`
	DefaultPath string `json:"default_path"`
}

// Dialog shows native file pickers.
type Dialog struct {
	run Runner
}

// NewDialog creates the dialog plugin. A nil run uses RunZenity.
func NewDialog(run Runner) *Dialog {
	if run == nil {
		run = RunZenity
	}
	return &Dialog{run: run}
}

// Register adds dialog.open.
func (p *Dialog) Register(r *command.Router) error {
	return r.Register("dialog.open", p.open)
}

// open returns nil when cancelled, a path, or a list of paths when
// Multiple is set.
func (p *Dialog) open(ctx context.Context, args json.RawMessage) (any, error) {
	var opts OpenOptions
	if err := command.DecodeArgs(args, &opts); err != nil {
		return nil, err
	}

	out, err := p.run(ctx, zenityArgs(opts)...)
	if errors.Is(err, ErrCancelled) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open dialog: %w", err)
	}

	out = bytes.TrimRight(out, "\r\n")
	if len(out) == 0 {
		return nil, nil
	}
	if !opts.Multiple {
		return string(out), nil
	}
	return strings.Split(string(out), "\n"), nil
}

func zenityArgs(opts OpenOptions) []string {
	args := []string{"--file-selection"}
	if opts.Title != "" {
		args = append(args, "--title="+opts.Title)
	}
	if opts.Directory {
		args = append(args, "--directory")
	}
	if opts.Multiple {
		args = append(args, "--multiple", "--separator=\n")
	}
	if opts.DefaultPath != "" {
		args = append(args, "--filename="+opts.DefaultPath)
	}
	return args
}
