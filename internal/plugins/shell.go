package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/roach88/fileopen/internal/command"
)

// Launcher starts a detached process.
type Launcher func(name string, args ...string) error

// StartDetached runs name without waiting for it to exit.
func StartDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %s not found", command.ErrUnsupported, name)
		}
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Shell opens files and web links with the desktop's default handler.
type Shell struct {
	launch Launcher
	goos   string
}

// NewShell creates the shell plugin. A nil launch uses StartDetached.
func NewShell(launch Launcher) *Shell {
	if launch == nil {
		launch = StartDetached
	}
	return &Shell{launch: launch, goos: runtime.GOOS}
}

// Register adds shell.open.
func (p *Shell) Register(r *command.Router) error {
	return r.Register("shell.open", p.open)
}

func (p *Shell) open(_ context.Context, args json.RawMessage) (any, error) {
	var a pathArgs
	if err := command.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	if !openable(a.Path) {
		return nil, fmt.Errorf("%w: %q is neither an absolute path nor an http(s) or mailto URL",
			command.ErrInvalidArgs, a.Path)
	}

	name, argv := opener(p.goos, a.Path)
	if err := p.launch(name, argv...); err != nil {
		return nil, fmt.Errorf("open %s: %w", a.Path, err)
	}
	return nil, nil
}

// openable restricts shell.open to local paths and a few safe URL schemes.
func openable(target string) bool {
	if target == "" {
		return false
	}
	if filepath.IsAbs(target) {
		return true
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	case "mailto":
		return u.Opaque != ""
	}
	return false
}

// opener returns the command line that hands target to the default handler.
func opener(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}
