// Package plugins registers the capability commands the interface layer
// calls directly: filesystem access, clipboard, shell open, file dialogs
// and SQL storage.
//
// Plugins are opaque collaborators of the host. They are reachable only
// through the command router and never touch the pending store.
package plugins

import (
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/roach88/fileopen/internal/command"
	"github.com/roach88/fileopen/internal/store"
)

// Plugin names accepted in plugins.enabled.
const (
	NameFS        = "fs"
	NameClipboard = "clipboard"
	NameShell     = "shell"
	NameDialog    = "dialog"
	NameSQL       = "sql"
)

// Deps carries the collaborators plugins are built from. Zero fields fall
// back to the real system implementation, except Store: the sql plugin
// cannot be enabled without one.
type Deps struct {
	FS        afero.Fs
	Clipboard Clipboard
	Launcher  Launcher
	Dialog    Runner
	Store     *store.Store
	Now       func() time.Time
}

// Register adds the commands of every enabled plugin to r.
func Register(r *command.Router, enabled []string, deps Deps) error {
	for _, name := range enabled {
		var err error
		switch name {
		case NameFS:
			fs := deps.FS
			if fs == nil {
				fs = afero.NewOsFs()
			}
			err = NewFS(fs).Register(r)
		case NameClipboard:
			err = NewClipboardPlugin(deps.Clipboard).Register(r)
		case NameShell:
			err = NewShell(deps.Launcher).Register(r)
		case NameDialog:
			err = NewDialog(deps.Dialog).Register(r)
		case NameSQL:
			if deps.Store == nil {
				return fmt.Errorf("plugin %q: no store configured", name)
			}
			err = NewSQL(deps.Store, deps.Now).Register(r)
		default:
			return fmt.Errorf("unknown plugin %q", name)
		}
		if err != nil {
			return fmt.Errorf("plugin %q: %w", name, err)
		}
	}
	return nil
}

type registration struct {
	name    string
	handler command.Handler
}

func registerAll(r *command.Router, regs []registration) error {
	for _, reg := range regs {
		if err := r.Register(reg.name, reg.handler); err != nil {
			return err
		}
	}
	return nil
}
