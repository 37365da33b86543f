package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/fileopen/internal/config"
)

// Config returns a configuration isolated to the test: the native listener,
// no plugins, a store under t.TempDir() and a socket from SocketPath.
func Config(t testing.TB) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Listener.Mode = "native"
	cfg.Bridge.Network = "unix"
	cfg.Bridge.Address = SocketPath(t)
	cfg.Store.Path = filepath.Join(t.TempDir(), "fileopen.db")
	cfg.Plugins.Enabled = []string{}
	cfg.Metrics.Enabled = false
	return cfg
}

// SocketPath returns a unix socket path that fits the platform limit
// (104 bytes on darwin). t.TempDir() can be too deep for that, so the
// socket lives in a short directory removed at cleanup.
func SocketPath(t testing.TB) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "fo")
	if err != nil {
		t.Fatalf("create socket dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}
