package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fileopen/internal/command"
	"github.com/roach88/fileopen/internal/store"
)

func invoke(t *testing.T, r *command.Router, name, args string) (any, error) {
	t.Helper()
	var raw json.RawMessage
	if args != "" {
		raw = json.RawMessage(args)
	}
	return r.Invoke(context.Background(), name, raw)
}

type fakeClipboard struct {
	text string
	err  error
}

func (c *fakeClipboard) ReadAll() (string, error) { return c.text, c.err }

func (c *fakeClipboard) WriteAll(text string) error {
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

func TestRegister_AllPlugins(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	r := command.NewRouter()
	err = Register(r, []string{NameFS, NameClipboard, NameShell, NameDialog, NameSQL}, Deps{
		FS:        afero.NewMemMapFs(),
		Clipboard: &fakeClipboard{},
		Launcher:  func(string, ...string) error { return nil },
		Dialog:    func(context.Context, ...string) ([]byte, error) { return nil, ErrCancelled },
		Store:     st,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"clipboard.read_text",
		"clipboard.write_text",
		"dialog.open",
		"fs.exists",
		"fs.read_dir",
		"fs.read_text_file",
		"fs.write_text_file",
		"recent.forget",
		"recent.list",
		"recent.touch",
		"shell.open",
		"sql.execute",
		"sql.select",
	}, r.Names())
}

func TestRegister_Errors(t *testing.T) {
	r := command.NewRouter()
	assert.ErrorContains(t, Register(r, []string{"telepathy"}, Deps{}), "unknown plugin")
	assert.ErrorContains(t, Register(r, []string{NameSQL}, Deps{}), "no store")

	require.NoError(t, Register(r, []string{NameShell}, Deps{}))
	assert.Error(t, Register(r, []string{NameShell}, Deps{}), "duplicate registration")
}

func TestFS(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/docs/sub", 0o755))
	r := command.NewRouter()
	require.NoError(t, NewFS(fs).Register(r))

	_, err := invoke(t, r, "fs.write_text_file", `{"path":"/docs/a.txt","contents":"hello"}`)
	require.NoError(t, err)

	got, err := invoke(t, r, "fs.read_text_file", `{"path":"/docs/a.txt"}`)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	exists, err := invoke(t, r, "fs.exists", `{"path":"/docs/a.txt"}`)
	require.NoError(t, err)
	assert.Equal(t, true, exists)

	exists, err = invoke(t, r, "fs.exists", `{"path":"/docs/missing.txt"}`)
	require.NoError(t, err)
	assert.Equal(t, false, exists)

	entries, err := invoke(t, r, "fs.read_dir", `{"path":"/docs"}`)
	require.NoError(t, err)
	assert.Equal(t, []DirEntry{
		{Name: "a.txt", Size: 5},
		{Name: "sub", IsDir: true},
	}, entries)

	_, err = invoke(t, r, "fs.read_text_file", `{"path":"/docs/missing.txt"}`)
	assert.Error(t, err)
}

func TestFS_RejectsBadPaths(t *testing.T) {
	r := command.NewRouter()
	require.NoError(t, NewFS(afero.NewMemMapFs()).Register(r))

	tests := []struct {
		name string
		args string
	}{
		{"missing", `{}`},
		{"relative", `{"path":"docs/a.txt"}`},
		{"malformed", `{"path":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(t, r, "fs.read_text_file", tt.args)
			assert.ErrorIs(t, err, command.ErrInvalidArgs)
		})
	}
}

func TestClipboard(t *testing.T) {
	cb := &fakeClipboard{}
	r := command.NewRouter()
	require.NoError(t, NewClipboardPlugin(cb).Register(r))

	_, err := invoke(t, r, "clipboard.write_text", `{"text":"copied"}`)
	require.NoError(t, err)

	got, err := invoke(t, r, "clipboard.read_text", "")
	require.NoError(t, err)
	assert.Equal(t, "copied", got)

	_, err = invoke(t, r, "clipboard.write_text", `{}`)
	assert.ErrorIs(t, err, command.ErrInvalidArgs)

	_, err = invoke(t, r, "clipboard.write_text", `{"text":""}`)
	assert.NoError(t, err, "empty text clears the clipboard")
}

func TestClipboard_Unsupported(t *testing.T) {
	r := command.NewRouter()
	require.NoError(t, NewClipboardPlugin(&fakeClipboard{err: command.ErrUnsupported}).Register(r))

	_, err := invoke(t, r, "clipboard.read_text", "")
	assert.ErrorIs(t, err, command.ErrUnsupported)
}

func TestShell_Open(t *testing.T) {
	var gotName string
	var gotArgs []string
	p := NewShell(func(name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	})
	p.goos = "linux"
	r := command.NewRouter()
	require.NoError(t, p.Register(r))

	_, err := invoke(t, r, "shell.open", `{"path":"https://example.com/docs"}`)
	require.NoError(t, err)
	assert.Equal(t, "xdg-open", gotName)
	assert.Equal(t, []string{"https://example.com/docs"}, gotArgs)
}

func TestShell_RejectsUnsafeTargets(t *testing.T) {
	launched := false
	p := NewShell(func(string, ...string) error {
		launched = true
		return nil
	})
	r := command.NewRouter()
	require.NoError(t, p.Register(r))

	for _, target := range []string{"", "relative/file.txt", "javascript:alert(1)", "smb://server/share", "https://"} {
		raw, _ := json.Marshal(map[string]string{"path": target})
		_, err := invoke(t, r, "shell.open", string(raw))
		assert.ErrorIs(t, err, command.ErrInvalidArgs, target)
	}
	assert.False(t, launched)
}

func TestOpener(t *testing.T) {
	tests := []struct {
		goos string
		name string
		args []string
	}{
		{"darwin", "open", []string{"/a"}},
		{"windows", "rundll32", []string{"url.dll,FileProtocolHandler", "/a"}},
		{"linux", "xdg-open", []string{"/a"}},
		{"freebsd", "xdg-open", []string{"/a"}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args := opener(tt.goos, "/a")
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestDialog(t *testing.T) {
	tests := []struct {
		name     string
		args     string
		out      string
		err      error
		wantArgs []string
		want     any
	}{
		{
			name:     "single file",
			args:     `{"title":"Open"}`,
			out:      "/docs/a.txt\n",
			wantArgs: []string{"--file-selection", "--title=Open"},
			want:     "/docs/a.txt",
		},
		{
			name:     "multiple files",
			args:     `{"multiple":true,"default_path":"/docs/"}`,
			out:      "/docs/a.txt\n/docs/b.txt\n",
			wantArgs: []string{"--file-selection", "--multiple", "--separator=\n", "--filename=/docs/"},
			want:     []string{"/docs/a.txt", "/docs/b.txt"},
		},
		{
			name:     "directory",
			args:     `{"directory":true}`,
			out:      "/docs\n",
			wantArgs: []string{"--file-selection", "--directory"},
			want:     "/docs",
		},
		{
			name:     "cancelled",
			args:     ``,
			err:      ErrCancelled,
			wantArgs: []string{"--file-selection"},
			want:     nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotArgs []string
			p := NewDialog(func(_ context.Context, args ...string) ([]byte, error) {
				gotArgs = args
				return []byte(tt.out), tt.err
			})
			r := command.NewRouter()
			require.NoError(t, p.Register(r))

			got, err := invoke(t, r, "dialog.open", tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.wantArgs, gotArgs)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDialog_Unsupported(t *testing.T) {
	p := NewDialog(func(context.Context, ...string) ([]byte, error) {
		return nil, command.ErrUnsupported
	})
	r := command.NewRouter()
	require.NoError(t, p.Register(r))

	_, err := invoke(t, r, "dialog.open", "")
	assert.ErrorIs(t, err, command.ErrUnsupported)
}

func TestSQL(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	r := command.NewRouter()
	require.NoError(t, NewSQL(st, nil).Register(r))

	_, err = invoke(t, r, "sql.execute", `{"query":"CREATE TABLE kv (k TEXT PRIMARY KEY, v INTEGER, f REAL)"}`)
	require.NoError(t, err)

	res, err := invoke(t, r, "sql.execute", `{"query":"INSERT INTO kv VALUES (?, ?, ?)","values":["a",42,1.5]}`)
	require.NoError(t, err)
	assert.Equal(t, store.ExecResult{RowsAffected: 1, LastInsertID: 1}, res)

	rows, err := invoke(t, r, "sql.select", `{"query":"SELECT k, v, f FROM kv WHERE v = ?","values":[42]}`)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"k": "a", "v": int64(42), "f": 1.5}}, rows)

	_, err = invoke(t, r, "sql.select", `{"query":"  "}`)
	assert.ErrorIs(t, err, command.ErrInvalidArgs)

	_, err = invoke(t, r, "sql.execute", `{"query":"SELECT ?","values":[{"nested":true}]}`)
	assert.ErrorIs(t, err, command.ErrInvalidArgs)
}

func TestRecent(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := time.UnixMilli(1_700_000_000_000)
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	r := command.NewRouter()
	require.NoError(t, NewSQL(st, now).Register(r))

	for _, p := range []string{"/docs/a.txt", "/docs/b.txt", "/docs/a.txt"} {
		_, err := invoke(t, r, "recent.touch", `{"path":"`+p+`"}`)
		require.NoError(t, err)
	}

	got, err := invoke(t, r, "recent.list", `{"limit":10}`)
	require.NoError(t, err)
	assert.Equal(t, []store.RecentDocument{
		{Path: "/docs/a.txt", OpenedAt: 1_700_000_003_000, OpenCount: 2},
		{Path: "/docs/b.txt", OpenedAt: 1_700_000_002_000, OpenCount: 1},
	}, got)

	_, err = invoke(t, r, "recent.forget", `{"path":"/docs/a.txt"}`)
	require.NoError(t, err)
	got, err = invoke(t, r, "recent.list", "")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = invoke(t, r, "recent.touch", `{"path":"relative.txt"}`)
	assert.True(t, errors.Is(err, command.ErrInvalidArgs))
}
