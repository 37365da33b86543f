package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/roach88/fileopen/internal/command"
)

// FS exposes text file access on an afero filesystem.
type FS struct {
	fs afero.Fs
}

// DirEntry is one element of fs.read_dir.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// NewFS creates the fs plugin.
func NewFS(fs afero.Fs) *FS {
	return &FS{fs: fs}
}

// Register adds the fs.* commands.
func (p *FS) Register(r *command.Router) error {
	return registerAll(r, []registration{
		{"fs.read_text_file", p.readTextFile},
		{"fs.write_text_file", p.writeTextFile},
		{"fs.exists", p.exists},
		{"fs.read_dir", p.readDir},
	})
}

type pathArgs struct {
	Path string `json:"path"`
}

func decodePath(args json.RawMessage) (string, error) {
	var a pathArgs
	if err := command.DecodeArgs(args, &a); err != nil {
		return "", err
	}
	return checkPath(a.Path)
}

// checkPath accepts absolute paths only.
func checkPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: path is required", command.ErrInvalidArgs)
	}
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: path %q must be absolute", command.ErrInvalidArgs, path)
	}
	return filepath.Clean(path), nil
}

func (p *FS) readTextFile(_ context.Context, args json.RawMessage) (any, error) {
	path, err := decodePath(args)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func (p *FS) writeTextFile(_ context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Path     string `json:"path"`
		Contents string `json:"contents"`
	}
	if err := command.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	path, err := checkPath(a.Path)
	if err != nil {
		return nil, err
	}
	if err := afero.WriteFile(p.fs, path, []byte(a.Contents), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return nil, nil
}

func (p *FS) exists(_ context.Context, args json.RawMessage) (any, error) {
	path, err := decodePath(args)
	if err != nil {
		return nil, err
	}
	ok, err := afero.Exists(p.fs, path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return ok, nil
}

func (p *FS) readDir(_ context.Context, args json.RawMessage) (any, error) {
	path, err := decodePath(args)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(p.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", path, err)
	}
	entries := make([]DirEntry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, dirEntry(fi))
	}
	return entries, nil
}

func dirEntry(fi os.FileInfo) DirEntry {
	e := DirEntry{Name: fi.Name(), IsDir: fi.IsDir()}
	if !e.IsDir {
		e.Size = fi.Size()
	}
	return e
}
