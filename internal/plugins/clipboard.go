package plugins

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/roach88/fileopen/internal/command"
)

// Clipboard reads and writes plain text on a clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// SystemClipboard is the OS clipboard.
type SystemClipboard struct{}

// ReadAll implements Clipboard.
func (SystemClipboard) ReadAll() (string, error) {
	if clipboard.Unsupported {
		return "", command.ErrUnsupported
	}
	return clipboard.ReadAll()
}

// WriteAll implements Clipboard.
func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return command.ErrUnsupported
	}
	return clipboard.WriteAll(text)
}

// ClipboardPlugin exposes clipboard.read_text and clipboard.write_text.
type ClipboardPlugin struct {
	cb Clipboard
}

// NewClipboardPlugin creates the clipboard plugin. A nil cb uses the
// system clipboard.
func NewClipboardPlugin(cb Clipboard) *ClipboardPlugin {
	if cb == nil {
		cb = SystemClipboard{}
	}
	return &ClipboardPlugin{cb: cb}
}

// Register adds the clipboard.* commands.
func (p *ClipboardPlugin) Register(r *command.Router) error {
	return registerAll(r, []registration{
		{"clipboard.read_text", p.readText},
		{"clipboard.write_text", p.writeText},
	})
}

func (p *ClipboardPlugin) readText(_ context.Context, _ json.RawMessage) (any, error) {
	text, err := p.cb.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}

func (p *ClipboardPlugin) writeText(_ context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Text *string `json:"text"`
	}
	if err := command.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Text == nil {
		return nil, fmt.Errorf("%w: text is required", command.ErrInvalidArgs)
	}
	if err := p.cb.WriteAll(*a.Text); err != nil {
		return nil, fmt.Errorf("write clipboard: %w", err)
	}
	return nil, nil
}
