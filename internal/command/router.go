// Package command holds the synchronous commands the interface layer can
// invoke, including take_pending_opens, the drain endpoint of the pending
// store.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/fileopen/internal/metrics"
)

var (
	// ErrUnknownCommand is returned when no handler is registered for a name.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidArgs is returned by handlers that cannot decode their arguments.
	ErrInvalidArgs = errors.New("invalid arguments")

	// ErrUnsupported is returned by capabilities missing on this platform.
	ErrUnsupported = errors.New("unsupported on this platform")
)

// Handler executes a command. args is the raw JSON argument object and may
// be empty. The result is serialized to JSON by the transport.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Router maps command names to handlers.
//
// Thread-safety: Register and Invoke are safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register adds a handler. Registering a name twice is an error.
func (r *Router) Register(name string, h Handler) error {
	if name == "" || h == nil {
		return fmt.Errorf("register command %q: name and handler are required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("register command %q: already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Invoke runs the named command.
func (r *Router) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	result, err := h(ctx, args)
	if err != nil {
		metrics.RecordCommand(name, "error")
		return nil, err
	}
	metrics.RecordCommand(name, "ok")
	return result, nil
}

// Names returns the registered command names, sorted.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeArgs unmarshals args into v. Empty args leave v untouched.
func DecodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return nil
}
