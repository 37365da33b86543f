// Package app assembles the fileopen host: the pending store, the
// notification broadcaster, the selected listener, the command router and
// the capability plugins.
//
// A Host is created once per process and shared by pointer. It is the only
// owner of the pending store; transports reach the store exclusively
// through Deliver and Invoke.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/roach88/fileopen/internal/command"
	"github.com/roach88/fileopen/internal/config"
	"github.com/roach88/fileopen/internal/listener"
	"github.com/roach88/fileopen/internal/metrics"
	"github.com/roach88/fileopen/internal/notify"
	"github.com/roach88/fileopen/internal/pending"
	"github.com/roach88/fileopen/internal/plugins"
	"github.com/roach88/fileopen/internal/store"
)

// Options customize host construction. The zero value builds the real
// platform host.
type Options struct {
	// GOOS overrides runtime.GOOS for listener selection.
	GOOS string

	// IDs and Now make notification events deterministic.
	IDs notify.IDGenerator
	Now func() time.Time

	// Listener replaces the listener picked from configuration. It must
	// write to the store passed in.
	Listener func(*pending.Store, *notify.Broadcaster) listener.Listener

	// Plugins overrides plugin collaborators. When Plugins.Store is nil and
	// the sql plugin is enabled, the host opens store.path itself.
	Plugins plugins.Deps
}

// Status is a snapshot of the host.
type Status struct {
	Listener    string   `json:"listener"`
	Pending     int      `json:"pending"`
	Subscribers int      `json:"subscribers"`
	Commands    []string `json:"commands"`
}

// Host owns the shared state of a running fileopen process.
//
// Thread-safety: all methods are safe for concurrent use.
type Host struct {
	logger   *slog.Logger
	pending  *pending.Store
	events   *notify.Broadcaster
	listener listener.Listener
	router   *command.Router

	// db is non-nil only when the host opened it.
	db *store.Store

	fatal     chan error
	fatalOnce sync.Once
}

// New builds a host from cfg. A nil logger uses slog.Default().
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Host, error) {
	if logger == nil {
		logger = slog.Default()
	}
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	var bopts []notify.Option
	bopts = append(bopts, notify.WithBuffer(cfg.Notify.Buffer))
	if opts.IDs != nil {
		bopts = append(bopts, notify.WithIDGenerator(opts.IDs))
	}
	if opts.Now != nil {
		bopts = append(bopts, notify.WithClock(opts.Now))
	}

	h := &Host{
		logger:  logger,
		pending: pending.New(),
		events:  notify.NewBroadcaster(bopts...),
		router:  command.NewRouter(),
		fatal:   make(chan error, 1),
	}

	if opts.Listener != nil {
		h.listener = opts.Listener(h.pending, h.events)
	} else {
		l, err := listener.Select(listener.Mode(cfg.Listener.Mode), goos, h.pending, h.events, logger)
		if err != nil {
			return nil, err
		}
		h.listener = l
	}

	if err := h.router.Register(command.TakePendingOpens, command.NewTakePendingOpens(h.pending)); err != nil {
		return nil, err
	}

	deps := opts.Plugins
	if deps.Now == nil {
		deps.Now = opts.Now
	}
	if deps.Store == nil && slices.Contains(cfg.Plugins.Enabled, plugins.NameSQL) {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		h.db = db
		deps.Store = db
	}
	if err := plugins.Register(h.router, cfg.Plugins.Enabled, deps); err != nil {
		h.Close()
		return nil, err
	}

	logger.Debug("host ready",
		"listener", h.listener.Name(),
		"commands", len(h.router.Names()))
	return h, nil
}

// Deliver hands one open-file signal to the listener.
func (h *Host) Deliver(ctx context.Context, locators []string) (listener.Delivery, error) {
	d, err := h.listener.Opened(ctx, locators)
	if err != nil {
		h.fail(err)
		return d, err
	}
	h.updatePending()
	return d, nil
}

// Invoke runs a command on the router.
func (h *Host) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	result, err := h.router.Invoke(ctx, name, args)
	if err != nil {
		if errors.Is(err, pending.ErrPoisoned) {
			h.fail(err)
		}
		return nil, err
	}
	if name == command.TakePendingOpens {
		h.updatePending()
	}
	return result, nil
}

// Subscribe attaches an event consumer.
func (h *Host) Subscribe() *notify.Subscription {
	return h.events.Subscribe()
}

// Unsubscribe detaches an event consumer.
func (h *Host) Unsubscribe(sub *notify.Subscription) {
	h.events.Unsubscribe(sub)
}

// Status reports the current host state.
func (h *Host) Status() (Status, error) {
	n, err := h.pending.Len()
	if err != nil {
		h.fail(err)
		return Status{}, err
	}
	return Status{
		Listener:    h.listener.Name(),
		Pending:     n,
		Subscribers: h.events.Count(),
		Commands:    h.router.Names(),
	}, nil
}

// Fatal delivers the first unrecoverable error. The host must be shut down
// once it fires.
func (h *Host) Fatal() <-chan error {
	return h.fatal
}

// Close releases resources opened by New.
func (h *Host) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}

func (h *Host) fail(err error) {
	h.fatalOnce.Do(func() {
		h.logger.Error("pending store failed, shutting down", "error", err)
		h.fatal <- err
	})
}

func (h *Host) updatePending() {
	if n, err := h.pending.Len(); err == nil {
		metrics.SetPendingOpens(n)
	}
}
