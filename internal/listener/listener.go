// Package listener receives open-file lifecycle signals and feeds them into
// the pending store and the notification channel.
//
// Two variants exist. Native resolves locators, appends the resulting paths
// to the store, then emits a best-effort file-opened event. None accepts
// nothing; it is selected on platforms without an open-with mechanism so
// that the host still starts.
package listener

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/fileopen/internal/locator"
	"github.com/roach88/fileopen/internal/metrics"
	"github.com/roach88/fileopen/internal/notify"
)

// Delivery reports what happened to one open-file signal.
type Delivery struct {
	Accepted  int `json:"accepted"`
	Discarded int `json:"discarded"`
	Notified  int `json:"notified"`
}

// Listener handles open-file signals.
type Listener interface {
	// Name identifies the variant ("native" or "none").
	Name() string

	// Opened handles one signal carrying zero or more locators.
	// The only error is a fatal pending store failure.
	Opened(ctx context.Context, locators []string) (Delivery, error)
}

// Appender is the write side of the pending store.
type Appender interface {
	Append(paths []string) error
}

// Notifier emits best-effort events and reports how many consumers got them.
type Notifier interface {
	Emit(name string, paths []string) int
}

// Native is the listener used on platforms that deliver open-file signals.
type Native struct {
	store    Appender
	notifier Notifier
	logger   *slog.Logger
}

// NewNative creates a Native listener. A nil logger uses slog.Default().
func NewNative(store Appender, notifier Notifier, logger *slog.Logger) *Native {
	if logger == nil {
		logger = slog.Default()
	}
	return &Native{store: store, notifier: notifier, logger: logger}
}

// Name implements Listener.
func (l *Native) Name() string { return string(ModeNative) }

// Opened implements Listener.
//
// The store append happens before the notification so that a consumer
// reacting to the event can always find the paths via take_pending_opens.
func (l *Native) Opened(ctx context.Context, locators []string) (Delivery, error) {
	paths, discarded := locator.Filter(locators)
	metrics.RecordLocators(len(paths), discarded)

	d := Delivery{Discarded: discarded}
	if discarded > 0 {
		l.logger.DebugContext(ctx, "ignored non-file locators", "count", discarded)
	}
	if len(paths) == 0 {
		return d, nil
	}

	if err := l.store.Append(paths); err != nil {
		return d, fmt.Errorf("append pending opens: %w", err)
	}
	d.Accepted = len(paths)

	d.Notified = l.notifier.Emit(notify.EventFileOpened, paths)
	l.logger.InfoContext(ctx, "open request queued",
		"paths", len(paths),
		"notified", d.Notified)

	return d, nil
}

// None is the listener for platforms without open-file signals.
type None struct {
	logger *slog.Logger
}

// NewNone creates a no-op listener. A nil logger uses slog.Default().
func NewNone(logger *slog.Logger) *None {
	if logger == nil {
		logger = slog.Default()
	}
	return &None{logger: logger}
}

// Name implements Listener.
func (l *None) Name() string { return string(ModeNone) }

// Opened implements Listener. Every locator is discarded.
func (l *None) Opened(ctx context.Context, locators []string) (Delivery, error) {
	if len(locators) > 0 {
		l.logger.DebugContext(ctx, "open-file signals unsupported, ignoring", "locators", len(locators))
	}
	return Delivery{Discarded: len(locators)}, nil
}
