package listener

import (
	"errors"
	"fmt"
	"log/slog"
)

// Mode selects the listener variant.
type Mode string

const (
	// ModeAuto picks Native when the platform supports open-file signals.
	ModeAuto Mode = "auto"
	// ModeNative always uses the Native listener.
	ModeNative Mode = "native"
	// ModeNone always uses the no-op listener.
	ModeNone Mode = "none"
)

// ErrUnknownMode is returned for modes other than auto, native and none.
var ErrUnknownMode = errors.New("unknown listener mode")

// supported lists platforms with a desktop open-with mechanism that can hand
// files to a running instance.
var supported = map[string]bool{
	"darwin":    true,
	"ios":       true,
	"linux":     true,
	"freebsd":   true,
	"openbsd":   true,
	"netbsd":    true,
	"dragonfly": true,
	"windows":   true,
}

// Supports reports whether goos delivers open-file signals.
func Supports(goos string) bool {
	return supported[goos]
}

// Select builds the listener for mode on goos.
func Select(mode Mode, goos string, store Appender, notifier Notifier, logger *slog.Logger) (Listener, error) {
	switch mode {
	case ModeNative:
		return NewNative(store, notifier, logger), nil
	case ModeNone:
		return NewNone(logger), nil
	case ModeAuto, "":
		if Supports(goos) {
			return NewNative(store, notifier, logger), nil
		}
		return NewNone(logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
