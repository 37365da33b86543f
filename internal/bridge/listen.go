package bridge

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// ErrAlreadyRunning is returned by Listen when another host owns the socket.
var ErrAlreadyRunning = errors.New("another fileopen host is already running")

// Listen opens the bridge endpoint.
//
// For unix sockets the parent directory is created with mode 0700 and the
// socket is restricted to the owner. A leftover socket file from a crashed
// host is removed; a live one yields ErrAlreadyRunning.
func Listen(network, address string) (net.Listener, error) {
	if network != "unix" {
		ln, err := net.Listen(network, address)
		if err != nil {
			return nil, fmt.Errorf("listen %s %s: %w", network, address, err)
		}
		return ln, nil
	}

	if err := os.MkdirAll(filepath.Dir(address), 0o700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}

	if _, err := os.Lstat(address); err == nil {
		conn, dialErr := net.DialTimeout("unix", address, time.Second)
		if dialErr == nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, address)
		}
		if err := os.Remove(address); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", address)
	if err != nil {
		return nil, fmt.Errorf("listen unix %s: %w", address, err)
	}
	if err := os.Chmod(address, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}
	return ln, nil
}
