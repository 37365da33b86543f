package pending

import (
	"errors"
	"sync"
)

// ErrPoisoned is returned by every operation once a critical section has
// panicked. It is not retryable.
var ErrPoisoned = errors.New("pending opens store poisoned")

// Store is the process-wide buffer of pending open requests.
//
// A Store is created once at startup and shared by pointer between the
// listener and the command handlers. It must not be copied.
//
// Thread-safety: all methods are safe for concurrent use. Concurrent Drain
// calls serialize and each receives a disjoint slice.
type Store struct {
	mu       sync.Mutex
	paths    []string
	poisoned bool

	// inside runs within every critical section before the mutation.
	// Tests use it to simulate a holder that dies mid-section.
	inside func()
}

// New creates an empty Store.
func New() *Store {
	return &Store{paths: make([]string, 0, 8)}
}

// Append extends the buffer with paths, preserving their order.
// An empty paths slice is a no-op and never touches the lock.
func (s *Store) Append(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return s.critical(func() {
		s.paths = append(s.paths, paths...)
	})
}

// Drain returns the buffered paths in insertion order and resets the buffer
// to empty. Draining an empty Store returns an empty, non-nil slice.
func (s *Store) Drain() ([]string, error) {
	var out []string
	err := s.critical(func() {
		out = s.paths
		s.paths = make([]string, 0, 8)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Len returns the number of buffered paths.
func (s *Store) Len() (int, error) {
	var n int
	err := s.critical(func() {
		n = len(s.paths)
	})
	return n, err
}

// critical runs fn under the lock. A panic inside fn poisons the Store and
// keeps propagating to the caller.
func (s *Store) critical(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		return ErrPoisoned
	}

	completed := false
	defer func() {
		if !completed {
			s.poisoned = true
		}
	}()

	if s.inside != nil {
		s.inside()
	}
	fn()
	completed = true
	return nil
}
