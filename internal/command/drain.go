package command

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/fileopen/internal/metrics"
)

// TakePendingOpens is the name the drain endpoint is registered under.
const TakePendingOpens = "take_pending_opens"

// Drainer is the read-and-clear side of the pending store.
type Drainer interface {
	Drain() ([]string, error)
}

// NewTakePendingOpens returns the drain endpoint: it takes no arguments,
// drains the store and returns the paths verbatim, oldest first.
func NewTakePendingOpens(store Drainer) Handler {
	return func(_ context.Context, _ json.RawMessage) (any, error) {
		paths, err := store.Drain()
		if err != nil {
			return nil, fmt.Errorf("take pending opens: %w", err)
		}
		metrics.RecordDrain(len(paths))
		return paths, nil
	}
}
