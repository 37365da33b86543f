package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/fileopen/internal/app"
	"github.com/roach88/fileopen/internal/command"
	"github.com/roach88/fileopen/internal/config"
	"github.com/roach88/fileopen/internal/notify"
	"github.com/roach88/fileopen/internal/testutil"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every received, idle and drain step matched.
	Pass bool `json:"pass"`

	// Trace has one line per step, in order.
	Trace []string `json:"trace"`

	// Errors describes each mismatch. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []string{},
		Errors: []string{},
	}
}

// AddError adds a mismatch and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

func (r *Result) record(format string, args ...any) {
	r.Trace = append(r.Trace, fmt.Sprintf(format, args...))
}

// Harness drives one host through a scenario.
type Harness struct {
	host      *app.Host
	consumers map[string]*notify.Subscription
	logger    *slog.Logger
}

// Run executes a scenario against a fresh host and returns the result.
//
// The host has no plugins and no bridge; consumers subscribe directly.
// Errors are returned only when the host cannot be built or a step fails
// outright. Mismatches are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	cfg := config.Default()
	cfg.Listener.Mode = scenario.Listener
	cfg.Plugins.Enabled = []string{}
	cfg.Metrics.Enabled = false

	clock := testutil.NewClock(testutil.DefaultEpoch, 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	host, err := app.New(cfg, logger, app.Options{
		IDs: notify.NewSequenceGenerator("evt"),
		Now: clock.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create host: %w", err)
	}
	defer host.Close()

	h := &Harness{
		host:      host,
		consumers: make(map[string]*notify.Subscription),
		logger:    logger,
	}
	defer h.detachAll()

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Kind(), err)
		}
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, i int, step Step, result *Result) error {
	switch step.Kind() {
	case StepDeliver:
		d, err := h.host.Deliver(ctx, step.Deliver)
		if err != nil {
			return err
		}
		result.record("deliver %d locators: accepted=%d discarded=%d notified=%d",
			len(step.Deliver), d.Accepted, d.Discarded, d.Notified)

	case StepAttach:
		h.consumers[step.Attach] = h.host.Subscribe()
		result.record("attach %s", step.Attach)

	case StepDetach:
		h.host.Unsubscribe(h.consumers[step.Detach])
		delete(h.consumers, step.Detach)
		result.record("detach %s", step.Detach)

	case StepReceived:
		name := step.Received.Consumer
		ev, ok := h.next(name)
		if !ok {
			result.record("received %s nothing", name)
			result.AddError("steps[%d]: consumer %s expected %q, got no event", i, name, step.Received.Paths)
			return nil
		}
		result.record("received %s %s id=%s time=%d %q", name, ev.Name, ev.ID, ev.Time, ev.Paths)
		if !slices.Equal(ev.Paths, step.Received.Paths) {
			result.AddError("steps[%d]: consumer %s expected %q, got %q", i, name, step.Received.Paths, ev.Paths)
		}

	case StepIdle:
		if ev, ok := h.next(step.Idle); ok {
			result.record("received %s %s id=%s time=%d %q", step.Idle, ev.Name, ev.ID, ev.Time, ev.Paths)
			result.AddError("steps[%d]: consumer %s expected no event, got %s %q", i, step.Idle, ev.ID, ev.Paths)
			return nil
		}
		result.record("idle %s", step.Idle)

	case StepDrain:
		out, err := h.host.Invoke(ctx, command.TakePendingOpens, nil)
		if err != nil {
			return err
		}
		paths, ok := out.([]string)
		if !ok {
			return fmt.Errorf("take_pending_opens returned %T", out)
		}
		result.record("drain %q", paths)
		if step.Drain != nil && !slices.Equal(paths, *step.Drain) {
			result.AddError("steps[%d]: drain expected %q, got %q", i, *step.Drain, paths)
		}

	default:
		return fmt.Errorf("unknown step")
	}

	h.logger.Debug("step completed", "step", i, "kind", step.Kind())
	return nil
}

// next takes a waiting event without blocking. Emit is synchronous, so
// anything delivered by an earlier step is already queued.
func (h *Harness) next(consumer string) (notify.Event, bool) {
	select {
	case ev, ok := <-h.consumers[consumer].C:
		return ev, ok
	default:
		return notify.Event{}, false
	}
}

func (h *Harness) detachAll() {
	for name, sub := range h.consumers {
		h.host.Unsubscribe(sub)
		delete(h.consumers, name)
	}
}
