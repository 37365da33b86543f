// Package notify provides the best-effort push channel for open requests.
//
// Emit never blocks and never buffers on behalf of absent consumers: an
// event with no subscribers is lost, and an event for a subscriber whose
// channel is full is dropped. The pending store is the reliable channel.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/roach88/fileopen/internal/metrics"
)

// EventFileOpened is emitted after paths were accepted into the pending store.
const EventFileOpened = "file-opened"

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Event is a single push notification.
type Event struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Paths []string `json:"paths"`
	Time  int64    `json:"time"`
}

// Subscription is an attached consumer. Events arrive on C until the
// subscription is removed, at which point C is closed.
type Subscription struct {
	C  <-chan Event
	ch chan Event
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithIDGenerator overrides the event id source.
func WithIDGenerator(g IDGenerator) Option {
	return func(b *Broadcaster) {
		b.ids = g
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Broadcaster) {
		b.now = now
	}
}

// Broadcaster fans events out to the currently attached subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	buffer      int
	ids         IDGenerator
	now         func() time.Time
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		subscribers: make(map[*Subscription]struct{}),
		buffer:      DefaultBuffer,
		ids:         UUIDv7Generator{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe attaches a new consumer.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() *Subscription {
	ch := make(chan Event, b.buffer)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	n := len(b.subscribers)
	b.mu.Unlock()

	metrics.SetSubscribers(n)
	return sub
}

// Unsubscribe detaches a consumer and closes its channel.
// Calling it twice is harmless.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if _, ok := b.subscribers[sub]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subscribers, sub)
	close(sub.ch)
	n := len(b.subscribers)
	b.mu.Unlock()

	metrics.SetSubscribers(n)
}

// Emit sends an event carrying paths to every attached subscriber and
// returns how many received it. It never blocks.
func (b *Broadcaster) Emit(name string, paths []string) int {
	event := Event{
		ID:    b.ids.Generate(),
		Name:  name,
		Paths: append([]string(nil), paths...),
		Time:  b.now().UnixMilli(),
	}

	delivered, dropped := 0, 0
	b.mu.RLock()
	for sub := range b.subscribers {
		select {
		case sub.ch <- event:
			delivered++
		default:
			dropped++
		}
	}
	b.mu.RUnlock()

	metrics.RecordNotification(delivered, dropped)
	return delivered
}

// Count returns the number of attached subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
