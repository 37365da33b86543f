package listener

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fileopen/internal/notify"
	"github.com/roach88/fileopen/internal/pending"
)

type recordingNotifier struct {
	calls [][]string
	reach int
}

func (n *recordingNotifier) Emit(name string, paths []string) int {
	n.calls = append(n.calls, paths)
	return n.reach
}

type failingStore struct{ err error }

func (s failingStore) Append([]string) error { return s.err }

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix file URLs")
	}
}

func TestNative_StartupRace(t *testing.T) {
	skipOnWindows(t)
	store := pending.New()
	events := notify.NewBroadcaster()
	l := NewNative(store, events, nil)

	d, err := l.Opened(context.Background(), []string{"file:///tmp/a.txt", "file:///tmp/b.txt"})
	require.NoError(t, err)
	assert.Equal(t, Delivery{Accepted: 2, Discarded: 0, Notified: 0}, d)

	got, err := store.Drain()
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/a.txt", "/tmp/b.txt"}, got)

	got, err = store.Drain()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNative_NonFileLocatorIsFiltered(t *testing.T) {
	store := pending.New()
	n := &recordingNotifier{}
	l := NewNative(store, n, nil)

	d, err := l.Opened(context.Background(), []string{"https://example.com/page"})
	require.NoError(t, err)
	assert.Equal(t, Delivery{Discarded: 1}, d)
	assert.Empty(t, n.calls, "no notification when nothing was accepted")

	got, err := store.Drain()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNative_EmptySignal(t *testing.T) {
	store := pending.New()
	n := &recordingNotifier{}
	l := NewNative(store, n, nil)

	d, err := l.Opened(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Delivery{}, d)
	assert.Empty(t, n.calls)
}

func TestNative_LiveConsumerDoesNotConsumeStore(t *testing.T) {
	skipOnWindows(t)
	store := pending.New()
	events := notify.NewBroadcaster()
	sub := events.Subscribe()
	defer events.Unsubscribe(sub)
	l := NewNative(store, events, nil)

	d, err := l.Opened(context.Background(), []string{"file:///tmp/c.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, d.Notified)

	select {
	case e := <-sub.C:
		assert.Equal(t, notify.EventFileOpened, e.Name)
		assert.Equal(t, []string{"/tmp/c.txt"}, e.Paths)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	got, err := store.Drain()
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/c.txt"}, got)
}

func TestNative_MixedLocatorsKeepOrder(t *testing.T) {
	skipOnWindows(t)
	store := pending.New()
	n := &recordingNotifier{reach: 1}
	l := NewNative(store, n, nil)

	d, err := l.Opened(context.Background(), []string{
		"file:///tmp/1",
		"https://example.com",
		"file:///tmp/2",
		"file://elsewhere/3",
		"file:///tmp/3",
	})
	require.NoError(t, err)
	assert.Equal(t, Delivery{Accepted: 3, Discarded: 2, Notified: 1}, d)
	require.Len(t, n.calls, 1)
	assert.Equal(t, []string{"/tmp/1", "/tmp/2", "/tmp/3"}, n.calls[0])

	got, err := store.Drain()
	require.NoError(t, err)
	assert.Equal(t, n.calls[0], got)
}

func TestNative_StoreFailureSkipsNotification(t *testing.T) {
	skipOnWindows(t)
	n := &recordingNotifier{}
	l := NewNative(failingStore{err: pending.ErrPoisoned}, n, nil)

	_, err := l.Opened(context.Background(), []string{"file:///tmp/a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pending.ErrPoisoned))
	assert.Empty(t, n.calls)
}

func TestNone_DiscardsEverything(t *testing.T) {
	l := NewNone(nil)
	assert.Equal(t, "none", l.Name())

	d, err := l.Opened(context.Background(), []string{"file:///tmp/a", "file:///tmp/b"})
	require.NoError(t, err)
	assert.Equal(t, Delivery{Discarded: 2}, d)
}

func TestSelect(t *testing.T) {
	store := pending.New()
	events := notify.NewBroadcaster()

	tests := []struct {
		mode Mode
		goos string
		want string
	}{
		{ModeAuto, "darwin", "native"},
		{ModeAuto, "linux", "native"},
		{ModeAuto, "windows", "native"},
		{ModeAuto, "js", "none"},
		{ModeAuto, "wasip1", "none"},
		{"", "plan9", "none"},
		{ModeNative, "js", "native"},
		{ModeNone, "darwin", "none"},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode)+"/"+tt.goos, func(t *testing.T) {
			l, err := Select(tt.mode, tt.goos, store, events, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.Name())
		})
	}

	_, err := Select("sometimes", "linux", store, events, nil)
	assert.ErrorIs(t, err, ErrUnknownMode)
}
