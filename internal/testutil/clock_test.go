package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_StartsAtEpoch(t *testing.T) {
	clock := NewClock(time.Time{}, 0)
	assert.Equal(t, DefaultEpoch, clock.Current())
	assert.Equal(t, DefaultEpoch, clock.Now())
}

func TestClock_NowAdvancesByStep(t *testing.T) {
	start := time.UnixMilli(1_000)
	clock := NewClock(start, time.Second)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start.Add(time.Second), clock.Now())
	assert.Equal(t, start.Add(2*time.Second), clock.Now())
	assert.Equal(t, start.Add(3*time.Second), clock.Current())
}

func TestClock_Reset(t *testing.T) {
	clock := NewClock(time.Time{}, time.Millisecond)

	clock.Now()
	clock.Now()
	clock.Reset()

	assert.Equal(t, DefaultEpoch, clock.Now())
}

func TestClock_ConcurrentNow(t *testing.T) {
	clock := NewClock(time.Time{}, time.Millisecond)

	const goroutines = 20
	const calls = 50

	var wg sync.WaitGroup
	seen := make(chan time.Time, goroutines*calls)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				seen <- clock.Now()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[time.Time]bool)
	for ts := range seen {
		unique[ts] = true
	}
	assert.Len(t, unique, goroutines*calls, "every Now() must return a distinct instant")
	assert.Equal(t, DefaultEpoch.Add(goroutines*calls*time.Millisecond), clock.Current())
}
