package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/insureai/internal/ratelimit"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newLimiter(t *testing.T, rate float64, burst int, clock *fakeClock) *ratelimit.MemoryLimiter {
	t.Helper()
	m := ratelimit.NewMemoryLimiter(rate, burst, ratelimit.WithClock(clock.Now))
	t.Cleanup(func() { require.NoError(t, m.Close()) })
	return m
}

func allowN(t *testing.T, l ratelimit.Limiter, key string, n int) int {
	t.Helper()
	var allowed int
	for range n {
		ok, err := l.Allow(context.Background(), key)
		require.NoError(t, err)
		if ok {
			allowed++
		}
	}
	return allowed
}

func TestMemoryLimiterBurst(t *testing.T) {
	m := newLimiter(t, 2, 5, newFakeClock())
	assert.Equal(t, 5, allowN(t, m, "session:a", 8))
}

func TestMemoryLimiterRefill(t *testing.T) {
	clock := newFakeClock()
	m := newLimiter(t, 2, 3, clock)

	require.Equal(t, 3, allowN(t, m, "k", 3))
	require.Zero(t, allowN(t, m, "k", 1))

	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, allowN(t, m, "k", 2), "half a second at 2 rps refills one token")

	clock.Advance(time.Hour)
	assert.Equal(t, 3, allowN(t, m, "k", 10), "refill is capped at the burst")
}

func TestMemoryLimiterIndependentKeys(t *testing.T) {
	m := newLimiter(t, 1, 1, newFakeClock())
	assert.Equal(t, 1, allowN(t, m, "session:a", 2))
	assert.Equal(t, 1, allowN(t, m, "session:b", 2))
	assert.Equal(t, 2, m.Len())
}

func TestMemoryLimiterConcurrent(t *testing.T) {
	m := newLimiter(t, 1, 50, newFakeClock())

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			for range 10 {
				ok, err := m.Allow(context.Background(), "shared")
				assert.NoError(t, err)
				if ok {
					allowed.Add(1)
				}
			}
		})
	}
	wg.Wait()
	assert.Equal(t, int32(50), allowed.Load())
}

func TestMemoryLimiterEvictStale(t *testing.T) {
	clock := newFakeClock()
	m := newLimiter(t, 1, 1, clock)

	allowN(t, m, "old", 1)
	clock.Advance(11 * time.Minute)
	allowN(t, m, "recent", 1)

	m.EvictStale()
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1, allowN(t, m, "old", 1), "an evicted key starts with a full bucket")
}

func TestMemoryLimiterCloseIdempotent(t *testing.T) {
	m := ratelimit.NewMemoryLimiter(1, 1)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestNoopLimiter(t *testing.T) {
	var l ratelimit.NoopLimiter
	assert.Equal(t, 100, allowN(t, l, "anything", 100))
	assert.NoError(t, l.Close())
}
