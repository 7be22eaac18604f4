package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratelimit-gateway/middleware/ratelimit/domain"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStore_GetMissingKey(t *testing.T) {
	s := NewMemoryStore()

	_, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_SetThenGetUntilExpiry(t *testing.T) {
	clock := &manualClock{now: time.Unix(1000, 0)}
	s := NewMemoryStore(WithClock(clock))

	want := domain.WindowState{Count: 3, ResetAt: 1010}
	require.NoError(t, s.Set(context.Background(), "k", want, 10*time.Second))

	got, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	clock.Advance(10 * time.Second)
	_, ok, err = s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry should self-evict once its ttl elapses")
}

func TestMemoryStore_IncrementFollowsFixedWindow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	st, err := s.Increment(ctx, "k", 1000, 60)
	require.NoError(t, err)
	assert.Equal(t, domain.WindowState{Count: 1, ResetAt: 1060}, st)

	st, err = s.Increment(ctx, "k", 1030, 60)
	require.NoError(t, err)
	assert.Equal(t, domain.WindowState{Count: 2, ResetAt: 1060}, st)

	st, err = s.Increment(ctx, "k", 1061, 60)
	require.NoError(t, err)
	assert.Equal(t, domain.WindowState{Count: 1, ResetAt: 1121}, st)
}

func TestMemoryStore_IncrementKeepsWindowAtReset(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Increment(ctx, "k", 1000, 60)
	require.NoError(t, err)

	st, err := s.Increment(ctx, "k", 1060, 60)
	require.NoError(t, err)
	assert.Equal(t, domain.WindowState{Count: 2, ResetAt: 1060}, st, "now == reset still belongs to the window")

	st, err = s.Increment(ctx, "k", 1061, 60)
	require.NoError(t, err)
	assert.Equal(t, domain.WindowState{Count: 1, ResetAt: 1121}, st)
}

func TestMemoryStore_IncrementIsAtomicUnderConcurrency(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Increment(ctx, "k", 1000, 60)
		}()
	}
	wg.Wait()

	st, err := s.Increment(ctx, "k", 1000, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(101), st.Count)
}

func TestMemoryStore_CleanupRemovesExpiredEntries(t *testing.T) {
	clock := &manualClock{now: time.Unix(1000, 0)}
	s := NewMemoryStore(WithClock(clock), WithCleanupEvery(0))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", domain.WindowState{Count: 1, ResetAt: 1001}, time.Second))
	require.NoError(t, s.Set(ctx, "long", domain.WindowState{Count: 1, ResetAt: 1060}, time.Minute))

	clock.Advance(2 * time.Second)
	s.Cleanup()

	assert.Equal(t, 1, s.Len())
	_, ok, _ := s.Get(ctx, "long")
	assert.True(t, ok)
}

func TestMemoryStore_JanitorStopsWithContext(t *testing.T) {
	clock := &manualClock{now: time.Unix(1000, 0)}
	s := NewMemoryStore(WithClock(clock), WithCleanupEvery(5*time.Millisecond))
	require.NoError(t, s.Set(context.Background(), "k", domain.WindowState{Count: 1, ResetAt: 1001}, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartJanitor(ctx)

	clock.Advance(2 * time.Second)
	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}
