package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWindow(config Config, now *time.Time) *SlidingWindow {
	l := NewSlidingWindow(config)
	l.now = func() time.Time { return *now }
	return l
}

func TestSlidingWindow_AdmitsUpToMax(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newTestWindow(Config{Window: time.Minute, MaxRequests: 3}, &now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be admitted", i+1)
	}

	allowed, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, allowed)

	// another key has its own budget
	allowed, err = l.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestSlidingWindow_Rolls(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newTestWindow(Config{Window: time.Minute, MaxRequests: 2}, &now)
	ctx := context.Background()

	allowed, _ := l.Allow(ctx, "k")
	assert.True(t, allowed)
	now = now.Add(30 * time.Second)
	allowed, _ = l.Allow(ctx, "k")
	assert.True(t, allowed)
	allowed, _ = l.Allow(ctx, "k")
	assert.False(t, allowed)

	// exactly one window after the first hit it still counts
	now = now.Add(30 * time.Second)
	allowed, _ = l.Allow(ctx, "k")
	assert.False(t, allowed)

	// just past it the first hit drops out
	now = now.Add(time.Millisecond)
	allowed, _ = l.Allow(ctx, "k")
	assert.True(t, allowed)
	allowed, _ = l.Allow(ctx, "k")
	assert.False(t, allowed)
}

func TestSlidingWindow_RejectedRequestsAreNotRecorded(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newTestWindow(Config{Window: time.Minute, MaxRequests: 1}, &now)
	ctx := context.Background()

	allowed, _ := l.Allow(ctx, "k")
	assert.True(t, allowed)
	for i := 0; i < 10; i++ {
		allowed, _ = l.Allow(ctx, "k")
		assert.False(t, allowed)
	}

	now = now.Add(time.Minute + time.Millisecond)
	allowed, _ = l.Allow(ctx, "k")
	assert.True(t, allowed)
}

func TestSlidingWindow_SweepOnThreshold(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newTestWindow(Config{Window: time.Minute, MaxRequests: 5, SweepThreshold: 10}, &now)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := l.Allow(ctx, fmt.Sprintf("old-%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 10, l.Len())

	now = now.Add(2 * time.Minute)
	_, err := l.Allow(ctx, "fresh")
	require.NoError(t, err)

	assert.Equal(t, 1, l.Len(), "stale keys should be compacted once the threshold is exceeded")
}

func TestSlidingWindow_Sweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newTestWindow(Config{Window: time.Minute, MaxRequests: 5}, &now)
	ctx := context.Background()

	_, _ = l.Allow(ctx, "a")
	now = now.Add(45 * time.Second)
	_, _ = l.Allow(ctx, "b")
	assert.Equal(t, 2, l.Len())

	now = now.Add(30 * time.Second)
	l.Sweep()
	assert.Equal(t, 1, l.Len())
}

func TestSlidingWindow_CancelledContext(t *testing.T) {
	l := NewSlidingWindow(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	allowed, err := l.Allow(ctx, "k")
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestSlidingWindow_Concurrent(t *testing.T) {
	l := NewSlidingWindow(Config{Window: time.Hour, MaxRequests: 50})
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, err := l.Allow(ctx, "shared")
			if err == nil && allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, admitted)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, time.Minute, config.Window)
	assert.Equal(t, 20, config.MaxRequests)
	assert.Equal(t, 2000, config.SweepThreshold)
}

func TestEntryKey(t *testing.T) {
	assert.Equal(t, "shr_abc:10.0.0.1", EntryKey("shr_abc", "10.0.0.1"))
	assert.Equal(t, "shr_abc:unknown", EntryKey("shr_abc", ""))
}
