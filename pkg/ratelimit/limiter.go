package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether one more request for key is admitted
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config defines a sliding-window limit
type Config struct {
	// Window is the length of the rolling interval
	Window time.Duration
	// MaxRequests is the number of requests admitted per window
	MaxRequests int
	// SweepThreshold is the number of tracked keys above which every key is
	// compacted after an admission
	SweepThreshold int
}

// DefaultConfig returns the share entry defaults
func DefaultConfig() Config {
	return Config{
		Window:         time.Minute,
		MaxRequests:    20,
		SweepThreshold: 2000,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Window <= 0 {
		c.Window = def.Window
	}
	if c.MaxRequests <= 0 {
		c.MaxRequests = def.MaxRequests
	}
	if c.SweepThreshold <= 0 {
		c.SweepThreshold = def.SweepThreshold
	}
	return c
}

// SlidingWindow is an in-memory, single-process sliding-window limiter.
// State is not shared between instances; use RedisSlidingWindow when the
// service runs with more than one replica.
type SlidingWindow struct {
	config Config
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewSlidingWindow creates a new in-memory limiter
func NewSlidingWindow(config Config) *SlidingWindow {
	return &SlidingWindow{
		config: config.withDefaults(),
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// Allow records a hit for key if it is under the limit
func (l *SlidingWindow) Allow(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.config.Window)

	recent := prune(l.hits[key], cutoff)
	if len(recent) >= l.config.MaxRequests {
		l.hits[key] = recent
		return false, nil
	}

	l.hits[key] = append(recent, now)

	if len(l.hits) > l.config.SweepThreshold {
		l.sweepLocked(cutoff)
	}

	return true, nil
}

// Sweep drops stale timestamps and empty keys
func (l *SlidingWindow) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(l.now().Add(-l.config.Window))
}

// Len returns the number of tracked keys
func (l *SlidingWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.hits)
}

func (l *SlidingWindow) sweepLocked(cutoff time.Time) {
	for key, timestamps := range l.hits {
		recent := prune(timestamps, cutoff)
		if len(recent) == 0 {
			delete(l.hits, key)
			continue
		}
		l.hits[key] = recent
	}
}

// prune returns the timestamps at or after cutoff. Timestamps are appended in
// order so the first kept index splits the slice.
func prune(timestamps []time.Time, cutoff time.Time) []time.Time {
	for i, ts := range timestamps {
		if !ts.Before(cutoff) {
			return timestamps[i:]
		}
	}
	return timestamps[:0]
}
