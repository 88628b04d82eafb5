// Package ratelimit throttles callers of the operator API with token buckets
// from golang.org/x/time/rate, one bucket per client key.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether a caller may proceed
type Limiter interface {
	TryAcquireForKey(key string) bool
}

// LocalLimiter keeps one token bucket per key in process memory
type LocalLimiter struct {
	mu       sync.Mutex
	config   Config
	limiters map[string]*limiterEntry
	now      func() time.Time

	lastCleanup time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewLocalLimiter creates a new local rate limiter
func NewLocalLimiter(config Config) (*LocalLimiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &LocalLimiter{
		config:      config,
		limiters:    make(map[string]*limiterEntry),
		now:         time.Now,
		lastCleanup: time.Now(),
	}, nil
}

// TryAcquireForKey attempts to take a token from key's bucket without blocking
func (rl *LocalLimiter) TryAcquireForKey(key string) bool {
	if !rl.config.Enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastCleanup) > rl.config.CleanupPeriod {
		rl.cleanup(now)
	}

	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize),
		}
		rl.limiters[key] = entry
		if len(rl.limiters) > rl.config.MaxKeys {
			rl.cleanup(now)
		}
	}
	entry.lastUsed = now

	return entry.limiter.AllowN(now, 1)
}

// Keys reports how many client buckets are held
func (rl *LocalLimiter) Keys() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// cleanup drops buckets idle for longer than the cleanup period
func (rl *LocalLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-rl.config.CleanupPeriod)
	for key, entry := range rl.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
	rl.lastCleanup = now
}
