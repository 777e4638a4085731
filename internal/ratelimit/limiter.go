// Package ratelimit implements keyed token buckets for throttling callers.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultMaxKeys bounds how many buckets are tracked before idle ones are pruned.
	DefaultMaxKeys = 4096
	// DefaultIdleTTL is how long an unused bucket survives a prune.
	DefaultIdleTTL = 10 * time.Minute
)

// Config holds limiter settings. A non-positive PerMinute disables limiting.
type Config struct {
	PerMinute float64
	Burst     int
	MaxKeys   int
	IdleTTL   time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter hands out one token bucket per key.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	maxKeys int
	idleTTL time.Duration
	now     func() time.Time
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Limit(cfg.PerMinute / 60)
	if cfg.PerMinute <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		burst:   burst,
		maxKeys: maxKeys,
		idleTTL: ttl,
		now:     time.Now,
	}
}

// Allow reports whether key may proceed now, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).AllowN(l.now(), 1)
}

// Wait blocks until key has a token or ctx ends.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if err := l.bucket(key).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= l.maxKeys {
			l.pruneLocked(now)
		}
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

func (l *Limiter) pruneLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
}
