package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedLimiter keeps one token bucket per key (user id, channel id, ...).
// Buckets idle for longer than the configured TTL are dropped by Sweep.
type KeyedLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedLimiter creates a limiter allowing rps events per second per key
func NewKeyedLimiter(rps float64, burst int, ttl time.Duration) *KeyedLimiter {
	if burst < 1 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &KeyedLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
		buckets: make(map[string]*bucket),
	}
}

func (l *KeyedLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

// Allow reports whether one event for key may happen now
func (l *KeyedLimiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Wait blocks until an event for key is permitted or ctx ends
func (l *KeyedLimiter) Wait(ctx context.Context, key string) error {
	return l.get(key).Wait(ctx)
}

// Sweep drops buckets not used within the TTL and returns how many were removed
func (l *KeyedLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.ttl)
	removed := 0
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live buckets
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
