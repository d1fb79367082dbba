// Package ratelimit implements a lightweight, in-memory, token-bucket rate
// limiter with per-key buckets and opportunistic garbage collection. It backs
// both the HTTP middleware and the chat command surface.
//
// Features:
//   - Per-key token buckets using golang.org/x/time/rate
//   - Best-effort cleanup of idle buckets to bound memory
//
// The limiter is process-local; it is meant for abuse control, not
// authorization.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTTL   = 10 * time.Minute
	gcEveryCalls = 5000
)

// visitor holds a single rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a per-key token-bucket limiter. Safe for concurrent use.
type Limiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	cleanupN uint64

	now func() time.Time
}

// New constructs a Limiter replenishing rps tokens per second with the given
// burst. burst <= 0 is coerced to 1. rps <= 0 disables limiting.
func New(rps float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		ttl:      defaultTTL,
		now:      time.Now,
	}
}

// Allow consumes one token from key's bucket and reports whether it was
// available. A nil Limiter allows everything.
func (l *Limiter) Allow(key string) bool {
	if l == nil || l.rps <= 0 {
		return true
	}
	return l.visitor(key).AllowN(l.now(), 1)
}

// Len reports the number of tracked buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// visitor returns (and updates) the limiter for key, creating it if absent.
// Idle entries are collected every gcEveryCalls lookups, before the requested
// key is touched so that a stale bucket can be evicted too.
func (l *Limiter) visitor(key string) *rate.Limiter {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanupN++
	if l.cleanupN >= gcEveryCalls {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) >= l.ttl {
				delete(l.visitors, k)
			}
		}
		l.cleanupN = 0
	}

	if v, ok := l.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}
