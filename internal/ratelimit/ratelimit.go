// Package ratelimit provides a fixed-window counter used to throttle login
// attempts per credential and source address.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter counts attempts per key within a fixed window. When the window
// rolls over the count starts fresh; there is no gradual decay.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	counts map[string]*windowCount
	now    func() time.Time
}

type windowCount struct {
	start time.Time
	n     int
}

// New returns a Limiter allowing limit attempts per window for each key.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		counts: make(map[string]*windowCount),
		now:    time.Now,
	}
}

// Allow records one attempt against key and reports whether it is within the
// limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counts[key]
	if !ok || now.Sub(c.start) >= l.window {
		l.counts[key] = &windowCount{start: now, n: 1}
		return l.limit >= 1
	}
	c.n++
	return c.n <= l.limit
}

// Prune drops windows that ended before now, bounding memory between sweeps.
// It returns how many keys were dropped.
func (l *Limiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	pruned := 0
	for key, c := range l.counts {
		if now.Sub(c.start) >= l.window {
			delete(l.counts, key)
			pruned++
		}
	}
	return pruned
}

// LoginKey builds the throttle key for a login attempt. Limiting on the
// credential and the source address together keeps one address from locking
// out a user everywhere while still stopping spray attacks from that address.
func LoginKey(email, ip string) string {
	return "login:" + email + "|" + ip
}
