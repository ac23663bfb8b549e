package ratelimit

import (
	"sync"
	"time"
)

// bucket tracks the attempt budget for a single client key.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter is a token-bucket limiter for credential attempts keyed by client
// (usually the remote IP). Each key may spend Attempts tokens, refilled
// evenly over Window. A Limiter with zero attempts allows everything.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	attempts int
	window   time.Duration
	now      func() time.Time // injectable clock for testing
}

// New creates a Limiter allowing attempts per window for every key.
func New(attempts int, window time.Duration) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*bucket),
		attempts: attempts,
		window:   window,
		now:      time.Now,
	}
}

func (l *Limiter) enabled() bool {
	return l != nil && l.attempts > 0 && l.window > 0
}

// getBucket returns the bucket for key, creating a full one if needed.
// Must be called with l.mu held.
func (l *Limiter) getBucket(key string) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.attempts), lastRefill: l.now()}
		l.buckets[key] = b
	}
	return b
}

// refill credits tokens for the time elapsed since the last refill.
// Must be called with l.mu held.
func (l *Limiter) refill(b *bucket) {
	now := l.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * float64(l.attempts) / l.window.Seconds()
	if b.tokens > float64(l.attempts) {
		b.tokens = float64(l.attempts)
	}
	b.lastRefill = now
}

// Allow consumes one attempt for key and reports whether it was available.
func (l *Limiter) Allow(key string) bool {
	if !l.enabled() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getBucket(key)
	l.refill(b)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Status reports the limit, whole attempts remaining, and when the bucket
// for key will be full again.
func (l *Limiter) Status(key string) (limit int, remaining int, resetAt time.Time) {
	if !l.enabled() {
		return 0, 0, time.Time{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getBucket(key)
	l.refill(b)

	limit = l.attempts
	remaining = int(b.tokens)
	deficit := float64(l.attempts) - b.tokens
	if deficit <= 0 {
		resetAt = l.now()
	} else {
		perSecond := float64(l.attempts) / l.window.Seconds()
		resetAt = l.now().Add(time.Duration(deficit / perSecond * float64(time.Second)))
	}
	return limit, remaining, resetAt
}

// Sweep drops buckets that have refilled completely, bounding memory held
// for clients that stopped retrying. It returns the number removed.
func (l *Limiter) Sweep() int {
	if !l.enabled() {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		l.refill(b)
		if b.tokens >= float64(l.attempts) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets every window until stop is closed.
func (l *Limiter) Run(stop <-chan struct{}) {
	if !l.enabled() {
		return
	}
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
