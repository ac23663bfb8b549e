package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeClock is a controllable time source for deterministic tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
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

// newTestLimiter creates a Limiter wired to the given fake clock.
func newTestLimiter(attempts int, window time.Duration, clock *fakeClock) *Limiter {
	l := New(attempts, window)
	l.now = clock.Now
	return l
}

func TestAllowBasic(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(3, time.Minute, clock)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}

	if l.Allow("10.0.0.1") {
		t.Fatal("4th attempt should be denied")
	}
}

func TestAllowDifferentKeys(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(1, time.Minute, clock)

	if !l.Allow("a") {
		t.Fatal("first attempt for 'a' should be allowed")
	}
	if l.Allow("a") {
		t.Fatal("second attempt for 'a' should be denied")
	}
	if !l.Allow("b") {
		t.Fatal("first attempt for 'b' should be allowed")
	}
}

func TestRefill(t *testing.T) {
	clock := newFakeClock(time.Now())
	// 60 attempts per minute = 1 per second.
	l := newTestLimiter(60, time.Minute, clock)

	for i := 0; i < 60; i++ {
		l.Allow("k")
	}
	if l.Allow("k") {
		t.Fatal("should be denied after exhausting attempts")
	}

	clock.Advance(time.Second)
	if !l.Allow("k") {
		t.Fatal("should be allowed after 1 second refill")
	}
	if l.Allow("k") {
		t.Fatal("should be denied again after consuming refilled attempt")
	}
}

func TestRefillCap(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(5, time.Minute, clock)

	l.Allow("k")
	l.Allow("k")
	clock.Advance(10 * time.Minute)

	_, remaining, _ := l.Status("k")
	if remaining != 5 {
		t.Fatalf("remaining should cap at 5, got %d", remaining)
	}
}

func TestDisabledLimiter(t *testing.T) {
	l := New(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !l.Allow("k") {
			t.Fatal("disabled limiter must allow everything")
		}
	}

	var nilLimiter *Limiter
	if !nilLimiter.Allow("k") {
		t.Fatal("nil limiter must allow everything")
	}
}

func TestConcurrentAccess(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(100, time.Minute, clock)

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow("concurrent")
		}()
	}

	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}

	if count != 100 {
		t.Fatalf("expected exactly 100 allowed, got %d", count)
	}
}

func TestStatus(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(10, time.Minute, clock)

	limit, remaining, resetAt := l.Status("s")
	if limit != 10 || remaining != 10 {
		t.Fatalf("expected 10/10, got %d/%d", limit, remaining)
	}
	if !resetAt.Equal(clock.Now()) {
		t.Fatalf("full bucket resetAt should equal now, got diff %v", resetAt.Sub(clock.Now()))
	}

	l.Allow("s")
	l.Allow("s")
	l.Allow("s")

	_, remaining, resetAt = l.Status("s")
	if remaining != 7 {
		t.Fatalf("expected remaining 7, got %d", remaining)
	}
	if !resetAt.After(clock.Now()) {
		t.Fatalf("resetAt %v should be after now %v", resetAt, clock.Now())
	}
}

func TestSweep(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(2, time.Minute, clock)

	l.Allow("idle")
	l.Allow("busy")
	l.Allow("busy")

	clock.Advance(30 * time.Second)
	// "idle" is full again (1 + 1), "busy" has only one attempt back.
	if removed := l.Sweep(); removed != 1 {
		t.Fatalf("expected 1 bucket swept, got %d", removed)
	}
	if _, ok := l.buckets["busy"]; !ok {
		t.Error("partially drained bucket must be kept")
	}
	if _, ok := l.buckets["idle"]; ok {
		t.Error("full bucket should be swept")
	}
}

func TestMiddleware(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(2, time.Minute, clock)

	rejections := 0
	handler := Middleware(l, func() { rejections++ })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "192.0.2.7:51000"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)

		if rr.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("request %d: expected X-RateLimit-Limit 2, got %q", i+1, rr.Header().Get("X-RateLimit-Limit"))
		}
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
	if rejections != 1 {
		t.Errorf("expected 1 rejection callback, got %d", rejections)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr with port", "192.0.2.1:1234", "", "192.0.2.1"},
		{"remote addr without port", "192.0.2.1", "", "192.0.2.1"},
		{"forwarded header ignored", "10.0.0.1:80", "203.0.113.5, 10.0.0.2", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware_ForwardedHeaderDoesNotResetBudget(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(2, time.Minute, clock)

	handler := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "192.0.2.7:51000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	for i, code := range codes[2:] {
		if code != http.StatusTooManyRequests {
			t.Fatalf("request %d: expected 429 once the budget is spent, got %v", i+3, codes)
		}
	}
}
