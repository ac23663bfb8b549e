package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
)

// Middleware returns an HTTP middleware that limits requests per client IP.
// Rate-limit headers are set whenever the limiter is enabled:
//
//	X-RateLimit-Limit      attempts allowed per window
//	X-RateLimit-Remaining  attempts left
//	X-RateLimit-Reset      Unix timestamp when the budget is full again
//
// Exceeding the limit yields HTTP 429 with a JSON error body.
func Middleware(limiter *Limiter, onReject ...func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.enabled() {
				next.ServeHTTP(w, r)
				return
			}

			key := ClientIP(r)

			if !limiter.Allow(key) {
				setHeaders(w, limiter, key)
				for _, fn := range onReject {
					fn()
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"error": map[string]string{
						"code":    "rate_limited",
						"message": "Too many attempts. Try again later.",
					},
				})
				return
			}

			setHeaders(w, limiter, key)
			next.ServeHTTP(w, r)
		})
	}
}

func setHeaders(w http.ResponseWriter, limiter *Limiter, key string) {
	limit, remaining, resetAt := limiter.Status(key)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// ClientIP returns the host part of RemoteAddr. Forwarding headers are
// ignored here; when the server sits behind a trusted proxy the router
// rewrites RemoteAddr before this runs.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
