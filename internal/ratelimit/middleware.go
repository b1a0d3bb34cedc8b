package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/chilisaus/storefront-api/internal/common"
)

// Config describes how to derive a limiter key and the thresholds to apply.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// ByClientIP keys requests on the remote address, which is what the quote
// endpoints throttle on.
func ByClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces the configured limit before delegating to next.
// Limiter errors fail open so a Redis outage never blocks traffic.
func Middleware(limiter SlidingWindow, cfg Config, onError func(error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Key == nil {
				next.ServeHTTP(w, r)
				return
			}
			decision, err := limiter.Allow(r.Context(), cfg.Key(r), cfg.Window, cfg.Max)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				next.ServeHTTP(w, r)
				return
			}

			limit := cfg.Max
			if limit < 0 {
				limit = 0
			}
			headers := w.Header()
			headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
			headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				retryAfter := int(time.Until(decision.ResetAt).Seconds())
				if retryAfter < 0 {
					retryAfter = 0
				}
				headers.Set("Retry-After", strconv.Itoa(retryAfter))
				common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
