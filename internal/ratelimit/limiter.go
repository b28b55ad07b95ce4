// Package ratelimit throttles request bursts at the HTTP edge, per caller.
// Ledger submission caps are enforced separately inside the ledger transaction.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirito3009/ad-time-cash/internal/httputil"
)

// Limiter decides whether one more request for key may proceed now. When it
// may not, retryAfter says how long to wait.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// KeyFunc picks the throttling key for a request; an empty key skips limiting.
type KeyFunc func(r *http.Request) string

// Middleware rejects requests over the limit with 429 and a Retry-After hint.
// Limiter failures let the request through.
func Middleware(l Limiter, keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, retryAfter, err := l.Allow(r.Context(), key)
			if err != nil {
				slog.Error("edge rate limiter failed, allowing request",
					"key", key,
					"path", r.URL.Path,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				slog.Warn("request throttled",
					"key", key,
					"path", r.URL.Path,
					"retryAfter", retryAfter,
				)
				httputil.RateLimited(w, "Too many requests", retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
