package middleware

import (
	"net/http"

	"github.com/photosync/backend/internal/httpjson"
	"github.com/photosync/backend/internal/ratelimit"
)

// RateLimit enforces limiter per client IP, writing X-RateLimit-* headers
// on every response and 429 with Retry-After once the window is exhausted.
// Used on /api/register and /api/login per spec §6.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Check(ratelimit.ClientKey(r))
			ratelimit.SetHeaders(w, res)
			if !res.Allowed {
				httpjson.Error(w, http.StatusTooManyRequests, "Too many requests", "", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
