// Package ratelimit implements the in-memory per-IP limiter for the auth
// endpoints (spec §4.G). It is a token bucket, not a sliding window: each
// client key gets a burst of Max requests, refilled at Max per Window.
// golang.org/x/time/rate.Limiter alone
// only answers allow/deny; this wraps it with an accountant that also
// tracks the remaining count and reset time needed for the X-RateLimit-*
// response headers, following the per-client limiter map in the teacher
// pack's cuemby-warren pkg/ingress/middleware.go (CheckRateLimit).
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter tracks one token-bucket-backed window per client key (normally
// the request's source IP), sized so that Max requests are allowed per
// Window.
type Limiter struct {
	mu       sync.Mutex
	clients  map[string]*client
	window   time.Duration
	max      int
	lastSeen time.Time
}

type client struct {
	limiter   *rate.Limiter
	touchedAt time.Time
}

// New builds a Limiter allowing max requests per window, per client key.
func New(window time.Duration, max int) *Limiter {
	return &Limiter{
		clients: make(map[string]*client),
		window:  window,
		max:     max,
	}
}

// Result reports the outcome of a Check call, sized to populate the
// X-RateLimit-* response headers.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Check consumes one token for key, creating its bucket on first use.
func (l *Limiter) Check(key string) Result {
	if l.max <= 0 {
		return Result{Allowed: true, Limit: 0, Remaining: 0}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[key]
	if !ok {
		ratePerSec := float64(l.max) / l.window.Seconds()
		c = &client{limiter: rate.NewLimiter(rate.Limit(ratePerSec), l.max)}
		l.clients[key] = c
	}
	c.touchedAt = time.Now()

	allowed := c.limiter.Allow()
	tokens := int(c.limiter.Tokens())
	if tokens < 0 {
		tokens = 0
	}

	l.evictStale()

	return Result{
		Allowed:   allowed,
		Limit:     l.max,
		Remaining: tokens,
		ResetAt:   time.Now().Add(l.window),
	}
}

// evictStale drops clients idle for more than two windows, bounding the
// map's growth under sustained unique-IP traffic. Caller must hold l.mu.
func (l *Limiter) evictStale() {
	cutoff := time.Now().Add(-2 * l.window)
	if time.Since(l.lastSeen) < l.window {
		return
	}
	l.lastSeen = time.Now()
	for key, c := range l.clients {
		if c.touchedAt.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

// SetHeaders writes the X-RateLimit-* headers for res onto w.
func SetHeaders(w http.ResponseWriter, res Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	if !res.Allowed {
		retryAfter := int(time.Until(res.ResetAt).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
}

// ClientKey extracts the rate-limit key from a request: the leftmost
// X-Forwarded-For entry if present, else RemoteAddr's host part.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i, c := range fwd {
			if c == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}
