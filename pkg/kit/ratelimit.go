package kit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter keyed by an arbitrary request key.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	key    func(*http.Request) string
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewIPRateLimiter(limit int, window time.Duration) *RateLimiter {
	return NewRateLimiter(limit, window, ClientIP)
}

func NewRateLimiter(limit int, window time.Duration, key func(*http.Request) string) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		key:    key,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := l.now()
		if l.recordAndCheck(l.key(r), now, now.Add(-l.window)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			WriteError(w, r, http.StatusTooManyRequests, "too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) recordAndCheck(key string, now, cutoff time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := prune(l.hits[key], cutoff)

	if len(ts) >= l.limit {
		l.hits[key] = ts
		return true
	}

	l.hits[key] = append(ts, now)
	return false
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	n := 0
	for _, t := range ts {
		if t.After(cutoff) {
			ts[n] = t
			n++
		}
	}
	return ts[:n]
}

func ClientIP(r *http.Request) string {
	if ip := firstForwardedFor(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}

	return r.RemoteAddr
}

func firstForwardedFor(xff string) string {
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}
