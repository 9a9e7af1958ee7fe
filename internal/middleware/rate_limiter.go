package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type caller struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter controls how frequently a caller may perform an action.
type RateLimiter interface {
	Allow(key string) bool
}

// callerRateLimiter tracks request rates per key (a user id once
// authenticated, otherwise the remote address) with expiration.
type callerRateLimiter struct {
	mu      sync.Mutex
	callers map[string]*caller
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
}

// NewCallerRateLimiter constructs a per-key rate limiter that allows up to
// `requests` events per `window` with an additional burst capacity. Entries
// expire after the provided ttl when no longer used.
func NewCallerRateLimiter(requests int, window time.Duration, burst int, ttl time.Duration) RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	limit := rate.Every(window / time.Duration(requests))
	return &callerRateLimiter{
		callers: make(map[string]*caller),
		limit:   limit,
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (l *callerRateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	now := l.now()

	l.mu.Lock()
	c := l.getCallerLocked(key, now)
	l.gcLocked(now)
	l.mu.Unlock()

	return c.limiter.Allow()
}

func (l *callerRateLimiter) getCallerLocked(key string, now time.Time) *caller {
	if c, ok := l.callers[key]; ok {
		c.lastSeen = now
		return c
	}

	c := &caller{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	l.callers[key] = c
	return c
}

func (l *callerRateLimiter) gcLocked(now time.Time) {
	for key, c := range l.callers {
		if now.Sub(c.lastSeen) > l.ttl {
			delete(l.callers, key)
		}
	}
}

// WithNowFunc allows tests to override the time source.
func (l *callerRateLimiter) WithNowFunc(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
