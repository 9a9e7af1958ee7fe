package handlers

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/spotreel/backend/internal/logging"
)

// RateLimiter is the minimal interface required to guard sensitive endpoints.
type RateLimiter interface {
	Allow(key string) bool
}

// allowRequest keys the limiter on the authenticated user when present,
// otherwise the caller's network address.
func allowRequest(limiter RateLimiter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(rateLimitKey(r, scope))
}

func rateLimitKey(r *http.Request, scope string) string {
	caller := logging.UserIDFromContext(r.Context())
	if caller == "" {
		caller = clientIP(r)
	}
	if scope == "" {
		return caller
	}
	return fmt.Sprintf("%s:%s", scope, caller)
}

func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
