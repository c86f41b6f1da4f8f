package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/barterly/backend/internal/ratelimit"
)

// RateLimit admits requests through the shared storage-backed limiter before
// they reach mutating handlers. The key is the authenticated member when
// present, otherwise the client IP. Denials are 429; limiter storage errors
// never surface here because the limiter fails open.
func RateLimit(limiter *ratelimit.Limiter, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := limiter.Admit(r.Context(), limitKey(r), limit, window)
			if !d.Allowed {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func limitKey(r *http.Request) string {
	if m := MemberFromCtx(r.Context()); m != nil {
		return "member:" + m.ID.String()
	}
	return "ip:" + clientIP(r)
}

// clientIP prefers the first X-Forwarded-For hop, falling back to RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
