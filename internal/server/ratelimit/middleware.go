// HTTP middleware applying the limiter per client address.

package ratelimit

import (
	"net"
	"net/http"
	"strconv"
)

// Middleware wraps next with per-client rate limiting. A nil limiter
// disables limiting entirely.
func Middleware(l *Limiter, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := l.Allow(ClientKey(r))
		writeHeaders(w, result)
		if !result.Allowed {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":"RATE_LIMITED","message":"too many requests"}}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientKey derives the bucket key for a request from the remote address,
// preferring X-Forwarded-For when a proxy set it.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := range len(fwd) {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeHeaders(w http.ResponseWriter, result Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	if !result.Allowed {
		secs := max(int(result.RetryAfter.Seconds()), 1)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
}
