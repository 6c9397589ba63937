package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"slices"
	"strconv"

	"recordguard-hq/recordguard/pkg/server/auth"
	"recordguard-hq/recordguard/pkg/server/middleware"
)

// CallerKey identifies the caller of r: the authenticated user when there
// is one, otherwise the remote IP address.
func CallerKey(r *http.Request) string {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		return "user:" + p.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. Requests to exempt paths are not counted.
func Middleware(l *Limiter, exempt []string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(exempt, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := CallerKey(r)
			d := l.Acquire(key)
			if !d.Allowed {
				logger.WarnContext(r.Context(), "rate limit exceeded",
					"caller", key,
					"reason", d.Reason,
					"request_id", middleware.GetRequestID(r.Context()),
				)
				retry := max(1, int(math.Ceil(d.RetryAfter.Seconds())))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				middleware.WriteError(w, r, http.StatusTooManyRequests, "rate_limited",
					"too many requests ("+d.Reason+" limit)")
				return
			}
			defer l.Release(key)
			next.ServeHTTP(w, r)
		})
	}
}
