package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"recordguard-hq/recordguard/pkg/server/middleware"
)

var errNoKey = errors.New("no API key found")

// Middleware returns HTTP middleware that authenticates requests with
// store. Requests to public paths pass through unauthenticated. Failures
// get a JSON 401 with code "unauthorized".
func Middleware(store *KeyStore, sources []Source, publicPaths []string, logger *slog.Logger) func(http.Handler) http.Handler {
	if len(sources) == 0 {
		sources = DefaultSources()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(publicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key, err := extractKey(r, sources)
			if err == nil {
				var p *Principal
				p, err = store.Validate(key)
				if err == nil {
					logger.DebugContext(r.Context(), "API key authenticated",
						"user_id", p.UserID,
						"path", r.URL.Path,
					)
					next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
					return
				}
			}

			logger.WarnContext(r.Context(), "authentication failed",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
				"request_id", middleware.GetRequestID(r.Context()),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="recordguard"`)
			middleware.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "missing or invalid API key")
		})
	}
}

func extractKey(r *http.Request, sources []Source) (string, error) {
	for _, source := range sources {
		switch source.Type {
		case "header":
			value := r.Header.Get(source.Name)
			if value == "" {
				continue
			}
			if source.Scheme == "" {
				return value, nil
			}
			if rest, ok := strings.CutPrefix(value, source.Scheme+" "); ok && rest != "" {
				return rest, nil
			}
		case "query":
			if value := r.URL.Query().Get(source.Name); value != "" {
				return value, nil
			}
		}
	}
	return "", errNoKey
}
