package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/trongdv/bookstore/pkg/httputil"
	"github.com/trongdv/bookstore/pkg/logger"

	"github.com/trongdv/bookstore/internal/api/domain"
)

// SessionCookieName is the HttpOnly cookie the web frontend stores the access
// token in. The API accepts it interchangeably with a bearer header.
const SessionCookieName = "JWToken"

type contextKey string

const principalKey contextKey = "principal"

// PrincipalFromContext returns the authenticated principal, or nil.
func PrincipalFromContext(ctx context.Context) *domain.Principal {
	p, _ := ctx.Value(principalKey).(*domain.Principal)
	return p
}

// TokenValidator verifies a bearer token and resolves its principal.
type TokenValidator func(ctx context.Context, token string) (*domain.Principal, error)

// extractToken pulls the access token from the request. The session cookie
// takes priority over the Authorization header when both are present.
func extractToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}

// Auth authenticates requests via session cookie or bearer header. Every
// failure mode maps to the same generic 401; the underlying cause is logged.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w, r, "missing credentials")
				return
			}

			principal, err := validate(r.Context(), token)
			if err != nil {
				logger.FromContext(r.Context()).InfoContext(r.Context(), "rejected token",
					slog.String("reason", err.Error()),
				)
				writeUnauthorized(w, r, "")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			ctx = logger.WithUserID(ctx, principal.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole restricts a route to principals holding the given role. Must be
// mounted after Auth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				writeUnauthorized(w, r, "missing credentials")
				return
			}
			if !principal.HasRole(role) {
				httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{
					Code:    "FORBIDDEN",
					Message: "insufficient permissions",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, reason string) {
	if reason != "" {
		logger.FromContext(r.Context()).InfoContext(r.Context(), "unauthorized request",
			slog.String("reason", reason),
			slog.String("path", r.URL.Path),
		)
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="bookstore"`)
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{
		Code:    "UNAUTHORIZED",
		Message: "unauthorized",
	})
}

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	AllowedOrigins []string
	Environment    string
}

// CORS sets Cross-Origin Resource Sharing headers. Development mode (or a "*"
// entry) allows any origin; otherwise only listed origins are echoed back.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowWildcard := cfg.Environment == "development"
	originSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowWildcard = true
		}
		originSet[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if allowWildcard {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" {
				if _, ok := originSet[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
				}
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Correlation-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
