package httputil

import (
	"context"
	"crypto/subtle"
	"mime"
	"net/http"
	"strings"

	"github.com/bissquit/news-portal/internal/domain"
	"github.com/bissquit/news-portal/internal/pkg/ctxlog"
)

// Cookie and header names used for session authentication.
const (
	SessionCookie   = "session"
	CSRFTokenCookie = "csrf_token"
	CSRFTokenHeader = "X-CSRF-Token"
)

// CORSMiddleware creates CORS middleware that handles preflight requests
// and adds appropriate CORS headers to responses.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	originsSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if originsSet[origin] || originsSet["*"] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+CSRFTokenHeader)
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type actorKey struct{}

// SessionValidator resolves a session token to the acting user.
type SessionValidator interface {
	ValidateToken(ctx context.Context, token string) (*domain.User, error)
}

// AuthMiddleware creates authentication middleware. The token is taken from
// the Authorization header or, when absent, from the session cookie.
// Cookie-authenticated state-changing requests must echo the csrf_token
// cookie in the X-CSRF-Token header.
func AuthMiddleware(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie, ok := sessionToken(r)
			if !ok {
				Error(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if fromCookie && isStateChanging(r.Method) && !validCSRF(r) {
				ctxlog.FromContext(r.Context()).Warn("csrf validation failed",
					"method", r.Method,
					"path", r.URL.Path,
				)
				Error(w, http.StatusForbidden, "csrf token validation failed")
				return
			}

			actor, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				Error(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			ctx := WithActor(r.Context(), actor)
			ctx = ctxlog.With(ctx, "user_id", actor.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware resolves the acting user when a valid session is
// present and lets anonymous requests through unchanged.
func OptionalAuthMiddleware(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, _, ok := sessionToken(r); ok {
				if actor, err := validator.ValidateToken(r.Context(), token); err == nil {
					r = r.WithContext(WithActor(r.Context(), actor))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole creates RBAC middleware. It must run after AuthMiddleware.
func RequireRole(minRole domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := GetActor(r.Context())
			if actor == nil {
				Error(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !actor.Role.HasPermission(minRole) {
				Error(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CharsetMiddleware rejects request bodies declared in a charset other than
// UTF-8 and marks responses without an explicit type as UTF-8 text.
func CharsetMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "" {
			_, params, err := mime.ParseMediaType(ct)
			if err != nil {
				Error(w, http.StatusUnsupportedMediaType, "malformed content type")
				return
			}
			if cs, ok := params["charset"]; ok && !strings.EqualFold(cs, "utf-8") && !strings.EqualFold(cs, "utf8") {
				Error(w, http.StatusUnsupportedMediaType, "only utf-8 request bodies are supported")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// WithActor stores the acting user in ctx.
func WithActor(ctx context.Context, actor *domain.User) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActor returns the acting user stored by AuthMiddleware, or nil.
func GetActor(ctx context.Context) *domain.User {
	if actor, ok := ctx.Value(actorKey{}).(*domain.User); ok {
		return actor
	}
	return nil
}

// GetUserID extracts the acting user's ID from context.
func GetUserID(ctx context.Context) string {
	if actor := GetActor(ctx); actor != nil {
		return actor.ID
	}
	return ""
}

func sessionToken(r *http.Request) (token string, fromCookie bool, ok bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			return "", false, false
		}
		return parts[1], false, true
	}

	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return "", false, false
	}
	return cookie.Value, true, true
}

func validCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFTokenCookie)
	if err != nil || cookie.Value == "" {
		return false
	}
	header := r.Header.Get(CSRFTokenHeader)
	if header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) == 1
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
