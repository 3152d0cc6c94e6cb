package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Gerry9000/guacamole-auth-sso-oauth2/internal/data"
)

type contextKey string

// sessionContextKey is the context key for the authenticated session.
const sessionContextKey contextKey = "authenticated_session"

// ErrNoSessionInContext is returned when no session is found in context.
var ErrNoSessionInContext = errors.New("no authenticated session in context")

// SessionFromContext extracts the authenticated session from request context.
func SessionFromContext(ctx context.Context) (*data.Session, error) {
	session, ok := ctx.Value(sessionContextKey).(*data.Session)
	if !ok {
		return nil, ErrNoSessionInContext
	}
	return session, nil
}

// SessionMiddleware resolves the session cookie and puts the session into
// request context. Requests without a valid session get a 401.
func SessionMiddleware(sessions SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil {
				writeUnauthorized(w, "missing session")
				return
			}

			session, err := sessions.Get(cookie.Value)
			if err != nil {
				writeUnauthorized(w, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
