package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Gerry9000/guacamole-auth-sso-oauth2/internal/auth"
	"github.com/Gerry9000/guacamole-auth-sso-oauth2/internal/data"

	"github.com/gorilla/mux"
)

// SessionCookieName is the name of the login session cookie.
const SessionCookieName = "sso_session"

// SessionStore is the slice of the host session layer the handlers need.
type SessionStore interface {
	Create(assertion *auth.IdentityAssertion) (*data.Session, error)
	Get(id string) (*data.Session, error)
	Delete(id string) error
}

// AuthHandler handles the login endpoints.
type AuthHandler struct {
	flow     *auth.Flow
	sessions SessionStore
	// homeURL is where the browser lands after a completed login.
	homeURL string
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(flow *auth.Flow, sessions SessionStore, homeURL string) *AuthHandler {
	return &AuthHandler{
		flow:     flow,
		sessions: sessions,
		homeURL:  homeURL,
	}
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(r *mux.Router, sessionMiddleware func(http.Handler) http.Handler) {
	r.HandleFunc("/auth/login", h.login).Methods(http.MethodGet)
	r.HandleFunc("/auth/callback", h.callback).Methods(http.MethodGet)
	r.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)

	if sessionMiddleware != nil {
		r.Handle("/auth/userinfo", sessionMiddleware(http.HandlerFunc(h.userinfo))).Methods(http.MethodGet)
	} else {
		r.HandleFunc("/auth/userinfo", h.userinfo).Methods(http.MethodGet)
	}
}

// login starts a fresh attempt: issue a state token and redirect the
// browser to the identity provider.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.flow.Begin()
	if err != nil {
		slog.Error("failed to begin login", "error", err)
		http.Error(w, "authentication unavailable", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// callback finishes the attempt. Failure detail stays in the server logs;
// the browser only ever sees a generic failure.
func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	assertion, err := h.flow.Complete(r.Context(), r.URL.Query())
	if err != nil {
		status := http.StatusUnauthorized
		if auth.IsCSRFError(err) || errors.Is(err, auth.ErrMissingCode) {
			status = http.StatusBadRequest
		}
		slog.Warn("login attempt failed", "error", err)
		http.Error(w, "authentication failed", status)
		return
	}

	session, err := h.sessions.Create(assertion)
	if err != nil {
		slog.Error("failed to create session", "error", err, "username", assertion.Username)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	slog.Info("login succeeded", "username", assertion.Username, "groups", len(assertion.Groups))

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
	})

	http.Redirect(w, r, h.homeURL, http.StatusFound)
}

// logout deletes the session and clears the cookie.
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.sessions.Delete(cookie.Value); err != nil {
			slog.Error("failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// userinfo returns the identity behind the current session.
func (h *AuthHandler) userinfo(w http.ResponseWriter, r *http.Request) {
	session, err := SessionFromContext(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"username": session.Username,
		"groups":   session.Groups,
	})
}
