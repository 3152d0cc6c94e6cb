package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter creates the router and registers all handlers.
func NewRouter(authHandler *AuthHandler, sessionMiddleware func(http.Handler) http.Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check endpoint (public, no auth)
	r.HandleFunc("/health", HealthCheckHandler).Methods("GET")

	authHandler.RegisterRoutes(r, sessionMiddleware)

	return r
}
