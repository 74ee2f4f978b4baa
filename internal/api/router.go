package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(ws Workspaces, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(ws)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/workspaces", h.ListWorkspaces)
	r.Post("/workspaces/reconcile", h.Reconcile)
	r.Get("/workspaces/index", h.Index)

	r.Get("/stylesheets/metadata", h.StylesheetMetadata)
	r.Post("/stylesheets/parse", h.ParseStylesheet)

	r.Get("/projection", h.Projection)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
