package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/satd/internal/session"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *session.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.ListSessions)
		r.Post("/", h.CreateSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Put("/details", h.UpdateDetails)

			// Ingestion and tree state.
			r.Post("/ingest", h.Ingest)
			r.Get("/tree", h.GetTree)
			r.Delete("/tree", h.ClearTree)
			r.Patch("/nodes/*", h.PatchNode)
			r.Put("/focus", h.Focus)
			r.Post("/expanded/*", h.ToggleExpanded)
			r.Post("/analyze/*", h.Analyze)

			// Documents.
			r.Get("/manifest", h.Manifest)
			r.Get("/report", h.Report)
			r.Get("/export", h.Export)
		})
	})

	// Export catalog.
	r.Get("/exports", h.ListExports)
	r.Get("/exports/{id}", h.DownloadExport)
	r.Delete("/exports/{id}", h.DeleteExport)

	r.Get("/schema", h.Schema)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
