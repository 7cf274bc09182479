// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

// Routes serves sign-in at the mount root. GET reports the current session.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.HandleSession)
	r.Post("/", h.HandleLoginPost)
	return r
}
