// internal/app/features/records/routes.go
package records

import (
	"github.com/dalemusser/classhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /records. Every endpoint requires a signed-in user;
// per-record permissions are checked by the review service.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Route("/{kind}", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Upload)
		r.Get("/events", h.Events)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Edit)
			r.Delete("/", h.Delete)
			r.Get("/history", h.History)
			r.Post("/approve", h.Approve)
			r.Post("/revision", h.RequestRevision)
			r.Post("/respond", h.Respond)
			r.Post("/seen", h.MarkSeen)
			r.Post("/comments", h.AddComment)
			r.Put("/comments/{commentID}", h.EditComment)
			r.Delete("/comments/{commentID}", h.DeleteComment)
		})
	})
	return r
}
