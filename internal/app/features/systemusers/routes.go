// internal/app/features/systemusers/routes.go
package systemusers

import (
	"github.com/dalemusser/classhub/internal/app/system/auth"
	"github.com/dalemusser/classhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the account administration endpoints. Admins only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(models.RoleAdmin))
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/{id}/role", h.SetRole)
	r.Post("/{id}/status", h.SetStatus)
	return r
}
