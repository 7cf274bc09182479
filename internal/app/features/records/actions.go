// internal/app/features/records/actions.go
package records

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/classhub/internal/app/features/errors"
	"github.com/dalemusser/classhub/internal/app/system/httpjson"
	"github.com/dalemusser/classhub/internal/app/system/timeouts"
	"github.com/dalemusser/classhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

type contentBody struct {
	Content string `json:"content"`
}

type reasonBody struct {
	Reason string `json:"reason"`
}

func decodeInto(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpjson.Decode(r, dst); err != nil {
		uierrors.BadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) writeAction(w http.ResponseWriter, rec models.Record, c *models.Comment, status int) {
	httpjson.Write(w, status, actionResponse{Record: rec, Comment: c})
}

// Approve handles POST /records/{kind}/{id}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	kind, id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, err := h.Svc.Approve(ctx, kind, id, actor)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.writeAction(w, rec, nil, http.StatusOK)
}

// RequestRevision handles POST /records/{kind}/{id}/revision {reason}.
func (h *Handler) RequestRevision(w http.ResponseWriter, r *http.Request) {
	kind, id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	var body reasonBody
	if !decodeInto(w, r, &body) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, c, err := h.Svc.RequestRevision(ctx, kind, id, actor, body.Reason)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.writeAction(w, rec, &c, http.StatusOK)
}

// Respond handles POST /records/{kind}/{id}/respond {content}.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	kind, id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	var body contentBody
	if !decodeInto(w, r, &body) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, c, err := h.Svc.Respond(ctx, kind, id, actor, body.Content)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.writeAction(w, rec, &c, http.StatusOK)
}

// MarkSeen handles POST /records/{kind}/{id}/seen.
func (h *Handler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	kind, id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, err := h.Svc.MarkSeen(ctx, kind, id, actor)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, rec)
}

// AddComment handles POST /records/{kind}/{id}/comments {content}.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	kind, id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	var body contentBody
	if !decodeInto(w, r, &body) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, c, err := h.Svc.Comment(ctx, kind, id, actor, body.Content)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.writeAction(w, rec, &c, http.StatusCreated)
}

// EditComment handles PUT /records/{kind}/{id}/comments/{commentID} {content}.
func (h *Handler) EditComment(w http.ResponseWriter, r *http.Request) {
	kind, id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	var body contentBody
	if !decodeInto(w, r, &body) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, c, err := h.Svc.EditComment(ctx, kind, id, chi.URLParam(r, "commentID"), actor, body.Content)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.writeAction(w, rec, &c, http.StatusOK)
}

// DeleteComment handles DELETE /records/{kind}/{id}/comments/{commentID}.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	kind, id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, err := h.Svc.DeleteComment(ctx, kind, id, chi.URLParam(r, "commentID"), actor)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.writeAction(w, rec, nil, http.StatusOK)
}
