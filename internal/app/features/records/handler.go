// internal/app/features/records/handler.go
package records

import (
	"context"
	"net/http"
	"strconv"
	"time"

	uierrors "github.com/dalemusser/classhub/internal/app/features/errors"
	"github.com/dalemusser/classhub/internal/app/review"
	recordstore "github.com/dalemusser/classhub/internal/app/store/records"
	"github.com/dalemusser/classhub/internal/app/system/authz"
	"github.com/dalemusser/classhub/internal/app/system/feed"
	"github.com/dalemusser/classhub/internal/app/system/httpjson"
	"github.com/dalemusser/classhub/internal/app/system/timeouts"
	"github.com/dalemusser/classhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the record and comment endpoints for every record kind.
type Handler struct {
	Svc    *review.Service
	Feed   *feed.Hub
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger

	// KeepAlive is the SSE comment interval.
	KeepAlive time.Duration
}

func NewHandler(svc *review.Service, hub *feed.Hub, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Svc:       svc,
		Feed:      hub,
		ErrLog:    errLog,
		Log:       logger,
		KeepAlive: 15 * time.Second,
	}
}

// actionResponse is returned by actions that add or change a comment.
type actionResponse struct {
	Record  models.Record   `json:"record"`
	Comment *models.Comment `json:"comment,omitempty"`
}

// target resolves the {kind} and {id} URL parameters and the acting user.
// It writes the error response itself and reports false on failure.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (models.Kind, primitive.ObjectID, models.Actor, bool) {
	kind, ok := h.kind(w, r)
	if !ok {
		return "", primitive.NilObjectID, models.Actor{}, false
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.BadRequest(w, "invalid record id")
		return "", primitive.NilObjectID, models.Actor{}, false
	}
	actor, ok := authz.Actor(r)
	if !ok {
		uierrors.Unauthorized(w)
		return "", primitive.NilObjectID, models.Actor{}, false
	}
	return kind, id, actor, true
}

func (h *Handler) kind(w http.ResponseWriter, r *http.Request) (models.Kind, bool) {
	kind, ok := models.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		httpjson.Error(w, http.StatusNotFound, "unknown record kind")
		return "", false
	}
	return kind, true
}

// List handles GET /records/{kind}.
//
// Query parameters: status (pending|approved|needs_revision), uploader_id
// (hex id or "me"), limit.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	recs, err := h.Svc.List(ctx, kind, f)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, recs)
}

type filterError string

func (e filterError) Error() string { return string(e) }

func parseFilter(r *http.Request) (recordstore.Filter, error) {
	q := r.URL.Query()
	var f recordstore.Filter

	switch st := models.Status(q.Get("status")); st {
	case "":
	case models.StatusPending, models.StatusApproved, models.StatusNeedsRevision:
		f.Status = st
	default:
		return f, filterError("status must be pending, approved or needs_revision")
	}

	switch uid := q.Get("uploader_id"); uid {
	case "":
	case "me":
		if _, _, id, ok := authz.UserCtx(r); ok {
			f.UploaderID = &id
		}
	default:
		id, err := primitive.ObjectIDFromHex(uid)
		if err != nil {
			return f, filterError("invalid uploader_id")
		}
		f.UploaderID = &id
	}

	if l := q.Get("limit"); l != "" {
		n, err := strconv.ParseInt(l, 10, 64)
		if err != nil || n <= 0 {
			return f, filterError("limit must be a positive integer")
		}
		f.Limit = n
	}
	return f, nil
}

// Get handles GET /records/{kind}/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	kind, id, _, ok := h.target(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, err := h.Svc.Get(ctx, kind, id)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, rec)
}

// Delete handles DELETE /records/{kind}/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	kind, id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.Svc.Delete(ctx, kind, id, actor); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /records/{kind}/{id}/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	kind, id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	events, err := h.Svc.History(ctx, kind, id, actor)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"items": events})
}
