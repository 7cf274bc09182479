// internal/app/features/notifications/handler.go
package notifications

import (
	"context"
	"net/http"
	"strconv"

	uierrors "github.com/dalemusser/classhub/internal/app/features/errors"
	"github.com/dalemusser/classhub/internal/app/system/authz"
	"github.com/dalemusser/classhub/internal/app/system/httpjson"
	"github.com/dalemusser/classhub/internal/app/system/timeouts"
	"github.com/dalemusser/classhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Inbox reads and acknowledges a user's notifications. The notifications
// store implements it.
type Inbox interface {
	ListForReceiver(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) error
}

type Handler struct {
	Inbox  Inbox
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(inbox Inbox, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Inbox: inbox, ErrLog: errLog, Log: logger}
}

type listResponse struct {
	Items  []models.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

// List handles GET /notifications?limit=N.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.Unauthorized(w)
		return
	}
	var limit int64
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.ParseInt(l, 10, 64)
		if err != nil || n <= 0 {
			uierrors.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	items, err := h.Inbox.ListForReceiver(ctx, uid, limit)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	resp := listResponse{Items: items}
	for _, n := range items {
		if !n.IsRead {
			resp.Unread++
		}
	}
	httpjson.Write(w, http.StatusOK, resp)
}

// MarkRead handles POST /notifications/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.Unauthorized(w)
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.BadRequest(w, "invalid notification id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Inbox.MarkRead(ctx, id, uid); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
