// internal/app/features/systemusers/handler.go
package systemusers

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	uierrors "github.com/dalemusser/classhub/internal/app/features/errors"
	"github.com/dalemusser/classhub/internal/app/review"
	"github.com/dalemusser/classhub/internal/app/store/audit"
	userstore "github.com/dalemusser/classhub/internal/app/store/users"
	"github.com/dalemusser/classhub/internal/app/system/auditlog"
	"github.com/dalemusser/classhub/internal/app/system/authz"
	"github.com/dalemusser/classhub/internal/app/system/httpjson"
	"github.com/dalemusser/classhub/internal/app/system/timeouts"
	"github.com/dalemusser/classhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Directory manages staff accounts. The users store implements it.
type Directory interface {
	List(ctx context.Context, limit int64) ([]models.User, error)
	Create(ctx context.Context, u models.User, password string) (models.User, error)
	SetRole(ctx context.Context, id primitive.ObjectID, role string) error
	SetStatus(ctx context.Context, id primitive.ObjectID, status string) error
}

type Handler struct {
	Users    Directory
	AuditLog *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(users Directory, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Users: users, AuditLog: auditLog, ErrLog: errLog, Log: logger}
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type createBody struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (b createBody) validate() error {
	err := validation.ValidateStruct(&b,
		validation.Field(&b.FullName, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&b.Email, validation.Required, validation.Match(emailPattern)),
		validation.Field(&b.Role, validation.Required, validation.In(stringsToAny(models.AllRoles)...)),
		validation.Field(&b.Password, validation.Required, validation.Length(8, 128)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", review.ErrValidation, err)
	}
	return nil
}

func stringsToAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// List handles GET /users.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	users, err := h.Users.List(ctx, 0)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, users)
}

// Create handles POST /users {full_name, email, role, password}.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.Actor(r)
	if !ok {
		uierrors.Unauthorized(w)
		return
	}
	var body createBody
	if err := httpjson.Decode(r, &body); err != nil {
		uierrors.BadRequest(w, "invalid JSON body")
		return
	}
	body.Email = userstore.NormalizeEmail(body.Email)
	if err := body.validate(); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{
		FullName: body.FullName,
		Email:    body.Email,
		Role:     body.Role,
	}, body.Password)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.AuditLog.UserChanged(ctx, r, actor, u.ID, audit.EventUserCreated, map[string]string{
		"email": u.Email,
		"role":  u.Role,
	})
	u.PasswordHash = ""
	httpjson.Write(w, http.StatusCreated, u)
}

type roleBody struct {
	Role string `json:"role"`
}

type statusBody struct {
	Status string `json:"status"`
}

// SetRole handles POST /users/{id}/role {role}.
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	var body roleBody
	h.change(w, r, &body, audit.EventUserRoleChanged, func(ctx context.Context, id primitive.ObjectID) (map[string]string, error) {
		return map[string]string{"role": body.Role}, h.Users.SetRole(ctx, id, body.Role)
	})
}

// SetStatus handles POST /users/{id}/status {status}. Admins cannot
// disable themselves.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	h.change(w, r, &body, audit.EventUserStatusChanged, func(ctx context.Context, id primitive.ObjectID) (map[string]string, error) {
		if actor, _ := authz.Actor(r); actor.ID == id && body.Status == models.UserDisabled {
			return nil, fmt.Errorf("%w: you cannot disable your own account", review.ErrValidation)
		}
		return map[string]string{"status": body.Status}, h.Users.SetStatus(ctx, id, body.Status)
	})
}

// change decodes body, applies fn to the {id} user and audits the result.
func (h *Handler) change(w http.ResponseWriter, r *http.Request, body any, event string, fn func(ctx context.Context, id primitive.ObjectID) (map[string]string, error)) {
	actor, ok := authz.Actor(r)
	if !ok {
		uierrors.Unauthorized(w)
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.BadRequest(w, "invalid user id")
		return
	}
	if err := httpjson.Decode(r, body); err != nil {
		uierrors.BadRequest(w, "invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	details, err := fn(ctx, id)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.AuditLog.UserChanged(ctx, r, actor, id, event, details)
	w.WriteHeader(http.StatusNoContent)
}
