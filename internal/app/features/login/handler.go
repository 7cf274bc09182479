// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/classhub/internal/app/features/errors"
	userstore "github.com/dalemusser/classhub/internal/app/store/users"
	"github.com/dalemusser/classhub/internal/app/system/auditlog"
	"github.com/dalemusser/classhub/internal/app/system/auth"
	"github.com/dalemusser/classhub/internal/app/system/httpjson"
	"github.com/dalemusser/classhub/internal/app/system/ratelimit"
	"github.com/dalemusser/classhub/internal/app/system/timeouts"
	"github.com/dalemusser/classhub/internal/domain/models"
	"go.uber.org/zap"
)

// Authenticator checks credentials. The users store implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

type Handler struct {
	Users      Authenticator
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger

	// Limiter throttles attempts when set.
	Limiter *ratelimit.LoginLimiter
}

func NewHandler(users Authenticator, sessionMgr *auth.SessionManager, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		SessionMgr: sessionMgr,
		AuditLog:   auditLog,
		ErrLog:     errLog,
		Log:        logger,
	}
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User *auth.SessionUser `json:"user"`
}

// HandleLoginPost handles POST /login {email, password}.
//
// Unknown emails and wrong passwords both answer 401 with the same detail.
// Disabled accounts answer 403 and throttled attempts 429.
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := httpjson.Decode(r, &body); err != nil {
		uierrors.BadRequest(w, "invalid JSON body")
		return
	}
	email := userstore.NormalizeEmail(body.Email)
	if email == "" || strings.TrimSpace(body.Password) == "" {
		uierrors.BadRequest(w, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, email); !ok {
			h.AuditLog.LoginFailed(ctx, r, email, "rate_limited")
			httpjson.Error(w, http.StatusTooManyRequests, reason)
			return
		}
	}

	u, err := h.Users.Authenticate(ctx, email, body.Password)
	switch {
	case errors.Is(err, userstore.ErrBadCredentials):
		h.AuditLog.LoginFailed(ctx, r, email, "bad_credentials")
		httpjson.Error(w, http.StatusUnauthorized, userstore.ErrBadCredentials.Error())
		return
	case errors.Is(err, userstore.ErrUserDisabled):
		h.AuditLog.LoginFailed(ctx, r, email, "user_disabled")
		httpjson.Error(w, http.StatusForbidden, "account is disabled")
		return
	case err != nil:
		h.ErrLog.Write(w, r, err)
		return
	}

	if err := h.SessionMgr.Login(w, r, u.ID.Hex()); err != nil {
		h.Log.Error("login: save session", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not start session")
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetEmail(email)
	}
	h.AuditLog.LoginSuccess(ctx, r, u.ID, email)
	h.Log.Info("user signed in", zap.String("user_id", u.ID.Hex()), zap.String("role", u.Role))

	httpjson.Write(w, http.StatusOK, loginResponse{User: userstore.SessionUserFor(*u)})
}

// HandleSession handles GET /login: 200 {user} when signed in, 401 otherwise.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.Unauthorized(w)
		return
	}
	httpjson.Write(w, http.StatusOK, loginResponse{User: u})
}
