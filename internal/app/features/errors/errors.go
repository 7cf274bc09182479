// internal/app/features/errors/errors.go
package errors

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/classhub/internal/app/review"
	notificationstore "github.com/dalemusser/classhub/internal/app/store/notifications"
	userstore "github.com/dalemusser/classhub/internal/app/store/users"
	"github.com/dalemusser/classhub/internal/app/system/httpjson"
	"github.com/dalemusser/classhub/internal/app/workflow"
	"go.uber.org/zap"
)

// Status maps a service or store error onto an HTTP status.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, review.ErrValidation), userstore.IsValidationError(err):
		return http.StatusBadRequest
	case stderrors.Is(err, review.ErrForbidden):
		return http.StatusForbidden
	case stderrors.Is(err, review.ErrNotFound),
		stderrors.Is(err, userstore.ErrNotFound),
		stderrors.Is(err, notificationstore.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, review.ErrConflict),
		stderrors.Is(err, workflow.ErrInvalidTransition),
		stderrors.Is(err, userstore.ErrDuplicateEmail):
		return http.StatusConflict
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// ErrorLogger writes error responses and logs the ones that are our fault.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(log *zap.Logger) *ErrorLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &ErrorLogger{log: log}
}

// Write sends err as problem+json. Client errors carry the error text;
// server errors are logged and answered with a generic detail.
func (l *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	if status < http.StatusInternalServerError {
		httpjson.Error(w, status, err.Error())
		return
	}
	l.log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err))
	detail := "internal error"
	if status == http.StatusGatewayTimeout {
		detail = "the request timed out"
	}
	httpjson.Error(w, status, detail)
}

// Unauthorized answers requests that need a signed-in user.
func Unauthorized(w http.ResponseWriter) {
	httpjson.Error(w, http.StatusUnauthorized, "sign in required")
}

// BadRequest answers malformed input that never reached a service.
func BadRequest(w http.ResponseWriter, detail string) {
	httpjson.Error(w, http.StatusBadRequest, detail)
}
