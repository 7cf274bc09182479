// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	errorsfeature "github.com/dalemusser/classhub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/classhub/internal/app/features/health"
	loginfeature "github.com/dalemusser/classhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/classhub/internal/app/features/logout"
	notificationsfeature "github.com/dalemusser/classhub/internal/app/features/notifications"
	recordsfeature "github.com/dalemusser/classhub/internal/app/features/records"
	systemusersfeature "github.com/dalemusser/classhub/internal/app/features/systemusers"
	userstore "github.com/dalemusser/classhub/internal/app/store/users"
	"github.com/dalemusser/classhub/internal/app/system/auth"
	"github.com/dalemusser/classhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed, so the review service and its collaborators are
// ready on deps.Runtime.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// LoadSessionUser fetches fresh user data on each request, so role
	// changes and disabled accounts take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))

	rt := deps.Runtime
	errLog := errorsfeature.NewErrorLogger(logger)

	var redis healthfeature.Pinger
	if deps.Redis != nil {
		redis = deps.Redis
	}

	h := handlers{
		Health:        healthfeature.NewHandler(deps.MongoClient, redis, logger),
		Login:         loginfeature.NewHandler(rt.Users, sessionMgr, rt.AuditLog, errLog, logger),
		Logout:        logoutfeature.NewHandler(sessionMgr, rt.AuditLog, logger),
		Records:       recordsfeature.NewHandler(rt.Review, rt.Hub, errLog, logger),
		Notifications: notificationsfeature.NewHandler(rt.Notifications, errLog, logger),
		Users:         systemusersfeature.NewHandler(rt.Users, rt.AuditLog, errLog, logger),
	}
	h.Login.Limiter = ratelimit.NewLoginLimiter()
	if deps.Blobs != nil {
		if _, ok := deps.Blobs.Local(); ok {
			h.FilesPrefix = appCfg.StorageLocalURL
			h.Files = fileserver.Handler(appCfg.StorageLocalURL, appCfg.StorageLocalPath)
		}
	}

	return buildRouter(sessionMgr, h), nil
}

// handlers are the feature handlers mounted by buildRouter.
type handlers struct {
	Health        *healthfeature.Handler
	Login         *loginfeature.Handler
	Logout        *logoutfeature.Handler
	Records       *recordsfeature.Handler
	Notifications *notificationsfeature.Handler
	Users         *systemusersfeature.Handler

	// Files serves locally stored uploads under FilesPrefix; nil with S3.
	Files       http.Handler
	FilesPrefix string
}

func buildRouter(sessionMgr *auth.SessionManager, h handlers) chi.Router {
	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	r.Mount("/health", healthfeature.Routes(h.Health))

	// Authentication
	r.Mount("/login", loginfeature.Routes(h.Login))
	r.Mount("/logout", logoutfeature.Routes(h.Logout))

	// Review workflow: /records/{kind}/...
	r.Mount("/records", recordsfeature.Routes(h.Records, sessionMgr))
	r.Mount("/notifications", notificationsfeature.Routes(h.Notifications, sessionMgr))

	// Account administration
	r.Mount("/users", systemusersfeature.Routes(h.Users, sessionMgr))

	// Uploaded files are visible to signed-in staff only.
	if h.Files != nil {
		r.With(sessionMgr.RequireSignedIn).Handle(h.FilesPrefix+"/*", h.Files)
	}

	return r
}
