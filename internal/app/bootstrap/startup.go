// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/classhub/internal/app/notify"
	"github.com/dalemusser/classhub/internal/app/review"
	auditstore "github.com/dalemusser/classhub/internal/app/store/audit"
	notificationstore "github.com/dalemusser/classhub/internal/app/store/notifications"
	recordstore "github.com/dalemusser/classhub/internal/app/store/records"
	userstore "github.com/dalemusser/classhub/internal/app/store/users"
	"github.com/dalemusser/classhub/internal/app/system/auditlog"
	"github.com/dalemusser/classhub/internal/app/system/feed"
	"github.com/dalemusser/classhub/internal/app/system/timeouts"
	"github.com/dalemusser/classhub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Startup builds the stores and services after DB connections and schema
// setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
		Notify: appCfg.TimeoutNotify,
	})

	rt := deps.Runtime
	if rt == nil {
		return errors.New("startup: runtime not allocated")
	}
	db := deps.MongoDatabase

	rt.Notifications = notificationstore.New(db)
	rt.Records = recordstore.New(db, logger, rt.Notifications)
	rt.Users = userstore.New(db)
	rt.Audit = auditstore.New(db)
	rt.AuditLog = auditlog.New(rt.Audit, logger, auditlog.Config{
		Auth:     appCfg.AuditLogAuth,
		Workflow: appCfg.AuditLogWorkflow,
		Admin:    appCfg.AuditLogAdmin,
	})

	opts := []notify.Option{notify.WithTimeout(timeouts.Notify())}
	if deps.Redis != nil {
		opts = append(opts, notify.WithPublisher(deps.Redis))
	}
	rt.Dispatcher = notify.New(rt.Notifications, rt.Users, logger, opts...)
	rt.Hub = feed.NewHub(appCfg.FeedBuffer, logger)

	svcDeps := review.Deps{
		Repo:     rt.Records,
		Notifier: rt.Dispatcher,
		Audit:    rt.AuditLog,
		History:  rt.Audit,
		Log:      logger,
	}
	if deps.Blobs != nil {
		svcDeps.Blobs = deps.Blobs
	}
	// With change streams on, the watchers publish every write, including
	// writes from other instances.
	if !appCfg.ChangeStreams {
		svcDeps.Feed = rt.Hub
	}
	rt.Review = review.New(svcDeps)

	if appCfg.AdminEmail != "" {
		if err := ensureAdmin(ctx, rt.Users, appCfg.AdminEmail, appCfg.AdminPassword, appCfg.AdminName, logger); err != nil {
			return err
		}
	}

	if appCfg.ChangeStreams {
		startWatchers(rt, logger)
	}
	return nil
}

// adminAccounts is the slice of the users store ensureAdmin needs.
type adminAccounts interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u models.User, password string) (models.User, error)
	SetRole(ctx context.Context, id primitive.ObjectID, role string) error
	SetStatus(ctx context.Context, id primitive.ObjectID, status string) error
}

// ensureAdmin creates the bootstrap admin, or promotes and re-enables an
// existing account with that email.
func ensureAdmin(ctx context.Context, users adminAccounts, email, password, name string, logger *zap.Logger) error {
	existing, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != models.RoleAdmin {
			if err := users.SetRole(ctx, existing.ID, models.RoleAdmin); err != nil {
				return fmt.Errorf("promote admin: %w", err)
			}
			logger.Info("promoted user to admin", zap.String("email", existing.Email))
		}
		if existing.Status != models.UserActive {
			if err := users.SetStatus(ctx, existing.ID, models.UserActive); err != nil {
				return fmt.Errorf("enable admin: %w", err)
			}
		}
		return nil
	case !errors.Is(err, userstore.ErrNotFound):
		return fmt.Errorf("look up admin: %w", err)
	}

	if password == "" {
		return fmt.Errorf("admin_password is required to create admin %s", email)
	}
	u, err := users.Create(ctx, models.User{FullName: name, Email: email, Role: models.RoleAdmin}, password)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("created admin account", zap.String("email", u.Email))
	return nil
}

// startWatchers feeds the hub from one change stream per record kind until
// Shutdown cancels them.
func startWatchers(rt *Runtime, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	rt.stopWatch = cancel
	rt.watchers = &errgroup.Group{}
	for _, kind := range models.Kinds {
		kind := kind
		rt.watchers.Go(func() error {
			err := rt.Records.Watch(ctx, kind, func(rec models.Record) {
				rt.Hub.Publish(rt.Review.WithFileURL(ctx, rec))
			})
			if err != nil {
				logger.Warn("record change stream stopped", zap.String("kind", string(kind)), zap.Error(err))
			}
			return err
		})
	}
	logger.Info("live feed reading from change streams")
}
