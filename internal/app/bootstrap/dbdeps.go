// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/classhub/internal/app/notify"
	"github.com/dalemusser/classhub/internal/app/review"
	auditstore "github.com/dalemusser/classhub/internal/app/store/audit"
	notificationstore "github.com/dalemusser/classhub/internal/app/store/notifications"
	recordstore "github.com/dalemusser/classhub/internal/app/store/records"
	userstore "github.com/dalemusser/classhub/internal/app/store/users"
	"github.com/dalemusser/classhub/internal/app/system/auditlog"
	"github.com/dalemusser/classhub/internal/app/system/blob"
	"github.com/dalemusser/classhub/internal/app/system/feed"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Redis is nil when notification push is disabled.
	Redis *notify.RedisPublisher

	// Blobs wraps the configured waffle storage backend.
	Blobs *blob.Files

	// Runtime is allocated by ConnectDB and filled in by Startup.
	Runtime *Runtime
}

// Runtime holds the services built during Startup and shared with
// BuildHandler and Shutdown.
type Runtime struct {
	Records       *recordstore.Store
	Users         *userstore.Store
	Notifications *notificationstore.Store
	Audit         *auditstore.Store

	AuditLog   *auditlog.Logger
	Dispatcher *notify.Dispatcher
	Hub        *feed.Hub
	Review     *review.Service

	stopWatch context.CancelFunc
	watchers  *errgroup.Group
}
