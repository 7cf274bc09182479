// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/dalemusser/classhub/internal/app/notify"
	"github.com/dalemusser/classhub/internal/app/system/blob"
	"github.com/dalemusser/classhub/internal/app/system/indexes"
	"github.com/dalemusser/classhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB connects MongoDB, the optional Redis publisher and the blob store.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().ApplyURI(appCfg.MongoURI)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}
	if appCfg.MongoMinPoolSize > 0 {
		opts.SetMinPoolSize(appCfg.MongoMinPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool", appCfg.MongoMaxPoolSize),
	)

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
		Runtime:       &Runtime{},
	}

	if err := connectBlobs(ctx, appCfg, &deps, logger); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, err
	}

	if appCfg.RedisAddr != "" {
		pub, err := notify.NewRedisPublisher(ctx, appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB, appCfg.RedisChannel)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return DBDeps{}, err
		}
		deps.Redis = pub
		logger.Info("redis notification push enabled", zap.String("addr", appCfg.RedisAddr))
	}

	return deps, nil
}

func connectBlobs(ctx context.Context, appCfg AppConfig, deps *DBDeps, logger *zap.Logger) error {
	var store storage.Store
	switch appCfg.StorageType {
	case "s3":
		s3, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:          appCfg.StorageS3Bucket,
			Region:          appCfg.StorageS3Region,
			Endpoint:        appCfg.StorageS3Endpoint,
			UsePathStyle:    appCfg.StorageS3Endpoint != "",
			Prefix:          strings.Trim(appCfg.StorageS3Prefix, "/"),
			AccessKeyID:     appCfg.StorageS3AccessKey,
			SecretAccessKey: appCfg.StorageS3SecretKey,
		})
		if err != nil {
			return fmt.Errorf("s3 storage: %w", err)
		}
		store = s3
		logger.Info("using s3 file storage", zap.String("bucket", appCfg.StorageS3Bucket))
	default:
		local, err := storage.NewLocal(storage.LocalConfig{
			BasePath: appCfg.StorageLocalPath,
			BaseURL:  appCfg.StorageLocalURL,
		})
		if err != nil {
			return fmt.Errorf("local storage: %w", err)
		}
		store = local
		logger.Info("using local file storage", zap.String("path", appCfg.StorageLocalPath))
	}
	deps.Blobs = blob.New(store, appCfg.StorageS3URLExpiry)
	return nil
}

// EnsureSchema creates the indexes every collection relies on.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	return indexes.EnsureAll(ctx, deps.MongoDatabase, logger)
}
