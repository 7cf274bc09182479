// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work, then tears down backend connections.
// Pending notifications are flushed before MongoDB is disconnected.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if rt := deps.Runtime; rt != nil {
		if rt.stopWatch != nil {
			rt.stopWatch()
			if err := rt.watchers.Wait(); err != nil {
				logger.Warn("change stream watcher exited with error", zap.Error(err))
			}
		}
		if rt.Dispatcher != nil {
			logger.Info("waiting for pending notifications")
			rt.Dispatcher.Wait()
		}
		if rt.Hub != nil {
			rt.Hub.Close()
		}
	}

	if deps.Redis != nil {
		if err := deps.Redis.Close(); err != nil {
			logger.Warn("redis close failed", zap.Error(err))
		}
	}

	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
