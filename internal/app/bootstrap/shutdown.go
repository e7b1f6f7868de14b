// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work, lets queued mail finish, and disconnects
// from MongoDB.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	state.mu.Lock()
	sweeper, limiter, idSvc := state.sweeper, state.limiter, state.identity
	state.sweeper, state.limiter, state.identity = nil, nil, nil
	state.mu.Unlock()

	if sweeper != nil {
		sweeper.Stop()
	}
	if limiter != nil {
		limiter.Stop()
	}
	if idSvc != nil {
		done := make(chan struct{})
		go func() {
			idSvc.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			logger.Warn("shutdown: pending mail abandoned", zap.Error(ctx.Err()))
		}
	}

	if deps.TaskHubMongoClient != nil {
		logger.Info("disconnecting TaskHub MongoDB client")
		if err := deps.TaskHubMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
