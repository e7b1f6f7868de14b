// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"sync"

	"github.com/dalemusser/taskhub/internal/app/services/identity"
	projectstore "github.com/dalemusser/taskhub/internal/app/store/projects"
	taskstore "github.com/dalemusser/taskhub/internal/app/store/tasks"
	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"github.com/dalemusser/taskhub/internal/app/system/ratelimit"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// state holds what Startup and BuildHandler create and Shutdown releases.
var state struct {
	mu       sync.Mutex
	metrics  *metrics.Metrics
	sweeper  *workers.CascadeSweeper
	limiter  *ratelimit.Limiter
	identity *identity.Service
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It
// creates the metrics registry and starts the cascade sweeper.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	t := timeouts.Current()
	logger.Info("operation timeouts",
		zap.Duration("ping", t.Ping),
		zap.Duration("short", t.Short),
		zap.Duration("medium", t.Medium),
		zap.Duration("long", t.Long))

	m := metrics.New()
	db := deps.TaskHubMongoDatabase
	sweeper := workers.NewCascadeSweeper(taskstore.New(db), projectstore.New(db), logger,
		appCfg.CascadeSweepInterval, m.CascadeSwept)
	sweeper.Start()

	state.mu.Lock()
	state.metrics = m
	state.sweeper = sweeper
	state.mu.Unlock()
	return nil
}
