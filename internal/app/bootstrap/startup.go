// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	jobstatsstore "github.com/dalemusser/stratadrive/internal/app/store/jobstats"
	orphanstore "github.com/dalemusser/stratadrive/internal/app/store/orphans"
	"github.com/dalemusser/stratadrive/internal/app/system/lifecycle"
	"github.com/dalemusser/stratadrive/internal/app/system/tasks"
	"github.com/dalemusser/stratadrive/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// It builds the lifecycle engine shared by the HTTP handlers and the
// background jobs, then starts the task runner. Returning a non-nil error
// aborts startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("handler timeouts overridden from environment", zap.Int("count", n))
	}

	driveEngine = newEngine(appCfg, deps, logger)
	startTaskRunner(appCfg, deps, logger)

	logger.Info("drive ready",
		zap.Duration("trash_retention", driveEngine.Retention()),
		zap.Int64("max_upload_size", appCfg.MaxUploadSize))
	return nil
}

var (
	// driveEngine is shared by the HTTP handlers and the trash sweep.
	driveEngine *lifecycle.Engine

	// taskRunner is the global task runner instance, used for graceful shutdown.
	taskRunner *tasks.Runner
)

func newEngine(appCfg AppConfig, deps DBDeps, logger *zap.Logger) *lifecycle.Engine {
	return lifecycle.New(
		deps.MongoDatabase,
		deps.Blobs,
		orphanstore.New(deps.MongoDatabase),
		logger.Named("lifecycle"),
		lifecycle.Config{Retention: appCfg.TrashRetention},
	)
}

// startTaskRunner registers the trash sweep and orphan reaper and starts
// them. Each scheduled run is counted in job_stats.
func startTaskRunner(appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	taskRunner = tasks.New(logger.Named("tasks"))
	taskRunner.SetStats(jobstatsstore.New(deps.MongoDatabase))

	taskRunner.Register(tasks.TrashSweepJob(driveEngine, appCfg.TrashSweepInterval, logger))
	taskRunner.Register(tasks.OrphanReapJob(
		orphanstore.New(deps.MongoDatabase),
		deps.Blobs,
		appCfg.OrphanReapInterval,
		logger,
	))

	taskRunner.Start()
}
