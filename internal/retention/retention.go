package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"atelier/pkg/config"
	"atelier/pkg/logger"
	"atelier/pkg/store"
)

// Start launches the purge scheduler for soft-deleted projects if retention
// is enabled. Returns a cancel func for shutdown.
func Start(ctx context.Context, cfg config.RetentionConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Log.Info("retention_disabled")
		return func() {}, nil
	}
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Log.Error("retention_invalid_cron", zap.String("cron", cfg.Cron))
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, cronExpr)
	logger.Log.Info("retention_scheduler_started", zap.String("cron", cronExpr))
	return cancel, nil
}

// runScheduler computes the next cron tick with gronx and sleeps until it.
func runScheduler(ctx context.Context, cfg config.RetentionConfig, cronExpr string) {
	for {
		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Log.Error("retention_next_tick_failed", zap.Error(err))
			return
		}
		select {
		case <-ctx.Done():
			logger.Log.Info("retention_scheduler_stopping")
			return
		case <-time.After(next.Sub(now)):
		}
		if err := RunOnce(cfg); err != nil {
			logger.Log.Error("retention_run_failed", zap.Error(err))
		}
	}
}

// RunOnce purges every soft-deleted project older than the configured
// minimum age. Live projects and their timelines are never touched.
func RunOnce(cfg config.RetentionConfig) error {
	projects, err := store.ListProjects()
	if err != nil {
		return err
	}
	minAge := cfg.MinAge.Duration()
	cutoff := time.Now().UTC().Add(-minAge).UnixNano()
	purged := 0
	for _, p := range projects {
		if !p.Deleted {
			continue
		}
		if minAge > 0 && p.DeletedTS > cutoff {
			continue
		}
		if cfg.DryRun {
			logger.Log.Info("retention_would_purge", zap.String("project", p.ID))
			continue
		}
		if err := store.PurgeProject(p.ID); err != nil {
			logger.Log.Error("retention_purge_failed",
				zap.String("project", p.ID), zap.Error(err))
			continue
		}
		purged++
	}
	logger.Log.Info("retention_run_complete", zap.Int("purged", purged))
	return nil
}
