package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/majestrate/infinity-next/internal/bans"
	jobmetrics "github.com/majestrate/infinity-next/internal/jobs"
	"github.com/majestrate/infinity-next/internal/perms"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBanSweep removes ban rows whose expiry has passed.
	TaskBanSweep = "bans:sweep"
	// TaskSnapshotReload rebuilds the permission snapshot from the database.
	TaskSnapshotReload = "perms:reload"
)

// NewBanSweepTask constructs the ban sweep task. It carries no payload.
func NewBanSweepTask() *asynq.Task {
	return asynq.NewTask(TaskBanSweep, nil)
}

// NewSnapshotReloadTask constructs the snapshot reload task.
func NewSnapshotReloadTask() *asynq.Task {
	return asynq.NewTask(TaskSnapshotReload, nil)
}

// HandleBanSweep returns the handler that retires expired bans.
func HandleBanSweep(svc *bans.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("ban_sweep")
		swept, err := svc.SweepExpired(ctx)
		if err != nil {
			if logger != nil {
				logger.Error("ban sweep failed", slog.Any("error", err))
			}
			return tracker.End(err)
		}
		metrics.AddSwept(swept)
		if logger != nil && swept > 0 {
			logger.Info("ban sweep finished", slog.Int64("swept", swept))
		}
		return tracker.End(nil)
	}
}

// HandleSnapshotReload returns the handler that refreshes the permission
// snapshot. Node local caches pick the new version up through the
// invalidation channel.
func HandleSnapshotReload(store *perms.Store, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("snapshot_reload")
		if _, err := store.Reload(ctx); err != nil {
			if logger != nil {
				logger.Error("snapshot reload failed", slog.Any("error", err))
			}
			return tracker.End(err)
		}
		return tracker.End(nil)
	}
}
