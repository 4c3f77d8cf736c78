package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/majestrate/infinity-next/internal/app"
	"github.com/majestrate/infinity-next/internal/bans"
	"github.com/majestrate/infinity-next/internal/boards"
	jobmetrics "github.com/majestrate/infinity-next/internal/jobs"
	"github.com/majestrate/infinity-next/internal/perms"
	"github.com/majestrate/infinity-next/internal/platform/cache"
	"github.com/majestrate/infinity-next/internal/platform/db"
	"github.com/majestrate/infinity-next/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	permsRepo := perms.NewRepository(pool)
	permsStore := perms.NewStore(permsRepo, redisClient, logger)
	permsService := perms.NewService(permsRepo, permsStore, logger)

	boardConfig := boards.NewConfig()
	boardsRepo := boards.NewRepository(pool)
	siteValues, err := boardsRepo.SiteSettings(ctx)
	if err != nil {
		logger.Error("load site settings", slog.Any("error", err))
		os.Exit(1)
	}
	boardConfig.PutSiteValues(siteValues)

	bansRepo := bans.NewRepository(pool)
	bansService := bans.NewService(bansRepo, boardConfig, permsService, logger)

	metrics := jobmetrics.NewMetrics(nil)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBanSweep, Handler: jobs.HandleBanSweep(bansService, metrics, logger)},
			{Type: jobs.TaskSnapshotReload, Handler: jobs.HandleSnapshotReload(permsStore, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/30 * * * *", Task: jobs.NewBanSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 * * * *", Task: jobs.NewSnapshotReloadTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
