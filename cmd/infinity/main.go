package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/majestrate/infinity-next/internal/app"
	"github.com/majestrate/infinity-next/internal/auth"
	"github.com/majestrate/infinity-next/internal/bans"
	"github.com/majestrate/infinity-next/internal/boards"
	"github.com/majestrate/infinity-next/internal/observability"
	"github.com/majestrate/infinity-next/internal/perms"
	"github.com/majestrate/infinity-next/internal/platform/cache"
	"github.com/majestrate/infinity-next/internal/platform/db"
	"github.com/majestrate/infinity-next/internal/posting"
	"github.com/majestrate/infinity-next/internal/shared"
	"github.com/majestrate/infinity-next/internal/users"
	"github.com/majestrate/infinity-next/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "infinity_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)

	permsRepo := perms.NewRepository(dbpool)
	permsStore := perms.NewStore(permsRepo, redisClient, logger)
	go permsStore.Listen(ctx)
	permsService := perms.NewService(permsRepo, permsStore, logger)
	if err := permsService.SeedDefaults(ctx); err != nil {
		logger.Error("seed default roles", slog.Any("error", err))
		os.Exit(1)
	}

	boardConfig := boards.NewConfig()
	boardsRepo := boards.NewRepository(dbpool)
	siteValues, err := boardsRepo.SiteSettings(ctx)
	if err != nil {
		logger.Error("load site settings", slog.Any("error", err))
		os.Exit(1)
	}
	boardConfig.PutSiteValues(siteValues)
	boardsService := boards.NewService(boardsRepo, boardConfig, permsService, logger)

	usersRepo := users.NewRepository(dbpool)
	classifier := users.NewCIDRClassifier(cfg.UnaccountableRanges)
	usersService := users.NewService(usersRepo, permsService, classifier, logger)

	permsMiddleware := perms.Middleware{Service: permsService, Actors: usersService, Logger: logger}

	bansRepo := bans.NewRepository(dbpool)
	bansService := bans.NewService(bansRepo, boardConfig, permsService, logger)

	metrics := observability.NewMetrics()

	var captcha posting.Verifier
	if cfg.CaptchaEndpoint != "" {
		captcha = posting.NewHTTPVerifier(cfg.CaptchaEndpoint, cfg.CaptchaSecret, cfg.CaptchaTimeout)
	}
	postingRepo := posting.NewRepository(dbpool)
	pipeline := posting.NewPipeline(
		postingRepo,
		boardConfig,
		permsService,
		bansService,
		posting.NewLocalStorage(cfg.UploadDir),
		captcha,
		posting.NewFloodGuard(redisClient),
		metrics,
		logger,
	)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    auth.NewHandler(logger, authService, sessionManager, csrfManager),
		PermsHandler:   perms.NewHandler(logger, permsService, permsMiddleware),
		BoardsHandler:  boards.NewHandler(logger, boardsService, permsMiddleware),
		BansHandler:    bans.NewHandler(logger, bansService, permsMiddleware, auditLogger),
		PostingHandler: posting.NewHandler(logger, pipeline, boardsService, permsMiddleware),
		UsersHandler:   users.NewHandler(logger, usersService, permsMiddleware),
		JobsHandler:    jobs.NewHandler(inspector, logger),
		Pool:           dbpool,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
