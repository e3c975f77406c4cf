package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/atlas-accounts/atlas-accounts/internal/app"
	"github.com/atlas-accounts/atlas-accounts/internal/health"
	"github.com/atlas-accounts/atlas-accounts/internal/notify"
	"github.com/atlas-accounts/atlas-accounts/internal/observability"
	"github.com/atlas-accounts/atlas-accounts/internal/platform/cache"
	"github.com/atlas-accounts/atlas-accounts/internal/platform/db"
	"github.com/atlas-accounts/atlas-accounts/internal/users"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MinConns: cfg.PGMinConns, MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Error("ensure schema", slog.Any("error", err))
		os.Exit(1)
	}

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

	queueClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	dispatcher := notify.NewDispatcher(queueClient, cfg.EmailQueue, logger, metrics.Registerer())

	repo := users.NewRepository(pool)
	service := users.NewService(repo, dispatcher, logger)
	usersHandler := users.NewHandler(logger, service)

	healthHandler := health.NewHandler().
		Require("database", health.Postgres(pool)).
		Require("queue", health.Redis(redisClient)).
		Optional("email_api", health.HTTPEndpoint(&http.Client{Timeout: 5 * time.Second}, cfg.EmailServiceURL))

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		UsersHandler:  usersHandler,
		HealthHandler: healthHandler,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
