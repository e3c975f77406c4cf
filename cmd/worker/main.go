package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atlas-accounts/atlas-accounts/internal/app"
	jobmetrics "github.com/atlas-accounts/atlas-accounts/internal/jobs"
	"github.com/atlas-accounts/atlas-accounts/internal/notify"
	"github.com/atlas-accounts/atlas-accounts/internal/platform/db"
	"github.com/atlas-accounts/atlas-accounts/internal/users"
	"github.com/atlas-accounts/atlas-accounts/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MinConns: cfg.PGMinConns, MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)

	consumer := notify.NewConsumer([]notify.Deliverer{
		notify.NewHTTPDeliverer(cfg.EmailServiceURL, &http.Client{Timeout: cfg.EmailDeliveryTimeout}),
		notify.NewConsoleDeliverer(nil),
	}, logger, registry)

	repo := users.NewRepository(pool)
	sweepJob := jobs.NewSweepJob(repo, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Queue:       cfg.EmailQueue,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskActivationEmail, Handler: consumer.HandleActivationEmail},
			{Type: jobs.TaskSweepCodes, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "* * * * *", Task: jobs.NewSweepCodesTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
