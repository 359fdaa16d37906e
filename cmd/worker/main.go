package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/apotek-erp/apotek-erp/internal/app"
	"github.com/apotek-erp/apotek-erp/internal/masterdata"
	"github.com/apotek-erp/apotek-erp/internal/platform/db"
	"github.com/apotek-erp/apotek-erp/internal/stock"
	"github.com/apotek-erp/apotek-erp/jobs"
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	stockService := stock.NewService(stock.NewRepository(pool))
	masterdataService := masterdata.NewService(masterdata.NewRepository(pool))

	expiryScanner := jobs.NewExpiryScanner(stockService, logger, cfg.ExpiryWindow)
	lowStockChecker := jobs.NewLowStockChecker(masterdataService, logger)

	expiryTask, err := jobs.NewExpiryScanTask(cfg.ExpiryWindow)
	if err != nil {
		logger.Error("build expiry scan task", slog.Any("error", err))
		os.Exit(1)
	}
	lowStockTask, err := jobs.NewLowStockTask()
	if err != nil {
		logger.Error("build low stock task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskExpiryScan, Handler: expiryScanner.Handle},
			{Type: jobs.TaskLowStock, Handler: lowStockChecker.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: lowStockTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
