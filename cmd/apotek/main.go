package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/apotek-erp/apotek-erp/cmd/apotek/cli"
	"github.com/apotek-erp/apotek-erp/internal/adjustments"
	"github.com/apotek-erp/apotek-erp/internal/app"
	"github.com/apotek-erp/apotek-erp/internal/audit"
	"github.com/apotek-erp/apotek-erp/internal/disposals"
	"github.com/apotek-erp/apotek-erp/internal/masterdata"
	"github.com/apotek-erp/apotek-erp/internal/platform/cache"
	"github.com/apotek-erp/apotek-erp/internal/platform/db"
	"github.com/apotek-erp/apotek-erp/internal/purchases"
	"github.com/apotek-erp/apotek-erp/internal/sales"
	"github.com/apotek-erp/apotek-erp/internal/shared"
	"github.com/apotek-erp/apotek-erp/internal/stock"
	"github.com/apotek-erp/apotek-erp/internal/workflow"
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

	if len(os.Args) > 1 {
		if err := cli.Run(ctx, cfg.RedisAddr, os.Args[1:]); err != nil {
			logger.Error("cli", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
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

	sequencer := shared.NewSequencer(redisClient, "apotek:seq")
	auditRecorder := audit.NewRecorder(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	masterdataRepo := masterdata.NewRepository(pool)
	masterdataService := masterdata.NewService(masterdataRepo)
	masterdataHandler := masterdata.NewHandler(logger, masterdataService)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo)
	stockHandler := stock.NewHandler(logger, stockService)

	workflowRepo := workflow.NewRepository(pool)
	engine := workflow.NewEngine(workflowRepo, logger)

	purchasesService := purchases.NewService(engine, masterdataRepo, sequencer, auditRecorder, logger)
	purchasesHandler := purchases.NewHandler(logger, purchasesService)

	disposalsService := disposals.NewService(engine, stockRepo, sequencer, auditRecorder, logger)
	disposalsHandler := disposals.NewHandler(logger, disposalsService)

	adjustmentsService := adjustments.NewService(engine, stockRepo, sequencer, auditRecorder, logger)
	adjustmentsHandler := adjustments.NewHandler(logger, adjustmentsService)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, masterdataRepo, sequencer, auditRecorder, idempotencyStore, logger)
	salesHandler := sales.NewHandler(logger, salesService)

	auditHandler := audit.NewHandler(logger, auditRecorder)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		StockHandler:       stockHandler,
		PurchasesHandler:   purchasesHandler,
		DisposalsHandler:   disposalsHandler,
		AdjustmentsHandler: adjustmentsHandler,
		SalesHandler:       salesHandler,
		MasterDataHandler:  masterdataHandler,
		AuditHandler:       auditHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
