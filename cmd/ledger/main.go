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

	"github.com/mafiaidola/13-8-office-sub005/internal/app"
	"github.com/mafiaidola/13-8-office-sub005/internal/ledger"
	ledgerhttp "github.com/mafiaidola/13-8-office-sub005/internal/ledger/http"
	"github.com/mafiaidola/13-8-office-sub005/internal/observability"
	"github.com/mafiaidola/13-8-office-sub005/internal/platform/db"
	"github.com/mafiaidola/13-8-office-sub005/internal/shared"
	"github.com/mafiaidola/13-8-office-sub005/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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

	backends, err := app.OpenBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("open backends", slog.Any("error", err))
		os.Exit(1)
	}
	defer backends.Close()

	if err := db.Migrate(ctx, backends.Pool, ledger.Schema); err != nil {
		logger.Error("migrate schema", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	service, err := app.NewLedgerService(cfg, backends, logger, metrics.Registerer())
	if err != nil {
		logger.Error("init ledger service", slog.Any("error", err))
		os.Exit(1)
	}

	ledgerHandler := ledgerhttp.NewHandler(logger, service)
	ledgerHandler.SetIdempotencyStore(shared.NewIdempotencyStore(backends.Pool))

	var jobHandler *jobs.Handler
	if backends.Redis != nil {
		inspector := asynq.NewInspector(cfg.QueueRedis())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		LedgerHandler: ledgerHandler,
		JobHandler:    jobHandler,
		Metrics:       metrics,
		Ready:         backends.Pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("sequence_backend", cfg.SequenceBackend),
			slog.String("currency", cfg.LedgerCurrency),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
