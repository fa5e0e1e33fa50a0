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

	"github.com/kirillkom/case-study-search/internal/bootstrap"
	"github.com/kirillkom/case-study-search/internal/config"
	"github.com/kirillkom/case-study-search/internal/core/domain"
	"github.com/kirillkom/case-study-search/internal/observability/logging"
	"github.com/kirillkom/case-study-search/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	if err := app.ConnectQueue(func(lag time.Duration) {
		workerMetrics.ObserveQueueLag(serviceName, lag)
	}); err != nil {
		logger.Error("chunk_queue_unavailable", "error", err)
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeChunks(ctx, func(handlerCtx context.Context, rec domain.ChunkRecord) error {
		upsertCtx, cancel := context.WithTimeout(handlerCtx, cfg.EmbedTimeout+cfg.StoreTimeout)
		defer cancel()

		start := time.Now()
		workerMetrics.StartUpsert()
		err := app.Ingest.UpsertChunk(upsertCtx, rec)
		workerMetrics.FinishUpsert(serviceName, time.Since(start), err)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker_subscribe_failed", "error", err)
	}
}
