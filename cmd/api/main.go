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

	httpadapter "github.com/kirillkom/case-study-search/internal/adapters/http"
	"github.com/kirillkom/case-study-search/internal/bootstrap"
	"github.com/kirillkom/case-study-search/internal/config"
	"github.com/kirillkom/case-study-search/internal/observability/logging"
	"github.com/kirillkom/case-study-search/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	svc := httpadapter.Services{
		Answerer: app.Answer,
		Resolver: app.Resolve,
		Indexes:  app.Indexes,
		Health:   app.Health,
		Metrics:  metrics.NewHTTPServerMetrics("api"),
	}
	if err := app.ConnectQueue(nil); err != nil {
		logger.Warn("chunk_queue_unavailable", "error", err)
	} else {
		svc.Chunks = app.Publisher
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      httpadapter.NewRouter(cfg, svc).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.CompletionTimeout + cfg.WebTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
