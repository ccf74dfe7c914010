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

	"github.com/kirillkom/document-analyzer/internal/bootstrap"
	"github.com/kirillkom/document-analyzer/internal/config"
	"github.com/kirillkom/document-analyzer/internal/core/domain"
	"github.com/kirillkom/document-analyzer/internal/observability/logging"
	"github.com/kirillkom/document-analyzer/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)

	app, err := bootstrap.New(ctx, cfg, workerMetrics)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSReanalysisSubject)
	err = app.Queue.SubscribeReanalysisRequested(ctx, func(handlerCtx context.Context, req domain.ReanalysisRequest) error {
		handlerCtx = logging.WithAttrs(handlerCtx,
			slog.String("document_id", req.DocumentID),
			slog.String("user_id", req.OwnerID),
		)
		workerMetrics.ObserveQueueLag(serviceName, time.Since(req.RequestedAt))
		workerMetrics.StartJob()
		started := time.Now()

		outcome := app.Analyzer.Reanalyze(handlerCtx, req.OwnerID, req.DocumentID, req.UserPrompt)
		workerMetrics.FinishJob(serviceName, string(outcome.Status), time.Since(started))

		slog.InfoContext(handlerCtx, "reanalysis_job_done",
			"status", outcome.Status,
			"message", outcome.Message,
		)
		if outcome.Status == domain.OutcomeError {
			return errors.New(outcome.Message)
		}
		return nil
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
	slog.Info("worker_stopped")
}
