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

	"golang.org/x/sync/errgroup"

	httpadapter "github.com/kirillkom/document-analyzer/internal/adapters/http"
	"github.com/kirillkom/document-analyzer/internal/bootstrap"
	"github.com/kirillkom/document-analyzer/internal/config"
	"github.com/kirillkom/document-analyzer/internal/observability/logging"
	"github.com/kirillkom/document-analyzer/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))
	if err := cfg.ValidateAPI(); err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)

	app, err := bootstrap.New(ctx, cfg, httpMetrics)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	limiter, closeLimiter, err := bootstrap.NewRateLimiter(cfg)
	if err != nil {
		slog.Error("rate_limiter_init_failed", "error", err)
		app.Close()
		os.Exit(1)
	}
	defer closeLimiter()

	router := httpadapter.NewRouter(app.Analyzer, app.History, app.Scheduler, httpadapter.Options{
		JWTSecret:      cfg.JWTSecret,
		Limiter:        limiter,
		Observer:       httpMetrics,
		MetricsHandler: httpMetrics.Handler(),
	}).Handler()

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           httpMetrics.Middleware(serviceName, router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      time.Duration(cfg.LLMTimeoutSeconds)*time.Second + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("api_listening", "port", cfg.APIPort)
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

	if err := group.Wait(); err != nil {
		slog.Error("api_stopped_with_error", "error", err)
		app.Close()
		os.Exit(1)
	}
	slog.Info("api_stopped")
}
