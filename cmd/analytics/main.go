// Command analytics serves the adoption analytics HTTP API.
//
// It connects to the pet store (PostgreSQL), the requests store (MySQL) and
// the history store (MongoDB), and answers single-store and cross-store
// reports under /analytics. Report events are published to Kafka when
// kafka.enabled is set; Prometheus metrics are served on their own port.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/petadopt/adoption-analytics/internal/analytics"
	"github.com/petadopt/adoption-analytics/internal/server"
	"github.com/petadopt/adoption-analytics/pkg/config"
	"github.com/petadopt/adoption-analytics/pkg/health"
	"github.com/petadopt/adoption-analytics/pkg/kafka"
	"github.com/petadopt/adoption-analytics/pkg/logger"
	"github.com/petadopt/adoption-analytics/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting adoption analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := server.OpenStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to stores", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := stores.Close(context.Background()); err != nil {
			slog.Error("failed to close stores", "error", err)
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics, m)
		defer shutdownMetrics(context.Background())
	}

	reporter, reconciler := stores.Analytics(cfg.Query, m)

	var collector *analytics.Collector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		collector = analytics.NewCollector(producer, cfg.Kafka.BufferSize, m)
		// outlives the signal; Close after Shutdown flushes the tail
		collector.Start(context.WithoutCancel(ctx))
		defer collector.Close()
		slog.Info("report events enabled", "topic", cfg.Kafka.Topics.ReportEvents)
	}

	checker := health.NewChecker(cfg.Query.Timeout)
	stores.RegisterHealth(checker)

	h := analytics.NewHandler(reporter, reconciler, collector, cfg.Tracing.Enabled)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(h, checker, m, cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// closed once in-flight requests have drained
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("adoption analytics listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("adoption analytics stopped")
}
