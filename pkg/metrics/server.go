package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/petadopt/adoption-analytics/pkg/config"
)

// NewServer builds the metrics listener described by cfg. The exposition is
// served on cfg.Path; "/" points scrapers and humans at it.
func NewServer(cfg config.MetricsConfig, m *Metrics) *http.Server {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle("GET "+path, m.Handler())
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "adoption analytics metrics: %s\n", path)
	})

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// StartServer serves metrics in the background and returns its shutdown func.
func StartServer(cfg config.MetricsConfig, m *Metrics) (shutdown func(context.Context) error) {
	server := NewServer(cfg, m)
	go func() {
		slog.Info("metrics server listening", "addr", server.Addr, "path", cfg.Path)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return server.Shutdown
}
