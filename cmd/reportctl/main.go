// Command reportctl runs one adoption report against the live stores and
// prints the same JSON body the matching /analytics endpoint returns.
//
// Usage:
//
//	reportctl [--config configs/development.yaml] <report>
//
// Reports: pets-by-species, adopted-by-center, requests-status,
// vaccination-status, mongodb-health, users-with-adoptions,
// full-adoption-report and pet-histories [--limit N].
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/petadopt/adoption-analytics/internal/analytics"
	"github.com/petadopt/adoption-analytics/internal/server"
	"github.com/petadopt/adoption-analytics/pkg/config"
	"github.com/petadopt/adoption-analytics/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(openStores, os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// openStores loads the config and connects to the live stores.
func openStores(ctx context.Context, configPath string) (*analytics.Reporter, *analytics.Reconciler, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	// reports go to stdout, logs to stderr
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	stores, err := server.OpenStores(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	reporter, reconciler := stores.Analytics(cfg.Query, nil)
	closeFn := func() {
		if err := stores.Close(context.Background()); err != nil {
			slog.Error("failed to close stores", "error", err)
		}
	}
	return reporter, reconciler, closeFn, nil
}
