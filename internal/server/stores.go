package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/petadopt/adoption-analytics/internal/analytics"
	"github.com/petadopt/adoption-analytics/internal/storage/histories"
	"github.com/petadopt/adoption-analytics/internal/storage/pets"
	"github.com/petadopt/adoption-analytics/internal/storage/requests"
	"github.com/petadopt/adoption-analytics/pkg/config"
	apperrors "github.com/petadopt/adoption-analytics/pkg/errors"
	"github.com/petadopt/adoption-analytics/pkg/health"
	"github.com/petadopt/adoption-analytics/pkg/metrics"
	"github.com/petadopt/adoption-analytics/pkg/mongo"
	"github.com/petadopt/adoption-analytics/pkg/mysql"
	"github.com/petadopt/adoption-analytics/pkg/postgres"
)

// Stores owns the three store clients for the life of the process.
type Stores struct {
	Postgres *postgres.Client
	MySQL    *mysql.Client
	Mongo    *mongo.Client
}

// OpenStores connects to all three stores. On failure every client opened so
// far is closed.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	s := &Stores{}
	var err error

	if s.Postgres, err = postgres.New(cfg.Postgres); err != nil {
		return nil, fmt.Errorf("pet store: %w", err)
	}
	slog.Info("connected to pet store", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)

	if s.MySQL, err = mysql.New(cfg.MySQL); err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("requests store: %w", err)
	}
	slog.Info("connected to requests store", "host", cfg.MySQL.Host, "database", cfg.MySQL.Database)

	if s.Mongo, err = mongo.New(ctx, cfg.Mongo); err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("history store: %w", err)
	}
	slog.Info("connected to history store", "database", cfg.Mongo.Database, "collection", cfg.Mongo.Collection)

	return s, nil
}

// Close closes every open client and joins their errors.
func (s *Stores) Close(ctx context.Context) error {
	var errs []error
	if s.Postgres != nil {
		errs = append(errs, s.Postgres.Close())
	}
	if s.MySQL != nil {
		errs = append(errs, s.MySQL.Close())
	}
	if s.Mongo != nil {
		errs = append(errs, s.Mongo.Close(ctx))
	}
	return errors.Join(errs...)
}

// Analytics builds the reporter and reconciler over the store adapters.
func (s *Stores) Analytics(cfg config.QueryConfig, m *metrics.Metrics) (*analytics.Reporter, *analytics.Reconciler) {
	opts := analytics.Options{
		BatchSize:           cfg.BatchSize,
		DefaultHistoryLimit: cfg.DefaultHistoryLimit,
		MaxHistoryLimit:     cfg.MaxHistoryLimit,
		Timeout:             cfg.Timeout,
		Metrics:             m,
	}
	petStore := pets.New(s.Postgres)
	requestStore := requests.New(s.MySQL)
	historyStore := histories.New(s.Mongo)
	return analytics.NewReporter(petStore, historyStore, opts),
		analytics.NewReconciler(petStore, requestStore, historyStore, opts)
}

// RegisterHealth adds a ping check per store.
func (s *Stores) RegisterHealth(checker *health.Checker) {
	checker.Register(apperrors.StorePets, health.PingCheck(s.Postgres))
	checker.Register(apperrors.StoreRequests, health.PingCheck(s.MySQL))
	checker.Register(apperrors.StoreHistories, health.PingCheck(s.Mongo))
}
