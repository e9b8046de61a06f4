package analytics

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/petadopt/adoption-analytics/pkg/errors"
	"github.com/petadopt/adoption-analytics/pkg/logger"
	"github.com/petadopt/adoption-analytics/pkg/metrics"
	"github.com/petadopt/adoption-analytics/pkg/resilience"
	"github.com/petadopt/adoption-analytics/pkg/tracing"
)

// Options tunes Reporter and Reconciler. Zero values fall back to defaults.
type Options struct {
	// BatchSize caps the number of pet ids in one membership filter.
	BatchSize           int
	DefaultHistoryLimit int
	MaxHistoryLimit     int
	// Timeout bounds every store call. Zero disables the bound.
	Timeout time.Duration
	// Metrics is optional.
	Metrics *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 500
	}
	if o.DefaultHistoryLimit <= 0 {
		o.DefaultHistoryLimit = 5
	}
	if o.MaxHistoryLimit <= 0 {
		o.MaxHistoryLimit = 100
	}
	o.DefaultHistoryLimit = min(o.DefaultHistoryLimit, o.MaxHistoryLimit)
	return o
}

// instrument wraps every store round trip with a trace entry, metrics and
// store tagging of the error.
type instrument struct {
	metrics *metrics.Metrics
	timeout time.Duration
}

func (in instrument) track(ctx context.Context, store, op string, fn func(ctx context.Context) error) error {
	call := tracing.StartCall(ctx, store, op)
	start := time.Now()

	err := resilience.WithTimeout(ctx, in.timeout, store, op, fn)

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrCanceled):
		outcome = "canceled"
		logger.FromContext(ctx).Debug("store call abandoned",
			"component", "analytics",
			"store", store,
			"operation", op,
		)
	default:
		kind := apperrors.TransportKind(err)
		if kind == nil {
			kind = apperrors.ErrStoreQuery
		}
		err = apperrors.NewStoreError(store, op, kind, err)
		outcome = outcomeLabel(err)
		logger.FromContext(ctx).Error("store call failed",
			"component", "analytics",
			"store", store,
			"operation", op,
			"outcome", outcome,
			"error", err,
		)
	}
	call.Finish(outcome)

	if in.metrics != nil {
		in.metrics.StoreQueriesTotal.WithLabelValues(store, op, outcome).Inc()
		in.metrics.StoreQueryDuration.WithLabelValues(store, op).Observe(time.Since(start).Seconds())
	}
	return err
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrTimeout):
		return "timeout"
	case errors.Is(err, apperrors.ErrStoreConnection):
		return "connection"
	default:
		return "query"
	}
}
