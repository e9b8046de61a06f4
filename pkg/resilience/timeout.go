// Package resilience bounds store round trips so that no report can block
// indefinitely on a slow or hung store.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/petadopt/adoption-analytics/pkg/errors"
)

// WithTimeout runs one store operation under timeout and returns its error
// already classified:
//
//   - the call outlived its own limit or the request deadline: a StoreError
//     of kind ErrTimeout tagged with store and op
//   - the caller went away: an error matching ErrCanceled, with no store tag
//   - anything else: fn's error unchanged
//
// A driver that ignores its context keeps running in the background until it
// notices; the caller is released at the deadline either way. A timeout <= 0
// leaves the call bounded only by ctx.
func WithTimeout(ctx context.Context, timeout time.Duration, store, op string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return interrupted(ctx, ctx, store, op, fn(ctx))
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(callCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-callCtx.Done():
		err = fmt.Errorf("no reply within %v: %w", timeout, callCtx.Err())
	}
	return interrupted(ctx, callCtx, store, op, err)
}

// interrupted decides whether err is the result of a context ending rather
// than of the store itself.
func interrupted(parent, call context.Context, store, op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return fmt.Errorf("%s: %s: %w: %w", store, op, apperrors.ErrCanceled, parent.Err())
	case errors.Is(call.Err(), context.DeadlineExceeded):
		return apperrors.NewStoreError(store, op, apperrors.ErrTimeout, err)
	default:
		return err
	}
}
