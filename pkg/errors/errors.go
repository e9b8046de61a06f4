package errors

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrStoreConnection = errors.New("store connection failed")
	ErrStoreQuery      = errors.New("store query failed")
	ErrTimeout         = errors.New("operation timed out")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInternal        = errors.New("internal error")

	// ErrCanceled marks work abandoned because the caller went away. It is
	// not a store failure.
	ErrCanceled = errors.New("request cancelled")
)

// StatusClientClosedRequest is the non-standard status logged for requests
// whose client disconnected before the report was ready.
const StatusClientClosedRequest = 499

// Store names used to tag failures.
const (
	StorePets      = "postgres"
	StoreRequests  = "mysql"
	StoreHistories = "mongodb"
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// StoreError tags a failure with the store and operation that produced it.
// Kind is one of ErrStoreConnection, ErrStoreQuery or ErrTimeout; Err is the
// raw driver error.
type StoreError struct {
	Store string
	Op    string
	Kind  error
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Store, e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// NewStoreError builds a StoreError. An err that already is a StoreError is
// returned unchanged so the innermost tag wins.
func NewStoreError(store, op string, kind, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Store: store, Op: op, Kind: kind, Err: err}
}

// FailedStore returns the store tag carried by err, or "".
func FailedStore(err error) string {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Store
	}
	return ""
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrCanceled):
		return StatusClientClosedRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrStoreConnection):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrStoreQuery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// TransportKind classifies failures that look the same for every driver:
// deadlines, dropped connections and network errors. It returns nil when err
// carries no transport signal, leaving the driver-specific decision to the
// caller.
func TransportKind(err error) error {
	if err == nil {
		return nil
	}
	// already classified further down the stack
	for _, kind := range []error{ErrTimeout, ErrStoreConnection, ErrStoreQuery} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return ErrStoreConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrStoreConnection
	}
	return nil
}
