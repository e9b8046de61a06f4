// Package postgres provides the pooled connection to the pet/adoption store
// and maps lib/pq failures onto the store error taxonomy.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/petadopt/adoption-analytics/pkg/config"
	apperrors "github.com/petadopt/adoption-analytics/pkg/errors"
)

type Client struct {
	DB *sql.DB
}

func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db}, nil
}

// Wrap adopts an already-open pool. Used by tests and tools that manage the
// *sql.DB themselves.
func Wrap(db *sql.DB) *Client {
	return &Client{DB: db}
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// WithConn reserves one pooled connection for the duration of fn and returns
// it to the pool on every exit path. Acquisition failures are reported as
// connection errors.
func (c *Client) WithConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := c.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: acquiring postgres connection: %w", apperrors.ErrStoreConnection, err)
	}
	defer conn.Close()
	return fn(conn)
}

// Classify maps a failure from the pet store onto ErrStoreConnection,
// ErrTimeout or ErrStoreQuery.
func Classify(err error) error {
	if kind := apperrors.TransportKind(err); kind != nil {
		return kind
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08 is connection exception, 57P0x is operator intervention
		// (shutdown, crash); both mean the store is unreachable.
		code := string(pqErr.Code)
		if strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57P0") {
			return apperrors.ErrStoreConnection
		}
		if code == "57014" {
			return apperrors.ErrTimeout
		}
	}
	return apperrors.ErrStoreQuery
}
