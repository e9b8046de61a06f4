// Package mysql provides the pooled connection to the users/requests store
// and maps go-sql-driver/mysql failures onto the store error taxonomy.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/petadopt/adoption-analytics/pkg/config"
	apperrors "github.com/petadopt/adoption-analytics/pkg/errors"
)

// Server error numbers that mean the server itself went away rather than
// rejecting the statement.
var connectionErrorNumbers = map[uint16]bool{
	1040: true, // ER_CON_COUNT_ERROR
	1042: true, // ER_BAD_HOST_ERROR
	1045: true, // ER_ACCESS_DENIED_ERROR
	1053: true, // ER_SERVER_SHUTDOWN
	1129: true, // ER_HOST_IS_BLOCKED
	1130: true, // ER_HOST_NOT_PRIVILEGED
}

type Client struct {
	DB *sql.DB
}

func New(cfg config.MySQLConfig) (*Client, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening mysql connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}
	return &Client{DB: db}, nil
}

// Wrap adopts an already-open pool.
func Wrap(db *sql.DB) *Client {
	return &Client{DB: db}
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// WithConn reserves one pooled connection for the duration of fn.
func (c *Client) WithConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := c.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: acquiring mysql connection: %w", apperrors.ErrStoreConnection, err)
	}
	defer conn.Close()
	return fn(conn)
}

// Classify maps a failure from the requests store onto ErrStoreConnection,
// ErrTimeout or ErrStoreQuery.
func Classify(err error) error {
	if kind := apperrors.TransportKind(err); kind != nil {
		return kind
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return apperrors.ErrStoreConnection
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if connectionErrorNumbers[myErr.Number] {
			return apperrors.ErrStoreConnection
		}
		if myErr.Number == 3024 { // ER_QUERY_TIMEOUT
			return apperrors.ErrTimeout
		}
	}
	return apperrors.ErrStoreQuery
}
