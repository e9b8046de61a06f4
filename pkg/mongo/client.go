// Package mongo wraps the official MongoDB driver for the pet history
// collection: connection setup, session-scoped operations and error
// classification.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/petadopt/adoption-analytics/pkg/config"
	apperrors "github.com/petadopt/adoption-analytics/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

// Client holds a connected driver client bound to one collection.
type Client struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// New connects to the deployment in cfg.URI and verifies it with a ping.
func New(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}
	return &Client{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Close disconnects the underlying driver client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Ping checks that the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Name returns the bound collection name.
func (c *Client) Name() string {
	return c.collection.Name()
}

// WithSession runs fn inside a driver session that is ended on every exit
// path. Operations issued with the ctx handed to fn use that session.
func (c *Client) WithSession(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := c.client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: starting mongodb session: %w", apperrors.ErrStoreConnection, err)
	}
	defer sess.EndSession(context.Background())
	return fn(mongo.NewSessionContext(ctx, sess))
}

// Find returns the raw documents matching filter. A limit of zero means no
// limit.
func (c *Client) Find(ctx context.Context, filter any, limit int64) ([]bson.Raw, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := c.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := make([]bson.Raw, 0)
	for cursor.Next(ctx) {
		// cursor.Current is reused by the next call
		docs = append(docs, append(bson.Raw(nil), cursor.Current...))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Count returns the number of documents matching filter.
func (c *Client) Count(ctx context.Context, filter any) (int64, error) {
	return c.collection.CountDocuments(ctx, filter)
}

// Classify maps a failure from the history collection onto
// ErrStoreConnection, ErrTimeout or ErrStoreQuery.
func Classify(err error) error {
	var selErr topology.ServerSelectionError
	if errors.As(err, &selErr) || errors.Is(err, mongo.ErrClientDisconnected) {
		return apperrors.ErrStoreConnection
	}
	if kind := apperrors.TransportKind(err); kind != nil {
		return kind
	}
	switch {
	case mongo.IsTimeout(err):
		return apperrors.ErrTimeout
	case mongo.IsNetworkError(err):
		return apperrors.ErrStoreConnection
	}
	return apperrors.ErrStoreQuery
}
