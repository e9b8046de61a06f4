// Package requests reads the users/requests store (MySQL).
package requests

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/petadopt/adoption-analytics/internal/analytics"
	apperrors "github.com/petadopt/adoption-analytics/pkg/errors"
	"github.com/petadopt/adoption-analytics/pkg/logger"
	"github.com/petadopt/adoption-analytics/pkg/mysql"
)

const (
	approvedUsersQuery = `
		SELECT DISTINCT user_id
		FROM requests
		WHERE status = 'approved' AND pet_id IN (%s)
		ORDER BY user_id`

	approvedRequestsQuery = `
		SELECT r.user_id, u.name AS user_name, r.pet_id, r.status
		FROM requests r
		JOIN users u ON r.user_id = u.id
		WHERE r.status = 'approved' AND r.pet_id IN (%s)
		ORDER BY r.pet_id, r.user_id`
)

// Conns hands out one pooled connection per operation; *mysql.Client
// implements it.
type Conns interface {
	WithConn(ctx context.Context, fn func(conn *sql.Conn) error) error
}

var _ Conns = (*mysql.Client)(nil)

// Store implements analytics.RequestStore. Pet ids are bound as strings, one
// placeholder each; the caller bounds the list length.
type Store struct {
	db     Conns
	logger *slog.Logger
}

func New(db Conns) *Store {
	return &Store{
		db:     db,
		logger: logger.WithStore("request-store", apperrors.StoreRequests),
	}
}

func (s *Store) ApprovedUserIDs(ctx context.Context, petIDs []string) ([]int64, error) {
	out := make([]int64, 0)
	if len(petIDs) == 0 {
		return out, nil
	}
	query, args := inQuery(approvedUsersQuery, petIDs)
	err := s.query(ctx, "approved_user_ids", query, args, func(rows *sql.Rows) error {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		out = append(out, id)
		return nil
	})
	return out, err
}

func (s *Store) ApprovedRequests(ctx context.Context, petIDs []string) ([]analytics.UserAdoptionRequest, error) {
	out := make([]analytics.UserAdoptionRequest, 0)
	if len(petIDs) == 0 {
		return out, nil
	}
	query, args := inQuery(approvedRequestsQuery, petIDs)
	err := s.query(ctx, "approved_requests", query, args, func(rows *sql.Rows) error {
		var (
			req  analytics.UserAdoptionRequest
			name sql.NullString
			raw  any
		)
		if err := rows.Scan(&req.UserID, &name, &raw, &req.Status); err != nil {
			return err
		}
		key, err := analytics.NewPetKey(raw)
		if err != nil {
			return err
		}
		req.UserName = name.String
		req.Pet = key
		out = append(out, req)
		return nil
	})
	return out, err
}

func (s *Store) query(ctx context.Context, op, query string, args []any, scan func(rows *sql.Rows) error) error {
	err := s.db.WithConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			if err := scan(rows); err != nil {
				return err
			}
		}
		return rows.Err()
	})
	if err != nil {
		return apperrors.NewStoreError(apperrors.StoreRequests, op, mysql.Classify(err), err)
	}
	s.logger.Debug("query complete", "operation", op, "pet_ids", len(args))
	return nil
}

// inQuery expands the %s in query to one placeholder per id.
func inQuery(query string, ids []string) (string, []any) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return fmt.Sprintf(query, placeholders), args
}
