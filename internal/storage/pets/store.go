// Package pets reads the pet/adoption store (PostgreSQL): pets, adoption
// centers, adoption states and vaccines.
package pets

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/petadopt/adoption-analytics/internal/analytics"
	apperrors "github.com/petadopt/adoption-analytics/pkg/errors"
	"github.com/petadopt/adoption-analytics/pkg/logger"
	"github.com/petadopt/adoption-analytics/pkg/postgres"
)

const (
	speciesQuery = `
		SELECT species, COUNT(*) AS total
		FROM pet
		GROUP BY species
		ORDER BY total DESC, species ASC`

	centersQuery = `
		SELECT ac.name AS center_name, COUNT(*) AS total_adopted
		FROM pet p
		JOIN adoption_centers ac ON p.adoption_center_id = ac.id
		JOIN adoption_status ast ON p.id = ast.pet_id
		WHERE ast.state = 'ADOPTED'
		GROUP BY ac.name
		ORDER BY total_adopted DESC, center_name ASC`

	statesQuery = `
		SELECT ast.state AS state, COUNT(*) AS total
		FROM pet p
		JOIN adoption_status ast ON p.id = ast.pet_id
		GROUP BY ast.state
		ORDER BY total DESC, state ASC`

	totalPetsQuery  = `SELECT COUNT(*) FROM pet`
	vaccinatedQuery = `SELECT COUNT(DISTINCT pet_id) FROM vaccines`

	adoptedIDsQuery = `
		SELECT DISTINCT pet_id
		FROM adoption_status
		WHERE state = 'ADOPTED'`

	adoptionFactsQuery = `
		SELECT pet_id, state, last_updated
		FROM adoption_status
		WHERE state = 'ADOPTED'`
)

// Conns hands out one pooled connection per operation; *postgres.Client
// implements it.
type Conns interface {
	WithConn(ctx context.Context, fn func(conn *sql.Conn) error) error
}

var _ Conns = (*postgres.Client)(nil)

// Store implements analytics.PetStore.
type Store struct {
	db     Conns
	logger *slog.Logger
}

func New(db Conns) *Store {
	return &Store{
		db:     db,
		logger: logger.WithStore("pet-store", apperrors.StorePets),
	}
}

func (s *Store) SpeciesCounts(ctx context.Context) ([]analytics.SpeciesCount, error) {
	out := make([]analytics.SpeciesCount, 0)
	err := s.query(ctx, "species_counts", speciesQuery, func(rows *sql.Rows) error {
		var row analytics.SpeciesCount
		if err := rows.Scan(&row.Species, &row.Total); err != nil {
			return err
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

func (s *Store) AdoptionsByCenter(ctx context.Context) ([]analytics.CenterAdoptions, error) {
	out := make([]analytics.CenterAdoptions, 0)
	err := s.query(ctx, "adoptions_by_center", centersQuery, func(rows *sql.Rows) error {
		var row analytics.CenterAdoptions
		if err := rows.Scan(&row.CenterName, &row.TotalAdopted); err != nil {
			return err
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

func (s *Store) StateCounts(ctx context.Context) ([]analytics.RequestStatusCount, error) {
	out := make([]analytics.RequestStatusCount, 0)
	err := s.query(ctx, "state_counts", statesQuery, func(rows *sql.Rows) error {
		var row analytics.RequestStatusCount
		if err := rows.Scan(&row.Status, &row.Total); err != nil {
			return err
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

// VaccinationCounts runs both counts on the same connection.
func (s *Store) VaccinationCounts(ctx context.Context) (int64, int64, error) {
	var total, vaccinated int64
	err := s.db.WithConn(ctx, func(conn *sql.Conn) error {
		if err := conn.QueryRowContext(ctx, totalPetsQuery).Scan(&total); err != nil {
			return fmt.Errorf("counting pets: %w", err)
		}
		if err := conn.QueryRowContext(ctx, vaccinatedQuery).Scan(&vaccinated); err != nil {
			return fmt.Errorf("counting vaccinated pets: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, s.wrap("vaccination_counts", err)
	}
	return total, vaccinated, nil
}

func (s *Store) AdoptedPetIDs(ctx context.Context) ([]analytics.PetKey, error) {
	out := make([]analytics.PetKey, 0)
	err := s.query(ctx, "adopted_pet_ids", adoptedIDsQuery, func(rows *sql.Rows) error {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		key, err := analytics.NewPetKey(raw)
		if err != nil {
			return err
		}
		out = append(out, key)
		return nil
	})
	return out, err
}

func (s *Store) AdoptionFacts(ctx context.Context) ([]analytics.AdoptionFact, error) {
	out := make([]analytics.AdoptionFact, 0)
	err := s.query(ctx, "adoption_facts", adoptionFactsQuery, func(rows *sql.Rows) error {
		var (
			raw     any
			fact    analytics.AdoptionFact
			updated sql.NullTime
		)
		if err := rows.Scan(&raw, &fact.State, &updated); err != nil {
			return err
		}
		key, err := analytics.NewPetKey(raw)
		if err != nil {
			return err
		}
		fact.Pet = key
		if updated.Valid {
			t := updated.Time.UTC()
			fact.LastUpdated = &t
		}
		out = append(out, fact)
		return nil
	})
	return out, err
}

// query runs a parameterless query on a dedicated connection and hands every
// row to scan.
func (s *Store) query(ctx context.Context, op, query string, scan func(rows *sql.Rows) error) error {
	start := time.Now()
	err := s.db.WithConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query)
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
		return s.wrap(op, err)
	}
	s.logger.Debug("query complete", "operation", op, "duration", time.Since(start))
	return nil
}

func (s *Store) wrap(op string, err error) error {
	return apperrors.NewStoreError(apperrors.StorePets, op, postgres.Classify(err), err)
}
