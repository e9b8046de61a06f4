package analytics

import (
	"context"
	"math"
	"net/http"

	apperrors "github.com/petadopt/adoption-analytics/pkg/errors"
)

// Reporter runs the single-store reports. Each method issues one fixed query
// against one store and never retries.
type Reporter struct {
	pets      PetStore
	histories HistoryStore
	opts      Options
	inst      instrument
}

func NewReporter(pets PetStore, histories HistoryStore, opts Options) *Reporter {
	opts = opts.withDefaults()
	return &Reporter{
		pets:      pets,
		histories: histories,
		opts:      opts,
		inst:      instrument{metrics: opts.Metrics, timeout: opts.Timeout},
	}
}

func (r *Reporter) PetsBySpecies(ctx context.Context) ([]SpeciesCount, error) {
	var out []SpeciesCount
	err := r.inst.track(ctx, apperrors.StorePets, "pets_by_species", func(ctx context.Context) error {
		var err error
		out, err = r.pets.SpeciesCounts(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (r *Reporter) AdoptedByCenter(ctx context.Context) ([]CenterAdoptions, error) {
	var out []CenterAdoptions
	err := r.inst.track(ctx, apperrors.StorePets, "adopted_by_center", func(ctx context.Context) error {
		var err error
		out, err = r.pets.AdoptionsByCenter(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// RequestsStatus counts adoption_status rows per state.
func (r *Reporter) RequestsStatus(ctx context.Context) ([]RequestStatusCount, error) {
	var out []RequestStatusCount
	err := r.inst.track(ctx, apperrors.StorePets, "requests_status", func(ctx context.Context) error {
		var err error
		out, err = r.pets.StateCounts(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// VaccinationStatus reports the share of pets with at least one vaccine,
// rounded to two decimals. An empty pet table yields 0 percent.
func (r *Reporter) VaccinationStatus(ctx context.Context) (VaccinationStatus, error) {
	var total, vaccinated int64
	err := r.inst.track(ctx, apperrors.StorePets, "vaccination_status", func(ctx context.Context) error {
		var err error
		total, vaccinated, err = r.pets.VaccinationCounts(ctx)
		return err
	})
	if err != nil {
		return VaccinationStatus{}, err
	}
	return VaccinationStatus{
		TotalPets:            total,
		Vaccinated:           vaccinated,
		PercentageVaccinated: vaccinationPercentage(total, vaccinated),
	}, nil
}

func vaccinationPercentage(total, vaccinated int64) float64 {
	if total == 0 {
		return 0
	}
	pct := float64(vaccinated) / float64(total) * 100
	return math.Round(pct*100) / 100
}

// HistoryLimit resolves the caller-supplied limit. Zero selects the default;
// anything above the maximum is clamped.
func (r *Reporter) HistoryLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return r.opts.DefaultHistoryLimit, nil
	case limit < 0:
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be positive, got %d", limit)
	case limit > r.opts.MaxHistoryLimit:
		return r.opts.MaxHistoryLimit, nil
	default:
		return limit, nil
	}
}

// PetHistories lists up to limit history documents in store order.
func (r *Reporter) PetHistories(ctx context.Context, limit int) ([]PetHistory, error) {
	limit, err := r.HistoryLimit(limit)
	if err != nil {
		return nil, err
	}

	var docs []HistoryDocument
	err = r.inst.track(ctx, apperrors.StoreHistories, "pet_histories", func(ctx context.Context) error {
		var err error
		docs, err = r.histories.Histories(ctx, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]PetHistory, 0, len(docs))
	for _, d := range docs {
		out = append(out, PetHistory{PetID: d.Pet, History: nonNil(d.History)})
	}
	return out, nil
}

// DocumentStoreHealth counts the history collection. A failed count is
// reported in the result rather than returned.
func (r *Reporter) DocumentStoreHealth(ctx context.Context) DocumentStoreHealth {
	var count int64
	err := r.inst.track(ctx, apperrors.StoreHistories, "count", func(ctx context.Context) error {
		var err error
		count, err = r.histories.Count(ctx)
		return err
	})
	if err != nil {
		return DocumentStoreHealth{
			Status:     "error",
			Collection: r.histories.Collection(),
			Message:    err.Error(),
		}
	}
	return DocumentStoreHealth{
		Status:        "connected",
		Collection:    r.histories.Collection(),
		DocumentCount: count,
		Message:       "Document store connection successful",
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
