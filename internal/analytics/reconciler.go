package analytics

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/petadopt/adoption-analytics/pkg/errors"
	"github.com/petadopt/adoption-analytics/pkg/logger"
)

// Reconciler joins adoption facts, approved requests and pet histories
// across the three stores. Pet ids are compared by canonical form only.
type Reconciler struct {
	pets      PetStore
	requests  RequestStore
	histories HistoryStore
	opts      Options
	inst      instrument
}

func NewReconciler(pets PetStore, requests RequestStore, histories HistoryStore, opts Options) *Reconciler {
	opts = opts.withDefaults()
	return &Reconciler{
		pets:      pets,
		requests:  requests,
		histories: histories,
		opts:      opts,
		inst:      instrument{metrics: opts.Metrics, timeout: opts.Timeout},
	}
}

// UsersWithAdoptions counts the distinct users holding an approved request
// for an adopted pet. With no adopted pets the requests store is not queried.
func (r *Reconciler) UsersWithAdoptions(ctx context.Context) (UsersWithAdoptions, error) {
	var keys []PetKey
	err := r.inst.track(ctx, apperrors.StorePets, "adopted_pet_ids", func(ctx context.Context) error {
		var err error
		keys, err = r.pets.AdoptedPetIDs(ctx)
		return err
	})
	if err != nil {
		return UsersWithAdoptions{}, err
	}

	ids := distinctCanonical(keys)
	if len(ids) == 0 {
		return UsersWithAdoptions{}, nil
	}

	users := make(map[int64]struct{})
	for _, batch := range chunk(ids, r.opts.BatchSize) {
		var found []int64
		err := r.inst.track(ctx, apperrors.StoreRequests, "approved_user_ids", func(ctx context.Context) error {
			var err error
			found, err = r.requests.ApprovedUserIDs(ctx, batch)
			return err
		})
		if err != nil {
			return UsersWithAdoptions{}, err
		}
		for _, id := range found {
			users[id] = struct{}{}
		}
	}

	r.observe("users_with_adoptions", len(users))
	return UsersWithAdoptions{TotalUsers: len(users), TotalPetsAdopted: len(ids)}, nil
}

// FullAdoptionReport emits one record per approved request whose pet is
// adopted, enriched with the adoption fact and the pet history. Requests and
// histories are fetched concurrently; the first failure cancels the other.
func (r *Reconciler) FullAdoptionReport(ctx context.Context) (FullAdoptionReport, error) {
	var facts []AdoptionFact
	err := r.inst.track(ctx, apperrors.StorePets, "adoption_facts", func(ctx context.Context) error {
		var err error
		facts, err = r.pets.AdoptionFacts(ctx)
		return err
	})
	if err != nil {
		return FullAdoptionReport{}, err
	}

	adopted, ids := indexFacts(facts)
	if len(ids) == 0 {
		return FullAdoptionReport{}, nil
	}
	batches := chunk(ids, r.opts.BatchSize)

	var (
		requests []UserAdoptionRequest
		docs     []HistoryDocument
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for _, batch := range batches {
			var rows []UserAdoptionRequest
			err := r.inst.track(gctx, apperrors.StoreRequests, "approved_requests", func(ctx context.Context) error {
				var err error
				rows, err = r.requests.ApprovedRequests(ctx, batch)
				return err
			})
			if err != nil {
				return err
			}
			requests = append(requests, rows...)
		}
		return nil
	})
	g.Go(func() error {
		for _, batch := range batches {
			var found []HistoryDocument
			err := r.inst.track(gctx, apperrors.StoreHistories, "histories_for", func(ctx context.Context) error {
				var err error
				found, err = r.histories.HistoriesFor(ctx, batch)
				return err
			})
			if err != nil {
				return err
			}
			docs = append(docs, found...)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return FullAdoptionReport{}, err
	}

	records := merge(adopted, requests, indexHistories(docs))
	if dropped := len(requests) - len(records); dropped > 0 {
		logger.FromContext(ctx).Warn("dropped requests for pets outside the adopted set",
			"component", "analytics",
			"dropped", dropped,
		)
	}

	r.observe("full_adoption_report", len(records))
	return FullAdoptionReport{AdoptedPets: len(ids), Records: records}, nil
}

// indexFacts keys facts by canonical pet id. The first fact for an id wins.
// ids is the sorted distinct id set.
func indexFacts(facts []AdoptionFact) (map[string]AdoptionFact, []string) {
	byID := make(map[string]AdoptionFact, len(facts))
	keys := make([]PetKey, 0, len(facts))
	for _, f := range facts {
		if f.Pet.IsZero() {
			continue
		}
		id := f.Pet.Canonical()
		if _, seen := byID[id]; seen {
			continue
		}
		byID[id] = f
		keys = append(keys, f.Pet)
	}
	return byID, distinctCanonical(keys)
}

// indexHistories keys documents by canonical pet id. The first document for
// an id wins.
func indexHistories(docs []HistoryDocument) map[string][]HistoryEvent {
	out := make(map[string][]HistoryEvent, len(docs))
	for _, d := range docs {
		id := d.Pet.Canonical()
		if _, seen := out[id]; seen {
			continue
		}
		out[id] = nonNil(d.History)
	}
	return out
}

func merge(adopted map[string]AdoptionFact, requests []UserAdoptionRequest, histories map[string][]HistoryEvent) []CombinedAdoptionRecord {
	records := make([]CombinedAdoptionRecord, 0, len(requests))
	for _, req := range requests {
		id := req.Pet.Canonical()
		fact, ok := adopted[id]
		if !ok {
			continue
		}
		history, ok := histories[id]
		if !ok {
			history = []HistoryEvent{}
		}
		records = append(records, CombinedAdoptionRecord{
			UserID:      req.UserID,
			UserName:    req.UserName,
			PetID:       req.Pet,
			StatusPG:    fact.State,
			LastUpdated: fact.LastUpdated,
			History:     history,
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch {
		case lessPetKey(a.PetID, b.PetID):
			return true
		case lessPetKey(b.PetID, a.PetID):
			return false
		default:
			return a.UserID < b.UserID
		}
	})
	return records
}

func (r *Reconciler) observe(report string, n int) {
	if r.opts.Metrics != nil {
		r.opts.Metrics.ReportRecords.WithLabelValues(report).Observe(float64(n))
	}
}
