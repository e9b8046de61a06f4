package analytics

import (
	"context"
	"sync"
)

type fakePets struct {
	species    []SpeciesCount
	centers    []CenterAdoptions
	states     []RequestStatusCount
	total      int64
	vaccinated int64
	adopted    []PetKey
	facts      []AdoptionFact
	err        error
}

func (f *fakePets) SpeciesCounts(context.Context) ([]SpeciesCount, error) {
	return f.species, f.err
}

func (f *fakePets) AdoptionsByCenter(context.Context) ([]CenterAdoptions, error) {
	return f.centers, f.err
}

func (f *fakePets) StateCounts(context.Context) ([]RequestStatusCount, error) {
	return f.states, f.err
}

func (f *fakePets) VaccinationCounts(context.Context) (int64, int64, error) {
	return f.total, f.vaccinated, f.err
}

func (f *fakePets) AdoptedPetIDs(context.Context) ([]PetKey, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.adopted != nil {
		return f.adopted, nil
	}
	keys := make([]PetKey, 0, len(f.facts))
	for _, fact := range f.facts {
		keys = append(keys, fact.Pet)
	}
	return keys, nil
}

func (f *fakePets) AdoptionFacts(context.Context) ([]AdoptionFact, error) {
	return f.facts, f.err
}

// batchLog records the membership filters a store was asked for.
type batchLog struct {
	mu      sync.Mutex
	batches [][]string
}

func (b *batchLog) record(ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, append([]string(nil), ids...))
}

func (b *batchLog) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batches)
}

func (b *batchLog) union() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int)
	for _, batch := range b.batches {
		for _, id := range batch {
			out[id]++
		}
	}
	return out
}

type fakeRequests struct {
	batchLog
	rows []UserAdoptionRequest
	// ignoreFilter returns every row regardless of the membership filter.
	ignoreFilter bool
	err          error
}

func (f *fakeRequests) matching(ids []string) []UserAdoptionRequest {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []UserAdoptionRequest
	for _, row := range f.rows {
		if row.Status != ApprovedStatus {
			continue
		}
		if f.ignoreFilter || want[row.Pet.Canonical()] {
			out = append(out, row)
		}
	}
	return out
}

func (f *fakeRequests) ApprovedUserIDs(_ context.Context, ids []string) ([]int64, error) {
	f.record(ids)
	if f.err != nil {
		return nil, f.err
	}
	seen := make(map[int64]bool)
	var out []int64
	for _, row := range f.matching(ids) {
		if !seen[row.UserID] {
			seen[row.UserID] = true
			out = append(out, row.UserID)
		}
	}
	return out, nil
}

func (f *fakeRequests) ApprovedRequests(_ context.Context, ids []string) ([]UserAdoptionRequest, error) {
	f.record(ids)
	if f.err != nil {
		return nil, f.err
	}
	return f.matching(ids), nil
}

type fakeHistories struct {
	batchLog
	docs     []HistoryDocument
	err      error
	countErr error
}

func (f *fakeHistories) Histories(_ context.Context, limit int) ([]HistoryDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.docs) {
		return f.docs[:limit], nil
	}
	return f.docs, nil
}

func (f *fakeHistories) HistoriesFor(_ context.Context, ids []string) ([]HistoryDocument, error) {
	f.record(ids)
	if f.err != nil {
		return nil, f.err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []HistoryDocument
	for _, d := range f.docs {
		if want[d.Pet.Canonical()] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeHistories) Count(context.Context) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.docs)), nil
}

func (f *fakeHistories) Collection() string { return "histories" }
