package analytics

import "context"

// PetStore is the read side of the pet/adoption store.
type PetStore interface {
	SpeciesCounts(ctx context.Context) ([]SpeciesCount, error)
	AdoptionsByCenter(ctx context.Context) ([]CenterAdoptions, error)
	StateCounts(ctx context.Context) ([]RequestStatusCount, error)
	// VaccinationCounts returns the total pet count and the number of
	// distinct pets with at least one vaccine.
	VaccinationCounts(ctx context.Context) (total int64, vaccinated int64, err error)
	// AdoptedPetIDs returns the distinct ids of pets in state ADOPTED.
	AdoptedPetIDs(ctx context.Context) ([]PetKey, error)
	// AdoptionFacts returns every adoption_status row in state ADOPTED.
	AdoptionFacts(ctx context.Context) ([]AdoptionFact, error)
}

// RequestStore is the read side of the users/requests store. Every method
// takes canonical pet ids and is called with at most one batch at a time.
type RequestStore interface {
	// ApprovedUserIDs returns the distinct users with an approved request for
	// any of petIDs.
	ApprovedUserIDs(ctx context.Context, petIDs []string) ([]int64, error)
	// ApprovedRequests returns one row per approved request for any of petIDs.
	ApprovedRequests(ctx context.Context, petIDs []string) ([]UserAdoptionRequest, error)
}

// HistoryStore is the read side of the pet history collection.
type HistoryStore interface {
	// Histories returns up to limit documents in store order.
	Histories(ctx context.Context, limit int) ([]HistoryDocument, error)
	// HistoriesFor returns the documents whose pet id is one of petIDs.
	HistoriesFor(ctx context.Context, petIDs []string) ([]HistoryDocument, error)
	// Count returns the number of documents in the collection.
	Count(ctx context.Context) (int64, error)
	// Collection names the collection for health output.
	Collection() string
}
