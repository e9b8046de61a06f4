package analytics

import "time"

// AdoptedState is the adoption_status.state value that marks a finished
// adoption in the pet store.
const AdoptedState = "ADOPTED"

// ApprovedStatus is the requests.status value of an accepted request in the
// requests store.
const ApprovedStatus = "approved"

// AdoptionFact is one adoption_status row in state ADOPTED.
type AdoptionFact struct {
	Pet         PetKey
	State       string
	LastUpdated *time.Time
}

// UserAdoptionRequest is one approved request joined with its user.
type UserAdoptionRequest struct {
	UserID   int64
	UserName string
	Pet      PetKey
	Status   string
}

// HistoryEvent is one free-form entry of a pet history document. Embedded
// documents arrive as map[string]any; scalars and arrays pass through as
// decoded.
type HistoryEvent = any

// HistoryDocument is one pet history from the document store. History is
// never nil.
type HistoryDocument struct {
	Pet     PetKey
	History []HistoryEvent
}

// CombinedAdoptionRecord joins one approved request with the matching
// adoption fact and history.
type CombinedAdoptionRecord struct {
	UserID      int64          `json:"user_id"`
	UserName    string         `json:"user_name"`
	PetID       PetKey         `json:"pet_id"`
	StatusPG    string         `json:"status_pg"`
	LastUpdated *time.Time     `json:"last_updated"`
	History     []HistoryEvent `json:"history"`
}

// SpeciesCount is one row of the pets-by-species report.
type SpeciesCount struct {
	Species string `json:"species"`
	Total   int64  `json:"total"`
}

// CenterAdoptions is one row of the adopted-by-center report.
type CenterAdoptions struct {
	CenterName   string `json:"center_name"`
	TotalAdopted int64  `json:"total_adopted"`
}

// RequestStatusCount is one row of the requests-status report.
type RequestStatusCount struct {
	Status string `json:"status"`
	Total  int64  `json:"total"`
}

// VaccinationStatus summarizes how many pets have at least one vaccine.
type VaccinationStatus struct {
	TotalPets            int64   `json:"total_pets"`
	Vaccinated           int64   `json:"vaccinated"`
	PercentageVaccinated float64 `json:"percentage_vaccinated"`
}

// PetHistory is one entry of the pet-histories listing.
type PetHistory struct {
	PetID   PetKey         `json:"pet_id"`
	History []HistoryEvent `json:"history"`
}

// DocumentStoreHealth reports the reachability of the history collection.
type DocumentStoreHealth struct {
	Status        string `json:"status"`
	Collection    string `json:"collection"`
	DocumentCount int64  `json:"document_count"`
	Message       string `json:"message"`
}

// UsersWithAdoptions is the result of the users-with-adoptions report.
// TotalPetsAdopted == 0 is the "no adoptions" terminal state.
type UsersWithAdoptions struct {
	TotalUsers       int
	TotalPetsAdopted int
}

// NoAdoptions reports whether the pet store had no adopted pets.
func (u UsersWithAdoptions) NoAdoptions() bool { return u.TotalPetsAdopted == 0 }

// FullAdoptionReport is the result of the combined adoption report.
type FullAdoptionReport struct {
	AdoptedPets int
	Records     []CombinedAdoptionRecord
}

// NoAdoptions reports whether the pet store had no adopted pets.
func (r FullAdoptionReport) NoAdoptions() bool { return r.AdoptedPets == 0 }
