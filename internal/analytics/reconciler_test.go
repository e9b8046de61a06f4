package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	apperrors "github.com/petadopt/adoption-analytics/pkg/errors"
	"github.com/petadopt/adoption-analytics/pkg/metrics"
)

func adoptedFact(id any) AdoptionFact {
	return AdoptionFact{Pet: MustPetKey(id), State: AdoptedState}
}

func approved(userID int64, name string, pet any) UserAdoptionRequest {
	return UserAdoptionRequest{UserID: userID, UserName: name, Pet: MustPetKey(pet), Status: ApprovedStatus}
}

func TestFullAdoptionReportSingleAdoptionWithoutHistory(t *testing.T) {
	pets := &fakePets{facts: []AdoptionFact{adoptedFact("1")}}
	requests := &fakeRequests{rows: []UserAdoptionRequest{approved(7, "Ana", "1")}}
	histories := &fakeHistories{}
	rec := NewReconciler(pets, requests, histories, Options{})

	report, err := rec.FullAdoptionReport(context.Background())
	if err != nil {
		t.Fatalf("FullAdoptionReport: %v", err)
	}
	if len(report.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(report.Records))
	}

	got, err := json.Marshal(report.Records[0])
	if err != nil {
		t.Fatal(err)
	}
	want := `{"user_id":7,"user_name":"Ana","pet_id":"1","status_pg":"ADOPTED","last_updated":null,"history":[]}`
	if string(got) != want {
		t.Errorf("record =\n%s\nwant\n%s", got, want)
	}
}

func TestNoAdoptionsSkipsOtherStores(t *testing.T) {
	pets := &fakePets{}
	requests := &fakeRequests{rows: []UserAdoptionRequest{approved(1, "x", 1)}}
	histories := &fakeHistories{}
	rec := NewReconciler(pets, requests, histories, Options{})

	users, err := rec.UsersWithAdoptions(context.Background())
	if err != nil {
		t.Fatalf("UsersWithAdoptions: %v", err)
	}
	if !users.NoAdoptions() || users.TotalPetsAdopted != 0 {
		t.Errorf("users = %+v, want no adoptions", users)
	}

	report, err := rec.FullAdoptionReport(context.Background())
	if err != nil {
		t.Fatalf("FullAdoptionReport: %v", err)
	}
	if !report.NoAdoptions() {
		t.Errorf("report = %+v, want no adoptions", report)
	}

	if n := requests.calls(); n != 0 {
		t.Errorf("requests store queried %d times", n)
	}
	if n := histories.calls(); n != 0 {
		t.Errorf("history store queried %d times", n)
	}
}

func TestMembershipFilterIsCanonicalDistinctSet(t *testing.T) {
	pets := &fakePets{facts: []AdoptionFact{
		adoptedFact(int64(3)),
		adoptedFact(int64(1)),
		adoptedFact(int64(3)),
		adoptedFact(" 2"),
		adoptedFact("10"),
	}}
	requests := &fakeRequests{}
	histories := &fakeHistories{}
	rec := NewReconciler(pets, requests, histories, Options{BatchSize: 2})

	if _, err := rec.FullAdoptionReport(context.Background()); err != nil {
		t.Fatalf("FullAdoptionReport: %v", err)
	}

	want := map[string]int{"1": 1, "2": 1, "3": 1, "10": 1}
	for name, log := range map[string]*batchLog{"requests": &requests.batchLog, "histories": &histories.batchLog} {
		got := log.union()
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("%s ids = %v, want %v", name, got, want)
		}
		for _, b := range log.batches {
			if len(b) > 2 {
				t.Errorf("%s batch %v exceeds batch size", name, b)
			}
		}
		if len(log.batches) != 2 {
			t.Errorf("%s batches = %d, want 2", name, len(log.batches))
		}
	}
}

func TestFullAdoptionReportDropsPetsOutsideAdoptedSet(t *testing.T) {
	pets := &fakePets{facts: []AdoptionFact{adoptedFact(1)}}
	requests := &fakeRequests{
		ignoreFilter: true,
		rows: []UserAdoptionRequest{
			approved(7, "Ana", "1"),
			approved(8, "Luis", "99"),
		},
	}
	rec := NewReconciler(pets, requests, &fakeHistories{}, Options{})

	report, err := rec.FullAdoptionReport(context.Background())
	if err != nil {
		t.Fatalf("FullAdoptionReport: %v", err)
	}
	for _, r := range report.Records {
		if r.PetID.Canonical() != "1" {
			t.Errorf("record for pet %s outside adopted set", r.PetID)
		}
	}
	if len(report.Records) != 1 {
		t.Errorf("records = %d, want 1", len(report.Records))
	}
}

func TestFullAdoptionReportOneRecordPerRequest(t *testing.T) {
	pets := &fakePets{facts: []AdoptionFact{adoptedFact(5)}}
	requests := &fakeRequests{rows: []UserAdoptionRequest{
		approved(9, "Eva", 5),
		approved(2, "Ana", 5),
		approved(4, "Bo", 5),
	}}
	rec := NewReconciler(pets, requests, &fakeHistories{}, Options{})

	report, err := rec.FullAdoptionReport(context.Background())
	if err != nil {
		t.Fatalf("FullAdoptionReport: %v", err)
	}
	if len(report.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(report.Records))
	}
	for i, want := range []int64{2, 4, 9} {
		if report.Records[i].UserID != want {
			t.Errorf("record %d user = %d, want %d", i, report.Records[i].UserID, want)
		}
	}
	if report.AdoptedPets != 1 {
		t.Errorf("adopted pets = %d, want 1", report.AdoptedPets)
	}
}

func TestFullAdoptionReportDuplicateFactsFirstWins(t *testing.T) {
	first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)
	pets := &fakePets{facts: []AdoptionFact{
		{Pet: MustPetKey(1), State: AdoptedState, LastUpdated: &first},
		{Pet: MustPetKey("1"), State: AdoptedState, LastUpdated: &second},
	}}
	requests := &fakeRequests{rows: []UserAdoptionRequest{approved(7, "Ana", 1)}}
	rec := NewReconciler(pets, requests, &fakeHistories{}, Options{})

	report, err := rec.FullAdoptionReport(context.Background())
	if err != nil {
		t.Fatalf("FullAdoptionReport: %v", err)
	}
	if len(report.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(report.Records))
	}
	if got := report.Records[0].LastUpdated; got == nil || !got.Equal(first) {
		t.Errorf("last_updated = %v, want %v", got, first)
	}
	if report.AdoptedPets != 1 {
		t.Errorf("adopted pets = %d, want 1", report.AdoptedPets)
	}
}

func TestFullAdoptionReportOrdersByPetThenUser(t *testing.T) {
	pets := &fakePets{facts: []AdoptionFact{adoptedFact(10), adoptedFact(2), adoptedFact(1), adoptedFact("abc")}}
	requests := &fakeRequests{rows: []UserAdoptionRequest{
		approved(3, "c", "abc"),
		approved(5, "e", 10),
		approved(4, "d", 2),
		approved(2, "b", 1),
		approved(1, "a", 10),
	}}
	rec := NewReconciler(pets, requests, &fakeHistories{}, Options{})

	report, err := rec.FullAdoptionReport(context.Background())
	if err != nil {
		t.Fatalf("FullAdoptionReport: %v", err)
	}
	var got []string
	for _, r := range report.Records {
		got = append(got, fmt.Sprintf("%s/%d", r.PetID, r.UserID))
	}
	want := "[1/2 2/4 10/1 10/5 abc/3]"
	if fmt.Sprint(got) != want {
		t.Errorf("order = %v, want %s", got, want)
	}
}

func TestFullAdoptionReportJoinsAcrossIdentifierTypes(t *testing.T) {
	pets := &fakePets{facts: []AdoptionFact{adoptedFact(int64(42))}}
	requests := &fakeRequests{rows: []UserAdoptionRequest{approved(7, "Ana", "42")}}
	histories := &fakeHistories{docs: []HistoryDocument{
		{Pet: MustPetKey(int32(42)), History: []HistoryEvent{map[string]any{"event": "vet visit"}}},
		{Pet: MustPetKey("42"), History: []HistoryEvent{map[string]any{"event": "shadowed"}}},
	}}
	rec := NewReconciler(pets, requests, histories, Options{})

	report, err := rec.FullAdoptionReport(context.Background())
	if err != nil {
		t.Fatalf("FullAdoptionReport: %v", err)
	}
	if len(report.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(report.Records))
	}
	r := report.Records[0]
	if r.StatusPG != AdoptedState {
		t.Errorf("status_pg = %q", r.StatusPG)
	}
	if r.PetID.Native() != "42" {
		t.Errorf("pet id native = %#v, want the requests store's string", r.PetID.Native())
	}
	if len(r.History) != 1 || r.History[0].(map[string]any)["event"] != "vet visit" {
		t.Errorf("history = %v, want first document", r.History)
	}
}

func TestFullAdoptionReportStoreFailure(t *testing.T) {
	tests := []struct {
		name      string
		requests  error
		histories error
		store     string
		kind      error
	}{
		{"requests query", errors.New("syntax error"), nil, apperrors.StoreRequests, apperrors.ErrStoreQuery},
		{"histories connection", nil, fmt.Errorf("dial: %w", apperrors.ErrStoreConnection), apperrors.StoreHistories, apperrors.ErrStoreConnection},
		{"requests timeout", context.DeadlineExceeded, nil, apperrors.StoreRequests, apperrors.ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pets := &fakePets{facts: []AdoptionFact{adoptedFact(1)}}
			requests := &fakeRequests{rows: []UserAdoptionRequest{approved(7, "Ana", 1)}, err: tt.requests}
			histories := &fakeHistories{err: tt.histories}
			rec := NewReconciler(pets, requests, histories, Options{})

			report, err := rec.FullAdoptionReport(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if report.Records != nil {
				t.Errorf("partial records returned: %v", report.Records)
			}
			if got := apperrors.FailedStore(err); got != tt.store {
				t.Errorf("store = %q, want %q", got, tt.store)
			}
			if !errors.Is(err, tt.kind) {
				t.Errorf("err = %v, want kind %v", err, tt.kind)
			}
		})
	}
}

func TestFullAdoptionReportPetStoreFailure(t *testing.T) {
	pets := &fakePets{err: errors.New("relation \"adoption_status\" does not exist")}
	requests := &fakeRequests{}
	rec := NewReconciler(pets, requests, &fakeHistories{}, Options{})

	_, err := rec.FullAdoptionReport(context.Background())
	if apperrors.FailedStore(err) != apperrors.StorePets {
		t.Errorf("err = %v, want tagged %s", err, apperrors.StorePets)
	}
	if requests.calls() != 0 {
		t.Error("requests store queried after pet store failure")
	}
}

func TestUsersWithAdoptionsCountsDistinctUsersAcrossBatches(t *testing.T) {
	pets := &fakePets{adopted: []PetKey{MustPetKey(1), MustPetKey(2), MustPetKey(3), MustPetKey(2)}}
	requests := &fakeRequests{rows: []UserAdoptionRequest{
		approved(7, "Ana", 1),
		approved(7, "Ana", 3),
		approved(8, "Luis", 2),
		{UserID: 9, UserName: "Pending", Pet: MustPetKey(2), Status: "pending"},
	}}
	m := metrics.New()
	rec := NewReconciler(pets, requests, &fakeHistories{}, Options{BatchSize: 1, Metrics: m})

	res, err := rec.UsersWithAdoptions(context.Background())
	if err != nil {
		t.Fatalf("UsersWithAdoptions: %v", err)
	}
	if res.TotalUsers != 2 {
		t.Errorf("total users = %d, want 2", res.TotalUsers)
	}
	if res.TotalPetsAdopted != 3 {
		t.Errorf("total pets adopted = %d, want 3", res.TotalPetsAdopted)
	}
	if n := requests.calls(); n != 3 {
		t.Errorf("batches = %d, want 3", n)
	}
	if got := testutil.ToFloat64(m.StoreQueriesTotal.WithLabelValues(apperrors.StoreRequests, "approved_user_ids", "ok")); got != 3 {
		t.Errorf("store query counter = %v, want 3", got)
	}
}

func TestUsersWithAdoptionsRequestsFailure(t *testing.T) {
	pets := &fakePets{adopted: []PetKey{MustPetKey(1)}}
	requests := &fakeRequests{err: errors.New("Unknown column 'pet_id'")}
	rec := NewReconciler(pets, requests, &fakeHistories{}, Options{})

	_, err := rec.UsersWithAdoptions(context.Background())
	if !errors.Is(err, apperrors.ErrStoreQuery) || apperrors.FailedStore(err) != apperrors.StoreRequests {
		t.Errorf("err = %v, want mysql query error", err)
	}
}

func TestStoreCallTimeout(t *testing.T) {
	pets := &blockingPets{fakePets: fakePets{}}
	rec := NewReconciler(pets, &fakeRequests{}, &fakeHistories{}, Options{Timeout: 10 * time.Millisecond})

	_, err := rec.UsersWithAdoptions(context.Background())
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
	if apperrors.FailedStore(err) != apperrors.StorePets {
		t.Errorf("store = %q", apperrors.FailedStore(err))
	}
}

func TestCancelledRequestIsNotAStoreFailure(t *testing.T) {
	m := metrics.New()
	pets := &blockingPets{fakePets: fakePets{}}
	rec := NewReconciler(pets, &fakeRequests{}, &fakeHistories{}, Options{Timeout: time.Minute, Metrics: m})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	_, err := rec.UsersWithAdoptions(ctx)
	if !errors.Is(err, apperrors.ErrCanceled) {
		t.Fatalf("err = %v, want cancelled", err)
	}
	if errors.Is(err, apperrors.ErrStoreQuery) || apperrors.FailedStore(err) != "" {
		t.Errorf("cancellation tagged as store failure: %v", err)
	}
	if got := testutil.ToFloat64(m.StoreQueriesTotal.WithLabelValues(apperrors.StorePets, "adopted_pet_ids", "canceled")); got != 1 {
		t.Errorf("canceled outcome = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StoreQueriesTotal.WithLabelValues(apperrors.StorePets, "adopted_pet_ids", "query")); got != 0 {
		t.Errorf("query outcome = %v, want 0", got)
	}
}

type blockingPets struct {
	fakePets
}

func (b *blockingPets) AdoptedPetIDs(ctx context.Context) ([]PetKey, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
