package workers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tommyz7/airbnb-analytics/airbnb"
	"github.com/tommyz7/airbnb-analytics/models"
	"github.com/tommyz7/airbnb-analytics/services"
)

// fakeDetailBackend plays provider and repository for the detail loop.
type fakeDetailBackend struct {
	apartments []models.Apartment
	fetches    int
	synced     int
	onFetch    func()
}

func (b *fakeDetailBackend) GetApartmentsWithStaleDetail(_ context.Context, _ time.Duration, limit int) ([]models.Apartment, error) {
	if limit > len(b.apartments) {
		limit = len(b.apartments)
	}
	out := make([]models.Apartment, limit)
	copy(out, b.apartments)
	return out, nil
}

func (b *fakeDetailBackend) Authenticate(context.Context, string, string) (airbnb.Session, error) {
	return airbnb.Session{Token: "tok", IssuedAt: time.Now()}, nil
}

func (b *fakeDetailBackend) GetListingDetail(_ context.Context, _ airbnb.Session, listingID int64, _ airbnb.DetailFilters) (*airbnb.ListingDetail, error) {
	b.fetches++
	if b.onFetch != nil {
		b.onFetch()
	}
	return &airbnb.ListingDetail{
		ListingSummary: airbnb.ListingSummary{ID: listingID, Name: "refreshed", City: "Berlin"},
	}, nil
}

func (b *fakeDetailBackend) GetApartmentByAirbnbID(context.Context, int64) (*models.Apartment, error) {
	return nil, nil
}

func (b *fakeDetailBackend) UpsertApartment(context.Context, *models.Apartment) error { return nil }

func (b *fakeDetailBackend) GetPriceSnapshot(context.Context, uuid.UUID, time.Time) (*models.PriceSnapshot, error) {
	return nil, nil
}

func (b *fakeDetailBackend) UpsertPriceSnapshot(context.Context, *models.PriceSnapshot) error {
	return nil
}

func (b *fakeDetailBackend) SetApartmentDetailSynced(context.Context, uuid.UUID, time.Time) error {
	b.synced++
	return nil
}

func staleApartments(n int) []models.Apartment {
	out := make([]models.Apartment, n)
	for i := range out {
		out[i] = models.Apartment{ID: uuid.New(), AirbnbID: int64(i + 1)}
	}
	return out
}

func newDetailWorkerForTest(backend *fakeDetailBackend) *DetailWorker {
	detail := services.NewDetailService(backend, backend, "en")
	return NewDetailWorker(backend, backend, detail, DetailWorkerConfig{
		Username: "ops@example.com",
		Password: "hunter2",
	})
}

func TestDetailBatch_RefreshesStaleApartments(t *testing.T) {
	backend := &fakeDetailBackend{apartments: staleApartments(2)}
	worker := newDetailWorkerForTest(backend)

	worker.processBatch(context.Background())

	if backend.fetches != 2 {
		t.Errorf("fetches = %d, want 2", backend.fetches)
	}
	if backend.synced != 2 {
		t.Errorf("synced = %d, want 2", backend.synced)
	}
}

func TestDetailBatch_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend := &fakeDetailBackend{apartments: staleApartments(3), onFetch: cancel}
	worker := newDetailWorkerForTest(backend)

	start := time.Now()
	worker.processBatch(ctx)
	elapsed := time.Since(start)

	if backend.fetches != 1 {
		t.Errorf("fetches = %d, want 1 before cancellation", backend.fetches)
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("batch kept pacing after cancellation: %v", elapsed)
	}
}

func TestPause(t *testing.T) {
	if !pause(context.Background(), time.Millisecond) {
		t.Error("undisturbed pause must run to completion")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if pause(ctx, time.Second) {
		t.Error("cancelled pause must report an early wake")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("cancelled pause slept %v", elapsed)
	}
}
