package sweep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tommyz7/airbnb-analytics/airbnb"
	"github.com/tommyz7/airbnb-analytics/models"
	"github.com/tommyz7/airbnb-analytics/services"
)

type fakeClient struct {
	authErr   error
	authCalls int

	// listings per location name; a nil slice with an entry in
	// searchErr simulates a broken location.
	listings  map[string][]airbnb.ListingSummary
	searchErr map[string]error
	onSearch  func()
}

func (c *fakeClient) Authenticate(_ context.Context, username, password string) (airbnb.Session, error) {
	c.authCalls++
	if c.authErr != nil {
		return airbnb.Session{}, c.authErr
	}
	if username == "" || password == "" {
		return airbnb.Session{}, errors.New("missing credentials")
	}
	return airbnb.Session{Token: "tok", IssuedAt: time.Now()}, nil
}

func (c *fakeClient) SearchListings(_ context.Context, sess airbnb.Session, location string, f airbnb.SearchFilters) ([]airbnb.ListingSummary, error) {
	if c.onSearch != nil {
		c.onSearch()
	}
	if !sess.Valid() {
		return nil, errors.New("no session")
	}
	if err := c.searchErr[location]; err != nil {
		return nil, err
	}
	all := c.listings[location]
	if f.Offset >= len(all) {
		return nil, nil
	}
	end := f.Offset + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[f.Offset:end], nil
}

type fakeRepo struct {
	locations  []models.TrackedLocation
	runs       []*models.SweepRun
	logs       []models.SweepLog
	runUpdates int

	apartments map[int64]*models.Apartment
	snapshots  map[string]*models.PriceSnapshot
}

func newFakeRepo(locationNames ...string) *fakeRepo {
	r := &fakeRepo{
		apartments: make(map[int64]*models.Apartment),
		snapshots:  make(map[string]*models.PriceSnapshot),
	}
	for _, name := range locationNames {
		r.locations = append(r.locations, models.TrackedLocation{
			ID: uuid.New(), Name: name, Active: true,
		})
	}
	return r
}

func (r *fakeRepo) ListTrackedLocations(context.Context) ([]models.TrackedLocation, error) {
	return r.locations, nil
}

func (r *fakeRepo) GetTrackedLocationByName(_ context.Context, name string) (*models.TrackedLocation, error) {
	for i := range r.locations {
		if r.locations[i].Name == name {
			return &r.locations[i], nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) CreateSweepRun(_ context.Context, run *models.SweepRun) error {
	run.ID = int64(len(r.runs) + 1)
	r.runs = append(r.runs, run)
	return nil
}

func (r *fakeRepo) UpdateSweepRun(ctx context.Context, _ *models.SweepRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.runUpdates++
	return nil
}

func (r *fakeRepo) CreateSweepLog(_ context.Context, entry *models.SweepLog) error {
	r.logs = append(r.logs, *entry)
	return nil
}

// services.Store, so the real reconciler can run against the fake.

func (r *fakeRepo) GetApartmentByAirbnbID(_ context.Context, airbnbID int64) (*models.Apartment, error) {
	a, ok := r.apartments[airbnbID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) UpsertApartment(_ context.Context, a *models.Apartment) error {
	cp := *a
	r.apartments[a.AirbnbID] = &cp
	return nil
}

func (r *fakeRepo) GetPriceSnapshot(_ context.Context, apartmentID uuid.UUID, date time.Time) (*models.PriceSnapshot, error) {
	p, ok := r.snapshots[apartmentID.String()+date.Format("2006-01-02")]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) UpsertPriceSnapshot(_ context.Context, p *models.PriceSnapshot) error {
	cp := *p
	r.snapshots[p.ApartmentID.String()+p.Date.Format("2006-01-02")] = &cp
	return nil
}

func listing(id int64, name string) airbnb.ListingSummary {
	return airbnb.ListingSummary{
		ID:             id,
		Name:           name,
		NativeCurrency: "USD",
		PriceNative:    float64(100 + id),
	}
}

func newTestSweeper(client *fakeClient, repo *fakeRepo) *Sweeper {
	recon := services.NewReconcileService(repo)
	return NewSweeper(client, repo, recon, nil, Config{
		Username: "ops@example.com",
		Password: "hunter2",
		PageSize: 2,
		MaxPages: 5,
	})
}

func TestRunAll_SweepsEveryLocation(t *testing.T) {
	client := &fakeClient{listings: map[string][]airbnb.ListingSummary{
		"Berlin": {listing(1, "Altbau flat"), listing(2, "Kreuzberg loft"), listing(3, "Studio")},
		"Lisbon": {listing(4, "Alfama view")},
	}}
	repo := newFakeRepo("Berlin", "Lisbon")

	if err := newTestSweeper(client, repo).RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	if client.authCalls != 1 {
		t.Errorf("auth calls = %d, want 1 shared session", client.authCalls)
	}
	if len(repo.apartments) != 4 {
		t.Errorf("apartments = %d, want 4", len(repo.apartments))
	}
	if len(repo.snapshots) != 4 {
		t.Errorf("snapshots = %d, want 4", len(repo.snapshots))
	}
	if len(repo.runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(repo.runs))
	}
	for _, run := range repo.runs {
		if run.Status != models.RunStatusCompleted {
			t.Errorf("run %s status = %s", run.Location, run.Status)
		}
		if run.FinishedAt == nil {
			t.Errorf("run %s not finalized", run.Location)
		}
	}
	// Berlin has 3 listings with page size 2: two pages.
	if repo.runs[0].ListingsFound != 3 {
		t.Errorf("Berlin listings found = %d, want 3", repo.runs[0].ListingsFound)
	}
}

func TestRunAll_AuthFailureAborts(t *testing.T) {
	client := &fakeClient{authErr: &airbnb.AuthError{Code: 420, Message: "invalid credentials"}}
	repo := newFakeRepo("Berlin")

	err := newTestSweeper(client, repo).RunAll(context.Background())
	var aerr *airbnb.AuthError
	if !errors.As(err, &aerr) {
		t.Fatalf("error = %v, want AuthError", err)
	}
	if len(repo.runs) != 0 {
		t.Error("no run records should exist when authentication fails")
	}
}

func TestRunAll_LocationFailureIsContained(t *testing.T) {
	client := &fakeClient{
		listings: map[string][]airbnb.ListingSummary{
			"Lisbon": {listing(4, "Alfama view")},
		},
		searchErr: map[string]error{
			"Berlin": &airbnb.TransportError{Op: "search", Status: 500},
		},
	}
	repo := newFakeRepo("Berlin", "Lisbon")

	if err := newTestSweeper(client, repo).RunAll(context.Background()); err != nil {
		t.Fatalf("one broken location must not fail the sweep: %v", err)
	}

	if len(repo.apartments) != 1 {
		t.Errorf("apartments = %d, want 1 from Lisbon", len(repo.apartments))
	}
	var failed, completed int
	for _, run := range repo.runs {
		switch run.Status {
		case models.RunStatusFailed:
			failed++
		case models.RunStatusCompleted:
			completed++
		}
	}
	if failed != 1 || completed != 1 {
		t.Errorf("failed=%d completed=%d, want 1/1", failed, completed)
	}
}

func TestRunAll_AllLocationsFailing(t *testing.T) {
	client := &fakeClient{searchErr: map[string]error{
		"Berlin": errors.New("boom"),
	}}
	repo := newFakeRepo("Berlin")

	if err := newTestSweeper(client, repo).RunAll(context.Background()); err == nil {
		t.Fatal("expected error when every location fails")
	}
}

func TestSweep_BadListingDoesNotBlockOthers(t *testing.T) {
	broken := listing(2, "")
	client := &fakeClient{listings: map[string][]airbnb.ListingSummary{
		"Berlin": {listing(1, "Altbau flat"), broken, listing(3, "Studio")},
	}}
	repo := newFakeRepo("Berlin")

	if err := newTestSweeper(client, repo).RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	if len(repo.apartments) != 2 {
		t.Errorf("apartments = %d, want 2 good listings", len(repo.apartments))
	}
	run := repo.runs[0]
	if run.ErrorsCount != 1 {
		t.Errorf("errors = %d, want 1", run.ErrorsCount)
	}
	if run.Status != models.RunStatusCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}
	found := false
	for _, entry := range repo.logs {
		if entry.Level == models.LogLevelWarn && strings.Contains(entry.Message, "listing 2") {
			found = true
		}
	}
	if !found {
		t.Error("skipped listing was not logged")
	}
}

func TestRunAll_Paused(t *testing.T) {
	client := &fakeClient{}
	repo := newFakeRepo("Berlin")
	sweeper := newTestSweeper(client, repo)

	sweeper.Pause()
	if err := sweeper.RunAll(context.Background()); err != nil {
		t.Fatalf("paused RunAll: %v", err)
	}
	if client.authCalls != 0 {
		t.Error("paused sweep must not touch the provider")
	}

	sweeper.Resume()
	client.listings = map[string][]airbnb.ListingSummary{"Berlin": {listing(1, "Altbau flat")}}
	if err := sweeper.RunAll(context.Background()); err != nil {
		t.Fatalf("resumed RunAll: %v", err)
	}
	if len(repo.apartments) != 1 {
		t.Error("resumed sweep did not run")
	}
}

func TestRunLocation(t *testing.T) {
	client := &fakeClient{listings: map[string][]airbnb.ListingSummary{
		"Lisbon": {listing(4, "Alfama view")},
	}}
	repo := newFakeRepo("Berlin", "Lisbon")
	sweeper := newTestSweeper(client, repo)

	if err := sweeper.RunLocation(context.Background(), "Lisbon"); err != nil {
		t.Fatalf("RunLocation: %v", err)
	}
	if len(repo.apartments) != 1 {
		t.Errorf("apartments = %d, want 1", len(repo.apartments))
	}

	if err := sweeper.RunLocation(context.Background(), "Atlantis"); err == nil {
		t.Error("unknown location must error")
	}
}

func TestRunAll_RerunSameDayIsIdempotent(t *testing.T) {
	client := &fakeClient{listings: map[string][]airbnb.ListingSummary{
		"Berlin": {listing(1, "Altbau flat"), listing(2, "Kreuzberg loft")},
	}}
	repo := newFakeRepo("Berlin")
	sweeper := newTestSweeper(client, repo)

	for i := 0; i < 2; i++ {
		if err := sweeper.RunAll(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}

	if len(repo.apartments) != 2 {
		t.Errorf("apartments = %d, want 2", len(repo.apartments))
	}
	if len(repo.snapshots) != 2 {
		t.Errorf("snapshots = %d, want 2 (one per listing per day)", len(repo.snapshots))
	}
}

func TestSearchFilters_LocationOverrides(t *testing.T) {
	min, max, beds := 50, 300, 2
	loc := &models.TrackedLocation{
		Name:        "Berlin",
		Locale:      "de",
		Currency:    "EUR",
		PriceMin:    &min,
		PriceMax:    &max,
		MinBedrooms: &beds,
	}
	sweeper := NewSweeper(&fakeClient{}, newFakeRepo(), nil, nil, Config{
		Locale: "en", Currency: "USD", PageSize: 50,
	})

	f := sweeper.searchFilters(loc)
	if f.Locale != "de" || f.Currency != "EUR" {
		t.Errorf("overrides not applied: %+v", f)
	}
	if f.PriceMin == nil || *f.PriceMin != 50 || f.PriceMax == nil || *f.PriceMax != 300 {
		t.Errorf("price bounds not applied: %+v", f)
	}
	if f.MinBedrooms == nil || *f.MinBedrooms != 2 {
		t.Errorf("min bedrooms not applied: %+v", f)
	}
	if f.Limit != 50 {
		t.Errorf("limit = %d, want page size", f.Limit)
	}
}

func TestSweep_ContextCancellation(t *testing.T) {
	var many []airbnb.ListingSummary
	for i := int64(1); i <= 10; i++ {
		many = append(many, listing(i, fmt.Sprintf("Listing %d", i)))
	}
	client := &fakeClient{listings: map[string][]airbnb.ListingSummary{"Berlin": many}}
	repo := newFakeRepo("Berlin")
	sweeper := newTestSweeper(client, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sweeper.RunAll(ctx); err == nil {
		t.Fatal("cancelled sweep must report an error")
	}
}

func TestSweep_CancelledRunIsFinalized(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &fakeClient{
		listings: map[string][]airbnb.ListingSummary{"Berlin": {listing(1, "Altbau flat")}},
		onSearch: cancel, // deadline hits mid-sweep
	}
	repo := newFakeRepo("Berlin")
	sweeper := newTestSweeper(client, repo)

	if err := sweeper.RunAll(ctx); err == nil {
		t.Fatal("cancelled sweep must report an error")
	}

	if len(repo.runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(repo.runs))
	}
	run := repo.runs[0]
	if run.Status != models.RunStatusFailed {
		t.Errorf("status = %s, want failed", run.Status)
	}
	if run.FinishedAt == nil {
		t.Error("cancelled run was left without a finish time")
	}
	if repo.runUpdates != 1 {
		t.Errorf("run updates = %d, want the final write to land despite cancellation", repo.runUpdates)
	}
}
