package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tommyz7/airbnb-analytics/airbnb"
	"github.com/tommyz7/airbnb-analytics/models"
)

// Store is the repository surface reconciliation writes through.
// *storage.PostgresStore satisfies it.
type Store interface {
	GetApartmentByAirbnbID(ctx context.Context, airbnbID int64) (*models.Apartment, error)
	UpsertApartment(ctx context.Context, a *models.Apartment) error
	GetPriceSnapshot(ctx context.Context, apartmentID uuid.UUID, date time.Time) (*models.PriceSnapshot, error)
	UpsertPriceSnapshot(ctx context.Context, p *models.PriceSnapshot) error
}

// ReconcileError marks a fetched listing that is missing a field the
// data model requires. The listing is skipped; the sweep continues.
type ReconcileError struct {
	AirbnbID int64
	Field    string
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("listing %d: missing required field %s", e.AirbnbID, e.Field)
}

// ReconcileService folds fetched listing summaries into the repository.
type ReconcileService struct {
	store Store
}

func NewReconcileService(store Store) *ReconcileService {
	return &ReconcileService{store: store}
}

// ProcessResult contains the outcome of reconciling one listing
type ProcessResult struct {
	ApartmentID     uuid.UUID
	IsNewApartment  bool
	SnapshotWritten bool
	SnapshotUpdated bool
	PriceChanged    bool
}

// ProcessListing upserts the apartment row for a listing summary and
// then the price snapshot for snapshotDate. Safe to call repeatedly for
// the same listing and day: the apartment is keyed by airbnb_id, the
// snapshot by (apartment, date), so a rerun updates rows in place. The
// apartment write always precedes the snapshot write.
func (s *ReconcileService) ProcessListing(ctx context.Context, summary *airbnb.ListingSummary, snapshotDate time.Time) (*ProcessResult, error) {
	if summary.ID == 0 {
		return nil, &ReconcileError{Field: "id"}
	}
	if summary.Name == "" {
		return nil, &ReconcileError{AirbnbID: summary.ID, Field: "name"}
	}
	if summary.NativeCurrency == "" {
		return nil, &ReconcileError{AirbnbID: summary.ID, Field: "native_currency"}
	}

	result := &ProcessResult{}
	now := time.Now()

	existing, err := s.store.GetApartmentByAirbnbID(ctx, summary.ID)
	if err != nil {
		return nil, fmt.Errorf("get apartment: %w", err)
	}

	apartment := &models.Apartment{
		AirbnbID:         summary.ID,
		AirbnbUserID:     summary.UserID,
		Name:             summary.Name,
		City:             summary.City,
		Zipcode:          summary.Zipcode,
		State:            summary.State,
		Country:          summary.Country,
		Lat:              summary.Lat,
		Lng:              summary.Lng,
		Bedrooms:         summary.Bedrooms,
		Bathrooms:        summary.Bathrooms,
		Beds:             summary.Beds,
		PropertyType:     summary.PropertyType,
		RoomTypeCategory: summary.RoomTypeCategory,
		SquareFeet:       summary.SquareFeet,
		PersonCapacity:   summary.PersonCapacity,
		ThumbnailURL:     summary.ThumbnailURL,
		UpdatedAt:        now,
	}

	if existing == nil {
		apartment.ID = uuid.New()
		apartment.CreatedAt = now
		result.IsNewApartment = true
	} else {
		apartment.ID = existing.ID
		apartment.CreatedAt = existing.CreatedAt
		apartment.Description = existing.Description
		apartment.ThumbnailKey = existing.ThumbnailKey
		apartment.DetailSyncedAt = existing.DetailSyncedAt
	}

	if err := s.store.UpsertApartment(ctx, apartment); err != nil {
		return nil, fmt.Errorf("upsert apartment: %w", err)
	}
	result.ApartmentID = apartment.ID

	// The snapshot references the apartment row written above.
	previous, err := s.store.GetPriceSnapshot(ctx, apartment.ID, snapshotDate)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	snapshot := &models.PriceSnapshot{
		ApartmentID: apartment.ID,
		Date:        snapshotDate,
		// Search only returns bookable listings; a better vacancy
		// signal would come from the calendar, which this sweep does
		// not consult.
		Vacant:           true,
		NativeCurrency:   summary.NativeCurrency,
		NightlyPrice:     summary.PriceNative,
		WeekendPrice:     summary.WeekendPriceNative,
		WeeklyPrice:      summary.WeeklyPriceNative,
		MonthlyPrice:     summary.MonthlyPriceNative,
		ExtraPersonPrice: summary.ExtraPersonFeeNative,
		CleaningFee:      summary.CleaningFeeNative,
		SecurityDeposit:  summary.SecurityDepositNative,
		GuestsIncluded:   summary.GuestsIncluded,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.UpsertPriceSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("upsert snapshot: %w", err)
	}
	result.SnapshotWritten = true

	if previous != nil {
		result.SnapshotUpdated = true
		if previous.NightlyPrice != snapshot.NightlyPrice {
			result.PriceChanged = true
		}
	}

	return result, nil
}

// ProcessStats tracks aggregate statistics for one sweep run
type ProcessStats struct {
	ListingsProcessed int
	ApartmentsNew     int
	SnapshotsNew      int
	SnapshotsUpdated  int
	PriceChanges      int
	Errors            int
}

// Aggregate adds a ProcessResult to the stats
func (s *ProcessStats) Aggregate(r *ProcessResult) {
	s.ListingsProcessed++
	if r.IsNewApartment {
		s.ApartmentsNew++
	}
	if r.SnapshotWritten && !r.SnapshotUpdated {
		s.SnapshotsNew++
	}
	if r.SnapshotUpdated {
		s.SnapshotsUpdated++
	}
	if r.PriceChanged {
		s.PriceChanges++
	}
}

// SnapshotsWritten returns all snapshot writes, new and updated.
func (s *ProcessStats) SnapshotsWritten() int {
	return s.SnapshotsNew + s.SnapshotsUpdated
}

// ToJSON returns JSON-serializable metadata
func (s *ProcessStats) ToJSON() json.RawMessage {
	data, _ := json.Marshal(map[string]int{
		"listings_processed": s.ListingsProcessed,
		"apartments_new":     s.ApartmentsNew,
		"snapshots_new":      s.SnapshotsNew,
		"snapshots_updated":  s.SnapshotsUpdated,
		"price_changes":      s.PriceChanges,
		"errors":             s.Errors,
	})
	return data
}
