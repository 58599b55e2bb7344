package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tommyz7/airbnb-analytics/airbnb"
	"github.com/tommyz7/airbnb-analytics/models"
)

// DetailFetcher is the client surface the detail refresh needs.
type DetailFetcher interface {
	GetListingDetail(ctx context.Context, sess airbnb.Session, listingID int64, f airbnb.DetailFilters) (*airbnb.ListingDetail, error)
}

// DetailStore extends the reconcile store with detail bookkeeping.
type DetailStore interface {
	Store
	SetApartmentDetailSynced(ctx context.Context, id uuid.UUID, at time.Time) error
}

// DetailService refreshes slow-moving apartment fields (description,
// square footage, thumbnail URL) from the per-listing endpoint.
type DetailService struct {
	client DetailFetcher
	store  DetailStore
	locale string
}

func NewDetailService(client DetailFetcher, store DetailStore, locale string) *DetailService {
	return &DetailService{client: client, store: store, locale: locale}
}

// RefreshListing fetches the full record for one apartment and folds
// the detail-only fields into its row. Pricing is left to the sweep.
func (s *DetailService) RefreshListing(ctx context.Context, sess airbnb.Session, apartment *models.Apartment) error {
	detail, err := s.client.GetListingDetail(ctx, sess, apartment.AirbnbID, airbnb.DetailFilters{
		Locale: s.locale,
	})
	if err != nil {
		return fmt.Errorf("fetch detail for %d: %w", apartment.AirbnbID, err)
	}

	now := time.Now()
	apartment.Name = detail.Name
	apartment.AirbnbUserID = detail.UserID
	apartment.City = detail.City
	apartment.Zipcode = detail.Zipcode
	apartment.State = detail.State
	apartment.Country = detail.Country
	apartment.Lat = detail.Lat
	apartment.Lng = detail.Lng
	apartment.Bedrooms = detail.Bedrooms
	apartment.Bathrooms = detail.Bathrooms
	apartment.Beds = detail.Beds
	apartment.PropertyType = detail.PropertyType
	apartment.RoomTypeCategory = detail.RoomTypeCategory
	apartment.SquareFeet = detail.SquareFeet
	apartment.PersonCapacity = detail.PersonCapacity
	apartment.ThumbnailURL = detail.ThumbnailURL
	apartment.Description = detail.Description
	apartment.UpdatedAt = now

	if err := s.store.UpsertApartment(ctx, apartment); err != nil {
		return fmt.Errorf("save detail for %d: %w", apartment.AirbnbID, err)
	}
	return s.store.SetApartmentDetailSynced(ctx, apartment.ID, now)
}
