package models

import (
	"time"

	"github.com/google/uuid"
)

// Apartment is one externally-tracked Airbnb listing. Rows are keyed by
// airbnb_id: created the first time an id is observed, updated thereafter.
type Apartment struct {
	ID           uuid.UUID `json:"id" db:"id"`
	AirbnbID     int64     `json:"airbnb_id" db:"airbnb_id"`
	AirbnbUserID int64     `json:"airbnb_user_id" db:"airbnb_user_id"`

	Name    string   `json:"name" db:"name"`
	City    string   `json:"city" db:"city"`
	Zipcode string   `json:"zipcode" db:"zipcode"`
	State   string   `json:"state" db:"state"`
	Country string   `json:"country" db:"country"`
	Lat     *float64 `json:"lat" db:"lat"`
	Lng     *float64 `json:"lng" db:"lng"`

	Bedrooms  *float64 `json:"bedrooms" db:"bedrooms"`
	Bathrooms *float64 `json:"bathrooms" db:"bathrooms"`
	Beds      *float64 `json:"beds" db:"beds"`

	// PropertyType is the provider's label (Apartment, House, ...);
	// RoomTypeCategory the machine value (entire_home, private_room, ...).
	PropertyType     string `json:"property_type" db:"property_type"`
	RoomTypeCategory string `json:"room_type_category" db:"room_type_category"`
	SquareFeet       *int   `json:"square_feet" db:"square_feet"`
	PersonCapacity   int    `json:"person_capacity" db:"person_capacity"`

	Description  string  `json:"description" db:"description"`
	ThumbnailURL string  `json:"thumbnail_url" db:"thumbnail_url"`
	ThumbnailKey *string `json:"thumbnail_key" db:"thumbnail_key"` // nullable until archived

	DetailSyncedAt *time.Time `json:"detail_synced_at" db:"detail_synced_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// PriceSnapshot is the price/availability state of one apartment on one
// calendar date. At most one row exists per (apartment, date); a second
// write for the same day updates the existing row. Snapshots are never
// deleted — the history is the point of the system.
type PriceSnapshot struct {
	ID          int64     `json:"id" db:"id"`
	ApartmentID uuid.UUID `json:"apartment_id" db:"apartment_id"`
	Date        time.Time `json:"date" db:"date"`
	Vacant      bool      `json:"vacant" db:"vacant"`

	NativeCurrency string `json:"native_currency" db:"native_currency"`

	NightlyPrice     float64  `json:"nightly_price" db:"nightly_price"`
	WeekendPrice     *float64 `json:"weekend_price" db:"weekend_price"`
	WeeklyPrice      *float64 `json:"weekly_price" db:"weekly_price"`
	MonthlyPrice     *float64 `json:"monthly_price" db:"monthly_price"`
	ExtraPersonPrice *float64 `json:"extra_person_price" db:"extra_person_price"`
	CleaningFee      *float64 `json:"cleaning_fee" db:"cleaning_fee"`
	SecurityDeposit  *float64 `json:"security_deposit" db:"security_deposit"`

	GuestsIncluded int `json:"guests_included" db:"guests_included"` // guests covered by the base price

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TrackedLocation is an operator-configured place the daemon polls for
// listings. The sweep treats these rows as read-only.
type TrackedLocation struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`

	// Optional per-location search overrides.
	Locale      string `json:"locale" db:"locale"`
	Currency    string `json:"currency" db:"currency"`
	PriceMin    *int   `json:"price_min" db:"price_min"`
	PriceMax    *int   `json:"price_max" db:"price_max"`
	MinBedrooms *int   `json:"min_bedrooms" db:"min_bedrooms"`

	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
