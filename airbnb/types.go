package airbnb

import "time"

// Session is the result of a successful Authenticate call. It is an
// immutable value passed explicitly into every subsequent call; the
// client itself holds no token state. A Session must not be shared
// across concurrent workers — each worker authenticates its own.
type Session struct {
	Token    string
	IssuedAt time.Time
}

func (s Session) Valid() bool { return s.Token != "" }

// ListingSummary is one listing as returned by the search and host
// listing endpoints (the provider's legacy "for_search_results" shape).
type ListingSummary struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id"`
	Name         string `json:"name"`

	City    string   `json:"city"`
	Zipcode string   `json:"zipcode"`
	State   string   `json:"state"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`

	Bedrooms  *float64 `json:"bedrooms"`
	Bathrooms *float64 `json:"bathrooms"`
	Beds      *float64 `json:"beds"`

	PropertyType     string `json:"property_type"`
	RoomTypeCategory string `json:"room_type_category"`
	SquareFeet       *int   `json:"square_feet"`
	PersonCapacity   int    `json:"person_capacity"`

	ThumbnailURL    string `json:"thumbnail_url"`
	PictureCount    int    `json:"picture_count"`
	InstantBookable bool   `json:"instant_bookable"`

	NativeCurrency        string   `json:"native_currency"`
	PriceNative           float64  `json:"price_native"`
	WeekendPriceNative    *float64 `json:"weekend_price_native"`
	WeeklyPriceNative     *float64 `json:"weekly_price_native"`
	MonthlyPriceNative    *float64 `json:"monthly_price_native"`
	ExtraPersonFeeNative  *float64 `json:"price_for_extra_person_native"`
	CleaningFeeNative     *float64 `json:"cleaning_fee_native"`
	SecurityDepositNative *float64 `json:"security_deposit_native"`
	GuestsIncluded        int      `json:"guests_included"`
}

// ListingDetail is a listing's full record (provider's v1_legacy_for_p3
// format).
type ListingDetail struct {
	ListingSummary

	Description string   `json:"description"`
	Summary     string   `json:"summary"`
	Amenities   []string `json:"amenities"`
	PhotoURLs   []string `json:"photo_urls"`

	ReviewsCount int      `json:"reviews_count"`
	StarRating   *float64 `json:"star_rating"`
}

type Review struct {
	ID         int64  `json:"id"`
	ListingID  int64  `json:"listing_id"`
	ReviewerID int64  `json:"reviewer_id"`
	Rating     int    `json:"rating"`
	Comments   string `json:"comments"`
	CreatedAt  string `json:"created_at"`
}

type UserProfile struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	PictureURL    string `json:"picture_url"`
	Location      string `json:"location"`
	About         string `json:"about"`
	ListingsCount int    `json:"listings_count"`
	RevieweeCount int    `json:"reviewee_count"`
	CreatedAt     string `json:"created_at"`
}

// AccountInfo describes the authenticated account itself.
type AccountInfo struct {
	User UserProfile
}

type MessageThread struct {
	ID            int64       `json:"id"`
	Status        string      `json:"status"`
	TextPreview   string      `json:"text_preview"`
	LastMessageAt string      `json:"last_message_at"`
	OtherUser     UserProfile `json:"other_user"`
}

// ThreadReceipt acknowledges a created message thread.
type ThreadReceipt struct {
	ThreadID int64 `json:"id"`
}

// Response envelopes. The provider wraps everything; the account
// endpoint wraps the user twice.

type searchResponse struct {
	SearchResults []searchResult `json:"search_results"`
}

type searchResult struct {
	Listing ListingSummary `json:"listing"`
}

type listingResponse struct {
	Listing ListingDetail `json:"listing"`
}

type reviewsResponse struct {
	Reviews []Review `json:"reviews"`
}

type userResponse struct {
	User UserProfile `json:"user"`
}

type accountResponse struct {
	User struct {
		User UserProfile `json:"user"`
	} `json:"user"`
}

type hostListingsResponse struct {
	Listings []ListingSummary `json:"listings"`
}

type threadsResponse struct {
	Threads []MessageThread `json:"threads"`
}
