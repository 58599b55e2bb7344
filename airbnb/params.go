package airbnb

import (
	"net/url"
	"strconv"
)

// Filter structs enumerate every option the provider is known to accept.
// Unlisted parameters go through the Extra escape field verbatim; there
// is no implicit forwarding.

// SearchFilters configures SearchListings.
type SearchFilters struct {
	Locale   string
	Currency string
	Format   string // for_search_results or for_search_results_with_minimal_pricing
	Limit    int
	Offset   int

	Guests      int
	InstantBook bool

	Lat *float64 // user_lat / user_lng search coordinates
	Lng *float64

	MinBathrooms *float64
	MinBedrooms  *float64
	MinBeds      *float64
	PriceMin     *int
	PriceMax     *int
	MinPictures  int

	// Sort order: 1 forward, 0 reverse.
	Sort *int

	Extra url.Values
}

func (f SearchFilters) values() url.Values {
	q := url.Values{}
	setStr(q, "locale", f.Locale)
	setStr(q, "currency", f.Currency)
	setStr(q, "_format", f.Format)
	setInt(q, "_limit", f.Limit)
	setInt(q, "_offset", f.Offset)
	setInt(q, "guests", f.Guests)
	if f.InstantBook {
		q.Set("ib", "true")
	}
	setFloatPtr(q, "user_lat", f.Lat)
	setFloatPtr(q, "user_lng", f.Lng)
	setFloatPtr(q, "min_bathrooms", f.MinBathrooms)
	setFloatPtr(q, "min_bedrooms", f.MinBedrooms)
	setFloatPtr(q, "min_beds", f.MinBeds)
	setIntPtr(q, "price_min", f.PriceMin)
	setIntPtr(q, "price_max", f.PriceMax)
	setInt(q, "min_num_pic_urls", f.MinPictures)
	setIntPtr(q, "sort", f.Sort)
	mergeExtra(q, f.Extra)
	return q
}

// DetailFilters configures GetListingDetail. The response format is
// fixed by the client and cannot be set here.
type DetailFilters struct {
	Locale         string
	NumberOfGuests int
	Extra          url.Values
}

func (f DetailFilters) values() url.Values {
	q := url.Values{}
	setStr(q, "locale", f.Locale)
	setInt(q, "number_of_guests", f.NumberOfGuests)
	mergeExtra(q, f.Extra)
	return q
}

type ReviewFilters struct {
	Locale   string
	Currency string
	Format   string
	Limit    int
	Offset   int
	Extra    url.Values
}

func (f ReviewFilters) values() url.Values {
	q := url.Values{}
	setStr(q, "locale", f.Locale)
	setStr(q, "currency", f.Currency)
	setStr(q, "_format", f.Format)
	setInt(q, "_limit", f.Limit)
	setInt(q, "_offset", f.Offset)
	mergeExtra(q, f.Extra)
	return q
}

type UserFilters struct {
	Locale   string
	Currency string
	Extra    url.Values
}

func (f UserFilters) values() url.Values {
	q := url.Values{}
	setStr(q, "locale", f.Locale)
	setStr(q, "currency", f.Currency)
	mergeExtra(q, f.Extra)
	return q
}

type HostListingFilters struct {
	Locale          string
	Currency        string
	Format          string
	Limit           int
	Offset          int
	HasAvailability *bool
	Extra           url.Values
}

func (f HostListingFilters) values() url.Values {
	q := url.Values{}
	setStr(q, "locale", f.Locale)
	setStr(q, "currency", f.Currency)
	setStr(q, "_format", f.Format)
	setInt(q, "_limit", f.Limit)
	setInt(q, "_offset", f.Offset)
	if f.HasAvailability != nil {
		q.Set("has_availability", strconv.FormatBool(*f.HasAvailability))
	}
	mergeExtra(q, f.Extra)
	return q
}

type ThreadFilters struct {
	Locale       string
	Currency     string
	Offset       int
	ItemsPerPage int
	Role         string // guest, host, or empty for both
	Extra        url.Values
}

func (f ThreadFilters) values() url.Values {
	q := url.Values{}
	setStr(q, "locale", f.Locale)
	setStr(q, "currency", f.Currency)
	setInt(q, "offset", f.Offset)
	setInt(q, "items_per_page", f.ItemsPerPage)
	setStr(q, "role", f.Role)
	mergeExtra(q, f.Extra)
	return q
}

type AccountFilters struct {
	Locale     string
	Currency   string
	AlertTypes []string
	Extra      url.Values
}

func (f AccountFilters) values() url.Values {
	q := url.Values{}
	setStr(q, "locale", f.Locale)
	setStr(q, "currency", f.Currency)
	for _, t := range f.AlertTypes {
		q.Add("alert_types[]", t)
	}
	mergeExtra(q, f.Extra)
	return q
}

// ThreadRequest carries the required fields for CreateMessageThread.
// Checkin/Checkout are provider-format timestamp strings (for example
// 2018-04-01T00:00:00.000-0700); they are passed through unvalidated.
type ThreadRequest struct {
	ListingID int64
	Guests    int
	Checkin   string
	Checkout  string
	Message   string
	Extra     url.Values
}

func (r ThreadRequest) form() url.Values {
	form := url.Values{}
	form.Set("listing_id", strconv.FormatInt(r.ListingID, 10))
	form.Set("number_of_guests", strconv.Itoa(r.Guests))
	form.Set("checkin_date", r.Checkin)
	form.Set("checkout_date", r.Checkout)
	form.Set("message", r.Message)
	mergeExtra(form, r.Extra)
	return form
}

func setStr(q url.Values, key, val string) {
	if val != "" {
		q.Set(key, val)
	}
}

func setInt(q url.Values, key string, val int) {
	if val != 0 {
		q.Set(key, strconv.Itoa(val))
	}
}

func setIntPtr(q url.Values, key string, val *int) {
	if val != nil {
		q.Set(key, strconv.Itoa(*val))
	}
}

func setFloatPtr(q url.Values, key string, val *float64) {
	if val != nil {
		q.Set(key, strconv.FormatFloat(*val, 'f', -1, 64))
	}
}

func mergeExtra(q url.Values, extra url.Values) {
	for key, vals := range extra {
		for _, v := range vals {
			q.Add(key, v)
		}
	}
}
