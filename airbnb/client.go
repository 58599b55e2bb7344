package airbnb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.airbnb.com"
	oauthHeader    = "X-Airbnb-OAuth-Token"
	apiKeyHeader   = "X-Airbnb-API-Key"
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_11_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/55.0.2883.95 Safari/537.36"

	// The detail endpoint only answers in this format.
	legacyDetailFormat = "v1_legacy_for_p3"
	legacyUserFormat   = "v1_legacy_show"
)

// Client wraps the unofficial Airbnb JSON API. It performs no retries
// and no backoff; retry policy belongs to the caller. All knowledge of
// the provider's URL shapes and parameter quirks lives here.
type Client struct {
	// BaseURL is overridable for tests.
	BaseURL string

	apiKey string
	httpc  *http.Client
}

// NewClient creates a client for the given API key. The http.Client
// must have a bounded timeout; every call issues a network request.
func NewClient(apiKey string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		BaseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpc:   httpc,
	}
}

// Authenticate exchanges account credentials for a session token. The
// provider signals bad credentials with an {error_code, error_message}
// body in place of a token, often alongside a 4xx status.
func (c *Client) Authenticate(ctx context.Context, username, password string) (Session, error) {
	payload := map[string]string{
		"client_id":                c.apiKey,
		"grant_type":               "password",
		"username":                 username,
		"password":                 password,
		"prevent_account_creation": "true",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Session{}, &TransportError{Op: "authorize", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/authorize", bytes.NewReader(body))
	if err != nil {
		return Session{}, &TransportError{Op: "authorize", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.setCommonHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Session{}, &TransportError{Op: "authorize", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, &TransportError{Op: "authorize", Status: resp.StatusCode, Err: err}
	}

	var auth struct {
		AccessToken  string `json:"access_token"`
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(data, &auth); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return Session{}, &TransportError{Op: "authorize", Status: resp.StatusCode, Err: err}
		}
		return Session{}, &DecodeError{Op: "authorize", Err: err}
	}

	if auth.AccessToken == "" {
		if auth.ErrorCode != 0 || auth.ErrorMessage != "" {
			return Session{}, &AuthError{Code: auth.ErrorCode, Message: auth.ErrorMessage}
		}
		// No token and no provider error fields: a credential problem
		// would carry error_code/error_message, so this is the
		// endpoint misbehaving, not the credentials.
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return Session{}, &TransportError{Op: "authorize", Status: resp.StatusCode, Err: errors.New("no access token in response")}
		}
		return Session{}, &DecodeError{Op: "authorize", Err: errors.New("no access token in response")}
	}

	return Session{Token: auth.AccessToken, IssuedAt: time.Now()}, nil
}

// SearchListings queries listings by location name. Spaces in the
// location are normalized to dashes before transmission; the provider
// rejects them otherwise. No other characters are altered.
func (c *Client) SearchListings(ctx context.Context, sess Session, location string, f SearchFilters) ([]ListingSummary, error) {
	q := f.values()
	if location != "" {
		q.Set("location", normalizeLocation(location))
	}

	var out searchResponse
	if err := c.get(ctx, sess, "search_results", "/v2/search_results/", q, &out); err != nil {
		return nil, err
	}

	listings := make([]ListingSummary, 0, len(out.SearchResults))
	for _, r := range out.SearchResults {
		listings = append(listings, r.Listing)
	}
	return listings, nil
}

// GetListingDetail fetches one listing's full record. The legacy detail
// format is always requested; caller filters cannot override it.
func (c *Client) GetListingDetail(ctx context.Context, sess Session, listingID int64, f DetailFilters) (*ListingDetail, error) {
	q := f.values()
	q.Set("_format", legacyDetailFormat)

	var out listingResponse
	if err := c.get(ctx, sess, "listing_detail", fmt.Sprintf("/v2/listings/%d", listingID), q, &out); err != nil {
		return nil, err
	}
	return &out.Listing, nil
}

func (c *Client) GetReviews(ctx context.Context, sess Session, listingID int64, f ReviewFilters) ([]Review, error) {
	q := f.values()
	q.Set("listing_id", fmt.Sprintf("%d", listingID))
	q.Set("role", "all")

	var out reviewsResponse
	if err := c.get(ctx, sess, "reviews", "/v2/reviews/", q, &out); err != nil {
		return nil, err
	}
	return out.Reviews, nil
}

func (c *Client) GetUserInfo(ctx context.Context, sess Session, userID int64, f UserFilters) (*UserProfile, error) {
	q := f.values()
	q.Set("_format", legacyUserFormat)

	var out userResponse
	if err := c.get(ctx, sess, "user_info", fmt.Sprintf("/v2/users/%d", userID), q, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) GetHostListings(ctx context.Context, sess Session, userID int64, f HostListingFilters) ([]ListingSummary, error) {
	q := f.values()
	q.Set("user_id", fmt.Sprintf("%d", userID))

	var out hostListingsResponse
	if err := c.get(ctx, sess, "host_listings", "/v2/listings", q, &out); err != nil {
		return nil, err
	}
	return out.Listings, nil
}

// CreateMessageThread opens a thread with a listing's host. The provider
// does not guarantee idempotency here, so this call is never retried
// internally.
func (c *Client) CreateMessageThread(ctx context.Context, sess Session, r ThreadRequest) (*ThreadReceipt, error) {
	form := r.form()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/threads/create", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TransportError{Op: "create_thread", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setCommonHeaders(req)
	req.Header.Set(oauthHeader, sess.Token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "create_thread", Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus("create_thread", resp); err != nil {
		return nil, err
	}

	var receipt ThreadReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, &DecodeError{Op: "create_thread", Err: err}
	}
	return &receipt, nil
}

func (c *Client) ListMessageThreads(ctx context.Context, sess Session, f ThreadFilters) ([]MessageThread, error) {
	var out threadsResponse
	if err := c.get(ctx, sess, "threads", "/v1/threads", f.values(), &out); err != nil {
		return nil, err
	}
	return out.Threads, nil
}

func (c *Client) GetAccountInfo(ctx context.Context, sess Session, f AccountFilters) (*AccountInfo, error) {
	var out accountResponse
	if err := c.get(ctx, sess, "account_info", "/v1/account/active", f.values(), &out); err != nil {
		return nil, err
	}
	return &AccountInfo{User: out.User.User}, nil
}

func (c *Client) get(ctx context.Context, sess Session, op, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.URL.RawQuery = q.Encode()
	c.setCommonHeaders(req)
	req.Header.Set(oauthHeader, sess.Token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(op, resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

func checkStatus(op string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Code: resp.StatusCode, Message: "session rejected by provider"}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &TransportError{
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	}
	return nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(apiKeyHeader, c.apiKey)
}

func normalizeLocation(loc string) string {
	return strings.ReplaceAll(loc, " ", "-")
}
