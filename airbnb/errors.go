package airbnb

import "fmt"

// AuthError is returned when the provider rejects credentials or an
// expired session token. Code and Message carry the provider's
// error_code/error_message fields when present.
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("airbnb: authentication failed (code %d)", e.Code)
	}
	return fmt.Sprintf("airbnb: authentication failed: %d - %s", e.Code, e.Message)
}

// TransportError is returned for network failures and non-2xx responses.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("airbnb: %s: unexpected status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("airbnb: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is returned when a response body is not valid JSON.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("airbnb: %s: decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
