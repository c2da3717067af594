package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthenticated is returned when a protected call is made without a token.
var ErrUnauthenticated = errors.New("not authenticated")

// Error is a non-2xx response from the backend.
type Error struct {
	StatusCode int
	Detail     string
	Body       string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend error: HTTP %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend error: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx).
// Client errors (4xx) are permanent.
func (e *Error) IsRetryable() bool {
	return e.StatusCode >= 500
}

// IsNotFound reports whether the backend answered 404.
func (e *Error) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Detail extracts the human readable detail from err, if the backend sent one.
func Detail(err error) (string, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail, true
	}
	return "", false
}

func newError(status int, body []byte) *Error {
	e := &Error{StatusCode: status, Body: string(body)}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil && len(payload.Detail) > 0 {
		// validation errors carry a list here; only a plain string is surfaced
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			e.Detail = s
		}
	}
	return e
}
