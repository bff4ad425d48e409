package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"time"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`

	// RetryAfter is the server's Retry-After hint on a 429, or zero.
	RetryAfter time.Duration `json:"-"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("changelog: %d %s: %s", e.StatusCode, e.Code, e.Message)
	if e.RequestID != "" {
		msg += " (request_id=" + e.RequestID + ")"
	}

	return msg
}

func apiError(err error) (*APIError, bool) {
	var e *APIError
	ok := errors.As(err, &e)

	return e, ok
}

func hasStatus(err error, codes ...int) bool {
	e, ok := apiError(err)
	return ok && slices.Contains(codes, e.StatusCode)
}

// IsNotFound reports a 404, such as an unknown change set ID.
func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

// IsUnauthorized reports a missing, invalid or forbidden API key.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized, http.StatusForbidden)
}

// IsConflict reports that the server already had a save in progress.
func IsConflict(err error) bool { return hasStatus(err, http.StatusConflict) }

// IsRateLimited reports a 429, including a brute-force lockout.
func IsRateLimited(err error) bool { return hasStatus(err, http.StatusTooManyRequests) }

// IsLockedOut reports that the caller's address is locked out after repeated
// authentication failures.
func IsLockedOut(err error) bool {
	e, ok := apiError(err)
	return ok && e.StatusCode == http.StatusTooManyRequests && e.Code == "too_many_failures"
}

// IsTooLarge reports that a record request exceeded the server's body limit.
func IsTooLarge(err error) bool { return hasStatus(err, http.StatusRequestEntityTooLarge) }

// RetryAfter returns how long the server asked the caller to wait before
// retrying, or zero when err carries no hint.
func RetryAfter(err error) time.Duration {
	if e, ok := apiError(err); ok {
		return e.RetryAfter
	}

	return 0
}

// readAPIError builds an APIError from a failed response, including its
// Retry-After header.
func readAPIError(resp *http.Response) *APIError {
	var raw []byte
	if resp.Body != nil {
		raw, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	}

	e := parseAPIError(resp.StatusCode, raw)
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		e.RetryAfter = time.Duration(secs) * time.Second
	}

	return e
}

// parseAPIError decodes an error body, falling back to the raw text for
// responses that are not from the API, such as a proxy error page.
func parseAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, e); err != nil || e.Code == "" {
		e.Code = "unknown"
		e.Message = string(body)
	}

	return e
}
