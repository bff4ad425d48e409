// Package httputil holds the JSON envelopes shared by the API handlers and
// middleware.
package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/changelog/internal/metrics"
)

// Error codes returned in ErrorBody.Code.
const (
	CodeInvalidRequest = "invalid_request"
	CodeValidation     = "validation_error"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeTooLarge       = "payload_too_large"
	CodeUnauthorized   = "unauthorized"
	CodeRateLimited    = "rate_limited"
	CodeLockedOut      = "too_many_failures"
	CodeInternal       = "internal_error"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// RespondError aborts the request with an ErrorBody carrying the request ID
// assigned by the request ID middleware, and counts the error by code.
func RespondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	c.AbortWithStatusJSON(status, ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: c.GetString("request_id"),
	})
}

// RespondPage writes one page of a paginated listing as {key: items, has_more}.
// A nil slice is written as an empty array.
func RespondPage[T any](c *gin.Context, key string, items []T, hasMore bool) {
	if items == nil {
		items = []T{}
	}

	c.JSON(http.StatusOK, gin.H{key: items, "has_more": hasMore})
}
