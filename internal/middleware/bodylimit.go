package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/changelog/internal/httputil"
)

// MaxBodySize rejects requests declaring a body larger than maxBytes with
// 413 and caps the rest, so handlers see *http.MaxBytesError when a chunked
// body runs over.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	limit := strconv.FormatInt(maxBytes, 10)

	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			httputil.RespondError(c, http.StatusRequestEntityTooLarge, httputil.CodeTooLarge,
				"request body exceeds "+limit+" bytes")

			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}
