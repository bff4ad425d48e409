package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

var securityHeaders = [...][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Strict-Transport-Security", "max-age=63072000; includeSubDomains"},
	{"Cache-Control", "no-store"},
}

// SecurityHeaders sets the response headers every API response carries.
// Responses are uncacheable unless a route opts in with Immutable.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}

		c.Next()
	}
}

const immutableCache = "private, max-age=86400, immutable"

// Immutable makes 200 responses cacheable by the requesting client for a day.
// Change sets are write-once, so a change set fetched by ID never changes.
// Other statuses keep the no-store default.
func Immutable() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer = cacheWriter{c.Writer}
		c.Next()
	}
}

type cacheWriter struct {
	gin.ResponseWriter
}

func (w cacheWriter) WriteHeader(code int) {
	if code == http.StatusOK {
		w.Header().Set("Cache-Control", immutableCache)
	}

	w.ResponseWriter.WriteHeader(code)
}
