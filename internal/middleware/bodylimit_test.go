package middleware_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/changelog/internal/middleware"
)

func TestMaxBodySize(t *testing.T) {
	const limit = 16

	tests := []struct {
		name         string
		body         string
		chunked      bool
		wantCode     int
		wantTooLarge bool
	}{
		{"under limit", "small", false, http.StatusOK, false},
		{"declared over limit", strings.Repeat("x", limit+1), false, http.StatusRequestEntityTooLarge, false},
		{"chunked over limit", strings.Repeat("x", limit+1), true, http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var readErr error
			reached := false

			r := gin.New()
			r.Use(middleware.MaxBodySize(limit))
			r.POST("/", func(c *gin.Context) {
				reached = true
				_, readErr = io.ReadAll(c.Request.Body)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.chunked {
				req.ContentLength = -1
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("got %d, want %d", w.Code, tt.wantCode)
			}

			if tt.wantCode == http.StatusRequestEntityTooLarge {
				if reached {
					t.Error("handler ran for a declared oversize body")
				}
				if !strings.Contains(w.Body.String(), "payload_too_large") {
					t.Errorf("body = %s", w.Body.String())
				}

				return
			}

			var tooLarge *http.MaxBytesError
			if got := errors.As(readErr, &tooLarge); got != tt.wantTooLarge {
				t.Errorf("MaxBytesError = %v, want %v (err %v)", got, tt.wantTooLarge, readErr)
			}
		})
	}
}
