package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/middleware"
)

func TestRequestID(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	tests := []struct {
		name       string
		clientID   string
		wantClient string
	}{
		{"no client id", "", ""},
		{"printable client id", "trace-42", "trace-42"},
		{"control characters", "bad\nid", ""},
		{"too long", strings.Repeat("x", 200), ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotID, gotClient string

			r := gin.New()
			r.Use(middleware.RequestID(log))
			r.GET("/test", func(c *gin.Context) {
				gotID = c.GetString(middleware.RequestIDKey)
				gotClient = c.GetString("client_request_id")
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			if tc.clientID != "" {
				req.Header.Set(middleware.RequestIDHeader, tc.clientID)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if _, err := uuid.Parse(gotID); err != nil {
				t.Fatalf("request id %q is not a UUID: %v", gotID, err)
			}
			if h := w.Header().Get(middleware.RequestIDHeader); h != gotID {
				t.Errorf("header = %q, want %q", h, gotID)
			}
			if gotClient != tc.wantClient {
				t.Errorf("client id = %q, want %q", gotClient, tc.wantClient)
			}
		})
	}
}
