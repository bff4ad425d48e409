package api_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/api"
)

const testKey = "test-key-0123456789"

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

// newTestAPI builds the full router with mock repositories filling any
// dependency the test leaves nil.
func newTestAPI(t *testing.T, deps api.RouterDeps) http.Handler {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if deps.Log == nil {
		deps.Log = testLogger()
	}
	deps.CORSOrigins = []string{"http://localhost:3000"}
	deps.Version = "test"

	if deps.ChangeSets == nil {
		deps.ChangeSets = &mockChangeSetRepo{}
	}
	if deps.History == nil {
		deps.History = &mockHistoryRepo{}
	}
	if deps.Records == nil {
		deps.Records = &mockRecordRepo{}
	}

	return api.NewRouter(ctx, &deps)
}

// doRequest serves one request. headers are name, value pairs; a non-empty
// body is sent as JSON.
func doRequest(h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 1; i < len(headers); i += 2 {
		req.Header.Set(headers[i-1], headers[i])
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	return w
}
