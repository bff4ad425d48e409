package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/persistorai/changelog/client"
)

// fakeServer serves health, ready and a change set listing that only accepts
// wantKey. It returns the server URL.
func fakeServer(t *testing.T, enabled bool, readyStatus int, wantKey string) string {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(client.HealthResponse{ //nolint:errcheck
			Status: "ok", Version: "1.2.0", Database: "connected", ChangelogEnabled: enabled,
		})
	})
	mux.HandleFunc("GET /api/v1/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(readyStatus)
		json.NewEncoder(w).Encode(map[string]any{"status": "ready", "schema_version": 1}) //nolint:errcheck
	})
	mux.HandleFunc("GET /api/v1/changesets", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+wantKey {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"code": "unauthorized", "message": "bad key"}) //nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}, "has_more": false}) //nolint:errcheck
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv.URL
}

func newDoctorServer(t *testing.T, enabled bool, readyStatus int, wantKey string) *client.Client {
	t.Helper()
	return client.New(fakeServer(t, enabled, readyStatus, wantKey), client.WithAPIKey("good-key-0123456789"))
}

func TestDoctorCheckServer(t *testing.T) {
	tests := []struct {
		name        string
		enabled     bool
		readyStatus int
		want        []bool
	}{
		{"healthy", true, http.StatusOK, []bool{true, true}},
		{"logging disabled", false, http.StatusOK, []bool{true, false, true}},
		{"schema behind", true, http.StatusServiceUnavailable, []bool{true, false}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newDoctorServer(t, tc.enabled, tc.readyStatus, "good-key-0123456789")

			results := doctorCheckServer(context.Background(), c)
			if len(results) != len(tc.want) {
				t.Fatalf("results = %+v", results)
			}
			for i, r := range results {
				if r.Passed != tc.want[i] {
					t.Errorf("%s passed = %v, want %v", r.Name, r.Passed, tc.want[i])
				}
			}
		})
	}
}

func TestDoctorCheckServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	results := doctorCheckServer(context.Background(), client.New(url))
	if len(results) != 1 || results[0].Passed {
		t.Errorf("results = %+v", results)
	}
}

func TestDoctorCheckAuth(t *testing.T) {
	c := newDoctorServer(t, true, http.StatusOK, "good-key-0123456789")
	if r := doctorCheckAuth(context.Background(), c); !r.Passed {
		t.Errorf("valid key rejected: %+v", r)
	}

	c = newDoctorServer(t, true, http.StatusOK, "other-key-0123456789")
	r := doctorCheckAuth(context.Background(), c)
	if r.Passed {
		t.Error("invalid key accepted")
	}
	if r.Hint != "The server rejected the API key." {
		t.Errorf("hint = %q", r.Hint)
	}
}
