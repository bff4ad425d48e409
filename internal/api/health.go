// Package api provides HTTP handlers for the change log.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/db"
)

// DatabaseProbe is the database view the health endpoints need.
type DatabaseProbe interface {
	Ping(ctx context.Context) error
	AppliedVersion(ctx context.Context) (int64, error)
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	database         DatabaseProbe
	log              *logrus.Logger
	version          string
	changelogEnabled bool
	startTime        time.Time
	feed             clientCounter
}

type clientCounter interface {
	ClientCount() int
}

// NewHealthHandler creates a HealthHandler with the given dependencies.
// database may be nil, in which case it is reported as not configured.
func NewHealthHandler(database DatabaseProbe, log *logrus.Logger, version string, changelogEnabled bool) *HealthHandler {
	return &HealthHandler{
		database:         database,
		log:              log,
		version:          version,
		changelogEnabled: changelogEnabled,
		startTime:        time.Now(),
	}
}

// readinessResponse is the JSON payload returned by the readiness endpoint.
type readinessResponse struct {
	Status        string            `json:"status"`
	Checks        map[string]string `json:"checks"`
	SchemaVersion int               `json:"schema_version"`
}

// healthResponse is the JSON payload returned by the health/liveness endpoint.
type healthResponse struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	Database         string  `json:"database"`
	ChangelogEnabled bool    `json:"changelog_enabled"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	FeedClients      *int    `json:"feed_clients,omitempty"`
}

// Liveness handles GET /api/v1/health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:           "ok",
		Version:          h.version,
		Database:         "connected",
		ChangelogEnabled: h.changelogEnabled,
		UptimeSeconds:    time.Since(h.startTime).Seconds(),
	}

	if h.feed != nil {
		n := h.feed.ClientCount()
		resp.FeedClients = &n
	}

	// Best-effort database ping (non-fatal for liveness).
	if h.database != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.database.Ping(ctx); err != nil {
			resp.Database = "disconnected"
		}
	} else {
		resp.Database = "not_configured"
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/v1/ready. It checks database connectivity and
// that the applied schema matches the embedded migrations.
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := map[string]string{
		"database": "ok",
		"schema":   "ok",
	}
	status := "ready"
	statusCode := http.StatusOK

	if h.database == nil {
		c.JSON(http.StatusServiceUnavailable, readinessResponse{
			Status:        "not_ready",
			Checks:        map[string]string{"database": "not_configured", "schema": "unknown"},
			SchemaVersion: db.SchemaVersion(),
		})

		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	want := int64(db.SchemaVersion())

	if err := h.database.Ping(ctx); err != nil {
		h.log.WithError(err).Error("readiness: database health check failed")
		checks["database"] = "error"
		checks["schema"] = "unknown"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	} else if applied, err := h.database.AppliedVersion(ctx); err != nil {
		h.log.WithError(err).Error("readiness: schema check failed")
		checks["schema"] = "error"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	} else if applied < want {
		h.log.WithFields(logrus.Fields{"applied": applied, "want": want}).Warn("readiness: schema behind")
		checks["schema"] = "behind"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, readinessResponse{
		Status:        status,
		Checks:        checks,
		SchemaVersion: db.SchemaVersion(),
	})
}
