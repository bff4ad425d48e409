package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/middleware"
	"github.com/persistorai/changelog/internal/security"
	"github.com/persistorai/changelog/internal/ws"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log              *logrus.Logger
	Database         DatabaseProbe
	ChangeSets       ChangeSetRepository
	History          HistoryRepository
	Records          RecordRepository
	CORSOrigins      []string
	Version          string
	ChangelogEnabled bool

	// Keys authenticates API requests. Nil leaves the API open.
	Keys *middleware.KeySet

	// Hub serves the change set feed. Nil disables /feed.
	Hub *ws.Hub
}

// Router-level limits.
const (
	maxBodySize = 10 << 20 // 10 MB
	recordRate  = 20       // change sets per second per principal
	recordBurst = 50
)

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(requestLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.PrometheusMiddleware())
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Database, log, deps.Version, deps.ChangelogEnabled)
	changeSets := NewChangeSetHandler(deps.ChangeSets, deps.Records, log)
	history := NewHistoryHandler(deps.History, log)

	if deps.Hub != nil {
		health.feed = deps.Hub
	}

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	if deps.Keys != nil {
		api.Use(middleware.AuthMiddleware(deps.Keys, security.NewGuard(ctx, security.DefaultPolicy, log), log))
	}

	// Change sets.
	api.GET("/changesets", changeSets.List)
	api.GET("/changesets/:id", middleware.Immutable(), changeSets.Get)
	api.POST("/changesets", middleware.NewRateLimiter(ctx, recordRate, recordBurst).Handler(), changeSets.Record)

	// Object history.
	api.GET("/objects/:type/:ref/changes", history.ObjectChanges)
	api.GET("/objects/:type/:ref/properties/:property", history.PropertyChanges)

	// Live change set feed.
	if deps.Hub != nil {
		api.GET("/feed", NewFeedHandler(ctx, deps.Hub, deps.CORSOrigins, log).Serve)
	}
}

// NewRouter creates and configures the Gin engine with all middleware and
// routes. ctx bounds the router's background goroutines.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
