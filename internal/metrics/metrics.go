// Package metrics defines Prometheus metrics for the change log.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "changelog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changelog_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "changelog_http_requests_in_flight",
			Help: "HTTP requests being served, excluding feed connections",
		},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changelog_errors_total",
			Help: "Total API errors by code",
		},
		[]string{"type"},
	)

	SaveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "changelog_save_duration_seconds",
			Help:    "Duration of two-phase saves in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	SaveErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changelog_save_errors_total",
			Help: "Failed saves by the step that failed",
		},
		[]string{"stage"},
	)

	ChangeSetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "changelog_changesets_total",
			Help: "Change sets baked and handed to the persistence layer",
		},
	)

	PropertyChangesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "changelog_property_changes_total",
			Help: "Property changes contained in baked change sets",
		},
	)

	BindFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changelog_bind_failures_total",
			Help: "Raw values that failed to bind, by binder",
		},
		[]string{"binder"},
	)

	FeedConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "changelog_feed_connections",
			Help: "Active change set feed WebSocket connections",
		},
	)

	FeedEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "changelog_feed_events_total",
			Help: "Change set events published to the feed",
		},
	)

	LockoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "changelog_auth_lockouts_total",
			Help: "Client addresses locked out after repeated authentication failures",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, RequestsInFlight, ErrorsTotal,
		SaveDuration, SaveErrorsTotal,
		ChangeSetsTotal, PropertyChangesTotal,
		BindFailuresTotal,
		FeedConnections, FeedEventsTotal,
		LockoutsTotal,
	)
}
