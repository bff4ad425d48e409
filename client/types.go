package client

import (
	"time"

	"github.com/google/uuid"
)

// ChangeSet is one committed unit of work's audit record.
type ChangeSet struct {
	ID            uuid.UUID      `json:"id"`
	Sequence      int64          `json:"sequence"`
	Timestamp     time.Time      `json:"timestamp"`
	Author        string         `json:"author"`
	ObjectChanges []ObjectChange `json:"object_changes,omitempty"`
}

// ObjectChange holds the property changes to one object within a ChangeSet.
type ObjectChange struct {
	ID              int64            `json:"id"`
	TypeName        string           `json:"type_name"`
	ObjectReference string           `json:"object_reference"`
	PropertyChanges []PropertyChange `json:"property_changes,omitempty"`
}

// PropertyChange is one property's new value in canonical string encoding.
type PropertyChange struct {
	ID           int64   `json:"id"`
	PropertyName string  `json:"property_name"`
	Value        *string `json:"value"`
	ValueAsInt   *int64  `json:"value_as_int,omitempty"`
}

// ChangeSetQueryOptions filters ChangeSetService.List.
type ChangeSetQueryOptions struct {
	Author string
	Since  *time.Time
	Limit  int
	Offset int
}

// ObjectDelta is a set of property values written to one object.
type ObjectDelta struct {
	Type        string            `json:"type"`
	Ref         string            `json:"ref"`
	Properties  map[string]any    `json:"properties"`
	Navigations map[string]string `json:"navigations,omitempty"`
}

// RecordRequest submits the deltas of one unit of work. An empty Author
// defaults to the principal of the API key.
type RecordRequest struct {
	Author  string        `json:"author,omitempty"`
	Objects []ObjectDelta `json:"objects"`
}

// RecordResult reports what was logged. ChangeSetID is nil when nothing was.
type RecordResult struct {
	ChangeSetID     *uuid.UUID `json:"change_set_id"`
	ObjectChanges   int        `json:"object_changes"`
	PropertyChanges int        `json:"property_changes"`
}

// ObjectHistoryEntry is one change to an object.
type ObjectHistoryEntry struct {
	ChangeSetID uuid.UUID          `json:"change_set_id"`
	Sequence    int64              `json:"sequence"`
	Author      string             `json:"author"`
	Timestamp   time.Time          `json:"timestamp"`
	Properties  map[string]*string `json:"properties"`
}

// PropertyHistoryEntry is one change to a single property.
type PropertyHistoryEntry struct {
	ChangeSetID uuid.UUID `json:"change_set_id"`
	Value       *string   `json:"value"`
	ValueAsInt  *int64    `json:"value_as_int,omitempty"`
	Author      string    `json:"author"`
	Timestamp   time.Time `json:"timestamp"`
}

// HistoryOptions pages history reads.
type HistoryOptions struct {
	Limit  int
	Offset int
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	Database         string  `json:"database"`
	ChangelogEnabled bool    `json:"changelog_enabled"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// ReadyResponse is returned by the readiness endpoint.
type ReadyResponse struct {
	Status        string            `json:"status"`
	Checks        map[string]string `json:"checks"`
	SchemaVersion int               `json:"schema_version"`
}
