package ws

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/persistorai/changelog/internal/models"
)

// EventChangeSet is the event type sent for every committed change set.
const EventChangeSet = "changeset.recorded"

// Event is the structured message sent to WebSocket clients.
type Event struct {
	Type string          `json:"type"`
	ID   uint64          `json:"id"`
	Data json.RawMessage `json:"data"`
	Time time.Time       `json:"time"`

	// types lists the object types the change set touched, sorted.
	types []string
}

// touchesAny reports whether the event concerns any type in want. An empty
// want matches everything.
func (e *Event) touchesAny(want map[string]struct{}) bool {
	if len(want) == 0 {
		return true
	}
	for _, t := range e.types {
		if _, ok := want[t]; ok {
			return true
		}
	}
	return false
}

// SubscribeMsg is sent by the client to request replay and narrow the feed
// to the given object types.
type SubscribeMsg struct {
	Type        string   `json:"type"`
	LastEventID uint64   `json:"last_event_id"`
	Types       []string `json:"types,omitempty"`
}

// ResetMsg tells the client to re-read the change log over HTTP because the
// requested events are no longer buffered.
type ResetMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ChangeSetSummary is the event payload: which objects and properties a
// change set touched, without the logged values.
type ChangeSetSummary struct {
	ID        uuid.UUID       `json:"id"`
	Sequence  int64           `json:"sequence"`
	Author    string          `json:"author"`
	Timestamp time.Time       `json:"timestamp"`
	Objects   []ObjectSummary `json:"objects,omitempty"`
	Truncated bool            `json:"truncated,omitempty"`
}

// ObjectSummary names one changed object and its changed properties.
type ObjectSummary struct {
	Type       string   `json:"type"`
	Ref        string   `json:"ref"`
	Properties []string `json:"properties"`
}

func summarize(cs *models.ChangeSet) (ChangeSetSummary, []string) {
	sum := ChangeSetSummary{
		ID:        cs.ID,
		Sequence:  cs.Sequence,
		Author:    cs.Author,
		Timestamp: cs.Timestamp,
		Objects:   make([]ObjectSummary, 0, len(cs.ObjectChanges)),
	}

	var types []string

	for _, oc := range cs.ObjectChanges {
		props := make([]string, 0, len(oc.PropertyChanges))
		for _, pc := range oc.PropertyChanges {
			props = append(props, pc.PropertyName)
		}

		sum.Objects = append(sum.Objects, ObjectSummary{Type: oc.TypeName, Ref: oc.ObjectReference, Properties: props})
		types = append(types, oc.TypeName)
	}

	slices.Sort(types)

	return sum, slices.Compact(types)
}
