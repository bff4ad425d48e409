package models

import (
	"time"

	"github.com/google/uuid"
)

// PropertyHistoryEntry is the raw, untyped view of one property change used by
// the HTTP surface, where no Go type is known for binding.
type PropertyHistoryEntry struct {
	ChangeSetID uuid.UUID `json:"change_set_id"`
	Value       *string   `json:"value"`
	ValueAsInt  *int64    `json:"value_as_int,omitempty"`
	Author      string    `json:"author"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewPropertyHistoryEntry flattens a PropertyChange and its owning change set.
func NewPropertyHistoryEntry(p *PropertyChange) PropertyHistoryEntry {
	e := PropertyHistoryEntry{
		Value:      p.Value,
		ValueAsInt: p.ValueAsInt,
		Author:     p.Author(),
		Timestamp:  p.Timestamp(),
	}
	if p.ObjectChange != nil && p.ObjectChange.ChangeSet != nil {
		e.ChangeSetID = p.ObjectChange.ChangeSet.ID
	}

	return e
}

// ObjectHistoryEntry is the raw view of one ObjectChange with its change set
// metadata.
type ObjectHistoryEntry struct {
	ChangeSetID uuid.UUID          `json:"change_set_id"`
	Sequence    int64              `json:"sequence"`
	Author      string             `json:"author"`
	Timestamp   time.Time          `json:"timestamp"`
	Properties  map[string]*string `json:"properties"`
}

// NewObjectHistoryEntry flattens an ObjectChange and its owning change set.
func NewObjectHistoryEntry(o *ObjectChange) ObjectHistoryEntry {
	e := ObjectHistoryEntry{Properties: make(map[string]*string, len(o.PropertyChanges))}

	if o.ChangeSet != nil {
		e.ChangeSetID = o.ChangeSet.ID
		e.Sequence = o.ChangeSet.Sequence
		e.Author = o.ChangeSet.Author
		e.Timestamp = o.ChangeSet.Timestamp
	}

	for _, p := range o.PropertyChanges {
		e.Properties[p.PropertyName] = p.Value
	}

	return e
}
