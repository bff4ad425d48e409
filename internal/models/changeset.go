// Package models defines the change log graph: change sets, object changes
// and property changes.
package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ChangeSet is one committed unit-of-work's worth of audit records.
// It is never mutated after it has been baked.
type ChangeSet struct {
	ID uuid.UUID `json:"id"`
	// Sequence is assigned by the store on insertion and breaks ties between
	// change sets that share a Timestamp.
	Sequence      int64           `json:"sequence"`
	Timestamp     time.Time       `json:"timestamp"`
	Author        string          `json:"author"`
	ObjectChanges []*ObjectChange `json:"object_changes,omitempty"`
}

// ObjectChange holds the property deltas for one tracked object within a ChangeSet.
type ObjectChange struct {
	ID              int64             `json:"id"`
	ChangeSet       *ChangeSet        `json:"-"`
	TypeName        string            `json:"type_name"`
	ObjectReference string            `json:"object_reference"`
	PropertyChanges []*PropertyChange `json:"property_changes,omitempty"`
}

// PropertyChange is a single field's new value, stored in its canonical string encoding.
type PropertyChange struct {
	ID           int64         `json:"id"`
	ObjectChange *ObjectChange `json:"-"`
	PropertyName string        `json:"property_name"`
	Value        *string       `json:"value"`
	ValueAsInt   *int64        `json:"value_as_int,omitempty"`
}

// NewPropertyChange builds a PropertyChange and fills ValueAsInt when the
// value is an integer.
func NewPropertyChange(name string, value *string) *PropertyChange {
	return &PropertyChange{
		PropertyName: name,
		Value:        value,
		ValueAsInt:   parseInt(value),
	}
}

func parseInt(value *string) *int64 {
	if value == nil {
		return nil
	}

	n, err := strconv.ParseInt(*value, 10, 64)
	if err != nil {
		return nil
	}

	return &n
}

// Property returns the property change with the given name, or nil.
func (o *ObjectChange) Property(name string) *PropertyChange {
	for _, p := range o.PropertyChanges {
		if p.PropertyName == name {
			return p
		}
	}

	return nil
}

// Author returns the author of the owning change set.
func (p *PropertyChange) Author() string {
	if p.ObjectChange == nil || p.ObjectChange.ChangeSet == nil {
		return ""
	}

	return p.ObjectChange.ChangeSet.Author
}

// Timestamp returns the timestamp of the owning change set.
func (p *PropertyChange) Timestamp() time.Time {
	if p.ObjectChange == nil || p.ObjectChange.ChangeSet == nil {
		return time.Time{}
	}

	return p.ObjectChange.ChangeSet.Timestamp
}

// Before reports whether a sorts before b in history order: by timestamp,
// then by insertion sequence.
func (a *ChangeSet) Before(b *ChangeSet) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}

	return a.Sequence < b.Sequence
}

// Change pairs a historical value with the author and time of the change set
// that produced it.
type Change[T any] struct {
	Value     T         `json:"value"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}
