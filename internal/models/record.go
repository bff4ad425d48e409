package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Validation errors for record requests.
var (
	ErrMissingAuthor  = errors.New("author is required")
	ErrNoObjects      = errors.New("at least one object is required")
	ErrMissingType    = errors.New("object type is required")
	ErrMissingRef     = errors.New("object ref is required")
	ErrNoProperties   = errors.New("object has no properties")
	ErrNavigation     = errors.New("navigation names no property")
	ErrTooManyObjects = fmt.Errorf("at most %d objects per request", MaxRecordObjects)
)

// MaxRecordObjects bounds the objects accepted in one RecordRequest.
const MaxRecordObjects = 1000

// ErrFieldTooLong returns an error for a field exceeding its maximum length.
func ErrFieldTooLong(field string, limit int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, limit)
}

// ObjectDelta is a set of property values an external system wrote to one
// object, submitted for logging after its own save. Navigations maps a
// relationship property to the type it points at; its value is the target's
// reference.
type ObjectDelta struct {
	Type        string            `json:"type"`
	Reference   string            `json:"ref"`
	Properties  map[string]any    `json:"properties"`
	Navigations map[string]string `json:"navigations,omitempty"`
}

// UnmarshalJSON decodes property numbers as json.Number so integers keep
// every digit.
func (d *ObjectDelta) UnmarshalJSON(data []byte) error {
	type plain ObjectDelta

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	return dec.Decode((*plain)(d))
}

// RecordRequest submits the deltas of one unit of work.
type RecordRequest struct {
	Author  string        `json:"author"`
	Objects []ObjectDelta `json:"objects"`
}

// Validate checks required fields and lengths.
func (r *RecordRequest) Validate() error {
	if r.Author == "" {
		return ErrMissingAuthor
	}

	if len(r.Author) > 255 {
		return ErrFieldTooLong("author", 255)
	}

	if len(r.Objects) == 0 {
		return ErrNoObjects
	}

	if len(r.Objects) > MaxRecordObjects {
		return ErrTooManyObjects
	}

	for i := range r.Objects {
		if err := r.Objects[i].validate(); err != nil {
			return fmt.Errorf("objects[%d]: %w", i, err)
		}
	}

	return nil
}

func (d *ObjectDelta) validate() error {
	switch {
	case d.Type == "":
		return ErrMissingType
	case len(d.Type) > 255:
		return ErrFieldTooLong("type", 255)
	case d.Reference == "":
		return ErrMissingRef
	case len(d.Reference) > 255:
		return ErrFieldTooLong("ref", 255)
	case len(d.Properties) == 0:
		return ErrNoProperties
	}

	for name := range d.Navigations {
		if _, ok := d.Properties[name]; !ok {
			return fmt.Errorf("%w: %s", ErrNavigation, name)
		}
	}

	return nil
}

// RecordResult reports what was logged for a RecordRequest. ChangeSetID is
// nil when nothing passed the logging filter or logging is disabled.
type RecordResult struct {
	ChangeSetID     *uuid.UUID `json:"change_set_id"`
	ObjectChanges   int        `json:"object_changes"`
	PropertyChanges int        `json:"property_changes"`
}
