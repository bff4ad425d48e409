// Package recorder buffers property changes of a unit of work and bakes them
// into an immutable change set.
package recorder

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/persistorai/changelog/internal/deferred"
	"github.com/persistorai/changelog/internal/models"
)

// Encoder renders realized values in the canonical string encoding.
type Encoder interface {
	Encode(v any) (*string, error)
}

// ReferenceFunc resolves an object's reference. It is evaluated at bake time
// so that identities assigned by the primary save are visible.
type ReferenceFunc func() (string, error)

type tracked struct {
	typeName  string
	reference ReferenceFunc
}

type objectKey struct {
	typeName  string
	reference string
}

// Recorder collects pending property changes keyed by object identity. Object
// identities must be comparable, typically pointers. A Recorder belongs to a
// single unit of work and is not safe for concurrent use.
type Recorder struct {
	encoder Encoder
	values  *deferred.Map[any]
	objects map[any]*tracked
}

// New creates an empty Recorder.
func New(encoder Encoder) *Recorder {
	return &Recorder{
		encoder: encoder,
		values:  deferred.NewMap[any](),
		objects: make(map[any]*tracked),
	}
}

// Record buffers one property change. A later Record for the same object and
// property replaces the earlier producer.
func (r *Recorder) Record(obj any, typeName string, reference ReferenceFunc, property string, value deferred.Producer) {
	if _, ok := r.objects[obj]; !ok {
		r.objects[obj] = &tracked{typeName: typeName, reference: reference}
	}

	r.values.Store(obj, property, value)
}

// HasChangeSet reports whether anything has been recorded.
func (r *Recorder) HasChangeSet() bool {
	return r.values.Len() > 0
}

// Bake evaluates every buffered producer and builds the change set. It returns
// nil when nothing was recorded.
func (r *Recorder) Bake(timestamp time.Time, author string) (*models.ChangeSet, error) {
	if !r.HasChangeSet() {
		return nil, nil
	}

	cs := &models.ChangeSet{
		ID:        uuid.New(),
		Timestamp: timestamp,
		Author:    author,
	}
	byKey := make(map[objectKey]*models.ObjectChange)

	for _, obj := range r.values.Containers() {
		t := r.objects[obj]

		ref, err := t.reference()
		if err != nil {
			return nil, fmt.Errorf("resolving reference of %s: %w", t.typeName, err)
		}

		values, err := r.values.CalculateAndRetrieve(obj)
		if err != nil {
			return nil, fmt.Errorf("baking %s %s: %w", t.typeName, ref, err)
		}

		key := objectKey{typeName: t.typeName, reference: ref}

		oc, ok := byKey[key]
		if !ok {
			oc = &models.ObjectChange{ChangeSet: cs, TypeName: t.typeName, ObjectReference: ref}
			byKey[key] = oc
			cs.ObjectChanges = append(cs.ObjectChanges, oc)
		}

		for _, name := range r.values.Keys(obj) {
			raw, err := r.encoder.Encode(values[name])
			if err != nil {
				return nil, fmt.Errorf("encoding %s.%s: %w", t.typeName, name, err)
			}

			setProperty(oc, models.NewPropertyChange(name, raw))
		}
	}

	return cs, nil
}

// setProperty adds pc to oc, replacing any earlier change to the same property.
func setProperty(oc *models.ObjectChange, pc *models.PropertyChange) {
	pc.ObjectChange = oc

	for i, existing := range oc.PropertyChanges {
		if existing.PropertyName == pc.PropertyName {
			oc.PropertyChanges[i] = pc
			return
		}
	}

	oc.PropertyChanges = append(oc.PropertyChanges, pc)
}
