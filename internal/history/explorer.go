// Package history reads the change log back into typed values: the history
// of one property, point-in-time snapshots of an object, and its creation.
package history

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/binding"
	"github.com/persistorai/changelog/internal/models"
)

// HistorySource is a read-only view of the persisted change log.
type HistorySource interface {
	// ObjectChanges returns the object's changes, oldest first.
	ObjectChanges(ctx context.Context, typeName, ref string) ([]*models.ObjectChange, error)
	// PropertyChanges returns the property's changes, most recent first.
	PropertyChanges(ctx context.Context, typeName, ref, property string) ([]*models.PropertyChange, error)
}

// Explorer answers history queries for tracked objects.
type Explorer struct {
	source   HistorySource
	resolver binding.ReferenceResolver
	registry *binding.Registry
	log      *logrus.Logger
}

// NewExplorer creates an Explorer.
func NewExplorer(source HistorySource, resolver binding.ReferenceResolver, registry *binding.Registry, log *logrus.Logger) *Explorer {
	return &Explorer{source: source, resolver: resolver, registry: registry, log: log}
}

// ChangesToProperty yields the values prop has held on obj, most recent
// first. The sequence queries the source each time it is ranged over and
// stops after the first error.
func ChangesToProperty[M, V any](ctx context.Context, ex *Explorer, prop *Property[M, V], obj *M) iter.Seq2[models.Change[V], error] {
	return func(yield func(models.Change[V], error) bool) {
		var zero models.Change[V]

		ref, err := ex.resolver.ReferenceFor(obj)
		if err != nil {
			yield(zero, fmt.Errorf("resolving reference: %w", err))
			return
		}

		typeName := prop.schema.typeName

		ex.log.WithFields(logrus.Fields{
			"type":     typeName,
			"ref":      ref,
			"property": prop.name,
		}).Debug("history.changes_to_property")

		changes, err := ex.source.PropertyChanges(ctx, typeName, ref, prop.name)
		if err != nil {
			yield(zero, fmt.Errorf("loading changes to %s.%s: %w", typeName, prop.name, err))
			return
		}

		for _, pc := range changes {
			v, err := binding.As[V](ctx, ex.registry, pc.Value)
			if err != nil {
				yield(zero, fmt.Errorf("binding %s.%s: %w", typeName, prop.name, err))
				return
			}

			if !yield(models.Change[V]{Value: v, Author: pc.Author(), Timestamp: pc.Timestamp()}, nil) {
				return
			}
		}
	}
}

// ChangesTo reconstructs every logged state of obj by replaying its object
// changes onto a zero M. Snapshots are returned most recent first.
// Property changes the schema does not define are skipped.
func ChangesTo[M any](ctx context.Context, ex *Explorer, schema *Schema[M], obj *M) ([]models.Change[*M], error) {
	changes, err := objectChanges(ctx, ex, schema, obj)
	if err != nil {
		return nil, err
	}

	out := make([]models.Change[*M], 0, len(changes))
	current := new(M)

	for _, oc := range changes {
		next := schema.clone(current)

		if err := apply(ctx, ex, schema, next, oc); err != nil {
			return nil, err
		}

		out = append(out, models.Change[*M]{
			Value:     next,
			Author:    oc.ChangeSet.Author,
			Timestamp: oc.ChangeSet.Timestamp,
		})
		current = next
	}

	slices.Reverse(out)

	return out, nil
}

// GetCreation returns obj as it was first logged. The earliest object change
// counts as a creation only if it contains the reference property; otherwise
// models.ErrCreationNotFound is returned.
func GetCreation[M any](ctx context.Context, ex *Explorer, schema *Schema[M], obj *M) (models.Change[*M], error) {
	var zero models.Change[*M]

	changes, err := objectChanges(ctx, ex, schema, obj)
	if err != nil {
		return zero, err
	}

	if len(changes) == 0 {
		return zero, fmt.Errorf("%w: no changes logged for %s", models.ErrCreationNotFound, schema.typeName)
	}

	key, err := ex.resolver.ReferencePropertyFor(obj)
	if err != nil {
		return zero, fmt.Errorf("resolving reference property: %w", err)
	}

	first := changes[0]
	if first.Property(key) == nil {
		return zero, fmt.Errorf("%w: earliest change to %s %s does not set %s",
			models.ErrCreationNotFound, schema.typeName, first.ObjectReference, key)
	}

	created := new(M)
	if err := apply(ctx, ex, schema, created, first); err != nil {
		return zero, err
	}

	return models.Change[*M]{
		Value:     created,
		Author:    first.ChangeSet.Author,
		Timestamp: first.ChangeSet.Timestamp,
	}, nil
}

func objectChanges[M any](ctx context.Context, ex *Explorer, schema *Schema[M], obj *M) ([]*models.ObjectChange, error) {
	ref, err := ex.resolver.ReferenceFor(obj)
	if err != nil {
		return nil, fmt.Errorf("resolving reference: %w", err)
	}

	ex.log.WithFields(logrus.Fields{"type": schema.typeName, "ref": ref}).Debug("history.changes_to")

	changes, err := ex.source.ObjectChanges(ctx, schema.typeName, ref)
	if err != nil {
		return nil, fmt.Errorf("loading changes to %s %s: %w", schema.typeName, ref, err)
	}

	return changes, nil
}

func apply[M any](ctx context.Context, ex *Explorer, schema *Schema[M], m *M, oc *models.ObjectChange) error {
	for _, pc := range oc.PropertyChanges {
		ok, err := schema.Set(ctx, ex.registry, m, pc.PropertyName, pc.Value)
		if err != nil {
			return err
		}

		if !ok {
			ex.log.WithFields(logrus.Fields{
				"type":     schema.typeName,
				"property": pc.PropertyName,
			}).Warn("history: skipping property without setter")
		}
	}

	return nil
}
