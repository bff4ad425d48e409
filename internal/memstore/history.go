package memstore

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/persistorai/changelog/internal/models"
)

// sortedLog returns the committed change sets ordered by timestamp, then
// sequence. Callers must hold s.mu.
func (s *Store) sortedLog() []*models.ChangeSet {
	log := slices.Clone(s.committed.log)
	slices.SortStableFunc(log, func(a, b *models.ChangeSet) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		default:
			return 0
		}
	})

	return log
}

// ObjectChanges returns the committed changes to one object, oldest first.
func (s *Store) ObjectChanges(_ context.Context, typeName, ref string) ([]*models.ObjectChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.ObjectChange

	for _, cs := range s.sortedLog() {
		for _, oc := range cs.ObjectChanges {
			if oc.TypeName == typeName && oc.ObjectReference == ref {
				out = append(out, oc)
			}
		}
	}

	return out, nil
}

// PropertyChanges returns the committed changes to one property, most
// recent first.
func (s *Store) PropertyChanges(ctx context.Context, typeName, ref, property string) ([]*models.PropertyChange, error) {
	changes, err := s.ObjectChanges(ctx, typeName, ref)
	if err != nil {
		return nil, err
	}

	var out []*models.PropertyChange

	for _, oc := range slices.Backward(changes) {
		if pc := oc.Property(property); pc != nil {
			out = append(out, pc)
		}
	}

	return out, nil
}

// ListChangeSets returns committed change sets, most recent first.
// Returns change sets, hasMore flag, and any error.
func (s *Store) ListChangeSets(_ context.Context, opts models.ChangeSetQueryOpts) ([]*models.ChangeSet, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var matched []*models.ChangeSet

	for _, cs := range slices.Backward(s.sortedLog()) {
		if opts.Author != "" && cs.Author != opts.Author {
			continue
		}
		if opts.Since != nil && cs.Timestamp.Before(*opts.Since) {
			continue
		}
		matched = append(matched, cs)
	}

	offset := max(opts.Offset, 0)
	if offset >= len(matched) {
		return []*models.ChangeSet{}, false, nil
	}

	matched = matched[offset:]
	hasMore := len(matched) > limit
	if hasMore {
		matched = matched[:limit]
	}

	return matched, hasMore, nil
}

// GetChangeSet returns a committed change set by ID.
func (s *Store) GetChangeSet(_ context.Context, id uuid.UUID) (*models.ChangeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.committed.byID[id]
	if !ok {
		return nil, models.ErrChangeSetNotFound
	}

	return cs, nil
}
