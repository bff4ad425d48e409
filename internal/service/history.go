package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/persistorai/changelog/internal/domain"
	"github.com/persistorai/changelog/internal/history"
	"github.com/persistorai/changelog/internal/models"
)

// HistoryStore is the data-access interface HistoryService depends on. Both
// the PostgreSQL and the in-memory change log satisfy it.
type HistoryStore = history.HistorySource

// Compile-time check: *HistoryService must satisfy domain.HistoryService.
var _ domain.HistoryService = (*HistoryService)(nil)

// HistoryService pages the raw change log of one object. Concurrent reads of
// the same object share one store query.
type HistoryService struct {
	store HistoryStore
	log   *logrus.Logger
	group singleflight.Group
}

// NewHistoryService creates a HistoryService.
func NewHistoryService(store HistoryStore, log *logrus.Logger) *HistoryService {
	return &HistoryService{store: store, log: log}
}

// ObjectHistory returns the object's changes, most recent first.
func (s *HistoryService) ObjectHistory(
	ctx context.Context, typeName, ref string, limit, offset int,
) ([]models.ObjectHistoryEntry, bool, error) {
	s.log.WithFields(logrus.Fields{
		"type":   typeName,
		"ref":    ref,
		"limit":  limit,
		"offset": offset,
	}).Debug("history.object")

	changes, err := s.objectChanges(ctx, typeName, ref)
	if err != nil {
		return nil, false, err
	}

	changes = slices.Clone(changes)
	slices.Reverse(changes)

	page, hasMore := paginate(changes, limit, offset)

	entries := make([]models.ObjectHistoryEntry, 0, len(page))
	for _, oc := range page {
		entries = append(entries, models.NewObjectHistoryEntry(oc))
	}

	return entries, hasMore, nil
}

// objectChanges reads the object's log, oldest first. The result is shared
// between callers and must not be modified.
func (s *HistoryService) objectChanges(ctx context.Context, typeName, ref string) ([]*models.ObjectChange, error) {
	key := fmt.Sprintf("%d:%s/%s", len(typeName), typeName, ref)

	val, err, _ := s.group.Do(key, func() (any, error) {
		return s.store.ObjectChanges(ctx, typeName, ref)
	})
	if err != nil {
		return nil, err
	}

	changes, ok := val.([]*models.ObjectChange)
	if !ok {
		return nil, fmt.Errorf("history: unexpected singleflight result type %T", val)
	}

	return changes, nil
}

// PropertyHistory returns the property's changes, most recent first.
func (s *HistoryService) PropertyHistory(
	ctx context.Context, typeName, ref, property string, limit, offset int,
) ([]models.PropertyHistoryEntry, bool, error) {
	s.log.WithFields(logrus.Fields{
		"type":     typeName,
		"ref":      ref,
		"property": property,
		"limit":    limit,
		"offset":   offset,
	}).Debug("history.property")

	changes, err := s.store.PropertyChanges(ctx, typeName, ref, property)
	if err != nil {
		return nil, false, err
	}

	page, hasMore := paginate(changes, limit, offset)

	entries := make([]models.PropertyHistoryEntry, 0, len(page))
	for _, pc := range page {
		entries = append(entries, models.NewPropertyHistoryEntry(pc))
	}

	return entries, hasMore, nil
}

// paginate slices items to one page. A non-positive limit means 50.
func paginate[T any](items []T, limit, offset int) ([]T, bool) {
	if limit <= 0 {
		limit = 50
	}

	offset = min(max(offset, 0), len(items))
	items = items[offset:]

	if len(items) > limit {
		return items[:limit], true
	}

	return items, false
}
