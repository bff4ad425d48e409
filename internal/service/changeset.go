package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/domain"
	"github.com/persistorai/changelog/internal/models"
)

// ChangeSetStore is the data-access interface ChangeSetService depends on.
// It reuses domain.ChangeSetService since the method sets are identical.
type ChangeSetStore = domain.ChangeSetService

// Compile-time check: *ChangeSetService must satisfy domain.ChangeSetService.
var _ domain.ChangeSetService = (*ChangeSetService)(nil)

// ChangeSetService wraps ChangeSetStore with context-aware logging.
type ChangeSetService struct {
	store ChangeSetStore
	log   *logrus.Logger
}

// NewChangeSetService creates a ChangeSetService.
func NewChangeSetService(store ChangeSetStore, log *logrus.Logger) *ChangeSetService {
	return &ChangeSetService{store: store, log: log}
}

// ListChangeSets returns change sets, most recent first.
func (s *ChangeSetService) ListChangeSets(
	ctx context.Context, opts models.ChangeSetQueryOpts,
) ([]*models.ChangeSet, bool, error) {
	s.log.WithFields(logrus.Fields{
		"author": opts.Author,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	}).Debug("changesets.list")

	return s.store.ListChangeSets(ctx, opts)
}

// GetChangeSet returns one change set with its object and property changes.
func (s *ChangeSetService) GetChangeSet(ctx context.Context, id uuid.UUID) (*models.ChangeSet, error) {
	s.log.WithField("change_set_id", id).Debug("changesets.get")

	return s.store.GetChangeSet(ctx, id)
}
