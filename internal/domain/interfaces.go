// Package domain defines the canonical service interfaces shared by the REST
// API and the client. Consumers should depend on these interfaces rather
// than re-declaring equivalent ones.
package domain

import (
	"context"

	"github.com/google/uuid"

	"github.com/persistorai/changelog/internal/models"
)

// ChangeSetService defines change set listing and lookup.
type ChangeSetService interface {
	ListChangeSets(ctx context.Context, opts models.ChangeSetQueryOpts) ([]*models.ChangeSet, bool, error)
	GetChangeSet(ctx context.Context, id uuid.UUID) (*models.ChangeSet, error)
}

// HistoryService defines raw history reads for one object, most recent first.
type HistoryService interface {
	ObjectHistory(ctx context.Context, typeName, ref string, limit, offset int) ([]models.ObjectHistoryEntry, bool, error)
	PropertyHistory(ctx context.Context, typeName, ref, property string, limit, offset int) ([]models.PropertyHistoryEntry, bool, error)
}

// RecordService logs externally saved deltas as a change set.
type RecordService interface {
	Record(ctx context.Context, req models.RecordRequest) (*models.RecordResult, error)
}
