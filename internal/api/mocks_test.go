package api_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/persistorai/changelog/internal/models"
)

// mockChangeSetRepo implements api.ChangeSetRepository for testing.
type mockChangeSetRepo struct {
	listFn func(ctx context.Context, opts models.ChangeSetQueryOpts) ([]*models.ChangeSet, bool, error)
	getFn  func(ctx context.Context, id uuid.UUID) (*models.ChangeSet, error)
}

func (m *mockChangeSetRepo) ListChangeSets(ctx context.Context, opts models.ChangeSetQueryOpts) ([]*models.ChangeSet, bool, error) {
	return m.listFn(ctx, opts)
}

func (m *mockChangeSetRepo) GetChangeSet(ctx context.Context, id uuid.UUID) (*models.ChangeSet, error) {
	return m.getFn(ctx, id)
}

// mockHistoryRepo implements api.HistoryRepository for testing.
type mockHistoryRepo struct {
	objectFn   func(ctx context.Context, typeName, ref string, limit, offset int) ([]models.ObjectHistoryEntry, bool, error)
	propertyFn func(ctx context.Context, typeName, ref, property string, limit, offset int) ([]models.PropertyHistoryEntry, bool, error)
}

func (m *mockHistoryRepo) ObjectHistory(ctx context.Context, typeName, ref string, limit, offset int) ([]models.ObjectHistoryEntry, bool, error) {
	return m.objectFn(ctx, typeName, ref, limit, offset)
}

func (m *mockHistoryRepo) PropertyHistory(ctx context.Context, typeName, ref, property string, limit, offset int) ([]models.PropertyHistoryEntry, bool, error) {
	return m.propertyFn(ctx, typeName, ref, property, limit, offset)
}

// mockRecordRepo implements api.RecordRepository for testing.
type mockRecordRepo struct {
	recordFn func(ctx context.Context, req models.RecordRequest) (*models.RecordResult, error)
}

func (m *mockRecordRepo) Record(ctx context.Context, req models.RecordRequest) (*models.RecordResult, error) {
	return m.recordFn(ctx, req)
}

// mockProbe implements api.DatabaseProbe for testing.
type mockProbe struct {
	pingFn    func(ctx context.Context) error
	versionFn func(ctx context.Context) (int64, error)
}

func (m *mockProbe) Ping(ctx context.Context) error {
	return m.pingFn(ctx)
}

func (m *mockProbe) AppliedVersion(ctx context.Context) (int64, error) {
	return m.versionFn(ctx)
}
