package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/persistorai/changelog/internal/audit"
	"github.com/persistorai/changelog/internal/models"
	"github.com/persistorai/changelog/internal/store"
)

// mockChangeSetStore records calls and returns configured responses.
type mockChangeSetStore struct {
	mu    sync.Mutex
	calls []string

	listChangeSets func(ctx context.Context, opts models.ChangeSetQueryOpts) ([]*models.ChangeSet, bool, error)
	getChangeSet   func(ctx context.Context, id uuid.UUID) (*models.ChangeSet, error)
}

func (m *mockChangeSetStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockChangeSetStore) ListChangeSets(ctx context.Context, opts models.ChangeSetQueryOpts) ([]*models.ChangeSet, bool, error) {
	m.record("ListChangeSets")
	return m.listChangeSets(ctx, opts)
}

func (m *mockChangeSetStore) GetChangeSet(ctx context.Context, id uuid.UUID) (*models.ChangeSet, error) {
	m.record("GetChangeSet")
	return m.getChangeSet(ctx, id)
}

// mockHistoryStore returns configured responses.
type mockHistoryStore struct {
	objectChanges   func(ctx context.Context, typeName, ref string) ([]*models.ObjectChange, error)
	propertyChanges func(ctx context.Context, typeName, ref, property string) ([]*models.PropertyChange, error)
}

func (m *mockHistoryStore) ObjectChanges(ctx context.Context, typeName, ref string) ([]*models.ObjectChange, error) {
	return m.objectChanges(ctx, typeName, ref)
}

func (m *mockHistoryStore) PropertyChanges(ctx context.Context, typeName, ref, property string) ([]*models.PropertyChange, error) {
	return m.propertyChanges(ctx, typeName, ref, property)
}

// mockSession drives a unit of work the way store.Session does, keeping
// staged change sets in memory.
type mockSession struct {
	uow       store.UnitOfWork
	saveErr   error
	committed []*models.ChangeSet
	staged    []*models.ChangeSet
	active    bool
}

func (m *mockSession) DetectChanges(ctx context.Context) ([]audit.Change, error) {
	return m.uow.DetectChanges(ctx)
}

func (m *mockSession) SaveChanges(ctx context.Context, mode audit.SaveMode) (int, error) {
	if m.saveErr != nil {
		return 0, m.saveErr
	}

	n, err := m.uow.Save(ctx, nil)
	if err != nil {
		return 0, err
	}

	m.committed = append(m.committed, m.staged...)
	m.staged = nil

	if mode == audit.DetectAndAccept {
		m.uow.AcceptAllChanges()
	}

	return n, nil
}

func (m *mockSession) AcceptAllChanges() { m.uow.AcceptAllChanges() }

func (m *mockSession) AddChangeSet(cs *models.ChangeSet) { m.staged = append(m.staged, cs) }

func (m *mockSession) Begin(context.Context) (audit.Tx, error) {
	m.active = true
	return mockTx{session: m}, nil
}

func (m *mockSession) ActiveTransaction() bool { return m.active }

func (m *mockSession) ReferenceFor(obj any) (string, error) { return m.uow.ReferenceFor(obj) }

type mockTx struct{ session *mockSession }

func (t mockTx) Commit(context.Context) error {
	t.session.active = false
	return nil
}

func (t mockTx) Rollback(context.Context) error {
	t.session.active = false
	return nil
}

type mockPublisher struct {
	published []*models.ChangeSet
}

func (m *mockPublisher) Publish(cs *models.ChangeSet) { m.published = append(m.published, cs) }
