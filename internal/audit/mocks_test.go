package audit_test

import (
	"context"
	"sync"

	"github.com/persistorai/changelog/internal/audit"
	"github.com/persistorai/changelog/internal/models"
)

// mockSession records calls and returns configured responses.
type mockSession struct {
	mu    sync.Mutex
	calls []string

	active     bool
	changeSets []*models.ChangeSet

	detectChanges func(ctx context.Context) ([]audit.Change, error)
	saveChanges   func(ctx context.Context, mode audit.SaveMode) (int, error)
	referenceFor  func(obj any) (string, error)
	commit        func(ctx context.Context) error
}

func (m *mockSession) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockSession) DetectChanges(ctx context.Context) ([]audit.Change, error) {
	m.record("DetectChanges")
	if m.detectChanges == nil {
		return nil, nil
	}
	return m.detectChanges(ctx)
}

func (m *mockSession) SaveChanges(ctx context.Context, mode audit.SaveMode) (int, error) {
	m.record("SaveChanges:" + mode.String())
	if m.saveChanges == nil {
		return 1, nil
	}
	return m.saveChanges(ctx, mode)
}

func (m *mockSession) AcceptAllChanges() {
	m.record("AcceptAllChanges")
}

func (m *mockSession) AddChangeSet(cs *models.ChangeSet) {
	m.record("AddChangeSet")
	m.changeSets = append(m.changeSets, cs)
}

func (m *mockSession) Begin(_ context.Context) (audit.Tx, error) {
	m.record("Begin")
	return &mockTx{session: m}, nil
}

func (m *mockSession) ActiveTransaction() bool {
	return m.active
}

func (m *mockSession) ReferenceFor(obj any) (string, error) {
	if m.referenceFor == nil {
		return "1", nil
	}
	return m.referenceFor(obj)
}

type mockTx struct {
	session *mockSession
	done    bool
}

func (t *mockTx) Commit(ctx context.Context) error {
	t.session.record("Commit")
	t.done = true
	if t.session.commit == nil {
		return nil
	}
	return t.session.commit(ctx)
}

func (t *mockTx) Rollback(_ context.Context) error {
	if !t.done {
		t.session.record("Rollback")
	}
	return nil
}
