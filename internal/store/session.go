package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/changelog/internal/audit"
	"github.com/persistorai/changelog/internal/models"
)

// ErrTxActive is returned by Begin and Attach while the session already has
// a transaction.
var ErrTxActive = errors.New("session already has a transaction")

// UnitOfWork is the application side of a Session: it writes pending
// primary mutations and reports which properties they touched.
type UnitOfWork interface {
	// Save writes every mutation made since the last accept and returns
	// the number of objects written.
	Save(ctx context.Context, tx pgx.Tx) (int, error)
	DetectChanges(ctx context.Context) ([]audit.Change, error)
	// AcceptAllChanges forgets the mutations written so far.
	AcceptAllChanges()
	ReferenceFor(obj any) (string, error)
}

// Session adapts a UnitOfWork to audit.Session, writing change sets to the
// same transaction as the primary mutations.
type Session struct {
	store *ChangeLogStore
	uow   UnitOfWork

	mu      sync.Mutex
	tx      pgx.Tx
	pending []*models.ChangeSet
}

// NewSession creates a Session over store and uow.
func NewSession(store *ChangeLogStore, uow UnitOfWork) *Session {
	return &Session{store: store, uow: uow}
}

// Begin opens a transaction on the pool and makes it the session's current
// transaction until it is committed or rolled back.
func (s *Session) Begin(ctx context.Context) (audit.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		return nil, ErrTxActive
	}

	tx, err := s.store.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	s.tx = tx

	return &sessionTx{Tx: tx, session: s}, nil
}

// Attach makes a transaction the caller manages the session's current
// transaction. Use it with audit.Module.SaveChangesWithinTransaction and
// call Detach once the caller has committed or rolled back.
func (s *Session) Attach(tx pgx.Tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		return ErrTxActive
	}

	s.tx = tx

	return nil
}

// Detach releases the transaction set by Attach.
func (s *Session) Detach() {
	s.release()
}

func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tx = nil
}

// ActiveTransaction reports whether the session has a current transaction.
func (s *Session) ActiveTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tx != nil
}

// SaveChanges writes the unit of work's mutations and any staged change sets
// in the current transaction. Without one it opens and commits its own.
func (s *Session) SaveChanges(ctx context.Context, mode audit.SaveMode) (int, error) {
	s.mu.Lock()
	tx := s.tx
	s.mu.Unlock()

	if tx != nil {
		return s.save(ctx, tx, mode)
	}

	tx, err := s.store.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	n, err := s.save(ctx, tx, mode)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	return n, nil
}

func (s *Session) save(ctx context.Context, tx pgx.Tx, mode audit.SaveMode) (int, error) {
	n, err := s.uow.Save(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("writing primary changes: %w", err)
	}

	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, cs := range pending {
		if err := s.store.InsertChangeSet(ctx, tx, cs); err != nil {
			return 0, err
		}
	}

	if mode == audit.DetectAndAccept {
		s.uow.AcceptAllChanges()
	}

	return n, nil
}

// DetectChanges delegates to the unit of work.
func (s *Session) DetectChanges(ctx context.Context) ([]audit.Change, error) {
	return s.uow.DetectChanges(ctx)
}

// AcceptAllChanges delegates to the unit of work.
func (s *Session) AcceptAllChanges() {
	s.uow.AcceptAllChanges()
}

// AddChangeSet stages cs for the next SaveChanges.
func (s *Session) AddChangeSet(cs *models.ChangeSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, cs)
}

// ReferenceFor delegates to the unit of work.
func (s *Session) ReferenceFor(obj any) (string, error) {
	return s.uow.ReferenceFor(obj)
}

// sessionTx releases the session's transaction when it finishes.
type sessionTx struct {
	pgx.Tx
	session *Session
}

func (t *sessionTx) Commit(ctx context.Context) error {
	defer t.session.release()

	return t.Tx.Commit(ctx)
}

func (t *sessionTx) Rollback(ctx context.Context) error {
	defer t.session.release()

	// Staged change sets belong to the aborted transaction.
	t.session.mu.Lock()
	t.session.pending = nil
	t.session.mu.Unlock()

	return t.Tx.Rollback(ctx)
}
