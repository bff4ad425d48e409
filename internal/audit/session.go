// Package audit saves primary mutations together with the change log that
// describes them, inside one transaction.
package audit

import (
	"context"

	"github.com/persistorai/changelog/internal/deferred"
	"github.com/persistorai/changelog/internal/filter"
	"github.com/persistorai/changelog/internal/models"
)

// SaveMode controls whether a save also accepts the pending changes it wrote.
type SaveMode int

const (
	// DetectOnly persists pending changes but keeps the record of them so
	// they can still be enumerated.
	DetectOnly SaveMode = iota
	// DetectAndAccept persists pending changes and then discards the record.
	DetectAndAccept
)

func (m SaveMode) String() string {
	if m == DetectOnly {
		return "detect_only"
	}

	return "detect_and_accept"
}

// Change is one touched property reported by a Session. Value is evaluated
// at bake time, after the primary save.
type Change struct {
	Object     any
	TypeName   string
	Property   string
	Navigation *filter.Navigation
	Value      deferred.Producer
}

// Tx is a transaction opened by a Session. pgx.Tx satisfies it.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Session is the persistence layer a Module saves through.
type Session interface {
	// DetectChanges enumerates every property touched since the last accept.
	DetectChanges(ctx context.Context) ([]Change, error)
	// SaveChanges persists pending changes and returns the number of
	// objects written.
	SaveChanges(ctx context.Context, mode SaveMode) (int, error)
	AcceptAllChanges()
	AddChangeSet(cs *models.ChangeSet)
	Begin(ctx context.Context) (Tx, error)
	// ActiveTransaction reports whether a transaction the caller opened is
	// still in progress.
	ActiveTransaction() bool
	ReferenceFor(obj any) (string, error)
}
