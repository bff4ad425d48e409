package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/models"
)

// ChangeLogStore writes and reads change sets.
type ChangeLogStore struct {
	Base
}

// NewChangeLogStore creates a new ChangeLogStore.
func NewChangeLogStore(base Base) *ChangeLogStore {
	return &ChangeLogStore{Base: base}
}

// InsertChangeSet writes cs and everything it owns within tx. The store
// assigns cs.Sequence and the row IDs of its object and property changes.
func (s *ChangeLogStore) InsertChangeSet(ctx context.Context, tx pgx.Tx, cs *models.ChangeSet) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO change_sets (id, created_at, author) VALUES ($1, $2, $3) RETURNING seq`,
		cs.ID, cs.Timestamp, cs.Author,
	).Scan(&cs.Sequence)
	if err != nil {
		return fmt.Errorf("inserting change set: %w", err)
	}

	for _, oc := range cs.ObjectChanges {
		err := tx.QueryRow(ctx,
			`INSERT INTO object_changes (change_set_id, type_name, object_reference)
			 VALUES ($1, $2, $3) RETURNING id`,
			cs.ID, oc.TypeName, oc.ObjectReference,
		).Scan(&oc.ID)
		if err != nil {
			return fmt.Errorf("inserting object change %s %s: %w", oc.TypeName, oc.ObjectReference, err)
		}

		for _, pc := range oc.PropertyChanges {
			err := tx.QueryRow(ctx,
				`INSERT INTO property_changes (object_change_id, property_name, value, value_as_int)
				 VALUES ($1, $2, $3, $4) RETURNING id`,
				oc.ID, pc.PropertyName, pc.Value, pc.ValueAsInt,
			).Scan(&pc.ID)
			if err != nil {
				return fmt.Errorf("inserting property change %s.%s: %w", oc.TypeName, pc.PropertyName, err)
			}
		}
	}

	s.Log.WithFields(logrus.Fields{
		"change_set": cs.ID,
		"sequence":   cs.Sequence,
		"objects":    len(cs.ObjectChanges),
	}).Debug("store.insert_change_set")

	return nil
}
