package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/models"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func TestChangeSetService_ListChangeSets(t *testing.T) {
	var got models.ChangeSetQueryOpts

	store := &mockChangeSetStore{
		listChangeSets: func(_ context.Context, opts models.ChangeSetQueryOpts) ([]*models.ChangeSet, bool, error) {
			got = opts
			return []*models.ChangeSet{{ID: uuid.New()}}, true, nil
		},
	}

	svc := NewChangeSetService(store, quietLogger())

	sets, hasMore, err := svc.ListChangeSets(context.Background(), models.ChangeSetQueryOpts{Author: "alice", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sets) != 1 || !hasMore {
		t.Errorf("got %d sets, hasMore=%v; want 1, true", len(sets), hasMore)
	}

	if got.Author != "alice" || got.Limit != 10 {
		t.Errorf("store received %+v", got)
	}

	if len(store.calls) != 1 || store.calls[0] != "ListChangeSets" {
		t.Errorf("calls = %v", store.calls)
	}
}

func TestChangeSetService_GetChangeSet(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "found"},
		{name: "not found", err: models.ErrChangeSetNotFound, wantErr: models.ErrChangeSetNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id := uuid.New()
			store := &mockChangeSetStore{
				getChangeSet: func(_ context.Context, got uuid.UUID) (*models.ChangeSet, error) {
					if tc.err != nil {
						return nil, tc.err
					}
					return &models.ChangeSet{ID: got}, nil
				},
			}

			cs, err := NewChangeSetService(store, quietLogger()).GetChangeSet(context.Background(), id)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}

			if tc.wantErr == nil && cs.ID != id {
				t.Errorf("ID = %v, want %v", cs.ID, id)
			}
		})
	}
}
