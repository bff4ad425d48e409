package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/persistorai/changelog/internal/models"
	"github.com/persistorai/changelog/internal/store"
)

func str(s string) *string { return &s }

func newChangeSet(author, typeName, ref string, ts time.Time, props map[string]*string) *models.ChangeSet {
	cs := &models.ChangeSet{ID: uuid.New(), Timestamp: ts, Author: author}
	oc := &models.ObjectChange{ChangeSet: cs, TypeName: typeName, ObjectReference: ref}

	for name, v := range props {
		pc := models.NewPropertyChange(name, v)
		pc.ObjectChange = oc
		oc.PropertyChanges = append(oc.PropertyChanges, pc)
	}

	cs.ObjectChanges = []*models.ObjectChange{oc}

	return cs
}

func insert(t *testing.T, s *store.ChangeLogStore, cs *models.ChangeSet) {
	t.Helper()

	ctx := context.Background()

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.InsertChangeSet(ctx, tx, cs); err != nil {
		t.Fatalf("InsertChangeSet: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestInsertAndReadObjectChanges(t *testing.T) {
	base, author := setupTestBase(t)
	s := store.NewChangeLogStore(base)
	ctx := context.Background()
	typeName := "book-" + uuid.NewString()[:8]
	ts := time.Now().UTC().Truncate(time.Microsecond)

	first := newChangeSet(author, typeName, "1", ts, map[string]*string{"ID": str("1"), "Title": str("Dune"), "Author": nil})
	second := newChangeSet(author, typeName, "1", ts, map[string]*string{"Title": str("Dune Messiah")})
	insert(t, s, first)
	insert(t, s, second)

	if first.Sequence == 0 || second.Sequence <= first.Sequence {
		t.Fatalf("sequences = %d, %d, want increasing", first.Sequence, second.Sequence)
	}

	changes, err := s.ObjectChanges(ctx, typeName, "1")
	if err != nil {
		t.Fatalf("ObjectChanges: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("ObjectChanges returned %d, want 2", len(changes))
	}

	// Same timestamp: insertion sequence decides.
	if changes[0].ChangeSet.ID != first.ID {
		t.Errorf("first change set = %s, want %s", changes[0].ChangeSet.ID, first.ID)
	}

	oc := changes[0]
	if len(oc.PropertyChanges) != 3 {
		t.Errorf("PropertyChanges = %d, want 3", len(oc.PropertyChanges))
	}
	if id := oc.Property("ID"); id == nil || id.ValueAsInt == nil || *id.ValueAsInt != 1 {
		t.Errorf("ID change = %+v, want value_as_int 1", id)
	}
	if a := oc.Property("Author"); a == nil || a.Value != nil {
		t.Errorf("Author change = %+v, want null value", a)
	}
	if oc.Property("Title").ObjectChange != oc {
		t.Error("property change back-pointer not set")
	}
}

func TestPropertyChangesMostRecentFirst(t *testing.T) {
	base, author := setupTestBase(t)
	s := store.NewChangeLogStore(base)
	ctx := context.Background()
	typeName := "book-" + uuid.NewString()[:8]
	t1 := time.Now().UTC().Truncate(time.Microsecond)
	t2 := t1.Add(time.Second)

	insert(t, s, newChangeSet(author, typeName, "1", t1, map[string]*string{"Title": str("one")}))
	insert(t, s, newChangeSet(author, typeName, "1", t2, map[string]*string{"Title": str("two")}))
	insert(t, s, newChangeSet(author, typeName, "2", t2, map[string]*string{"Title": str("other")}))

	changes, err := s.PropertyChanges(ctx, typeName, "1", "Title")
	if err != nil {
		t.Fatalf("PropertyChanges: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("PropertyChanges returned %d, want 2", len(changes))
	}
	if *changes[0].Value != "two" || *changes[1].Value != "one" {
		t.Errorf("values = %s, %s, want two, one", *changes[0].Value, *changes[1].Value)
	}
	if changes[0].Author() != author || !changes[0].Timestamp().Equal(t2) {
		t.Errorf("change = %s at %v, want %s at %v", changes[0].Author(), changes[0].Timestamp(), author, t2)
	}
}

func TestListAndGetChangeSets(t *testing.T) {
	base, author := setupTestBase(t)
	s := store.NewChangeLogStore(base)
	ctx := context.Background()
	typeName := "book-" + uuid.NewString()[:8]
	ts := time.Now().UTC().Truncate(time.Microsecond)

	var ids []uuid.UUID
	for i := range 3 {
		cs := newChangeSet(author, typeName, "1", ts.Add(time.Duration(i)*time.Second), map[string]*string{"Pages": str("1")})
		insert(t, s, cs)
		ids = append(ids, cs.ID)
	}

	sets, hasMore, err := s.ListChangeSets(ctx, models.ChangeSetQueryOpts{Author: author, Limit: 2})
	if err != nil {
		t.Fatalf("ListChangeSets: %v", err)
	}
	if len(sets) != 2 || !hasMore {
		t.Fatalf("ListChangeSets = %d sets, hasMore %v, want 2, true", len(sets), hasMore)
	}
	if sets[0].ID != ids[2] {
		t.Errorf("first = %s, want most recent %s", sets[0].ID, ids[2])
	}
	if len(sets[0].ObjectChanges) != 1 || len(sets[0].ObjectChanges[0].PropertyChanges) != 1 {
		t.Errorf("change set children not loaded: %+v", sets[0])
	}

	since := ts.Add(time.Second)
	sets, _, err = s.ListChangeSets(ctx, models.ChangeSetQueryOpts{Author: author, Since: &since})
	if err != nil {
		t.Fatalf("ListChangeSets since: %v", err)
	}
	if len(sets) != 2 {
		t.Errorf("since filter returned %d, want 2", len(sets))
	}

	got, err := s.GetChangeSet(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetChangeSet: %v", err)
	}
	if got.Author != author {
		t.Errorf("Author = %q, want %q", got.Author, author)
	}

	if _, err := s.GetChangeSet(ctx, uuid.New()); !errors.Is(err, models.ErrChangeSetNotFound) {
		t.Errorf("GetChangeSet unknown = %v, want ErrChangeSetNotFound", err)
	}
}
