package audit_test

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/audit"
	"github.com/persistorai/changelog/internal/binding"
	"github.com/persistorai/changelog/internal/deferred"
	"github.com/persistorai/changelog/internal/filter"
	"github.com/persistorai/changelog/internal/models"
)

type book struct {
	ID    int
	Title string
}

func newModule(s *mockSession, opts ...audit.Option) *audit.Module {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	opts = append([]audit.Option{audit.WithLogger(log)}, opts...)

	return audit.New(s, binding.NewRegistry(nil), opts...)
}

func titleChange(b *book) audit.Change {
	return audit.Change{
		Object:   b,
		TypeName: "book",
		Property: "Title",
		Value:    func() (any, error) { return b.Title, nil },
	}
}

func TestSaveChangesRunsBothPhasesInOrder(t *testing.T) {
	b := &book{ID: 1, Title: "Dune"}
	s := &mockSession{
		detectChanges: func(context.Context) ([]audit.Change, error) {
			return []audit.Change{titleChange(b)}, nil
		},
	}

	n, err := newModule(s).SaveChanges(context.Background(), "alice")
	if err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}

	want := []string{
		"Begin",
		"SaveChanges:detect_only",
		"DetectChanges",
		"AcceptAllChanges",
		"AddChangeSet",
		"SaveChanges:detect_and_accept",
		"Commit",
	}
	if !slices.Equal(s.calls, want) {
		t.Errorf("calls = %v, want %v", s.calls, want)
	}

	if len(s.changeSets) != 1 {
		t.Fatalf("change sets = %d, want 1", len(s.changeSets))
	}
	cs := s.changeSets[0]
	if cs.Author != "alice" {
		t.Errorf("Author = %q, want alice", cs.Author)
	}
	if got := *cs.ObjectChanges[0].Property("Title").Value; got != "Dune" {
		t.Errorf("Title = %q, want Dune", got)
	}
}

func TestSaveChangesUsesClock(t *testing.T) {
	b := &book{ID: 1, Title: "Dune"}
	now := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	s := &mockSession{
		detectChanges: func(context.Context) ([]audit.Change, error) {
			return []audit.Change{titleChange(b)}, nil
		},
	}

	if _, err := newModule(s, audit.WithClock(func() time.Time { return now })).SaveChanges(context.Background(), "alice"); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	if !s.changeSets[0].Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", s.changeSets[0].Timestamp, now)
	}
}

func TestReferenceResolvedAfterPrimarySave(t *testing.T) {
	b := &book{Title: "Dune"}
	s := &mockSession{
		detectChanges: func(context.Context) ([]audit.Change, error) {
			return []audit.Change{titleChange(b)}, nil
		},
		referenceFor: func(obj any) (string, error) {
			return strconv.Itoa(obj.(*book).ID), nil
		},
	}
	s.saveChanges = func(_ context.Context, mode audit.SaveMode) (int, error) {
		if mode == audit.DetectOnly {
			b.ID = 7
		}
		return 1, nil
	}

	if _, err := newModule(s).SaveChanges(context.Background(), "alice"); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	if ref := s.changeSets[0].ObjectChanges[0].ObjectReference; ref != "7" {
		t.Errorf("ObjectReference = %q, want 7", ref)
	}
}

func TestDisabledModuleSkipsLogging(t *testing.T) {
	s := &mockSession{}
	m := newModule(s)
	m.Enabled = false

	if _, err := m.SaveChanges(context.Background(), "alice"); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	want := []string{"SaveChanges:detect_and_accept"}
	if !slices.Equal(s.calls, want) {
		t.Errorf("calls = %v, want %v", s.calls, want)
	}
}

func TestSaveChangesRejectsActiveTransaction(t *testing.T) {
	s := &mockSession{active: true}

	_, err := newModule(s).SaveChanges(context.Background(), "alice")
	if !errors.Is(err, models.ErrConflictingTransaction) {
		t.Fatalf("err = %v, want ErrConflictingTransaction", err)
	}
	if len(s.calls) != 0 {
		t.Errorf("calls = %v, want none", s.calls)
	}
}

func TestSaveChangesWithinTransactionDoesNotBegin(t *testing.T) {
	b := &book{ID: 1, Title: "Dune"}
	s := &mockSession{
		active: true,
		detectChanges: func(context.Context) ([]audit.Change, error) {
			return []audit.Change{titleChange(b)}, nil
		},
	}

	if _, err := newModule(s).SaveChangesWithinTransaction(context.Background(), "alice"); err != nil {
		t.Fatalf("SaveChangesWithinTransaction: %v", err)
	}

	if slices.Contains(s.calls, "Begin") || slices.Contains(s.calls, "Commit") {
		t.Errorf("calls = %v, want no Begin or Commit", s.calls)
	}
	if len(s.changeSets) != 1 {
		t.Errorf("change sets = %d, want 1", len(s.changeSets))
	}
}

func TestFailureRollsBack(t *testing.T) {
	boom := errors.New("boom")
	s := &mockSession{
		detectChanges: func(context.Context) ([]audit.Change, error) {
			return []audit.Change{{
				Object: &book{ID: 1}, TypeName: "book", Property: "Title",
				Value: func() (any, error) { return nil, boom },
			}}, nil
		},
	}

	_, err := newModule(s).SaveChanges(context.Background(), "alice")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	if slices.Contains(s.calls, "Commit") {
		t.Error("transaction committed after failure")
	}
	if s.calls[len(s.calls)-1] != "Rollback" {
		t.Errorf("last call = %q, want Rollback", s.calls[len(s.calls)-1])
	}
}

func TestFilteredChangesProduceNoChangeSet(t *testing.T) {
	b := &book{ID: 1, Title: "Dune"}
	s := &mockSession{
		detectChanges: func(context.Context) ([]audit.Change, error) {
			return []audit.Change{titleChange(b)}, nil
		},
	}
	f := filter.NewBlacklist(filter.Rules{Properties: map[string][]string{"book": {"Title"}}})

	if _, err := newModule(s, audit.WithFilter(f)).SaveChanges(context.Background(), "alice"); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	if len(s.changeSets) != 0 {
		t.Errorf("change sets = %d, want 0", len(s.changeSets))
	}
	if !slices.Contains(s.calls, "AcceptAllChanges") {
		t.Error("primary changes not accepted")
	}
}

func TestChangeLoggerFiltersNavigations(t *testing.T) {
	b := &book{ID: 1}
	f := filter.NewBlacklist(filter.Rules{Types: []string{"author"}})
	l := audit.NewChangeLogger(f, func(any) (string, error) { return "1", nil }, binding.NewRegistry(nil))

	rec := l.Log([]audit.Change{
		{
			Object: b, TypeName: "book", Property: "Author",
			Navigation: &filter.Navigation{SourceType: "book", Property: "Author", TargetType: "author"},
			Value:      deferred.Value("9"),
		},
	})

	if rec.HasChangeSet() {
		t.Error("navigation to excluded type was recorded")
	}
}
