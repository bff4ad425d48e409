package history_test

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/binding"
	"github.com/persistorai/changelog/internal/history"
	"github.com/persistorai/changelog/internal/models"
)

type book struct {
	ID     int
	Title  string
	Pages  int
	Labels []string
}

var (
	bookSchema = history.NewSchema[book]("book")
	bookID     = history.Define(bookSchema, "ID", func(b *book, v int) { b.ID = v })
	bookTitle  = history.Define(bookSchema, "Title", func(b *book, v string) { b.Title = v })
	bookPages  = history.Define(bookSchema, "Pages", func(b *book, v int) { b.Pages = v })
	bookLabels = history.Define(bookSchema, "Labels", func(b *book, v []string) { b.Labels = v })
)

type bookResolver struct{}

func (bookResolver) ReferenceFor(obj any) (string, error) {
	return strconv.Itoa(obj.(*book).ID), nil
}

func (bookResolver) ReferencePropertyFor(any) (string, error) { return "ID", nil }

func (bookResolver) ObjectByReference(context.Context, reflect.Type, string) (any, error) {
	return nil, errors.New("not supported")
}

// fakeSource serves history from change sets held in memory, in the order
// they were appended.
type fakeSource struct {
	sets  []*models.ChangeSet
	calls int
	err   error
}

func (f *fakeSource) add(ts time.Time, author, ref string, props map[string]*string) {
	cs := &models.ChangeSet{Sequence: int64(len(f.sets) + 1), Timestamp: ts, Author: author}
	oc := &models.ObjectChange{ChangeSet: cs, TypeName: "book", ObjectReference: ref}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		pc := models.NewPropertyChange(name, props[name])
		pc.ObjectChange = oc
		oc.PropertyChanges = append(oc.PropertyChanges, pc)
	}

	cs.ObjectChanges = []*models.ObjectChange{oc}
	f.sets = append(f.sets, cs)
}

func (f *fakeSource) ObjectChanges(_ context.Context, typeName, ref string) ([]*models.ObjectChange, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	var out []*models.ObjectChange
	for _, cs := range f.sets {
		for _, oc := range cs.ObjectChanges {
			if oc.TypeName == typeName && oc.ObjectReference == ref {
				out = append(out, oc)
			}
		}
	}

	return out, nil
}

func (f *fakeSource) PropertyChanges(ctx context.Context, typeName, ref, property string) ([]*models.PropertyChange, error) {
	ocs, err := f.ObjectChanges(ctx, typeName, ref)
	if err != nil {
		return nil, err
	}

	var out []*models.PropertyChange
	for _, oc := range slices.Backward(ocs) {
		if pc := oc.Property(property); pc != nil {
			out = append(out, pc)
		}
	}

	return out, nil
}

func str(s string) *string { return &s }

func newExplorer(src history.HistorySource) *history.Explorer {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return history.NewExplorer(src, bookResolver{}, binding.NewRegistry(bookResolver{}), log)
}

var (
	t1 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	t2 = t1.Add(time.Hour)
	t3 = t2.Add(time.Hour)
)

func seeded() *fakeSource {
	src := &fakeSource{}
	src.add(t1, "alice", "1", map[string]*string{
		"ID": str("1"), "Title": str("Dune"), "Pages": str("412"), "Labels": str("scifi,classic"),
	})
	src.add(t2, "bob", "1", map[string]*string{"Title": str("Dune Messiah")})
	src.add(t3, "carol", "1", map[string]*string{"Pages": str("256")})

	return src
}

func TestChangesToPropertyMostRecentFirst(t *testing.T) {
	ex := newExplorer(seeded())

	var got []models.Change[string]
	for c, err := range history.ChangesToProperty(context.Background(), ex, bookTitle, &book{ID: 1}) {
		if err != nil {
			t.Fatalf("ChangesToProperty: %v", err)
		}
		got = append(got, c)
	}

	if len(got) != 2 {
		t.Fatalf("changes = %d, want 2", len(got))
	}
	if got[0].Value != "Dune Messiah" || got[0].Author != "bob" || !got[0].Timestamp.Equal(t2) {
		t.Errorf("got[0] = %+v, want Dune Messiah by bob at t2", got[0])
	}
	if got[1].Value != "Dune" || got[1].Author != "alice" {
		t.Errorf("got[1] = %+v, want Dune by alice", got[1])
	}
}

func TestChangesToPropertyIsLazyAndRestartable(t *testing.T) {
	src := seeded()
	ex := newExplorer(src)

	seq := history.ChangesToProperty(context.Background(), ex, bookPages, &book{ID: 1})
	if src.calls != 0 {
		t.Fatalf("source queried %d times before iteration", src.calls)
	}

	for range 2 {
		var pages []int
		for c, err := range seq {
			if err != nil {
				t.Fatalf("ChangesToProperty: %v", err)
			}
			pages = append(pages, c.Value)
		}

		if !slices.Equal(pages, []int{256, 412}) {
			t.Errorf("pages = %v, want [256 412]", pages)
		}
	}
}

func TestChangesToPropertySourceError(t *testing.T) {
	boom := errors.New("boom")
	ex := newExplorer(&fakeSource{err: boom})

	for _, err := range history.ChangesToProperty(context.Background(), ex, bookTitle, &book{ID: 1}) {
		if !errors.Is(err, boom) {
			t.Errorf("err = %v, want boom", err)
		}
	}
}

func TestChangesToPropertyBindError(t *testing.T) {
	src := &fakeSource{}
	src.add(t1, "alice", "1", map[string]*string{"ID": str("1"), "Pages": str("many")})
	ex := newExplorer(src)

	for _, err := range history.ChangesToProperty(context.Background(), ex, bookPages, &book{ID: 1}) {
		if !errors.Is(err, binding.ErrFormat) {
			t.Errorf("err = %v, want ErrFormat", err)
		}
	}
}

func TestChangesToReplaysSnapshots(t *testing.T) {
	ex := newExplorer(seeded())

	snaps, err := history.ChangesTo(context.Background(), ex, bookSchema, &book{ID: 1})
	if err != nil {
		t.Fatalf("ChangesTo: %v", err)
	}

	want := []book{
		{ID: 1, Title: "Dune Messiah", Pages: 256, Labels: []string{"scifi", "classic"}},
		{ID: 1, Title: "Dune Messiah", Pages: 412, Labels: []string{"scifi", "classic"}},
		{ID: 1, Title: "Dune", Pages: 412, Labels: []string{"scifi", "classic"}},
	}
	if len(snaps) != len(want) {
		t.Fatalf("snapshots = %d, want %d", len(snaps), len(want))
	}

	for i, w := range want {
		if !reflect.DeepEqual(*snaps[i].Value, w) {
			t.Errorf("snapshot %d = %+v, want %+v", i, *snaps[i].Value, w)
		}
	}

	if snaps[0].Author != "carol" || snaps[2].Author != "alice" {
		t.Errorf("authors = %s, %s, want carol, alice", snaps[0].Author, snaps[2].Author)
	}

	if snaps[0].Value == snaps[1].Value {
		t.Error("snapshots share the same instance")
	}
}

func TestChangesToSkipsUnknownProperties(t *testing.T) {
	src := &fakeSource{}
	src.add(t1, "alice", "1", map[string]*string{"ID": str("1"), "Removed": str("x"), "Title": str("Dune")})
	ex := newExplorer(src)

	snaps, err := history.ChangesTo(context.Background(), ex, bookSchema, &book{ID: 1})
	if err != nil {
		t.Fatalf("ChangesTo: %v", err)
	}

	if len(snaps) != 1 || snaps[0].Value.Title != "Dune" {
		t.Errorf("snapshots = %+v, want one with Title Dune", snaps)
	}
}

func TestChangesToWithCustomClone(t *testing.T) {
	clones := 0
	schema := history.NewSchema[book]("book", history.WithClone(func(b *book) *book {
		clones++
		c := *b
		c.Labels = slices.Clone(b.Labels)
		return &c
	}))
	history.Define(schema, "Title", func(b *book, v string) { b.Title = v })

	if _, err := history.ChangesTo(context.Background(), newExplorer(seeded()), schema, &book{ID: 1}); err != nil {
		t.Fatalf("ChangesTo: %v", err)
	}

	if clones != 3 {
		t.Errorf("clones = %d, want 3", clones)
	}
}

func TestGetCreation(t *testing.T) {
	ex := newExplorer(seeded())

	created, err := history.GetCreation(context.Background(), ex, bookSchema, &book{ID: 1})
	if err != nil {
		t.Fatalf("GetCreation: %v", err)
	}

	if created.Value.Title != "Dune" || created.Value.Pages != 412 {
		t.Errorf("created = %+v, want Dune with 412 pages", created.Value)
	}
	if created.Author != "alice" || !created.Timestamp.Equal(t1) {
		t.Errorf("created by %s at %v, want alice at t1", created.Author, created.Timestamp)
	}
}

func TestGetCreationWithoutKeyProperty(t *testing.T) {
	src := &fakeSource{}
	src.add(t2, "bob", "1", map[string]*string{"Title": str("Dune Messiah")})
	ex := newExplorer(src)

	_, err := history.GetCreation(context.Background(), ex, bookSchema, &book{ID: 1})
	if !errors.Is(err, models.ErrCreationNotFound) {
		t.Errorf("err = %v, want ErrCreationNotFound", err)
	}
}

func TestGetCreationWithoutHistory(t *testing.T) {
	ex := newExplorer(&fakeSource{})

	_, err := history.GetCreation(context.Background(), ex, bookSchema, &book{ID: 1})
	if !errors.Is(err, models.ErrCreationNotFound) {
		t.Errorf("err = %v, want ErrCreationNotFound", err)
	}
}

func TestSchemaProperties(t *testing.T) {
	want := []string{bookID.Name(), bookLabels.Name(), bookPages.Name(), bookTitle.Name()}
	if got := bookSchema.Properties(); !slices.Equal(got, want) {
		t.Errorf("Properties = %v, want %v", got, want)
	}
}
