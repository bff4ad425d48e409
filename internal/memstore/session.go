package memstore

import (
	"context"
	"fmt"
	"reflect"

	"github.com/persistorai/changelog/internal/audit"
	"github.com/persistorai/changelog/internal/filter"
	"github.com/persistorai/changelog/internal/models"
)

// DetectChanges reports every property of added objects and the changed
// properties of tracked ones. Values are read when the change set is baked.
func (s *Store) DetectChanges(_ context.Context) ([]audit.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changes []audit.Change

	for _, obj := range s.track.order {
		e := s.track.entries[obj]

		switch e.state {
		case added:
			for _, p := range e.et.props {
				changes = append(changes, change(e, p))
			}
		case unchanged:
			for _, p := range e.et.props {
				if !equal(e.original[p], e.et.get[p](obj)) {
					changes = append(changes, change(e, p))
				}
			}
		case deleted:
		}
	}

	return changes, nil
}

func change(e *entry, property string) audit.Change {
	obj, get := e.obj, e.et.get[property]

	c := audit.Change{
		Object:   obj,
		TypeName: e.et.name,
		Property: property,
		Value:    func() (any, error) { return get(obj), nil },
	}

	if target, ok := e.et.navigations[property]; ok {
		c.Navigation = &filter.Navigation{SourceType: e.et.name, Property: property, TargetType: target}
	}

	return c
}

// SaveChanges writes staged objects and change sets. With DetectAndAccept
// the pending changes are accepted afterwards.
func (s *Store) SaveChanges(_ context.Context, mode audit.SaveMode) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.current()
	n := 0

	for _, obj := range s.track.order {
		e := s.track.entries[obj]

		switch e.state {
		case added:
			if e.persisted {
				continue
			}

			if e.et.assignKey != nil && reflect.ValueOf(e.et.get[e.et.key](obj)).IsZero() {
				s.lastKey++
				e.et.assignKey(obj, s.lastKey)
			}

			objs, ok := d.objects[e.et.name]
			if !ok {
				objs = make(map[string]any)
				d.objects[e.et.name] = objs
			}
			objs[e.et.ref(obj)] = obj
			e.persisted = true
			n++
		case deleted:
			delete(d.objects[e.et.name], e.et.ref(obj))
			n++
		case unchanged:
			for _, p := range e.et.props {
				if !equal(e.original[p], e.et.get[p](obj)) {
					n++
					break
				}
			}
		}
	}

	for _, cs := range s.track.pending {
		d.insert(cs)
	}
	s.track.pending = nil

	if mode == audit.DetectAndAccept {
		s.accept()
	}

	return n, nil
}

// insert appends cs to the log, assigning its sequence number and row IDs.
func (d *data) insert(cs *models.ChangeSet) {
	d.nextSeq++
	cs.Sequence = d.nextSeq

	for _, oc := range cs.ObjectChanges {
		d.nextID++
		oc.ID = d.nextID

		for _, pc := range oc.PropertyChanges {
			d.nextID++
			pc.ID = d.nextID
		}
	}

	d.log = append(d.log, cs)
	d.byID[cs.ID] = cs
}

// AcceptAllChanges marks the current state of every tracked object as saved.
func (s *Store) AcceptAllChanges() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accept()
}

func (s *Store) accept() {
	for _, obj := range s.track.order {
		e := s.track.entries[obj]

		if e.state == deleted {
			s.untrack(obj)
			continue
		}

		e.state = unchanged
		e.persisted = false
		e.original = e.et.values(obj)
	}
}

// AddChangeSet stages cs to be written by the next save.
func (s *Store) AddChangeSet(cs *models.ChangeSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.track.pending = append(s.track.pending, cs)
}

// ActiveTransaction reports whether a transaction is open.
func (s *Store) ActiveTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.work != nil
}

// Begin opens a transaction. Saves made while it is open are invisible to
// readers until Commit. Rollback also restores the tracked objects' state.
// Keys already assigned to new objects stay assigned and are not reused.
func (s *Store) Begin(_ context.Context) (audit.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.work != nil {
		return nil, ErrTxActive
	}

	s.work = s.committed.clone()

	return &Tx{store: s, saved: s.track.clone()}, nil
}

// Tx is an open Store transaction.
type Tx struct {
	store *Store
	saved tracking
	done  bool
}

// Commit publishes the transaction's writes.
func (t *Tx) Commit(_ context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.done {
		return ErrTxDone
	}

	t.store.committed = t.store.work
	t.store.work = nil
	t.done = true

	return nil
}

// Rollback discards the transaction's writes.
func (t *Tx) Rollback(_ context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.done {
		return ErrTxDone
	}

	t.store.work = nil
	t.store.track = t.saved
	t.done = true

	return nil
}

// ReferenceFor returns the rendering of obj's key property.
func (s *Store) ReferenceFor(obj any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	et, err := s.typeOf(obj)
	if err != nil {
		return "", err
	}

	return et.ref(obj), nil
}

// ReferencePropertyFor returns the name of obj's key property.
func (s *Store) ReferencePropertyFor(obj any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	et, err := s.typeOf(obj)
	if err != nil {
		return "", err
	}

	return et.key, nil
}

// ObjectByReference returns the committed object of type t with the given
// reference.
func (s *Store) ObjectByReference(_ context.Context, t reflect.Type, ref string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	et, ok := s.types[t]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownType, t)
	}

	obj, ok := s.committed.objects[et.name][ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrObjectNotFound, et.name, ref)
	}

	return obj, nil
}
