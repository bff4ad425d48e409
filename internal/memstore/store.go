// Package memstore is an in-memory persistence layer for tracked objects and
// their change log. It implements audit.Session, history.HistorySource and
// binding.ReferenceResolver, which makes it usable for tests and for
// embedding where no database is available.
//
// A Store tracks a single set of objects in the manner of a unit of work:
// Add and Remove stage changes, modifications to tracked objects are found
// by comparing against the values accepted by the last save.
package memstore

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/persistorai/changelog/internal/models"
)

var (
	// ErrUnknownType is returned for objects whose type was never registered.
	ErrUnknownType = errors.New("type not registered")
	// ErrObjectNotFound is returned when no saved object has the reference.
	ErrObjectNotFound = errors.New("object not found")
	// ErrNotTracked is returned by Remove for objects the store does not track.
	ErrNotTracked = errors.New("object not tracked")
	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("transaction already finished")
	// ErrTxActive is returned by Begin while another transaction is open.
	ErrTxActive = errors.New("transaction already active")
)

// Entity describes how the store reads and keys objects of type *M.
type Entity[M any] struct {
	// Name is the type name written to the change log.
	Name string
	// Key names the property holding the object's identity. It must be
	// present in Properties.
	Key string
	// Properties reads each logged property.
	Properties map[string]func(*M) any
	// Navigations maps relationship properties to the type name they
	// point at.
	Navigations map[string]string
	// AssignKey sets a generated identity on new objects whose key is the
	// zero value. Nil leaves keys to the caller.
	AssignKey func(*M, int64)
}

type entityType struct {
	name        string
	key         string
	props       []string
	get         map[string]func(any) any
	navigations map[string]string
	assignKey   func(any, int64)
}

func (et *entityType) ref(obj any) string {
	return fmt.Sprint(et.get[et.key](obj))
}

func (et *entityType) values(obj any) map[string]any {
	out := make(map[string]any, len(et.props))
	for _, p := range et.props {
		out[p] = et.get[p](obj)
	}

	return out
}

type state int

const (
	unchanged state = iota
	added
	deleted
)

type entry struct {
	obj      any
	et       *entityType
	state    state
	original map[string]any

	// persisted is set once an added object has been written.
	persisted bool
}

// data is the durable part of the store. A transaction works on a copy.
type data struct {
	objects map[string]map[string]any
	log     []*models.ChangeSet
	nextSeq int64
	nextID  int64
	byID    map[uuid.UUID]*models.ChangeSet
}

func newData() *data {
	return &data{
		objects: make(map[string]map[string]any),
		byID:    make(map[uuid.UUID]*models.ChangeSet),
	}
}

func (d *data) clone() *data {
	c := &data{
		objects: make(map[string]map[string]any, len(d.objects)),
		log:     slices.Clone(d.log),
		nextSeq: d.nextSeq,
		nextID:  d.nextID,
		byID:    make(map[uuid.UUID]*models.ChangeSet, len(d.byID)),
	}

	for name, objs := range d.objects {
		m := make(map[string]any, len(objs))
		for ref, obj := range objs {
			m[ref] = obj
		}
		c.objects[name] = m
	}

	for id, cs := range d.byID {
		c.byID[id] = cs
	}

	return c
}

// tracking is the unit-of-work state restored when a transaction rolls back.
type tracking struct {
	entries map[any]*entry
	order   []any
	pending []*models.ChangeSet
}

func (t tracking) clone() tracking {
	c := tracking{
		entries: make(map[any]*entry, len(t.entries)),
		order:   slices.Clone(t.order),
		pending: slices.Clone(t.pending),
	}

	for obj, e := range t.entries {
		cp := *e
		c.entries[obj] = &cp
	}

	return c
}

// Store is an in-memory object store with a change log. It is safe for
// concurrent use.
type Store struct {
	mu        sync.Mutex
	types     map[reflect.Type]*entityType
	committed *data
	work      *data
	track     tracking

	// lastKey is the last key handed to a new object. Like a database
	// sequence it survives rollbacks, so a key is never handed out twice.
	lastKey int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		types:     make(map[reflect.Type]*entityType),
		committed: newData(),
		track:     tracking{entries: make(map[any]*entry)},
	}
}

// Register makes *M storable. Registering the same type again replaces the
// earlier description.
func Register[M any](s *Store, e Entity[M]) error {
	if _, ok := e.Properties[e.Key]; !ok {
		return fmt.Errorf("registering %s: key %q is not a property", e.Name, e.Key)
	}

	et := &entityType{
		name:        e.Name,
		key:         e.Key,
		get:         make(map[string]func(any) any, len(e.Properties)),
		navigations: e.Navigations,
	}

	for name, get := range e.Properties {
		et.props = append(et.props, name)
		et.get[name] = func(obj any) any { return get(obj.(*M)) }
	}

	slices.Sort(et.props)

	if e.AssignKey != nil {
		et.assignKey = func(obj any, id int64) { e.AssignKey(obj.(*M), id) }
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.types[reflect.TypeFor[*M]()] = et

	return nil
}

func (s *Store) typeOf(obj any) (*entityType, error) {
	et, ok := s.types[reflect.TypeOf(obj)]
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, obj)
	}

	return et, nil
}

// current returns the data writes go to: the transaction's copy while one is
// open, the committed data otherwise.
func (s *Store) current() *data {
	if s.work != nil {
		return s.work
	}

	return s.committed
}

// Add stages obj for insertion on the next save.
func (s *Store) Add(obj any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	et, err := s.typeOf(obj)
	if err != nil {
		return err
	}

	if e, ok := s.track.entries[obj]; ok {
		if e.state == deleted {
			e.state = unchanged
		}
		return nil
	}

	s.track.entries[obj] = &entry{obj: obj, et: et, state: added}
	s.track.order = append(s.track.order, obj)

	return nil
}

// Remove stages obj for deletion on the next save. Removing an object that
// was added but never saved simply stops tracking it.
func (s *Store) Remove(obj any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.track.entries[obj]
	if !ok {
		return fmt.Errorf("%w: %T", ErrNotTracked, obj)
	}

	if e.state == added && !e.persisted {
		s.untrack(obj)
		return nil
	}

	e.state = deleted

	return nil
}

func (s *Store) untrack(obj any) {
	delete(s.track.entries, obj)
	s.track.order = slices.DeleteFunc(s.track.order, func(o any) bool { return o == obj })
}

// equal compares property values, by identity for comparable values and
// deeply otherwise.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	if ta.Comparable() {
		return a == b
	}

	return reflect.DeepEqual(a, b)
}
