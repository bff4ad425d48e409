package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/audit"
	"github.com/persistorai/changelog/internal/deferred"
	"github.com/persistorai/changelog/internal/domain"
	"github.com/persistorai/changelog/internal/filter"
	"github.com/persistorai/changelog/internal/models"
	"github.com/persistorai/changelog/internal/recorder"
	"github.com/persistorai/changelog/internal/store"
)

// SessionFactory opens an audit session over a unit of work.
type SessionFactory func(uow store.UnitOfWork) audit.Session

// Publisher is notified of every change set after its transaction commits.
type Publisher interface {
	Publish(cs *models.ChangeSet)
}

// RecordOptions configures a RecordService.
type RecordOptions struct {
	// Enabled switches change logging. When false, Record accepts the
	// deltas without writing a change set.
	Enabled bool
	Filter  filter.Filter

	// Publisher is optional.
	Publisher Publisher
}

// Compile-time check: *RecordService must satisfy domain.RecordService.
var _ domain.RecordService = (*RecordService)(nil)

// RecordService logs deltas that an external system already saved.
type RecordService struct {
	sessions SessionFactory
	encoder  recorder.Encoder
	opts     RecordOptions
	log      *logrus.Logger
}

// NewRecordService creates a RecordService.
func NewRecordService(sessions SessionFactory, encoder recorder.Encoder, opts RecordOptions, log *logrus.Logger) *RecordService {
	if opts.Filter == nil {
		opts.Filter = filter.AllowAll{}
	}

	return &RecordService{sessions: sessions, encoder: encoder, opts: opts, log: log}
}

// Record runs a two-phase save over the request's deltas and reports the
// change set it produced.
func (s *RecordService) Record(ctx context.Context, req models.RecordRequest) (*models.RecordResult, error) {
	session := &capturingSession{Session: s.sessions(newDeltaUnitOfWork(req.Objects))}

	m := audit.New(session, s.encoder, audit.WithFilter(s.opts.Filter), audit.WithLogger(s.log))
	m.Enabled = s.opts.Enabled

	if _, err := m.SaveChanges(ctx, req.Author); err != nil {
		return nil, fmt.Errorf("recording changes: %w", err)
	}

	result := &models.RecordResult{}

	if cs := session.changeSet; cs != nil {
		result.ChangeSetID = &cs.ID
		result.ObjectChanges = len(cs.ObjectChanges)

		for _, oc := range cs.ObjectChanges {
			result.PropertyChanges += len(oc.PropertyChanges)
		}

		if s.opts.Publisher != nil {
			s.opts.Publisher.Publish(cs)
		}
	}

	s.log.WithFields(logrus.Fields{
		"author":           req.Author,
		"objects":          len(req.Objects),
		"property_changes": result.PropertyChanges,
	}).Debug("record.save")

	return result, nil
}

// capturingSession remembers the change set handed to the session.
type capturingSession struct {
	audit.Session
	changeSet *models.ChangeSet
}

func (c *capturingSession) AddChangeSet(cs *models.ChangeSet) {
	c.changeSet = cs
	c.Session.AddChangeSet(cs)
}

// deltaUnitOfWork reports submitted deltas as pending changes. The primary
// write already happened elsewhere, so Save writes nothing.
type deltaUnitOfWork struct {
	objects []models.ObjectDelta
	pending bool
}

func newDeltaUnitOfWork(objects []models.ObjectDelta) *deltaUnitOfWork {
	return &deltaUnitOfWork{objects: objects, pending: true}
}

func (u *deltaUnitOfWork) Save(context.Context, pgx.Tx) (int, error) {
	if !u.pending {
		return 0, nil
	}

	return len(u.objects), nil
}

func (u *deltaUnitOfWork) DetectChanges(context.Context) ([]audit.Change, error) {
	if !u.pending {
		return nil, nil
	}

	var changes []audit.Change

	for i := range u.objects {
		d := &u.objects[i]

		names := make([]string, 0, len(d.Properties))
		for name := range d.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			c := audit.Change{
				Object:   d,
				TypeName: d.Type,
				Property: name,
				Value:    deltaValue(d.Properties[name]),
			}

			if target, ok := d.Navigations[name]; ok {
				c.Navigation = &filter.Navigation{SourceType: d.Type, Property: name, TargetType: target}
			}

			changes = append(changes, c)
		}
	}

	return changes, nil
}

func (u *deltaUnitOfWork) AcceptAllChanges() { u.pending = false }

func (u *deltaUnitOfWork) ReferenceFor(obj any) (string, error) {
	d, ok := obj.(*models.ObjectDelta)
	if !ok {
		return "", fmt.Errorf("no reference for %T", obj)
	}

	return d.Reference, nil
}

// deltaValue produces the value to encode for a decoded JSON property.
// Objects, and arrays holding objects, are logged as their JSON text. Numbers
// are logged as integers when they are whole, otherwise as their literal.
func deltaValue(v any) deferred.Producer {
	switch x := v.(type) {
	case map[string]any:
		return jsonText(x)
	case []any:
		if slices.ContainsFunc(x, isObject) {
			return jsonText(x)
		}

		items := make([]any, len(x))
		for i, item := range x {
			items[i] = jsonScalar(item)
		}

		return deferred.Value(items)
	}

	return deferred.Value(jsonScalar(v))
}

// maxExactFloat is the largest magnitude below which every whole float64 is
// an exact integer.
const maxExactFloat = 1 << 53

func jsonScalar(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}

		return x.String()
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < maxExactFloat {
			return int64(x)
		}
	}

	return v
}

func isObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func jsonText(v any) deferred.Producer {
	return func() (any, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshaling value: %w", err)
		}

		return string(b), nil
	}
}
