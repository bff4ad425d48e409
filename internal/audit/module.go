package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/filter"
	"github.com/persistorai/changelog/internal/metrics"
	"github.com/persistorai/changelog/internal/models"
	"github.com/persistorai/changelog/internal/recorder"
)

// Module performs two-phase saves: the primary mutation first, then the
// change set describing it, both under one transaction.
type Module struct {
	// Enabled switches change logging. When false, saves go straight to the
	// session.
	Enabled bool

	session Session
	encoder recorder.Encoder
	filter  filter.Filter
	log     *logrus.Logger
	now     func() time.Time
}

// Option configures a Module.
type Option func(*Module)

// WithFilter sets the logging policy. The default logs everything.
func WithFilter(f filter.Filter) Option {
	return func(m *Module) { m.filter = f }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(m *Module) { m.log = log }
}

// WithClock sets the source of change set timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Module) { m.now = now }
}

// New creates an enabled Module.
func New(session Session, encoder recorder.Encoder, opts ...Option) *Module {
	m := &Module{
		Enabled: true,
		session: session,
		encoder: encoder,
		filter:  filter.AllowAll{},
		log:     logrus.StandardLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// SaveChanges opens its own transaction and runs the two-phase save in it.
// It returns models.ErrConflictingTransaction if the session already has a
// transaction in progress. The result is the number of primary objects
// written.
func (m *Module) SaveChanges(ctx context.Context, principal string) (int, error) {
	if !m.Enabled {
		return m.saveUnlogged(ctx)
	}

	if m.session.ActiveTransaction() {
		metrics.SaveErrorsTotal.WithLabelValues("begin").Inc()
		return 0, models.ErrConflictingTransaction
	}

	start := time.Now()

	tx, err := m.session.Begin(ctx)
	if err != nil {
		metrics.SaveErrorsTotal.WithLabelValues("begin").Inc()
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	n, err := m.save(ctx, principal)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.SaveErrorsTotal.WithLabelValues("commit").Inc()
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	metrics.SaveDuration.WithLabelValues("self_managed").Observe(time.Since(start).Seconds())

	return n, nil
}

// SaveChangesWithinTransaction runs the two-phase save inside a transaction
// the caller already holds. Commit and rollback stay with the caller.
func (m *Module) SaveChangesWithinTransaction(ctx context.Context, principal string) (int, error) {
	if !m.Enabled {
		return m.saveUnlogged(ctx)
	}

	start := time.Now()

	n, err := m.save(ctx, principal)
	if err != nil {
		return 0, err
	}

	metrics.SaveDuration.WithLabelValues("explicit").Observe(time.Since(start).Seconds())

	return n, nil
}

func (m *Module) saveUnlogged(ctx context.Context) (int, error) {
	n, err := m.session.SaveChanges(ctx, DetectAndAccept)
	if err != nil {
		metrics.SaveErrorsTotal.WithLabelValues("primary").Inc()
		return 0, fmt.Errorf("saving changes: %w", err)
	}

	return n, nil
}

func (m *Module) save(ctx context.Context, principal string) (int, error) {
	n, err := m.session.SaveChanges(ctx, DetectOnly)
	if err != nil {
		metrics.SaveErrorsTotal.WithLabelValues("primary").Inc()
		return 0, fmt.Errorf("saving primary changes: %w", err)
	}

	cs, err := m.logChanges(ctx, principal)
	if err != nil {
		return 0, err
	}

	if _, err := m.session.SaveChanges(ctx, DetectAndAccept); err != nil {
		metrics.SaveErrorsTotal.WithLabelValues("log").Inc()
		return 0, fmt.Errorf("saving change set: %w", err)
	}

	fields := logrus.Fields{"principal": principal, "objects": n}
	if cs != nil {
		metrics.ChangeSetsTotal.Inc()
		fields["change_set"] = cs.ID
		fields["object_changes"] = len(cs.ObjectChanges)
	}
	m.log.WithFields(fields).Debug("audit.save")

	return n, nil
}

// logChanges records the detected changes, accepts the primary mutation and
// hands the baked change set to the session. It returns nil when nothing was
// logged.
func (m *Module) logChanges(ctx context.Context, principal string) (*models.ChangeSet, error) {
	changes, err := m.session.DetectChanges(ctx)
	if err != nil {
		metrics.SaveErrorsTotal.WithLabelValues("detect").Inc()
		return nil, fmt.Errorf("detecting changes: %w", err)
	}

	rec := NewChangeLogger(m.filter, m.session.ReferenceFor, m.encoder).Log(changes)

	m.session.AcceptAllChanges()

	if !rec.HasChangeSet() {
		return nil, nil
	}

	cs, err := rec.Bake(m.now(), principal)
	if err != nil {
		metrics.SaveErrorsTotal.WithLabelValues("bake").Inc()
		return nil, fmt.Errorf("baking change set: %w", err)
	}

	for _, oc := range cs.ObjectChanges {
		metrics.PropertyChangesTotal.Add(float64(len(oc.PropertyChanges)))
	}

	m.session.AddChangeSet(cs)

	return cs, nil
}
