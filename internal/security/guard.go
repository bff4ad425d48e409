// Package security guards the API against credential guessing.
package security

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/metrics"
)

// Policy sets when a client is locked out: MaxFailures failed attempts
// within Window lock it out for Lockout.
type Policy struct {
	MaxFailures int
	Window      time.Duration
	Lockout     time.Duration
}

// DefaultPolicy locks a client out for 5 minutes after 5 failures in 15.
var DefaultPolicy = Policy{
	MaxFailures: 5,
	Window:      15 * time.Minute,
	Lockout:     5 * time.Minute,
}

const (
	sweepInterval = time.Minute
	maxTracked    = 10_000
)

type failures struct {
	count    int
	first    time.Time
	lockedAt time.Time
}

func (f *failures) locked() bool { return !f.lockedAt.IsZero() }

// Guard counts authentication failures per client address.
type Guard struct {
	policy Policy
	log    *logrus.Logger
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*failures
}

// NewGuard creates a Guard and sweeps expired entries until ctx is done.
func NewGuard(ctx context.Context, policy Policy, log *logrus.Logger) *Guard {
	g := newGuard(policy, log, time.Now)
	go g.sweepLoop(ctx)
	return g
}

func newGuard(policy Policy, log *logrus.Logger, now func() time.Time) *Guard {
	return &Guard{
		policy:  policy,
		log:     log,
		now:     now,
		clients: make(map[string]*failures),
	}
}

// Blocked reports whether client is locked out and for how much longer.
func (g *Guard) Blocked(client string) (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	f, ok := g.clients[client]
	if !ok || !f.locked() {
		return 0, false
	}

	left := g.policy.Lockout - g.now().Sub(f.lockedAt)
	return left, left > 0
}

// Fail counts a failed attempt by client and reports whether it caused a
// lockout.
func (g *Guard) Fail(client string) bool {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	f, ok := g.clients[client]
	if !ok || g.expired(f, now) {
		f = &failures{first: now}
		g.clients[client] = f
	}

	f.count++
	if f.count < g.policy.MaxFailures || f.locked() {
		return false
	}

	f.lockedAt = now
	metrics.LockoutsTotal.Inc()
	g.log.WithFields(logrus.Fields{
		"client":   client,
		"failures": f.count,
		"lockout":  g.policy.Lockout.String(),
	}).Warn("auth.locked_out")

	return true
}

// Succeed forgets client's failures.
func (g *Guard) Succeed(client string) {
	g.mu.Lock()
	delete(g.clients, client)
	g.mu.Unlock()
}

// expired reports whether f no longer affects the client: its lockout has
// run out, or it never locked and the window has passed.
func (g *Guard) expired(f *failures, now time.Time) bool {
	if f.locked() {
		return now.Sub(f.lockedAt) >= g.policy.Lockout
	}
	return now.Sub(f.first) >= g.policy.Window
}

func (g *Guard) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

// sweep drops expired entries, then the oldest ones past maxTracked.
func (g *Guard) sweep() {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for client, f := range g.clients {
		if g.expired(f, now) {
			delete(g.clients, client)
		}
	}

	if over := len(g.clients) - maxTracked; over > 0 {
		g.dropOldest(over)
	}
}

// dropOldest removes the n entries whose first failure is oldest. The
// caller holds g.mu.
func (g *Guard) dropOldest(n int) {
	clients := make([]string, 0, len(g.clients))
	for client := range g.clients {
		clients = append(clients, client)
	}

	slices.SortFunc(clients, func(a, b string) int {
		return g.clients[a].first.Compare(g.clients[b].first)
	})

	for _, client := range clients[:n] {
		delete(g.clients, client)
	}
}
