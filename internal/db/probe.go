package db

import (
	"context"
	"fmt"

	"github.com/persistorai/changelog/internal/dbpool"
)

// Probe reports database reachability and the applied schema version.
type Probe struct {
	pool *dbpool.Pool
}

// NewProbe creates a Probe backed by pool.
func NewProbe(pool *dbpool.Pool) *Probe {
	return &Probe{pool: pool}
}

// Ping checks that a connection can be acquired and used.
func (p *Probe) Ping(ctx context.Context) error {
	return p.pool.HealthCheck(ctx)
}

// AppliedVersion returns the highest applied goose version, or 0 on a fresh
// database.
func (p *Probe) AppliedVersion(ctx context.Context) (int64, error) {
	var applied int64

	err := p.pool.QueryRow(ctx,
		"SELECT COALESCE(MAX(version_id), 0) FROM goose_db_version WHERE is_applied",
	).Scan(&applied)
	if err != nil {
		return 0, fmt.Errorf("reading applied schema version: %w", err)
	}

	return applied, nil
}
