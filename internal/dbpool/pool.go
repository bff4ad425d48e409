// Package dbpool opens the PostgreSQL pool shared by the stores, the
// migrator and the readiness probe.
package dbpool

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Options tunes the pool. Zero values fall back to defaults.
type Options struct {
	MaxConns         int32
	MinConns         int32
	StatementTimeout time.Duration
	ApplicationName  string

	// Log receives slow statements at warn and, at trace level, every
	// statement. Nil disables query logging.
	Log           *logrus.Logger
	SlowThreshold time.Duration
}

const (
	defaultMaxConns         = 10
	defaultMinConns         = 2
	defaultStatementTimeout = 30 * time.Second
	defaultSlowThreshold    = 500 * time.Millisecond
	defaultApplicationName  = "changelog"
)

// Pool is the process-wide connection pool. Stores reach the database only
// through its methods so they pick up the read-committed default.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool parses databaseURL, applies opts, and pings the server before
// returning.
func NewPool(ctx context.Context, databaseURL string, opts Options) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	configure(cfg, opts)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Pool{pool: pool}, nil
}

func configure(cfg *pgxpool.Config, opts Options) {
	cfg.MaxConns = defaultMaxConns
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = min(defaultMinConns, cfg.MaxConns)
	if opts.MinConns > 0 {
		cfg.MinConns = min(opts.MinConns, cfg.MaxConns)
	}

	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	timeout := orDefault(opts.StatementTimeout, defaultStatementTimeout)
	params := cfg.ConnConfig.RuntimeParams
	params["statement_timeout"] = strconv.FormatInt(timeout.Milliseconds(), 10)
	if _, set := params["application_name"]; !set {
		params["application_name"] = defaultApplicationName
		if opts.ApplicationName != "" {
			params["application_name"] = opts.ApplicationName
		}
	}

	if opts.Log != nil {
		cfg.ConnConfig.Tracer = &queryTracer{
			log:  opts.Log,
			slow: orDefault(opts.SlowThreshold, defaultSlowThreshold),
		}
	}
}

func orDefault(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

// Exec runs a statement that returns no rows.
func (p *Pool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

// Query runs a statement that returns rows.
func (p *Pool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

// QueryRow runs a statement that returns at most one row.
func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

// Begin starts a read-committed transaction.
func (p *Pool) Begin(ctx context.Context) (pgx.Tx, error) {
	return p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
}

// HealthCheck round-trips a trivial query.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var one int
	if err := p.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("health check query: %w", err)
	}
	return nil
}

// ConnString returns the URL the pool was opened with, for database/sql
// consumers such as goose.
func (p *Pool) ConnString() string {
	return p.pool.Config().ConnString()
}

// Close waits for acquired connections to be released and closes the pool.
func (p *Pool) Close() {
	p.pool.Close()
}
