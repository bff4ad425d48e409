// Package store persists the change log in PostgreSQL.
//
// Stores embed Base for the shared pool and logger. Writes that must share
// a transaction with primary mutations take the pgx.Tx explicitly; reads go
// straight to the pool.
package store

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/dbpool"
)

const defaultQueryTimeout = 30 * time.Second

// Base holds what every store needs. QueryTimeout bounds each read; zero
// means 30s.
type Base struct {
	Pool         *dbpool.Pool
	Log          *logrus.Logger
	QueryTimeout time.Duration
}

// withTimeout bounds ctx by the query timeout. An earlier deadline on ctx
// still wins.
func (b Base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d := b.QueryTimeout
	if d <= 0 {
		d = defaultQueryTimeout
	}
	return context.WithTimeout(ctx, d)
}
