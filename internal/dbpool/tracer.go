package dbpool

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

type traceKey struct{}

type traceStart struct {
	at  time.Time
	sql string
}

// queryTracer logs statements that take longer than slow. Arguments are
// never logged since they carry tracked property values.
type queryTracer struct {
	log  *logrus.Logger
	slow time.Duration
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, traceStart{at: time.Now(), sql: data.SQL})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(traceKey{}).(traceStart)
	if !ok {
		return
	}
	t.finish(start, time.Since(start.at), data)
}

func (t *queryTracer) finish(start traceStart, took time.Duration, data pgx.TraceQueryEndData) {
	entry := t.log.WithFields(logrus.Fields{
		"sql":      compactSQL(start.sql),
		"duration": took.String(),
		"rows":     data.CommandTag.RowsAffected(),
	})

	switch {
	case data.Err != nil:
		entry.WithError(data.Err).Debug("db.query_failed")
	case took >= t.slow:
		entry.Warn("db.slow_query")
	default:
		entry.Trace("db.query")
	}
}

// compactSQL folds whitespace so multi-line statements log on one line.
func compactSQL(sql string) string {
	const maxLen = 200

	s := strings.Join(strings.Fields(sql), " ")
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
