package dbpool

import "github.com/prometheus/client_golang/prometheus"

// Collectors exposes the pool's connection counts as gauges.
func (p *Pool) Collectors() []prometheus.Collector {
	gauge := func(name, help string, value func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: "changelog_db_" + name, Help: help}, value)
	}

	return []prometheus.Collector{
		gauge("conns_total", "Open database connections", func() float64 {
			return float64(p.pool.Stat().TotalConns())
		}),
		gauge("conns_acquired", "Database connections in use", func() float64 {
			return float64(p.pool.Stat().AcquiredConns())
		}),
		gauge("conns_idle", "Idle database connections", func() float64 {
			return float64(p.pool.Stat().IdleConns())
		}),
		gauge("conns_max", "Maximum database connections", func() float64 {
			return float64(p.pool.Stat().MaxConns())
		}),
	}
}
