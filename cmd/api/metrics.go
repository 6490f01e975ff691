package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/davidleathers/qaudit-backend/internal/infrastructure/database"
	"github.com/davidleathers/qaudit-backend/internal/metrics"
)

var (
	dbConnectionPoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pgxpool",
			Name:      "connections",
			Help:      "Current number of connections in the pool",
		},
		[]string{"state"},
	)

	dbConnectionPoolMax = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pgxpool",
			Name:      "max_conns",
			Help:      "Maximum number of connections in the pool",
		},
	)
)

// UpdateDBConnectionPoolMetrics publishes a pool snapshot
func UpdateDBConnectionPoolMetrics(s database.PoolStats) {
	dbConnectionPoolSize.WithLabelValues("active").Set(float64(s.AcquiredConns))
	dbConnectionPoolSize.WithLabelValues("idle").Set(float64(s.IdleConns))
	dbConnectionPoolSize.WithLabelValues("total").Set(float64(s.TotalConns))
	dbConnectionPoolMax.Set(float64(s.MaxConns))
}

type statsSource interface {
	Stats() database.PoolStats
}

// watchPool samples pool usage until ctx is done
func watchPool(ctx context.Context, pool statsSource, registry *metrics.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s := pool.Stats()
		UpdateDBConnectionPoolMetrics(s)
		if registry != nil {
			registry.SetDBPoolSize(int64(s.TotalConns))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
