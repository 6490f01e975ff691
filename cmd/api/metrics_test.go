package main

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/davidleathers/qaudit-backend/internal/infrastructure/database"
)

type fixedStats database.PoolStats

func (f fixedStats) Stats() database.PoolStats {
	return database.PoolStats(f)
}

func TestWatchPool_PublishesSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	watchPool(ctx, fixedStats{TotalConns: 7, IdleConns: 4, AcquiredConns: 3, MaxConns: 25}, nil, time.Hour)

	assert.Equal(t, 3.0, testutil.ToFloat64(dbConnectionPoolSize.WithLabelValues("active")))
	assert.Equal(t, 4.0, testutil.ToFloat64(dbConnectionPoolSize.WithLabelValues("idle")))
	assert.Equal(t, 7.0, testutil.ToFloat64(dbConnectionPoolSize.WithLabelValues("total")))
	assert.Equal(t, 25.0, testutil.ToFloat64(dbConnectionPoolMax))
}
