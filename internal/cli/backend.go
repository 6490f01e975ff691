package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/davidleathers/qaudit-backend/internal/infrastructure/config"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/database"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/telemetry"
	"github.com/davidleathers/qaudit-backend/internal/service/planning"
	"github.com/davidleathers/qaudit-backend/internal/service/sampling"
)

// OpenDatabase connects to PostgreSQL using the configuration file, with
// --database-url taking precedence over database.url.
func OpenDatabase(ctx context.Context, opts *RootOptions) (*Backend, error) {
	cfg, err := config.LoadFrom(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if opts.DatabaseURL != "" {
		cfg.Database.URL = opts.DatabaseURL
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return nil, err
	}

	pool, err := database.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	closeAll := func() {
		pool.Close()
		_ = logger.Sync()
	}

	auditRepo := database.NewAuditRepository(pool)
	plans, err := planning.NewService(database.NewPlanRepository(pool), pool, auditRepo, logger,
		planning.Config{GenerationLockTTL: cfg.Planning.GenerationLockTTL})
	if err != nil {
		closeAll()
		return nil, err
	}
	samples, err := sampling.NewService(database.NewSampleRepository(pool), pool, auditRepo, logger, sampling.Config{})
	if err != nil {
		closeAll()
		return nil, err
	}

	logger.Debug("qauditctl connected", zap.String("environment", cfg.Environment))
	return &Backend{Plans: plans, Samples: samples, Audit: auditRepo, Close: closeAll}, nil
}
