package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/qaudit-backend/internal/api/rest"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/cache"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/config"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/database"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/export"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/memory"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/telemetry"
	"github.com/davidleathers/qaudit-backend/internal/metrics"
	"github.com/davidleathers/qaudit-backend/internal/service/planning"
	"github.com/davidleathers/qaudit-backend/internal/service/risk"
	"github.com/davidleathers/qaudit-backend/internal/service/sampling"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("application failed", zap.Error(err))
	}
}

// storage is the set of repository ports the services are built on
type storage struct {
	plans   planning.Repository
	samples sampling.Repository
	risk    risk.Repository
	tx      planning.TxManager
	audit   planning.AuditSink
	checks  []rest.HealthCheck
	close   func()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting qaudit api",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.Storage.Driver),
		zap.Int("port", cfg.Server.Port))

	provider, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version, cfg.Environment)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	registry, err := metrics.NewRegistry("qaudit")
	if err != nil {
		return fmt.Errorf("creating metrics registry: %w", err)
	}

	store, err := openStorage(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}
	defer store.close()

	planOpts := []planning.Option{
		planning.WithExporter(export.NewExcelExporter()),
		planning.WithMetrics(registry),
	}
	routerOpts := []rest.Option{rest.WithMetrics(registry)}
	for _, c := range store.checks {
		routerOpts = append(routerOpts, rest.WithHealthCheck(c))
	}

	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(&cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		planOpts = append(planOpts, planning.WithLocker(cache.NewLocker(client, logger)))
		routerOpts = append(routerOpts,
			rest.WithRateLimiter(cache.NewRedisRateLimiter(client, logger)),
			rest.WithHealthCheck(rest.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}}))
	}

	plans, err := planning.NewService(store.plans, store.tx, store.audit, logger,
		planning.Config{GenerationLockTTL: cfg.Planning.GenerationLockTTL}, planOpts...)
	if err != nil {
		return err
	}
	samples, err := sampling.NewService(store.samples, store.tx, store.audit, logger, sampling.Config{
		DefaultConfidenceLevel:   cfg.Sampling.DefaultConfidenceLevel,
		DefaultPrecisionRate:     cfg.Sampling.DefaultPrecisionRate,
		DefaultExpectedErrorRate: cfg.Sampling.DefaultExpectedErrorRate,
	}, sampling.WithMetrics(registry))
	if err != nil {
		return err
	}
	assessor, err := risk.NewService(store.risk, store.tx, store.audit, logger, risk.WithMetrics(registry))
	if err != nil {
		return err
	}

	handler, err := rest.NewRouter(rest.Services{Plans: plans, Samples: samples, Risk: assessor}, rest.Config{
		Version:           cfg.Version,
		JWTSecret:         cfg.Security.JWTSecret,
		CORSOrigins:       cfg.Security.CORSOrigins,
		RequestsPerSecond: cfg.Security.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.Security.RateLimit.BurstSize,
		ValidateRequests:  cfg.Server.ValidateRequests,
	}, logger, routerOpts...)
	if err != nil {
		return fmt.Errorf("building router: %w", err)
	}

	if err := rest.NewServer(cfg.Server, handler, logger).Start(ctx); err != nil {
		return err
	}
	logger.Info("shut down gracefully")
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, registry *metrics.Registry, logger *zap.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		store := memory.New()
		return &storage{
			plans:   store,
			samples: store,
			risk:    store,
			tx:      store,
			audit:   store,
			close:   func() {},
		}, nil
	}

	pool, err := database.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	go watchPool(ctx, pool, registry, 15*time.Second)

	return &storage{
		plans:   database.NewPlanRepository(pool),
		samples: database.NewSampleRepository(pool),
		risk:    database.NewRiskRepository(pool),
		tx:      pool,
		audit:   database.NewAuditRepository(pool),
		checks:  []rest.HealthCheck{{Name: "database", Check: pool.Ping}},
		close:   pool.Close,
	}, nil
}
