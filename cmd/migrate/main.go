package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/davidleathers/qaudit-backend/internal/infrastructure/config"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/database"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/telemetry"
)

type migrator interface {
	Up(steps int) error
	Down(steps int) error
	Version() (uint, bool, error)
}

func main() {
	var (
		configPath  = flag.String("config", config.DefaultConfigPath, "Path to configuration file")
		action      = flag.String("action", "up", "Migration action: up, down, version")
		steps       = flag.Int("steps", 0, "Number of migrations to run (0 = all)")
		databaseURL = flag.String("database-url", "", "Overrides database.url from the configuration")
	)
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	url := cfg.Database.URL
	if *databaseURL != "" {
		url = *databaseURL
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	m, err := database.NewMigrator(url, logger)
	if err != nil {
		logger.Fatal("failed to create migrator", zap.Error(err))
	}

	err = runAction(m, *action, *steps, os.Stdout)
	if closeErr := m.Close(); closeErr != nil {
		logger.Warn("failed to close migrator", zap.Error(closeErr))
	}
	if err != nil {
		logger.Fatal("migration failed", zap.String("action", *action), zap.Error(err))
	}
}

func runAction(m migrator, action string, steps int, out io.Writer) error {
	if steps < 0 {
		return fmt.Errorf("steps must not be negative")
	}
	switch action {
	case "up":
		return m.Up(steps)
	case "down":
		return m.Down(steps)
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "version %d (dirty: %t)\n", v, dirty)
		return err
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}
