package main

import (
	"account-service/internal/config"
	"account-service/internal/infrastructure/database/migrations"
	"account-service/internal/logger"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, version, force")
		steps   = flag.Int("steps", 0, "Number of migrations to roll back (down only, 0 = all)")
		version = flag.Int("version", -1, "Target version (force only)")
		dir     = flag.String("dir", "", "Migrations directory (defaults to DB_MIGRATIONS_DIR)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(cfg.Server.Environment); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	migrationsDir := cfg.Database.MigrationsDir
	if *dir != "" {
		migrationsDir = *dir
	}
	dbURL := cfg.Database.URL()

	switch *command {
	case "up":
		if err := migrations.Apply(migrationsDir, dbURL); err != nil {
			logger.Fatal("Migration up failed", zap.Error(err))
		}
	case "down":
		if err := migrations.Rollback(migrationsDir, dbURL, *steps); err != nil {
			logger.Fatal("Migration down failed", zap.Error(err))
		}
		logger.Info("Migrations rolled back", zap.Int("steps", *steps))
	case "version":
		v, dirty, err := migrations.Version(migrationsDir, dbURL)
		if err != nil {
			logger.Fatal("Failed to get version", zap.Error(err))
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
		if dirty {
			os.Exit(1)
		}
	case "force":
		if *version < 0 {
			logger.Fatal("Version required for force command (use -version flag)")
		}
		if err := migrations.Force(migrationsDir, dbURL, *version); err != nil {
			logger.Fatal("Force migration failed", zap.Error(err))
		}
		logger.Info("Forced migration version", zap.Int("version", *version))
	default:
		logger.Fatal("Unknown command (supported: up, down, version, force)", zap.String("command", *command))
	}
}
