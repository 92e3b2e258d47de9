// Package migrations applies the versioned SQL files under migrations/ with golang-migrate.
package migrations

import (
	"account-service/internal/logger"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrDirty means a previous migration failed halfway and needs Force.
var ErrDirty = errors.New("database is in a dirty migration state")

type runner struct {
	db *sql.DB
	m  *migrate.Migrate
}

func open(dir, dbURL string) (*runner, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}

	return &runner{db: db, m: m}, nil
}

func (r *runner) close() {
	_, _ = r.m.Close()
	_ = r.db.Close()
}

func (r *runner) version() (uint, bool, error) {
	version, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Apply migrates the database at dbURL to the latest version found in dir.
func Apply(dir, dbURL string) error {
	r, err := open(dir, dbURL)
	if err != nil {
		return err
	}
	defer r.close()

	version, dirty, err := r.version()
	if err != nil {
		return fmt.Errorf("checking migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("%w (version %d)", ErrDirty, version)
	}

	if err := r.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("Database schema is up to date", zap.Uint("version", version))
			return nil
		}
		return fmt.Errorf("applying migrations: %w", err)
	}

	newVersion, _, _ := r.version()
	logger.Info("Database schema migrated",
		zap.Uint("from_version", version),
		zap.Uint("to_version", newVersion),
	)
	return nil
}

// Rollback reverts steps migrations, or all of them when steps is zero.
func Rollback(dir, dbURL string, steps int) error {
	r, err := open(dir, dbURL)
	if err != nil {
		return err
	}
	defer r.close()

	if steps > 0 {
		err = r.m.Steps(-steps)
	} else {
		err = r.m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rolling back migrations: %w", err)
	}
	return nil
}

func Version(dir, dbURL string) (uint, bool, error) {
	r, err := open(dir, dbURL)
	if err != nil {
		return 0, false, err
	}
	defer r.close()

	return r.version()
}

func Force(dir, dbURL string, version int) error {
	r, err := open(dir, dbURL)
	if err != nil {
		return err
	}
	defer r.close()

	if err := r.m.Force(version); err != nil {
		return fmt.Errorf("forcing version: %w", err)
	}
	return nil
}
