// Package postgrestest provides an in-memory database with the production schema
// for repository, service and handler tests.
package postgrestest

import (
	"account-service/internal/infrastructure/database/postgres"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func NewDB(t *testing.T) *postgres.DB {
	t.Helper()

	// A single shared connection keeps every query on the same in-memory database
	// and serializes transactions the way row locks would.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", uuid.NewString())

	cfg := postgres.GormConfig(true)
	cfg.Logger = gormLogger.Discard

	gdb, err := gorm.Open(sqlite.Open(dsn), cfg)
	require.NoError(t, err, "Failed to create test database")

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	db := &postgres.DB{DB: gdb}
	require.NoError(t, db.AutoMigrate(), "Failed to migrate test database")

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}
