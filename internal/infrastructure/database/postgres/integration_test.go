package postgres_test

import (
	"account-service/internal/config"
	domainToken "account-service/internal/domain/token"
	domainUser "account-service/internal/domain/user"
	"account-service/internal/infrastructure/database/migrations"
	"account-service/internal/infrastructure/database/postgres"
	"account-service/pkg/utils"
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPostgres starts a throwaway Postgres container with the SQL migrations
// applied. Set POSTGRES_INTEGRATION=1 to run it.
func newPostgres(t *testing.T) *postgres.DB {
	t.Helper()

	if os.Getenv("POSTGRES_INTEGRATION") != "1" {
		t.Skip("POSTGRES_INTEGRATION=1 not set; skipping integration test")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not available: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=accounts_test",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pool.Purge(resource)
	})

	cfg := &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		Database: config.DatabaseConfig{
			Host:            "localhost",
			Port:            resource.GetPort("5432/tcp"),
			User:            "test",
			Password:        "test",
			DBName:          "accounts_test",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Minute,
		},
	}

	pool.MaxWait = 2 * time.Minute
	require.NoError(t, pool.Retry(func() error {
		return migrations.Apply("../../../../migrations", cfg.Database.URL())
	}), "Failed to migrate postgres")

	db, err := postgres.NewDB(cfg)
	require.NoError(t, err, fmt.Sprintf("Failed to connect to %s", cfg.Database.URL()))
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func TestPostgresConcurrentConsume(t *testing.T) {
	db := newPostgres(t)
	ctx := context.Background()
	repo := postgres.NewTokenRepository(db)
	u := createUser(t, db, "pg-race@example.com")
	now := time.Now().UTC()

	hash := utils.HashToken(issueToken(t, repo, u.ID, domainToken.KindRefresh, now, time.Hour))

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Consume(ctx, domainToken.KindRefresh, hash, now); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, domainToken.ErrTokenAlreadyUsed)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestPostgresSchemaConstraints(t *testing.T) {
	db := newPostgres(t)
	ctx := context.Background()
	users := postgres.NewUserRepository(db)

	u := createUser(t, db, "pg-constraints@example.com")

	dup := &domainUser.User{Email: "PG-Constraints@example.com", PasswordHashed: "hash", Role: domainUser.RoleUser}
	assert.ErrorIs(t, users.Create(ctx, dup), domainUser.ErrDuplicateEmail)

	// Tokens go with their owner.
	repo := postgres.NewTokenRepository(db)
	issueToken(t, repo, u.ID, domainToken.KindActivation, time.Now().UTC(), time.Hour)
	require.NoError(t, db.WithContext(ctx).Exec("DELETE FROM users WHERE id = ?", u.ID).Error)

	latest, err := repo.Latest(ctx, u.ID, domainToken.KindActivation)
	assert.Nil(t, latest)
	assert.ErrorIs(t, err, domainToken.ErrTokenNotFound)
}
