package postgres_test

import (
	domainToken "account-service/internal/domain/token"
	domainUser "account-service/internal/domain/user"
	"account-service/internal/infrastructure/database/postgres"
	"account-service/internal/infrastructure/database/postgres/postgrestest"
	"account-service/pkg/utils"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createUser(t *testing.T, db *postgres.DB, email string) *domainUser.User {
	t.Helper()

	u := &domainUser.User{Email: email, PasswordHashed: "hash", Role: domainUser.RoleUser}
	require.NoError(t, postgres.NewUserRepository(db).Create(context.Background(), u))
	return u
}

func issueToken(t *testing.T, repo *postgres.TokenRepository, userID uuid.UUID, kind domainToken.Kind, issuedAt time.Time, ttl time.Duration) string {
	t.Helper()

	raw, err := utils.GenerateOpaqueToken()
	require.NoError(t, err)

	tok, err := domainToken.New(userID, kind, utils.HashToken(raw), issuedAt, ttl)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), tok))

	return raw
}

func TestTokenRepositoryConsume(t *testing.T) {
	ctx := context.Background()
	db := postgrestest.NewDB(t)
	repo := postgres.NewTokenRepository(db)
	u := createUser(t, db, "consume@example.com")
	now := time.Now().UTC()

	t.Run("Success - first consume wins, second reports already used", func(t *testing.T) {
		raw := issueToken(t, repo, u.ID, domainToken.KindActivation, now, time.Hour)

		tok, err := repo.Consume(ctx, domainToken.KindActivation, utils.HashToken(raw), now)
		require.NoError(t, err)
		assert.Equal(t, u.ID, tok.UserID)
		require.NotNil(t, tok.ConsumedAt)

		_, err = repo.Consume(ctx, domainToken.KindActivation, utils.HashToken(raw), now.Add(time.Second))
		assert.ErrorIs(t, err, domainToken.ErrTokenAlreadyUsed)
	})

	t.Run("Expired", func(t *testing.T) {
		raw := issueToken(t, repo, u.ID, domainToken.KindPasswordReset, now.Add(-2*time.Hour), time.Hour)

		_, err := repo.Consume(ctx, domainToken.KindPasswordReset, utils.HashToken(raw), now)
		assert.ErrorIs(t, err, domainToken.ErrTokenExpired)
	})

	t.Run("Unknown value", func(t *testing.T) {
		_, err := repo.Consume(ctx, domainToken.KindRefresh, utils.HashToken("nope"), now)
		assert.ErrorIs(t, err, domainToken.ErrTokenNotFound)
	})

	t.Run("Kind mismatch is not found", func(t *testing.T) {
		raw := issueToken(t, repo, u.ID, domainToken.KindRefresh, now, time.Hour)

		_, err := repo.Consume(ctx, domainToken.KindActivation, utils.HashToken(raw), now)
		assert.ErrorIs(t, err, domainToken.ErrTokenNotFound)
	})
}

func TestTokenRepositoryConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	db := postgrestest.NewDB(t)
	repo := postgres.NewTokenRepository(db)
	u := createUser(t, db, "race@example.com")
	now := time.Now().UTC()

	raw := issueToken(t, repo, u.ID, domainToken.KindRefresh, now, time.Hour)
	hash := utils.HashToken(raw)

	const workers = 8
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		successes   int
		alreadyUsed int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Consume(ctx, domainToken.KindRefresh, hash, now)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, domainToken.ErrTokenAlreadyUsed):
				alreadyUsed++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, alreadyUsed)
}

func TestTokenRepositoryRevoke(t *testing.T) {
	ctx := context.Background()
	db := postgrestest.NewDB(t)
	repo := postgres.NewTokenRepository(db)
	u := createUser(t, db, "revoke@example.com")
	now := time.Now().UTC()

	t.Run("Idempotent", func(t *testing.T) {
		raw := issueToken(t, repo, u.ID, domainToken.KindRefresh, now, time.Hour)
		hash := utils.HashToken(raw)

		require.NoError(t, repo.Revoke(ctx, domainToken.KindRefresh, hash, now))
		require.NoError(t, repo.Revoke(ctx, domainToken.KindRefresh, hash, now.Add(time.Minute)))

		tok, err := repo.GetByHash(ctx, domainToken.KindRefresh, hash)
		require.NoError(t, err)
		assert.Equal(t, domainToken.StatusConsumed, tok.Status(now))
		assert.WithinDuration(t, now, *tok.ConsumedAt, time.Millisecond)
	})

	t.Run("Unknown value", func(t *testing.T) {
		err := repo.Revoke(ctx, domainToken.KindRefresh, utils.HashToken("missing"), now)
		assert.ErrorIs(t, err, domainToken.ErrTokenNotFound)
	})

	t.Run("All for user only touches live tokens of the kind", func(t *testing.T) {
		other := createUser(t, db, "other@example.com")
		a := issueToken(t, repo, u.ID, domainToken.KindRefresh, now, time.Hour)
		b := issueToken(t, repo, u.ID, domainToken.KindRefresh, now, time.Hour)
		reset := issueToken(t, repo, u.ID, domainToken.KindPasswordReset, now, time.Hour)
		foreign := issueToken(t, repo, other.ID, domainToken.KindRefresh, now, time.Hour)

		count, err := repo.RevokeAllForUser(ctx, u.ID, domainToken.KindRefresh, now)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		for _, raw := range []string{a, b} {
			_, err := repo.Consume(ctx, domainToken.KindRefresh, utils.HashToken(raw), now)
			assert.ErrorIs(t, err, domainToken.ErrTokenAlreadyUsed)
		}

		_, err = repo.Consume(ctx, domainToken.KindPasswordReset, utils.HashToken(reset), now)
		assert.NoError(t, err)
		_, err = repo.Consume(ctx, domainToken.KindRefresh, utils.HashToken(foreign), now)
		assert.NoError(t, err)
	})
}

func TestTokenRepositoryLatest(t *testing.T) {
	ctx := context.Background()
	db := postgrestest.NewDB(t)
	repo := postgres.NewTokenRepository(db)
	u := createUser(t, db, "latest@example.com")
	now := time.Now().UTC()

	_, err := repo.Latest(ctx, u.ID, domainToken.KindActivation)
	assert.ErrorIs(t, err, domainToken.ErrTokenNotFound)

	issueToken(t, repo, u.ID, domainToken.KindActivation, now.Add(-time.Hour), 24*time.Hour)
	newest := issueToken(t, repo, u.ID, domainToken.KindActivation, now, 24*time.Hour)

	tok, err := repo.Latest(ctx, u.ID, domainToken.KindActivation)
	require.NoError(t, err)
	assert.Equal(t, utils.HashToken(newest), tok.ValueHash)
}

func TestTokenRepositoryStale(t *testing.T) {
	ctx := context.Background()
	db := postgrestest.NewDB(t)
	repo := postgres.NewTokenRepository(db)
	u := createUser(t, db, "stale@example.com")
	now := time.Now().UTC()
	retention := 24 * time.Hour

	expired := issueToken(t, repo, u.ID, domainToken.KindActivation, now.Add(-48*time.Hour), time.Hour)
	live := issueToken(t, repo, u.ID, domainToken.KindRefresh, now, time.Hour)
	oldConsumed := issueToken(t, repo, u.ID, domainToken.KindRefresh, now.Add(-72*time.Hour), 30*24*time.Hour)
	_, err := repo.Consume(ctx, domainToken.KindRefresh, utils.HashToken(oldConsumed), now.Add(-48*time.Hour))
	require.NoError(t, err)

	stale, err := repo.FindStale(ctx, now, now.Add(-retention), 100)
	require.NoError(t, err)

	ids := domainToken.PurgePlan(now, retention, stale)
	assert.Len(t, ids, 2)

	// A concurrently refreshed id must survive the delete.
	liveTok, err := repo.GetByHash(ctx, domainToken.KindRefresh, utils.HashToken(live))
	require.NoError(t, err)

	deleted, err := repo.DeleteStale(ctx, append(ids, liveTok.ID), now, now.Add(-retention))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	_, err = repo.GetByHash(ctx, domainToken.KindActivation, utils.HashToken(expired))
	assert.ErrorIs(t, err, domainToken.ErrTokenNotFound)
	_, err = repo.GetByHash(ctx, domainToken.KindRefresh, utils.HashToken(live))
	assert.NoError(t, err)
}
