package postgres_test

import (
	domainUser "account-service/internal/domain/user"
	"account-service/internal/infrastructure/database/postgres"
	"account-service/internal/infrastructure/database/postgres/postgrestest"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	db := postgrestest.NewDB(t)
	repo := postgres.NewUserRepository(db)

	u := &domainUser.User{Email: "Mixed@Example.com", PasswordHashed: "hash", Role: domainUser.RoleUser}
	require.NoError(t, repo.Create(ctx, u))
	require.NotEqual(t, uuid.Nil, u.ID)

	t.Run("Lookup is case-insensitive", func(t *testing.T) {
		found, err := repo.GetByEmail(ctx, "MIXED@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, found.ID)
		assert.Equal(t, domainUser.RoleUser, found.Role)
		assert.False(t, found.IsActive)
	})

	t.Run("Duplicate email", func(t *testing.T) {
		err := repo.Create(ctx, &domainUser.User{Email: "mixed@example.com", PasswordHashed: "x", Role: domainUser.RoleUser})
		assert.ErrorIs(t, err, domainUser.ErrDuplicateEmail)
	})

	t.Run("Activate and change role", func(t *testing.T) {
		require.NoError(t, repo.SetActive(ctx, u.ID, true))
		require.NoError(t, repo.UpdateRole(ctx, u.ID, domainUser.RoleModerator))

		found, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, found.IsActive)
		assert.Equal(t, domainUser.RoleModerator, found.Role)
	})

	t.Run("Missing user", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, domainUser.ErrUserNotFound)
		assert.ErrorIs(t, repo.UpdatePassword(ctx, uuid.New(), "hash"), domainUser.ErrUserNotFound)
	})

	t.Run("List with filter", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, &domainUser.User{Email: "second@example.com", PasswordHashed: "x", Role: domainUser.RoleUser}))

		all, total, err := repo.List(ctx, domainUser.ListFilter{})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, all, 2)

		inactive := false
		users, total, err := repo.List(ctx, domainUser.ListFilter{Active: &inactive})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		assert.Equal(t, "second@example.com", users[0].Email)
	})
}

func TestWithinTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	db := postgrestest.NewDB(t)
	repo := postgres.NewUserRepository(db)

	err := db.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, &domainUser.User{Email: "tx@example.com", PasswordHashed: "x", Role: domainUser.RoleUser}); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = repo.GetByEmail(ctx, "tx@example.com")
	assert.ErrorIs(t, err, domainUser.ErrUserNotFound)
}
