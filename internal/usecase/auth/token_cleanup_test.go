package auth_test

import (
	domainToken "account-service/internal/domain/token"
	domainUser "account-service/internal/domain/user"
	"account-service/internal/events"
	eventMocks "account-service/internal/events/mocks"
	"account-service/internal/infrastructure/database/postgres"
	"account-service/internal/infrastructure/database/postgres/postgrestest"
	"account-service/internal/usecase/auth"
	"account-service/pkg/utils"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTokenCleaner(t *testing.T) {
	ctx := context.Background()
	db := postgrestest.NewDB(t)
	tokens := postgres.NewTokenRepository(db)
	users := postgres.NewUserRepository(db)
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	u := &domainUser.User{Email: "cleanup@example.com", PasswordHashed: "x", Role: domainUser.RoleUser}
	require.NoError(t, users.Create(ctx, u))

	add := func(kind domainToken.Kind, issuedAt time.Time, ttl time.Duration) *domainToken.Token {
		raw, err := utils.GenerateOpaqueToken()
		require.NoError(t, err)
		tok, err := domainToken.New(u.ID, kind, utils.HashToken(raw), issuedAt, ttl)
		require.NoError(t, err)
		require.NoError(t, tokens.Create(ctx, tok))
		return tok
	}

	// Five expired tokens force more than one batch of two.
	for i := 0; i < 5; i++ {
		add(domainToken.KindActivation, now.Add(-48*time.Hour), time.Hour)
	}
	live := add(domainToken.KindRefresh, now.Add(-time.Hour), 24*time.Hour)
	recent := add(domainToken.KindRefresh, now.Add(-time.Hour), 24*time.Hour)
	_, err := tokens.Consume(ctx, domainToken.KindRefresh, recent.ValueHash, now.Add(-time.Minute))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	publisher := eventMocks.NewMockPublisher(ctrl)
	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e events.Event) error {
			assert.Equal(t, events.TokensPurged, e.Name)
			assert.EqualValues(t, 5, e.Attributes["count"])
			return nil
		})

	cleaner := auth.NewTokenCleaner(tokens, publisher, 24*time.Hour, 2)

	deleted, err := cleaner.CleanupTokens(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 5, deleted)

	_, err = tokens.GetByHash(ctx, domainToken.KindRefresh, live.ValueHash)
	assert.NoError(t, err)
	_, err = tokens.GetByHash(ctx, domainToken.KindRefresh, recent.ValueHash)
	assert.NoError(t, err, "consumed tokens are kept for the retention window")

	deleted, err = cleaner.CleanupTokens(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	// Past the retention window the consumed token goes too.
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
	deleted, err = cleaner.CleanupTokens(ctx, now.Add(25*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}

func TestStartTokenCleanupJobStopsOnCancel(t *testing.T) {
	db := postgrestest.NewDB(t)
	cleaner := auth.NewTokenCleaner(postgres.NewTokenRepository(db), nil, time.Hour, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cleaner.StartTokenCleanupJob(ctx, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup job did not stop")
	}
}
