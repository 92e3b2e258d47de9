package auth_test

import (
	domainToken "account-service/internal/domain/token"
	domainUser "account-service/internal/domain/user"
	"account-service/internal/events"
	eventMocks "account-service/internal/events/mocks"
	"account-service/internal/notification"
	"account-service/internal/usecase/auth"
	appErrors "account-service/pkg/errors"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	admin     = &auth.Principal{UserID: uuid.New(), Email: "admin@example.com", Role: domainUser.RoleAdmin}
	moderator = &auth.Principal{UserID: uuid.New(), Email: "mod@example.com", Role: domainUser.RoleModerator}
	member    = &auth.Principal{UserID: uuid.New(), Email: "user@example.com", Role: domainUser.RoleUser}
)

type eventNamed string

func (m eventNamed) Matches(x any) bool {
	e, ok := x.(events.Event)
	return ok && e.Name == string(m)
}

func (m eventNamed) String() string {
	return "event " + string(m)
}

func TestAdminActivateUser(t *testing.T) {
	t.Run("Forbidden below admin", func(t *testing.T) {
		env := newTestEnv(t)
		id, _ := env.register("pending@example.com")

		_, err := env.svc.ActivateUser(env.ctx, moderator, id)
		assert.ErrorIs(t, err, appErrors.ErrForbidden)

		u, err := env.users.GetByID(env.ctx, id)
		require.NoError(t, err)
		assert.False(t, u.IsActive)
	})

	t.Run("Success revokes the activation token", func(t *testing.T) {
		env := newTestEnv(t)
		id, activation := env.register("manual@example.com")

		env.expectMail(notification.TemplateActivationComplete)
		resp, err := env.svc.ActivateUser(env.ctx, admin, id)
		require.NoError(t, err)
		assert.True(t, resp.IsActive)

		_, err = env.svc.Activate(env.ctx, &auth.ActivateRequest{Token: activation})
		assert.ErrorIs(t, err, appErrors.ErrTokenAlreadyUsed)

		latest, err := env.tokens.Latest(env.ctx, id, domainToken.KindActivation)
		require.NoError(t, err)
		assert.Equal(t, domainToken.StatusConsumed, latest.Status(env.now))

		// Second activation is a no-op without another email.
		_, err = env.svc.ActivateUser(env.ctx, admin, id)
		assert.NoError(t, err)
	})

	t.Run("Unknown user", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.ActivateUser(env.ctx, admin, uuid.New())
		assert.ErrorIs(t, err, appErrors.ErrUserNotFound)
	})
}

func TestAdminChangeRole(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := eventMocks.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), eventNamed(events.UserRegistered)).AnyTimes()
	publisher.EXPECT().Publish(gomock.Any(), eventNamed(events.UserActivated)).AnyTimes()

	env := newTestEnv(t, auth.WithPublisher(publisher))
	id := env.registerActive("promote@example.com")

	t.Run("Forbidden for moderators", func(t *testing.T) {
		_, err := env.svc.ChangeRole(env.ctx, moderator, id, &auth.ChangeRoleRequest{Role: "ADMIN"})
		assert.ErrorIs(t, err, appErrors.ErrForbidden)
	})

	t.Run("Invalid role", func(t *testing.T) {
		_, err := env.svc.ChangeRole(env.ctx, admin, id, &auth.ChangeRoleRequest{Role: "ROOT"})
		assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
	})

	t.Run("Success publishes an event and affects new tokens", func(t *testing.T) {
		publisher.EXPECT().
			Publish(gomock.Any(), eventNamed(events.UserRoleChanged)).
			DoAndReturn(func(_ context.Context, e events.Event) error {
				assert.Equal(t, events.UserRoleChanged, e.Name)
				assert.Equal(t, "MODERATOR", e.Attributes["role"])
				return nil
			})

		resp, err := env.svc.ChangeRole(env.ctx, admin, id, &auth.ChangeRoleRequest{Role: "moderator"})
		require.NoError(t, err)
		assert.Equal(t, domainUser.RoleModerator, resp.Role)

		pair := env.login("promote@example.com", testPassword)
		principal, err := env.guard.Authenticate(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, domainUser.RoleModerator, principal.Role)
	})

	t.Run("Demotion revokes refresh tokens", func(t *testing.T) {
		publisher.EXPECT().Publish(gomock.Any(), eventNamed(events.UserRoleChanged))

		pair := env.login("promote@example.com", testPassword)

		resp, err := env.svc.ChangeRole(env.ctx, admin, id, &auth.ChangeRoleRequest{Role: "USER"})
		require.NoError(t, err)
		assert.Equal(t, domainUser.RoleUser, resp.Role)

		_, err = env.svc.Refresh(env.ctx, &auth.RefreshRequest{RefreshToken: pair.RefreshToken})
		assert.ErrorIs(t, err, appErrors.ErrTokenAlreadyUsed)

		fresh := env.login("promote@example.com", testPassword)
		principal, err := env.guard.Authenticate(fresh.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, domainUser.RoleUser, principal.Role)
	})

	t.Run("Promotion keeps refresh tokens", func(t *testing.T) {
		publisher.EXPECT().Publish(gomock.Any(), eventNamed(events.UserRoleChanged))

		pair := env.login("promote@example.com", testPassword)

		_, err := env.svc.ChangeRole(env.ctx, admin, id, &auth.ChangeRoleRequest{Role: "ADMIN"})
		require.NoError(t, err)

		refreshed, err := env.svc.Refresh(env.ctx, &auth.RefreshRequest{RefreshToken: pair.RefreshToken})
		require.NoError(t, err)
		principal, err := env.guard.Authenticate(refreshed.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, domainUser.RoleAdmin, principal.Role)
	})

	t.Run("Admins cannot demote themselves", func(t *testing.T) {
		_, err := env.svc.ChangeRole(env.ctx, admin, admin.UserID, &auth.ChangeRoleRequest{Role: "USER"})
		assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
	})

	t.Run("Unknown user", func(t *testing.T) {
		_, err := env.svc.ChangeRole(env.ctx, admin, uuid.New(), &auth.ChangeRoleRequest{Role: "USER"})
		assert.ErrorIs(t, err, appErrors.ErrUserNotFound)
	})
}

func TestAdminListUsers(t *testing.T) {
	env := newTestEnv(t)
	env.registerActive("one@example.com")
	env.register("two@example.com")

	t.Run("Forbidden for users", func(t *testing.T) {
		_, err := env.svc.ListUsers(env.ctx, member, &auth.ListUsersRequest{})
		assert.ErrorIs(t, err, appErrors.ErrForbidden)
	})

	t.Run("Moderator lists with filter", func(t *testing.T) {
		all, err := env.svc.ListUsers(env.ctx, moderator, &auth.ListUsersRequest{})
		require.NoError(t, err)
		assert.EqualValues(t, 2, all.Total)
		assert.Equal(t, 1, all.Page)

		active := true
		filtered, err := env.svc.ListUsers(env.ctx, moderator, &auth.ListUsersRequest{Active: &active})
		require.NoError(t, err)
		require.Len(t, filtered.Users, 1)
		assert.Equal(t, "one@example.com", filtered.Users[0].Email)
	})
	t.Run("Page beyond the cap is rejected", func(t *testing.T) {
		_, err := env.svc.ListUsers(env.ctx, moderator, &auth.ListUsersRequest{Page: 1 << 40, PageSize: 100})
		assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
	})
}
