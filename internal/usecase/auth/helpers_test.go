package auth_test

import (
	"account-service/internal/config"
	domainToken "account-service/internal/domain/token"
	"account-service/internal/infrastructure/database/postgres"
	"account-service/internal/infrastructure/database/postgres/postgrestest"
	"account-service/internal/notification"
	"account-service/internal/notification/mocks"
	"account-service/internal/usecase/auth"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "Str0ng!Pass"
)

var testPolicy = domainToken.Policy{
	Activation:    24 * time.Hour,
	PasswordReset: 30 * time.Minute,
	Refresh:       7 * 24 * time.Hour,
}

type testEnv struct {
	t      *testing.T
	ctx    context.Context
	db     *postgres.DB
	users  *postgres.UserRepository
	tokens *postgres.TokenRepository
	sender *mocks.MockSender
	svc    *auth.Service
	guard  *auth.Guard
	now    time.Time
}

func testConfig() *config.Config {
	return &config.Config{
		JWT:      config.JWTConfig{Secret: testSecret, AccessTTL: 15 * time.Minute},
		Security: config.SecurityConfig{BcryptCost: bcrypt.MinCost},
		App:      config.AppConfig{Name: "Accounts", BaseURL: "https://app.example.com"},
	}
}

func newTestEnv(t *testing.T, opts ...auth.Option) *testEnv {
	t.Helper()

	ctrl := gomock.NewController(t)
	db := postgrestest.NewDB(t)
	cfg := testConfig()

	env := &testEnv{
		t:      t,
		ctx:    context.Background(),
		db:     db,
		users:  postgres.NewUserRepository(db),
		tokens: postgres.NewTokenRepository(db),
		sender: mocks.NewMockSender(ctrl),
		guard:  auth.NewGuard(testSecret),
		now:    time.Now().UTC().Truncate(time.Second),
	}

	issuer := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.AccessTTL, testPolicy)
	opts = append([]auth.Option{auth.WithClock(func() time.Time { return env.now })}, opts...)
	env.svc = auth.NewService(env.users, env.tokens, db, issuer, env.sender, cfg, opts...)

	return env
}

type templateMatcher notification.TemplateID

func (m templateMatcher) Matches(x any) bool {
	msg, ok := x.(notification.Message)
	return ok && msg.Template == notification.TemplateID(m)
}

func (m templateMatcher) String() string {
	return fmt.Sprintf("message with template %s", string(m))
}

// expectMail records the next message sent with tmpl.
func (e *testEnv) expectMail(tmpl notification.TemplateID) *notification.Message {
	captured := &notification.Message{}
	e.sender.EXPECT().
		Send(gomock.Any(), templateMatcher(tmpl)).
		DoAndReturn(func(_ context.Context, msg notification.Message) error {
			*captured = msg
			return nil
		})
	return captured
}

// register creates an inactive account and returns its id and activation token.
func (e *testEnv) register(email string) (uuid.UUID, string) {
	e.t.Helper()

	mail := e.expectMail(notification.TemplateActivationRequest)
	resp, err := e.svc.Register(e.ctx, &auth.RegisterRequest{
		Email:           email,
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	require.NoError(e.t, err)
	require.NotEmpty(e.t, mail.Data[notification.DataToken])

	return resp.ID, mail.Data[notification.DataToken]
}

// registerActive creates an account and activates it through the token flow.
func (e *testEnv) registerActive(email string) uuid.UUID {
	e.t.Helper()

	id, activation := e.register(email)
	e.expectMail(notification.TemplateActivationComplete)
	_, err := e.svc.Activate(e.ctx, &auth.ActivateRequest{Token: activation})
	require.NoError(e.t, err)

	return id
}

func (e *testEnv) login(email, password string) *auth.AuthResponse {
	e.t.Helper()

	resp, err := e.svc.Login(e.ctx, &auth.LoginRequest{Email: email, Password: password})
	require.NoError(e.t, err)
	return resp
}
