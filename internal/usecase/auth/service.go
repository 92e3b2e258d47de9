package auth

import (
	"account-service/internal/config"
	domainToken "account-service/internal/domain/token"
	domainUser "account-service/internal/domain/user"
	"account-service/internal/events"
	"account-service/internal/logger"
	"account-service/internal/notification"
	appErrors "account-service/pkg/errors"
	"account-service/pkg/utils"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	activationPath  = "/auth/activate"
	resetPath       = "/auth/password/reset"
	tokenTypeBearer = "Bearer"

	defaultHandoffTimeout = 10 * time.Second
)

// Transactor runs fn atomically; repositories given the inner context join the transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements the account use cases
type Service struct {
	users     domainUser.Repository
	tokens    domainToken.Repository
	tx        Transactor
	issuer    *Issuer
	sender    notification.Sender
	publisher events.Publisher

	appName    string
	baseURL    string
	bcryptCost int
	now        func() time.Time

	// handoffTimeout caps mail hand-offs made while a transaction is open.
	handoffTimeout time.Duration

	dummyOnce sync.Once
	dummyHash string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithHandoffTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.handoffTimeout = d
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func NewService(
	users domainUser.Repository,
	tokens domainToken.Repository,
	tx Transactor,
	issuer *Issuer,
	sender notification.Sender,
	cfg *config.Config,
	opts ...Option,
) *Service {
	s := &Service{
		users:      users,
		tokens:     tokens,
		tx:         tx,
		issuer:     issuer,
		sender:     sender,
		publisher:  events.NoopPublisher{},
		appName:    cfg.App.Name,
		baseURL:    cfg.App.BaseURL,
		bcryptCost: cfg.Security.BcryptCost,
		now:        time.Now,

		handoffTimeout: defaultHandoffTimeout,
	}
	if cfg.Mail.SMTP.Timeout > 0 {
		s.handoffTimeout = cfg.Mail.SMTP.Timeout
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*UserResponse, error) {
	req.Email = utils.SanitizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := checkPasswordStrength(req.Password); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, domainUser.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		logger.Warn("Registration attempt with existing email",
			zap.String("email", req.Email),
			logger.Event("registration_failed_duplicate_email"),
		)
		return nil, appErrors.ErrDuplicateEmail
	}

	hashedPassword, err := utils.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domainUser.User{
		Email:          req.Email,
		PasswordHashed: hashedPassword,
		Role:           domainUser.RoleUser,
		IsActive:       false,
	}

	now := s.clock()
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		return s.issueActivation(ctx, user, now)
	})
	if err != nil {
		if errors.Is(err, appErrors.ErrDuplicateEmail) {
			logger.Warn("Registration lost race on email",
				zap.String("email", req.Email),
				logger.Event("registration_failed_duplicate_email"),
			)
		}
		return nil, err
	}

	logger.Info("User registered successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
		logger.Event("user_registered"),
	)
	s.publish(ctx, events.UserRegistered, user.ID, nil)

	return ToUserResponse(user), nil
}

// ResendActivation is silent for unknown and already active accounts.
func (s *Service) ResendActivation(ctx context.Context, req *ResendActivationRequest) error {
	req.Email = utils.SanitizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, domainUser.ErrUserNotFound) {
		logger.Info("Activation resend for unknown email",
			logger.Event("activation_resend_unknown_email"),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsActive {
		logger.Info("Activation resend for active user",
			zap.String("user_id", user.ID.String()),
			logger.Event("activation_resend_already_active"),
		)
		return nil
	}

	now := s.clock()
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		latest, err := s.tokens.Latest(ctx, user.ID, domainToken.KindActivation)
		if err != nil && !errors.Is(err, domainToken.ErrTokenNotFound) {
			return err
		}
		if latest != nil && latest.Status(now) == domainToken.StatusConsumed {
			// The outstanding token was redeemed; nothing is left to resend.
			return appErrors.ErrTokenAlreadyUsed
		}

		if _, err := s.tokens.RevokeAllForUser(ctx, user.ID, domainToken.KindActivation, now); err != nil {
			return err
		}
		return s.issueActivation(ctx, user, now)
	})
	if err != nil {
		return err
	}

	logger.Info("Activation token re-issued",
		zap.String("user_id", user.ID.String()),
		logger.Event("activation_resent"),
	)
	return nil
}

func (s *Service) issueActivation(ctx context.Context, user *domainUser.User, now time.Time) error {
	raw, t, err := s.issuer.IssueActivationToken(user.ID, now)
	if err != nil {
		return err
	}
	if err := s.tokens.Create(ctx, t); err != nil {
		return err
	}

	return s.send(ctx, notification.TemplateActivationRequest, user.Email, map[string]string{
		notification.DataLink:      s.link(activationPath, raw),
		notification.DataToken:     raw,
		notification.DataExpiresAt: t.ExpiresAt.Format(time.RFC1123),
	})
}

func (s *Service) Activate(ctx context.Context, req *ActivateRequest) (*UserResponse, error) {
	req.Token = utils.SanitizeToken(req.Token)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := s.clock()
	var user *domainUser.User
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.tokens.Consume(ctx, domainToken.KindActivation, utils.HashToken(req.Token), now)
		if err != nil {
			return err
		}
		if err := s.users.SetActive(ctx, t.UserID, true); err != nil {
			return err
		}
		user, err = s.users.GetByID(ctx, t.UserID)
		return err
	})
	if err != nil {
		logger.Warn("Account activation failed",
			zap.Error(err),
			logger.Event("activation_failed"),
		)
		return nil, err
	}

	logger.Info("User activated",
		zap.String("user_id", user.ID.String()),
		logger.Event("user_activated"),
	)
	s.notify(ctx, notification.TemplateActivationComplete, user.Email, nil)
	s.publish(ctx, events.UserActivated, user.ID, nil)

	return ToUserResponse(user), nil
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	req.Email = utils.SanitizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domainUser.ErrUserNotFound) {
			// Burn a comparison so unknown emails cost the same as wrong passwords.
			utils.CheckPassword(s.dummyPasswordHash(), req.Password)
			logger.Warn("Login attempt with non-existent email",
				zap.String("email", req.Email),
				logger.Event("user_not_found"),
			)
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !utils.CheckPassword(user.PasswordHashed, req.Password) {
		logger.Warn("Login attempt with invalid password",
			zap.String("user_id", user.ID.String()),
			logger.Event("login_failed_invalid_password"),
		)
		return nil, appErrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		logger.Warn("Login attempt for inactive user",
			zap.String("user_id", user.ID.String()),
			logger.Event("login_failed_inactive_user"),
		)
		return nil, appErrors.ErrAccountInactive
	}

	resp, err := s.issuePair(ctx, user, s.clock())
	if err != nil {
		return nil, err
	}

	logger.Info("User logged in successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role.String()),
		logger.Event("login_success"),
	)

	return resp, nil
}

// Refresh redeems a refresh token and rotates it. The old value is consumed in
// the same transaction that stores its replacement.
func (s *Service) Refresh(ctx context.Context, req *RefreshRequest) (*AuthResponse, error) {
	req.RefreshToken = utils.SanitizeToken(req.RefreshToken)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := s.clock()
	var resp *AuthResponse
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.tokens.Consume(ctx, domainToken.KindRefresh, utils.HashToken(req.RefreshToken), now)
		if err != nil {
			return err
		}

		user, err := s.users.GetByID(ctx, t.UserID)
		if err != nil {
			return err
		}
		if !user.IsActive {
			return appErrors.ErrAccountInactive
		}

		resp, err = s.issuePair(ctx, user, now)
		return err
	})
	if err != nil {
		logger.Warn("Token refresh failed",
			zap.Error(err),
			logger.Event("token_refresh_failed"),
		)
		return nil, err
	}

	logger.Info("Token refreshed",
		zap.String("user_id", resp.User.ID.String()),
		logger.Event("token_refresh_success"),
	)
	return resp, nil
}

// Logout revokes a refresh token. Already consumed or expired tokens succeed.
func (s *Service) Logout(ctx context.Context, req *LogoutRequest) error {
	req.RefreshToken = utils.SanitizeToken(req.RefreshToken)
	if err := validateRequest(req); err != nil {
		return err
	}

	if err := s.tokens.Revoke(ctx, domainToken.KindRefresh, utils.HashToken(req.RefreshToken), s.clock()); err != nil {
		return err
	}

	logger.Info("Refresh token revoked", logger.Event("logout"))
	return nil
}

func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	count, err := s.tokens.RevokeAllForUser(ctx, userID, domainToken.KindRefresh, s.clock())
	if err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}

	logger.Info("All refresh tokens revoked",
		zap.String("user_id", userID.String()),
		zap.Int64("revoked", count),
		logger.Event("logout_all"),
	)
	return nil
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ToUserResponse(user), nil
}

func (s *Service) issuePair(ctx context.Context, user *domainUser.User, now time.Time) (*AuthResponse, error) {
	access, expiresAt, err := s.issuer.IssueAccessToken(user, now)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	raw, t, err := s.issuer.IssueRefreshToken(user.ID, now)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &AuthResponse{
		User:         ToUserResponse(user),
		AccessToken:  access,
		RefreshToken: raw,
		TokenType:    tokenTypeBearer,
		ExpiresAt:    expiresAt.Unix(),
	}, nil
}

// send is used inside transactions: a failure aborts the surrounding workflow.
func (s *Service) send(ctx context.Context, tmpl notification.TemplateID, email string, data map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, s.handoffTimeout)
	defer cancel()

	if err := s.sender.Send(ctx, s.message(tmpl, email, data)); err != nil {
		logger.Error("Failed to hand off email",
			zap.String("template", string(tmpl)),
			zap.Error(err),
			logger.Event("notification_failed"),
		)
		return appErrors.Unavailable("notification sender", err)
	}
	return nil
}

// notify is for messages sent after the state change committed.
func (s *Service) notify(ctx context.Context, tmpl notification.TemplateID, email string, data map[string]string) {
	if err := s.sender.Send(ctx, s.message(tmpl, email, data)); err != nil {
		logger.Warn("Failed to send follow-up email",
			zap.String("template", string(tmpl)),
			zap.Error(err),
			logger.Event("notification_failed"),
		)
	}
}

func (s *Service) message(tmpl notification.TemplateID, email string, data map[string]string) notification.Message {
	if data == nil {
		data = make(map[string]string, 2)
	}
	data[notification.DataAppName] = s.appName
	data[notification.DataEmail] = email

	return notification.Message{Template: tmpl, Recipient: email, Data: data}
}

func (s *Service) publish(ctx context.Context, name string, userID uuid.UUID, attrs map[string]interface{}) {
	if err := s.publisher.Publish(ctx, events.New(name, &userID, attrs)); err != nil {
		logger.Warn("Failed to publish account event",
			zap.String("name", name),
			zap.Error(err),
		)
	}
}

func (s *Service) link(path, raw string) string {
	return s.baseURL + path + "?token=" + url.QueryEscape(raw)
}

func (s *Service) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = utils.HashPassword(uuid.NewString(), s.bcryptCost)
	})
	return s.dummyHash
}

func validateRequest(req interface{}) error {
	if err := utils.ValidateStruct(req); err != nil {
		return appErrors.NewValidationError(utils.ValidationMessage(err), err)
	}
	return nil
}

func checkPasswordStrength(password string) error {
	if err := utils.ValidatePassword(password); err != nil {
		return appErrors.NewAppError(appErrors.CodeWeakPassword, err.Error(), appErrors.ErrWeakPassword)
	}
	return nil
}
