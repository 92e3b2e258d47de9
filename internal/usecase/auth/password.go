package auth

import (
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
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChangePassword re-hashes the password and signs the user out everywhere.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, req *ChangePasswordRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	if err := checkPasswordStrength(req.NewPassword); err != nil {
		return err
	}
	if req.OldPassword == req.NewPassword {
		return appErrors.NewValidationError("new password must differ from the current password", nil)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !utils.CheckPassword(user.PasswordHashed, req.OldPassword) {
		logger.Warn("Password change with invalid current password",
			zap.String("user_id", userID.String()),
			logger.Event("password_change_failed_invalid_password"),
		)
		return appErrors.ErrInvalidCredentials
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.clock()
	var revoked int64
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.UpdatePassword(ctx, userID, hashedPassword); err != nil {
			return err
		}
		revoked, err = s.tokens.RevokeAllForUser(ctx, userID, domainToken.KindRefresh, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}

	logger.Info("Password changed",
		zap.String("user_id", userID.String()),
		zap.Int64("revoked_refresh_tokens", revoked),
		logger.Event("password_changed"),
	)
	s.publish(ctx, events.UserPasswordChanged, userID, nil)

	return nil
}

// RequestPasswordReset behaves identically for known and unknown emails from
// the caller's point of view. A token is generated either way; it is stored
// and mailed only when the account exists.
func (s *Service) RequestPasswordReset(ctx context.Context, req *ForgotPasswordRequest) error {
	req.Email = utils.SanitizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return err
	}

	now := s.clock()
	raw, t, err := s.issuer.IssueResetToken(uuid.Nil, now)
	if err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, domainUser.ErrUserNotFound) {
		// Same round trips as a known account, minus the insert and the mail.
		err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			_, err := s.tokens.RevokeAllForUser(ctx, t.UserID, domainToken.KindPasswordReset, now)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to revoke reset tokens: %w", err)
		}
		logger.Info("Password reset requested for unknown email",
			logger.Event("password_reset_unknown_email"),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	t.UserID = user.ID
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.tokens.RevokeAllForUser(ctx, user.ID, domainToken.KindPasswordReset, now); err != nil {
			return err
		}
		if err := s.tokens.Create(ctx, t); err != nil {
			return err
		}
		return s.send(ctx, notification.TemplatePasswordResetRequest, user.Email, map[string]string{
			notification.DataLink:      s.link(resetPath, raw),
			notification.DataToken:     raw,
			notification.DataExpiresAt: t.ExpiresAt.Format(time.RFC1123),
		})
	})
	if err != nil {
		return err
	}

	logger.Info("Password reset token issued",
		zap.String("user_id", user.ID.String()),
		logger.Event("password_reset_requested"),
	)
	return nil
}

func (s *Service) ConfirmPasswordReset(ctx context.Context, req *ResetPasswordRequest) error {
	req.Token = utils.SanitizeToken(req.Token)
	if err := validateRequest(req); err != nil {
		return err
	}
	if err := checkPasswordStrength(req.NewPassword); err != nil {
		return err
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.clock()
	var user *domainUser.User
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.tokens.Consume(ctx, domainToken.KindPasswordReset, utils.HashToken(req.Token), now)
		if err != nil {
			return err
		}
		if err := s.users.UpdatePassword(ctx, t.UserID, hashedPassword); err != nil {
			return err
		}
		if _, err := s.tokens.RevokeAllForUser(ctx, t.UserID, domainToken.KindRefresh, now); err != nil {
			return err
		}
		if _, err := s.tokens.RevokeAllForUser(ctx, t.UserID, domainToken.KindPasswordReset, now); err != nil {
			return err
		}
		user, err = s.users.GetByID(ctx, t.UserID)
		return err
	})
	if err != nil {
		logger.Warn("Password reset failed",
			zap.Error(err),
			logger.Event("password_reset_failed"),
		)
		return err
	}

	logger.Info("Password reset completed",
		zap.String("user_id", user.ID.String()),
		logger.Event("password_reset"),
	)
	s.notify(ctx, notification.TemplatePasswordResetComplete, user.Email, nil)
	s.publish(ctx, events.UserPasswordReset, user.ID, nil)

	return nil
}
