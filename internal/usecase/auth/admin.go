package auth

import (
	domainToken "account-service/internal/domain/token"
	domainUser "account-service/internal/domain/user"
	"account-service/internal/events"
	"account-service/internal/logger"
	"account-service/internal/notification"
	appErrors "account-service/pkg/errors"
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultPageSize = 20

// ActivateUser activates an account without an activation token. Outstanding
// activation tokens are revoked. Activating an active account is a no-op.
func (s *Service) ActivateUser(ctx context.Context, actor *Principal, userID uuid.UUID) (*UserResponse, error) {
	if err := Authorize(actor, domainUser.RoleAdmin); err != nil {
		return nil, err
	}

	now := s.clock()
	var (
		user      *domainUser.User
		activated bool
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.GetByID(ctx, userID)
		if err != nil || user.IsActive {
			return err
		}

		if err := s.users.SetActive(ctx, userID, true); err != nil {
			return err
		}
		if _, err := s.tokens.RevokeAllForUser(ctx, userID, domainToken.KindActivation, now); err != nil {
			return err
		}
		user.IsActive = true
		activated = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if activated {
		logger.Info("User activated by administrator",
			zap.String("user_id", userID.String()),
			zap.String("actor_id", actor.UserID.String()),
			logger.Event("user_activated_by_admin"),
		)
		s.notify(ctx, notification.TemplateActivationComplete, user.Email, nil)
		s.publish(ctx, events.UserActivated, userID, map[string]interface{}{"actor_id": actor.UserID.String()})
	}

	return ToUserResponse(user), nil
}

func (s *Service) ChangeRole(ctx context.Context, actor *Principal, userID uuid.UUID, req *ChangeRoleRequest) (*UserResponse, error) {
	if err := Authorize(actor, domainUser.RoleAdmin); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	role, err := domainUser.ParseRole(req.Role)
	if err != nil {
		return nil, appErrors.NewValidationError(err.Error(), err)
	}
	if actor.UserID == userID && role != domainUser.RoleAdmin {
		return nil, appErrors.NewValidationError("administrators cannot demote themselves", nil)
	}

	now := s.clock()
	var user *domainUser.User
	var revoked int64
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.users.UpdateRole(ctx, userID, role); err != nil {
			return err
		}
		// A demoted user has to log in again to pick up the lower role.
		if !role.AtLeast(current.Role) {
			if revoked, err = s.tokens.RevokeAllForUser(ctx, userID, domainToken.KindRefresh, now); err != nil {
				return err
			}
		}
		user, err = s.users.GetByID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("User role changed",
		zap.String("user_id", userID.String()),
		zap.String("actor_id", actor.UserID.String()),
		zap.String("role", role.String()),
		zap.Int64("revoked_refresh_tokens", revoked),
		logger.Event("user_role_changed"),
	)
	s.publish(ctx, events.UserRoleChanged, userID, map[string]interface{}{
		"role":     role.String(),
		"actor_id": actor.UserID.String(),
	})

	return ToUserResponse(user), nil
}

func (s *Service) ListUsers(ctx context.Context, actor *Principal, req *ListUsersRequest) (*UserListResponse, error) {
	if err := Authorize(actor, domainUser.RoleModerator); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	page, pageSize := req.Page, req.PageSize
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}

	filter := domainUser.ListFilter{
		Active: req.Active,
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	}
	if req.Role != "" {
		role, err := domainUser.ParseRole(req.Role)
		if err != nil {
			return nil, appErrors.NewValidationError(err.Error(), err)
		}
		filter.Role = &role
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &UserListResponse{
		Users:    make([]*UserResponse, 0, len(users)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, u := range users {
		resp.Users = append(resp.Users, ToUserResponse(u))
	}
	return resp, nil
}
