package auth

import (
	domainUser "account-service/internal/domain/user"
	appErrors "account-service/pkg/errors"
	"account-service/pkg/utils"
	"time"

	"github.com/google/uuid"
)

// Principal is the caller identity carried by a verified access token.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   domainUser.Role
}

// Guard verifies access tokens without touching storage.
type Guard struct {
	secret string
	now    func() time.Time
}

func NewGuard(secret string) *Guard {
	return &Guard{secret: secret, now: time.Now}
}

func (g *Guard) Authenticate(accessToken string) (*Principal, error) {
	claims, err := utils.ValidateTokenAt(accessToken, g.secret, g.now)
	if err != nil {
		return nil, err
	}

	role, err := domainUser.ParseRole(claims.Role)
	if err != nil {
		return nil, appErrors.ErrTokenInvalid
	}

	return &Principal{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   role,
	}, nil
}

func Authorize(p *Principal, required domainUser.Role) error {
	if p == nil {
		return appErrors.ErrUnauthorized
	}
	if !p.Role.AtLeast(required) {
		return appErrors.ErrForbidden
	}
	return nil
}
