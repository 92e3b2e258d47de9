package auth

import (
	domainToken "account-service/internal/domain/token"
	domainUser "account-service/internal/domain/user"
	"account-service/pkg/utils"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Issuer mints signed access tokens and the opaque values behind registry tokens.
// It never touches storage; callers persist the returned record.
type Issuer struct {
	secret    string
	accessTTL time.Duration
	policy    domainToken.Policy
}

func NewIssuer(secret string, accessTTL time.Duration, policy domainToken.Policy) *Issuer {
	return &Issuer{secret: secret, accessTTL: accessTTL, policy: policy}
}

func (i *Issuer) IssueAccessToken(u *domainUser.User, now time.Time) (string, time.Time, error) {
	return utils.GenerateAccessToken(u.ID, u.Email, u.Role.String(), i.secret, i.accessTTL, now)
}

func (i *Issuer) IssueRefreshToken(userID uuid.UUID, now time.Time) (string, *domainToken.Token, error) {
	return i.issue(userID, domainToken.KindRefresh, now)
}

func (i *Issuer) IssueActivationToken(userID uuid.UUID, now time.Time) (string, *domainToken.Token, error) {
	return i.issue(userID, domainToken.KindActivation, now)
}

func (i *Issuer) IssueResetToken(userID uuid.UUID, now time.Time) (string, *domainToken.Token, error) {
	return i.issue(userID, domainToken.KindPasswordReset, now)
}

func (i *Issuer) issue(userID uuid.UUID, kind domainToken.Kind, now time.Time) (string, *domainToken.Token, error) {
	raw, err := utils.GenerateOpaqueToken()
	if err != nil {
		return "", nil, err
	}

	t, err := domainToken.New(userID, kind, utils.HashToken(raw), now, i.policy.TTL(kind))
	if err != nil {
		return "", nil, fmt.Errorf("issue %s token: %w", kind, err)
	}

	return raw, t, nil
}
