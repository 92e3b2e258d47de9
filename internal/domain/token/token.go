package token

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the purpose of a persisted single-use token.
type Kind string

const (
	KindActivation    Kind = "activation"
	KindPasswordReset Kind = "password_reset"
	KindRefresh       Kind = "refresh"
)

func (k Kind) Valid() bool {
	switch k {
	case KindActivation, KindPasswordReset, KindRefresh:
		return true
	}
	return false
}

// Status is derived, never stored: consumed and expired are both terminal.
type Status string

const (
	StatusIssued   Status = "issued"
	StatusConsumed Status = "consumed"
	StatusExpired  Status = "expired"
)

// Token is a registry record. Only the hash of the opaque value is kept.
type Token struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Kind       Kind
	ValueHash  string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

func New(userID uuid.UUID, kind Kind, valueHash string, issuedAt time.Time, ttl time.Duration) (*Token, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if ttl <= 0 {
		return nil, ErrInvalidLifetime
	}
	if valueHash == "" {
		return nil, ErrEmptyValue
	}

	return &Token{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		ValueHash: valueHash,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(ttl),
	}, nil
}

// Status reports the lifecycle state at now. Consumption wins over expiry.
func (t *Token) Status(now time.Time) Status {
	switch {
	case t.ConsumedAt != nil:
		return StatusConsumed
	case !now.Before(t.ExpiresAt):
		return StatusExpired
	default:
		return StatusIssued
	}
}

func (t *Token) IsUsable(now time.Time) bool {
	return t.Status(now) == StatusIssued
}

// Err converts a non-usable status into the matching registry error.
func (t *Token) Err(now time.Time) error {
	switch t.Status(now) {
	case StatusConsumed:
		return ErrTokenAlreadyUsed
	case StatusExpired:
		return ErrTokenExpired
	}
	return nil
}

// Policy holds the lifetime for each kind.
type Policy struct {
	Activation    time.Duration
	PasswordReset time.Duration
	Refresh       time.Duration
}

var DefaultPolicy = Policy{
	Activation:    24 * time.Hour,
	PasswordReset: 30 * time.Minute,
	Refresh:       7 * 24 * time.Hour,
}

func (p Policy) TTL(kind Kind) time.Duration {
	switch kind {
	case KindActivation:
		return p.Activation
	case KindPasswordReset:
		return p.PasswordReset
	case KindRefresh:
		return p.Refresh
	}
	return 0
}
