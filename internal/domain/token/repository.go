package token

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the token registry shared by all token kinds.
type Repository interface {
	Create(ctx context.Context, token *Token) error
	GetByHash(ctx context.Context, kind Kind, valueHash string) (*Token, error)
	// Latest returns the most recently issued token of kind for the user.
	Latest(ctx context.Context, userID uuid.UUID, kind Kind) (*Token, error)

	// Consume atomically marks an issued token consumed. Of any number of
	// concurrent callers for the same value, exactly one succeeds.
	Consume(ctx context.Context, kind Kind, valueHash string, now time.Time) (*Token, error)
	// Revoke marks the token consumed; already consumed or expired tokens are left as they are.
	Revoke(ctx context.Context, kind Kind, valueHash string, now time.Time) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, kind Kind, now time.Time) (int64, error)

	FindStale(ctx context.Context, now, consumedBefore time.Time, limit int) ([]*Token, error)
	// DeleteStale removes the given ids, re-checking staleness so a record
	// that changed since it was read is kept.
	DeleteStale(ctx context.Context, ids []uuid.UUID, now, consumedBefore time.Time) (int64, error)
}
