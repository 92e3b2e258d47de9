package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the credential store. Accounts are never physically deleted.
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]*User, int64, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	SetActive(ctx context.Context, userID uuid.UUID, active bool) error
	UpdateRole(ctx context.Context, userID uuid.UUID, role Role) error
}
