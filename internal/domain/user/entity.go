package user

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account in the domain
type User struct {
	ID             uuid.UUID
	Email          string
	PasswordHashed string
	Role           Role
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ListFilter narrows the admin user listing.
type ListFilter struct {
	Role   *Role
	Active *bool
	Offset int
	Limit  int
}
