// Package events publishes account lifecycle notifications for other services.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	UserRegistered      = "user.registered"
	UserActivated       = "user.activated"
	UserPasswordChanged = "user.password_changed"
	UserPasswordReset   = "user.password_reset"
	UserRoleChanged     = "user.role_changed"
	TokensPurged        = "tokens.purged"
)

type Event struct {
	Name       string                 `json:"event"`
	UserID     *uuid.UUID             `json:"user_id,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func New(name string, userID *uuid.UUID, attrs map[string]interface{}) Event {
	return Event{
		Name:       name,
		UserID:     userID,
		Attributes: attrs,
		OccurredAt: time.Now().UTC(),
	}
}

//go:generate mockgen -destination=mocks/mock_publisher.go -package=mocks account-service/internal/events Publisher

// Publisher is best-effort: callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error {
	return nil
}
