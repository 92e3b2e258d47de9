// Package notification renders account emails and hands them to a delivery transport,
// either directly or through a RabbitMQ work queue.
package notification

import (
	"context"
	"fmt"
)

type TemplateID string

const (
	TemplateActivationRequest     TemplateID = "activation_request"
	TemplateActivationComplete    TemplateID = "activation_complete"
	TemplatePasswordResetRequest  TemplateID = "password_reset_request"
	TemplatePasswordResetComplete TemplateID = "password_reset_complete"
)

// Keys understood by the templates.
const (
	DataAppName   = "AppName"
	DataEmail     = "Email"
	DataLink      = "Link"
	DataToken     = "Token"
	DataExpiresAt = "ExpiresAt"
)

func (id TemplateID) Valid() bool {
	_, ok := subjects[id]
	return ok
}

// Message is what the account workflows ask to have delivered.
type Message struct {
	Template  TemplateID        `json:"template"`
	Recipient string            `json:"recipient"`
	Data      map[string]string `json:"data"`
}

func (m Message) Validate() error {
	if !m.Template.Valid() {
		return fmt.Errorf("unknown template %q", m.Template)
	}
	if m.Recipient == "" {
		return fmt.Errorf("message %s has no recipient", m.Template)
	}
	return nil
}

//go:generate mockgen -destination=mocks/mock_sender.go -package=mocks account-service/internal/notification Sender

// Sender accepts a message for delivery. A nil error means the message was
// handed off; it does not guarantee the mailbox received it.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Email is a rendered message ready for a transport.
type Email struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
}

type Transport interface {
	Deliver(ctx context.Context, email Email) error
}
