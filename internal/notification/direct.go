package notification

import (
	"context"
	"fmt"
)

// DirectSender renders and delivers in the caller's goroutine.
type DirectSender struct {
	renderer  *Renderer
	transport Transport
}

func NewDirectSender(renderer *Renderer, transport Transport) *DirectSender {
	return &DirectSender{renderer: renderer, transport: transport}
}

func (s *DirectSender) Send(ctx context.Context, msg Message) error {
	email, err := s.renderer.Render(msg)
	if err != nil {
		return err
	}

	if err := s.transport.Deliver(ctx, email); err != nil {
		return fmt.Errorf("deliver %s: %w", msg.Template, err)
	}
	return nil
}
