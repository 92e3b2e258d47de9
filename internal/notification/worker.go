package notification

import (
	"account-service/internal/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const maxWorkerBackoff = 30 * time.Second

// Worker drains the mail queue, rendering and delivering each message.
type Worker struct {
	url      string
	queue    string
	prefetch int
	sender   Sender
}

// NewWorker delivers queued messages through sender, normally a DirectSender.
func NewWorker(url, queue string, prefetch int, sender Sender) *Worker {
	if queue == "" {
		queue = DefaultQueueName
	}
	if prefetch <= 0 {
		prefetch = 10
	}
	return &Worker{url: url, queue: queue, prefetch: prefetch, sender: sender}
}

// Run consumes until ctx is cancelled, reconnecting with exponential backoff.
func (w *Worker) Run(ctx context.Context) {
	backoff := time.Second
	for {
		err := w.consume(ctx)
		if ctx.Err() != nil {
			logger.Info("Mail worker stopped", zap.String("queue", w.queue))
			return
		}
		if err == nil {
			backoff = time.Second
			continue
		}

		logger.Warn("Mail worker disconnected",
			zap.String("queue", w.queue),
			zap.Duration("retry_in", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < maxWorkerBackoff {
			backoff *= 2
		}
	}
}

func (w *Worker) consume(ctx context.Context) error {
	conn, err := amqp.Dial(w.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if _, err := declareQueue(ch, w.queue); err != nil {
		return err
	}

	deliveries, err := ch.ConsumeWithContext(ctx, w.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	logger.Info("Mail worker consuming", zap.String("queue", w.queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			w.handleDelivery(ctx, d)
		}
	}
}

func (w *Worker) handleDelivery(ctx context.Context, d amqp.Delivery) {
	if err := w.Handle(ctx, d.Body); err != nil {
		logger.Error("Mail delivery failed",
			zap.String("message_type", d.Type),
			zap.Error(err),
			logger.Event("mail_delivery_failed"),
		)
		// Rejected without requeue so a poison message cannot loop.
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// Handle decodes one queued message body and delivers it.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	if err := w.sender.Send(ctx, msg); err != nil {
		return err
	}

	logger.Debug("Mail delivered",
		zap.String("template", string(msg.Template)),
		logger.Event("mail_delivered"),
	)
	return nil
}
