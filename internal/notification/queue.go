package notification

import (
	"account-service/internal/logger"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const DefaultQueueName = "mail.outbound"

// QueueSender publishes messages as persistent JSON onto a durable RabbitMQ
// queue. A Worker performs the actual delivery.
type QueueSender struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewQueueSender(url, queue string) (*QueueSender, error) {
	if queue == "" {
		queue = DefaultQueueName
	}

	s := &QueueSender{url: url, queue: queue}
	if err := s.connect(); err != nil {
		return nil, err
	}

	logger.Info("Mail queue publisher connected", zap.String("queue", queue))
	return s, nil
}

func (s *QueueSender) connect() error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if _, err := declareQueue(ch, s.queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	s.conn = conn
	s.ch = ch
	return nil
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return q, fmt.Errorf("queue declare: %w", err)
	}
	return q, nil
}

func (s *QueueSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(msg.Template),
		Body:         body,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch == nil || s.ch.IsClosed() {
		if err := s.reconnect(); err != nil {
			return err
		}
	}

	if err := s.ch.PublishWithContext(ctx, "", s.queue, false, false, pub); err != nil {
		logger.Warn("Mail publish failed, reconnecting",
			zap.String("queue", s.queue),
			zap.Error(err),
		)
		if rerr := s.reconnect(); rerr != nil {
			return rerr
		}
		if err := s.ch.PublishWithContext(ctx, "", s.queue, false, false, pub); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}

	return nil
}

func (s *QueueSender) reconnect() error {
	s.closeLocked()
	return s.connect()
}

func (s *QueueSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *QueueSender) closeLocked() {
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}
