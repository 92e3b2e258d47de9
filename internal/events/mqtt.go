package events

import (
	"account-service/internal/config"
	"account-service/internal/logger"
	"account-service/pkg/mqtt"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

type MQTTPublisher struct {
	client *mqtt.Client
	prefix string
	qos    byte
}

func NewMQTTPublisher(cfg *config.MQTTConfig) (*MQTTPublisher, error) {
	client := mqtt.NewClient(&mqtt.Config{
		Broker:               cfg.Broker,
		ClientID:             cfg.ClientID,
		Username:             cfg.Username,
		Password:             cfg.Password,
		CleanSession:         true,
		KeepAlive:            30,
		ConnectTimeout:       10,
		AutoReconnect:        true,
		MaxReconnectInterval: time.Minute,
	}, logger.Named("mqtt"))

	if err := client.Connect(); err != nil {
		return nil, err
	}

	return &MQTTPublisher{
		client: client,
		prefix: cfg.TopicPrefix,
		qos:    byte(cfg.QoS),
	}, nil
}

func (p *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if !p.client.IsConnected() {
		return fmt.Errorf("publish %s: mqtt client not connected", event.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, Topic(p.prefix, event.Name), p.qos, false, payload); err != nil {
		return fmt.Errorf("publish %s: %w", event.Name, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect()
}

// Topic maps an event name like user.registered to <prefix>/user/registered.
func Topic(prefix, name string) string {
	topic := strings.ReplaceAll(name, ".", "/")
	if prefix == "" {
		return topic
	}
	return strings.TrimRight(prefix, "/") + "/" + topic
}

// NewPublisher connects to the configured broker. Without a broker, or when the
// broker is unreachable, events are dropped. The returned func releases the connection.
func NewPublisher(cfg *config.MQTTConfig) (Publisher, func()) {
	if cfg.Broker == "" {
		return NoopPublisher{}, func() {}
	}

	p, err := NewMQTTPublisher(cfg)
	if err != nil {
		logger.Warn("MQTT broker unavailable, account events disabled",
			zap.String("broker", cfg.Broker),
			zap.Error(err),
		)
		return NoopPublisher{}, func() {}
	}

	logger.Info("Publishing account events", zap.String("broker", cfg.Broker), zap.String("topic_prefix", cfg.TopicPrefix))
	return p, p.Close
}
