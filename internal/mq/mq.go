package mq

import (
	"context"
	"fmt"
	"strings"

	"github.com/trckr/apiserver/config"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
	name    string
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend, name string) *MQ {
	return &MQ{backend: backend, name: name}
}

// NewFromConfig builds the backend selected by cfg.Backend. It returns nil
// when messaging is disabled.
func NewFromConfig(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch name {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return New(client, name), nil
	case "pubsub":
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return New(client, name), nil
	case "kafka":
		client, err := NewKafkaClient(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		return New(client, name), nil
	case "memory":
		return New(NewMemoryBroker(), name), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Name returns the configured backend name.
func (m *MQ) Name() string {
	return m.name
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
