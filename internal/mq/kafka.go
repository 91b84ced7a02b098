package mq

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/trckr/apiserver/config"
)

const (
	// AttrKey is the attribute used as the Kafka partition key.
	AttrKey = "key"

	headerMessageID = "message_id"
)

// kafkaReader is the subset of *kafka.Reader used by Subscribe.
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaClient publishes through one writer per topic and consumes through a
// consumer group reader per Subscribe call.
type KafkaClient struct {
	brokers []string
	groupID string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaClient constructs a Kafka client from config.
func NewKafkaClient(cfg config.KafkaConfig) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("kafka group id is required")
	}
	return &KafkaClient{
		brokers: cfg.Brokers,
		groupID: cfg.GroupID,
		writers: make(map[string]*kafka.Writer),
	}, nil
}

// Publish writes a message to the named topic. The AttrKey attribute, when
// present, becomes the message key so related events share a partition.
func (k *KafkaClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("kafka channel is required")
	}

	messageID := uuid.NewString()
	msg := kafka.Message{
		Value:   data,
		Headers: attributesToKafkaHeaders(attrs, messageID),
	}
	if key := attrs[AttrKey]; key != "" {
		msg.Key = []byte(key)
	}

	if err := k.writerForTopic(channel).WriteMessages(ctx, msg); err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes the named topic as part of the configured consumer group
// until ctx is done.
func (k *KafkaClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("kafka channel is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         k.brokers,
		GroupID:         k.groupID,
		Topic:           channel,
		MinBytes:        1,
		MaxBytes:        10e6,
		MaxWait:         time.Second,
		ReadLagInterval: -1,
	})
	defer reader.Close()

	return consumeKafka(ctx, reader, handler)
}

// Close releases all writers.
func (k *KafkaClient) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var firstErr error
	for topic, writer := range k.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(k.writers, topic)
	}
	return firstErr
}

func (k *KafkaClient) writerForTopic(topic string) *kafka.Writer {
	k.mu.Lock()
	defer k.mu.Unlock()

	if writer, ok := k.writers[topic]; ok {
		return writer
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(k.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	k.writers[topic] = writer
	return writer
}

// consumeKafka commits a message only after handler accepts it. A rejected
// message is left uncommitted and the loop moves on.
func consumeKafka(ctx context.Context, reader kafkaReader, handler Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		message := Message{
			ID:         kafkaMessageID(msg),
			Data:       msg.Value,
			Attributes: kafkaHeadersToAttributes(msg.Headers),
		}
		if err := handler(ctx, message); err != nil {
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func attributesToKafkaHeaders(attrs map[string]string, messageID string) []kafka.Header {
	headers := make([]kafka.Header, 0, len(attrs)+1)
	headers = append(headers, kafka.Header{Key: headerMessageID, Value: []byte(messageID)})
	for key, value := range attrs {
		if key == headerMessageID {
			continue
		}
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	return headers
}

func kafkaHeadersToAttributes(headers []kafka.Header) map[string]string {
	attrs := make(map[string]string, len(headers))
	for _, header := range headers {
		if header.Key == headerMessageID {
			continue
		}
		attrs[header.Key] = string(header.Value)
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

func kafkaMessageID(msg kafka.Message) string {
	for _, header := range msg.Headers {
		if header.Key == headerMessageID {
			return string(header.Value)
		}
	}
	return ""
}
