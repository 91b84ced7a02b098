package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const memoryQueueSize = 1024

// ErrBrokerClosed is returned by MemoryBroker after Close.
var ErrBrokerClosed = errors.New("mq: broker closed")

// MemoryBroker is an in-process Backend with queue semantics: each message is
// delivered to exactly one subscriber of its channel. Rejected messages are
// requeued.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]chan Message
	done   chan struct{}
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		queues: make(map[string]chan Message),
		done:   make(chan struct{}),
	}
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}
	queue, err := b.queue(channel)
	if err != nil {
		return "", err
	}

	msg := Message{
		ID:         uuid.NewString(),
		Data:       append([]byte(nil), data...),
		Attributes: copyAttributes(attrs),
	}
	select {
	case queue <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-b.done:
		return "", ErrBrokerClosed
	}
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}
	queue, err := b.queue(channel)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return ErrBrokerClosed
		case msg := <-queue:
			if err := handler(ctx, msg); err != nil {
				select {
				case queue <- msg:
				default:
				}
			}
		}
	}
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}

func (b *MemoryBroker) queue(channel string) (chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}
	queue, ok := b.queues[channel]
	if !ok {
		queue = make(chan Message, memoryQueueSize)
		b.queues[channel] = queue
	}
	return queue, nil
}

func copyAttributes(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for key, value := range attrs {
		out[key] = value
	}
	return out
}
