// Package events carries workout change notifications between the API server
// and the summary worker over the configured message queue.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trckr/apiserver/internal/mq"
	"github.com/trckr/apiserver/types"
)

// Kind names a workout change.
type Kind string

const (
	WorkoutCreated Kind = "workout.created"
	WorkoutUpdated Kind = "workout.updated"
	WorkoutDeleted Kind = "workout.deleted"
)

// AttrKind is the message attribute carrying the event kind.
const AttrKind = "kind"

// WorkoutEvent records that a user's workout changed on Date. PreviousDate is
// set when an update moved the workout to another day.
type WorkoutEvent struct {
	ID           string      `json:"id"`
	Kind         Kind        `json:"kind"`
	UserID       string      `json:"user_id"`
	WorkoutID    string      `json:"workout_id"`
	Date         types.Date  `json:"date"`
	PreviousDate *types.Date `json:"previous_date,omitempty"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

// NewWorkoutEvent builds an event for workout. previous is ignored unless it
// differs from the workout's date.
func NewWorkoutEvent(kind Kind, workout types.Workout, previous types.Date, now time.Time) WorkoutEvent {
	event := WorkoutEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		UserID:     workout.UserID,
		WorkoutID:  workout.ID,
		Date:       workout.Date,
		OccurredAt: now.UTC(),
	}
	if !previous.IsZero() && previous != workout.Date {
		prev := previous
		event.PreviousDate = &prev
	}
	return event
}

// Dates lists the calendar days whose totals the event affects.
func (e WorkoutEvent) Dates() []types.Date {
	if e.PreviousDate != nil {
		return []types.Date{e.Date, *e.PreviousDate}
	}
	return []types.Date{e.Date}
}

func (e WorkoutEvent) validate() error {
	switch e.Kind {
	case WorkoutCreated, WorkoutUpdated, WorkoutDeleted:
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.UserID == "" {
		return errors.New("event has no user id")
	}
	if e.Date.IsZero() {
		return errors.New("event has no date")
	}
	return nil
}

// Decode parses a queue message into a WorkoutEvent.
func Decode(msg mq.Message) (WorkoutEvent, error) {
	var event WorkoutEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return WorkoutEvent{}, fmt.Errorf("decode workout event: %w", err)
	}
	if err := event.validate(); err != nil {
		return WorkoutEvent{}, err
	}
	return event, nil
}

// Recorder receives publish and handling outcomes, typically for metrics.
type Recorder interface {
	ObserveEventPublished(kind string, err error)
	ObserveEventHandled(kind string, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveEventPublished(string, error) {}
func (nopRecorder) ObserveEventHandled(string, error)   {}

// Publisher sends workout events to one channel.
type Publisher struct {
	queue    *mq.MQ
	channel  string
	recorder Recorder
}

func NewPublisher(queue *mq.MQ, channel string, recorder Recorder) *Publisher {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Publisher{queue: queue, channel: channel, recorder: recorder}
}

// Publish encodes and sends event. Events are keyed by user so one user's
// changes stay ordered on partitioned brokers.
func (p *Publisher) Publish(ctx context.Context, event WorkoutEvent) error {
	err := p.publish(ctx, event)
	p.recorder.ObserveEventPublished(string(event.Kind), err)
	return err
}

func (p *Publisher) publish(ctx context.Context, event WorkoutEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.queue.Publish(ctx, p.channel, data, map[string]string{
		AttrKind:           string(event.Kind),
		mq.AttrKey:         event.UserID,
		mq.AttrContentType: "application/json",
	})
	return err
}

// HandlerFunc processes one decoded event.
type HandlerFunc func(ctx context.Context, event WorkoutEvent) error

// Consumer feeds events from a channel into a HandlerFunc.
type Consumer struct {
	queue    *mq.MQ
	channel  string
	handle   HandlerFunc
	logger   *zap.Logger
	recorder Recorder
}

func NewConsumer(queue *mq.MQ, channel string, handle HandlerFunc, logger *zap.Logger, recorder Recorder) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Consumer{queue: queue, channel: channel, handle: handle, logger: logger, recorder: recorder}
}

// Run blocks until ctx is done or the subscription fails.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consuming workout events", zap.String("channel", c.channel), zap.String("backend", c.queue.Name()))
	return c.queue.Subscribe(ctx, c.channel, c.Handle)
}

// Handle processes one message. Undecodable messages are acknowledged and
// dropped so they cannot block the queue; handler failures are returned for
// redelivery.
func (c *Consumer) Handle(ctx context.Context, msg mq.Message) error {
	event, err := Decode(msg)
	if err != nil {
		c.logger.Warn("dropping malformed workout event", zap.String("message_id", msg.ID), zap.Error(err))
		c.recorder.ObserveEventHandled("malformed", err)
		return nil
	}

	err = c.handle(ctx, event)
	c.recorder.ObserveEventHandled(string(event.Kind), err)
	if err != nil {
		c.logger.Error("workout event handler failed",
			zap.String("event_id", event.ID),
			zap.String("kind", string(event.Kind)),
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
