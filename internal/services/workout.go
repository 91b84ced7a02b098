package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trckr/apiserver/internal/apperr"
	"github.com/trckr/apiserver/internal/calories"
	"github.com/trckr/apiserver/internal/events"
	"github.com/trckr/apiserver/internal/store"
	"github.com/trckr/apiserver/types"
)

const (
	// MaxWorkoutDuration caps a single session at one day.
	MaxWorkoutDuration = 24 * 60

	publishTimeout = 3 * time.Second
)

// WorkoutRepository defines persistence operations for workouts.
type WorkoutRepository interface {
	ListByUser(ctx context.Context, userID string) ([]types.Workout, error)
	Create(ctx context.Context, workout types.Workout) (types.Workout, error)
	Update(ctx context.Context, workout types.Workout) (types.Workout, types.Date, error)
	Delete(ctx context.Context, userID, id string) (types.Workout, error)
}

// EventPublisher is notified after workout writes commit.
type EventPublisher interface {
	Publish(ctx context.Context, event events.WorkoutEvent) error
}

// WorkoutInput is the caller-supplied part of a workout. Date is
// "YYYY-MM-DD" or an RFC 3339 timestamp.
type WorkoutInput struct {
	WorkoutType string
	Duration    int
	Intensity   string
	Date        string
}

// WorkoutService encapsulates workout use-cases. Calories are always derived
// from the validated input.
type WorkoutService struct {
	repo      WorkoutRepository
	publisher EventPublisher
	clock     Clock
	logger    *zap.Logger
}

// NewWorkoutService builds the service. publisher may be nil.
func NewWorkoutService(repo WorkoutRepository, publisher EventPublisher, clock Clock, logger *zap.Logger) *WorkoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkoutService{repo: repo, publisher: publisher, clock: clock, logger: logger}
}

// List returns the user's workouts, newest day first.
func (s *WorkoutService) List(ctx context.Context, userID string) ([]types.Workout, error) {
	workouts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, wrapStoreErr(err, "Failed to load workouts")
	}
	return workouts, nil
}

func (s *WorkoutService) Create(ctx context.Context, userID string, in WorkoutInput) (types.Workout, error) {
	workout, err := s.validate(in)
	if err != nil {
		return types.Workout{}, err
	}
	workout.UserID = userID

	created, err := s.repo.Create(ctx, workout)
	if err != nil {
		return types.Workout{}, wrapStoreErr(err, "Failed to save workout")
	}
	s.notify(ctx, events.WorkoutCreated, created, types.Date{})
	return created, nil
}

// Update re-validates every field and recomputes calories. A workout owned by
// another user is reported exactly like a missing one.
func (s *WorkoutService) Update(ctx context.Context, userID, workoutID string, in WorkoutInput) (types.Workout, error) {
	workout, err := s.validate(in)
	if err != nil {
		return types.Workout{}, err
	}
	if !validID(workoutID) {
		return types.Workout{}, workoutNotFound()
	}
	workout.ID = workoutID
	workout.UserID = userID

	updated, previous, err := s.repo.Update(ctx, workout)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Workout{}, workoutNotFound()
		}
		return types.Workout{}, wrapStoreErr(err, "Failed to update workout")
	}
	s.notify(ctx, events.WorkoutUpdated, updated, previous)
	return updated, nil
}

func (s *WorkoutService) Delete(ctx context.Context, userID, workoutID string) error {
	if !validID(workoutID) {
		return workoutNotFound()
	}
	deleted, err := s.repo.Delete(ctx, userID, workoutID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return workoutNotFound()
		}
		return wrapStoreErr(err, "Failed to delete workout")
	}
	s.notify(ctx, events.WorkoutDeleted, deleted, types.Date{})
	return nil
}

func (s *WorkoutService) validate(in WorkoutInput) (types.Workout, error) {
	workoutType := strings.ToLower(strings.TrimSpace(in.WorkoutType))
	intensity := types.Intensity(strings.ToLower(strings.TrimSpace(in.Intensity)))

	var v validator
	v.check(workoutType != "", "workout_type", "Workout type is required")
	if !v.failed("workout_type") {
		v.check(calories.IsKnownType(workoutType), "workout_type", "Unknown workout type")
	}
	v.check(in.Duration > 0, "duration", "Duration must be a positive number of minutes")
	if !v.failed("duration") {
		v.check(in.Duration <= MaxWorkoutDuration, "duration", "Duration must be at most 1440 minutes")
	}
	v.check(calories.IsValidIntensity(intensity), "intensity", "Intensity must be one of slow, medium, intense")

	date, dateErr := s.clock.ParseDate(in.Date)
	v.check(dateErr == nil, "date", "Date must be a valid calendar date (YYYY-MM-DD)")
	if dateErr == nil {
		v.check(!date.After(s.clock.Today()), "date", "Date cannot be in the future")
	}

	if err := v.err(); err != nil {
		return types.Workout{}, err
	}
	return types.Workout{
		WorkoutType: workoutType,
		Duration:    in.Duration,
		Intensity:   intensity,
		Date:        date,
		Calories:    calories.Calculate(workoutType, in.Duration, intensity),
	}, nil
}

// notify publishes a change event. Failures are logged and never fail the
// request; the write has already committed.
func (s *WorkoutService) notify(ctx context.Context, kind events.Kind, workout types.Workout, previous types.Date) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := events.NewWorkoutEvent(kind, workout, previous, s.clock.now())
	if err := s.publisher.Publish(pubCtx, event); err != nil {
		s.logger.Warn("failed to publish workout event",
			zap.String("kind", string(kind)),
			zap.String("workout_id", workout.ID),
			zap.Error(err),
		)
	}
}

func workoutNotFound() error {
	return apperr.NotFound("Workout not found")
}
