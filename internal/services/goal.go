package services

import (
	"context"
	"errors"

	"github.com/trckr/apiserver/internal/apperr"
	"github.com/trckr/apiserver/internal/store"
	"github.com/trckr/apiserver/types"
)

// Goal field bounds, inclusive.
const (
	MinGoalWorkouts = 1
	MaxGoalWorkouts = 10
	MinGoalDuration = 10
	MaxGoalDuration = 600
	MinGoalCalories = 50
	MaxGoalCalories = 2000
)

// GoalRepository defines persistence operations for goals.
type GoalRepository interface {
	GetByUser(ctx context.Context, userID string) (types.Goal, error)
	Create(ctx context.Context, goal types.Goal) (types.Goal, error)
	Update(ctx context.Context, goal types.Goal) (types.Goal, error)
	Delete(ctx context.Context, userID, id string) error
}

type GoalInput struct {
	Workouts int
	Duration int
	Calories int
}

// GoalService encapsulates goal use-cases. A user has at most one goal.
type GoalService struct {
	repo GoalRepository
}

func NewGoalService(repo GoalRepository) *GoalService {
	return &GoalService{repo: repo}
}

// Get returns the user's goal, or nil when none is set.
func (s *GoalService) Get(ctx context.Context, userID string) (*types.Goal, error) {
	goal, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, wrapStoreErr(err, "Failed to load goal")
	}
	return &goal, nil
}

// Create validates bounds before checking for an existing goal.
func (s *GoalService) Create(ctx context.Context, userID string, in GoalInput) (types.Goal, error) {
	if err := validateGoal(in); err != nil {
		return types.Goal{}, err
	}

	if _, err := s.repo.GetByUser(ctx, userID); err == nil {
		return types.Goal{}, goalExists()
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.Goal{}, wrapStoreErr(err, "Failed to load goal")
	}

	goal, err := s.repo.Create(ctx, types.Goal{
		UserID:   userID,
		Workouts: in.Workouts,
		Duration: in.Duration,
		Calories: in.Calories,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Goal{}, goalExists()
		}
		return types.Goal{}, wrapStoreErr(err, "Failed to save goal")
	}
	return goal, nil
}

func (s *GoalService) Update(ctx context.Context, userID, goalID string, in GoalInput) (types.Goal, error) {
	if err := validateGoal(in); err != nil {
		return types.Goal{}, err
	}
	if !validID(goalID) {
		return types.Goal{}, goalNotFound()
	}

	goal, err := s.repo.Update(ctx, types.Goal{
		ID:       goalID,
		UserID:   userID,
		Workouts: in.Workouts,
		Duration: in.Duration,
		Calories: in.Calories,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Goal{}, goalNotFound()
		}
		return types.Goal{}, wrapStoreErr(err, "Failed to update goal")
	}
	return goal, nil
}

func (s *GoalService) Delete(ctx context.Context, userID, goalID string) error {
	if !validID(goalID) {
		return goalNotFound()
	}
	if err := s.repo.Delete(ctx, userID, goalID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return goalNotFound()
		}
		return wrapStoreErr(err, "Failed to delete goal")
	}
	return nil
}

func validateGoal(in GoalInput) error {
	var v validator
	v.check(in.Workouts >= MinGoalWorkouts && in.Workouts <= MaxGoalWorkouts, "workouts", "Workouts goal must be between 1 and 10")
	v.check(in.Duration >= MinGoalDuration && in.Duration <= MaxGoalDuration, "duration", "Duration goal must be between 10 and 600 minutes")
	v.check(in.Calories >= MinGoalCalories && in.Calories <= MaxGoalCalories, "calories", "Calories goal must be between 50 and 2000")
	return v.err()
}

func goalExists() error {
	return apperr.Conflict(apperr.CodeGoalExists, "A goal already exists; update it instead")
}

func goalNotFound() error {
	return apperr.NotFound("Goal not found")
}
