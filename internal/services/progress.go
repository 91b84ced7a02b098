package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/trckr/apiserver/internal/apperr"
	"github.com/trckr/apiserver/internal/progress"
	"github.com/trckr/apiserver/internal/store"
	"github.com/trckr/apiserver/types"
)

// WorkoutLister reads a user's workouts.
type WorkoutLister interface {
	ListByUser(ctx context.Context, userID string) ([]types.Workout, error)
}

// GoalReader reads a user's goal.
type GoalReader interface {
	GetByUser(ctx context.Context, userID string) (types.Goal, error)
}

// ProgressService derives progress snapshots, dashboard stats and daily
// summaries from stored workouts and goals.
type ProgressService struct {
	workouts WorkoutLister
	goals    GoalReader
	clock    Clock
}

func NewProgressService(workouts WorkoutLister, goals GoalReader, clock Clock) *ProgressService {
	return &ProgressService{workouts: workouts, goals: goals, clock: clock}
}

// Today returns the current calendar day in the configured zone.
func (s *ProgressService) Today() types.Date {
	return s.clock.Today()
}

// Snapshot computes progress for the day named by rawDate, or today when
// rawDate is empty. It returns nil when the user has no goal.
func (s *ProgressService) Snapshot(ctx context.Context, userID, rawDate string) (*types.ProgressSnapshot, error) {
	date := s.clock.Today()
	if strings.TrimSpace(rawDate) != "" {
		parsed, err := s.clock.ParseDate(rawDate)
		if err != nil {
			return nil, apperr.ValidationCode(apperr.CodeValidation, "Date must be a valid calendar date (YYYY-MM-DD)",
				[]FieldError{{Field: "date", Message: err.Error()}})
		}
		date = parsed
	}

	goal, workouts, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return progress.Aggregate(goal, workouts, date), nil
}

// Stats computes dashboard totals over all of the user's workouts.
func (s *ProgressService) Stats(ctx context.Context, userID string) (types.WorkoutStats, error) {
	workouts, err := s.workouts.ListByUser(ctx, userID)
	if err != nil {
		return types.WorkoutStats{}, wrapStoreErr(err, "Failed to load workouts")
	}
	return progress.Summarize(workouts, s.clock.Today()), nil
}

// DailySummary collects one day's workouts, totals and progress.
func (s *ProgressService) DailySummary(ctx context.Context, userID string, date types.Date) (types.DailySummary, error) {
	goal, workouts, err := s.load(ctx, userID)
	if err != nil {
		return types.DailySummary{}, err
	}

	onDay := progress.OnDate(workouts, date)
	summary := types.DailySummary{
		UserID:   userID,
		Date:     date,
		Workouts: onDay,
		Progress: progress.Aggregate(goal, onDay, date),
	}
	for _, w := range onDay {
		summary.WorkoutCount++
		summary.TotalDuration += w.Duration
		summary.TotalCalories += w.Calories
	}
	return summary, nil
}

// load reads the goal and the workouts concurrently. goal is nil when unset.
func (s *ProgressService) load(ctx context.Context, userID string) (*types.Goal, []types.Workout, error) {
	var (
		goal     *types.Goal
		workouts []types.Workout
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.goals.GetByUser(gctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return wrapStoreErr(err, "Failed to load goal")
		}
		goal = &found
		return nil
	})
	g.Go(func() error {
		list, err := s.workouts.ListByUser(gctx, userID)
		if err != nil {
			return wrapStoreErr(err, "Failed to load workouts")
		}
		workouts = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return goal, workouts, nil
}
