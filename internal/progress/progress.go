// Package progress derives daily goal progress and dashboard totals from workouts.
package progress

import (
	"math"

	"github.com/trckr/apiserver/types"
)

// ThisWeekDays is the window, in days before today, counted by Summarize as "this week".
const ThisWeekDays = 7

// Aggregate compares the workouts recorded on date against goal. It returns
// nil when goal is nil. Each dimension is capped at 100 percent and the
// overall figure is their unweighted mean.
func Aggregate(goal *types.Goal, workouts []types.Workout, date types.Date) *types.ProgressSnapshot {
	if goal == nil {
		return nil
	}

	snapshot := &types.ProgressSnapshot{Date: date}
	for _, w := range workouts {
		if w.Date != date {
			continue
		}
		snapshot.ActualWorkouts++
		snapshot.ActualDuration += w.Duration
		snapshot.ActualCalories += w.Calories
	}

	workoutPct := percent(snapshot.ActualWorkouts, goal.Workouts)
	durationPct := percent(snapshot.ActualDuration, goal.Duration)
	caloriesPct := percent(snapshot.ActualCalories, goal.Calories)
	overall := (workoutPct + durationPct + caloriesPct) / 3

	snapshot.WorkoutProgress = round2(workoutPct)
	snapshot.DurationProgress = round2(durationPct)
	snapshot.CaloriesProgress = round2(caloriesPct)
	snapshot.OverallProgress = round2(overall)
	snapshot.Status = Classify(overall)
	return snapshot
}

// Classify maps an overall percentage onto its status band.
func Classify(overall float64) types.ProgressStatus {
	switch {
	case overall >= 100:
		return types.StatusCompleted
	case overall >= 75:
		return types.StatusAlmostThere
	case overall >= 50:
		return types.StatusGoodProgress
	default:
		return types.StatusKeepGoing
	}
}

// Summarize computes dashboard totals over all workouts. Workouts dated
// within ThisWeekDays of today, today included, count towards ThisWeek.
func Summarize(workouts []types.Workout, today types.Date) types.WorkoutStats {
	var stats types.WorkoutStats
	weekStart := today.AddDays(-ThisWeekDays)
	for _, w := range workouts {
		stats.TotalWorkouts++
		stats.TotalCalories += w.Calories
		stats.TotalDuration += w.Duration
		if !w.Date.Before(weekStart) && !w.Date.After(today) {
			stats.ThisWeek++
		}
	}
	if stats.TotalWorkouts > 0 {
		stats.AverageCalories = int(math.Round(float64(stats.TotalCalories) / float64(stats.TotalWorkouts)))
	}
	return stats
}

// OnDate returns the workouts recorded on date, preserving order.
func OnDate(workouts []types.Workout, date types.Date) []types.Workout {
	out := make([]types.Workout, 0)
	for _, w := range workouts {
		if w.Date == date {
			out = append(out, w)
		}
	}
	return out
}

func percent(actual, target int) float64 {
	if target <= 0 {
		return 100
	}
	return math.Min(float64(actual)/float64(target)*100, 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
