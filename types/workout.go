package types

import "time"

// Intensity scales the per-minute calorie rate of a workout.
type Intensity string

const (
	IntensitySlow    Intensity = "slow"
	IntensityMedium  Intensity = "medium"
	IntensityIntense Intensity = "intense"
)

// Intensities lists the accepted intensity levels in ascending order.
var Intensities = []Intensity{IntensitySlow, IntensityMedium, IntensityIntense}

// Valid reports whether i is one of the accepted intensity levels.
func (i Intensity) Valid() bool {
	switch i {
	case IntensitySlow, IntensityMedium, IntensityIntense:
		return true
	default:
		return false
	}
}

// Workout is a single recorded training session owned by one user.
type Workout struct {
	// ID is the unique identifier of the workout (UUID string).
	ID string `json:"id" db:"id"`

	// UserID identifies the owner. It never changes after creation.
	UserID string `json:"user_id" db:"user_id"`

	// WorkoutType is the activity performed (e.g., "running", "yoga"). It is the
	// key into the calorie rate table.
	WorkoutType string `json:"workout_type" db:"workout_type"`

	// Duration is the length of the session in whole minutes. Always > 0.
	Duration int `json:"duration" db:"duration"`

	// Intensity is the effort level of the session.
	Intensity Intensity `json:"intensity" db:"intensity"`

	// Date is the calendar day the workout took place. Never in the future.
	Date Date `json:"date" db:"workout_date"`

	// Calories is derived from WorkoutType, Duration and Intensity on every
	// write. Client-supplied values are never stored.
	Calories int `json:"calories" db:"calories"`

	// CreatedAt is the timestamp when the workout was recorded.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the workout.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// WorkoutStats are the dashboard totals across all of a user's workouts.
type WorkoutStats struct {
	// TotalWorkouts is the number of recorded workouts.
	TotalWorkouts int `json:"total_workouts"`

	// TotalCalories is the sum of calories over all workouts.
	TotalCalories int `json:"total_calories"`

	// TotalDuration is the sum of durations in minutes.
	TotalDuration int `json:"total_duration"`

	// AverageCalories is TotalCalories / TotalWorkouts rounded to the nearest integer.
	AverageCalories int `json:"average_calories"`

	// ThisWeek counts workouts dated within the last seven days, today included.
	ThisWeek int `json:"this_week"`
}
