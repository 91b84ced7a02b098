package types

import "time"

// Goal holds a user's daily targets. A user has at most one goal.
type Goal struct {
	// ID is the unique identifier of the goal (UUID string).
	ID string `json:"id" db:"id"`

	// UserID identifies the owner. Unique across goals.
	UserID string `json:"user_id" db:"user_id"`

	// Workouts is the target number of workouts per day (1-10).
	Workouts int `json:"workouts" db:"workouts"`

	// Duration is the target total minutes per day (10-600).
	Duration int `json:"duration" db:"duration"`

	// Calories is the target calories burned per day (50-2000).
	Calories int `json:"calories" db:"calories"`

	// CreatedAt is the timestamp when the goal was set.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the goal.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
