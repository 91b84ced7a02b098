package types

// ProgressStatus classifies overall progress towards the daily goal.
type ProgressStatus string

const (
	StatusCompleted    ProgressStatus = "Completed"
	StatusAlmostThere  ProgressStatus = "Almost There"
	StatusGoodProgress ProgressStatus = "Good Progress"
	StatusKeepGoing    ProgressStatus = "Keep Going"
)

// ProgressSnapshot compares one day's workout totals against the user's goal.
// It is derived on demand and never persisted.
type ProgressSnapshot struct {
	// Date is the calendar day the snapshot covers.
	Date Date `json:"date"`

	// ActualWorkouts is the number of workouts on Date.
	ActualWorkouts int `json:"actual_workouts"`

	// ActualDuration is the total minutes trained on Date.
	ActualDuration int `json:"actual_duration"`

	// ActualCalories is the total calories burned on Date.
	ActualCalories int `json:"actual_calories"`

	// WorkoutProgress is ActualWorkouts as a percentage of the goal, capped at 100.
	WorkoutProgress float64 `json:"workout_progress"`

	// DurationProgress is ActualDuration as a percentage of the goal, capped at 100.
	DurationProgress float64 `json:"duration_progress"`

	// CaloriesProgress is ActualCalories as a percentage of the goal, capped at 100.
	CaloriesProgress float64 `json:"calories_progress"`

	// OverallProgress is the unweighted mean of the three dimension percentages.
	OverallProgress float64 `json:"overall_progress"`

	// Status is the band OverallProgress falls into.
	Status ProgressStatus `json:"status"`
}

// DailySummary is the archived record of one user's day, written by the worker.
// Progress is nil when the user has no goal.
type DailySummary struct {
	UserID        string            `json:"user_id"`
	Date          Date              `json:"date"`
	WorkoutCount  int               `json:"workout_count"`
	TotalDuration int               `json:"total_duration"`
	TotalCalories int               `json:"total_calories"`
	Workouts      []Workout         `json:"workouts"`
	Progress      *ProgressSnapshot `json:"progress,omitempty"`
}
