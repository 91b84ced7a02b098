package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trckr/apiserver/internal/db"
	"github.com/trckr/apiserver/types"
)

// WorkoutRepository handles persistence for workouts. Every statement is
// scoped to the owning user.
type WorkoutRepository struct {
	db *db.Manager
}

func NewWorkoutRepository(m *db.Manager) *WorkoutRepository {
	return &WorkoutRepository{db: m}
}

const workoutColumns = `id, user_id, workout_type, duration, intensity, workout_date, calories, created_at, updated_at`

func scanWorkout(row rowScanner) (types.Workout, error) {
	var workout types.Workout
	err := row.Scan(
		&workout.ID,
		&workout.UserID,
		&workout.WorkoutType,
		&workout.Duration,
		&workout.Intensity,
		&workout.Date,
		&workout.Calories,
		&workout.CreatedAt,
		&workout.UpdatedAt,
	)
	if err != nil {
		return types.Workout{}, translate(err)
	}
	return workout, nil
}

// ListByUser returns the user's workouts, most recent date first and in
// insertion order within a day.
func (r *WorkoutRepository) ListByUser(ctx context.Context, userID string) ([]types.Workout, error) {
	const query = `
		SELECT ` + workoutColumns + `
		FROM workouts
		WHERE user_id = $1
		ORDER BY workout_date DESC, seq ASC`
	return db.Run(ctx, r.db, "list workouts", r.db.Timeouts().Read, func(ctx context.Context, conn db.Conn) ([]types.Workout, error) {
		rows, err := conn.QueryContext(ctx, query, userID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		workouts := make([]types.Workout, 0)
		for rows.Next() {
			workout, err := scanWorkout(rows)
			if err != nil {
				return nil, err
			}
			workouts = append(workouts, workout)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return workouts, nil
	})
}

func (r *WorkoutRepository) Create(ctx context.Context, workout types.Workout) (types.Workout, error) {
	now := time.Now().UTC()
	workout.ID = uuid.NewString()
	workout.CreatedAt = now
	workout.UpdatedAt = now

	const query = `
		INSERT INTO workouts (id, user_id, workout_type, duration, intensity, workout_date, calories, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	err := db.Exec(ctx, r.db, "create workout", r.db.Timeouts().Write, func(ctx context.Context, conn db.Conn) error {
		_, err := conn.ExecContext(
			ctx,
			query,
			workout.ID,
			workout.UserID,
			workout.WorkoutType,
			workout.Duration,
			workout.Intensity,
			workout.Date,
			workout.Calories,
			workout.CreatedAt,
			workout.UpdatedAt,
		)
		return translate(err)
	})
	if err != nil {
		return types.Workout{}, err
	}
	return workout, nil
}

// Update overwrites the mutable fields of a workout the user owns and returns
// it with the date it had before the update. A missing workout and one owned
// by someone else both yield ErrNotFound.
func (r *WorkoutRepository) Update(ctx context.Context, workout types.Workout) (types.Workout, types.Date, error) {
	workout.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE workouts AS w
		SET workout_type = $1,
			duration = $2,
			intensity = $3,
			workout_date = $4,
			calories = $5,
			updated_at = $6
		FROM (
			SELECT id, workout_date
			FROM workouts
			WHERE id = $7 AND user_id = $8
			FOR UPDATE
		) AS previous
		WHERE w.id = previous.id
		RETURNING w.created_at, previous.workout_date`

	type updated struct {
		workout  types.Workout
		previous types.Date
	}
	result, err := db.Run(ctx, r.db, "update workout", r.db.Timeouts().Write, func(ctx context.Context, conn db.Conn) (updated, error) {
		var previous types.Date
		err := conn.QueryRowContext(
			ctx,
			query,
			workout.WorkoutType,
			workout.Duration,
			workout.Intensity,
			workout.Date,
			workout.Calories,
			workout.UpdatedAt,
			workout.ID,
			workout.UserID,
		).Scan(&workout.CreatedAt, &previous)
		if err != nil {
			return updated{}, translate(err)
		}
		return updated{workout: workout, previous: previous}, nil
	})
	if err != nil {
		return types.Workout{}, types.Date{}, err
	}
	return result.workout, result.previous, nil
}

// Delete removes a workout the user owns and returns the removed record.
func (r *WorkoutRepository) Delete(ctx context.Context, userID, id string) (types.Workout, error) {
	const query = `
		DELETE FROM workouts
		WHERE id = $1 AND user_id = $2
		RETURNING ` + workoutColumns
	return db.Run(ctx, r.db, "delete workout", r.db.Timeouts().Write, func(ctx context.Context, conn db.Conn) (types.Workout, error) {
		return scanWorkout(conn.QueryRowContext(ctx, query, id, userID))
	})
}
