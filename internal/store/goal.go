package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trckr/apiserver/internal/db"
	"github.com/trckr/apiserver/types"
)

// GoalRepository handles persistence for goals. A user has at most one goal,
// enforced by a unique index on user_id.
type GoalRepository struct {
	db *db.Manager
}

func NewGoalRepository(m *db.Manager) *GoalRepository {
	return &GoalRepository{db: m}
}

const goalColumns = `id, user_id, workouts, duration, calories, created_at, updated_at`

func scanGoal(row rowScanner) (types.Goal, error) {
	var goal types.Goal
	err := row.Scan(
		&goal.ID,
		&goal.UserID,
		&goal.Workouts,
		&goal.Duration,
		&goal.Calories,
		&goal.CreatedAt,
		&goal.UpdatedAt,
	)
	if err != nil {
		return types.Goal{}, translate(err)
	}
	return goal, nil
}

func (r *GoalRepository) GetByUser(ctx context.Context, userID string) (types.Goal, error) {
	const query = `SELECT ` + goalColumns + ` FROM goals WHERE user_id = $1`
	return db.Run(ctx, r.db, "get goal", r.db.Timeouts().Read, func(ctx context.Context, conn db.Conn) (types.Goal, error) {
		return scanGoal(conn.QueryRowContext(ctx, query, userID))
	})
}

// Create inserts goal. A second goal for the same user yields ErrConflict.
func (r *GoalRepository) Create(ctx context.Context, goal types.Goal) (types.Goal, error) {
	now := time.Now().UTC()
	goal.ID = uuid.NewString()
	goal.CreatedAt = now
	goal.UpdatedAt = now

	const query = `
		INSERT INTO goals (id, user_id, workouts, duration, calories, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	err := db.Exec(ctx, r.db, "create goal", r.db.Timeouts().Write, func(ctx context.Context, conn db.Conn) error {
		_, err := conn.ExecContext(
			ctx,
			query,
			goal.ID,
			goal.UserID,
			goal.Workouts,
			goal.Duration,
			goal.Calories,
			goal.CreatedAt,
			goal.UpdatedAt,
		)
		return translate(err)
	})
	if err != nil {
		return types.Goal{}, err
	}
	return goal, nil
}

func (r *GoalRepository) Update(ctx context.Context, goal types.Goal) (types.Goal, error) {
	goal.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE goals
		SET workouts = $1,
			duration = $2,
			calories = $3,
			updated_at = $4
		WHERE id = $5 AND user_id = $6
		RETURNING created_at`
	return db.Run(ctx, r.db, "update goal", r.db.Timeouts().Write, func(ctx context.Context, conn db.Conn) (types.Goal, error) {
		err := conn.QueryRowContext(
			ctx,
			query,
			goal.Workouts,
			goal.Duration,
			goal.Calories,
			goal.UpdatedAt,
			goal.ID,
			goal.UserID,
		).Scan(&goal.CreatedAt)
		if err != nil {
			return types.Goal{}, translate(err)
		}
		return goal, nil
	})
}

func (r *GoalRepository) Delete(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM goals WHERE id = $1 AND user_id = $2`
	return db.Exec(ctx, r.db, "delete goal", r.db.Timeouts().Write, func(ctx context.Context, conn db.Conn) error {
		result, err := conn.ExecContext(ctx, query, id, userID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
