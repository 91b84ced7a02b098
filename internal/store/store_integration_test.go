//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/trckr/apiserver/config"
	"github.com/trckr/apiserver/internal/db"
	"github.com/trckr/apiserver/types"
)

func newTestManager(t *testing.T) *db.Manager {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("trckr"),
		postgrescontainer.WithUsername("trckr"),
		postgrescontainer.WithPassword("trckr"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(pg) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := migrate.New("file://../db/migrations", connStr)
	require.NoError(t, err)
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err)
	}
	_, _ = migrator.Close()

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dbConfig := config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "trckr",
		Password: "trckr",
		DBName:   "trckr",
	}
	timeouts := config.TimeoutConfig{
		Connect: 10 * time.Second,
		Read:    5 * time.Second,
		Write:   3 * time.Second,
		Probe:   2 * time.Second,
	}
	m := db.NewManager(db.PostgresDialer(dbConfig), timeouts)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestRepositoriesAgainstPostgres(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	users := NewUserRepository(m)
	workouts := NewWorkoutRepository(m)
	goals := NewGoalRepository(m)

	alice, err := users.Create(ctx, types.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	bob, err := users.Create(ctx, types.User{Name: "Bob", Email: "bob@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	t.Run("email is unique regardless of case", func(t *testing.T) {
		_, err := users.Create(ctx, types.User{Name: "Imposter", Email: "ALICE@example.com", PasswordHash: "x"})
		assert.ErrorIs(t, err, ErrConflict)

		found, err := users.GetByEmail(ctx, "Alice@Example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, found.ID)

		_, err = users.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("workouts list newest day first with insertion order for ties", func(t *testing.T) {
		day := types.Date{Year: 2024, Month: 5, Day: 10}
		first, err := workouts.Create(ctx, types.Workout{UserID: alice.ID, WorkoutType: "running", Duration: 30, Intensity: types.IntensityMedium, Date: day, Calories: 360})
		require.NoError(t, err)
		second, err := workouts.Create(ctx, types.Workout{UserID: alice.ID, WorkoutType: "yoga", Duration: 20, Intensity: types.IntensitySlow, Date: day, Calories: 60})
		require.NoError(t, err)
		newer, err := workouts.Create(ctx, types.Workout{UserID: alice.ID, WorkoutType: "boxing", Duration: 10, Intensity: types.IntensityIntense, Date: day.AddDays(1), Calories: 160})
		require.NoError(t, err)
		_, err = workouts.Create(ctx, types.Workout{UserID: bob.ID, WorkoutType: "walking", Duration: 10, Intensity: types.IntensitySlow, Date: day, Calories: 30})
		require.NoError(t, err)

		list, err := workouts.ListByUser(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{newer.ID, first.ID, second.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
		assert.Equal(t, day, list[1].Date)
		assert.Equal(t, types.IntensityMedium, list[1].Intensity)
	})

	t.Run("workout writes are scoped to the owner", func(t *testing.T) {
		w, err := workouts.Create(ctx, types.Workout{UserID: alice.ID, WorkoutType: "cycling", Duration: 45, Intensity: types.IntensityMedium, Date: types.Date{Year: 2024, Month: 5, Day: 1}, Calories: 450})
		require.NoError(t, err)

		hijack := w
		hijack.UserID = bob.ID
		hijack.Duration = 1
		_, _, err = workouts.Update(ctx, hijack)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = workouts.Delete(ctx, bob.ID, w.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		originalDate := w.Date
		w.Duration = 60
		w.Calories = 600
		w.Date = originalDate.AddDays(2)
		updated, previous, err := workouts.Update(ctx, w)
		require.NoError(t, err)
		assert.Equal(t, 60, updated.Duration)
		assert.Equal(t, originalDate, previous)
		assert.WithinDuration(t, w.CreatedAt, updated.CreatedAt, time.Millisecond)

		deleted, err := workouts.Delete(ctx, alice.ID, w.ID)
		require.NoError(t, err)
		assert.Equal(t, w.Date, deleted.Date)
		_, err = workouts.Delete(ctx, alice.ID, w.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("one goal per user", func(t *testing.T) {
		_, err := goals.GetByUser(ctx, alice.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		goal, err := goals.Create(ctx, types.Goal{UserID: alice.ID, Workouts: 2, Duration: 60, Calories: 300})
		require.NoError(t, err)

		_, err = goals.Create(ctx, types.Goal{UserID: alice.ID, Workouts: 1, Duration: 10, Calories: 50})
		assert.ErrorIs(t, err, ErrConflict)

		goal.Calories = 500
		updated, err := goals.Update(ctx, goal)
		require.NoError(t, err)
		assert.Equal(t, 500, updated.Calories)

		stolen := goal
		stolen.UserID = bob.ID
		_, err = goals.Update(ctx, stolen)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, goals.Delete(ctx, bob.ID, goal.ID), ErrNotFound)

		require.NoError(t, goals.Delete(ctx, alice.ID, goal.ID))
		_, err = goals.GetByUser(ctx, alice.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
