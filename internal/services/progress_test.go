package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trckr/apiserver/internal/apperr"
	"github.com/trckr/apiserver/types"
)

func seedProgress(t *testing.T) (*ProgressService, *fakeWorkouts, *fakeGoals) {
	t.Helper()
	workouts := &fakeWorkouts{}
	goals := newFakeGoals()
	svc := NewProgressService(workouts, goals, fixedClock())

	ctx := context.Background()
	seed := []types.Workout{
		{UserID: alice, WorkoutType: "running", Duration: 30, Intensity: types.IntensityMedium, Date: mustDate("2024-03-15"), Calories: 360},
		{UserID: alice, WorkoutType: "yoga", Duration: 30, Intensity: types.IntensitySlow, Date: mustDate("2024-03-15"), Calories: 90},
		{UserID: alice, WorkoutType: "cycling", Duration: 60, Intensity: types.IntensityIntense, Date: mustDate("2024-03-10"), Calories: 840},
		{UserID: alice, WorkoutType: "walking", Duration: 20, Intensity: types.IntensitySlow, Date: mustDate("2024-02-01"), Calories: 60},
		{UserID: bob, WorkoutType: "boxing", Duration: 60, Intensity: types.IntensityIntense, Date: mustDate("2024-03-15"), Calories: 960},
	}
	for _, w := range seed {
		_, err := workouts.Create(ctx, w)
		require.NoError(t, err)
	}
	return svc, workouts, goals
}

func TestSnapshotWithoutGoalIsNil(t *testing.T) {
	svc, _, _ := seedProgress(t)

	snapshot, err := svc.Snapshot(context.Background(), alice, "")
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestSnapshotDefaultsToToday(t *testing.T) {
	svc, _, goals := seedProgress(t)
	_, err := goals.Create(context.Background(), types.Goal{UserID: alice, Workouts: 4, Duration: 120, Calories: 900})
	require.NoError(t, err)

	snapshot, err := svc.Snapshot(context.Background(), alice, "")
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	assert.Equal(t, mustDate("2024-03-15"), snapshot.Date)
	assert.Equal(t, 2, snapshot.ActualWorkouts)
	assert.Equal(t, 60, snapshot.ActualDuration)
	assert.Equal(t, 450, snapshot.ActualCalories)
	assert.Equal(t, 50.0, snapshot.WorkoutProgress)
	assert.Equal(t, 50.0, snapshot.DurationProgress)
	assert.Equal(t, 50.0, snapshot.CaloriesProgress)
	assert.Equal(t, 50.0, snapshot.OverallProgress)
	assert.Equal(t, types.StatusGoodProgress, snapshot.Status)
}

func TestSnapshotForExplicitDate(t *testing.T) {
	svc, _, goals := seedProgress(t)
	_, err := goals.Create(context.Background(), types.Goal{UserID: alice, Workouts: 1, Duration: 60, Calories: 500})
	require.NoError(t, err)

	snapshot, err := svc.Snapshot(context.Background(), alice, "2024-03-10")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, 1, snapshot.ActualWorkouts)
	assert.Equal(t, 100.0, snapshot.OverallProgress)
	assert.Equal(t, types.StatusCompleted, snapshot.Status)
}

func TestSnapshotRejectsBadDate(t *testing.T) {
	svc, _, _ := seedProgress(t)

	_, err := svc.Snapshot(context.Background(), alice, "last tuesday")
	requireCode(t, err, apperr.CodeValidation)
}

func TestSnapshotPropagatesStoreFailure(t *testing.T) {
	svc, workouts, _ := seedProgress(t)
	workouts.err = errBoom

	_, err := svc.Snapshot(context.Background(), alice, "")
	requireCode(t, err, apperr.CodeInternal)
}

func TestStats(t *testing.T) {
	svc, _, _ := seedProgress(t)

	stats, err := svc.Stats(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, types.WorkoutStats{
		TotalWorkouts:   4,
		TotalCalories:   1350,
		TotalDuration:   140,
		AverageCalories: 338,
		ThisWeek:        3,
	}, stats)
}

func TestStatsWithoutWorkouts(t *testing.T) {
	svc := NewProgressService(&fakeWorkouts{}, newFakeGoals(), fixedClock())

	stats, err := svc.Stats(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, types.WorkoutStats{}, stats)
}

func TestDailySummary(t *testing.T) {
	svc, _, goals := seedProgress(t)
	_, err := goals.Create(context.Background(), types.Goal{UserID: alice, Workouts: 2, Duration: 60, Calories: 450})
	require.NoError(t, err)

	summary, err := svc.DailySummary(context.Background(), alice, mustDate("2024-03-15"))
	require.NoError(t, err)

	assert.Equal(t, alice, summary.UserID)
	assert.Equal(t, 2, summary.WorkoutCount)
	assert.Equal(t, 60, summary.TotalDuration)
	assert.Equal(t, 450, summary.TotalCalories)
	assert.Len(t, summary.Workouts, 2)
	require.NotNil(t, summary.Progress)
	assert.Equal(t, types.StatusCompleted, summary.Progress.Status)
}

func TestDailySummaryEmptyDay(t *testing.T) {
	svc, _, _ := seedProgress(t)

	summary, err := svc.DailySummary(context.Background(), alice, mustDate("2024-03-01"))
	require.NoError(t, err)
	assert.Zero(t, summary.WorkoutCount)
	assert.Empty(t, summary.Workouts)
	assert.Nil(t, summary.Progress)
}
