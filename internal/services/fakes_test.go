package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trckr/apiserver/internal/events"
	"github.com/trckr/apiserver/internal/store"
	"github.com/trckr/apiserver/types"
)

var fixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() Clock {
	return Clock{Location: time.UTC, Now: func() time.Time { return fixedNow }}
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]types.User
	err   error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]types.User{}}
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return types.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return types.User{}, f.err
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = fixedNow
	user.UpdatedAt = fixedNow
	f.users[user.ID] = user
	return user, nil
}

// plainHasher prefixes the password so digests are recognisable in tests.
type plainHasher struct {
	verifications int
}

func (h *plainHasher) Hash(plain string) (string, error) {
	return "hashed:" + plain, nil
}

func (h *plainHasher) Verify(plain, digest string) bool {
	h.verifications++
	return digest == "hashed:"+plain
}

type fakeTokens struct {
	err error
}

func (f fakeTokens) Issue(userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-for-" + userID, nil
}

type fakeWorkouts struct {
	mu       sync.Mutex
	workouts []types.Workout
	err      error
}

func (f *fakeWorkouts) ListByUser(_ context.Context, userID string) ([]types.Workout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []types.Workout
	for _, w := range f.workouts {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (f *fakeWorkouts) Create(_ context.Context, w types.Workout) (types.Workout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return types.Workout{}, f.err
	}
	w.ID = uuid.NewString()
	w.CreatedAt = fixedNow
	w.UpdatedAt = fixedNow
	f.workouts = append(f.workouts, w)
	return w, nil
}

func (f *fakeWorkouts) Update(_ context.Context, w types.Workout) (types.Workout, types.Date, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.workouts {
		if existing.ID == w.ID && existing.UserID == w.UserID {
			previous := existing.Date
			w.CreatedAt = existing.CreatedAt
			w.UpdatedAt = fixedNow
			f.workouts[i] = w
			return w, previous, nil
		}
	}
	return types.Workout{}, types.Date{}, store.ErrNotFound
}

func (f *fakeWorkouts) Delete(_ context.Context, userID, id string) (types.Workout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.workouts {
		if existing.ID == id && existing.UserID == userID {
			f.workouts = append(f.workouts[:i], f.workouts[i+1:]...)
			return existing, nil
		}
	}
	return types.Workout{}, store.ErrNotFound
}

type fakeGoals struct {
	mu    sync.Mutex
	goals map[string]types.Goal
	err   error
}

func newFakeGoals() *fakeGoals {
	return &fakeGoals{goals: map[string]types.Goal{}}
}

func (f *fakeGoals) GetByUser(_ context.Context, userID string) (types.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return types.Goal{}, f.err
	}
	g, ok := f.goals[userID]
	if !ok {
		return types.Goal{}, store.ErrNotFound
	}
	return g, nil
}

func (f *fakeGoals) Create(_ context.Context, g types.Goal) (types.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.goals[g.UserID]; ok {
		return types.Goal{}, store.ErrConflict
	}
	g.ID = uuid.NewString()
	g.CreatedAt = fixedNow
	g.UpdatedAt = fixedNow
	f.goals[g.UserID] = g
	return g, nil
}

func (f *fakeGoals) Update(_ context.Context, g types.Goal) (types.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.goals[g.UserID]
	if !ok || existing.ID != g.ID {
		return types.Goal{}, store.ErrNotFound
	}
	g.CreatedAt = existing.CreatedAt
	g.UpdatedAt = fixedNow
	f.goals[g.UserID] = g
	return g, nil
}

func (f *fakeGoals) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.goals[userID]
	if !ok || existing.ID != id {
		return store.ErrNotFound
	}
	delete(f.goals, userID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.WorkoutEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.WorkoutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	p.events = append(p.events, event)
	return p.err
}

type memoryWriter struct {
	mu      sync.Mutex
	objects map[string]any
	err     error
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{objects: map[string]any{}}
}

func (w *memoryWriter) PutJSON(_ context.Context, key string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.objects[key] = value
	return nil
}

func (w *memoryWriter) Bucket() string {
	return "test-bucket"
}

type writeRecorder struct {
	purposes []string
	failures int
}

func (r *writeRecorder) ObserveObjectWritten(purpose string, err error) {
	r.purposes = append(r.purposes, purpose)
	if err != nil {
		r.failures++
	}
}

var errBoom = errors.New("boom")

func mustDate(value string) types.Date {
	d, err := types.ParseDate(value, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}
