package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trckr/apiserver/internal/auth"
	"github.com/trckr/apiserver/internal/services"
	"github.com/trckr/apiserver/internal/store"
	"github.com/trckr/apiserver/types"
)

var testNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

type memUsers struct {
	mu    sync.Mutex
	users map[string]types.User
}

func (m *memUsers) GetByID(_ context.Context, id string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, u types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = uuid.NewString()
	m.users[u.ID] = u
	return u, nil
}

type memWorkouts struct {
	mu       sync.Mutex
	workouts []types.Workout
	listErr  error
}

func (m *memWorkouts) ListByUser(_ context.Context, userID string) ([]types.Workout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []types.Workout
	for _, w := range m.workouts {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memWorkouts) Create(_ context.Context, w types.Workout) (types.Workout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.ID = uuid.NewString()
	m.workouts = append(m.workouts, w)
	return w, nil
}

func (m *memWorkouts) Update(_ context.Context, w types.Workout) (types.Workout, types.Date, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.workouts {
		if existing.ID == w.ID && existing.UserID == w.UserID {
			m.workouts[i] = w
			return w, existing.Date, nil
		}
	}
	return types.Workout{}, types.Date{}, store.ErrNotFound
}

func (m *memWorkouts) Delete(_ context.Context, userID, id string) (types.Workout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.workouts {
		if existing.ID == id && existing.UserID == userID {
			m.workouts = append(m.workouts[:i], m.workouts[i+1:]...)
			return existing, nil
		}
	}
	return types.Workout{}, store.ErrNotFound
}

type memGoals struct {
	mu    sync.Mutex
	goals map[string]types.Goal
}

func (m *memGoals) GetByUser(_ context.Context, userID string) (types.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.goals[userID]; ok {
		return g, nil
	}
	return types.Goal{}, store.ErrNotFound
}

func (m *memGoals) Create(_ context.Context, g types.Goal) (types.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.goals[g.UserID]; ok {
		return types.Goal{}, store.ErrConflict
	}
	g.ID = uuid.NewString()
	m.goals[g.UserID] = g
	return g, nil
}

func (m *memGoals) Update(_ context.Context, g types.Goal) (types.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.goals[g.UserID]; ok && existing.ID == g.ID {
		m.goals[g.UserID] = g
		return g, nil
	}
	return types.Goal{}, store.ErrNotFound
}

func (m *memGoals) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.goals[userID]; ok && existing.ID == id {
		delete(m.goals, userID)
		return nil
	}
	return store.ErrNotFound
}

type prefixHasher struct{}

func (prefixHasher) Hash(plain string) (string, error) { return "h:" + plain, nil }
func (prefixHasher) Verify(plain, digest string) bool  { return digest == "h:"+plain }

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testAPI struct {
	router   *chi.Mux
	tokens   *auth.Tokens
	workouts *memWorkouts
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zap.NewNop()
	clock := services.Clock{Location: time.UTC, Now: func() time.Time { return testNow }}

	users := &memUsers{users: map[string]types.User{}}
	workouts := &memWorkouts{}
	goals := &memGoals{goals: map[string]types.Goal{}}
	tokens := auth.NewTokens("test-secret")

	progressSvc := services.NewProgressService(workouts, goals, clock)
	authHandler := NewAuthHandler(services.NewAuthService(users, prefixHasher{}, tokens, logger), true, logger)
	workoutHandler := NewWorkoutHandler(
		services.NewWorkoutService(workouts, nil, clock, logger),
		services.NewArchiveService(progressSvc, workouts, nil, clock, nil, logger),
		logger,
	)
	goalHandler := NewGoalHandler(services.NewGoalService(goals), logger)
	progressHandler := NewProgressHandler(progressSvc, logger)
	session := RequireSession(tokens, logger)

	router := chi.NewRouter()
	router.Get("/health", NewHealthHandler(stubPinger{}, "test", "1.0.0", logger).Health)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) { AuthRouter(r, authHandler, session) })
		r.Route("/workouts", func(r chi.Router) { WorkoutRouter(r, workoutHandler, session) })
		r.Route("/goals", func(r chi.Router) { GoalRouter(r, goalHandler, session) })
		ProgressRouter(r, progressHandler, session)
	})

	return &testAPI{router: router, tokens: tokens, workouts: workouts}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Message string          `json:"message"`
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func (api *testAPI) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (api *testAPI) signUp(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec, env := api.do(t, http.MethodPost, "/api/auth/signup",
		`{"name":"Test User","email":"`+email+`","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.True(t, env.Success)
	return sessionCookieFrom(t, rec)
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", SessionCookie)
	return nil
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestSignUpSetsSessionCookie(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(t, http.MethodPost, "/api/auth/signup",
		`{"name":"Ada","email":"ada@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	cookie := sessionCookieFrom(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 7*24*60*60, cookie.MaxAge)

	userID, ok := api.tokens.Verify(cookie.Value)
	require.True(t, ok)

	data := decodeData[UserResponse](t, env)
	assert.Equal(t, userID, data.User.ID)
	assert.Equal(t, "ada@example.com", data.User.Email)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestSignUpErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "malformed json", body: `{"name":`, status: http.StatusBadRequest, code: "INVALID_JSON"},
		{name: "unknown field", body: `{"name":"a","email":"a@b.co","password":"secret1","role":"admin"}`, status: http.StatusBadRequest, code: "INVALID_JSON"},
		{name: "trailing data", body: `{"name":"a","email":"a@b.co","password":"secret1"} {}`, status: http.StatusBadRequest, code: "INVALID_JSON"},
		{name: "missing fields", body: `{"email":"a@b.co"}`, status: http.StatusBadRequest, code: "MISSING_FIELDS"},
		{name: "invalid email", body: `{"name":"a","email":"nope","password":"secret1"}`, status: http.StatusBadRequest, code: "INVALID_EMAIL"},
		{name: "weak password", body: `{"name":"a","email":"a@b.co","password":"123"}`, status: http.StatusBadRequest, code: "WEAK_PASSWORD"},
		{name: "wrong type", body: `{"name":1,"email":"a@b.co","password":"secret1"}`, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			rec, env := api.do(t, http.MethodPost, "/api/auth/signup", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
		})
	}
}

func TestSignUpDuplicate(t *testing.T) {
	api := newTestAPI(t)
	api.signUp(t, "dup@example.com")

	rec, env := api.do(t, http.MethodPost, "/api/auth/signup",
		`{"name":"Other","email":"DUP@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "USER_EXISTS", env.Error.Code)
}

func TestSignInAndMe(t *testing.T) {
	api := newTestAPI(t)
	api.signUp(t, "me@example.com")

	rec, _ := api.do(t, http.MethodPost, "/api/auth/signin", `{"email":"me@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookieFrom(t, rec)

	rec, env := api.do(t, http.MethodGet, "/api/auth/me", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "me@example.com", decodeData[UserResponse](t, env).User.Email)
}

func TestSignInFailuresShareCode(t *testing.T) {
	api := newTestAPI(t)
	api.signUp(t, "known@example.com")

	wrongRec, wrong := api.do(t, http.MethodPost, "/api/auth/signin", `{"email":"known@example.com","password":"bad-pass"}`)
	unknownRec, unknown := api.do(t, http.MethodPost, "/api/auth/signin", `{"email":"ghost@example.com","password":"bad-pass"}`)

	assert.Equal(t, http.StatusUnauthorized, wrongRec.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownRec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", wrong.Error.Code)
	assert.Equal(t, wrong.Error, unknown.Error)
}

func TestSignOutClearsCookie(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(t, http.MethodPost, "/api/auth/signout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	cookie := sessionCookieFrom(t, rec)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestRequireSession(t *testing.T) {
	api := newTestAPI(t)
	cookie := api.signUp(t, "gate@example.com")

	rec, env := api.do(t, http.MethodGet, "/api/workouts", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTHENTICATION_ERROR", env.Error.Code)

	rec, env = api.do(t, http.MethodGet, "/api/workouts", "", &http.Cookie{Name: SessionCookie, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTHENTICATION_ERROR", env.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/workouts", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	bearer := httptest.NewRecorder()
	api.router.ServeHTTP(bearer, req)
	assert.Equal(t, http.StatusOK, bearer.Code)
}

func TestWorkoutCRUD(t *testing.T) {
	api := newTestAPI(t)
	cookie := api.signUp(t, "crud@example.com")

	rec, env := api.do(t, http.MethodPost, "/api/workouts",
		`{"workout_type":"running","duration":30,"intensity":"medium","date":"2024-03-15","calories":9999}`, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeData[WorkoutResponse](t, env).Workout
	assert.Equal(t, 360, created.Calories)

	rec, env = api.do(t, http.MethodPut, "/api/workouts/"+created.ID,
		`{"workout_type":"yoga","duration":60,"intensity":"slow","date":"2024-03-14"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeData[WorkoutResponse](t, env).Workout
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 180, updated.Calories)

	rec, env = api.do(t, http.MethodGet, "/api/workouts", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeData[WorkoutListResponse](t, env).Workouts
	require.Len(t, list, 1)
	assert.Equal(t, "yoga", list[0].WorkoutType)

	rec, _ = api.do(t, http.MethodDelete, "/api/workouts/"+created.ID, "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = api.do(t, http.MethodDelete, "/api/workouts/"+created.ID, "", cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND_ERROR", env.Error.Code)
}

func TestEmptyWorkoutListIsArray(t *testing.T) {
	api := newTestAPI(t)
	cookie := api.signUp(t, "empty@example.com")

	rec, env := api.do(t, http.MethodGet, "/api/workouts", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"workouts":[]}`, string(env.Data))
}

func TestWorkoutOwnershipIsHidden(t *testing.T) {
	api := newTestAPI(t)
	owner := api.signUp(t, "owner@example.com")
	intruder := api.signUp(t, "intruder@example.com")

	_, env := api.do(t, http.MethodPost, "/api/workouts",
		`{"workout_type":"running","duration":30,"intensity":"medium","date":"2024-03-15"}`, owner)
	id := decodeData[WorkoutResponse](t, env).Workout.ID

	foreignRec, foreign := api.do(t, http.MethodDelete, "/api/workouts/"+id, "", intruder)
	missingRec, missing := api.do(t, http.MethodDelete, "/api/workouts/"+uuid.NewString(), "", intruder)

	assert.Equal(t, http.StatusNotFound, foreignRec.Code)
	assert.Equal(t, missingRec.Code, foreignRec.Code)
	assert.Equal(t, missing.Error, foreign.Error)
	assert.Len(t, api.workouts.workouts, 1)
}

func TestWorkoutValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	cookie := api.signUp(t, "invalid@example.com")

	rec, env := api.do(t, http.MethodPost, "/api/workouts", `{"workout_type":"running"}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_FIELDS", env.Error.Code)
	assert.JSONEq(t, `{"missing":["duration","intensity","date"]}`, string(env.Error.Details))

	rec, env = api.do(t, http.MethodPost, "/api/workouts",
		`{"workout_type":"running","duration":"thirty","intensity":"medium","date":"2024-03-15"}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Message, "duration")

	rec, env = api.do(t, http.MethodPost, "/api/workouts",
		`{"workout_type":"running","duration":30,"intensity":"medium","date":"2099-01-01"}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Date cannot be in the future", env.Error.Message)
}

func TestWorkoutTypesIsPublic(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(t, http.MethodGet, "/api/workouts/types", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData[WorkoutTypesResponse](t, env)
	assert.Contains(t, data.Types, "running")
	assert.Equal(t, []types.Intensity{"slow", "medium", "intense"}, data.Intensities)
}

func TestExportWithoutStorageHidesDetail(t *testing.T) {
	api := newTestAPI(t)
	cookie := api.signUp(t, "export@example.com")

	rec, env := api.do(t, http.MethodPost, "/api/workouts/export", "", cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "CONFIGURATION_ERROR", env.Error.Code)
	assert.Equal(t, genericErrorMessage, env.Error.Message)
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	api := newTestAPI(t)
	cookie := api.signUp(t, "leak@example.com")
	api.workouts.listErr = errors.New("pq: relation \"workouts\" does not exist")

	rec, env := api.do(t, http.MethodGet, "/api/workouts", "", cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "relation")
}

func TestGoalEndpoints(t *testing.T) {
	api := newTestAPI(t)
	cookie := api.signUp(t, "goal@example.com")

	rec, env := api.do(t, http.MethodGet, "/api/goals", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"goal":null}`, string(env.Data))

	rec, env = api.do(t, http.MethodPost, "/api/goals", `{"workouts":11,"duration":60,"calories":300}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = api.do(t, http.MethodPost, "/api/goals", `{"workouts":2,"duration":60,"calories":300}`, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	goal := decodeData[GoalResponse](t, env).Goal
	require.NotNil(t, goal)

	rec, env = api.do(t, http.MethodPost, "/api/goals", `{"workouts":3,"duration":60,"calories":300}`, cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "GOAL_EXISTS", env.Error.Code)

	rec, env = api.do(t, http.MethodPut, "/api/goals/"+goal.ID, `{"workouts":3,"duration":90,"calories":400}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decodeData[GoalResponse](t, env).Goal.Workouts)

	rec, _ = api.do(t, http.MethodDelete, "/api/goals/"+goal.ID, "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(t, http.MethodPut, "/api/goals/"+goal.ID, `{"workouts":3,"duration":90,"calories":400}`, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressAndStats(t *testing.T) {
	api := newTestAPI(t)
	cookie := api.signUp(t, "progress@example.com")

	rec, env := api.do(t, http.MethodGet, "/api/progress", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"progress":null}`, string(env.Data))

	api.do(t, http.MethodPost, "/api/goals", `{"workouts":2,"duration":60,"calories":300}`, cookie)
	api.do(t, http.MethodPost, "/api/workouts",
		`{"workout_type":"walking","duration":40,"intensity":"medium","date":"2024-03-15"}`, cookie)

	rec, env = api.do(t, http.MethodGet, "/api/progress?date=2024-03-15", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot := decodeData[ProgressResponse](t, env).Progress
	require.NotNil(t, snapshot)
	assert.Equal(t, 50.0, snapshot.WorkoutProgress)
	assert.Equal(t, 66.67, snapshot.DurationProgress)
	assert.Equal(t, 66.67, snapshot.CaloriesProgress)
	assert.Equal(t, 61.11, snapshot.OverallProgress)
	assert.Equal(t, types.StatusGoodProgress, snapshot.Status)

	rec, env = api.do(t, http.MethodGet, "/api/progress?date=soon", "", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = api.do(t, http.MethodGet, "/api/stats", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeData[StatsResponse](t, env).Stats
	assert.Equal(t, 1, stats.TotalWorkouts)
	assert.Equal(t, 200, stats.TotalCalories)
	assert.Equal(t, 1, stats.ThisWeek)
}

func TestHealth(t *testing.T) {
	logger := zap.NewNop()

	rec := httptest.NewRecorder()
	NewHealthHandler(stubPinger{}, "", "2.0.0", logger).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var healthy HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &healthy))
	assert.Equal(t, "healthy", healthy.Status)
	assert.Equal(t, "connected", healthy.Database)
	assert.Equal(t, "unknown", healthy.Environment)
	assert.Equal(t, "2.0.0", healthy.Version)

	rec = httptest.NewRecorder()
	NewHealthHandler(stubPinger{err: errors.New("down")}, "production", "2.0.0", logger).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var degraded HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &degraded))
	assert.Equal(t, "degraded", degraded.Status)
	assert.Equal(t, "disconnected", degraded.Database)
}
