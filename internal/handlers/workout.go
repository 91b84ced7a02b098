package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/trckr/apiserver/internal/calories"
	"github.com/trckr/apiserver/internal/services"
	"github.com/trckr/apiserver/types"
)

// WorkoutHandler provides HTTP handlers for workouts.
type WorkoutHandler struct {
	workoutService *services.WorkoutService
	archiveService *services.ArchiveService
	logger         *zap.Logger
}

func NewWorkoutHandler(workoutService *services.WorkoutService, archiveService *services.ArchiveService, logger *zap.Logger) *WorkoutHandler {
	return &WorkoutHandler{workoutService: workoutService, archiveService: archiveService, logger: logger}
}

// WorkoutRouter registers workout routes on the given router.
func WorkoutRouter(r chi.Router, handler *WorkoutHandler, requireSession func(http.Handler) http.Handler) {
	r.Get("/types", handler.ListTypes)
	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/", handler.ListWorkouts)
		r.Post("/", handler.CreateWorkout)
		r.Post("/export", handler.ExportWorkouts)
		r.Put("/{workoutID}", handler.UpdateWorkout)
		r.Delete("/{workoutID}", handler.DeleteWorkout)
	})
}

// WorkoutRequest is the body of create and update. Calories is accepted so
// clients may send back a stored record, but it is always recomputed.
type WorkoutRequest struct {
	WorkoutType *string `json:"workout_type"`
	Duration    *int    `json:"duration"`
	Intensity   *string `json:"intensity"`
	Date        *string `json:"date"`
	Calories    *int    `json:"calories,omitempty"`
}

func (req WorkoutRequest) input() (services.WorkoutInput, error) {
	var missing missingFields
	missing.require(req.WorkoutType != nil, "workout_type")
	missing.require(req.Duration != nil, "duration")
	missing.require(req.Intensity != nil, "intensity")
	missing.require(req.Date != nil, "date")
	if err := missing.err(); err != nil {
		return services.WorkoutInput{}, err
	}
	return services.WorkoutInput{
		WorkoutType: *req.WorkoutType,
		Duration:    *req.Duration,
		Intensity:   *req.Intensity,
		Date:        *req.Date,
	}, nil
}

type WorkoutResponse struct {
	Workout types.Workout `json:"workout"`
}

type WorkoutListResponse struct {
	Workouts []types.Workout `json:"workouts"`
}

type WorkoutTypesResponse struct {
	Types       []string          `json:"types"`
	Intensities []types.Intensity `json:"intensities"`
}

// ListTypes returns the workout catalogue.
func (h *WorkoutHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, WorkoutTypesResponse{
		Types:       calories.Types(),
		Intensities: append([]types.Intensity(nil), types.Intensities...),
	}, "")
}

func (h *WorkoutHandler) ListWorkouts(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	workouts, err := h.workoutService.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if workouts == nil {
		workouts = []types.Workout{}
	}
	writeSuccess(w, http.StatusOK, WorkoutListResponse{Workouts: workouts}, "Workouts retrieved successfully")
}

func (h *WorkoutHandler) CreateWorkout(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req WorkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	workout, err := h.workoutService.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, WorkoutResponse{Workout: workout}, "Workout added successfully")
}

func (h *WorkoutHandler) UpdateWorkout(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req WorkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	workout, err := h.workoutService.Update(r.Context(), userID, chi.URLParam(r, "workoutID"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, WorkoutResponse{Workout: workout}, "Workout updated successfully")
}

func (h *WorkoutHandler) DeleteWorkout(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.workoutService.Delete(r.Context(), userID, chi.URLParam(r, "workoutID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "Workout deleted successfully")
}

// ExportWorkouts writes the caller's workouts to object storage.
func (h *WorkoutHandler) ExportWorkouts(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.archiveService.Export(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, result, "Workouts exported")
}
