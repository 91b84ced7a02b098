package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/trckr/apiserver/internal/services"
	"github.com/trckr/apiserver/types"
)

// GoalHandler provides HTTP handlers for the daily goal.
type GoalHandler struct {
	goalService *services.GoalService
	logger      *zap.Logger
}

func NewGoalHandler(goalService *services.GoalService, logger *zap.Logger) *GoalHandler {
	return &GoalHandler{goalService: goalService, logger: logger}
}

// GoalRouter registers goal routes on the given router. Every route needs a session.
func GoalRouter(r chi.Router, handler *GoalHandler, requireSession func(http.Handler) http.Handler) {
	r.Use(requireSession)
	r.Get("/", handler.GetGoal)
	r.Post("/", handler.CreateGoal)
	r.Put("/{goalID}", handler.UpdateGoal)
	r.Delete("/{goalID}", handler.DeleteGoal)
}

type GoalRequest struct {
	Workouts *int `json:"workouts"`
	Duration *int `json:"duration"`
	Calories *int `json:"calories"`
}

func (req GoalRequest) input() (services.GoalInput, error) {
	var missing missingFields
	missing.require(req.Workouts != nil, "workouts")
	missing.require(req.Duration != nil, "duration")
	missing.require(req.Calories != nil, "calories")
	if err := missing.err(); err != nil {
		return services.GoalInput{}, err
	}
	return services.GoalInput{Workouts: *req.Workouts, Duration: *req.Duration, Calories: *req.Calories}, nil
}

// GoalResponse carries the goal, which is null when none is set.
type GoalResponse struct {
	Goal *types.Goal `json:"goal"`
}

func (h *GoalHandler) GetGoal(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	goal, err := h.goalService.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, GoalResponse{Goal: goal}, "Goal retrieved successfully")
}

func (h *GoalHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req GoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	goal, err := h.goalService.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, GoalResponse{Goal: &goal}, "Goal set successfully")
}

func (h *GoalHandler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req GoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	goal, err := h.goalService.Update(r.Context(), userID, chi.URLParam(r, "goalID"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, GoalResponse{Goal: &goal}, "Goal updated successfully")
}

func (h *GoalHandler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.goalService.Delete(r.Context(), userID, chi.URLParam(r, "goalID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "Goal deleted successfully")
}
