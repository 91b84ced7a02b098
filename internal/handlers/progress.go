package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/trckr/apiserver/internal/services"
	"github.com/trckr/apiserver/types"
)

// ProgressHandler serves derived progress and dashboard views.
type ProgressHandler struct {
	progressService *services.ProgressService
	logger          *zap.Logger
}

func NewProgressHandler(progressService *services.ProgressService, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{progressService: progressService, logger: logger}
}

// ProgressRouter registers /progress and /stats. Both need a session.
func ProgressRouter(r chi.Router, handler *ProgressHandler, requireSession func(http.Handler) http.Handler) {
	r.With(requireSession).Get("/progress", handler.GetProgress)
	r.With(requireSession).Get("/stats", handler.GetStats)
}

// ProgressResponse carries the snapshot, which is null when no goal is set.
type ProgressResponse struct {
	Progress *types.ProgressSnapshot `json:"progress"`
}

type StatsResponse struct {
	Stats types.WorkoutStats `json:"stats"`
}

// GetProgress returns progress for ?date=YYYY-MM-DD, defaulting to today.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	snapshot, err := h.progressService.Snapshot(r.Context(), userID, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, ProgressResponse{Progress: snapshot}, "")
}

func (h *ProgressHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	stats, err := h.progressService.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, StatsResponse{Stats: stats}, "")
}
