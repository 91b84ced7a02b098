package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const healthProbeTimeout = 5 * time.Second

// Pinger checks that the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is returned by /health. It is not wrapped in the envelope.
type HealthResponse struct {
	Status      string    `json:"status"`
	Database    string    `json:"database"`
	Environment string    `json:"environment"`
	Version     string    `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
}

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	db          Pinger
	environment string
	version     string
	logger      *zap.Logger
}

func NewHealthHandler(db Pinger, environment, version string, logger *zap.Logger) *HealthHandler {
	if environment == "" {
		environment = "unknown"
	}
	return &HealthHandler{db: db, environment: environment, version: version, logger: logger}
}

// Health answers 200 "healthy", or 200 "degraded" when the database probe fails.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "healthy",
		Database:    "connected",
		Environment: h.environment,
		Version:     h.version,
		Timestamp:   time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "disconnected"
		if h.logger != nil {
			h.logger.Warn("health check: database unreachable", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
