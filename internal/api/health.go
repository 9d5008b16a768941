package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/potooio/curator/internal/module"
)

// HealthResponse is the response for health endpoints.
type HealthResponse struct {
	Status    string `json:"status"` // healthy, degraded, unhealthy
	Module    string `json:"module"`
	Timestamp string `json:"timestamp"`
}

// HealthHandler handles GET /health and GET /api/v1/health.
type HealthHandler struct {
	logger   *zap.Logger
	provider SnapshotProvider
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(provider SnapshotProvider, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		logger:   logger.Named("health"),
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "unhealthy",
		Module:    "not initialized",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusServiceUnavailable

	if h.provider != nil {
		state := h.provider.Snapshot().State
		response.Module = state
		switch state {
		case module.StateEnabled.String():
			response.Status = "healthy"
			code = http.StatusOK
		case module.StateEnabling.String(), module.StateDisabling.String():
			// Transitional; the daemon is alive but not matching yet.
			response.Status = "degraded"
			code = http.StatusOK
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// RegisterHandlers registers API handlers and the Prometheus endpoint on the given mux.
func RegisterHandlers(mux *http.ServeMux, provider SnapshotProvider, logger *zap.Logger) {
	healthHandler := NewHealthHandler(provider, logger)

	mux.Handle("/api/v1/status", NewStatusHandler(provider, logger))
	mux.Handle("/api/v1/detections", NewDetectionsHandler(provider, logger))
	mux.Handle("/api/v1/health", healthHandler)
	mux.Handle("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
}
