// Package api provides HTTP API endpoints for curatord.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/potooio/curator/internal/module"
	"github.com/potooio/curator/internal/util"
)

// SnapshotProvider returns a point-in-time view of the module.
type SnapshotProvider interface {
	Snapshot() module.Snapshot
}

// StatusHandler handles GET /api/v1/status.
type StatusHandler struct {
	logger   *zap.Logger
	provider SnapshotProvider
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(provider SnapshotProvider, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		logger:   logger.Named("status"),
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := h.provider.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.logger.Error("Failed to encode status response", zap.Error(err))
	}
}

// DetectionsResponse is the response for GET /api/v1/detections.
type DetectionsResponse struct {
	// ProcessNames lists the distinct process names that have pending
	// detections, in index order.
	ProcessNames []string            `json:"processNames"`
	Buckets      []module.BucketView `json:"buckets"`
	Total        int                 `json:"total"`
}

// DetectionsHandler handles GET /api/v1/detections.
//
// Query parameters:
//   - process: only return the bucket for this process name (exact match)
type DetectionsHandler struct {
	logger   *zap.Logger
	provider SnapshotProvider
}

// NewDetectionsHandler creates a new DetectionsHandler.
func NewDetectionsHandler(provider SnapshotProvider, logger *zap.Logger) *DetectionsHandler {
	return &DetectionsHandler{
		logger:   logger.Named("detections"),
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *DetectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	process := strings.TrimSpace(r.URL.Query().Get("process"))
	buckets := h.provider.Snapshot().Buckets

	resp := DetectionsResponse{Buckets: []module.BucketView{}}
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		if process != "" && b.ProcessName != process {
			continue
		}
		if len(b.Detections) == 0 {
			continue
		}
		names = append(names, b.ProcessName)
		resp.Buckets = append(resp.Buckets, b)
		resp.Total += len(b.Detections)
	}
	resp.ProcessNames = util.ProcessNames(names)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode detections response", zap.Error(err))
	}
}
