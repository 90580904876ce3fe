package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger checks a dependency's availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service health.
type HealthHandler struct {
	extractor Pinger
	logger    *zap.Logger
}

// NewHealthHandler creates a new health handler. extractor may be nil.
func NewHealthHandler(extractor Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{extractor: extractor, logger: logger}
}

// Check handles the health check endpoint. The service is "healthy" when the
// embedding server answers, "degraded" otherwise.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.extractor == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.extractor.Ping(ctx); err != nil {
		h.logger.Warn("embedding server health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":    "degraded",
			"extractor": err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "extractor": "ok"})
}
