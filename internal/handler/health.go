package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout caps how long a readiness probe may wait on the store.
const healthCheckTimeout = 2 * time.Second

// ReadinessChecker reports whether the service can serve traffic.
// *service.LinkService implements it.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// HealthHandler serves the readiness probe.
type HealthHandler struct {
	checker ReadinessChecker
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(checker ReadinessChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checker: checker, logger: logger}
}

type healthResponse struct {
	Status string `json:"status"`
}

// HandleHealth reports 200 {"status":"ok"} when the store answers a ping
// and 503 {"status":"unavailable"} otherwise.
//
// HTTP: GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.checker.Ready(ctx); err != nil {
		h.logger.Warn("readiness check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
