package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/catering-scheduler/internal/application"
)

// HealthReporter answers health probes.
type HealthReporter interface {
	Health(ctx context.Context) application.HealthStatus
}

// HealthHandler serves the health endpoint.
type HealthHandler struct {
	reporter  HealthReporter
	responder responder
	logger    *slog.Logger
}

// NewHealthHandler wires dependencies for health probes.
func NewHealthHandler(reporter HealthReporter, logger *slog.Logger) *HealthHandler {
	logger = defaultLogger(logger)
	return &HealthHandler{
		reporter:  reporter,
		responder: newResponder(logger),
		logger:    logger,
	}
}

type healthPayload struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Check reports service and storage reachability. Storage trouble degrades
// the payload but still answers 200; the service itself is reachable.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := h.reporter.Health(r.Context())
	h.responder.writeJSON(r.Context(), w, http.StatusOK, healthPayload{
		Status:   status.Status,
		Database: status.Database,
	})
}
