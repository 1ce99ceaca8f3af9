package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/catering-scheduler/internal/application"
)

// TaskAssigner is the application surface the assignment handler needs.
type TaskAssigner interface {
	AssignTaskResources(ctx context.Context, input application.AssignmentInput) (application.AssignmentResult, error)
}

// AssignmentHandler serves resource-to-task assignment requests.
type AssignmentHandler struct {
	service   TaskAssigner
	responder responder
	logger    *slog.Logger
}

// NewAssignmentHandler wires dependencies for assignment operations.
func NewAssignmentHandler(service TaskAssigner, logger *slog.Logger) *AssignmentHandler {
	logger = defaultLogger(logger)
	return &AssignmentHandler{
		service:   service,
		responder: newResponder(logger),
		logger:    logger,
	}
}

type assignTaskRequest struct {
	TaskID      int64   `json:"task_id"`
	ResourceIDs []int64 `json:"resource_ids"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Notes       *string `json:"notes,omitempty"`
	Force       bool    `json:"force"`
}

type assignTaskResponse struct {
	Success       bool              `json:"success"`
	AssignedCount int               `json:"assigned_count"`
	ForceOverride bool              `json:"force_override"`
	Warning       string            `json:"warning,omitempty"`
	Conflicts     []conflictPayload `json:"conflicts"`
}

// AssignTask handles POST /scheduling/assign-task. Detected conflicts are
// reported with success=false and a 200 status; force repeats the request
// overriding them.
func (h *AssignmentHandler) AssignTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := handlerLogger(ctx, h.logger, "assignment", "assign_task")

	var payload assignTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.WarnContext(ctx, "malformed request body", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input := application.AssignmentInput{
		TaskID:      payload.TaskID,
		ResourceIDs: payload.ResourceIDs,
		Notes:       payload.Notes,
		Force:       payload.Force,
	}
	vErr := &application.ValidationError{FieldErrors: map[string]string{}}
	if start, err := time.Parse(time.RFC3339, payload.StartTime); err != nil {
		vErr.FieldErrors["start_time"] = "start time must be RFC 3339"
	} else {
		input.Start = start
	}
	if end, err := time.Parse(time.RFC3339, payload.EndTime); err != nil {
		vErr.FieldErrors["end_time"] = "end time must be RFC 3339"
	} else {
		input.End = end
	}
	if vErr.HasErrors() {
		h.responder.handleServiceError(ctx, w, vErr)
		return
	}

	result, err := h.service.AssignTaskResources(ctx, input)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusOK, assignTaskResponse{
		Success:       result.Success,
		AssignedCount: result.AssignedCount,
		ForceOverride: result.ForceOverride,
		Warning:       result.Warning,
		Conflicts:     conflictPayloads(result.Conflicts),
	})
}
