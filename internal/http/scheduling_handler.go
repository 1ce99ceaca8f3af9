package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/example/catering-scheduler/internal/application"
	"github.com/example/catering-scheduler/internal/scheduler"
)

// SchedulingQueries is the application surface the scheduling handler needs.
type SchedulingQueries interface {
	CheckConflicts(ctx context.Context, input application.ConflictCheckInput) (application.ConflictCheckResult, error)
	ResourceAvailability(ctx context.Context, resourceID int64, from, to time.Time) ([]application.AvailabilityEntry, error)
}

// SchedulingHandler serves conflict-check and availability queries.
type SchedulingHandler struct {
	service   SchedulingQueries
	responder responder
	logger    *slog.Logger
}

// NewSchedulingHandler wires dependencies for scheduling queries.
func NewSchedulingHandler(service SchedulingQueries, logger *slog.Logger) *SchedulingHandler {
	logger = defaultLogger(logger)
	return &SchedulingHandler{
		service:   service,
		responder: newResponder(logger),
		logger:    logger,
	}
}

type checkConflictsRequest struct {
	ResourceIDs       []int64 `json:"resource_ids"`
	StartTime         string  `json:"start_time"`
	EndTime           string  `json:"end_time"`
	ExcludeScheduleID *int64  `json:"exclude_schedule_id"`
}

type conflictPayload struct {
	ResourceID           int64   `json:"resource_id"`
	ResourceName         string  `json:"resource_name"`
	ConflictingEventID   int64   `json:"conflicting_event_id"`
	ConflictingEventName string  `json:"conflicting_event_name"`
	ConflictingTaskID    *int64  `json:"conflicting_task_id,omitempty"`
	ConflictingTaskTitle *string `json:"conflicting_task_title,omitempty"`
	ExistingStartTime    string  `json:"existing_start_time"`
	ExistingEndTime      string  `json:"existing_end_time"`
	RequestedStartTime   string  `json:"requested_start_time"`
	RequestedEndTime     string  `json:"requested_end_time"`
	Message              string  `json:"message"`
}

type checkConflictsResponse struct {
	HasConflicts bool              `json:"has_conflicts"`
	Conflicts    []conflictPayload `json:"conflicts"`
}

// CheckConflicts handles POST /scheduling/check-conflicts.
func (h *SchedulingHandler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := handlerLogger(ctx, h.logger, "scheduling", "check_conflicts")

	var payload checkConflictsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.WarnContext(ctx, "malformed request body", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input := application.ConflictCheckInput{
		ResourceIDs:    payload.ResourceIDs,
		ExcludeEntryID: payload.ExcludeScheduleID,
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

	result, err := h.service.CheckConflicts(ctx, input)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusOK, checkConflictsResponse{
		HasConflicts: result.HasConflicts,
		Conflicts:    conflictPayloads(result.Conflicts),
	})
}

type availabilityEntryPayload struct {
	ID         int64   `json:"id"`
	ResourceID int64   `json:"resource_id"`
	EventID    int64   `json:"event_id"`
	EventName  string  `json:"event_name,omitempty"`
	TaskID     *int64  `json:"task_id,omitempty"`
	TaskTitle  *string `json:"task_title,omitempty"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	Notes      *string `json:"notes,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type availabilityResponse struct {
	ResourceID int64                      `json:"resource_id"`
	Entries    []availabilityEntryPayload `json:"entries"`
}

// ResourceAvailability handles GET /scheduling/resource-availability. The
// date window is inclusive: entries intersecting any part of end_date's day
// are included.
func (h *SchedulingHandler) ResourceAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	resourceID, err := strconv.ParseInt(query.Get("resource_id"), 10, 64)
	if err != nil || resourceID <= 0 {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	startDate, err := time.Parse(time.DateOnly, query.Get("start_date"))
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidDate)
		return
	}
	endDate, err := time.Parse(time.DateOnly, query.Get("end_date"))
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidDate)
		return
	}

	from := startDate.UTC()
	to := endDate.UTC().AddDate(0, 0, 1)

	entries, err := h.service.ResourceAvailability(ctx, resourceID, from, to)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	payload := availabilityResponse{
		ResourceID: resourceID,
		Entries:    make([]availabilityEntryPayload, 0, len(entries)),
	}
	for _, entry := range entries {
		payload.Entries = append(payload.Entries, availabilityEntryPayload{
			ID:         entry.EntryID,
			ResourceID: entry.ResourceID,
			EventID:    entry.EventID,
			EventName:  entry.EventName,
			TaskID:     entry.TaskID,
			TaskTitle:  entry.TaskTitle,
			StartTime:  wireTime(entry.Start),
			EndTime:    wireTime(entry.End),
			Notes:      entry.Notes,
			CreatedAt:  wireTime(entry.CreatedAt),
			UpdatedAt:  wireTime(entry.UpdatedAt),
		})
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, payload)
}

func conflictPayloads(conflicts []scheduler.Conflict) []conflictPayload {
	out := make([]conflictPayload, 0, len(conflicts))
	for _, conflict := range conflicts {
		out = append(out, conflictPayload{
			ResourceID:           conflict.ResourceID,
			ResourceName:         conflict.ResourceName,
			ConflictingEventID:   conflict.EventID,
			ConflictingEventName: conflict.EventName,
			ConflictingTaskID:    conflict.TaskID,
			ConflictingTaskTitle: conflict.TaskTitle,
			ExistingStartTime:    wireTime(conflict.ExistingStart),
			ExistingEndTime:      wireTime(conflict.ExistingEnd),
			RequestedStartTime:   wireTime(conflict.RequestedStart),
			RequestedEndTime:     wireTime(conflict.RequestedEnd),
			Message:              conflict.Message,
		})
	}
	return out
}

func wireTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
