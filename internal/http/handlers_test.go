package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/catering-scheduler/internal/application"
	"github.com/example/catering-scheduler/internal/scheduler"
)

type schedulingServiceStub struct {
	checkResult application.ConflictCheckResult
	checkErr    error
	entries     []application.AvailabilityEntry
	entriesErr  error
	lastInput   application.ConflictCheckInput
	lastFrom    time.Time
	lastTo      time.Time
}

func (s *schedulingServiceStub) CheckConflicts(ctx context.Context, input application.ConflictCheckInput) (application.ConflictCheckResult, error) {
	s.lastInput = input
	if s.checkErr != nil {
		return application.ConflictCheckResult{}, s.checkErr
	}
	return s.checkResult, nil
}

func (s *schedulingServiceStub) ResourceAvailability(ctx context.Context, resourceID int64, from, to time.Time) ([]application.AvailabilityEntry, error) {
	s.lastFrom = from
	s.lastTo = to
	if s.entriesErr != nil {
		return nil, s.entriesErr
	}
	return s.entries, nil
}

type healthStub struct {
	status application.HealthStatus
}

func (h *healthStub) Health(ctx context.Context) application.HealthStatus {
	return h.status
}

func newTestRouter(service *schedulingServiceStub, health *healthStub, middleware ...func(http.Handler) http.Handler) http.Handler {
	if health == nil {
		health = &healthStub{status: application.HealthStatus{Status: "ok", Database: "ok"}}
	}
	return NewRouter(RouterConfig{
		Health:     NewHealthHandler(health, nil),
		Scheduling: NewSchedulingHandler(service, nil),
		Middleware: middleware,
	})
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var payload T
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("reports ok", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&schedulingServiceStub{}, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		payload := decodeBody[healthPayload](t, rec)
		if payload.Status != "ok" || payload.Database != "ok" {
			t.Fatalf("unexpected payload: %+v", payload)
		}
	})

	t.Run("reports degraded storage", func(t *testing.T) {
		t.Parallel()
		health := &healthStub{status: application.HealthStatus{Status: "degraded", Database: "unreachable"}}
		router := newTestRouter(&schedulingServiceStub{}, health)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		payload := decodeBody[healthPayload](t, rec)
		if payload.Database != "unreachable" {
			t.Fatalf("unexpected payload: %+v", payload)
		}
	})

	t.Run("rejects other methods", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&schedulingServiceStub{}, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/health", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})
}

func TestCheckConflictsEndpoint(t *testing.T) {
	t.Parallel()

	taskID := int64(12)
	taskTitle := "Plate mains"
	conflict := scheduler.Conflict{
		EntryID:        41,
		ResourceID:     7,
		ResourceName:   "Head Chef",
		EventID:        3,
		EventName:      "Garden Wedding",
		TaskID:         &taskID,
		TaskTitle:      &taskTitle,
		ExistingStart:  time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC),
		ExistingEnd:    time.Date(2025, 6, 14, 17, 0, 0, 0, time.UTC),
		RequestedStart: time.Date(2025, 6, 14, 14, 0, 0, 0, time.UTC),
		RequestedEnd:   time.Date(2025, 6, 14, 18, 0, 0, 0, time.UTC),
		Message:        "Head Chef is already committed",
	}

	t.Run("serializes conflicts", func(t *testing.T) {
		t.Parallel()
		service := &schedulingServiceStub{checkResult: application.ConflictCheckResult{
			HasConflicts: true,
			Conflicts:    []scheduler.Conflict{conflict},
		}}
		router := newTestRouter(service, nil)

		body := `{"resource_ids":[7],"start_time":"2025-06-14T14:00:00Z","end_time":"2025-06-14T18:00:00Z"}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduling/check-conflicts", strings.NewReader(body)))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		payload := decodeBody[checkConflictsResponse](t, rec)
		if !payload.HasConflicts || len(payload.Conflicts) != 1 {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		got := payload.Conflicts[0]
		if got.ResourceName != "Head Chef" || got.ConflictingEventName != "Garden Wedding" {
			t.Fatalf("unexpected conflict: %+v", got)
		}
		if got.ExistingStartTime != "2025-06-14T09:00:00Z" || got.RequestedEndTime != "2025-06-14T18:00:00Z" {
			t.Fatalf("unexpected timestamps: %+v", got)
		}
		if got.ConflictingTaskID == nil || *got.ConflictingTaskID != 12 {
			t.Fatalf("expected task id, got %+v", got.ConflictingTaskID)
		}
	})

	t.Run("forwards exclude schedule id", func(t *testing.T) {
		t.Parallel()
		service := &schedulingServiceStub{}
		router := newTestRouter(service, nil)

		body := `{"resource_ids":[7],"start_time":"2025-06-14T14:00:00Z","end_time":"2025-06-14T18:00:00Z","exclude_schedule_id":41}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduling/check-conflicts", strings.NewReader(body)))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if service.lastInput.ExcludeEntryID == nil || *service.lastInput.ExcludeEntryID != 41 {
			t.Fatalf("expected exclude id forwarded, got %+v", service.lastInput)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&schedulingServiceStub{}, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduling/check-conflicts", strings.NewReader("{not json")))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unparseable timestamps", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&schedulingServiceStub{}, nil)

		body := `{"resource_ids":[7],"start_time":"today","end_time":"tomorrow"}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduling/check-conflicts", strings.NewReader(body)))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		payload := decodeBody[errorResponse](t, rec)
		if _, ok := payload.Errors["start_time"]; !ok {
			t.Fatalf("expected start_time error, got %+v", payload.Errors)
		}
	})

	t.Run("validation errors map to 422", func(t *testing.T) {
		t.Parallel()
		service := &schedulingServiceStub{checkErr: &application.ValidationError{
			FieldErrors: map[string]string{"resource_ids": "at least one resource id is required"},
		}}
		router := newTestRouter(service, nil)

		body := `{"resource_ids":[],"start_time":"2025-06-14T14:00:00Z","end_time":"2025-06-14T18:00:00Z"}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduling/check-conflicts", strings.NewReader(body)))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})
}

func TestResourceAvailabilityEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("serializes entries and widens the window", func(t *testing.T) {
		t.Parallel()
		notes := "bring knives"
		taskTitle := "Plate mains"
		taskID := int64(12)
		service := &schedulingServiceStub{entries: []application.AvailabilityEntry{{
			EntryID:    41,
			ResourceID: 7,
			EventID:    3,
			EventName:  "Garden Wedding",
			TaskID:     &taskID,
			TaskTitle:  &taskTitle,
			Start:      time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC),
			End:        time.Date(2025, 6, 14, 17, 0, 0, 0, time.UTC),
			Notes:      &notes,
			CreatedAt:  time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
			UpdatedAt:  time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		}}}
		router := newTestRouter(service, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/scheduling/resource-availability?resource_id=7&start_date=2025-06-14&end_date=2025-06-15", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		payload := decodeBody[availabilityResponse](t, rec)
		if payload.ResourceID != 7 || len(payload.Entries) != 1 {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		entry := payload.Entries[0]
		if entry.ID != 41 || entry.StartTime != "2025-06-14T09:00:00Z" {
			t.Fatalf("unexpected entry: %+v", entry)
		}
		if entry.Notes == nil || *entry.Notes != "bring knives" {
			t.Fatalf("expected notes, got %+v", entry.Notes)
		}

		wantFrom := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
		wantTo := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
		if !service.lastFrom.Equal(wantFrom) || !service.lastTo.Equal(wantTo) {
			t.Fatalf("expected inclusive window [%v, %v), got [%v, %v)", wantFrom, wantTo, service.lastFrom, service.lastTo)
		}
	})

	t.Run("rejects bad resource id", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&schedulingServiceStub{}, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/scheduling/resource-availability?resource_id=chef&start_date=2025-06-14&end_date=2025-06-15", nil))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects bad dates", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&schedulingServiceStub{}, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/scheduling/resource-availability?resource_id=7&start_date=June+14&end_date=2025-06-15", nil))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown resource maps to 404", func(t *testing.T) {
		t.Parallel()
		service := &schedulingServiceStub{entriesErr: &application.NotFoundError{Kind: "resource", IDs: []int64{99}}}
		router := newTestRouter(service, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/scheduling/resource-availability?resource_id=99&start_date=2025-06-14&end_date=2025-06-15", nil))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

type assignerStub struct {
	result    application.AssignmentResult
	err       error
	lastInput application.AssignmentInput
}

func (a *assignerStub) AssignTaskResources(ctx context.Context, input application.AssignmentInput) (application.AssignmentResult, error) {
	a.lastInput = input
	if a.err != nil {
		return application.AssignmentResult{}, a.err
	}
	return a.result, nil
}

func newAssignmentRouter(assigner *assignerStub) http.Handler {
	return NewRouter(RouterConfig{
		Assignments: NewAssignmentHandler(assigner, nil),
	})
}

func TestAssignTaskEndpoint(t *testing.T) {
	t.Parallel()

	validBody := `{"task_id":12,"resource_ids":[7,8],"start_time":"2025-06-14T09:00:00Z","end_time":"2025-06-14T17:00:00Z"}`

	t.Run("serializes a successful assignment", func(t *testing.T) {
		t.Parallel()
		assigner := &assignerStub{result: application.AssignmentResult{Success: true, AssignedCount: 2}}
		router := newAssignmentRouter(assigner)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduling/assign-task", strings.NewReader(validBody)))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		payload := decodeBody[assignTaskResponse](t, rec)
		if !payload.Success || payload.AssignedCount != 2 || payload.Warning != "" {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		if assigner.lastInput.TaskID != 12 || len(assigner.lastInput.ResourceIDs) != 2 {
			t.Fatalf("unexpected input: %+v", assigner.lastInput)
		}
		if !assigner.lastInput.Start.Equal(time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected start: %v", assigner.lastInput.Start)
		}
	})

	t.Run("blocked assignment reports conflicts with 200", func(t *testing.T) {
		t.Parallel()
		assigner := &assignerStub{result: application.AssignmentResult{
			Conflicts: []scheduler.Conflict{{
				EntryID:      41,
				ResourceID:   7,
				ResourceName: "Head Chef",
				EventID:      3,
				EventName:    "Garden Wedding",
				Message:      "Head Chef is already committed",
			}},
		}}
		router := newAssignmentRouter(assigner)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduling/assign-task", strings.NewReader(validBody)))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		payload := decodeBody[assignTaskResponse](t, rec)
		if payload.Success || len(payload.Conflicts) != 1 {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		if payload.Conflicts[0].ResourceName != "Head Chef" {
			t.Fatalf("unexpected conflict: %+v", payload.Conflicts[0])
		}
	})

	t.Run("degraded warning passes through", func(t *testing.T) {
		t.Parallel()
		assigner := &assignerStub{result: application.AssignmentResult{
			Success:       true,
			AssignedCount: 2,
			Warning:       application.DegradedModeWarning,
		}}
		router := newAssignmentRouter(assigner)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduling/assign-task", strings.NewReader(validBody)))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		payload := decodeBody[assignTaskResponse](t, rec)
		if payload.Warning != application.DegradedModeWarning {
			t.Fatalf("expected warning, got %+v", payload)
		}
	})

	t.Run("forwards force and notes", func(t *testing.T) {
		t.Parallel()
		assigner := &assignerStub{result: application.AssignmentResult{Success: true, AssignedCount: 1, ForceOverride: true}}
		router := newAssignmentRouter(assigner)

		body := `{"task_id":12,"resource_ids":[7],"start_time":"2025-06-14T09:00:00Z","end_time":"2025-06-14T17:00:00Z","notes":"bring knives","force":true}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduling/assign-task", strings.NewReader(body)))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !assigner.lastInput.Force {
			t.Fatal("expected force forwarded")
		}
		if assigner.lastInput.Notes == nil || *assigner.lastInput.Notes != "bring knives" {
			t.Fatalf("expected notes forwarded, got %+v", assigner.lastInput.Notes)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		router := newAssignmentRouter(&assignerStub{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduling/assign-task", strings.NewReader("{not json")))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unparseable timestamps map to 422", func(t *testing.T) {
		t.Parallel()
		router := newAssignmentRouter(&assignerStub{})

		body := `{"task_id":12,"resource_ids":[7],"start_time":"today","end_time":"tomorrow"}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduling/assign-task", strings.NewReader(body)))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("unknown task maps to 404", func(t *testing.T) {
		t.Parallel()
		assigner := &assignerStub{err: &application.NotFoundError{Kind: "task", IDs: []int64{12}}}
		router := newAssignmentRouter(assigner)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduling/assign-task", strings.NewReader(validBody)))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("rejects other methods", func(t *testing.T) {
		t.Parallel()
		router := newAssignmentRouter(&assignerStub{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scheduling/assign-task", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&schedulingServiceStub{}, nil, RateLimit(1, 1, nil))

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/health", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/health", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
}

func TestRequestLoggerAssignsRequestID(t *testing.T) {
	t.Parallel()

	var captured string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := RequestIDFromContext(r.Context()); ok {
			captured = id
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := RequestLogger(nil)(inner)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if captured == "" {
		t.Fatal("expected request id in context")
	}
}
