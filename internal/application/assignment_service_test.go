package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/catering-scheduler/internal/persistence"
	"github.com/example/catering-scheduler/internal/scheduler"
	"github.com/example/catering-scheduler/internal/testfixtures"
)

type assignmentStoreStub struct {
	resources   []persistence.Resource
	resourceErr error
	task        persistence.Task
	taskErr     error
	replaced    []persistence.NewScheduleEntry
	replaceErr  error
	replaceHits int
}

func (s *assignmentStoreStub) GetResources(ctx context.Context, ids []int64) ([]persistence.Resource, error) {
	if s.resourceErr != nil {
		return nil, s.resourceErr
	}
	return s.resources, nil
}

func (s *assignmentStoreStub) GetTask(ctx context.Context, id int64) (persistence.Task, error) {
	if s.taskErr != nil {
		return persistence.Task{}, s.taskErr
	}
	return s.task, nil
}

func (s *assignmentStoreStub) ReplaceForTask(ctx context.Context, taskID int64, entries []persistence.NewScheduleEntry) ([]persistence.ScheduleEntry, error) {
	s.replaceHits++
	if s.replaceErr != nil {
		return nil, s.replaceErr
	}
	s.replaced = entries
	inserted := make([]persistence.ScheduleEntry, 0, len(entries))
	for i, entry := range entries {
		inserted = append(inserted, persistence.ScheduleEntry{
			ID:         int64(100 + i),
			ResourceID: entry.ResourceID,
			EventID:    entry.EventID,
			TaskID:     entry.TaskID,
			Start:      entry.Start,
			End:        entry.End,
		})
	}
	return inserted, nil
}

type checkerStub struct {
	result    ConflictCheckResult
	err       error
	lastInput ConflictCheckInput
}

func (c *checkerStub) CheckConflicts(ctx context.Context, input ConflictCheckInput) (ConflictCheckResult, error) {
	c.lastInput = input
	if c.err != nil {
		return ConflictCheckResult{}, c.err
	}
	return c.result, nil
}

func availableResources() []persistence.Resource {
	return []persistence.Resource{
		testfixtures.NewResource(testfixtures.WithID(7), testfixtures.WithName("Head Chef")),
		testfixtures.NewResource(
			testfixtures.WithID(8),
			testfixtures.WithName("Van 1"),
			testfixtures.WithKind(persistence.ResourceKindEquipment),
		),
	}
}

func validInput() AssignmentInput {
	return AssignmentInput{
		TaskID:      12,
		ResourceIDs: []int64{7, 8},
		Start:       hour(9),
		End:         hour(17),
	}
}

func conflictFor(taskID int64) scheduler.Conflict {
	return scheduler.Conflict{
		EntryID:      41,
		ResourceID:   7,
		ResourceName: "Head Chef",
		EventID:      3,
		EventName:    "Garden Wedding",
		TaskID:       &taskID,
		Message:      "Head Chef is already committed",
	}
}

func newTestAssignmentService(store *assignmentStoreStub, checker *checkerStub, policy AssignmentPolicy) *AssignmentService {
	if store.task.ID == 0 {
		store.task = persistence.Task{ID: 12, EventID: 3, Title: "Plate mains"}
	}
	return NewAssignmentService(store, checker, policy, nil)
}

func TestAssignmentService_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rejects empty resources and inverted interval", func(t *testing.T) {
		t.Parallel()
		store := &assignmentStoreStub{}
		service := newTestAssignmentService(store, &checkerStub{}, AssignmentPolicy{})

		_, err := service.AssignTaskResources(ctx, AssignmentInput{
			TaskID: 12,
			Start:  hour(17),
			End:    hour(9),
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		for _, field := range []string{"resource_ids", "end_time"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s field error, got %+v", field, vErr.FieldErrors)
			}
		}
		if store.replaceHits != 0 {
			t.Fatal("expected no mutation on validation failure")
		}
	})

	t.Run("rejects interval narrower than one second", func(t *testing.T) {
		t.Parallel()
		store := &assignmentStoreStub{resources: availableResources()}
		service := newTestAssignmentService(store, &checkerStub{}, AssignmentPolicy{})

		input := validInput()
		input.End = input.Start.Add(500 * time.Millisecond)
		_, err := service.AssignTaskResources(ctx, input)

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["end_time"]; !ok {
			t.Fatalf("expected end_time field error, got %+v", vErr.FieldErrors)
		}
		if store.replaceHits != 0 {
			t.Fatal("expected no mutation for sub-second interval")
		}
	})

	t.Run("fractional seconds are truncated on stored entries", func(t *testing.T) {
		t.Parallel()
		store := &assignmentStoreStub{resources: availableResources()}
		service := newTestAssignmentService(store, &checkerStub{}, AssignmentPolicy{})

		input := validInput()
		input.Start = input.Start.Add(300 * time.Millisecond)
		input.End = input.End.Add(700 * time.Millisecond)
		if _, err := service.AssignTaskResources(ctx, input); err != nil {
			t.Fatalf("assignment failed: %v", err)
		}
		for _, entry := range store.replaced {
			if !entry.Start.Equal(hour(9)) || !entry.End.Equal(hour(17)) {
				t.Fatalf("expected whole-second interval, got %+v", entry)
			}
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		t.Parallel()
		store := &assignmentStoreStub{taskErr: persistence.ErrNotFound, resources: availableResources()}
		service := NewAssignmentService(store, &checkerStub{}, AssignmentPolicy{}, nil)

		_, err := service.AssignTaskResources(ctx, validInput())
		var nfErr *NotFoundError
		if !errors.As(err, &nfErr) || nfErr.Kind != "task" {
			t.Fatalf("expected task not found, got %v", err)
		}
	})

	t.Run("missing resources are named", func(t *testing.T) {
		t.Parallel()
		store := &assignmentStoreStub{resources: availableResources()[:1]}
		service := newTestAssignmentService(store, &checkerStub{}, AssignmentPolicy{})

		_, err := service.AssignTaskResources(ctx, validInput())
		var nfErr *NotFoundError
		if !errors.As(err, &nfErr) || nfErr.Kind != "resource" {
			t.Fatalf("expected resource not found, got %v", err)
		}
		if len(nfErr.IDs) != 1 || nfErr.IDs[0] != 8 {
			t.Fatalf("expected missing id 8, got %+v", nfErr.IDs)
		}
	})

	t.Run("unavailable resources are named", func(t *testing.T) {
		t.Parallel()
		resources := availableResources()
		resources[1].Available = false
		store := &assignmentStoreStub{resources: resources}
		service := newTestAssignmentService(store, &checkerStub{}, AssignmentPolicy{})

		_, err := service.AssignTaskResources(ctx, validInput())
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if msg := vErr.FieldErrors["resource_ids"]; !strings.Contains(msg, "Van 1") {
			t.Fatalf("expected message naming Van 1, got %q", msg)
		}
		if store.replaceHits != 0 {
			t.Fatal("expected no mutation for unavailable resources")
		}
	})
}

func TestAssignmentService_ConflictHandling(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("conflicts block without force", func(t *testing.T) {
		t.Parallel()
		store := &assignmentStoreStub{resources: availableResources()}
		checker := &checkerStub{result: ConflictCheckResult{
			HasConflicts: true,
			Conflicts:    []scheduler.Conflict{conflictFor(99)},
		}}
		service := newTestAssignmentService(store, checker, AssignmentPolicy{})

		result, err := service.AssignTaskResources(ctx, validInput())
		if err != nil {
			t.Fatalf("conflicts should be data, not an error: %v", err)
		}
		if result.Success {
			t.Fatal("expected blocked assignment")
		}
		if len(result.Conflicts) != 1 || result.Conflicts[0].EntryID != 41 {
			t.Fatalf("expected the conflict surfaced, got %+v", result.Conflicts)
		}
		if store.replaceHits != 0 {
			t.Fatal("expected no mutation when blocked")
		}
	})

	t.Run("force records assignment and keeps conflicts for audit", func(t *testing.T) {
		t.Parallel()
		store := &assignmentStoreStub{resources: availableResources()}
		checker := &checkerStub{result: ConflictCheckResult{
			HasConflicts: true,
			Conflicts:    []scheduler.Conflict{conflictFor(99)},
		}}
		service := newTestAssignmentService(store, checker, AssignmentPolicy{})

		input := validInput()
		input.Force = true
		result, err := service.AssignTaskResources(ctx, input)
		if err != nil {
			t.Fatalf("forced assignment failed: %v", err)
		}
		if !result.Success || !result.ForceOverride {
			t.Fatalf("expected forced success, got %+v", result)
		}
		if result.AssignedCount != 2 || len(result.Conflicts) != 1 {
			t.Fatalf("expected audit trail, got %+v", result)
		}
		if store.replaceHits != 1 {
			t.Fatalf("expected one replace, got %d", store.replaceHits)
		}
	})

	t.Run("reassignment ignores the task's own entries", func(t *testing.T) {
		t.Parallel()
		store := &assignmentStoreStub{resources: availableResources()}
		checker := &checkerStub{result: ConflictCheckResult{
			HasConflicts: true,
			Conflicts:    []scheduler.Conflict{conflictFor(12)},
		}}
		service := newTestAssignmentService(store, checker, AssignmentPolicy{})

		result, err := service.AssignTaskResources(ctx, validInput())
		if err != nil {
			t.Fatalf("reassignment failed: %v", err)
		}
		if !result.Success || result.ForceOverride {
			t.Fatalf("expected clean reassignment, got %+v", result)
		}
		if len(result.Conflicts) != 0 {
			t.Fatalf("expected self conflicts filtered, got %+v", result.Conflicts)
		}
	})

	t.Run("entries carry the task's event and interval", func(t *testing.T) {
		t.Parallel()
		store := &assignmentStoreStub{resources: availableResources()}
		service := newTestAssignmentService(store, &checkerStub{}, AssignmentPolicy{})

		if _, err := service.AssignTaskResources(ctx, validInput()); err != nil {
			t.Fatalf("assignment failed: %v", err)
		}
		if len(store.replaced) != 2 {
			t.Fatalf("expected two entries, got %+v", store.replaced)
		}
		for _, entry := range store.replaced {
			if entry.EventID != 3 || entry.TaskID == nil || *entry.TaskID != 12 {
				t.Fatalf("unexpected entry: %+v", entry)
			}
			if !entry.Start.Equal(hour(9)) || !entry.End.Equal(hour(17)) {
				t.Fatalf("unexpected interval: %+v", entry)
			}
		}
	})

	t.Run("duplicate resource ids collapse to one entry", func(t *testing.T) {
		t.Parallel()
		store := &assignmentStoreStub{resources: availableResources()[:1]}
		service := newTestAssignmentService(store, &checkerStub{}, AssignmentPolicy{})

		input := validInput()
		input.ResourceIDs = []int64{7, 7, 7}
		result, err := service.AssignTaskResources(ctx, input)
		if err != nil {
			t.Fatalf("assignment failed: %v", err)
		}
		if result.AssignedCount != 1 || len(store.replaced) != 1 {
			t.Fatalf("expected single entry, got %+v", store.replaced)
		}
	})
}

func TestAssignmentService_DegradedMode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("timeout proceeds with warning when allowed", func(t *testing.T) {
		t.Parallel()
		store := &assignmentStoreStub{resources: availableResources()}
		checker := &checkerStub{err: &TransportError{Kind: TransportTimeout, Err: errors.New("deadline exceeded")}}
		service := newTestAssignmentService(store, checker, AssignmentPolicy{AllowDegraded: true})

		result, err := service.AssignTaskResources(ctx, validInput())
		if err != nil {
			t.Fatalf("degraded assignment failed: %v", err)
		}
		if !result.Success || result.Warning != DegradedModeWarning {
			t.Fatalf("expected degraded success, got %+v", result)
		}
		if len(result.Conflicts) != 0 {
			t.Fatalf("expected no conflicts in degraded mode, got %+v", result.Conflicts)
		}
		if store.replaceHits != 1 {
			t.Fatalf("expected replace to run, got %d", store.replaceHits)
		}
	})

	t.Run("connection failure proceeds with warning when allowed", func(t *testing.T) {
		t.Parallel()
		store := &assignmentStoreStub{resources: availableResources()}
		checker := &checkerStub{err: &TransportError{Kind: TransportConnection, Err: errors.New("connection refused")}}
		service := newTestAssignmentService(store, checker, AssignmentPolicy{AllowDegraded: true})

		result, err := service.AssignTaskResources(ctx, validInput())
		if err != nil {
			t.Fatalf("degraded assignment failed: %v", err)
		}
		if result.Warning != DegradedModeWarning {
			t.Fatalf("expected warning, got %+v", result)
		}
	})

	t.Run("strict policy aborts on transport failure", func(t *testing.T) {
		t.Parallel()
		store := &assignmentStoreStub{resources: availableResources()}
		checker := &checkerStub{err: &TransportError{Kind: TransportTimeout, Err: errors.New("deadline exceeded")}}
		service := newTestAssignmentService(store, checker, AssignmentPolicy{AllowDegraded: false})

		_, err := service.AssignTaskResources(ctx, validInput())
		var tErr *TransportError
		if !errors.As(err, &tErr) {
			t.Fatalf("expected transport error, got %v", err)
		}
		if store.replaceHits != 0 {
			t.Fatal("expected no mutation under strict policy")
		}
	})

	t.Run("non-degradable failures always propagate", func(t *testing.T) {
		t.Parallel()
		store := &assignmentStoreStub{resources: availableResources()}
		checker := &checkerStub{err: &TransportError{Kind: TransportOther, Err: errors.New("unexpected status 500")}}
		service := newTestAssignmentService(store, checker, AssignmentPolicy{AllowDegraded: true})

		_, err := service.AssignTaskResources(ctx, validInput())
		if err == nil {
			t.Fatal("expected error")
		}
		if store.replaceHits != 0 {
			t.Fatal("expected no mutation")
		}
	})
}
