package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/example/catering-scheduler/internal/persistence"
	"github.com/example/catering-scheduler/internal/scheduler"
)

// DegradedModeWarning is surfaced when an assignment proceeds without
// conflict verification because the scheduling service was unreachable.
const DegradedModeWarning = "Unable to verify conflicts — scheduling service unavailable"

// AssignmentStore captures the persistence interactions needed by the
// assignment service.
type AssignmentStore interface {
	GetResources(ctx context.Context, ids []int64) ([]persistence.Resource, error)
	GetTask(ctx context.Context, id int64) (persistence.Task, error)
	ReplaceForTask(ctx context.Context, taskID int64, entries []persistence.NewScheduleEntry) ([]persistence.ScheduleEntry, error)
}

// ConflictChecker answers conflict queries ahead of an assignment. In-process
// deployments pass the SchedulingService directly; split deployments pass an
// HTTP client for the remote scheduling service.
type ConflictChecker interface {
	CheckConflicts(ctx context.Context, input ConflictCheckInput) (ConflictCheckResult, error)
}

// AssignmentPolicy tunes how the orchestrator reacts to checker failures.
type AssignmentPolicy struct {
	// AllowDegraded lets assignments proceed with a warning when the
	// conflict checker times out or cannot be reached. When false such
	// failures abort the assignment.
	AllowDegraded bool
}

// AssignmentService orchestrates resource-to-task assignment: validation,
// conflict pre-flight, and the atomic replacement of the task's schedule
// entries.
type AssignmentService struct {
	store   AssignmentStore
	checker ConflictChecker
	policy  AssignmentPolicy
	logger  *slog.Logger
}

// NewAssignmentService wires dependencies for assignment operations.
func NewAssignmentService(store AssignmentStore, checker ConflictChecker, policy AssignmentPolicy, logger *slog.Logger) *AssignmentService {
	return &AssignmentService{
		store:   store,
		checker: checker,
		policy:  policy,
		logger:  defaultLogger(logger),
	}
}

// AssignTaskResources commits the listed resources to the task over the
// interval [input.Start, input.End). Existing entries for the task are
// replaced, so reassignment releases resources no longer listed. Detected
// conflicts block the assignment unless input.Force is set; checker
// transport failures downgrade to a warning when the policy allows it.
func (s *AssignmentService) AssignTaskResources(ctx context.Context, input AssignmentInput) (AssignmentResult, error) {
	if s == nil {
		return AssignmentResult{}, fmt.Errorf("AssignmentService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "assignment", "assign_task_resources", "task_id", input.TaskID)

	input.Start, input.End = normalizeInterval(input.Start, input.End)
	vErr := &ValidationError{}
	if input.TaskID <= 0 {
		vErr.add("task_id", "task id is required")
	}
	if len(input.ResourceIDs) == 0 {
		vErr.add("resource_ids", "at least one resource id is required")
	}
	validateInterval(input.Start, input.End, vErr)
	if vErr.HasErrors() {
		logger.Warn("assignment rejected", "error_kind", ErrorKind(vErr))
		return AssignmentResult{}, vErr
	}

	resourceIDs := uniqueIDs(input.ResourceIDs)

	task, err := s.store.GetTask(ctx, input.TaskID)
	if err != nil {
		if isStoreNotFound(err) {
			return AssignmentResult{}, &NotFoundError{Kind: "task", IDs: []int64{input.TaskID}}
		}
		logger.Error("task lookup failed", "error", err)
		return AssignmentResult{}, fmt.Errorf("loading task: %w", err)
	}

	resources, err := s.resolveResources(ctx, resourceIDs)
	if err != nil {
		logger.Warn("resource resolution failed", "error_kind", ErrorKind(err))
		return AssignmentResult{}, err
	}

	conflicts, warning, err := s.preflightConflicts(ctx, logger, input, resourceIDs)
	if err != nil {
		return AssignmentResult{}, err
	}

	if len(conflicts) > 0 && !input.Force {
		logger.Info("assignment blocked by conflicts", "conflict_count", len(conflicts))
		return AssignmentResult{Conflicts: conflicts}, nil
	}

	entries := make([]persistence.NewScheduleEntry, 0, len(resources))
	for _, resource := range resources {
		entries = append(entries, persistence.NewScheduleEntry{
			ResourceID: resource.ID,
			EventID:    task.EventID,
			TaskID:     &task.ID,
			Start:      input.Start,
			End:        input.End,
			Notes:      input.Notes,
		})
	}

	inserted, err := s.store.ReplaceForTask(ctx, input.TaskID, entries)
	if err != nil {
		if isStoreNotFound(err) {
			return AssignmentResult{}, &NotFoundError{Kind: "task", IDs: []int64{input.TaskID}}
		}
		logger.Error("schedule replacement failed", "error", err)
		return AssignmentResult{}, fmt.Errorf("replacing task schedule: %w", err)
	}

	result := AssignmentResult{
		Success:       true,
		AssignedCount: len(inserted),
		Conflicts:     conflicts,
		ForceOverride: input.Force && len(conflicts) > 0,
		Warning:       warning,
	}
	logger.Info("assignment complete",
		"assigned_count", result.AssignedCount,
		"force_override", result.ForceOverride,
		"degraded", warning != "")
	return result, nil
}

// resolveResources loads the requested resources, failing when any are
// missing or flagged unavailable.
func (s *AssignmentService) resolveResources(ctx context.Context, ids []int64) ([]persistence.Resource, error) {
	resources, err := s.store.GetResources(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading resources: %w", err)
	}

	found := make(map[int64]bool, len(resources))
	unavailable := make([]string, 0)
	for _, resource := range resources {
		found[resource.ID] = true
		if !resource.Available {
			unavailable = append(unavailable, resource.Name)
		}
	}

	missing := make([]int64, 0)
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &NotFoundError{Kind: "resource", IDs: missing}
	}

	if len(unavailable) > 0 {
		sort.Strings(unavailable)
		vErr := &ValidationError{}
		vErr.add("resource_ids", "resources unavailable: "+strings.Join(unavailable, ", "))
		return nil, vErr
	}
	return resources, nil
}

// preflightConflicts runs the conflict check and applies the degraded-mode
// policy. Conflicts attributed to the task being assigned are filtered out,
// since its entries are about to be replaced.
func (s *AssignmentService) preflightConflicts(ctx context.Context, logger *slog.Logger, input AssignmentInput, resourceIDs []int64) ([]scheduler.Conflict, string, error) {
	result, err := s.checker.CheckConflicts(ctx, ConflictCheckInput{
		ResourceIDs: resourceIDs,
		Start:       input.Start,
		End:         input.End,
	})
	if err != nil {
		var tErr *TransportError
		if errors.As(err, &tErr) && tErr.Degradable() && s.policy.AllowDegraded {
			logger.Warn("conflict check unavailable, proceeding degraded",
				"transport_kind", string(tErr.Kind), "error", err)
			return nil, DegradedModeWarning, nil
		}
		logger.Error("conflict check failed", "error", err)
		return nil, "", fmt.Errorf("checking conflicts: %w", err)
	}

	conflicts := make([]scheduler.Conflict, 0, len(result.Conflicts))
	for _, conflict := range result.Conflicts {
		if conflict.TaskID != nil && *conflict.TaskID == input.TaskID {
			continue
		}
		conflicts = append(conflicts, conflict)
	}
	if len(conflicts) == 0 {
		return nil, "", nil
	}
	return conflicts, "", nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
