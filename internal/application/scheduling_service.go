package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/catering-scheduler/internal/persistence"
	"github.com/example/catering-scheduler/internal/scheduler"
)

// ScheduleStore captures the persistence interactions needed by the
// scheduling service.
type ScheduleStore interface {
	FindOverlapping(ctx context.Context, query persistence.OverlapQuery) ([]persistence.OverlappingEntry, error)
	ListForResourceWindow(ctx context.Context, resourceID int64, from, to time.Time) ([]persistence.AvailabilityEntry, error)
	Ping(ctx context.Context) error
}

// SchedulingService answers conflict and availability questions against the
// schedule store. It performs no mutations.
type SchedulingService struct {
	store  ScheduleStore
	logger *slog.Logger
}

// NewSchedulingService wires dependencies for conflict and availability
// queries.
func NewSchedulingService(store ScheduleStore, logger *slog.Logger) *SchedulingService {
	return &SchedulingService{store: store, logger: defaultLogger(logger)}
}

// CheckConflicts reports every existing commitment for the listed resources
// that intersects the half-open interval [input.Start, input.End). Finding
// conflicts is a successful outcome; the error return covers validation and
// storage failures only.
func (s *SchedulingService) CheckConflicts(ctx context.Context, input ConflictCheckInput) (ConflictCheckResult, error) {
	if s == nil {
		return ConflictCheckResult{}, fmt.Errorf("SchedulingService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "scheduling", "check_conflicts")

	input.Start, input.End = normalizeInterval(input.Start, input.End)
	vErr := &ValidationError{}
	validateInterval(input.Start, input.End, vErr)
	if len(input.ResourceIDs) == 0 {
		vErr.add("resource_ids", "at least one resource id is required")
	}
	if vErr.HasErrors() {
		logger.Warn("conflict check rejected", "error_kind", ErrorKind(vErr))
		return ConflictCheckResult{}, vErr
	}

	hits, err := s.store.FindOverlapping(ctx, persistence.OverlapQuery{
		ResourceIDs:    input.ResourceIDs,
		Start:          input.Start,
		End:            input.End,
		ExcludeEntryID: input.ExcludeEntryID,
	})
	if err != nil {
		logger.Error("overlap query failed", "error", err)
		return ConflictCheckResult{}, fmt.Errorf("querying overlapping entries: %w", err)
	}

	requested := scheduler.Interval{Start: input.Start, End: input.End}
	conflicts := scheduler.DetectConflicts(commitments(hits), requested, input.ExcludeEntryID)

	logger.Info("conflict check complete",
		"resource_count", len(input.ResourceIDs),
		"conflict_count", len(conflicts))
	return ConflictCheckResult{
		HasConflicts: len(conflicts) > 0,
		Conflicts:    conflicts,
	}, nil
}

// ResourceAvailability lists every commitment for one resource that
// intersects [from, to), ordered by start time. An unknown resource id
// yields a NotFoundError.
func (s *SchedulingService) ResourceAvailability(ctx context.Context, resourceID int64, from, to time.Time) ([]AvailabilityEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulingService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "scheduling", "resource_availability", "resource_id", resourceID)

	from, to = normalizeInterval(from, to)
	vErr := &ValidationError{}
	if resourceID <= 0 {
		vErr.add("resource_id", "resource id is required")
	}
	validateInterval(from, to, vErr)
	if vErr.HasErrors() {
		logger.Warn("availability query rejected", "error_kind", ErrorKind(vErr))
		return nil, vErr
	}

	rows, err := s.store.ListForResourceWindow(ctx, resourceID, from, to)
	if err != nil {
		if isStoreNotFound(err) {
			return nil, &NotFoundError{Kind: "resource", IDs: []int64{resourceID}}
		}
		logger.Error("availability query failed", "error", err)
		return nil, fmt.Errorf("querying resource availability: %w", err)
	}

	entries := make([]AvailabilityEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, AvailabilityEntry{
			EntryID:    row.Entry.ID,
			ResourceID: row.Entry.ResourceID,
			EventID:    row.Entry.EventID,
			EventName:  row.EventName,
			TaskID:     row.Entry.TaskID,
			TaskTitle:  row.TaskTitle,
			Start:      row.Entry.Start,
			End:        row.Entry.End,
			Notes:      row.Entry.Notes,
			CreatedAt:  row.Entry.CreatedAt,
			UpdatedAt:  row.Entry.UpdatedAt,
		})
	}
	logger.Info("availability query complete", "entry_count", len(entries))
	return entries, nil
}

// Health reports whether the service and its storage backend are reachable.
func (s *SchedulingService) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{Status: "ok", Database: "ok"}
	if err := s.store.Ping(ctx); err != nil {
		serviceLogger(ctx, s.logger, "scheduling", "health").Error("storage ping failed", "error", err)
		status.Status = "degraded"
		status.Database = "unreachable"
	}
	return status
}

// normalizeInterval truncates both bounds to whole seconds. Stores persist
// timestamps at second precision, so validating the truncated interval keeps
// the service and the storage constraint in agreement: a sub-second-wide
// interval collapses to zero width here and is rejected as validation input
// rather than surfacing later as a storage constraint failure.
func normalizeInterval(start, end time.Time) (time.Time, time.Time) {
	return start.Truncate(time.Second), end.Truncate(time.Second)
}

func validateInterval(start, end time.Time, vErr *ValidationError) {
	switch {
	case start.IsZero():
		vErr.add("start_time", "start time is required")
	case end.IsZero():
		vErr.add("end_time", "end time is required")
	case !end.After(start):
		vErr.add("end_time", "end time must be after start time")
	}
}

func isStoreNotFound(err error) bool {
	return errors.Is(err, persistence.ErrNotFound)
}

func commitments(hits []persistence.OverlappingEntry) []scheduler.Commitment {
	if len(hits) == 0 {
		return nil
	}
	out := make([]scheduler.Commitment, 0, len(hits))
	for _, hit := range hits {
		out = append(out, scheduler.Commitment{
			EntryID:      hit.Entry.ID,
			ResourceID:   hit.Entry.ResourceID,
			ResourceName: hit.ResourceName,
			EventID:      hit.Entry.EventID,
			EventName:    hit.EventName,
			TaskID:       hit.Entry.TaskID,
			TaskTitle:    hit.TaskTitle,
			Interval:     scheduler.Interval{Start: hit.Entry.Start, End: hit.Entry.End},
		})
	}
	return out
}
