package persistence

import (
	"context"
	"time"
)

// ResourceRepository exposes the resource reads the engine needs plus the
// create path used by fixtures and the surrounding application.
type ResourceRepository interface {
	CreateResource(ctx context.Context, resource Resource) (Resource, error)
	GetResource(ctx context.Context, id int64) (Resource, error)
	// GetResources resolves the listed ids. Missing ids are simply absent
	// from the result; callers decide whether that is an error.
	GetResources(ctx context.Context, ids []int64) ([]Resource, error)
	DeleteResource(ctx context.Context, id int64) error
}

// ReferenceRepository stores the event and task reference records the engine
// joins against for display names.
type ReferenceRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id int64) (Event, error)
	CreateTask(ctx context.Context, task Task) (Task, error)
	GetTask(ctx context.Context, id int64) (Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// ScheduleEntryRepository stores time-ranged commitments and the task
// assignment rows that mirror them. FindOverlapping must run against an
// interval-indexed lookup, not a full scan of the resource's commitments.
type ScheduleEntryRepository interface {
	CreateEntry(ctx context.Context, entry NewScheduleEntry) (ScheduleEntry, error)
	FindOverlapping(ctx context.Context, query OverlapQuery) ([]OverlappingEntry, error)
	// ListForResourceWindow returns entries intersecting [from, to) for one
	// resource, ordered by start time ascending.
	ListForResourceWindow(ctx context.Context, resourceID int64, from, to time.Time) ([]AvailabilityEntry, error)
	ListForTask(ctx context.Context, taskID int64) ([]ScheduleEntry, error)
	// ReplaceForTask deletes every schedule entry and assignment row for the
	// task and inserts one fresh entry plus assignment per element of
	// entries, all within a single transaction.
	ReplaceForTask(ctx context.Context, taskID int64, entries []NewScheduleEntry) ([]ScheduleEntry, error)
	ListAssignmentsForTask(ctx context.Context, taskID int64) ([]ResourceTaskAssignment, error)
	ListAssignmentsForResource(ctx context.Context, resourceID int64) ([]ResourceTaskAssignment, error)
}

// Store aggregates the repositories a single backend provides along with
// connectivity checks used by the health endpoint.
type Store interface {
	ResourceRepository
	ReferenceRepository
	ScheduleEntryRepository
	Ping(ctx context.Context) error
	Close() error
}
