package persistence

import "time"

// ResourceKind classifies what an assignable resource is.
type ResourceKind string

const (
	ResourceKindStaff     ResourceKind = "staff"
	ResourceKindEquipment ResourceKind = "equipment"
	ResourceKindMaterials ResourceKind = "materials"
)

// Valid reports whether the kind is one of the known resource kinds.
func (k ResourceKind) Valid() bool {
	switch k {
	case ResourceKindStaff, ResourceKindEquipment, ResourceKindMaterials:
		return true
	}
	return false
}

// Resource represents an assignable staff member, piece of equipment or
// material stock. The engine only reads Kind and Available when validating
// assignment requests; the surrounding application owns the rest.
type Resource struct {
	ID         int64
	Name       string
	Kind       ResourceKind
	HourlyRate *float64
	Available  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Event is the minimal reference record for a catering event, stored so
// conflict and availability rows can carry a display name.
type Event struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Task is the minimal reference record for a task within an event.
type Task struct {
	ID        int64
	EventID   int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduleEntry is a single time-bound commitment of one resource to one
// event and, optionally, one task. Intervals are half-open [Start, End) and
// the store enforces End > Start.
type ScheduleEntry struct {
	ID         int64
	ResourceID int64
	EventID    int64
	TaskID     *int64
	Start      time.Time
	End        time.Time
	Notes      *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ResourceTaskAssignment records that a resource is currently committed to a
// task. One row per (TaskID, ResourceID) pair, created and deleted in
// lockstep with the corresponding schedule entry.
type ResourceTaskAssignment struct {
	ID         int64
	TaskID     int64
	ResourceID int64
	CreatedAt  time.Time
}

// NewScheduleEntry carries the caller-supplied fields for an entry about to
// be inserted. Identifiers and timestamps are assigned by the store.
type NewScheduleEntry struct {
	ResourceID int64
	EventID    int64
	TaskID     *int64
	Start      time.Time
	End        time.Time
	Notes      *string
}

// OverlapQuery describes a conflict-detection lookup: every stored entry for
// any of the listed resources whose interval intersects [Start, End) is
// returned, except the entry identified by ExcludeEntryID when set.
type OverlapQuery struct {
	ResourceIDs    []int64
	Start          time.Time
	End            time.Time
	ExcludeEntryID *int64
}

// OverlappingEntry is an overlap-query hit enriched with the display names
// needed to build a user-facing conflict record.
type OverlappingEntry struct {
	Entry        ScheduleEntry
	ResourceName string
	EventName    string
	TaskTitle    *string
}

// AvailabilityEntry is an availability-query row enriched with display names.
type AvailabilityEntry struct {
	Entry     ScheduleEntry
	EventName string
	TaskTitle *string
}
