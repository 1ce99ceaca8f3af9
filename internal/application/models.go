package application

import (
	"time"

	"github.com/example/catering-scheduler/internal/scheduler"
)

// ConflictCheckInput describes one conflict-detection request: a set of
// resources and the half-open interval [Start, End) they would be committed
// to. ExcludeEntryID removes one existing entry from consideration, which
// lets edit flows avoid self-conflicts.
type ConflictCheckInput struct {
	ResourceIDs    []int64
	Start          time.Time
	End            time.Time
	ExcludeEntryID *int64
}

// ConflictCheckResult reports whether the requested interval collides with
// existing commitments. Conflicts are data, not errors.
type ConflictCheckResult struct {
	HasConflicts bool
	Conflicts    []scheduler.Conflict
}

// AvailabilityEntry is one commitment inside a queried window, enriched with
// the display names availability views present.
type AvailabilityEntry struct {
	EntryID    int64
	ResourceID int64
	EventID    int64
	EventName  string
	TaskID     *int64
	TaskTitle  *string
	Start      time.Time
	End        time.Time
	Notes      *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AssignmentInput describes a request to commit a set of resources to a task
// over one interval. Force lets a coordinator record the assignment despite
// detected conflicts (intentional double-booking).
type AssignmentInput struct {
	TaskID      int64
	ResourceIDs []int64
	Start       time.Time
	End         time.Time
	Notes       *string
	Force       bool
}

// AssignmentResult is the outcome of an assignment request. When conflicts
// block the assignment, Success is false and Conflicts carries the details;
// no state has changed. When Force overrode conflicts, ForceOverride is true
// and Conflicts still lists what was overridden for auditability. Warning is
// set when the assignment proceeded without conflict verification.
type AssignmentResult struct {
	Success       bool
	AssignedCount int
	Conflicts     []scheduler.Conflict
	ForceOverride bool
	Warning       string
}

// HealthStatus reports service and storage health.
type HealthStatus struct {
	Status   string
	Database string
}
