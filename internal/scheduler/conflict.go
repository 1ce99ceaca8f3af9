package scheduler

import (
	"fmt"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval is well formed.
func (i Interval) Valid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && i.End.After(i.Start)
}

// Overlaps reports whether two half-open intervals intersect. Intervals that
// merely touch at a boundary (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Commitment is an existing schedule entry as seen by the detector, enriched
// with the display names callers present to users.
type Commitment struct {
	EntryID      int64
	ResourceID   int64
	ResourceName string
	EventID      int64
	EventName    string
	TaskID       *int64
	TaskTitle    *string
	Interval     Interval
}

// Conflict describes one existing commitment that intersects a requested
// interval. Conflicts are computed on demand and never persisted.
type Conflict struct {
	EntryID        int64
	ResourceID     int64
	ResourceName   string
	EventID        int64
	EventName      string
	TaskID         *int64
	TaskTitle      *string
	ExistingStart  time.Time
	ExistingEnd    time.Time
	RequestedStart time.Time
	RequestedEnd   time.Time
	Message        string
}

// DetectConflicts returns one conflict per commitment whose interval
// intersects requested, excluding the entry identified by excludeEntryID
// when non-nil. Commitments are assumed to already be narrowed to the
// resources under consideration.
func DetectConflicts(commitments []Commitment, requested Interval, excludeEntryID *int64) []Conflict {
	if len(commitments) == 0 {
		return nil
	}

	conflicts := make([]Conflict, 0)
	for _, commitment := range commitments {
		if excludeEntryID != nil && commitment.EntryID == *excludeEntryID {
			continue
		}
		if !Overlaps(commitment.Interval, requested) {
			continue
		}
		conflicts = append(conflicts, newConflict(commitment, requested))
	}

	if len(conflicts) == 0 {
		return nil
	}
	return conflicts
}

func newConflict(commitment Commitment, requested Interval) Conflict {
	return Conflict{
		EntryID:        commitment.EntryID,
		ResourceID:     commitment.ResourceID,
		ResourceName:   commitment.ResourceName,
		EventID:        commitment.EventID,
		EventName:      commitment.EventName,
		TaskID:         commitment.TaskID,
		TaskTitle:      commitment.TaskTitle,
		ExistingStart:  commitment.Interval.Start,
		ExistingEnd:    commitment.Interval.End,
		RequestedStart: requested.Start,
		RequestedEnd:   requested.End,
		Message:        conflictMessage(commitment),
	}
}

func conflictMessage(commitment Commitment) string {
	window := fmt.Sprintf("%s to %s",
		commitment.Interval.Start.UTC().Format(time.RFC3339),
		commitment.Interval.End.UTC().Format(time.RFC3339))

	if commitment.TaskTitle != nil && *commitment.TaskTitle != "" {
		return fmt.Sprintf("%s is already committed to %q (%s) from %s",
			commitment.ResourceName, *commitment.TaskTitle, commitment.EventName, window)
	}
	return fmt.Sprintf("%s is already committed to %s from %s",
		commitment.ResourceName, commitment.EventName, window)
}
