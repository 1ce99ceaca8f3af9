// Package testfixtures supplies deterministic records and a controllable
// clock for persistence and application tests.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/catering-scheduler/internal/persistence"
)

var (
	resourceCounter uint64
	eventCounter    uint64
	taskCounter     uint64
	entryCounter    uint64
)

var referenceTime = time.Date(2025, time.June, 14, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ResourceOption configures a generated resource fixture.
type ResourceOption func(*persistence.Resource)

// WithID overrides the generated identifier. Useful for stub-backed tests
// that pin ids; store-backed tests let the store assign one.
func WithID(id int64) ResourceOption {
	return func(r *persistence.Resource) { r.ID = id }
}

// WithName overrides the generated resource name.
func WithName(name string) ResourceOption {
	return func(r *persistence.Resource) { r.Name = name }
}

// WithKind overrides the resource kind.
func WithKind(kind persistence.ResourceKind) ResourceOption {
	return func(r *persistence.Resource) { r.Kind = kind }
}

// WithUnavailable marks the resource as unavailable for new commitments.
func WithUnavailable() ResourceOption {
	return func(r *persistence.Resource) { r.Available = false }
}

// WithHourlyRate sets the resource's hourly rate.
func WithHourlyRate(rate float64) ResourceOption {
	return func(r *persistence.Resource) { r.HourlyRate = &rate }
}

// NewResource returns a deterministic staff resource with optional overrides.
func NewResource(opts ...ResourceOption) persistence.Resource {
	idx := atomic.AddUint64(&resourceCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	resource := persistence.Resource{
		ID:        int64(idx),
		Name:      fmt.Sprintf("Resource %03d", idx),
		Kind:      persistence.ResourceKindStaff,
		Available: true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&resource)
	}
	return resource
}

// EventOption configures a generated event fixture.
type EventOption func(*persistence.Event)

// WithEventName overrides the generated event name.
func WithEventName(name string) EventOption {
	return func(e *persistence.Event) { e.Name = name }
}

// NewEvent returns a deterministic event fixture.
func NewEvent(opts ...EventOption) persistence.Event {
	idx := atomic.AddUint64(&eventCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	event := persistence.Event{
		ID:        int64(idx),
		Name:      fmt.Sprintf("Event %03d", idx),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}

// TaskOption configures a generated task fixture.
type TaskOption func(*persistence.Task)

// WithTaskTitle overrides the generated task title.
func WithTaskTitle(title string) TaskOption {
	return func(t *persistence.Task) { t.Title = title }
}

// NewTask returns a deterministic task fixture attached to the given event.
func NewTask(eventID int64, opts ...TaskOption) persistence.Task {
	idx := atomic.AddUint64(&taskCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	task := persistence.Task{
		ID:        int64(idx),
		EventID:   eventID,
		Title:     fmt.Sprintf("Task %03d", idx),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&task)
	}
	return task
}

// EntryOption configures a generated schedule entry fixture.
type EntryOption func(*persistence.ScheduleEntry)

// WithInterval overrides the entry's interval.
func WithInterval(start, end time.Time) EntryOption {
	return func(e *persistence.ScheduleEntry) {
		e.Start = start
		e.End = end
	}
}

// WithTask attaches the entry to a task.
func WithTask(taskID int64) EntryOption {
	return func(e *persistence.ScheduleEntry) { e.TaskID = &taskID }
}

// NewEntry returns a deterministic schedule entry committing the resource to
// the event for a two hour window.
func NewEntry(resourceID, eventID int64, opts ...EntryOption) persistence.ScheduleEntry {
	idx := atomic.AddUint64(&entryCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	entry := persistence.ScheduleEntry{
		ID:         int64(idx),
		ResourceID: resourceID,
		EventID:    eventID,
		Start:      start,
		End:        start.Add(2 * time.Hour),
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
	for _, opt := range opts {
		opt(&entry)
	}
	return entry
}
