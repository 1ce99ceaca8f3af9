package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/catering-scheduler/internal/persistence"
	"github.com/example/catering-scheduler/internal/scheduler"
)

var _ persistence.Store = (*Store)(nil)

// Store is an in-memory persistence backend. Overlap queries run against a
// per-resource interval tree rather than scanning every commitment, so it
// honours the same latency contract as the SQL backends. It backs tests and
// the "memory" storage driver.
type Store struct {
	mu          sync.RWMutex
	now         func() time.Time
	nextID      int64
	resources   map[int64]persistence.Resource
	events      map[int64]persistence.Event
	tasks       map[int64]persistence.Task
	entries     map[int64]persistence.ScheduleEntry
	assignments map[int64]persistence.ResourceTaskAssignment
	// trees indexes entry intervals per resource id.
	trees map[int64]*scheduler.IntervalTree
}

// Open returns an empty store. The now function may be nil, in which case
// time.Now is used; tests inject a fixed clock.
func Open(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:         now,
		resources:   make(map[int64]persistence.Resource),
		events:      make(map[int64]persistence.Event),
		tasks:       make(map[int64]persistence.Task),
		entries:     make(map[int64]persistence.ScheduleEntry),
		assignments: make(map[int64]persistence.ResourceTaskAssignment),
		trees:       make(map[int64]*scheduler.IntervalTree),
	}
}

// Ping always succeeds for the in-memory backend.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close releases nothing for the in-memory backend.
func (s *Store) Close() error {
	return nil
}

func (s *Store) nextIDLocked() int64 {
	s.nextID++
	return s.nextID
}

// --- ResourceRepository ---

// CreateResource stores a new resource. Names are unique.
func (s *Store) CreateResource(ctx context.Context, resource persistence.Resource) (persistence.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.resources {
		if existing.Name == resource.Name {
			return persistence.Resource{}, persistence.ErrDuplicate
		}
	}
	if !resource.Kind.Valid() {
		return persistence.Resource{}, persistence.ErrConstraintViolation
	}

	now := s.now().UTC()
	resource.ID = s.nextIDLocked()
	resource.CreatedAt = now
	resource.UpdatedAt = now
	s.resources[resource.ID] = resource
	return resource, nil
}

// GetResource retrieves a resource by id.
func (s *Store) GetResource(ctx context.Context, id int64) (persistence.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resource, ok := s.resources[id]
	if !ok {
		return persistence.Resource{}, persistence.ErrNotFound
	}
	return resource, nil
}

// GetResources resolves the listed ids; missing ids are absent from the result.
func (s *Store) GetResources(ctx context.Context, ids []int64) ([]persistence.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resources := make([]persistence.Resource, 0, len(ids))
	for _, id := range ids {
		if resource, ok := s.resources[id]; ok {
			resources = append(resources, resource)
		}
	}
	if len(resources) == 0 {
		return nil, nil
	}
	return resources, nil
}

// DeleteResource removes a resource and cascades to its schedule entries and
// assignment rows.
func (s *Store) DeleteResource(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.resources, id)
	delete(s.trees, id)

	for entryID, entry := range s.entries {
		if entry.ResourceID == id {
			delete(s.entries, entryID)
		}
	}
	for assignmentID, assignment := range s.assignments {
		if assignment.ResourceID == id {
			delete(s.assignments, assignmentID)
		}
	}
	return nil
}

// --- ReferenceRepository ---

// CreateEvent stores an event reference record.
func (s *Store) CreateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	event.ID = s.nextIDLocked()
	event.CreatedAt = now
	event.UpdatedAt = now
	s.events[event.ID] = event
	return event, nil
}

// GetEvent retrieves an event by id.
func (s *Store) GetEvent(ctx context.Context, id int64) (persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return persistence.Event{}, persistence.ErrNotFound
	}
	return event, nil
}

// CreateTask stores a task reference record under an existing event.
func (s *Store) CreateTask(ctx context.Context, task persistence.Task) (persistence.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[task.EventID]; !ok {
		return persistence.Task{}, persistence.ErrForeignKeyViolation
	}

	now := s.now().UTC()
	task.ID = s.nextIDLocked()
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[task.ID] = task
	return task, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (persistence.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return persistence.Task{}, persistence.ErrNotFound
	}
	return task, nil
}

// DeleteTask removes a task and cascades to its schedule entries and
// assignment rows.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.tasks, id)

	for entryID, entry := range s.entries {
		if entry.TaskID != nil && *entry.TaskID == id {
			s.removeEntryLocked(entryID)
		}
	}
	for assignmentID, assignment := range s.assignments {
		if assignment.TaskID == id {
			delete(s.assignments, assignmentID)
		}
	}
	return nil
}

// --- ScheduleEntryRepository ---

// CreateEntry inserts a standalone commitment without touching assignments.
func (s *Store) CreateEntry(ctx context.Context, entry persistence.NewScheduleEntry) (persistence.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertEntryLocked(entry)
}

func (s *Store) validateEntryLocked(entry persistence.NewScheduleEntry) error {
	if !entry.End.After(entry.Start) {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.resources[entry.ResourceID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if _, ok := s.events[entry.EventID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if entry.TaskID != nil {
		if _, ok := s.tasks[*entry.TaskID]; !ok {
			return persistence.ErrForeignKeyViolation
		}
	}
	return nil
}

func (s *Store) insertEntryLocked(entry persistence.NewScheduleEntry) (persistence.ScheduleEntry, error) {
	if err := s.validateEntryLocked(entry); err != nil {
		return persistence.ScheduleEntry{}, err
	}

	now := s.now().UTC()
	stored := persistence.ScheduleEntry{
		ID:         s.nextIDLocked(),
		ResourceID: entry.ResourceID,
		EventID:    entry.EventID,
		TaskID:     cloneInt64(entry.TaskID),
		Start:      entry.Start.UTC(),
		End:        entry.End.UTC(),
		Notes:      cloneString(entry.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.entries[stored.ID] = stored

	tree, ok := s.trees[stored.ResourceID]
	if !ok {
		tree = scheduler.NewIntervalTree()
		s.trees[stored.ResourceID] = tree
	}
	tree.Insert(stored.ID, scheduler.Interval{Start: stored.Start, End: stored.End})

	return stored, nil
}

func (s *Store) removeEntryLocked(entryID int64) {
	entry, ok := s.entries[entryID]
	if !ok {
		return
	}
	delete(s.entries, entryID)
	if tree, ok := s.trees[entry.ResourceID]; ok {
		tree.Delete(entryID, scheduler.Interval{Start: entry.Start, End: entry.End})
	}
}

// FindOverlapping returns every entry for the listed resources intersecting
// the half-open query interval, via the per-resource interval trees.
func (s *Store) FindOverlapping(ctx context.Context, query persistence.OverlapQuery) ([]persistence.OverlappingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	interval := scheduler.Interval{Start: query.Start, End: query.End}
	var hits []persistence.OverlappingEntry
	for _, resourceID := range query.ResourceIDs {
		tree, ok := s.trees[resourceID]
		if !ok {
			continue
		}
		for _, entryID := range tree.Query(interval) {
			if query.ExcludeEntryID != nil && entryID == *query.ExcludeEntryID {
				continue
			}
			hits = append(hits, s.enrichEntryLocked(s.entries[entryID]))
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i].Entry, hits[j].Entry
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})
	return hits, nil
}

func (s *Store) enrichEntryLocked(entry persistence.ScheduleEntry) persistence.OverlappingEntry {
	enriched := persistence.OverlappingEntry{Entry: entry}
	if resource, ok := s.resources[entry.ResourceID]; ok {
		enriched.ResourceName = resource.Name
	}
	if event, ok := s.events[entry.EventID]; ok {
		enriched.EventName = event.Name
	}
	if entry.TaskID != nil {
		if task, ok := s.tasks[*entry.TaskID]; ok {
			title := task.Title
			enriched.TaskTitle = &title
		}
	}
	return enriched
}

// ListForResourceWindow returns entries intersecting [from, to) for one
// resource ordered by start time.
func (s *Store) ListForResourceWindow(ctx context.Context, resourceID int64, from, to time.Time) ([]persistence.AvailabilityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.resources[resourceID]; !ok {
		return nil, persistence.ErrNotFound
	}

	tree, ok := s.trees[resourceID]
	if !ok {
		return nil, nil
	}

	var rows []persistence.AvailabilityEntry
	for _, entryID := range tree.Query(scheduler.Interval{Start: from, End: to}) {
		enriched := s.enrichEntryLocked(s.entries[entryID])
		rows = append(rows, persistence.AvailabilityEntry{
			Entry:     enriched.Entry,
			EventName: enriched.EventName,
			TaskTitle: enriched.TaskTitle,
		})
	}
	return rows, nil
}

// ListForTask returns the schedule entries currently held by a task, ordered
// by resource id for stable output.
func (s *Store) ListForTask(ctx context.Context, taskID int64) ([]persistence.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []persistence.ScheduleEntry
	for _, entry := range s.entries {
		if entry.TaskID != nil && *entry.TaskID == taskID {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ResourceID < entries[j].ResourceID
	})
	return entries, nil
}

// ReplaceForTask atomically rewrites the task's commitment set: every
// existing entry and assignment row for the task is removed, then one fresh
// entry plus assignment is inserted per element of entries. The store lock is
// held for the whole rewrite so no reader observes a partial state.
func (s *Store) ReplaceForTask(ctx context.Context, taskID int64, entries []persistence.NewScheduleEntry) ([]persistence.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return nil, persistence.ErrNotFound
	}

	// Validate everything up front so a failed replace leaves the previous
	// commitment set untouched, matching the SQL backends' transactions.
	for _, entry := range entries {
		if entry.TaskID == nil || *entry.TaskID != taskID {
			return nil, fmt.Errorf("memory: entry task id does not match replace target %d", taskID)
		}
		if err := s.validateEntryLocked(entry); err != nil {
			return nil, err
		}
	}

	for entryID, entry := range s.entries {
		if entry.TaskID != nil && *entry.TaskID == taskID {
			s.removeEntryLocked(entryID)
		}
	}
	for assignmentID, assignment := range s.assignments {
		if assignment.TaskID == taskID {
			delete(s.assignments, assignmentID)
		}
	}

	inserted := make([]persistence.ScheduleEntry, 0, len(entries))
	for _, entry := range entries {
		stored, err := s.insertEntryLocked(entry)
		if err != nil {
			return nil, err
		}
		inserted = append(inserted, stored)

		assignmentID := s.nextIDLocked()
		s.assignments[assignmentID] = persistence.ResourceTaskAssignment{
			ID:         assignmentID,
			TaskID:     taskID,
			ResourceID: entry.ResourceID,
			CreatedAt:  s.now().UTC(),
		}
	}

	sort.Slice(inserted, func(i, j int) bool {
		return inserted[i].ResourceID < inserted[j].ResourceID
	})
	return inserted, nil
}

// ListAssignmentsForTask returns the assignment rows for a task ordered by
// resource id.
func (s *Store) ListAssignmentsForTask(ctx context.Context, taskID int64) ([]persistence.ResourceTaskAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []persistence.ResourceTaskAssignment
	for _, assignment := range s.assignments {
		if assignment.TaskID == taskID {
			rows = append(rows, assignment)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ResourceID < rows[j].ResourceID
	})
	return rows, nil
}

// ListAssignmentsForResource returns the assignment rows for a resource
// ordered by task id.
func (s *Store) ListAssignmentsForResource(ctx context.Context, resourceID int64) ([]persistence.ResourceTaskAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []persistence.ResourceTaskAssignment
	for _, assignment := range s.assignments {
		if assignment.ResourceID == resourceID {
			rows = append(rows, assignment)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].TaskID < rows[j].TaskID
	})
	return rows, nil
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneInt64(value *int64) *int64 {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
