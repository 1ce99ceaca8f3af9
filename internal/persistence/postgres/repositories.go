package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/catering-scheduler/internal/persistence"
)

// CreateResource inserts a new resource row.
func (s *Store) CreateResource(ctx context.Context, resource persistence.Resource) (persistence.Resource, error) {
	if !resource.Kind.Valid() {
		return persistence.Resource{}, persistence.ErrConstraintViolation
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO resources (name, kind, hourly_rate, available)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, resource.Name, string(resource.Kind), resource.HourlyRate, resource.Available).
		Scan(&resource.ID, &resource.CreatedAt, &resource.UpdatedAt)
	if err != nil {
		return persistence.Resource{}, mapError(err)
	}
	return resource, nil
}

// GetResource retrieves a resource by id.
func (s *Store) GetResource(ctx context.Context, id int64) (persistence.Resource, error) {
	var (
		resource persistence.Resource
		kind     string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, kind, hourly_rate, available, created_at, updated_at
		FROM resources WHERE id = $1
	`, id).Scan(&resource.ID, &resource.Name, &kind, &resource.HourlyRate,
		&resource.Available, &resource.CreatedAt, &resource.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return persistence.Resource{}, persistence.ErrNotFound
		}
		return persistence.Resource{}, mapError(err)
	}
	resource.Kind = persistence.ResourceKind(kind)
	return resource, nil
}

// GetResources resolves the listed ids. Missing ids are absent from the result.
func (s *Store) GetResources(ctx context.Context, ids []int64) ([]persistence.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, kind, hourly_rate, available, created_at, updated_at
		FROM resources WHERE id = ANY($1) ORDER BY id ASC
	`, ids)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var resources []persistence.Resource
	for rows.Next() {
		var (
			resource persistence.Resource
			kind     string
		)
		if err := rows.Scan(&resource.ID, &resource.Name, &kind, &resource.HourlyRate,
			&resource.Available, &resource.CreatedAt, &resource.UpdatedAt); err != nil {
			return nil, mapError(err)
		}
		resource.Kind = persistence.ResourceKind(kind)
		resources = append(resources, resource)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return resources, nil
}

// DeleteResource removes a resource; dependent rows cascade.
func (s *Store) DeleteResource(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM resources WHERE id = $1", id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// CreateEvent inserts an event reference row.
func (s *Store) CreateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO events (name) VALUES ($1) RETURNING id, created_at, updated_at
	`, event.Name).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return persistence.Event{}, mapError(err)
	}
	return event, nil
}

// GetEvent retrieves an event by id.
func (s *Store) GetEvent(ctx context.Context, id int64) (persistence.Event, error) {
	var event persistence.Event
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at FROM events WHERE id = $1
	`, id).Scan(&event.ID, &event.Name, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return persistence.Event{}, persistence.ErrNotFound
		}
		return persistence.Event{}, mapError(err)
	}
	return event, nil
}

// CreateTask inserts a task reference row.
func (s *Store) CreateTask(ctx context.Context, task persistence.Task) (persistence.Task, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tasks (event_id, title) VALUES ($1, $2) RETURNING id, created_at, updated_at
	`, task.EventID, task.Title).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return persistence.Task{}, mapError(err)
	}
	return task, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (persistence.Task, error) {
	var task persistence.Task
	err := s.pool.QueryRow(ctx, `
		SELECT id, event_id, title, created_at, updated_at FROM tasks WHERE id = $1
	`, id).Scan(&task.ID, &task.EventID, &task.Title, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return persistence.Task{}, persistence.ErrNotFound
		}
		return persistence.Task{}, mapError(err)
	}
	return task, nil
}

// DeleteTask removes a task; entries and assignments cascade.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// CreateEntry inserts a standalone commitment without touching assignments.
func (s *Store) CreateEntry(ctx context.Context, entry persistence.NewScheduleEntry) (persistence.ScheduleEntry, error) {
	if !entry.End.After(entry.Start) {
		return persistence.ScheduleEntry{}, persistence.ErrConstraintViolation
	}

	stored := persistence.ScheduleEntry{
		ResourceID: entry.ResourceID,
		EventID:    entry.EventID,
		TaskID:     entry.TaskID,
		Start:      toUTC(entry.Start),
		End:        toUTC(entry.End),
		Notes:      entry.Notes,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO schedule_entries (resource_id, event_id, task_id, start_time, end_time, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, entry.ResourceID, entry.EventID, entry.TaskID, toUTC(entry.Start), toUTC(entry.End), entry.Notes).
		Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return persistence.ScheduleEntry{}, mapError(err)
	}
	return stored, nil
}

// FindOverlapping returns every entry for the listed resources intersecting
// the half-open query window. `tstzrange(...) && tstzrange($2, $3)` uses
// range semantics with inclusive start and exclusive end, so adjacency is
// exact, and the GiST index serves the lookup.
func (s *Store) FindOverlapping(ctx context.Context, query persistence.OverlapQuery) ([]persistence.OverlappingEntry, error) {
	if len(query.ResourceIDs) == 0 {
		return nil, nil
	}

	sqlQuery := `
		SELECT se.id, se.resource_id, se.event_id, se.task_id, se.start_time, se.end_time, se.notes,
		       se.created_at, se.updated_at, r.name, e.name, t.title
		FROM schedule_entries se
		JOIN resources r ON r.id = se.resource_id
		JOIN events e ON e.id = se.event_id
		LEFT JOIN tasks t ON t.id = se.task_id
		WHERE se.resource_id = ANY($1)
		  AND tstzrange(se.start_time, se.end_time) && tstzrange($2, $3)
	`
	args := []any{query.ResourceIDs, toUTC(query.Start), toUTC(query.End)}
	if query.ExcludeEntryID != nil {
		sqlQuery += " AND se.id != $4"
		args = append(args, *query.ExcludeEntryID)
	}
	sqlQuery += " ORDER BY se.start_time ASC, se.id ASC"

	rows, err := s.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var hits []persistence.OverlappingEntry
	for rows.Next() {
		var hit persistence.OverlappingEntry
		if err := rows.Scan(&hit.Entry.ID, &hit.Entry.ResourceID, &hit.Entry.EventID, &hit.Entry.TaskID,
			&hit.Entry.Start, &hit.Entry.End, &hit.Entry.Notes, &hit.Entry.CreatedAt, &hit.Entry.UpdatedAt,
			&hit.ResourceName, &hit.EventName, &hit.TaskTitle); err != nil {
			return nil, mapError(err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return hits, nil
}

// ListForResourceWindow returns entries intersecting [from, to) for one
// resource ordered by start time.
func (s *Store) ListForResourceWindow(ctx context.Context, resourceID int64, from, to time.Time) ([]persistence.AvailabilityEntry, error) {
	if _, err := s.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT se.id, se.resource_id, se.event_id, se.task_id, se.start_time, se.end_time, se.notes,
		       se.created_at, se.updated_at, e.name, t.title
		FROM schedule_entries se
		JOIN events e ON e.id = se.event_id
		LEFT JOIN tasks t ON t.id = se.task_id
		WHERE se.resource_id = $1
		  AND tstzrange(se.start_time, se.end_time) && tstzrange($2, $3)
		ORDER BY se.start_time ASC, se.id ASC
	`, resourceID, toUTC(from), toUTC(to))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []persistence.AvailabilityEntry
	for rows.Next() {
		var row persistence.AvailabilityEntry
		if err := rows.Scan(&row.Entry.ID, &row.Entry.ResourceID, &row.Entry.EventID, &row.Entry.TaskID,
			&row.Entry.Start, &row.Entry.End, &row.Entry.Notes, &row.Entry.CreatedAt, &row.Entry.UpdatedAt,
			&row.EventName, &row.TaskTitle); err != nil {
			return nil, mapError(err)
		}
		entries = append(entries, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

// ListForTask returns the entries currently held by a task.
func (s *Store) ListForTask(ctx context.Context, taskID int64) ([]persistence.ScheduleEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, resource_id, event_id, task_id, start_time, end_time, notes, created_at, updated_at
		FROM schedule_entries WHERE task_id = $1 ORDER BY resource_id ASC
	`, taskID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []persistence.ScheduleEntry
	for rows.Next() {
		var entry persistence.ScheduleEntry
		if err := rows.Scan(&entry.ID, &entry.ResourceID, &entry.EventID, &entry.TaskID,
			&entry.Start, &entry.End, &entry.Notes, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, mapError(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

// ReplaceForTask atomically rewrites the task's commitment set inside a
// single transaction.
func (s *Store) ReplaceForTask(ctx context.Context, taskID int64, entries []persistence.NewScheduleEntry) ([]persistence.ScheduleEntry, error) {
	for _, entry := range entries {
		if entry.TaskID == nil || *entry.TaskID != taskID {
			return nil, fmt.Errorf("postgres: entry task id does not match replace target %d", taskID)
		}
		if !entry.End.After(entry.Start) {
			return nil, persistence.ErrConstraintViolation
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning replace transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)", taskID).Scan(&exists); err != nil {
		return nil, mapError(err)
	}
	if !exists {
		return nil, persistence.ErrNotFound
	}

	if _, err := tx.Exec(ctx, "DELETE FROM schedule_entries WHERE task_id = $1", taskID); err != nil {
		return nil, mapError(err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM resource_task_assignments WHERE task_id = $1", taskID); err != nil {
		return nil, mapError(err)
	}

	inserted := make([]persistence.ScheduleEntry, 0, len(entries))
	for _, entry := range entries {
		stored := persistence.ScheduleEntry{
			ResourceID: entry.ResourceID,
			EventID:    entry.EventID,
			TaskID:     entry.TaskID,
			Start:      toUTC(entry.Start),
			End:        toUTC(entry.End),
			Notes:      entry.Notes,
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO schedule_entries (resource_id, event_id, task_id, start_time, end_time, notes)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at
		`, entry.ResourceID, entry.EventID, entry.TaskID, toUTC(entry.Start), toUTC(entry.End), entry.Notes).
			Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt)
		if err != nil {
			return nil, mapError(err)
		}
		inserted = append(inserted, stored)

		if _, err := tx.Exec(ctx, `
			INSERT INTO resource_task_assignments (task_id, resource_id) VALUES ($1, $2)
		`, taskID, entry.ResourceID); err != nil {
			return nil, mapError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing replace transaction: %w", err)
	}
	return inserted, nil
}

// ListAssignmentsForTask returns the assignment rows for a task.
func (s *Store) ListAssignmentsForTask(ctx context.Context, taskID int64) ([]persistence.ResourceTaskAssignment, error) {
	return s.listAssignments(ctx, "task_id", taskID, "resource_id")
}

// ListAssignmentsForResource returns the assignment rows for a resource.
func (s *Store) ListAssignmentsForResource(ctx context.Context, resourceID int64) ([]persistence.ResourceTaskAssignment, error) {
	return s.listAssignments(ctx, "resource_id", resourceID, "task_id")
}

func (s *Store) listAssignments(ctx context.Context, column string, value int64, orderBy string) ([]persistence.ResourceTaskAssignment, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, task_id, resource_id, created_at
		FROM resource_task_assignments WHERE %s = $1 ORDER BY %s ASC
	`, column, orderBy), value)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var assignments []persistence.ResourceTaskAssignment
	for rows.Next() {
		var assignment persistence.ResourceTaskAssignment
		if err := rows.Scan(&assignment.ID, &assignment.TaskID, &assignment.ResourceID, &assignment.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return assignments, nil
}
