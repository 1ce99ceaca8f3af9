package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/catering-scheduler/internal/persistence"
)

// CreateEntry inserts a standalone commitment without touching assignments.
func (s *Store) CreateEntry(ctx context.Context, entry persistence.NewScheduleEntry) (persistence.ScheduleEntry, error) {
	if !entry.End.After(entry.Start) {
		return persistence.ScheduleEntry{}, persistence.ErrConstraintViolation
	}

	var stored persistence.ScheduleEntry
	err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		stored, err = s.insertEntryTx(tx, entry)
		return err
	})
	if err != nil {
		return persistence.ScheduleEntry{}, err
	}
	return stored, nil
}

func (s *Store) insertEntryTx(tx *sql.Tx, entry persistence.NewScheduleEntry) (persistence.ScheduleEntry, error) {
	now := s.now().UTC()
	result, err := tx.Exec(`
		INSERT INTO schedule_entries (resource_id, event_id, task_id, start_time, end_time, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ResourceID,
		entry.EventID,
		nullInt64(entry.TaskID),
		formatTime(entry.Start),
		formatTime(entry.End),
		nullString(entry.Notes),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return persistence.ScheduleEntry{}, mapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistence.ScheduleEntry{}, fmt.Errorf("failed to read inserted entry id: %w", err)
	}

	return persistence.ScheduleEntry{
		ID:         id,
		ResourceID: entry.ResourceID,
		EventID:    entry.EventID,
		TaskID:     entry.TaskID,
		Start:      entry.Start.UTC().Truncate(time.Second),
		End:        entry.End.UTC().Truncate(time.Second),
		Notes:      entry.Notes,
		CreatedAt:  now.Truncate(time.Second),
		UpdatedAt:  now.Truncate(time.Second),
	}, nil
}

// FindOverlapping returns every entry for the listed resources whose
// interval intersects the half-open query window. The predicate
// (start_time < query end AND end_time > query start) rides the composite
// (resource_id, start_time, end_time) index, so boundary-adjacent entries
// are excluded exactly and lookups stay bounded as volume grows.
func (s *Store) FindOverlapping(ctx context.Context, query persistence.OverlapQuery) ([]persistence.OverlappingEntry, error) {
	if len(query.ResourceIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(query.ResourceIDs))
	args := make([]any, 0, len(query.ResourceIDs)+3)
	for i, id := range query.ResourceIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, formatTime(query.End), formatTime(query.Start))

	sqlQuery := fmt.Sprintf(`
		SELECT se.id, se.resource_id, se.event_id, se.task_id, se.start_time, se.end_time, se.notes,
		       se.created_at, se.updated_at, r.name, e.name, t.title
		FROM schedule_entries se
		JOIN resources r ON r.id = se.resource_id
		JOIN events e ON e.id = se.event_id
		LEFT JOIN tasks t ON t.id = se.task_id
		WHERE se.resource_id IN (%s)
		  AND se.start_time < ?
		  AND se.end_time > ?
	`, strings.Join(placeholders, ","))

	if query.ExcludeEntryID != nil {
		sqlQuery += " AND se.id != ?"
		args = append(args, *query.ExcludeEntryID)
	}
	sqlQuery += " ORDER BY se.start_time ASC, se.id ASC"

	rows, err := s.pool.DB().QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var hits []persistence.OverlappingEntry
	for rows.Next() {
		var (
			entry        persistence.ScheduleEntry
			resourceName string
			eventName    string
			taskTitle    sql.NullString
		)
		if err := scanEntryColumns(rows, &entry, &resourceName, &eventName, &taskTitle); err != nil {
			return nil, err
		}
		hits = append(hits, persistence.OverlappingEntry{
			Entry:        entry,
			ResourceName: resourceName,
			EventName:    eventName,
			TaskTitle:    fromNullString(taskTitle),
		})
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

	rows, err := s.pool.DB().QueryContext(ctx, `
		SELECT se.id, se.resource_id, se.event_id, se.task_id, se.start_time, se.end_time, se.notes,
		       se.created_at, se.updated_at, r.name, e.name, t.title
		FROM schedule_entries se
		JOIN resources r ON r.id = se.resource_id
		JOIN events e ON e.id = se.event_id
		LEFT JOIN tasks t ON t.id = se.task_id
		WHERE se.resource_id = ?
		  AND se.start_time < ?
		  AND se.end_time > ?
		ORDER BY se.start_time ASC, se.id ASC
	`, resourceID, formatTime(to), formatTime(from))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []persistence.AvailabilityEntry
	for rows.Next() {
		var (
			entry        persistence.ScheduleEntry
			resourceName string
			eventName    string
			taskTitle    sql.NullString
		)
		if err := scanEntryColumns(rows, &entry, &resourceName, &eventName, &taskTitle); err != nil {
			return nil, err
		}
		entries = append(entries, persistence.AvailabilityEntry{
			Entry:     entry,
			EventName: eventName,
			TaskTitle: fromNullString(taskTitle),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

// ListForTask returns the entries currently held by a task.
func (s *Store) ListForTask(ctx context.Context, taskID int64) ([]persistence.ScheduleEntry, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `
		SELECT id, resource_id, event_id, task_id, start_time, end_time, notes, created_at, updated_at
		FROM schedule_entries
		WHERE task_id = ?
		ORDER BY resource_id ASC
	`, taskID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []persistence.ScheduleEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

// ReplaceForTask atomically rewrites the task's commitment set inside a
// single transaction: delete every entry and assignment row for the task,
// then insert one fresh entry plus assignment per element of entries. No
// reader ever observes a mixture of old and new rows.
func (s *Store) ReplaceForTask(ctx context.Context, taskID int64, entries []persistence.NewScheduleEntry) ([]persistence.ScheduleEntry, error) {
	for _, entry := range entries {
		if entry.TaskID == nil || *entry.TaskID != taskID {
			return nil, fmt.Errorf("sqlite: entry task id does not match replace target %d", taskID)
		}
		if !entry.End.After(entry.Start) {
			return nil, persistence.ErrConstraintViolation
		}
	}

	var inserted []persistence.ScheduleEntry
	err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRow("SELECT COUNT(1) FROM tasks WHERE id = ?", taskID).Scan(&exists); err != nil {
			return mapError(err)
		}
		if exists == 0 {
			return persistence.ErrNotFound
		}

		if _, err := tx.Exec("DELETE FROM schedule_entries WHERE task_id = ?", taskID); err != nil {
			return mapError(err)
		}
		if _, err := tx.Exec("DELETE FROM resource_task_assignments WHERE task_id = ?", taskID); err != nil {
			return mapError(err)
		}

		for _, entry := range entries {
			stored, err := s.insertEntryTx(tx, entry)
			if err != nil {
				return err
			}
			inserted = append(inserted, stored)

			if _, err := tx.Exec(`
				INSERT INTO resource_task_assignments (task_id, resource_id, created_at)
				VALUES (?, ?, ?)
			`, taskID, entry.ResourceID, formatTime(s.now())); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
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
	rows, err := s.pool.DB().QueryContext(ctx, fmt.Sprintf(`
		SELECT id, task_id, resource_id, created_at
		FROM resource_task_assignments
		WHERE %s = ?
		ORDER BY %s ASC
	`, column, orderBy), value)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var assignments []persistence.ResourceTaskAssignment
	for rows.Next() {
		var (
			assignment persistence.ResourceTaskAssignment
			createdAt  string
		)
		if err := rows.Scan(&assignment.ID, &assignment.TaskID, &assignment.ResourceID, &createdAt); err != nil {
			return nil, mapError(err)
		}
		if assignment.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return assignments, nil
}

func scanEntry(row rowScanner) (persistence.ScheduleEntry, error) {
	var (
		entry     persistence.ScheduleEntry
		taskID    sql.NullInt64
		startTime string
		endTime   string
		notes     sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&entry.ID, &entry.ResourceID, &entry.EventID, &taskID, &startTime, &endTime, &notes, &createdAt, &updatedAt); err != nil {
		return persistence.ScheduleEntry{}, mapError(err)
	}
	if err := fillEntryTimes(&entry, startTime, endTime, createdAt, updatedAt); err != nil {
		return persistence.ScheduleEntry{}, err
	}
	entry.TaskID = fromNullInt64(taskID)
	entry.Notes = fromNullString(notes)
	return entry, nil
}

func scanEntryColumns(row rowScanner, entry *persistence.ScheduleEntry, resourceName, eventName *string, taskTitle *sql.NullString) error {
	var (
		taskID    sql.NullInt64
		startTime string
		endTime   string
		notes     sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&entry.ID, &entry.ResourceID, &entry.EventID, &taskID, &startTime, &endTime, &notes,
		&createdAt, &updatedAt, resourceName, eventName, taskTitle); err != nil {
		return mapError(err)
	}
	if err := fillEntryTimes(entry, startTime, endTime, createdAt, updatedAt); err != nil {
		return err
	}
	entry.TaskID = fromNullInt64(taskID)
	entry.Notes = fromNullString(notes)
	return nil
}

func fillEntryTimes(entry *persistence.ScheduleEntry, startTime, endTime, createdAt, updatedAt string) error {
	var err error
	if entry.Start, err = parseTime(startTime); err != nil {
		return fmt.Errorf("failed to parse start_time: %w", err)
	}
	if entry.End, err = parseTime(endTime); err != nil {
		return fmt.Errorf("failed to parse end_time: %w", err)
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return fmt.Errorf("failed to parse created_at: %w", err)
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return nil
}
