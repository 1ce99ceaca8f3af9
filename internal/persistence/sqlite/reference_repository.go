package sqlite

import (
	"context"
	"fmt"

	"github.com/example/catering-scheduler/internal/persistence"
)

// CreateEvent inserts an event reference row.
func (s *Store) CreateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	now := s.now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	result, err := s.pool.DB().ExecContext(ctx, `
		INSERT INTO events (name, created_at, updated_at) VALUES (?, ?, ?)
	`, event.Name, formatTime(now), formatTime(now))
	if err != nil {
		return persistence.Event{}, mapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistence.Event{}, fmt.Errorf("failed to read inserted event id: %w", err)
	}
	event.ID = id
	return event, nil
}

// GetEvent retrieves an event by id.
func (s *Store) GetEvent(ctx context.Context, id int64) (persistence.Event, error) {
	var (
		event     persistence.Event
		createdAt string
		updatedAt string
	)
	err := s.pool.DB().QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM events WHERE id = ?
	`, id).Scan(&event.ID, &event.Name, &createdAt, &updatedAt)
	if err != nil {
		return persistence.Event{}, mapError(err)
	}

	if event.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if event.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return event, nil
}

// CreateTask inserts a task reference row under an existing event.
func (s *Store) CreateTask(ctx context.Context, task persistence.Task) (persistence.Task, error) {
	now := s.now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	result, err := s.pool.DB().ExecContext(ctx, `
		INSERT INTO tasks (event_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)
	`, task.EventID, task.Title, formatTime(now), formatTime(now))
	if err != nil {
		return persistence.Task{}, mapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistence.Task{}, fmt.Errorf("failed to read inserted task id: %w", err)
	}
	task.ID = id
	return task, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (persistence.Task, error) {
	var (
		task      persistence.Task
		createdAt string
		updatedAt string
	)
	err := s.pool.DB().QueryRowContext(ctx, `
		SELECT id, event_id, title, created_at, updated_at FROM tasks WHERE id = ?
	`, id).Scan(&task.ID, &task.EventID, &task.Title, &createdAt, &updatedAt)
	if err != nil {
		return persistence.Task{}, mapError(err)
	}

	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Task{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Task{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return task, nil
}

// DeleteTask removes a task; entries and assignments cascade.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	result, err := s.pool.DB().ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
