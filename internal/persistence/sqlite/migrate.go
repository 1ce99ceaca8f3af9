package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations is the ordered schema history. Each statement batch corresponds
// to one user_version step; Migrate applies only the steps beyond the
// database's current version.
var migrations = []string{
	`
	CREATE TABLE resources (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT    NOT NULL UNIQUE,
		kind        TEXT    NOT NULL CHECK (kind IN ('staff', 'equipment', 'materials')),
		hourly_rate REAL,
		available   INTEGER NOT NULL DEFAULT 1,
		created_at  TEXT    NOT NULL,
		updated_at  TEXT    NOT NULL
	);

	CREATE TABLE events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT    NOT NULL,
		created_at TEXT    NOT NULL,
		updated_at TEXT    NOT NULL
	);

	CREATE TABLE tasks (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id   INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		title      TEXT    NOT NULL,
		created_at TEXT    NOT NULL,
		updated_at TEXT    NOT NULL
	);

	CREATE TABLE schedule_entries (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		resource_id INTEGER NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		event_id    INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		task_id     INTEGER REFERENCES tasks(id) ON DELETE CASCADE,
		start_time  TEXT    NOT NULL,
		end_time    TEXT    NOT NULL,
		notes       TEXT,
		created_at  TEXT    NOT NULL,
		updated_at  TEXT    NOT NULL,
		CHECK (end_time > start_time)
	);

	CREATE TABLE resource_task_assignments (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id     INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		resource_id INTEGER NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		created_at  TEXT    NOT NULL,
		UNIQUE (task_id, resource_id)
	);
	`,
	`
	-- Interval-indexed lookup for conflict detection: the composite index
	-- lets the overlap query range over (resource_id, start_time) and check
	-- end_time without touching the table.
	CREATE INDEX idx_schedule_entries_resource_interval
		ON schedule_entries (resource_id, start_time, end_time);

	CREATE INDEX idx_schedule_entries_task
		ON schedule_entries (task_id);

	CREATE INDEX idx_assignments_resource
		ON resource_task_assignments (resource_id);
	`,
}

// Migrate brings the schema up to the current version. It is idempotent and
// safe to run on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	var version int
	if err := s.pool.DB().QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version >= len(migrations) {
		return nil
	}

	for step := version; step < len(migrations); step++ {
		stmts := migrations[step]
		next := step + 1
		err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.Exec(stmts); err != nil {
				return fmt.Errorf("migration %d failed: %w", next, err)
			}
			if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", next)); err != nil {
				return fmt.Errorf("failed to record schema version %d: %w", next, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
