package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/catering-scheduler/internal/persistence"
)

var _ persistence.Store = (*Store)(nil)

// Options tunes the PostgreSQL backend.
type Options struct {
	// EnforceExclusion installs a storage-level exclusion constraint over
	// (resource_id, interval). The conflict detector remains an advisory
	// pre-flight check; the constraint closes the check-then-act race for
	// deployments that need strict non-overlap.
	EnforceExclusion bool
}

// Store implements persistence.Store on PostgreSQL via pgx. The tstzrange
// GiST index gives the overlap query its latency bound.
type Store struct {
	pool *pgxpool.Pool
	opts Options
}

// Open connects to the database at dsn and verifies connectivity.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Store{pool: pool, opts: opts}, nil
}

// Ping tests database connectivity for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate creates the schema. All DDL uses IF NOT EXISTS so repeated startup
// runs are safe.
func (s *Store) Migrate(ctx context.Context) error {
	ddl := `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS resources (
    id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    kind        TEXT NOT NULL CHECK (kind IN ('staff', 'equipment', 'materials')),
    hourly_rate DOUBLE PRECISION,
    available   BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS events (
    id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tasks (
    id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    event_id   BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    title      TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS schedule_entries (
    id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    resource_id BIGINT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
    event_id    BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    task_id     BIGINT REFERENCES tasks(id) ON DELETE CASCADE,
    start_time  TIMESTAMPTZ NOT NULL,
    end_time    TIMESTAMPTZ NOT NULL,
    notes       TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT chk_entry_interval CHECK (end_time > start_time)
);

CREATE TABLE IF NOT EXISTS resource_task_assignments (
    id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    task_id     BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    resource_id BIGINT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT uq_task_resource UNIQUE (task_id, resource_id)
);

CREATE INDEX IF NOT EXISTS idx_schedule_entries_resource_interval
    ON schedule_entries USING gist (resource_id, tstzrange(start_time, end_time));

CREATE INDEX IF NOT EXISTS idx_schedule_entries_task ON schedule_entries (task_id);
CREATE INDEX IF NOT EXISTS idx_assignments_resource ON resource_task_assignments (resource_id);
`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	if s.opts.EnforceExclusion {
		excl := `
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint WHERE conname = 'excl_resource_interval'
    ) THEN
        ALTER TABLE schedule_entries ADD CONSTRAINT excl_resource_interval
            EXCLUDE USING gist (resource_id WITH =, tstzrange(start_time, end_time) WITH &&);
    END IF;
END
$$;
`
		if _, err := s.pool.Exec(ctx, excl); err != nil {
			return fmt.Errorf("installing exclusion constraint: %w", err)
		}
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
		case "23503":
			return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
		case "23514":
			return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
		case "23P01":
			return fmt.Errorf("%w: %v", persistence.ErrIntervalExcluded, err)
		}
	}
	return err
}

func toUTC(t time.Time) time.Time {
	return t.UTC()
}
