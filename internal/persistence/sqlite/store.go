package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/catering-scheduler/internal/persistence"
)

var _ persistence.Store = (*Store)(nil)

// Store implements persistence.Store on SQLite via modernc.org/sqlite.
type Store struct {
	pool *ConnectionPool
	now  func() time.Time
}

// Open connects to the database at dsn. The schema is not touched; call
// Migrate before serving traffic.
func Open(dsn string) (*Store, error) {
	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, now: time.Now}, nil
}

// Ping tests database connectivity for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.pool.Close()
}

// SetClock overrides the timestamp source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Timestamps are stored as fixed-width RFC 3339 UTC strings so the interval
// comparisons in SQL can rely on lexicographic ordering.
func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}

func nullFloat64(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func fromNullString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	clone := value.String
	return &clone
}

func fromNullInt64(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	clone := value.Int64
	return &clone
}

func fromNullFloat64(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	clone := value.Float64
	return &clone
}
