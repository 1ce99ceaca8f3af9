package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/catering-scheduler/internal/persistence"
)

// CreateResource inserts a new resource row.
func (s *Store) CreateResource(ctx context.Context, resource persistence.Resource) (persistence.Resource, error) {
	if !resource.Kind.Valid() {
		return persistence.Resource{}, persistence.ErrConstraintViolation
	}

	now := s.now().UTC()
	resource.CreatedAt = now
	resource.UpdatedAt = now

	result, err := s.pool.DB().ExecContext(ctx, `
		INSERT INTO resources (name, kind, hourly_rate, available, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		resource.Name,
		string(resource.Kind),
		nullFloat64(resource.HourlyRate),
		boolToInt(resource.Available),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return persistence.Resource{}, mapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistence.Resource{}, fmt.Errorf("failed to read inserted resource id: %w", err)
	}
	resource.ID = id
	return resource, nil
}

// GetResource retrieves a resource by id.
func (s *Store) GetResource(ctx context.Context, id int64) (persistence.Resource, error) {
	row := s.pool.DB().QueryRowContext(ctx, `
		SELECT id, name, kind, hourly_rate, available, created_at, updated_at
		FROM resources
		WHERE id = ?
	`, id)

	resource, err := scanResource(row)
	if err != nil {
		return persistence.Resource{}, mapError(err)
	}
	return resource, nil
}

// GetResources resolves the listed ids. Missing ids are absent from the result.
func (s *Store) GetResources(ctx context.Context, ids []int64) ([]persistence.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.pool.DB().QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, kind, hourly_rate, available, created_at, updated_at
		FROM resources
		WHERE id IN (%s)
		ORDER BY id ASC
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var resources []persistence.Resource
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, mapError(err)
		}
		resources = append(resources, resource)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return resources, nil
}

// DeleteResource removes a resource; schedule entries and assignment rows
// cascade through the foreign keys.
func (s *Store) DeleteResource(ctx context.Context, id int64) error {
	result, err := s.pool.DB().ExecContext(ctx, "DELETE FROM resources WHERE id = ?", id)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (persistence.Resource, error) {
	var (
		resource   persistence.Resource
		kind       string
		hourlyRate sql.NullFloat64
		available  int
		createdAt  string
		updatedAt  string
	)
	if err := row.Scan(&resource.ID, &resource.Name, &kind, &hourlyRate, &available, &createdAt, &updatedAt); err != nil {
		return persistence.Resource{}, err
	}

	resource.Kind = persistence.ResourceKind(kind)
	resource.HourlyRate = fromNullFloat64(hourlyRate)
	resource.Available = available != 0

	var err error
	if resource.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Resource{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if resource.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Resource{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return resource, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
