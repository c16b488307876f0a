package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SaveSchedule inserts or replaces a schedule
func (s *Store) SaveSchedule(ctx context.Context, sched *Schedule) error {
	definition, err := json.Marshal(sched.Definition)
	if err != nil {
		return fmt.Errorf("failed to encode schedule %s: %w", sched.ID, err)
	}
	if sched.Name == "" {
		sched.Name = sched.Definition.Name
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO schedules (id, name, definition, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			definition = EXCLUDED.definition,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, sched.ID, sched.Name, definition).Scan(&sched.CreatedAt, &sched.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save schedule %s: %w", sched.ID, err)
	}
	return nil
}

// GetSchedule loads a schedule by ID
func (s *Store) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, definition, created_at, updated_at
		FROM schedules
		WHERE id = $1
	`, id)

	sched, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// ListSchedules returns all schedules ordered by name
func (s *Store) ListSchedules(ctx context.Context) ([]Schedule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, definition, created_at, updated_at
		FROM schedules
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	schedules := make([]Schedule, 0)
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *sched)
	}
	return schedules, rows.Err()
}

// DeleteSchedule removes a schedule
func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var sched Schedule
	var definition []byte
	if err := row.Scan(&sched.ID, &sched.Name, &definition, &sched.CreatedAt, &sched.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(definition, &sched.Definition); err != nil {
		return nil, fmt.Errorf("failed to decode schedule %s: %w", sched.ID, err)
	}
	return &sched, nil
}
