package database

import (
	"context"
	"fmt"
	"time"
)

// SetOverride stores or replaces a target's manual override
func (s *Store) SetOverride(ctx context.Context, o *Override) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO target_overrides (target, mode, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (target) DO UPDATE SET
			mode = EXCLUDED.mode,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
		RETURNING updated_at
	`, o.Target, o.Mode, o.ExpiresAt).Scan(&o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to set override for %s: %w", o.Target, err)
	}
	return nil
}

// GetOverride returns the target's override, or nil when none is stored
func (s *Store) GetOverride(ctx context.Context, target string) (*Override, error) {
	var o Override
	err := s.pool.QueryRow(ctx, `
		SELECT target, mode, expires_at, updated_at
		FROM target_overrides
		WHERE target = $1
	`, target).Scan(&o.Target, &o.Mode, &o.ExpiresAt, &o.UpdatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load override for %s: %w", target, err)
	}
	return &o, nil
}

// ClearOverride removes a target's override
func (s *Store) ClearOverride(ctx context.Context, target string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM target_overrides WHERE target = $1`, target); err != nil {
		return fmt.Errorf("failed to clear override for %s: %w", target, err)
	}
	return nil
}

// DeleteExpiredOverrides removes overrides that expired before now
func (s *Store) DeleteExpiredOverrides(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM target_overrides
		WHERE expires_at IS NOT NULL AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired overrides: %w", err)
	}
	return result.RowsAffected(), nil
}
