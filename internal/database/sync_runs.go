package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateRunID generates a new sync run ID with run_ prefix
func GenerateRunID() string {
	return fmt.Sprintf("run_%s", uuid.New().String())
}

// CreateSyncRun records the start of a sync cycle
func (s *Store) CreateSyncRun(ctx context.Context, run *SyncRun) error {
	if run.ID == "" {
		run.ID = GenerateRunID()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_runs (id, target, mode, status, override, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.ID, run.Target, run.Mode, run.Status, run.Override, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// FinishSyncRun stores the outcome of a sync cycle
func (s *Store) FinishSyncRun(ctx context.Context, run *SyncRun) error {
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}

	result, err := s.pool.Exec(ctx, `
		UPDATE sync_runs SET
			status = $2,
			fingerprint = $3,
			archive_id = $4,
			error = $5,
			tomorrow_slots = $6,
			partial_slots = $7,
			clamped_slots = $8,
			finished_at = $9
		WHERE id = $1
	`, run.ID, run.Status, run.Fingerprint, run.ArchiveID, run.Error,
		run.TomorrowSlots, run.PartialSlots, run.ClampedSlots, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to finish sync run %s: %w", run.ID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("sync run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// ListSyncRuns returns the most recent runs, optionally for one target
func (s *Store) ListSyncRuns(ctx context.Context, target string, limit, offset int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, target, mode, status, override, fingerprint, archive_id, error,
			tomorrow_slots, partial_slots, clamped_slots, started_at, finished_at
		FROM sync_runs
		WHERE $1 = '' OR target = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`, target, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	runs := make([]SyncRun, 0)
	for rows.Next() {
		var run SyncRun
		if err := rows.Scan(
			&run.ID, &run.Target, &run.Mode, &run.Status, &run.Override, &run.Fingerprint,
			&run.ArchiveID, &run.Error, &run.TomorrowSlots, &run.PartialSlots, &run.ClampedSlots,
			&run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LastPublishedFingerprint returns the fingerprint of the target's most
// recent published run, or "" if it has never published
func (s *Store) LastPublishedFingerprint(ctx context.Context, target string) (string, error) {
	var fingerprint *string
	err := s.pool.QueryRow(ctx, `
		SELECT fingerprint
		FROM sync_runs
		WHERE target = $1 AND status = $2
		ORDER BY started_at DESC
		LIMIT 1
	`, target, RunStatusPublished).Scan(&fingerprint)
	if err != nil {
		if isNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load last fingerprint for %s: %w", target, err)
	}
	if fingerprint == nil {
		return "", nil
	}
	return *fingerprint, nil
}

// DeleteSyncRunsBefore removes finished runs that started before cutoff
func (s *Store) DeleteSyncRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM sync_runs
		WHERE started_at < $1 AND status <> $2
	`, cutoff, RunStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old sync runs: %w", err)
	}
	return result.RowsAffected(), nil
}

// FailStaleRuns marks runs still "running" after cutoff as failed, which
// happens when a process dies mid-cycle
func (s *Store) FailStaleRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, `
		UPDATE sync_runs
		SET status = $2, error = 'abandoned', finished_at = NOW()
		WHERE status = $1 AND started_at < $3
	`, RunStatusRunning, RunStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale runs: %w", err)
	}
	return result.RowsAffected(), nil
}
