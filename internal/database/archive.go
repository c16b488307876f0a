package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Archive represents a published tariff document kept in storage
type Archive struct {
	ID          string    `json:"id"`           // arc_{uuid}
	Target      string    `json:"target"`       // sync target name
	Code        string    `json:"code"`         // document code
	Fingerprint string    `json:"fingerprint"`  // document fingerprint
	ArchivePath string    `json:"archive_path"` // Storage key/path
	ArchiveType string    `json:"archive_type"` // 'local'
	FileSize    *int64    `json:"file_size"`    // Size in bytes
	Checksum    string    `json:"checksum"`     // SHA-256 of the stored bytes
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateArchive creates a new archive record in the database
func (s *Store) CreateArchive(ctx context.Context, archive *Archive) error {
	if archive.ID == "" {
		archive.ID = GenerateArchiveID()
	}
	archive.CreatedAt = time.Now()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO archives (
			id, target, code, fingerprint, archive_path, archive_type,
			file_size, checksum, published_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			archive_path = EXCLUDED.archive_path,
			file_size = EXCLUDED.file_size,
			checksum = EXCLUDED.checksum
	`,
		archive.ID, archive.Target, archive.Code, archive.Fingerprint, archive.ArchivePath,
		archive.ArchiveType, archive.FileSize, archive.Checksum, archive.PublishedAt, archive.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	return nil
}

// GetArchiveByID retrieves an archive by its ID
func (s *Store) GetArchiveByID(ctx context.Context, id string) (*Archive, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, target, code, fingerprint, archive_path, archive_type,
			file_size, checksum, published_at, created_at
		FROM archives
		WHERE id = $1
	`, id)

	var archive Archive
	err := row.Scan(
		&archive.ID, &archive.Target, &archive.Code, &archive.Fingerprint, &archive.ArchivePath,
		&archive.ArchiveType, &archive.FileSize, &archive.Checksum, &archive.PublishedAt, &archive.CreatedAt,
	)
	if isNoRows(err) {
		return nil, fmt.Errorf("archive %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &archive, nil
}

// DeleteArchivesBefore removes archive rows published before cutoff and
// returns their storage paths so the caller can remove the files
func (s *Store) DeleteArchivesBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM archives
		WHERE published_at < $1
		RETURNING archive_path
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to delete old archives: %w", err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to delete old archives: %w", err)
	}
	return paths, nil
}

// GenerateArchiveID generates a new archive ID with arc_ prefix
func GenerateArchiveID() string {
	return fmt.Sprintf("arc_%s", uuid.New().String())
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
