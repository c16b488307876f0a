package database

import (
	"errors"
	"time"

	"github.com/tariffsync/tariff-service/internal/parsers/schedule"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// Schedule is a stored static schedule
type Schedule struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Definition schedule.File `json:"definition"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Sync run statuses
const (
	RunStatusRunning   = "running"
	RunStatusPublished = "published"
	RunStatusUnchanged = "unchanged"
	RunStatusFailed    = "failed"
)

// SyncRun records one sync cycle for a target
type SyncRun struct {
	ID            string     `json:"id"`             // run_{uuid}
	Target        string     `json:"target"`         // configured target name
	Mode          string     `json:"mode"`           // 'dynamic' | 'static'
	Status        string     `json:"status"`         // running, published, unchanged, failed
	Override      *string    `json:"override"`       // 'charge' | 'discharge'
	Fingerprint   *string    `json:"fingerprint"`    // document fingerprint
	ArchiveID     *string    `json:"archive_id"`     // FK to archives.id when published
	Error         *string    `json:"error"`          // failure reason
	TomorrowSlots int        `json:"tomorrow_slots"` // slots sourced from tomorrow
	PartialSlots  int        `json:"partial_slots"`  // slots averaged from incomplete buckets
	ClampedSlots  int        `json:"clamped_slots"`  // slots with a clamped price
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
}

// Override is a manual charge/discharge override for a target
type Override struct {
	Target    string     `json:"target"`
	Mode      string     `json:"mode"`
	ExpiresAt *time.Time `json:"expires_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Active reports whether the override applies at now
func (o *Override) Active(now time.Time) bool {
	return o != nil && o.Mode != "" && (o.ExpiresAt == nil || now.Before(*o.ExpiresAt))
}
