package handlers

import (
	"context"
	"time"

	"github.com/tariffsync/tariff-service/internal/database"
	"github.com/tariffsync/tariff-service/internal/storage"
)

// Store is the persistence the HTTP API uses
type Store interface {
	SaveSchedule(ctx context.Context, sched *database.Schedule) error
	GetSchedule(ctx context.Context, id string) (*database.Schedule, error)
	ListSchedules(ctx context.Context) ([]database.Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
	ListSyncRuns(ctx context.Context, target string, limit, offset int) ([]database.SyncRun, error)
	GetOverride(ctx context.Context, target string) (*database.Override, error)
	SetOverride(ctx context.Context, o *database.Override) error
	ClearOverride(ctx context.Context, target string) error
	GetArchiveByID(ctx context.Context, id string) (*database.Archive, error)
}

// SyncService runs sync cycles on demand
type SyncService interface {
	Trigger(ctx context.Context, target string) (*database.SyncRun, error)
	Targets() []string
}

// Global dependencies (initialized by the application)
var (
	store       Store
	syncService SyncService
	archives    storage.Storage
	now         = time.Now
)

// Init sets the handler dependencies. Any may be nil, in which case the
// routes depending on it answer 503.
func Init(s Store, svc SyncService, archive storage.Storage) {
	store = s
	syncService = svc
	archives = archive
}
