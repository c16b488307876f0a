package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tariffsync/tariff-service/config"
)

// RetentionStore is the slice of the database store the cleanup jobs use
type RetentionStore interface {
	DeleteSyncRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	FailStaleRuns(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteArchivesBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	DeleteExpiredOverrides(ctx context.Context, now time.Time) (int64, error)
}

// ArchiveDeleter removes archived documents by key
type ArchiveDeleter interface {
	Delete(ctx context.Context, key string) error
}

// CleanupConfig holds configuration for cleanup jobs
type CleanupConfig struct {
	Interval         time.Duration // How often to run cleanup
	RunRetention     time.Duration // Age after which sync runs are deleted
	ArchiveRetention time.Duration // Age after which archived documents are deleted
	StaleRunAfter    time.Duration // Age after which a running sync is marked failed
	Enabled          bool
}

// DefaultCleanupConfig returns the default cleanup configuration
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Interval:         1 * time.Hour,
		RunRetention:     30 * 24 * time.Hour, // 30 days
		ArchiveRetention: 90 * 24 * time.Hour, // 90 days
		StaleRunAfter:    15 * time.Minute,
		Enabled:          true,
	}
}

// CleanupConfigFrom maps the service configuration onto the job config
func CleanupConfigFrom(cfg config.CleanupConfig) CleanupConfig {
	out := DefaultCleanupConfig()
	if cfg.Interval > 0 {
		out.Interval = cfg.Interval
	}
	if cfg.RunRetention > 0 {
		out.RunRetention = cfg.RunRetention
	}
	if cfg.ArchiveRetention > 0 {
		out.ArchiveRetention = cfg.ArchiveRetention
	}
	if cfg.StaleRunAfter > 0 {
		out.StaleRunAfter = cfg.StaleRunAfter
	}
	return out
}

// CleanupResult summarises one cleanup pass
type CleanupResult struct {
	RunsDeleted      int64
	RunsFailed       int64
	ArchivesDeleted  int
	OverridesCleared int64
}

// CleanupManager manages background cleanup jobs
type CleanupManager struct {
	config   CleanupConfig
	store    RetentionStore
	archives ArchiveDeleter
	logger   *zerolog.Logger
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc

	done chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(cfg CleanupConfig, store RetentionStore, archives ArchiveDeleter, logger *zerolog.Logger) *CleanupManager {
	ctx, cancel := context.WithCancel(context.Background())

	return &CleanupManager{
		config:   cfg,
		store:    store,
		archives: archives,
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins the background cleanup job
func (cm *CleanupManager) Start() {
	if !cm.config.Enabled {
		cm.logger.Info().Msg("Cleanup jobs are disabled, not starting")
		close(cm.done)
		return
	}

	cm.logger.Info().
		Dur("interval", cm.config.Interval).
		Dur("run_retention", cm.config.RunRetention).
		Dur("archive_retention", cm.config.ArchiveRetention).
		Msg("Starting cleanup manager")

	go cm.run()
}

// Stop gracefully stops the cleanup job
func (cm *CleanupManager) Stop() {
	cm.logger.Info().Msg("Stopping cleanup manager...")
	cm.cancel()

	select {
	case <-cm.done:
	case <-time.After(5 * time.Second):
		cm.logger.Warn().Msg("Cleanup job did not stop gracefully")
	}

	cm.logger.Info().Msg("Cleanup manager stopped")
}

func (cm *CleanupManager) run() {
	defer close(cm.done)

	ticker := time.NewTicker(cm.config.Interval)
	defer ticker.Stop()

	// Run once immediately on startup
	cm.runOnce()

	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			cm.runOnce()
		}
	}
}

func (cm *CleanupManager) runOnce() {
	start := time.Now()
	result, err := cm.Cleanup(cm.ctx)
	if err != nil {
		cm.logger.Error().Err(err).Msg("Cleanup job failed")
	}
	cm.logger.Info().
		Int64("runs_deleted", result.RunsDeleted).
		Int64("runs_failed", result.RunsFailed).
		Int("archives_deleted", result.ArchivesDeleted).
		Int64("overrides_cleared", result.OverridesCleared).
		Dur("duration", time.Since(start)).
		Msg("Cleanup job completed")
}

// Cleanup runs every retention step once. A failing step does not stop
// the others; all errors are returned joined.
func (cm *CleanupManager) Cleanup(ctx context.Context) (CleanupResult, error) {
	now := cm.now()
	var result CleanupResult
	var errs []error

	n, err := cm.store.FailStaleRuns(ctx, now.Add(-cm.config.StaleRunAfter))
	if err != nil {
		errs = append(errs, err)
	}
	result.RunsFailed = n

	// Runs reference archives, so delete them first
	n, err = cm.store.DeleteSyncRunsBefore(ctx, now.Add(-cm.config.RunRetention))
	if err != nil {
		errs = append(errs, err)
	}
	result.RunsDeleted = n

	paths, err := cm.store.DeleteArchivesBefore(ctx, now.Add(-cm.config.ArchiveRetention))
	if err != nil {
		errs = append(errs, err)
	}
	for _, path := range paths {
		if err := cm.archives.Delete(ctx, path); err != nil {
			cm.logger.Warn().Err(err).Str("path", path).Msg("Failed to delete archived document")
			errs = append(errs, err)
			continue
		}
		result.ArchivesDeleted++
	}

	n, err = cm.store.DeleteExpiredOverrides(ctx, now)
	if err != nil {
		errs = append(errs, err)
	}
	result.OverridesCleared = n

	return result, errors.Join(errs...)
}
