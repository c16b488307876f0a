package sweepers

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tariffsync/tariff-service/internal/database"
	"github.com/tariffsync/tariff-service/internal/syncer"
)

// Runner runs one sync cycle for every target
type Runner interface {
	RunAll(ctx context.Context) []syncer.Result
}

// SyncSweeper periodically re-publishes every target's tariff
type SyncSweeper struct {
	runner   Runner
	logger   *zerolog.Logger
	interval time.Duration
	stopChan chan struct{}
}

// NewSyncSweeper creates a new sweeper for the sync loop
func NewSyncSweeper(runner Runner, logger *zerolog.Logger, interval time.Duration) *SyncSweeper {
	return &SyncSweeper{
		runner:   runner,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start runs a sweep immediately and then on every tick until stopped
func (s *SyncSweeper) Start(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("Starting sync sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Sync sweeper stopping (context cancelled)")
			return
		case <-s.stopChan:
			s.logger.Info().Msg("Sync sweeper stopping (stop signal)")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Stop signals the sweeper to stop
func (s *SyncSweeper) Stop() {
	close(s.stopChan)
}

// Sweep runs every target once and logs the outcome. Failed targets are
// retried on the next tick.
func (s *SyncSweeper) Sweep(ctx context.Context) (published, unchanged, failed int) {
	start := time.Now()
	for _, r := range s.runner.RunAll(ctx) {
		switch {
		case r.Err != nil:
			failed++
			s.logger.Warn().Err(r.Err).Str("target", r.Target).Msg("Target sync failed, retrying next interval")
		case r.Run != nil && r.Run.Status == database.RunStatusUnchanged:
			unchanged++
		default:
			published++
		}
	}

	if published > 0 || failed > 0 {
		s.logger.Info().
			Int("published", published).
			Int("unchanged", unchanged).
			Int("failed", failed).
			Dur("duration", time.Since(start)).
			Msg("Sync sweep completed")
	}
	return published, unchanged, failed
}
