package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tariffsync/tariff-service/internal/database"
	"github.com/tariffsync/tariff-service/internal/storage"
	"github.com/tariffsync/tariff-service/internal/tariff"
	"github.com/tariffsync/tariff-service/internal/telemetry"
)

// Service runs sync cycles: fetch, compile, validate, serialize,
// fingerprint, publish, archive and record.
type Service struct {
	targets   map[string]Target
	order     []string
	source    PriceSource
	publisher Publisher
	store     Store
	archive   storage.Storage
	locker    Locker
	opts      Options
	metrics   *MetricsRecorder
	logger    zerolog.Logger
	now       func() time.Time

	group    singleflight.Group
	mu       sync.Mutex
	inflight map[string]bool
}

// NewService creates a sync service over the given targets
func NewService(targets []Target, source PriceSource, publisher Publisher, store Store, archive storage.Storage, locker Locker, opts Options, logger zerolog.Logger) *Service {
	if locker == nil {
		locker = NoopLocker{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Minute
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}

	s := &Service{
		targets:   make(map[string]Target, len(targets)),
		source:    source,
		publisher: publisher,
		store:     store,
		archive:   archive,
		locker:    locker,
		opts:      opts,
		metrics:   NewMetricsRecorder(),
		logger:    logger.With().Str("component", "sync").Logger(),
		now:       time.Now,
		inflight:  make(map[string]bool),
	}
	for _, t := range targets {
		s.targets[t.Name] = t
		s.order = append(s.order, t.Name)
	}
	return s
}

// Targets returns the configured target names in order
func (s *Service) Targets() []string {
	return append([]string(nil), s.order...)
}

// InFlight reports whether a cycle for target is running on this instance
func (s *Service) InFlight(target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[target]
}

// Trigger runs a cycle unless one is already in flight for the target
func (s *Service) Trigger(ctx context.Context, target string) (*database.SyncRun, error) {
	if _, ok := s.targets[target]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	if s.InFlight(target) {
		return nil, ErrInFlight
	}
	return s.Run(ctx, target)
}

// Run runs one cycle for target. Concurrent callers for the same target
// share a single cycle and its result.
func (s *Service) Run(ctx context.Context, target string) (*database.SyncRun, error) {
	t, ok := s.targets[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}

	v, err, _ := s.group.Do(target, func() (any, error) {
		s.setInFlight(target, true)
		defer s.setInFlight(target, false)
		return s.runLocked(ctx, t)
	})
	run, _ := v.(*database.SyncRun)
	return run, err
}

// RunAll runs a cycle for every target, at most MaxConcurrent at a time
func (s *Service) RunAll(ctx context.Context) []Result {
	results := make([]Result, len(s.order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrent)
	for i, name := range s.order {
		g.Go(func() error {
			run, err := s.Run(gctx, name)
			results[i] = Result{Target: name, Run: run, Err: err}
			// one failing target must not cancel the others
			return nil
		})
	}
	g.Wait()
	return results
}

func (s *Service) setInFlight(target string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v {
		s.inflight[target] = true
		s.metrics.IncInFlight()
	} else {
		delete(s.inflight, target)
		s.metrics.DecInFlight()
	}
}

func (s *Service) runLocked(ctx context.Context, t Target) (*database.SyncRun, error) {
	release, err := s.locker.Acquire(ctx, t.Name, s.opts.LockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		// release even when ctx was cancelled mid-cycle
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(relCtx); err != nil {
			s.logger.Warn().Err(err).Str("target", t.Name).Msg("Failed to release sync lock")
		}
	}()
	return s.cycle(ctx, t)
}

func (s *Service) cycle(ctx context.Context, t Target) (*database.SyncRun, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "sync.cycle")
	defer span.End()
	span.SetAttributes(attribute.String("sync.target", t.Name), attribute.String("sync.mode", t.Mode))

	logger := s.logger.With().Str("target", t.Name).Str("mode", t.Mode).Logger()
	now := s.now()

	override, err := s.store.GetOverride(ctx, t.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load override: %w", err)
	}
	run := &database.SyncRun{
		ID:        database.GenerateRunID(),
		Target:    t.Name,
		Mode:      t.Mode,
		Status:    database.RunStatusRunning,
		StartedAt: now,
	}
	if override.Active(now) {
		mode := override.Mode
		run.Override = &mode
	}
	if err := s.store.CreateSyncRun(ctx, run); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("sync.run_id", run.ID))

	err = s.publish(ctx, t, run, now, logger)
	if err != nil {
		run.Status = database.RunStatusFailed
		msg := err.Error()
		run.Error = &msg
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)

		var stale *tariff.StaleDataError
		if errors.As(err, &stale) {
			s.metrics.RecordStale(t.Name)
		}
		logger.Error().Err(err).Str("run_id", run.ID).Msg("Sync cycle failed")
	}

	finished := s.now()
	run.FinishedAt = &finished
	// the outcome is recorded even when the caller has gone away
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if ferr := s.store.FinishSyncRun(recCtx, run); ferr != nil {
		logger.Error().Err(ferr).Str("run_id", run.ID).Msg("Failed to record sync run")
		if err == nil {
			err = ferr
		}
	}
	s.metrics.RecordRun(t.Name, t.Mode, run.Status)
	return run, err
}

// publish builds the document and uploads it when its fingerprint changed.
// A document that failed to compile or validate is never uploaded.
func (s *Service) publish(ctx context.Context, t Target, run *database.SyncRun, now time.Time, logger zerolog.Logger) error {
	start := time.Now()
	mode := tariff.OverrideNone
	if run.Override != nil {
		m, err := tariff.ParseOverrideMode(*run.Override)
		if err != nil {
			return err
		}
		mode = m
	}

	doc, err := s.Build(ctx, t, now, mode, run)
	if err != nil {
		return err
	}
	s.metrics.RecordCompile(t.Mode, time.Since(start))

	fp := tariff.Fingerprint(doc)
	if fp == "" {
		return errors.New("failed to fingerprint document")
	}
	run.Fingerprint = &fp
	last, err := s.store.LastPublishedFingerprint(ctx, t.Name)
	if err != nil {
		return fmt.Errorf("failed to load last fingerprint: %w", err)
	}
	if last == fp {
		run.Status = database.RunStatusUnchanged
		logger.Info().Str("run_id", run.ID).Str("fingerprint", shortFingerprint(fp)).Msg("Tariff unchanged, skipping publish")
		return nil
	}

	pubStart := time.Now()
	if err := s.publisher.Publish(ctx, t.TeslaSiteID, doc); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	publishedAt := s.now()
	s.metrics.RecordPublish(t.Name, time.Since(pubStart), publishedAt)
	run.Status = database.RunStatusPublished

	if id, err := s.archiveDocument(ctx, t, doc, fp, publishedAt); err != nil {
		// already live on the controller; losing the copy is not fatal
		logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to archive published tariff")
	} else {
		run.ArchiveID = &id
	}

	logger.Info().
		Str("run_id", run.ID).
		Str("code", doc.Code).
		Str("fingerprint", shortFingerprint(fp)).
		Int("tomorrow_slots", run.TomorrowSlots).
		Int("clamped_slots", run.ClampedSlots).
		Msg("Published tariff")
	return nil
}

// Build compiles and serializes the document for target without
// publishing it. run, when non-nil, receives the dynamic compile stats.
func (s *Service) Build(ctx context.Context, t Target, now time.Time, mode tariff.OverrideMode, run *database.SyncRun) (*tariff.TariffDocument, error) {
	switch t.Mode {
	case ModeStatic:
		return s.buildStatic(ctx, t, mode)
	case ModeDynamic:
		return s.buildDynamic(ctx, t, now, mode, run)
	}
	return nil, fmt.Errorf("unknown mode %q", t.Mode)
}

func (s *Service) buildDynamic(ctx context.Context, t Target, now time.Time, mode tariff.OverrideMode, run *database.SyncRun) (*tariff.TariffDocument, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "sync.build_dynamic")
	defer span.End()

	feed, loc, err := s.source.FetchFeed(ctx, t.AmberSiteID, now, s.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	opts := s.opts.Dynamic
	opts.Location = loc

	result, err := tariff.CompileDynamic(now, feed, opts)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordClamped(result.ClampedSlots())
	if run != nil {
		run.TomorrowSlots = result.TomorrowSlots()
		run.PartialSlots = result.PartialSlots()
		run.ClampedSlots = result.ClampedSlots()
	}

	grid := tariff.ApplyOverride(result.Grid, mode)
	return tariff.DynamicDocument(tariff.OverrideMeta(s.opts.Meta, mode), grid)
}

func (s *Service) buildStatic(ctx context.Context, t Target, mode tariff.OverrideMode) (*tariff.TariffDocument, error) {
	stored, err := s.store.GetSchedule(ctx, t.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule %s: %w", t.ScheduleID, err)
	}
	sched, err := stored.Definition.ToSchedule()
	if err != nil {
		return nil, err
	}
	seasons, err := tariff.CompileSchedule(sched)
	if err != nil {
		return nil, err
	}
	for i := range seasons {
		seasons[i].Grid = tariff.ApplyOverride(seasons[i].Grid, mode)
	}
	meta := sched.DocumentMeta()
	if meta.Code == "" {
		meta.Code = "TARIFF_SYNC:" + strings.ToUpper(stored.ID)
	}
	return tariff.ToDocument(tariff.OverrideMeta(meta, mode), seasons)
}

func (s *Service) archiveDocument(ctx context.Context, t Target, doc *tariff.TariffDocument, fp string, at time.Time) (string, error) {
	if s.archive == nil {
		return "", errors.New("no archive storage configured")
	}
	info, err := storage.ArchiveDocument(ctx, s.archive, t.Name, doc, fp, at)
	if err != nil {
		return "", err
	}
	size := info.Size
	rec := &database.Archive{
		ID:          database.GenerateArchiveID(),
		Target:      t.Name,
		Code:        doc.Code,
		Fingerprint: fp,
		ArchivePath: info.Key,
		ArchiveType: string(storage.StorageTypeLocal),
		FileSize:    &size,
		Checksum:    info.Checksum,
		PublishedAt: at,
	}
	if err := s.store.CreateArchive(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// shortFingerprint trims a fingerprint for log lines
func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
