package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tariffsync/tariff-service/config"
	"github.com/tariffsync/tariff-service/internal/database"
	"github.com/tariffsync/tariff-service/internal/tariff"
)

// Target modes
const (
	ModeDynamic = "dynamic"
	ModeStatic  = "static"
)

var (
	// ErrInFlight is returned when a cycle for the target is already running here
	ErrInFlight = errors.New("sync already in flight")
	// ErrUnknownTarget is returned for a target that is not configured
	ErrUnknownTarget = errors.New("unknown sync target")
)

// PriceSource fetches a localised spot-price feed
type PriceSource interface {
	FetchFeed(ctx context.Context, siteID string, now time.Time, loc *time.Location) (tariff.PriceFeed, *time.Location, error)
}

// Publisher uploads a document to a battery controller site
type Publisher interface {
	Publish(ctx context.Context, siteID string, doc *tariff.TariffDocument) error
}

// Store is the persistence the sync service needs
type Store interface {
	GetSchedule(ctx context.Context, id string) (*database.Schedule, error)
	GetOverride(ctx context.Context, target string) (*database.Override, error)
	CreateSyncRun(ctx context.Context, run *database.SyncRun) error
	FinishSyncRun(ctx context.Context, run *database.SyncRun) error
	LastPublishedFingerprint(ctx context.Context, target string) (string, error)
	CreateArchive(ctx context.Context, archive *database.Archive) error
}

// Target is one controller site kept in sync
type Target struct {
	Name        string
	Mode        string
	TeslaSiteID string
	AmberSiteID string
	ScheduleID  string
}

// TargetFrom converts and checks a configured target
func TargetFrom(cfg config.TargetConfig) (Target, error) {
	t := Target{
		Name:        cfg.Name,
		Mode:        cfg.Mode,
		TeslaSiteID: cfg.TeslaSiteID,
		AmberSiteID: cfg.AmberSiteID,
		ScheduleID:  cfg.ScheduleID,
	}
	if t.Mode == "" {
		t.Mode = ModeDynamic
	}
	switch {
	case t.Name == "":
		return t, fmt.Errorf("sync target has no name")
	case t.Mode != ModeDynamic && t.Mode != ModeStatic:
		return t, fmt.Errorf("sync target %s: unknown mode %q", t.Name, t.Mode)
	case t.Mode == ModeStatic && t.ScheduleID == "":
		return t, fmt.Errorf("sync target %s: static mode needs a schedule_id", t.Name)
	}
	return t, nil
}

// Options configures the sync service
type Options struct {
	Location      *time.Location
	Dynamic       tariff.DynamicOptions
	Meta          tariff.DocumentMeta
	LockTTL       time.Duration
	MaxConcurrent int
}

// Result is the outcome of one target's cycle
type Result struct {
	Target string
	Run    *database.SyncRun
	Err    error
}

// OptionsFrom builds service options from the compile and sync sections
func OptionsFrom(cfg *config.Config) (Options, error) {
	daily := decimal.Zero
	if cfg.Compile.DailyCharge != "" {
		d, err := decimal.NewFromString(cfg.Compile.DailyCharge)
		if err != nil {
			return Options{}, fmt.Errorf("compile.daily_charge: %w", err)
		}
		daily = d
	}
	loc := cfg.Compile.Location()
	return Options{
		Location: loc,
		Dynamic: tariff.DynamicOptions{
			AdvanceNoticeSlots: cfg.Compile.AdvanceNoticeSlots,
			Horizon:            cfg.Compile.ForecastHorizon,
			Location:           loc,
		},
		Meta: tariff.DocumentMeta{
			Name:        cfg.Compile.Name,
			Utility:     cfg.Compile.Utility,
			Code:        cfg.Compile.Code,
			Currency:    cfg.Compile.Currency,
			DailyCharge: daily,
		},
		LockTTL:       cfg.Sync.LockTTL,
		MaxConcurrent: cfg.Sync.MaxConcurrent,
	}, nil
}

// TargetsFrom converts every configured target, rejecting duplicate names
func TargetsFrom(cfgs []config.TargetConfig) ([]Target, error) {
	seen := make(map[string]bool, len(cfgs))
	out := make([]Target, 0, len(cfgs))
	for _, c := range cfgs {
		t, err := TargetFrom(c)
		if err != nil {
			return nil, err
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("duplicate sync target %s", t.Name)
		}
		seen[t.Name] = true
		out = append(out, t)
	}
	return out, nil
}
