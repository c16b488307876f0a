package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tariffsync/tariff-service/config"
)

type fakeStore struct {
	cutoffs map[string]time.Time
	paths   []string
	failOn  string
}

func (f *fakeStore) record(step string, cutoff time.Time) error {
	if f.cutoffs == nil {
		f.cutoffs = make(map[string]time.Time)
	}
	f.cutoffs[step] = cutoff
	if f.failOn == step {
		return errors.New(step + " failed")
	}
	return nil
}

func (f *fakeStore) DeleteSyncRunsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return 4, f.record("runs", cutoff)
}

func (f *fakeStore) FailStaleRuns(_ context.Context, cutoff time.Time) (int64, error) {
	return 1, f.record("stale", cutoff)
}

func (f *fakeStore) DeleteArchivesBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	return f.paths, f.record("archives", cutoff)
}

func (f *fakeStore) DeleteExpiredOverrides(_ context.Context, now time.Time) (int64, error) {
	return 2, f.record("overrides", now)
}

type fakeArchive struct {
	deleted []string
}

func (f *fakeArchive) Delete(_ context.Context, key string) error {
	if key == "bad" {
		return errors.New("permission denied")
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func TestCleanup(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{paths: []string{"a.json", "b.json"}}
	archive := &fakeArchive{}
	logger := zerolog.Nop()

	cm := NewCleanupManager(DefaultCleanupConfig(), store, archive, &logger)
	cm.now = func() time.Time { return now }

	result, err := cm.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CleanupResult{RunsDeleted: 4, RunsFailed: 1, ArchivesDeleted: 2, OverridesCleared: 2}, result)
	assert.Equal(t, []string{"a.json", "b.json"}, archive.deleted)

	assert.Equal(t, now.Add(-30*24*time.Hour), store.cutoffs["runs"])
	assert.Equal(t, now.Add(-90*24*time.Hour), store.cutoffs["archives"])
	assert.Equal(t, now.Add(-15*time.Minute), store.cutoffs["stale"])
	assert.Equal(t, now, store.cutoffs["overrides"])
}

func TestCleanupContinuesPastFailures(t *testing.T) {
	store := &fakeStore{paths: []string{"bad", "ok.json"}, failOn: "runs"}
	archive := &fakeArchive{}
	logger := zerolog.Nop()

	cm := NewCleanupManager(DefaultCleanupConfig(), store, archive, &logger)
	result, err := cm.Cleanup(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "runs failed")
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, 1, result.ArchivesDeleted)
	assert.Equal(t, int64(2), result.OverridesCleared)
}

func TestCleanupManagerStartStop(t *testing.T) {
	store := &fakeStore{}
	logger := zerolog.Nop()
	cfg := DefaultCleanupConfig()
	cfg.Interval = 10 * time.Millisecond

	cm := NewCleanupManager(cfg, store, &fakeArchive{}, &logger)
	cm.Start()
	assert.Eventually(t, func() bool {
		select {
		case <-cm.done:
			return false
		default:
		}
		return true
	}, time.Second, 5*time.Millisecond)
	cm.Stop()

	_, open := <-cm.done
	assert.False(t, open)
}

func TestCleanupConfigFrom(t *testing.T) {
	cfg := CleanupConfigFrom(config.CleanupConfig{RunRetention: time.Hour})
	assert.Equal(t, time.Hour, cfg.RunRetention)
	assert.Equal(t, 90*24*time.Hour, cfg.ArchiveRetention)
	assert.True(t, cfg.Enabled)
}
