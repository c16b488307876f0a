package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Compile.ForecastHorizon)
	assert.Equal(t, 0, cfg.Compile.AdvanceNoticeSlots)
	assert.Equal(t, "TARIFF_SYNC:AMBER", cfg.Compile.Code)
	assert.Equal(t, 90*24*time.Hour, cfg.Cleanup.ArchiveRetention)
	assert.Empty(t, cfg.Sync.Targets)
	assert.Equal(t, "https://api.amber.com.au/v1", cfg.Amber.BaseURL)
	assert.Same(t, cfg, Get())
}

func TestLoadEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://localhost/tariffs")
	t.Setenv("AMBER_API_TOKEN", "psk_test")
	t.Setenv("TARIFF_SERVICE_COMPILE_ADVANCE_NOTICE_SLOTS", "1")
	t.Setenv("PORT", "8081")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/tariffs", cfg.Database.URL)
	assert.Equal(t, "psk_test", cfg.Amber.APIToken)
	assert.Equal(t, 1, cfg.Compile.AdvanceNoticeSlots)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/tariffs", GetDatabaseURL())
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`compile:
  timezone: Australia/Sydney
sync:
  interval: 10m
  targets:
    - name: home
      mode: dynamic
      tesla_site_id: "1234"
    - name: shed
      mode: static
      schedule_id: ergon-t12
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, "Australia/Sydney", cfg.Compile.Location().String())

	require.Len(t, cfg.Sync.Targets, 2)
	shed, ok := cfg.Sync.Target("shed")
	require.True(t, ok)
	assert.Equal(t, "static", shed.Mode)
	assert.Equal(t, "ergon-t12", shed.ScheduleID)
	_, ok = cfg.Sync.Target("garage")
	assert.False(t, ok)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCompileLocationFallback(t *testing.T) {
	assert.Equal(t, time.UTC, CompileConfig{Timezone: "Mars/Olympus"}.Location())
	assert.Equal(t, time.UTC, CompileConfig{}.Location())
}
