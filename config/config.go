package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Amber     AmberConfig     `mapstructure:"amber"`
	Tesla     TeslaConfig     `mapstructure:"tesla"`
	Compile   CompileConfig   `mapstructure:"compile"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	InternalAPIKey string        `mapstructure:"internal_api_key"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds the sync lock store configuration. An empty URL
// disables cross-instance locking.
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// RateLimitConfig holds rate limiting configuration for outbound clients
type RateLimitConfig struct {
	RequestsPerSecond int `mapstructure:"requests_per_second"`
	MaxRetries        int `mapstructure:"max_retries"`
	InitialBackoffMs  int `mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int `mapstructure:"max_backoff_ms"`
}

// StorageConfig holds document archive configuration
type StorageConfig struct {
	Type     string `mapstructure:"type"`
	BasePath string `mapstructure:"base_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// AmberConfig holds the spot-price feed client configuration
type AmberConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIToken string        `mapstructure:"api_token"`
	SiteID   string        `mapstructure:"site_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TeslaConfig holds the battery controller upload configuration
type TeslaConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIToken string        `mapstructure:"api_token"`
	SiteID   string        `mapstructure:"site_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CompileConfig holds dynamic compile options and the published tariff identity
type CompileConfig struct {
	Timezone           string        `mapstructure:"timezone"`
	AdvanceNoticeSlots int           `mapstructure:"advance_notice_slots"`
	ForecastHorizon    time.Duration `mapstructure:"forecast_horizon"`
	Name               string        `mapstructure:"name"`
	Utility            string        `mapstructure:"utility"`
	Code               string        `mapstructure:"code"`
	Currency           string        `mapstructure:"currency"`
	DailyCharge        string        `mapstructure:"daily_charge"`
}

// SyncConfig controls the tariff sync loop
type SyncConfig struct {
	Enabled       bool           `mapstructure:"enabled"`
	Interval      time.Duration  `mapstructure:"interval"`
	LockTTL       time.Duration  `mapstructure:"lock_ttl"`
	MaxConcurrent int            `mapstructure:"max_concurrent"`
	Targets       []TargetConfig `mapstructure:"targets"`
}

// TargetConfig is one controller site kept in sync
type TargetConfig struct {
	Name        string `mapstructure:"name"`
	Mode        string `mapstructure:"mode"`
	TeslaSiteID string `mapstructure:"tesla_site_id"`
	AmberSiteID string `mapstructure:"amber_site_id"`
	ScheduleID  string `mapstructure:"schedule_id"`
}

// CleanupConfig controls retention of run history and archives
type CleanupConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	RunRetention     time.Duration `mapstructure:"run_retention"`
	ArchiveRetention time.Duration `mapstructure:"archive_retention"`
	StaleRunAfter    time.Duration `mapstructure:"stale_run_after"`
}

// TelemetryConfig holds OpenTelemetry exporter configuration
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// Location resolves the compile timezone, falling back to UTC
func (c CompileConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", c.Timezone).Msg("Unknown timezone, using UTC")
		return time.UTC
	}
	return loc
}

// Target looks up a configured sync target by name
func (s SyncConfig) Target(name string) (TargetConfig, bool) {
	for _, t := range s.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetConfig{}, false
}

var globalConfig *Config

// Load loads the configuration from file, .env, and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// .env is optional
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg(".env file not loaded")
	}

	v.SetEnvPrefix("TARIFF_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// loadEnvFile loads the first .env file found
func loadEnvFile() error {
	for _, path := range []string{".", "./config"} {
		envFile := fmt.Sprintf("%s/.env", path)
		if _, err := os.Stat(envFile); err == nil {
			return loadDotEnvFile(envFile)
		}
	}
	return fmt.Errorf("no .env file found")
}

// loadDotEnvFile reads KEY=VALUE lines into the environment without
// overriding variables that are already set
func loadDotEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

// bindEnvVars binds the conventional unprefixed variables
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("database.url", "TARIFF_SERVICE_DATABASE_URL", "DATABASE_URL")
	v.BindEnv("redis.url", "TARIFF_SERVICE_REDIS_URL", "REDIS_URL")

	v.BindEnv("server.port", "TARIFF_SERVICE_SERVER_PORT", "PORT")
	v.BindEnv("server.host", "TARIFF_SERVICE_SERVER_HOST", "HOST")
	v.BindEnv("server.internal_api_key", "TARIFF_SERVICE_SERVER_INTERNAL_API_KEY", "INTERNAL_API_KEY")

	v.BindEnv("logging.level", "TARIFF_SERVICE_LOGGING_LEVEL", "LOG_LEVEL")

	v.BindEnv("storage.base_path", "TARIFF_SERVICE_STORAGE_BASE_PATH", "STORAGE_PATH")

	v.BindEnv("amber.api_token", "TARIFF_SERVICE_AMBER_API_TOKEN", "AMBER_API_TOKEN")
	v.BindEnv("amber.site_id", "TARIFF_SERVICE_AMBER_SITE_ID", "AMBER_SITE_ID")
	v.BindEnv("tesla.api_token", "TARIFF_SERVICE_TESLA_API_TOKEN", "TESLA_API_TOKEN")
	v.BindEnv("tesla.site_id", "TARIFF_SERVICE_TESLA_SITE_ID", "TESLA_SITE_ID")

	v.BindEnv("telemetry.endpoint", "TARIFF_SERVICE_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.max_conn_lifetime", 1*time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)

	v.SetDefault("redis.key_prefix", "tariffsync")

	v.SetDefault("rate_limit.requests_per_second", 2)
	v.SetDefault("rate_limit.max_retries", 3)
	v.SetDefault("rate_limit.initial_backoff_ms", 500)
	v.SetDefault("rate_limit.max_backoff_ms", 30000)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_path", "./data/tariffs")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)

	v.SetDefault("amber.base_url", "https://api.amber.com.au/v1")
	v.SetDefault("amber.timeout", 30*time.Second)

	v.SetDefault("tesla.base_url", "https://api.teslemetry.com")
	v.SetDefault("tesla.timeout", 60*time.Second)

	v.SetDefault("compile.timezone", "Australia/Brisbane")
	v.SetDefault("compile.advance_notice_slots", 0)
	v.SetDefault("compile.forecast_horizon", 24*time.Hour)
	v.SetDefault("compile.name", "Amber Electric (TariffSync)")
	v.SetDefault("compile.utility", "Amber Electric")
	v.SetDefault("compile.code", "TARIFF_SYNC:AMBER")
	v.SetDefault("compile.currency", "AUD")
	v.SetDefault("compile.daily_charge", "0")

	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.interval", 5*time.Minute)
	v.SetDefault("sync.lock_ttl", 2*time.Minute)
	v.SetDefault("sync.max_concurrent", 4)

	v.SetDefault("cleanup.interval", time.Hour)
	v.SetDefault("cleanup.run_retention", 30*24*time.Hour)
	v.SetDefault("cleanup.archive_retention", 90*24*time.Hour)
	v.SetDefault("cleanup.stale_run_after", 15*time.Minute)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "tariff-service")
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// GetDatabaseURL returns the database URL from config or environment
func GetDatabaseURL() string {
	if cfg := Get(); cfg != nil && cfg.Database.URL != "" {
		return cfg.Database.URL
	}
	return os.Getenv("DATABASE_URL")
}
