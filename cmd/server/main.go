package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tariffsync/tariff-service/config"
	"github.com/tariffsync/tariff-service/internal/amber"
	"github.com/tariffsync/tariff-service/internal/database"
	"github.com/tariffsync/tariff-service/internal/handlers"
	"github.com/tariffsync/tariff-service/internal/http/ratelimit"
	"github.com/tariffsync/tariff-service/internal/jobs"
	"github.com/tariffsync/tariff-service/internal/middleware"
	"github.com/tariffsync/tariff-service/internal/storage"
	"github.com/tariffsync/tariff-service/internal/sweepers"
	"github.com/tariffsync/tariff-service/internal/syncer"
	"github.com/tariffsync/tariff-service/internal/telemetry"
	"github.com/tariffsync/tariff-service/internal/tesla"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting tariff service")

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.ConfigFrom(cfg.Telemetry))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL not set")
	}

	if err := database.Connect(
		ctx,
		dbURL,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime,
		cfg.Database.MaxConnIdleTime,
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx, database.Pool()); err != nil {
		logger.Fatal().Err(err).Msg("Failed to apply schema")
	}
	logger.Info().Msg("Database connected")

	store := database.NewStore(database.Pool())
	if err := handleInterruptedRuns(ctx, store, cfg, logger); err != nil {
		logger.Warn().Err(err).Msg("Failed to handle interrupted runs")
	}

	archive, err := storage.NewLocalStorage(cfg.Storage.BasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize archive storage")
	}

	svc, closeLocker, err := buildSyncService(ctx, cfg, store, archive, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure sync")
	}
	defer closeLocker()

	var syncSweeper *sweepers.SyncSweeper
	if cfg.Sync.Enabled && len(svc.Targets()) > 0 {
		syncSweeper = sweepers.NewSyncSweeper(svc, logger, cfg.Sync.Interval)
		go syncSweeper.Start(ctx)
	} else {
		logger.Info().Msg("Sync loop disabled")
	}

	cleanup := jobs.NewCleanupManager(jobs.CleanupConfigFrom(cfg.Cleanup), store, archive, logger)
	cleanup.Start()

	opts, err := syncer.OptionsFrom(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid compile configuration")
	}
	handlers.Init(store, svc, archive)
	handlers.InitCompile(opts.Meta, opts.Dynamic)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	done := make(chan struct{})
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(*logger))

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware(cfg.Server.InternalAPIKey))
	internal.Use(middleware.RateLimitMiddleware(done))
	internal.Use(middleware.ServiceRateLimitMiddleware(50, 100))
	handlers.RegisterRoutes(internal)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	if syncSweeper != nil {
		syncSweeper.Stop()
	}
	cleanup.Stop()
	close(done)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Failed to flush telemetry")
	}

	logger.Info().Msg("Server exited")
}

// buildSyncService wires the feed, controller and lock into the sync service
func buildSyncService(ctx context.Context, cfg *config.Config, store *database.Store, archive storage.Storage, logger *zerolog.Logger) (*syncer.Service, func(), error) {
	targets, err := syncer.TargetsFrom(cfg.Sync.Targets)
	if err != nil {
		return nil, nil, err
	}
	opts, err := syncer.OptionsFrom(cfg)
	if err != nil {
		return nil, nil, err
	}

	var locker syncer.Locker = syncer.NoopLocker{}
	closeLocker := func() {}
	if cfg.Redis.URL != "" {
		rl, err := syncer.NewRedisLocker(ctx, cfg.Redis.URL, cfg.Redis.KeyPrefix, *logger)
		if err != nil {
			return nil, nil, err
		}
		locker = rl
		closeLocker = func() { _ = rl.Close() }
	} else {
		logger.Warn().Msg("REDIS_URL not set, sync locks are local to this instance")
	}

	rl := ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		MaxRetries:        cfg.RateLimit.MaxRetries,
		InitialBackoffMs:  cfg.RateLimit.InitialBackoffMs,
		MaxBackoffMs:      cfg.RateLimit.MaxBackoffMs,
	}
	source := amber.NewClient(cfg.Amber, rl, *logger)
	publisher := tesla.NewClient(cfg.Tesla, rl, *logger)

	svc := syncer.NewService(targets, source, publisher, store, archive, locker, opts, *logger)
	logger.Info().Strs("targets", svc.Targets()).Msg("Sync service configured")
	return svc, closeLocker, nil
}

// handleInterruptedRuns fails runs left running by a previous process. With
// a shared lock other instances may be mid-cycle, so only runs older than
// the stale threshold are touched.
func handleInterruptedRuns(ctx context.Context, store *database.Store, cfg *config.Config, logger *zerolog.Logger) error {
	cutoff := time.Now()
	if cfg.Redis.URL != "" {
		cutoff = cutoff.Add(-cfg.Cleanup.StaleRunAfter)
	}
	n, err := store.FailStaleRuns(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to fail interrupted runs: %w", err)
	}
	if n == 0 {
		logger.Info().Msg("No interrupted runs found")
		return nil
	}
	logger.Info().Int64("count", n).Msg("Handled interrupted runs")
	return nil
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "tariff-service").Logger()
	return &logger
}
