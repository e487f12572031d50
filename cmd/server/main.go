package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/compositedge/bondmonitor/internal/clients/nse"
	"github.com/compositedge/bondmonitor/internal/config"
	"github.com/compositedge/bondmonitor/internal/database"
	"github.com/compositedge/bondmonitor/internal/domain"
	"github.com/compositedge/bondmonitor/internal/events"
	"github.com/compositedge/bondmonitor/internal/modules/history"
	"github.com/compositedge/bondmonitor/internal/modules/market"
	"github.com/compositedge/bondmonitor/internal/modules/pricing"
	"github.com/compositedge/bondmonitor/internal/modules/reference"
	"github.com/compositedge/bondmonitor/internal/modules/relvalue"
	"github.com/compositedge/bondmonitor/internal/modules/scanner"
	"github.com/compositedge/bondmonitor/internal/modules/snapshots"
	"github.com/compositedge/bondmonitor/internal/modules/watchlist"
	"github.com/compositedge/bondmonitor/internal/reliability"
	"github.com/compositedge/bondmonitor/internal/scheduler"
	"github.com/compositedge/bondmonitor/internal/server"
	"github.com/compositedge/bondmonitor/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Level: "info", Pretty: true})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting bond monitor")

	// Databases
	referenceDB := mustOpenDB(log, database.Config{
		Path:    filepath.Join(cfg.DataDir, "reference.db"),
		Profile: database.ProfileStandard,
		Name:    "reference",
	})
	defer referenceDB.Close()

	historyDB := mustOpenDB(log, database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	defer historyDB.Close()

	cacheDB := mustOpenDB(log, database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	defer cacheDB.Close()

	databases := []*database.DB{referenceDB, historyDB, cacheDB}

	// Core services
	eventManager := events.NewManager(log)

	referenceService := reference.NewService(cfg.ReferenceCSVPath, reference.NewRepository(referenceDB.Conn(), log), log)
	if err := referenceService.Sync(); err != nil {
		if len(referenceService.Get()) == 0 {
			log.Fatal().Err(err).Msg("No reference data available; provide a reference CSV and restart")
		}
		log.Warn().Err(err).Msg("Reference sync failed, continuing with cached data")
	}

	historyRepo := history.NewRepository(historyDB.Conn(), log)

	snapshotManager := snapshots.NewManager(snapshots.NewCacheRepository(cacheDB.Conn(), log), log)
	snapshotManager.Warm()

	store, err := watchlist.NewStore(cfg.UserStatePath(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load user state")
	}
	watchlistService := watchlist.NewService(store, eventManager, log)

	feed, err := nse.NewClient(cfg.FeedBaseURL, cfg.FeedSeries, time.Duration(cfg.FeedTimeoutSecs)*time.Second, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create feed client")
	}

	pricingService := pricing.NewService(log)
	relEngine := relvalue.NewEngine(log)
	scannerService := scanner.NewService(log)

	scanParams := domain.ScanParams{
		YieldThreshold:   cfg.ScanYieldThreshold,
		VolumeMultiplier: cfg.ScanVolumeMultiplier,
		MinVolume:        cfg.ScanMinVolume,
		TopN:             cfg.ScanTopN,
	}

	// Background jobs
	refreshJob := scheduler.NewQuoteRefreshJob(
		feed, referenceService, pricingService, relEngine,
		historyRepo, scannerService, watchlistService,
		snapshotManager, eventManager, scanParams, log,
	)

	sched := scheduler.New(log)
	mustAddJob(log, sched, fmt.Sprintf("@every %ds", cfg.QuoteRefreshSecs), refreshJob)
	mustAddJob(log, sched, fmt.Sprintf("@every %dh", cfg.ReferenceSyncHours),
		scheduler.NewReferenceSyncJob(referenceService, eventManager, log))
	mustAddJob(log, sched, "0 30 2 * * *", scheduler.NewMaintenanceJob(databases, log))

	if cfg.Backup != nil && cfg.Backup.Enabled {
		r2Client, err := reliability.NewR2Client(
			cfg.Backup.Endpoint, cfg.Backup.AccessKeyID,
			cfg.Backup.SecretAccessKey, cfg.Backup.Bucket, log,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create backup client")
		}
		backupService := reliability.NewBackupService(r2Client, databases, cfg.UserStatePath(), cfg.DataDir, log)
		mustAddJob(log, sched, "0 0 3 * * *",
			scheduler.NewBackupJob(backupService, cfg.Backup.RetainCount, eventManager, log))
	} else {
		log.Info().Msg("Remote backup disabled (credentials not configured)")
	}

	sched.Start()
	defer sched.Stop()

	// First cycle immediately so the dashboard is warm before the first tick.
	go func() {
		if err := sched.RunNow(refreshJob); err != nil {
			log.Error().Err(err).Msg("Initial refresh failed")
		}
	}()

	// HTTP server
	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		DevMode: cfg.DevMode,
		System:  server.NewSystemHandlers(log, cfg.DataDir, databases, snapshotManager),
		Modules: []server.RouteRegistrar{
			market.NewHandler(snapshotManager, pricingService, relEngine, scannerService, historyRepo, refreshJob, scanParams, log),
			watchlist.NewHandler(watchlistService, snapshotManager, log),
			reference.NewHandler(referenceService, log),
		},
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func mustOpenDB(log zerolog.Logger, cfg database.Config) *database.DB {
	db, err := database.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("database", cfg.Name).Msg("Failed to open database")
	}
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Str("database", cfg.Name).Msg("Failed to run migrations")
	}
	return db
}

func mustAddJob(log zerolog.Logger, sched *scheduler.Scheduler, schedule string, job scheduler.Job) {
	if err := sched.AddJob(schedule, job); err != nil {
		log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to register job")
	}
}
