package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/compositedge/bondmonitor/internal/database"
	"github.com/compositedge/bondmonitor/internal/domain"
	"github.com/compositedge/bondmonitor/internal/events"
	"github.com/compositedge/bondmonitor/internal/modules/history"
	"github.com/compositedge/bondmonitor/internal/modules/pricing"
	"github.com/compositedge/bondmonitor/internal/modules/reference"
	"github.com/compositedge/bondmonitor/internal/modules/relvalue"
	"github.com/compositedge/bondmonitor/internal/modules/scanner"
	"github.com/compositedge/bondmonitor/internal/modules/snapshots"
	"github.com/compositedge/bondmonitor/internal/modules/watchlist"
	"github.com/compositedge/bondmonitor/internal/reliability"
)

// QuoteFeed is the live quote source consumed by the refresh job.
type QuoteFeed interface {
	GetLiveBonds() ([]domain.Quote, error)
}

// QuoteRefreshJob drives one full market refresh cycle: fetch quotes, join
// and price against reference data, annotate relative value, record
// history, re-evaluate alerts, run the opportunity scan, and publish the
// snapshot. A feed failure degrades to an empty snapshot with the failure
// recorded on it; the cycle itself never aborts.
type QuoteRefreshJob struct {
	feed       QuoteFeed
	references *reference.Service
	pricer     *pricing.Service
	relEngine  *relvalue.Engine
	history    *history.Repository
	scanner    *scanner.Service
	watchlist  *watchlist.Service
	snapshots  *snapshots.Manager
	events     *events.Manager
	scanParams domain.ScanParams
	log        zerolog.Logger

	mu          sync.RWMutex
	lastSignals []domain.Signal
}

// NewQuoteRefreshJob creates a new quote refresh job.
func NewQuoteRefreshJob(
	feed QuoteFeed,
	references *reference.Service,
	pricer *pricing.Service,
	relEngine *relvalue.Engine,
	historyRepo *history.Repository,
	scannerSvc *scanner.Service,
	watchlistSvc *watchlist.Service,
	snapshotMgr *snapshots.Manager,
	eventManager *events.Manager,
	scanParams domain.ScanParams,
	log zerolog.Logger,
) *QuoteRefreshJob {
	return &QuoteRefreshJob{
		feed:       feed,
		references: references,
		pricer:     pricer,
		relEngine:  relEngine,
		history:    historyRepo,
		scanner:    scannerSvc,
		watchlist:  watchlistSvc,
		snapshots:  snapshotMgr,
		events:     eventManager,
		scanParams: scanParams,
		log:        log.With().Str("job", "quote_refresh").Logger(),
	}
}

// Name returns the job name.
func (j *QuoteRefreshJob) Name() string { return "quote_refresh" }

// Run executes one refresh cycle.
func (j *QuoteRefreshJob) Run() error {
	now := time.Now()

	quotes, feedErr := j.feed.GetLiveBonds()
	snap := j.pricer.BuildSnapshot(j.references.Get(), quotes, now)

	switch {
	case feedErr != nil:
		snap.FeedStatus = domain.FeedUnavailable
		snap.FeedError = feedErr.Error()
		j.events.Emit(events.FeedUnavailable, "quote_refresh", map[string]interface{}{
			"error": feedErr.Error(),
		})
	case len(snap.Bonds) == 0:
		snap.FeedStatus = domain.FeedEmpty
	}

	snap.Bonds = j.relEngine.Apply(snap.Bonds, relvalue.GroupBySeries)

	if snap.FeedStatus == domain.FeedOK {
		if err := j.history.RecordSnapshot(now.Format("2006-01-02"), snap.Bonds); err != nil {
			j.log.Error().Err(err).Msg("Failed to record yield history")
		}
	}

	if err := j.watchlist.EvaluateAll(snap.Bonds); err != nil {
		j.log.Error().Err(err).Msg("Failed to evaluate alerts")
	}

	averages, err := j.history.AveragesAll()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to load history averages")
		averages = nil
	}
	signals := j.scanner.Scan(snap.Bonds, averages, j.scanParams, now)

	j.mu.Lock()
	j.lastSignals = signals
	j.mu.Unlock()

	if len(signals) > 0 {
		j.events.Emit(events.SignalsGenerated, "quote_refresh", map[string]interface{}{
			"count": len(signals),
		})
	}

	j.snapshots.Publish(snap)
	j.events.Emit(events.QuoteRefreshComplete, "quote_refresh", map[string]interface{}{
		"bonds":       len(snap.Bonds),
		"feed_status": string(snap.FeedStatus),
	})
	return nil
}

// LatestSignals returns the signals from the most recent cycle.
func (j *QuoteRefreshJob) LatestSignals() []domain.Signal {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]domain.Signal(nil), j.lastSignals...)
}

// ReferenceSyncJob reloads the bond reference cache from its source.
type ReferenceSyncJob struct {
	references *reference.Service
	events     *events.Manager
	log        zerolog.Logger
}

// NewReferenceSyncJob creates a new reference sync job.
func NewReferenceSyncJob(references *reference.Service, eventManager *events.Manager, log zerolog.Logger) *ReferenceSyncJob {
	return &ReferenceSyncJob{
		references: references,
		events:     eventManager,
		log:        log.With().Str("job", "reference_sync").Logger(),
	}
}

// Name returns the job name.
func (j *ReferenceSyncJob) Name() string { return "reference_sync" }

// Run reloads the reference data. A failed reload keeps the previous cache.
func (j *ReferenceSyncJob) Run() error {
	if err := j.references.Sync(); err != nil {
		return err
	}
	j.events.Emit(events.ReferenceSynced, "reference_sync", map[string]interface{}{
		"symbols": len(j.references.Get()),
	})
	return nil
}

// BackupJob ships the nightly data-dir archive and rotates old ones.
type BackupJob struct {
	backup      *reliability.BackupService
	retainCount int
	events      *events.Manager
	log         zerolog.Logger
}

// NewBackupJob creates a new backup job.
func NewBackupJob(backup *reliability.BackupService, retainCount int, eventManager *events.Manager, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backup:      backup,
		retainCount: retainCount,
		events:      eventManager,
		log:         log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name.
func (j *BackupJob) Name() string { return "backup" }

// Run creates and uploads one archive, then prunes remote archives.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := j.backup.CreateAndUploadBackup(ctx); err != nil {
		j.events.EmitError("backup", err, nil)
		return err
	}
	if err := j.backup.RotateOldBackups(ctx, j.retainCount); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	j.events.Emit(events.BackupCompleted, "backup", nil)
	return nil
}

// MaintenanceJob runs nightly database housekeeping: WAL checkpoints to
// cap file growth and a quick health probe per database.
type MaintenanceJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job.
func NewMaintenanceJob(databases []*database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Name returns the job name.
func (j *MaintenanceJob) Name() string { return "db_maintenance" }

// Run executes the maintenance pass. Checkpoint failures are logged but
// not fatal; an integrity failure is.
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, db := range j.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Str("database", db.Name()).Err(err).Msg("WAL checkpoint failed")
		}
		if err := db.HealthCheck(ctx); err != nil {
			return err
		}
	}

	j.log.Info().Int("databases", len(j.databases)).Msg("Maintenance pass completed")
	return nil
}
