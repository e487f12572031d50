// Package snapshots holds the latest priced snapshot in memory, fans it
// out to live subscribers, and persists it so a restart can serve the last
// known market state before the first refresh completes.
package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/compositedge/bondmonitor/internal/domain"
)

// CacheRepository persists the latest snapshot as a msgpack blob in the
// single-row snapshot_cache table.
type CacheRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCacheRepository creates a new snapshot cache repository.
func NewCacheRepository(db *sql.DB, log zerolog.Logger) *CacheRepository {
	return &CacheRepository{
		db:  db,
		log: log.With().Str("repository", "snapshot_cache").Logger(),
	}
}

// Save replaces the cached snapshot.
func (r *CacheRepository) Save(snap domain.Snapshot) error {
	payload, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO snapshot_cache (id, payload, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load returns the cached snapshot, or nil when the cache is empty.
func (r *CacheRepository) Load() (*domain.Snapshot, error) {
	var payload []byte
	err := r.db.QueryRow("SELECT payload FROM snapshot_cache WHERE id = 1").Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := msgpack.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode cached snapshot: %w", err)
	}
	return &snap, nil
}
