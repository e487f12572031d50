package snapshots

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/compositedge/bondmonitor/internal/domain"
)

// Manager is the single source of truth for "the current market state".
// Readers get the snapshot that was current when they asked; a publish
// never blocks on a slow reader.
type Manager struct {
	cache *CacheRepository
	log   zerolog.Logger

	mu          sync.RWMutex
	current     *domain.Snapshot
	subscribers map[int]chan domain.Snapshot
	nextSubID   int
}

// NewManager creates a new snapshot manager. cache may be nil in tests.
func NewManager(cache *CacheRepository, log zerolog.Logger) *Manager {
	return &Manager{
		cache:       cache,
		log:         log.With().Str("service", "snapshots").Logger(),
		subscribers: make(map[int]chan domain.Snapshot),
	}
}

// Warm restores the cached snapshot from the previous run, if any. Called
// once at startup before the scheduler starts; a cache failure only means
// a cold start.
func (m *Manager) Warm() {
	if m.cache == nil {
		return
	}
	snap, err := m.cache.Load()
	if err != nil {
		m.log.Warn().Err(err).Msg("Failed to restore cached snapshot, starting cold")
		return
	}
	if snap == nil {
		return
	}

	m.mu.Lock()
	m.current = snap
	m.mu.Unlock()
	m.log.Info().Int("bonds", len(snap.Bonds)).Time("fetched_at", snap.FetchedAt).Msg("Restored cached snapshot")
}

// Publish installs a new current snapshot, persists it, and fans it out.
// Subscribers that are not draining are skipped for this update rather
// than stalling the refresh cycle.
func (m *Manager) Publish(snap domain.Snapshot) {
	m.mu.Lock()
	m.current = &snap
	for _, ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
	m.mu.Unlock()

	if m.cache != nil {
		if err := m.cache.Save(snap); err != nil {
			m.log.Warn().Err(err).Msg("Failed to persist snapshot cache")
		}
	}
}

// Current returns the latest snapshot. The bool is false before the first
// publish on a cold start.
func (m *Manager) Current() (domain.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return domain.Snapshot{}, false
	}
	return *m.current, true
}

// Subscribe registers a live update channel and returns it with its
// cancel function. The channel is buffered by one so a subscriber that
// briefly falls behind sees the newest snapshot, not a backlog.
func (m *Manager) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 1)

	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = ch
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
	return ch, cancel
}
