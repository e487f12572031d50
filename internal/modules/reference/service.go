package reference

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/compositedge/bondmonitor/internal/domain"
)

// Service owns the reference data lifecycle: load from the source file on
// a long cadence, normalize, persist to the repository, and hand the
// in-memory set to the pricing pipeline. The cached set is immutable until
// the next reload.
type Service struct {
	csvPath string
	repo    *Repository
	log     zerolog.Logger

	mu       sync.RWMutex
	cached   []domain.BondReference
	loadedAt time.Time
}

// NewService creates a new reference service. The repository cache is
// warmed on construction so a restart can price immediately.
func NewService(csvPath string, repo *Repository, log zerolog.Logger) *Service {
	s := &Service{
		csvPath: csvPath,
		repo:    repo,
		log:     log.With().Str("service", "reference").Logger(),
	}

	if refs, err := repo.GetAll(); err == nil && len(refs) > 0 {
		s.cached = refs
		s.loadedAt = time.Now()
		s.log.Info().Int("count", len(refs)).Msg("Warmed reference cache from repository")
	}

	return s
}

// Sync reloads reference data from the source file. A load failure leaves
// the previous cache in place; per the error taxonomy it is only fatal for
// callers when no cache exists at all.
func (s *Service) Sync() error {
	rows, err := LoadCSV(s.csvPath)
	if err != nil {
		return err
	}

	refs := Normalize(rows, s.log)
	if len(refs) == 0 {
		return fmt.Errorf("reference source %s produced no valid rows", s.csvPath)
	}

	if err := s.repo.ReplaceAll(refs); err != nil {
		return fmt.Errorf("failed to persist reference data: %w", err)
	}

	s.mu.Lock()
	s.cached = refs
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.log.Info().Int("count", len(refs)).Msg("Reference data synced")
	return nil
}

// Get returns the cached reference set, keyed by canonical symbol.
func (s *Service) Get() map[string]domain.BondReference {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.BondReference, len(s.cached))
	for _, ref := range s.cached {
		out[ref.Symbol] = ref
	}
	return out
}

// LoadedAt reports when the cache was last refreshed (zero when never).
func (s *Service) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
