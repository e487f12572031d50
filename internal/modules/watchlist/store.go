// Package watchlist manages the user's tracked symbols and price alerts.
// State lives in a single JSON document on disk; the separate notifier
// process tails the same file, so every mutation rewrites it atomically
// and the field names are a stable contract.
package watchlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/compositedge/bondmonitor/internal/domain"
)

// UserState is the on-disk document shared with cmd/notifier.
type UserState struct {
	Watchlist []string                      `json:"watchlist"`
	Alerts    map[string]domain.AlertConfig `json:"alerts"`
}

// Store owns the user-state document. All access goes through the mutex;
// every mutation is flushed to disk before it returns.
type Store struct {
	path  string
	log   zerolog.Logger
	mu    sync.Mutex
	state UserState
}

// NewStore loads the document at path. A missing file is an empty state,
// not an error; a file that exists but does not parse is an error, so a
// corrupted document is surfaced instead of silently overwritten.
func NewStore(path string, log zerolog.Logger) (*Store, error) {
	s := &Store{
		path: path,
		log:  log.With().Str("store", "watchlist").Logger(),
		state: UserState{
			Alerts: make(map[string]domain.AlertConfig),
		},
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user state: %w", err)
	}

	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("failed to parse user state %s: %w", path, err)
	}
	if s.state.Alerts == nil {
		s.state.Alerts = make(map[string]domain.AlertConfig)
	}

	s.log.Info().
		Int("watchlist", len(s.state.Watchlist)).
		Int("alerts", len(s.state.Alerts)).
		Msg("User state loaded")
	return s, nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() UserState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyState()
}

// Update applies fn to the state under the lock and persists the result.
// fn receives the live state and may mutate it freely; if persisting fails
// the in-memory mutation is kept and the error returned, so a transient
// disk failure does not lose the user's change on the next successful write.
func (s *Store) Update(fn func(*UserState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)
	return s.persist()
}

// persist writes the document atomically: full serialize to a temp file in
// the same directory, fsync, rename. The notifier polling the file either
// sees the old document or the new one, never a torn write.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize user state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".user_state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write user state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync user state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace user state: %w", err)
	}
	return nil
}

func (s *Store) copyState() UserState {
	out := UserState{
		Watchlist: append([]string(nil), s.state.Watchlist...),
		Alerts:    make(map[string]domain.AlertConfig, len(s.state.Alerts)),
	}
	for k, v := range s.state.Alerts {
		out.Alerts[k] = v
	}
	return out
}
