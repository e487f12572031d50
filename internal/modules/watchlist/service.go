package watchlist

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/compositedge/bondmonitor/internal/domain"
	"github.com/compositedge/bondmonitor/internal/events"
	"github.com/compositedge/bondmonitor/internal/modules/reference"
)

// Service exposes watchlist and alert operations on top of the Store and
// re-derives alert statuses against each refresh cycle.
type Service struct {
	store  *Store
	events *events.Manager
	log    zerolog.Logger
}

// NewService creates a new watchlist service.
func NewService(store *Store, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		store:  store,
		events: eventManager,
		log:    log.With().Str("service", "watchlist").Logger(),
	}
}

// State returns a copy of the current user state.
func (s *Service) State() UserState {
	return s.store.Snapshot()
}

// Watchlist returns the tracked symbols in insertion order.
func (s *Service) Watchlist() []string {
	return s.store.Snapshot().Watchlist
}

// Add appends one symbol, canonicalized and deduplicated. Adding a symbol
// that is already tracked is a no-op, not an error.
func (s *Service) Add(symbol string) error {
	canonical := reference.CanonicalSymbol(symbol)
	if canonical == "" {
		return fmt.Errorf("empty symbol")
	}
	return s.store.Update(func(st *UserState) {
		st.Watchlist = appendUnique(st.Watchlist, canonical)
	})
}

// AddBulk parses free-form pasted text (newline, comma or whitespace
// separated) and adds every symbol it finds. Returns how many symbols were
// newly added.
func (s *Service) AddBulk(text string) (int, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ';' || r == '\t'
	})

	var symbols []string
	for _, f := range fields {
		if canonical := reference.CanonicalSymbol(f); canonical != "" {
			symbols = append(symbols, canonical)
		}
	}
	if len(symbols) == 0 {
		return 0, fmt.Errorf("no symbols found in pasted text")
	}

	added := 0
	err := s.store.Update(func(st *UserState) {
		for _, sym := range symbols {
			before := len(st.Watchlist)
			st.Watchlist = appendUnique(st.Watchlist, sym)
			if len(st.Watchlist) > before {
				added++
			}
		}
	})
	return added, err
}

// Remove drops a symbol from the watchlist along with its alert, if any.
func (s *Service) Remove(symbol string) error {
	canonical := reference.CanonicalSymbol(symbol)
	return s.store.Update(func(st *UserState) {
		kept := st.Watchlist[:0]
		for _, sym := range st.Watchlist {
			if sym != canonical {
				kept = append(kept, sym)
			}
		}
		st.Watchlist = kept
		delete(st.Alerts, canonical)
	})
}

// SetAlert configures the alert for a symbol, adding the symbol to the
// watchlist if it is not already tracked. The derived status resets to
// NONE; the next evaluation cycle assigns the real one.
func (s *Service) SetAlert(symbol string, cfg domain.AlertConfig) error {
	canonical := reference.CanonicalSymbol(symbol)
	if canonical == "" {
		return fmt.Errorf("empty symbol")
	}
	cfg.LastStatus = domain.AlertNone
	return s.store.Update(func(st *UserState) {
		st.Watchlist = appendUnique(st.Watchlist, canonical)
		st.Alerts[canonical] = cfg
	})
}

// RemoveAlert deletes the alert for a symbol, keeping the symbol tracked.
func (s *Service) RemoveAlert(symbol string) error {
	canonical := reference.CanonicalSymbol(symbol)
	return s.store.Update(func(st *UserState) {
		delete(st.Alerts, canonical)
	})
}

// EvaluateAll re-derives every alert's status from the cycle's priced
// bonds and persists the result. Symbols absent from the cycle evaluate
// to NONE. Status transitions are emitted as events; the transition into
// HIT gets its own event type so downstream consumers can edge-trigger.
func (s *Service) EvaluateAll(bonds []domain.PricedBond) error {
	book := make(map[string]domain.PricedBond, len(bonds))
	for _, b := range bonds {
		book[b.Symbol] = b
	}

	type transition struct {
		symbol   string
		from, to domain.AlertStatus
	}
	var transitions []transition

	err := s.store.Update(func(st *UserState) {
		for symbol, cfg := range st.Alerts {
			b := book[symbol] // zero value means empty book: NONE
			status := EvaluateAlert(cfg, b.Bid, b.Ask)
			if status != cfg.LastStatus {
				transitions = append(transitions, transition{symbol, cfg.LastStatus, status})
			}
			cfg.LastStatus = status
			st.Alerts[symbol] = cfg
		}
	})
	if err != nil {
		return err
	}

	for _, tr := range transitions {
		s.events.Emit(events.AlertStatusChanged, "watchlist", map[string]interface{}{
			"symbol": tr.symbol,
			"from":   string(tr.from),
			"to":     string(tr.to),
		})
		if tr.to == domain.AlertHit {
			s.events.Emit(events.AlertHit, "watchlist", map[string]interface{}{
				"symbol": tr.symbol,
			})
		}
	}
	return nil
}

func appendUnique(list []string, symbol string) []string {
	for _, existing := range list {
		if existing == symbol {
			return list
		}
	}
	return append(list, symbol)
}
