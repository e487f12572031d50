// Package events provides lightweight event emission for the monitor.
// Events are structured log entries with a stable type vocabulary so
// downstream tooling can grep/stream them.
package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	QuoteRefreshComplete EventType = "QUOTE_REFRESH_COMPLETE"
	FeedUnavailable      EventType = "FEED_UNAVAILABLE"
	ReferenceSynced      EventType = "REFERENCE_SYNCED"
	AlertStatusChanged   EventType = "ALERT_STATUS_CHANGED"
	AlertHit             EventType = "ALERT_HIT"
	SignalsGenerated     EventType = "SIGNALS_GENERATED"
	BackupCompleted      EventType = "BACKUP_COMPLETED"
	ErrorOccurred        EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Manager handles event emission and logging
type Manager struct {
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log: log.With().Str("service", "events").Logger(),
	}
}

// Emit emits an event
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	eventJSON, _ := json.Marshal(event)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	m.Emit(ErrorOccurred, module, map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	})
}
