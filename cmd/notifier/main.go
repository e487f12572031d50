// The notifier is a small companion process that tails the user-state
// document the server maintains and fires a one-shot notification each
// time an alert transitions into HIT. Running it separately means alerting
// survives server restarts mid-cycle and can live on another host with
// access to the same data directory.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/compositedge/bondmonitor/internal/domain"
	"github.com/compositedge/bondmonitor/pkg/logger"
)

const pollInterval = 5 * time.Second

type userState struct {
	Alerts map[string]domain.AlertConfig `json:"alerts"`
}

type notifier struct {
	statePath  string
	webhookURL string
	command    string
	client     *http.Client
	log        zerolog.Logger

	// last status seen per symbol, to edge-trigger on fresh HITs only
	lastSeen map[string]domain.AlertStatus
}

func main() {
	_ = godotenv.Load()

	log := logger.New(logger.Config{
		Level:  getEnv("LOG_LEVEL", "info"),
		Pretty: true,
	})

	dataDir := getEnv("BOND_DATA_DIR", "./data")
	n := &notifier{
		statePath:  filepath.Join(dataDir, "user_state.json"),
		webhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		command:    getEnv("NOTIFY_COMMAND", ""),
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("component", "notifier").Logger(),
		lastSeen:   make(map[string]domain.AlertStatus),
	}

	n.log.Info().Str("state_path", n.statePath).Msg("Notifier started")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			n.poll()
		case <-quit:
			n.log.Info().Msg("Notifier stopped")
			return
		}
	}
}

// poll reads the state document and fires on fresh HIT transitions. The
// server replaces the file atomically, so a read either sees a complete
// document or fails outright; failures skip the cycle rather than reset
// the seen-state, so no transition is double-fired or lost.
func (n *notifier) poll() {
	data, err := os.ReadFile(n.statePath)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		n.log.Warn().Err(err).Msg("Failed to read user state")
		return
	}

	var state userState
	if err := json.Unmarshal(data, &state); err != nil {
		n.log.Warn().Err(err).Msg("Failed to parse user state, skipping cycle")
		return
	}

	for symbol, alert := range state.Alerts {
		previous := n.lastSeen[symbol]
		n.lastSeen[symbol] = alert.LastStatus

		if alert.LastStatus == domain.AlertHit && previous != domain.AlertHit {
			n.notify(symbol, alert)
		}
	}

	// Forget symbols whose alerts were removed so a re-created alert can
	// fire again.
	for symbol := range n.lastSeen {
		if _, ok := state.Alerts[symbol]; !ok {
			delete(n.lastSeen, symbol)
		}
	}
}

func (n *notifier) notify(symbol string, alert domain.AlertConfig) {
	n.log.Info().
		Str("symbol", symbol).
		Str("side", string(alert.Side)).
		Float64("target", alert.Target).
		Msg("ALERT HIT")

	if n.command != "" {
		n.runCommand(symbol, alert)
	}

	if n.webhookURL == "" {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"symbol": symbol,
		"side":   alert.Side,
		"target": alert.Target,
		"status": alert.LastStatus,
		"at":     time.Now().UTC(),
	})
	if err != nil {
		n.log.Error().Err(err).Msg("Failed to encode webhook payload")
		return
	}

	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		n.log.Error().Err(err).Str("symbol", symbol).Msg("Webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.log.Warn().Int("status", resp.StatusCode).Str("symbol", symbol).Msg("Webhook rejected")
	}
}

// runCommand invokes the configured notify command with the alert details
// as arguments. Desktop notifiers like notify-send slot in directly.
func (n *notifier) runCommand(symbol string, alert domain.AlertConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	message := fmt.Sprintf("%s %s alert hit target %.2f", symbol, alert.Side, alert.Target)
	cmd := exec.CommandContext(ctx, n.command, symbol, string(alert.Side), message)
	if output, err := cmd.CombinedOutput(); err != nil {
		n.log.Error().Err(err).
			Str("symbol", symbol).
			Str("output", string(output)).
			Msg("Notify command failed")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
