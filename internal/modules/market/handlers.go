// Package market exposes the live market table and the derived analytics
// endpoints over HTTP.
package market

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/compositedge/bondmonitor/internal/domain"
	"github.com/compositedge/bondmonitor/internal/modules/history"
	"github.com/compositedge/bondmonitor/internal/modules/pricing"
	"github.com/compositedge/bondmonitor/internal/modules/reference"
	"github.com/compositedge/bondmonitor/internal/modules/relvalue"
	"github.com/compositedge/bondmonitor/internal/modules/scanner"
	"github.com/compositedge/bondmonitor/internal/modules/snapshots"
)

// Refresher triggers a quote refresh cycle and reports its latest scan.
type Refresher interface {
	Run() error
	LatestSignals() []domain.Signal
}

// Handler handles market HTTP requests.
type Handler struct {
	snapshots  *snapshots.Manager
	pricer     *pricing.Service
	relEngine  *relvalue.Engine
	scanner    *scanner.Service
	history    *history.Repository
	refresher  Refresher
	scanParams domain.ScanParams
	validate   *validator.Validate
	log        zerolog.Logger
}

// NewHandler creates a new market handler. scanParams are the server
// defaults applied when a scan request omits a field.
func NewHandler(
	snapshotMgr *snapshots.Manager,
	pricer *pricing.Service,
	relEngine *relvalue.Engine,
	scannerSvc *scanner.Service,
	historyRepo *history.Repository,
	refresher Refresher,
	scanParams domain.ScanParams,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		snapshots:  snapshotMgr,
		pricer:     pricer,
		relEngine:  relEngine,
		scanner:    scannerSvc,
		history:    historyRepo,
		refresher:  refresher,
		scanParams: scanParams,
		validate:   validator.New(),
		log:        log.With().Str("handler", "market").Logger(),
	}
}

// RegisterRoutes registers all market routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/market", h.HandleGetMarket)
	r.Get("/market/status", h.HandleGetStatus)
	r.Post("/market/refresh", h.HandleRefresh)
	r.Get("/market/stream", h.HandleStream)
	r.Get("/signals", h.HandleGetSignals)
	r.Post("/scan", h.HandleScan)
	r.Post("/ytm", h.HandleCustomYTM)
	r.Get("/history/{symbol}", h.HandleGetHistory)
}

// HandleGetMarket returns the current market table. Optional query params:
// series filters by series, min_volume drops thin rows, group_by=maturity
// recomputes relative value against tenor buckets instead of series.
func (h *Handler) HandleGetMarket(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshots.Current()
	if !ok {
		h.writeError(w, http.StatusServiceUnavailable, "no market snapshot yet")
		return
	}

	series := r.URL.Query().Get("series")
	minVolume := 0.0
	if v := r.URL.Query().Get("min_volume"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "min_volume must be numeric")
			return
		}
		minVolume = parsed
	}

	bonds := make([]domain.PricedBond, 0, len(snap.Bonds))
	for _, b := range snap.Bonds {
		if series != "" && b.Series != series {
			continue
		}
		if b.Volume < minVolume {
			continue
		}
		bonds = append(bonds, b)
	}

	// Re-grouping happens on the copy; the published snapshot keeps its
	// series-relative values.
	if r.URL.Query().Get("group_by") == "maturity" {
		bonds = h.relEngine.Apply(bonds, relvalue.GroupByMaturityBucket)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"bonds":           bonds,
		"settlement_date": snap.SettlementDate.Format("2006-01-02"),
		"fetched_at":      snap.FetchedAt,
		"feed_status":     snap.FeedStatus,
		"feed_error":      snap.FeedError,
	})
}

// HandleGetStatus returns feed freshness without the table payload.
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshots.Current()
	if !ok {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"feed_status": "cold",
			"bonds":       0,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"feed_status":     snap.FeedStatus,
		"feed_error":      snap.FeedError,
		"bonds":           len(snap.Bonds),
		"fetched_at":      snap.FetchedAt,
		"age_seconds":     int(time.Since(snap.FetchedAt).Seconds()),
		"settlement_date": snap.SettlementDate.Format("2006-01-02"),
	})
}

// HandleRefresh triggers a refresh cycle immediately.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.log.Info().Msg("Manual refresh triggered")
	if err := h.refresher.Run(); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// HandleGetSignals returns the signals from the latest scheduled scan.
func (h *Handler) HandleGetSignals(w http.ResponseWriter, r *http.Request) {
	signals := h.refresher.LatestSignals()
	if signals == nil {
		signals = []domain.Signal{}
	}
	h.writeJSON(w, http.StatusOK, signals)
}

// HandleScan runs an on-demand scan with caller-supplied thresholds.
// Omitted fields fall back to the server defaults.
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	params := h.scanParams
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid scan parameters: "+err.Error())
			return
		}
	}
	if err := h.validate.Struct(params); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	snap, ok := h.snapshots.Current()
	if !ok {
		h.writeError(w, http.StatusServiceUnavailable, "no market snapshot yet")
		return
	}

	averages, err := h.history.AveragesAll()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	signals := h.scanner.Scan(snap.Bonds, averages, params, time.Now())
	h.writeJSON(w, http.StatusOK, signals)
}

type ytmRequest struct {
	Symbol string  `json:"symbol" validate:"required"`
	Price  float64 `json:"price" validate:"gt=0"`
}

// HandleCustomYTM solves the yield for a user-supplied price against a
// bond in the current snapshot.
func (h *Handler) HandleCustomYTM(w http.ResponseWriter, r *http.Request) {
	var req ytmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	snap, ok := h.snapshots.Current()
	if !ok {
		h.writeError(w, http.StatusServiceUnavailable, "no market snapshot yet")
		return
	}

	symbol := reference.CanonicalSymbol(req.Symbol)
	for _, b := range snap.Bonds {
		if b.Symbol != symbol {
			continue
		}
		ytm := h.pricer.YTMForPrice(b, req.Price)
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"symbol": symbol,
			"price":  req.Price,
			"ytm":    ytm, // null when no plausible yield exists
		})
		return
	}

	h.writeError(w, http.StatusNotFound, "symbol not in current snapshot: "+symbol)
}

// HandleGetHistory returns the retained daily observations and their
// averages for one symbol.
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := reference.CanonicalSymbol(chi.URLParam(r, "symbol"))

	points, err := h.history.Points(symbol)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	averages, err := h.history.Averages(symbol)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if points == nil {
		points = []domain.YieldHistoryPoint{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":   symbol,
		"points":   points,
		"averages": averages,
	})
}

// HandleStream upgrades to a websocket and pushes the current snapshot
// followed by every published update until the client disconnects.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ctx := r.Context()
	updates, cancel := h.snapshots.Subscribe()
	defer cancel()

	if snap, ok := h.snapshots.Current(); ok {
		if err := h.writeSnapshot(ctx, conn, snap); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case snap := <-updates:
			if err := h.writeSnapshot(ctx, conn, snap); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeSnapshot(ctx context.Context, conn *websocket.Conn, snap domain.Snapshot) error {
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := wsjson.Write(writeCtx, conn, snap); err != nil {
		h.log.Debug().Err(err).Msg("Websocket write failed, dropping client")
		return err
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
