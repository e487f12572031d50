package watchlist

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/compositedge/bondmonitor/internal/domain"
	"github.com/compositedge/bondmonitor/internal/modules/snapshots"
)

// Handler handles watchlist and alert HTTP requests.
type Handler struct {
	service   *Service
	snapshots *snapshots.Manager
	validate  *validator.Validate
	log       zerolog.Logger
}

// NewHandler creates a new watchlist handler.
func NewHandler(service *Service, snapshotMgr *snapshots.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		service:   service,
		snapshots: snapshotMgr,
		validate:  validator.New(),
		log:       log.With().Str("handler", "watchlist").Logger(),
	}
}

// RegisterRoutes registers all watchlist routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/watchlist", func(r chi.Router) {
		r.Get("/", h.HandleGetState)
		r.Get("/table", h.HandleGetTable)
		r.Post("/", h.HandleAdd)
		r.Post("/bulk", h.HandleAddBulk)
		r.Delete("/{symbol}", h.HandleRemove)
		r.Put("/{symbol}/alert", h.HandleSetAlert)
		r.Delete("/{symbol}/alert", h.HandleRemoveAlert)
	})
}

// HandleGetState returns the raw watchlist and alert configuration.
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.State())
}

// watchRow is one watchlist table row: the tracked symbol joined with its
// live pricing (when present in the current snapshot) and its alert.
type watchRow struct {
	Symbol string              `json:"symbol"`
	Quoted bool                `json:"quoted"`
	Bond   *domain.PricedBond  `json:"bond,omitempty"`
	Alert  *domain.AlertConfig `json:"alert,omitempty"`
}

// HandleGetTable returns the watchlist joined with the current snapshot,
// preserving the user's ordering. Symbols absent from the feed still get a
// row so the user sees what stopped trading.
func (h *Handler) HandleGetTable(w http.ResponseWriter, r *http.Request) {
	state := h.service.State()

	book := make(map[string]domain.PricedBond)
	if snap, ok := h.snapshots.Current(); ok {
		for _, b := range snap.Bonds {
			book[b.Symbol] = b
		}
	}

	rows := make([]watchRow, 0, len(state.Watchlist))
	for _, symbol := range state.Watchlist {
		row := watchRow{Symbol: symbol}
		if b, ok := book[symbol]; ok {
			row.Quoted = true
			row.Bond = &b
		}
		if alert, ok := state.Alerts[symbol]; ok {
			row.Alert = &alert
		}
		rows = append(rows, row)
	}

	h.writeJSON(w, http.StatusOK, rows)
}

type addRequest struct {
	Symbol string `json:"symbol" validate:"required"`
}

// HandleAdd adds one symbol to the watchlist.
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.service.Add(req.Symbol); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, h.service.State())
}

type bulkRequest struct {
	Text string `json:"text" validate:"required"`
}

// HandleAddBulk adds every symbol found in a pasted blob of text.
func (h *Handler) HandleAddBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	added, err := h.service.AddBulk(req.Text)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"added":     added,
		"watchlist": h.service.Watchlist(),
	})
}

// HandleRemove removes a symbol and its alert.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remove(chi.URLParam(r, "symbol")); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, h.service.State())
}

// HandleSetAlert creates or replaces the alert for a symbol.
func (h *Handler) HandleSetAlert(w http.ResponseWriter, r *http.Request) {
	var cfg domain.AlertConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid alert: "+err.Error())
		return
	}
	if err := h.validate.Struct(cfg); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.service.SetAlert(chi.URLParam(r, "symbol"), cfg); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, h.service.State())
}

// HandleRemoveAlert deletes the alert for a symbol.
func (h *Handler) HandleRemoveAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveAlert(chi.URLParam(r, "symbol")); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, h.service.State())
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
