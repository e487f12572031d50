package reference

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler exposes the reference universe for symbol pickers.
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new reference handler.
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "reference").Logger(),
	}
}

// RegisterRoutes registers all reference routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/reference", h.HandleList)
	r.Get("/reference/{symbol}", h.HandleGet)
}

// HandleList returns every known reference record, sorted by symbol.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	refs := h.service.Get()

	symbols := make([]string, 0, len(refs))
	for symbol := range refs {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	out := make([]interface{}, 0, len(refs))
	for _, symbol := range symbols {
		out = append(out, refs[symbol])
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(out),
		"loaded_at": h.service.LoadedAt(),
		"bonds":     out,
	})
}

// HandleGet returns one reference record by symbol (any accepted notation).
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	symbol := CanonicalSymbol(chi.URLParam(r, "symbol"))

	ref, ok := h.service.Get()[symbol]
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown symbol: " + symbol})
		return
	}
	h.writeJSON(w, http.StatusOK, ref)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
