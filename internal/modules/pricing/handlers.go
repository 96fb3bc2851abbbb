package pricing

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler serves price lookup and trend endpoints.
type Handler struct {
	oracle  *Oracle
	history *HistoryRepository
	log     zerolog.Logger
}

// NewHandler creates a new pricing handler.
func NewHandler(oracle *Oracle, history *HistoryRepository, log zerolog.Logger) *Handler {
	return &Handler{
		oracle:  oracle,
		history: history,
		log:     log.With().Str("handler", "pricing").Logger(),
	}
}

// RegisterRoutes mounts the pricing endpoints on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/prices", h.HandleGetPrice)
	r.Get("/api/prices/trend", h.HandleGetTrend)
}

// HandleGetPrice handles GET /api/prices?item=
func (h *Handler) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	if item == "" {
		http.Error(w, "item parameter is required", http.StatusBadRequest)
		return
	}

	price, found, err := h.oracle.GetUnitPrice(r.Context(), item)
	if err != nil {
		h.log.Error().Err(err).Str("item", item).Msg("Failed to get price")
		http.Error(w, "Failed to get price", http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"item":  item,
			"found": found,
			"price": price,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetTrend handles GET /api/prices/trend?item=&period=
func (h *Handler) HandleGetTrend(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	if item == "" {
		http.Error(w, "item parameter is required", http.StatusBadRequest)
		return
	}
	period, _ := strconv.Atoi(r.URL.Query().Get("period"))

	series, err := h.history.Recent(r.Context(), item, 100)
	if err != nil {
		h.log.Error().Err(err).Str("item", item).Msg("Failed to load price history")
		http.Error(w, "Failed to load price history", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"item":  item,
			"trend": ComputeTrend(series, period),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
