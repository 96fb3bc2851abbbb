package outbound

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/domain"
)

// Handler exposes the outbound builder over HTTP.
type Handler struct {
	builder *Builder
	log     zerolog.Logger
}

// NewHandler creates the outbound offers handler.
func NewHandler(builder *Builder, log zerolog.Logger) *Handler {
	return &Handler{
		builder: builder,
		log:     log.With().Str("handler", "outbound").Logger(),
	}
}

// RegisterRoutes mounts the outbound offer endpoints on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/offers/sell", h.HandleSendSellOffer)
}

type sellOfferRequest struct {
	BuyerExternalID string `json:"buyer_external_id"`
	AssetID         string `json:"asset_id"`
}

// HandleSendSellOffer handles POST /api/offers/sell
func (h *Handler) HandleSendSellOffer(w http.ResponseWriter, r *http.Request) {
	var req sellOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.BuyerExternalID == "" || req.AssetID == "" {
		http.Error(w, "buyer_external_id and asset_id are required", http.StatusBadRequest)
		return
	}

	tx, err := h.builder.BuildSellOffer(r.Context(), req.BuyerExternalID, req.AssetID)
	if err != nil {
		switch {
		case domain.IsValidation(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case domain.IsNotFound(err):
			http.Error(w, err.Error(), http.StatusNotFound)
		case domain.IsConflict(err):
			http.Error(w, err.Error(), http.StatusConflict)
		case domain.IsDependencyUnavailable(err):
			http.Error(w, err.Error(), http.StatusBadGateway)
		default:
			h.log.Error().Err(err).Str("asset_id", req.AssetID).Msg("Failed to send sell offer")
			http.Error(w, "Failed to send sell offer", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": tx}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
