package catalog

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/domain"
)

// Handler serves the catalog browse and admin endpoints.
type Handler struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandler creates a new catalog handler.
func NewHandler(repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "catalog").Logger(),
	}
}

// RegisterRoutes mounts the catalog endpoints on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/catalog", h.HandleList)
	r.Get("/api/catalog/search", h.HandleSearch)
	r.Post("/api/catalog", h.HandleCreate)
	r.Post("/api/catalog/{assetID}/price", h.HandleSetPrice)
}

// HandleList handles GET /api/catalog
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.repo.ListAvailable(r.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list catalog")
		http.Error(w, "Failed to list catalog", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"items": items,
			"count": len(items),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleSearch handles GET /api/catalog/search?q=
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "q parameter is required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := h.repo.Search(r.Context(), query, limit)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("Failed to search catalog")
		http.Error(w, "Failed to search catalog", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"query": query,
			"items": items,
			"count": len(items),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleCreate handles POST /api/catalog
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var item domain.CatalogItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.repo.Create(r.Context(), &item); err != nil {
		switch {
		case domain.IsValidation(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case domain.IsConflict(err):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.log.Error().Err(err).Msg("Failed to create listing")
			http.Error(w, "Failed to create listing", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": item,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleSetPrice handles POST /api/catalog/{assetID}/price
func (h *Handler) HandleSetPrice(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")

	var req struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.repo.SetPrice(r.Context(), assetID, req.Price); err != nil {
		switch {
		case domain.IsNotFound(err):
			http.Error(w, "Listing not found", http.StatusNotFound)
		case domain.IsValidation(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.log.Error().Err(err).Str("asset_id", assetID).Msg("Failed to set price")
			http.Error(w, "Failed to set price", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"asset_id": assetID,
			"price":    req.Price,
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
