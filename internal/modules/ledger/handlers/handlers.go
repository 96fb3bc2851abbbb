// Package handlers provides the HTTP surface for inspecting the ledger:
// recent transactions, status counts and the bot inventory.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/domain"
	"github.com/skinflow/tradebot/internal/modules/ledger"
)

// Handler handles ledger HTTP requests
type Handler struct {
	store *ledger.Store
	log   zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(store *ledger.Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetTransactions handles GET /api/ledger/transactions
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 100 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	transactions, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		http.Error(w, "Failed to query transactions", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"transactions": transactions,
			"count":        len(transactions),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetTransactionByID handles GET /api/ledger/transactions/{id}
func (h *Handler) HandleGetTransactionByID(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		http.Error(w, "Invalid transaction ID", http.StatusBadRequest)
		return
	}

	tx, err := h.store.FindTransactionByID(r.Context(), id)
	if err != nil {
		if domain.IsNotFound(err) {
			http.Error(w, "Transaction not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to query transaction")
		http.Error(w, "Failed to query transaction", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": tx,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetTransactionStats handles GET /api/ledger/transactions/stats
func (h *Handler) HandleGetTransactionStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.CountByStatus(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transaction stats")
		http.Error(w, "Failed to query transaction stats", http.StatusInternalServerError)
		return
	}

	total := 0
	byStatus := make(map[string]int, len(counts))
	for status, count := range counts {
		byStatus[string(status)] = count
		total += count
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"total":     total,
			"by_status": byStatus,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetInventory handles GET /api/ledger/inventory
func (h *Handler) HandleGetInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListInventory(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query inventory")
		http.Error(w, "Failed to query inventory", http.StatusInternalServerError)
		return
	}

	totalValue := 0.0
	for _, item := range items {
		totalValue += item.Price
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"items":       items,
			"count":       len(items),
			"total_value": totalValue,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
