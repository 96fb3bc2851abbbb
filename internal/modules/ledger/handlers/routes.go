package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Get("/transactions", h.HandleGetTransactions)
		r.Get("/transactions/stats", h.HandleGetTransactionStats)
		r.Get("/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			h.HandleGetTransactionByID(w, r, id)
		})
		r.Get("/inventory", h.HandleGetInventory)
	})
}
