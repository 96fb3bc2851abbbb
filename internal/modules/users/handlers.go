package users

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/domain"
)

// Handler serves the user administration endpoints.
type Handler struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandler creates a new users handler.
func NewHandler(repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "users").Logger(),
	}
}

// RegisterRoutes mounts the user endpoints on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/users", h.HandleList)
	r.Post("/api/users", h.HandleCreate)
	r.Get("/api/users/{externalID}", h.HandleGet)
	r.Post("/api/users/{id}/active", h.HandleSetActive)
	r.Post("/api/users/{id}/balance", h.HandleAdjustBalance)
}

// HandleList handles GET /api/users
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list users")
		http.Error(w, "Failed to list users", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"users": users,
			"count": len(users),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleCreate handles POST /api/users
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExternalID string  `json:"external_id"`
		Username   string  `json:"username"`
		Balance    float64 `json:"balance"`
		TradeURL   string  `json:"trade_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user := &domain.User{
		ExternalID: req.ExternalID,
		Username:   req.Username,
		Balance:    req.Balance,
		IsActive:   true,
		TradeURL:   req.TradeURL,
	}
	if err := h.repo.Create(r.Context(), user); err != nil {
		switch {
		case domain.IsValidation(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case domain.IsConflict(err):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.log.Error().Err(err).Msg("Failed to create user")
			http.Error(w, "Failed to create user", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": user,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGet handles GET /api/users/{externalID}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")

	user, err := h.repo.GetByExternalID(r.Context(), externalID)
	if err != nil {
		if domain.IsNotFound(err) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("external_id", externalID).Msg("Failed to get user")
		http.Error(w, "Failed to get user", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": user,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleSetActive handles POST /api/users/{id}/active
func (h *Handler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.repo.SetActive(r.Context(), id, req.Active); err != nil {
		if domain.IsNotFound(err) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Int64("user_id", id).Msg("Failed to update user")
		http.Error(w, "Failed to update user", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"id":     id,
			"active": req.Active,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleAdjustBalance handles POST /api/users/{id}/balance
func (h *Handler) HandleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	var req struct {
		Delta float64 `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.repo.AdjustBalance(r.Context(), id, req.Delta); err != nil {
		switch {
		case domain.IsNotFound(err):
			http.Error(w, "User not found", http.StatusNotFound)
		case domain.IsValidation(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.log.Error().Err(err).Int64("user_id", id).Msg("Failed to adjust balance")
			http.Error(w, "Failed to adjust balance", http.StatusInternalServerError)
		}
		return
	}

	user, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", id).Msg("Failed to reload user")
		http.Error(w, "Failed to reload user", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": user,
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
