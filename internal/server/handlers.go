// Package server provides the HTTP server and routing for the trade engine.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/skinflow/tradebot/internal/database"
)

// handleHealth handles health check requests. It runs a quick integrity
// check on both databases and reports degraded with a 503 if either fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := map[string]string{}

	for _, db := range []*database.DB{s.ledgerDB, s.cacheDB} {
		if db == nil {
			continue
		}
		if err := db.QuickCheck(ctx); err != nil {
			s.log.Error().Err(err).Str("database", db.Name()).Msg("Health check failed")
			checks[db.Name()] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[db.Name()] = "ok"
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":  status,
		"service": "tradebot",
		"checks":  checks,
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
