package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skinflow/tradebot/internal/domain"
	"github.com/skinflow/tradebot/internal/modules/ledger"
	apptesting "github.com/skinflow/tradebot/internal/testing"
)

func setupHandler(t *testing.T) (*Handler, *ledger.Store, func()) {
	t.Helper()
	db, cleanup := apptesting.NewTestDB(t, "ledger")
	store := ledger.NewStore(db.Conn(), zerolog.Nop())

	res, err := db.Exec(
		`INSERT INTO users (external_id, username, balance, is_active) VALUES (?, ?, ?, ?)`,
		"76561198000000001", "user-1", 0, 1,
	)
	require.NoError(t, err)
	userID, err := res.LastInsertId()
	require.NoError(t, err)

	seedTransactions(t, store, userID)

	return NewHandler(store, zerolog.Nop()), store, cleanup
}

func seedTransactions(t *testing.T, store *ledger.Store, userID int64) {
	t.Helper()
	for i := 0; i < 3; i++ {
		tx := &domain.Transaction{
			ID:           fmt.Sprintf("txn-%d", i),
			TradeOfferID: fmt.Sprintf("offer-%d", i),
			UserID:       userID,
			Kind:         domain.KindBuy,
			ItemName:     "AK-47 | Redline (Field-Tested)",
			ItemAssetID:  fmt.Sprintf("asset-%d", i),
			Price:        100,
			Commission:   2.91,
			FinalAmount:  94.09,
		}
		require.NoError(t, store.InsertPendingTransaction(context.Background(), tx))
	}
}

func newRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return r
}

func TestHandleGetTransactions(t *testing.T) {
	h, _, cleanup := setupHandler(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/transactions", nil)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Transactions []domain.Transaction `json:"transactions"`
			Count        int                  `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Data.Count)
	assert.Len(t, resp.Data.Transactions, 3)
}

func TestHandleGetTransactionsLimit(t *testing.T) {
	h, _, cleanup := setupHandler(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/transactions?limit=1", nil)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Count)
}

func TestHandleGetTransactionByID(t *testing.T) {
	h, _, cleanup := setupHandler(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/transactions/txn-1", nil)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data domain.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "txn-1", resp.Data.ID)
	assert.Equal(t, "offer-1", resp.Data.TradeOfferID)
}

func TestHandleGetTransactionByIDNotFound(t *testing.T) {
	h, _, cleanup := setupHandler(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/transactions/missing", nil)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetTransactionStats(t *testing.T) {
	h, _, cleanup := setupHandler(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/transactions/stats", nil)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Total    int            `json:"total"`
			ByStatus map[string]int `json:"by_status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, 3, resp.Data.ByStatus["pending"])
}

func TestHandleGetInventoryEmpty(t *testing.T) {
	h, _, cleanup := setupHandler(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/inventory", nil)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Count      int     `json:"count"`
			TotalValue float64 `json:"total_value"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Data.Count)
	assert.Zero(t, resp.Data.TotalValue)
}
