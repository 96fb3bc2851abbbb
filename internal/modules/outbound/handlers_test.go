package outbound

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlerRouter(env *testEnv) *chi.Mux {
	r := chi.NewRouter()
	NewHandler(env.builder, zerolog.Nop()).RegisterRoutes(r)
	return r
}

func postSellOffer(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/offers/sell", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleSendSellOffer(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "76561198000000001", true)
	env.seedListing(t, "asset-500", 25.00)
	env.transport.SetNextSendID("offer-sell-1")
	router := newHandlerRouter(env)

	rec := postSellOffer(t, router, `{"buyer_external_id":"76561198000000001","asset_id":"asset-500"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "offer-sell-1")
	assert.Len(t, env.transport.Sent(), 1)
}

func TestHandleSendSellOfferMissingFields(t *testing.T) {
	env := newTestEnv(t)
	router := newHandlerRouter(env)

	rec := postSellOffer(t, router, `{"buyer_external_id":"76561198000000001"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.transport.Sent())
}

func TestHandleSendSellOfferUnknownBuyer(t *testing.T) {
	env := newTestEnv(t)
	env.seedListing(t, "asset-501", 10.00)
	router := newHandlerRouter(env)

	rec := postSellOffer(t, router, `{"buyer_external_id":"76561198999999999","asset_id":"asset-501"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, env.transport.Sent())
}

func TestHandleSendSellOfferInactiveBuyer(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "76561198000000002", false)
	env.seedListing(t, "asset-502", 10.00)
	router := newHandlerRouter(env)

	rec := postSellOffer(t, router, `{"buyer_external_id":"76561198000000002","asset_id":"asset-502"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.transport.Sent())
}
