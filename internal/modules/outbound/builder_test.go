package outbound

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skinflow/tradebot/internal/database"
	"github.com/skinflow/tradebot/internal/domain"
	"github.com/skinflow/tradebot/internal/modules/catalog"
	"github.com/skinflow/tradebot/internal/modules/ledger"
	apptesting "github.com/skinflow/tradebot/internal/testing"
)

const testCommissionRate = 0.03

type testEnv struct {
	builder   *Builder
	store     *ledger.Store
	catalog   *catalog.Repository
	transport *apptesting.MockTransport
	db        *database.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, cleanup := apptesting.NewTestDB(t, "ledger")
	t.Cleanup(cleanup)

	store := ledger.NewStore(db.Conn(), zerolog.Nop())
	catalogRepo := catalog.NewRepository(db.Conn(), zerolog.Nop())
	transport := apptesting.NewMockTransport()

	return &testEnv{
		builder:   NewBuilder(store, catalogRepo, transport, nil, testCommissionRate, zerolog.Nop()),
		store:     store,
		catalog:   catalogRepo,
		transport: transport,
		db:        db,
	}
}

func (e *testEnv) seedUser(t *testing.T, externalID string, active bool) int64 {
	t.Helper()

	activeInt := 0
	if active {
		activeInt = 1
	}
	res, err := e.db.Exec(
		`INSERT INTO users (external_id, username, balance, is_active) VALUES (?, ?, ?, ?)`,
		externalID, "user-"+externalID, 100.0, activeInt,
	)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func (e *testEnv) seedListing(t *testing.T, assetID string, price float64) {
	t.Helper()

	require.NoError(t, e.catalog.Create(context.Background(), &domain.CatalogItem{
		AssetID:        assetID,
		MarketHashName: "AWP | Asiimov (Field-Tested)",
		Game:           "cs2",
		Price:          price,
	}))
}

func TestBuildSellOfferHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "76561198000000001", true)
	env.seedListing(t, "asset-200", 50.00)
	env.transport.SetNextSendID("offer-77")

	tx, err := env.builder.BuildSellOffer(ctx, "76561198000000001", "asset-200")
	require.NoError(t, err)

	assert.Equal(t, "offer-77", tx.TradeOfferID)
	assert.Equal(t, domain.KindSell, tx.Kind)
	assert.Equal(t, domain.StatusPending, tx.Status)
	assert.InDelta(t, 50.00, tx.Price, 1e-9)
	assert.InDelta(t, 1.50, tx.Commission, 1e-9)
	assert.InDelta(t, 48.50, tx.FinalAmount, 1e-9)

	// The row is findable under the transport-assigned offer id.
	stored, err := env.store.FindTransactionByOfferID(ctx, "offer-77")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, stored.ID)

	// The listing is reserved while the offer is in flight.
	listing, err := env.catalog.GetByAssetID(ctx, "asset-200")
	require.NoError(t, err)
	assert.False(t, listing.IsAvailable)

	// The sent offer gives exactly our item.
	sent := env.transport.Sent()
	require.Len(t, sent, 1)
	require.Len(t, sent[0].ItemsGiven, 1)
	assert.Equal(t, "asset-200", sent[0].ItemsGiven[0].AssetID)
	assert.Empty(t, sent[0].ItemsReceived)
}

func TestBuildSellOfferUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	env.seedListing(t, "asset-200", 50.00)

	_, err := env.builder.BuildSellOffer(context.Background(), "76561198099999999", "asset-200")
	assert.True(t, domain.IsNotFound(err))
	assert.Empty(t, env.transport.Sent())
}

func TestBuildSellOfferInactiveUser(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "76561198000000002", false)
	env.seedListing(t, "asset-200", 50.00)

	_, err := env.builder.BuildSellOffer(context.Background(), "76561198000000002", "asset-200")
	assert.True(t, domain.IsValidation(err))
	assert.Empty(t, env.transport.Sent())
}

func TestBuildSellOfferUnknownListing(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "76561198000000001", true)

	_, err := env.builder.BuildSellOffer(context.Background(), "76561198000000001", "asset-404")
	assert.True(t, domain.IsNotFound(err))
}

func TestBuildSellOfferReservedListingConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "76561198000000001", true)
	env.seedListing(t, "asset-200", 50.00)

	_, err := env.builder.BuildSellOffer(ctx, "76561198000000001", "asset-200")
	require.NoError(t, err)

	// The same asset cannot back two in-flight offers.
	_, err = env.builder.BuildSellOffer(ctx, "76561198000000001", "asset-200")
	assert.True(t, domain.IsConflict(err))
	assert.Len(t, env.transport.Sent(), 1)
}

func TestBuildSellOfferSendFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "76561198000000001", true)
	env.seedListing(t, "asset-200", 50.00)
	env.transport.SetSendError(errors.New("session expired"))

	_, err := env.builder.BuildSellOffer(ctx, "76561198000000001", "asset-200")
	require.Error(t, err)

	// The pre-registered transaction is failed, not left pending.
	stored, err := env.store.FindTransactionByID(ctx, findOnlyTransactionID(t, env))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)

	// The listing is back on sale.
	listing, err := env.catalog.GetByAssetID(ctx, "asset-200")
	require.NoError(t, err)
	assert.True(t, listing.IsAvailable)
}

func TestBuildSellOfferRetryAfterSendFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "76561198000000001", true)
	env.seedListing(t, "asset-200", 50.00)

	env.transport.SetSendError(errors.New("transient"))
	_, err := env.builder.BuildSellOffer(ctx, "76561198000000001", "asset-200")
	require.Error(t, err)

	env.transport.SetSendError(nil)
	env.transport.SetNextSendID("offer-78")
	tx, err := env.builder.BuildSellOffer(ctx, "76561198000000001", "asset-200")
	require.NoError(t, err)
	assert.Equal(t, "offer-78", tx.TradeOfferID)
}

func TestBuildBuyOfferHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "76561198000000001", true)
	env.transport.SetNextSendID("offer-80")

	item := domain.OfferItem{
		AssetID:        "asset-300",
		MarketHashName: "AK-47 | Redline (Field-Tested)",
		AppID:          730,
		ContextID:      "2",
	}
	tx, err := env.builder.BuildBuyOffer(ctx, "76561198000000001", item, 20.00)
	require.NoError(t, err)

	assert.Equal(t, domain.KindBuy, tx.Kind)
	assert.InDelta(t, 19.40, tx.Price, 1e-9)
	assert.InDelta(t, 0.582, tx.Commission, 1e-9)
	assert.InDelta(t, 18.818, tx.FinalAmount, 1e-9)

	stored, err := env.store.FindTransactionByOfferID(ctx, "offer-80")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)

	sent := env.transport.Sent()
	require.Len(t, sent, 1)
	require.Len(t, sent[0].ItemsReceived, 1)
	assert.Empty(t, sent[0].ItemsGiven)
}

func TestBuildBuyOfferValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "76561198000000001", true)

	item := domain.OfferItem{AssetID: "a", MarketHashName: "item"}

	_, err := env.builder.BuildBuyOffer(ctx, "76561198000000001", item, 0)
	assert.True(t, domain.IsValidation(err))

	_, err = env.builder.BuildBuyOffer(ctx, "76561198000000001", domain.OfferItem{AssetID: "a"}, 20.00)
	assert.True(t, domain.IsValidation(err))
}

func findOnlyTransactionID(t *testing.T, env *testEnv) string {
	t.Helper()

	var id string
	err := env.db.Conn().QueryRow("SELECT id FROM transactions").Scan(&id)
	require.NoError(t, err)
	return id
}
