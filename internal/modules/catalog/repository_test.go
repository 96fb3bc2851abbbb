package catalog

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/skinflow/tradebot/internal/domain"
)

// setupTestDB creates an in-memory database with the catalog schema.
func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE catalog_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			asset_id TEXT NOT NULL UNIQUE,
			market_hash_name TEXT NOT NULL,
			game TEXT NOT NULL DEFAULT 'cs2' CHECK (game IN ('cs2', 'dota2')),
			exterior TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0 CHECK (price >= 0),
			is_listed INTEGER NOT NULL DEFAULT 0,
			is_available INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	require.NoError(t, err)

	return db
}

func newTestRepo(t *testing.T) *Repository {
	return NewRepository(setupTestDB(t), zerolog.Nop())
}

func newListing(assetID, name string, price float64) *domain.CatalogItem {
	return &domain.CatalogItem{
		AssetID:        assetID,
		MarketHashName: name,
		Game:           "cs2",
		Exterior:       "Field-Tested",
		Price:          price,
	}
}

func TestRepositoryCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	item := newListing("asset-200", "AWP | Asiimov (Field-Tested)", 50.00)
	require.NoError(t, repo.Create(ctx, item))
	assert.NotZero(t, item.ID)
	assert.True(t, item.IsListed)
	assert.True(t, item.IsAvailable)

	got, err := repo.GetByAssetID(ctx, "asset-200")
	require.NoError(t, err)
	assert.Equal(t, "AWP | Asiimov (Field-Tested)", got.MarketHashName)
	assert.InDelta(t, 50.00, got.Price, 1e-9)
	assert.True(t, got.IsListed)
	assert.True(t, got.IsAvailable)
}

func TestRepositoryCreateValidation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	assert.True(t, domain.IsValidation(repo.Create(ctx, newListing("", "item", 1))))
	assert.True(t, domain.IsValidation(repo.Create(ctx, newListing("a", "", 1))))
	assert.True(t, domain.IsValidation(repo.Create(ctx, newListing("a", "item", -1))))
}

func TestRepositoryCreateDuplicateConflicts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newListing("asset-200", "AWP | Asiimov (Field-Tested)", 50.00)))
	err := repo.Create(ctx, newListing("asset-200", "AWP | Asiimov (Field-Tested)", 45.00))
	assert.True(t, domain.IsConflict(err))
}

func TestRepositoryReserveListing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newListing("asset-200", "AWP | Asiimov (Field-Tested)", 50.00)))

	require.NoError(t, repo.ReserveListing(ctx, "asset-200"))

	got, err := repo.GetByAssetID(ctx, "asset-200")
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)
	assert.True(t, got.IsListed)

	// A second reservation loses.
	err = repo.ReserveListing(ctx, "asset-200")
	assert.True(t, domain.IsConflict(err))
}

func TestRepositoryReserveMissingListing(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.ReserveListing(context.Background(), "asset-404")
	assert.True(t, domain.IsNotFound(err))
}

func TestRepositoryReopenListing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newListing("asset-200", "AWP | Asiimov (Field-Tested)", 50.00)))
	require.NoError(t, repo.ReserveListing(ctx, "asset-200"))

	require.NoError(t, repo.ReopenListing(ctx, "asset-200"))

	got, err := repo.GetByAssetID(ctx, "asset-200")
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)
	assert.True(t, got.IsListed)

	// Reservable again after reopening.
	require.NoError(t, repo.ReserveListing(ctx, "asset-200"))
}

func TestRepositoryReopenMissingListing(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.ReopenListing(context.Background(), "asset-404")
	assert.True(t, domain.IsNotFound(err))
}

func TestRepositoryListAvailableExcludesReserved(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newListing("asset-1", "AK-47 | Redline (Field-Tested)", 19.40)))
	require.NoError(t, repo.Create(ctx, newListing("asset-2", "AWP | Asiimov (Field-Tested)", 50.00)))
	require.NoError(t, repo.ReserveListing(ctx, "asset-1"))

	items, err := repo.ListAvailable(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "asset-2", items[0].AssetID)
}

func TestRepositorySearch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newListing("asset-1", "AK-47 | Redline (Field-Tested)", 19.40)))
	require.NoError(t, repo.Create(ctx, newListing("asset-2", "AK-47 | Asiimov (Field-Tested)", 60.00)))
	require.NoError(t, repo.Create(ctx, newListing("asset-3", "AWP | Asiimov (Field-Tested)", 50.00)))

	items, err := repo.Search(ctx, "AK-47", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	// Cheapest first.
	assert.Equal(t, "asset-1", items[0].AssetID)
}

func TestRepositorySetPrice(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newListing("asset-200", "AWP | Asiimov (Field-Tested)", 50.00)))

	require.NoError(t, repo.SetPrice(ctx, "asset-200", 47.50))
	got, err := repo.GetByAssetID(ctx, "asset-200")
	require.NoError(t, err)
	assert.InDelta(t, 47.50, got.Price, 1e-9)

	assert.True(t, domain.IsValidation(repo.SetPrice(ctx, "asset-200", -1)))
	assert.True(t, domain.IsNotFound(repo.SetPrice(ctx, "asset-404", 1)))
}
