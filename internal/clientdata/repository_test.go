package clientdata

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSchema creates all tables needed for testing
const testSchema = `
CREATE TABLE price_cache (item_key TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);

CREATE INDEX idx_price_cache_expires ON price_cache(expires_at);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

func TestNewRepository(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	assert.NotNil(t, repo)
}

func TestStore(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	data := map[string]interface{}{
		"price":    19.40,
		"currency": "USD",
	}

	err := repo.Store("price_cache", "AK-47 | Redline (Field-Tested)", data, TTLPrice)
	require.NoError(t, err)

	var storedData string
	var expiresAt int64
	err = db.QueryRow("SELECT data, expires_at FROM price_cache WHERE item_key = ?",
		"AK-47 | Redline (Field-Tested)").Scan(&storedData, &expiresAt)
	require.NoError(t, err)

	var parsed map[string]interface{}
	err = json.Unmarshal([]byte(storedData), &parsed)
	require.NoError(t, err)
	assert.InDelta(t, 19.40, parsed["price"], 1e-9)

	// Expiration roughly now + TTL.
	expected := time.Now().Add(TTLPrice).Unix()
	assert.InDelta(t, expected, expiresAt, 5)
}

func TestStoreUpsert(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	require.NoError(t, repo.Store("price_cache", "key", map[string]float64{"price": 1.00}, TTLPrice))
	require.NoError(t, repo.Store("price_cache", "key", map[string]float64{"price": 2.00}, TTLPrice))

	data, err := repo.GetIfFresh("price_cache", "key")
	require.NoError(t, err)
	require.NotNil(t, data)

	var parsed map[string]float64
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.InDelta(t, 2.00, parsed["price"], 1e-9)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM price_cache").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStoreInvalidTable(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	err := repo.Store("users; DROP TABLE users", "key", "data", time.Hour)
	assert.Error(t, err)
}

func TestGetIfFresh(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	// Missing key.
	data, err := repo.GetIfFresh("price_cache", "missing")
	require.NoError(t, err)
	assert.Nil(t, data)

	// Fresh entry.
	require.NoError(t, repo.Store("price_cache", "fresh", map[string]float64{"price": 5}, time.Hour))
	data, err = repo.GetIfFresh("price_cache", "fresh")
	require.NoError(t, err)
	assert.NotNil(t, data)

	// Expired entry is invisible to GetIfFresh.
	_, err = db.Exec("INSERT INTO price_cache (item_key, data, expires_at) VALUES (?, ?, ?)",
		"stale", `{"price": 3}`, time.Now().Add(-time.Minute).Unix())
	require.NoError(t, err)
	data, err = repo.GetIfFresh("price_cache", "stale")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestGetReturnsStaleData(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	_, err := db.Exec("INSERT INTO price_cache (item_key, data, expires_at) VALUES (?, ?, ?)",
		"stale", `{"price": 3}`, time.Now().Add(-time.Minute).Unix())
	require.NoError(t, err)

	data, err := repo.Get("price_cache", "stale")
	require.NoError(t, err)
	require.NotNil(t, data)

	var parsed map[string]float64
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.InDelta(t, 3, parsed["price"], 1e-9)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	require.NoError(t, repo.Store("price_cache", "key", "v", time.Hour))
	require.NoError(t, repo.Delete("price_cache", "key"))

	data, err := repo.Get("price_cache", "key")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestDeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	require.NoError(t, repo.Store("price_cache", "fresh", "v", time.Hour))
	_, err := db.Exec("INSERT INTO price_cache (item_key, data, expires_at) VALUES (?, ?, ?)",
		"stale-1", `"v"`, time.Now().Add(-time.Minute).Unix())
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO price_cache (item_key, data, expires_at) VALUES (?, ?, ?)",
		"stale-2", `"v"`, time.Now().Add(-time.Hour).Unix())
	require.NoError(t, err)

	deleted, err := repo.DeleteExpired("price_cache")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	data, err := repo.Get("price_cache", "fresh")
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestDeleteAllExpired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	_, err := db.Exec("INSERT INTO price_cache (item_key, data, expires_at) VALUES (?, ?, ?)",
		"stale", `"v"`, time.Now().Add(-time.Minute).Unix())
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO price_cache (item_key, data, expires_at) VALUES (?, ?, ?)",
		"stale-2", `"v"`, time.Now().Add(-time.Hour).Unix())
	require.NoError(t, err)

	results, err := repo.DeleteAllExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(2), results["price_cache"])
}
