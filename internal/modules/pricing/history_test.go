package pricing

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func newHistoryRepo(t *testing.T) (*HistoryRepository, *sql.DB) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE price_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			item_key TEXT NOT NULL,
			price REAL NOT NULL,
			observed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	require.NoError(t, err)

	return NewHistoryRepository(db, zerolog.Nop()), db
}

func TestHistoryRecordAndRecent(t *testing.T) {
	repo, _ := newHistoryRepo(t)
	ctx := context.Background()

	for _, price := range []float64{10, 11, 12} {
		require.NoError(t, repo.Record(ctx, "item", price))
	}
	require.NoError(t, repo.Record(ctx, "other", 99))

	prices, err := repo.Recent(ctx, "item", 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12}, prices)
}

func TestHistoryRecentLimitKeepsNewest(t *testing.T) {
	repo, _ := newHistoryRepo(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, repo.Record(ctx, "item", float64(i)))
	}

	prices, err := repo.Recent(ctx, "item", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4, 5}, prices)
}

func TestHistoryPurgeOlderThan(t *testing.T) {
	repo, db := newHistoryRepo(t)
	ctx := context.Background()

	_, err := db.Exec("INSERT INTO price_history (item_key, price, observed_at) VALUES (?, ?, ?)",
		"item", 10.0, time.Now().UTC().Add(-48*time.Hour).Format("2006-01-02 15:04:05"))
	require.NoError(t, err)
	require.NoError(t, repo.Record(ctx, "item", 11.0))

	deleted, err := repo.PurgeOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	prices, err := repo.Recent(ctx, "item", 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{11.0}, prices)
}

func TestIsOutlier(t *testing.T) {
	stable := []float64{19.0, 19.2, 19.4, 19.1, 19.3, 19.5, 19.2, 19.4, 19.3, 19.1}

	assert.False(t, IsOutlier(stable, 19.3))
	assert.True(t, IsOutlier(stable, 50.0))
	assert.True(t, IsOutlier(stable, 0.10))

	// Too few samples: never an outlier.
	assert.False(t, IsOutlier([]float64{19.0, 19.2}, 500.0))
}

func TestIsOutlierFlatSeries(t *testing.T) {
	flat := []float64{10, 10, 10, 10, 10, 10, 10, 10}

	assert.False(t, IsOutlier(flat, 10))
	assert.True(t, IsOutlier(flat, 10.5))
}

func TestComputeTrend(t *testing.T) {
	rising := make([]float64, 20)
	falling := make([]float64, 20)
	flat := make([]float64, 20)
	for i := range rising {
		rising[i] = 10 + float64(i)
		falling[i] = 30 - float64(i)
		flat[i] = 15
	}

	assert.Equal(t, "up", ComputeTrend(rising, 5).Direction)
	assert.Equal(t, "down", ComputeTrend(falling, 5).Direction)
	assert.Equal(t, "flat", ComputeTrend(flat, 5).Direction)
}

func TestComputeTrendShortSeries(t *testing.T) {
	trend := ComputeTrend([]float64{10, 11}, 5)
	assert.Equal(t, "flat", trend.Direction)
	assert.Equal(t, 2, trend.Samples)
	assert.InDelta(t, 10.5, trend.SMA, 1e-9)

	empty := ComputeTrend(nil, 5)
	assert.Equal(t, "flat", empty.Direction)
	assert.Zero(t, empty.Samples)
}
