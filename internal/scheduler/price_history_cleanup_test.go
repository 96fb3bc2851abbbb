package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skinflow/tradebot/internal/modules/pricing"
	apptesting "github.com/skinflow/tradebot/internal/testing"
)

func TestPriceHistoryCleanupRemovesOldRows(t *testing.T) {
	db, cleanup := apptesting.NewTestDB(t, "cache")
	defer cleanup()

	history := pricing.NewHistoryRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	// One row inside the retention window, one far outside it.
	require.NoError(t, history.Record(ctx, "AK-47 | Redline (Field-Tested)", 19.40))
	_, err := db.Conn().ExecContext(ctx,
		"INSERT INTO price_history (item_key, price, observed_at) VALUES (?, ?, ?)",
		"AK-47 | Redline (Field-Tested)", 18.90,
		time.Now().Add(-60*24*time.Hour).UTC().Format("2006-01-02 15:04:05"))
	require.NoError(t, err)

	cache := pricing.NewBoundedCache(8, time.Millisecond)
	cache.Set("AK-47 | Redline (Field-Tested)", 19.40)
	time.Sleep(5 * time.Millisecond)

	job := NewPriceHistoryCleanupJob(history, cache)
	job.SetLogger(zerolog.Nop())
	require.NoError(t, job.Run())

	samples, err := history.Recent(ctx, "AK-47 | Redline (Field-Tested)", 10)
	require.NoError(t, err)
	assert.Len(t, samples, 1)
	assert.Equal(t, 0, cache.Len())
}

func TestPriceHistoryCleanupWithoutMemCache(t *testing.T) {
	db, cleanup := apptesting.NewTestDB(t, "cache")
	defer cleanup()

	history := pricing.NewHistoryRepository(db.Conn(), zerolog.Nop())
	job := NewPriceHistoryCleanupJob(history, nil)
	job.SetLogger(zerolog.Nop())

	assert.NoError(t, job.Run())
	assert.Equal(t, "price_history_cleanup", job.Name())
}
