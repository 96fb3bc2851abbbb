package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/modules/pricing"
)

const priceHistoryRetention = 30 * 24 * time.Hour

// PriceHistoryCleanupJob prunes old price history rows and expired
// entries from the in-memory price cache.
type PriceHistoryCleanupJob struct {
	JobBase
	log      zerolog.Logger
	history  *pricing.HistoryRepository
	memCache *pricing.BoundedCache
}

// NewPriceHistoryCleanupJob creates the cleanup job. memCache may be nil.
func NewPriceHistoryCleanupJob(history *pricing.HistoryRepository, memCache *pricing.BoundedCache) *PriceHistoryCleanupJob {
	return &PriceHistoryCleanupJob{
		log:      zerolog.Nop(),
		history:  history,
		memCache: memCache,
	}
}

// SetLogger sets the logger for the job
func (j *PriceHistoryCleanupJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *PriceHistoryCleanupJob) Name() string {
	return "price_history_cleanup"
}

// Run executes the cleanup job
func (j *PriceHistoryCleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := j.history.PurgeOlderThan(ctx, time.Now().Add(-priceHistoryRetention))
	if err != nil {
		return err
	}

	purged := 0
	if j.memCache != nil {
		purged = j.memCache.PurgeExpired()
	}

	j.log.Info().
		Int64("history_rows", removed).
		Int("cache_entries", purged).
		Msg("Price history cleanup completed")
	return nil
}
