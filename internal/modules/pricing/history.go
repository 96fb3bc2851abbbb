package pricing

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// minSamplesForStats is the minimum number of observations before the
// outlier guard and trend statistics say anything.
const minSamplesForStats = 8

// HistoryRepository stores raw price observations in the cache database.
// The history backs the outlier guard and the trend endpoint; losing it only
// costs statistics, never money.
type HistoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryRepository creates a new price history repository.
func NewHistoryRepository(db *sql.DB, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log.With().Str("repo", "price_history").Logger(),
	}
}

// Record appends one price observation for an item.
func (r *HistoryRepository) Record(ctx context.Context, itemKey string, price float64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO price_history (item_key, price) VALUES (?, ?)",
		itemKey, price)
	if err != nil {
		return fmt.Errorf("failed to record price for %q: %w", itemKey, err)
	}
	return nil
}

// Recent returns up to limit observations for an item in chronological order.
func (r *HistoryRepository) Recent(ctx context.Context, itemKey string, limit int) ([]float64, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT price FROM (
			SELECT price, id FROM price_history
			WHERE item_key = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC`,
		itemKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load price history for %q: %w", itemKey, err)
	}
	defer rows.Close()

	var prices []float64
	for rows.Next() {
		var price float64
		if err := rows.Scan(&price); err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		prices = append(prices, price)
	}
	return prices, rows.Err()
}

// PurgeOlderThan removes observations older than the cutoff and returns how
// many were dropped.
func (r *HistoryRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM price_history WHERE observed_at < ?",
		cutoff.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, fmt.Errorf("failed to purge price history: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged price history: %w", err)
	}
	return deleted, nil
}

// IsOutlier reports whether a quote sits more than three standard deviations
// from the median of the sample. With fewer than minSamplesForStats
// observations there is no basis for rejection and it returns false.
func IsOutlier(sample []float64, quote float64) bool {
	if len(sample) < minSamplesForStats {
		return false
	}

	sorted := append([]float64(nil), sample...)
	sort.Float64s(sorted)

	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	stddev := stat.StdDev(sorted, nil)
	if stddev == 0 {
		return quote != median
	}

	deviation := quote - median
	if deviation < 0 {
		deviation = -deviation
	}
	return deviation > 3*stddev
}

// Trend summarizes the direction of a price series with a simple moving
// average.
type Trend struct {
	SMA       float64 `json:"sma"`
	Direction string  `json:"direction"` // "up", "down" or "flat"
	Samples   int     `json:"samples"`
}

// ComputeTrend returns the SMA trend of a chronological price series. The
// direction compares the latest SMA value against the one a full period
// earlier; series shorter than two periods come back flat.
func ComputeTrend(series []float64, period int) Trend {
	if period <= 0 {
		period = 5
	}
	trend := Trend{Direction: "flat", Samples: len(series)}
	if len(series) < minSamplesForStats || len(series) < 2*period {
		if len(series) > 0 {
			trend.SMA = stat.Mean(series, nil)
		}
		return trend
	}

	sma := talib.Sma(series, period)
	latest := sma[len(sma)-1]
	earlier := sma[len(sma)-1-period]
	trend.SMA = latest

	switch {
	case latest > earlier*1.005:
		trend.Direction = "up"
	case latest < earlier*0.995:
		trend.Direction = "down"
	}
	return trend
}
