package pricing

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/domain"
	"github.com/skinflow/tradebot/internal/events"
)

var _ domain.PriceOracle = (*Oracle)(nil)

// Oracle answers unit price lookups for the policy engine. Lookups go
// memory cache -> persistent cache -> price API; fresh quotes are recorded
// into the history and rejected when they sit far outside it.
type Oracle struct {
	client       *Client
	memCache     domain.Cache
	history      *HistoryRepository
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewOracle creates a price oracle. memCache, history and eventManager are
// optional; a nil memCache disables in-process caching.
func NewOracle(client *Client, memCache domain.Cache, history *HistoryRepository, eventManager *events.Manager, log zerolog.Logger) *Oracle {
	return &Oracle{
		client:       client,
		memCache:     memCache,
		history:      history,
		eventManager: eventManager,
		log:          log.With().Str("module", "pricing").Str("component", "oracle").Logger(),
	}
}

// GetUnitPrice returns the USD price for an item key, with false when no
// usable price exists.
func (o *Oracle) GetUnitPrice(ctx context.Context, itemKey string) (float64, bool, error) {
	if o.memCache != nil {
		if price, ok := o.memCache.Get(itemKey); ok {
			return price, true, nil
		}
	}

	price, found, err := o.client.GetPrice(ctx, itemKey)
	if err != nil {
		return 0, false, err
	}
	if !found || price <= 0 {
		return 0, false, nil
	}

	if o.history != nil {
		sample, histErr := o.history.Recent(ctx, itemKey, 100)
		if histErr != nil {
			o.log.Warn().Err(histErr).Str("item", itemKey).Msg("failed to load price history")
		} else if IsOutlier(sample, price) {
			o.log.Warn().
				Str("item", itemKey).
				Float64("price", price).
				Int("samples", len(sample)).
				Msg("quote rejected as outlier")
			return 0, false, nil
		}
		if histErr == nil {
			if err := o.history.Record(ctx, itemKey, price); err != nil {
				o.log.Warn().Err(err).Str("item", itemKey).Msg("failed to record price observation")
			}
		}
	}

	if o.memCache != nil {
		o.memCache.Set(itemKey, price)
	}
	if o.eventManager != nil {
		o.eventManager.EmitTyped("pricing", &events.PriceUpdatedData{
			ItemKey: itemKey,
			Price:   price,
		})
	}

	return price, true, nil
}
