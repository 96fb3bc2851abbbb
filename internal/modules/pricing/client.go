package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/clientdata"
	"github.com/skinflow/tradebot/internal/domain"
)

// Client fetches item prices from the marketplace price overview API.
// Quotes come back in rubles; they are normalized to USD with a fixed
// divisor before anything downstream sees them.
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
	divisor   float64
}

// NewClient creates a price API client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(baseURL string, divisor float64, timeout time.Duration, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://steamcommunity.com/market/priceoverview/"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
		log:       log.With().Str("client", "priceoverview").Logger(),
		cacheRepo: cacheRepo,
		divisor:   divisor,
	}
}

// cachedPrice is the structure stored in the cache
type cachedPrice struct {
	Price float64 `json:"price"`
}

type priceOverviewResponse struct {
	Success     bool   `json:"success"`
	LowestPrice string `json:"lowest_price"`
	MedianPrice string `json:"median_price"`
	Volume      string `json:"volume"`
}

// GetPrice fetches the USD price for an item with cache.
// The boolean is false when the marketplace has no listing for the item.
// If the API fails, returns stale cached data if available (stale data > no data).
func (c *Client) GetPrice(ctx context.Context, itemName string) (float64, bool, error) {
	// Check persistent cache for fresh data
	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh("price_cache", itemName)
		if err == nil && data != nil {
			var cached cachedPrice
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().
					Str("item", itemName).
					Float64("price", cached.Price).
					Msg("Cache hit")
				return cached.Price, true, nil
			}
		}
	}

	reqURL := c.baseURL + "?" + url.Values{
		"appid":            {"730"},
		"currency":         {"5"},
		"market_hash_name": {itemName},
	}.Encode()
	c.log.Debug().Str("url", reqURL).Msg("Fetching price")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to build price request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// API failed - try to get stale cached data as fallback
		if stale, ok := c.getStaleFromCache(itemName); ok {
			c.log.Warn().
				Err(err).
				Str("item", itemName).
				Float64("price", stale).
				Msg("API failed, using stale cached price")
			return stale, true, nil
		}
		return 0, false, domain.NewDependencyUnavailable("price_api", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if stale, ok := c.getStaleFromCache(itemName); ok {
			c.log.Warn().
				Int("status", resp.StatusCode).
				Str("item", itemName).
				Float64("price", stale).
				Msg("API error, using stale cached price")
			return stale, true, nil
		}
		return 0, false, domain.NewDependencyUnavailable("price_api",
			fmt.Errorf("API returned status %d", resp.StatusCode))
	}

	var result priceOverviewResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if stale, ok := c.getStaleFromCache(itemName); ok {
			c.log.Warn().
				Err(err).
				Str("item", itemName).
				Float64("price", stale).
				Msg("Failed to parse API response, using stale cached price")
			return stale, true, nil
		}
		return 0, false, domain.NewDependencyUnavailable("price_api",
			fmt.Errorf("failed to parse response: %w", err))
	}

	if !result.Success {
		// The marketplace knows nothing about this item; that is an
		// answer, not a failure.
		return 0, false, nil
	}

	quote := result.LowestPrice
	if quote == "" {
		quote = result.MedianPrice
	}
	rub, err := ParseRubleAmount(quote)
	if err != nil {
		return 0, false, nil
	}

	price := domain.Round2(rub / c.divisor)

	// Cache persistently
	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("price_cache", itemName, cachedPrice{Price: price}, clientdata.TTLPrice); err != nil {
			c.log.Warn().Err(err).Str("item", itemName).Msg("Failed to cache price")
		}
	}

	c.log.Info().
		Str("item", itemName).
		Float64("rub", rub).
		Float64("usd", price).
		Msg("Fetched price")

	return price, true, nil
}

// getStaleFromCache retrieves a cached price even if expired.
// Use this as a fallback when API calls fail - stale data is better than no data.
func (c *Client) getStaleFromCache(itemName string) (float64, bool) {
	if c.cacheRepo == nil {
		return 0, false
	}

	data, err := c.cacheRepo.Get("price_cache", itemName)
	if err != nil || data == nil {
		return 0, false
	}

	var cached cachedPrice
	if err := json.Unmarshal(data, &cached); err != nil {
		return 0, false
	}

	return cached.Price, true
}

// ParseRubleAmount parses a localized ruble amount like "1 839,44 pуб." or
// "184,50 ₽" into a float.
func ParseRubleAmount(value string) (float64, error) {
	cleaned := value
	for _, suffix := range []string{"pуб.", "руб.", "₽"} {
		cleaned = strings.ReplaceAll(cleaned, suffix, "")
	}
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("empty price string %q", value)
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price %q: %w", value, err)
	}
	if amount < 0 {
		return 0, fmt.Errorf("negative price %q", value)
	}
	return amount, nil
}
