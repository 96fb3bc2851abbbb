package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPriceServer(t *testing.T, body string, calls *int) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			*calls++
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOracleFetchesAndCaches(t *testing.T) {
	calls := 0
	server := newPriceServer(t, `{"success":true,"lowest_price":"1 800,00 pуб."}`, &calls)

	client := NewClient(server.URL, 90, time.Second, nil, zerolog.Nop())
	cache := NewBoundedCache(100, time.Hour)
	oracle := NewOracle(client, cache, nil, nil, zerolog.Nop())

	for i := 0; i < 3; i++ {
		price, found, err := oracle.GetUnitPrice(context.Background(), "AK-47 | Redline (Field-Tested)")
		require.NoError(t, err)
		assert.True(t, found)
		assert.InDelta(t, 20.00, price, 1e-9)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, cache.Len())
}

func TestOracleUnknownItem(t *testing.T) {
	server := newPriceServer(t, `{"success":false}`, nil)

	client := NewClient(server.URL, 90, time.Second, nil, zerolog.Nop())
	oracle := NewOracle(client, NewBoundedCache(100, time.Hour), nil, nil, zerolog.Nop())

	_, found, err := oracle.GetUnitPrice(context.Background(), "Souvenir Nothing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOracleSurfacesDependencyFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, 90, time.Second, nil, zerolog.Nop())
	oracle := NewOracle(client, nil, nil, nil, zerolog.Nop())

	_, _, err := oracle.GetUnitPrice(context.Background(), "item")
	assert.Error(t, err)
}

func TestOracleRejectsOutlierQuotes(t *testing.T) {
	// The API suddenly quotes 500 for an item with stable history near 19.
	server := newPriceServer(t, `{"success":true,"lowest_price":"45 000,00 pуб."}`, nil)

	client := NewClient(server.URL, 90, time.Second, nil, zerolog.Nop())
	history, _ := newHistoryRepo(t)
	ctx := context.Background()
	for _, price := range []float64{19.0, 19.2, 19.4, 19.1, 19.3, 19.5, 19.2, 19.4} {
		require.NoError(t, history.Record(ctx, "item", price))
	}

	oracle := NewOracle(client, nil, history, nil, zerolog.Nop())

	_, found, err := oracle.GetUnitPrice(ctx, "item")
	require.NoError(t, err)
	assert.False(t, found)

	// The rejected quote is not recorded into the history.
	sample, err := history.Recent(ctx, "item", 100)
	require.NoError(t, err)
	assert.Len(t, sample, 8)
}

func TestOracleRecordsAcceptedQuotes(t *testing.T) {
	server := newPriceServer(t, `{"success":true,"lowest_price":"1 746,00 pуб."}`, nil)

	client := NewClient(server.URL, 90, time.Second, nil, zerolog.Nop())
	history, _ := newHistoryRepo(t)

	oracle := NewOracle(client, nil, history, nil, zerolog.Nop())

	price, found, err := oracle.GetUnitPrice(context.Background(), "item")
	require.NoError(t, err)
	assert.True(t, found)
	assert.InDelta(t, 19.40, price, 1e-9)

	sample, err := history.Recent(context.Background(), "item", 100)
	require.NoError(t, err)
	assert.Equal(t, []float64{19.40}, sample)
}
