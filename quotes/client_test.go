package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const injectivePayload = `{
	"name": "Injective",
	"market_data": {
		"current_price": {"usd": 23.4567},
		"price_change_percentage_24h": -3.21,
		"sparkline_7d": {"price": [20.0, 21.5, 22.0]}
	}
}`

func TestSummaryResolvesAliasAndFormats(t *testing.T) {
	var requested string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(injectivePayload))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: time.Second})
	got, err := c.Summary(context.Background(), "INJ")
	require.NoError(t, err)

	assert.Equal(t, "/api/v3/coins/injective-protocol", requested)
	assert.Contains(t, got, "Injective (INJ)")
	assert.Contains(t, got, "Текущая цена: $23.4567")
	assert.Contains(t, got, "Изм. за 24ч: -3.21%")
	assert.Contains(t, got, "Изм. за 7д: 10.00%")
	assert.Contains(t, got, "https://coinmarketcap.com/currencies/injective-protocol/")
}

func TestSummaryUnknownSymbolFallsBackToID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/coins/dogecoin" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "coin not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"name": "Dogecoin",
			"market_data": {"current_price": {"usd": 0.1234}, "price_change_percentage_24h": 1.5}
		}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	got, err := c.Summary(context.Background(), "dogecoin")
	require.NoError(t, err)
	assert.Contains(t, got, "Dogecoin (DOGECOIN)")
}

func TestSummaryUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "coin not found"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Summary(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coin not found")
}

func TestSummaryMissingMarketData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name": "Ghost"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Summary(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market data missing")
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0.1234, "0.1234"},
		{23.4567, "23.4567"},
		{1234.5, "1,234.5000"},
		{1234567.89, "1,234,567.8900"},
		{-9876.5, "-9,876.5000"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, formatPrice(tc.in), "formatPrice(%v)", tc.in)
	}
}

func TestWeeklyChange(t *testing.T) {
	change, ok := weeklyChange([]float64{100, 90, 110})
	require.True(t, ok)
	assert.InDelta(t, 10.0, change, 0.001)

	_, ok = weeklyChange([]float64{100})
	assert.False(t, ok)
	_, ok = weeklyChange(nil)
	assert.False(t, ok)
	_, ok = weeklyChange([]float64{0, 5})
	assert.False(t, ok)
}
