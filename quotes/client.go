// Package quotes answers $SYMBOL requests with a market-data summary
// fetched from CoinGecko.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"github.com/escapismart/shopbot/core/logger"
)

const (
	defaultBaseURL       = "https://api.coingecko.com"
	defaultTimeout       = 10 * time.Second
	defaultRetryAttempts = 2
	defaultRetryBackoff  = 500 * time.Millisecond

	maxResponseBytes = 1 << 20
)

// Symbol aliases where the ticker does not match the CoinGecko coin id.
// Unknown symbols fall back to the lowercased symbol itself.
var coinAliases = map[string]string{
	"inj": "injective-protocol",
	"btc": "bitcoin",
	"eth": "ethereum",
}

// Config tunes the CoinGecko client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client fetches coin market data over HTTP with transient-error retries.
type Client struct {
	http    *http.Client
	baseURL string
}

// New constructs a Client; zero config fields fall back to defaults.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &retryTransport{
				base:       transport,
				maxRetries: defaultRetryAttempts,
				backoff:    defaultRetryBackoff,
			},
		},
		baseURL: baseURL,
	}
}

type coinResponse struct {
	Name       string `json:"name"`
	MarketData struct {
		CurrentPrice   map[string]float64 `json:"current_price"`
		PriceChange24h float64            `json:"price_change_percentage_24h"`
		Sparkline7d    struct {
			Price []float64 `json:"price"`
		} `json:"sparkline_7d"`
	} `json:"market_data"`
	Error string `json:"error"`
}

// Summary returns the formatted market summary for a ticker symbol.
func (c *Client) Summary(ctx context.Context, symbol string) (string, error) {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	coinID := coinAliases[symbol]
	if coinID == "" {
		coinID = symbol
	}

	start := time.Now()
	coin, err := c.fetch(ctx, coinID)

	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("symbol", symbol),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		logger.Warn(ctx, "quotes", "quote.fetch", attrs...)
		return "", err
	}
	logger.Debug(ctx, "quotes", "quote.fetch", attrs...)

	return formatSummary(symbol, coinID, coin), nil
}

func (c *Client) fetch(ctx context.Context, coinID string) (coinResponse, error) {
	var coin coinResponse

	endpoint := fmt.Sprintf("%s/api/v3/coins/%s?localization=false&market_data=true&sparkline=true",
		c.baseURL, url.PathEscape(coinID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return coin, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return coin, fmt.Errorf("fetch coin %s: %w", coinID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return coin, fmt.Errorf("read response for %s: %w", coinID, err)
	}

	if err := json.Unmarshal(body, &coin); err != nil {
		return coin, fmt.Errorf("decode response for %s: %w", coinID, err)
	}
	if coin.Error != "" {
		return coin, fmt.Errorf("coin %s: %s", coinID, coin.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return coin, fmt.Errorf("coin %s: unexpected status %d", coinID, resp.StatusCode)
	}
	if coin.Name == "" || coin.MarketData.CurrentPrice["usd"] == 0 {
		return coin, fmt.Errorf("coin %s: market data missing", coinID)
	}
	return coin, nil
}

func formatSummary(symbol, coinID string, coin coinResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", coin.Name, strings.ToUpper(symbol))
	fmt.Fprintf(&b, "Текущая цена: $%s\n", formatPrice(coin.MarketData.CurrentPrice["usd"]))
	fmt.Fprintf(&b, "Изм. за 24ч: %.2f%%\n", coin.MarketData.PriceChange24h)
	if change, ok := weeklyChange(coin.MarketData.Sparkline7d.Price); ok {
		fmt.Fprintf(&b, "Изм. за 7д: %.2f%%\n", change)
	}
	fmt.Fprintf(&b, "Подробнее: https://coinmarketcap.com/currencies/%s/", coinID)
	return b.String()
}

func weeklyChange(prices []float64) (float64, bool) {
	if len(prices) < 2 || prices[0] == 0 {
		return 0, false
	}
	return (prices[len(prices)-1] - prices[0]) / prices[0] * 100, true
}

// formatPrice renders a USD amount with thousands separators and four
// decimal places, e.g. 23456.789 -> "23,456.7890".
func formatPrice(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]

	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	b.WriteString(frac)
	return b.String()
}
