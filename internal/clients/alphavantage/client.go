package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockfolio/internal/domain"
)

// OutputSize controls how much history TIME_SERIES_DAILY returns
type OutputSize string

const (
	OutputCompact OutputSize = "compact" // latest ~100 trading days
	OutputFull    OutputSize = "full"    // full history
)

// Client is an Alpha Vantage API client
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Alpha Vantage client
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "?"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "alphavantage").Logger(),
	}
}

// GetDailySeries fetches the daily close series for a symbol, sorted by
// date ascending. Rate-limit responses surface as domain.ErrRateLimited;
// malformed bodies are reported as parse errors, never key lookups.
func (c *Client) GetDailySeries(ctx context.Context, symbol string, size OutputSize) ([]DailyClose, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, domain.ErrInvalidSymbol
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	params.Set("outputsize", string(size))
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "stockfolio/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily series: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("alpha vantage returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result dailyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Alpha Vantage reports rate limiting as a 200 with a Note/Information field
	if result.Note != "" || result.Information != "" {
		return nil, domain.ErrRateLimited
	}
	if result.ErrorMessage != "" {
		return nil, fmt.Errorf("alpha vantage error for %s: %s", symbol, result.ErrorMessage)
	}
	if len(result.Series) == 0 {
		return nil, fmt.Errorf("no daily series returned for symbol %s", symbol)
	}

	closes := make([]DailyClose, 0, len(result.Series))
	for dateStr, entry := range result.Series {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("invalid series date %q: %w", dateStr, err)
		}

		price, err := decimal.NewFromString(entry.Close)
		if err != nil {
			return nil, fmt.Errorf("invalid close price %q for %s on %s: %w", entry.Close, symbol, dateStr, err)
		}

		closes = append(closes, DailyClose{Date: date, Close: price})
	}

	sort.Slice(closes, func(i, j int) bool {
		return closes[i].Date.Before(closes[j].Date)
	})

	c.log.Debug().
		Str("symbol", symbol).
		Int("count", len(closes)).
		Msg("Fetched daily series")

	return closes, nil
}

// LatestClose returns the most recent daily close for a symbol
func (c *Client) LatestClose(ctx context.Context, symbol string) (DailyClose, error) {
	series, err := c.GetDailySeries(ctx, symbol, OutputCompact)
	if err != nil {
		return DailyClose{}, err
	}
	return series[len(series)-1], nil
}

// TrailingSeries returns the daily closes within the trailing window
func (c *Client) TrailingSeries(ctx context.Context, symbol string, window time.Duration) ([]DailyClose, error) {
	series, err := c.GetDailySeries(ctx, symbol, OutputFull)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-window)
	start := sort.Search(len(series), func(i int) bool {
		return !series[i].Date.Before(cutoff)
	})

	return series[start:], nil
}
