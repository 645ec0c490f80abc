package alphavantage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockfolio/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", zerolog.Nop())
}

const dailyBody = `{
	"Meta Data": {
		"1. Information": "Daily Prices (open, high, low, close) and Volumes",
		"2. Symbol": "AAPL"
	},
	"Time Series (Daily)": {
		"2026-08-28": {
			"1. open": "231.10",
			"2. high": "233.00",
			"3. low": "230.05",
			"4. close": "232.14",
			"5. volume": "44923100"
		},
		"2026-08-26": {
			"1. open": "228.00",
			"2. high": "230.10",
			"3. low": "227.50",
			"4. close": "229.31",
			"5. volume": "39101200"
		},
		"2026-08-27": {
			"1. open": "229.40",
			"2. high": "231.90",
			"3. low": "228.80",
			"4. close": "230.49",
			"5. volume": "41002800"
		}
	}
}`

func TestGetDailySeries_SortedAscending(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TIME_SERIES_DAILY", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		fmt.Fprint(w, dailyBody)
	})

	series, err := client.GetDailySeries(context.Background(), "aapl", OutputCompact)
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, "2026-08-26", series[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2026-08-28", series[2].Date.Format("2006-01-02"))
	assert.Equal(t, "229.31", series[0].Close.String())
	assert.Equal(t, "232.14", series[2].Close.String())
}

func TestGetDailySeries_NoteMeansRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Note": "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`)
	})

	_, err := client.GetDailySeries(context.Background(), "AAPL", OutputCompact)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestGetDailySeries_InformationMeansRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Information": "API rate limit exceeded."}`)
	})

	_, err := client.GetDailySeries(context.Background(), "AAPL", OutputCompact)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestGetDailySeries_HTTP429(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetDailySeries(context.Background(), "AAPL", OutputCompact)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestGetDailySeries_ErrorMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Error Message": "Invalid API call."}`)
	})

	_, err := client.GetDailySeries(context.Background(), "NOSUCH", OutputCompact)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API call")
}

func TestGetDailySeries_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	})

	_, err := client.GetDailySeries(context.Background(), "AAPL", OutputCompact)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse response")
}

func TestGetDailySeries_EmptySymbol(t *testing.T) {
	client := NewClient("http://localhost", "k", zerolog.Nop())

	_, err := client.GetDailySeries(context.Background(), "  ", OutputCompact)
	assert.ErrorIs(t, err, domain.ErrInvalidSymbol)
}

func TestLatestClose_ReturnsMostRecent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, dailyBody)
	})

	latest, err := client.LatestClose(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-28", latest.Date.Format("2006-01-02"))
	assert.Equal(t, "232.14", latest.Close.String())
}

func TestTrailingSeries_AppliesWindow(t *testing.T) {
	now := time.Now()
	body := fmt.Sprintf(`{"Time Series (Daily)": {
		%q: {"1. open": "1", "2. high": "1", "3. low": "1", "4. close": "10.00", "5. volume": "1"},
		%q: {"1. open": "1", "2. high": "1", "3. low": "1", "4. close": "11.00", "5. volume": "1"},
		%q: {"1. open": "1", "2. high": "1", "3. low": "1", "4. close": "12.00", "5. volume": "1"}
	}}`,
		now.AddDate(-2, 0, 0).Format("2006-01-02"),
		now.AddDate(0, 0, -10).Format("2006-01-02"),
		now.AddDate(0, 0, -1).Format("2006-01-02"),
	)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "full", r.URL.Query().Get("outputsize"))
		fmt.Fprint(w, body)
	})

	series, err := client.TrailingSeries(context.Background(), "AAPL", 30*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "11", series[0].Close.String())
	assert.Equal(t, "12", series[1].Close.String())
}
