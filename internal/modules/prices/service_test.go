package prices

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockfolio/internal/clients/alphavantage"
	"stockfolio/internal/domain"
)

// mockFetcher counts calls and can be switched to fail
type mockFetcher struct {
	mu     sync.Mutex
	calls  int
	price  decimal.Decimal
	err    error
	perSym map[string]error
}

func (m *mockFetcher) LatestClose(ctx context.Context, symbol string) (alphavantage.DailyClose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if err, ok := m.perSym[symbol]; ok && err != nil {
		return alphavantage.DailyClose{}, err
	}
	if m.err != nil {
		return alphavantage.DailyClose{}, m.err
	}
	return alphavantage.DailyClose{Date: time.Now(), Close: m.price}, nil
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestService(fetcher *mockFetcher, ttl time.Duration) *Service {
	return NewService(fetcher, nil, Config{
		TTL:          ttl,
		FetchTimeout: time.Second,
		RetryBackoff: time.Millisecond,
	}, zerolog.Nop())
}

func TestGetQuote_CacheHitSkipsFetch(t *testing.T) {
	fetcher := &mockFetcher{price: decimal.NewFromInt(100)}
	svc := newTestService(fetcher, time.Minute)

	first, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, first.Price.Equal(decimal.NewFromInt(100)))
	assert.False(t, first.Stale)

	// Second lookup inside the TTL must not touch the source
	second, err := svc.GetQuote(context.Background(), "aapl")
	require.NoError(t, err)
	assert.True(t, second.Price.Equal(first.Price))
	assert.Equal(t, 1, fetcher.callCount())
}

func TestGetQuote_ExpiredEntryRefetched(t *testing.T) {
	fetcher := &mockFetcher{price: decimal.NewFromInt(100)}
	svc := newTestService(fetcher, 10*time.Millisecond)

	_, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	fetcher.mu.Lock()
	fetcher.price = decimal.NewFromInt(110)
	fetcher.mu.Unlock()

	quote, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, quote.Price.Equal(decimal.NewFromInt(110)))
	assert.Equal(t, 2, fetcher.callCount())
}

func TestGetQuote_StaleFallbackOnSourceFailure(t *testing.T) {
	fetcher := &mockFetcher{price: decimal.NewFromInt(100)}
	svc := newTestService(fetcher, 10*time.Millisecond)

	first, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	fetcher.mu.Lock()
	fetcher.err = errors.New("connection refused")
	fetcher.mu.Unlock()

	quote, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, quote.Stale, "expired quote served during outage must be flagged stale")
	assert.True(t, quote.Price.Equal(first.Price))
}

func TestGetQuote_UnavailableWithoutCache(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("connection refused")}
	svc := newTestService(fetcher, time.Minute)

	_, err := svc.GetQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)

	// transient failure retried once
	assert.Equal(t, 2, fetcher.callCount())
}

func TestGetQuote_RateLimitNotRetried(t *testing.T) {
	fetcher := &mockFetcher{err: domain.ErrRateLimited}
	svc := newTestService(fetcher, time.Minute)

	_, err := svc.GetQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestGetQuote_InvalidSymbol(t *testing.T) {
	svc := newTestService(&mockFetcher{price: decimal.NewFromInt(1)}, time.Minute)

	_, err := svc.GetQuote(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidSymbol)
}

func TestGetQuote_ConcurrentMissesCollapse(t *testing.T) {
	fetcher := &mockFetcher{price: decimal.NewFromInt(100)}
	svc := newTestService(fetcher, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetQuote(context.Background(), "AAPL")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// all callers share at most a couple of flights, never 20 fetches
	assert.LessOrEqual(t, fetcher.callCount(), 2)
}

func TestGetQuotes_PartialFailure(t *testing.T) {
	fetcher := &mockFetcher{
		price:  decimal.NewFromInt(100),
		perSym: map[string]error{"BROKEN": errors.New("bad symbol")},
	}
	svc := newTestService(fetcher, time.Minute)

	results := svc.GetQuotes(context.Background(), []string{"AAPL", "BROKEN", "MSFT"})
	require.Len(t, results, 3)

	assert.NoError(t, results["AAPL"].Err)
	assert.NoError(t, results["MSFT"].Err)
	assert.ErrorIs(t, results["BROKEN"].Err, domain.ErrPriceUnavailable)
	assert.True(t, results["AAPL"].Quote.Price.Equal(decimal.NewFromInt(100)))
}

func TestGetQuotes_DeduplicatesSymbols(t *testing.T) {
	fetcher := &mockFetcher{price: decimal.NewFromInt(100)}
	svc := newTestService(fetcher, time.Minute)

	results := svc.GetQuotes(context.Background(), []string{"AAPL", "aapl", " AAPL "})
	assert.Len(t, results, 1)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestCachedCount(t *testing.T) {
	fetcher := &mockFetcher{price: decimal.NewFromInt(100)}
	svc := newTestService(fetcher, time.Minute)

	assert.Equal(t, 0, svc.CachedCount())

	_, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	_, err = svc.GetQuote(context.Background(), "MSFT")
	require.NoError(t, err)

	assert.Equal(t, 2, svc.CachedCount())
}
