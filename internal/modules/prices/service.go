package prices

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"stockfolio/internal/clients/alphavantage"
	"stockfolio/internal/domain"
)

// Fetcher provides the latest daily close for a symbol. Satisfied by
// *alphavantage.Client.
type Fetcher interface {
	LatestClose(ctx context.Context, symbol string) (alphavantage.DailyClose, error)
}

// Config holds price service configuration
type Config struct {
	TTL          time.Duration // freshness window for cached quotes
	FetchTimeout time.Duration // per-attempt timeout for outbound fetches
	RetryBackoff time.Duration // wait before the single retry
}

// Result is the per-symbol outcome of a batch lookup
type Result struct {
	Quote domain.Quote
	Err   error
}

// Service caches last-known prices per symbol with a freshness window
// and isolates quote-source failures from the rest of the system:
// expired quotes are served stale when the source is down, and only a
// symbol with no cached value at all surfaces ErrPriceUnavailable.
type Service struct {
	fetcher Fetcher
	history *HistoryStore
	cfg     Config
	log     zerolog.Logger

	mu    sync.RWMutex
	cache map[string]domain.Quote

	// collapses concurrent misses for one symbol into a single fetch
	group singleflight.Group
}

// NewService creates a new price service. history may be nil.
func NewService(fetcher Fetcher, history *HistoryStore, cfg Config, log zerolog.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	return &Service{
		fetcher: fetcher,
		history: history,
		cfg:     cfg,
		log:     log.With().Str("service", "prices").Logger(),
		cache:   make(map[string]domain.Quote),
	}
}

// GetQuote returns the price for a symbol. A quote inside the TTL is
// served from cache without a network call. On a miss the source is
// called with one retry; if it fails and a stale quote exists, the
// stale quote is returned with Stale=true rather than an error.
func (s *Service) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return domain.Quote{}, domain.ErrInvalidSymbol
	}

	if quote, ok := s.cached(symbol); ok && s.fresh(quote) {
		return quote, nil
	}

	v, err, _ := s.group.Do(symbol, func() (interface{}, error) {
		// another caller may have refilled while we waited on the flight
		if quote, ok := s.cached(symbol); ok && s.fresh(quote) {
			return quote, nil
		}
		return s.refresh(symbol)
	})
	if err != nil {
		return domain.Quote{}, err
	}

	select {
	case <-ctx.Done():
		return domain.Quote{}, ctx.Err()
	default:
	}

	return v.(domain.Quote), nil
}

// GetQuotes looks up many symbols; one symbol's failure never aborts
// the batch. The result map always has an entry per requested symbol.
func (s *Service) GetQuotes(ctx context.Context, symbols []string) map[string]Result {
	results := make(map[string]Result, len(symbols))

	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if _, done := results[symbol]; done {
			continue
		}

		quote, err := s.GetQuote(ctx, symbol)
		results[symbol] = Result{Quote: quote, Err: err}
	}

	return results
}

// CachedCount reports the number of cached quotes (system status)
func (s *Service) CachedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// refresh fetches a fresh close from the source, falling back to the
// stale cached value when the source is unreachable. Runs inside the
// singleflight group, detached from any single caller's context.
func (s *Service) refresh(symbol string) (domain.Quote, error) {
	latest, err := s.fetchWithRetry(symbol)
	if err != nil {
		if stale, ok := s.cached(symbol); ok {
			stale.Stale = true
			s.log.Warn().
				Err(err).
				Str("symbol", symbol).
				Time("fetched_at", stale.FetchedAt).
				Msg("Quote source failed, serving stale cache")
			return stale, nil
		}
		return domain.Quote{}, errors.Join(domain.ErrPriceUnavailable, err)
	}

	quote := domain.Quote{
		Symbol:    symbol,
		Price:     latest.Close,
		FetchedAt: time.Now(),
	}

	s.mu.Lock()
	s.cache[symbol] = quote
	s.mu.Unlock()

	if s.history != nil {
		if err := s.history.UpsertCloses(symbol, []alphavantage.DailyClose{latest}); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to persist close to history")
		}
	}

	return quote, nil
}

// fetchWithRetry calls the source with a per-attempt timeout and one
// retry with backoff on transient failure. Rate-limit rejections are
// not retried.
func (s *Service) fetchWithRetry(symbol string) (alphavantage.DailyClose, error) {
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(s.cfg.RetryBackoff)
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FetchTimeout)
		latest, err := s.fetcher.LatestClose(ctx, symbol)
		cancel()

		if err == nil {
			return latest, nil
		}

		lastErr = err
		if errors.Is(err, domain.ErrRateLimited) {
			break
		}

		s.log.Warn().
			Err(err).
			Str("symbol", symbol).
			Int("attempt", attempt+1).
			Msg("Quote fetch failed")
	}

	return alphavantage.DailyClose{}, lastErr
}

func (s *Service) cached(symbol string) (domain.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quote, ok := s.cache[symbol]
	return quote, ok
}

func (s *Service) fresh(quote domain.Quote) bool {
	return time.Since(quote.FetchedAt) < s.cfg.TTL
}
