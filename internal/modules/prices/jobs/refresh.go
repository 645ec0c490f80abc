package jobs

import (
	"context"

	"github.com/rs/zerolog"

	"stockfolio/internal/modules/ledger"
	"stockfolio/internal/modules/prices"
)

// QuoteRefresh re-warms the quote cache for every symbol currently held
// in any portfolio, so interactive valuations mostly hit a fresh cache.
type QuoteRefresh struct {
	ledgerRepo *ledger.Repository
	prices     *prices.Service
	log        zerolog.Logger
}

// NewQuoteRefresh creates a new quote refresh job
func NewQuoteRefresh(ledgerRepo *ledger.Repository, priceSvc *prices.Service, log zerolog.Logger) *QuoteRefresh {
	return &QuoteRefresh{
		ledgerRepo: ledgerRepo,
		prices:     priceSvc,
		log:        log.With().Str("job", "quote_refresh").Logger(),
	}
}

// Name implements scheduler.Job
func (j *QuoteRefresh) Name() string {
	return "quote_refresh"
}

// Run implements scheduler.Job
func (j *QuoteRefresh) Run() error {
	symbols, err := j.ledgerRepo.HeldSymbols()
	if err != nil {
		return err
	}

	if len(symbols) == 0 {
		return nil
	}

	results := j.prices.GetQuotes(context.Background(), symbols)

	failed := 0
	for symbol, res := range results {
		if res.Err != nil {
			failed++
			j.log.Warn().Err(res.Err).Str("symbol", symbol).Msg("Refresh failed for symbol")
		}
	}

	j.log.Info().
		Int("symbols", len(symbols)).
		Int("failed", failed).
		Msg("Quote cache refreshed")

	return nil
}
