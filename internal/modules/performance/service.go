package performance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockfolio/internal/clients/alphavantage"
	"stockfolio/internal/modules/ledger"
	"stockfolio/internal/modules/portfolio"
	"stockfolio/internal/modules/prices"
	"stockfolio/pkg/formulas"
)

const (
	trailingWindow = 365 * 24 * time.Hour
	smaPeriod      = 20
)

// SeriesFetcher loads a trailing window of daily closes for a symbol
type SeriesFetcher interface {
	TrailingSeries(ctx context.Context, symbol string, window time.Duration) ([]alphavantage.DailyClose, error)
}

// Service builds per-symbol performance reports for a portfolio. Fresh
// history comes from the quote source and is persisted to the history
// store; when the source is unavailable the stored history serves as a
// degraded fallback.
type Service struct {
	portfolioRepo *portfolio.Repository
	ledgerRepo    *ledger.Repository
	fetcher       SeriesFetcher
	history       *prices.HistoryStore
	log           zerolog.Logger
}

// NewService creates a new performance service
func NewService(
	portfolioRepo *portfolio.Repository,
	ledgerRepo *ledger.Repository,
	fetcher SeriesFetcher,
	history *prices.HistoryStore,
	log zerolog.Logger,
) *Service {
	return &Service{
		portfolioRepo: portfolioRepo,
		ledgerRepo:    ledgerRepo,
		fetcher:       fetcher,
		history:       history,
		log:           log.With().Str("service", "performance").Logger(),
	}
}

// GetReportForUser builds the report for the user's portfolio
func (s *Service) GetReportForUser(ctx context.Context, userID int64) (Report, error) {
	p, err := s.portfolioRepo.GetByUserID(userID)
	if err != nil {
		return Report{}, err
	}
	return s.GetReport(ctx, p.ID)
}

// GetReport builds the performance report for every symbol currently
// held in the portfolio. Per-symbol failures degrade to error entries.
func (s *Service) GetReport(ctx context.Context, portfolioID string) (Report, error) {
	positions, err := s.ledgerRepo.Positions(portfolioID)
	if err != nil {
		return Report{}, err
	}

	symbols := make([]string, 0, len(positions))
	for symbol := range positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	report := Report{Symbols: make([]SymbolPerformance, 0, len(symbols))}
	for _, symbol := range symbols {
		report.Symbols = append(report.Symbols, s.symbolPerformance(ctx, symbol))
	}

	return report, nil
}

func (s *Service) symbolPerformance(ctx context.Context, symbol string) SymbolPerformance {
	closes, fromHistory, err := s.loadCloses(ctx, symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("No history available")
		return SymbolPerformance{Symbol: symbol, Error: err.Error()}
	}

	values := make([]float64, len(closes))
	for i, c := range closes {
		values[i] = c.Close.InexactFloat64()
	}

	perf := SymbolPerformance{
		Symbol:      symbol,
		Points:      buildPoints(closes, values),
		MaxDrawdown: formulas.MaxDrawdown(values),
		FromHistory: fromHistory,
	}

	if returns := formulas.LogReturns(values); len(returns) >= 2 {
		annRet := formulas.AnnualizedReturn(returns)
		vol := formulas.AnnualizedVolatility(returns)
		perf.AnnualizedReturn = &annRet
		perf.Volatility = &vol
	}

	return perf
}

// loadCloses fetches the trailing window from the source, persisting it
// on success. On failure it falls back to the history store.
func (s *Service) loadCloses(ctx context.Context, symbol string) ([]alphavantage.DailyClose, bool, error) {
	closes, err := s.fetcher.TrailingSeries(ctx, symbol, trailingWindow)
	if err == nil && len(closes) > 0 {
		if s.history != nil {
			if herr := s.history.UpsertCloses(symbol, closes); herr != nil {
				s.log.Warn().Err(herr).Str("symbol", symbol).Msg("Failed to persist history")
			}
		}
		return closes, false, nil
	}

	s.log.Warn().Err(err).Str("symbol", symbol).Msg("Fetch failed, trying stored history")

	if s.history != nil {
		stored, herr := s.history.GetCloses(symbol, time.Now().Add(-trailingWindow))
		if herr == nil && len(stored) > 0 {
			return stored, true, nil
		}
	}

	if err == nil {
		err = fmt.Errorf("no daily closes for %s", symbol)
	}
	return nil, false, err
}

// buildPoints pairs each close with its SMA overlay
func buildPoints(closes []alphavantage.DailyClose, values []float64) []PricePoint {
	sma := formulas.SMA(values, smaPeriod)

	points := make([]PricePoint, len(closes))
	for i, c := range closes {
		points[i] = PricePoint{
			Date:  c.Date.Format("2006-01-02"),
			Close: c.Close,
		}
		if sma[i] != nil {
			v := decimal.NewFromFloat(*sma[i]).Round(4)
			points[i].SMA20 = &v
		}
	}

	return points
}
