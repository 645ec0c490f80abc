package portfolio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockfolio/internal/domain"
	"stockfolio/internal/modules/holdings"
	"stockfolio/internal/modules/ledger"
	"stockfolio/internal/modules/prices"
	"stockfolio/internal/modules/valuation"
)

// Service orchestrates buy/sell/valuation operations over the ledger,
// holdings projector, price cache and valuation engine.
type Service struct {
	portfolioRepo *Repository
	ledgerRepo    *ledger.Repository
	prices        *prices.Service
	engine        *valuation.Engine
	log           zerolog.Logger

	// mutating operations on one portfolio serialize on its lock;
	// valuation reads don't take it and may observe a slightly stale
	// snapshot.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new portfolio service
func NewService(
	portfolioRepo *Repository,
	ledgerRepo *ledger.Repository,
	priceSvc *prices.Service,
	engine *valuation.Engine,
	log zerolog.Logger,
) *Service {
	return &Service{
		portfolioRepo: portfolioRepo,
		ledgerRepo:    ledgerRepo,
		prices:        priceSvc,
		engine:        engine,
		log:           log.With().Str("service", "portfolio").Logger(),
		locks:         make(map[string]*sync.Mutex),
	}
}

// Buy records a buy at the caller-supplied fill price
func (s *Service) Buy(ctx context.Context, userID int64, symbol string, quantity, price decimal.Decimal) (domain.Transaction, error) {
	if !quantity.IsPositive() {
		return domain.Transaction{}, domain.ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return domain.Transaction{}, domain.ErrInvalidPrice
	}

	p, err := s.portfolioRepo.GetByUserID(userID)
	if err != nil {
		return domain.Transaction{}, err
	}

	lock := s.portfolioLock(p.ID)
	lock.Lock()
	defer lock.Unlock()

	return s.ledgerRepo.Append(p.ID, symbol, quantity, price, time.Now())
}

// Sell records a sell at the current market price resolved through the
// price cache. Selling more than held is rejected whole; there are no
// partial fills.
func (s *Service) Sell(ctx context.Context, userID int64, symbol string, quantity decimal.Decimal) (domain.Transaction, error) {
	if !quantity.IsPositive() {
		return domain.Transaction{}, domain.ErrInvalidQuantity
	}

	p, err := s.portfolioRepo.GetByUserID(userID)
	if err != nil {
		return domain.Transaction{}, err
	}

	// Resolve the execution price before taking the portfolio lock;
	// a failed lookup aborts the sell with nothing written.
	quote, err := s.prices.GetQuote(ctx, symbol)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("cannot price sell for %s: %w", symbol, err)
	}

	lock := s.portfolioLock(p.ID)
	lock.Lock()
	defer lock.Unlock()

	txn, err := s.ledgerRepo.Append(p.ID, symbol, quantity.Neg(), quote.Price, time.Now())
	if err != nil {
		return domain.Transaction{}, err
	}

	if quote.Stale {
		s.log.Warn().
			Str("symbol", txn.Symbol).
			Time("quote_fetched_at", quote.FetchedAt).
			Msg("Sell executed against stale quote")
	}

	return txn, nil
}

// GetValuation replays the ledger into positions and values them with
// batch quotes. Read-only with respect to the ledger; refreshes the
// portfolio's cached total_value/roi columns as a side effect.
func (s *Service) GetValuation(ctx context.Context, userID int64) (valuation.Valuation, error) {
	p, err := s.portfolioRepo.GetByUserID(userID)
	if err != nil {
		return valuation.Valuation{}, err
	}

	txns, err := s.ledgerRepo.ListByPortfolio(p.ID)
	if err != nil {
		return valuation.Valuation{}, err
	}

	positions := holdings.Project(txns)

	held := make(map[string]domain.Position, len(positions))
	symbols := make([]string, 0, len(positions))
	for symbol, pos := range positions {
		if pos.Quantity.IsPositive() {
			held[symbol] = pos
			symbols = append(symbols, symbol)
		}
	}

	results := s.prices.GetQuotes(ctx, symbols)

	v := s.engine.Value(held, func(symbol string) (domain.Quote, error) {
		res, ok := results[strings.ToUpper(symbol)]
		if !ok {
			return domain.Quote{}, domain.ErrPriceUnavailable
		}
		if res.Err != nil {
			return domain.Quote{}, res.Err
		}
		return res.Quote, nil
	})

	// Cache refresh is best effort; the valuation itself already stands
	if err := s.portfolioRepo.UpdateValuation(p.ID, v.TotalValue, v.ROI, v.ValuedAt); err != nil {
		s.log.Warn().Err(err).Str("portfolio_id", p.ID).Msg("Failed to refresh valuation cache")
	}

	return v, nil
}

// GetTransactions returns the portfolio's full ledger in order
func (s *Service) GetTransactions(userID int64) ([]domain.Transaction, error) {
	p, err := s.portfolioRepo.GetByUserID(userID)
	if err != nil {
		return nil, err
	}

	return s.ledgerRepo.ListByPortfolio(p.ID)
}

// Positions returns the current held positions for a user
func (s *Service) Positions(userID int64) (map[string]domain.Position, error) {
	p, err := s.portfolioRepo.GetByUserID(userID)
	if err != nil {
		return nil, err
	}

	return s.ledgerRepo.Positions(p.ID)
}

func (s *Service) portfolioLock(portfolioID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[portfolioID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[portfolioID] = lock
	}
	return lock
}
