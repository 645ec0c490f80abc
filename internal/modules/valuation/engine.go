package valuation

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockfolio/internal/domain"
)

// PriceLookup resolves a symbol to a quote. A returned error marks the
// symbol's price as unknown; it never fails the valuation.
type PriceLookup func(symbol string) (domain.Quote, error)

// Engine computes portfolio valuations from projected positions and a
// price lookup.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new valuation engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("service", "valuation").Logger(),
	}
}

// Value computes per-position market values, total value and ROI.
// A position whose price cannot be resolved is flagged unknown and
// excluded from the totals; one missing price never blocks the rest.
// ROI is (total - cost) / cost over known-price positions, and 0 for
// an empty portfolio.
func (e *Engine) Value(positions map[string]domain.Position, lookup PriceLookup) Valuation {
	v := Valuation{
		TotalValue: decimal.Zero,
		CostBasis:  decimal.Zero,
		ROI:        decimal.Zero,
		ValuedAt:   time.Now().UTC(),
	}

	symbols := make([]string, 0, len(positions))
	for symbol := range positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		pos := positions[symbol]

		pv := PositionValuation{
			Symbol:    symbol,
			Quantity:  pos.Quantity,
			AvgCost:   pos.AvgCost,
			CostBasis: pos.CostBasis(),
		}

		quote, err := lookup(symbol)
		if err != nil {
			pv.PriceUnknown = true
			v.Excluded = append(v.Excluded, ExcludedSymbol{
				Symbol: symbol,
				Reason: err.Error(),
			})
			v.Positions = append(v.Positions, pv)

			e.log.Warn().Err(err).Str("symbol", symbol).Msg("Price unavailable, excluding position from totals")
			continue
		}

		marketValue := pos.Quantity.Mul(quote.Price)
		pv.Price = &quote.Price
		pv.MarketValue = &marketValue
		pv.Stale = quote.Stale

		v.TotalValue = v.TotalValue.Add(marketValue)
		v.CostBasis = v.CostBasis.Add(pv.CostBasis)
		v.Positions = append(v.Positions, pv)
	}

	if v.CostBasis.IsPositive() {
		v.ROI = v.TotalValue.Sub(v.CostBasis).Div(v.CostBasis).Round(6)
	}

	return v
}
