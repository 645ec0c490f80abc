package performance

import "github.com/shopspring/decimal"

// PricePoint is one daily close with its 20-day SMA overlay. The SMA is
// nil for the first window-1 points where it is not yet defined.
type PricePoint struct {
	Date  string           `json:"date"`
	Close decimal.Decimal  `json:"close"`
	SMA20 *decimal.Decimal `json:"sma_20,omitempty"`
}

// SymbolPerformance is the trailing history and return statistics for
// one held symbol. A symbol whose history cannot be loaded carries an
// Error and empty series instead of failing the whole report.
type SymbolPerformance struct {
	Symbol           string       `json:"symbol"`
	Points           []PricePoint `json:"points,omitempty"`
	AnnualizedReturn *float64     `json:"annualized_return,omitempty"`
	Volatility       *float64     `json:"volatility,omitempty"`
	MaxDrawdown      *float64     `json:"max_drawdown,omitempty"`
	FromHistory      bool         `json:"from_history,omitempty"`
	Error            string       `json:"error,omitempty"`
}

// Report is the full performance response for a portfolio
type Report struct {
	Symbols []SymbolPerformance `json:"symbols"`
}
