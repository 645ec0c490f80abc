package valuation

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionValuation is the valued view of a single position. Price and
// MarketValue are nil when no usable quote exists; such positions are
// excluded from portfolio totals but still reported.
type PositionValuation struct {
	Symbol       string           `json:"symbol"`
	Quantity     decimal.Decimal  `json:"quantity"`
	AvgCost      decimal.Decimal  `json:"avg_cost"`
	CostBasis    decimal.Decimal  `json:"cost_basis"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	MarketValue  *decimal.Decimal `json:"market_value,omitempty"`
	Stale        bool             `json:"stale,omitempty"`
	PriceUnknown bool             `json:"price_unknown,omitempty"`
}

// ExcludedSymbol names a symbol left out of the totals and why
type ExcludedSymbol struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Valuation is the aggregate portfolio valuation. TotalValue and ROI
// cover only positions with a known price; Excluded lists the rest.
type Valuation struct {
	TotalValue decimal.Decimal     `json:"total_value"`
	CostBasis  decimal.Decimal     `json:"cost_basis"`
	ROI        decimal.Decimal     `json:"roi"`
	Positions  []PositionValuation `json:"positions"`
	Excluded   []ExcludedSymbol    `json:"excluded,omitempty"`
	ValuedAt   time.Time           `json:"valued_at"`
}
