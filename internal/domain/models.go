package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the side of a ledger transaction
type TransactionKind string

const (
	KindBuy  TransactionKind = "buy"
	KindSell TransactionKind = "sell"
)

// Transaction is an immutable ledger entry. Quantity is signed:
// positive for buys, negative for sells. Once appended it is never
// mutated or deleted; ledger order (executed_at, then insertion id) is
// the source of truth for holdings.
type Transaction struct {
	ID          int64           `json:"id"`
	PortfolioID string          `json:"portfolio_id"`
	Symbol      string          `json:"symbol"`
	Kind        TransactionKind `json:"kind"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	ExecutedAt  time.Time       `json:"executed_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Position is the derived holding for one symbol within a portfolio.
// Always reconstructible by replaying the portfolio's transactions.
type Position struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avg_cost"`
}

// CostBasis returns quantity * average cost.
func (p Position) CostBasis() decimal.Decimal {
	return p.Quantity.Mul(p.AvgCost)
}

// Quote is a cached market price for a symbol. Stale marks a quote
// served past its freshness window because the source was unreachable.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	FetchedAt time.Time       `json:"fetched_at"`
	Stale     bool            `json:"stale"`
}

// User is a registered account. Each user owns exactly one portfolio,
// created at registration.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Portfolio holds cached valuation figures. TotalValue and ROI are
// derived caches, never an independent write target.
type Portfolio struct {
	ID         string          `json:"id"`
	UserID     int64           `json:"user_id"`
	TotalValue decimal.Decimal `json:"total_value"`
	ROI        decimal.Decimal `json:"roi"`
	ValuedAt   *time.Time      `json:"valued_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
