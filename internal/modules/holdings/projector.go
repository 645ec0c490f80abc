package holdings

import (
	"github.com/shopspring/decimal"

	"stockfolio/internal/domain"
)

// Project replays an ordered transaction sequence into per-symbol
// positions. Pure function of its input: the same sequence always
// yields the same positions, so state can be rebuilt after a crash.
//
// The append guard rejects oversells before they reach the ledger, so
// quantities never go negative here; a replayed sell is clamped at zero
// as a defensive measure against hand-edited data.
func Project(txns []domain.Transaction) map[string]domain.Position {
	positions := make(map[string]domain.Position)

	for _, txn := range txns {
		pos, ok := positions[txn.Symbol]
		if !ok {
			pos = domain.Position{Symbol: txn.Symbol}
		}

		if txn.Quantity.IsPositive() {
			pos = ApplyBuy(pos, txn.Quantity, txn.Price)
		} else {
			sold := txn.Quantity.Neg()
			if sold.GreaterThan(pos.Quantity) {
				sold = pos.Quantity
			}
			pos = applySell(pos, sold)
		}

		positions[txn.Symbol] = pos
	}

	return positions
}

// ApplyBuy increases a position's quantity and recomputes its average
// cost: new_avg = (old_avg*old_qty + price*qty) / (old_qty+qty).
func ApplyBuy(pos domain.Position, qty, price decimal.Decimal) domain.Position {
	newQty := pos.Quantity.Add(qty)
	if pos.Quantity.IsZero() {
		pos.AvgCost = price
	} else {
		pos.AvgCost = pos.AvgCost.Mul(pos.Quantity).
			Add(price.Mul(qty)).
			Div(newQty)
	}
	pos.Quantity = newQty
	return pos
}

// ApplySell decreases a position's quantity. The average cost is
// unchanged on sells. Selling more than held fails with
// domain.ErrInsufficientHoldings.
func ApplySell(pos domain.Position, qty decimal.Decimal) (domain.Position, error) {
	if qty.GreaterThan(pos.Quantity) {
		return pos, domain.ErrInsufficientHoldings
	}
	return applySell(pos, qty), nil
}

func applySell(pos domain.Position, qty decimal.Decimal) domain.Position {
	pos.Quantity = pos.Quantity.Sub(qty)
	if pos.Quantity.IsZero() {
		pos.AvgCost = decimal.Zero
	}
	return pos
}

// RealizedGain is (sell_price - avg_cost) * sold_qty. Not tracked as
// separate lots, but computable from the average-cost rule for ROI.
func RealizedGain(sellPrice, avgCost, qty decimal.Decimal) decimal.Decimal {
	return sellPrice.Sub(avgCost).Mul(qty)
}
