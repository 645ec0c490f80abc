package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockfolio/internal/domain"
	"stockfolio/internal/modules/holdings"
)

// ErrLedgerWrite marks a storage failure during append. The append was
// rolled back fully; the caller may retry.
var ErrLedgerWrite = errors.New("ledger write failed")

// Repository is the append-only transaction log plus its position
// projection cache.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new ledger repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// Append durably records a transaction and updates the cached position
// row in one database transaction: either both happen or neither does.
// Quantity is signed (positive=buy, negative=sell). A sell that would
// drive the position negative is rejected with ErrInsufficientHoldings
// and nothing is written.
func (r *Repository) Append(portfolioID, symbol string, quantity, price decimal.Decimal, executedAt time.Time) (domain.Transaction, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return domain.Transaction{}, domain.ErrInvalidSymbol
	}
	if quantity.IsZero() {
		return domain.Transaction{}, domain.ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return domain.Transaction{}, domain.ErrInvalidPrice
	}

	kind := domain.KindBuy
	if quantity.IsNegative() {
		kind = domain.KindSell
	}

	tx, err := r.db.Begin()
	if err != nil {
		return domain.Transaction{}, errors.Join(ErrLedgerWrite, err)
	}
	defer tx.Rollback()

	pos, err := r.positionForUpdate(tx, portfolioID, symbol)
	if err != nil {
		return domain.Transaction{}, errors.Join(ErrLedgerWrite, err)
	}

	// Enforce the non-negative invariant at the append boundary
	if kind == domain.KindSell {
		pos, err = holdings.ApplySell(pos, quantity.Neg())
		if err != nil {
			return domain.Transaction{}, err
		}
	} else {
		pos = holdings.ApplyBuy(pos, quantity, price)
	}

	now := time.Now().UTC()

	res, err := tx.Exec(`
		INSERT INTO transactions (portfolio_id, symbol, kind, quantity, price, executed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		portfolioID,
		symbol,
		string(kind),
		quantity.String(),
		price.String(),
		executedAt.UTC().Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return domain.Transaction{}, errors.Join(ErrLedgerWrite, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.Transaction{}, errors.Join(ErrLedgerWrite, err)
	}

	_, err = tx.Exec(`
		INSERT INTO positions (portfolio_id, symbol, quantity, avg_cost, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			avg_cost = excluded.avg_cost,
			updated_at = excluded.updated_at`,
		portfolioID,
		symbol,
		pos.Quantity.String(),
		pos.AvgCost.String(),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return domain.Transaction{}, errors.Join(ErrLedgerWrite, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Transaction{}, errors.Join(ErrLedgerWrite, err)
	}

	r.log.Info().
		Str("portfolio_id", portfolioID).
		Str("symbol", symbol).
		Str("kind", string(kind)).
		Str("quantity", quantity.String()).
		Str("price", price.String()).
		Msg("Transaction appended")

	return domain.Transaction{
		ID:          id,
		PortfolioID: portfolioID,
		Symbol:      symbol,
		Kind:        kind,
		Quantity:    quantity,
		Price:       price,
		ExecutedAt:  executedAt.UTC(),
		CreatedAt:   now,
	}, nil
}

// ListByPortfolio returns the portfolio's transactions in ledger order:
// executed_at ascending, ties broken by insertion id.
func (r *Repository) ListByPortfolio(portfolioID string) ([]domain.Transaction, error) {
	rows, err := r.db.Query(`
		SELECT id, portfolio_id, symbol, kind, quantity, price, executed_at, created_at
		FROM transactions
		WHERE portfolio_id = ?
		ORDER BY executed_at ASC, id ASC`,
		portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}

// Positions returns the cached position rows for a portfolio, excluding
// fully sold-out symbols.
func (r *Repository) Positions(portfolioID string) (map[string]domain.Position, error) {
	rows, err := r.db.Query(`
		SELECT symbol, quantity, avg_cost
		FROM positions
		WHERE portfolio_id = ?`,
		portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make(map[string]domain.Position)
	for rows.Next() {
		var pos domain.Position
		var qtyStr, avgStr string

		if err := rows.Scan(&pos.Symbol, &qtyStr, &avgStr); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}

		if pos.Quantity, err = decimal.NewFromString(qtyStr); err != nil {
			return nil, fmt.Errorf("invalid stored quantity %q: %w", qtyStr, err)
		}
		if pos.AvgCost, err = decimal.NewFromString(avgStr); err != nil {
			return nil, fmt.Errorf("invalid stored avg_cost %q: %w", avgStr, err)
		}

		if pos.Quantity.IsPositive() {
			positions[pos.Symbol] = pos
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// HeldSymbols returns every symbol with a positive position in any
// portfolio. Used by the quote refresh job.
func (r *Repository) HeldSymbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol, quantity FROM positions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query held symbols: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var symbols []string
	for rows.Next() {
		var symbol, qtyStr string
		if err := rows.Scan(&symbol, &qtyStr); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}

		qty, err := decimal.NewFromString(qtyStr)
		if err != nil {
			return nil, fmt.Errorf("invalid stored quantity %q: %w", qtyStr, err)
		}

		if qty.IsPositive() && !seen[symbol] {
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return symbols, nil
}

// positionForUpdate reads the current cached position inside the append
// transaction. Missing row means a flat position.
func (r *Repository) positionForUpdate(tx *sql.Tx, portfolioID, symbol string) (domain.Position, error) {
	var qtyStr, avgStr string
	err := tx.QueryRow(`
		SELECT quantity, avg_cost FROM positions
		WHERE portfolio_id = ? AND symbol = ?`,
		portfolioID, symbol,
	).Scan(&qtyStr, &avgStr)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Position{Symbol: symbol, Quantity: decimal.Zero, AvgCost: decimal.Zero}, nil
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("failed to read position: %w", err)
	}

	pos := domain.Position{Symbol: symbol}
	if pos.Quantity, err = decimal.NewFromString(qtyStr); err != nil {
		return domain.Position{}, fmt.Errorf("invalid stored quantity %q: %w", qtyStr, err)
	}
	if pos.AvgCost, err = decimal.NewFromString(avgStr); err != nil {
		return domain.Position{}, fmt.Errorf("invalid stored avg_cost %q: %w", avgStr, err)
	}

	return pos, nil
}

func scanTransaction(rows *sql.Rows) (domain.Transaction, error) {
	var txn domain.Transaction
	var kind, qtyStr, priceStr, executedAt, createdAt string

	err := rows.Scan(
		&txn.ID,
		&txn.PortfolioID,
		&txn.Symbol,
		&kind,
		&qtyStr,
		&priceStr,
		&executedAt,
		&createdAt,
	)
	if err != nil {
		return txn, err
	}

	txn.Kind = domain.TransactionKind(kind)

	if txn.Quantity, err = decimal.NewFromString(qtyStr); err != nil {
		return txn, fmt.Errorf("invalid stored quantity %q: %w", qtyStr, err)
	}
	if txn.Price, err = decimal.NewFromString(priceStr); err != nil {
		return txn, fmt.Errorf("invalid stored price %q: %w", priceStr, err)
	}

	if txn.ExecutedAt, err = time.Parse(time.RFC3339Nano, executedAt); err != nil {
		return txn, fmt.Errorf("invalid executed_at %q: %w", executedAt, err)
	}
	if txn.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return txn, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}

	return txn, nil
}
